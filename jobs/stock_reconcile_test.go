package jobs

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryStockLedger struct {
	drifts  []stockDrift
	repairs int
}

func (l *memoryStockLedger) FindDrift(ctx context.Context) ([]stockDrift, error) {
	return l.drifts, nil
}

func (l *memoryStockLedger) Repair(ctx context.Context) error {
	l.repairs++
	return nil
}

func TestStockReconcileReportsWithoutRepair(t *testing.T) {
	ledger := &memoryStockLedger{drifts: []stockDrift{{ProductID: 9, Counter: 47, Ledger: 50}}}
	reconciler := &StockReconciler{ledger: ledger, logger: slog.Default()}

	task, err := NewStockReconcileTask(time.Now(), false)
	require.NoError(t, err)

	require.NoError(t, reconciler.Handle(context.Background(), task))
	assert.Equal(t, 0, ledger.repairs,
		"a batchless sale legitimately moves the counter off the ledger sum; the default run must not undo it")
}

func TestStockReconcileRepairsOnExplicitRequest(t *testing.T) {
	ledger := &memoryStockLedger{drifts: []stockDrift{{ProductID: 9, Counter: 47, Ledger: 50}}}
	reconciler := &StockReconciler{ledger: ledger, logger: slog.Default()}

	task, err := NewStockReconcileTask(time.Now(), true)
	require.NoError(t, err)

	require.NoError(t, reconciler.Handle(context.Background(), task))
	assert.Equal(t, 1, ledger.repairs)
}

func TestStockReconcileSkipsRepairWhenClean(t *testing.T) {
	ledger := &memoryStockLedger{}
	reconciler := &StockReconciler{ledger: ledger, logger: slog.Default()}

	task, err := NewStockReconcileTask(time.Now(), true)
	require.NoError(t, err)

	require.NoError(t, reconciler.Handle(context.Background(), task))
	assert.Equal(t, 0, ledger.repairs)
}

func TestStockReconcileBadPayload(t *testing.T) {
	reconciler := &StockReconciler{ledger: &memoryStockLedger{}, logger: slog.Default()}
	task := asynq.NewTask(TaskStockReconcile, []byte("{not json"))

	err := reconciler.Handle(context.Background(), task)
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
