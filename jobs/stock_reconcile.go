package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockReconcilePayload carries scheduling metadata.
type StockReconcilePayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Repair       bool      `json:"repair"`
}

// NewStockReconcileTask constructs a reconciliation task. The nightly cron
// passes repair=false; repair runs are enqueued on demand by an operator.
func NewStockReconcileTask(at time.Time, repair bool) (*asynq.Task, error) {
	body, err := json.Marshal(StockReconcilePayload{ScheduledFor: at, Repair: repair})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskStockReconcile, body, asynq.Queue(QueueDefault)), nil
}

// stockLedger reads and repairs the product stock counters against the
// batch ledger.
type stockLedger interface {
	FindDrift(ctx context.Context) ([]stockDrift, error)
	Repair(ctx context.Context) error
}

// StockReconciler compares each product's stock counter with the sum of its
// active batch remainders. The counter can legitimately differ from the
// ledger sum: sales rung without a batch reference move the counter only.
// The default run therefore just reports; Repair overwrites the counter with
// the ledger sum and is reserved for operator-requested runs after batchless
// movement has been ruled out.
type StockReconciler struct {
	ledger stockLedger
	logger *slog.Logger
}

func NewStockReconciler(db *pgxpool.Pool, logger *slog.Logger) *StockReconciler {
	return &StockReconciler{ledger: &pgStockLedger{db: db}, logger: logger}
}

type stockDrift struct {
	ProductID int64
	Counter   float64
	Ledger    float64
}

// Handle processes TaskStockReconcile tasks.
func (r *StockReconciler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload StockReconcilePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	drifts, err := r.ledger.FindDrift(ctx)
	if err != nil {
		return err
	}
	for _, d := range drifts {
		r.logger.Warn("stock counter differs from batch ledger",
			slog.Int64("product_id", d.ProductID),
			slog.Float64("counter", d.Counter),
			slog.Float64("ledger", d.Ledger))
	}
	if payload.Repair && len(drifts) > 0 {
		if err := r.ledger.Repair(ctx); err != nil {
			return err
		}
		r.logger.Info("stock counters repaired", slog.Int("count", len(drifts)))
	}
	return nil
}

type pgStockLedger struct {
	db *pgxpool.Pool
}

func (l *pgStockLedger) FindDrift(ctx context.Context) ([]stockDrift, error) {
	rows, err := l.db.Query(ctx, `SELECT p.id, p.stock_qty, COALESCE(b.remaining, 0)
		FROM products p
		LEFT JOIN (
			SELECT product_id, SUM(remaining) AS remaining
			FROM product_batches
			WHERE is_active
			GROUP BY product_id
		) b ON b.product_id = p.id
		WHERE p.stock_qty <> COALESCE(b.remaining, 0)`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stockDrift
	for rows.Next() {
		var d stockDrift
		if err := rows.Scan(&d.ProductID, &d.Counter, &d.Ledger); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (l *pgStockLedger) Repair(ctx context.Context) error {
	_, err := l.db.Exec(ctx, `UPDATE products p
		SET stock_qty = COALESCE(b.remaining, 0), updated_at = NOW()
		FROM (
			SELECT product_id, SUM(remaining) AS remaining
			FROM product_batches
			WHERE is_active
			GROUP BY product_id
		) b
		WHERE b.product_id = p.id AND p.stock_qty <> b.remaining`)
	if err != nil {
		return err
	}
	_, err = l.db.Exec(ctx, `UPDATE products p
		SET stock_qty = 0, updated_at = NOW()
		WHERE p.stock_qty <> 0 AND NOT EXISTS (
			SELECT 1 FROM product_batches b
			WHERE b.product_id = p.id AND b.is_active
		)`)
	return err
}
