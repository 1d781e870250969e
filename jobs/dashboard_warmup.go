package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// DashboardWarmupPayload carries scheduling metadata.
type DashboardWarmupPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewDashboardWarmupTask constructs a warmup task.
func NewDashboardWarmupTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(DashboardWarmupPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskDashboardWarmup, body, asynq.Queue(QueueDefault)), nil
}

// RefreshFunc recomputes and caches the dashboard snapshot.
type RefreshFunc func(ctx context.Context) error

// DashboardWarmup handles TaskDashboardWarmup by forcing a rebuild of the
// cached snapshot so the first request after opening hits a warm cache.
type DashboardWarmup struct {
	refresh RefreshFunc
	logger  *slog.Logger
}

func NewDashboardWarmup(refresh RefreshFunc, logger *slog.Logger) *DashboardWarmup {
	return &DashboardWarmup{refresh: refresh, logger: logger}
}

func (d *DashboardWarmup) Handle(ctx context.Context, t *asynq.Task) error {
	var payload DashboardWarmupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if err := d.refresh(ctx); err != nil {
		return err
	}
	d.logger.Info("dashboard cache warmed")
	return nil
}
