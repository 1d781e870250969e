// Package jobs contains background task definitions and the Asynq worker.
package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskStockReconcile recomputes product stock counters from the batch ledger.
	TaskStockReconcile = "stock:reconcile"
	// TaskDashboardWarmup rebuilds the cached dashboard snapshot.
	TaskDashboardWarmup = "dashboard:warmup"
)
