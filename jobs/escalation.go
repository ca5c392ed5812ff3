package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// TaskWorkOrderEscalation bumps work orders that sat untouched in an
	// open status for too long.
	TaskWorkOrderEscalation = "work_orders:escalation_scan"

	staleAfter = 48 * time.Hour
)

// WorkOrderEscalationPayload carries scheduling metadata.
type WorkOrderEscalationPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewWorkOrderEscalationTask constructs the nightly escalation scan task.
func NewWorkOrderEscalationTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(WorkOrderEscalationPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWorkOrderEscalation, body, asynq.Queue(QueueDefault)), nil
}

// EscalationTaskHandler raises the priority of stale open work orders.
type EscalationTaskHandler struct {
	logger  *slog.Logger
	pool    *pgxpool.Pool
	metrics JobMetrics
}

// NewEscalationTaskHandler constructs the handler. metrics may be nil.
func NewEscalationTaskHandler(logger *slog.Logger, pool *pgxpool.Pool, metrics JobMetrics) *EscalationTaskHandler {
	return &EscalationTaskHandler{logger: logger, pool: pool, metrics: metrics}
}

// Handle processes TaskWorkOrderEscalation tasks.
func (h *EscalationTaskHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var payload WorkOrderEscalationPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	cutoff := time.Now().UTC().Add(-staleAfter)
	tag, err := h.pool.Exec(ctx,
		`UPDATE work_orders
		 SET priority = 'urgent', updated_at = NOW()
		 WHERE status IN ('pending', 'in_progress')
		   AND priority <> 'urgent'
		   AND updated_at < $1`, cutoff)
	if err != nil {
		if h.metrics != nil {
			h.metrics.JobProcessed(TaskWorkOrderEscalation, "error")
		}
		return err
	}

	if h.metrics != nil {
		h.metrics.JobProcessed(TaskWorkOrderEscalation, "ok")
	}
	h.logger.Info("work order escalation scan",
		slog.Int64("escalated", tag.RowsAffected()),
		slog.Time("cutoff", cutoff))
	return nil
}
