package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/fieldserve/fieldserve/internal/shared"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRecord persists one audit entry produced by a mutation on
	// the generic entity surface.
	TaskAuditRecord = "audit:record"
)

// NewAuditRecordTask constructs an Asynq task carrying one audit entry.
func NewAuditRecordTask(log shared.AuditLog) (*asynq.Task, error) {
	data, err := json.Marshal(log)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data, asynq.Queue(QueueDefault)), nil
}

// JobMetrics counts processed jobs, typically backed by Prometheus.
type JobMetrics interface {
	JobProcessed(task, outcome string)
}

// AuditWriter persists audit entries, in production shared.AuditLogger.
type AuditWriter interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// AuditTaskHandler writes queued audit entries into postgres.
type AuditTaskHandler struct {
	logger  *slog.Logger
	writer  AuditWriter
	metrics JobMetrics
}

// NewAuditTaskHandler constructs the handler. metrics may be nil.
func NewAuditTaskHandler(logger *slog.Logger, writer AuditWriter, metrics JobMetrics) *AuditTaskHandler {
	return &AuditTaskHandler{logger: logger, writer: writer, metrics: metrics}
}

// Handle processes TaskAuditRecord tasks.
func (h *AuditTaskHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var log shared.AuditLog
	if err := json.Unmarshal(t.Payload(), &log); err != nil {
		h.count("malformed")
		return asynq.SkipRetry
	}
	if err := h.writer.Record(ctx, log); err != nil {
		h.logger.Warn("audit record", slog.Any("error", err))
		h.count("error")
		return err
	}
	h.count("ok")
	return nil
}

func (h *AuditTaskHandler) count(outcome string) {
	if h.metrics != nil {
		h.metrics.JobProcessed(TaskAuditRecord, outcome)
	}
}
