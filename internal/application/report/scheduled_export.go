package report

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kpidash/backend/internal/domain/report"
	"github.com/kpidash/backend/internal/infrastructure/export"
	"github.com/kpidash/backend/internal/infrastructure/scheduler"
)

// Publisher publishes a rendered report to export storage
type Publisher interface {
	Publish(ctx context.Context, q ReportQuery, kind report.Kind, format export.Format) (*PublishedExport, error)
}

// ScheduledExportExecutor runs scheduled export jobs through a Publisher
type ScheduledExportExecutor struct {
	publisher Publisher
	logger    *zap.Logger
}

// NewScheduledExportExecutor creates a job executor for the export scheduler
func NewScheduledExportExecutor(publisher Publisher, log *zap.Logger) *ScheduledExportExecutor {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScheduledExportExecutor{publisher: publisher, logger: log}
}

// Execute publishes the job's report over the job's range for every store
func (e *ScheduledExportExecutor) Execute(ctx context.Context, job *scheduler.Job) error {
	published, err := e.publisher.Publish(ctx, ReportQuery{Range: job.Range}, job.Report, job.Format)
	if err != nil {
		return fmt.Errorf("scheduled export %s: %w", job.Report, err)
	}
	e.logger.Info("Scheduled export published",
		zap.String("job_id", job.ID.String()),
		zap.String("key", published.Key),
		zap.String("url", published.URL),
		zap.Int("bytes", published.Size),
	)
	return nil
}

var _ scheduler.JobExecutor = (*ScheduledExportExecutor)(nil)
