package workers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/pdfmate/internal/ingestion"
	"github.com/nikhilbhutani/pdfmate/internal/queue"
)

type Processor interface {
	Process(ctx context.Context, job ingestion.Job) error
}

type IngestWorker struct {
	processor Processor
}

func NewIngestWorker(p Processor) *IngestWorker {
	return &IngestWorker{processor: p}
}

// ProcessTask runs one file:ingest task. A malformed payload is skipped
// rather than retried.
func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	job, err := queue.ParseFileIngest(t)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	slog.Info("processing file", "file_id", job.FileID)
	return w.processor.Process(ctx, job)
}
