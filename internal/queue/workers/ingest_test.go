package workers

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/pdfmate/internal/ingestion"
	"github.com/nikhilbhutani/pdfmate/internal/queue"
)

type recorder struct{ jobs []ingestion.Job }

func (r *recorder) Process(_ context.Context, job ingestion.Job) error {
	r.jobs = append(r.jobs, job)
	return nil
}

func TestIngestWorkerProcessesJob(t *testing.T) {
	rec := &recorder{}
	task, err := queue.NewFileIngestTask(ingestion.Job{FileID: "f1", OwnerID: "u1"})
	require.NoError(t, err)

	require.NoError(t, NewIngestWorker(rec).ProcessTask(context.Background(), task))
	assert.Equal(t, []ingestion.Job{{FileID: "f1", OwnerID: "u1"}}, rec.jobs)
}

func TestIngestWorkerSkipsMalformedPayload(t *testing.T) {
	rec := &recorder{}
	err := NewIngestWorker(rec).ProcessTask(context.Background(), asynq.NewTask(queue.TypeFileIngest, []byte("nope")))

	assert.True(t, errors.Is(err, asynq.SkipRetry))
	assert.Empty(t, rec.jobs)
}
