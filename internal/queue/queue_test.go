package queue

import (
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/pdfmate/internal/config"
	"github.com/nikhilbhutani/pdfmate/internal/ingestion"
)

func TestFileIngestTaskRoundTrip(t *testing.T) {
	task, err := NewFileIngestTask(ingestion.Job{FileID: "f1", OwnerID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, TypeFileIngest, task.Type())
	assert.JSONEq(t, `{"file_id":"f1","owner_id":"u1"}`, string(task.Payload()))

	job, err := ParseFileIngest(task)
	require.NoError(t, err)
	assert.Equal(t, ingestion.Job{FileID: "f1", OwnerID: "u1"}, job)
}

func TestParseFileIngestRejectsBadPayload(t *testing.T) {
	_, err := ParseFileIngest(asynq.NewTask(TypeFileIngest, []byte("{")))
	assert.Error(t, err)
	_, err = ParseFileIngest(asynq.NewTask(TypeFileIngest, []byte(`{"owner_id":"u1"}`)))
	assert.Error(t, err)
}

func TestRedisOpt(t *testing.T) {
	opt := RedisOpt(config.RedisConfig{Addr: "redis:6379", Password: "pw", DB: 2})
	assert.Equal(t, asynq.RedisClientOpt{Addr: "redis:6379", Password: "pw", DB: 2}, opt)
}
