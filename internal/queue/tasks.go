package queue

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/pdfmate/internal/ingestion"
)

const TypeFileIngest = "file:ingest"

type FileIngestPayload struct {
	FileID  string `json:"file_id"`
	OwnerID string `json:"owner_id"`
}

func NewFileIngestTask(job ingestion.Job) (*asynq.Task, error) {
	data, err := json.Marshal(FileIngestPayload{FileID: job.FileID, OwnerID: job.OwnerID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeFileIngest, data), nil
}

// ParseFileIngest decodes a file:ingest task back into a job.
func ParseFileIngest(t *asynq.Task) (ingestion.Job, error) {
	var p FileIngestPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return ingestion.Job{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	if p.FileID == "" {
		return ingestion.Job{}, fmt.Errorf("payload has no file_id")
	}
	return ingestion.Job{FileID: p.FileID, OwnerID: p.OwnerID}, nil
}
