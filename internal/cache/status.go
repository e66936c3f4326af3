package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/pdfmate/internal/models"
)

// StatusEvent is published on StatusChannel(fileID) when ingestion of the
// file reaches a terminal status.
type StatusEvent struct {
	FileID string              `json:"fileId"`
	Status models.UploadStatus `json:"status"`
	At     time.Time           `json:"at"`
}

func StatusChannel(fileID string) string { return "file-status:" + fileID }

// StatusPublisher pushes terminal ingestion statuses to Redis subscribers.
// Clients still poll the record store; this is a push hint on top.
type StatusPublisher struct {
	client redis.UniversalClient
	now    func() time.Time
}

func NewStatusPublisher(client redis.UniversalClient) *StatusPublisher {
	return &StatusPublisher{client: client, now: time.Now}
}

// OnTerminal never fails ingestion: publish errors are only logged.
func (p *StatusPublisher) OnTerminal(ctx context.Context, fileID string, status models.UploadStatus) {
	data, err := json.Marshal(StatusEvent{FileID: fileID, Status: status, At: p.now().UTC()})
	if err != nil {
		return
	}
	if err := p.client.Publish(ctx, StatusChannel(fileID), data).Err(); err != nil {
		slog.Warn("publish file status", "file_id", fileID, "status", status, "error", err)
	}
}
