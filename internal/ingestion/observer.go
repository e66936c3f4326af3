package ingestion

import (
	"context"
	"log/slog"

	"github.com/nikhilbhutani/pdfmate/internal/models"
)

// Observer is told about every terminal transition Process makes.
type Observer interface {
	OnTerminal(ctx context.Context, fileID string, status models.UploadStatus)
}

type LogObserver struct{}

func (LogObserver) OnTerminal(_ context.Context, fileID string, status models.UploadStatus) {
	slog.Info("file reached terminal status", "file_id", fileID, "status", status)
}

// Observers fans out to each observer in order.
type Observers []Observer

func (o Observers) OnTerminal(ctx context.Context, fileID string, status models.UploadStatus) {
	for _, obs := range o {
		obs.OnTerminal(ctx, fileID, status)
	}
}
