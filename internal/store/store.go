// Package store holds the relational records: users, files, messages.
package store

import (
	"context"
	"time"

	"github.com/nikhilbhutani/pdfmate/internal/models"
)

type Users interface {
	Get(ctx context.Context, id string) (*models.User, error)
	// Ensure creates the user when absent and reports whether it did.
	Ensure(ctx context.Context, id, email string) (bool, error)
	SetSubscription(ctx context.Context, userID string, sub models.Subscription) error
	// RenewSubscription updates price and period for the user holding subscriptionID.
	RenewSubscription(ctx context.Context, subscriptionID, priceID string, periodEnd time.Time) error
}

type Files interface {
	// Create inserts f in PROCESSING. A duplicate key yields apperr.Conflict.
	Create(ctx context.Context, f *models.File) error
	Get(ctx context.Context, id string) (*models.File, error)
	GetByKey(ctx context.Context, key string) (*models.File, error)
	ListByUser(ctx context.Context, userID string) ([]models.File, error)
	CountCreatedBetween(ctx context.Context, userID string, from, to time.Time) (int, error)
	// SetStatus moves a PROCESSING file to a terminal status. It reports
	// false when the file is gone or already terminal.
	SetStatus(ctx context.Context, id string, status models.UploadStatus) (bool, error)
	// Delete removes the file and all of its messages.
	Delete(ctx context.Context, id string) error
}

type Messages interface {
	Create(ctx context.Context, m *models.Message) error
	// Page returns up to limit messages newest first, starting at cursor
	// (inclusive) when set.
	Page(ctx context.Context, fileID string, limit int, cursor string) (*models.MessagePage, error)
	Recent(ctx context.Context, fileID string, n int) ([]models.Message, error)
	Count(ctx context.Context, fileID string) (int, error)
}

// Store bundles the three repositories over one backend.
type Store struct {
	Users    Users
	Files    Files
	Messages Messages
}

// splitPage trims a limit+1 result into a page and the next cursor.
func splitPage(rows []models.Message, limit int) *models.MessagePage {
	page := &models.MessagePage{Messages: rows}
	if len(rows) > limit {
		page.NextCursor = rows[limit].ID
		page.Messages = rows[:limit]
	}
	if page.Messages == nil {
		page.Messages = []models.Message{}
	}
	return page
}
