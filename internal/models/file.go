package models

import "time"

type UploadStatus string

const (
	StatusPending    UploadStatus = "PENDING" // lookup answer only, never stored
	StatusProcessing UploadStatus = "PROCESSING"
	StatusSuccess    UploadStatus = "SUCCESS"
	StatusFailed     UploadStatus = "FAILED"
)

// Terminal reports whether no further transition can happen from s.
func (s UploadStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

type File struct {
	ID           string       `json:"id" db:"id"`
	UserID       *string      `json:"userId,omitempty" db:"user_id"`
	Key          string       `json:"key" db:"key"`
	URL          string       `json:"url" db:"url"`
	Name         string       `json:"name" db:"name"`
	UploadStatus UploadStatus `json:"uploadStatus" db:"upload_status"`
	CreatedAt    time.Time    `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time    `json:"updatedAt" db:"updated_at"`
}

// OwnedBy reports whether userID owns f. Orphaned files have no owner.
func (f *File) OwnedBy(userID string) bool {
	return f.UserID != nil && *f.UserID == userID
}
