package models

import "time"

type Message struct {
	ID            string    `json:"id" db:"id"`
	FileID        *string   `json:"fileId,omitempty" db:"file_id"`
	UserID        *string   `json:"userId,omitempty" db:"user_id"`
	IsUserMessage bool      `json:"isUserMessage" db:"is_user_message"`
	Text          string    `json:"text" db:"text"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// MessagePage is one newest-first page; NextCursor is empty on the last page.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"nextCursor,omitempty"`
}
