package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
)

// ObjectStore holds uploaded PDFs by storage key.
type ObjectStore interface {
	Fetch(ctx context.Context, key string) ([]byte, error)
	// Delete fails with apperr.NotFound when the key is absent.
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
	PresignUpload(ctx context.Context, key, contentType string) (string, error)
	Name() string
}

func keyPrefix(userID string) string { return "uploads/" + userID + "/" }

// NewKey returns a fresh storage key for an upload by userID.
func NewKey(userID, fileName string) string {
	ext := strings.ToLower(path.Ext(fileName))
	if ext == "" {
		ext = ".pdf"
	}
	d := time.Now().UTC()
	return fmt.Sprintf("%s%d/%02d/%s%s", keyPrefix(userID), d.Year(), d.Month(), uuid.NewString(), ext)
}

// OwnsKey reports whether key lies under the upload prefix NewKey uses for
// userID.
func OwnsKey(userID, key string) bool {
	if userID == "" || strings.Contains(key, "..") {
		return false
	}
	rest, ok := strings.CutPrefix(key, keyPrefix(userID))
	return ok && rest != ""
}

// readCapped reads r fully, failing once more than limit bytes arrive.
// A non-positive limit disables the cap.
func readCapped(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, apperr.New(apperr.Invalid, "object exceeds %d bytes", limit)
	}
	return data, nil
}

func notFound(key string) error {
	return apperr.New(apperr.NotFound, "object %s not found", key)
}
