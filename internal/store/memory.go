package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/models"
)

// memory is a process-local backend used by tests and by the API when no
// DATABASE_URL is configured.
type memory struct {
	mu       sync.Mutex
	now      func() time.Time
	users    map[string]*models.User
	files    map[string]*models.File
	messages map[string]*models.Message
}

func NewMemory() *Store {
	return NewMemoryWithClock(func() time.Time { return time.Now().UTC() })
}

// NewMemoryWithClock stamps created_at from now, so tests can place files
// in a given month.
func NewMemoryWithClock(now func() time.Time) *Store {
	m := &memory{
		now:      now,
		users:    map[string]*models.User{},
		files:    map[string]*models.File{},
		messages: map[string]*models.Message{},
	}
	return &Store{
		Users:    (*memUsers)(m),
		Files:    (*memFiles)(m),
		Messages: (*memMessages)(m),
	}
}

type memUsers memory

func (r *memUsers) Get(_ context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "user %s not found", id)
	}
	cp := *u
	return &cp, nil
}

func (r *memUsers) Ensure(_ context.Context, id, email string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; ok {
		return false, nil
	}
	r.users[id] = &models.User{ID: id, Email: email}
	return true, nil
}

func (r *memUsers) SetSubscription(_ context.Context, userID string, sub models.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperr.New(apperr.NotFound, "user %s not found", userID)
	}
	end := sub.CurrentPeriodEnd
	u.StripeCustomerID = &sub.CustomerID
	u.StripeSubscriptionID = &sub.SubscriptionID
	u.StripePriceID = &sub.PriceID
	u.StripeCurrentPeriodEnd = &end
	return nil
}

func (r *memUsers) RenewSubscription(_ context.Context, subscriptionID, priceID string, periodEnd time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.StripeSubscriptionID != nil && *u.StripeSubscriptionID == subscriptionID {
			u.StripePriceID = &priceID
			u.StripeCurrentPeriodEnd = &periodEnd
			return nil
		}
	}
	return apperr.New(apperr.NotFound, "subscription %s not found", subscriptionID)
}

type memFiles memory

func (r *memFiles) Create(_ context.Context, f *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.files {
		if existing.Key == f.Key {
			return apperr.New(apperr.Conflict, "file with key %s already exists", f.Key)
		}
	}
	now := r.now()
	f.UploadStatus = models.StatusProcessing
	f.CreatedAt, f.UpdatedAt = now, now
	cp := *f
	r.files[f.ID] = &cp
	return nil
}

func (r *memFiles) Get(_ context.Context, id string) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok {
		return nil, apperr.New(apperr.NotFound, "file %s not found", id)
	}
	cp := *f
	return &cp, nil
}

func (r *memFiles) GetByKey(_ context.Context, key string) (*models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.files {
		if f.Key == key {
			cp := *f
			return &cp, nil
		}
	}
	return nil, apperr.New(apperr.NotFound, "file %s not found", key)
}

func (r *memFiles) ListByUser(_ context.Context, userID string) ([]models.File, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.File{}
	for _, f := range r.files {
		if f.OwnedBy(userID) {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memFiles) CountCreatedBetween(_ context.Context, userID string, from, to time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, f := range r.files {
		if f.OwnedBy(userID) && !f.CreatedAt.Before(from) && f.CreatedAt.Before(to) {
			n++
		}
	}
	return n, nil
}

func (r *memFiles) SetStatus(_ context.Context, id string, status models.UploadStatus) (bool, error) {
	if !status.Terminal() {
		return false, apperr.New(apperr.Invalid, "status %s is not terminal", status)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[id]
	if !ok || f.UploadStatus != models.StatusProcessing {
		return false, nil
	}
	f.UploadStatus = status
	f.UpdatedAt = r.now()
	return true, nil
}

func (r *memFiles) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.files[id]; !ok {
		return apperr.New(apperr.NotFound, "file %s not found", id)
	}
	for mid, m := range r.messages {
		if m.FileID != nil && *m.FileID == id {
			delete(r.messages, mid)
		}
	}
	delete(r.files, id)
	return nil
}

type memMessages memory

func (r *memMessages) Create(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	m.CreatedAt, m.UpdatedAt = now, now
	cp := *m
	r.messages[m.ID] = &cp
	return nil
}

// newestFirst returns the file's messages ordered by (created_at, id) desc.
func (r *memMessages) newestFirst(fileID string) []models.Message {
	var out []models.Message
	for _, m := range r.messages {
		if m.FileID != nil && *m.FileID == fileID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (r *memMessages) Page(_ context.Context, fileID string, limit int, cursor string) (*models.MessagePage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.newestFirst(fileID)
	if cursor != "" {
		start := len(all)
		for i, m := range all {
			if m.ID == cursor {
				start = i
				break
			}
		}
		all = all[start:]
	}
	if len(all) > limit+1 {
		all = all[:limit+1]
	}
	return splitPage(all, limit), nil
}

func (r *memMessages) Recent(_ context.Context, fileID string, n int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := r.newestFirst(fileID)
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (r *memMessages) Count(_ context.Context, fileID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, m := range r.messages {
		if m.FileID != nil && *m.FileID == fileID {
			n++
		}
	}
	return n, nil
}
