package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/nikhilbhutani/pdfmate/internal/billing"
	"github.com/nikhilbhutani/pdfmate/internal/store"
)

type PlanResolver interface {
	Resolve(ctx context.Context, userID string) (*billing.SubscriptionPlan, error)
}

type Status struct {
	Plan        string `json:"plan"`
	Quota       int    `json:"quota"`
	Used        int    `json:"used"`
	IsCompleted bool   `json:"isQuotaCompleted"`
}

// Checker counts a caller's uploads in the current calendar month (UTC).
type Checker struct {
	files    store.Files
	resolver PlanResolver
	now      func() time.Time
}

func NewChecker(files store.Files, resolver PlanResolver) *Checker {
	return &Checker{files: files, resolver: resolver, now: time.Now}
}

// WithClock replaces the wall clock (tests, CLI reports for a past month).
func (c *Checker) WithClock(now func() time.Time) *Checker {
	c.now = now
	return c
}

// MonthWindow returns [first of month, first of next month) in UTC.
func MonthWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

func (c *Checker) Check(ctx context.Context, userID string) (*Status, error) {
	plan, err := c.resolver.Resolve(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("check quota: %w", err)
	}

	from, to := MonthWindow(c.now())
	used, err := c.files.CountCreatedBetween(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("check quota: %w", err)
	}

	return &Status{
		Plan:        plan.Name,
		Quota:       plan.Quota,
		Used:        used,
		IsCompleted: used >= plan.Quota,
	}, nil
}
