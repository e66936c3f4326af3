package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/store"
)

// gracePeriod keeps a subscription active for a day past its period end,
// covering late renewal webhooks.
const gracePeriod = 24 * time.Hour

// Cache stores the provider's cancel flag between lookups.
type Cache interface {
	Get(ctx context.Context, key string, dest any) error
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

type Resolver struct {
	users    store.Users
	gateway  Gateway
	cache    Cache
	cacheTTL time.Duration
	now      func() time.Time
}

// NewResolver builds a plan resolver. gateway and cache may be nil: without
// a gateway IsCanceled is always false.
func NewResolver(users store.Users, gateway Gateway, cache Cache, cacheTTL time.Duration) *Resolver {
	return &Resolver{
		users:    users,
		gateway:  gateway,
		cache:    cache,
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

func (r *Resolver) Resolve(ctx context.Context, userID string) (*SubscriptionPlan, error) {
	u, err := r.users.Get(ctx, userID)
	if errors.Is(err, apperr.ErrNotFound) {
		return &SubscriptionPlan{Plan: Free()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve plan: %w", err)
	}

	sp := &SubscriptionPlan{Plan: Free(), StripeCurrentPeriodEnd: u.StripeCurrentPeriodEnd}
	if u.StripeCustomerID != nil {
		sp.StripeCustomerID = *u.StripeCustomerID
	}
	if u.StripeSubscriptionID != nil {
		sp.StripeSubscriptionID = *u.StripeSubscriptionID
	}

	sp.IsSubscribed = u.StripePriceID != nil && *u.StripePriceID != "" &&
		u.StripeCurrentPeriodEnd != nil &&
		u.StripeCurrentPeriodEnd.Add(gracePeriod).After(r.now())
	if !sp.IsSubscribed {
		return sp, nil
	}

	if plan, ok := PlanByPriceID(*u.StripePriceID); ok {
		sp.Plan = plan
	}
	if sp.StripeSubscriptionID != "" {
		sp.IsCanceled = r.isCanceled(ctx, sp.StripeSubscriptionID)
	}
	return sp, nil
}

// isCanceled reads through the cache. Provider failures are logged and
// treated as not canceled; they never block plan resolution.
func (r *Resolver) isCanceled(ctx context.Context, subscriptionID string) bool {
	if r.gateway == nil {
		return false
	}
	key := "billing:canceled:" + subscriptionID
	if r.cache != nil {
		var canceled bool
		if err := r.cache.Get(ctx, key, &canceled); err == nil {
			return canceled
		}
	}

	sub, err := r.gateway.Subscription(ctx, subscriptionID)
	if err != nil {
		slog.Warn("subscription lookup failed", "subscription_id", subscriptionID, "error", err)
		return false
	}
	if r.cache != nil {
		if err := r.cache.Set(ctx, key, sub.CancelAtPeriodEnd, r.cacheTTL); err != nil {
			slog.Debug("cache cancel flag", "error", err)
		}
	}
	return sub.CancelAtPeriodEnd
}
