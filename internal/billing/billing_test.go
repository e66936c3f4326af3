package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/models"
	"github.com/nikhilbhutani/pdfmate/internal/store"
)

type fakeGateway struct {
	subs         map[string]*SubscriptionInfo
	subCalls     int
	event        *Event
	parseErr     error
	checkoutReq  *CheckoutRequest
	portalCustID string
}

func (g *fakeGateway) Subscription(_ context.Context, id string) (*SubscriptionInfo, error) {
	g.subCalls++
	s, ok := g.subs[id]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return s, nil
}

func (g *fakeGateway) CheckoutURL(_ context.Context, req CheckoutRequest) (string, error) {
	g.checkoutReq = &req
	return "https://checkout/" + req.PriceID, nil
}

func (g *fakeGateway) PortalURL(_ context.Context, customerID, _ string) (string, error) {
	g.portalCustID = customerID
	return "https://portal/" + customerID, nil
}

func (g *fakeGateway) ParseEvent([]byte, string) (*Event, error) {
	return g.event, g.parseErr
}

type mapCache struct {
	data map[string]bool
}

func (c *mapCache) Get(_ context.Context, key string, dest any) error {
	v, ok := c.data[key]
	if !ok {
		return errors.New("miss")
	}
	*(dest.(*bool)) = v
	return nil
}

func (c *mapCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	c.data[key] = value.(bool)
	return nil
}

var now = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func subscribe(t *testing.T, s *store.Store, userID, priceID string, periodEnd time.Time) {
	t.Helper()
	ctx := context.Background()
	_, err := s.Users.Ensure(ctx, userID, userID+"@example.com")
	require.NoError(t, err)
	require.NoError(t, s.Users.SetSubscription(ctx, userID, models.Subscription{
		CustomerID: "cus_" + userID, SubscriptionID: "sub_" + userID, PriceID: priceID, CurrentPeriodEnd: periodEnd,
	}))
}

func newResolver(s *store.Store, gw Gateway, c Cache) *Resolver {
	r := NewResolver(s.Users, gw, c, 5*time.Minute)
	r.now = func() time.Time { return now }
	return r
}

func TestPlansTable(t *testing.T) {
	free, pro := Free(), Pro()
	assert.Equal(t, 10, free.Quota)
	assert.Equal(t, 5, free.PagesPerPDF)
	assert.Equal(t, 50, pro.Quota)
	assert.Equal(t, 25, pro.PagesPerPDF)
	assert.Equal(t, int64(16<<20), pro.MaxFileSizeBytes())
	assert.Equal(t, "price_1NxsCzSHni2VRAceTuIrNyD0", pro.PriceID(true))

	p, ok := PlanByPriceID("price_1NzKGISHni2VRAceT7SdIW7n")
	require.True(t, ok)
	assert.Equal(t, "Pro", p.Name)
	_, ok = PlanByPriceID("")
	assert.False(t, ok)
	_, ok = PlanByName("Enterprise")
	assert.False(t, ok)
}

func TestResolveUnknownUserIsFree(t *testing.T) {
	sp, err := newResolver(store.NewMemory(), nil, nil).Resolve(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Equal(t, "Free", sp.Name)
	assert.False(t, sp.IsSubscribed)
}

func TestResolveActiveSubscriptionIsPro(t *testing.T) {
	s := store.NewMemory()
	subscribe(t, s, "u1", Pro().PriceIDs.Test, now.Add(10*24*time.Hour))
	gw := &fakeGateway{subs: map[string]*SubscriptionInfo{"sub_u1": {ID: "sub_u1", CancelAtPeriodEnd: true}}}
	cache := &mapCache{data: map[string]bool{}}
	r := newResolver(s, gw, cache)

	sp, err := r.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "Pro", sp.Name)
	assert.True(t, sp.IsSubscribed)
	assert.True(t, sp.IsCanceled)

	_, err = r.Resolve(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, gw.subCalls, "cancel flag served from cache")
}

func TestResolveGracePeriod(t *testing.T) {
	s := store.NewMemory()
	subscribe(t, s, "late", Pro().PriceIDs.Test, now.Add(-12*time.Hour))
	subscribe(t, s, "lapsed", Pro().PriceIDs.Test, now.Add(-25*time.Hour))
	r := newResolver(s, nil, nil)

	sp, err := r.Resolve(context.Background(), "late")
	require.NoError(t, err)
	assert.True(t, sp.IsSubscribed)

	sp, err = r.Resolve(context.Background(), "lapsed")
	require.NoError(t, err)
	assert.False(t, sp.IsSubscribed)
	assert.Equal(t, "Free", sp.Name)
}

func TestResolveProviderFailureIsNotCanceled(t *testing.T) {
	s := store.NewMemory()
	subscribe(t, s, "u1", Pro().PriceIDs.Test, now.Add(time.Hour))

	sp, err := newResolver(s, &fakeGateway{}, nil).Resolve(context.Background(), "u1")
	require.NoError(t, err)
	assert.True(t, sp.IsSubscribed)
	assert.False(t, sp.IsCanceled)
}

func TestCreateSessionCheckoutForFreeUser(t *testing.T) {
	s := store.NewMemory()
	_, err := s.Users.Ensure(context.Background(), "u1", "u1@example.com")
	require.NoError(t, err)
	gw := &fakeGateway{}
	svc := NewService(newResolver(s, gw, nil), gw, s.Users, "https://app", false)

	url, err := svc.CreateSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://checkout/"+Pro().PriceIDs.Test, url)
	assert.Equal(t, "u1", gw.checkoutReq.UserID)
	assert.Equal(t, "https://app/dashboard/billing", gw.checkoutReq.SuccessURL)
}

func TestCreateSessionPortalForSubscriber(t *testing.T) {
	s := store.NewMemory()
	subscribe(t, s, "u1", Pro().PriceIDs.Test, now.Add(time.Hour))
	gw := &fakeGateway{subs: map[string]*SubscriptionInfo{"sub_u1": {ID: "sub_u1"}}}
	svc := NewService(newResolver(s, gw, nil), gw, s.Users, "https://app", false)

	url, err := svc.CreateSession(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://portal/cus_u1", url)
	assert.Nil(t, gw.checkoutReq)
}

func TestCreateSessionErrors(t *testing.T) {
	s := store.NewMemory()
	svc := NewService(newResolver(s, nil, nil), nil, s.Users, "https://app", false)
	_, err := svc.CreateSession(context.Background(), "u1")
	assert.ErrorIs(t, err, apperr.ErrExternal)

	gw := &fakeGateway{}
	svc = NewService(newResolver(s, gw, nil), gw, s.Users, "https://app", false)
	_, err = svc.CreateSession(context.Background(), "nobody")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestWebhookCheckoutThenRenewal(t *testing.T) {
	s := store.NewMemory()
	ctx := context.Background()
	_, err := s.Users.Ensure(ctx, "u1", "u1@example.com")
	require.NoError(t, err)

	end := now.Add(30 * 24 * time.Hour)
	gw := &fakeGateway{subs: map[string]*SubscriptionInfo{
		"sub_1": {ID: "sub_1", CustomerID: "cus_1", PriceID: Pro().PriceIDs.Test, CurrentPeriodEnd: end},
	}}
	r := newResolver(s, gw, nil)
	svc := NewService(r, gw, s.Users, "https://app", false)

	gw.event = &Event{ID: "evt_1", Type: EventCheckoutCompleted, UserID: "u1", SubscriptionID: "sub_1"}
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))

	sp, err := svc.Plan(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Pro", sp.Name)
	assert.Equal(t, "cus_1", sp.StripeCustomerID)

	renewed := end.Add(30 * 24 * time.Hour)
	gw.subs["sub_1"].CurrentPeriodEnd = renewed
	gw.event = &Event{ID: "evt_2", Type: EventInvoicePaid, SubscriptionID: "sub_1"}
	require.NoError(t, svc.HandleWebhook(ctx, []byte("{}"), "sig"))

	u, err := s.Users.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, renewed, *u.StripeCurrentPeriodEnd)
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	s := store.NewMemory()
	gw := &fakeGateway{parseErr: errors.New("signature mismatch")}
	svc := NewService(newResolver(s, gw, nil), gw, s.Users, "https://app", false)

	err := svc.HandleWebhook(context.Background(), []byte("{}"), "bad")
	assert.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestWebhookIgnoresOtherEvents(t *testing.T) {
	s := store.NewMemory()
	gw := &fakeGateway{event: &Event{Type: "customer.created"}}
	svc := NewService(newResolver(s, gw, nil), gw, s.Users, "https://app", false)

	require.NoError(t, svc.HandleWebhook(context.Background(), []byte("{}"), "sig"))
	assert.Zero(t, gw.subCalls)
}
