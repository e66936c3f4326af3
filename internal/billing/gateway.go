package billing

import (
	"context"
	"time"
)

// Gateway is the payment provider surface billing needs.
type Gateway interface {
	Subscription(ctx context.Context, id string) (*SubscriptionInfo, error)
	CheckoutURL(ctx context.Context, req CheckoutRequest) (string, error)
	PortalURL(ctx context.Context, customerID, returnURL string) (string, error)
	// ParseEvent verifies the webhook signature and decodes the event.
	ParseEvent(payload []byte, signature string) (*Event, error)
}

type SubscriptionInfo struct {
	ID                string
	CustomerID        string
	PriceID           string
	CurrentPeriodEnd  time.Time
	CancelAtPeriodEnd bool
}

type CheckoutRequest struct {
	UserID     string
	PriceID    string
	SuccessURL string
	CancelURL  string
}

const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventInvoicePaid       = "invoice.payment_succeeded"
)

// Event is a verified webhook event reduced to the fields billing reads.
type Event struct {
	ID             string
	Type           string
	UserID         string // checkout metadata "userId"
	SubscriptionID string
}
