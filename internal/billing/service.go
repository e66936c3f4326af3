package billing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/pdfmate/internal/apperr"
	"github.com/nikhilbhutani/pdfmate/internal/models"
	"github.com/nikhilbhutani/pdfmate/internal/store"
)

type Service struct {
	resolver   *Resolver
	gateway    Gateway
	users      store.Users
	appURL     string
	production bool
}

func NewService(resolver *Resolver, gateway Gateway, users store.Users, appURL string, production bool) *Service {
	return &Service{
		resolver:   resolver,
		gateway:    gateway,
		users:      users,
		appURL:     appURL,
		production: production,
	}
}

func (s *Service) Plan(ctx context.Context, userID string) (*SubscriptionPlan, error) {
	return s.resolver.Resolve(ctx, userID)
}

// CreateSession returns the billing portal for active subscribers with a
// customer record, and a Pro checkout for everyone else.
func (s *Service) CreateSession(ctx context.Context, userID string) (string, error) {
	if s.gateway == nil {
		return "", &apperr.Error{Kind: apperr.External, System: "billing", Msg: "billing is not configured"}
	}
	if _, err := s.users.Get(ctx, userID); err != nil {
		return "", apperr.New(apperr.Unauthorized, "unknown user")
	}

	plan, err := s.resolver.Resolve(ctx, userID)
	if err != nil {
		return "", err
	}

	billingURL := s.appURL + "/dashboard/billing"
	if plan.IsSubscribed && plan.StripeCustomerID != "" {
		url, err := s.gateway.PortalURL(ctx, plan.StripeCustomerID, billingURL)
		if err != nil {
			return "", &apperr.Error{Kind: apperr.External, System: "billing", Msg: "create portal session", Err: err}
		}
		return url, nil
	}

	url, err := s.gateway.CheckoutURL(ctx, CheckoutRequest{
		UserID:     userID,
		PriceID:    Pro().PriceID(s.production),
		SuccessURL: billingURL,
		CancelURL:  billingURL,
	})
	if err != nil {
		return "", &apperr.Error{Kind: apperr.External, System: "billing", Msg: "create checkout session", Err: err}
	}
	return url, nil
}

// HandleWebhook applies a verified provider event to the user's billing
// fields. Unhandled event types are ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.gateway == nil {
		return &apperr.Error{Kind: apperr.External, System: "billing", Msg: "billing is not configured"}
	}
	evt, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		return &apperr.Error{Kind: apperr.Invalid, Msg: "invalid webhook", Err: err}
	}

	switch evt.Type {
	case EventCheckoutCompleted:
		if evt.UserID == "" || evt.SubscriptionID == "" {
			return apperr.New(apperr.Invalid, "checkout event %s lacks user or subscription", evt.ID)
		}
		sub, err := s.gateway.Subscription(ctx, evt.SubscriptionID)
		if err != nil {
			return fmt.Errorf("load subscription: %w", err)
		}
		err = s.users.SetSubscription(ctx, evt.UserID, models.Subscription{
			CustomerID:       sub.CustomerID,
			SubscriptionID:   sub.ID,
			PriceID:          sub.PriceID,
			CurrentPeriodEnd: sub.CurrentPeriodEnd,
		})
		if err != nil {
			return fmt.Errorf("store subscription: %w", err)
		}
		slog.Info("subscription started", "user_id", evt.UserID, "subscription_id", sub.ID)

	case EventInvoicePaid:
		if evt.SubscriptionID == "" {
			return nil
		}
		sub, err := s.gateway.Subscription(ctx, evt.SubscriptionID)
		if err != nil {
			return fmt.Errorf("load subscription: %w", err)
		}
		if err := s.users.RenewSubscription(ctx, sub.ID, sub.PriceID, sub.CurrentPeriodEnd); err != nil {
			return fmt.Errorf("renew subscription: %w", err)
		}
		slog.Info("subscription renewed", "subscription_id", sub.ID)

	default:
		slog.Debug("ignoring webhook event", "type", evt.Type)
	}
	return nil
}
