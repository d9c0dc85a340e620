package subscription

import (
	"context"
	"fmt"

	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/messaging"
)

// Status mirrors the backend's subscription state for the UI.
type Status struct {
	Active bool   `json:"active"`
	Plan   string `json:"plan,omitempty"`
}

// CheckoutSession carries the Stripe client secret the embedded
// checkout widget mounts with.
type CheckoutSession struct {
	ClientSecret string `json:"client_secret"`
}

// PortalSession is the hosted billing-portal redirect target.
type PortalSession struct {
	URL string `json:"url"`
}

// Config is what the UI needs to bootstrap Stripe.js.
type Config struct {
	PublishableKey string `json:"publishable_key"`
}

// Service proxies the billing surface. The backend owns every Stripe
// secret; the gateway only hands the UI its publishable key and the
// session identifiers the backend mints.
type Service struct {
	api    *httpclient.Client
	cfg    Config
	logger logger.Logger
	events messaging.Publisher
}

func NewService(api *httpclient.Client, cfg Config, events messaging.Publisher, log logger.Logger) *Service {
	if events == nil {
		events = messaging.NopPublisher{}
	}
	return &Service{api: api, cfg: cfg, logger: log, events: events}
}

// ClientConfig returns the publishable Stripe configuration.
func (s *Service) ClientConfig() Config { return s.cfg }

// Status fetches the current subscription state.
func (s *Service) Status(ctx context.Context) (Status, error) {
	var status Status
	if err := s.api.Get(ctx, "/subscriptions/status", &status); err != nil {
		return Status{}, fmt.Errorf("fetch subscription status: %w", err)
	}
	return status, nil
}

// CreateCheckout asks the backend to mint an embedded-checkout session
// for the given price.
func (s *Service) CreateCheckout(ctx context.Context, priceID string) (CheckoutSession, error) {
	body := map[string]string{"price_id": priceID}
	var sess CheckoutSession
	if err := s.api.Post(ctx, "/subscriptions/create-checkout", body, &sess); err != nil {
		return CheckoutSession{}, fmt.Errorf("create checkout session: %w", err)
	}

	if err := s.events.PublishEvent("billing.checkout.created", map[string]string{"price_id": priceID}); err != nil {
		s.logger.Warn("Failed to publish checkout event", logger.Field{Key: "error", Value: err.Error()})
	}
	return sess, nil
}

// CreatePortal asks the backend for a billing-portal URL.
func (s *Service) CreatePortal(ctx context.Context) (PortalSession, error) {
	var sess PortalSession
	if err := s.api.Post(ctx, "/subscriptions/create-portal", nil, &sess); err != nil {
		return PortalSession{}, fmt.Errorf("create portal session: %w", err)
	}
	return sess, nil
}
