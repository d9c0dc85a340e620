package auth

import (
	"context"
	"fmt"

	"github.com/accordlabs/accord-gateway/internal/metrics"
	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/messaging"
	"github.com/accordlabs/accord-gateway/pkg/session"
)

// Service covers the single-shot login methods: password, OAuth
// providers and the Telegram login widget. The multi-step QR and phone
// flows live in QRFlow and PhoneFlow.
type Service struct {
	api     *httpclient.Client
	store   *session.Store
	logger  logger.Logger
	events  messaging.Publisher
	metrics *metrics.FlowMetrics
}

func NewService(api *httpclient.Client, store *session.Store, events messaging.Publisher, m *metrics.FlowMetrics, log logger.Logger) *Service {
	if events == nil {
		events = messaging.NopPublisher{}
	}
	return &Service{api: api, store: store, logger: log, events: events, metrics: m}
}

// Login exchanges email/password for a session token.
func (s *Service) Login(ctx context.Context, creds Credentials) error {
	var resp tokenResponse
	if err := s.api.Post(ctx, "/auth/login", creds, &resp); err != nil {
		s.metrics.IncLogin("password", "error")
		return err
	}
	s.completeLogin("password", resp.AccessToken)
	return nil
}

// Register creates an account and signs the user in.
func (s *Service) Register(ctx context.Context, creds Credentials) error {
	var resp tokenResponse
	if err := s.api.Post(ctx, "/auth/register", creds, &resp); err != nil {
		s.metrics.IncLogin("register", "error")
		return err
	}
	s.completeLogin("register", resp.AccessToken)
	return nil
}

// ExchangeOAuth forwards a provider-issued credential (Google ID token,
// Facebook access token, Twitter OAuth token) to the backend.
func (s *Service) ExchangeOAuth(ctx context.Context, ex OAuthExchange) error {
	var resp tokenResponse
	if err := s.api.Post(ctx, "/auth/"+ex.Provider, ex, &resp); err != nil {
		s.metrics.IncLogin(ex.Provider, "error")
		return err
	}
	s.completeLogin(ex.Provider, resp.AccessToken)
	return nil
}

// ExchangeTelegramWidget forwards the signed payload the Telegram login
// widget produces. Signature verification is the backend's job.
func (s *Service) ExchangeTelegramWidget(ctx context.Context, payload map[string]string) error {
	var resp tokenResponse
	if err := s.api.Post(ctx, "/auth/telegram", payload, &resp); err != nil {
		s.metrics.IncLogin("telegram_widget", "error")
		return err
	}
	s.completeLogin("telegram_widget", resp.AccessToken)
	return nil
}

// Me fetches the authenticated user's profile.
func (s *Service) Me(ctx context.Context) (UserProfile, error) {
	var profile UserProfile
	if err := s.api.Get(ctx, "/auth/me", &profile); err != nil {
		return UserProfile{}, fmt.Errorf("fetch profile: %w", err)
	}
	return profile, nil
}

// Logout drops the session token. Purely local; the backend token
// simply stops being presented.
func (s *Service) Logout() {
	s.store.Clear()
	s.logger.Info("Session cleared")
}

func (s *Service) completeLogin(method, token string) {
	s.store.Set(token)
	s.metrics.IncLogin(method, "success")
	if err := s.events.PublishEvent("auth.login.completed", map[string]string{"method": method}); err != nil {
		s.logger.Warn("Failed to publish login event", logger.Field{Key: "error", Value: err.Error()})
	}
	s.logger.Info("Login completed", logger.Field{Key: "method", Value: method})
}
