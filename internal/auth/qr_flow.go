package auth

import (
	"context"
	"sync"
	"time"

	"github.com/accordlabs/accord-gateway/internal/metrics"
	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/messaging"
	"github.com/accordlabs/accord-gateway/pkg/poll"
	"github.com/accordlabs/accord-gateway/pkg/session"
)

// QRFlowConfig tunes the attempt timers. Zero values fall back to the
// production defaults (2.5s poll, 30s countdown).
type QRFlowConfig struct {
	PollInterval  time.Duration
	Countdown     time.Duration
	CountdownTick time.Duration
}

func (c QRFlowConfig) withDefaults() QRFlowConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 2500 * time.Millisecond
	}
	if c.Countdown <= 0 {
		c.Countdown = 30 * time.Second
	}
	if c.CountdownTick <= 0 {
		c.CountdownTick = time.Second
	}
	return c
}

// QRFlow drives one Telegram QR login attempt: initiate, poll for scan
// confirmation, optional 2FA challenge, finalize into an application
// session token.
//
// The flow owns at most one status poller and one countdown ticker at a
// time. Initiate and Refresh stop the previous pair before starting a
// new one, so two login_ids are never polled concurrently. The server
// is the authority on expiry: the countdown hitting zero marks the code
// stale in the snapshot but does not stop the status poll — only an
// explicit expired status or a refresh does.
type QRFlow struct {
	api     *httpclient.Client
	store   *session.Store
	cfg     QRFlowConfig
	logger  logger.Logger
	events  messaging.Publisher
	metrics *metrics.FlowMetrics

	lifetime context.Context
	cancel   context.CancelFunc

	mu        sync.Mutex
	state     QRState
	loginID   string
	qrCode    string
	countdown int
	lastErr   error
	finalized bool
	startedAt time.Time

	poller *poll.Handle
	ticker *poll.Handle
	closed bool
}

func NewQRFlow(api *httpclient.Client, store *session.Store, cfg QRFlowConfig, events messaging.Publisher, m *metrics.FlowMetrics, log logger.Logger) *QRFlow {
	ctx, cancel := context.WithCancel(context.Background())
	if events == nil {
		events = messaging.NopPublisher{}
	}
	return &QRFlow{
		api:      api,
		store:    store,
		cfg:      cfg.withDefaults(),
		logger:   log,
		events:   events,
		metrics:  m,
		lifetime: ctx,
		cancel:   cancel,
		state:    QRStateIdle,
	}
}

// Snapshot returns the current flow state for the UI.
func (f *QRFlow) Snapshot() QRSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := QRSnapshot{
		State:     f.state,
		LoginID:   f.loginID,
		QRCode:    f.qrCode,
		Countdown: f.countdown,
	}
	if f.lastErr != nil {
		snap.Error = f.lastErr.Error()
	}
	return snap
}

// Initiate requests a fresh QR payload and starts polling. Any previous
// attempt in this flow is abandoned: its timers are stopped and its
// login_id is simply never polled again.
func (f *QRFlow) Initiate(ctx context.Context) (QRSnapshot, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return QRSnapshot{}, ErrFlowClosed
	}
	f.stopTimersLocked()
	f.state = QRStateGenerating
	f.lastErr = nil
	f.finalized = false
	f.startedAt = time.Now()
	f.mu.Unlock()

	var resp qrInitiateResponse
	if err := f.api.Post(ctx, "/auth/telegram-qr/initiate", nil, &resp); err != nil {
		f.setErr(err)
		f.setState(QRStateIdle)
		return f.Snapshot(), err
	}

	f.mu.Lock()
	f.loginID = resp.LoginID
	f.qrCode = resp.QRCode
	f.beginAwaitingScanLocked()
	f.mu.Unlock()

	f.logger.Info("QR login initiated", logger.Field{Key: "login_id", Value: resp.LoginID})
	return f.Snapshot(), nil
}

// Refresh replaces the displayed QR code. It first tries the
// refresh-in-place endpoint reusing the current login_id and falls back
// to a full initiate when that fails. Either way the countdown resets
// and the old poller is stopped before a new one starts.
func (f *QRFlow) Refresh(ctx context.Context) (QRSnapshot, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return QRSnapshot{}, ErrFlowClosed
	}
	loginID := f.loginID
	f.stopTimersLocked()
	f.mu.Unlock()

	f.metrics.IncQRRefresh()

	if loginID == "" {
		return f.Initiate(ctx)
	}

	var resp qrInitiateResponse
	if err := f.api.Post(ctx, "/auth/telegram-qr/refresh/"+loginID, nil, &resp); err != nil {
		f.logger.Warn("QR refresh failed, falling back to initiate",
			logger.Field{Key: "login_id", Value: loginID},
			logger.Field{Key: "error", Value: err.Error()},
		)
		return f.Initiate(ctx)
	}

	f.mu.Lock()
	if resp.LoginID != "" {
		f.loginID = resp.LoginID
	}
	f.qrCode = resp.QRCode
	f.lastErr = nil
	f.finalized = false
	f.beginAwaitingScanLocked()
	f.mu.Unlock()

	return f.Snapshot(), nil
}

// SubmitPassword answers the 2FA challenge. An invalid password keeps
// the flow in two_factor with the error surfaced; a valid one proceeds
// straight to finalize.
func (f *QRFlow) SubmitPassword(ctx context.Context, password string) (QRSnapshot, error) {
	f.mu.Lock()
	if f.state != QRStateTwoFactor {
		f.mu.Unlock()
		return f.Snapshot(), ErrWrongState
	}
	loginID := f.loginID
	f.mu.Unlock()

	body := map[string]string{"password": password}
	if err := f.api.Post(ctx, "/auth/telegram-qr/2fa/"+loginID, body, nil); err != nil {
		f.setErr(ErrInvalidPassword)
		return f.Snapshot(), ErrInvalidPassword
	}

	if err := f.finalize(ctx); err != nil {
		return f.Snapshot(), err
	}
	return f.Snapshot(), nil
}

// Close tears the flow down: all timers stopped, no further transitions.
func (f *QRFlow) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.stopTimersLocked()
	f.cancel()
}

// beginAwaitingScanLocked resets the countdown and starts a fresh
// poller/ticker pair. Caller holds f.mu and has already stopped the
// previous pair.
func (f *QRFlow) beginAwaitingScanLocked() {
	f.state = QRStateAwaitingScan
	f.countdown = int(f.cfg.Countdown / time.Second)
	f.poller = poll.Start(f.lifetime, f.cfg.PollInterval, f.pollTick)
	f.ticker = poll.Start(f.lifetime, f.cfg.CountdownTick, f.countdownTick)
}

func (f *QRFlow) stopTimersLocked() {
	if f.poller != nil {
		f.poller.Stop()
		f.poller = nil
	}
	if f.ticker != nil {
		f.ticker.Stop()
		f.ticker = nil
	}
}

func (f *QRFlow) pollTick(ctx context.Context) (bool, error) {
	f.mu.Lock()
	loginID := f.loginID
	f.mu.Unlock()

	f.metrics.IncQRPoll()

	var resp qrStatusResponse
	if err := f.api.Get(ctx, "/auth/telegram-qr/status/"+loginID, &resp); err != nil {
		f.setErr(err)
		f.logger.Error("QR status poll failed",
			logger.Field{Key: "login_id", Value: loginID},
			logger.Field{Key: "error", Value: err.Error()},
		)
		return false, err
	}

	switch resp.Status {
	case qrStatusSuccess:
		f.stopCountdown()
		// Finalize failure leaves the flow where it is; the user
		// retries via refresh. Polling stops either way.
		_ = f.finalize(ctx)
		return true, nil

	case qrStatusTwoFactor:
		f.stopCountdown()
		f.setState(QRStateTwoFactor)
		return true, nil

	case qrStatusExpired:
		f.mu.Lock()
		f.state = QRStateExpired
		f.countdown = 0
		f.mu.Unlock()
		f.stopCountdown()
		// Poll keeps running until the user refreshes.
		return false, nil

	default: // pending
		return false, nil
	}
}

func (f *QRFlow) countdownTick(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.countdown > 0 {
		f.countdown--
	}
	// Zero only stops the ticker. The status poll keeps going until
	// the backend reports expired or the user refreshes.
	return f.countdown <= 0, nil
}

func (f *QRFlow) stopCountdown() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ticker != nil {
		f.ticker.Stop()
		f.ticker = nil
	}
}

// finalize exchanges the authorized QR handshake for an application
// session token. Issued at most once per attempt.
func (f *QRFlow) finalize(ctx context.Context) error {
	f.mu.Lock()
	if f.finalized {
		f.mu.Unlock()
		return nil
	}
	f.finalized = true
	loginID := f.loginID
	startedAt := f.startedAt
	f.mu.Unlock()

	var resp tokenResponse
	if err := f.api.Post(ctx, "/auth/telegram-qr", qrFinalizeRequest{LoginID: loginID}, &resp); err != nil {
		f.mu.Lock()
		f.finalized = false
		f.lastErr = ErrFinalizeFailed
		f.mu.Unlock()
		f.metrics.IncLogin("telegram_qr", "finalize_failed")
		f.logger.Error("QR finalize failed",
			logger.Field{Key: "login_id", Value: loginID},
			logger.Field{Key: "error", Value: err.Error()},
		)
		return ErrFinalizeFailed
	}

	f.store.Set(resp.AccessToken)
	f.setState(QRStateSuccess)

	f.metrics.IncLogin("telegram_qr", "success")
	if !startedAt.IsZero() {
		f.metrics.ObserveFlowDuration("qr_login", time.Since(startedAt).Seconds())
	}
	if err := f.events.PublishEvent("auth.login.completed", map[string]string{
		"method":   "telegram_qr",
		"login_id": loginID,
	}); err != nil {
		f.logger.Warn("Failed to publish login event", logger.Field{Key: "error", Value: err.Error()})
	}

	f.logger.Info("QR login finalized", logger.Field{Key: "login_id", Value: loginID})
	return nil
}

func (f *QRFlow) setState(s QRState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

func (f *QRFlow) setErr(err error) {
	f.mu.Lock()
	f.lastErr = err
	f.mu.Unlock()
}
