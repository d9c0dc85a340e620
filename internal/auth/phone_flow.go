package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/accordlabs/accord-gateway/internal/metrics"
	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/messaging"
	"github.com/accordlabs/accord-gateway/pkg/session"
)

// PhoneFlow drives phone-number login: submit a number, verify the SMS
// code, answer an optional 2FA password challenge. The entered phone
// and code are kept across the two_factor transition so a wrong
// password never forces the user to re-type them.
type PhoneFlow struct {
	api     *httpclient.Client
	store   *session.Store
	logger  logger.Logger
	events  messaging.Publisher
	metrics *metrics.FlowMetrics

	mu            sync.Mutex
	state         PhoneState
	dialCode      string
	phoneNumber   string
	code          string
	phoneCodeHash string
	lastErr       error
	startedAt     time.Time
	closed        bool
}

func NewPhoneFlow(api *httpclient.Client, store *session.Store, events messaging.Publisher, m *metrics.FlowMetrics, log logger.Logger) *PhoneFlow {
	if events == nil {
		events = messaging.NopPublisher{}
	}
	return &PhoneFlow{
		api:     api,
		store:   store,
		logger:  log,
		events:  events,
		metrics: m,
		state:   PhoneStatePhoneEntry,
	}
}

// Snapshot returns the current flow state for the UI.
func (f *PhoneFlow) Snapshot() PhoneSnapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := PhoneSnapshot{
		State:       f.state,
		DialCode:    f.dialCode,
		PhoneNumber: f.phoneNumber,
		Code:        f.code,
	}
	if f.lastErr != nil {
		snap.Error = f.lastErr.Error()
	}
	return snap
}

// SubmitPhone validates the number locally, then asks the backend to
// send a verification code. The dial code must come from the known
// country catalog.
func (f *PhoneFlow) SubmitPhone(ctx context.Context, dialCode, number string) (PhoneSnapshot, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return PhoneSnapshot{}, ErrFlowClosed
	}
	if f.state != PhoneStatePhoneEntry {
		f.mu.Unlock()
		return f.Snapshot(), ErrWrongState
	}
	f.mu.Unlock()

	number = strings.TrimSpace(number)
	if number == "" {
		f.setErr(ErrEmptyPhone)
		return f.Snapshot(), ErrEmptyPhone
	}
	if !DialCodeKnown(dialCode) {
		f.setErr(ErrUnknownDialCode)
		return f.Snapshot(), ErrUnknownDialCode
	}

	full := NormalizePhone(dialCode, number)

	var resp connectResponse
	if err := f.api.Post(ctx, "/telegram/connect", connectRequest{PhoneNumber: full}, &resp); err != nil {
		f.setErr(err)
		return f.Snapshot(), err
	}

	f.mu.Lock()
	f.dialCode = dialCode
	f.phoneNumber = number
	f.phoneCodeHash = resp.PhoneCodeHash
	f.state = PhoneStateCodeEntry
	f.lastErr = nil
	f.startedAt = time.Now()
	f.mu.Unlock()

	f.logger.Info("Phone verification code requested", logger.Field{Key: "phone", Value: maskPhone(full)})
	return f.Snapshot(), nil
}

// EditPhone returns to phone entry keeping the previously entered
// number so the user can correct it.
func (f *PhoneFlow) EditPhone() PhoneSnapshot {
	f.mu.Lock()
	if f.state == PhoneStateCodeEntry || f.state == PhoneStateTwoFactor {
		f.state = PhoneStatePhoneEntry
		f.code = ""
		f.phoneCodeHash = ""
		f.lastErr = nil
	}
	f.mu.Unlock()
	return f.Snapshot()
}

// SubmitCode verifies the SMS code. A needs_password reply moves the
// flow into two_factor without losing the code.
func (f *PhoneFlow) SubmitCode(ctx context.Context, code string) (PhoneSnapshot, error) {
	f.mu.Lock()
	if f.state != PhoneStateCodeEntry {
		f.mu.Unlock()
		return f.Snapshot(), ErrWrongState
	}
	f.code = code
	f.mu.Unlock()

	return f.verify(ctx, "")
}

// SubmitPassword answers the 2FA challenge using the already-verified
// phone and code. Invalid passwords keep the flow in two_factor.
func (f *PhoneFlow) SubmitPassword(ctx context.Context, password string) (PhoneSnapshot, error) {
	f.mu.Lock()
	if f.state != PhoneStateTwoFactor {
		f.mu.Unlock()
		return f.Snapshot(), ErrWrongState
	}
	f.mu.Unlock()

	snap, err := f.verify(ctx, password)
	if err != nil && err != ErrPasswordRequired {
		// Stay in two_factor; only the password was wrong.
		f.mu.Lock()
		f.state = PhoneStateTwoFactor
		f.lastErr = ErrInvalidPassword
		f.mu.Unlock()
		return f.Snapshot(), ErrInvalidPassword
	}
	return snap, err
}

// Close marks the flow unusable.
func (f *PhoneFlow) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *PhoneFlow) verify(ctx context.Context, password string) (PhoneSnapshot, error) {
	f.mu.Lock()
	req := verifyRequest{
		PhoneNumber:   NormalizePhone(f.dialCode, f.phoneNumber),
		Code:          f.code,
		PhoneCodeHash: f.phoneCodeHash,
		Password:      password,
	}
	startedAt := f.startedAt
	f.mu.Unlock()

	var resp verifyResponse
	if err := f.api.Post(ctx, "/telegram/verify", req, &resp); err != nil {
		f.setErr(err)
		f.metrics.IncLogin("phone", "error")
		return f.Snapshot(), err
	}

	if resp.NeedsPassword {
		f.mu.Lock()
		f.state = PhoneStateTwoFactor
		f.lastErr = nil
		f.mu.Unlock()
		return f.Snapshot(), ErrPasswordRequired
	}

	f.mu.Lock()
	f.state = PhoneStateComplete
	f.lastErr = nil
	f.mu.Unlock()

	if resp.AccessToken != "" {
		f.store.Set(resp.AccessToken)
	}

	f.metrics.IncLogin("phone", "success")
	if !startedAt.IsZero() {
		f.metrics.ObserveFlowDuration("phone_login", time.Since(startedAt).Seconds())
	}
	if err := f.events.PublishEvent("auth.login.completed", map[string]string{"method": "phone"}); err != nil {
		f.logger.Warn("Failed to publish login event", logger.Field{Key: "error", Value: err.Error()})
	}

	return f.Snapshot(), nil
}

func (f *PhoneFlow) setErr(err error) {
	f.mu.Lock()
	f.lastErr = err
	f.mu.Unlock()
}

// maskPhone keeps the dial code and last two digits for logs.
func maskPhone(s string) string {
	if len(s) <= 6 {
		return "***"
	}
	return s[:4] + strings.Repeat("*", len(s)-6) + s[len(s)-2:]
}
