package auth

import "errors"

// QRState is the lifecycle of one QR login attempt.
type QRState string

const (
	QRStateIdle         QRState = "idle"
	QRStateGenerating   QRState = "generating"
	QRStateAwaitingScan QRState = "awaiting_scan"
	QRStateTwoFactor    QRState = "two_factor"
	QRStateSuccess      QRState = "success"
	QRStateExpired      QRState = "expired"
)

// Backend status strings reported by the QR status endpoint.
const (
	qrStatusPending     = "pending"
	qrStatusSuccess     = "success"
	qrStatusExpired     = "expired"
	qrStatusTwoFactor   = "2fa_required"
)

// PhoneState is the lifecycle of one phone verification attempt.
type PhoneState string

const (
	PhoneStatePhoneEntry PhoneState = "phone_entry"
	PhoneStateCodeEntry  PhoneState = "code_entry"
	PhoneStateTwoFactor  PhoneState = "two_factor"
	PhoneStateComplete   PhoneState = "complete"
)

var (
	ErrFlowClosed       = errors.New("login flow closed")
	ErrWrongState       = errors.New("operation not valid in current state")
	ErrEmptyPhone       = errors.New("phone number is required")
	ErrUnknownDialCode  = errors.New("unknown country dial code")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrFinalizeFailed   = errors.New("failed to complete login")
	ErrPasswordRequired = errors.New("password required")
)

// QRSnapshot is a point-in-time copy of the QR flow for the UI.
type QRSnapshot struct {
	State     QRState `json:"state"`
	LoginID   string  `json:"login_id,omitempty"`
	QRCode    string  `json:"qr_code,omitempty"`
	Countdown int     `json:"countdown"`
	Error     string  `json:"error,omitempty"`
}

// PhoneSnapshot is a point-in-time copy of the phone flow for the UI.
// Code and phone survive the transition into two_factor so the user
// never re-types them.
type PhoneSnapshot struct {
	State       PhoneState `json:"state"`
	DialCode    string     `json:"dial_code,omitempty"`
	PhoneNumber string     `json:"phone_number,omitempty"`
	Code        string     `json:"code,omitempty"`
	Error       string     `json:"error,omitempty"`
}

// Wire payloads.

type qrInitiateResponse struct {
	LoginID string `json:"login_id"`
	QRCode  string `json:"qr_code"`
}

type qrStatusResponse struct {
	Status string `json:"status"`
}

type qrFinalizeRequest struct {
	LoginID string `json:"login_id"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type connectRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type connectResponse struct {
	PhoneCodeHash string `json:"phone_code_hash"`
	Sent          bool   `json:"sent"`
}

type verifyRequest struct {
	PhoneNumber   string `json:"phone_number"`
	Code          string `json:"code"`
	PhoneCodeHash string `json:"phone_code_hash"`
	Password      string `json:"password,omitempty"`
}

type verifyResponse struct {
	Success       bool   `json:"success"`
	NeedsPassword bool   `json:"needs_password"`
	AccessToken   string `json:"access_token,omitempty"`
}

// Credentials for the password/register endpoints.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// OAuthExchange carries a provider-issued credential to the backend.
type OAuthExchange struct {
	Provider string `json:"-"`
	Token    string `json:"token"`
}

// UserProfile mirrors GET /auth/me.
type UserProfile struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}
