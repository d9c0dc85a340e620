package rooms

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/accordlabs/accord-gateway/pkg/cache"
)

// ErrHintNotFound is returned when no hint of that kind is stored.
var ErrHintNotFound = errors.New("hint not found")

// Hint kinds. Each client instance holds at most one value per kind.
const (
	HintPendingInvite     = "pending_invite"
	HintRoomDraft         = "room_draft"
	HintPostLoginRedirect = "post_login_redirect"
)

// HintCache is the storage behind the hint store. Satisfied by
// cache.RedisCache.
type HintCache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Hints stores the short-lived UI state that survives a redirect: the
// invite token carried into login, the half-finished room-creation
// draft, the path to return to after auth. Each entry expires on its
// own; nothing here is durable.
type Hints struct {
	cache HintCache
	ttl   time.Duration
}

func NewHints(c HintCache, ttl time.Duration) *Hints {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Hints{cache: c, ttl: ttl}
}

func hintKey(instanceID, kind string) string {
	return fmt.Sprintf("hints:%s:%s", instanceID, kind)
}

// Put stores one hint for the instance. Without a cache behind it the
// hint is dropped; everything stored here is reconstructible UI state.
func (h *Hints) Put(ctx context.Context, instanceID, kind, value string) error {
	if h == nil {
		return nil
	}
	if err := h.cache.Set(ctx, hintKey(instanceID, kind), value, h.ttl); err != nil {
		return fmt.Errorf("store hint: %w", err)
	}
	return nil
}

// Get reads a hint without consuming it.
func (h *Hints) Get(ctx context.Context, instanceID, kind string) (string, error) {
	if h == nil {
		return "", ErrHintNotFound
	}
	value, err := h.cache.Get(ctx, hintKey(instanceID, kind))
	if errors.Is(err, cache.ErrCacheMiss) {
		return "", ErrHintNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read hint: %w", err)
	}
	return value, nil
}

// Take reads a hint and removes it, for one-shot hints like the
// post-login redirect.
func (h *Hints) Take(ctx context.Context, instanceID, kind string) (string, error) {
	value, err := h.Get(ctx, instanceID, kind)
	if err != nil {
		return "", err
	}
	if err := h.cache.Delete(ctx, hintKey(instanceID, kind)); err != nil {
		return "", fmt.Errorf("consume hint: %w", err)
	}
	return value, nil
}

// Drop removes a hint if present.
func (h *Hints) Drop(ctx context.Context, instanceID, kind string) error {
	if h == nil {
		return nil
	}
	if err := h.cache.Delete(ctx, hintKey(instanceID, kind)); err != nil {
		return fmt.Errorf("drop hint: %w", err)
	}
	return nil
}
