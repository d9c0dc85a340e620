package session

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Store holds the bearer token for the mediation backend. It replaces the
// ambient mutable token of the old client with a single shared object:
// flow finalizers write it, the HTTP client and profile refetchers read
// it, and observers are notified of every change.
//
// The write contract is single-writer by convention: only login
// finalizers and the 401 handler call Set/Clear.
type Store struct {
	mu    sync.RWMutex
	token string

	subMu  sync.Mutex
	subs   map[int]func(token string)
	nextID int
}

func NewStore() *Store {
	return &Store{subs: make(map[int]func(string))}
}

// Token returns the current token and whether one is set.
func (s *Store) Token() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token, s.token != ""
}

// Set stores a new token and notifies subscribers. Called on every
// successful finalize, which is what triggers the profile refetch
// elsewhere.
func (s *Store) Set(token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	s.notify(token)
}

// Clear evicts the token. The HTTP client calls this on any 401.
func (s *Store) Clear() {
	s.mu.Lock()
	changed := s.token != ""
	s.token = ""
	s.mu.Unlock()
	if changed {
		s.notify("")
	}
}

// Subscribe registers an observer invoked on every Set and on Clear
// (with an empty token). The returned func removes the subscription.
func (s *Store) Subscribe(fn func(token string)) func() {
	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(token string) {
	s.subMu.Lock()
	fns := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(token)
	}
}

// ExpiresAt inspects the token's exp claim without verifying the
// signature. The backend signs its own tokens; the gateway only needs a
// hint for the UI. Returns false for opaque or claim-less tokens.
func (s *Store) ExpiresAt() (time.Time, bool) {
	token, ok := s.Token()
	if !ok {
		return time.Time{}, false
	}

	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
