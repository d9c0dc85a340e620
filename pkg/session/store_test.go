package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenEmptyByDefault(t *testing.T) {
	s := NewStore()
	token, ok := s.Token()
	assert.False(t, ok)
	assert.Empty(t, token)
}

func TestSetAndClear(t *testing.T) {
	s := NewStore()
	s.Set("abc")

	token, ok := s.Token()
	require.True(t, ok)
	assert.Equal(t, "abc", token)

	s.Clear()
	_, ok = s.Token()
	assert.False(t, ok)
}

func TestSubscribersSeeEveryChange(t *testing.T) {
	s := NewStore()
	var seen []string
	unsubscribe := s.Subscribe(func(token string) {
		seen = append(seen, token)
	})

	s.Set("first")
	s.Set("second")
	s.Clear()
	assert.Equal(t, []string{"first", "second", ""}, seen)

	unsubscribe()
	s.Set("third")
	assert.Len(t, seen, 3)
}

func TestClearWithoutTokenDoesNotNotify(t *testing.T) {
	s := NewStore()
	calls := 0
	s.Subscribe(func(string) { calls++ })

	s.Clear()
	assert.Zero(t, calls)
}

func TestExpiresAt(t *testing.T) {
	s := NewStore()

	_, ok := s.ExpiresAt()
	assert.False(t, ok, "no token")

	s.Set("opaque-token")
	_, ok = s.ExpiresAt()
	assert.False(t, ok, "opaque token")

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-1",
		"exp": exp.Unix(),
	})
	signed, err := token.SignedString([]byte("secret"))
	require.NoError(t, err)

	s.Set(signed)
	got, ok := s.ExpiresAt()
	require.True(t, ok)
	assert.True(t, got.Equal(exp))
}
