//go:build integration
// +build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/accordlabs/accord-gateway/internal/importer"
	"github.com/accordlabs/accord-gateway/internal/rooms"
	"github.com/accordlabs/accord-gateway/pkg/cache"
	"github.com/accordlabs/accord-gateway/pkg/crypto"
	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/session"
	"github.com/accordlabs/accord-gateway/pkg/testutil"
)

// GatewayIntegrationSuite exercises the redis-backed pieces against a
// real Redis: preview caching, UI hints and encrypted session
// persistence.
type GatewayIntegrationSuite struct {
	suite.Suite
	ctx     context.Context
	cancel  context.CancelFunc
	redis   *testutil.RedisContainer
	cache   *cache.RedisCache
	backend *testutil.MockBackend
}

func (s *GatewayIntegrationSuite) SetupSuite() {
	s.ctx, s.cancel = context.WithTimeout(context.Background(), 5*time.Minute)

	var err error
	s.redis, err = testutil.NewRedisContainer(s.ctx)
	s.Require().NoError(err, "Failed to start Redis container")

	s.cache, err = cache.NewRedisCache(s.redis.Addr, "", 0)
	s.Require().NoError(err, "Failed to connect to Redis")
}

func (s *GatewayIntegrationSuite) TearDownSuite() {
	if s.cache != nil {
		s.cache.Close()
	}
	if s.redis != nil {
		_ = s.redis.Terminate(s.ctx)
	}
	s.cancel()
}

func (s *GatewayIntegrationSuite) SetupTest() {
	s.backend = testutil.NewMockBackend()
}

func (s *GatewayIntegrationSuite) TearDownTest() {
	s.backend.Close()
}

func (s *GatewayIntegrationSuite) TestPreviewServedFromRedisOnSecondRead() {
	store := session.NewStore()
	store.Set("test-access-token")
	api := httpclient.New(s.backend.URL(), store, logger.Discard())
	svc := importer.NewService(api, s.cache, importer.Config{
		PreviewLimit: 5,
		PreviewTTL:   time.Minute,
	}, nil, nil, logger.Discard())

	s.backend.SetPreview("100", []testutil.MockMessage{{ID: 1, Text: "hello"}})

	msgs, err := svc.Preview(s.ctx, "100")
	s.Require().NoError(err)
	s.Require().Len(msgs, 1)

	before := s.backend.CountRequests("/telegram/messages/preview/")
	msgs, err = svc.Preview(s.ctx, "100")
	s.Require().NoError(err)
	s.Len(msgs, 1)
	s.Equal(before, s.backend.CountRequests("/telegram/messages/preview/"))
}

func (s *GatewayIntegrationSuite) TestHintsExpireAndConsume() {
	hints := rooms.NewHints(s.cache, 2*time.Second)

	s.Require().NoError(hints.Put(s.ctx, "inst-1", rooms.HintPostLoginRedirect, "/rooms/abc"))

	value, err := hints.Take(s.ctx, "inst-1", rooms.HintPostLoginRedirect)
	s.Require().NoError(err)
	s.Equal("/rooms/abc", value)

	_, err = hints.Get(s.ctx, "inst-1", rooms.HintPostLoginRedirect)
	s.ErrorIs(err, rooms.ErrHintNotFound)

	// TTL-based expiry.
	s.Require().NoError(hints.Put(s.ctx, "inst-1", rooms.HintRoomDraft, "draft"))
	s.Require().Eventually(func() bool {
		_, err := hints.Get(s.ctx, "inst-1", rooms.HintRoomDraft)
		return err == rooms.ErrHintNotFound
	}, 10*time.Second, 250*time.Millisecond)
}

func (s *GatewayIntegrationSuite) TestSessionPersistenceRoundTrip() {
	enc, err := crypto.NewEncryptorFromPassphrase("integration-passphrase", "accord-gateway")
	s.Require().NoError(err)

	persist := session.NewPersistence(s.cache, enc, "session:integration", time.Minute)

	store := session.NewStore()
	detach := persist.Attach(store, nil)
	defer detach()

	store.Set("jwt-token-value")

	// A fresh store restores the token, as after a gateway restart.
	restored := session.NewStore()
	s.Require().NoError(persist.Restore(s.ctx, restored))
	token, ok := restored.Token()
	s.Require().True(ok)
	s.Equal("jwt-token-value", token)

	// The value at rest is not the plaintext token.
	raw, err := s.cache.Get(s.ctx, "session:integration")
	s.Require().NoError(err)
	s.NotEqual("jwt-token-value", raw)

	// Clear drops the persisted copy.
	store.Clear()
	err = persist.Restore(s.ctx, session.NewStore())
	s.Require().NoError(err)
}

func TestGatewayIntegrationSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}
	suite.Run(t, new(GatewayIntegrationSuite))
}
