package flows

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/accordlabs/accord-gateway/internal/auth"
	"github.com/accordlabs/accord-gateway/internal/importer"
	"github.com/accordlabs/accord-gateway/internal/rewards"
	"github.com/accordlabs/accord-gateway/internal/rooms"
	"github.com/accordlabs/accord-gateway/internal/subscription"
	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/session"
	"github.com/accordlabs/accord-gateway/pkg/testutil"
)

type RegistryTestSuite struct {
	suite.Suite
	backend  *testutil.MockBackend
	registry *Registry
}

func testFactory() Factory {
	return func(id string, store *session.Store, api *httpclient.Client) *Instance {
		return &Instance{
			ID:    id,
			Store: store,
			API:   api,
			QR: auth.NewQRFlow(api, store, auth.QRFlowConfig{
				PollInterval: 15 * time.Millisecond,
			}, nil, nil, logger.Discard()),
			Phone:        auth.NewPhoneFlow(api, store, nil, nil, logger.Discard()),
			Auth:         auth.NewService(api, store, nil, nil, logger.Discard()),
			Importer:     importer.NewService(api, nil, importer.Config{}, nil, nil, logger.Discard()),
			Subscription: subscription.NewService(api, subscription.Config{}, nil, logger.Discard()),
			Rooms:        rooms.NewService(api, nil, logger.Discard()),
			Rewards:      rewards.NewService(api, logger.Discard()),
		}
	}
}

func (s *RegistryTestSuite) SetupTest() {
	s.backend = testutil.NewMockBackend()
	s.registry = NewRegistry(s.backend.URL(), testFactory(),
		time.Hour, time.Hour, nil, logger.Discard())
}

func (s *RegistryTestSuite) TearDownTest() {
	s.registry.Close()
	s.backend.Close()
}

func (s *RegistryTestSuite) TestCreateAndGet() {
	inst := s.registry.Create()
	s.Require().NotEmpty(inst.ID)

	got, err := s.registry.Get(inst.ID)
	s.Require().NoError(err)
	s.Same(inst, got)
	s.Equal(1, s.registry.Len())
}

func (s *RegistryTestSuite) TestGetUnknownID() {
	_, err := s.registry.Get("nope")
	s.ErrorIs(err, ErrInstanceNotFound)
}

func (s *RegistryTestSuite) TestInstancesAreIsolated() {
	a := s.registry.Create()
	b := s.registry.Create()

	a.Store.Set("token-a")
	_, ok := b.Store.Token()
	s.False(ok, "tokens must not leak across instances")
}

func (s *RegistryTestSuite) TestRemoveClosesFlows() {
	inst := s.registry.Create()
	_, err := inst.QR.Initiate(context.Background())
	s.Require().NoError(err)

	s.registry.Remove(inst.ID)
	s.Equal(0, s.registry.Len())

	_, err = inst.QR.Initiate(context.Background())
	s.ErrorIs(err, auth.ErrFlowClosed)
}

func (s *RegistryTestSuite) TestEvictionClosesStaleInstances() {
	registry := NewRegistry(s.backend.URL(), testFactory(),
		30*time.Millisecond, 15*time.Millisecond, nil, logger.Discard())
	defer registry.Close()

	inst := registry.Create()
	require.Eventually(s.T(), func() bool {
		return registry.Len() == 0
	}, 2*time.Second, 10*time.Millisecond)

	_, err := inst.QR.Initiate(context.Background())
	s.ErrorIs(err, auth.ErrFlowClosed)
}

func TestRegistryTestSuite(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}
