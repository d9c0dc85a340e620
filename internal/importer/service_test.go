package importer

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/accordlabs/accord-gateway/pkg/cache"
	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/session"
	"github.com/accordlabs/accord-gateway/pkg/testutil"
)

// memoryCache is a map-backed PreviewCache for tests.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string][]byte)}
}

func (m *memoryCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = raw
	return nil
}

type ImporterTestSuite struct {
	suite.Suite
	backend  *testutil.MockBackend
	previews *memoryCache
	service  *Service
}

func (s *ImporterTestSuite) SetupTest() {
	s.backend = testutil.NewMockBackend()
	s.previews = newMemoryCache()
	store := session.NewStore()
	store.Set("test-access-token")
	api := httpclient.New(s.backend.URL(), store, logger.Discard())
	s.service = NewService(api, s.previews, Config{
		ContactPageSize:      3,
		PreviewLimit:         2,
		DownloadPollInterval: 15 * time.Millisecond,
	}, nil, nil, logger.Discard())
}

func (s *ImporterTestSuite) TearDownTest() {
	s.backend.Close()
}

func boolPtr(v bool) *bool { return &v }

func (s *ImporterTestSuite) TestConnected() {
	connected, err := s.service.Connected(context.Background())
	s.Require().NoError(err)
	s.False(connected)

	s.backend.SetConnected(true)
	connected, err = s.service.Connected(context.Background())
	s.Require().NoError(err)
	s.True(connected)
}

func (s *ImporterTestSuite) TestContactsExplicitHasMoreWins() {
	// A full page, but the backend says there is nothing more.
	s.backend.SetContacts([]testutil.MockContact{
		{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}, {ID: 3, Name: "Carol"},
	}, boolPtr(false))

	page, err := s.service.Contacts(context.Background(), "", 0)
	s.Require().NoError(err)
	s.Len(page.Contacts, 3)
	s.False(page.HasMore)

	// A short page, but the backend says more exists.
	s.backend.SetContacts([]testutil.MockContact{{ID: 1, Name: "Alice"}}, boolPtr(true))
	page, err = s.service.Contacts(context.Background(), "", 0)
	s.Require().NoError(err)
	s.Len(page.Contacts, 1)
	s.True(page.HasMore)
}

func (s *ImporterTestSuite) TestContactsFullPageHeuristicFallback() {
	// No has_more in the response: a full page means "probably more".
	s.backend.SetContacts([]testutil.MockContact{
		{ID: 1, Name: "Alice"}, {ID: 2, Name: "Bob"}, {ID: 3, Name: "Carol"}, {ID: 4, Name: "Dave"},
	}, nil)

	page, err := s.service.Contacts(context.Background(), "", 0)
	s.Require().NoError(err)
	s.Len(page.Contacts, 3)
	s.True(page.HasMore)

	s.backend.SetContacts([]testutil.MockContact{{ID: 1, Name: "Alice"}}, nil)
	page, err = s.service.Contacts(context.Background(), "", 0)
	s.Require().NoError(err)
	s.False(page.HasMore)
}

func (s *ImporterTestSuite) TestContactsFolderFilter() {
	s.backend.SetContacts([]testutil.MockContact{
		{ID: 1, Name: "Alice", FolderName: "family"},
		{ID: 2, Name: "Bob", FolderName: "work"},
	}, nil)

	page, err := s.service.Contacts(context.Background(), "family", 0)
	s.Require().NoError(err)
	s.Require().Len(page.Contacts, 1)
	s.Equal("Alice", page.Contacts[0].Name)
}

func (s *ImporterTestSuite) TestPreviewCapsAndCaches() {
	s.backend.SetPreview("42", []testutil.MockMessage{
		{ID: 3, Text: "newest"}, {ID: 2, Text: "older"}, {ID: 1, Text: "oldest"},
	})

	msgs, err := s.service.Preview(context.Background(), "42")
	s.Require().NoError(err)
	s.Require().Len(msgs, 2)
	s.Equal("newest", msgs[0].Text)

	// The second read is served from cache.
	before := s.backend.CountRequests("/telegram/messages/preview/")
	msgs, err = s.service.Preview(context.Background(), "42")
	s.Require().NoError(err)
	s.Len(msgs, 2)
	s.Equal(before, s.backend.CountRequests("/telegram/messages/preview/"))
}

func (s *ImporterTestSuite) TestPreviewWithoutCache() {
	svc := NewService(
		httpclient.New(s.backend.URL(), session.NewStore(), logger.Discard()),
		nil, Config{PreviewLimit: 2}, nil, nil, logger.Discard())
	s.backend.SetPreview("7", []testutil.MockMessage{{ID: 1, Text: "hi"}})

	msgs, err := svc.Preview(context.Background(), "7")
	s.Require().NoError(err)
	s.Len(msgs, 1)
}

func (s *ImporterTestSuite) TestStartDownloadRequiresSelection() {
	_, err := s.service.StartDownload(context.Background(), nil, DateRange{})
	s.ErrorIs(err, ErrNoChatsSelected)
}

func (s *ImporterTestSuite) TestStartDownloadSendsDateRange() {
	dates := DateRange{From: "2024-01-01", To: "2024-06-30"}
	w, err := s.service.StartDownload(context.Background(), []int64{10}, dates)
	s.Require().NoError(err)
	defer w.Stop()

	var created *testutil.RecordedRequest
	for _, r := range s.backend.Requests() {
		if r.Method == "POST" && r.Path == "/telegram/download" {
			created = &r
			break
		}
	}
	s.Require().NotNil(created)
	s.Equal("2024-01-01", created.Body["date_from"])
	s.Equal("2024-06-30", created.Body["date_to"])
}

func (s *ImporterTestSuite) TestStartDownloadOmitsEmptyDateRange() {
	w, err := s.service.StartDownload(context.Background(), []int64{10}, DateRange{})
	s.Require().NoError(err)
	defer w.Stop()

	var created *testutil.RecordedRequest
	for _, r := range s.backend.Requests() {
		if r.Method == "POST" && r.Path == "/telegram/download" {
			created = &r
			break
		}
	}
	s.Require().NotNil(created)
	s.NotContains(created.Body, "date_from")
	s.NotContains(created.Body, "date_to")
}

func (s *ImporterTestSuite) TestNotConnectedSurfacesSentinel() {
	s.backend.FailPath("/telegram/contacts", http.StatusForbidden)
	_, err := s.service.Contacts(context.Background(), "", 0)
	s.ErrorIs(err, ErrNotConnected)

	s.backend.FailPath("/telegram/messages/preview/", http.StatusForbidden)
	_, err = s.service.Preview(context.Background(), "42")
	s.ErrorIs(err, ErrNotConnected)

	s.backend.FailPath("/telegram/download", http.StatusForbidden)
	_, err = s.service.StartDownload(context.Background(), []int64{10}, DateRange{})
	s.ErrorIs(err, ErrNotConnected)
}

func TestImporterTestSuite(t *testing.T) {
	suite.Run(t, new(ImporterTestSuite))
}
