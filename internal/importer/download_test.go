package importer

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/session"
	"github.com/accordlabs/accord-gateway/pkg/testutil"
)

type DownloadWatcherTestSuite struct {
	suite.Suite
	backend *testutil.MockBackend
	service *Service
}

func (s *DownloadWatcherTestSuite) SetupTest() {
	s.backend = testutil.NewMockBackend()
	store := session.NewStore()
	store.Set("test-access-token")
	api := httpclient.New(s.backend.URL(), store, logger.Discard())
	s.service = NewService(api, nil, Config{
		DownloadPollInterval: 15 * time.Millisecond,
	}, nil, nil, logger.Discard())
}

func (s *DownloadWatcherTestSuite) TearDownTest() {
	s.backend.Close()
}

func (s *DownloadWatcherTestSuite) TestPollsUntilCompleted() {
	s.backend.QueueDownloadState(1,
		testutil.MockDownloadState{Status: DownloadPending},
		testutil.MockDownloadState{Status: DownloadProcessing, MessageCount: 120},
		testutil.MockDownloadState{Status: DownloadCompleted, MessageCount: 450},
	)

	w, err := s.service.StartDownload(context.Background(), []int64{10, 20}, DateRange{})
	s.Require().NoError(err)
	defer w.Stop()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		s.FailNow("watcher did not finish")
	}

	snap := w.Snapshot()
	s.Equal(DownloadCompleted, snap.Status)
	s.Equal(450, snap.MessageCount)
	s.NoError(w.Err())

	// No polls after the terminal status.
	polls := s.backend.CountRequests("/telegram/download/1")
	time.Sleep(60 * time.Millisecond)
	s.Equal(polls, s.backend.CountRequests("/telegram/download/1"))
}

func (s *DownloadWatcherTestSuite) TestFailedStatusIsTerminal() {
	s.backend.QueueDownloadState(1,
		testutil.MockDownloadState{Status: DownloadProcessing},
		testutil.MockDownloadState{Status: DownloadFailed, ErrorMessage: "flood wait"},
	)

	w, err := s.service.StartDownload(context.Background(), []int64{10}, DateRange{})
	s.Require().NoError(err)
	defer w.Stop()

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		s.FailNow("watcher did not finish")
	}

	snap := w.Snapshot()
	s.Equal(DownloadFailed, snap.Status)
	s.Equal("flood wait", snap.ErrorMessage)
}

func (s *DownloadWatcherTestSuite) TestPollErrorHaltsWatcher() {
	w, err := s.service.StartDownload(context.Background(), []int64{10}, DateRange{})
	s.Require().NoError(err)
	defer w.Stop()

	s.backend.FailPath("/telegram/download/1", http.StatusBadGateway)

	select {
	case <-w.Done():
	case <-time.After(2 * time.Second):
		s.FailNow("watcher did not stop on error")
	}

	s.Error(w.Err())
	polls := s.backend.CountRequests("/telegram/download/1")
	time.Sleep(60 * time.Millisecond)
	s.Equal(polls, s.backend.CountRequests("/telegram/download/1"))
}

func (s *DownloadWatcherTestSuite) TestStopHaltsPolling() {
	w, err := s.service.StartDownload(context.Background(), []int64{10}, DateRange{})
	s.Require().NoError(err)

	w.Stop()
	<-w.Done()

	polls := s.backend.CountRequests("/telegram/download/1")
	time.Sleep(60 * time.Millisecond)
	s.Equal(polls, s.backend.CountRequests("/telegram/download/1"))
	s.False(w.Running())
}

func TestDownloadWatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DownloadWatcherTestSuite))
}
