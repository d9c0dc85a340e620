package importer

import (
	"context"
	"strconv"
	"sync"

	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/poll"
)

// DownloadWatcher polls one download job until it reaches a terminal
// status. It stops on completed, failed, an HTTP error, Stop, or the
// owning context going away.
type DownloadWatcher struct {
	service *Service
	id      int64

	mu      sync.Mutex
	current Download
	lastErr error

	cancel context.CancelFunc
	handle *poll.Handle
}

func (s *Service) watch(id int64, chatIDs []int64) *DownloadWatcher {
	ctx, cancel := context.WithCancel(context.Background())
	w := &DownloadWatcher{
		service: s,
		id:      id,
		current: Download{ID: id, ChatIDs: chatIDs, Status: DownloadPending},
		cancel:  cancel,
	}
	w.handle = poll.Start(ctx, s.cfg.DownloadPollInterval, w.tick)
	return w
}

// ID returns the backend's job identifier.
func (w *DownloadWatcher) ID() int64 { return w.id }

// Snapshot returns the last observed job state.
func (w *DownloadWatcher) Snapshot() Download {
	w.mu.Lock()
	defer w.mu.Unlock()
	snap := w.current
	return snap
}

// Err returns the poll error that stopped the watcher, if any.
func (w *DownloadWatcher) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastErr
}

// Done closes once polling has stopped for any reason.
func (w *DownloadWatcher) Done() <-chan struct{} { return w.handle.Done() }

// Running reports whether the poll loop is still live.
func (w *DownloadWatcher) Running() bool { return w.handle.Running() }

// Stop halts polling without touching the backend job.
func (w *DownloadWatcher) Stop() {
	w.handle.Stop()
	w.cancel()
}

func (w *DownloadWatcher) tick(ctx context.Context) (bool, error) {
	s := w.service
	s.metrics.IncDownloadPoll()

	var resp downloadStateResponse
	if err := s.api.Get(ctx, "/telegram/download/"+strconv.FormatInt(w.id, 10), &resp); err != nil {
		w.mu.Lock()
		w.lastErr = err
		w.mu.Unlock()
		s.logger.Error("Download status poll failed",
			logger.Field{Key: "download_id", Value: w.id},
			logger.Field{Key: "error", Value: err.Error()},
		)
		return false, err
	}

	w.mu.Lock()
	w.current.Status = resp.Status
	w.current.MessageCount = resp.MessageCount
	w.current.ErrorMessage = resp.ErrorMessage
	w.mu.Unlock()

	switch resp.Status {
	case DownloadCompleted, DownloadFailed:
		s.metrics.IncDownload(resp.Status)
		if err := s.events.PublishEvent("import.download.finished", map[string]interface{}{
			"download_id":   w.id,
			"status":        resp.Status,
			"message_count": resp.MessageCount,
		}); err != nil {
			s.logger.Warn("Failed to publish download event", logger.Field{Key: "error", Value: err.Error()})
		}
		s.logger.Info("History download finished",
			logger.Field{Key: "download_id", Value: w.id},
			logger.Field{Key: "status", Value: resp.Status},
			logger.Field{Key: "messages", Value: resp.MessageCount},
		)
		return true, nil
	default:
		return false, nil
	}
}
