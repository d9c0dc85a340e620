package importer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/accordlabs/accord-gateway/internal/metrics"
	"github.com/accordlabs/accord-gateway/pkg/cache"
	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/messaging"
)

// PreviewCache caches chat previews so re-opening a chat in the picker
// does not re-fetch history. Satisfied by cache.RedisCache.
type PreviewCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
}

// Config tunes the import service.
type Config struct {
	ContactPageSize      int
	PreviewLimit         int
	PreviewTTL           time.Duration
	DownloadPollInterval time.Duration
}

func (c Config) withDefaults() Config {
	if c.ContactPageSize <= 0 {
		c.ContactPageSize = 50
	}
	if c.PreviewLimit <= 0 {
		c.PreviewLimit = 20
	}
	if c.PreviewTTL <= 0 {
		c.PreviewTTL = 10 * time.Minute
	}
	if c.DownloadPollInterval <= 0 {
		c.DownloadPollInterval = 3 * time.Second
	}
	return c
}

// Service wraps the Telegram chat-history import surface: connection
// status, the paginated contact picker, message previews and history
// downloads.
type Service struct {
	api     *httpclient.Client
	cache   PreviewCache
	cfg     Config
	logger  logger.Logger
	events  messaging.Publisher
	metrics *metrics.FlowMetrics
}

func NewService(api *httpclient.Client, previews PreviewCache, cfg Config, events messaging.Publisher, m *metrics.FlowMetrics, log logger.Logger) *Service {
	if events == nil {
		events = messaging.NopPublisher{}
	}
	return &Service{
		api:     api,
		cache:   previews,
		cfg:     cfg.withDefaults(),
		logger:  log,
		events:  events,
		metrics: m,
	}
}

// The backend answers 403 on /telegram routes when no account is
// linked.
func asNotConnected(err error) error {
	var apiErr *httpclient.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusForbidden {
		return ErrNotConnected
	}
	return err
}

// Connected reports whether a Telegram account is linked.
func (s *Service) Connected(ctx context.Context) (bool, error) {
	var resp connectionStatusResponse
	if err := s.api.Get(ctx, "/telegram/status", &resp); err != nil {
		return false, fmt.Errorf("check connection: %w", err)
	}
	return resp.Connected, nil
}

// Contacts fetches one picker page. When the backend sends an explicit
// has_more flag it is authoritative; older backends omit it, and a full
// page is then treated as "probably more".
func (s *Service) Contacts(ctx context.Context, folder string, offset int) (ContactPage, error) {
	limit := s.cfg.ContactPageSize
	path := "/telegram/contacts?offset=" + strconv.Itoa(offset) + "&limit=" + strconv.Itoa(limit)
	if folder != "" {
		path += "&folder_id=" + folder
	}

	var resp contactsResponse
	if err := s.api.Get(ctx, path, &resp); err != nil {
		return ContactPage{}, fmt.Errorf("fetch contacts: %w", asNotConnected(err))
	}

	page := ContactPage{
		Contacts: resp.Contacts,
		Offset:   offset,
	}
	if resp.HasMore != nil {
		page.HasMore = *resp.HasMore
	} else {
		page.HasMore = len(resp.Contacts) == limit
	}
	return page, nil
}

// Preview returns the most recent messages of a chat, newest first,
// capped at the preview limit. Results are cached; a cache failure is
// logged and the backend is asked instead.
func (s *Service) Preview(ctx context.Context, chatID string) ([]Message, error) {
	key := "preview:" + chatID

	if s.cache != nil {
		var cached []Message
		err := s.cache.GetJSON(ctx, key, &cached)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.logger.Warn("Preview cache read failed",
				logger.Field{Key: "chat_id", Value: chatID},
				logger.Field{Key: "error", Value: err.Error()},
			)
		}
	}

	var resp previewResponse
	path := "/telegram/messages/preview/" + chatID + "?limit=" + strconv.Itoa(s.cfg.PreviewLimit)
	if err := s.api.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("fetch preview: %w", asNotConnected(err))
	}

	msgs := resp.Messages
	if len(msgs) > s.cfg.PreviewLimit {
		msgs = msgs[:s.cfg.PreviewLimit]
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, msgs, s.cfg.PreviewTTL); err != nil {
			s.logger.Warn("Preview cache write failed",
				logger.Field{Key: "chat_id", Value: chatID},
				logger.Field{Key: "error", Value: err.Error()},
			)
		}
	}
	return msgs, nil
}

// StartDownload submits a history-download job and returns a watcher
// already polling its progress. A zero DateRange downloads the full
// history.
func (s *Service) StartDownload(ctx context.Context, chatIDs []int64, dates DateRange) (*DownloadWatcher, error) {
	if len(chatIDs) == 0 {
		return nil, ErrNoChatsSelected
	}

	req := downloadCreateRequest{
		ChatIDs:  chatIDs,
		DateFrom: dates.From,
		DateTo:   dates.To,
	}
	var resp downloadCreateResponse
	if err := s.api.Post(ctx, "/telegram/download", req, &resp); err != nil {
		return nil, fmt.Errorf("start download: %w", asNotConnected(err))
	}

	s.logger.Info("History download started",
		logger.Field{Key: "download_id", Value: resp.DownloadID},
		logger.Field{Key: "chats", Value: len(chatIDs)},
		logger.Field{Key: "bounded", Value: !dates.IsZero()},
	)
	if err := s.events.PublishEvent("import.download.started", map[string]interface{}{
		"download_id": resp.DownloadID,
		"chat_count":  len(chatIDs),
	}); err != nil {
		s.logger.Warn("Failed to publish download event", logger.Field{Key: "error", Value: err.Error()})
	}

	return s.watch(resp.DownloadID, chatIDs), nil
}

// Downloads lists the user's past and running downloads.
func (s *Service) Downloads(ctx context.Context) ([]Download, error) {
	var resp downloadsResponse
	if err := s.api.Get(ctx, "/telegram/downloads", &resp); err != nil {
		return nil, fmt.Errorf("list downloads: %w", err)
	}
	return resp.Downloads, nil
}

// Disconnect unlinks the Telegram account.
func (s *Service) Disconnect(ctx context.Context) error {
	if err := s.api.Delete(ctx, "/telegram/disconnect", nil); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	s.logger.Info("Telegram account disconnected")
	return nil
}
