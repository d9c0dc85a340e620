package rooms

import (
	"context"
	"fmt"

	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
	"github.com/accordlabs/accord-gateway/pkg/messaging"
)

// Room is one mediation room.
type Room struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Topic      string `json:"topic,omitempty"`
	Status     string `json:"status,omitempty"`
	InviteCode string `json:"invite_code,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
}

// CreateRequest is the room-creation payload.
type CreateRequest struct {
	Name  string `json:"name"`
	Topic string `json:"topic,omitempty"`
	Solo  bool   `json:"solo,omitempty"`
}

type listResponse struct {
	Rooms []Room `json:"rooms"`
}

// Service proxies the mediation-room surface. Conversation content
// never touches the gateway; it only creates, lists and joins rooms and
// relays signaling payloads.
type Service struct {
	api    *httpclient.Client
	logger logger.Logger
	events messaging.Publisher
}

func NewService(api *httpclient.Client, events messaging.Publisher, log logger.Logger) *Service {
	if events == nil {
		events = messaging.NopPublisher{}
	}
	return &Service{api: api, logger: log, events: events}
}

// Create opens a new room.
func (s *Service) Create(ctx context.Context, req CreateRequest) (Room, error) {
	var room Room
	if err := s.api.Post(ctx, "/rooms/", req, &room); err != nil {
		return Room{}, fmt.Errorf("create room: %w", err)
	}

	s.logger.Info("Room created", logger.Field{Key: "room_id", Value: room.ID})
	if err := s.events.PublishEvent("rooms.created", map[string]string{"room_id": room.ID}); err != nil {
		s.logger.Warn("Failed to publish room event", logger.Field{Key: "error", Value: err.Error()})
	}
	return room, nil
}

// List returns the user's rooms.
func (s *Service) List(ctx context.Context) ([]Room, error) {
	var resp listResponse
	if err := s.api.Get(ctx, "/rooms/", &resp); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return resp.Rooms, nil
}

// Join enters a room, usually via an invite.
func (s *Service) Join(ctx context.Context, roomID string) (Room, error) {
	var room Room
	if err := s.api.Post(ctx, "/rooms/"+roomID+"/join", nil, &room); err != nil {
		return Room{}, fmt.Errorf("join room: %w", err)
	}
	return room, nil
}

// Signal relays an opaque signaling payload to the room.
func (s *Service) Signal(ctx context.Context, roomID string, payload map[string]interface{}) error {
	if err := s.api.Post(ctx, "/rooms/"+roomID+"/signal", payload, nil); err != nil {
		return fmt.Errorf("signal room: %w", err)
	}
	return nil
}
