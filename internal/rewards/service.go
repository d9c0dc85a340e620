package rewards

import (
	"context"
	"fmt"

	"github.com/accordlabs/accord-gateway/pkg/httpclient"
	"github.com/accordlabs/accord-gateway/pkg/logger"
)

// Streak is the user's conversation streak.
type Streak struct {
	CurrentStreak int    `json:"current_streak"`
	LongestStreak int    `json:"longest_streak"`
	LastActivity  string `json:"last_activity,omitempty"`
}

// Challenge is one time-boxed challenge.
type Challenge struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Progress  int    `json:"progress"`
	Target    int    `json:"target"`
	Completed bool   `json:"completed"`
}

// Achievement is one unlockable badge.
type Achievement struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Unlocked   bool   `json:"unlocked"`
	UnlockedAt string `json:"unlocked_at,omitempty"`
}

type challengesResponse struct {
	Challenges []Challenge `json:"challenges"`
}

type achievementsResponse struct {
	Achievements []Achievement `json:"achievements"`
}

// Service reads the gamification surface. All progression logic lives
// in the backend; the gateway just shapes it for the UI.
type Service struct {
	api    *httpclient.Client
	logger logger.Logger
}

func NewService(api *httpclient.Client, log logger.Logger) *Service {
	return &Service{api: api, logger: log}
}

func (s *Service) Streak(ctx context.Context) (Streak, error) {
	var streak Streak
	if err := s.api.Get(ctx, "/gamification/streak", &streak); err != nil {
		return Streak{}, fmt.Errorf("fetch streak: %w", err)
	}
	return streak, nil
}

func (s *Service) Challenges(ctx context.Context) ([]Challenge, error) {
	var resp challengesResponse
	if err := s.api.Get(ctx, "/gamification/challenges", &resp); err != nil {
		return nil, fmt.Errorf("fetch challenges: %w", err)
	}
	return resp.Challenges, nil
}

func (s *Service) Achievements(ctx context.Context) ([]Achievement, error) {
	var resp achievementsResponse
	if err := s.api.Get(ctx, "/gamification/achievements", &resp); err != nil {
		return nil, fmt.Errorf("fetch achievements: %w", err)
	}
	return resp.Achievements, nil
}
