package testutil

import (
	"context"
	"fmt"
	"strings"

	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// RedisContainer wraps a throwaway Redis instance for integration
// tests.
type RedisContainer struct {
	container *tcredis.RedisContainer
	Addr      string
}

func NewRedisContainer(ctx context.Context) (*RedisContainer, error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return nil, fmt.Errorf("failed to start redis container: %w", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, fmt.Errorf("failed to resolve redis endpoint: %w", err)
	}

	return &RedisContainer{
		container: container,
		Addr:      strings.TrimPrefix(uri, "redis://"),
	}, nil
}

func (r *RedisContainer) Terminate(ctx context.Context) error {
	return r.container.Terminate(ctx)
}
