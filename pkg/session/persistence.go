package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/accordlabs/accord-gateway/pkg/cache"
	"github.com/accordlabs/accord-gateway/pkg/crypto"
)

// Persistence writes the session token to redis so a gateway restart
// doesn't log the user out. Tokens are encrypted at rest.
type Persistence struct {
	cache *cache.RedisCache
	enc   *crypto.Encryptor
	key   string
	ttl   time.Duration
}

func NewPersistence(c *cache.RedisCache, enc *crypto.Encryptor, key string, ttl time.Duration) *Persistence {
	if key == "" {
		key = "accord:session_token"
	}
	return &Persistence{cache: c, enc: enc, key: key, ttl: ttl}
}

func (p *Persistence) Save(ctx context.Context, token string) error {
	sealed, err := p.enc.Encrypt(token)
	if err != nil {
		return fmt.Errorf("failed to seal token: %w", err)
	}
	return p.cache.Set(ctx, p.key, sealed, p.ttl)
}

func (p *Persistence) Load(ctx context.Context) (string, error) {
	sealed, err := p.cache.Get(ctx, p.key)
	if err != nil {
		return "", err
	}
	token, err := p.enc.Decrypt(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to unseal token: %w", err)
	}
	return token, nil
}

func (p *Persistence) Drop(ctx context.Context) error {
	return p.cache.Delete(ctx, p.key)
}

// Restore loads a persisted token into the store, if one exists.
func (p *Persistence) Restore(ctx context.Context, store *Store) error {
	token, err := p.Load(ctx)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil
	}
	if err != nil {
		return err
	}
	store.Set(token)
	return nil
}

// Attach subscribes the persistence layer to the store: every Set is
// written through, every Clear drops the key. Errors are reported to
// onErr since observers have no return path.
func (p *Persistence) Attach(store *Store, onErr func(error)) func() {
	return store.Subscribe(func(token string) {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()

		var err error
		if token == "" {
			err = p.Drop(ctx)
		} else {
			err = p.Save(ctx, token)
		}
		if err != nil && onErr != nil {
			onErr(err)
		}
	})
}
