package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/NordCoder/Gatekeep/internal/domain"
	"github.com/NordCoder/Gatekeep/internal/domain/identity"
)

const keyPrefix = "gatekeep:identity:"

type Config struct {
	Enable   bool          `mapstructure:"enable"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// NewClient connects and pings.
func NewClient(ctx context.Context, cfg Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// cachedIdentity is what goes over the wire. The password hash stays out of redis.
type cachedIdentity struct {
	ID        string    `json:"id"`
	LoginKey  string    `json:"login_key"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IdentityCache keeps short-lived identity snapshots for token verification.
type IdentityCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewIdentityCache(client *redis.Client, ttl time.Duration) *IdentityCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &IdentityCache{client: client, ttl: ttl}
}

// Get returns domain.ErrNotFound on a miss.
func (c *IdentityCache) Get(ctx context.Context, id string) (*identity.Identity, error) {
	data, err := c.client.Get(ctx, keyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis get identity: %w", err)
	}
	var ci cachedIdentity
	if err := json.Unmarshal(data, &ci); err != nil {
		return nil, fmt.Errorf("unmarshal identity: %w", err)
	}
	return &identity.Identity{
		ID:        ci.ID,
		LoginKey:  ci.LoginKey,
		IsActive:  ci.IsActive,
		CreatedAt: ci.CreatedAt,
		UpdatedAt: ci.UpdatedAt,
	}, nil
}

func (c *IdentityCache) Set(ctx context.Context, rec *identity.Identity) error {
	data, err := json.Marshal(cachedIdentity{
		ID:        rec.ID,
		LoginKey:  rec.LoginKey,
		IsActive:  rec.IsActive,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := c.client.Set(ctx, keyPrefix+rec.ID, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set identity: %w", err)
	}
	return nil
}

func (c *IdentityCache) Delete(ctx context.Context, id string) error {
	if err := c.client.Del(ctx, keyPrefix+id).Err(); err != nil {
		return fmt.Errorf("redis del identity: %w", err)
	}
	return nil
}
