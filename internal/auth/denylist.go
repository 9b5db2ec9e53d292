package auth

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist remembers revoked token ids until they would have expired.
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	Revoked(ctx context.Context, tokenID string) (bool, error)
}

// RedisDenylist stores revoked ids as expiring keys.
type RedisDenylist struct {
	client *redis.Client
	prefix string
}

// NewRedisDenylist builds a denylist on an existing client.
func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client, prefix: "studenttracker:revoked:"}
}

// Revoke marks tokenID revoked; tokens already expired are ignored.
func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.prefix+tokenID, 1, ttl).Err()
}

// Revoked reports whether tokenID was revoked.
func (d *RedisDenylist) Revoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
