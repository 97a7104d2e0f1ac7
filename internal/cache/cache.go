// Package cache defines the key-value store used for token revocation.
package cache

import (
	"context"
	"errors"
	"time"
)

// Returned by Get when the key is absent or already expired
var ErrMiss = errors.New("cache: key not found")

type Cache interface {
	// Store value under key for ttl. Zero ttl means no expiration
	Set(ctx context.Context, key string, value string, ttl time.Duration) error

	// Read value by key. Returns ErrMiss when the key is not there
	Get(ctx context.Context, key string) (string, error)
}
