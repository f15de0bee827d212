// Package tokenstore keeps short-lived security state (CSRF tokens,
// rate-limit and failed-attempt counters, pending 2FA secrets) in a
// key-value cache with per-key expiry.
//
// A key that has expired behaves exactly like one that was never written.
// Every backend failure wraps common.ErrInfrastructure so that callers can
// fail closed.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/harvesthub/internal/common"
)

var (
	// ErrNotFound is returned by Get for absent or expired keys.
	ErrNotFound = errors.New("token store: key not found")
	// ErrInvalidTTL is returned when a non-positive TTL is supplied.
	ErrInvalidTTL = errors.New("token store: ttl must be positive")
)

// Store is the ephemeral key-value store shared by all request handlers.
type Store interface {
	// Put sets key to value, replacing any previous value and TTL.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	Get(ctx context.Context, key string) (string, error)

	// IncrementWithExpiry atomically increments the counter at key and
	// returns the new value. The TTL is applied only when the increment
	// creates the key, so the window is fixed from the first hit.
	IncrementWithExpiry(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	Ping(ctx context.Context) error

	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: token store %s: %w", common.ErrInfrastructure, op, err)
}

func checkTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return ErrInvalidTTL
	}
	return nil
}
