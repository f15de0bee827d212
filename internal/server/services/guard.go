package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/harvesthub/internal/server/config"
	"github.com/dmitrijs2005/harvesthub/internal/server/tokenstore"
)

// Guard enforces the per-client request checks backed by the token store:
// CSRF tokens, the request rate limit and the failed-attempt lockout.
// Every check fails closed when the store is unavailable.
type Guard struct {
	store tokenstore.Store

	csrfTokenTTL         time.Duration
	rateLimitMax         int64
	rateLimitWindow      time.Duration
	failedAttemptsMax    int64
	failedAttemptsWindow time.Duration
	timeout              time.Duration

	newToken func() string
}

func NewGuard(store tokenstore.Store, cfg *config.Config) *Guard {
	return &Guard{
		store:                store,
		csrfTokenTTL:         cfg.CSRFTokenTTL,
		rateLimitMax:         cfg.RateLimitMax,
		rateLimitWindow:      cfg.RateLimitWindow,
		failedAttemptsMax:    cfg.FailedAttemptsMax,
		failedAttemptsWindow: cfg.FailedAttemptsWindow,
		timeout:              cfg.ExternalCallTimeout,
		newToken:             uuid.NewString,
	}
}

// IssueCSRFToken stores a fresh token for ip, replacing any previous one.
func (g *Guard) IssueCSRFToken(ctx context.Context, ip string) (string, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	token := g.newToken()
	if err := g.store.Put(ctx, tokenstore.CSRFKey(ip), token, g.csrfTokenTTL); err != nil {
		return "", infrastructure("issue csrf token", err)
	}
	return token, nil
}

// CheckCSRF accepts token only if it equals the unexpired token issued to ip.
// Tokens stay valid until they expire.
func (g *Guard) CheckCSRF(ctx context.Context, ip, token string) error {
	if token == "" {
		return errInvalidCSRF
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	stored, err := g.store.Get(ctx, tokenstore.CSRFKey(ip))
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return errInvalidCSRF
		}
		return infrastructure("check csrf token", err)
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return errInvalidCSRF
	}
	return nil
}

// CheckRateLimit counts a request from ip and rejects it once the window
// holds more than the allowed number.
func (g *Guard) CheckRateLimit(ctx context.Context, ip string) error {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	n, err := g.store.IncrementWithExpiry(ctx, tokenstore.RateLimitKey(ip), g.rateLimitWindow)
	if err != nil {
		return infrastructure("rate limit", err)
	}
	if n > g.rateLimitMax {
		return errRateLimited
	}
	return nil
}

// CheckLockout rejects ip/email pairs that have reached the failed-attempt
// limit within the lockout window.
func (g *Guard) CheckLockout(ctx context.Context, ip, email string) error {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	v, err := g.store.Get(ctx, tokenstore.FailedAttemptsKey(ip, email))
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return nil
		}
		return infrastructure("check failed attempts", err)
	}

	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return infrastructure("check failed attempts", err)
	}
	if n >= g.failedAttemptsMax {
		return errLockedOut
	}
	return nil
}

// RecordFailure counts a rejected attempt for ip/email.
func (g *Guard) RecordFailure(ctx context.Context, ip, email string) error {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	if _, err := g.store.IncrementWithExpiry(ctx, tokenstore.FailedAttemptsKey(ip, email), g.failedAttemptsWindow); err != nil {
		return infrastructure("record failed attempt", err)
	}
	return nil
}
