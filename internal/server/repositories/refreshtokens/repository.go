// Package refreshtokens declares the repository contract for persisted
// refresh tokens and its PostgreSQL implementation.
package refreshtokens

import (
	"context"
	"time"

	"github.com/dmitrijs2005/harvesthub/internal/server/models"
)

// Repository issues, looks up and revokes refresh tokens.
type Repository interface {
	// Create stores token for accountID, expiring at now+validity, and
	// returns the stored row.
	Create(ctx context.Context, accountID string, token string, validity time.Duration) (*models.RefreshToken, error)

	// Find returns common.ErrorNotFound when the token is absent.
	Find(ctx context.Context, token string) (*models.RefreshToken, error)

	// Delete removes a token and returns common.ErrorNotFound when no row
	// matched, so a token can only be consumed once.
	Delete(ctx context.Context, token string) error
}
