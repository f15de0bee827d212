// Package accounts declares the account repository contract and its
// PostgreSQL implementation.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/harvesthub/internal/server/models"
)

// Repository persists marketplace accounts. Email comparisons are
// case-insensitive everywhere.
type Repository interface {
	// Create inserts a new account. A second account whose email differs
	// only by case fails with common.ErrDuplicateEmail.
	Create(ctx context.Context, account *models.Account) error

	// GetByID returns common.ErrorNotFound when no account has that id.
	GetByID(ctx context.Context, id string) (*models.Account, error)

	EmailExists(ctx context.Context, email string) (bool, error)

	// MarkEmailVerified sets email_verified. Verifying twice is not an error.
	MarkEmailVerified(ctx context.Context, id string) error

	// ConfirmTwoFactor stores a confirmed TOTP secret and enables 2FA.
	ConfirmTwoFactor(ctx context.Context, id string, secret string) error
}
