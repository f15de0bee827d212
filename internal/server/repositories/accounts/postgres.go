package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/harvesthub/internal/common"
	"github.com/dmitrijs2005/harvesthub/internal/dbx"
	"github.com/dmitrijs2005/harvesthub/internal/server/models"
)

// emailConstraint is the unique index on lower(email).
const emailConstraint = "accounts_email_lower_key"

const selectColumns = `id, email, first_name, last_name, password_hash, account_type,
		business_name, registration_number, business_document, phone_number, date_of_birth,
		email_verified, two_factor_enabled, two_factor_secret, created_at, updated_at`

// PostgresRepository implements Repository over dbx.DBTX, so it works both
// with *sql.DB and inside a transaction.
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, a *models.Account) error {
	query := `
		INSERT INTO accounts (id, email, first_name, last_name, password_hash, account_type,
			business_name, registration_number, business_document, phone_number, date_of_birth,
			email_verified, two_factor_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query,
		a.ID, a.Email, a.FirstName, a.LastName, a.PasswordHash, string(a.AccountType),
		a.BusinessName, a.RegistrationNumber, a.BusinessDocument, a.PhoneNumber, a.DateOfBirth,
		a.EmailVerified, a.TwoFactorEnabled,
	).Scan(&a.CreatedAt, &a.UpdatedAt)

	if err != nil {
		if dbx.IsUniqueViolation(err, emailConstraint) {
			return common.ErrDuplicateEmail
		}
		return fmt.Errorf("db error: %w", err)
	}

	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*models.Account, error) {
	query := `SELECT ` + selectColumns + `
		FROM accounts
		WHERE id = $1
	`
	return r.getOne(ctx, query, id)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg string) (*models.Account, error) {
	a := &models.Account{}
	var accountType string

	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Email, &a.FirstName, &a.LastName, &a.PasswordHash, &accountType,
		&a.BusinessName, &a.RegistrationNumber, &a.BusinessDocument, &a.PhoneNumber, &a.DateOfBirth,
		&a.EmailVerified, &a.TwoFactorEnabled, &a.TwoFactorSecret, &a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	a.AccountType = models.AccountType(accountType)
	return a, nil
}

func (r *PostgresRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM accounts WHERE lower(email) = lower($1))
	`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, email).Scan(&exists); err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return exists, nil
}

func (r *PostgresRepository) MarkEmailVerified(ctx context.Context, id string) error {
	query := `
		UPDATE accounts SET email_verified = TRUE, updated_at = now()
		WHERE id = $1
	`
	return r.updateOne(ctx, query, id)
}

func (r *PostgresRepository) ConfirmTwoFactor(ctx context.Context, id string, secret string) error {
	query := `
		UPDATE accounts SET two_factor_secret = $2, two_factor_enabled = TRUE, updated_at = now()
		WHERE id = $1
	`
	return r.updateOne(ctx, query, id, secret)
}

func (r *PostgresRepository) updateOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
