package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/harvesthub/internal/common"
	"github.com/dmitrijs2005/harvesthub/internal/dbx"
	"github.com/dmitrijs2005/harvesthub/internal/logging"
	"github.com/dmitrijs2005/harvesthub/internal/server/auth"
	"github.com/dmitrijs2005/harvesthub/internal/server/config"
	"github.com/dmitrijs2005/harvesthub/internal/server/models"
	"github.com/dmitrijs2005/harvesthub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/harvesthub/internal/server/tokenstore"
)

type CodeValidator interface {
	Validate(code, secret string) bool
}

// VerificationService confirms account email addresses from the link sent
// at registration.
type VerificationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       tokenstore.Store
	signer      *auth.Signer
	codes       CodeValidator
	log         logging.Logger
	timeout     time.Duration
}

func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, store tokenstore.Store,
	signer *auth.Signer, codes CodeValidator, log logging.Logger, cfg *config.Config) *VerificationService {
	return &VerificationService{
		db:          db,
		repomanager: m,
		store:       store,
		signer:      signer,
		codes:       codes,
		log:         log,
		timeout:     cfg.ExternalCallTimeout,
	}
}

// Verify marks the account named by token as verified. Verifying an
// already verified account succeeds without changes. Accounts with a
// confirmed or pending 2FA secret must also present a valid code; a pending
// secret becomes confirmed on success.
//
// Every token or code problem yields the same invalid-or-expired error.
func (s *VerificationService) Verify(ctx context.Context, token, code string) error {
	claims, err := s.signer.Parse(token, auth.PurposeEmailVerification)
	if err != nil {
		return errInvalidToken
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	account, err := s.repomanager.Accounts(s.db).GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return errInvalidToken
		}
		return infrastructure("load account", err)
	}

	if !strings.EqualFold(account.Email, claims.Email) {
		return errInvalidToken
	}

	if account.EmailVerified {
		return nil
	}

	secret, pending, err := s.twoFactorSecret(ctx, account)
	if err != nil {
		return err
	}
	if secret != "" && !s.codes.Validate(strings.TrimSpace(code), secret) {
		return errInvalidToken
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		accounts := s.repomanager.Accounts(tx)
		if pending {
			if err := accounts.ConfirmTwoFactor(ctx, account.ID, secret); err != nil {
				return err
			}
		}
		return accounts.MarkEmailVerified(ctx, account.ID)
	})
	if err != nil {
		return infrastructure("mark email verified", err)
	}

	if pending {
		if err := s.store.Delete(ctx, tokenstore.TwoFactorKey(account.ID)); err != nil {
			s.log.Warn(ctx, "failed to remove pending 2fa secret", "account_id", account.ID, "error", err)
		}
	}

	s.log.Info(ctx, "email verified", "account_id", account.ID)
	return nil
}

// twoFactorSecret returns the secret the code must match, if any, and
// whether it is still pending confirmation.
func (s *VerificationService) twoFactorSecret(ctx context.Context, account *models.Account) (string, bool, error) {
	if account.TwoFactorEnabled && account.TwoFactorSecret != nil && *account.TwoFactorSecret != "" {
		return *account.TwoFactorSecret, false, nil
	}

	secret, err := s.store.Get(ctx, tokenstore.TwoFactorKey(account.ID))
	if err != nil {
		if errors.Is(err, tokenstore.ErrNotFound) {
			return "", false, nil
		}
		return "", false, infrastructure("load pending 2fa secret", err)
	}
	return secret, true, nil
}
