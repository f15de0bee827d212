package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/dmitrijs2005/harvesthub/internal/common"
	"github.com/dmitrijs2005/harvesthub/internal/dbx"
	"github.com/dmitrijs2005/harvesthub/internal/server/auth"
	"github.com/dmitrijs2005/harvesthub/internal/server/config"
	"github.com/dmitrijs2005/harvesthub/internal/server/repositories/repomanager"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// TokenService issues access and refresh tokens and authenticates bearers.
type TokenService struct {
	db                           *sql.DB
	repomanager                  repomanager.RepositoryManager
	signer                       *auth.Signer
	accessTokenValidityDuration  time.Duration
	refreshTokenValidityDuration time.Duration
	timeout                      time.Duration
	now                          func() time.Time
}

func NewTokenService(db *sql.DB, m repomanager.RepositoryManager, signer *auth.Signer, cfg *config.Config) *TokenService {
	return &TokenService{
		db:                           db,
		repomanager:                  m,
		signer:                       signer,
		accessTokenValidityDuration:  cfg.AccessTokenValidityDuration,
		refreshTokenValidityDuration: cfg.RefreshTokenValidityDuration,
		timeout:                      cfg.ExternalCallTimeout,
		now:                          time.Now,
	}
}

func (s *TokenService) GenerateAccessToken(userID string) (string, error) {
	return s.signer.GenerateAccessToken(userID, s.accessTokenValidityDuration)
}

// IssueRefreshToken creates and persists an opaque refresh token for userID.
func (s *TokenService) IssueRefreshToken(ctx context.Context, userID string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()
	return s.issueRefreshToken(ctx, s.db, userID)
}

func (s *TokenService) issueRefreshToken(ctx context.Context, db dbx.DBTX, userID string) (string, error) {
	token, err := common.MakeRandHexString(32)
	if err != nil {
		return "", err
	}

	if _, err := s.repomanager.RefreshTokens(db).Create(ctx, userID, token, s.refreshTokenValidityDuration); err != nil {
		return "", infrastructure("store refresh token", err)
	}
	return token, nil
}

// Authenticate validates an access token taken from an Authorization
// header, with or without its "Bearer " prefix, and returns the user id.
func (s *TokenService) Authenticate(header string) (string, error) {
	token := strings.TrimSpace(header)
	if len(token) >= 7 && strings.EqualFold(token[:7], "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", errAuthToken
	}

	claims, err := s.signer.Parse(token, auth.PurposeAccess)
	if err != nil {
		return "", errAuthToken
	}
	return claims.UserID, nil
}

// RefreshToken exchanges a refresh token for a new pair. The old token is
// revoked in the same transaction that stores the new one.
func (s *TokenService) RefreshToken(ctx context.Context, refreshToken string) (*TokenPair, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	repo := s.repomanager.RefreshTokens(s.db)

	token, err := repo.Find(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, errInvalidToken
		}
		return nil, infrastructure("find refresh token", err)
	}

	if token.Expires.Before(s.now()) {
		if err := repo.Delete(ctx, refreshToken); err != nil && !errors.Is(err, common.ErrorNotFound) {
			return nil, infrastructure("delete refresh token", err)
		}
		return nil, errInvalidToken
	}

	var pair TokenPair

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := s.repomanager.RefreshTokens(tx).Delete(ctx, refreshToken); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return errInvalidToken
			}
			return infrastructure("delete refresh token", err)
		}

		newToken, err := s.issueRefreshToken(ctx, tx, token.AccountID)
		if err != nil {
			return err
		}
		pair.RefreshToken = newToken
		return nil
	})
	if errors.Is(err, common.ErrInvalidOrExpiredToken) {
		return nil, errInvalidToken
	}
	if err != nil {
		return nil, infrastructure("rotate refresh token", err)
	}

	pair.AccessToken, err = s.GenerateAccessToken(token.AccountID)
	if err != nil {
		return nil, infrastructure("generate access token", err)
	}

	return &pair, nil
}
