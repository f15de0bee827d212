package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/harvesthub/internal/common"
	"github.com/dmitrijs2005/harvesthub/internal/logging"
	"github.com/dmitrijs2005/harvesthub/internal/server/auth"
	"github.com/dmitrijs2005/harvesthub/internal/server/captcha"
	"github.com/dmitrijs2005/harvesthub/internal/server/config"
	"github.com/dmitrijs2005/harvesthub/internal/server/mailer"
	"github.com/dmitrijs2005/harvesthub/internal/server/models"
	"github.com/dmitrijs2005/harvesthub/internal/server/passwords"
	"github.com/dmitrijs2005/harvesthub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/harvesthub/internal/server/tokenstore"
	"github.com/dmitrijs2005/harvesthub/internal/server/twofactor"
	"github.com/dmitrijs2005/harvesthub/internal/server/validation"
)

// Warnings returned when an account was created but a follow-up step failed.
const (
	WarningTwoFactor         = "Two-factor authentication could not be set up"
	WarningVerificationEmail = "Verification email could not be sent"
	WarningAccessToken       = "Access token could not be issued"
	WarningRefreshToken      = "Refresh token could not be issued"
)

type InputValidator interface {
	Validate(p validation.Payload) (validation.AccountInput, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type SecretGenerator interface {
	Generate(accountName string) (*twofactor.Secret, error)
}

// RegisterRequest is one registration attempt. BearerToken is the raw
// Authorization header value and may be empty.
type RegisterRequest struct {
	IP          string
	CSRFToken   string
	BearerToken string
	Payload     validation.Payload
}

// Registration is the outcome of a successful registration. Empty token
// fields are reported in Warnings.
type Registration struct {
	UserID          string
	AccessToken     string
	RefreshToken    string
	TwoFactorSecret string
	TwoFactorURI    string
	Warnings        []string
}

// RegistrationDeps groups the collaborators of RegistrationService.
type RegistrationDeps struct {
	Store              tokenstore.Store
	Guard              *Guard
	Tokens             *TokenService
	Captcha            captcha.Verifier
	Validator          InputValidator
	Hasher             PasswordHasher
	TwoFactor          SecretGenerator
	Mailer             mailer.Sender
	VerificationSigner *auth.Signer
	Logger             logging.Logger
}

// RegistrationService runs the account registration pipeline. Steps run in
// a fixed order and the first failing step decides the error:
//
//  1. rate limit and failed-attempt lockout
//  2. CSRF token (and the bearer token, when one is sent)
//  3. CAPTCHA
//  4. field validation
//  5. password strength
//  6. email uniqueness
//  7. password hashing and persistence
//  8. side effects: 2FA secret, verification email, access and refresh tokens
//
// Failures of steps 2-6 count towards the lockout. Side-effect failures
// never undo the stored account; they are reported as warnings.
type RegistrationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	deps        RegistrationDeps

	publicBaseURL             string
	verificationTokenValidity time.Duration
	twoFactorPendingTTL       time.Duration
	timeout                   time.Duration

	newID func() string
}

func NewRegistrationService(db *sql.DB, m repomanager.RepositoryManager, deps RegistrationDeps, cfg *config.Config) *RegistrationService {
	return &RegistrationService{
		db:                        db,
		repomanager:               m,
		deps:                      deps,
		publicBaseURL:             cfg.PublicBaseURL,
		verificationTokenValidity: cfg.VerificationTokenValidityDuration,
		twoFactorPendingTTL:       cfg.TwoFactorPendingTTL,
		timeout:                   cfg.ExternalCallTimeout,
		newID:                     uuid.NewString,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *RegistrationService) Register(ctx context.Context, req RegisterRequest) (*Registration, error) {
	email := normalizeEmail(req.Payload.Email)

	if err := s.deps.Guard.CheckRateLimit(ctx, req.IP); err != nil {
		return nil, err
	}
	if err := s.deps.Guard.CheckLockout(ctx, req.IP, email); err != nil {
		return nil, err
	}

	input, err := s.admit(ctx, req)
	if err == nil {
		var account *models.Account
		account, err = s.persist(ctx, input)
		if err == nil {
			return s.complete(ctx, account, input), nil
		}
	}

	if isClientFailure(err) {
		if ferr := s.deps.Guard.RecordFailure(ctx, req.IP, email); ferr != nil {
			s.deps.Logger.Warn(ctx, "failed to record failed attempt", "ip", req.IP, "error", ferr)
		}
	}
	return nil, err
}

// admit runs the checks that must pass before anything is written.
func (s *RegistrationService) admit(ctx context.Context, req RegisterRequest) (validation.AccountInput, error) {
	if err := s.deps.Guard.CheckCSRF(ctx, req.IP, req.CSRFToken); err != nil {
		return nil, err
	}

	if req.BearerToken != "" {
		if _, err := s.deps.Tokens.Authenticate(req.BearerToken); err != nil {
			return nil, err
		}
	}

	if err := s.checkCaptcha(ctx, req.Payload.RecaptchaToken, req.IP); err != nil {
		return nil, err
	}

	input, err := s.deps.Validator.Validate(req.Payload)
	if err != nil {
		return nil, err
	}

	if err := passwords.CheckStrength(input.Base().Password); err != nil {
		return nil, err
	}

	exists, err := s.emailExists(ctx, input.Base().Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errDuplicateEmail
	}

	return input, nil
}

func (s *RegistrationService) checkCaptcha(ctx context.Context, token, ip string) error {
	if strings.TrimSpace(token) == "" {
		return errCaptchaFailed
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.deps.Captcha.Verify(ctx, token, ip)
	if err != nil {
		return infrastructure("verify captcha", err)
	}
	if !ok {
		return errCaptchaFailed
	}
	return nil
}

func (s *RegistrationService) emailExists(ctx context.Context, email string) (bool, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	exists, err := s.repomanager.Accounts(s.db).EmailExists(ctx, email)
	if err != nil {
		return false, infrastructure("check email", err)
	}
	return exists, nil
}

func (s *RegistrationService) persist(ctx context.Context, input validation.AccountInput) (*models.Account, error) {
	hash, err := s.deps.Hasher.Hash(input.Base().Password)
	if err != nil {
		return nil, infrastructure("hash password", err)
	}

	account := newAccount(s.newID(), hash, input)

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.repomanager.Accounts(s.db).Create(ctx, account); err != nil {
		if errors.Is(err, common.ErrDuplicateEmail) {
			return nil, errDuplicateEmail
		}
		return nil, infrastructure("create account", err)
	}
	return account, nil
}

func newAccount(id, passwordHash string, input validation.AccountInput) *models.Account {
	base := input.Base()
	account := &models.Account{
		ID:           id,
		Email:        base.Email,
		FirstName:    base.FirstName,
		LastName:     base.LastName,
		PasswordHash: passwordHash,
		AccountType:  input.Type(),
	}

	switch v := input.(type) {
	case validation.Individual:
		phone, dob := v.PhoneNumber, v.DateOfBirth
		account.PhoneNumber = &phone
		account.DateOfBirth = &dob
	case validation.Business:
		name, number := v.BusinessName, v.RegistrationNumber
		account.BusinessName = &name
		account.RegistrationNumber = &number
		account.BusinessDocument = v.BusinessDocument
	}

	return account
}

// complete runs the side effects of a stored registration.
func (s *RegistrationService) complete(ctx context.Context, account *models.Account, input validation.AccountInput) *Registration {
	log := s.deps.Logger.With("account_id", account.ID)
	res := &Registration{UserID: account.ID}

	if input.Base().Enable2FA {
		secret, err := s.provisionTwoFactor(ctx, account)
		if err != nil {
			log.Error(ctx, "two-factor provisioning failed", "error", err)
			res.Warnings = append(res.Warnings, WarningTwoFactor)
		} else {
			res.TwoFactorSecret = secret.Base32
			res.TwoFactorURI = secret.URL
		}
	}

	if err := s.sendVerificationEmail(ctx, account); err != nil {
		log.Error(ctx, "verification email failed", "error", err)
		res.Warnings = append(res.Warnings, WarningVerificationEmail)
	}

	access, err := s.deps.Tokens.GenerateAccessToken(account.ID)
	if err != nil {
		log.Error(ctx, "access token generation failed", "error", err)
		res.Warnings = append(res.Warnings, WarningAccessToken)
	}
	res.AccessToken = access

	refresh, err := s.deps.Tokens.IssueRefreshToken(ctx, account.ID)
	if err != nil {
		log.Error(ctx, "refresh token issue failed", "error", err)
		res.Warnings = append(res.Warnings, WarningRefreshToken)
	}
	res.RefreshToken = refresh

	log.Info(ctx, "account registered", "account_type", string(account.AccountType))
	return res
}

// provisionTwoFactor generates a TOTP secret and keeps it pending until the
// first successful verification confirms it.
func (s *RegistrationService) provisionTwoFactor(ctx context.Context, account *models.Account) (*twofactor.Secret, error) {
	secret, err := s.deps.TwoFactor.Generate(account.Email)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.deps.Store.Put(ctx, tokenstore.TwoFactorKey(account.ID), secret.Base32, s.twoFactorPendingTTL); err != nil {
		return nil, err
	}
	return secret, nil
}

func (s *RegistrationService) sendVerificationEmail(ctx context.Context, account *models.Account) error {
	token, err := s.deps.VerificationSigner.GenerateVerificationToken(account.ID, account.Email, s.verificationTokenValidity)
	if err != nil {
		return err
	}

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	link := mailer.VerificationLink(s.publicBaseURL, token)
	return s.deps.Mailer.Send(ctx, mailer.VerificationEmail(account.Email, link))
}

// EmailAvailability is the answer to an email availability check.
type EmailAvailability struct {
	Available bool
	Message   string
}

// CheckEmail reports whether email can still be registered. Comparison is
// case-insensitive.
func (s *RegistrationService) CheckEmail(ctx context.Context, email string) (*EmailAvailability, error) {
	email = normalizeEmail(email)
	if email == "" {
		return nil, errEmailRequired
	}

	exists, err := s.emailExists(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return &EmailAvailability{Available: false, Message: "Email already exists"}, nil
	}
	return &EmailAvailability{Available: true, Message: "Email is available"}, nil
}
