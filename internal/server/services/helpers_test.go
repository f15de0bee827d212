package services

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/harvesthub/internal/common"
	"github.com/dmitrijs2005/harvesthub/internal/dbx"
	"github.com/dmitrijs2005/harvesthub/internal/logging"
	"github.com/dmitrijs2005/harvesthub/internal/server/auth"
	"github.com/dmitrijs2005/harvesthub/internal/server/config"
	"github.com/dmitrijs2005/harvesthub/internal/server/mailer"
	"github.com/dmitrijs2005/harvesthub/internal/server/models"
	"github.com/dmitrijs2005/harvesthub/internal/server/passwords"
	accountsrepo "github.com/dmitrijs2005/harvesthub/internal/server/repositories/accounts"
	refreshtokensrepo "github.com/dmitrijs2005/harvesthub/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/harvesthub/internal/server/tokenstore"
	"github.com/dmitrijs2005/harvesthub/internal/server/twofactor"
	"github.com/dmitrijs2005/harvesthub/internal/server/validation"
)

// --- fakes ---

// memAccounts mimics the accounts table, including the unique index on
// lower(email).
type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*models.Account

	existsErr  error
	createErr  error
	markErr    error
	confirmErr error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{byID: map[string]*models.Account{}}
}

func (r *memAccounts) Create(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	for _, existing := range r.byID {
		if strings.EqualFold(existing.Email, a.Email) {
			return common.ErrDuplicateEmail
		}
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.byID[a.ID] = &cp
	return nil
}

func (r *memAccounts) GetByID(_ context.Context, id string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *memAccounts) byEmail(email string) (*models.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.byID {
		if strings.EqualFold(a.Email, email) {
			cp := *a
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *memAccounts) EmailExists(_ context.Context, email string) (bool, error) {
	if r.existsErr != nil {
		return false, r.existsErr
	}
	_, err := r.byEmail(email)
	return err == nil, nil
}

func (r *memAccounts) MarkEmailVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.markErr != nil {
		return r.markErr
	}
	a, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.EmailVerified = true
	return nil
}

func (r *memAccounts) ConfirmTwoFactor(_ context.Context, id string, secret string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.confirmErr != nil {
		return r.confirmErr
	}
	a, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.TwoFactorEnabled = true
	a.TwoFactorSecret = &secret
	return nil
}

func (r *memAccounts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

func (r *memAccounts) only(t *testing.T) *models.Account {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Len(t, r.byID, 1)
	for _, a := range r.byID {
		return a
	}
	return nil
}

type memRefreshTokens struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken

	createErr error
	findErr   error
	delErr    error
}

func newMemRefreshTokens() *memRefreshTokens {
	return &memRefreshTokens{tokens: map[string]*models.RefreshToken{}}
}

func (r *memRefreshTokens) Create(_ context.Context, accountID string, token string, validity time.Duration) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	now := time.Now()
	rt := &models.RefreshToken{AccountID: accountID, Token: token, Expires: now.Add(validity), CreatedAt: now}
	r.tokens[token] = rt
	return rt, nil
}

func (r *memRefreshTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	rt, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return rt, nil
}

func (r *memRefreshTokens) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.delErr != nil {
		return r.delErr
	}
	if _, ok := r.tokens[token]; !ok {
		return common.ErrorNotFound
	}
	delete(r.tokens, token)
	return nil
}

type fakeRepoManager struct {
	a *memAccounts
	r *memRefreshTokens
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error           { return nil }
func (m *fakeRepoManager) Accounts(db dbx.DBTX) accountsrepo.Repository           { return m.a }
func (m *fakeRepoManager) RefreshTokens(db dbx.DBTX) refreshtokensrepo.Repository { return m.r }

type fakeCaptcha struct {
	mu    sync.Mutex
	ok    bool
	err   error
	calls int
}

func (c *fakeCaptcha) Verify(_ context.Context, token, _ string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	if c.err != nil {
		return false, c.err
	}
	return c.ok, nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Email
	err  error
}

func (m *fakeMailer) Send(_ context.Context, e mailer.Email) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, e)
	return nil
}

// permissiveValidator accepts any payload as an individual account.
type permissiveValidator struct{}

func (permissiveValidator) Validate(p validation.Payload) (validation.AccountInput, error) {
	return validation.Individual{
		Common: validation.Common{
			Email:     strings.ToLower(p.Email),
			FirstName: p.FirstName,
			LastName:  p.LastName,
			Password:  p.Password,
		},
		PhoneNumber: p.PhoneNumber,
		DateOfBirth: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

// --- environment ---

type testEnv struct {
	db   *sql.DB
	mock sqlmock.Sqlmock
	mr   *miniredis.Miniredis

	store    tokenstore.Store
	accounts *memAccounts
	refresh  *memRefreshTokens
	rm       *fakeRepoManager
	captcha  *fakeCaptcha
	mail     *fakeMailer
	cfg      *config.Config

	signer       *auth.Signer
	verifySigner *auth.Signer
	twoFactor    *twofactor.Provider

	guard  *Guard
	tokens *TokenService
	reg    *RegistrationService
	ver    *VerificationService
}

func testLogger() logging.Logger {
	return logging.NewZerologLogger(zerolog.Nop())
}

func newTestEnv(t *testing.T, tweak ...func(*config.Config)) *testEnv {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mr := miniredis.RunT(t)
	store, err := tokenstore.NewRedisStore(context.Background(), tokenstore.RedisOptions{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{}
	cfg.LoadDefaults()
	cfg.ExternalCallTimeout = 2 * time.Second
	for _, f := range tweak {
		f(cfg)
	}

	v, err := validation.New()
	require.NoError(t, err)

	env := &testEnv{
		db:           db,
		mock:         mock,
		mr:           mr,
		store:        store,
		accounts:     newMemAccounts(),
		refresh:      newMemRefreshTokens(),
		captcha:      &fakeCaptcha{ok: true},
		mail:         &fakeMailer{},
		cfg:          cfg,
		signer:       auth.NewSigner([]byte(cfg.SecretKey), cfg.TokenIssuer),
		verifySigner: auth.NewSigner([]byte(cfg.VerificationSecretKey), cfg.TokenIssuer),
		twoFactor:    twofactor.NewProvider(cfg.TwoFactorIssuer),
	}
	env.rm = &fakeRepoManager{a: env.accounts, r: env.refresh}
	env.guard = NewGuard(store, cfg)
	env.tokens = NewTokenService(db, env.rm, env.signer, cfg)
	env.reg = NewRegistrationService(db, env.rm, RegistrationDeps{
		Store:              store,
		Guard:              env.guard,
		Tokens:             env.tokens,
		Captcha:            env.captcha,
		Validator:          v,
		Hasher:             passwords.NewHasher(4),
		TwoFactor:          env.twoFactor,
		Mailer:             env.mail,
		VerificationSigner: env.verifySigner,
		Logger:             testLogger(),
	}, cfg)
	env.ver = NewVerificationService(db, env.rm, store, env.verifySigner, env.twoFactor, testLogger(), cfg)

	return env
}

// request builds a registration request from ip carrying a fresh CSRF token.
func (e *testEnv) request(t *testing.T, ip string, p validation.Payload) RegisterRequest {
	t.Helper()
	token, err := e.guard.IssueCSRFToken(context.Background(), ip)
	require.NoError(t, err)
	return RegisterRequest{IP: ip, CSRFToken: token, Payload: p}
}

func individualPayload(email string) validation.Payload {
	return validation.Payload{
		Email:           email,
		FirstName:       "Jane",
		LastName:        "Doe",
		Password:        "Str0ng!Pass",
		ConfirmPassword: "Str0ng!Pass",
		AccountType:     "individual",
		PhoneNumber:     "+447911123456",
		DateOfBirth:     "1990-05-17",
		RecaptchaToken:  "captcha-token",
	}
}

func businessPayload(email string) validation.Payload {
	return validation.Payload{
		Email:              email,
		FirstName:          "Tom",
		LastName:           "Farmer",
		Password:           "Harv3st#Time",
		ConfirmPassword:    "Harv3st#Time",
		AccountType:        "business",
		BusinessName:       "Green Acres Ltd",
		RegistrationNumber: "09876543",
		BusinessDocument:   "business-documents/2026/10/18/doc",
		RecaptchaToken:     "captcha-token",
	}
}
