package rest

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/harvesthub/internal/common"
	"github.com/dmitrijs2005/harvesthub/internal/dbx"
	"github.com/dmitrijs2005/harvesthub/internal/logging"
	"github.com/dmitrijs2005/harvesthub/internal/server/auth"
	"github.com/dmitrijs2005/harvesthub/internal/server/captcha"
	"github.com/dmitrijs2005/harvesthub/internal/server/config"
	"github.com/dmitrijs2005/harvesthub/internal/server/documents"
	"github.com/dmitrijs2005/harvesthub/internal/server/mailer"
	"github.com/dmitrijs2005/harvesthub/internal/server/models"
	"github.com/dmitrijs2005/harvesthub/internal/server/passwords"
	accountsrepo "github.com/dmitrijs2005/harvesthub/internal/server/repositories/accounts"
	refreshtokensrepo "github.com/dmitrijs2005/harvesthub/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/harvesthub/internal/server/services"
	"github.com/dmitrijs2005/harvesthub/internal/server/tokenstore"
	"github.com/dmitrijs2005/harvesthub/internal/server/twofactor"
	"github.com/dmitrijs2005/harvesthub/internal/server/validation"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]*models.Account
}

func (r *memAccounts) Create(_ context.Context, a *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byID {
		if strings.EqualFold(e.Email, a.Email) {
			return common.ErrDuplicateEmail
		}
	}
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
	_, err := r.byEmail(email)
	return err == nil, nil
}

func (r *memAccounts) MarkEmailVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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
	a, ok := r.byID[id]
	if !ok {
		return common.ErrorNotFound
	}
	a.TwoFactorEnabled = true
	a.TwoFactorSecret = &secret
	return nil
}

type memRefreshTokens struct {
	mu     sync.Mutex
	tokens map[string]*models.RefreshToken
}

func (r *memRefreshTokens) Create(_ context.Context, accountID, token string, validity time.Duration) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt := &models.RefreshToken{AccountID: accountID, Token: token, Expires: time.Now().Add(validity)}
	r.tokens[token] = rt
	return rt, nil
}

func (r *memRefreshTokens) Find(_ context.Context, token string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.tokens[token]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return rt, nil
}

func (r *memRefreshTokens) Delete(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
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

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error        { return nil }
func (m *fakeRepoManager) Accounts(dbx.DBTX) accountsrepo.Repository           { return m.a }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokensrepo.Repository { return m.r }

type fakeMailer struct{}

func (fakeMailer) Send(context.Context, mailer.Email) error { return nil }

type fakePresigner struct {
	err error
}

func (p fakePresigner) PresignUpload(context.Context) (*documents.Upload, error) {
	if p.err != nil {
		return nil, p.err
	}
	return &documents.Upload{
		Key: "business-documents/2026/10/18/abc",
		URL: "http://127.0.0.1:9000/business-documents/business-documents/2026/10/18/abc?X-Amz-Signature=x",
	}, nil
}

type testServer struct {
	*httptest.Server

	db           *sql.DB
	mock         sqlmock.Sqlmock
	mr           *miniredis.Miniredis
	accounts     *memAccounts
	refresh      *memRefreshTokens
	signer       *auth.Signer
	verifySigner *auth.Signer
}

func newTestServer(t *testing.T, presigner DocumentPresigner) *testServer {
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

	v, err := validation.New()
	require.NoError(t, err)

	ts := &testServer{
		db:           db,
		mock:         mock,
		mr:           mr,
		accounts:     &memAccounts{byID: map[string]*models.Account{}},
		refresh:      &memRefreshTokens{tokens: map[string]*models.RefreshToken{}},
		signer:       auth.NewSigner([]byte(cfg.SecretKey), cfg.TokenIssuer),
		verifySigner: auth.NewSigner([]byte(cfg.VerificationSecretKey), cfg.TokenIssuer),
	}
	rm := &fakeRepoManager{a: ts.accounts, r: ts.refresh}
	logger := logging.NewZerologLogger(zerolog.Nop())
	tfa := twofactor.NewProvider(cfg.TwoFactorIssuer)

	guard := services.NewGuard(store, cfg)
	tokens := services.NewTokenService(db, rm, ts.signer, cfg)
	reg := services.NewRegistrationService(db, rm, services.RegistrationDeps{
		Store:              store,
		Guard:              guard,
		Tokens:             tokens,
		Captcha:            captcha.StaticVerifier{},
		Validator:          v,
		Hasher:             passwords.NewHasher(4),
		TwoFactor:          tfa,
		Mailer:             fakeMailer{},
		VerificationSigner: ts.verifySigner,
		Logger:             logger,
	}, cfg)
	ver := services.NewVerificationService(db, rm, store, ts.verifySigner, tfa, logger, cfg)

	registry := prometheus.NewRegistry()
	h := NewHandlers(reg, ver, guard, tokens, presigner, NewMetrics(registry), logger)

	loopback, err := ParseTrustedProxies([]string{"127.0.0.0/8", "::1"})
	require.NoError(t, err)

	ts.Server = httptest.NewServer(NewRouter(h, registry, loopback))
	t.Cleanup(ts.Close)
	return ts
}

// do sends a request as client ip and decodes a JSON body into out when non-nil.
func (ts *testServer) do(t *testing.T, method, path, ip string, headers map[string]string, body any, out any) *http.Response {
	t.Helper()

	var reader *strings.Reader
	switch b := body.(type) {
	case nil:
		reader = strings.NewReader("")
	case string:
		reader = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}

	req, err := http.NewRequest(method, ts.URL+path, reader)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", ip)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func (ts *testServer) csrf(t *testing.T, ip string) string {
	t.Helper()
	var body csrfTokenResponse
	resp := ts.do(t, http.MethodGet, "/csrf-token", ip, nil, nil, &body)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return body.Token
}

func registrationBody(email string) map[string]any {
	return map[string]any{
		"email":           email,
		"firstName":       "Jane",
		"lastName":        "Doe",
		"password":        "Str0ng!Pass",
		"confirmPassword": "Str0ng!Pass",
		"accountType":     "individual",
		"phoneNumber":     "07911123456",
		"dateOfBirth":     "1990-05-17",
		"recaptchaToken":  "token",
		"unknownField":    "dropped",
	}
}
