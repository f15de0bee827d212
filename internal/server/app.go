// Package server wires configuration, storage and services together and
// runs the HTTP API and the gRPC health service until the process is
// signalled to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmitrijs2005/harvesthub/internal/logging"
	"github.com/dmitrijs2005/harvesthub/internal/server/auth"
	"github.com/dmitrijs2005/harvesthub/internal/server/captcha"
	"github.com/dmitrijs2005/harvesthub/internal/server/config"
	"github.com/dmitrijs2005/harvesthub/internal/server/documents"
	"github.com/dmitrijs2005/harvesthub/internal/server/mailer"
	"github.com/dmitrijs2005/harvesthub/internal/server/passwords"
	"github.com/dmitrijs2005/harvesthub/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/harvesthub/internal/server/rest"
	"github.com/dmitrijs2005/harvesthub/internal/server/services"
	"github.com/dmitrijs2005/harvesthub/internal/server/tokenstore"
	"github.com/dmitrijs2005/harvesthub/internal/server/twofactor"
	"github.com/dmitrijs2005/harvesthub/internal/server/validation"

	gs "github.com/dmitrijs2005/harvesthub/internal/server/grpc"
)

const (
	startupTimeout      = 30 * time.Second
	healthProbeInterval = 10 * time.Second
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	store  tokenstore.Store
	http   *rest.HTTPServer
	health *gs.HealthServer
}

func NewApp(c *config.Config) (*App, error) {

	logger := logging.New(c.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	proxies, err := rest.ParseTrustedProxies(c.TrustedProxies)
	if err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := newTokenStore(ctx, c)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("token store init error: %w", err)
	}

	mail, err := mailer.NewMailer(mailer.Config{
		Host:     c.SMTPHost,
		Port:     c.SMTPPort,
		Username: c.SMTPUsername,
		Password: c.SMTPPassword,
		From:     c.SMTPFrom,
	})
	if err != nil {
		_ = db.Close()
		_ = store.Close()
		return nil, fmt.Errorf("mailer init error: %w", err)
	}

	v, err := validation.New()
	if err != nil {
		_ = db.Close()
		_ = store.Close()
		return nil, fmt.Errorf("validator init error: %w", err)
	}

	docs := documents.NewService(documents.Config{
		Region:       c.S3Region,
		AccessKey:    c.S3RootUser,
		SecretKey:    c.S3RootPassword,
		BaseEndpoint: c.S3BaseEndpoint,
		Bucket:       c.S3Bucket,
		URLValidity:  c.DocumentUploadURLValidity,
	})

	tfa := twofactor.NewProvider(c.TwoFactorIssuer)
	signer := auth.NewSigner([]byte(c.SecretKey), c.TokenIssuer)
	verificationSigner := auth.NewSigner([]byte(c.VerificationSecretKey), c.TokenIssuer)

	guard := services.NewGuard(store, c)
	tokens := services.NewTokenService(db, rm, signer, c)
	rs := services.NewRegistrationService(db, rm, services.RegistrationDeps{
		Store:              store,
		Guard:              guard,
		Tokens:             tokens,
		Captcha:            newCaptchaVerifier(ctx, c, logger),
		Validator:          v,
		Hasher:             passwords.NewHasher(c.BcryptCost),
		TwoFactor:          tfa,
		Mailer:             mail,
		VerificationSigner: verificationSigner,
		Logger:             logger,
	}, c)
	vs := services.NewVerificationService(db, rm, store, verificationSigner, tfa, logger, c)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	handlers := rest.NewHandlers(rs, vs, guard, tokens, docs, rest.NewMetrics(registry), logger)

	health := gs.NewHealthServer(c.EndpointAddrHealth, logger, healthProbeInterval, c.ExternalCallTimeout,
		gs.Check{Name: "database", Ping: db.PingContext},
		gs.Check{Name: "token_store", Ping: store.Ping},
	)

	return &App{
		config: c,
		logger: logger,
		db:     db,
		store:  store,
		http:   rest.NewHTTPServer(c.EndpointAddrHTTP, rest.NewRouter(handlers, registry, proxies), logger),
		health: health,
	}, nil
}

func newTokenStore(ctx context.Context, c *config.Config) (tokenstore.Store, error) {
	switch c.TokenStoreBackend {
	case "buntdb":
		return tokenstore.NewBuntStore(c.BuntDBPath)
	case "redis", "":
		return tokenstore.NewRedisStore(ctx, tokenstore.RedisOptions{
			Addr:     c.RedisAddr,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
		})
	default:
		return nil, fmt.Errorf("unknown token store backend %q", c.TokenStoreBackend)
	}
}

func newCaptchaVerifier(ctx context.Context, c *config.Config, l logging.Logger) captcha.Verifier {
	if c.RecaptchaSecret == "" {
		l.Warn(ctx, "reCAPTCHA secret not configured, accepting any non-empty token")
		return captcha.StaticVerifier{}
	}
	client := &http.Client{Timeout: c.ExternalCallTimeout}
	return captcha.NewRecaptchaVerifier(client, c.RecaptchaURL, c.RecaptchaSecret, c.RecaptchaMinScore)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// run starts one server and cancels the whole app if it fails.
func (app *App) run(ctx context.Context, cancelFunc context.CancelFunc, name string, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		app.logger.Error(ctx, "server failed", "server", name, "error", err)
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		app.run(ctx, cancelFunc, "http", app.http.Run)
	}()
	go func() {
		defer wg.Done()
		app.run(ctx, cancelFunc, "grpc_health", app.health.Run)
	}()

	wg.Wait()

	if err := app.store.Close(); err != nil {
		app.logger.Error(ctx, "token store close failed", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}

	app.logger.Info(ctx, "App stopped")
}
