// Package server wires configuration, storage, services and the HTTP and
// gRPC health listeners into one process with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/recordapi/internal/logging"
	"github.com/dmitrijs2005/recordapi/internal/server/auth"
	"github.com/dmitrijs2005/recordapi/internal/server/config"
	"github.com/dmitrijs2005/recordapi/internal/server/configsync"
	"github.com/dmitrijs2005/recordapi/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/recordapi/internal/server/rest"
	"github.com/dmitrijs2005/recordapi/internal/server/services"

	gs "github.com/dmitrijs2005/recordapi/internal/server/grpc"
)

type App struct {
	config *config.Config
	logger logging.Logger
	db     *sql.DB
	repos  repomanager.RepositoryManager
	issuer *auth.Issuer

	authService *services.AuthService
	dataService *services.DataService
}

// NewLogger builds the process logger from cfg.
func NewLogger(cfg *config.Config, w io.Writer) (logging.Logger, error) {
	return logging.New(w, logging.Options{
		Backend: cfg.LogBackend,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
}

// NewApp validates cfg and builds every service. It does not touch the
// database yet.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.WeakSecret() {
		logger.Warn(ctx, "using a well-known secret key; set SECRET_KEY before deploying")
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	publisher, err := configsync.New(ctx, cfg.S3)
	if err != nil {
		db.Close()
		return nil, err
	}
	if cfg.S3.Bucket != "" {
		logger.Info(ctx, "publishing record configs", "bucket", cfg.S3.Bucket, "prefix", cfg.S3.Prefix)
	}

	repos := repomanager.NewPostgresRepositoryManager()
	issuer := auth.NewIssuer(cfg.SecretKey, cfg.AccessTokenTTL)
	tokens := services.NewTokenService(db, repos, issuer, cfg.RefreshTokenTTL)

	return &App{
		config:      cfg,
		logger:      logger,
		db:          db,
		repos:       repos,
		issuer:      issuer,
		authService: services.NewAuthService(db, repos, auth.NewHasher(cfg.BcryptCost), tokens, logger),
		dataService: services.NewDataService(db, repos, publisher, logger),
	}, nil
}

func (app *App) Auth() *services.AuthService { return app.authService }

// Migrate applies the embedded schema migrations.
func (app *App) Migrate(ctx context.Context) error {
	app.logger.Info(ctx, "Running migrations...")
	return app.repos.RunMigrations(ctx, app.db)
}

func (app *App) Close() error {
	err := app.db.Close()
	if z, ok := app.logger.(*logging.ZapLogger); ok {
		_ = z.Sync()
	}
	return err
}

func (app *App) initSignalHandler(ctx context.Context, cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		defer signal.Stop(sigs)
		select {
		case s := <-sigs:
			app.logger.Info(ctx, "Received signal", "signal", s.String())
			cancelFunc()
		case <-ctx.Done():
		}
	}()
}

func (app *App) httpHandler() *rest.Handler {
	return rest.NewHandler(app.authService, app.dataService, app.issuer, app.db, app.logger)
}

// Run serves until ctx is cancelled, a signal arrives or a listener fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "environment", app.config.Environment)
	app.initSignalHandler(ctx, cancelFunc)

	if !app.config.SkipMigrations {
		if err := app.Migrate(ctx); err != nil {
			return err
		}
	}

	if !app.config.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := app.httpHandler().Router(rest.NewMetrics(), rest.Options{
		CORSOrigins:   app.config.CORSOrigins,
		MaxBodyBytes:  app.config.MaxBodyBytes,
		AuthRateLimit: app.config.AuthRateLimit,
		AuthRateBurst: app.config.AuthRateBurst,
	})

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	start := func(name string, run func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil {
				app.logger.Error(ctx, "server failed", "server", name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
				cancelFunc()
			}
		}()
	}

	start("http", rest.NewServer(app.config.HTTPAddr, router, app.logger).Run)
	if app.config.GRPCHealthAddr != "" {
		start("grpc", gs.NewHealthServer(app.config.GRPCHealthAddr, app.db, app.config.HealthInterval, app.logger).Run)
	}

	wg.Wait()
	app.logger.Info(context.Background(), "App stopped")
	return errors.Join(errs...)
}
