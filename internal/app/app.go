package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/thetanav/bit-bridge/internal/controller"
	"github.com/thetanav/bit-bridge/internal/core"
	"github.com/thetanav/bit-bridge/internal/ledger"
	"github.com/thetanav/bit-bridge/internal/metrics"
	"github.com/thetanav/bit-bridge/internal/middlewareinternal"
	"github.com/thetanav/bit-bridge/internal/repository"
	"github.com/thetanav/bit-bridge/internal/service"
	"go.uber.org/zap"
)

type App struct {
	cfg      *Config
	Router   *chi.Mux
	db       *repository.Database
	userRepo repository.UserRepository
	Logger   *zap.Logger
	Server   *http.Server
	Metrics  *metrics.Metrics

	AuthService   core.AuthService
	LedgerService core.LedgerService
}

func New(cfg *Config, logger *zap.Logger) (*App, error) {
	app := &App{
		cfg:     cfg,
		Router:  chi.NewRouter(),
		Logger:  logger,
		Metrics: metrics.New(),
	}

	if err := app.initUserRepository(); err != nil {
		return nil, err
	}

	app.AuthService = service.NewAuthService(app.userRepo, cfg.JWTSecretKey, cfg.TokenTTL)
	store := ledger.NewStore()
	app.Metrics.TrackAccounts(store.Accounts)
	app.LedgerService = service.NewLedgerService(store, app.Metrics, logger)

	app.initRouter()
	return app, nil
}

func (a *App) Run(ctx context.Context) error {
	a.Server = &http.Server{
		Addr:              a.cfg.RunAddress,
		Handler:           a.Router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("Starting HTTP server",
			zap.String("address", a.cfg.RunAddress))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("Shutting down server...")
		return a.shutdown()
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	}
}

func (a *App) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *App) initUserRepository() error {
	if a.cfg.DatabaseURI == "" {
		a.userRepo = repository.NewMemoryUserRepository()
		a.Logger.Info("User registry: memory")
		return nil
	}

	db, err := repository.NewDatabase(repository.DatabaseConfig{
		DSN:            a.cfg.DatabaseURI,
		MigrationsPath: a.cfg.MigrationsPath,
		PingTimeout:    a.cfg.DBPingTimeout,
	})
	if err != nil {
		a.Logger.Error("Database initialization failed",
			zap.String("dsn", a.cfg.MaskDBPassword()),
			zap.Error(err))
		return fmt.Errorf("database initialization failed: %w", err)
	}

	a.db = db
	a.userRepo = repository.NewUserRepository(db)
	a.Logger.Info("User registry: postgres",
		zap.String("dsn", a.cfg.MaskDBPassword()),
		zap.String("migrations_path", a.cfg.MigrationsPath))
	return nil
}

func (a *App) initRouter() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(middleware.Logger)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(middleware.Compress(5))
	a.Router.Use(a.Metrics.Middleware)

	authController := controller.NewAuthController(a.AuthService, a.cfg.TokenTTL, a.Logger)
	ledgerController := controller.NewLedgerController(a.LedgerService, a.Logger)

	// Public routes
	a.Router.Get("/ping", a.ping)
	a.Router.Method(http.MethodGet, "/metrics", a.Metrics.Handler())
	a.Router.Post("/api/user/register", authController.Register)
	a.Router.Post("/api/user/login", authController.Login)
	a.Router.Get("/api/balance/{principal}", ledgerController.GetBalance)

	// Protected routes
	a.Router.Group(func(r chi.Router) {
		r.Use(middlewareinternal.JWTAuthMiddleware(a.AuthService))

		r.Get("/api/user/principal", authController.Principal)
		r.Get("/api/user/balance", ledgerController.GetOwnBalance)
		r.Post("/api/user/deposit", ledgerController.Deposit)
		r.Post("/api/user/withdraw", ledgerController.Withdraw)
		r.Post("/api/user/lend", ledgerController.Lend)
		r.Post("/api/user/borrow", ledgerController.Borrow)
		r.Post("/api/user/yield-farm", ledgerController.YieldFarm)
	})
}

func (a *App) ping(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.userRepo.Ping(ctx); err != nil {
		a.Logger.Warn("User registry unavailable", zap.Error(err))
		http.Error(w, "User registry unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	return a.Server.Shutdown(ctx)
}
