package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/seersec/seer/internal/app"
	"github.com/seersec/seer/internal/audit"
	"github.com/seersec/seer/internal/auth"
	"github.com/seersec/seer/internal/iam"
	"github.com/seersec/seer/internal/identity"
	"github.com/seersec/seer/internal/observability"
	"github.com/seersec/seer/internal/platform/cache"
	"github.com/seersec/seer/internal/platform/db"
	"github.com/seersec/seer/internal/rbac"
	"github.com/seersec/seer/internal/threats"
	"github.com/seersec/seer/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if redisClient != nil {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}
	}()

	metrics := observability.NewMetrics()

	store := identity.NewStore(pool)
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL)
	var guard *auth.LoginGuard
	if redisClient != nil {
		guard = auth.NewLoginGuard(redisClient, cfg.LoginMaxAttempts, cfg.LoginWindow)
	}
	authService := auth.NewService(store, tokens, guard, logger)
	authMiddleware := auth.Middleware{Service: authService, Logger: logger}
	authHandler := auth.NewHandler(logger, authService)

	engine := rbac.NewEngine(store, logger, metrics)
	rbacMiddleware := rbac.Middleware{Engine: engine, Logger: logger}

	iamService := iam.NewService(store, logger)
	iamHandler := iam.NewHandler(logger, iamService, rbacMiddleware)

	auditRepo := audit.NewRepository(pool)
	auditService := audit.NewService(auditRepo)
	auditHandler := audit.NewHandler(logger, auditService)

	enqueuer := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := enqueuer.Close(); err != nil {
			logger.Warn("asynq close", slog.Any("error", err))
		}
	}()

	threatRepo := threats.NewRepository(pool)
	threatService := threats.NewService(threatRepo, enqueuer, logger)
	threatHandler := threats.NewHandler(logger, threatService, rbacMiddleware)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		IAMHandler:     iamHandler,
		AuditHandler:   auditHandler,
		ThreatsHandler: threatHandler,
		RBACMiddleware: rbacMiddleware,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
