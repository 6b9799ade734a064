// @title                       Identity Service API
// @version                     1.0
// @description                 Identity and access control: registration, login, token lifecycle, roles and permissions.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/medivex/identity-service/internal/api"
	"github.com/medivex/identity-service/internal/core/service"
	mongostore "github.com/medivex/identity-service/internal/infrastructure/db/mongo"
	redisstore "github.com/medivex/identity-service/internal/infrastructure/db/redis"
	"github.com/medivex/identity-service/internal/infrastructure/http/handlers"
	"github.com/medivex/identity-service/internal/infrastructure/mail"
	"github.com/medivex/identity-service/internal/infrastructure/queue"
	"github.com/medivex/identity-service/internal/pkg/config"
	"github.com/medivex/identity-service/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		// The logger is not configured yet.
		bootLog := logger.Init(logger.Options{Level: "info"})
		bootLog.Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "identity-service",
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("identity service stopped")
	}
	log.Info().Msg("stopped")
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// --- Storage ---
	mongoClient, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
	if err != nil {
		return err
	}
	defer func() {
		dctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = mongoClient.Disconnect(dctx)
	}()

	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return err
	}
	defer rdb.Close()

	identities := mongostore.NewIdentityRepository(db)
	accessRepo := mongostore.NewAccessRepository(db)
	if err := mongostore.EnsureIndexes(ctx, identities, accessRepo); err != nil {
		return err
	}

	// --- Notifications ---
	mailer := mail.NewLogMailer(cfg.Mail.From, log)
	dispatcher := queue.NewDispatcher(cfg.Mail.Workers, mailer, log)
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher.Start(workerCtx)

	// --- Core services ---
	access := service.NewAccessControlGraph(accessRepo, accessRepo, log)
	if err := access.Seed(ctx); err != nil {
		stopWorkers()
		return err
	}

	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL,
		RefreshTTL: cfg.JWT.RefreshTTL,
	}, identities, access, log)
	if err != nil {
		stopWorkers()
		return err
	}

	revocations := service.NewRevocationRegistry(redisstore.NewRevocationStore(rdb), tokens, cfg.Redis.RevocationPrefix, log)
	lockout := service.NewLockoutPolicy(identities, cfg.Lockout.MaxAttempts, cfg.Lockout.Duration, log)
	auth := service.NewAuthService(identities, access, tokens, revocations, lockout, dispatcher, cfg.ResetTTL, log)
	admin := service.NewIdentityAdminService(identities, access, log)
	guard := service.NewAuthenticationGuard(tokens, revocations, identities, access, nil, log)

	// --- HTTP ---
	router := api.NewRouter(api.Dependencies{
		Guard:  guard,
		Auth:   auth,
		Admin:  admin,
		Access: access,
		Readiness: map[string]handlers.Pinger{
			"mongodb": mongostore.Pinger{Client: mongoClient},
			"redis":   redisstore.Pinger{Client: rdb},
		},
		AuthRateLimit: cfg.HTTP.AuthRateLimit,
		Log:           log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	srvLog := logger.Component("server")
	serveErr := make(chan error, 1)
	go func() {
		srvLog.Info().Str("addr", srv.Addr).Msg("identity service listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case <-stop:
		srvLog.Info().Msg("shutting down")
	case err := <-serveErr:
		stopWorkers()
		dispatcher.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = srv.Shutdown(shutdownCtx)

	// Stop mail workers once no request can enqueue anymore.
	stopWorkers()
	dispatcher.Wait()
	return err
}
