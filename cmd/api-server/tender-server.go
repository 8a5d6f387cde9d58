package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tendering/db"
	"tendering/db/migrations"
	"tendering/db/mongostore"
	"tendering/internal/auth"
	"tendering/internal/config"
	"tendering/internal/handlers"
	"tendering/internal/jobs"
	"tendering/internal/logger"
	"tendering/models"

	"github.com/rs/zerolog"
)

type appStore interface {
	handlers.StorageInterface
	jobs.TenderStore
}

var (
	_ appStore = (*db.Storage)(nil)
	_ appStore = (*mongostore.Store)(nil)
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tender-server: %v\n", err)
		os.Exit(1)
	}
}

// run возвращает ошибку вместо выхода из процесса, чтобы отработали все defer
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}
	defer closeStore()

	if err := bootstrapAdmin(ctx, store, cfg.Bootstrap, log); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	lockout := auth.LockoutPolicy{Threshold: cfg.Auth.LockoutThreshold, Duration: cfg.Auth.LockoutDuration}
	h := handlers.NewHandler(store, tokens, lockout, log)

	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           handlers.NewRouter(h, cfg.Server.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	closer := jobs.NewTenderCloser(store, cfg.Jobs.CloserInterval, log)

	log.Info().Str("addr", srv.Addr).Str("driver", cfg.Storage.Driver).Msg("starting server")
	return serve(ctx, srv, closer, log)
}

// serve работает до отмены ctx или падения сервера.
// Возвращается только после остановки задачи закрытия, пока хранилище ещё открыто.
func serve(ctx context.Context, srv *http.Server, closer *jobs.TenderCloser, log zerolog.Logger) error {
	closerDone := make(chan struct{})
	go func() {
		defer close(closerDone)
		closer.Start(ctx)
	}()
	defer func() {
		closer.Stop()
		<-closerDone
	}()

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

// openStore подключает выбранное хранилище; для PostgreSQL применяет миграции
func openStore(ctx context.Context, cfg config.StorageConfig, log zerolog.Logger) (appStore, func(), error) {
	switch cfg.Driver {
	case config.DriverMongo:
		s, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, nil, err
		}
		closeFn := func() {
			cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.Close(cctx); err != nil {
				log.Error().Err(err).Msg("close mongo")
			}
		}
		return s, closeFn, nil
	default:
		conn, err := db.Connect(ctx, cfg.PostgresConn)
		if err != nil {
			return nil, nil, err
		}
		if err := migrations.Run(ctx, conn.DB); err != nil {
			conn.Close()
			return nil, nil, err
		}
		log.Info().Msg("migrations applied")
		closeFn := func() {
			if err := conn.Close(); err != nil {
				log.Error().Err(err).Msg("close postgres")
			}
		}
		return db.NewStorage(conn), closeFn, nil
	}
}

// bootstrapAdmin создаёт администратора из ADMIN_EMAIL/ADMIN_PASSWORD, если его ещё нет
func bootstrapAdmin(ctx context.Context, store handlers.StorageInterface, cfg config.BootstrapConfig, log zerolog.Logger) error {
	if cfg.AdminEmail == "" {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	_, err := store.GetUserByEmail(ctx, email)
	if err == nil {
		return nil
	}
	if !errors.Is(err, db.ErrNotFound) {
		return err
	}

	hash, err := auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	admin := &models.User{
		Name:         "Administrator",
		UserType:     models.RoleAdmin,
		Email:        email,
		PasswordHash: hash,
	}
	if err := store.CreateUser(ctx, admin); err != nil {
		return err
	}
	log.Info().Int64("user_id", admin.ID).Str("email", admin.Email).Msg("bootstrap admin created")
	return nil
}
