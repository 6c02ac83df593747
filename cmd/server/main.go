// Package main initializes and starts the GophAuth account server,
// setting up configuration, logging, storage, the credential engine,
// handlers and optional TLS.
package main

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	nethttp "net/http"

	"github.com/atinyakov/GophAuth/internal/config"
	"github.com/atinyakov/GophAuth/internal/db"
	"github.com/atinyakov/GophAuth/internal/hasher"
	"github.com/atinyakov/GophAuth/internal/logger"
	"github.com/atinyakov/GophAuth/internal/repository"
	"github.com/atinyakov/GophAuth/internal/server/handler/http"
	"github.com/atinyakov/GophAuth/internal/service"
	"go.uber.org/zap"
)

var (
	// version holds the build version set via ldflags.
	version string
	// buildDate holds the build timestamp set via ldflags.
	buildDate string
)

func main() {
	// Parse command-line, config file and environment configuration.
	options := config.Parse()

	// Print build metadata (or "N/A" if unset).
	fmt.Printf("Build version: %s\n", cmp.Or(version, "N/A"))
	fmt.Printf("Build date: %s\n", cmp.Or(buildDate, "N/A"))

	// Initialize structured logging.
	log := logger.New()
	defer func() { _ = log.Log.Sync() }()
	if err := log.Init(options.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "failed to init logger: %v\n", err)
		os.Exit(1)
	}
	zapLogger := log.Log

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, options, zapLogger); err != nil {
		zapLogger.Fatal("server failed", zap.Error(err))
	}
}

// run wires the server from options and serves until ctx is done. It
// returns an error when a component cannot be initialized or the listener
// fails.
func run(ctx context.Context, options *config.Options, zapLogger *zap.Logger) error {
	// Initialize the account store.
	store, closeStore, err := newAccountStore(ctx, options, zapLogger)
	if err != nil {
		return fmt.Errorf("cannot init account store: %w", err)
	}
	defer closeStore()

	// Initialize the password hasher and the credential engine.
	h, err := hasher.New(hasher.Options{
		Algorithm:  options.HashAlgorithm,
		BcryptCost: options.BcryptCost,
	})
	if err != nil {
		return fmt.Errorf("cannot init password hasher: %w", err)
	}

	authService, err := service.NewAuthService(store, h, service.Config{
		UsernameCaseSensitive: options.UsernameCaseSensitive,
		LoginIdentifier:       service.LoginIdentifier(options.LoginIdentifier),
		HideConflictFields:    options.HideConflictFields,
		ValidateIdentity:      options.ValidateIdentity,
		MaxConcurrentHashes:   options.MaxConcurrentHashes,
	}, zapLogger)
	if err != nil {
		return fmt.Errorf("cannot init auth service: %w", err)
	}

	// Create HTTP handlers and the router.
	authHandler := &http.AuthHandler{AuthService: authService}
	if options.LoginIdentifier == string(service.LoginByUsername) {
		authHandler.LoginField = "UserName"
	}
	router := http.NewRouter(authHandler, zapLogger)

	server := &nethttp.Server{
		Addr:              options.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if options.TLSEnabled() {
		// Load server TLS certificate and key.
		cert, err := tls.LoadX509KeyPair(options.TLSCertFile, options.TLSKeyFile)
		if err != nil {
			return fmt.Errorf("failed to load server TLS cert/key: %w", err)
		}
		server.TLSConfig = &tls.Config{
			Certificates: []tls.Certificate{cert},
			MinVersion:   tls.VersionTLS12,
		}
	}

	errCh := make(chan error, 1)
	go func() {
		zapLogger.Info("starting server",
			zap.String("addr", options.Port),
			zap.Bool("tls", options.TLSEnabled()),
		)
		if options.TLSEnabled() {
			errCh <- server.ListenAndServeTLS("", "")
		} else {
			errCh <- server.ListenAndServe()
		}
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, nethttp.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	zapLogger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(options.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("graceful shutdown failed", zap.Error(err))
	}
	return nil
}

// newAccountStore opens PostgreSQL when a DSN is configured and falls back
// to an in-memory store otherwise.
func newAccountStore(ctx context.Context, options *config.Options, log *zap.Logger) (service.AccountStore, func(), error) {
	if options.DatabaseDSN == "" {
		log.Warn("no database configured, accounts are kept in memory")
		return repository.NewMemoryAccountStore(), func() {}, nil
	}

	postgresDB, err := db.InitPostgres(ctx, options.DatabaseDSN, options.MaxOpenConns)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if err := postgresDB.Close(); err != nil {
			log.Error("failed to close database", zap.Error(err))
		}
	}
	return repository.NewPostgresAccountStore(postgresDB), closeDB, nil
}
