package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/foundry/pkgdemo/internal/adapters/archive"
	"github.com/foundry/pkgdemo/internal/adapters/auth"
	"github.com/foundry/pkgdemo/internal/adapters/journal"
	"github.com/foundry/pkgdemo/internal/adapters/memory"
	"github.com/foundry/pkgdemo/internal/api/handlers"
	"github.com/foundry/pkgdemo/internal/config"
	"github.com/foundry/pkgdemo/internal/core/services"
	"github.com/foundry/pkgdemo/internal/util/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := logging.New(os.Stdout, "info", false).With().Str("service", "pkgdemo").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	logger = logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Pretty).With().Str("service", "pkgdemo").Logger()

	store := memory.New(memory.ExamplePackages())

	// Journal is optional; the no-op journal keeps history empty.
	var events services.Journal = journal.Nop{}
	if cfg.Storage.Journal {
		j, err := journal.NewSQLiteJournal(cfg.Storage.DataDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize journal")
		}
		events = j
	}
	defer events.Close()

	var descriptors services.DescriptorArchive
	if cfg.Storage.ArchiveUploads {
		a, err := archive.NewDiskArchive(cfg.Storage.DataDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize descriptor archive")
		}
		descriptors = a
	}

	authenticator := auth.NewTokenAuth(cfg.Auth.Tokens)
	if !authenticator.Enabled() {
		logger.Warn().Msg("no auth tokens configured; mutating routes are open")
	}

	handler := handlers.New(store, authenticator, logger, handlers.Options{
		Journal:         events,
		Archive:         descriptors,
		CORSOrigins:     cfg.CORS.Origins,
		DefaultPageSize: cfg.API.DefaultPageSize,
		MaxPageSize:     cfg.API.MaxPageSize,
		MaxUploadBytes:  cfg.API.MaxUploadBytes,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Graceful shutdown.
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("shutting down server")

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown failed")
			srv.Close()
		}
	}()

	logger.Info().
		Str("addr", addr).
		Int("packages", store.Stats().Packages).
		Bool("journal", cfg.Storage.Journal).
		Bool("archive", cfg.Storage.ArchiveUploads).
		Msg("starting package API server")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server error")
	}
	<-done
}
