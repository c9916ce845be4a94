// cmd/cravemate/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cravemate/internal/catalog"
	"cravemate/internal/config"
	"cravemate/internal/llm"
	"cravemate/internal/server"
	"cravemate/internal/storage"
	"cravemate/internal/suggest"
)

var (
	configPath  = flag.String("config", "", "Path to a YAML config file")
	port        = flag.Int("port", 0, "Port for HTTP transport (overrides config)")
	host        = flag.String("host", "", "Host address (overrides config)")
	dbPath      = flag.String("db-path", "", "Database path (overrides config)")
	catalogPath = flag.String("catalog", "", "Catalog JSON path (overrides config)")
	version     = flag.Bool("version", false, "Show version")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Println("cravemate version 1.0.0")
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *host != "" {
		cfg.Server.Host = *host
	}
	if *dbPath != "" {
		cfg.Storage.DBPath = *dbPath
	}
	if *catalogPath != "" {
		cfg.Catalog.Path = *catalogPath
	}

	logger := newLogger(cfg.Log)

	idx := catalog.Load(cfg.Catalog.Path, logger)

	// A missing key leaves the completer nil so the service reports a
	// configuration error per request instead of refusing to start.
	var completer suggest.Completer
	client, err := llm.NewClient(llm.Options{
		APIKey:      cfg.OpenAI.APIKey,
		BaseURL:     cfg.OpenAI.BaseURL,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: &cfg.OpenAI.Temperature,
		HTTPTimeout: cfg.OpenAI.Timeout,
	}, logger)
	switch {
	case errors.Is(err, llm.ErrMissingAPIKey):
		logger.Warn().Msg("OPENAI_API_KEY is not set; mood suggestions will fail until it is configured")
	case err != nil:
		logger.Fatal().Err(err).Msg("Failed to create model client")
	default:
		completer = client
	}

	svc := suggest.NewService(idx, completer, suggest.Config{
		DefaultLimit: cfg.Suggest.DefaultLimit,
		MaxLimit:     cfg.Suggest.MaxLimit,
		Timeout:      cfg.OpenAI.Timeout,
	}, logger)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DBPath)
	if err != nil {
		logger.Fatal().Err(err).Str("db_path", cfg.Storage.DBPath).Msg("Failed to open storage")
	}
	defer store.Close()

	srv := server.NewServer(server.Config{
		Addr:         cfg.Addr(),
		ModelTimeout: cfg.OpenAI.Timeout,
	}, svc, idx, store, logger)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Start(ctx); err != nil {
			errCh <- err
		}
	}()

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("Server error")
	}

	logger.Info().Msg("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during shutdown")
	}
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if cfg.Format == "json" {
		return zerolog.New(os.Stdout).With().Timestamp().Logger()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()
}
