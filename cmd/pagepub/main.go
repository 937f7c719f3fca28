package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/pagepub/internal/config"
	"git.home.luguber.info/inful/pagepub/internal/events"
	"git.home.luguber.info/inful/pagepub/internal/evidence"
	"git.home.luguber.info/inful/pagepub/internal/forge"
	"git.home.luguber.info/inful/pagepub/internal/generate"
	"git.home.luguber.info/inful/pagepub/internal/metrics"
	"git.home.luguber.info/inful/pagepub/internal/notify"
	"git.home.luguber.info/inful/pagepub/internal/publish"
	"git.home.luguber.info/inful/pagepub/internal/server"
	"git.home.luguber.info/inful/pagepub/internal/version"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"config.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
	} `cmd:"" help:"Start the publish service"`

	CheckConfig struct {
	} `cmd:"" help:"Load and validate configuration, then print a redacted summary"`

	Version struct {
	} `cmd:"" help:"Print version information"`
}

func main() {
	ctx := kong.Parse(&CLI)

	switch ctx.Command() {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("Serve failed", "error", err)
			os.Exit(1)
		}
	case "check-config":
		if err := runCheckConfig(); err != nil {
			slog.Error("Config check failed", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Printf("pagepub %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	}
}

func runServe() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if CLI.Verbose {
		cfg.Logging.Level = "debug"
	}

	logger := cfg.Logging.NewLogger()
	slog.SetDefault(logger)

	logger.Info("Starting pagepub",
		"version", version.Version,
		"port", cfg.Server.Port,
		"forge", cfg.Forge.APIURL)

	forgeClient, err := forge.NewGitHubClient(cfg.Forge)
	if err != nil {
		return fmt.Errorf("failed to create forge client: %w", err)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	user, err := forgeClient.AuthenticatedUser(startCtx)
	if err != nil {
		return fmt.Errorf("failed to verify forge credentials: %w", err)
	}
	logger.Info("Forge authentication verified", "login", user.Login)

	registry := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)

	pipeline := publish.New(forgeClient,
		publish.OptionsFromConfig(user.Login, cfg.Forge, cfg.Publish),
		logger, recorder)

	generator, err := generate.NewGemini(startCtx, cfg.Generator.APIKey, cfg.Generator.Model)
	if err != nil {
		return fmt.Errorf("failed to create generator: %w", err)
	}

	notifier := notify.New(cfg.Notify.MaxAttempts, cfg.Notify.InitialDelay(), logger, recorder)

	var store *evidence.SQLiteStore
	if cfg.Evidence.StorePath != "" {
		store, err = evidence.NewSQLiteStore(cfg.Evidence.StorePath)
		if err != nil {
			return fmt.Errorf("failed to open evidence store: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Warn("Failed to close evidence store", "error", err)
			}
		}()
	}
	evidenceLogger := evidence.NewLogger(cfg.Evidence.URL, store, logger)

	var eventPublisher *events.Publisher
	if cfg.Events.Enabled {
		eventPublisher, err = events.NewPublisher(cfg.Events, logger)
		if err != nil {
			return fmt.Errorf("failed to connect event publisher: %w", err)
		}
		defer eventPublisher.Close()
	}

	srv := server.New(cfg, server.Deps{
		Pipeline:  pipeline,
		Generator: generator,
		Notifier:  notifier,
		Evidence:  evidenceLogger,
		Events:    eventPublisher,
		Metrics:   metrics.HTTPHandler(registry),
	}, logger)

	runCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start()
	}()

	logger.Info("Server started, waiting for shutdown signal...")

	select {
	case err := <-errChan:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-runCtx.Done():
		logger.Info("Shutdown signal received, stopping server...")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := srv.Shutdown(stopCtx); err != nil {
		return fmt.Errorf("failed to stop server: %w", err)
	}

	// Let in-flight evidence submissions land before the process exits.
	evidenceLogger.Wait()

	logger.Info("Server stopped")
	return nil
}

func runCheckConfig() error {
	cfg, err := config.Load(CLI.Config)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fmt.Printf("configuration OK\n")
	fmt.Printf("  server.port:        %d\n", cfg.Server.Port)
	fmt.Printf("  server.secret:      %s\n", config.Redacted(cfg.Server.Secret))
	fmt.Printf("  forge.username:     %s\n", cfg.Forge.Username)
	fmt.Printf("  forge.token:        %s\n", config.Redacted(cfg.Forge.Token))
	fmt.Printf("  forge.api_url:      %s\n", cfg.Forge.APIURL)
	fmt.Printf("  forge.pages_host:   %s\n", cfg.Forge.PagesHost)
	fmt.Printf("  generator.model:    %s\n", cfg.Generator.Model)
	fmt.Printf("  generator.api_key:  %s\n", config.Redacted(cfg.Generator.APIKey))
	fmt.Printf("  publish.branch:     %s\n", cfg.Publish.Branch)
	fmt.Printf("  evidence.url:       %s\n", emptyAs(cfg.Evidence.URL, "(disabled)"))
	fmt.Printf("  evidence.store:     %s\n", emptyAs(cfg.Evidence.StorePath, "(disabled)"))
	if cfg.Events.Enabled {
		fmt.Printf("  events:             %s -> %s\n", cfg.Events.NATSURL, cfg.Events.Subject)
	} else {
		fmt.Printf("  events:             (disabled)\n")
	}
	return nil
}

func emptyAs(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
