package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	slackapi "github.com/slack-go/slack"
	"golang.org/x/sync/errgroup"

	"github.com/rafaeldc/triagebot/internal/adapter/inbound/slackhook"
	"github.com/rafaeldc/triagebot/internal/adapter/inbound/triageproxy"
	"github.com/rafaeldc/triagebot/internal/adapter/outbound/llm/openai"
	slacknotifier "github.com/rafaeldc/triagebot/internal/adapter/outbound/notification/slack"
	"github.com/rafaeldc/triagebot/internal/adapter/outbound/persistence/sqlite"
	"github.com/rafaeldc/triagebot/internal/adapter/outbound/storage/postgrest"
	"github.com/rafaeldc/triagebot/internal/adapter/outbound/triage"
	"github.com/rafaeldc/triagebot/internal/config"
	"github.com/rafaeldc/triagebot/internal/domain/service"
	"github.com/rafaeldc/triagebot/internal/worker"
	"github.com/rafaeldc/triagebot/pkg/health"
	"github.com/rafaeldc/triagebot/pkg/version"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	printVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *printVersion {
		fmt.Println(version.String())
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = buildLogger(cfg.Logging)

	// --- Database ---
	store, err := sqlite.NewStore(sqlite.Config{
		Path:              cfg.Database.SQLite.Path,
		MaxOpenConns:      cfg.Database.SQLite.MaxOpenConns,
		PragmaJournalMode: cfg.Database.SQLite.PragmaJournalMode,
		PragmaBusyTimeout: cfg.Database.SQLite.PragmaBusyTimeout,
	})
	if err != nil {
		logger.Error("failed to open sqlite store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	outbox := sqlite.NewOutboxRepo(store, cfg.Worker.MaxAttempts)
	sequence := sqlite.NewSequenceRepo(store)

	// --- Ticket storage ---
	tickets := postgrest.NewTicketRepo(postgrest.Config{
		BaseURL:    cfg.Storage.BaseURL,
		ServiceKey: cfg.Storage.ServiceKey,
		Timeout:    cfg.Storage.Timeout,
	})

	// --- Classifier ---
	classifier, err := triage.NewClient(triage.Config{
		URL:         cfg.Triage.URL,
		InternalKey: cfg.Triage.InternalKey,
		Timeout:     cfg.Triage.Timeout,
	}, logger)
	if err != nil {
		logger.Error("failed to create triage client", "error", err)
		os.Exit(1)
	}

	// --- Notifier ---
	notifier := slacknotifier.NewNotifier(slacknotifier.Config{
		BotToken:       cfg.Slack.BotToken,
		DefaultChannel: cfg.Slack.DefaultChannel,
	})

	// --- Domain service ---
	pipeline := service.NewPipeline(classifier, tickets, sequence, notifier, outbox, logger)

	dispatcher := worker.NewDispatcher(worker.Config{
		PollInterval: cfg.Worker.PollInterval,
		BackoffBase:  cfg.Worker.BackoffBase,
		JobTimeout:   cfg.Worker.JobTimeout,
		BatchSize:    cfg.Worker.BatchSize,
	}, outbox, pipeline, pipeline.Wake(), logger)

	// --- Slack webhook server ---
	slackClient := slackapi.New(cfg.Slack.BotToken)
	hookHandler := slackhook.NewHandler(slackhook.Config{
		SigningSecret: cfg.Slack.SigningSecret,
		Command:       cfg.Slack.Command,
	}, slackClient, pipeline, logger)
	hookServer := slackhook.NewServer(slackhook.ServerConfig{
		Port:              cfg.Server.Port,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		ShutdownTimeout:   cfg.Server.ShutdownTimeout,
		RequestsPerMinute: cfg.Server.RequestsPerMinute,
	}, hookHandler, logger)

	// --- Classification proxy ---
	openaiClient := openai.NewClient(openai.Config{
		BaseURL:     cfg.OpenAI.BaseURL,
		APIKey:      cfg.OpenAI.APIKey,
		Model:       cfg.OpenAI.Model,
		MaxTokens:   cfg.OpenAI.MaxTokens,
		Temperature: cfg.OpenAI.Temperature,
		Timeout:     cfg.OpenAI.Timeout,
	})

	var proxyServer *http.Server
	if cfg.Proxy.Enabled {
		proxyHandler := triageproxy.NewHandler(triageproxy.Config{
			InternalKey: cfg.Proxy.InternalKey,
			JWTSecret:   cfg.Proxy.JWTSecret,
		}, openaiClient, sequence, logger)
		proxyMux := http.NewServeMux()
		proxyHandler.Routes(proxyMux)
		proxyServer = &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Proxy.Port),
			Handler:      proxyMux,
			ReadTimeout:  cfg.Proxy.ReadTimeout,
			WriteTimeout: cfg.Proxy.WriteTimeout,
		}
	}

	// --- Health checker ---
	checker := health.NewChecker()
	checker.Register("database", func(ctx context.Context) error {
		return store.DB.PingContext(ctx)
	})
	if cfg.Proxy.Enabled {
		checker.Register("openai", func(ctx context.Context) error {
			return openaiClient.HealthCheck(ctx)
		})
	}

	// --- Metrics server ---
	metricsMux := http.NewServeMux()
	metricsMux.HandleFunc("/healthz", checker.LivenessHandler())
	metricsMux.HandleFunc("/readyz", checker.ReadinessHandler())
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.MetricsPort),
		Handler: metricsMux,
	}

	// --- Signal handling & startup ---
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	// Slack webhook HTTP server.
	g.Go(func() error {
		logger.Info("starting slack webhook server", "port", cfg.Server.Port)
		return hookServer.Start(gCtx)
	})

	// Outbox worker.
	g.Go(func() error {
		logger.Info("starting outbox worker")
		return dispatcher.Run(gCtx)
	})

	// Classification proxy server.
	if proxyServer != nil {
		g.Go(func() error {
			logger.Info("starting triage proxy server", "port", cfg.Proxy.Port)
			return serve(gCtx, proxyServer, cfg.Proxy.ShutdownTimeout)
		})
	}

	// Metrics/health server.
	g.Go(func() error {
		logger.Info("starting metrics server", "port", cfg.Server.MetricsPort)
		return serve(gCtx, metricsServer, cfg.Server.ShutdownTimeout)
	})

	logger.Info("triagebot started", "version", version.String())

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("triagebot stopped")
}

// serve runs an http.Server until the context is cancelled, then shuts it
// down within the given timeout.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// buildLogger constructs a slog.Logger based on config.
func buildLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
