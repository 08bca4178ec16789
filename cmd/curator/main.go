package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rewired-gh/curator/internal/api"
	"github.com/rewired-gh/curator/internal/config"
	"github.com/rewired-gh/curator/internal/curator"
	"github.com/rewired-gh/curator/internal/datasource"
	"github.com/rewired-gh/curator/internal/defillama"
	"github.com/rewired-gh/curator/internal/logger"
	"github.com/rewired-gh/curator/internal/metrics"
	"github.com/rewired-gh/curator/internal/models"
	"github.com/rewired-gh/curator/internal/monitor"
	"github.com/rewired-gh/curator/internal/storage"
	"github.com/rewired-gh/curator/internal/telegram"
)

var configPath = flag.String("config", "", "Path to configuration file (defaults and CURATOR_* env when empty)")

func main() {
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Setup logging with level support
	logger.Init(cfg.Logging.Level, cfg.Logging.Format)
	if *configPath != "" {
		logger.Info("Configuration loaded from %s", *configPath)
	}
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.New()
	source := buildSource(cfg, m)
	engine := curator.New(curator.WithObserver(logger.Observer{Operation: "score"}))

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Initialize Telegram digest
	if cfg.Telegram.Enabled {
		startDigest(ctx, cfg, source, engine, m)
	} else {
		logger.Debug("Telegram digest disabled")
	}

	handler := api.NewHandler(source, engine, m, cfg.Scoring.DefaultLimit)
	router := api.SetupRouter(handler, api.Config{CORSOrigins: cfg.Server.CORSOrigins})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("HTTP server listening on %s", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}
	logger.Info("Service stopped")
}

func buildSource(cfg *config.Config, m *metrics.Metrics) *datasource.Source {
	client := defillama.NewClient(
		cfg.DefiLlama.ProtocolsURL,
		cfg.DefiLlama.PoolsURL,
		cfg.DefiLlama.Timeout,
		defillama.ClientConfig{
			MaxRetries:     cfg.DefiLlama.MaxRetries,
			RetryDelayBase: cfg.DefiLlama.RetryDelayBase,
		},
	)

	opts := []datasource.Option{
		datasource.WithCache(cfg.Cache.TTL, cfg.Cache.CleanupInterval),
		datasource.WithRecorder(m),
	}
	if cfg.Storage.Enabled {
		store := storage.New(cfg.Storage.FilePath, cfg.Storage.FilePermissions, cfg.Storage.DirPermissions)
		logger.Info("Dataset snapshots stored at %s", store.Path())
		opts = append(opts, datasource.WithSnapshotStore(store))
	}
	if cfg.Scoring.FallbackToDefaults {
		opts = append(opts, datasource.WithDefaults(datasource.StaticDefaults{}))
	}
	return datasource.New(client, opts...)
}

func startDigest(ctx context.Context, cfg *config.Config, source *datasource.Source, engine *curator.Engine, m *metrics.Metrics) {
	telegramClient, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
	if err != nil {
		logger.Fatal("Failed to initialize Telegram client: %v", err)
	}
	logger.Info("Telegram client initialized successfully")

	mon := monitor.New(source, engine, countingNotifier{telegramClient, m}, monitor.Config{
		Tokens:   cfg.Telegram.Tokens,
		TopN:     cfg.Telegram.TopN,
		Cooldown: cfg.Telegram.Cooldown,
	})

	telegramClient.ListenForCommands(ctx, mon.FreshDigest)

	logger.Info("Starting digest (interval: %v, top_n: %d, tokens: %v)",
		cfg.Telegram.DigestInterval, cfg.Telegram.TopN, cfg.Telegram.Tokens)
	go mon.Run(ctx, cfg.Telegram.DigestInterval)
}

// countingNotifier records digest outcomes before delegating to Telegram.
type countingNotifier struct {
	*telegram.Client
	m *metrics.Metrics
}

func (n countingNotifier) Send(pools []models.ScoredPool, summary models.Summary) error {
	if err := n.Client.Send(pools, summary); err != nil {
		n.m.DigestFailures.Inc()
		return err
	}
	n.m.DigestsSent.Inc()
	return nil
}
