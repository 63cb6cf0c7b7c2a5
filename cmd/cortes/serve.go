package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/cortes/internal/cnel"
	"github.com/goodtune/cortes/internal/config"
	"github.com/goodtune/cortes/internal/metrics"
	"github.com/goodtune/cortes/internal/refresh"
	"github.com/goodtune/cortes/internal/report"
	"github.com/goodtune/cortes/internal/schedule"
	"github.com/goodtune/cortes/internal/storage"
	"github.com/goodtune/cortes/internal/storage/memory"
	"github.com/goodtune/cortes/internal/storage/redis"
	"github.com/goodtune/cortes/internal/systemd"
	"github.com/goodtune/cortes/internal/web"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the cortes web server",
	Long:  `Start the web UI and JSON API, the metrics endpoint and, when enabled, the scheduled refresh of saved identifiers.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Bool("config_found", config.Exists(configPath)).
		Msg("Starting cortes")

	// Check for systemd socket activation
	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	// Initialize storage
	store, err := openStorage(cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close storage")
		}
	}()

	if saved, err := store.Identifiers().List(context.Background()); err == nil {
		metrics.SavedIdentifiers.Set(float64(len(saved)))
	}

	logger.Info().
		Str("type", cfg.Storage.Type).
		Msg("Storage initialized")

	// Notifications client and countdown board
	client := newClient(cfg, logger)
	board := newBoard(cfg, logger)
	defer board.Close()
	builder := report.NewBuilder(board, logger)

	logger.Info().
		Str("base_url", cfg.Upstream.BaseURL).
		Str("timezone", board.Location().String()).
		Int("cache_size", cfg.Upstream.CacheSize).
		Msg("Notifications client initialized")

	// Initialize Web Server
	webConfig := web.Config{
		ListenAddr:       fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort),
		RateLimit:        cfg.Server.RateLimit,
		RateLimitWindow:  config.Duration(cfg.Server.RateLimitWindow, time.Minute),
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		Clock24h:         cfg.Display.Clock24h,
		DefaultCriterion: cnel.Criterion(cfg.Display.DefaultCriterion),
	}
	webServer := web.NewServer(webConfig, client, builder, store.Identifiers(), logger)

	// Use systemd socket-activated listener if available
	if sdListeners.Activated && sdListeners.HTTP != nil {
		webServer.SetListener(sdListeners.HTTP)
	}

	if err := webServer.Start(); err != nil {
		return fmt.Errorf("failed to start Web Server: %w", err)
	}

	// Initialize Refresh Watcher (if enabled)
	var watcher *refresh.Watcher
	if cfg.Refresh.Enabled {
		watcher, err = refresh.New(cfg.Refresh.Cron, client, builder, store.Identifiers(), webServer.Sequencer(), logger)
		if err != nil {
			return fmt.Errorf("failed to initialize Refresh Watcher: %w", err)
		}
		watcher.Start()
	}

	// Initialize Metrics Server
	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || (sdListeners.Activated && sdListeners.Metrics != nil) {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort)
		metricsServer = metrics.NewServer(metricsAddr, logger)

		if sdListeners.Activated && sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}

		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start Metrics Server: %w", err)
		}
	}

	// Log startup complete
	logger.Info().Msg("cortes startup complete")
	logger.Info().Msgf("Web UI: http://%s", webConfig.ListenAddr)
	if metricsServer != nil {
		logger.Info().Msgf("Metrics: http://%s:%d/metrics", cfg.Server.BindAddress, cfg.Server.MetricsPort)
	}

	// Notify systemd that we're ready to serve requests
	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	} else {
		logger.Debug().Msg("Sent systemd ready notification")
	}

	// Wait for signals (shutdown or refresh)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for sig := range sigChan {
		if sig != syscall.SIGHUP {
			logger.Info().Msg("Shutdown signal received, gracefully stopping...")
			break
		}

		if watcher == nil {
			logger.Info().Msg("SIGHUP received but scheduled refresh is disabled")
			continue
		}
		logger.Info().Msg("SIGHUP received, refreshing saved identifiers...")
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			sum, err := watcher.RunOnce(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("Refresh failed")
				return
			}
			_ = systemd.NotifyStatus(fmt.Sprintf("Refreshed %d/%d saved identifiers", sum.Refreshed, sum.Checked))
		}()
	}

	// Notify systemd that we're stopping
	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	// Stop servers
	if watcher != nil {
		watcher.Stop()
	}

	if err := webServer.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error stopping Web Server")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping Metrics Server")
		}
	}

	logger.Info().Msg("cortes stopped")

	return nil
}

func openStorage(cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case "", "memory":
		return memory.New(), nil
	case "redis":
		return redis.Open(cfg.Redis)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

func newClient(cfg *config.Config, logger zerolog.Logger) *cnel.Client {
	return cnel.New(cnel.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   config.Duration(cfg.Upstream.Timeout, 15*time.Second),
		UserAgent: cfg.Upstream.UserAgent,
		CacheSize: cfg.Upstream.CacheSize,
		CacheTTL:  config.Duration(cfg.Upstream.CacheTTL, 5*time.Minute),
	}, logger)
}

func newBoard(cfg *config.Config, logger zerolog.Logger) *schedule.Board {
	var board *schedule.Board
	board = schedule.NewBoard(cfg.Location(), func(scope string, w schedule.CutWindow) {
		metrics.CountdownExpirations.Inc()
		metrics.ActiveCuts.Set(float64(board.ActiveCount()))
		logger.Info().
			Str("scope", scope).
			Str("account", w.Account).
			Str("start", w.StartTime).
			Str("end", w.EndTime).
			Msg("Cut window finished")
	})
	return board
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	// Set log level
	level := zerolog.InfoLevel
	switch cfg.Level {
	case "debug":
		level = zerolog.DebugLevel
	case "info":
		level = zerolog.InfoLevel
	case "warn":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	}

	zerolog.SetGlobalLevel(level)

	// Set output format
	if cfg.Format == "text" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}

	// Default to JSON
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// quietLogger is used by the one-shot commands.
func quietLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()
}
