package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"szenai/internal/broadcast"
	"szenai/internal/cache"
	"szenai/internal/config"
	"szenai/internal/constants"
	"szenai/internal/database"
	"szenai/internal/metrics"
	"szenai/internal/models"
	"szenai/internal/proxy"
	"szenai/internal/ratelimit"
	"szenai/internal/retry"
	"szenai/internal/service"
	"szenai/internal/tracing"
	"szenai/pkg/waha"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes chat ids and message text)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("szenai %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting szenai")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else {
		applyLogLevel(logger, cfg.LogLevel)
	}

	environment := "development"
	if config.IsProduction() {
		environment = "production"
	}
	tracingManager := tracing.NewManager(tracing.Config{
		ServiceName:    "szenai",
		ServiceVersion: Version,
		Environment:    environment,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
		Enabled:        cfg.Tracing.Enabled,
		UseStdout:      cfg.Tracing.UseStdout,
	}, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	m := metrics.New()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: constants.DefaultRetryBackoffMs * time.Millisecond,
		MaxDelay:     constants.DefaultMaxBackoffMs * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
		Jitter:       true,
	})
	encryptionSecret := ""
	if cfg.Database.EnableEncryption {
		encryptionSecret = cfg.Database.EncryptionSecret
	}
	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path, encryptionSecret)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer db.Close()

	wahaClient, err := waha.NewClient(wahaConfig(cfg),
		waha.WithLogger(logger),
		waha.WithMetrics(m),
		waha.WithVerboseLogging(*verbose),
	)
	if err != nil {
		return fmt.Errorf("failed to create WAHA client: %w", err)
	}

	messagesTTL := time.Duration(cfg.Cache.MessagesTTLSec) * time.Second
	pictureTTL := time.Duration(cfg.Cache.PictureTTLSec) * time.Second
	responseCache := cache.New(time.Duration(cfg.Cache.DefaultTTLSec) * time.Second)
	responseCache.StartJanitor(ctx, constants.JanitorInterval, longestTTL(responseCache.TTL(), messagesTTL, pictureTTL))

	hub := broadcast.NewHub(logger, m, broadcast.WithOriginPatterns(originPatterns(cfg.Server.CORSAllowedOrigins)...))
	events := broadcast.NewFanout(logger, m, hub, broadcast.NewStorePublisher(db)).WithVerboseLogging(*verbose)

	px := proxy.New(wahaClient, responseCache, logger,
		proxy.WithPublisher(events),
		proxy.WithMetrics(m),
		proxy.WithResourceTTL(proxy.ResourceMessages, messagesTTL),
		proxy.WithResourceTTL(proxy.ResourcePicture, pictureTTL),
		proxy.WithVerboseLogging(*verbose),
	)

	limiter := ratelimit.New(cfg.RateLimit.Requests, time.Duration(cfg.RateLimit.WindowSec)*time.Second)

	scheduler := service.NewScheduler(db, cfg.RetentionDays, constants.DefaultCleanupIntervalHours*time.Hour, logger)
	go scheduler.Start(ctx)

	watcher := config.NewConfigWatcher(*configPath, logger)
	watcher.OnConfigChange(func(newCfg *models.Config) {
		if !*verbose {
			applyLogLevel(logger, newCfg.LogLevel)
		}
		scheduler.SetRetentionDays(newCfg.RetentionDays)
	})
	go func() {
		if err := watcher.Start(ctx); err != nil {
			logger.WithError(err).Warn("Configuration watcher stopped")
		}
	}()

	server := NewServer(cfg, logger, m, db, hub, px, limiter, *verbose)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	hub.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	logger.Info("Server shutdown completed")
	return nil
}

// applyLogLevel sets the configured level, capped at info. Debug output is
// only reachable through -verbose.
func applyLogLevel(logger *logrus.Logger, name string) {
	level, err := logrus.ParseLevel(name)
	if err != nil {
		logger.Warnf("Invalid log level %q, defaulting to info", name)
		level = logrus.InfoLevel
	}
	if level > logrus.InfoLevel {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
}

func wahaConfig(cfg *models.Config) waha.Config {
	return waha.Config{
		BaseURL:            cfg.WAHA.APIBaseURL,
		APIKey:             cfg.WAHA.APIKey,
		Session:            cfg.WAHA.SessionName,
		Timeout:            time.Duration(cfg.WAHA.TimeoutSec) * time.Second,
		RetryCount:         *cfg.WAHA.RetryCount,
		RetryDelay:         time.Duration(cfg.WAHA.RetryDelayMs) * time.Millisecond,
		BreakerMaxFailures: *cfg.WAHA.BreakerMaxFailures,
		BreakerTimeout:     time.Duration(cfg.WAHA.BreakerTimeoutSec) * time.Second,
	}
}

func longestTTL(ttls ...time.Duration) time.Duration {
	var longest time.Duration
	for _, ttl := range ttls {
		if ttl > longest {
			longest = ttl
		}
	}
	return longest
}

// originPatterns converts CORS origins into websocket host patterns.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if origin == "*" {
			patterns = append(patterns, "*")
			continue
		}
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
