package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dmrelay/internal/config"
	"dmrelay/internal/constants"
	"dmrelay/internal/metrics"
	"dmrelay/internal/retry"
	"dmrelay/internal/service"
	"dmrelay/internal/tracing"
	"dmrelay/pkg/slackapi"

	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging (includes sensitive information)")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("dmrelay %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
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
	}).Info("Starting dmrelay")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		logger.Info("Verbose logging enabled - sensitive information will be logged")
	} else {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			level = logrus.InfoLevel
		}
		logger.SetLevel(level)
	}

	tracingManager := tracing.NewTracingManager(tracing.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: Version,
		Environment:    cfg.Tracing.Environment,
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

	slackClient := slackapi.NewClient(slackapi.ClientConfig{
		BotToken: cfg.Slack.BotToken,
		Timeout:  constants.DefaultHTTPTimeoutSec * time.Second,
	})

	// Verify the token and resolve the bot identity, with backoff so a
	// transient Slack outage at boot doesn't kill the process.
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Jitter:       true,
	})

	var identity *slack.AuthTestResponse
	err = backoff.Retry(ctx, func() error {
		var probeErr error
		identity, probeErr = slackClient.AuthTest(ctx)
		if probeErr != nil {
			logger.Warnf("Slack auth probe failed: %v", probeErr)
		}
		return probeErr
	})
	if err != nil {
		return fmt.Errorf("failed to verify Slack credentials: %w", err)
	}

	botUserID := cfg.Slack.BotUserID
	if botUserID == "" {
		botUserID = identity.UserID
	}
	logger.WithFields(logrus.Fields{
		"bot_user": identity.User,
		"team":     identity.Team,
	}).Info("Slack credentials verified")

	store := service.NewRequestStore()
	relocator := service.NewRelocator(slackClient, cfg.NotificationChannel, logger)
	aggregator := service.NewAggregator(store, slackClient, relocator, service.AggregatorConfig{
		BotUserID:           botUserID,
		NotificationChannel: cfg.NotificationChannel,
		MaxPendingItems:     cfg.Relay.MaxPendingItems,
		ResyncDelay:         time.Duration(cfg.Relay.ResyncDelaySec) * time.Second,
	}, logger)

	server := NewServer(aggregator, cfg, logger)

	metrics.SetGauge("app_info", 1, map[string]string{
		"version":     Version,
		"environment": cfg.Environment,
	}, "Application info")

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.DefaultGracefulShutdownSec*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	return nil
}
