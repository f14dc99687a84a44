package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/italolelis/channel_downloader/internal/config"
	"github.com/italolelis/channel_downloader/internal/downloader"
	"github.com/italolelis/channel_downloader/internal/logctx"
	"github.com/italolelis/channel_downloader/internal/media"
	"github.com/italolelis/channel_downloader/internal/notifier"
	"github.com/italolelis/channel_downloader/internal/source"
	"github.com/italolelis/channel_downloader/internal/source/httpfeed"
	"github.com/italolelis/channel_downloader/internal/storage/sqlite"
	"github.com/italolelis/channel_downloader/internal/telemetry"
)

const (
	dirPerm         = 0o755
	shutdownTimeout = 10 * time.Second
)

var version = "dev"

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <config.yaml>\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadConfig(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading or parsing config file '%s': %v\n", os.Args[1], err)
		os.Exit(1)
	}

	logger, closer, err := logctx.NewLogger(os.Stdout, cfg.App.LogFile, cfg.SlogLevel())
	defer closer.Close()

	if err != nil {
		logger.Error("failed to set up log file", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("channel downloader starting...", "version", version, "log_level", cfg.App.LogLevel)

	// Session failures are reported in the logs; only configuration errors
	// change the exit code.
	if err := run(logctx.WithLogger(ctx, logger), cfg); err != nil {
		logger.Error("critical error occurred", "err", err)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	logger := logctx.LoggerFromContext(ctx)

	// =========================================================================
	// Prepare Storage Directories
	for _, dir := range []string{cfg.Storage.VideoDir, cfg.Storage.AudioDir} {
		if err := os.MkdirAll(dir, dirPerm); err != nil {
			return fmt.Errorf("failed to create download directory: %w", err)
		}

		logger.Info("download directory ready", "dir", dir)
	}

	// =========================================================================
	// Start Telemetry
	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := tel.Shutdown(ctx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	if cfg.Telemetry.Enabled && cfg.Telemetry.MetricsAddr != "" {
		server := setupMetricsServer(ctx, tel, cfg.Telemetry.MetricsAddr)

		go func() {
			logger.Info("serving metrics", "addr", cfg.Telemetry.MetricsAddr)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "err", err)
			}
		}()

		defer func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(ctx); err != nil {
				logger.Error("failed to gracefully shutdown the metrics server", "err", err)
			}
		}()
	}

	// =========================================================================
	// Build Session
	client, err := httpfeed.NewClient(cfg.Source.BaseURL, cfg.User.APIToken, cfg.Source.PageSize)
	if err != nil {
		return fmt.Errorf("failed to build feed client: %w", err)
	}

	src := source.NewInstrumentedSource(client, tel, "httpfeed")
	repo := sqlite.NewInstrumentedDownloadRepository(sqlite.NewDownloadRepository(cfg.Storage.SqliteFile), tel)

	limiter, err := downloader.NewLimiter(cfg.App.DownloadAtSameTimeSize)
	if err != nil {
		return err
	}

	session, err := downloader.NewSession(src, repo, limiter, tel, downloader.SessionConfig{
		ChannelID:    cfg.Search.ChannelID,
		Keywords:     cfg.Search.KeyWords,
		Targets:      buildTargets(cfg),
		SweepOrphans: cfg.App.SweepOrphans,
	})
	if err != nil {
		return err
	}

	// =========================================================================
	// Run Session
	summary, err := session.Run(ctx)
	if err != nil {
		return fmt.Errorf("session did not start: %w", err)
	}

	notify(ctx, cfg, summary)

	return nil
}

func buildTargets(cfg *config.Config) []downloader.Target {
	var targets []downloader.Target

	if cfg.App.DownloadVideo {
		targets = append(targets, downloader.Target{Kind: media.KindVideo, Directory: cfg.Storage.VideoDir, DefaultExtension: "mp4"})
	}

	if cfg.App.DownloadAudio {
		targets = append(targets, downloader.Target{Kind: media.KindAudio, Directory: cfg.Storage.AudioDir, DefaultExtension: "mp3"})
	}

	return targets
}

func notify(ctx context.Context, cfg *config.Config, summary *downloader.Summary) {
	if cfg.App.DiscordWebhookURL == "" {
		return
	}

	var n notifier.Notifier = &notifier.DiscordNotifier{WebhookURL: cfg.App.DiscordWebhookURL}

	if err := n.Notify(ctx, notifier.SummaryMessage(summary)); err != nil {
		logctx.LoggerFromContext(ctx).Error("failed to send notification", "err", err)
	}
}

// setupMetricsServer exposes the Prometheus endpoint.
func setupMetricsServer(ctx context.Context, tel *telemetry.Telemetry, addr string) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", tel.Handler())

	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
