// Package main is the entry point for the download orchestrator API.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/streamsaavy/streamsaavy-go/internal/config"
	"github.com/streamsaavy/streamsaavy-go/internal/engine"
	"github.com/streamsaavy/streamsaavy-go/internal/infra/cache"
	"github.com/streamsaavy/streamsaavy-go/internal/infra/fs"
	"github.com/streamsaavy/streamsaavy-go/internal/infra/s3"
	"github.com/streamsaavy/streamsaavy-go/internal/infra/sqlite"
	"github.com/streamsaavy/streamsaavy-go/internal/plan"
	"github.com/streamsaavy/streamsaavy-go/internal/service/orchestrator"
	"github.com/streamsaavy/streamsaavy-go/internal/supervisor"
	apihttp "github.com/streamsaavy/streamsaavy-go/internal/transport/http"
	"github.com/streamsaavy/streamsaavy-go/internal/transport/http/middleware"
	"github.com/streamsaavy/streamsaavy-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if cfg.IsProduction() {
		logger.SetupProduction()
	} else {
		logger.Setup(&logger.Config{Level: cfg.LogLevel, Format: "text"})
	}

	eng := engine.New(&engine.Config{
		BinaryPath:         cfg.EnginePath,
		FFmpegPath:         cfg.FFmpegPath,
		StructuredProgress: cfg.StructuredProgress,
		ProbeTimeout:       cfg.ProbeTimeout,
	})
	if err := eng.Check(); err != nil {
		slog.Warn("media engine check failed, downloads will fail until it is installed", "error", err)
	}

	builder := plan.Builder{DefaultCredentialsFile: cfg.CredentialsFile}
	if builder.DefaultCredentialsFile == "" {
		builder.DefaultCredentialsFile = plan.DiscoverDefaultCredentials()
	}

	sup := supervisor.New(eng)

	opts := []orchestrator.Option{
		orchestrator.WithProber(eng, cache.NewMediaInfoCache(cfg.ProbeCacheTTL, 10*time.Minute)),
	}

	repo, err := sqlite.NewRepository(cfg.DataDir)
	if err != nil {
		slog.Warn("job history disabled", "error", err)
	} else {
		if n, merr := repo.MarkInterrupted(context.Background()); merr != nil {
			slog.Warn("failed to mark interrupted jobs", "error", merr)
		} else if n > 0 {
			slog.Info("marked interrupted jobs from previous run", "count", n)
		}
		opts = append(opts, orchestrator.WithHistory(repo))
	}

	var uploader *s3.Uploader
	if cfg.UploadEnabled() {
		up, uerr := s3.NewUploader(context.Background(), &s3.Config{
			Endpoint:        cfg.S3Endpoint,
			Region:          cfg.S3Region,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3Bucket,
			PresignExpiry:   cfg.S3PresignExpiry,
		})
		if uerr != nil {
			slog.Warn("upload storage disabled", "error", uerr)
		} else {
			uploader = up
			opts = append(opts, orchestrator.WithUploader(uploader))
		}
	}

	orch := orchestrator.New(builder, sup, opts...)

	handlers := apihttp.NewHandlers(orch, cfg.DefaultDestination)
	limiters := &apihttp.RateLimiters{
		Download: middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerMinute: cfg.DownloadRPM,
			Burst:             cfg.DownloadBurst,
			CleanupInterval:   10 * time.Minute,
		}),
		Status: middleware.NewRateLimiter(&middleware.RateLimitConfig{
			RequestsPerMinute: cfg.StatusRPM,
			Burst:             cfg.StatusBurst,
			CleanupInterval:   10 * time.Minute,
		}),
	}

	router := apihttp.NewRouter(cfg, handlers, limiters)
	server := apihttp.NewServer(":"+cfg.Port, router)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweeper := fs.NewSweeper(sweepDir(cfg), cfg.SweepMaxAge, cfg.SweepInterval)
	sweeper.Start(ctx)

	if repo != nil || uploader != nil {
		go retentionLoop(ctx, orch, cfg.HistoryMaxAge)
	}

	go func() {
		slog.Info("server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down...")
	orch.Cancel()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	server.Shutdown(shutdownCtx)

	if repo != nil {
		repo.Close()
	}
}

// sweepDir is where partial download fragments accumulate: the configured
// default destination, falling back to the user's Downloads directory.
func sweepDir(cfg *config.Config) string {
	if cfg.DefaultDestination != "" {
		return cfg.DefaultDestination
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, "Downloads")
}

// retentionLoop expires old job records and their uploaded objects.
func retentionLoop(ctx context.Context, orch *orchestrator.Orchestrator, maxAge time.Duration) {
	ticker := time.NewTicker(12 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			orch.PruneHistory(ctx, maxAge)
		case <-ctx.Done():
			return
		}
	}
}
