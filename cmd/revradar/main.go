package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/revradar/revradar/internal/agent"
	"github.com/revradar/revradar/internal/analysis"
	analysishttp "github.com/revradar/revradar/internal/analysis/http"
	"github.com/revradar/revradar/internal/app"
	"github.com/revradar/revradar/internal/extract"
	"github.com/revradar/revradar/internal/platform/db"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		logger.Error("ensure schema", slog.Any("error", err))
		os.Exit(1)
	}

	var extractor extract.Extractor
	if cfg.PDFExtractorURL != "" {
		client := extract.NewClient(cfg.PDFExtractorURL, extract.DefaultFileTimeout)
		if err := client.Ping(ctx); err != nil {
			logger.Warn("pdf extractor service unreachable",
				slog.String("url", cfg.PDFExtractorURL), slog.Any("error", err))
		}
		extractor = client
	} else {
		subprocess := extract.NewSubprocess(cfg.PDFExtractorPath, logger)
		if !subprocess.Available(ctx) {
			logger.Warn("pdf extractor binary not responding",
				slog.String("path", cfg.PDFExtractorPath))
		}
		extractor = subprocess
	}

	var llm analysis.Agent
	if cfg.LLMAPIKey != "" {
		llm = agent.NewClient(agent.Config{
			BaseURL:    cfg.LLMBaseURL,
			APIKey:     cfg.LLMAPIKey,
			Model:      cfg.LLMModel,
			Timeout:    cfg.LLMTimeout(),
			MaxRetries: cfg.LLMMaxRetries,
		}, logger)
	} else {
		logger.Warn("LLM_API_KEY not set, ambiguous transactions cannot be classified")
	}

	registry := analysis.NewRegistry()
	store := analysis.NewRepository(pool)
	service := analysis.NewService(logger, store, extractor, llm, registry)
	handler := analysishttp.NewHandler(logger, service, cfg.MaxFileSize)

	router := app.NewRouter(app.RouterParams{
		Logger:    logger,
		Config:    cfg,
		Analysis:  handler,
		StartedAt: time.Now(),
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Background sessions are lost past this point; they stay generating and
	// never auto-resume.
	if live := registry.Snapshot(); len(live) > 0 {
		logger.Warn("abandoning in-flight sessions", slog.Any("sessions", live))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
