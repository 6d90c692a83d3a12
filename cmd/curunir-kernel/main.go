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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/manthysbr/curunir/internal/adapters/duckdb"
	"github.com/manthysbr/curunir/internal/adapters/llm"
	"github.com/manthysbr/curunir/internal/config"
	"github.com/manthysbr/curunir/internal/core/domain"
	"github.com/manthysbr/curunir/internal/core/services"
	"github.com/manthysbr/curunir/internal/metrics"
	"github.com/manthysbr/curunir/pkg/kernel"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger.Info("starting curunir kernel")

	if err := run(logger); err != nil {
		logger.Error("kernel startup failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	configPath := flag.String("config", "", "path to config file (default: ./config/default.yaml)")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		logger.Info("shutting down")
		cancel()
	}()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Metrics registry with process/go collectors plus kernel collectors.
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	met := metrics.New(promRegistry)

	// LLM backend
	llmClient, err := llm.Build(llm.Options{
		Provider:   cfg.LLM.Provider,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		APIKey:     cfg.LLM.APIKey,
		Timeout:    cfg.LLM.Timeout,
		MaxRetries: cfg.LLM.MaxRetries,
	})
	if err != nil {
		return fmt.Errorf("failed to build llm client: %w", err)
	}

	// Storage
	artifacts, err := services.NewArtifactManager(cfg.Output.BasePath)
	if err != nil {
		return fmt.Errorf("failed to init artifact storage: %w", err)
	}

	leadStore, err := duckdb.NewLeadStore(cfg.Leads.DBPath)
	if err != nil {
		return fmt.Errorf("failed to init lead store: %w", err)
	}
	defer leadStore.Close()

	// Core services
	jobStore := services.NewJobStore()
	runner := services.NewJobRunner(logger, jobStore, met, services.RunnerConfig{
		MaxConcurrent: cfg.Job.MaxConcurrent,
	})

	toolRegistry := domain.NewToolRegistry()
	if err := services.RegisterBuiltinTools(toolRegistry, llmClient, artifacts); err != nil {
		return fmt.Errorf("failed to register built-in tools: %w", err)
	}
	logger.Info("tools registered", "count", len(toolRegistry.ListTools()))

	planner := services.NewPlanner(logger, llmClient, toolRegistry, met)

	// Mini apps
	miniApps := services.NewMiniAppRegistry()
	for _, app := range []services.MiniApp{
		services.NewGoalAgentApp(logger, planner),
		services.NewRealEstateAdsApp(logger, llmClient, toolRegistry, artifacts),
		services.NewMarketScraperApp(logger, llmClient, toolRegistry, artifacts, leadStore),
	} {
		if err := miniApps.Register(app); err != nil {
			return fmt.Errorf("failed to register mini app: %w", err)
		}
	}

	// Kernel API server
	apiServer := kernel.NewServer(logger, jobStore, runner, miniApps, toolRegistry, artifacts, promRegistry)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	})

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: c.Handler(apiServer.Handler()),
	}

	g, gCtx := errgroup.WithContext(ctx)

	// 1. API server
	g.Go(func() error {
		logger.Info("starting api server", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	})

	// 2. Periodic cleanup of old finished jobs
	g.Go(func() error {
		retention := time.Duration(cfg.Job.LogRetentionHours) * time.Hour
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-gCtx.Done():
				return nil
			case <-ticker.C:
				if removed := jobStore.CleanupOlderThan(retention); removed > 0 {
					logger.Info("cleaned up old jobs", "removed", removed)
				}
			}
		}
	})

	// 3. Graceful shutdown
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		err := httpServer.Shutdown(shutdownCtx)
		runner.Shutdown(true)
		return err
	})

	return g.Wait()
}
