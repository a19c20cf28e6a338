// Command server runs the research survey HTTP service: query planning,
// multi-source paper retrieval, report synthesis, and the quota ledger
// that bills each search.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/research-survey-service/internal/auth"
	"github.com/helixir/research-survey-service/internal/config"
	"github.com/helixir/research-survey-service/internal/database"
	"github.com/helixir/research-survey-service/internal/embedding"
	"github.com/helixir/research-survey-service/internal/ledger"
	"github.com/helixir/research-survey-service/internal/llm"
	"github.com/helixir/research-survey-service/internal/observability"
	"github.com/helixir/research-survey-service/internal/papersources"
	"github.com/helixir/research-survey-service/internal/papersources/arxiv"
	"github.com/helixir/research-survey-service/internal/papersources/openalex"
	"github.com/helixir/research-survey-service/internal/papersources/semanticscholar"
	"github.com/helixir/research-survey-service/internal/planner"
	"github.com/helixir/research-survey-service/internal/report"
	"github.com/helixir/research-survey-service/internal/repository"
	"github.com/helixir/research-survey-service/internal/search"
	httpserver "github.com/helixir/research-survey-service/internal/server/http"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
	})
	logger.Info().
		Str("ledger_backend", cfg.Ledger.Backend).
		Str("llm_provider", cfg.LLM.Provider).
		Msg("starting research survey service")

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage: the postgres ledger is the production backend; the memory
	// ledger exists for local development without a database.
	var (
		db          *database.DB
		quotaLedger ledger.Ledger
		reportRepo  repository.ReportRepository
	)
	switch cfg.Ledger.Backend {
	case "postgres":
		db, err = database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if cfg.Database.MigrationAutoRun {
			if err := runMigrations(db, cfg.Database.MigrationPath, logger); err != nil {
				return err
			}
		}

		quotaLedger = repository.NewPgLedger(db, metrics)
		reportRepo = repository.NewPgReportRepository(db)
	case "memory":
		logger.Warn().Msg("using in-memory ledger, balances and reports are not persisted")
		quotaLedger = ledger.NewMemoryLedger(metrics)
		reportRepo = repository.NewMemoryReportRepository()
	default:
		return fmt.Errorf("unsupported ledger backend: %s", cfg.Ledger.Backend)
	}

	completer, err := llm.NewCompleter(llm.FactoryConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		MaxRetries:  cfg.LLM.MaxRetries,
		OpenAI: llm.OpenAIConfig{
			APIKey:  cfg.LLM.OpenAI.APIKey,
			Model:   cfg.LLM.OpenAI.Model,
			BaseURL: cfg.LLM.OpenAI.BaseURL,
		},
		Anthropic: llm.AnthropicConfig{
			APIKey:  cfg.LLM.Anthropic.APIKey,
			Model:   cfg.LLM.Anthropic.Model,
			BaseURL: cfg.LLM.Anthropic.BaseURL,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create LLM completer: %w", err)
	}

	embedder := embedding.NewOpenAIEmbedder(embedding.Config{
		APIKey:     cfg.Embedding.APIKey,
		Model:      cfg.Embedding.Model,
		BaseURL:    cfg.Embedding.BaseURL,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	})
	embeddingCache := embedding.NewCache(embedder, metrics)

	registry := buildSourceRegistry(&cfg.PaperSources)

	ranker := search.NewRanker(embeddingCache, logger)
	orchestrator := search.NewOrchestrator(registry, ranker, search.Config{
		OverallTimeout:   cfg.Search.OverallTimeout,
		DefaultMaxPapers: cfg.Search.DefaultMaxPapers,
		MaxPapersLimit:   cfg.Search.MaxPapersLimit,
	}, metrics, logger)

	queryPlanner := planner.New(completer, metrics, logger)
	synthesizer := report.NewSynthesizer(completer, metrics, logger)
	authManager := auth.NewManager(&cfg.Auth)

	// Avoid a typed-nil interface when running without a database.
	var dbHealth httpserver.HealthChecker
	if db != nil {
		dbHealth = db
	}

	server := httpserver.NewServer(
		httpserver.Config{
			Address:      cfg.Server.HTTPAddress(),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  2 * cfg.Server.ReadTimeout,
		},
		quotaLedger,
		queryPlanner,
		orchestrator,
		synthesizer,
		reportRepo,
		dbHealth,
		authManager,
		metrics,
		logger,
	)

	errCh := make(chan error, 2)

	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:    cfg.Server.MetricsAddress(),
			Handler: metricsMux,
		}
		go func() {
			logger.Info().Str("address", metricsServer.Addr).Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	logger.Info().Msg("server stopped")
	return nil
}

// buildSourceRegistry wires the configured paper source clients. Disabled
// sources are still registered so source listings stay complete; the
// orchestrator skips them during fan-out.
func buildSourceRegistry(cfg *config.PaperSourcesConfig) *papersources.Registry {
	registry := papersources.NewRegistry()

	registry.Register(arxiv.New(arxiv.Config{
		BaseURL:    cfg.ArXiv.BaseURL,
		Timeout:    cfg.ArXiv.Timeout,
		RateLimit:  cfg.ArXiv.RateLimit,
		MaxResults: cfg.ArXiv.MaxResults,
		Enabled:    cfg.ArXiv.Enabled,
	}))

	registry.Register(semanticscholar.NewClient(semanticscholar.Config{
		BaseURL:    cfg.SemanticScholar.BaseURL,
		APIKey:     cfg.SemanticScholar.APIKey,
		Timeout:    cfg.SemanticScholar.Timeout,
		RateLimit:  cfg.SemanticScholar.RateLimit,
		MaxResults: cfg.SemanticScholar.MaxResults,
		Enabled:    cfg.SemanticScholar.Enabled,
	}, nil))

	// OpenAlex has no API keys; the polite pool wants a contact email,
	// which rides in the source's API key slot.
	registry.Register(openalex.New(openalex.Config{
		BaseURL:    cfg.OpenAlex.BaseURL,
		Email:      cfg.OpenAlex.APIKey,
		Timeout:    cfg.OpenAlex.Timeout,
		RateLimit:  cfg.OpenAlex.RateLimit,
		MaxResults: cfg.OpenAlex.MaxResults,
		Enabled:    cfg.OpenAlex.Enabled,
	}))

	return registry
}

// runMigrations applies pending schema migrations on startup.
func runMigrations(db *database.DB, path string, logger zerolog.Logger) error {
	migrator, err := database.NewMigrator(db, path, logger)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer func() {
		if err := migrator.Close(); err != nil {
			logger.Warn().Err(err).Msg("failed to close migrator")
		}
	}()

	if err := migrator.Up(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
