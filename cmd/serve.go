package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/psybrarian/psybrarian/internal/answer"
	"github.com/psybrarian/psybrarian/internal/api"
	"github.com/psybrarian/psybrarian/internal/chatlog"
	"github.com/psybrarian/psybrarian/internal/config"
	"github.com/psybrarian/psybrarian/internal/domains"
	"github.com/psybrarian/psybrarian/internal/embedding"
	"github.com/psybrarian/psybrarian/internal/knowledge"
	"github.com/psybrarian/psybrarian/internal/log"
	"github.com/psybrarian/psybrarian/internal/observability"
	"github.com/psybrarian/psybrarian/internal/rank"
	"github.com/psybrarian/psybrarian/internal/websearch"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// runServe initializes and starts the HTTP API server.
func runServe(logger log.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	addr, err := parseServeAddr(serveArgs())
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting HTTP API server", "version", Version)

	if cfg.Tracing.Enabled {
		shutdownTracing, tErr := observability.Setup(ctx, observability.Config{
			Endpoint:    cfg.Tracing.Endpoint,
			ServiceName: cfg.Tracing.ServiceName,
		}, logger)
		if tErr != nil {
			return fmt.Errorf("setting up tracing: %w", tErr)
		}
		defer func() {
			flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer flushCancel()
			if err := shutdownTracing(flushCtx); err != nil {
				logger.Warn("tracing shutdown error", "error", err)
			}
		}()
	}

	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	timeout := time.Duration(cfg.Search.TimeoutSeconds) * time.Second

	embedder := embedding.NewOpenAI(cfg.OpenAIAPIKey, cfg.EmbedderModel, timeout, logger)
	searcher := websearch.New(cfg.ExaBaseURL, cfg.ExaAPIKey, timeout, logger)

	entryStore := knowledge.NewStore(pool, logger)
	chunkIndex := knowledge.NewChunkIndex(entryStore, logger)
	indexer := knowledge.NewIndexer(entryStore, embedder, logger)

	logStore := chatlog.NewStore(pool, logger)
	ruleStore := domains.NewStore(pool, logger)
	domainEngine := domains.NewEngine(ruleStore, cfg.Search.ExtraDomains, logger)
	ranker := rank.NewEngine(cfg.Search.FeaturedDomain, logger)

	orchestrator := answer.NewOrchestrator(
		embedder,
		entryStore,
		chunkIndex,
		logStore,
		domainEngine,
		searcher,
		ranker,
		answer.Config{
			FeaturedDomain: cfg.Search.FeaturedDomain,
			ChunkThreshold: float32(cfg.Search.ChunkThreshold),
			ChunkTopN:      cfg.Search.ChunkTopN,
			ResultLimit:    cfg.Search.ResultLimit,
			MaxHistory:     cfg.Search.MaxHistory,
		},
		logger,
	)

	apiServer, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Resolver:    orchestrator,
		Reactions:   logStore,
		Indexer:     indexer,
		Pool:        pool,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("HTTP server ready",
		"addr", addr,
		"api", "/api/v1/*",
		"health", "/health, /ready",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down HTTP server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTP server: %w", err)
	}
}

// openPool connects to PostgreSQL with the pgvector type codec registered on
// every connection.
func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return pool, nil
}
