package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"

	"github.com/miguelbenajes/HoldedConnector/internal/auth"
	"github.com/miguelbenajes/HoldedConnector/internal/catalog"
	"github.com/miguelbenajes/HoldedConnector/internal/config"
	"github.com/miguelbenajes/HoldedConnector/internal/domain/repositories"
	agentsvc "github.com/miguelbenajes/HoldedConnector/internal/domain/services/agent"
	"github.com/miguelbenajes/HoldedConnector/internal/handler"
	"github.com/miguelbenajes/HoldedConnector/internal/holded"
	"github.com/miguelbenajes/HoldedConnector/internal/middleware"
	"github.com/miguelbenajes/HoldedConnector/internal/repository/postgres"
	"github.com/miguelbenajes/HoldedConnector/internal/repository/sqlite"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/chat"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/loop"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/pending"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/providers/anthropic"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/providers/lorem"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/providers/openai"
	"github.com/miguelbenajes/HoldedConnector/internal/service/agent/tools"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration
	cfg := config.Load()

	// Setup structured logging
	logger, closeLog, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"safe_mode", cfg.SafeMode,
		"model", cfg.Model,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// SQLite holds the synced accounting ledger. The read-write handle only
	// creates the schema; tools read through a read-only connection.
	db, err := sqlite.Open(cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := sqlite.EnsureLedgerSchema(db); err != nil {
		log.Fatalf("Failed to create ledger schema: %v", err)
	}

	ledgerDB, err := sqlite.OpenReadOnly(cfg.DBName)
	if err != nil {
		log.Fatalf("Failed to open read-only ledger: %v", err)
	}
	defer ledgerDB.Close()
	ledgerStore := sqlite.NewLedgerStore(ledgerDB)

	checks := map[string]handler.Pinger{"sqlite": db.PingContext}

	// Conversations, favorites and pending actions
	var (
		conversations repositories.ConversationRepository
		favorites     repositories.FavoriteRepository
		pendingStore  repositories.PendingActionStore
	)

	if cfg.UsePostgres() {
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("Failed to create connection pool: %v", err)
		}
		defer pool.Close()

		tables := postgres.NewTableNames(cfg.TablePrefix)
		if err := postgres.Migrate(ctx, pool, tables); err != nil {
			log.Fatalf("Failed to migrate database: %v", err)
		}

		repoConfig := &postgres.RepositoryConfig{
			Pool:   pool,
			Tables: tables,
			Logger: logger,
		}
		conversations = postgres.NewConversationRepository(repoConfig)
		favorites = postgres.NewFavoriteRepository(repoConfig)
		if cfg.PendingStore == "postgres" {
			pendingStore = postgres.NewPendingActionStore(repoConfig, cfg.PendingTTL, time.Now)
		}
		checks["postgres"] = pool.Ping

		logger.Info("database connected", "backend", "postgres", "table_prefix", cfg.TablePrefix)
	} else {
		conversations = mustSQLite(sqlite.NewConversationStore(db))
		favorites = mustSQLite(sqlite.NewFavoriteStore(db))
		logger.Info("database connected", "backend", "sqlite", "path", cfg.DBName)
	}

	if pendingStore == nil {
		pendingStore = pending.NewMemoryStore(cfg.PendingTTL, time.Now)
	}

	// Tool registry
	cat, err := catalog.Load()
	if err != nil {
		log.Fatalf("Failed to load tool catalog: %v", err)
	}

	toolConfig := tools.DefaultToolConfig()
	toolConfig.UploadsDir = cfg.UploadsDir
	toolConfig.ReportsDir = cfg.ReportsDir

	holdedClient := holded.NewClient(holded.Config{
		APIKey:   cfg.HoldedAPIKey,
		BaseURL:  cfg.HoldedBaseURL,
		SafeMode: cfg.SafeMode,
	}, logger)

	registry, err := tools.NewToolRegistryBuilder(cat, toolConfig).
		WithLedgerTools(ledgerStore).
		WithChartTools().
		WithFileTools(conversations).
		WithHoldedTools(holdedClient).
		Build()
	if err != nil {
		log.Fatalf("Failed to build tool registry: %v", err)
	}
	logger.Info("tool registry initialized", "tools", len(registry.Definitions()))

	// Agent
	provider, err := newGenerator(cfg, logger)
	if err != nil {
		log.Fatalf("Failed to setup LLM provider: %v", err)
	}
	logger.Info("LLM provider initialized", "provider", provider.Name(), "model", cfg.Model)

	agentLoop := loop.New(provider, registry, pendingStore, loop.Config{
		Model:     cfg.Model,
		MaxRounds: cfg.MaxRounds,
		Timeout:   cfg.RequestTimeout,
	}, logger)

	chatService := chat.NewChatService(chat.Dependencies{
		Loop:          agentLoop,
		Resolver:      pending.NewResolver(pendingStore, registry, logger),
		Conversations: conversations,
		Favorites:     favorites,
		Stats:         ledgerStore,
		Tools:         registry,
	}, chat.Config{
		Model:        cfg.Model,
		Provider:     provider.Name(),
		SafeMode:     cfg.SafeMode,
		MaxRounds:    cfg.MaxRounds,
		PendingTTL:   cfg.PendingTTL,
		HistoryLimit: cfg.HistoryLimit,
	}, logger)

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	origins := strings.Split(cfg.CORSOrigins, ",")
	limiter := middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow, cfg.TrustProxy, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux,
		handler.NewAgentHandler(chatService, nil, logger),
		handler.NewHealthHandler(checks),
		handler.NewUpgrader(origins),
		limiter.Middleware,
	)

	// Build middleware chain
	// Order: CORS → Recovery → Auth → Routes
	var h http.Handler = mux
	if cfg.AuthJWKSURL != "" {
		verifier, err := auth.NewJWTVerifier(ctx, cfg.AuthJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer verifier.Close()
		h = middleware.Auth(verifier, logger)(h)
	} else {
		logger.Warn("authentication disabled: AUTH_JWKS_URL not set")
	}
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	h = newCORS(origins).Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("server listening", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return pending.RunSweeper(gctx, pendingStore, pending.DefaultSweepInterval, logger)
	})
	g.Go(func() error {
		return limiter.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
	logger.Info("server stopped")
}

// newCORS allows only the request headers the API reads.
func newCORS(origins []string) *cors.Cors {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
}

// newGenerator picks the model backend from AI_PROVIDER. The lorem mock also
// serves lorem-* models.
func newGenerator(cfg *config.Config, logger *slog.Logger) (agentsvc.Generator, error) {
	switch {
	case cfg.Provider == "lorem" || strings.HasPrefix(cfg.Model, lorem.ModelPrefix):
		return lorem.NewProvider(0), nil
	case cfg.Provider == "anthropic":
		return anthropic.NewProvider(cfg.AnthropicAPIKey, cfg.Model, logger)
	default:
		return openai.NewProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.Model, logger)
	}
}

func mustSQLite[T any](store T, err error) T {
	if err != nil {
		log.Fatalf("Failed to migrate SQLite store: %v", err)
	}
	return store
}
