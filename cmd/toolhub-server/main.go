package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/intella-ai/toolhub/internal/api"
	"github.com/intella-ai/toolhub/internal/auth"
	"github.com/intella-ai/toolhub/internal/dispatch"
	"github.com/intella-ai/toolhub/internal/providers/browser"
	"github.com/intella-ai/toolhub/internal/providers/memory"
	"github.com/intella-ai/toolhub/internal/providers/toolkit"
	"github.com/intella-ai/toolhub/internal/settings"
	"github.com/intella-ai/toolhub/internal/storage"
	"github.com/intella-ai/toolhub/internal/tools"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

const healthServiceName = "intella.toolhub.v1.ToolHub"

func main() {
	// Logger
	logger := mustBuildLogger(envOrDefault("TOOLHUB_LOG_LEVEL", "info"))
	defer logger.Sync() //nolint:errcheck // best-effort flush

	// Config from env
	httpPort := envOrDefault("TOOLHUB_HTTP_PORT", "8080")
	healthPort := envOrDefault("TOOLHUB_HEALTH_PORT", "50055")
	relayTimeoutMs := envOrDefaultInt("TOOLHUB_RELAY_TIMEOUT_MS", int(browser.DefaultRelayTimeout/time.Millisecond))
	minProviderVersion := envOrDefault("TOOLHUB_MIN_PROVIDER_VERSION", "")
	clickhouseDSN := os.Getenv("CLICKHOUSE_DSN")
	postgresDSN := os.Getenv("POSTGRES_DSN")
	authCacheTTL := envOrDefaultInt("TOOLHUB_AUTH_CACHE_TTL_S", 30)
	settingsCacheTTL := envOrDefaultInt("TOOLHUB_SETTINGS_CACHE_TTL_S", 15)

	relayTimeout := time.Duration(relayTimeoutMs) * time.Millisecond

	logger.Info("starting toolhub server",
		zap.String("http_port", httpPort),
		zap.String("health_port", healthPort),
		zap.Int("relay_timeout_ms", relayTimeoutMs),
	)

	// Postgres pool — shared by settings, auth and the memory store
	var db *sql.DB
	if postgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", postgresDSN)
		if err != nil {
			logger.Fatal("failed to open postgres", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.PingContext(context.Background()); err != nil {
			logger.Fatal("failed to ping postgres", zap.Error(err))
		}
		logger.Info("postgres connected")
	} else {
		logger.Info("no POSTGRES_DSN set, using in-memory fallbacks")
	}

	// Settings — Postgres if DSN provided, otherwise static from env
	var settingsStore settings.Store
	if db != nil {
		settingsStore = settings.NewPostgresStore(settings.PostgresStoreConfig{
			DB:       db,
			CacheTTL: time.Duration(settingsCacheTTL) * time.Second,
			Logger:   logger,
		})
		logger.Info("postgres settings store connected")
	} else {
		settingsStore = settings.NewStaticStore(settings.Settings{
			MemoryAPIKey:    os.Getenv("MEMORY_API_KEY"),
			MemoryUserID:    os.Getenv("MEMORY_USER_ID"),
			MemoryBaseURL:   envOrDefault("MEMORY_BASE_URL", "https://api.mielto.com/v1"),
			EmbeddingModel:  envOrDefault("EMBEDDING_MODEL", "text-embedding-3-small"),
			MemoriesEnabled: os.Getenv("MEMORIES_ENABLED") != "false",
			ToolkitAPIKey:   os.Getenv("TOOLKIT_API_KEY"),
			ToolkitBaseURL:  os.Getenv("TOOLKIT_BASE_URL"),
			PageRelayURL:    os.Getenv("PAGE_RELAY_URL"),
		})
		logger.Info("using static settings store (no POSTGRES_DSN)")
	}

	// Storage — ClickHouse or LogWriter fallback
	var writer storage.EventWriter
	if clickhouseDSN != "" {
		chWriter, err := storage.NewClickHouseWriter(clickhouseDSN, logger)
		if err != nil {
			logger.Warn("clickhouse connection failed, falling back to log writer",
				zap.Error(err),
			)
			writer = storage.NewLogWriter(logger)
		} else {
			writer = chWriter
			logger.Info("clickhouse writer connected")
		}
	} else {
		writer = storage.NewLogWriter(logger)
		logger.Info("no CLICKHOUSE_DSN set, using log writer")
	}
	defer writer.Close()

	// Auth — Postgres if DSN provided, otherwise static
	var authenticator auth.Authenticator
	if db != nil {
		authenticator = auth.NewPostgresAuthenticator(auth.PostgresAuthConfig{
			DB:       db,
			CacheTTL: time.Duration(authCacheTTL) * time.Second,
			Logger:   logger,
		})
		logger.Info("postgres authenticator connected")
	} else {
		authenticator = auth.NewStaticAuthenticator()
		logger.Info("using static authenticator (no POSTGRES_DSN)")
	}

	// Memory store — Postgres+pgvector or in-memory fallback
	var memStore memory.MemoryStore
	if db != nil {
		memStore = memory.NewPostgresMemoryStore(db)
	} else {
		memStore = memory.NewInMemoryStore()
	}

	// Provider factory — the registry repopulates itself from this after
	// a cold start, so construction must be repeatable.
	factory := func(ctx context.Context) []tools.Provider {
		return []tools.Provider{
			memory.NewProvider(memStore, memory.NewHTTPEmbedder(settingsStore), settingsStore, logger),
			browser.NewProvider(browser.NewHTTPBridge(settingsStore), relayTimeout, logger),
			toolkit.NewProvider(toolkit.NewHTTPClient(settingsStore), settingsStore, logger),
		}
	}

	// Registry + dispatcher
	var regOpts []tools.Option
	if minProviderVersion != "" {
		regOpts = append(regOpts, tools.WithMinProviderVersion(minProviderVersion))
	}
	registry := tools.NewRegistry(logger, regOpts...)
	for _, status := range registry.EnsureReady(context.Background(), factory) {
		logger.Info("provider status",
			zap.String("provider_id", status.ProviderID),
			zap.String("state", string(status.State)),
			zap.Int("tools", status.ToolCount),
		)
	}
	dispatcher := dispatch.NewDispatcher(registry, writer, logger)

	// HTTP API server
	deps := &api.Dependencies{
		Registry:   registry,
		Dispatcher: dispatcher,
		Auth:       authenticator,
		Factory:    factory,
		Logger:     logger,
	}
	httpServer := &http.Server{
		Addr:         ":" + httpPort,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// gRPC health service for orchestration health checks
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", ":"+healthPort)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("port", healthPort), zap.Error(err))
	}
	go func() {
		logger.Info("health server listening", zap.String("addr", lis.Addr().String()))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("grpc health server failed", zap.Error(err))
		}
	}()

	// Block until shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", zap.String("signal", sig.String()))

	// Graceful shutdown
	healthServer.SetServingStatus(healthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", zap.Error(err))
	}
	grpcServer.GracefulStop()

	logger.Info("toolhub server stopped")
}

func mustBuildLogger(level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	cfg := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stdout"},
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := cfg.Build()
	if err != nil {
		panic(fmt.Sprintf("failed to build logger: %v", err))
	}
	return logger
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
