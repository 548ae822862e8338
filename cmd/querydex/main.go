package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/kailas-cloud/querydex/internal/config"
	"github.com/kailas-cloud/querydex/internal/db"
	dbRedis "github.com/kailas-cloud/querydex/internal/db/redis"
	"github.com/kailas-cloud/querydex/internal/domain"
	"github.com/kailas-cloud/querydex/internal/embedder"
	logpkg "github.com/kailas-cloud/querydex/internal/logger"
	"github.com/kailas-cloud/querydex/internal/metrics"
	"github.com/kailas-cloud/querydex/internal/provider/searxng"
	coldrepo "github.com/kailas-cloud/querydex/internal/repository/cold"
	"github.com/kailas-cloud/querydex/internal/repository/embcache"
	"github.com/kailas-cloud/querydex/internal/repository/hotcache"
	chiTransport "github.com/kailas-cloud/querydex/internal/transport/chi"
	openaiEmb "github.com/kailas-cloud/querydex/internal/transport/openai"
	healthuc "github.com/kailas-cloud/querydex/internal/usecase/health"
	resolveuc "github.com/kailas-cloud/querydex/internal/usecase/resolve"
	"github.com/kailas-cloud/querydex/internal/version"
)

func main() {
	// Load configuration based on ENV
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting querydex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.Strings("db_addrs", cfg.Database.Addrs),
	)

	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:          cfg.Database.Addrs,
		Password:       cfg.Database.Password,
		DB:             cfg.Database.DB,
		ConnectTimeout: time.Duration(cfg.Database.ConnectTimeoutMS) * time.Millisecond,
		ReadTimeout:    time.Duration(cfg.Database.ReadTimeoutMS) * time.Millisecond,
	})
	if err != nil {
		logger.Fatal("Failed to create database store", zap.Error(err))
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.WaitForReady(ctx, time.Duration(cfg.Database.ReadinessTimeout)*time.Second); err != nil {
		logger.Fatal("Database not ready", zap.Error(err))
	}
	logger.Info("Connected to database")

	// Register metrics explicitly (no init())
	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterResolverMetrics()

	emb := buildEmbedder(cfg, store, logger)

	ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
	hot := hotcache.New(store, cfg.Embedding.Dimensions, ttl)
	if err := hot.EnsureIndex(ctx); err != nil {
		// A backend without the search module still serves the exact tier;
		// the resolver disables the semantic tier on first probe.
		if errors.Is(err, db.ErrSearchUnsupported) {
			logger.Warn("Search module unavailable, semantic tier will be disabled")
		} else {
			logger.Fatal("Failed to ensure vector index", zap.Error(err))
		}
	}

	cold, err := coldrepo.Open(cfg.Cold.Path)
	if err != nil {
		logger.Fatal("Failed to open cold cache", zap.Error(err))
	}
	defer func() { _ = cold.Close() }()

	live := searxng.New(&searxng.Config{
		BaseURL:        cfg.Provider.BaseURL,
		Language:       cfg.Provider.Language,
		SafeSearch:     cfg.Provider.SafeSearch,
		MaxResults:     cfg.Provider.MaxResults,
		ConnectTimeout: time.Duration(cfg.Provider.ConnectTimeoutMS) * time.Millisecond,
		RequestTimeout: time.Duration(cfg.Provider.RequestTimeoutSec) * time.Second,
		Logger:         logger,
	})

	resolver := resolveuc.New(hot, hot, cold, live, emb, resolveuc.Options{
		KNNK:        cfg.Cache.KNNK,
		MinScore:    cfg.Cache.MinScore,
		MaxParallel: cfg.Resolver.MaxParallel,
	}, logger)

	healthSvc := healthuc.New(store, cold)

	server := chiTransport.NewServer(resolver, healthSvc, logger)

	r := chi.NewRouter()
	r.Use(jsonRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(logger))
	r.Use(chiTransport.BearerAuthMiddleware(cfg.Auth.APIKeys))
	r.Use(metrics.Middleware())
	server.Routes(r)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder for the configured mode. The hash
// mode needs nothing beyond a dimension; the openai mode wraps the API
// client in a cache and keeps the deterministic fallback for provider
// outages.
func buildEmbedder(cfg config.Config, store db.Store, logger *zap.Logger) domain.Embedder {
	if cfg.Embedding.Mode == config.EmbeddingModeHash {
		return embedder.New(cfg.Embedding.Dimensions, embedder.WithLogger(logger))
	}

	construct := func() (domain.Embedder, error) {
		if cfg.Embedding.APIKey == "" {
			return nil, errors.New("embedding api key is not set")
		}
		base := openaiEmb.NewEmbedder(&openaiEmb.Config{
			APIKey:     cfg.Embedding.APIKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
			Provider:   "openai",
			Logger:     logger,
		})
		ttl := time.Duration(cfg.Cache.TTLSec) * time.Second
		return embcache.New(base, store, ttl, metrics.EmbeddingCacheTotal, logger), nil
	}

	return embedder.New(cfg.Embedding.Dimensions,
		embedder.WithModel(construct),
		embedder.WithLogger(logger),
	)
}

// jsonRecoverer is a recovery middleware that returns JSON instead of a plain text stacktrace.
func jsonRecoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_ = json.NewEncoder(w).Encode(map[string]string{
						"code":    "internal_error",
						"message": "internal error",
					})
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// wideEventMiddleware emits a canonical log line per request and propagates X-Request-ID.
func wideEventMiddleware(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := chiMiddleware.GetReqID(r.Context())
			if requestID != "" {
				w.Header().Set("X-Request-ID", requestID)
			}

			reqLogger := logger.With(zap.String("request_id", requestID))
			ctx := logpkg.ContextWithLogger(r.Context(), reqLogger)

			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			reqLogger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", r.RemoteAddr),
				zap.Int("response_bytes", ww.BytesWritten()),
			)
		})
	}
}
