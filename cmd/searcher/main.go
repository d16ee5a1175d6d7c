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

	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/internal/searcher/scanner"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/charset"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/middleware"
	pkgredis "github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/trigram-search/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	enc, err := charset.Lookup(cfg.Indexer.Encoding)
	if err != nil {
		slog.Error("unsupported index encoding", "encoding", cfg.Indexer.Encoding, "error", err)
		os.Exit(1)
	}
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"plain_index", cfg.Indexer.PlainIndexPath(),
		"encoding", charset.Name(enc),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(nil)
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	checker := health.NewChecker()
	checker.Register("plain_index", health.FileCheck(cfg.Indexer.PlainIndexPath()))
	checker.Register("file_ids", health.FileCheck(cfg.Indexer.FileIDsPath()))

	var queryCache *cache.QueryCache
	if cfg.Redis.Addr == "" {
		slog.Info("redis not configured, search caching disabled")
	} else {
		var redisClient *pkgredis.Client
		err := resilience.Retry(ctx, "redis connect", resilience.RetryConfig{MaxAttempts: 3}, func(context.Context) error {
			c, err := pkgredis.NewClient(cfg.Redis)
			if err != nil {
				return err
			}
			redisClient = c
			return nil
		})
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			queryCache = cache.New(redisClient, cfg.Redis, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping))
			slog.Info("search cache enabled",
				"addr", cfg.Redis.Addr,
				"ttl", cfg.Redis.CacheTTL,
			)
		}
	}

	sc := scanner.New(cfg.Search.Workers, scanner.WithMetrics(m))
	exec := executor.New(sc, cfg.Indexer, cfg.Search, enc, m)
	h := handler.New(exec, queryCache, cfg.Search.DefaultRoot)

	var limiter *middleware.Limiter
	if cfg.Server.ScanRateLimit > 0 {
		limiter = middleware.NewLimiter(cfg.Server.ScanRateLimit, time.Minute)
	}
	scanLimited := middleware.RateLimit(limiter)

	mux := http.NewServeMux()
	mux.Handle("GET /api/v1/search", scanLimited(http.HandlerFunc(h.Search)))
	mux.HandleFunc("GET /api/v1/indexed", h.Indexed)
	mux.HandleFunc("GET /api/v1/trigram", h.Trigram)
	mux.Handle("GET /api/v1/files", scanLimited(http.HandlerFunc(h.Files)))
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
