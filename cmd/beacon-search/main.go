package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beacon-search/beacon/internal/config"
	"github.com/beacon-search/beacon/internal/crawler"
	"github.com/beacon-search/beacon/internal/discovery"
	"github.com/beacon-search/beacon/internal/frpei"
	"github.com/beacon-search/beacon/internal/httpapi"
	"github.com/beacon-search/beacon/internal/ingestion"
	"github.com/beacon-search/beacon/internal/ops"
	"github.com/beacon-search/beacon/internal/query"
	"github.com/beacon-search/beacon/internal/relaypool"
	"github.com/beacon-search/beacon/internal/storage"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version":
			fmt.Printf("beacon-search %s (%s)\n", version, commit)
			return
		case "purge", "backup", "restore", "ontology":
			if err := runAdmin(os.Args[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := ops.NewLogger(&cfg.Logging)
	logger.Info("starting beacon-search", "version", version)

	store, err := storage.New(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer store.Close()
	logger.Info("storage initialized", "url", cfg.Database.URL)

	var embedder query.Embedder
	if cfg.Embedding.Endpoint != "" {
		embedder = query.NewHTTPEmbedder(cfg.Embedding.Endpoint, cfg.Embedding.Timeout)
		logger.Info("embedding endpoint configured", "endpoint", cfg.Embedding.Endpoint)
	} else {
		logger.Warn("no embedding endpoint configured, vector and hybrid search degrade to text mode")
	}

	pool := relaypool.New(ctx, cfg.RateLimit, logger.WithComponent("relaypool"))
	disc, err := discovery.New(cfg.Crawler.DiscoveryCacheSize)
	if err != nil {
		return fmt.Errorf("failed to initialize discovery cache: %w", err)
	}

	pipeline := ingestion.New(store, logger.WithComponent("ingestion"))
	relayCrawler := crawler.New(pool, disc, pipeline.Ingest, logger.WithComponent("crawler"))

	if err := relayCrawler.Bootstrap(ctx, cfg.Crawler.SeedRelays); err != nil {
		logger.Error("bootstrap crawl failed", "error", err)
	}

	crawlerDone := startCrawlLoop(ctx, relayCrawler, pool, cfg.Crawler.CrawlInterval, logger)
	defer func() { <-crawlerDone }()

	registry := frpei.NewRegistry()
	registry.Register(
		frpei.NewLocalProvider(store, embedder),
		cfg.Breaker.FailureThreshold, cfg.Breaker.SuccessThreshold, cfg.Breaker.ResetTimeout,
		time.Duration(cfg.FRPEI.DefaultTimeoutMs)*time.Millisecond,
	)

	cache, err := buildCache(cfg.FRPEI)
	if err != nil {
		return fmt.Errorf("failed to initialize frpei cache: %w", err)
	}

	router := frpei.NewRouter(store, registry, cache, cfg.FRPEI.CacheTTL,
		time.Duration(cfg.FRPEI.DefaultTimeoutMs)*time.Millisecond, cfg.FRPEI.FeedbackDecayDays, logger)

	server := httpapi.NewServer(store, router, embedder, logger)
	mux := httpapi.NewRouter(server)

	httpServer := &http.Server{Addr: cfg.HTTP.Addr, Handler: mux}
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTP.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
	return nil
}

func startCrawlLoop(ctx context.Context, c *crawler.Crawler, pool *relaypool.Pool, interval time.Duration, logger *ops.Logger) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				relays := pool.SelectRelays(5)
				if len(relays) == 0 {
					continue
				}
				if err := c.CrawlContent(ctx, relays); err != nil {
					logger.Warn("periodic crawl failed", "error", err)
				}
			}
		}
	}()
	return done
}

func buildCache(cfg config.FRPEI) (frpei.Cache, error) {
	if cfg.CacheEngine == "redis" {
		return frpei.NewRedisCache(cfg.RedisURL)
	}
	return frpei.NewMemoryCache(), nil
}
