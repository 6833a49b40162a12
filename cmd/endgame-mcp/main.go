package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dmmcquay/endgame-mcp/internal/cache"
	"github.com/dmmcquay/endgame-mcp/internal/config"
	"github.com/dmmcquay/endgame-mcp/internal/health"
	"github.com/dmmcquay/endgame-mcp/internal/logging"
	mcptools "github.com/dmmcquay/endgame-mcp/internal/mcp"
	"github.com/dmmcquay/endgame-mcp/internal/metrics"
	"github.com/dmmcquay/endgame-mcp/internal/ratelimit"
	"github.com/dmmcquay/endgame-mcp/internal/retry"
	httpserver "github.com/dmmcquay/endgame-mcp/internal/server"
	"github.com/dmmcquay/endgame-mcp/internal/shutdown"
	"github.com/dmmcquay/endgame-mcp/internal/tablebase"
	"github.com/dmmcquay/endgame-mcp/internal/training"
	"github.com/dmmcquay/endgame-mcp/internal/uci"
)

var (
	// Version information injected at build time.
	GitCommit string = "unknown"
	BuildTime string = "unknown"
)

const (
	redisKeyPrefix     = "endgame:"
	cacheStatsInterval = 30 * time.Second
)

func main() {
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	if showVersion {
		fmt.Printf("endgame-mcp version %s\n", config.Default().Server.Version)
		fmt.Printf("Git commit: %s\n", GitCommit)
		fmt.Printf("Build time: %s\n", BuildTime)
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "endgame-mcp: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(config.GetConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, logCloser, err := logging.NewLoggerFromConfig(&logging.Config{
		Level:   cfg.Logging.Level,
		Format:  logging.LogFormat(cfg.Logging.Format),
		Service: cfg.Server.Name,
		Version: cfg.Server.Version,
		File:    cfg.Logging.File,
	})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	if logCloser != nil {
		defer logCloser.Close()
	}
	logger.Info("Starting endgame MCP server",
		"version", cfg.Server.Version,
		"commit", GitCommit,
		"built", BuildTime,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	shutdownManager := shutdown.NewManager(logger)

	// Tablebase probes, memoized in Redis when configured and in process
	// otherwise.
	var (
		store cache.Store
		redis *cache.RedisStore
	)
	if cfg.Cache.RedisURL != "" {
		redis, err = cache.DialRedis(ctx, cfg.Cache.RedisURL, redisKeyPrefix)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		store = redis
		shutdownManager.Register("redis", func(context.Context) error { return redis.Close() })
		logger.Info("Using redis probe cache", "url", cfg.Cache.RedisURL)
	} else {
		local := cache.NewManager(&cfg.Cache, logger)
		store = local
		if local.IsEnabled() {
			go reportCacheStats(ctx, local, collector)
		}
	}

	var source tablebase.Prober = tablebase.NewStaticProber(nil)
	if cfg.Tablebase.FixturePath != "" {
		static, err := tablebase.LoadStaticProber(cfg.Tablebase.FixturePath)
		if err != nil {
			return fmt.Errorf("failed to load tablebase positions: %w", err)
		}
		source = static
		logger.Info("Loaded tablebase positions", "path", cfg.Tablebase.FixturePath)
	}
	prober := tablebase.NewCachedProber(source, store, cfg.Cache.TTL(), logger, collector)

	engine := newEngine(ctx, cfg, logger, collector)
	shutdownManager.Register("engine", engine.Close)

	coach := training.NewCoach(prober, logger, collector)

	healthChecker := health.NewChecker(logger, cfg.Server.Version, GitCommit)
	healthChecker.RegisterCheck("engine", health.PingCheck(engine))
	if redis != nil {
		healthChecker.RegisterOptionalCheck("redis", health.PingCheck(redis))
	}
	healthChecker.OnResult = func(name string, healthy bool) {
		if name == "engine" {
			collector.RecordEngineHealthCheck(healthy)
		}
	}

	httpServer := httpserver.NewHTTPServer(cfg.Server.HealthAddr, logger, healthChecker, collector, registry)
	if err := httpServer.Start(); err != nil {
		return fmt.Errorf("failed to start health server: %w", err)
	}
	shutdownManager.Register("http", httpServer.Stop)
	logger.Info("Health check server started", "addr", httpServer.Addr().String())

	rateLimiter := ratelimit.NewLimiter(&cfg.RateLimit, logger)
	shutdownManager.Register("ratelimit", func(context.Context) error {
		rateLimiter.Close()
		return nil
	})

	mcpServer := server.NewMCPServer(
		cfg.Server.Name,
		cfg.Server.Version,
		server.WithToolCapabilities(true),
		server.WithLogging(),
	)

	toolsHandler := mcptools.NewToolsHandler(mcptools.Deps{
		Engine:         engine,
		Coach:          coach,
		Prober:         prober,
		Health:         healthChecker,
		Observer:       collector,
		RequestTimeout: cfg.Engine.RequestTimeout(),
	}, logger)
	toolsHandler.SetMiddleware(mcptools.NewMiddleware(logger, collector, rateLimiter))
	toolsHandler.RegisterTools(mcpServer)

	shutdownManager.HandleSignals()

	logger.Info("Endgame MCP server ready")
	serveErr := server.ServeStdio(mcpServer)
	if serveErr != nil {
		logger.Error("Server error", "error", serveErr)
	}

	cancel()
	if err := shutdownManager.Shutdown(shutdown.DefaultTimeout); err != nil {
		return err
	}
	return serveErr
}

// newEngine resolves the engine binary and returns a supervisor for it. The
// process itself starts on the first request.
func newEngine(ctx context.Context, cfg *config.Config, logger logging.ContextLogger, collector *metrics.Collector) *uci.Supervisor {
	binary := cfg.Engine.BinaryPath
	if binary == "" || binary == config.Default().Engine.BinaryPath {
		detectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		detected, err := uci.DetectStockfish(detectCtx)
		cancel()
		switch {
		case detected != nil:
			binary = detected.BinaryPath
			if err != nil {
				logger.Warn("Engine detection incomplete", "error", err)
			} else {
				logger.Info("Found engine", "path", binary, "name", detected.Name)
			}
		default:
			logger.Warn("No engine found; engine tools will fail until one is installed", "error", err)
		}
		if binary == "" {
			binary = config.Default().Engine.BinaryPath
		}
	}

	opts := uci.OptionsFromConfig(&cfg.Engine, logger)
	opts.Observer = collector
	spawner := &uci.ExecSpawner{BinaryPath: binary, Logger: logger}
	return uci.NewSupervisor(spawner, opts, retry.DefaultConfig())
}

func reportCacheStats(ctx context.Context, m *cache.Manager, collector *metrics.Collector) {
	ticker := time.NewTicker(cacheStatsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := m.Stats()
			collector.SetCacheStats(stats.Items, stats.Size)
		}
	}
}
