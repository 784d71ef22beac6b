package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/skywave/skywave/internal/api"
	"github.com/skywave/skywave/internal/cache"
	"github.com/skywave/skywave/internal/config"
	"github.com/skywave/skywave/internal/events"
	"github.com/skywave/skywave/internal/feed"
	"github.com/skywave/skywave/internal/logger"
	"github.com/skywave/skywave/internal/provider"
	"github.com/skywave/skywave/internal/provider/itunes"
	"github.com/skywave/skywave/internal/provider/podcastindex"
	"github.com/skywave/skywave/internal/provider/radiobrowser"
	"github.com/skywave/skywave/internal/provider/radioworld"
	"github.com/skywave/skywave/internal/provider/shoutcast"
	"github.com/skywave/skywave/internal/provider/taddy"
	"github.com/skywave/skywave/internal/ratelimit"
	"github.com/skywave/skywave/internal/scheduler"
	"github.com/skywave/skywave/internal/scheduler/tasks"
	"github.com/skywave/skywave/internal/search"
	"github.com/skywave/skywave/internal/storage"
)

func main() {
	// A .env file is optional; deployments usually set variables directly.
	_ = godotenv.Load()

	configPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Path:       cfg.Logging.Path,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	defer log.Close()

	log.Info().
		Str("version", config.Version).
		Str("logLevel", cfg.Logging.Level).
		Msg("starting Skywave")

	provider.SetVersion(config.Version)

	// Redis backs the cache and the rate-limit counters when configured.
	// When it is unreachable at startup both fall back to memory.
	var redisClient *redis.Client
	if cfg.Cache.Backend == "redis" || cfg.RateLimit.Backend == "redis" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.Redis.Addr).Msg("redis unreachable, falling back to memory backends")
			redisClient = nil
		}
	}

	var store cache.Store
	switch cfg.Cache.Backend {
	case "none":
		store = cache.NewNoOp()
	case "redis":
		if redisClient != nil {
			store = cache.NewRedis(redisClient, log.Logger)
		} else {
			store = cache.NewMemory()
		}
	default:
		store = cache.NewMemory()
	}
	log.Info().Str("backend", cfg.Cache.Backend).Msg("result cache initialized")

	var counters ratelimit.CounterStore
	if cfg.RateLimit.Backend == "redis" && redisClient != nil {
		counters = ratelimit.NewRedisStore(redisClient)
	} else {
		counters = ratelimit.NewMemoryStore()
	}

	quotas := make(map[string]ratelimit.Quota)
	for name, pc := range cfg.Providers.ByName() {
		if pc.RateLimit > 0 {
			quotas[name] = ratelimit.Quota{Limit: pc.RateLimit, Period: pc.RatePeriod()}
		}
	}
	limiter := ratelimit.NewLimiter(counters, quotas, log.Logger)

	registry := provider.NewRegistry(cfg.Providers.ByName(), limiter, log.Logger)
	registry.RegisterStation(radiobrowser.NewClient(cfg.Providers.RadioBrowser, log.Logger))
	registry.RegisterStation(radioworld.NewClient(cfg.Providers.RadioWorld, log.Logger))
	registry.RegisterStation(shoutcast.NewClient(cfg.Providers.Shoutcast, log.Logger))
	registry.RegisterPodcast(itunes.NewClient(cfg.Providers.ITunes, log.Logger))
	registry.RegisterPodcast(podcastindex.NewClient(cfg.Providers.PodcastIndex, log.Logger))
	registry.RegisterPodcast(taddy.NewClient(cfg.Providers.Taddy, log.Logger))

	hub := events.NewHub()
	go hub.Run()

	searchService := search.NewService(registry, limiter, store, cfg.Search, log.Logger)
	searchService.SetBroadcaster(hub)

	var dirStore *storage.Store
	if cfg.Storage.Enabled {
		if cfg.Storage.Path == "" {
			log.Warn().Msg("storage enabled without a path, directory sink disabled")
		} else if s, err := storage.New(cfg.Storage.Path, log.Logger); err != nil {
			log.Error().Err(err).Str("path", cfg.Storage.Path).Msg("failed to open directory storage")
		} else if err := s.Migrate(); err != nil {
			log.Error().Err(err).Msg("failed to run storage migrations")
			s.Close()
		} else {
			dirStore = s
			defer dirStore.Close()
			searchService.SetSink(dirStore)
			log.Info().Str("path", cfg.Storage.Path).Msg("directory storage initialized")
		}
	}

	parser := feed.NewParser(provider.UserAgent, log.Logger)

	sched, err := scheduler.New(log.Logger)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize scheduler")
	}
	healthTask := tasks.NewProviderHealthTask(registry, hub, log.Logger)
	if err := tasks.RegisterProviderHealthTask(sched, healthTask, cfg.Scheduler.ProviderHealthInterval); err != nil {
		log.Error().Err(err).Msg("failed to register provider health task")
	}
	quotaTask := tasks.NewQuotaReportTask(registry, log.Logger)
	if err := tasks.RegisterQuotaReportTask(sched, quotaTask, cfg.Scheduler.QuotaReportInterval); err != nil {
		log.Error().Err(err).Msg("failed to register quota report task")
	}
	if err := sched.Start(); err != nil {
		log.Error().Err(err).Msg("failed to start scheduler")
	}

	server := api.NewServer(searchService, parser, store, hub, cfg, log.Logger)
	if dirStore != nil {
		server.SetDirectoryStore(dirStore)
	}
	server.Echo().GET("/ws", hub.HandleWebSocket)

	go func() {
		addr := cfg.Server.Address()
		log.Info().Str("address", addr).Msg("HTTP server listening")
		if err := server.Start(addr); err != nil {
			log.Info().Msg("server stopped")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("received shutdown signal")

	if err := sched.Stop(); err != nil {
		log.Error().Err(err).Msg("scheduler shutdown error")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("server stopped")
}
