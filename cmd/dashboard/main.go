package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammed-shakir/obras-dashboard/internal/cache/redisstore"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/config"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/health"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/observability"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/router"
	"github.com/mohammed-shakir/obras-dashboard/internal/core/server"
	"github.com/mohammed-shakir/obras-dashboard/internal/dataset"
	"github.com/mohammed-shakir/obras-dashboard/internal/dataset/source"
	"github.com/mohammed-shakir/obras-dashboard/internal/geo/coords"
	"github.com/mohammed-shakir/obras-dashboard/internal/invalidation/kafkaconsumer"
	"github.com/mohammed-shakir/obras-dashboard/internal/logger"
	"github.com/mohammed-shakir/obras-dashboard/internal/prefs"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	envFile := flag.String("env", "", "optional .env file")
	flag.Parse()
	if *envFile != "" {
		config.LoadDotEnv(*envFile)
	} else {
		config.LoadDotEnv()
	}

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   cfg.LogConsole,
		SampleN:   cfg.LogSampleN,
		Service:   "obras-dashboard",
		Component: "dashboard",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)
	slog.SetDefault(appLog)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting dashboard",
		"addr", cfg.Addr,
		"version", Version,
		"source", cfg.DataSource,
		"h3_res", cfg.H3Res)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	corr, err := corrector(cfg)
	if err != nil {
		appLog.Error("invalid city bounds", "err", err)
		return 1
	}

	cat := dataset.DefaultCatalog()
	if cfg.CatalogFile != "" {
		if cat, err = dataset.LoadCatalogFile(cfg.CatalogFile); err != nil {
			appLog.Error("catalog load failed", "file", cfg.CatalogFile, "err", err)
			return 1
		}
	}

	origin, err := source.New(cfg.DataSource, cfg, appLog)
	if err != nil {
		appLog.Error("data source setup failed", "err", err)
		return 1
	}
	var static fs.FS
	if d, ok := origin.(*source.Dir); ok {
		static = d.FS()
		appLog.Info("serving raw files", "root", d.Root())
	}
	src := source.Instrumented(origin)

	var rdb *redisstore.Client
	if cfg.RedisCacheEnabled || cfg.PrefsStore == "redis" {
		rdb, err = redisstore.New(ctx, cfg.RedisAddr)
		if err != nil {
			appLog.Error("redis unavailable", "addr", cfg.RedisAddr, "err", err)
			return 1
		}
		defer func() { _ = rdb.Close() }()
	}
	if cfg.RedisCacheEnabled {
		src = source.NewShared(src, rdb, cfg.RedisCacheTTL, cfg.RedisOpTimeout, appLog)
	}

	loader, err := dataset.NewLoader(cat, src, corr, dataset.Options{
		Workers:   cfg.LoadWorkers,
		Timeout:   cfg.LoadTimeout,
		CacheSize: cfg.CacheSize,
		CacheTTL:  cfg.CacheTTL,
		Logger:    appLog,
	})
	if err != nil {
		appLog.Error("loader setup failed", "err", err)
		return 1
	}
	go func() {
		sts := loader.Load(ctx)
		appLog.Info("initial load finished", "datasets", len(sts), "ready", loader.Ready())
	}()

	var store prefs.Store = prefs.NewMemoryStore()
	if cfg.PrefsStore == "redis" {
		store = prefs.NewRedisStore(rdb, 0)
	}
	prefSvc := prefs.NewService(store, prefs.Defaults(cat), appLog)

	ready := map[string]health.ReadinessReporter{
		"datasets": health.ReporterFunc(func() (bool, any) {
			return loader.Ready(), loader.Statuses()
		}),
	}

	if rdb != nil {
		ready["redis"] = health.ReporterFunc(func() (bool, any) {
			pctx, cancel := context.WithTimeout(ctx, cfg.RedisOpTimeout)
			defer cancel()
			if err := rdb.Ping(pctx); err != nil {
				return false, err.Error()
			}
			return true, cfg.RedisAddr
		})
	}

	if cfg.Invalidation.Enabled {
		consumer := kafkaconsumer.New(kafkaconsumer.FromConfig(cfg.Invalidation), appLog, &zl, loader)
		if err := consumer.Start(ctx); err != nil {
			appLog.Error("dataset update consumer failed", "err", err)
			return 1
		}
		defer consumer.Stop()
		ready["invalidation"] = consumer
	}

	api := router.New(router.Deps{
		Data:   loader,
		Prefs:  prefSvc,
		Logger: appLog,
		H3Res:  cfg.H3Res,
		Static: static,
	})

	if err := server.Run(ctx, cfg, appLog, api, ready); err != nil {
		appLog.Error("server exited with error", "err", err)
		return 1
	}
	appLog.Info("server stopped")
	return 0
}

func corrector(cfg config.Config) (*coords.Corrector, error) {
	c := coords.NewCali()
	c.SubstituteFallback = cfg.SubstituteFallback
	if cfg.CityBBox != "" {
		b, err := coords.ParseBBox(cfg.CityBBox)
		if err != nil {
			return nil, fmt.Errorf("CITY_BBOX: %w", err)
		}
		c.Box = b
	}
	if cfg.CityCenter != "" {
		p, err := coords.ParsePoint(cfg.CityCenter)
		if err != nil {
			return nil, fmt.Errorf("CITY_CENTER: %w", err)
		}
		c.Fallback = p
	}
	return c, nil
}
