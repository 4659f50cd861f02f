package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DoyleJ11/lol-trivia-backend/internal/config"
	"github.com/DoyleJ11/lol-trivia-backend/internal/corpus"
	"github.com/DoyleJ11/lol-trivia-backend/internal/crawl"
	"github.com/DoyleJ11/lol-trivia-backend/internal/httpapi"
	"github.com/DoyleJ11/lol-trivia-backend/internal/hub"
	"github.com/DoyleJ11/lol-trivia-backend/internal/lobby"
	"github.com/DoyleJ11/lol-trivia-backend/internal/question"
	"github.com/DoyleJ11/lol-trivia-backend/internal/riot"
	"github.com/DoyleJ11/lol-trivia-backend/internal/sampler"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	setup := flag.String("setup", "", `one-off task to run instead of the server ("cache-data")`)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	os.Exit(exitCode(log, run(cfg, *setup, log)))
}

// exitCode logs err and flushes log. It is called after run's deferred
// cleanup has finished, since os.Exit skips deferred calls.
func exitCode(log *zap.Logger, err error) int {
	code := 0
	if err != nil {
		log.Error("server exited", zap.Error(err))
		code = 1
	}
	_ = log.Sync()
	return code
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func run(cfg config.Config, setup string, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, db, closeStore, err := openStore(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return err
	}
	defer closeStore()

	api := riot.NewClient(cfg.RiotAPIKey, nil)

	switch setup {
	case "":
	case "cache-data":
		n, err := crawl.CacheData(ctx, api, store)
		if err != nil {
			return err
		}
		log.Info("champion catalog cached", zap.Int("champions", n))
		return nil
	default:
		return fmt.Errorf("unknown setup task %q", setup)
	}

	catalog, err := corpus.LoadCatalog(ctx, store, cfg.ChampionImgURL)
	if err != nil && cfg.RiotAPIKey != "" {
		log.Warn("champion catalog missing, fetching", zap.Error(err))
		if _, err := crawl.CacheData(ctx, api, store); err != nil {
			return err
		}
		catalog, err = corpus.LoadCatalog(ctx, store, cfg.ChampionImgURL)
	}
	if err != nil {
		return err
	}

	builders := question.DefaultBuilders()
	pool := question.NewPool(catalog, store, sampler.Options{
		Batch:     cfg.SamplerBatch,
		MaxMisses: cfg.SamplerMaxMisses,
		Logger:    log.Named("sampler"),
	}, builders...)
	defer pool.Close()

	h := hub.NewHub(ctx, hub.Options{
		Rules: lobby.Rules{
			NumRounds:    cfg.NumRounds,
			RoundSeconds: cfg.RoundSeconds,
			Tick:         time.Second,
			Intermission: cfg.Intermission,
			CloseDelay:   cfg.CloseDelay,
			PollTimeout:  cfg.PollTimeout,
			IdleWindow:   cfg.IdleWindow,
			IdleCheck:    cfg.IdleCheckInterval,
		},
		Questions: pool,
		Logger:    log,
	})
	defer h.Shutdown()

	realtimeLimits := crawl.NewLimiters(cfg.RealtimeRate, cfg.RateWindow)
	defer realtimeLimits.Stop()
	realtime := crawl.NewRealtime(api, store, crawl.RealtimeOptions{
		Limits:         realtimeLimits,
		Builders:       builders,
		ProfileIconURL: cfg.ProfileIconURL,
		Logger:         log,
	})

	deps := httpapi.Deps{Hub: h, Resolver: realtime, Logger: log}
	if db != nil {
		deps.DB = db
	}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.BackgroundCrawl {
		backgroundLimits := crawl.NewLimiters(cfg.BackgroundRate, cfg.RateWindow)
		defer backgroundLimits.Stop()
		bg := crawl.NewBackground(api, store, crawl.BackgroundOptions{
			Limits:   backgroundLimits,
			Builders: builders,
			Goal:     cfg.SummonersGoal,
			Sampler:  sampler.Options{Batch: cfg.SamplerBatch, MaxMisses: cfg.SamplerMaxMisses},
			Logger:   log,
		})
		g.Go(func() error { return bg.Run(gctx) })
	}

	return g.Wait()
}

// openStore connects to Postgres when a URL is configured and falls back to
// the in-memory corpus otherwise.
func openStore(ctx context.Context, url string, log *zap.Logger) (corpus.Store, *pgxpool.Pool, func(), error) {
	if url == "" {
		log.Warn("DATABASE_URL not set, using in-memory corpus")
		return corpus.NewMemoryStore(), nil, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, fmt.Errorf("ping postgres: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		pool.Close()
		return nil, nil, nil, fmt.Errorf("open gorm: %w", err)
	}

	store := corpus.NewGormStore(gdb)
	if err := store.Migrate(ctx); err != nil {
		sqlDB.Close()
		pool.Close()
		return nil, nil, nil, err
	}
	return store, pool, func() {
		sqlDB.Close()
		pool.Close()
	}, nil
}
