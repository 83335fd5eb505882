package main

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-cz/devslog"
	"github.com/mdobak/go-xerrors"
	"github.com/redis/go-redis/v9"
	"github.com/siahsang/blogplatform/internal/auth"
	"github.com/siahsang/blogplatform/internal/config"
	"github.com/siahsang/blogplatform/internal/core"
	"github.com/siahsang/blogplatform/internal/data"
	"github.com/siahsang/blogplatform/internal/data/memory"
	"github.com/siahsang/blogplatform/internal/database"
	"github.com/siahsang/blogplatform/internal/ratelimit"
)

type application struct {
	config  config.Config
	logger  *slog.Logger
	core    *core.Core
	auth    *auth.Auth
	limiter *ratelimit.Limiter
	burst   *ratelimit.BurstStore
	wg      sync.WaitGroup
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	logger := configLogger(cfg)
	logger.Info("Starting application...", "env", cfg.Env, "storage", cfg.Storage)

	if err := run(cfg, logger); err != nil {
		logger.Error("Application stopped with error", "stack", xerrors.Sprint(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	models, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStorage()

	var (
		counters  ratelimit.CounterStore
		blacklist auth.Blacklist
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return xerrors.New(err)
		}
		rdb := redis.NewClient(opts)
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return xerrors.Newf("redis ping: %w", err)
		}
		counters = ratelimit.NewRedisStore(rdb)
		blacklist = auth.NewRedisBlacklist(rdb)
		logger.Info("Redis connection established successfully")
	} else {
		memoryCounters := ratelimit.NewMemoryStore()
		memoryCounters.StartJanitor(ctx)
		counters = memoryCounters
		blacklist = auth.NewMemoryBlacklist()
	}

	auth.PasswordCost = cfg.BcryptCost
	burst := ratelimit.NewBurstStore(cfg.Burst.RPS, cfg.Burst.Burst)
	burst.StartJanitor(ctx)

	app := &application{
		config: cfg,
		logger: logger,
		core:   core.NewCore(models, logger),
		auth: auth.New(auth.Options{
			Secret:     cfg.JWT.Secret,
			Issuer:     cfg.JWT.Issuer,
			AccessTTL:  cfg.JWT.AccessTTL,
			RefreshTTL: cfg.JWT.RefreshTTL,
			Blacklist:  blacklist,
		}),
		limiter: ratelimit.NewLimiter(counters, cfg.Throttle),
		burst:   burst,
	}

	if b, ok := blacklist.(*auth.MemoryBlacklist); ok {
		app.doInBackground(func() { app.purgeBlacklist(ctx, b) })
	}

	return app.serve(cancel)
}

func configLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	if cfg.LogFormat == "dev" {
		handler := devslog.NewHandler(
			os.Stdout, &devslog.Options{
				HandlerOptions: &slog.HandlerOptions{
					AddSource: true,
					Level:     slog.LevelDebug,
				},
				NewLineAfterLog: false,
			})
		return slog.New(handler)
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// openStorage returns the repositories selected by STORAGE and a function
// releasing them.
func openStorage(ctx context.Context, cfg config.Config, logger *slog.Logger) (data.Models, func(), error) {
	if strings.EqualFold(cfg.Storage, config.StorageMemory) {
		logger.Warn("Using in-memory storage; data is lost on restart")
		return memory.New().Models(), func() {}, nil
	}

	dbConn, err := database.Open(ctx, database.PoolConfig{
		DSN:          cfg.DB.DSN,
		MaxOpenConns: cfg.DB.MaxOpenConns,
		MaxIdleConns: cfg.DB.MaxIdleConns,
		MaxIdleTime:  cfg.DB.MaxIdleTime,
	})
	if err != nil {
		return data.Models{}, nil, err
	}
	logger.Info("Database connection established successfully")

	db := database.NewDB(dbConn, logger, cfg.DB.QueryTimeout)
	if err := db.Migrate(ctx); err != nil {
		_ = dbConn.Close()
		return data.Models{}, nil, err
	}

	closeFn := func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("Error closing database connection", "error", err)
		}
	}
	return db.Models(), closeFn, nil
}

func (app *application) purgeBlacklist(ctx context.Context, b *auth.MemoryBlacklist) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := b.Purge(); n > 0 {
				app.logger.Debug("Purged expired revoked tokens", "count", n)
			}
		}
	}
}
