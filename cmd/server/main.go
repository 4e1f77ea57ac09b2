package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Freeeeeet/offer_broker/internal/app"
	"github.com/Freeeeeet/offer_broker/internal/config"
	"github.com/Freeeeeet/offer_broker/internal/controller"
	"github.com/Freeeeeet/offer_broker/internal/controller/httpapi"
	"github.com/Freeeeeet/offer_broker/internal/identity"
	"github.com/Freeeeeet/offer_broker/internal/repository"
	"github.com/Freeeeeet/offer_broker/internal/repository/memory"
	"github.com/Freeeeeet/offer_broker/internal/repository/postgres"
	"github.com/Freeeeeet/offer_broker/internal/service"
	"github.com/go-redis/redis/v8"
	"github.com/go-telegram/bot"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := app.NewLogger(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Service stopped with error", zap.Error(err))
	}
	logger.Info("Service stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	store, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := service.New(store, logger)

	cache, closeCache, err := openAuthCache(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeCache()

	resolver := identity.NewResolver(identity.Config{
		Secret:          cfg.JWTSecret,
		CacheTTL:        cfg.AuthCacheTTL,
		AllowUnverified: cfg.DevAllowUnverified,
	}, cache, logger)

	scheduler, err := app.NewScheduler(cfg.AggregatesCron, svc.Offers, logger)
	if err != nil {
		return err
	}

	var limiter *httpapi.RateLimiter
	if cfg.RateLimitPerMin > 0 {
		limiter = httpapi.NewRateLimiter(cfg.RateLimitPerMin, httpapi.DefaultRateLimitIdle, logger)
		if err := scheduler.AddJob("rate limiter sweep", "@every 5m", limiter.Sweep); err != nil {
			return err
		}
	}

	// Всё, что может упасть при создании, до запуска горутин
	var botController *controller.BotController
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("create bot: %w", err)
		}
		botController = controller.NewBotController(b, svc, logger)
	} else {
		logger.Info("TELEGRAM_TOKEN is empty, bot disabled")
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(svc, resolver, store, logger, httpapi.Options{
			RequestTimeout: cfg.RequestTimeout,
			RateLimiter:    limiter,
			CORSOrigins:    cfg.CORSOrigins,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return scheduler.Run(ctx)
	})

	if botController != nil {
		g.Go(func() error {
			if err := botController.RegisterHandlers(ctx); err != nil {
				// Меню команд не критично, бот работает и без него
				logger.Warn("Bot commands were not registered", zap.Error(err))
			}
			return botController.Start(ctx)
		})
	}

	return g.Wait()
}

func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("Using in-memory store, data is lost on restart")
		return memory.NewStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	migrator, err := app.NewMigrator(pool, logger)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	defer migrator.Close()
	if err := migrator.Run(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	return postgres.NewStore(pool), pool.Close, nil
}

// openAuthCache Redis если задан адрес, иначе кэш в памяти процесса
func openAuthCache(ctx context.Context, cfg *config.Config, logger *zap.Logger) (identity.Cache, func(), error) {
	if cfg.RedisAddr == "" {
		return identity.NewMemoryCache(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisAuthDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}
	logger.Info("Auth cache uses Redis", zap.String("addr", cfg.RedisAddr), zap.Int("db", cfg.RedisAuthDB))
	return identity.NewRedisCache(client), func() { client.Close() }, nil
}
