// Command api serves the TaxTooter support ticketing API.
//
// @title                       TaxTooter API
// @version                     1.0
// @description                 Support ticketing for tax queries between customers, consultants and admins.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	_ "github.com/taxtooter/support-api/docs"
	"github.com/taxtooter/support-api/internal/api"
	"github.com/taxtooter/support-api/internal/api/middleware"
	"github.com/taxtooter/support-api/internal/core/ports"
	"github.com/taxtooter/support-api/internal/core/service"
	mongostore "github.com/taxtooter/support-api/internal/infrastructure/db/mongo"
	pgstore "github.com/taxtooter/support-api/internal/infrastructure/db/postgres"
	redisstore "github.com/taxtooter/support-api/internal/infrastructure/db/redis"
	"github.com/taxtooter/support-api/internal/infrastructure/events"
	"github.com/taxtooter/support-api/internal/infrastructure/http/handlers"
	"github.com/taxtooter/support-api/internal/infrastructure/queue"
	"github.com/taxtooter/support-api/internal/infrastructure/storage"
	"github.com/taxtooter/support-api/internal/pkg/config"
	"github.com/taxtooter/support-api/pkg/logger"
)

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: "taxtooter-api",
		Env:     cfg.Env,
	})

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped with error")
	}
}

// stores bundles the repositories of the selected primary store.
type stores struct {
	users   ports.UserRepository
	queries ports.QueryRepository
	ping    handlers.CheckFunc
	close   func(context.Context) error
}

func openStores(ctx context.Context, cfg *config.Config) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		db, err := pgstore.Connect(ctx, pgstore.Config{
			DSN:          cfg.Postgres.DSN,
			MaxOpenConns: cfg.Postgres.MaxOpenConns,
			MaxIdleConns: cfg.Postgres.MaxIdleConns,
		})
		if err != nil {
			return nil, err
		}
		if err := pgstore.Migrate(db); err != nil {
			_ = pgstore.Close(db)
			return nil, err
		}
		return &stores{
			users:   pgstore.NewUserRepository(db),
			queries: pgstore.NewQueryRepository(db),
			ping:    pgstore.Ping(db),
			close:   func(context.Context) error { return pgstore.Close(db) },
		}, nil

	default:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		if err := mongostore.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, err
		}
		return &stores{
			users:   mongostore.NewUserRepository(db),
			queries: mongostore.NewQueryRepository(db),
			ping:    mongostore.Ping(db),
			close:   client.Disconnect,
		}, nil
	}
}

func openStorage(ctx context.Context, cfg *config.Config) (ports.FileStorage, error) {
	if cfg.Storage.Driver == config.StorageS3 {
		s3 := cfg.Storage.S3
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:          s3.Bucket,
			Region:          s3.Region,
			Endpoint:        s3.Endpoint,
			AccessKeyID:     s3.AccessKeyID,
			SecretAccessKey: s3.SecretAccessKey,
			UsePathStyle:    s3.UsePathStyle,
		})
	}
	return storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.Storage.PublicPath)
}

func openPublisher(cfg *config.Config, rdb *goredis.Client, log zerolog.Logger) (ports.EventPublisher, error) {
	switch cfg.Events.Driver {
	case config.EventsRedis:
		if rdb == nil {
			return nil, errors.New("EVENTS_DRIVER=redis needs a reachable redis")
		}
		return events.NewRedisStreamPublisher(rdb, cfg.Events.Stream), nil
	case config.EventsKafka:
		return events.NewKafkaPublisher(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	case config.EventsAMQP:
		return events.NewAMQPPublisher(cfg.Events.AMQPURL, cfg.Events.Exchange)
	default:
		return events.NewNopPublisher(log), nil
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	st, err := openStores(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreDriver, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := st.close(closeCtx); err != nil {
			log.Warn().Err(err).Msg("store close failed")
		}
	}()
	checks := map[string]handlers.CheckFunc{cfg.StoreDriver: st.ping}

	// Redis backs the list cache and the rate limiter. Both are optional, so an
	// unreachable Redis degrades the service instead of stopping it.
	var (
		cache   ports.ListCache
		limiter middleware.Limiter
	)
	rdb, err := redisstore.Connect(ctx, redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, running without cache and rate limiting")
		rdb = nil
	} else {
		defer rdb.Close()
		cache = redisstore.NewListCache(rdb, cfg.Redis.CacheTTL)
		limiter = redisstore.NewRateLimiter(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	fileStore, err := openStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}

	publisher, err := openPublisher(cfg, rdb, log)
	if err != nil {
		return fmt.Errorf("open %s publisher: %w", cfg.Events.Driver, err)
	}
	dispatchCtx, cancelDispatch := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Events.Workers, publisher, log)
	dispatcher.Start(dispatchCtx)

	authService := service.NewAuthService(st.users, cfg.JWTSecret, cfg.TokenTTL, log)
	userService := service.NewUserService(st.users, log)
	fileService := service.NewFileService(fileStore, service.FileServiceConfig{
		KeyPrefix:    cfg.KeyPrefix(),
		MaxBytes:     cfg.Storage.MaxUploadBytes,
		SignedURLTTL: cfg.Storage.SignedURLTTL,
	}, log)
	queryService := service.NewQueryService(st.queries, st.users, fileService, cache, dispatcher, log)

	if err := authService.EnsureAdmin(ctx, cfg.Bootstrap.AdminEmail, cfg.Bootstrap.AdminPassword, cfg.Bootstrap.AdminName); err != nil {
		log.Error().Err(err).Msg("bootstrap admin failed")
	}

	deps := api.Deps{
		Log:         log,
		JWTSecret:   cfg.JWTSecret,
		Auth:        authService,
		Users:       userService,
		Queries:     queryService,
		Files:       fileService,
		Resolver:    authService,
		Limiter:     limiter,
		Checks:      checks,
		CORSOrigins: cfg.CORSOrigins,
		BodyLimit:   cfg.BodyLimit(),
	}
	if cfg.Storage.Driver == config.StorageLocal {
		deps.UploadDir = cfg.Storage.LocalDir
		deps.UploadPath = cfg.Storage.PublicPath
	}
	e := api.NewRouter(deps)

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Str("events", cfg.Events.Driver).Msg("api listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			cancelDispatch()
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}

	// Drain in-flight events before closing the broker connection.
	dispatcher.Close()
	if err := publisher.Close(); err != nil {
		log.Warn().Err(err).Msg("event publisher close failed")
	}
	cancelDispatch()

	log.Info().Int64("events_dropped", dispatcher.Dropped()).Msg("server stopped")
	return nil
}
