package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/smallbiznis/valora-identity/internal/adapter/cache"
	"github.com/smallbiznis/valora-identity/internal/bootstrap"
	"github.com/smallbiznis/valora-identity/internal/config"
	httptransport "github.com/smallbiznis/valora-identity/internal/http"
	"github.com/smallbiznis/valora-identity/internal/http/handler"
	httpmiddleware "github.com/smallbiznis/valora-identity/internal/http/middleware"
	"github.com/smallbiznis/valora-identity/internal/jwt"
	apimiddleware "github.com/smallbiznis/valora-identity/internal/middleware"
	"github.com/smallbiznis/valora-identity/internal/repository"
	"github.com/smallbiznis/valora-identity/internal/repository/inmem"
	"github.com/smallbiznis/valora-identity/internal/server"
	"github.com/smallbiznis/valora-identity/internal/service"
	"github.com/smallbiznis/valora-identity/internal/telemetry"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newStore,
			newRevocationStore,
			newTokenGenerator,
			newRateLimiter,
			service.NewAuthService,
			service.NewOrganizationService,
			service.NewUserService,
			handler.NewAuthHandler,
			handler.NewOrganizationHandler,
			handler.NewUserHandler,
			newHandlers,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, bootstrap.EnsureAdmin, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.New(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func newStore(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (repository.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return inmem.NewStore(), nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.DatabaseMaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if cfg.DatabaseMigrate {
		if err := repository.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, err
		}
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return repository.NewPostgresStore(pool), nil
}

func newRevocationStore(lc fx.Lifecycle, cfg config.Config) (repository.RevocationStore, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		return cacheadapter.NewMemoryRevocationStore(), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return cacheadapter.NewRedisRevocationStore(client), nil
}

func newTokenGenerator(cfg config.Config) (*jwt.Generator, error) {
	return jwt.NewGenerator(cfg.JWTSecret, cfg.JWTIssuer)
}

func newRateLimiter(cfg config.Config) *apimiddleware.RateLimiter {
	return apimiddleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newHandlers(auth *handler.AuthHandler, organizations *handler.OrganizationHandler, users *handler.UserHandler) httptransport.Handlers {
	return httptransport.Handlers{Auth: auth, Organizations: organizations, Users: users}
}

func newAuthMiddleware(authService *service.AuthService, logger *zap.Logger) *httpmiddleware.Auth {
	return &httpmiddleware.Auth{AuthService: authService, Logger: logger}
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
