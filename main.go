package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/austinb847/map-planner/nav"
)

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func main() {
	// Load configuration
	if err := LoadConfig("config.toml"); err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	config := GetConfig()

	logger, err := newLogger(config.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	navCfg := GetNavConfig()
	var directions nav.Directions = nav.NewClient(navCfg, logger)
	if config.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     config.RedisAddr,
			Password: config.RedisPassword,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, route cache will miss", zap.String("addr", config.RedisAddr), zap.Error(err))
		}
		directions = nav.NewCachedDirections(directions, nav.NewRedisStore(rdb), navCfg, nav.WithCacheLogger(logger))
		logger.Info("route cache enabled", zap.String("addr", config.RedisAddr), zap.Duration("ttl", navCfg.CacheTTL))
	}

	svc := nav.NewService(navCfg, directions, nav.NewGeocoder(navCfg, logger), logger)
	h := nav.NewHandler(svc, nav.NewSessions(ctx, svc), logger)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Mount("/nav", h.Routes())

	srv := &http.Server{
		Addr:              config.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	// Start server
	logger.Info("starting server", zap.String("port", config.Port), zap.String("profile", navCfg.Profile))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server failed to start", zap.Error(err))
	}
}
