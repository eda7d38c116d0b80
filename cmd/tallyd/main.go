// Command tallyd serves the counter page backed by a persistent store.
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

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ryhazerus/tally"
	"github.com/ryhazerus/tally/internal/config"
	"github.com/ryhazerus/tally/internal/logging"
	"github.com/ryhazerus/tally/internal/web"
	"github.com/ryhazerus/tally/store"
	"github.com/ryhazerus/tally/store/redis"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load configuration: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("tallyd stopped", zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
	logger.Sync()
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx := context.Background()

	// The store creates its schema before any request is served.
	s, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	logger.Info("store ready", zap.String("driver", cfg.StoreDriver))

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	svc := tally.New(
		tally.WithStore(s),
		tally.WithLogger(logger.Named("tally")),
		tally.WithMetrics(reg),
	)
	defer svc.Close()

	if cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := web.NewRouter(svc, web.Options{
		DefaultCounter: cfg.CounterName,
		Logger:         logger.Named("web"),
		Gatherer:       reg,
	})

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: router,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err, ok := <-errc:
		if !ok {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case sig := <-quit:
		logger.Info("shutting down", zap.Stringer("signal", sig))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("http server stopped")
	return nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return store.NewMemoryStore(), nil
	case config.DriverRedis:
		client := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		return redis.NewRedisStore(client), nil
	default:
		return store.NewSQLiteStore(cfg.SQLiteDSN)
	}
}
