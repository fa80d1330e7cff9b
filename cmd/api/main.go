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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/bloodreport-ai/internal/bootstrap"
	"github.com/bryanwahyu/bloodreport-ai/internal/config"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/httpserver"
	"github.com/bryanwahyu/bloodreport-ai/internal/logging"
	"github.com/bryanwahyu/bloodreport-ai/internal/middleware"
)

const version = "1.0.0"

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger, err := logging.New(cfg.Environment, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("api stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	handler := httpserver.NewRouter(httpserver.Options{
		Auth:              app.Auth,
		Reports:           app.Reports,
		Log:               logger.Named("http"),
		HealthCheckers:    app.HealthCheckers(),
		QueueDepth:        middleware.QueueDepth(app.Queue.Len),
		Version:           version,
		AllowedOrigins:    cfg.Server.AllowedOrigins,
		RateLimitCapacity: cfg.Server.RateLimitCapacity,
		RateLimitRefill:   cfg.Server.RateLimitRefill,
		TrustProxy:        cfg.Server.TrustProxy,
		MaxUploadBytes:    int64(cfg.Server.MaxUploadMB) << 20,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSeconds) * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// run server
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", addr), zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.Queue.InlineWorkers {
		g.Go(func() error { return app.RunWorkers(gctx) })
	} else if cfg.Queue.Backend == "memory" {
		logger.Warn("memory queue without inline workers, queued analyses will never run")
	}

	// graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
