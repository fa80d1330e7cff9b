// Package bootstrap wires config into the concrete adapters shared by the
// api and worker binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/bloodreport-ai/internal/application"
	appai "github.com/bryanwahyu/bloodreport-ai/internal/application/ai"
	appauth "github.com/bryanwahyu/bloodreport-ai/internal/application/auth"
	appreports "github.com/bryanwahyu/bloodreport-ai/internal/application/reports"
	"github.com/bryanwahyu/bloodreport-ai/internal/config"
	domai "github.com/bryanwahyu/bloodreport-ai/internal/domain/ai"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/jobs"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/querylogs"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/reports"
	"github.com/bryanwahyu/bloodreport-ai/internal/domain/users"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/ai/gemini"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/ai/openai"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/ai/vertex"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/cache"
	mysqlp "github.com/bryanwahyu/bloodreport-ai/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/bloodreport-ai/internal/infra/db/postgres"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/pdf"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/queue"
	"github.com/bryanwahyu/bloodreport-ai/internal/infra/storage"
	"github.com/bryanwahyu/bloodreport-ai/internal/middleware"
	"github.com/bryanwahyu/bloodreport-ai/internal/worker"
)

const connectAttempts = 10

// Queue is what both binaries need from a queue backend.
type Queue interface {
	jobs.Queue
	jobs.StatusStore
	Len(ctx context.Context) (pending, processing int64, err error)
	Ping(ctx context.Context) error
}

// App holds every wired dependency.
type App struct {
	Config  *config.Config
	Log     *zap.Logger
	DB      *sql.DB
	Redis   *redis.Client // nil when disabled
	Store   *storage.Store
	Queue   Queue
	Auth    *appauth.Service
	Reports *appreports.Service

	closers []func() error
}

// New connects to every backing service. Call Close when done.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{Config: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	var (
		userRepo   users.Repository
		reportRepo reports.Repository
		logRepo    querylogs.Repository
		err        error
	)
	switch cfg.Database.Driver {
	case "postgres":
		a.DB, err = pgp.Connect(ctx, cfg.PostgresDSN(), connectAttempts, log)
		if err != nil {
			return nil, fmt.Errorf("postgres connect: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := pgp.Migrate(ctx, a.DB); err != nil {
				return nil, fmt.Errorf("postgres migrate: %w", err)
			}
		}
		userRepo, reportRepo, logRepo = pgp.NewUserRepository(a.DB), pgp.NewReportRepository(a.DB), pgp.NewQueryLogRepository(a.DB)
	default:
		a.DB, err = mysqlp.Connect(ctx, cfg.MySQLDSN(), connectAttempts, log)
		if err != nil {
			return nil, fmt.Errorf("mysql connect: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := mysqlp.Migrate(ctx, a.DB); err != nil {
				return nil, fmt.Errorf("mysql migrate: %w", err)
			}
		}
		userRepo, reportRepo, logRepo = mysqlp.NewUserRepository(a.DB), mysqlp.NewReportRepository(a.DB), mysqlp.NewQueryLogRepository(a.DB)
	}
	a.closers = append(a.closers, a.DB.Close)

	var reportCache reports.Cache = cache.Noop{}
	if cfg.Redis.Enabled {
		opt, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.Redis = redis.NewClient(opt)
		a.closers = append(a.closers, a.Redis.Close)
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			// cache degrades to misses; the redis queue still needs it
			log.Warn("redis unreachable", zap.Error(err))
		}
		reportCache = cache.NewCache(a.Redis, cache.KeyPrefix)
	} else {
		log.Info("redis disabled, caching off")
	}

	a.Store, err = storage.New(ctx,
		cfg.Minio.Endpoint,
		cfg.Minio.Region,
		cfg.Minio.BucketName,
		cfg.Minio.AccessKey,
		cfg.Minio.SecretKey,
		cfg.Minio.UseSSL,
	)
	if err != nil {
		return nil, fmt.Errorf("minio init: %w", err)
	}

	client, err := a.aiClient(ctx)
	if err != nil {
		return nil, err
	}
	analyzer := appai.NewService(client, cfg.AI.Provider, cfg.AI.MaxReportChars, cfg.AI.Fallback, log.Named("ai"))

	statusTTL := time.Duration(cfg.Queue.StatusTTLHours) * time.Hour
	switch cfg.Queue.Backend {
	case "redis":
		a.Queue = queue.NewRedis(a.Redis, statusTTL, log.Named("queue"))
	default:
		a.Queue = queue.NewMemory(0, statusTTL)
	}

	a.Auth = appauth.NewService(userRepo, cfg.Auth.SecretKey, time.Duration(cfg.Auth.TokenTTLMinutes)*time.Minute, log.Named("auth"))
	a.Reports = &appreports.Service{
		Repo:           reportRepo,
		Files:          a.Store,
		PDF:            pdf.NewReader(),
		Cache:          reportCache,
		Logs:           logRepo,
		Users:          userRepo,
		Queue:          a.Queue,
		Tasks:          a.Queue,
		AI:             analyzer,
		Clock:          application.SystemClock{},
		Log:            log.Named("reports"),
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		TaskTimeout:    time.Duration(cfg.Queue.TaskTimeoutMinutes) * time.Minute,
	}

	ok = true
	return a, nil
}

func (a *App) aiClient(ctx context.Context) (domai.Client, error) {
	c := a.Config.AI
	switch c.Provider {
	case "gemini":
		if c.APIKey == "" {
			a.Log.Warn("GEMINI_API_KEY not set, using fallback analysis")
			return nil, nil
		}
		cli, err := gemini.NewClient(ctx, c.APIKey, c.Model, c.Temperature, c.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("gemini init: %w", err)
		}
		a.closers = append(a.closers, cli.Close)
		return cli, nil
	case "vertex":
		cli, err := vertex.NewClient(ctx, c.ProjectID, c.Region, c.Model, c.Temperature, c.MaxOutputTokens)
		if err != nil {
			return nil, fmt.Errorf("vertex init: %w", err)
		}
		a.closers = append(a.closers, cli.Close)
		return cli, nil
	case "openai":
		if c.APIKey == "" {
			a.Log.Warn("OPENAI_API_KEY not set, using fallback analysis")
			return nil, nil
		}
		return openai.NewClient(c.APIKey, c.Model, c.MaxOutputTokens, c.Temperature), nil
	default:
		return nil, nil
	}
}

// consumer is implemented by queues that track their consumers across processes.
type consumer interface {
	Recover(ctx context.Context) (int, error)
	Heartbeat(ctx context.Context) error
}

// RunWorkers reclaims jobs of dead consumers, then runs the worker pool
// (plus the consumer heartbeat) until ctx is done.
func (a *App) RunWorkers(ctx context.Context) error {
	cfg := a.Config.Queue
	log := a.Log.Named("worker")
	pool := worker.NewPool(a.Queue, a.Reports.ProcessJob, cfg.Workers,
		time.Duration(cfg.TaskTimeoutMinutes)*time.Minute, log)

	c, ok := a.Queue.(consumer)
	if !ok {
		return pool.Run(ctx)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return c.Heartbeat(gctx) })
	g.Go(func() error {
		n, err := c.Recover(gctx)
		if err != nil {
			log.Error("recover unacked jobs", zap.Error(err))
		} else if n > 0 {
			log.Info("requeued unacked jobs", zap.Int("count", n))
		}
		return pool.Run(gctx)
	})
	return g.Wait()
}

// HealthCheckers covers database, redis, storage and queue.
func (a *App) HealthCheckers() map[string]middleware.HealthChecker {
	checks := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: a.DB},
		"storage":  middleware.CheckFunc(a.Store.Ping),
		"queue":    middleware.CheckFunc(a.Queue.Ping),
	}
	if a.Redis != nil {
		checks["redis"] = middleware.CheckFunc(func(ctx context.Context) error {
			return a.Redis.Ping(ctx).Err()
		})
	}
	return checks
}

// Close releases connections in reverse order.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
