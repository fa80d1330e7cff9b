package worker

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/bloodreport-ai/internal/domain/jobs"
)

// Handler processes one job. A returned error is logged and the job is
// acked, unless the pool was shutting down when the handler failed.
type Handler func(ctx context.Context, job *jobs.Job) error

type Pool struct {
	queue   jobs.Queue
	handler Handler
	workers int
	timeout time.Duration
	log     *zap.Logger

	// backoff after a queue error
	retryDelay time.Duration
}

func NewPool(queue jobs.Queue, handler Handler, workers int, timeout time.Duration, log *zap.Logger) *Pool {
	if workers <= 0 {
		workers = 1
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{queue: queue, handler: handler, workers: workers, timeout: timeout, log: log, retryDelay: time.Second}
}

// Run blocks until ctx is cancelled.
func (p *Pool) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.workers; i++ {
		id := i
		g.Go(func() error {
			p.loop(gctx, id)
			return nil
		})
	}
	p.log.Info("worker pool started", zap.Int("workers", p.workers))
	err := g.Wait()
	p.log.Info("worker pool stopped")
	return err
}

func (p *Pool) loop(ctx context.Context, id int) {
	log := p.log.With(zap.Int("worker", id))
	for {
		if ctx.Err() != nil {
			return
		}
		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, jobs.ErrNoJob) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.retryDelay):
			}
			continue
		}

		start := time.Now()
		err = p.handle(ctx, job)
		fields := []zap.Field{zap.String("task_id", job.TaskID), zap.Int64("report_id", job.ReportID), zap.Duration("took", time.Since(start))}
		if err != nil {
			log.Error("job failed", append(fields, zap.Error(err))...)
		} else {
			log.Info("job done", fields...)
		}

		// cut short by shutdown: leave it unacked so Recover re-queues it.
		// A job that finished before shutdown is acked as usual.
		if err != nil && ctx.Err() != nil {
			return
		}
		if err := p.queue.Ack(context.WithoutCancel(ctx), job); err != nil {
			log.Error("ack failed", zap.String("task_id", job.TaskID), zap.Error(err))
		}
	}
}

func (p *Pool) handle(ctx context.Context, job *jobs.Job) (err error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.Error("job panicked", zap.String("task_id", job.TaskID), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return p.handler(ctx, job)
}
