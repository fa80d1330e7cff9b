package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/bryanwahyu/bloodreport-ai/internal/domain/jobs"
)

const (
	pendingKey       = "queue:analysis"
	processingPrefix = "queue:analysis:processing:"
	consumersKey     = "queue:analysis:consumers"
	alivePrefix      = "queue:analysis:alive:"
	statusPrefix     = "task:"

	heartbeatTTL = 30 * time.Second
)

// Redis is a reliable list queue. Every consumer moves jobs into its own
// processing list on Dequeue and removes them on Ack; a heartbeat key marks
// the consumer alive so Recover only reclaims lists of dead consumers.
type Redis struct {
	rdb         *redis.Client
	log         *zap.Logger
	id          string
	statusTTL   time.Duration
	pollTimeout time.Duration
	aliveTTL    time.Duration
}

func NewRedis(rdb *redis.Client, statusTTL time.Duration, log *zap.Logger) *Redis {
	if log == nil {
		log = zap.NewNop()
	}
	if statusTTL <= 0 {
		statusTTL = 24 * time.Hour
	}
	return &Redis{
		rdb:         rdb,
		log:         log,
		id:          uuid.New().String(),
		statusTTL:   statusTTL,
		pollTimeout: 5 * time.Second,
		aliveTTL:    heartbeatTTL,
	}
}

// ID is this consumer's id.
func (q *Redis) ID() string { return q.id }

func (q *Redis) processingKey() string { return processingPrefix + q.id }

func (q *Redis) Enqueue(ctx context.Context, job *jobs.Job) error {
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now().UTC()
	}
	payload, err := msgpack.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	if err := q.rdb.LPush(ctx, pendingKey, payload).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.TaskID, err)
	}
	return nil
}

func (q *Redis) Dequeue(ctx context.Context) (*jobs.Job, error) {
	// registered before the move so a job is never held by an unknown consumer
	if err := q.touch(ctx); err != nil {
		return nil, err
	}
	raw, err := q.rdb.BLMove(ctx, pendingKey, q.processingKey(), "RIGHT", "LEFT", q.pollTimeout).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, jobs.ErrNoJob
		}
		return nil, fmt.Errorf("dequeue: %w", err)
	}

	var job jobs.Job
	if err := msgpack.Unmarshal([]byte(raw), &job); err != nil {
		// unreadable payload would loop forever through Recover
		q.log.Error("dropping malformed job", zap.Binary("payload", []byte(raw)), zap.Error(err))
		q.rdb.LRem(ctx, q.processingKey(), 1, raw)
		return nil, jobs.ErrNoJob
	}
	job.Receipt = raw
	return &job, nil
}

func (q *Redis) Ack(ctx context.Context, job *jobs.Job) error {
	if job.Receipt == "" {
		return nil
	}
	if err := q.rdb.LRem(ctx, q.processingKey(), 1, job.Receipt).Err(); err != nil {
		return fmt.Errorf("ack job %s: %w", job.TaskID, err)
	}
	return nil
}

// touch registers the consumer and refreshes its heartbeat.
func (q *Redis) touch(ctx context.Context) error {
	pipe := q.rdb.TxPipeline()
	pipe.SAdd(ctx, consumersKey, q.id)
	pipe.Set(ctx, alivePrefix+q.id, time.Now().UTC().Unix(), q.aliveTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("consumer heartbeat: %w", err)
	}
	return nil
}

// Heartbeat keeps this consumer alive while long jobs run. Blocks until ctx
// is done; the heartbeat then lapses after its TTL.
func (q *Redis) Heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(q.aliveTTL / 3)
	defer ticker.Stop()
	for {
		if err := q.touch(ctx); err != nil && ctx.Err() == nil {
			q.log.Warn("heartbeat failed", zap.String("consumer", q.id), zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Recover puts jobs held by consumers whose heartbeat lapsed back at the head
// of the queue. Jobs of live consumers are left alone.
func (q *Redis) Recover(ctx context.Context) (int, error) {
	ids, err := q.rdb.SMembers(ctx, consumersKey).Result()
	if err != nil {
		return 0, fmt.Errorf("list consumers: %w", err)
	}
	n := 0
	for _, id := range ids {
		if id == q.id {
			continue
		}
		alive, err := q.rdb.Exists(ctx, alivePrefix+id).Result()
		if err != nil {
			return n, fmt.Errorf("check consumer %s: %w", id, err)
		}
		if alive > 0 {
			continue
		}
		for {
			err := q.rdb.LMove(ctx, processingPrefix+id, pendingKey, "RIGHT", "RIGHT").Err()
			if errors.Is(err, redis.Nil) {
				break
			}
			if err != nil {
				return n, fmt.Errorf("recover jobs of %s: %w", id, err)
			}
			n++
		}
		if err := q.rdb.SRem(ctx, consumersKey, id).Err(); err != nil {
			return n, fmt.Errorf("forget consumer %s: %w", id, err)
		}
		q.log.Info("reclaimed dead consumer", zap.String("consumer", id))
	}
	return n, nil
}

// Len reports pending jobs and jobs in flight across all consumers.
func (q *Redis) Len(ctx context.Context) (pending, processing int64, err error) {
	ids, err := q.rdb.SMembers(ctx, consumersKey).Result()
	if err != nil {
		return 0, 0, err
	}
	pipe := q.rdb.Pipeline()
	p := pipe.LLen(ctx, pendingKey)
	inFlight := make([]*redis.IntCmd, 0, len(ids))
	for _, id := range ids {
		inFlight = append(inFlight, pipe.LLen(ctx, processingPrefix+id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, err
	}
	for _, c := range inFlight {
		processing += c.Val()
	}
	return p.Val(), processing, nil
}

func (q *Redis) SetStatus(ctx context.Context, st *jobs.TaskStatus) error {
	st.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(statusRecord{TaskStatus: st, UserID: st.UserID})
	if err != nil {
		return fmt.Errorf("marshal task status: %w", err)
	}
	if err := q.rdb.Set(ctx, statusPrefix+st.TaskID, data, q.statusTTL).Err(); err != nil {
		return fmt.Errorf("store task status %s: %w", st.TaskID, err)
	}
	return nil
}

func (q *Redis) GetStatus(ctx context.Context, taskID string) (*jobs.TaskStatus, error) {
	data, err := q.rdb.Get(ctx, statusPrefix+taskID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, jobs.ErrTaskNotFound
		}
		return nil, fmt.Errorf("load task status %s: %w", taskID, err)
	}
	rec := statusRecord{TaskStatus: &jobs.TaskStatus{}}
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode task status %s: %w", taskID, err)
	}
	rec.TaskStatus.UserID = rec.UserID
	return rec.TaskStatus, nil
}

func (q *Redis) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}

// statusRecord keeps the owner, which the API view hides.
type statusRecord struct {
	*jobs.TaskStatus
	UserID int64 `json:"owner_id"`
}
