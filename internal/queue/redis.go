package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"video-chapters-go/internal/logger"
)

// RedisQueue keeps tasks in a Redis list (LPUSH producers, BRPOP workers) so
// queued stages survive a restart and can be drained by several processes.
// BRPOP removes a task before it runs, so a task in flight when its worker
// dies is not redelivered.
type RedisQueue struct {
	rdb         *redis.Client
	key         string
	concurrency int
	runner      *Runner
	log         *logger.Logger

	popTimeout time.Duration
}

func NewRedisQueue(addr, key string, concurrency int, runner *Runner, log *logger.Logger) (*RedisQueue, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("queue: missing redis addr")
	}
	if key == "" {
		key = "chapters:tasks"
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	if runner == nil {
		runner = NewRunner(1, log)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisQueue{
		rdb:         rdb,
		key:         key,
		concurrency: concurrency,
		runner:      runner,
		log:         log.Component("RedisQueue"),
		popTimeout:  5 * time.Second,
	}, nil
}

func (q *RedisQueue) Enqueue(ctx context.Context, t Task) error {
	raw, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("queue: encode task %s: %w", t.ID, err)
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return ErrClosed
		}
		return fmt.Errorf("queue: lpush %s: %w", q.key, err)
	}
	return nil
}

func (q *RedisQueue) Run(ctx context.Context, h Handler) error {
	q.log.WithField("concurrency", q.concurrency).WithField("key", q.key).Info("starting task workers")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < q.concurrency; i++ {
		g.Go(func() error {
			for {
				if gctx.Err() != nil {
					return nil
				}
				t, ok, err := q.pop(gctx)
				if err != nil {
					if gctx.Err() != nil || errors.Is(err, redis.ErrClosed) {
						return nil
					}
					q.log.WithError(err).Warn("BRPOP failed")
					sleep(gctx, time.Second)
					continue
				}
				if !ok {
					continue
				}
				_ = q.runner.Execute(gctx, h, t)
			}
		})
	}
	err := g.Wait()
	q.log.Info("task workers stopped")
	return err
}

func (q *RedisQueue) pop(ctx context.Context) (Task, bool, error) {
	res, err := q.rdb.BRPop(ctx, q.popTimeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Task{}, false, nil
	}
	if err != nil {
		return Task{}, false, err
	}
	if len(res) != 2 {
		return Task{}, false, nil
	}
	t, err := decodeTask([]byte(res[1]))
	if err != nil {
		q.log.WithError(err).Error("dropping undecodable task")
		return Task{}, false, nil
	}
	return t, true, nil
}

func (q *RedisQueue) Close() error {
	return q.rdb.Close()
}

func decodeTask(raw []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(raw, &t); err != nil {
		return Task{}, fmt.Errorf("queue: decode task: %w", err)
	}
	if t.Kind == "" {
		return Task{}, fmt.Errorf("queue: task %q has no kind", t.ID)
	}
	return t, nil
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
