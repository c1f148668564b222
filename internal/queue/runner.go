package queue

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"video-chapters-go/internal/logger"
)

// Runner executes a task with panic recovery and bounded exponential retry.
type Runner struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration

	log *logger.Logger
}

func NewRunner(maxAttempts int, log *logger.Logger) *Runner {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{
		MaxAttempts:     maxAttempts,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
		log:             log.Component("TaskRunner"),
	}
}

// Execute runs h until it succeeds, returns a Permanent error, panics, or the
// attempt budget is spent. The last error is returned.
func (r *Runner) Execute(ctx context.Context, h Handler, t Task) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.InitialInterval
	b.MaxInterval = r.MaxInterval
	b.MaxElapsedTime = 0

	entry := r.log.WithFields(logrus.Fields{"task_id": t.ID, "kind": t.Kind})

	op := func() error {
		t.Attempt++
		err := r.call(ctx, h, t)
		if err == nil {
			return nil
		}

		var perm *permanentError
		var pnc *panicError
		switch {
		case errors.As(err, &perm):
			return backoff.Permanent(perm.err)
		case errors.As(err, &pnc):
			return backoff.Permanent(err)
		}
		if t.Attempt < r.MaxAttempts {
			entry.WithField("attempt", t.Attempt).WithField("error", err.Error()).Warn("task failed, retrying")
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(r.MaxAttempts-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		entry.WithField("attempts", t.Attempt).WithField("error", err.Error()).Error("task failed")
		return err
	}
	return nil
}

func (r *Runner) call(ctx context.Context, h Handler, t Task) (err error) {
	defer func() {
		if v := recover(); v != nil {
			r.log.WithFields(logrus.Fields{
				"task_id": t.ID,
				"kind":    t.Kind,
				"panic":   v,
			}).Error("task handler panic")
			err = &panicError{val: v}
		}
	}()
	return h(ctx, t)
}
