package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"video-chapters-go/internal/jobstatus"
	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/types"
)

// SweepStore is the slice of the job status store the sweeper needs.
type SweepStore interface {
	Stale(ctx context.Context, cutoff time.Time, states ...types.JobState) ([]jobstatus.JobStatus, error)
	FailIfStale(ctx context.Context, trackingID string, status types.JobState, cutoff time.Time, message string) (bool, error)
}

// Sweeper fails jobs that have sat in a non-terminal state longer than the
// stale window, such as tasks lost from an in-memory queue on restart.
type Sweeper struct {
	store      SweepStore
	staleAfter time.Duration
	now        func() time.Time
	log        *logger.Logger
}

var sweptStates = []types.JobState{
	types.JobQueued,
	types.JobProcessing,
	types.JobChapterGenerationProcessing,
}

func NewSweeper(store SweepStore, staleAfter time.Duration, log *logger.Logger) *Sweeper {
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Sweeper{
		store:      store,
		staleAfter: staleAfter,
		now:        time.Now,
		log:        log.Component("Sweeper"),
	}
}

// Sweep marks every stale job failed and returns how many it marked. A row
// written by a stage after it was listed is left alone.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.staleAfter)
	rows, err := s.store.Stale(ctx, cutoff, sweptStates...)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, row := range rows {
		if !types.CanTransition(row.State(), types.JobFailed) {
			continue
		}
		msg := fmt.Sprintf("Job timed out: no progress since %s", row.UpdatedAt.UTC().Format(time.RFC3339))
		changed, err := s.store.FailIfStale(ctx, row.JobTrackingID, row.State(), cutoff, msg)
		if err != nil {
			s.log.WithJob(row.VideoID, row.JobTrackingID).WithError(err).Warn("failed to mark stale job")
			continue
		}
		if !changed {
			s.log.WithJob(row.VideoID, row.JobTrackingID).Debug("stale job progressed before sweep, skipped")
			continue
		}
		s.log.WithJob(row.VideoID, row.JobTrackingID).WithField("status", row.Status).Warn("marked stale job failed")
		marked++
	}
	return marked, nil
}

// Run sweeps on the cron schedule until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, schedule string) error {
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		if n, err := s.Sweep(ctx); err != nil {
			s.log.WithError(err).Error("stale job sweep failed")
		} else if n > 0 {
			s.log.WithField("marked", n).Info("stale job sweep finished")
		}
	})
	if err != nil {
		return fmt.Errorf("sweeper: schedule %q: %w", schedule, err)
	}

	s.log.WithField("schedule", schedule).WithField("stale_after", s.staleAfter.String()).Info("starting stale job sweeper")
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
