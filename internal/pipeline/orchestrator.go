// Package pipeline runs the asynchronous two-stage chapter job: audio
// download, then audio chaptering through the transcription service. Every
// transition is recorded in the job status store.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"video-chapters-go/internal/jobstatus"
	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/queue"
	"video-chapters-go/internal/transcription"
	"video-chapters-go/internal/types"
)

// Task kinds handled by the orchestrator.
const (
	KindAudioDownload     = "audio_download"
	KindChapterGeneration = "chapter_generation"
)

var (
	ErrPollTimeout  = errors.New("transcription polling timed out")
	ErrRemoteFailed = errors.New("transcription failed")
)

type Store interface {
	Create(ctx context.Context, trackingID, videoID string) (*jobstatus.JobStatus, error)
	Get(ctx context.Context, trackingID string) (*jobstatus.JobStatus, error)
	Update(ctx context.Context, trackingID string, status types.JobState, message string, data any) error
}

type AudioDownloader interface {
	DownloadAudio(ctx context.Context, videoID string) (any, error)
}

// Chapterer is the audio-chaptering service.
type Chapterer interface {
	Upload(ctx context.Context, audio []byte) (string, error)
	StartJob(ctx context.Context, uploadURL string) (string, error)
	Poll(ctx context.Context, jobID string) (transcription.PollResult, error)
}

type Enqueuer interface {
	Enqueue(ctx context.Context, t queue.Task) error
}

type Options struct {
	PollInterval    time.Duration
	PollMaxAttempts int
	// ReadAudio loads the downloaded audio file; defaults to os.ReadFile.
	ReadAudio func(path string) ([]byte, error)
}

type Orchestrator struct {
	store      Store
	downloader AudioDownloader
	chapterer  Chapterer
	queue      Enqueuer

	readAudio       func(string) ([]byte, error)
	pollInterval    time.Duration
	pollMaxAttempts int

	log *logger.Logger
}

func New(store Store, downloader AudioDownloader, chapterer Chapterer, q Enqueuer, opts Options, log *logger.Logger) *Orchestrator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 3 * time.Second
	}
	if opts.PollMaxAttempts < 1 {
		opts.PollMaxAttempts = 60
	}
	if opts.ReadAudio == nil {
		opts.ReadAudio = os.ReadFile
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		store:           store,
		downloader:      downloader,
		chapterer:       chapterer,
		queue:           q,
		readAudio:       opts.ReadAudio,
		pollInterval:    opts.PollInterval,
		pollMaxAttempts: opts.PollMaxAttempts,
		log:             log.Component("Pipeline"),
	}
}

// Submit records a queued job for videoID and schedules Stage 1.
func (o *Orchestrator) Submit(ctx context.Context, videoID string) (*jobstatus.JobStatus, error) {
	videoID = strings.TrimSpace(videoID)
	if videoID == "" {
		return nil, errors.New("video_id is required")
	}

	trackingID := uuid.NewString()
	row, err := o.store.Create(ctx, trackingID, videoID)
	if err != nil {
		return nil, err
	}

	task, err := queue.NewTask(KindAudioDownload, types.AudioDownloadTask{VideoID: videoID, JobTrackingID: trackingID})
	if err == nil {
		err = o.queue.Enqueue(ctx, task)
	}
	if err != nil {
		msg := "Enqueue failed: " + err.Error()
		if uerr := o.store.Update(ctx, trackingID, types.JobFailed, msg, nil); uerr != nil {
			o.log.WithJob(videoID, trackingID).WithError(uerr).Error("failed to record enqueue failure")
		}
		return nil, fmt.Errorf("enqueue audio download: %w", err)
	}

	o.log.WithJob(videoID, trackingID).Info("job queued")
	return row, nil
}

// Handle dispatches a queued task to its stage. Stage failures are returned
// so the queue's retry policy applies; malformed payloads and remote
// transcription errors are not retried.
func (o *Orchestrator) Handle(ctx context.Context, t queue.Task) error {
	switch t.Kind {
	case KindAudioDownload:
		var args types.AudioDownloadTask
		if err := t.Decode(&args); err != nil {
			return queue.Permanent(err)
		}
		return o.DownloadAudio(ctx, args)
	case KindChapterGeneration:
		var args types.ChapterGenerationTask
		if err := t.Decode(&args); err != nil {
			return queue.Permanent(err)
		}
		err := o.GenerateChapters(ctx, args)
		if errors.Is(err, ErrRemoteFailed) {
			return queue.Permanent(err)
		}
		return err
	default:
		return queue.Permanent(fmt.Errorf("no handler registered for task kind %q", t.Kind))
	}
}

// setStatus writes the full record. An unknown tracking id is logged and
// swallowed; any other store failure is returned.
func (o *Orchestrator) setStatus(ctx context.Context, log *logger.Logger, trackingID string, status types.JobState, message string, data any) error {
	err := o.store.Update(ctx, trackingID, status, message, data)
	if errors.Is(err, jobstatus.ErrNotFound) {
		log.Error("job status not found for tracking ID")
		return nil
	}
	return err
}

// shouldRun reports whether a (possibly redelivered) stage may move the job
// into next. Unknown rows run; the status writes will log them.
func (o *Orchestrator) shouldRun(ctx context.Context, log *logger.Logger, trackingID string, next types.JobState) (bool, error) {
	row, err := o.store.Get(ctx, trackingID)
	if errors.Is(err, jobstatus.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if !types.CanTransition(row.State(), next) {
		log.WithField("status", row.Status).Warn("job already past this stage, skipping")
		return false, nil
	}
	return true, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
