package pipeline

import (
	"context"
	"fmt"

	"video-chapters-go/internal/chapters"
	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/queue"
	"video-chapters-go/internal/transcription"
	"video-chapters-go/internal/types"
	"video-chapters-go/internal/videosvc"
)

// DownloadAudio is Stage 1. On success it persists the download payload and,
// when the payload names an audio path, schedules Stage 2.
func (o *Orchestrator) DownloadAudio(ctx context.Context, args types.AudioDownloadTask) error {
	log := o.log.WithJob(args.VideoID, args.JobTrackingID)

	run, err := o.shouldRun(ctx, log, args.JobTrackingID, types.JobProcessing)
	if err != nil || !run {
		return err
	}
	defer o.failOnPanic(ctx, log, args.JobTrackingID, "Download failed")

	log.Info("starting audio download")
	if err := o.downloadAudio(ctx, args); err != nil {
		log.WithError(err).Error("audio download failed")
		if uerr := o.setStatus(ctx, log, args.JobTrackingID, types.JobFailed, "Download failed: "+err.Error(), nil); uerr != nil {
			log.WithError(uerr).Error("failed to record download failure")
		}
		return err
	}
	log.Info("audio download completed")
	return nil
}

func (o *Orchestrator) downloadAudio(ctx context.Context, args types.AudioDownloadTask) error {
	log := o.log.WithJob(args.VideoID, args.JobTrackingID)

	if err := o.setStatus(ctx, log, args.JobTrackingID, types.JobProcessing, "Downloading audio from video", nil); err != nil {
		return err
	}

	payload, err := o.downloader.DownloadAudio(ctx, args.VideoID)
	if err != nil {
		return err
	}

	if err := o.setStatus(ctx, log, args.JobTrackingID, types.JobAudioDownloadCompleted, "Audio download completed successfully", payload); err != nil {
		return err
	}

	path, ok := videosvc.AudioPath(payload)
	if !ok {
		log.Warn("no audio file path found in response, skipping chapter generation")
		return nil
	}

	next := types.ChapterGenerationTask{VideoID: args.VideoID, JobTrackingID: args.JobTrackingID, AudioPath: path}
	task, err := queue.NewTask(KindChapterGeneration, next)
	if err != nil {
		return err
	}
	if err := o.queue.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue chapter generation: %w", err)
	}
	log.WithField("audio_path", path).Info("triggered chapter generation")
	return nil
}

// GenerateChapters is Stage 2: upload the audio, start an auto-chapters job,
// poll it to a terminal state and persist the chapter summaries.
func (o *Orchestrator) GenerateChapters(ctx context.Context, args types.ChapterGenerationTask) error {
	log := o.log.WithJob(args.VideoID, args.JobTrackingID)

	run, err := o.shouldRun(ctx, log, args.JobTrackingID, types.JobChapterGenerationProcessing)
	if err != nil || !run {
		return err
	}
	defer o.failOnPanic(ctx, log, args.JobTrackingID, "Chapter generation failed")

	log.Info("starting chapter generation")
	if err := o.generateChapters(ctx, args); err != nil {
		log.WithError(err).Error("chapter generation failed")
		if uerr := o.setStatus(ctx, log, args.JobTrackingID, types.JobFailed, "Chapter generation failed: "+err.Error(), nil); uerr != nil {
			log.WithError(uerr).Error("failed to record chapter generation failure")
		}
		return err
	}
	log.Info("chapter generation completed")
	return nil
}

func (o *Orchestrator) generateChapters(ctx context.Context, args types.ChapterGenerationTask) error {
	log := o.log.WithJob(args.VideoID, args.JobTrackingID)

	if err := o.setStatus(ctx, log, args.JobTrackingID, types.JobChapterGenerationProcessing, "Generating chapters from audio", nil); err != nil {
		return err
	}

	audio, err := o.readAudio(args.AudioPath)
	if err != nil {
		return fmt.Errorf("read audio %s: %w", args.AudioPath, err)
	}
	uploadURL, err := o.chapterer.Upload(ctx, audio)
	if err != nil {
		return err
	}
	jobID, err := o.chapterer.StartJob(ctx, uploadURL)
	if err != nil {
		return err
	}
	result, err := o.poll(ctx, log, jobID)
	if err != nil {
		return err
	}

	data := map[string]any{"chapters": FormatChapters(result.Chapters)}
	return o.setStatus(ctx, log, args.JobTrackingID, types.JobCompleted, "Chapter generation completed successfully", data)
}

// failOnPanic records a panicking stage as failed and re-panics so the
// runner still sees it. It must be deferred directly.
func (o *Orchestrator) failOnPanic(ctx context.Context, log *logger.Logger, id, prefix string) {
	v := recover()
	if v == nil {
		return
	}
	msg := fmt.Sprintf("%s: panic: %v", prefix, v)
	if err := o.setStatus(context.WithoutCancel(ctx), log, id, types.JobFailed, msg, nil); err != nil {
		log.WithError(err).Error("failed to record stage panic")
	}
	panic(v)
}

// poll reads the remote job every pollInterval until it completes, errors, or
// pollMaxAttempts reads have been made.
func (o *Orchestrator) poll(ctx context.Context, log *logger.Logger, jobID string) (transcription.PollResult, error) {
	for attempt := 1; attempt <= o.pollMaxAttempts; attempt++ {
		res, err := o.chapterer.Poll(ctx, jobID)
		if err != nil {
			return transcription.PollResult{}, err
		}
		switch res.Status {
		case transcription.StatusCompleted:
			return res, nil
		case transcription.StatusError:
			return transcription.PollResult{}, fmt.Errorf("%w: %s", ErrRemoteFailed, res.Error)
		}

		log.WithField("remote_status", res.Status).WithField("attempt", attempt).Info("transcription pending")
		if attempt == o.pollMaxAttempts {
			break
		}
		if err := sleep(ctx, o.pollInterval); err != nil {
			return transcription.PollResult{}, err
		}
	}
	return transcription.PollResult{}, fmt.Errorf("%w after %d attempts", ErrPollTimeout, o.pollMaxAttempts)
}

// FormatChapters maps service chapters onto the chapter contract: the
// headline (or gist) becomes the name and millisecond offsets become seconds.
func FormatChapters(in []transcription.Chapter) []types.AudioChapter {
	out := make([]types.AudioChapter, 0, len(in))
	for _, c := range in {
		name := c.Headline
		if name == "" {
			name = c.Gist
		}
		ch := chapters.Normalize(map[string]any{
			"name":          name,
			"start_seconds": float64(c.Start) / 1000,
		})
		out = append(out, types.AudioChapter{
			Chapter:    ch,
			EndSeconds: float64(c.End) / 1000,
			Summary:    c.Summary,
		})
	}
	return out
}
