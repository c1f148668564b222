package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"video-chapters-go/internal/chapters"
	"video-chapters-go/internal/config"
	"video-chapters-go/internal/dataset"
	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/transcript"
)

type transcriptFetcher interface {
	FetchTranscript(ctx context.Context, videoID, language string) (any, error)
}

type chapterRefiner interface {
	Refine(ctx context.Context, filtered any, videoTitle string) (chapters.Result, error)
}

func newBatchCmd() *cobra.Command {
	var (
		in          string
		out         string
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Generate chapters for every video listed in a workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, in, out, concurrency)
		},
	}

	cmd.Flags().StringVar(&in, "in", "videos.xlsx", "input workbook with a video id column")
	cmd.Flags().StringVar(&out, "out", "chapters.xlsx", "output report workbook")
	cmd.Flags().IntVar(&concurrency, "concurrency", 2, "videos processed in parallel")
	return cmd
}

func runBatch(cmd *cobra.Command, in, out string, concurrency int) error {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	rows, err := dataset.LoadVideos(in)
	if err != nil {
		return fmt.Errorf("load %s: %w", in, err)
	}
	log.WithField("videos", len(rows)).WithField("path", in).Info("batch loaded")

	results := processVideos(cmd.Context(), rows, newVideoClient(cfg, log), newRefiner(cfg, log), concurrency, log)

	summary, err := dataset.WriteReport(out, results, log)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d videos: %d approved, %d needs rework, %d failed, %d chapters -> %s\n",
		summary.TotalVideos, summary.Approved, summary.NeedsRework, summary.Failed, summary.TotalChapters, out)
	return nil
}

// processVideos runs the refinement loop per row. Row failures are recorded
// in the result, never returned.
func processVideos(ctx context.Context, rows []dataset.VideoRow, fetcher transcriptFetcher, refiner chapterRefiner, concurrency int, log *logger.Logger) []dataset.BatchResult {
	if concurrency < 1 {
		concurrency = 1
	}
	results := make([]dataset.BatchResult, len(rows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, row := range rows {
		g.Go(func() error {
			res := dataset.BatchResult{Video: row}
			defer func() { results[i] = res }()

			raw, err := fetcher.FetchTranscript(gctx, row.VideoID, row.Language)
			if err != nil {
				res.Err = err
				log.WithError(err).WithField("video_id", row.VideoID).Warn("transcript fetch failed")
				return nil
			}
			title := row.Title
			if t := transcript.Title(raw); t != "" {
				title = t
			}
			out, err := refiner.Refine(gctx, transcript.Filter(raw), title)
			if err != nil {
				res.Err = err
				log.WithError(err).WithField("video_id", row.VideoID).Warn("chapter generation failed")
				return nil
			}
			res.Chapters = out.Chapters
			res.Review = out.Review
			res.Attempts = out.Attempts
			return nil
		})
	}
	_ = g.Wait()
	return results
}
