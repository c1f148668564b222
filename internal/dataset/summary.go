package dataset

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/types"
)

// BatchResult is the outcome of refining chapters for one input row.
type BatchResult struct {
	Video    VideoRow
	Chapters []types.Chapter
	Review   types.ReviewResult
	Attempts int
	Err      error
}

type Summary struct {
	TotalVideos      int     `json:"total_videos"`
	Approved         int     `json:"approved"`
	NeedsRework      int     `json:"needs_rework"`
	Failed           int     `json:"failed"`
	TotalChapters    int     `json:"total_chapters"`
	AvgChapters      float64 `json:"avg_chapters"`
	AvgAttempts      float64 `json:"avg_attempts"`
	FallbackChapters int     `json:"fallback_chapters"`
}

const (
	chaptersSheet = "Chapters"
	summarySheet  = "Summary"
)

func Summarize(results []BatchResult) Summary {
	s := Summary{TotalVideos: len(results)}
	attempts := 0
	succeeded := 0
	for _, r := range results {
		if r.Err != nil {
			s.Failed++
			continue
		}
		succeeded++
		attempts += r.Attempts
		s.TotalChapters += len(r.Chapters)
		if r.Review.Approved() {
			s.Approved++
		} else {
			s.NeedsRework++
		}
		if len(r.Chapters) == 1 && r.Chapters[0].Name == types.FallbackChapterName && r.Chapters[0].StartSeconds == 0 {
			s.FallbackChapters++
		}
	}
	if succeeded > 0 {
		s.AvgChapters = float64(s.TotalChapters) / float64(succeeded)
		s.AvgAttempts = float64(attempts) / float64(succeeded)
	}
	return s
}

// WriteReport writes a workbook with one row per chapter and a summary
// sheet, returning the summary it wrote.
func WriteReport(path string, results []BatchResult, log *logger.Logger) (Summary, error) {
	if log == nil {
		log = logger.Nop()
	}
	log = log.Component("dataset.report")

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", chaptersSheet); err != nil {
		return Summary{}, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return Summary{}, fmt.Errorf("add sheet: %w", err)
	}

	header := []any{"Video ID", "Language", "Title", "#", "Timestamp", "Start Seconds", "Chapter", "Review Status", "Quality", "Error"}
	if err := f.SetSheetRow(chaptersSheet, "A1", &header); err != nil {
		return Summary{}, fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, r := range results {
		if r.Err != nil {
			line := []any{r.Video.VideoID, r.Video.Language, r.Video.Title, "", "", "", "", "", "", r.Err.Error()}
			if err := writeRow(f, row, line); err != nil {
				return Summary{}, err
			}
			row++
			continue
		}
		for i, ch := range r.Chapters {
			line := []any{r.Video.VideoID, r.Video.Language, r.Video.Title, i + 1, ch.Timestamp, ch.StartSeconds, ch.Name, r.Review.ReviewStatus, r.Review.OverallQuality, ""}
			if err := writeRow(f, row, line); err != nil {
				return Summary{}, err
			}
			row++
		}
	}

	s := Summarize(results)
	stats := [][]any{
		{"Metric", "Value"},
		{"Total videos", s.TotalVideos},
		{"Approved", s.Approved},
		{"Needs rework", s.NeedsRework},
		{"Failed", s.Failed},
		{"Total chapters", s.TotalChapters},
		{"Average chapters", s.AvgChapters},
		{"Average attempts", s.AvgAttempts},
		{"Fallback chapters", s.FallbackChapters},
	}
	for i, line := range stats {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return Summary{}, err
		}
		if err := f.SetSheetRow(summarySheet, cell, &line); err != nil {
			return Summary{}, fmt.Errorf("write summary: %w", err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		log.WithError(err).Error("save failed")
		return Summary{}, fmt.Errorf("save %s: %w", path, err)
	}
	log.WithField("path", path).
		WithField("videos", s.TotalVideos).
		WithField("chapters", s.TotalChapters).
		Info("report written")
	return s, nil
}

func writeRow(f *excelize.File, row int, line []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(chaptersSheet, cell, &line); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
