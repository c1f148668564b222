package chapters

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"

	"video-chapters-go/internal/types"
)

const UntitledChapter = "Untitled Chapter"

var timestampPattern = regexp.MustCompile(`^\d{2}:\d{2}$`)

// Normalize repairs a loosely structured chapter candidate into a valid
// Chapter. Any supplied timestamp is discarded and recomputed from
// start_seconds. Negative or unrepresentable offsets reset to 00:00.
func Normalize(candidate map[string]any) types.Chapter {
	ch := types.Chapter{Name: UntitledChapter}

	if name, ok := candidate["name"].(string); ok && name != "" && name != "undefined" {
		ch.Name = name
	}
	if start, ok := asNumber(candidate["start_seconds"]); ok {
		ch.StartSeconds = start
	}

	ch.Timestamp = FormatTimestamp(ch.StartSeconds)
	if ch.StartSeconds < 0 || !timestampPattern.MatchString(ch.Timestamp) {
		ch.Timestamp = "00:00"
		ch.StartSeconds = 0
	}
	return ch
}

// NormalizeChapter re-applies Normalize to an already typed chapter.
func NormalizeChapter(ch types.Chapter) types.Chapter {
	return Normalize(Candidate(ch))
}

// Candidate converts a chapter back to the untyped shape Normalize accepts.
func Candidate(ch types.Chapter) map[string]any {
	return map[string]any{
		"name":          ch.Name,
		"timestamp":     ch.Timestamp,
		"start_seconds": ch.StartSeconds,
	}
}

// FormatTimestamp renders whole seconds as mm:ss. Non-finite input yields an
// empty string, which never matches the timestamp pattern.
func FormatTimestamp(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || math.Abs(seconds) > 1e12 {
		return ""
	}
	whole := math.Trunc(seconds)
	minutes := int64(math.Floor(whole / 60))
	remaining := int64(whole) - minutes*60
	return fmt.Sprintf("%02d:%02d", minutes, remaining)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
