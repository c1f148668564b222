package chapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"video-chapters-go/internal/types"
)

// ErrDecode marks LLM output that could not be decoded after fence stripping.
var ErrDecode = errors.New("decode llm response")

// StripFence removes a surrounding ``` or ```json code fence.
func StripFence(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// ParseChapters decodes an LLM chapter list and normalizes each element.
// A top-level object with a "chapters" array is accepted as well.
func ParseChapters(text string) ([]types.Chapter, error) {
	var raw any
	if err := json.Unmarshal([]byte(StripFence(text)), &raw); err != nil {
		return nil, fmt.Errorf("%w: chapters: %v", ErrDecode, err)
	}
	if obj, ok := raw.(map[string]any); ok {
		if list, ok := obj["chapters"]; ok {
			raw = list
		}
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: chapters: expected a JSON array, got %T", ErrDecode, raw)
	}

	out := make([]types.Chapter, 0, len(list))
	for i, item := range list {
		candidate, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: chapters[%d]: expected an object, got %T", ErrDecode, i, item)
		}
		out = append(out, Normalize(candidate))
	}
	return out, nil
}

// ParseReview decodes a reviewer verdict. Only a body that is not a JSON
// object fails; side fields of an unexpected type are rendered as text.
func ParseReview(text string) (types.ReviewResult, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(StripFence(text)), &raw); err != nil {
		return types.ReviewResult{}, fmt.Errorf("%w: review: %v", ErrDecode, err)
	}
	if raw == nil {
		return types.ReviewResult{}, fmt.Errorf("%w: review: expected a JSON object", ErrDecode)
	}

	suggestions, _ := raw["suggestions"].(map[string]any)
	review := types.ReviewResult{
		ReviewStatus:   textOf(raw["review_status"]),
		OverallQuality: textOf(raw["overall_quality"]),
		IssuesFound:    listOf(raw["issues_found"]),
		Suggestions: types.ReviewSuggestions{
			GeneralFeedback:      textOf(suggestions["general_feedback"]),
			SpecificImprovements: listOf(suggestions["specific_improvements"]),
			RegenerationGuidance: textOf(suggestions["regeneration_guidance"]),
		},
	}
	if s, ok := raw["suggestions"].(string); ok && suggestions == nil {
		review.Suggestions.GeneralFeedback = s
	}
	if n, ok := asNumber(raw["recommended_chapter_count"]); ok && n >= 1 && !math.IsInf(n, 0) {
		count := int(math.Round(n))
		review.RecommendedChapterCount = &count
	}
	return review, nil
}

// textOf renders a loosely typed JSON value as text. Strings pass through,
// null is empty and anything else is re-encoded.
func textOf(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

// listOf renders a JSON array element-wise; a lone value becomes a single item.
func listOf(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, textOf(item))
		}
		return out
	}
	return []string{textOf(v)}
}
