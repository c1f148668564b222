package chapters

import (
	"errors"
	"testing"

	"video-chapters-go/internal/types"
)

func TestStripFence(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"plain", `  [1]  `, `[1]`},
		{"json fence", "```json\n[1]\n```", `[1]`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"fence without newline", "```json[2]```", `[2]`},
		{"surrounding whitespace", "\n\n```json\n[3]\n```\n", `[3]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFence(tt.in); got != tt.want {
				t.Errorf("StripFence() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseChapters(t *testing.T) {
	text := "```json\n" + `[
  {"name": "Intro", "timestamp": "00:10", "start_seconds": 0},
  {"name": "undefined", "timestamp": "00:00", "start_seconds": 305},
  {"name": "Wrap up", "start_seconds": 61.4}
]` + "\n```"
	got, err := ParseChapters(text)
	if err != nil {
		t.Fatalf("ParseChapters: %v", err)
	}
	want := []types.Chapter{
		{Name: "Intro", Timestamp: "00:00", StartSeconds: 0},
		{Name: UntitledChapter, Timestamp: "05:05", StartSeconds: 305},
		{Name: "Wrap up", Timestamp: "01:01", StartSeconds: 61.4},
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chapter[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestParseChapters_PreservesInputOrder(t *testing.T) {
	got, err := ParseChapters(`[{"name":"late","start_seconds":300},{"name":"early","start_seconds":10}]`)
	if err != nil {
		t.Fatalf("ParseChapters: %v", err)
	}
	if got[0].Name != "late" || got[1].Name != "early" {
		t.Errorf("order changed: %+v", got)
	}
}

func TestParseChapters_WrappedObject(t *testing.T) {
	got, err := ParseChapters(`{"chapters":[{"name":"A","start_seconds":1}]}`)
	if err != nil {
		t.Fatalf("ParseChapters: %v", err)
	}
	if len(got) != 1 || got[0].Name != "A" {
		t.Errorf("got %+v", got)
	}
}

func TestParseChapters_DecodeErrors(t *testing.T) {
	for _, in := range []string{
		"not json at all",
		"```json\n[{\"name\": \n```",
		`{"name":"single object"}`,
		`["just a string"]`,
	} {
		_, err := ParseChapters(in)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("ParseChapters(%q) error = %v, want ErrDecode", in, err)
		}
	}
}

func TestParseReview(t *testing.T) {
	text := "```json\n" + `{
  "review_status": "needs_rework",
  "overall_quality": "fair",
  "issues_found": ["too granular"],
  "suggestions": {
    "general_feedback": "merge short chapters",
    "specific_improvements": ["combine 2 and 3"],
    "regeneration_guidance": "aim for themes"
  },
  "recommended_chapter_count": 5
}` + "\n```"
	review, err := ParseReview(text)
	if err != nil {
		t.Fatalf("ParseReview: %v", err)
	}
	if review.ReviewStatus != types.ReviewNeedsRework || review.OverallQuality != "fair" {
		t.Errorf("review = %+v", review)
	}
	if len(review.IssuesFound) != 1 || review.Suggestions.RegenerationGuidance != "aim for themes" {
		t.Errorf("review = %+v", review)
	}
	if review.RecommendedChapterCount == nil || *review.RecommendedChapterCount != 5 {
		t.Errorf("RecommendedChapterCount = %v, want 5", review.RecommendedChapterCount)
	}
}

func TestParseReview_NullCountAndMissingLists(t *testing.T) {
	review, err := ParseReview(`{"review_status":"approved","recommended_chapter_count":null}`)
	if err != nil {
		t.Fatalf("ParseReview: %v", err)
	}
	if review.RecommendedChapterCount != nil {
		t.Errorf("RecommendedChapterCount = %v, want nil", *review.RecommendedChapterCount)
	}
	if review.IssuesFound == nil || review.Suggestions.SpecificImprovements == nil {
		t.Error("list fields should be non-nil")
	}
	if !review.Approved() {
		t.Error("expected approved")
	}
}

func TestParseReview_DecodeError(t *testing.T) {
	if _, err := ParseReview("[1,2"); !errors.Is(err, ErrDecode) {
		t.Errorf("error = %v, want ErrDecode", err)
	}
}

func TestParseReview_LooseSideFields(t *testing.T) {
	text := `{"review_status":"needs_rework","overall_quality":6,"issues_found":[{"issue":"too many"},"short intro"],"suggestions":{"general_feedback":null,"specific_improvements":"merge 2 and 3","regeneration_guidance":"fewer"},"recommended_chapter_count":null}`
	review, err := ParseReview(text)
	if err != nil {
		t.Fatalf("ParseReview: %v", err)
	}
	if review.ReviewStatus != types.ReviewNeedsRework {
		t.Errorf("ReviewStatus = %q", review.ReviewStatus)
	}
	if review.OverallQuality != "6" {
		t.Errorf("OverallQuality = %q, want 6", review.OverallQuality)
	}
	want := []string{`{"issue":"too many"}`, "short intro"}
	if len(review.IssuesFound) != 2 || review.IssuesFound[0] != want[0] || review.IssuesFound[1] != want[1] {
		t.Errorf("IssuesFound = %q, want %q", review.IssuesFound, want)
	}
	if s := review.Suggestions.SpecificImprovements; len(s) != 1 || s[0] != "merge 2 and 3" {
		t.Errorf("SpecificImprovements = %q", s)
	}
	if review.Suggestions.GeneralFeedback != "" || review.Suggestions.RegenerationGuidance != "fewer" {
		t.Errorf("Suggestions = %+v", review.Suggestions)
	}
}

func TestParseReview_NonObject(t *testing.T) {
	for _, in := range []string{`[1,2]`, `"approved"`, `null`} {
		if _, err := ParseReview(in); !errors.Is(err, ErrDecode) {
			t.Errorf("ParseReview(%q) error = %v, want ErrDecode", in, err)
		}
	}
}
