// Package extractor builds the chapter prompts and sends them to the LLM.
package extractor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"video-chapters-go/internal/types"
)

// Completer is the raw LLM call.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Gateway renders analysis, review and regeneration prompts and returns the
// LLM's raw reply.
type Gateway struct {
	llm Completer
}

func NewGateway(llm Completer) *Gateway {
	return &Gateway{llm: llm}
}

func (g *Gateway) Ask(ctx context.Context, kind types.PromptKind, in types.PromptInput) (string, error) {
	prompt, err := BuildPrompt(kind, in)
	if err != nil {
		return "", err
	}
	return g.llm.Complete(ctx, prompt)
}

// BuildPrompt renders the prompt text for kind.
func BuildPrompt(kind types.PromptKind, in types.PromptInput) (string, error) {
	switch kind {
	case types.PromptAnalysis:
		return analysisPrompt(in), nil
	case types.PromptReview:
		return reviewPrompt(in)
	case types.PromptRegeneration:
		return regenerationPrompt(in)
	default:
		return "", fmt.Errorf("unknown prompt kind %q", kind)
	}
}

const chapterShape = `Each chapter must be an object with:
- "name": a short, purely descriptive title
- "start_seconds": the "start" value of the first transcript line in that chapter
- "timestamp": the same position in mm:ss format`

func analysisPrompt(in types.PromptInput) string {
	return fmt.Sprintf(`You are given a full transcript of a video as a JSON array of objects
with "start" (seconds) and "text" fields, in the language of the video.
%s
Your job: split it into YouTube chapters.

%s

%s
The language of the output should match the language of the input.
Output JSON only, no commentary.

Here is the input json:
%s

The output should be a JSON array of chapter objects.
`, titleLine(in.VideoTitle), chapterShape, limitLine(in.MaxChapters), in.Transcript)
}

func reviewPrompt(in types.PromptInput) (string, error) {
	chapters, err := json.MarshalIndent(in.Chapters, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode chapters: %w", err)
	}
	return fmt.Sprintf(`You are reviewing YouTube chapters generated from a video transcript.
%s
Check that chapters follow the main themes of the video, start at real topic
changes, are neither too granular nor too coarse, and have clear names.

Respond with ONLY a JSON object of this shape:
{
  "review_status": "approved" or "needs_rework",
  "overall_quality": "excellent" | "good" | "fair" | "poor",
  "issues_found": [],
  "suggestions": {
    "general_feedback": "",
    "specific_improvements": [],
    "regeneration_guidance": ""
  },
  "recommended_chapter_count": null
}

GENERATED CHAPTERS:
%s

TRANSCRIPT:
%s
`, titleLine(in.VideoTitle), string(chapters), in.Transcript), nil
}

func regenerationPrompt(in types.PromptInput) (string, error) {
	chapters, err := json.MarshalIndent(in.Chapters, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode chapters: %w", err)
	}
	feedback := []byte("{}")
	if in.Review != nil {
		if feedback, err = json.MarshalIndent(in.Review, "", "  "); err != nil {
			return "", fmt.Errorf("encode review: %w", err)
		}
	}
	return fmt.Sprintf(`A reviewer rejected the previous YouTube chapters for this video.
%s
Regenerate the chapters, organised by theme, addressing every point in the
review feedback.

%s

%s
The language of the output should match the language of the input.
Output JSON only, no commentary.

PREVIOUS CHAPTERS:
%s

REVIEW FEEDBACK:
%s

TRANSCRIPT:
%s

The output should be a JSON array of chapter objects.
`, titleLine(in.VideoTitle), chapterShape, limitLine(in.MaxChapters), string(chapters), string(feedback), in.Transcript), nil
}

func titleLine(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return ""
	}
	return fmt.Sprintf("The video is titled %q.\n", title)
}

func limitLine(max int) string {
	if max <= 0 {
		return "Choose the number of chapters that best fits the content."
	}
	return fmt.Sprintf("Produce at most %d chapters.", max)
}
