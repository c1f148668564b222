// Package chapters turns LLM output into validated chapters and runs the
// bounded generate/review/regenerate refinement loop.
package chapters

import (
	"context"
	"encoding/json"
	"fmt"

	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/transcript"
	"video-chapters-go/internal/types"
)

// Gateway sends one prompt of the given kind to the LLM and returns the raw
// response text.
type Gateway interface {
	Ask(ctx context.Context, kind types.PromptKind, in types.PromptInput) (string, error)
}

type Options struct {
	// MaxAttempts is the review bound A; values below 1 are treated as 1.
	MaxAttempts int
	Policy      CountPolicy
}

// Result is the outcome of one refinement run.
type Result struct {
	Chapters []types.Chapter    `json:"chapters"`
	Review   types.ReviewResult `json:"review"`
	Attempts int                `json:"attempts"`
}

type Refiner struct {
	gateway     Gateway
	maxAttempts int
	policy      CountPolicy
	log         *logger.Logger
}

func NewRefiner(gw Gateway, opts Options, log *logger.Logger) *Refiner {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Policy == (CountPolicy{}) {
		opts.Policy = DefaultCountPolicy
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Refiner{
		gateway:     gw,
		maxAttempts: opts.MaxAttempts,
		policy:      opts.Policy,
		log:         log.Component("chapters.refiner"),
	}
}

// FallbackChapters is substituted when initial generation fails.
func FallbackChapters() []types.Chapter {
	return []types.Chapter{{Name: types.FallbackChapterName, Timestamp: "00:00", StartSeconds: 0}}
}

// FallbackReview is substituted when the reviewer cannot be reached or
// returns something undecodable.
func FallbackReview() types.ReviewResult {
	return types.ReviewResult{
		ReviewStatus:   types.ReviewApproved,
		OverallQuality: "good",
		IssuesFound:    []string{},
		Suggestions: types.ReviewSuggestions{
			GeneralFeedback:      "Review system unavailable",
			SpecificImprovements: []string{},
			RegenerationGuidance: "",
		},
	}
}

// Refine generates chapters for a filtered transcript and iterates review and
// regeneration until the reviewer approves or the attempt bound is reached.
// Gateway and decode failures inside each step are recovered; only context
// cancellation or an unencodable transcript abort the run.
func (r *Refiner) Refine(ctx context.Context, filtered any, videoTitle string) (Result, error) {
	encoded, err := json.Marshal(filtered)
	if err != nil {
		return Result{}, fmt.Errorf("encode transcript: %w", err)
	}
	in := types.PromptInput{
		Transcript:  string(encoded),
		VideoTitle:  videoTitle,
		MaxChapters: r.policy.Limit(transcript.EstimateDuration(filtered)),
	}

	chapters := r.generate(ctx, in)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		in.Chapters = chapters
		review := r.review(ctx, in, attempt)

		if review.Approved() || attempt >= r.maxAttempts {
			r.log.WithField("attempts", attempt).
				WithField("review_status", review.ReviewStatus).
				WithField("chapters", len(chapters)).
				Info("chapters finalized")
			return Result{Chapters: chapters, Review: review, Attempts: attempt}, nil
		}

		regen := in
		regen.Review = &review
		if rec := review.RecommendedChapterCount; rec != nil && *rec > 0 {
			regen.MaxChapters = *rec
		}
		r.log.WithField("attempt", attempt+1).
			WithField("max_attempts", r.maxAttempts).
			Info("regenerating chapters from review feedback")
		if next, ok := r.regenerate(ctx, regen); ok {
			chapters = next
		}
	}
}

func (r *Refiner) generate(ctx context.Context, in types.PromptInput) []types.Chapter {
	text, err := r.gateway.Ask(ctx, types.PromptAnalysis, in)
	if err != nil {
		r.log.WithError(err).Error("chapter generation failed, using fallback chapter")
		return FallbackChapters()
	}
	chapters, err := ParseChapters(text)
	if err != nil || len(chapters) == 0 {
		r.log.WithError(err).Error("chapter generation returned no usable chapters, using fallback chapter")
		return FallbackChapters()
	}
	return chapters
}

func (r *Refiner) review(ctx context.Context, in types.PromptInput, attempt int) types.ReviewResult {
	text, err := r.gateway.Ask(ctx, types.PromptReview, in)
	if err == nil {
		var review types.ReviewResult
		if review, err = ParseReview(text); err == nil {
			return review
		}
	}
	r.log.WithError(err).WithField("attempt", attempt).Error("chapter review failed, treating chapters as approved")
	return FallbackReview()
}

func (r *Refiner) regenerate(ctx context.Context, in types.PromptInput) ([]types.Chapter, bool) {
	text, err := r.gateway.Ask(ctx, types.PromptRegeneration, in)
	if err != nil {
		r.log.WithError(err).Error("chapter regeneration failed, keeping previous chapters")
		return nil, false
	}
	chapters, err := ParseChapters(text)
	if err != nil || len(chapters) == 0 {
		r.log.WithError(err).Error("chapter regeneration returned no usable chapters, keeping previous chapters")
		return nil, false
	}
	return chapters, true
}
