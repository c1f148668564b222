package types

import "time"

// JobState is the closed set of pipeline statuses persisted per job tracking id.
type JobState string

const (
	JobQueued                      JobState = "queued"
	JobProcessing                  JobState = "processing"
	JobAudioDownloadCompleted      JobState = "audio_download_completed"
	JobChapterGenerationProcessing JobState = "chapter_generation_processing"
	JobCompleted                   JobState = "completed"
	JobFailed                      JobState = "failed"
)

// AllJobStates lists every valid status in pipeline order.
var AllJobStates = []JobState{
	JobQueued,
	JobProcessing,
	JobAudioDownloadCompleted,
	JobChapterGenerationProcessing,
	JobCompleted,
	JobFailed,
}

// Valid reports whether s is one of the known statuses.
func (s JobState) Valid() bool {
	for _, v := range AllJobStates {
		if s == v {
			return true
		}
	}
	return false
}

// CanTransition enforces the pipeline state machine edges. Same-state writes
// are allowed so a redelivered stage can re-announce itself, and failed rows
// may re-enter either stage when the scheduler retries. A queued job whose
// task was lost may be failed directly.
func CanTransition(from, to JobState) bool {
	if from == to {
		return from != JobCompleted
	}
	switch from {
	case JobQueued:
		return to == JobProcessing || to == JobFailed
	case JobProcessing:
		return to == JobAudioDownloadCompleted || to == JobFailed
	case JobAudioDownloadCompleted:
		return to == JobChapterGenerationProcessing || to == JobFailed
	case JobChapterGenerationProcessing:
		return to == JobCompleted || to == JobFailed
	case JobFailed:
		return to == JobProcessing || to == JobChapterGenerationProcessing
	default:
		return false
	}
}

// TranscriptSegment is one timed line of a video transcript.
type TranscriptSegment struct {
	Start    float64  `json:"start"`
	Duration *float64 `json:"duration,omitempty"`
	Text     string   `json:"text"`
}

// Chapter is a navigable entry point into a video. Timestamp is always
// derived from StartSeconds.
type Chapter struct {
	Name         string  `json:"name"`
	Timestamp    string  `json:"timestamp"`
	StartSeconds float64 `json:"start_seconds"`
}

// AudioChapter is a chapter produced by the audio-chaptering service.
type AudioChapter struct {
	Chapter
	EndSeconds float64 `json:"end_seconds"`
	Summary    string  `json:"summary"`
}

const (
	ReviewApproved      = "approved"
	ReviewNeedsRework   = "needs_rework"
	FallbackChapterName = "Introduction"
)

type ReviewSuggestions struct {
	GeneralFeedback      string   `json:"general_feedback"`
	SpecificImprovements []string `json:"specific_improvements"`
	RegenerationGuidance string   `json:"regeneration_guidance"`
}

// ReviewResult is the reviewer's verdict on a chapter list.
type ReviewResult struct {
	ReviewStatus            string            `json:"review_status"`
	OverallQuality          string            `json:"overall_quality"`
	IssuesFound             []string          `json:"issues_found"`
	Suggestions             ReviewSuggestions `json:"suggestions"`
	RecommendedChapterCount *int              `json:"recommended_chapter_count"`
}

// PromptKind selects which prompt the LLM gateway sends.
type PromptKind string

const (
	PromptAnalysis     PromptKind = "analysis"
	PromptReview       PromptKind = "review"
	PromptRegeneration PromptKind = "regeneration"
)

// PromptInput carries everything a prompt template may reference.
// Transcript is the JSON-encoded filtered transcript.
type PromptInput struct {
	Transcript  string
	VideoTitle  string
	Chapters    []Chapter
	Review      *ReviewResult
	MaxChapters int
}

// Approved reports whether the reviewer accepted the chapters.
func (r ReviewResult) Approved() bool { return r.ReviewStatus == ReviewApproved }

// JobStatusView is the client-facing rendering of a persisted job row.
type JobStatusView struct {
	JobID     string    `json:"job_id"`
	VideoID   string    `json:"video_id"`
	Status    JobState  `json:"status"`
	Message   string    `json:"message"`
	Data      any       `json:"data"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// AudioDownloadTask is the argument record of pipeline Stage 1.
type AudioDownloadTask struct {
	VideoID       string `json:"video_id"`
	JobTrackingID string `json:"job_tracking_id"`
}

// ChapterGenerationTask is the argument record of pipeline Stage 2, emitted
// by Stage 1 once the downloaded audio has a usable path.
type ChapterGenerationTask struct {
	VideoID       string `json:"video_id"`
	JobTrackingID string `json:"job_tracking_id"`
	AudioPath     string `json:"audio_path"`
}
