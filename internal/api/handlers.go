package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"video-chapters-go/internal/chapters"
	"video-chapters-go/internal/jobstatus"
	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/transcript"
)

const defaultLanguage = "en"

type handlers struct {
	deps Deps
	log  *logger.Logger
}

func respondError(c *gin.Context, status int, title string, err error) {
	body := gin.H{"error": title}
	if err != nil {
		body["message"] = err.Error()
	}
	c.JSON(status, body)
}

func videoParams(c *gin.Context) (videoID, language string) {
	videoID = strings.TrimSpace(c.Param("video_id"))
	language = c.Param("language")
	if language == "" {
		language = defaultLanguage
	}
	return videoID, language
}

func (h *handlers) up(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GET /videos/:video_id/transcript[/:language]
func (h *handlers) transcript(c *gin.Context) {
	videoID, language := videoParams(c)
	if videoID == "" {
		respondError(c, http.StatusBadRequest, "video_id is required", nil)
		return
	}

	data, err := h.deps.Transcripts.FetchTranscript(c.Request.Context(), videoID, language)
	if err != nil {
		h.log.WithError(err).WithField("video_id", videoID).Error("error fetching transcript")
		respondError(c, http.StatusInternalServerError, "Failed to fetch transcript", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"video_id":   videoID,
		"language":   language,
		"transcript": data,
	})
}

// GET /videos/:video_id/chapters[/:language]
func (h *handlers) chapters(c *gin.Context) {
	videoID, language := videoParams(c)
	if videoID == "" {
		respondError(c, http.StatusBadRequest, "video_id is required", nil)
		return
	}
	ctx := c.Request.Context()

	raw, err := h.deps.Transcripts.FetchTranscript(ctx, videoID, language)
	if err != nil {
		h.log.WithError(err).WithField("video_id", videoID).Error("error generating chapters")
		respondError(c, http.StatusInternalServerError, "Failed to generate chapters", err)
		return
	}

	res, err := h.deps.Refiner.Refine(ctx, transcript.Filter(raw), transcript.Title(raw))
	if err != nil {
		if errors.Is(err, chapters.ErrDecode) {
			h.log.WithError(err).WithField("video_id", videoID).Error("error parsing LLM response")
			respondError(c, http.StatusInternalServerError, "Failed to parse chapters response", err)
			return
		}
		h.log.WithError(err).WithField("video_id", videoID).Error("error generating chapters")
		respondError(c, http.StatusInternalServerError, "Failed to generate chapters", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"video_id": videoID,
		"language": language,
		"chapters": res.Chapters,
		"review":   res.Review,
	})
}

type enqueueRequest struct {
	VideoID string `json:"video_id" form:"video_id"`
}

// POST /videos/download-audio
func (h *handlers) enqueueDownload(c *gin.Context) {
	var req enqueueRequest
	_ = c.ShouldBind(&req)
	if req.VideoID == "" {
		req.VideoID = c.Query("video_id")
	}
	req.VideoID = strings.TrimSpace(req.VideoID)
	if req.VideoID == "" {
		respondError(c, http.StatusBadRequest, "video_id is required", nil)
		return
	}

	row, err := h.deps.Jobs.Submit(c.Request.Context(), req.VideoID)
	if err != nil {
		h.log.WithError(err).WithField("video_id", req.VideoID).Error("failed to enqueue audio download")
		respondError(c, http.StatusInternalServerError, "Failed to enqueue audio download", err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":   row.JobTrackingID,
		"video_id": row.VideoID,
		"status":   row.Status,
		"message":  row.Message,
	})
}

// GET /videos/download-audio/:job_id/status
func (h *handlers) downloadStatus(c *gin.Context) {
	row, err := h.deps.Statuses.Get(c.Request.Context(), c.Param("job_id"))
	if errors.Is(err, jobstatus.ErrNotFound) {
		respondError(c, http.StatusNotFound, "Job not found", nil)
		return
	}
	if err != nil {
		h.log.WithError(err).Error("failed to load job status")
		respondError(c, http.StatusInternalServerError, "Failed to load job status", err)
		return
	}
	c.JSON(http.StatusOK, row.View())
}
