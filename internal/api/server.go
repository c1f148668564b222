// Package api exposes the chapter service over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"video-chapters-go/internal/chapters"
	"video-chapters-go/internal/jobstatus"
	"video-chapters-go/internal/logger"
)

type TranscriptSource interface {
	FetchTranscript(ctx context.Context, videoID, language string) (any, error)
}

type ChapterRefiner interface {
	Refine(ctx context.Context, filtered any, videoTitle string) (chapters.Result, error)
}

type JobSubmitter interface {
	Submit(ctx context.Context, videoID string) (*jobstatus.JobStatus, error)
}

type StatusReader interface {
	Get(ctx context.Context, trackingID string) (*jobstatus.JobStatus, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	Transcripts TranscriptSource
	Refiner     ChapterRefiner
	Jobs        JobSubmitter
	Statuses    StatusReader
	Log         *logger.Logger
	// AllowedOrigins restricts CORS; empty allows any origin.
	AllowedOrigins []string
}

func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(d.Log), corsMiddleware(d.AllowedOrigins))

	h := &handlers{deps: d, log: d.Log.Component("api")}

	router.GET("/up", h.up)

	videos := router.Group("/videos")
	videos.GET("/:video_id/transcript", h.transcript)
	videos.GET("/:video_id/transcript/:language", h.transcript)
	videos.GET("/:video_id/chapters", h.chapters)
	videos.GET("/:video_id/chapters/:language", h.chapters)
	videos.POST("/download-audio", h.enqueueDownload)
	videos.GET("/download-audio/:job_id/status", h.downloadStatus)

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}

// requestLogger logs one line per request with its outcome.
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		entry := log.WithRequest(c.Request)
		c.Next()
		entry = entry.WithField("status", c.Writer.Status()).
			WithField("duration_ms", time.Since(start).Milliseconds())
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Info("request handled")
	}
}

// Serve runs the HTTP server until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, port int, handler http.Handler, log *logger.Logger) error {
	if port <= 0 {
		port = 8080
	}
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.WithField("addr", addr).Info("listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api: %w", err)
	}
	return nil
}
