// Package transcription is the client for the AssemblyAI-style audio
// transcription service used to chapter downloaded audio.
package transcription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"video-chapters-go/internal/httpx"
	"video-chapters-go/internal/logger"
)

// Remote job statuses.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusError      = "error"
)

// Chapter is an auto-chapter as reported by the service; times are in
// milliseconds.
type Chapter struct {
	Gist     string `json:"gist"`
	Headline string `json:"headline"`
	Summary  string `json:"summary"`
	Start    int64  `json:"start"`
	End      int64  `json:"end"`
}

// PollResult is one status read of a transcription job.
type PollResult struct {
	ID       string    `json:"id"`
	Status   string    `json:"status"`
	Chapters []Chapter `json:"chapters"`
	Error    string    `json:"error"`
}

type Client struct {
	baseURL string
	apiKey  string
	http    *httpx.Client
	log     *logger.Logger
}

func New(baseURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpx.New("assemblyai", timeout),
		log:     log.Component("transcription"),
	}
}

// Upload sends raw audio bytes and returns the service-side upload URL.
func (c *Client) Upload(ctx context.Context, audio []byte) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("ASSEMBLYAI_API_KEY not set")
	}
	var resp struct {
		UploadURL string `json:"upload_url"`
	}
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/upload", bytes.NewReader(audio))
		if err != nil {
			return nil, err
		}
		req.Header.Set("authorization", c.apiKey)
		req.Header.Set("content-type", "application/octet-stream")
		return req, nil
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("audio upload failed: %w", err)
	}
	if resp.UploadURL == "" {
		return "", errors.New("audio upload failed: response carried no upload_url")
	}
	c.log.WithField("bytes", len(audio)).Info("audio uploaded")
	return resp.UploadURL, nil
}

// StartJob requests a transcription with auto chapters for an uploaded file.
func (c *Client) StartJob(ctx context.Context, uploadURL string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"audio_url":     uploadURL,
		"auto_chapters": true,
	})
	if err != nil {
		return "", err
	}
	var resp PollResult
	err = c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v2/transcript", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("authorization", c.apiKey)
		req.Header.Set("content-type", "application/json")
		return req, nil
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("transcription request failed: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("transcription request failed: response carried no id")
	}
	c.log.WithField("transcript_id", resp.ID).Info("transcription job started")
	return resp.ID, nil
}

// Poll reads the current state of a transcription job once.
func (c *Client) Poll(ctx context.Context, jobID string) (PollResult, error) {
	endpoint := c.baseURL + "/v2/transcript/" + url.PathEscape(jobID)
	var resp PollResult
	err := c.http.DoJSON(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("authorization", c.apiKey)
		return req, nil
	}, &resp)
	if err != nil {
		return PollResult{}, fmt.Errorf("transcription poll failed: %w", err)
	}
	return resp, nil
}
