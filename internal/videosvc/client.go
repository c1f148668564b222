// Package videosvc calls the transcript service, which serves video
// transcripts and downloads video audio to local storage.
package videosvc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"video-chapters-go/internal/httpx"
	"video-chapters-go/internal/logger"
)

type Client struct {
	baseURL string
	http    *httpx.Client
	log     *logger.Logger
}

// New builds a client; timeout should be generous since audio downloads
// block until the file is on disk.
func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpx.New("transcript-service", timeout),
		log:     log.Component("videosvc"),
	}
}

// FetchTranscript returns the decoded transcript payload for videoID. The
// shape is whatever the service sends: a sequence, a mapping, or the raw
// body as a string when it is not JSON.
func (c *Client) FetchTranscript(ctx context.Context, videoID, language string) (any, error) {
	if language == "" {
		language = "en"
	}
	endpoint := c.baseURL + "/videos/transcript/" + url.PathEscape(videoID) + "/" + url.PathEscape(language)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return decodeLoose(body), nil
}

// DownloadAudio asks the service to download the audio track of videoID and
// returns its response payload (usually a mapping carrying "path").
func (c *Client) DownloadAudio(ctx context.Context, videoID string) (any, error) {
	endpoint := c.baseURL + "/videos/download-audio/" + url.PathEscape(videoID)
	body, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return decodeLoose(body), nil
}

func (c *Client) get(ctx context.Context, endpoint string) ([]byte, error) {
	c.log.WithField("url", endpoint).Debug("calling transcript service")
	return c.http.Do(ctx, func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
}

func decodeLoose(body []byte) any {
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

// AudioPath extracts the usable resource path from a DownloadAudio payload.
func AudioPath(payload any) (string, bool) {
	m, ok := payload.(map[string]any)
	if !ok {
		return "", false
	}
	path, ok := m["path"].(string)
	if !ok || strings.TrimSpace(path) == "" {
		return "", false
	}
	return path, true
}
