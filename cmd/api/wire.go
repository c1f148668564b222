package main

import (
	"fmt"

	"video-chapters-go/internal/chapters"
	"video-chapters-go/internal/config"
	"video-chapters-go/internal/extractor"
	"video-chapters-go/internal/jobstatus"
	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/queue"
	"video-chapters-go/internal/transcription"
	"video-chapters-go/internal/videosvc"
)

func openStore(cfg *config.Config) (*jobstatus.Store, error) {
	db, err := jobstatus.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	return jobstatus.NewStore(db), nil
}

func newVideoClient(cfg *config.Config, log *logger.Logger) *videosvc.Client {
	return videosvc.New(cfg.Transcript.BaseURL, cfg.HTTPTimeout, log)
}

func newRefiner(cfg *config.Config, log *logger.Logger) *chapters.Refiner {
	llm := extractor.NewChatClient(extractor.ChatConfig{
		URL:         cfg.LLM.GatewayURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.HTTPTimeout,
	}, log)
	return chapters.NewRefiner(extractor.NewGateway(llm), chapters.Options{
		MaxAttempts: cfg.Refinement.MaxAttempts,
		Policy: chapters.CountPolicy{
			PerThirtyMinutes: cfg.Refinement.ChaptersPer30Min,
			Floor:            cfg.Refinement.MinChapters,
		},
	}, log)
}

func newTranscriptionClient(cfg *config.Config, log *logger.Logger) *transcription.Client {
	return transcription.New(cfg.AssemblyAI.BaseURL, cfg.AssemblyAI.APIKey, cfg.HTTPTimeout, log)
}

func newQueue(cfg *config.Config, log *logger.Logger) (queue.Queue, error) {
	runner := queue.NewRunner(cfg.Queue.MaxAttempts, log)
	switch cfg.Queue.Backend {
	case "memory":
		return queue.NewMemoryQueue(256, cfg.Queue.Concurrency, runner, log), nil
	case "redis":
		return queue.NewRedisQueue(cfg.Queue.RedisAddr, cfg.Queue.RedisKey, cfg.Queue.Concurrency, runner, log)
	default:
		return nil, fmt.Errorf("unknown queue backend %q", cfg.Queue.Backend)
	}
}
