package pipeline

import (
	"context"
	"testing"
	"time"

	"video-chapters-go/internal/jobstatus"
	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/queue"
	"video-chapters-go/internal/transcription"
)

func TestPipeline_EndToEndOnMemoryQueue(t *testing.T) {
	db, err := jobstatus.Open("sqlite://" + t.TempDir() + "/jobs.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store := jobstatus.NewStore(db)

	q := queue.NewMemoryQueue(8, 1, queue.NewRunner(1, logger.Nop()), logger.Nop())
	chapterer := &fakeChapterer{polls: []transcription.PollResult{
		{Status: transcription.StatusProcessing},
		{Status: transcription.StatusCompleted, Chapters: []transcription.Chapter{{Headline: "Opening", Start: 0, End: 42000}}},
	}}
	orch := New(store, &fakeDownloader{payload: map[string]any{"path": "/tmp/a.mp3"}}, chapterer, q, Options{
		PollInterval: time.Millisecond,
		ReadAudio:    func(string) ([]byte, error) { return []byte("audio"), nil },
	}, logger.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = q.Run(ctx, orch.Handle) }()

	row, err := orch.Submit(ctx, "vid-42")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		got, err := store.Get(ctx, row.JobTrackingID)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.Completed() {
			data := got.DecodedData().(map[string]any)
			list := data["chapters"].([]any)
			first := list[0].(map[string]any)
			if first["name"] != "Opening" || first["timestamp"] != "00:00" {
				t.Errorf("chapter = %#v", first)
			}
			return
		}
		if got.Failed() {
			t.Fatalf("job failed: %s", got.Message)
		}
		if time.Now().After(deadline) {
			t.Fatalf("job stuck in %q", got.Status)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
