package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"video-chapters-go/internal/chapters"
	"video-chapters-go/internal/dataset"
	"video-chapters-go/internal/jobstatus"
	"video-chapters-go/internal/logger"
	"video-chapters-go/internal/types"
)

func TestVersionCmd(t *testing.T) {
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"version"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if out := buf.String(); !strings.Contains(out, "api dev") || !strings.Contains(out, "commit: none") {
		t.Errorf("unexpected version output: %s", out)
	}
}

func TestRootCmdHasSubcommands(t *testing.T) {
	cmd := newRootCmd()
	want := map[string]bool{"version": false, "serve": false, "batch": false, "status": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func seedStatusDB(t *testing.T) string {
	t.Helper()
	url := "sqlite://" + t.TempDir() + "/jobs.db"
	db, err := jobstatus.Open(url)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	store := jobstatus.NewStore(db)
	ctx := context.Background()
	for _, id := range []string{"job-1", "job-2"} {
		if _, err := store.Create(ctx, id, "vid-9"); err != nil {
			t.Fatal(err)
		}
	}
	if err := store.Update(ctx, "job-2", types.JobFailed, "Download failed: boom", nil); err != nil {
		t.Fatal(err)
	}
	sqlDB, _ := db.DB()
	_ = sqlDB.Close()

	t.Setenv("DATABASE_URL", url)
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("QUEUE_BACKEND", "memory")
	return url
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestStatusCmd_ByJobID(t *testing.T) {
	seedStatusDB(t)
	out, err := runCmd(t, "status", "job-1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var view types.JobStatusView
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if view.JobID != "job-1" || view.Status != types.JobQueued {
		t.Errorf("view = %+v", view)
	}
}

func TestStatusCmd_Lists(t *testing.T) {
	seedStatusDB(t)

	out, err := runCmd(t, "status", "--video", "vid-9")
	if err != nil {
		t.Fatalf("status --video: %v", err)
	}
	var views []types.JobStatusView
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 {
		t.Errorf("views = %d, want 2", len(views))
	}

	out, err = runCmd(t, "status", "--state", "failed")
	if err != nil {
		t.Fatalf("status --state: %v", err)
	}
	views = nil
	if err := json.Unmarshal([]byte(out), &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 1 || views[0].JobID != "job-2" {
		t.Errorf("views = %+v", views)
	}
}

func TestStatusCmd_Errors(t *testing.T) {
	seedStatusDB(t)
	if _, err := runCmd(t, "status"); err == nil {
		t.Error("expected error without selector")
	}
	if _, err := runCmd(t, "status", "--state", "archived"); err == nil {
		t.Error("expected error for unknown state")
	}
	if _, err := runCmd(t, "status", "missing"); !errors.Is(err, jobstatus.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

type stubFetcher struct{}

func (stubFetcher) FetchTranscript(ctx context.Context, videoID, language string) (any, error) {
	if videoID == "broken" {
		return nil, errors.New("HTTP Error: 404")
	}
	return map[string]any{"title": "From service", "segments": []any{}}, nil
}

type stubRefiner struct{ titles chan string }

func (s stubRefiner) Refine(ctx context.Context, filtered any, title string) (chapters.Result, error) {
	s.titles <- title
	return chapters.Result{Chapters: chapters.FallbackChapters(), Review: chapters.FallbackReview(), Attempts: 1}, nil
}

func TestProcessVideos(t *testing.T) {
	rows := []dataset.VideoRow{
		{VideoID: "ok", Language: "en", Title: "From sheet"},
		{VideoID: "broken", Language: "en"},
	}
	ref := stubRefiner{titles: make(chan string, 2)}
	results := processVideos(context.Background(), rows, stubFetcher{}, ref, 2, logger.Nop())

	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Err != nil || len(results[0].Chapters) != 1 || results[0].Video.VideoID != "ok" {
		t.Errorf("first = %+v", results[0])
	}
	if results[1].Err == nil {
		t.Error("expected fetch error recorded for broken video")
	}
	if got := <-ref.titles; got != "From service" {
		t.Errorf("title = %q, want transcript title to win", got)
	}
}
