package jobstatus

import (
	"context"
	"errors"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"video-chapters-go/internal/types"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return NewStore(db)
}

func TestOpen_UnsupportedURL(t *testing.T) {
	if _, err := Open("mysql://localhost/db"); err == nil {
		t.Fatal("expected error for mysql url")
	}
}

func TestOpen_SQLiteFile(t *testing.T) {
	db, err := Open("sqlite://" + t.TempDir() + "/jobs.db")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !db.Migrator().HasTable(&JobStatus{}) {
		t.Fatal("job_statuses table missing after Open")
	}
}

func TestCreate_QueuedRow(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	row, err := s.Create(ctx, "job-1", "vid-1")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !row.Queued() {
		t.Errorf("status = %q, want queued", row.Status)
	}
	if row.Message != "Job queued" {
		t.Errorf("message = %q", row.Message)
	}

	got, err := s.Get(ctx, "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.VideoID != "vid-1" {
		t.Errorf("video id = %q", got.VideoID)
	}
	if m, ok := got.DecodedData().(map[string]any); !ok || len(m) != 0 {
		t.Errorf("DecodedData = %#v, want empty object", got.DecodedData())
	}
}

func TestCreate_DuplicateTrackingID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "dup", "v"); err != nil {
		t.Fatalf("first Create: %v", err)
	}
	if _, err := s.Create(ctx, "dup", "v"); err == nil {
		t.Fatal("expected unique violation on second Create")
	}
}

func TestGet_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdate_ReplacesDataWholesale(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "job-2", "vid"); err != nil {
		t.Fatal(err)
	}

	if err := s.Update(ctx, "job-2", types.JobAudioDownloadCompleted, "done", map[string]any{"path": "/tmp/a.mp3", "size": 10}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if err := s.Update(ctx, "job-2", types.JobChapterGenerationProcessing, "Generating chapters from audio", nil); err != nil {
		t.Fatalf("Update: %v", err)
	}

	row, err := s.Get(ctx, "job-2")
	if err != nil {
		t.Fatal(err)
	}
	if !row.ChapterGenerationProcessing() {
		t.Errorf("status = %q", row.Status)
	}
	if m, ok := row.DecodedData().(map[string]any); !ok || len(m) != 0 {
		t.Errorf("data = %s, want cleared", string(row.Data))
	}
	if row.UpdatedAt.Before(row.CreatedAt) {
		t.Errorf("updated_at %v before created_at %v", row.UpdatedAt, row.CreatedAt)
	}
}

func TestUpdate_StoresStructuredData(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "job-3", "vid"); err != nil {
		t.Fatal(err)
	}
	payload := map[string]any{"chapters": []types.AudioChapter{
		{Chapter: types.Chapter{Name: "Intro", Timestamp: "00:00", StartSeconds: 0}, EndSeconds: 30, Summary: "hello"},
	}}
	if err := s.Update(ctx, "job-3", types.JobCompleted, "Chapter generation completed successfully", payload); err != nil {
		t.Fatalf("Update: %v", err)
	}

	row, err := s.Get(ctx, "job-3")
	if err != nil {
		t.Fatal(err)
	}
	view := row.View()
	if view.JobID != "job-3" || view.Status != types.JobCompleted {
		t.Errorf("view = %+v", view)
	}
	data, ok := view.Data.(map[string]any)
	if !ok {
		t.Fatalf("view data = %T", view.Data)
	}
	list, ok := data["chapters"].([]any)
	if !ok || len(list) != 1 {
		t.Fatalf("chapters = %#v", data["chapters"])
	}
	first := list[0].(map[string]any)
	if first["name"] != "Intro" || first["summary"] != "hello" {
		t.Errorf("chapter = %#v", first)
	}
}

func TestUpdate_UnknownJob(t *testing.T) {
	s := testStore(t)
	err := s.Update(context.Background(), "nope", types.JobFailed, "x", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdate_RejectsInvalidStatus(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	if _, err := s.Create(ctx, "job-4", "vid"); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, "job-4", types.JobState("archived"), "x", nil); err == nil {
		t.Fatal("expected error for invalid status")
	}
}

func TestByStatusAndForVideo(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.Create(ctx, id, "vid-"+id); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.Create(ctx, "a2", "vid-a"); err != nil {
		t.Fatal(err)
	}
	if err := s.Update(ctx, "b", types.JobFailed, "Download failed: boom", nil); err != nil {
		t.Fatal(err)
	}

	queued, err := s.ByStatus(ctx, types.JobQueued)
	if err != nil {
		t.Fatal(err)
	}
	if len(queued) != 3 {
		t.Errorf("queued = %d, want 3", len(queued))
	}
	failed, err := s.ByStatus(ctx, types.JobFailed)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].JobTrackingID != "b" || !failed[0].Failed() {
		t.Errorf("failed = %+v", failed)
	}

	runs, err := s.ForVideo(ctx, "vid-a")
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 2 {
		t.Errorf("runs for vid-a = %d, want 2", len(runs))
	}
}

func TestStale(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for _, id := range []string{"old", "fresh", "done"} {
		if _, err := s.Create(ctx, id, "vid"); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Update(ctx, "done", types.JobCompleted, "ok", nil); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := s.db.Model(&JobStatus{}).Where("job_tracking_id IN ?", []string{"old", "done"}).
		UpdateColumn("updated_at", past).Error; err != nil {
		t.Fatal(err)
	}

	rows, err := s.Stale(ctx, time.Now().Add(-time.Hour), types.JobQueued, types.JobProcessing)
	if err != nil {
		t.Fatalf("Stale: %v", err)
	}
	if len(rows) != 1 || rows[0].JobTrackingID != "old" {
		t.Errorf("stale = %+v", rows)
	}
}

func TestDecodedData_InvalidJSON(t *testing.T) {
	row := JobStatus{Data: []byte("{not json")}
	if m, ok := row.DecodedData().(map[string]any); !ok || len(m) != 0 {
		t.Errorf("DecodedData = %#v, want empty object", row.DecodedData())
	}
}

func TestFailIfStale(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for _, id := range []string{"idle", "moved"} {
		if _, err := s.Create(ctx, id, "vid"); err != nil {
			t.Fatal(err)
		}
		if err := s.Update(ctx, id, types.JobProcessing, "Downloading audio from video", nil); err != nil {
			t.Fatal(err)
		}
	}
	past := time.Now().Add(-2 * time.Hour)
	if err := s.db.Model(&JobStatus{}).Where("job_tracking_id IN ?", []string{"idle", "moved"}).
		UpdateColumn("updated_at", past).Error; err != nil {
		t.Fatal(err)
	}
	cutoff := time.Now().Add(-time.Hour)

	// A stage writes after the row was listed as stale.
	if err := s.Update(ctx, "moved", types.JobAudioDownloadCompleted, "Audio download completed successfully", map[string]any{"path": "/a"}); err != nil {
		t.Fatal(err)
	}

	changed, err := s.FailIfStale(ctx, "idle", types.JobProcessing, cutoff, "Job timed out")
	if err != nil || !changed {
		t.Fatalf("FailIfStale(idle) = %v, %v", changed, err)
	}
	changed, err = s.FailIfStale(ctx, "moved", types.JobProcessing, cutoff, "Job timed out")
	if err != nil || changed {
		t.Fatalf("FailIfStale(moved) = %v, %v", changed, err)
	}

	idle, _ := s.Get(ctx, "idle")
	if !idle.Failed() || idle.Message != "Job timed out" {
		t.Errorf("idle = %q %q", idle.Status, idle.Message)
	}
	moved, _ := s.Get(ctx, "moved")
	if !moved.AudioDownloadCompleted() {
		t.Errorf("moved status = %q, want audio_download_completed", moved.Status)
	}
}
