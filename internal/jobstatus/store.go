// Package jobstatus persists pipeline job status rows keyed by job tracking id.
package jobstatus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"video-chapters-go/internal/types"
)

// ErrNotFound is returned for an unknown job tracking id.
var ErrNotFound = errors.New("job status not found")

// Open connects to sqlite:// or postgres:// databases and migrates the
// job_statuses table.
func Open(databaseURL string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(databaseURL, "sqlite://"):
		dialector = sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://"))
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		dialector = postgres.Open(databaseURL)
	default:
		return nil, fmt.Errorf("jobstatus: unsupported database url %q", databaseURL)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("jobstatus: connect: %w", err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates the job_statuses table.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&JobStatus{}); err != nil {
		return fmt.Errorf("jobstatus: auto-migrate: %w", err)
	}
	return nil
}

type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create inserts a queued row for a freshly enqueued job.
func (s *Store) Create(ctx context.Context, trackingID, videoID string) (*JobStatus, error) {
	if trackingID == "" {
		return nil, errors.New("jobstatus: tracking id is required")
	}
	row := &JobStatus{
		JobTrackingID: trackingID,
		VideoID:       videoID,
		Status:        string(types.JobQueued),
		Message:       "Job queued",
		Data:          emptyData,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, fmt.Errorf("jobstatus: create %s: %w", trackingID, err)
	}
	return row, nil
}

// Get loads the row for trackingID.
func (s *Store) Get(ctx context.Context, trackingID string) (*JobStatus, error) {
	var row JobStatus
	err := s.db.WithContext(ctx).Where("job_tracking_id = ?", trackingID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, trackingID)
	}
	if err != nil {
		return nil, fmt.Errorf("jobstatus: get %s: %w", trackingID, err)
	}
	return &row, nil
}

// Update replaces status, message and data in a single statement. A nil
// data clears the payload; payloads are never merged.
func (s *Store) Update(ctx context.Context, trackingID string, status types.JobState, message string, data any) error {
	if !status.Valid() {
		return fmt.Errorf("jobstatus: invalid status %q", status)
	}
	encoded, err := encodeData(data)
	if err != nil {
		return fmt.Errorf("jobstatus: encode data for %s: %w", trackingID, err)
	}

	result := s.db.WithContext(ctx).
		Model(&JobStatus{}).
		Where("job_tracking_id = ?", trackingID).
		Updates(map[string]any{
			"status":     string(status),
			"message":    message,
			"data":       encoded,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("jobstatus: update %s: %w", trackingID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, trackingID)
	}
	return nil
}

// emptyData is stored instead of SQL NULL so the column always scans as JSON.
var emptyData = datatypes.JSON("null")

func encodeData(data any) (datatypes.JSON, error) {
	if data == nil {
		return emptyData, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// ByStatus lists rows in the given status, newest first.
func (s *Store) ByStatus(ctx context.Context, status types.JobState) ([]JobStatus, error) {
	var rows []JobStatus
	if err := s.db.WithContext(ctx).Where("status = ?", string(status)).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("jobstatus: list by status %s: %w", status, err)
	}
	return rows, nil
}

// Stale lists rows in any of states whose last update is older than cutoff.
func (s *Store) Stale(ctx context.Context, cutoff time.Time, states ...types.JobState) ([]JobStatus, error) {
	names := make([]string, 0, len(states))
	for _, st := range states {
		names = append(names, string(st))
	}
	var rows []JobStatus
	err := s.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", names, cutoff).
		Order("updated_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("jobstatus: list stale: %w", err)
	}
	return rows, nil
}

// FailIfStale marks trackingID failed only while it is still in status and
// untouched since cutoff. It reports whether the row was changed.
func (s *Store) FailIfStale(ctx context.Context, trackingID string, status types.JobState, cutoff time.Time, message string) (bool, error) {
	result := s.db.WithContext(ctx).
		Model(&JobStatus{}).
		Where("job_tracking_id = ? AND status = ? AND updated_at < ?", trackingID, string(status), cutoff).
		Updates(map[string]any{
			"status":     string(types.JobFailed),
			"message":    message,
			"data":       emptyData,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("jobstatus: fail stale %s: %w", trackingID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// ForVideo lists every run recorded for videoID, newest first.
func (s *Store) ForVideo(ctx context.Context, videoID string) ([]JobStatus, error) {
	var rows []JobStatus
	if err := s.db.WithContext(ctx).Where("video_id = ?", videoID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("jobstatus: list for video %s: %w", videoID, err)
	}
	return rows, nil
}
