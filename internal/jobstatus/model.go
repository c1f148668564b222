package jobstatus

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"

	"video-chapters-go/internal/types"
)

// JobStatus is the durable record of one pipeline run.
type JobStatus struct {
	ID            uint           `gorm:"primaryKey;autoIncrement"`
	JobTrackingID string         `gorm:"size:64;not null;uniqueIndex"`
	VideoID       string         `gorm:"size:64;index"`
	Status        string         `gorm:"size:40;not null;index"`
	Message       string         `gorm:"type:text"`
	Data          datatypes.JSON `gorm:"column:data"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (JobStatus) TableName() string { return "job_statuses" }

func (j *JobStatus) State() types.JobState { return types.JobState(j.Status) }

func (j *JobStatus) Queued() bool     { return j.State() == types.JobQueued }
func (j *JobStatus) Processing() bool { return j.State() == types.JobProcessing }
func (j *JobStatus) Completed() bool  { return j.State() == types.JobCompleted }
func (j *JobStatus) Failed() bool     { return j.State() == types.JobFailed }
func (j *JobStatus) AudioDownloadCompleted() bool {
	return j.State() == types.JobAudioDownloadCompleted
}
func (j *JobStatus) ChapterGenerationProcessing() bool {
	return j.State() == types.JobChapterGenerationProcessing
}

// DecodedData returns the stage payload, or an empty object when the column
// is empty or not valid JSON.
func (j *JobStatus) DecodedData() any {
	if len(j.Data) == 0 {
		return map[string]any{}
	}
	var v any
	if err := json.Unmarshal(j.Data, &v); err != nil || v == nil {
		return map[string]any{}
	}
	return v
}

// View renders the row for API clients.
func (j *JobStatus) View() types.JobStatusView {
	return types.JobStatusView{
		JobID:     j.JobTrackingID,
		VideoID:   j.VideoID,
		Status:    j.State(),
		Message:   j.Message,
		Data:      j.DecodedData(),
		CreatedAt: j.CreatedAt,
		UpdatedAt: j.UpdatedAt,
	}
}
