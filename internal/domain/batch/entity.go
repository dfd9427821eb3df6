package batch

import "time"

// JobID identifier type
type JobID string

// Status enum
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Aggregate Root: Job tracks one batch of images end-to-end.
// Counters are mutated only by worker completions; success+failed == processed
// holds at every observation.
type Job struct {
	ID             JobID      `json:"id"`
	BatchID        string     `json:"batch_id"`
	ClinicID       string     `json:"clinic_id"`
	Status         Status     `json:"status"`
	TotalImages    int        `json:"total_images"`
	ProcessedCount int        `json:"processed_count"`
	SuccessCount   int        `json:"success_count"`
	FailedCount    int        `json:"failed_count"`
	ImageIDs       []string   `json:"image_ids"`
	CreatedAt      time.Time  `json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// JobError is a persisted per-image failure inside a batch, kept for audit.
type JobError struct {
	ID        int64     `json:"id"`
	ClinicID  string    `json:"clinic_id"`
	JobID     string    `json:"job_id"`
	ImageID   string    `json:"image_id,omitempty"`
	Phase     string    `json:"phase,omitempty"` // analyze | persist | other
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}
