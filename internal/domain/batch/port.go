package batch

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyBatch rejects QueueBatch calls with no images.
var ErrEmptyBatch = errors.New("batch contains no images")

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, job *Job) error
	Get(ctx context.Context, id JobID) (*Job, error)
	Latest(ctx context.Context, clinic string, limit int) ([]*Job, error)
	MarkProcessing(ctx context.Context, id JobID, startedAt time.Time) error
	// UpdateProgress overwrites the three counters; callers serialize updates
	// per job so the row never goes backwards.
	UpdateProgress(ctx context.Context, id JobID, processed, success, failed int) error
	MarkCompleted(ctx context.Context, id JobID, status Status, completedAt time.Time) error
}

// ErrorRepository persists per-image failures for later inspection
type ErrorRepository interface {
	Save(ctx context.Context, e *JobError) error
	ListByJob(ctx context.Context, clinic string, jobID string, limit int) ([]*JobError, error)
}
