package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	domain "github.com/aurahealth/screening-core/internal/domain/batch"
)

type JobRepository struct {
	db   *sql.DB
	once sync.Once
}

func NewJobRepository(db *sql.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) ensure(ctx context.Context) error {
	var err error
	r.once.Do(func() { err = EnsureSchema(ctx, r.db) })
	return err
}

// Save inserts or updates a job record
func (r *JobRepository) Save(ctx context.Context, job *domain.Job) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	const q = `
INSERT INTO analysis_jobs
(id, batch_id, clinic_id, status, total_images, processed_count, success_count, failed_count,
 image_ids, created_at, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO UPDATE SET
 status=EXCLUDED.status,
 processed_count=EXCLUDED.processed_count, success_count=EXCLUDED.success_count, failed_count=EXCLUDED.failed_count,
 started_at=EXCLUDED.started_at, completed_at=EXCLUDED.completed_at;
`
	ids, err := json.Marshal(job.ImageIDs)
	if err != nil {
		return err
	}
	created := job.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err = r.db.ExecContext(ctx, q,
		job.ID, stringOrDash(job.BatchID), stringOrDash(job.ClinicID), stringOrDash(string(job.Status)),
		job.TotalImages, job.ProcessedCount, job.SuccessCount, job.FailedCount,
		ids, created, nullTime(job.StartedAt), nullTime(job.CompletedAt),
	)
	return err
}

const jobColumns = `id, batch_id, clinic_id, status, total_images, processed_count, success_count, failed_count,
       image_ids, created_at, started_at, completed_at`

// Get by ID. Missing schema reads as missing job.
func (r *JobRepository) Get(ctx context.Context, id domain.JobID) (*domain.Job, error) {
	const q = `
SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE id=$1 LIMIT 1;
`
	job, err := scanJob(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if isMissingTable(err) {
			return nil, sql.ErrNoRows
		}
		return nil, err
	}
	return job, nil
}

// Latest jobs per clinic, most recent first
func (r *JobRepository) Latest(ctx context.Context, clinic string, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT ` + jobColumns + `
FROM analysis_jobs
WHERE clinic_id=$1 ORDER BY created_at DESC, id DESC LIMIT $2;
`
	rows, err := r.db.QueryContext(ctx, q, clinic, limit)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

// MarkProcessing transitions the job out of queued
func (r *JobRepository) MarkProcessing(ctx context.Context, id domain.JobID, startedAt time.Time) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	const q = `UPDATE analysis_jobs SET status=$1, started_at=$2 WHERE id=$3;`
	_, err := r.db.ExecContext(ctx, q, domain.StatusProcessing, startedAt, id)
	return err
}

// UpdateProgress overwrites the three counters
func (r *JobRepository) UpdateProgress(ctx context.Context, id domain.JobID, processed, success, failed int) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	const q = `
UPDATE analysis_jobs
SET processed_count=$1, success_count=$2, failed_count=$3
WHERE id=$4;`
	_, err := r.db.ExecContext(ctx, q, processed, success, failed, id)
	return err
}

// MarkCompleted writes the terminal status
func (r *JobRepository) MarkCompleted(ctx context.Context, id domain.JobID, status domain.Status, completedAt time.Time) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	const q = `UPDATE analysis_jobs SET status=$1, completed_at=$2 WHERE id=$3;`
	_, err := r.db.ExecContext(ctx, q, status, completedAt, id)
	return err
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var j domain.Job
	var ids []byte
	var started, completed sql.NullTime
	if err := row.Scan(
		&j.ID, &j.BatchID, &j.ClinicID, &j.Status,
		&j.TotalImages, &j.ProcessedCount, &j.SuccessCount, &j.FailedCount,
		&ids, &j.CreatedAt, &started, &completed,
	); err != nil {
		return nil, err
	}
	if len(ids) > 0 {
		if err := json.Unmarshal(ids, &j.ImageIDs); err != nil {
			return nil, err
		}
	}
	if started.Valid {
		j.StartedAt = &started.Time
	}
	if completed.Valid {
		j.CompletedAt = &completed.Time
	}
	return &j, nil
}
