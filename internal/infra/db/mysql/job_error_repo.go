package mysql

import (
	"context"
	"database/sql"
	"sync"
	"time"

	domain "github.com/aurahealth/screening-core/internal/domain/batch"
)

type JobErrorRepository struct {
	db   *sql.DB
	once sync.Once
}

func NewJobErrorRepository(db *sql.DB) *JobErrorRepository {
	return &JobErrorRepository{db: db}
}

func (r *JobErrorRepository) ensure(ctx context.Context) error {
	var err error
	r.once.Do(func() { err = EnsureSchema(ctx, r.db) })
	return err
}

// Save inserts one per-image failure entry
func (r *JobErrorRepository) Save(ctx context.Context, e *domain.JobError) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	const q = `
INSERT INTO job_errors (clinic_id, job_id, image_id, phase, message, created_at)
VALUES (?,?,?,?,?,?);
`
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		stringOrDash(e.ClinicID), stringOrDash(e.JobID), e.ImageID, e.Phase, e.Message, created,
	)
	return err
}

// ListByJob returns failures for one job, oldest first
func (r *JobErrorRepository) ListByJob(ctx context.Context, clinic string, jobID string, limit int) ([]*domain.JobError, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, clinic_id, job_id, image_id, phase, message, created_at
FROM job_errors
WHERE clinic_id=? AND job_id=?
ORDER BY id ASC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, clinic, jobID, limit)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var out []*domain.JobError
	for rows.Next() {
		var e domain.JobError
		var imageID, phase sql.NullString
		if err := rows.Scan(&e.ID, &e.ClinicID, &e.JobID, &imageID, &phase, &e.Message, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.ImageID = imageID.String
		e.Phase = phase.String
		out = append(out, &e)
	}
	return out, rows.Err()
}
