package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	domain "github.com/aurahealth/screening-core/internal/domain/ai"
)

type SummaryRepository struct {
	db   *sql.DB
	once sync.Once
}

func NewSummaryRepository(db *sql.DB) *SummaryRepository {
	return &SummaryRepository{db: db}
}

func (r *SummaryRepository) ensure(ctx context.Context) error {
	var err error
	r.once.Do(func() { err = EnsureSchema(ctx, r.db) })
	return err
}

// Save inserts a generated narrative
func (r *SummaryRepository) Save(ctx context.Context, s *domain.Summary) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	const q = `
INSERT INTO analysis_summaries (id, clinic_id, analysis_id, narrative, model, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET narrative=EXCLUDED.narrative, model=EXCLUDED.model;
`
	created := s.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		s.ID, stringOrDash(s.ClinicID), stringOrDash(s.AnalysisID), s.Narrative, s.Model, created,
	)
	return err
}

// LatestByAnalysis returns the newest summary for one analysis, or nil.
func (r *SummaryRepository) LatestByAnalysis(ctx context.Context, clinic string, analysisID string) (*domain.Summary, error) {
	const q = `
SELECT id, clinic_id, analysis_id, narrative, model, created_at
FROM analysis_summaries
WHERE clinic_id=$1 AND analysis_id=$2
ORDER BY created_at DESC LIMIT 1;
`
	var s domain.Summary
	var model sql.NullString
	err := r.db.QueryRowContext(ctx, q, clinic, analysisID).Scan(
		&s.ID, &s.ClinicID, &s.AnalysisID, &s.Narrative, &model, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
			return nil, nil
		}
		return nil, err
	}
	s.Model = model.String
	return &s, nil
}

// Paginate returns a page of summaries ordered by created_at desc
func (r *SummaryRepository) Paginate(ctx context.Context, clinic string, page, pageSize int) ([]*domain.Summary, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, clinic_id, analysis_id, narrative, model, created_at
FROM analysis_summaries
WHERE clinic_id=$1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3;
`
	rows, err := r.db.QueryContext(ctx, q, clinic, pageSize, offset)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Summary
	for rows.Next() {
		var s domain.Summary
		var model sql.NullString
		if err := rows.Scan(&s.ID, &s.ClinicID, &s.AnalysisID, &s.Narrative, &model, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Model = model.String
		out = append(out, &s)
	}
	return out, rows.Err()
}
