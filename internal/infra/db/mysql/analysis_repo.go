package mysql

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	domain "github.com/aurahealth/screening-core/internal/domain/analysis"
)

type AnalysisRepository struct {
	db   *sql.DB
	once sync.Once
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) ensure(ctx context.Context) error {
	var err error
	r.once.Do(func() { err = EnsureSchema(ctx, r.db) })
	return err
}

// Save insert/update analysis record
func (r *AnalysisRepository) Save(ctx context.Context, rec *domain.Record) error {
	if err := r.ensure(ctx); err != nil {
		return err
	}
	const q = `
INSERT INTO analysis_records
(id, clinic_id, image_id, status, risk_level, risk_score, confidence,
 recommendations, raw_result, error_message, started_at, completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
 status=VALUES(status),
 risk_level=VALUES(risk_level), risk_score=VALUES(risk_score), confidence=VALUES(confidence),
 recommendations=VALUES(recommendations), raw_result=VALUES(raw_result),
 error_message=VALUES(error_message), completed_at=VALUES(completed_at);
`
	started := rec.StartedAt
	if started.IsZero() {
		started = time.Now()
	}
	_, err := r.db.ExecContext(ctx, q,
		rec.ID, stringOrDash(rec.ClinicID), stringOrDash(rec.ImageID), stringOrDash(string(rec.Status)),
		string(rec.RiskLevel), rec.RiskScore, rec.Confidence,
		rec.Recommendations, rec.RawResult, rec.ErrorMessage,
		started, nullTime(rec.CompletedAt),
	)
	return err
}

const recordColumns = `id, clinic_id, image_id, status, risk_level, risk_score, confidence,
       recommendations, raw_result, error_message, started_at, completed_at`

// Get by ID + clinic; unauthorized reads look like missing records.
func (r *AnalysisRepository) Get(ctx context.Context, clinic string, id domain.AnalysisID) (*domain.Record, error) {
	const q = `
SELECT ` + recordColumns + `
FROM analysis_records
WHERE clinic_id=? AND id=? LIMIT 1;
`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, clinic, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// FindActive returns the processing/completed record for (clinic, image), or
// nil when none exists. Backs the idempotent dedup check.
func (r *AnalysisRepository) FindActive(ctx context.Context, clinic string, imageID string) (*domain.Record, error) {
	const q = `
SELECT ` + recordColumns + `
FROM analysis_records
WHERE clinic_id=? AND image_id=? AND status IN ('processing','completed')
ORDER BY started_at DESC LIMIT 1;
`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, clinic, imageID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isMissingTable(err) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}

// Latest records per clinic, most recent first
func (r *AnalysisRepository) Latest(ctx context.Context, clinic string, limit int) ([]*domain.Record, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT ` + recordColumns + `
FROM analysis_records
WHERE clinic_id=? ORDER BY started_at DESC, id DESC LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, clinic, limit)
	if err != nil {
		if isMissingTable(err) {
			return nil, nil
		}
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var recommendations, rawResult, errMsg sql.NullString
	var completed sql.NullTime
	if err := row.Scan(
		&rec.ID, &rec.ClinicID, &rec.ImageID, &rec.Status,
		&rec.RiskLevel, &rec.RiskScore, &rec.Confidence,
		&recommendations, &rawResult, &errMsg,
		&rec.StartedAt, &completed,
	); err != nil {
		return nil, err
	}
	rec.Recommendations = recommendations.String
	rec.RawResult = rawResult.String
	rec.ErrorMessage = errMsg.String
	if completed.Valid {
		rec.CompletedAt = &completed.Time
	}
	return &rec, nil
}
