package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// undefinedTable is SQLSTATE 42P01; reads hitting it are treated as "no rows
// yet" so the engine works before its first write creates the schema.
const undefinedTable = "42P01"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS analysis_jobs (
  id              VARCHAR(64)  NOT NULL PRIMARY KEY,
  batch_id        VARCHAR(64)  NOT NULL,
  clinic_id       VARCHAR(64)  NOT NULL,
  status          VARCHAR(16)  NOT NULL,
  total_images    INT          NOT NULL DEFAULT 0,
  processed_count INT          NOT NULL DEFAULT 0,
  success_count   INT          NOT NULL DEFAULT 0,
  failed_count    INT          NOT NULL DEFAULT 0,
  image_ids       JSONB        NOT NULL,
  created_at      TIMESTAMPTZ  NOT NULL,
  started_at      TIMESTAMPTZ  NULL,
  completed_at    TIMESTAMPTZ  NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_clinic_created ON analysis_jobs (clinic_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS analysis_records (
  id              VARCHAR(64)  NOT NULL PRIMARY KEY,
  clinic_id       VARCHAR(64)  NOT NULL,
  image_id        VARCHAR(128) NOT NULL,
  status          VARCHAR(16)  NOT NULL,
  risk_level      VARCHAR(16)  NOT NULL DEFAULT '',
  risk_score      DOUBLE PRECISION NOT NULL DEFAULT 0,
  confidence      DOUBLE PRECISION NOT NULL DEFAULT 0,
  recommendations TEXT         NULL,
  raw_result      TEXT         NULL,
  error_message   TEXT         NULL,
  started_at      TIMESTAMPTZ  NOT NULL,
  completed_at    TIMESTAMPTZ  NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_records_clinic_image ON analysis_records (clinic_id, image_id)`,
	`CREATE INDEX IF NOT EXISTS idx_records_clinic_started ON analysis_records (clinic_id, started_at)`,
	`CREATE TABLE IF NOT EXISTS credit_accounts (
  id                VARCHAR(64) NOT NULL PRIMARY KEY,
  clinic_id         VARCHAR(64) NOT NULL,
  remaining_credits INT         NOT NULL DEFAULT 0,
  is_active         BOOLEAN     NOT NULL DEFAULT TRUE,
  expires_at        TIMESTAMPTZ NULL,
  purchased_at      TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_credits_clinic ON credit_accounts (clinic_id, is_active)`,
	`CREATE TABLE IF NOT EXISTS job_errors (
  id         BIGSERIAL    PRIMARY KEY,
  clinic_id  VARCHAR(64)  NOT NULL,
  job_id     VARCHAR(64)  NOT NULL,
  image_id   VARCHAR(128) NULL,
  phase      VARCHAR(32)  NULL,
  message    TEXT         NOT NULL,
  created_at TIMESTAMPTZ  NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_job_errors_job ON job_errors (clinic_id, job_id)`,
	`CREATE TABLE IF NOT EXISTS analysis_summaries (
  id          VARCHAR(64) NOT NULL PRIMARY KEY,
  clinic_id   VARCHAR(64) NOT NULL,
  analysis_id VARCHAR(64) NOT NULL,
  narrative   TEXT        NOT NULL,
  model       VARCHAR(64) NULL,
  created_at  TIMESTAMPTZ NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS idx_summaries_analysis ON analysis_summaries (clinic_id, analysis_id)`,
}

// EnsureSchema creates all tables when absent. main runs it once at startup;
// repos also call it lazily before their first write.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// isMissingTable reports whether err is undefined_table.
func isMissingTable(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && string(pe.Code) == undefinedTable
}
