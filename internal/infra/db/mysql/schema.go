package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// erNoSuchTable is MySQL error 1146; reads hitting it are treated as "no rows
// yet" so the engine works before its first write creates the schema.
const erNoSuchTable = 1146

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
  image_ids       JSON         NOT NULL,
  created_at      DATETIME(3)  NOT NULL,
  started_at      DATETIME(3)  NULL,
  completed_at    DATETIME(3)  NULL,
  KEY idx_jobs_clinic_created (clinic_id, created_at)
)`,
	`CREATE TABLE IF NOT EXISTS analysis_records (
  id              VARCHAR(64)  NOT NULL PRIMARY KEY,
  clinic_id       VARCHAR(64)  NOT NULL,
  image_id        VARCHAR(128) NOT NULL,
  status          VARCHAR(16)  NOT NULL,
  risk_level      VARCHAR(16)  NOT NULL DEFAULT '',
  risk_score      DOUBLE       NOT NULL DEFAULT 0,
  confidence      DOUBLE       NOT NULL DEFAULT 0,
  recommendations TEXT         NULL,
  raw_result      MEDIUMTEXT   NULL,
  error_message   TEXT         NULL,
  started_at      DATETIME(3)  NOT NULL,
  completed_at    DATETIME(3)  NULL,
  KEY idx_records_clinic_image (clinic_id, image_id),
  KEY idx_records_clinic_started (clinic_id, started_at)
)`,
	`CREATE TABLE IF NOT EXISTS credit_accounts (
  id                VARCHAR(64) NOT NULL PRIMARY KEY,
  clinic_id         VARCHAR(64) NOT NULL,
  remaining_credits INT         NOT NULL DEFAULT 0,
  is_active         TINYINT(1)  NOT NULL DEFAULT 1,
  expires_at        DATETIME(3) NULL,
  purchased_at      DATETIME(3) NOT NULL,
  KEY idx_credits_clinic (clinic_id, is_active)
)`,
	`CREATE TABLE IF NOT EXISTS job_errors (
  id         BIGINT       NOT NULL AUTO_INCREMENT PRIMARY KEY,
  clinic_id  VARCHAR(64)  NOT NULL,
  job_id     VARCHAR(64)  NOT NULL,
  image_id   VARCHAR(128) NULL,
  phase      VARCHAR(32)  NULL,
  message    TEXT         NOT NULL,
  created_at DATETIME(3)  NOT NULL,
  KEY idx_job_errors_job (clinic_id, job_id)
)`,
	`CREATE TABLE IF NOT EXISTS analysis_summaries (
  id          VARCHAR(64) NOT NULL PRIMARY KEY,
  clinic_id   VARCHAR(64) NOT NULL,
  analysis_id VARCHAR(64) NOT NULL,
  narrative   MEDIUMTEXT  NOT NULL,
  model       VARCHAR(64) NULL,
  created_at  DATETIME(3) NOT NULL,
  KEY idx_summaries_analysis (clinic_id, analysis_id)
)`,
}

// EnsureSchema creates all tables when absent. main runs it once at startup;
// repos also call it lazily before their first write so a fresh database never
// rejects the first batch.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// isMissingTable reports whether err is ER_NO_SUCH_TABLE.
func isMissingTable(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == erNoSuchTable
}
