package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// CreditRepository implements the credits.Ledger port on Postgres. The
// deduction is one conditional UPDATE whose predicate re-checks active/expiry/
// balance at write time, so two callers racing against a balance of exactly
// amount produce exactly one success. No external locking.
type CreditRepository struct {
	db *sql.DB
}

func NewCreditRepository(db *sql.DB) *CreditRepository {
	return &CreditRepository{db: db}
}

// CheckAndDeduct picks the best-matching account and atomically deducts from
// it. Candidate order: accounts without an expiry first, then soonest-expiring,
// then most-recently-purchased.
func (r *CreditRepository) CheckAndDeduct(ctx context.Context, clinic string, amount int) (bool, error) {
	if amount <= 0 {
		return false, fmt.Errorf("invalid deduction amount: %d", amount)
	}
	now := time.Now()

	const selectQ = `
SELECT id FROM credit_accounts
WHERE clinic_id=$1 AND is_active AND remaining_credits>=$2
  AND (expires_at IS NULL OR expires_at > $3)
ORDER BY (expires_at IS NULL) DESC, expires_at ASC, purchased_at DESC;
`
	rows, err := r.db.QueryContext(ctx, selectQ, clinic, amount, now)
	if err != nil {
		if isMissingTable(err) {
			// No schema means no credits yet.
			return false, nil
		}
		return false, err
	}
	var candidates []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return false, err
		}
		candidates = append(candidates, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return false, err
	}

	// Postgres SET clauses see the pre-update row, so the deactivation test
	// subtracts the amount itself.
	const deductQ = `
UPDATE credit_accounts
SET remaining_credits = remaining_credits - $1,
    is_active = (remaining_credits - $1 > 0)
WHERE id=$2 AND is_active AND remaining_credits>=$3
  AND (expires_at IS NULL OR expires_at > $4);
`
	for _, id := range candidates {
		res, err := r.db.ExecContext(ctx, deductQ, amount, id, amount, now)
		if err != nil {
			return false, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return false, err
		}
		if n == 1 {
			return true, nil
		}
		// Lost the race on this account; try the next candidate.
	}
	return false, nil
}

// Balance sums usable credits across the clinic's accounts.
func (r *CreditRepository) Balance(ctx context.Context, clinic string) (int, error) {
	const q = `
SELECT COALESCE(SUM(remaining_credits),0)
FROM credit_accounts
WHERE clinic_id=$1 AND is_active
  AND (expires_at IS NULL OR expires_at > $2);
`
	var total int
	if err := r.db.QueryRowContext(ctx, q, clinic, time.Now()).Scan(&total); err != nil {
		if isMissingTable(err) {
			return 0, nil
		}
		return 0, err
	}
	return total, nil
}
