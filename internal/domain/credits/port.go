package credits

import (
	"context"
	"errors"
)

// ErrInsufficientCredits surfaces synchronously when no account can fund a deduction.
var ErrInsufficientCredits = errors.New("insufficient credits")

// Ledger port. CheckAndDeduct must be atomic: two callers racing against a
// balance of exactly amount produce one success and one failure, with no
// overdraft and no external locking.
type Ledger interface {
	CheckAndDeduct(ctx context.Context, clinic string, amount int) (bool, error)
	Balance(ctx context.Context, clinic string) (int, error)
}
