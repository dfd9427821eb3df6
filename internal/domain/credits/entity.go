package credits

import "time"

// AccountID identifier type
type AccountID string

// Account is one prepaid credit bucket for a clinic.
// Invariant: a deduction only succeeds while IsActive, unexpired and funded;
// IsActive flips false the moment RemainingCredits reaches 0.
type Account struct {
	ID               AccountID  `json:"id"`
	ClinicID         string     `json:"clinic_id"`
	RemainingCredits int        `json:"remaining_credits"`
	IsActive         bool       `json:"is_active"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	PurchasedAt      time.Time  `json:"purchased_at"`
}

// Usable reports whether the account can fund a deduction of amount at now.
func (a *Account) Usable(amount int, now time.Time) bool {
	if !a.IsActive || a.RemainingCredits < amount {
		return false
	}
	if a.ExpiresAt != nil && !a.ExpiresAt.After(now) {
		return false
	}
	return true
}
