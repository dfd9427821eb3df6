package credits

import (
	"testing"
	"time"
)

func TestAccountUsable(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour)
	past := now.Add(-time.Hour)

	cases := []struct {
		name    string
		account Account
		amount  int
		want    bool
	}{
		{"funded active", Account{RemainingCredits: 5, IsActive: true}, 1, true},
		{"inactive", Account{RemainingCredits: 5, IsActive: false}, 1, false},
		{"underfunded", Account{RemainingCredits: 2, IsActive: true}, 3, false},
		{"exact balance", Account{RemainingCredits: 3, IsActive: true}, 3, true},
		{"expired", Account{RemainingCredits: 5, IsActive: true, ExpiresAt: &past}, 1, false},
		{"expires later", Account{RemainingCredits: 5, IsActive: true, ExpiresAt: &future}, 1, true},
	}
	for _, c := range cases {
		if got := c.account.Usable(c.amount, now); got != c.want {
			t.Errorf("%s: Usable = %v, want %v", c.name, got, c.want)
		}
	}
}
