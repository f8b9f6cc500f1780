package domain

import "time"

// CreditAccount ties an API key to its prepaid generation balance. The
// remaining count only decreases through Charge; top-ups happen out of band.
type CreditAccount struct {
	ID               string
	APIKey           string
	Email            string
	RemainingCredits int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
