package report

import (
	"strings"
	"time"

	"casal/internal/core"
)

// Consumption is how much of a budget's limit the month's matching expenses
// have used.
type Consumption struct {
	Budget     core.Budget `json:"budget"`
	SpentCents int64       `json:"spent_cents"`
	Percent    float64     `json:"percent"` // clamped to <= 100
	Over       bool        `json:"over"`    // spent strictly exceeds the limit
}

// BudgetConsumption sums expenses in the budget's month whose category
// matches case-insensitively.
func BudgetConsumption(b core.Budget, txs []core.Transaction) Consumption {
	var spent int64
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		if !strings.EqualFold(tx.Category, b.Category) {
			continue
		}
		if tx.Date.Year() != b.Year || tx.Date.Month() != time.Month(b.Month) {
			continue
		}
		spent += tx.Amount.Cents
	}

	c := Consumption{Budget: b, SpentCents: spent}
	if b.Amount.Cents > 0 {
		c.Percent = float64(spent) / float64(b.Amount.Cents) * 100
		if c.Percent > 100 {
			c.Percent = 100
		}
	}
	c.Over = spent > b.Amount.Cents
	return c
}

// Progress is a challenge's spend against its cap.
type Progress struct {
	Challenge  core.Challenge       `json:"challenge"`
	SpentCents int64                `json:"spent_cents"`
	Percent    float64              `json:"percent"` // clamped to <= 100
	Status     core.ChallengeStatus `json:"status"`
}

// ChallengeProgress sums expenses inside the challenge window, optionally
// filtered by category (case-insensitive), and derives the status: failed as
// soon as spend exceeds the target, completed once the window has closed
// without failing, active otherwise.
func ChallengeProgress(ch core.Challenge, txs []core.Transaction, now time.Time) Progress {
	var spent int64
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		if ch.Category != "" && !strings.EqualFold(tx.Category, ch.Category) {
			continue
		}
		if tx.Date.Before(ch.StartDate) || tx.Date.After(ch.EndDate) {
			continue
		}
		spent += tx.Amount.Cents
	}

	p := Progress{Challenge: ch, SpentCents: spent}
	if ch.TargetAmount.Cents > 0 {
		p.Percent = float64(spent) / float64(ch.TargetAmount.Cents) * 100
		if p.Percent > 100 {
			p.Percent = 100
		}
	}

	switch {
	case spent > ch.TargetAmount.Cents:
		p.Status = core.ChallengeFailed
	case now.After(ch.EndDate):
		p.Status = core.ChallengeCompleted
	default:
		p.Status = core.ChallengeActive
	}
	return p
}
