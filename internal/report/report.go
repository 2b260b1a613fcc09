// Package report computes derived views over loaded entity slices. Every
// function is pure and deterministic; callers recompute on each change
// instead of maintaining incremental state.
package report

import (
	"sort"
	"time"

	"casal/internal/core"
)

// Totals is the income/expense sum over a transaction set.
type Totals struct {
	IncomeCents  int64
	ExpenseCents int64
}

func (t Totals) BalanceCents() int64 {
	return t.IncomeCents - t.ExpenseCents
}

func ComputeTotals(txs []core.Transaction) Totals {
	var t Totals
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			t.IncomeCents += tx.Amount.Cents
		case core.Expense:
			t.ExpenseCents += tx.Amount.Cents
		}
	}
	return t
}

// FilterByRange keeps transactions dated inside [from, to], inclusive.
func FilterByRange(txs []core.Transaction, from, to time.Time) []core.Transaction {
	var out []core.Transaction
	for _, tx := range txs {
		if tx.Date.Before(from) || tx.Date.After(to) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// CategoryAmount is one row of a category breakdown.
type CategoryAmount struct {
	Category string `json:"category"`
	Cents    int64  `json:"cents"`
}

// CategoryBreakdown sums categorized expenses per category, sorted by amount
// descending, keeping at most topN rows. topN <= 0 keeps everything.
func CategoryBreakdown(txs []core.Transaction, topN int) []CategoryAmount {
	sums := make(map[string]int64)
	for _, tx := range txs {
		if tx.Type != core.Expense || tx.Category == "" {
			continue
		}
		sums[tx.Category] += tx.Amount.Cents
	}

	out := make([]CategoryAmount, 0, len(sums))
	for category, cents := range sums {
		out = append(out, CategoryAmount{Category: category, Cents: cents})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cents != out[j].Cents {
			return out[i].Cents > out[j].Cents
		}
		return out[i].Category < out[j].Category
	})

	if topN > 0 && len(out) > topN {
		out = out[:topN]
	}
	return out
}

// ClassificationSplit sums expenses into fixed and variable cents. Expenses
// without a classification count as variable.
func ClassificationSplit(txs []core.Transaction) (fixedCents, variableCents int64) {
	for _, tx := range txs {
		if tx.Type != core.Expense {
			continue
		}
		if tx.Classification == core.Fixed {
			fixedCents += tx.Amount.Cents
		} else {
			variableCents += tx.Amount.Cents
		}
	}
	return fixedCents, variableCents
}

// MonthBucket is one month of a chart series.
type MonthBucket struct {
	Year         int        `json:"year"`
	Month        time.Month `json:"month"`
	IncomeCents  int64      `json:"income_cents"`
	ExpenseCents int64      `json:"expense_cents"`
}

// MonthlySeries buckets transactions by (year, month) chronologically,
// keeping the last lastN buckets. lastN <= 0 keeps everything.
func MonthlySeries(txs []core.Transaction, lastN int) []MonthBucket {
	type key struct {
		year  int
		month time.Month
	}
	sums := make(map[key]*MonthBucket)
	for _, tx := range txs {
		k := key{tx.Date.Year(), tx.Date.Month()}
		b, ok := sums[k]
		if !ok {
			b = &MonthBucket{Year: k.year, Month: k.month}
			sums[k] = b
		}
		switch tx.Type {
		case core.Income:
			b.IncomeCents += tx.Amount.Cents
		case core.Expense:
			b.ExpenseCents += tx.Amount.Cents
		}
	}

	out := make([]MonthBucket, 0, len(sums))
	for _, b := range sums {
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})

	if lastN > 0 && len(out) > lastN {
		out = out[len(out)-lastN:]
	}
	return out
}

// DailyAverage spreads total spend over a day count. days <= 0 yields 0.
func DailyAverage(expenseCents int64, days int) int64 {
	if days <= 0 {
		return 0
	}
	return expenseCents / int64(days)
}

// GoalProgress is the saved percentage, clamped to [0, 100].
func GoalProgress(g core.Goal) float64 {
	if g.TargetAmount.Cents <= 0 {
		return 0
	}
	pct := float64(g.CurrentAmount.Cents) / float64(g.TargetAmount.Cents) * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// ShoppingEstimate sums unit price times quantity over unchecked items only.
func ShoppingEstimate(items []core.ShoppingItem) int64 {
	var total int64
	for _, item := range items {
		if item.IsChecked {
			continue
		}
		total += item.EstimatedPrice.Cents * int64(item.Quantity)
	}
	return total
}
