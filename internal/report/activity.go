package report

import (
	"sort"
	"time"

	"casal/internal/core"
)

const (
	ActivityTransaction = "transaction"
	ActivityBillPaid    = "bill_paid"
	ActivityGoal        = "goal"
	ActivityShopping    = "shopping"
)

// ActivityItem is one row of the merged recent-activity feed.
type ActivityItem struct {
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Cents     int64     `json:"cents"`
	Timestamp time.Time `json:"timestamp"`
}

// ActivityFeed merges the most recent entries of each entity type into one
// list: up to 5 transactions, 3 paid bills, 2 goals and 3 checked shopping
// items, sorted by timestamp descending and truncated to 6. Inputs are
// expected in their store order (newest first for transactions, goals and
// shopping items).
func ActivityFeed(txs []core.Transaction, bills []core.Bill, goals []core.Goal, items []core.ShoppingItem) []ActivityItem {
	var out []ActivityItem

	for i, tx := range txs {
		if i == 5 {
			break
		}
		cents := tx.Amount.Cents
		if tx.Type == core.Expense {
			cents = -cents
		}
		out = append(out, ActivityItem{
			Type:      ActivityTransaction,
			Title:     tx.Title,
			Cents:     cents,
			Timestamp: tx.CreatedAt,
		})
	}

	paid := 0
	for _, b := range bills {
		if b.Status != core.BillPaid {
			continue
		}
		if paid == 3 {
			break
		}
		paid++
		out = append(out, ActivityItem{
			Type:      ActivityBillPaid,
			Title:     b.Title,
			Cents:     -b.Amount.Cents,
			Timestamp: b.CreatedAt,
		})
	}

	for i, g := range goals {
		if i == 2 {
			break
		}
		out = append(out, ActivityItem{
			Type:      ActivityGoal,
			Title:     g.Title,
			Cents:     g.CurrentAmount.Cents,
			Timestamp: g.UpdatedAt,
		})
	}

	checked := 0
	for _, item := range items {
		if !item.IsChecked {
			continue
		}
		if checked == 3 {
			break
		}
		checked++
		out = append(out, ActivityItem{
			Type:      ActivityShopping,
			Title:     item.Name,
			Timestamp: item.CreatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > 6 {
		out = out[:6]
	}
	return out
}
