package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"

	Fixed    Classification = "fixed"
	Variable Classification = "variable"

	BillPending BillStatus = "pending"
	BillPaid    BillStatus = "paid"
	BillOverdue BillStatus = "overdue"

	ChallengeActive    ChallengeStatus = "active"
	ChallengeCompleted ChallengeStatus = "completed"
	ChallengeFailed    ChallengeStatus = "failed"
)

type (
	TransactionType string
	Classification  string
	BillStatus      string
	ChallengeStatus string

	Money struct {
		Cents int64
	}

	Couple struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Profile is the per-member record; its ID equals the member's auth id.
	Profile struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		AvatarURL string    `json:"avatar_url,omitempty"`
		CoupleID  string    `json:"couple_id,omitempty"` // empty until a couple is attached
		CreatedAt time.Time `json:"created_at"`
		UpdatedAt time.Time `json:"updated_at"`
	}

	Transaction struct {
		ID             string          `json:"id"`
		CreatedBy      string          `json:"created_by"`
		CoupleID       string          `json:"couple_id,omitempty"`
		Title          string          `json:"title"`
		Amount         Money           `json:"amount_cents"`
		Type           TransactionType `json:"type"`
		Category       string          `json:"category,omitempty"`
		Classification Classification  `json:"classification,omitempty"` // expense-only
		IsShared       bool            `json:"is_shared"`
		Date           time.Time       `json:"date"`
		CreatedAt      time.Time       `json:"created_at"`
	}

	Goal struct {
		ID            string    `json:"id"`
		CreatedBy     string    `json:"created_by"`
		CoupleID      string    `json:"couple_id,omitempty"`
		Title         string    `json:"title"`
		TargetAmount  Money     `json:"target_amount_cents"`
		CurrentAmount Money     `json:"current_amount_cents"`
		Icon          string    `json:"icon"`
		Deadline      time.Time `json:"deadline,omitempty"`
		CreatedAt     time.Time `json:"created_at"`
		UpdatedAt     time.Time `json:"updated_at"`
	}

	Bill struct {
		ID          string     `json:"id"`
		CreatedBy   string     `json:"created_by"`
		CoupleID    string     `json:"couple_id,omitempty"`
		Title       string     `json:"title"`
		Amount      Money      `json:"amount_cents"`
		DueDate     time.Time  `json:"due_date"`
		Status      BillStatus `json:"status"`
		Category    string     `json:"category,omitempty"`
		IsRecurring bool       `json:"is_recurring"`
		CreatedAt   time.Time  `json:"created_at"`
	}

	ShoppingItem struct {
		ID             string    `json:"id"`
		CreatedBy      string    `json:"created_by"`
		CoupleID       string    `json:"couple_id,omitempty"`
		Name           string    `json:"name"`
		Quantity       int       `json:"quantity"`
		EstimatedPrice Money     `json:"estimated_price_cents"`
		IsChecked      bool      `json:"is_checked"`
		CreatedAt      time.Time `json:"created_at"`
	}

	// Budget is a monthly spending limit for one category, unique per
	// (couple, category, month, year).
	Budget struct {
		ID        string    `json:"id"`
		CoupleID  string    `json:"couple_id"`
		Category  string    `json:"category"`
		Amount    Money     `json:"amount_cents"`
		Month     int       `json:"month"` // 1-12
		Year      int       `json:"year"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Challenge caps spending inside a date window; TargetAmount is the
	// maximum allowed spend, not a savings goal.
	Challenge struct {
		ID            string          `json:"id"`
		CoupleID      string          `json:"couple_id"`
		Title         string          `json:"title"`
		Description   string          `json:"description,omitempty"`
		TargetAmount  Money           `json:"target_amount_cents"`
		CurrentAmount Money           `json:"current_amount_cents"`
		StartDate     time.Time       `json:"start_date"`
		EndDate       time.Time       `json:"end_date"`
		Category      string          `json:"category,omitempty"` // empty filter matches all expenses
		Status        ChallengeStatus `json:"status"`
		CreatedAt     time.Time       `json:"created_at"`
	}
)

var (
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrEmptyTitle       = errors.New("empty title")
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidQuantity  = errors.New("quantity must be at least 1")
	ErrInvalidMonth     = errors.New("month must be between 1 and 12")
	ErrInvalidWindow    = errors.New("end date must not precede start date")
	ErrZeroDate         = errors.New("date cannot be zero")
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrMissingCouple is surfaced verbatim to the user when a write races
	// against couple resolution.
	ErrMissingCouple = errors.New("perfil incompleto: casal ainda não resolvido, recarregue a página")
)

func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (t TransactionType) Valid() bool {
	return t == Income || t == Expense
}

func (c Classification) Valid() bool {
	return c == "" || c == Fixed || c == Variable
}

func (s BillStatus) Valid() bool {
	return s == BillPending || s == BillPaid || s == BillOverdue
}

func (s ChallengeStatus) Valid() bool {
	return s == ChallengeActive || s == ChallengeCompleted || s == ChallengeFailed
}

func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return ErrEmptyTitle
	}
	if err := t.Amount.Validate(); err != nil {
		return err
	}
	if !t.Type.Valid() {
		return ErrInvalidType
	}
	if !t.Classification.Valid() {
		return errors.New("invalid classification")
	}
	// Classification only makes sense for expenses.
	if t.Type == Income && t.Classification != "" {
		return errors.New("classification not allowed on income")
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (g Goal) Validate() error {
	if strings.TrimSpace(g.Title) == "" {
		return ErrEmptyTitle
	}
	if err := g.TargetAmount.Validate(); err != nil {
		return err
	}
	if g.CurrentAmount.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Bill) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return ErrEmptyTitle
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if !b.Status.Valid() {
		return ErrInvalidStatus
	}
	if b.DueDate.IsZero() {
		return ErrZeroDate
	}
	return nil
}

func (i ShoppingItem) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return errors.New("empty name")
	}
	if i.Quantity < 1 {
		return ErrInvalidQuantity
	}
	if i.EstimatedPrice.Cents < 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (b Budget) Validate() error {
	if strings.TrimSpace(b.Category) == "" {
		return errors.New("empty category")
	}
	if err := b.Amount.Validate(); err != nil {
		return err
	}
	if b.Month < 1 || b.Month > 12 {
		return ErrInvalidMonth
	}
	if b.Year < 2000 {
		return errors.New("invalid year")
	}
	return nil
}

func (c Challenge) Validate() error {
	if strings.TrimSpace(c.Title) == "" {
		return ErrEmptyTitle
	}
	if err := c.TargetAmount.Validate(); err != nil {
		return err
	}
	if !c.Status.Valid() {
		return ErrInvalidStatus
	}
	if c.StartDate.IsZero() || c.EndDate.IsZero() {
		return ErrZeroDate
	}
	if c.EndDate.Before(c.StartDate) {
		return ErrInvalidWindow
	}
	return nil
}

// NewDate builds a date-only value at UTC midnight, the canonical form for
// transaction dates and bill due dates.
func NewDate(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// AddOneMonth advances a due date by exactly one calendar month, clamping the
// day to the target month's last day (Jan 31 -> Feb 28).
func AddOneMonth(d time.Time) time.Time {
	year, month, day := d.Date()
	first := time.Date(year, month+1, 1, 0, 0, 0, 0, d.Location())
	lastDay := first.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, d.Location())
}
