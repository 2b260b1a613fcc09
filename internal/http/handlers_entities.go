package http

import (
	"net/http"
	"time"

	"casal/internal/core"
	"casal/internal/storage"
)

// scopeFor resolves the caller's profile into a storage scope. Records are
// visible couple-wide once a couple is attached, otherwise only own records.
func (s *Server) scopeFor(r *http.Request) (storage.Scope, *core.Profile, error) {
	claims := claimsFrom(r.Context())
	profile, err := s.resolveProfile(r.Context(), claims.UserID)
	if err != nil {
		return storage.Scope{}, nil, err
	}
	return storage.Scope{CoupleID: profile.CoupleID, MemberID: profile.ID}, profile, nil
}

// resolveMoney accepts either a localized amount string ("1.234,56") or a
// raw cent count; the string wins when both are present.
func resolveMoney(amount string, cents int64) (core.Money, error) {
	if amount != "" {
		parsed, err := core.ParseAmountToCents(amount)
		if err != nil {
			return core.Money{}, err
		}
		return core.Money{Cents: parsed}, nil
	}
	return core.Money{Cents: cents}, nil
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, core.ErrZeroDate
	}
	return core.NewDate(t.Year(), int(t.Month()), t.Day()), nil
}

func datePtr(s *string) (*time.Time, error) {
	if s == nil {
		return nil, nil
	}
	t, err := parseDate(*s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func moneyPtr(cents *int64) *core.Money {
	if cents == nil {
		return nil
	}
	return &core.Money{Cents: *cents}
}

// --- transactions ---

type transactionRequest struct {
	Title          string `json:"title"`
	Amount         string `json:"amount,omitempty"`
	AmountCents    int64  `json:"amount_cents,omitempty"`
	Type           string `json:"type"`
	Category       string `json:"category,omitempty"`
	Classification string `json:"classification,omitempty"`
	IsShared       bool   `json:"is_shared"`
	Date           string `json:"date"`
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	scope, _, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	txs, err := s.deps.Transactions.List(r.Context(), scope)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, txs)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	_, profile, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := resolveMoney(req.Amount, req.AmountCents)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	date, err := parseDate(req.Date)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	tx, err := s.deps.Transactions.Add(r.Context(), core.Transaction{
		CreatedBy:      profile.ID,
		CoupleID:       profile.CoupleID,
		Title:          req.Title,
		Amount:         amount,
		Type:           core.TransactionType(req.Type),
		Category:       req.Category,
		Classification: core.Classification(req.Classification),
		IsShared:       req.IsShared,
		Date:           date,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, tx)
}

type transactionPatchRequest struct {
	Title          *string `json:"title,omitempty"`
	AmountCents    *int64  `json:"amount_cents,omitempty"`
	Type           *string `json:"type,omitempty"`
	Category       *string `json:"category,omitempty"`
	Classification *string `json:"classification,omitempty"`
	IsShared       *bool   `json:"is_shared,omitempty"`
	Date           *string `json:"date,omitempty"`
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req transactionPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	date, err := datePtr(req.Date)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	patch := storage.TransactionPatch{
		Title:    req.Title,
		Amount:   moneyPtr(req.AmountCents),
		Category: req.Category,
		IsShared: req.IsShared,
		Date:     date,
	}
	if req.Type != nil {
		typ := core.TransactionType(*req.Type)
		patch.Type = &typ
	}
	if req.Classification != nil {
		cl := core.Classification(*req.Classification)
		patch.Classification = &cl
	}

	tx, err := s.deps.Transactions.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tx)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := s.deps.Transactions.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- bills ---

type billRequest struct {
	Title       string `json:"title"`
	Amount      string `json:"amount,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	DueDate     string `json:"due_date"`
	Category    string `json:"category,omitempty"`
	IsRecurring bool   `json:"is_recurring"`
}

func (s *Server) handleListBills(w http.ResponseWriter, r *http.Request) {
	scope, _, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	bills, err := s.deps.Bills.List(r.Context(), scope)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bills)
}

func (s *Server) handleCreateBill(w http.ResponseWriter, r *http.Request) {
	_, profile, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req billRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := resolveMoney(req.Amount, req.AmountCents)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	due, err := parseDate(req.DueDate)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	bill, err := s.deps.Bills.Add(r.Context(), core.Bill{
		CreatedBy:   profile.ID,
		CoupleID:    profile.CoupleID,
		Title:       req.Title,
		Amount:      amount,
		DueDate:     due,
		Status:      core.BillPending,
		Category:    req.Category,
		IsRecurring: req.IsRecurring,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, bill)
}

type billPatchRequest struct {
	Title       *string `json:"title,omitempty"`
	AmountCents *int64  `json:"amount_cents,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
	Status      *string `json:"status,omitempty"`
	Category    *string `json:"category,omitempty"`
	IsRecurring *bool   `json:"is_recurring,omitempty"`
}

func (s *Server) handleUpdateBill(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req billPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	due, err := datePtr(req.DueDate)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	patch := storage.BillPatch{
		Title:       req.Title,
		Amount:      moneyPtr(req.AmountCents),
		DueDate:     due,
		Category:    req.Category,
		IsRecurring: req.IsRecurring,
	}
	if req.Status != nil {
		status := core.BillStatus(*req.Status)
		patch.Status = &status
	}

	bill, err := s.deps.Bills.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bill)
}

func (s *Server) handlePayBill(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	bill, err := s.deps.Bills.MarkPaid(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, bill)
}

func (s *Server) handleDeleteBill(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := s.deps.Bills.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- goals ---

type goalRequest struct {
	Title             string `json:"title"`
	TargetAmount      string `json:"target_amount,omitempty"`
	TargetAmountCents int64  `json:"target_amount_cents,omitempty"`
	Icon              string `json:"icon,omitempty"`
	Deadline          string `json:"deadline,omitempty"`
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	scope, _, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	goals, err := s.deps.Goals.List(r.Context(), scope)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, goals)
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	_, profile, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req goalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := resolveMoney(req.TargetAmount, req.TargetAmountCents)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	goal := core.Goal{
		CreatedBy:    profile.ID,
		CoupleID:     profile.CoupleID,
		Title:        req.Title,
		TargetAmount: target,
		Icon:         req.Icon,
	}
	if req.Deadline != "" {
		deadline, err := parseDate(req.Deadline)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		goal.Deadline = deadline
	}

	saved, err := s.deps.Goals.Add(r.Context(), goal)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, saved)
}

type goalPatchRequest struct {
	Title             *string `json:"title,omitempty"`
	TargetAmountCents *int64  `json:"target_amount_cents,omitempty"`
	Icon              *string `json:"icon,omitempty"`
	Deadline          *string `json:"deadline,omitempty"`
}

func (s *Server) handleUpdateGoal(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req goalPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	deadline, err := datePtr(req.Deadline)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	goal, err := s.deps.Goals.Update(r.Context(), r.PathValue("id"), storage.GoalPatch{
		Title:        req.Title,
		TargetAmount: moneyPtr(req.TargetAmountCents),
		Icon:         req.Icon,
		Deadline:     deadline,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

type contributeRequest struct {
	Amount      string `json:"amount,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
}

func (s *Server) handleContributeGoal(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req contributeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := resolveMoney(req.Amount, req.AmountCents)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	goal, err := s.deps.Goals.Contribute(r.Context(), r.PathValue("id"), amount)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, goal)
}

func (s *Server) handleDeleteGoal(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := s.deps.Goals.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- shopping ---

type shoppingItemRequest struct {
	Name                string `json:"name"`
	Quantity            int    `json:"quantity"`
	EstimatedPrice      string `json:"estimated_price,omitempty"`
	EstimatedPriceCents int64  `json:"estimated_price_cents,omitempty"`
}

func (s *Server) handleListShopping(w http.ResponseWriter, r *http.Request) {
	scope, _, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	items, err := s.deps.Shopping.List(r.Context(), scope)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) handleCreateShoppingItem(w http.ResponseWriter, r *http.Request) {
	_, profile, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req shoppingItemRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	price, err := resolveMoney(req.EstimatedPrice, req.EstimatedPriceCents)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	quantity := req.Quantity
	if quantity == 0 {
		quantity = 1
	}

	item, err := s.deps.Shopping.Add(r.Context(), core.ShoppingItem{
		CreatedBy:      profile.ID,
		CoupleID:       profile.CoupleID,
		Name:           req.Name,
		Quantity:       quantity,
		EstimatedPrice: price,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

type shoppingItemPatchRequest struct {
	Name                *string `json:"name,omitempty"`
	Quantity            *int    `json:"quantity,omitempty"`
	EstimatedPriceCents *int64  `json:"estimated_price_cents,omitempty"`
	IsChecked           *bool   `json:"is_checked,omitempty"`
}

func (s *Server) handleUpdateShoppingItem(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req shoppingItemPatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := s.deps.Shopping.Update(r.Context(), r.PathValue("id"), storage.ShoppingItemPatch{
		Name:           req.Name,
		Quantity:       req.Quantity,
		EstimatedPrice: moneyPtr(req.EstimatedPriceCents),
		IsChecked:      req.IsChecked,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleToggleShoppingItem(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	item, err := s.deps.Shopping.Toggle(r.Context(), r.PathValue("id"))
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteShoppingItem(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := s.deps.Shopping.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- budgets ---

type budgetRequest struct {
	Category    string `json:"category"`
	Amount      string `json:"amount,omitempty"`
	AmountCents int64  `json:"amount_cents,omitempty"`
	Month       int    `json:"month"`
	Year        int    `json:"year"`
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	_, profile, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if profile.CoupleID == "" {
		respondDomainError(w, r, core.ErrMissingCouple)
		return
	}
	budgets, err := s.deps.Budgets.List(r.Context(), profile.CoupleID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, budgets)
}

func (s *Server) handleSetBudget(w http.ResponseWriter, r *http.Request) {
	_, profile, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if profile.CoupleID == "" {
		respondDomainError(w, r, core.ErrMissingCouple)
		return
	}
	var req budgetRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	amount, err := resolveMoney(req.Amount, req.AmountCents)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	budget, err := s.deps.Budgets.Set(r.Context(), core.Budget{
		CoupleID: profile.CoupleID,
		Category: req.Category,
		Amount:   amount,
		Month:    req.Month,
		Year:     req.Year,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, budget)
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := s.deps.Budgets.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// --- challenges ---

type challengeRequest struct {
	Title             string `json:"title"`
	Description       string `json:"description,omitempty"`
	TargetAmount      string `json:"target_amount,omitempty"`
	TargetAmountCents int64  `json:"target_amount_cents,omitempty"`
	EndDate           string `json:"end_date"`
	Category          string `json:"category,omitempty"`
}

func (s *Server) handleListChallenges(w http.ResponseWriter, r *http.Request) {
	_, profile, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if profile.CoupleID == "" {
		respondDomainError(w, r, core.ErrMissingCouple)
		return
	}
	challenges, err := s.deps.Challenges.List(r.Context(), profile.CoupleID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, challenges)
}

func (s *Server) handleCreateChallenge(w http.ResponseWriter, r *http.Request) {
	_, profile, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if profile.CoupleID == "" {
		respondDomainError(w, r, core.ErrMissingCouple)
		return
	}
	var req challengeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	target, err := resolveMoney(req.TargetAmount, req.TargetAmountCents)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	end, err := parseDate(req.EndDate)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	challenge, err := s.deps.Challenges.Add(r.Context(), core.Challenge{
		CoupleID:     profile.CoupleID,
		Title:        req.Title,
		Description:  req.Description,
		TargetAmount: target,
		EndDate:      end,
		Category:     req.Category,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, challenge)
}

type challengePatchRequest struct {
	Title             *string `json:"title,omitempty"`
	Description       *string `json:"description,omitempty"`
	TargetAmountCents *int64  `json:"target_amount_cents,omitempty"`
	EndDate           *string `json:"end_date,omitempty"`
	Category          *string `json:"category,omitempty"`
	Status            *string `json:"status,omitempty"`
}

func (s *Server) handleUpdateChallenge(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	var req challengePatchRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	end, err := datePtr(req.EndDate)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	patch := storage.ChallengePatch{
		Title:        req.Title,
		Description:  req.Description,
		TargetAmount: moneyPtr(req.TargetAmountCents),
		EndDate:      end,
		Category:     req.Category,
	}
	if req.Status != nil {
		status := core.ChallengeStatus(*req.Status)
		patch.Status = &status
	}

	challenge, err := s.deps.Challenges.Update(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, challenge)
}

func (s *Server) handleDeleteChallenge(w http.ResponseWriter, r *http.Request) {
	if _, _, err := s.scopeFor(r); err != nil {
		respondDomainError(w, r, err)
		return
	}
	if err := s.deps.Challenges.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
