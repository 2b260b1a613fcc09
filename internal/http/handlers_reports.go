package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"casal/internal/core"
	"casal/internal/report"
)

// parseYearMonth extracts year and month from query parameters, defaulting
// to the current month.
func parseYearMonth(r *http.Request) (year, month int) {
	now := time.Now().UTC()
	year = now.Year()
	month = int(now.Month())

	if v := strings.TrimSpace(r.URL.Query().Get("year")); v != "" {
		if y, err := strconv.Atoi(v); err == nil {
			year = y
		}
	}
	if v := strings.TrimSpace(r.URL.Query().Get("month")); v != "" {
		if m, err := strconv.Atoi(v); err == nil && m >= 1 && m <= 12 {
			month = m
		}
	}
	return year, month
}

type totalsResponse struct {
	IncomeCents  int64 `json:"income_cents"`
	ExpenseCents int64 `json:"expense_cents"`
	BalanceCents int64 `json:"balance_cents"`
}

func toTotalsResponse(t report.Totals) totalsResponse {
	return totalsResponse{
		IncomeCents:  t.IncomeCents,
		ExpenseCents: t.ExpenseCents,
		BalanceCents: t.BalanceCents(),
	}
}

type goalProgressResponse struct {
	Goal    core.Goal `json:"goal"`
	Percent float64   `json:"percent"`
}

type dashboardResponse struct {
	Totals                totalsResponse         `json:"totals"`
	MonthTotals           totalsResponse         `json:"month_totals"`
	DailyAverageCents     int64                  `json:"daily_average_cents"`
	Goals                 []goalProgressResponse `json:"goals"`
	ShoppingEstimateCents int64                  `json:"shopping_estimate_cents"`
	Activity              []report.ActivityItem  `json:"activity"`
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
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
	bills, err := s.deps.Bills.List(r.Context(), scope)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	goals, err := s.deps.Goals.List(r.Context(), scope)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	items, err := s.deps.Shopping.List(r.Context(), scope)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	now := time.Now().UTC()
	monthStart := core.NewDate(now.Year(), int(now.Month()), 1)
	monthEnd := monthStart.AddDate(0, 1, -1)
	monthTxs := report.FilterByRange(txs, monthStart, monthEnd)
	monthTotals := report.ComputeTotals(monthTxs)

	resp := dashboardResponse{
		Totals:                toTotalsResponse(report.ComputeTotals(txs)),
		MonthTotals:           toTotalsResponse(monthTotals),
		DailyAverageCents:     report.DailyAverage(monthTotals.ExpenseCents, now.Day()),
		ShoppingEstimateCents: report.ShoppingEstimate(items),
		Activity:              report.ActivityFeed(txs, bills, goals, items),
	}
	for _, g := range goals {
		resp.Goals = append(resp.Goals, goalProgressResponse{Goal: g, Percent: report.GoalProgress(g)})
	}
	respondJSON(w, http.StatusOK, resp)
}

type analyticsResponse struct {
	Year              int                     `json:"year"`
	Month             int                     `json:"month"`
	Totals            totalsResponse          `json:"totals"`
	ByCategory        []report.CategoryAmount `json:"by_category"`
	FixedCents        int64                   `json:"fixed_cents"`
	VariableCents     int64                   `json:"variable_cents"`
	MonthlySeries     []report.MonthBucket    `json:"monthly_series"`
	BudgetConsumption []report.Consumption    `json:"budget_consumption"`
	ChallengeProgress []report.Progress       `json:"challenge_progress"`
}

func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	scope, profile, err := s.scopeFor(r)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	year, month := parseYearMonth(r)

	txs, err := s.deps.Transactions.List(r.Context(), scope)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}

	monthStart := core.NewDate(year, month, 1)
	monthEnd := monthStart.AddDate(0, 1, -1)
	monthTxs := report.FilterByRange(txs, monthStart, monthEnd)
	fixed, variable := report.ClassificationSplit(monthTxs)

	resp := analyticsResponse{
		Year:          year,
		Month:         month,
		Totals:        toTotalsResponse(report.ComputeTotals(monthTxs)),
		ByCategory:    report.CategoryBreakdown(monthTxs, 0),
		FixedCents:    fixed,
		VariableCents: variable,
		MonthlySeries: report.MonthlySeries(txs, 6),
	}

	if profile.CoupleID != "" {
		budgets, err := s.deps.Budgets.List(r.Context(), profile.CoupleID)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		for _, b := range budgets {
			resp.BudgetConsumption = append(resp.BudgetConsumption, report.BudgetConsumption(b, txs))
		}

		challenges, err := s.deps.Challenges.List(r.Context(), profile.CoupleID)
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		now := time.Now().UTC()
		for _, ch := range challenges {
			resp.ChallengeProgress = append(resp.ChallengeProgress, report.ChallengeProgress(ch, txs, now))
		}
	}
	respondJSON(w, http.StatusOK, resp)
}
