package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"casal/internal/auth"
	"casal/internal/core"
	"casal/internal/feed"
	"casal/internal/service"
	"casal/internal/storage"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	publisher := feed.NewMemoryFeed()
	tokens := auth.NewJWTManager("0123456789abcdef0123456789abcdef", time.Hour)

	srv := NewServer(":0", Dependencies{
		Authenticator: auth.NewPasswordAuthenticator(repo),
		Tokens:        tokens,
		Storage:       repo,
		Transactions:  service.NewTransactionService(repo, publisher),
		Bills:         service.NewBillService(repo, publisher),
		Goals:         service.NewGoalService(repo, publisher),
		Shopping:      service.NewShoppingService(repo, publisher),
		Budgets:       service.NewBudgetService(repo, publisher),
		Challenges:    service.NewChallengeService(repo, publisher),
	})
	t.Cleanup(func() { srv.rateLimiter.stop() })
	return srv
}

func doJSON(t *testing.T, srv *Server, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return v
}

func signUp(t *testing.T, srv *Server, email, name string) (token string, profile core.Profile) {
	t.Helper()
	rr := doJSON(t, srv, http.MethodPost, "/api/auth/signup", "", map[string]string{
		"email": email, "name": name, "password": "super-secret-1",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("signup status=%d body=%s", rr.Code, rr.Body.String())
	}
	sess := decodeBody[sessionResponse](t, rr)
	if sess.Token == "" {
		t.Fatalf("signup returned empty token")
	}
	return sess.Token, sess.Profile
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	for _, path := range []string{"/healthz", "/readyz"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
}

func TestSignUpCreatesCouple(t *testing.T) {
	srv := newTestServer(t)

	_, profile := signUp(t, srv, "ana@example.com", "Ana")
	if profile.CoupleID == "" {
		t.Fatalf("expected couple attached on first sign-up")
	}

	token, _ := signUp(t, srv, "outro@example.com", "Outro")
	rr := doJSON(t, srv, http.MethodGet, "/api/auth/couple", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get couple status=%d body=%s", rr.Code, rr.Body.String())
	}
	couple := decodeBody[core.Couple](t, rr)
	if couple.Name != "Casal de Outro" {
		t.Fatalf("couple name=%q", couple.Name)
	}
}

func TestSignUpRejections(t *testing.T) {
	srv := newTestServer(t)
	signUp(t, srv, "ana@example.com", "Ana")

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"duplicate email", map[string]string{"email": "ana@example.com", "name": "Bis", "password": "super-secret-1"}, http.StatusConflict},
		{"weak password", map[string]string{"email": "novo@example.com", "name": "Novo", "password": "curta"}, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := doJSON(t, srv, http.MethodPost, "/api/auth/signup", "", tt.body)
			if rr.Code != tt.want {
				t.Fatalf("status=%d want=%d body=%s", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestSignInWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	signUp(t, srv, "ana@example.com", "Ana")

	rr := doJSON(t, srv, http.MethodPost, "/api/auth/signin", "", map[string]string{
		"email": "ana@example.com", "password": "errada-demais",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/api/transactions", "/api/bills", "/api/dashboard"} {
		rr := doJSON(t, srv, http.MethodGet, path, "", nil)
		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s status=%d want 401", path, rr.Code)
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/transactions", "not-a-token", nil)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status=%d want 401", rr.Code)
	}
}

func TestTransactionLifecycle(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signUp(t, srv, "ana@example.com", "Ana")

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"title": "Mercado", "amount": "1.234,56", "type": "expense",
		"category": "Alimentação", "classification": "variable", "date": "2026-08-15",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	tx := decodeBody[core.Transaction](t, rr)
	if tx.Amount.Cents != 123456 {
		t.Fatalf("amount=%d want 123456", tx.Amount.Cents)
	}

	rr = doJSON(t, srv, http.MethodPatch, "/api/transactions/"+tx.ID, token, map[string]any{
		"title": "Mercado do mês",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status=%d body=%s", rr.Code, rr.Body.String())
	}
	updated := decodeBody[core.Transaction](t, rr)
	if updated.Title != "Mercado do mês" || updated.Amount.Cents != 123456 {
		t.Fatalf("patch result title=%q amount=%d", updated.Title, updated.Amount.Cents)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list status=%d", rr.Code)
	}
	if list := decodeBody[[]core.Transaction](t, rr); len(list) != 1 {
		t.Fatalf("list len=%d want 1", len(list))
	}

	rr = doJSON(t, srv, http.MethodDelete, "/api/transactions/"+tx.ID, token, nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("delete status=%d", rr.Code)
	}
	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", token, nil)
	if list := decodeBody[[]core.Transaction](t, rr); len(list) != 0 {
		t.Fatalf("list after delete len=%d want 0", len(list))
	}
}

func TestPatchUnknownRecordIs404(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signUp(t, srv, "ana@example.com", "Ana")

	rr := doJSON(t, srv, http.MethodPatch, "/api/transactions/nao-existe", token, map[string]any{
		"title": "qualquer",
	})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status=%d want 404 body=%s", rr.Code, rr.Body.String())
	}
}

func TestInvalidAmountIs422(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signUp(t, srv, "ana@example.com", "Ana")

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"title": "Mercado", "amount": "abc", "type": "expense", "date": "2026-08-15",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d want 422 body=%s", rr.Code, rr.Body.String())
	}
}

func TestPayRecurringBillSpawnsSuccessor(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signUp(t, srv, "ana@example.com", "Ana")

	rr := doJSON(t, srv, http.MethodPost, "/api/bills", token, map[string]any{
		"title": "Aluguel", "amount_cents": 150000, "due_date": "2026-01-31", "is_recurring": true,
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create bill status=%d body=%s", rr.Code, rr.Body.String())
	}
	bill := decodeBody[core.Bill](t, rr)

	rr = doJSON(t, srv, http.MethodPost, "/api/bills/"+bill.ID+"/pay", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("pay status=%d body=%s", rr.Code, rr.Body.String())
	}
	if paid := decodeBody[core.Bill](t, rr); paid.Status != core.BillPaid {
		t.Fatalf("status=%q want paid", paid.Status)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/bills", token, nil)
	bills := decodeBody[[]core.Bill](t, rr)
	if len(bills) != 2 {
		t.Fatalf("bills len=%d want 2", len(bills))
	}
	// ordered by due date ascending, successor comes second
	next := bills[1]
	if next.Status != core.BillPending || !next.IsRecurring {
		t.Fatalf("successor status=%q recurring=%v", next.Status, next.IsRecurring)
	}
	if want := core.NewDate(2026, 2, 28); !next.DueDate.Equal(want) {
		t.Fatalf("successor due=%v want %v", next.DueDate, want)
	}
}

func TestBudgetPutReplacesAndLists(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signUp(t, srv, "ana@example.com", "Ana")

	for _, cents := range []int64{50000, 60000} {
		rr := doJSON(t, srv, http.MethodPut, "/api/budgets", token, map[string]any{
			"category": "Alimentação", "amount_cents": cents, "month": 8, "year": 2026,
		})
		if rr.Code != http.StatusOK {
			t.Fatalf("put budget status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/budgets", token, nil)
	budgets := decodeBody[[]core.Budget](t, rr)
	if len(budgets) != 1 {
		t.Fatalf("budgets len=%d want 1", len(budgets))
	}
	if budgets[0].Amount.Cents != 60000 {
		t.Fatalf("amount=%d want 60000", budgets[0].Amount.Cents)
	}
}

func TestDashboardTotals(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signUp(t, srv, "ana@example.com", "Ana")

	today := time.Now().UTC().Format("2006-01-02")
	seed := []map[string]any{
		{"title": "Salário", "amount_cents": 500000, "type": "income", "date": today},
		{"title": "Mercado", "amount_cents": 120000, "type": "expense", "category": "Alimentação", "date": today},
	}
	for _, body := range seed {
		if rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, body); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/dashboard", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("dashboard status=%d body=%s", rr.Code, rr.Body.String())
	}
	dash := decodeBody[dashboardResponse](t, rr)
	if dash.Totals.BalanceCents != 380000 {
		t.Fatalf("balance=%d want 380000", dash.Totals.BalanceCents)
	}
	if len(dash.Activity) != 2 {
		t.Fatalf("activity len=%d want 2", len(dash.Activity))
	}
}

func TestAnalyticsBreakdown(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signUp(t, srv, "ana@example.com", "Ana")

	seed := []map[string]any{
		{"title": "Mercado", "amount_cents": 30000, "type": "expense", "category": "Alimentação", "classification": "variable", "date": "2026-08-10"},
		{"title": "Luz", "amount_cents": 10000, "type": "expense", "category": "Contas", "classification": "fixed", "date": "2026-08-12"},
	}
	for _, body := range seed {
		if rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, body); rr.Code != http.StatusCreated {
			t.Fatalf("seed status=%d body=%s", rr.Code, rr.Body.String())
		}
	}

	rr := doJSON(t, srv, http.MethodGet, "/api/analytics?year=2026&month=8", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("analytics status=%d body=%s", rr.Code, rr.Body.String())
	}
	got := decodeBody[analyticsResponse](t, rr)
	if got.Totals.ExpenseCents != 40000 {
		t.Fatalf("expenses=%d want 40000", got.Totals.ExpenseCents)
	}
	if len(got.ByCategory) != 2 || got.ByCategory[0].Category != "Alimentação" {
		t.Fatalf("breakdown=%v", got.ByCategory)
	}
	if got.FixedCents != 10000 || got.VariableCents != 30000 {
		t.Fatalf("split fixed=%d variable=%d", got.FixedCents, got.VariableCents)
	}
}

func TestCoupleScopeSharesRecords(t *testing.T) {
	srv := newTestServer(t)
	tokenAna, profileAna := signUp(t, srv, "ana@example.com", "Ana")
	tokenBeto, _ := signUp(t, srv, "beto@example.com", "Beto")

	// Move Beto into Ana's couple, as an invite acceptance would.
	rr := doJSON(t, srv, http.MethodGet, "/api/auth/profile", tokenBeto, nil)
	profileBeto := decodeBody[core.Profile](t, rr)
	if _, err := srv.deps.Storage.UpdateProfile(context.Background(), profileBeto.ID, storage.ProfilePatch{CoupleID: &profileAna.CoupleID}); err != nil {
		t.Fatalf("attach couple: %v", err)
	}

	if rr := doJSON(t, srv, http.MethodPost, "/api/transactions", tokenAna, map[string]any{
		"title": "Mercado", "amount_cents": 5000, "type": "expense", "is_shared": true, "date": "2026-08-15",
	}); rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d", rr.Code)
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", tokenBeto, nil)
	if list := decodeBody[[]core.Transaction](t, rr); len(list) != 1 {
		t.Fatalf("partner sees %d transactions, want 1", len(list))
	}
}

func TestMutatingRequestsAreRateLimited(t *testing.T) {
	srv := newTestServer(t)

	var last int
	for i := 0; i < 70; i++ {
		rr := doJSON(t, srv, http.MethodPost, "/api/auth/signin", "", map[string]string{
			"email": fmt.Sprintf("x%d@example.com", i), "password": "whatever-123",
		})
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("status=%d want 429 after burst", last)
	}
}

func TestPatchNegativeAmountIs422(t *testing.T) {
	srv := newTestServer(t)
	token, _ := signUp(t, srv, "ana@example.com", "Ana")

	rr := doJSON(t, srv, http.MethodPost, "/api/transactions", token, map[string]any{
		"title": "Mercado", "amount_cents": 1000, "type": "expense", "date": "2026-08-15",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status=%d body=%s", rr.Code, rr.Body.String())
	}
	tx := decodeBody[core.Transaction](t, rr)

	rr = doJSON(t, srv, http.MethodPatch, "/api/transactions/"+tx.ID, token, map[string]any{
		"amount_cents": -5000,
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("patch status=%d want 422 body=%s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, srv, http.MethodGet, "/api/transactions", token, nil)
	list := decodeBody[[]core.Transaction](t, rr)
	if len(list) != 1 || list[0].Amount.Cents != 1000 {
		t.Fatalf("stored row changed after rejected patch: %+v", list)
	}

	rr = doJSON(t, srv, http.MethodPatch, "/api/transactions/"+tx.ID, token, map[string]any{
		"type": "bogus",
	})
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("bogus type status=%d want 422 body=%s", rr.Code, rr.Body.String())
	}
}

func TestCreateCoupleRoute(t *testing.T) {
	srv := newTestServer(t)
	token, profile := signUp(t, srv, "ana@example.com", "Ana")

	rec := doJSON(t, srv, "POST", "/api/auth/couple", token, map[string]any{"name": "Nós Dois"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create couple status = %d, want 201: %s", rec.Code, rec.Body)
	}
	couple := decodeBody[core.Couple](t, rec)
	if couple.Name != "Nós Dois" {
		t.Errorf("couple name = %q, want %q", couple.Name, "Nós Dois")
	}
	if couple.ID == profile.CoupleID {
		t.Error("create couple reused the sign-up couple")
	}

	rec = doJSON(t, srv, "GET", "/api/auth/couple", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get couple status = %d: %s", rec.Code, rec.Body)
	}
	if got := decodeBody[core.Couple](t, rec); got.ID != couple.ID || got.Name != "Nós Dois" {
		t.Errorf("get couple = %+v, want the created couple", got)
	}

	rec = doJSON(t, srv, "POST", "/api/auth/couple", token, map[string]any{"name": "   "})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("blank name status = %d, want 422", rec.Code)
	}
}
