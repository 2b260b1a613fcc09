package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"casal/internal/auth"
	"casal/internal/service"
	"casal/internal/storage"
)

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyClaims
)

// Dependencies bundles everything the API surface needs. All fields are
// required except Avatars, which disables the upload endpoint when nil.
type Dependencies struct {
	Authenticator *auth.PasswordAuthenticator
	Tokens        *auth.JWTManager
	Storage       *storage.Repository
	Avatars       auth.BlobStore

	Transactions *service.TransactionService
	Bills        *service.BillService
	Goals        *service.GoalService
	Shopping     *service.ShoppingService
	Budgets      *service.BudgetService
	Challenges   *service.ChallengeService

	// AvatarDir is served read-only under AvatarBaseURL.
	AvatarDir     string
	AvatarBaseURL string
}

type Server struct {
	http.Server
	deps        Dependencies
	rateLimiter *rateLimiter

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Dependencies) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		deps:        deps,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	// Uploaded avatars
	if deps.AvatarDir != "" && deps.AvatarBaseURL != "" {
		prefix := strings.TrimSuffix(deps.AvatarBaseURL, "/") + "/"
		files := http.StripPrefix(prefix, http.FileServer(http.Dir(deps.AvatarDir)))
		mux.Handle("GET "+prefix, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "public, max-age=3600")
			files.ServeHTTP(w, r)
		}))
	}

	mux.HandleFunc("POST /api/auth/signup", s.withSecurityHeaders(s.handleSignUp))
	mux.HandleFunc("POST /api/auth/signin", s.withSecurityHeaders(s.handleSignIn))
	mux.HandleFunc("GET /api/auth/profile", s.protected(s.handleGetProfile))
	mux.HandleFunc("PATCH /api/auth/profile", s.protected(s.handleUpdateProfile))
	mux.HandleFunc("GET /api/auth/couple", s.protected(s.handleGetCouple))
	mux.HandleFunc("POST /api/auth/couple", s.protected(s.handleCreateCouple))
	mux.HandleFunc("POST /api/auth/avatar", s.protected(s.handleUploadAvatar))

	mux.HandleFunc("GET /api/transactions", s.protected(s.handleListTransactions))
	mux.HandleFunc("POST /api/transactions", s.protected(s.handleCreateTransaction))
	mux.HandleFunc("PATCH /api/transactions/{id}", s.protected(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.protected(s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/bills", s.protected(s.handleListBills))
	mux.HandleFunc("POST /api/bills", s.protected(s.handleCreateBill))
	mux.HandleFunc("PATCH /api/bills/{id}", s.protected(s.handleUpdateBill))
	mux.HandleFunc("POST /api/bills/{id}/pay", s.protected(s.handlePayBill))
	mux.HandleFunc("DELETE /api/bills/{id}", s.protected(s.handleDeleteBill))

	mux.HandleFunc("GET /api/goals", s.protected(s.handleListGoals))
	mux.HandleFunc("POST /api/goals", s.protected(s.handleCreateGoal))
	mux.HandleFunc("PATCH /api/goals/{id}", s.protected(s.handleUpdateGoal))
	mux.HandleFunc("POST /api/goals/{id}/contribute", s.protected(s.handleContributeGoal))
	mux.HandleFunc("DELETE /api/goals/{id}", s.protected(s.handleDeleteGoal))

	mux.HandleFunc("GET /api/shopping", s.protected(s.handleListShopping))
	mux.HandleFunc("POST /api/shopping", s.protected(s.handleCreateShoppingItem))
	mux.HandleFunc("PATCH /api/shopping/{id}", s.protected(s.handleUpdateShoppingItem))
	mux.HandleFunc("POST /api/shopping/{id}/toggle", s.protected(s.handleToggleShoppingItem))
	mux.HandleFunc("DELETE /api/shopping/{id}", s.protected(s.handleDeleteShoppingItem))

	mux.HandleFunc("GET /api/budgets", s.protected(s.handleListBudgets))
	mux.HandleFunc("PUT /api/budgets", s.protected(s.handleSetBudget))
	mux.HandleFunc("DELETE /api/budgets/{id}", s.protected(s.handleDeleteBudget))

	mux.HandleFunc("GET /api/challenges", s.protected(s.handleListChallenges))
	mux.HandleFunc("POST /api/challenges", s.protected(s.handleCreateChallenge))
	mux.HandleFunc("PATCH /api/challenges/{id}", s.protected(s.handleUpdateChallenge))
	mux.HandleFunc("DELETE /api/challenges/{id}", s.protected(s.handleDeleteChallenge))

	mux.HandleFunc("GET /api/dashboard", s.protected(s.handleDashboard))
	mux.HandleFunc("GET /api/analytics", s.protected(s.handleAnalytics))

	return s
}

func (s *Server) protected(next http.HandlerFunc) http.HandlerFunc {
	return s.withSecurityHeaders(s.withAuth(next))
}

// withSecurityHeaders adds security headers, rate limiting, and request logging.
func (s *Server) withSecurityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Rate limit mutating requests only; reads are cheap.
		if mutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

// withAuth requires a valid bearer token and places its claims in the context.
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			respondDomainError(w, r, auth.ErrMissingToken)
			return
		}
		claims, err := s.deps.Tokens.Validate(strings.TrimSpace(token))
		if err != nil {
			respondDomainError(w, r, err)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKeyClaims, claims)))
	}
}

func claimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ctxKeyClaims).(*auth.Claims)
	return claims
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Storage.Ping(r.Context()); err != nil {
		respondError(w, http.StatusServiceUnavailable, "storage unavailable")
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
