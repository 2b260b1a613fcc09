package http

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"casal/internal/core"
	"casal/internal/storage"
)

const maxAvatarBytes = 5 << 20

type credentialsRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
}

type sessionResponse struct {
	Token   string       `json:"token"`
	Profile core.Profile `json:"profile"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.deps.Authenticator.Register(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	s.establishSession(w, r, user)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := s.deps.Authenticator.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	s.establishSession(w, r, user)
}

func (s *Server) establishSession(w http.ResponseWriter, r *http.Request, user *storage.AuthUser) {
	token, err := s.deps.Tokens.Generate(user)
	if err != nil {
		respondDomainError(w, r, fmt.Errorf("generate token: %w", err))
		return
	}
	profile, err := s.resolveProfile(r.Context(), user.ID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse{Token: token, Profile: *profile})
}

// resolveProfile loads the member's profile, attaching a fresh couple when
// none is linked yet so that shared records have a home from the first login.
func (s *Server) resolveProfile(ctx context.Context, userID string) (*core.Profile, error) {
	profile, err := s.deps.Storage.GetProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile == nil {
		return nil, core.ErrNotAuthenticated
	}
	if profile.CoupleID != "" {
		return profile, nil
	}

	couple, err := s.deps.Storage.CreateCouple(ctx, "Casal de "+profile.Name)
	if err != nil {
		return nil, fmt.Errorf("create couple: %w", err)
	}
	updated, err := s.deps.Storage.UpdateProfile(ctx, profile.ID, storage.ProfilePatch{CoupleID: &couple.ID})
	if err != nil {
		return nil, fmt.Errorf("attach couple: %w", err)
	}
	slog.InfoContext(ctx, "Couple created for member", "member_id", profile.ID, "couple_id", couple.ID)
	return updated, nil
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	profile, err := s.resolveProfile(r.Context(), claims.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

type profileRequest struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatar_url,omitempty"`
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil && strings.TrimSpace(*req.Name) == "" {
		respondError(w, http.StatusUnprocessableEntity, "name cannot be empty")
		return
	}

	profile, err := s.deps.Storage.UpdateProfile(r.Context(), claims.UserID, storage.ProfilePatch{
		Name:      req.Name,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if profile == nil {
		respondDomainError(w, r, core.ErrNotAuthenticated)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}

func (s *Server) handleGetCouple(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	profile, err := s.resolveProfile(r.Context(), claims.UserID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	couple, err := s.deps.Storage.GetCouple(r.Context(), profile.CoupleID)
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if couple == nil {
		respondDomainError(w, r, core.ErrMissingCouple)
		return
	}
	respondJSON(w, http.StatusOK, couple)
}

type coupleRequest struct {
	Name string `json:"name"`
}

// handleCreateCouple names a couple explicitly and attaches it to the
// caller's profile, replacing any auto-created one.
func (s *Server) handleCreateCouple(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	var req coupleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		respondError(w, http.StatusUnprocessableEntity, "name cannot be empty")
		return
	}

	couple, err := s.deps.Storage.CreateCouple(r.Context(), name)
	if err != nil {
		respondDomainError(w, r, fmt.Errorf("create couple: %w", err))
		return
	}
	if _, err := s.deps.Storage.UpdateProfile(r.Context(), claims.UserID, storage.ProfilePatch{CoupleID: &couple.ID}); err != nil {
		respondDomainError(w, r, err)
		return
	}
	slog.InfoContext(r.Context(), "Couple created", "member_id", claims.UserID, "couple_id", couple.ID)
	respondJSON(w, http.StatusCreated, couple)
}

func (s *Server) handleUploadAvatar(w http.ResponseWriter, r *http.Request) {
	claims := claimsFrom(r.Context())
	if s.deps.Avatars == nil {
		respondError(w, http.StatusNotFound, "avatar uploads disabled")
		return
	}

	if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}
	file, header, err := r.FormFile("avatar")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing avatar file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxAvatarBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, "read avatar file")
		return
	}

	url, err := s.deps.Avatars.Put(claims.UserID, header.Filename, data)
	if err != nil {
		respondDomainError(w, r, fmt.Errorf("store avatar: %w", err))
		return
	}
	profile, err := s.deps.Storage.UpdateProfile(r.Context(), claims.UserID, storage.ProfilePatch{AvatarURL: &url})
	if err != nil {
		respondDomainError(w, r, err)
		return
	}
	if profile == nil {
		respondDomainError(w, r, core.ErrNotAuthenticated)
		return
	}
	respondJSON(w, http.StatusOK, profile)
}
