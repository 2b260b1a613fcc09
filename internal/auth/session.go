package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"casal/internal/core"
	"casal/internal/storage"
)

// Session is the authenticated identity held by the store.
type Session struct {
	UserID string
	Email  string
	Token  string
}

// ProfileStore is the slice of the repository the session store needs.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*core.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch storage.ProfilePatch) (*core.Profile, error)
	CreateCouple(ctx context.Context, name string) (core.Couple, error)
	GetCouple(ctx context.Context, id string) (*core.Couple, error)
}

// BlobStore persists avatar uploads and returns a public URL.
type BlobStore interface {
	Put(memberID, filename string, data []byte) (string, error)
}

// SessionStore tracks the signed-in member, their profile and couple. A member
// without a couple gets one created on first profile load, so downstream
// consumers can always scope queries by couple.
type SessionStore struct {
	authenticator *PasswordAuthenticator
	tokens        *JWTManager
	profiles      ProfileStore
	blobs         BlobStore

	mu        sync.RWMutex
	session   *Session
	profile   *core.Profile
	couple    *core.Couple
	listeners map[int]func(*Session)
	nextID    int
}

func NewSessionStore(authenticator *PasswordAuthenticator, tokens *JWTManager, profiles ProfileStore, blobs BlobStore) *SessionStore {
	return &SessionStore{
		authenticator: authenticator,
		tokens:        tokens,
		profiles:      profiles,
		blobs:         blobs,
		listeners:     make(map[int]func(*Session)),
	}
}

// OnStateChange registers fn to run on sign-in and sign-out. The returned
// func unsubscribes.
func (s *SessionStore) OnStateChange(fn func(*Session)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *SessionStore) notify(session *Session) {
	s.mu.RLock()
	fns := make([]func(*Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()

	for _, fn := range fns {
		fn(session)
	}
}

// Session returns the current session, or nil when signed out.
func (s *SessionStore) Session() *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Profile returns the signed-in member's profile, or nil.
func (s *SessionStore) Profile() *core.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.profile
}

// Couple returns the resolved couple, or nil while it is still loading.
func (s *SessionStore) Couple() *core.Couple {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.couple
}

// CoupleID returns the scoped couple id, or ErrMissingCouple when the profile
// has not resolved one yet.
func (s *SessionStore) CoupleID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return "", core.ErrNotAuthenticated
	}
	if s.couple == nil {
		return "", core.ErrMissingCouple
	}
	return s.couple.ID, nil
}

// SignUp registers a new member and signs them in.
func (s *SessionStore) SignUp(ctx context.Context, email, name, password string) (*Session, error) {
	user, err := s.authenticator.Register(ctx, email, name, password)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, user)
}

// SignIn authenticates an existing member.
func (s *SessionStore) SignIn(ctx context.Context, email, password string) (*Session, error) {
	user, err := s.authenticator.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, user)
}

func (s *SessionStore) establish(ctx context.Context, user *storage.AuthUser) (*Session, error) {
	token, err := s.tokens.Generate(user)
	if err != nil {
		return nil, err
	}

	session := &Session{UserID: user.ID, Email: user.Email, Token: token}

	s.mu.Lock()
	s.session = session
	s.profile = nil
	s.couple = nil
	s.mu.Unlock()

	if err := s.loadProfile(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to load profile after sign-in",
			"user_id", user.ID, "error", err)
	}

	s.notify(session)
	return session, nil
}

// Resume restores a session from a previously issued token.
func (s *SessionStore) Resume(ctx context.Context, token string) (*Session, error) {
	claims, err := s.tokens.Validate(token)
	if err != nil {
		return nil, err
	}

	session := &Session{UserID: claims.UserID, Email: claims.Email, Token: token}

	s.mu.Lock()
	s.session = session
	s.profile = nil
	s.couple = nil
	s.mu.Unlock()

	if err := s.loadProfile(ctx); err != nil {
		slog.ErrorContext(ctx, "Failed to load profile on resume",
			"user_id", claims.UserID, "error", err)
	}

	s.notify(session)
	return session, nil
}

// loadProfile fetches the member's profile and resolves their couple,
// creating one when the profile has none yet.
func (s *SessionStore) loadProfile(ctx context.Context) error {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return core.ErrNotAuthenticated
	}

	profile, err := s.profiles.GetProfile(ctx, session.UserID)
	if err != nil {
		return fmt.Errorf("fetch profile: %w", err)
	}
	if profile == nil {
		return fmt.Errorf("no profile for user %s", session.UserID)
	}

	var couple *core.Couple
	if profile.CoupleID == "" {
		created, err := s.profiles.CreateCouple(ctx, "Casal de "+profile.Name)
		if err != nil {
			return fmt.Errorf("create couple: %w", err)
		}
		profile, err = s.profiles.UpdateProfile(ctx, profile.ID, storage.ProfilePatch{CoupleID: &created.ID})
		if err != nil {
			return fmt.Errorf("attach couple to profile: %w", err)
		}
		couple = &created
		slog.InfoContext(ctx, "Couple auto-created for member",
			"member_id", profile.ID, "couple_id", created.ID)
	} else {
		couple, err = s.profiles.GetCouple(ctx, profile.CoupleID)
		if err != nil {
			return fmt.Errorf("fetch couple: %w", err)
		}
	}

	s.mu.Lock()
	s.profile = profile
	s.couple = couple
	s.mu.Unlock()
	return nil
}

// SignOut clears the session.
func (s *SessionStore) SignOut() {
	s.mu.Lock()
	s.session = nil
	s.profile = nil
	s.couple = nil
	s.mu.Unlock()

	s.notify(nil)
}

// UpdateProfile patches the signed-in member's name or avatar URL.
func (s *SessionStore) UpdateProfile(ctx context.Context, patch storage.ProfilePatch) (*core.Profile, error) {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}

	profile, err := s.profiles.UpdateProfile(ctx, session.UserID, patch)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.profile = profile
	s.mu.Unlock()
	return profile, nil
}

// CreateCouple creates a couple with the given name and attaches it to the
// signed-in member's profile, replacing any couple attached before.
// Listeners are notified so dependent stores resubscribe to the new scope.
func (s *SessionStore) CreateCouple(ctx context.Context, name string) (*core.Couple, error) {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}
	if strings.TrimSpace(name) == "" {
		return nil, errors.New("empty couple name")
	}

	created, err := s.profiles.CreateCouple(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, fmt.Errorf("create couple: %w", err)
	}
	profile, err := s.profiles.UpdateProfile(ctx, session.UserID, storage.ProfilePatch{CoupleID: &created.ID})
	if err != nil {
		return nil, fmt.Errorf("attach couple to profile: %w", err)
	}

	s.mu.Lock()
	s.profile = profile
	s.couple = &created
	s.mu.Unlock()

	slog.InfoContext(ctx, "Couple created", "member_id", profile.ID, "couple_id", created.ID)
	s.notify(session)
	return &created, nil
}

// UploadAvatar stores the image bytes and points the profile at the new URL.
func (s *SessionStore) UploadAvatar(ctx context.Context, filename string, data []byte) (*core.Profile, error) {
	s.mu.RLock()
	session := s.session
	s.mu.RUnlock()
	if session == nil {
		return nil, core.ErrNotAuthenticated
	}

	url, err := s.blobs.Put(session.UserID, filename, data)
	if err != nil {
		return nil, fmt.Errorf("store avatar: %w", err)
	}
	return s.UpdateProfile(ctx, storage.ProfilePatch{AvatarURL: &url})
}
