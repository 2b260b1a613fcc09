package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"casal/internal/core"
	"casal/internal/storage"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrEmailExists        = errors.New("email already registered")
)

// CredentialStore is the slice of the repository the authenticator needs.
type CredentialStore interface {
	CreateAuthUser(ctx context.Context, u *storage.AuthUser) error
	GetAuthUserByEmail(ctx context.Context, email string) (*storage.AuthUser, error)
	CreateProfile(ctx context.Context, p core.Profile) (core.Profile, error)
}

// PasswordAuthenticator implements password sign-up and sign-in with bcrypt
// hashes. A profile row is created alongside every new credential.
type PasswordAuthenticator struct {
	store CredentialStore
}

func NewPasswordAuthenticator(store CredentialStore) *PasswordAuthenticator {
	return &PasswordAuthenticator{store: store}
}

func (a *PasswordAuthenticator) ValidateCredential(credential string) error {
	if len(credential) < 8 {
		return ErrWeakPassword
	}
	return nil
}

// Register creates a credential and its profile, returning the new user.
func (a *PasswordAuthenticator) Register(ctx context.Context, email, name, credential string) (*storage.AuthUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || name == "" {
		return nil, ErrInvalidCredentials
	}
	if err := a.ValidateCredential(credential); err != nil {
		return nil, err
	}

	existing, err := a.store.GetAuthUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("check existing email: %w", err)
	}
	if existing != nil {
		return nil, ErrEmailExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(credential), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &storage.AuthUser{
		Email:        email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.CreateAuthUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	if _, err := a.store.CreateProfile(ctx, core.Profile{ID: user.ID, Name: name}); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	return user, nil
}

// Authenticate verifies email and password, returning the user if valid.
func (a *PasswordAuthenticator) Authenticate(ctx context.Context, email, credential string) (*storage.AuthUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := a.store.GetAuthUserByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(credential)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
