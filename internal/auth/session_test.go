package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"casal/internal/core"
	"casal/internal/storage"
)

type fakeStore struct {
	users    map[string]*storage.AuthUser
	profiles map[string]*core.Profile
	couples  map[string]*core.Couple
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[string]*storage.AuthUser),
		profiles: make(map[string]*core.Profile),
		couples:  make(map[string]*core.Couple),
	}
}

func (f *fakeStore) CreateAuthUser(_ context.Context, u *storage.AuthUser) error {
	if u.ID == "" {
		u.ID = "user-" + u.Email
	}
	f.users[u.Email] = u
	return nil
}

func (f *fakeStore) GetAuthUserByEmail(_ context.Context, email string) (*storage.AuthUser, error) {
	return f.users[email], nil
}

func (f *fakeStore) CreateProfile(_ context.Context, p core.Profile) (core.Profile, error) {
	copied := p
	f.profiles[p.ID] = &copied
	return p, nil
}

func (f *fakeStore) GetProfile(_ context.Context, id string) (*core.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) UpdateProfile(_ context.Context, id string, patch storage.ProfilePatch) (*core.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, errors.New("no such profile")
	}
	if patch.Name != nil {
		p.Name = *patch.Name
	}
	if patch.AvatarURL != nil {
		p.AvatarURL = *patch.AvatarURL
	}
	if patch.CoupleID != nil {
		p.CoupleID = *patch.CoupleID
	}
	copied := *p
	return &copied, nil
}

func (f *fakeStore) CreateCouple(_ context.Context, name string) (core.Couple, error) {
	c := core.Couple{ID: fmt.Sprintf("couple-%d", len(f.couples)+1), Name: name, CreatedAt: time.Now()}
	f.couples[c.ID] = &c
	return c, nil
}

func (f *fakeStore) GetCouple(_ context.Context, id string) (*core.Couple, error) {
	return f.couples[id], nil
}

type fakeBlobs struct{ lastURL string }

func (f *fakeBlobs) Put(memberID, filename string, _ []byte) (string, error) {
	f.lastURL = "/avatars/" + memberID + "-" + filename
	return f.lastURL, nil
}

func newTestSessionStore(store *fakeStore) *SessionStore {
	return NewSessionStore(
		NewPasswordAuthenticator(store),
		NewJWTManager("test-secret-key-32-bytes-long!!!", time.Hour),
		store,
		&fakeBlobs{},
	)
}

func TestSignUpCreatesProfileAndCouple(t *testing.T) {
	store := newFakeStore()
	sessions := newTestSessionStore(store)

	session, err := sessions.SignUp(context.Background(), "ana@example.com", "Ana", "segredo123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if session.Token == "" {
		t.Fatal("SignUp() returned empty token")
	}

	profile := sessions.Profile()
	if profile == nil {
		t.Fatal("Profile() = nil after sign-up")
	}
	if profile.Name != "Ana" {
		t.Errorf("profile name = %q, want Ana", profile.Name)
	}
	if profile.CoupleID == "" {
		t.Fatal("profile has no couple after sign-up")
	}

	couple := sessions.Couple()
	if couple == nil {
		t.Fatal("Couple() = nil after sign-up")
	}
	if couple.Name != "Casal de Ana" {
		t.Errorf("couple name = %q, want 'Casal de Ana'", couple.Name)
	}

	coupleID, err := sessions.CoupleID()
	if err != nil {
		t.Fatalf("CoupleID() error = %v", err)
	}
	if coupleID != couple.ID {
		t.Errorf("CoupleID() = %q, want %q", coupleID, couple.ID)
	}
}

func TestSignUpRejectsWeakPasswordAndDuplicates(t *testing.T) {
	store := newFakeStore()
	sessions := newTestSessionStore(store)

	if _, err := sessions.SignUp(context.Background(), "ana@example.com", "Ana", "curta"); !errors.Is(err, ErrWeakPassword) {
		t.Errorf("SignUp(short password) error = %v, want ErrWeakPassword", err)
	}

	if _, err := sessions.SignUp(context.Background(), "ana@example.com", "Ana", "segredo123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := sessions.SignUp(context.Background(), "ana@example.com", "Ana", "segredo123"); !errors.Is(err, ErrEmailExists) {
		t.Errorf("SignUp(duplicate) error = %v, want ErrEmailExists", err)
	}
}

func TestSignInAndSignOut(t *testing.T) {
	store := newFakeStore()
	sessions := newTestSessionStore(store)

	if _, err := sessions.SignUp(context.Background(), "ana@example.com", "Ana", "segredo123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	sessions.SignOut()
	if sessions.Session() != nil {
		t.Fatal("Session() != nil after sign-out")
	}
	if _, err := sessions.CoupleID(); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Errorf("CoupleID() error = %v, want ErrNotAuthenticated", err)
	}

	if _, err := sessions.SignIn(context.Background(), "ana@example.com", "errada123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("SignIn(wrong password) error = %v, want ErrInvalidCredentials", err)
	}

	var notified []*Session
	unsubscribe := sessions.OnStateChange(func(s *Session) {
		notified = append(notified, s)
	})
	defer unsubscribe()

	session, err := sessions.SignIn(context.Background(), "ana@example.com", "segredo123")
	if err != nil {
		t.Fatalf("SignIn() error = %v", err)
	}
	if session.Email != "ana@example.com" {
		t.Errorf("session email = %q", session.Email)
	}
	if len(notified) != 1 || notified[0] == nil {
		t.Fatalf("expected one non-nil state change, got %v", notified)
	}
}

func TestResumeRestoresSessionFromToken(t *testing.T) {
	store := newFakeStore()
	sessions := newTestSessionStore(store)

	signedIn, err := sessions.SignUp(context.Background(), "ana@example.com", "Ana", "segredo123")
	if err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	sessions.SignOut()

	resumed, err := sessions.Resume(context.Background(), signedIn.Token)
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if resumed.UserID != signedIn.UserID {
		t.Errorf("resumed user = %q, want %q", resumed.UserID, signedIn.UserID)
	}
	if sessions.Couple() == nil {
		t.Error("Couple() = nil after resume")
	}

	if _, err := sessions.Resume(context.Background(), "not-a-token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Resume(garbage) error = %v, want ErrInvalidToken", err)
	}
}

func TestUploadAvatarUpdatesProfile(t *testing.T) {
	store := newFakeStore()
	sessions := newTestSessionStore(store)

	if _, err := sessions.SignUp(context.Background(), "ana@example.com", "Ana", "segredo123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	profile, err := sessions.UploadAvatar(context.Background(), "foto.png", []byte{1, 2, 3})
	if err != nil {
		t.Fatalf("UploadAvatar() error = %v", err)
	}
	if profile.AvatarURL == "" {
		t.Error("avatar URL not set on profile")
	}
}

func TestCreateCoupleReplacesAutoCreated(t *testing.T) {
	store := newFakeStore()
	sessions := newTestSessionStore(store)

	if _, err := sessions.SignUp(context.Background(), "ana@example.com", "Ana", "segredo123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	autoID := sessions.Profile().CoupleID
	if autoID == "" {
		t.Fatal("SignUp() did not auto-create a couple")
	}

	var notified int
	unsubscribe := sessions.OnStateChange(func(s *Session) {
		if s != nil {
			notified++
		}
	})
	defer unsubscribe()

	couple, err := sessions.CreateCouple(context.Background(), "Nós Dois")
	if err != nil {
		t.Fatalf("CreateCouple() error = %v", err)
	}
	if couple.Name != "Nós Dois" {
		t.Errorf("couple name = %q, want %q", couple.Name, "Nós Dois")
	}
	if couple.ID == autoID {
		t.Error("CreateCouple() reused the auto-created couple")
	}
	if got := sessions.Profile().CoupleID; got != couple.ID {
		t.Errorf("profile couple = %q, want %q", got, couple.ID)
	}
	if got := sessions.Couple(); got == nil || got.ID != couple.ID {
		t.Errorf("Couple() = %+v, want the created couple", got)
	}
	if notified == 0 {
		t.Error("CreateCouple() did not notify listeners")
	}
}

func TestCreateCoupleRequiresSessionAndName(t *testing.T) {
	store := newFakeStore()
	sessions := newTestSessionStore(store)

	if _, err := sessions.CreateCouple(context.Background(), "Nós Dois"); !errors.Is(err, core.ErrNotAuthenticated) {
		t.Fatalf("CreateCouple() signed out error = %v, want ErrNotAuthenticated", err)
	}

	if _, err := sessions.SignUp(context.Background(), "ana@example.com", "Ana", "segredo123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}
	if _, err := sessions.CreateCouple(context.Background(), "   "); err == nil {
		t.Fatal("CreateCouple(blank) expected error")
	}
}
