/*
Package session is the single source of truth for authenticated identity.

It owns credential sign-up/sign-in/sign-out, the server-held session rows a
token must reference to stay valid, and the profile rows that carry
application-level user metadata.

CONTRACTS:
  - An identity may exist without a profile row: profile creation on
    sign-up is best effort (logged, never fatal), and sign-in self-heals
    the missing row. Downstream code must tolerate the gap.
  - Sign-out clears identity no matter what: if deleting the session row
    fails, the failure is logged and the caller still observes a
    signed-out state.
  - Credential and persistence failures come back as error values; nothing
    here panics into the caller.

Auth-state changes (sign-in, sign-out) are published to subscribers, which
is how in-process consumers track identity instead of caching it
themselves.
*/
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coverclarity/coverage-engine/auth"
)

// =============================================================================
// TYPES
// =============================================================================

// User is a credential row. PasswordHash never leaves this package.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	FullName     string
	CreatedAt    time.Time
}

// Profile is the application-level metadata row for an identity, separate
// from the credential store.
type Profile struct {
	ID        string
	Email     string
	FullName  string
	AvatarURL string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session is a server-held session row referenced by issued tokens.
type Session struct {
	ID        string
	UserID    string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Identity is the read-only view of the signed-in user handed to callers.
type Identity struct {
	ID       string
	Email    string
	FullName string
}

// AuthResult is returned by SignUp and SignIn.
type AuthResult struct {
	Token    string
	Identity Identity
}

// Store is the persistence needed by the provider, implemented by
// store/sqlite.
type Store interface {
	CreateUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	SaveProfile(ctx context.Context, p Profile) error
	GetProfile(ctx context.Context, id string) (*Profile, error)

	CreateSession(ctx context.Context, s Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSession          = errors.New("no active session")
)

// =============================================================================
// EVENTS
// =============================================================================

type EventKind string

const (
	EventSignedIn  EventKind = "signed_in"
	EventSignedOut EventKind = "signed_out"
)

// Event is an auth-state change notification.
type Event struct {
	Kind   EventKind
	UserID string
}

// =============================================================================
// PROVIDER
// =============================================================================

// Provider implements the session operations over a Store.
type Provider struct {
	store  Store
	secret string

	mu   sync.Mutex
	subs []chan Event
}

// NewProvider creates a provider signing tokens with the given secret.
func NewProvider(store Store, secret string) *Provider {
	return &Provider{store: store, secret: secret}
}

// SignUp creates a credential row, best-effort provisions a profile, and
// opens a session.
func (p *Provider) SignUp(ctx context.Context, email, password, fullName string) (*AuthResult, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if existing, _ := p.store.GetUserByEmail(ctx, email); existing != nil {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	user := User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		FullName:     strings.TrimSpace(fullName),
		CreatedAt:    time.Now().UTC(),
	}
	if err := p.store.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	// Best effort: an authenticated identity without a profile row is an
	// accepted inconsistency, healed on next sign-in.
	if err := p.ensureProfile(ctx, user); err != nil {
		log.Printf("session: profile creation for %s failed: %v", user.ID, err)
	}

	return p.openSession(ctx, user)
}

// SignIn verifies credentials and opens a session. A missing profile row
// (accounts created before profile provisioning existed) is created here.
func (p *Provider) SignIn(ctx context.Context, email, password string) (*AuthResult, error) {
	email = normalizeEmail(email)

	user, err := p.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil || !auth.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if err := p.ensureProfile(ctx, *user); err != nil {
		log.Printf("session: profile self-heal for %s failed: %v", user.ID, err)
	}

	return p.openSession(ctx, *user)
}

// SignOut revokes the session. The signed-out outcome is observed by the
// caller and subscribers even when revocation fails.
func (p *Provider) SignOut(ctx context.Context, sessionID string) error {
	var userID string
	if s, err := p.store.GetSession(ctx, sessionID); err == nil && s != nil {
		userID = s.UserID
	}

	err := p.store.DeleteSession(ctx, sessionID)
	if err != nil {
		log.Printf("session: sign-out of %s failed: %v", sessionID, err)
	}

	p.publish(Event{Kind: EventSignedOut, UserID: userID})
	return err
}

// Current resolves a session id to its identity.
func (p *Provider) Current(ctx context.Context, sessionID string) (*Identity, error) {
	s, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if s == nil || time.Now().After(s.ExpiresAt) {
		return nil, ErrNoSession
	}

	user, err := p.store.GetUser(ctx, s.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrNoSession
	}

	return &Identity{ID: user.ID, Email: user.Email, FullName: user.FullName}, nil
}

// SessionExists implements auth.SessionChecker.
func (p *Provider) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	s, err := p.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	return s != nil && time.Now().Before(s.ExpiresAt), nil
}

// SeedAdmin creates a seed account if it does not already exist.
func (p *Provider) SeedAdmin(ctx context.Context, email, password string) error {
	if existing, _ := p.store.GetUserByEmail(ctx, normalizeEmail(email)); existing != nil {
		return nil
	}
	_, err := p.SignUp(ctx, email, password, "Admin")
	return err
}

// Subscribe returns a channel of auth-state change events. Events are
// dropped, not blocked on, when a subscriber falls behind.
func (p *Provider) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	p.mu.Lock()
	p.subs = append(p.subs, ch)
	p.mu.Unlock()
	return ch
}

// Close tears down all subscriptions.
func (p *Provider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		close(ch)
	}
	p.subs = nil
}

// =============================================================================
// INTERNALS
// =============================================================================

func (p *Provider) openSession(ctx context.Context, user User) (*AuthResult, error) {
	now := time.Now().UTC()
	s := Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(auth.TokenTTL),
	}
	if err := p.store.CreateSession(ctx, s); err != nil {
		return nil, err
	}

	token, err := auth.GenerateToken(p.secret, user.ID, user.Email, s.ID)
	if err != nil {
		return nil, err
	}

	p.publish(Event{Kind: EventSignedIn, UserID: user.ID})

	return &AuthResult{
		Token:    token,
		Identity: Identity{ID: user.ID, Email: user.Email, FullName: user.FullName},
	}, nil
}

// ensureProfile creates the profile row when absent.
func (p *Provider) ensureProfile(ctx context.Context, user User) error {
	existing, err := p.store.GetProfile(ctx, user.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	fullName := user.FullName
	if fullName == "" {
		// Same fallback the profile RPC used: derive from the email.
		fullName = strings.SplitN(user.Email, "@", 2)[0]
	}

	now := time.Now().UTC()
	return p.store.SaveProfile(ctx, Profile{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  fullName,
		CreatedAt: now,
		UpdatedAt: now,
	})
}

func (p *Provider) publish(e Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, ch := range p.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
