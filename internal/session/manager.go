// Package session owns the authenticated identity against the provider.
//
// One Manager instance is shared by every portfolio fetcher. All token
// mutation funnels through the serialized re-authentication path, so a
// burst of simultaneous 401s across portfolios results in a single login
// call with every caller awaiting the same result.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "investing_monitor/internal/errors"
	"investing_monitor/internal/investing"
)

// State is the session lifecycle state.
type State int

const (
	// Unauthenticated means no token has been obtained yet.
	Unauthenticated State = iota
	// Valid means the current token is believed usable. The provider does
	// not publish token expiry, so a Valid token is used until a call
	// rejects it.
	Valid
	// Expired means the token was rejected and the next use re-authenticates.
	Expired
	// Invalid means the provider rejected the credentials themselves.
	// Terminal until the credentials are replaced.
	Invalid
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Valid:
		return "valid"
	case Expired:
		return "expired"
	case Invalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Token is the identity presented on provider calls.
type Token struct {
	Value string
	UDID  string
}

// Authenticator performs the provider login call.
type Authenticator interface {
	Login(ctx context.Context, email, password, udid string) (*investing.LoginResult, error)
}

// Credentials are the plaintext login details, held only for the duration
// of an authentication call.
type Credentials struct {
	Email    string
	Password string
	UDID     string
}

// CredentialSource supplies credentials on demand, typically decrypting
// them from storage. The Manager never retains the plaintext password.
type CredentialSource func(ctx context.Context) (Credentials, error)

// Store persists the issued token across restarts. Optional.
type Store interface {
	SaveToken(token string, issuedAt time.Time) error
	LoadToken() (token string, issuedAt time.Time, err error)
}

// ErrNoCredentials is returned when no credentials have been configured.
var ErrNoCredentials = errors.New("no credentials configured")

// Manager handles the provider session lifecycle: login, token reuse,
// silent re-authentication and escalation to a hard-failure state.
type Manager struct {
	auth  Authenticator
	creds CredentialSource
	store Store

	group singleflight.Group

	mu       sync.RWMutex
	token    string
	udid     string
	state    State
	issuedAt time.Time
}

// NewManager creates a session manager.
func NewManager(auth Authenticator, creds CredentialSource) *Manager {
	return &Manager{
		auth:  auth,
		creds: creds,
	}
}

// WithStore attaches a token store and loads any cached token from it.
// A restored token starts out believed-valid with unknown expiry; the
// first rejected call invalidates it and triggers re-authentication.
func (m *Manager) WithStore(store Store) *Manager {
	m.store = store
	token, issuedAt, err := store.LoadToken()
	if err != nil {
		log.Printf("[Session] Could not load cached token: %v", err)
		return m
	}
	if token != "" {
		m.mu.Lock()
		m.token = token
		m.issuedAt = issuedAt
		m.state = Valid
		m.mu.Unlock()
		log.Printf("[Session] Restored cached token issued at %s", issuedAt.Format(time.RFC3339))
	}
	return m
}

// State returns the current session state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Token returns a usable token, re-authenticating first if needed.
// Concurrent callers during re-authentication share a single login call.
func (m *Manager) Token(ctx context.Context) (Token, error) {
	m.mu.RLock()
	switch m.state {
	case Valid:
		tok := Token{Value: m.token, UDID: m.udid}
		m.mu.RUnlock()
		if tok.UDID == "" {
			// Token restored from cache before credentials were read.
			return m.withUDID(ctx, tok)
		}
		return tok, nil
	case Invalid:
		m.mu.RUnlock()
		return Token{}, apperrors.New(apperrors.ErrInvalidCredentials, "provider credentials rejected")
	}
	m.mu.RUnlock()

	return m.authenticate(ctx)
}

// withUDID fills in the device ID for a cached token.
func (m *Manager) withUDID(ctx context.Context, tok Token) (Token, error) {
	creds, err := m.creds(ctx)
	if err != nil {
		return Token{}, apperrors.Wrap(apperrors.ErrNetwork, "loading credentials", err)
	}
	m.mu.Lock()
	m.udid = creds.UDID
	m.mu.Unlock()
	tok.UDID = creds.UDID
	return tok, nil
}

// authenticate performs a serialized login. Callers that arrive while a
// login is in flight wait for its result instead of issuing their own.
func (m *Manager) authenticate(ctx context.Context) (Token, error) {
	v, err, _ := m.group.Do("authenticate", func() (any, error) {
		// Re-check under the lock: another caller may have finished
		// authenticating between our fast path and here.
		m.mu.RLock()
		if m.state == Valid {
			tok := Token{Value: m.token, UDID: m.udid}
			m.mu.RUnlock()
			return tok, nil
		}
		if m.state == Invalid {
			m.mu.RUnlock()
			return Token{}, apperrors.New(apperrors.ErrInvalidCredentials, "provider credentials rejected")
		}
		m.mu.RUnlock()

		creds, err := m.creds(ctx)
		if err != nil {
			if errors.Is(err, ErrNoCredentials) {
				return Token{}, apperrors.Wrap(apperrors.ErrInvalidCredentials, "no credentials configured", err)
			}
			return Token{}, apperrors.Wrap(apperrors.ErrNetwork, "loading credentials", err)
		}

		result, err := m.auth.Login(ctx, creds.Email, creds.Password, creds.UDID)
		if err != nil {
			if errors.Is(err, investing.ErrAuthenticationFailed) {
				m.mu.Lock()
				m.state = Invalid
				m.token = ""
				m.mu.Unlock()
				log.Printf("[Session] Authentication rejected for %s", creds.Email)
				return Token{}, apperrors.Wrap(apperrors.ErrInvalidCredentials, "provider rejected credentials", err)
			}
			return Token{}, apperrors.Wrap(apperrors.ErrNetwork, "authentication call failed", err)
		}

		now := time.Now()
		m.mu.Lock()
		m.token = result.Token
		m.udid = creds.UDID
		m.state = Valid
		m.issuedAt = now
		m.mu.Unlock()

		if m.store != nil {
			if err := m.store.SaveToken(result.Token, now); err != nil {
				log.Printf("[Session] Could not cache token: %v", err)
			}
		}

		log.Printf("[Session] Authenticated as %s", result.UserEmail)
		return Token{Value: result.Token, UDID: creds.UDID}, nil
	})
	if err != nil {
		return Token{}, err
	}
	return v.(Token), nil
}

// Invalidate marks the given token expired so the next Token call
// re-authenticates. The comparison ensures a caller holding a stale token
// cannot invalidate a newer one issued in the meantime.
func (m *Manager) Invalidate(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Valid && m.token == token {
		m.state = Expired
		log.Printf("[Session] Token invalidated, will re-authenticate on next use")
	}
}

// MarkInvalid forces the terminal invalid-credentials state. Used when a
// freshly issued token is rejected, which means the credentials themselves
// no longer grant access.
func (m *Manager) MarkInvalid() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Invalid
	m.token = ""
}

// Reset clears the session after a credential change. The next Token call
// authenticates with the new credentials.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = Unauthenticated
	m.token = ""
	m.udid = ""
}
