package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	apperrors "investing_monitor/internal/errors"
	"investing_monitor/internal/investing"
)

// fakeAuth counts login calls and returns a fresh token per call.
type fakeAuth struct {
	mu     sync.Mutex
	calls  int
	err    error
	gate   chan struct{} // when set, Login blocks until closed
	opened chan struct{} // closed when the first Login starts
}

func (f *fakeAuth) Login(ctx context.Context, email, password, udid string) (*investing.LoginResult, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	gate := f.gate
	opened := f.opened
	loginErr := f.err
	f.mu.Unlock()

	if opened != nil && n == 1 {
		close(opened)
	}
	if gate != nil {
		<-gate
	}
	if loginErr != nil {
		return nil, loginErr
	}
	return &investing.LoginResult{
		Token:     fmt.Sprintf("token-%d", n),
		UserEmail: email,
	}, nil
}

func (f *fakeAuth) loginCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func staticCreds(email, password, udid string) CredentialSource {
	return func(ctx context.Context) (Credentials, error) {
		return Credentials{Email: email, Password: password, UDID: udid}, nil
	}
}

func TestToken_AuthenticatesOnceThenReuses(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, staticCreds("user@example.com", "pw", "udid-1"))

	tok1, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("first Token() error = %v", err)
	}
	tok2, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("second Token() error = %v", err)
	}

	if tok1 != tok2 {
		t.Errorf("tokens differ: %+v vs %+v", tok1, tok2)
	}
	if tok1.Value != "token-1" || tok1.UDID != "udid-1" {
		t.Errorf("token = %+v", tok1)
	}
	if n := auth.loginCalls(); n != 1 {
		t.Errorf("login called %d times, want 1", n)
	}
	if m.State() != Valid {
		t.Errorf("state = %v, want Valid", m.State())
	}
}

func TestToken_ConcurrentCallersShareOneLogin(t *testing.T) {
	auth := &fakeAuth{
		gate:   make(chan struct{}),
		opened: make(chan struct{}),
	}
	m := NewManager(auth, staticCreds("user@example.com", "pw", "udid-1"))

	const callers = 10
	tokens := make(chan Token, callers)
	errs := make(chan error, callers)
	var wg sync.WaitGroup

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := m.Token(context.Background())
			tokens <- tok
			errs <- err
		}()
	}

	// Hold the login open until every caller has had a chance to pile up.
	<-auth.opened
	time.Sleep(50 * time.Millisecond)
	close(auth.gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		if err := <-errs; err != nil {
			t.Errorf("caller %d: Token() error = %v", i, err)
		}
		if tok := <-tokens; tok.Value != "token-1" {
			t.Errorf("caller %d: token = %q, want token-1", i, tok.Value)
		}
	}
	if n := auth.loginCalls(); n != 1 {
		t.Errorf("login called %d times, want 1 (singleflight)", n)
	}
}

func TestToken_InvalidCredentialsTerminal(t *testing.T) {
	auth := &fakeAuth{err: fmt.Errorf("%w: bad password", investing.ErrAuthenticationFailed)}
	m := NewManager(auth, staticCreds("user@example.com", "wrong", "udid-1"))

	_, err := m.Token(context.Background())
	if !apperrors.IsInvalidCredentials(err) {
		t.Fatalf("Token() error = %v, want invalid credentials", err)
	}
	if m.State() != Invalid {
		t.Errorf("state = %v, want Invalid", m.State())
	}

	// Further calls fail fast without another login attempt.
	_, err = m.Token(context.Background())
	if !apperrors.IsInvalidCredentials(err) {
		t.Fatalf("second Token() error = %v, want invalid credentials", err)
	}
	if n := auth.loginCalls(); n != 1 {
		t.Errorf("login called %d times, want 1 (terminal state)", n)
	}
}

func TestToken_NetworkErrorIsRetryable(t *testing.T) {
	auth := &fakeAuth{err: errors.New("connection refused")}
	m := NewManager(auth, staticCreds("user@example.com", "pw", "udid-1"))

	_, err := m.Token(context.Background())
	if !errors.Is(err, apperrors.ErrNetwork) {
		t.Fatalf("Token() error = %v, want network error", err)
	}
	if m.State() == Invalid {
		t.Error("transient login failure must not mark credentials invalid")
	}

	// Once the network recovers, authentication succeeds.
	auth.mu.Lock()
	auth.err = nil
	auth.mu.Unlock()
	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() after recovery error = %v", err)
	}
	if tok.Value == "" {
		t.Error("empty token after recovery")
	}
}

func TestToken_NoCredentials(t *testing.T) {
	m := NewManager(&fakeAuth{}, func(ctx context.Context) (Credentials, error) {
		return Credentials{}, ErrNoCredentials
	})

	_, err := m.Token(context.Background())
	if !apperrors.IsInvalidCredentials(err) {
		t.Errorf("Token() error = %v, want invalid credentials", err)
	}
}

func TestInvalidate_CompareAndSet(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, staticCreds("user@example.com", "pw", "udid-1"))

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	// A stale token value must not invalidate the current one.
	m.Invalidate("some-older-token")
	if m.State() != Valid {
		t.Errorf("state after stale Invalidate = %v, want Valid", m.State())
	}

	m.Invalidate(tok.Value)
	if m.State() != Expired {
		t.Errorf("state after Invalidate = %v, want Expired", m.State())
	}

	// The next Token call re-authenticates.
	tok2, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() after Invalidate error = %v", err)
	}
	if tok2.Value != "token-2" {
		t.Errorf("token after re-auth = %q, want token-2", tok2.Value)
	}
	if n := auth.loginCalls(); n != 2 {
		t.Errorf("login called %d times, want 2", n)
	}
}

func TestMarkInvalid_ForcesTerminalState(t *testing.T) {
	auth := &fakeAuth{}
	m := NewManager(auth, staticCreds("user@example.com", "pw", "udid-1"))

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}

	m.MarkInvalid()
	if _, err := m.Token(context.Background()); !apperrors.IsInvalidCredentials(err) {
		t.Errorf("Token() after MarkInvalid error = %v, want invalid credentials", err)
	}
}

func TestReset_ClearsTerminalState(t *testing.T) {
	auth := &fakeAuth{err: fmt.Errorf("%w", investing.ErrAuthenticationFailed)}
	m := NewManager(auth, staticCreds("user@example.com", "pw", "udid-1"))

	if _, err := m.Token(context.Background()); !apperrors.IsInvalidCredentials(err) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}

	// New credentials configured: clear the error and try again.
	auth.mu.Lock()
	auth.err = nil
	auth.mu.Unlock()
	m.Reset()

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() after Reset error = %v", err)
	}
	if tok.Value == "" {
		t.Error("empty token after Reset")
	}
}

// memStore is an in-memory token store.
type memStore struct {
	token    string
	issuedAt time.Time
	saves    int
}

func (s *memStore) SaveToken(token string, issuedAt time.Time) error {
	s.token = token
	s.issuedAt = issuedAt
	s.saves++
	return nil
}

func (s *memStore) LoadToken() (string, time.Time, error) {
	return s.token, s.issuedAt, nil
}

func TestWithStore_RestoresCachedToken(t *testing.T) {
	auth := &fakeAuth{}
	store := &memStore{token: "cached-token", issuedAt: time.Now().Add(-time.Hour)}
	m := NewManager(auth, staticCreds("user@example.com", "pw", "udid-1")).WithStore(store)

	tok, err := m.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if tok.Value != "cached-token" {
		t.Errorf("token = %q, want cached-token", tok.Value)
	}
	if tok.UDID != "udid-1" {
		t.Errorf("UDID = %q, want udid-1 (filled from credentials)", tok.UDID)
	}
	if n := auth.loginCalls(); n != 0 {
		t.Errorf("login called %d times, want 0 (restored from cache)", n)
	}
}

func TestWithStore_PersistsFreshToken(t *testing.T) {
	auth := &fakeAuth{}
	store := &memStore{}
	m := NewManager(auth, staticCreds("user@example.com", "pw", "udid-1")).WithStore(store)

	if _, err := m.Token(context.Background()); err != nil {
		t.Fatalf("Token() error = %v", err)
	}
	if store.token != "token-1" {
		t.Errorf("stored token = %q, want token-1", store.token)
	}
	if store.saves != 1 {
		t.Errorf("SaveToken called %d times, want 1", store.saves)
	}
}
