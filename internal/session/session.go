// Package session holds the authentication state machine and the
// identity of the signed-in user.
package session

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"unicode/utf8"

	"tasker/internal/api"
)

// Status is the position of the session in its lifecycle.
type Status int

const (
	// Unchecked means no identity check has run yet.
	Unchecked Status = iota

	// Checking means the first identity check is in flight.
	Checking

	// Authenticated means the server confirmed a signed-in user.
	Authenticated

	// Unauthenticated means there is no valid session.
	Unauthenticated
)

func (s Status) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case Checking:
		return "checking"
	case Authenticated:
		return "authenticated"
	case Unauthenticated:
		return "unauthenticated"
	}
	return "unknown"
}

// State is a point-in-time snapshot of the session. User is a copy and
// is non-nil exactly when Status is Authenticated.
type State struct {
	Status    Status
	User      *api.User
	LastError string
}

// Session is the process-wide authentication state. All mutation goes
// through its operations; readers receive snapshots.
type Session struct {
	guard *api.SessionGuard

	mu        sync.Mutex
	status    Status
	user      *api.User
	lastError string
}

// New creates a session in the Unchecked state.
func New(guard *api.SessionGuard) *Session {
	return &Session{guard: guard, status: Unchecked}
}

// Snapshot returns a copy of the current session state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := State{Status: s.status, LastError: s.lastError}
	if s.user != nil {
		u := *s.user
		st.User = &u
	}
	return st
}

// WhoAmI asks the server who the session belongs to. The first call
// moves an Unchecked session to Checking; the settlement lands on
// Authenticated or Unauthenticated.
func (s *Session) WhoAmI(ctx context.Context) (api.User, error) {
	s.mu.Lock()
	if s.status == Unchecked {
		s.status = Checking
	}
	s.mu.Unlock()

	u, err := s.fetchMe(ctx)
	if err != nil {
		s.mu.Lock()
		s.status = Unauthenticated
		s.user = nil
		s.mu.Unlock()
		return api.User{}, err
	}

	s.setAuthenticated(u)
	return u, nil
}

// Login signs in with a form-encoded credential pair, then fetches the
// user object. State changes only on settlement.
func (s *Session) Login(ctx context.Context, username, password string) (api.User, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	_, err := s.guard.Do(ctx, &api.Request{Method: http.MethodPost, Path: "/login", Form: form})
	if err != nil {
		s.recordError(err)
		return api.User{}, err
	}

	return s.confirm(ctx)
}

// Register creates an account and signs it in. Field constraints are
// checked locally first; violations never reach the network.
func (s *Session) Register(ctx context.Context, username, email, password1, password2 string) (api.User, error) {
	if err := validateRegistration(username, email, password1, password2); err != nil {
		s.recordError(err)
		return api.User{}, err
	}

	body := map[string]string{
		"username":  username,
		"email":     email,
		"password1": password1,
		"password2": password2,
	}
	_, err := s.guard.Do(ctx, &api.Request{Method: http.MethodPost, Path: "/register", JSON: body})
	if err != nil {
		s.recordError(err)
		return api.User{}, err
	}

	return s.confirm(ctx)
}

// Logout ends the session server-side and clears the local identity.
func (s *Session) Logout(ctx context.Context) error {
	_, err := s.guard.Do(ctx, &api.Request{Method: http.MethodPost, Path: "/logout"})
	if err != nil {
		s.recordError(err)
		return err
	}

	s.mu.Lock()
	s.status = Unauthenticated
	s.user = nil
	s.lastError = ""
	s.mu.Unlock()
	return nil
}

// Expire drives the session to Unauthenticated. Wired as the session
// guard's refresh-failure hook.
func (s *Session) Expire() {
	s.mu.Lock()
	s.status = Unauthenticated
	s.user = nil
	s.lastError = "session expired"
	s.mu.Unlock()
}

// confirm fetches /me after a successful login or register and settles
// the session on the result.
func (s *Session) confirm(ctx context.Context) (api.User, error) {
	u, err := s.fetchMe(ctx)
	if err != nil {
		s.recordError(err)
		return api.User{}, err
	}
	s.setAuthenticated(u)
	return u, nil
}

func (s *Session) fetchMe(ctx context.Context) (api.User, error) {
	resp, err := s.guard.Do(ctx, &api.Request{Method: http.MethodGet, Path: "/me"})
	if err != nil {
		return api.User{}, err
	}
	var u api.User
	if err := resp.Decode(&u); err != nil {
		return api.User{}, err
	}
	return u, nil
}

func (s *Session) setAuthenticated(u api.User) {
	s.mu.Lock()
	s.status = Authenticated
	s.user = &u
	s.lastError = ""
	s.mu.Unlock()
}

func (s *Session) recordError(err error) {
	s.mu.Lock()
	s.lastError = err.Error()
	s.mu.Unlock()
}

// Registration constraints mirror the server's schema, checked here so
// obviously bad input fails without a round trip.
const (
	usernameMinLen = 3
	usernameMaxLen = 30
	passwordMinLen = 8
)

func validateRegistration(username, email, password1, password2 string) error {
	if n := utf8.RuneCountInString(username); n < usernameMinLen || n > usernameMaxLen {
		return api.NewValidation("username must be %d to %d characters", usernameMinLen, usernameMaxLen)
	}
	if !strings.Contains(email, "@") {
		return api.NewValidation("invalid email address")
	}
	if utf8.RuneCountInString(password1) < passwordMinLen {
		return api.NewValidation("password must be at least %d characters", passwordMinLen)
	}
	if password1 != password2 {
		return api.NewValidation("the passwords don't match")
	}
	return nil
}
