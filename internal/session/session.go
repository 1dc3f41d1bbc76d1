// Package session tracks the signed-in user for the lifetime of a process.
//
// The service hydrates once at startup: if tokens are on disk it asks the
// backend who they belong to. A definitive rejection ends the session; a
// network failure does not, because stored tokens are still presumed good
// when the backend simply could not be reached.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/masjid-network/masjidctl/internal/api"
	"github.com/masjid-network/masjidctl/internal/token"
)

// State is a point-in-time snapshot of the session.
type State struct {
	// User is the signed-in user, nil when signed out.
	User *api.User
	// Authenticated reports whether a user is signed in.
	Authenticated bool
	// Loading is true from construction until hydration finishes. Access
	// decisions must wait while it is set rather than guessing.
	Loading bool
}

// Result is the outcome of a user-facing session operation. Failures are
// values here, not errors: a wrong password is an answer, not a fault.
type Result struct {
	OK      bool
	Message string
	User    *api.User
}

func ok(user *api.User) Result { return Result{OK: true, User: user} }
func fail(msg string) Result { return Result{Message: msg} }

// Service owns the session state. It is safe for concurrent use.
type Service struct {
	client *api.Client
	tokens *token.Store
	logger *slog.Logger

	mu    sync.RWMutex
	state State

	hydrateOnce sync.Once

	// onChange observers are notified after every state transition.
	obsMu     sync.Mutex
	observers []func(State)

	// navigate is invoked when the session ends and the UI should move
	// to the sign-in surface.
	navigate func(target string)
}

// Option configures a Service.
type Option func(*Service)

// WithNavigator sets the redirect hook fired when the session ends.
func WithNavigator(fn func(target string)) Option {
	return func(s *Service) { s.navigate = fn }
}

// New builds a session service over the given API client. The service starts
// in the loading state; call Init to hydrate.
func New(client *api.Client, tokens *token.Store, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		client: client,
		tokens: tokens,
		logger: logger,
		state:  State{Loading: true},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init hydrates the session from stored tokens. It runs at most once; later
// calls are no-ops. Init never returns an error: whatever happens, the
// service lands in a usable state.
func (s *Service) Init(ctx context.Context) {
	s.hydrateOnce.Do(func() { s.hydrate(ctx) })
}

func (s *Service) hydrate(ctx context.Context) {
	if s.tokens.Get(token.KindAccess) == "" && s.tokens.Get(token.KindRefresh) == "" {
		s.logger.Debug("no stored tokens, starting signed out")
		s.setState(State{})
		return
	}

	user, err := s.client.Me(ctx)
	if err == nil {
		s.logger.Debug("session hydrated", "user", user.Email)
		s.setState(State{User: user, Authenticated: true})
		return
	}

	if api.IsAuthRejected(err) {
		// The backend looked at the tokens and said no. That is final.
		s.logger.Info("stored session rejected, signing out", "error", err)
		s.tokens.Clear()
		s.setState(State{})
		return
	}

	// Transport trouble: the tokens were never judged. Keep them and treat
	// the session as optimistically signed in; the first real request will
	// settle it.
	s.logger.Warn("hydration unreachable, keeping stored session", "error", err)
	s.setState(State{Authenticated: true})
}

// Snapshot returns the current session state.
func (s *Service) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Subscribe registers an observer called after every state change.
func (s *Service) Subscribe(fn func(State)) {
	s.obsMu.Lock()
	s.observers = append(s.observers, fn)
	s.obsMu.Unlock()
}

func (s *Service) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	s.obsMu.Lock()
	observers := make([]func(State), len(s.observers))
	copy(observers, s.observers)
	s.obsMu.Unlock()
	for _, fn := range observers {
		fn(st)
	}
}

// HandleExpiry is wired as the API client's session-expired hook. The client
// has already cleared the tokens; this resets local state and redirects.
func (s *Service) HandleExpiry() {
	s.logger.Info("session expired")
	s.setState(State{})
	if s.navigate != nil {
		s.navigate("/login")
	}
}

// Login signs in with the given credentials.
func (s *Service) Login(ctx context.Context, creds api.Credentials) Result {
	user, err := s.client.Login(ctx, creds)
	if err != nil {
		return fail(loginMessage(err))
	}
	s.setState(State{User: user, Authenticated: true})
	return ok(user)
}

// Register creates an account and signs in as it.
func (s *Service) Register(ctx context.Context, form api.RegisterForm) Result {
	user, err := s.client.Register(ctx, form)
	if err != nil {
		return fail(registerMessage(err))
	}
	s.setState(State{User: user, Authenticated: true})
	return ok(user)
}

// Logout ends the session. The local session always ends, even when the
// backend call fails; a dead server must not trap the user signed in.
func (s *Service) Logout(ctx context.Context) Result {
	if err := s.client.Logout(ctx); err != nil {
		s.logger.Warn("logout call failed, ending session locally", "error", err)
	}
	s.tokens.Clear()
	s.setState(State{})
	if s.navigate != nil {
		s.navigate("/login")
	}
	return Result{OK: true}
}

// ChangePassword replaces the account password. Field-level backend
// rejections surface as the result message, most specific field first.
func (s *Service) ChangePassword(ctx context.Context, oldPassword, newPassword, confirm string) Result {
	err := s.client.ChangePassword(ctx, oldPassword, newPassword, confirm)
	if err == nil {
		return Result{OK: true}
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.FieldError("old_password", "new_password", "new_password_confirm"); msg != "" {
			return fail(msg)
		}
		return fail(apiErr.Message())
	}
	return fail("Could not change password. Please try again.")
}

// UpdateProfile applies a partial profile update and refreshes local state.
func (s *Service) UpdateProfile(ctx context.Context, update api.ProfileUpdate) Result {
	user, err := s.client.UpdateProfile(ctx, update)
	if err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			return fail(apiErr.Message())
		}
		return fail("Could not update profile. Please try again.")
	}
	s.setState(State{User: user, Authenticated: true})
	return ok(user)
}

// RefreshUser re-fetches the user record, keeping local state in step with
// changes made elsewhere.
func (s *Service) RefreshUser(ctx context.Context) Result {
	user, err := s.client.Me(ctx)
	if err != nil {
		if api.IsAuthRejected(err) {
			s.setState(State{})
			return fail("Session expired. Please sign in again.")
		}
		return fail("Could not refresh profile.")
	}
	s.setState(State{User: user, Authenticated: true})
	return ok(user)
}

// DeleteAccount removes the account and ends the session.
func (s *Service) DeleteAccount(ctx context.Context) Result {
	if err := s.client.DeleteAccount(ctx); err != nil {
		var apiErr *api.APIError
		if errors.As(err, &apiErr) {
			return fail(apiErr.Message())
		}
		return fail("Could not delete account. Please try again.")
	}
	s.setState(State{})
	if s.navigate != nil {
		s.navigate("/login")
	}
	return Result{OK: true}
}

// Close releases the service. Observers are dropped so a disposed service
// cannot call back into torn-down consumers.
func (s *Service) Close() {
	s.obsMu.Lock()
	s.observers = nil
	s.obsMu.Unlock()
}

func loginMessage(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.FieldError("email", "password"); msg != "" {
			return msg
		}
		return apiErr.Message()
	}
	return "Could not reach the server. Please try again."
}

func registerMessage(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.FieldError("username", "email", "password", "phone"); msg != "" {
			return msg
		}
		return apiErr.Message()
	}
	return "Could not reach the server. Please try again."
}
