// Package session keeps a client's authentication state in memory and in
// sync with its token store.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/umkm-portal/internal/auth"
	"github.com/spec-kit/umkm-portal/internal/authapi"
	"github.com/spec-kit/umkm-portal/internal/domain"
	"github.com/spec-kit/umkm-portal/internal/tokenstore"
)

// Status is the coarse state of a session.
type Status string

const (
	StatusUnauthenticated Status = "unauthenticated"
	StatusAuthenticating  Status = "authenticating"
	StatusAuthenticated   Status = "authenticated"
)

var (
	// ErrNoSession is returned by RefreshUser when no token is held.
	ErrNoSession = errors.New("no active session")
	// ErrSuperseded is returned when a later login or logout overtook the call.
	ErrSuperseded = errors.New("session changed while the request was in flight")
	// ErrSessionInvalidated wraps the failure that ended a session.
	ErrSessionInvalidated = errors.New("session invalidated")
	// ErrRoleMismatch means the profile role diverged from the token role.
	ErrRoleMismatch = errors.New("profile role does not match token role")
)

// State is a point-in-time copy of the session.
type State struct {
	Status Status
	User   *domain.User
	Token  string
	// Err is the failure that last moved the session to Unauthenticated.
	Err error
}

// Authenticated reports whether the state holds a usable session.
func (s State) Authenticated() bool {
	return s.Status == StatusAuthenticated
}

// API is the subset of the Auth API the manager calls.
type API interface {
	Login(ctx context.Context, email, password string) (*authapi.LoginResponse, error)
	Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.RegisterResponse, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (*domain.User, error)
}

// Navigator performs a full navigation to path, discarding any view state
// built on the previous session.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

func (f NavigatorFunc) Navigate(path string) { f(path) }

// LoginRouter picks the login entry point for a role.
type LoginRouter interface {
	LoginPathForRole(role domain.Role) string
}

// Config wires a Manager.
type Config struct {
	API       API
	Store     tokenstore.Store
	Navigator Navigator
	Router    LoginRouter
	Logger    *zap.Logger
	Now       func() time.Time
}

// Manager owns one user's session. It is safe for concurrent use; a login
// or logout discards the outcome of any call that started before it.
type Manager struct {
	api       API
	store     tokenstore.Store
	navigator Navigator
	router    LoginRouter
	logger    *zap.Logger
	now       func() time.Time

	refreshGroup singleflight.Group

	// storeMu orders token store I/O. It is taken before mu and never while
	// mu is held, so Snapshot does not wait on storage.
	storeMu sync.Mutex

	mu           sync.Mutex
	generation   uint64
	state        State
	refreshToken string
}

// NewManager creates a manager in the Unauthenticated state. Call Init to
// adopt a stored session.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		api:       cfg.API,
		store:     cfg.Store,
		navigator: cfg.Navigator,
		router:    cfg.Router,
		logger:    cfg.Logger,
		now:       cfg.Now,
		state:     State{Status: StatusUnauthenticated},
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	if m.now == nil {
		m.now = time.Now
	}
	if m.navigator == nil {
		m.navigator = NavigatorFunc(func(string) {})
	}
	if m.router == nil {
		m.router = auth.DefaultPolicy(auth.DefaultLoginPaths())
	}
	return m
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	s := m.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

// Init restores the session held by the token store. A cached profile whose
// token still claims to be unexpired is adopted without asking the server;
// a token without a usable profile is refreshed; an expired one is dropped.
func (m *Manager) Init(ctx context.Context) error {
	gen := m.currentGeneration()

	m.storeMu.Lock()
	creds, user, err := m.store.Load(ctx)
	m.storeMu.Unlock()

	if err != nil {
		if creds.Empty() {
			return m.settle(gen, State{Status: StatusUnauthenticated, Err: err}, fmt.Errorf("load session: %w", err))
		}
		m.logger.Warn("stored profile unreadable, refreshing", zap.Error(err))
		user = nil
	}
	if creds.Empty() {
		return m.settle(gen, State{Status: StatusUnauthenticated}, nil)
	}

	claims, valid := auth.SelfReportedValid(creds.AccessToken, m.now())
	if claims != nil && !valid {
		m.logger.Info("stored token expired", zap.String("subject", claims.Subject))
		if err := m.settle(gen, State{Status: StatusUnauthenticated}, nil); err != nil {
			return err
		}
		return m.clearIfCurrent(ctx, gen)
	}

	m.mu.Lock()
	if gen != m.generation {
		m.mu.Unlock()
		return ErrSuperseded
	}
	m.refreshToken = creds.RefreshToken
	if user != nil && claims != nil && user.Role == claims.Role {
		m.state = State{Status: StatusAuthenticated, User: user, Token: creds.AccessToken}
		m.mu.Unlock()
		return nil
	}
	m.state = State{Status: StatusAuthenticating, Token: creds.AccessToken}
	m.mu.Unlock()

	return m.RefreshUser(ctx)
}

// Login exchanges credentials for a session. A failure leaves the session
// Unauthenticated, clearing any session held before the attempt, and is
// returned to the caller.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	m.state = State{Status: StatusAuthenticating}
	m.refreshToken = ""
	m.mu.Unlock()

	resp, err := m.api.Login(ctx, email, password)
	if err == nil {
		err = checkLoginResponse(resp)
	}

	if err != nil {
		if settleErr := m.settle(gen, State{Status: StatusUnauthenticated, Err: err}, nil); settleErr != nil {
			return settleErr
		}
		if clearErr := m.clearIfCurrent(ctx, gen); clearErr != nil {
			m.logger.Warn("clear previous session failed", zap.Error(clearErr))
		}
		return err
	}

	user := resp.User
	creds := tokenstore.Credentials{AccessToken: resp.Token, RefreshToken: resp.RefreshToken}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	if !m.isCurrent(gen) {
		return ErrSuperseded
	}
	if err := m.store.Save(ctx, creds, &user); err != nil {
		err = fmt.Errorf("persist session: %w", err)
		if settleErr := m.settle(gen, State{Status: StatusUnauthenticated, Err: err}, nil); settleErr != nil {
			return settleErr
		}
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return ErrSuperseded
	}
	m.state = State{Status: StatusAuthenticated, User: &user, Token: resp.Token}
	m.refreshToken = resp.RefreshToken
	return nil
}

func checkLoginResponse(resp *authapi.LoginResponse) error {
	if !resp.User.Role.Valid() {
		return &authapi.Error{Kind: authapi.KindServer, Op: "Login", Message: fmt.Sprintf("unknown role %q", resp.User.Role)}
	}
	if claims, err := auth.PeekClaims(resp.Token); err == nil && claims.Role != resp.User.Role {
		return &authapi.Error{Kind: authapi.KindServer, Op: "Login", Message: ErrRoleMismatch.Error(), Err: ErrRoleMismatch}
	}
	return nil
}

// Register creates an account. The session is left as it is.
func (m *Manager) Register(ctx context.Context, req authapi.RegisterRequest) (*authapi.RegisterResponse, error) {
	return m.api.Register(ctx, req)
}

// Logout ends the session locally and navigates to the login entry point
// for the departing user's role. The server-side logout is best effort;
// only a failure to clear local storage is returned.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.generation++
	gen := m.generation
	token := m.state.Token
	var role domain.Role
	if m.state.User != nil {
		role = m.state.User.Role
	}
	m.state = State{Status: StatusUnauthenticated}
	m.refreshToken = ""
	m.mu.Unlock()

	var clearErr error
	m.storeMu.Lock()
	// a login that started after this logout owns the store
	if m.isCurrent(gen) {
		if token == "" {
			if creds, user, err := m.store.Load(ctx); err == nil {
				token = creds.AccessToken
				if user != nil {
					role = user.Role
				}
			}
		}
		clearErr = m.store.Clear(ctx)
	}
	m.storeMu.Unlock()

	if token != "" {
		if err := m.api.Logout(ctx, token); err != nil {
			m.logger.Warn("server logout failed", zap.Error(err))
		}
	}

	m.navigator.Navigate(m.router.LoginPathForRole(role))

	if clearErr != nil {
		return fmt.Errorf("clear session: %w", clearErr)
	}
	return nil
}

// RefreshUser re-fetches the profile for the held token. Any failure ends
// the session. Concurrent refreshes of the same token share one request;
// a caller that gives up waiting gets its context error and leaves the
// session as it is.
func (m *Manager) RefreshUser(ctx context.Context) error {
	m.mu.Lock()
	token := m.state.Token
	gen := m.generation
	m.mu.Unlock()

	if token == "" {
		return ErrNoSession
	}

	ch := m.refreshGroup.DoChan(token, func() (any, error) {
		return m.api.Me(context.WithoutCancel(ctx), token)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res = <-ch:
	}

	err := res.Err
	var user *domain.User
	if err == nil {
		fetched := *res.Val.(*domain.User)
		user = &fetched
		if claims, peekErr := auth.PeekClaims(token); peekErr == nil && claims.Role != user.Role {
			err = ErrRoleMismatch
		}
	}

	if err != nil {
		return m.invalidate(ctx, gen, token, err)
	}

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	if gen != m.generation || m.state.Token != token {
		m.mu.Unlock()
		return ErrSuperseded
	}
	refreshToken := m.refreshToken
	m.mu.Unlock()

	creds := tokenstore.Credentials{AccessToken: token, RefreshToken: refreshToken}
	if err := m.store.Save(ctx, creds, user); err != nil {
		return fmt.Errorf("persist profile: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation || m.state.Token != token {
		return ErrSuperseded
	}
	m.state = State{Status: StatusAuthenticated, User: user, Token: token}
	return nil
}

// invalidate ends the session a failed refresh of token was started for.
func (m *Manager) invalidate(ctx context.Context, gen uint64, token string, cause error) error {
	m.mu.Lock()
	if gen != m.generation || m.state.Token != token {
		m.mu.Unlock()
		return ErrSuperseded
	}
	var role domain.Role
	if m.state.User != nil {
		role = m.state.User.Role
	}
	m.generation++
	gen = m.generation
	m.state = State{Status: StatusUnauthenticated, Err: cause}
	m.refreshToken = ""
	m.mu.Unlock()

	if clearErr := m.clearIfCurrent(ctx, gen); clearErr != nil {
		m.logger.Warn("clear invalidated session failed", zap.Error(clearErr))
	}

	m.logger.Warn("profile refresh failed, session cleared", zap.Error(cause))
	m.navigator.Navigate(m.router.LoginPathForRole(role))
	return fmt.Errorf("%w: %w", ErrSessionInvalidated, cause)
}

// clearIfCurrent empties the store unless a later login or logout has
// taken it over.
func (m *Manager) clearIfCurrent(ctx context.Context, gen uint64) error {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()
	if !m.isCurrent(gen) {
		return nil
	}
	return m.store.Clear(ctx)
}

// settle replaces the state when gen is still current and returns err;
// otherwise it leaves the state alone and returns ErrSuperseded.
func (m *Manager) settle(gen uint64, s State, err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.generation {
		return ErrSuperseded
	}
	m.state = s
	m.refreshToken = ""
	return err
}

func (m *Manager) currentGeneration() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation
}

func (m *Manager) isCurrent(gen uint64) bool {
	return m.currentGeneration() == gen
}
