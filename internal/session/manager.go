// Package session owns the signed-in identity: sign up, log in, log out,
// resuming a stored session at startup, and keeping the access token fresh
// in the background. Other components observe it through Subscribe.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/naveenspark/issuetrack/pkg/client"
	"github.com/naveenspark/issuetrack/pkg/domain"
)

const (
	// DefaultRefreshMargin is how long before expiry the token is refreshed.
	DefaultRefreshMargin = 60 * time.Second
	// DefaultRetryDelay spaces refresh attempts after a transient failure.
	DefaultRetryDelay = 10 * time.Second
)

// Authenticator is the remote auth service.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) error
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	RefreshSession(ctx context.Context, refreshToken string) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*domain.User, error)
}

// State is the authentication state.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// EventKind identifies a session change.
type EventKind int

const (
	EventInitialSession EventKind = iota
	EventSignedIn
	EventSignedOut
	EventTokenRefreshed
)

func (k EventKind) String() string {
	switch k {
	case EventInitialSession:
		return "INITIAL_SESSION"
	case EventSignedIn:
		return "SIGNED_IN"
	case EventSignedOut:
		return "SIGNED_OUT"
	case EventTokenRefreshed:
		return "TOKEN_REFRESHED"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// SignOutReason says why a session ended.
type SignOutReason string

const (
	ReasonUser    SignOutReason = "user"
	ReasonExpired SignOutReason = "expired"
)

// Event is delivered to subscribers on every session change. Session is a
// copy; it is nil when the change leaves nobody signed in.
type Event struct {
	Kind    EventKind
	Session *domain.Session
	Reason  SignOutReason
}

// Subscription is returned by Subscribe.
type Subscription struct {
	m      *Manager
	id     uint64
	active atomic.Bool
	fn     func(Event)
}

// Unsubscribe stops delivery. It is safe to call more than once and from
// inside the listener.
func (s *Subscription) Unsubscribe() {
	if !s.active.Swap(false) {
		return
	}
	s.m.mu.Lock()
	delete(s.m.subs, s.id)
	s.m.mu.Unlock()
}

// Manager is the session manager.
type Manager struct {
	auth       Authenticator
	store      TokenStore
	logger     *slog.Logger
	now        func() time.Time
	margin     time.Duration
	retryDelay time.Duration

	mu        sync.Mutex
	state     State
	session   *domain.Session
	subs      map[uint64]*Subscription
	nextSub   uint64
	stopWatch context.CancelFunc
	closed    bool
	wg        sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithRefreshMargin sets how long before expiry the token is refreshed.
func WithRefreshMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// WithRetryDelay sets the pause between refresh attempts after a
// transient failure.
func WithRetryDelay(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retryDelay = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a manager in the Unauthenticated state. Call
// Initialize to resume a stored session.
func NewManager(auth Authenticator, store TokenStore, opts ...Option) *Manager {
	if store == nil {
		store = &MemoryStore{}
	}
	m := &Manager{
		auth:       auth,
		store:      store,
		logger:     slog.New(slog.DiscardHandler),
		now:        time.Now,
		margin:     DefaultRefreshMargin,
		retryDelay: DefaultRetryDelay,
		subs:       make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current authentication state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the current session, or nil.
func (m *Manager) Session() *domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySession(m.session)
}

// UserID returns the signed-in user's id.
func (m *Manager) UserID() (uuid.UUID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return uuid.Nil, false
	}
	return m.session.User.ID, true
}

// AccessToken returns the current access token, or "" when signed out.
func (m *Manager) AccessToken() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return ""
	}
	return m.session.AccessToken
}

// Subscribe registers fn for every future session event.
func (m *Manager) Subscribe(fn func(Event)) *Subscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextSub++
	sub := &Subscription{m: m, id: m.nextSub, fn: fn}
	if m.closed {
		return sub
	}
	sub.active.Store(true)
	m.subs[sub.id] = sub
	return sub
}

func (m *Manager) emit(ev Event) {
	m.mu.Lock()
	subs := make([]*Subscription, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		if s.active.Load() {
			s.fn(ev)
		}
	}
}

// Initialize resumes the stored session, if any. An expired access token
// is refreshed. A live one is checked against the auth service; if the
// service rejects it, one refresh is attempted. When the service cannot be
// reached the stored session is kept as is.
func (m *Manager) Initialize(ctx context.Context) (State, error) {
	stored, err := m.store.Load()
	if err != nil {
		m.logger.Warn("discarding unreadable stored session", "error", err)
		m.clearStore()
		stored = nil
	}

	var (
		sess    *domain.Session
		initErr error
	)
	if stored != nil {
		sess, initErr = m.resume(ctx, normalize(stored))
	}

	m.mu.Lock()
	m.session = sess
	if sess != nil {
		m.state = Authenticated
		m.startWatcherLocked()
	} else {
		m.state = Unauthenticated
	}
	state := m.state
	m.mu.Unlock()

	m.emit(Event{Kind: EventInitialSession, Session: copySession(sess)})
	if initErr != nil {
		return state, fmt.Errorf("session.Initialize: %w", initErr)
	}
	return state, nil
}

func (m *Manager) resume(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	if s.Expired(m.now(), 0) {
		m.logger.Info("stored session expired, refreshing")
		return m.refreshStored(ctx, s)
	}

	u, err := m.auth.GetUser(ctx, s.AccessToken)
	switch {
	case err == nil:
		s.User = *u
		m.save(s)
		return s, nil
	case rejected(err):
		m.logger.Info("stored session rejected, refreshing", "error", err)
		return m.refreshStored(ctx, s)
	default:
		m.logger.Warn("could not verify stored session, keeping it", "error", err)
		return s, nil
	}
}

func (m *Manager) refreshStored(ctx context.Context, s *domain.Session) (*domain.Session, error) {
	if s.RefreshToken == "" {
		m.clearStore()
		return nil, nil
	}
	next, err := m.auth.RefreshSession(ctx, s.RefreshToken)
	if err != nil {
		if rejected(err) {
			m.clearStore()
			return nil, nil
		}
		return nil, domain.NewRemoteAuthError("refresh", err)
	}
	next = normalize(next)
	m.save(next)
	return next, nil
}

// begin moves to Authenticating. It fails with ErrInFlight when another
// sign up or log in is running.
func (m *Manager) begin() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Authenticating {
		return domain.ErrInFlight
	}
	m.state = Authenticating
	return nil
}

// settle leaves Authenticating for whatever the current session implies.
func (m *Manager) settle() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil {
		m.state = Authenticated
	} else {
		m.state = Unauthenticated
	}
}

// SignUp registers a new account. It never signs the user in: the account
// must be confirmed by email first.
func (m *Manager) SignUp(ctx context.Context, email, password string) error {
	if err := m.begin(); err != nil {
		return err
	}
	defer m.settle()

	if err := m.auth.SignUp(ctx, email, password); err != nil {
		m.logger.Info("sign up failed", "error", err)
		return domain.NewRemoteAuthError("signup", err)
	}
	m.logger.Info("sign up accepted, awaiting confirmation")
	return nil
}

// LogIn signs in with email and password.
func (m *Manager) LogIn(ctx context.Context, email, password string) error {
	if err := m.begin(); err != nil {
		return err
	}

	s, err := m.auth.SignInWithPassword(ctx, email, password)
	if err != nil {
		m.settle()
		m.logger.Info("log in failed", "error", err)
		return domain.NewRemoteAuthError("login", err)
	}
	s = normalize(s)
	m.save(s)

	m.mu.Lock()
	m.session = s
	m.state = Authenticated
	m.startWatcherLocked()
	m.mu.Unlock()

	m.logger.Info("logged in", "user_id", s.User.ID)
	m.emit(Event{Kind: EventSignedIn, Session: copySession(s)})
	return nil
}

// LogOut revokes the session remotely and then forgets it. If the auth
// service cannot be reached the session stays intact and the error is
// returned. A token the service no longer recognises counts as logged out.
func (m *Manager) LogOut(ctx context.Context) error {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s == nil {
		return nil
	}

	if err := m.auth.SignOut(ctx, s.AccessToken); err != nil && !alreadyInvalid(err) {
		m.logger.Warn("log out failed", "error", err)
		return domain.NewRemoteAuthError("logout", err)
	}
	m.drop(s, ReasonUser)
	return nil
}

// drop forgets s if it is still the current session.
func (m *Manager) drop(s *domain.Session, reason SignOutReason) {
	m.mu.Lock()
	if m.session != s {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.state = Unauthenticated
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	m.mu.Unlock()

	m.clearStore()
	m.logger.Info("signed out", "reason", reason)
	m.emit(Event{Kind: EventSignedOut, Reason: reason})
}

// startWatcherLocked (re)starts the background refresher. Caller holds m.mu.
func (m *Manager) startWatcherLocked() {
	if m.stopWatch != nil {
		m.stopWatch()
	}
	if m.closed {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.stopWatch = cancel
	m.wg.Add(1)
	go m.watch(ctx, m.session)
}

func (m *Manager) watch(ctx context.Context, s *domain.Session) {
	defer m.wg.Done()
	refreshed := false
	for {
		exp := expiry(s)
		if exp.IsZero() {
			return
		}
		wait := exp.Sub(m.now()) - m.margin
		if wait <= 0 && refreshed {
			// The service issued a token that is already inside the margin.
			wait = m.retryDelay
		}
		if !sleep(ctx, wait) {
			return
		}

		next, err := m.auth.RefreshSession(ctx, s.RefreshToken)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if rejected(err) {
				m.logger.Warn("token refresh rejected", "error", err)
				m.drop(s, ReasonExpired)
				return
			}
			m.logger.Warn("token refresh failed, will retry", "error", err, "retry_in", m.retryDelay)
			if !sleep(ctx, m.retryDelay) {
				return
			}
			continue
		}

		next = normalize(next)
		if next.User.ID == uuid.Nil {
			next.User = s.User
		}
		m.mu.Lock()
		if m.session != s {
			m.mu.Unlock()
			return
		}
		m.session = next
		m.mu.Unlock()

		m.save(next)
		m.logger.Debug("token refreshed", "expires_at", next.ExpiresAt)
		m.emit(Event{Kind: EventTokenRefreshed, Session: copySession(next)})
		s = next
		refreshed = true
	}
}

// Close stops the background refresher and releases every subscription.
// The stored session is kept for the next run.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	if m.stopWatch != nil {
		m.stopWatch()
		m.stopWatch = nil
	}
	subs := m.subs
	m.subs = make(map[uint64]*Subscription)
	m.mu.Unlock()

	for _, s := range subs {
		s.active.Store(false)
	}
	m.wg.Wait()
}

func (m *Manager) save(s *domain.Session) {
	if err := m.store.Save(s); err != nil {
		m.logger.Error("persist session", "error", err)
	}
}

func (m *Manager) clearStore() {
	if err := m.store.Clear(); err != nil {
		m.logger.Error("clear stored session", "error", err)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// rejected reports whether the auth service refused the request, as
// opposed to being unreachable or failing internally.
func rejected(err error) bool {
	var httpErr *client.HTTPError
	if !errors.As(err, &httpErr) {
		return false
	}
	return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500
}

// alreadyInvalid reports whether a sign out failed only because the
// session no longer exists on the service.
func alreadyInvalid(err error) bool {
	return client.IsStatus(err, http.StatusUnauthorized) ||
		client.IsStatus(err, http.StatusForbidden) ||
		client.IsStatus(err, http.StatusNotFound)
}

func copySession(s *domain.Session) *domain.Session {
	if s == nil {
		return nil
	}
	cp := *s
	return &cp
}
