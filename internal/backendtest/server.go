// Package backendtest runs an in-memory stand-in for the hosted auth and
// table APIs. It implements just enough of both for the client, session,
// issue store and view tests to run over real HTTP: password sign up and
// sign in, refresh token rotation, logout, and an issues table with a
// per-user row policy.
package backendtest

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/naveenspark/issuetrack/pkg/client"
	"github.com/naveenspark/issuetrack/pkg/domain"
)

// DefaultAnonKey is the apikey every request must carry unless overridden.
const DefaultAnonKey = "test-anon-key"

// Route names a backend endpoint for fault injection and call counting.
type Route string

const (
	RouteSignup Route = "signup"
	RouteToken  Route = "token"
	RouteLogout Route = "logout"
	RouteUser   Route = "user"
	RouteList   Route = "list"
	RouteInsert Route = "insert"
	RouteUpdate Route = "update"
	RouteDelete Route = "delete"
)

const (
	minPassword  = 6
	defaultTTL   = time.Hour
	jwtSecretLen = 32
)

type account struct {
	id        uuid.UUID
	email     string
	password  string
	confirmed bool
}

type fault struct {
	status  int
	message string
}

// Server is a running fake backend.
type Server struct {
	URL     string
	AnonKey string

	srv    *httptest.Server
	secret []byte
	logger *slog.Logger

	mu                  sync.Mutex
	now                 func() time.Time
	accessTTL           time.Duration
	requireConfirmation bool
	accounts            map[string]*account // by email
	sessions            map[string]uuid.UUID
	refreshTokens       map[string]string // refresh token -> session id
	issues              []domain.Issue
	faults              map[Route][]fault
	calls               map[Route]int
	created             int
}

// Option configures a Server.
type Option func(*Server)

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(d time.Duration) Option {
	return func(s *Server) { s.accessTTL = d }
}

// WithClock replaces the server's notion of now, for token expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithConfirmation makes new accounts unusable until Confirm is called.
func WithConfirmation() Option {
	return func(s *Server) { s.requireConfirmation = true }
}

// WithLogger logs every request.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New starts a fake backend that is closed when the test ends.
func New(t testing.TB, opts ...Option) *Server {
	t.Helper()
	s := &Server{
		AnonKey:       DefaultAnonKey,
		secret:        []byte(uuid.NewString()[:jwtSecretLen]),
		now:           time.Now,
		accessTTL:     defaultTTL,
		accounts:      make(map[string]*account),
		sessions:      make(map[string]uuid.UUID),
		refreshTokens: make(map[string]string),
		faults:        make(map[Route][]fault),
		calls:         make(map[Route]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.srv = httptest.NewServer(s.router())
	s.URL = s.srv.URL
	t.Cleanup(s.srv.Close)
	return s
}

// Close shuts the server down. Requests made afterwards fail at the
// transport level, which is how tests simulate a network outage.
func (s *Server) Close() {
	s.srv.Close()
}

// Client returns an API client pointed at the server.
func (s *Server) Client(opts ...client.Option) *client.Client {
	return client.New(s.URL, s.AnonKey, opts...)
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()
	if s.logger != nil {
		r.Use(requestLogger(s.logger))
	}
	r.Use(s.requireAPIKey)

	r.Route("/auth/v1", func(r chi.Router) {
		r.With(s.track(RouteSignup)).Post("/signup", s.handleSignup)
		r.With(s.track(RouteToken)).Post("/token", s.handleToken)
		r.With(s.track(RouteLogout)).Post("/logout", s.handleLogout)
		r.With(s.track(RouteUser)).Get("/user", s.handleUser)
	})
	r.Route("/rest/v1/issues", func(r chi.Router) {
		r.With(s.track(RouteList), s.requireJWT).Get("/", s.handleListIssues)
		r.With(s.track(RouteInsert), s.requireJWT).Post("/", s.handleInsertIssue)
		r.With(s.track(RouteUpdate), s.requireJWT).Patch("/", s.handleUpdateIssue)
		r.With(s.track(RouteDelete), s.requireJWT).Delete("/", s.handleDeleteIssue)
	})
	return r
}

// FailNext makes the next request to route fail with status and message.
// Calls queue up: two FailNext calls fail the next two requests.
func (s *Server) FailNext(route Route, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = append(s.faults[route], fault{status: status, message: message})
}

// Calls returns how many requests reached route.
func (s *Server) Calls(route Route) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// AddUser registers a confirmed account and returns its id.
func (s *Server) AddUser(email, password string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := &account{id: uuid.New(), email: email, password: password, confirmed: true}
	s.accounts[email] = a
	return a.id
}

// Confirm marks an account's email address as verified.
func (s *Server) Confirm(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[email]; ok {
		a.confirmed = true
	}
}

// AddIssue inserts a row directly, bypassing the row policy. Zero ID and
// CreatedAt are filled in.
func (s *Server) AddIssue(issue domain.Issue) domain.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	if issue.ID == uuid.Nil {
		issue.ID = uuid.New()
	}
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = s.nextCreatedAt()
	}
	if issue.Status == "" {
		issue.Status = domain.DefaultStatus
	}
	s.issues = append(s.issues, issue)
	return issue
}

// Issues returns the rows owned by userID in storage order.
func (s *Server) Issues(userID uuid.UUID) []domain.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Issue
	for _, is := range s.issues {
		if is.UserID == userID {
			out = append(out, is)
		}
	}
	return out
}

// RevokeSessions invalidates every session of userID, as an administrator
// or another device signing the user out would.
func (s *Server) RevokeSessions(userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for sid, uid := range s.sessions {
		if uid == userID {
			s.dropSessionLocked(sid)
		}
	}
}

func (s *Server) dropSessionLocked(sid string) {
	delete(s.sessions, sid)
	for rt, owner := range s.refreshTokens {
		if owner == sid {
			delete(s.refreshTokens, rt)
		}
	}
}

// nextCreatedAt returns strictly increasing timestamps so that ordering by
// created_at is deterministic. Caller holds s.mu.
func (s *Server) nextCreatedAt() time.Time {
	s.created++
	return s.now().UTC().Truncate(time.Second).Add(time.Duration(s.created) * time.Millisecond)
}
