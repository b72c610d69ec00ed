// Package issues keeps the signed-in user's issue list in sync with the
// backend table. It holds the view state the dashboard renders: the list,
// whether a load is running, and which rows have a status change in flight.
package issues

import (
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/naveenspark/issuetrack/pkg/domain"
)

// Remote is the issues table.
type Remote interface {
	ListIssues(ctx context.Context, userID uuid.UUID) ([]domain.Issue, error)
	InsertIssue(ctx context.Context, issue domain.NewIssue) error
	UpdateIssueStatus(ctx context.Context, id uuid.UUID, status domain.Status) error
	DeleteIssue(ctx context.Context, id uuid.UUID) error
}

// Identity reports who is signed in.
type Identity interface {
	UserID() (uuid.UUID, bool)
}

// Confirmer asks the user to approve a destructive action.
type Confirmer interface {
	Confirm(ctx context.Context, issue domain.Issue) bool
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, issue domain.Issue) bool

func (f ConfirmFunc) Confirm(ctx context.Context, issue domain.Issue) bool { return f(ctx, issue) }

// Snapshot is a point-in-time copy of the view state. Version grows with
// every notification; a snapshot never carries newer state than one with a
// higher Version.
type Snapshot struct {
	Issues  []domain.Issue
	Loading bool
	Loaded  bool
	Pending map[uuid.UUID]domain.Status
	Version uint64
}

// Store is the issue store adapter.
type Store struct {
	remote   Remote
	identity Identity
	logger   *slog.Logger

	mu       sync.Mutex
	owner    uuid.UUID
	issues   []domain.Issue
	loading  int
	loaded   bool
	seq      map[uuid.UUID]uint64
	pending  map[uuid.UUID]domain.Status
	accepted map[uuid.UUID]acceptedStatus
	subs     map[uint64]func(Snapshot)
	nextSub  uint64
	epoch    uint64
	version  uint64
}

// acceptedStatus is the newest status change the backend confirmed for a
// row.
type acceptedStatus struct {
	seq    uint64
	status domain.Status
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store.
func NewStore(remote Remote, identity Identity, opts ...Option) *Store {
	s := &Store{
		remote:   remote,
		identity: identity,
		logger:   slog.New(slog.DiscardHandler),
		seq:      make(map[uuid.UUID]uint64),
		pending:  make(map[uuid.UUID]domain.Status),
		accepted: make(map[uuid.UUID]acceptedStatus),
		subs:     make(map[uint64]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers fn for every state change. The returned function
// removes it and may be called more than once.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// Snapshot returns a copy of the current view state.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() Snapshot {
	pending := make(map[uuid.UUID]domain.Status, len(s.pending))
	for k, v := range s.pending {
		pending[k] = v
	}
	return Snapshot{
		Issues:  slices.Clone(s.issues),
		Loading: s.loading > 0,
		Loaded:  s.loaded,
		Pending: pending,
		Version: s.version,
	}
}

// Pending reports the status change in flight for id, if any.
func (s *Store) Pending(id uuid.UUID) (domain.Status, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.pending[id]
	return st, ok
}

// notify must be called without s.mu held.
func (s *Store) notify() {
	s.mu.Lock()
	s.version++
	snap := s.snapshotLocked()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// Reset forgets all view state. Called when the user signs out; responses
// to requests issued before the reset are dropped.
func (s *Store) Reset() {
	s.mu.Lock()
	s.resetLocked(uuid.Nil)
	s.mu.Unlock()
	s.notify()
}

func (s *Store) resetLocked(owner uuid.UUID) {
	s.owner = owner
	s.issues = nil
	s.loading = 0
	s.loaded = false
	s.seq = make(map[uuid.UUID]uint64)
	s.pending = make(map[uuid.UUID]domain.Status)
	s.accepted = make(map[uuid.UUID]acceptedStatus)
	s.epoch++
}

// begin resolves the signed-in user and returns the epoch the request
// belongs to. State left over from a different user is discarded first.
func (s *Store) begin() (uuid.UUID, uint64, error) {
	uid, ok := s.identity.UserID()
	if !ok {
		return uuid.Nil, 0, domain.ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.owner != uid {
		s.resetLocked(uid)
	}
	return uid, s.epoch, nil
}

// List replaces the view state with the owner's issues, newest first. On
// failure the previous list is left untouched.
func (s *Store) List(ctx context.Context) error {
	uid, epoch, err := s.begin()
	if err != nil {
		return err
	}
	return s.reload(ctx, uid, epoch)
}

func (s *Store) reload(ctx context.Context, uid uuid.UUID, epoch uint64) error {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()
	s.notify()

	rows, err := s.remote.ListIssues(ctx, uid)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	s.loading--
	if err == nil {
		s.issues = rows
		s.loaded = true
	}
	s.mu.Unlock()
	s.notify()

	if err != nil {
		s.logger.Error("fetch issues", "error", err)
		return domain.NewRemoteFetchError(err)
	}
	s.logger.Debug("issues loaded", "count", len(rows))
	return nil
}

// Create validates and inserts a new issue, then reloads the list. An
// empty title or unknown status fails without contacting the backend. A
// failed reload after a successful insert is logged, not returned.
func (s *Store) Create(ctx context.Context, title, description string, status domain.Status) error {
	uid, epoch, err := s.begin()
	if err != nil {
		return err
	}
	n := domain.NewIssue{
		UserID:      uid,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		Status:      status,
	}
	if err := n.Validate(); err != nil {
		return err
	}

	if err := s.remote.InsertIssue(ctx, n); err != nil {
		s.logger.Error("insert issue", "error", err)
		return domain.NewRemoteMutationError("create", err)
	}
	s.logger.Info("issue created", "title", n.Title)

	if err := s.reload(ctx, uid, epoch); err != nil {
		s.logger.Warn("reload after create failed", "error", err)
	}
	return nil
}

// UpdateStatus changes the status of one issue. Every call takes a fresh
// sequence number for its row. While a later call is in flight an earlier
// response is held back; once the row settles it shows the newest change
// the backend confirmed.
func (s *Store) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.Status) error {
	if _, _, err := s.begin(); err != nil {
		return err
	}
	if !domain.ValidStatus(status) {
		return &domain.ValidationError{Field: "status", Message: "Unknown status " + `"` + string(status) + `"`}
	}

	s.mu.Lock()
	s.seq[id]++
	token := s.seq[id]
	epoch := s.epoch
	s.pending[id] = status
	s.mu.Unlock()
	s.notify()

	err := s.remote.UpdateIssueStatus(ctx, id, status)

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	if err == nil && token > s.accepted[id].seq {
		s.accepted[id] = acceptedStatus{seq: token, status: status}
	}
	latest := s.seq[id] == token
	changed := latest
	if latest {
		delete(s.pending, id)
	}
	// An earlier call that the backend confirms after the latest one failed
	// still decides the row.
	if a, ok := s.accepted[id]; ok && !s.hasPendingLocked(id) && (latest || a.seq == token) {
		if i := s.indexLocked(id); i >= 0 {
			s.issues[i].Status = a.status
		}
		changed = true
	}
	s.mu.Unlock()
	if changed {
		s.notify()
	}

	if err != nil {
		s.logger.Error("update issue status", "id", id, "error", err)
		return domain.NewRemoteMutationError("update", err)
	}
	if !changed {
		s.logger.Debug("status update superseded", "id", id, "status", status)
	}
	return nil
}

// Delete removes one issue after the user confirms. A declined prompt
// returns ErrNotConfirmed without contacting the backend.
func (s *Store) Delete(ctx context.Context, id uuid.UUID, confirm Confirmer) error {
	_, epoch, err := s.begin()
	if err != nil {
		return err
	}

	s.mu.Lock()
	var target domain.Issue
	if i := s.indexLocked(id); i >= 0 {
		target = s.issues[i]
	} else {
		target.ID = id
	}
	s.mu.Unlock()

	if confirm == nil || !confirm.Confirm(ctx, target) {
		return domain.ErrNotConfirmed
	}

	if err := s.remote.DeleteIssue(ctx, id); err != nil {
		s.logger.Error("delete issue", "id", id, "error", err)
		return domain.NewRemoteMutationError("delete", err)
	}

	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		return nil
	}
	if i := s.indexLocked(id); i >= 0 {
		s.issues = slices.Delete(s.issues, i, i+1)
	}
	delete(s.pending, id)
	delete(s.accepted, id)
	s.mu.Unlock()
	s.notify()

	s.logger.Info("issue deleted", "id", id)
	return nil
}

func (s *Store) hasPendingLocked(id uuid.UUID) bool {
	_, ok := s.pending[id]
	return ok
}

func (s *Store) indexLocked(id uuid.UUID) int {
	return slices.IndexFunc(s.issues, func(is domain.Issue) bool { return is.ID == id })
}
