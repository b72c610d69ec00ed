package tui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/naveenspark/issuetrack/internal/issues"
	"github.com/naveenspark/issuetrack/pkg/domain"
)

// stubRemote is an in-memory issues table that counts calls.
type stubRemote struct {
	mu        sync.Mutex
	rows      []domain.Issue
	inserts   int
	deletes   int
	insertErr error
}

func (r *stubRemote) ListIssues(_ context.Context, _ uuid.UUID) ([]domain.Issue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Issue, len(r.rows))
	copy(out, r.rows)
	return out, nil
}

func (r *stubRemote) InsertIssue(_ context.Context, n domain.NewIssue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inserts++
	if r.insertErr != nil {
		return r.insertErr
	}
	r.rows = append([]domain.Issue{{
		ID: uuid.New(), UserID: n.UserID, Title: n.Title, Description: n.Description,
		Status: n.Status, CreatedAt: time.Now(),
	}}, r.rows...)
	return nil
}

func (r *stubRemote) UpdateIssueStatus(_ context.Context, id uuid.UUID, status domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows[i].Status = status
		}
	}
	return nil
}

func (r *stubRemote) DeleteIssue(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	for i := range r.rows {
		if r.rows[i].ID == id {
			r.rows = append(r.rows[:i], r.rows[i+1:]...)
			break
		}
	}
	return nil
}

type fixedIdentity uuid.UUID

func (f fixedIdentity) UserID() (uuid.UUID, bool) { return uuid.UUID(f), true }

func newTestDashboard(t *testing.T, rows ...domain.Issue) (dashboardModel, *stubRemote) {
	t.Helper()
	remote := &stubRemote{rows: rows}
	store := issues.NewStore(remote, fixedIdentity(uuid.New()))
	m := newDashboardModel(store, "me@example.com")
	m.width = 100
	m.height = 60
	m.now = func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	m = runDash(t, m, m.load())
	return m, remote
}

func runDash(t *testing.T, m dashboardModel, cmd tea.Cmd) dashboardModel {
	t.Helper()
	for _, msg := range collect(cmd) {
		var next tea.Cmd
		m, next = m.Update(msg)
		m = runDash(t, m, next)
	}
	return m
}

func dashKey(t *testing.T, m dashboardModel, k string) dashboardModel {
	t.Helper()
	m, cmd := m.Update(keyMsg(k))
	return runDash(t, m, cmd)
}

func sampleIssue(title string, status domain.Status) domain.Issue {
	return domain.Issue{
		ID:        uuid.New(),
		Title:     title,
		Status:    status,
		CreatedAt: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestDashboardLoadingAndEmptyStates(t *testing.T) {
	m := newDashboardModel(nil, "")
	m.snap = issues.Snapshot{Loading: true}
	if !strings.Contains(m.View("*"), "Loading issues...") {
		t.Error("expected Loading issues... before the first load")
	}

	m.snap = issues.Snapshot{Loaded: true}
	if !strings.Contains(m.View("*"), "No issues yet.") {
		t.Error("expected No issues yet. for an empty list")
	}
}

func TestDashboardRendersCards(t *testing.T) {
	withDesc := sampleIssue("Write docs", domain.StatusClosed)
	withDesc.Description = "the README\nneeds work"
	m, _ := newTestDashboard(t, sampleIssue("Fix bug", domain.StatusOpen), withDesc)

	out := m.View("*")
	for _, want := range []string{"Your Issue Tracker", "me@example.com", "Fix bug", "No description", "the README needs work", "Closed", "3h ago"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestDashboardPendingMarker(t *testing.T) {
	is := sampleIssue("Fix bug", domain.StatusOpen)
	m := newDashboardModel(nil, "")
	m.width = 100
	m.snap = issues.Snapshot{Loaded: true, Issues: []domain.Issue{is}, Pending: map[uuid.UUID]domain.Status{is.ID: domain.StatusClosed}}

	out := m.View("*")
	if !strings.Contains(out, "saving…") {
		t.Errorf("pending marker missing:\n%s", out)
	}
	if !strings.Contains(out, "Closed") {
		t.Errorf("card should show the requested status while pending:\n%s", out)
	}
}

func TestDashboardCycleStatusFromPending(t *testing.T) {
	is := sampleIssue("Fix bug", domain.StatusOpen)
	m := newDashboardModel(nil, "")
	m.snap = issues.Snapshot{Loaded: true, Issues: []domain.Issue{is}, Pending: map[uuid.UUID]domain.Status{is.ID: domain.StatusInProgress}}

	m, cmd := m.Update(keyMsg("l"))
	if cmd == nil {
		t.Fatal("expected an update command")
	}
	if got := m.snap.Pending[is.ID]; got != domain.StatusClosed {
		t.Errorf("pending = %q, want Closed (cycled from the in-flight status)", got)
	}
}

func TestDashboardStatusUpdate(t *testing.T) {
	m, remote := newTestDashboard(t, sampleIssue("Fix bug", domain.StatusOpen))
	m = dashKey(t, m, "h")
	if got := m.snap.Issues[0].Status; got != domain.StatusClosed {
		t.Errorf("status after h = %q, want Closed", got)
	}
	if remote.rows[0].Status != domain.StatusClosed {
		t.Errorf("remote status = %q", remote.rows[0].Status)
	}
}

func TestDashboardNavigation(t *testing.T) {
	m, _ := newTestDashboard(t,
		sampleIssue("one", domain.StatusOpen),
		sampleIssue("two", domain.StatusOpen),
		sampleIssue("three", domain.StatusOpen),
	)
	m = dashKey(t, m, "j")
	m = dashKey(t, m, "j")
	m = dashKey(t, m, "j")
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2 (clamped)", m.cursor)
	}
	m = dashKey(t, m, "k")
	if m.cursor != 1 {
		t.Errorf("cursor = %d, want 1", m.cursor)
	}
}

func TestDashboardCreateRequiresTitle(t *testing.T) {
	m, remote := newTestDashboard(t)
	m = dashKey(t, m, "n")
	m = dashKey(t, m, "   ")
	m = dashKey(t, m, "ctrl+s")

	if m.statusMsg != "Title is required" || !m.statusErr {
		t.Errorf("status = %q (err=%v), want Title is required", m.statusMsg, m.statusErr)
	}
	if remote.inserts != 0 {
		t.Errorf("inserts = %d, want 0", remote.inserts)
	}
	if m.focus != focusTitle {
		t.Errorf("focus = %d, want title", m.focus)
	}
}

func TestDashboardCreateFailureKeepsForm(t *testing.T) {
	m, remote := newTestDashboard(t)
	remote.insertErr = errors.New("new row violates check constraint")

	m = dashKey(t, m, "n")
	m = dashKey(t, m, "Fix bug")
	m = dashKey(t, m, "tab")
	m = dashKey(t, m, "details")
	m = dashKey(t, m, "tab")
	m = dashKey(t, m, "l")
	m = dashKey(t, m, "ctrl+s")

	if m.statusMsg != "new row violates check constraint" {
		t.Errorf("status = %q", m.statusMsg)
	}
	if m.title.Value() != "Fix bug" || m.description.Value() != "details" || m.status != domain.StatusInProgress {
		t.Errorf("form lost its contents: %q %q %q", m.title.Value(), m.description.Value(), m.status)
	}
	if m.creating {
		t.Error("creating should clear after the result")
	}
}

func TestDashboardCreateResetsForm(t *testing.T) {
	m, _ := newTestDashboard(t)
	m = dashKey(t, m, "n")
	m = dashKey(t, m, "Fix bug")
	m = dashKey(t, m, "enter")
	m = dashKey(t, m, "enter")
	m = dashKey(t, m, "l")
	m = dashKey(t, m, "ctrl+s")

	if len(m.snap.Issues) != 1 {
		t.Fatalf("issues = %d, want 1", len(m.snap.Issues))
	}
	if m.snap.Issues[0].Status != domain.StatusInProgress {
		t.Errorf("created status = %q", m.snap.Issues[0].Status)
	}
	if m.title.Value() != "" || m.status != domain.StatusOpen || m.focus != focusTitle {
		t.Errorf("form not reset: %q %q focus=%d", m.title.Value(), m.status, m.focus)
	}
}

func TestDashboardDeleteConfirmation(t *testing.T) {
	m, remote := newTestDashboard(t, sampleIssue("one", domain.StatusOpen), sampleIssue("two", domain.StatusOpen))

	m = dashKey(t, m, "d")
	if !m.confirming || !m.isEditing() {
		t.Fatal("d should open the confirmation prompt")
	}
	// Unrelated keys do nothing while the prompt is open.
	m = dashKey(t, m, "j")
	if m.cursor != 0 || !m.confirming {
		t.Error("prompt should swallow other keys")
	}

	m = dashKey(t, m, "esc")
	if m.confirming || len(m.snap.Issues) != 2 || remote.deletes != 0 {
		t.Errorf("decline: confirming=%v issues=%d deletes=%d", m.confirming, len(m.snap.Issues), remote.deletes)
	}

	m = dashKey(t, m, "d")
	m = dashKey(t, m, "y")
	if len(m.snap.Issues) != 1 || m.snap.Issues[0].Title != "two" {
		t.Errorf("after delete: %+v", m.snap.Issues)
	}
	if remote.deletes != 1 {
		t.Errorf("deletes = %d, want 1", remote.deletes)
	}
	if m.statusMsg != "Issue deleted" {
		t.Errorf("status = %q", m.statusMsg)
	}
}

func TestDashboardCopyCommand(t *testing.T) {
	m, _ := newTestDashboard(t, sampleIssue("one", domain.StatusOpen))
	_, cmd := m.Update(keyMsg("c"))
	if cmd == nil {
		t.Fatal("c should return a copy command")
	}

	m, _ = m.Update(issueCopiedMsg{err: errors.New("no clipboard")})
	if m.statusMsg != "Could not copy to clipboard" || !m.statusErr {
		t.Errorf("status = %q", m.statusMsg)
	}
}

func TestCopyText(t *testing.T) {
	got := copyText(domain.Issue{Title: "Fix bug", Status: domain.StatusOpen})
	want := "Fix bug [Open]\n\nNo description\n"
	if got != want {
		t.Errorf("copyText = %q, want %q", got, want)
	}
}

func TestDashboardIssuesChangedReplacesSnapshot(t *testing.T) {
	m, _ := newTestDashboard(t, sampleIssue("one", domain.StatusOpen), sampleIssue("two", domain.StatusOpen))
	m.cursor = 1

	m, _ = m.Update(issuesChangedMsg{snap: issues.Snapshot{Loaded: true, Version: m.snap.Version + 1}})
	if len(m.snap.Issues) != 0 || m.cursor != 0 {
		t.Errorf("issues=%d cursor=%d, want empty and clamped", len(m.snap.Issues), m.cursor)
	}
}

func TestDashboardIgnoresOlderSnapshots(t *testing.T) {
	m, _ := newTestDashboard(t, sampleIssue("one", domain.StatusOpen), sampleIssue("two", domain.StatusOpen))
	m = dashKey(t, m, "d")
	m = dashKey(t, m, "y")
	if len(m.snap.Issues) != 1 {
		t.Fatalf("issues = %d after delete, want 1", len(m.snap.Issues))
	}

	stale := issues.Snapshot{
		Loaded:  true,
		Issues:  []domain.Issue{sampleIssue("one", domain.StatusOpen), sampleIssue("two", domain.StatusOpen)},
		Version: m.snap.Version - 1,
	}
	m, _ = m.Update(issuesChangedMsg{snap: stale})
	if len(m.snap.Issues) != 1 {
		t.Errorf("stale snapshot brought back deleted rows: %d issues", len(m.snap.Issues))
	}
}
