package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/naveenspark/issuetrack/internal/issues"
	"github.com/naveenspark/issuetrack/pkg/domain"
)

// dashFocus is where keystrokes go on the dashboard.
type dashFocus int

const (
	focusTitle dashFocus = iota
	focusDescription
	focusStatus
	focusList
	numDashFocus
)

// cardHeight is the number of lines one rendered issue card takes.
const cardHeight = 5

// -- messages --

// issuesChangedMsg carries a store snapshot pushed by the bridge.
type issuesChangedMsg struct {
	snap issues.Snapshot
}

type issuesLoadedMsg struct{ err error }

type issueCreatedMsg struct{ err error }

type statusUpdatedMsg struct {
	id  uuid.UUID
	err error
}

type issueDeletedMsg struct {
	id  uuid.UUID
	err error
}

type issueCopiedMsg struct{ err error }

// confirmAnswer is the user's reply to the delete prompt.
type confirmAnswer bool

func (a confirmAnswer) Confirm(context.Context, domain.Issue) bool { return bool(a) }

// -- model --

type dashboardModel struct {
	store       *issues.Store
	email       string
	snap        issues.Snapshot
	title       textinput.Model
	description textinput.Model
	status      domain.Status
	focus       dashFocus
	cursor      int
	creating    bool
	confirming  bool
	confirmID   uuid.UUID
	statusMsg   string
	statusErr   bool
	width       int
	height      int
	now         func() time.Time
}

func newDashboardModel(store *issues.Store, email string) dashboardModel {
	m := dashboardModel{
		store:       store,
		email:       email,
		title:       newTextInput("What needs doing?", 200),
		description: newTextInput("optional", 2000),
		status:      domain.DefaultStatus,
		focus:       focusList,
		now:         time.Now,
	}
	if store != nil {
		m.snap = store.Snapshot()
	}
	return m
}

func (m dashboardModel) load() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		return issuesLoadedMsg{err: store.List(context.Background())}
	}
}

// isEditing reports whether printable keys belong to a text field.
func (m dashboardModel) isEditing() bool {
	return m.focus == focusTitle || m.focus == focusDescription || m.confirming
}

func (m *dashboardModel) setError(err error) {
	m.statusMsg = domain.UserMessage(err)
	m.statusErr = true
}

func (m *dashboardModel) setNotice(s string) {
	m.statusMsg = s
	m.statusErr = false
}

// refresh pulls the latest store state when no bridge is pushing it.
func (m *dashboardModel) refresh() {
	if m.store != nil {
		m.snap = m.store.Snapshot()
	}
	m.clampCursor()
}

func (m *dashboardModel) clampCursor() {
	if m.cursor >= len(m.snap.Issues) {
		m.cursor = len(m.snap.Issues) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m dashboardModel) selected() (domain.Issue, bool) {
	if m.cursor < 0 || m.cursor >= len(m.snap.Issues) {
		return domain.Issue{}, false
	}
	return m.snap.Issues[m.cursor], true
}

func (m *dashboardModel) setFocus(f dashFocus) tea.Cmd {
	m.focus = f
	m.title.Blur()
	m.description.Blur()
	switch f {
	case focusTitle:
		return m.title.Focus()
	case focusDescription:
		return m.description.Focus()
	}
	return nil
}

func (m *dashboardModel) resetForm() tea.Cmd {
	m.title.SetValue("")
	m.description.SetValue("")
	m.status = domain.DefaultStatus
	return m.setFocus(focusTitle)
}

func (m dashboardModel) Update(msg tea.Msg) (dashboardModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case issuesChangedMsg:
		// Snapshots are sent from command goroutines and can arrive late.
		if msg.snap.Version <= m.snap.Version {
			return m, nil
		}
		m.snap = msg.snap
		m.clampCursor()
		return m, nil

	case issuesLoadedMsg:
		m.refresh()
		if msg.err != nil {
			m.setError(msg.err)
		}
		return m, nil

	case issueCreatedMsg:
		m.creating = false
		m.refresh()
		if msg.err != nil {
			// The form keeps its contents so the user can retry.
			m.setError(msg.err)
			var verr *domain.ValidationError
			if errors.As(msg.err, &verr) && verr.Field == "title" {
				return m, m.setFocus(focusTitle)
			}
			return m, nil
		}
		m.setNotice("Issue created")
		m.cursor = 0
		return m, m.resetForm()

	case statusUpdatedMsg:
		m.refresh()
		if msg.err != nil {
			m.setError(msg.err)
		}
		return m, nil

	case issueDeletedMsg:
		m.refresh()
		switch {
		case errors.Is(msg.err, domain.ErrNotConfirmed):
		case msg.err != nil:
			m.setError(msg.err)
		default:
			m.setNotice("Issue deleted")
		}
		return m, nil

	case issueCopiedMsg:
		if msg.err != nil {
			m.statusMsg = "Could not copy to clipboard"
			m.statusErr = true
		} else {
			m.setNotice("Copied to clipboard")
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m dashboardModel) handleKey(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	if m.confirming {
		return m.handleKeyConfirming(msg)
	}

	switch {
	case key.Matches(msg, keys.Save):
		return m.submit()
	case key.Matches(msg, keys.NextField):
		return m, m.setFocus((m.focus + 1) % numDashFocus)
	case key.Matches(msg, keys.PrevField):
		return m, m.setFocus((m.focus - 1 + numDashFocus) % numDashFocus)
	}

	switch m.focus {
	case focusTitle, focusDescription:
		return m.handleKeyField(msg)
	case focusStatus:
		switch {
		case key.Matches(msg, keys.StatusPrev):
			m.status = m.status.Prev()
		case key.Matches(msg, keys.StatusNext):
			m.status = m.status.Next()
		case key.Matches(msg, keys.Back):
			return m, m.setFocus(focusList)
		}
		return m, nil
	}
	return m.handleKeyList(msg)
}

func (m dashboardModel) handleKeyField(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Back):
		return m, m.setFocus(focusList)
	case key.Matches(msg, keys.Submit):
		return m, m.setFocus(m.focus + 1)
	}
	var cmd tea.Cmd
	if m.focus == focusTitle {
		m.title, cmd = m.title.Update(msg)
	} else {
		m.description, cmd = m.description.Update(msg)
	}
	return m, cmd
}

func (m dashboardModel) handleKeyList(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Down):
		if m.cursor < len(m.snap.Issues)-1 {
			m.cursor++
		}
	case key.Matches(msg, keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, keys.New):
		return m, m.setFocus(focusTitle)
	case key.Matches(msg, keys.StatusPrev):
		return m.cycleStatus(-1)
	case key.Matches(msg, keys.StatusNext):
		return m.cycleStatus(1)
	case key.Matches(msg, keys.Delete):
		if is, ok := m.selected(); ok {
			m.confirming = true
			m.confirmID = is.ID
		}
	case key.Matches(msg, keys.Reload):
		m.statusMsg = ""
		return m, m.load()
	case key.Matches(msg, keys.Copy):
		if is, ok := m.selected(); ok {
			text := copyText(is)
			return m, func() tea.Msg {
				return issueCopiedMsg{err: clipboard.WriteAll(text)}
			}
		}
	}
	return m, nil
}

func (m dashboardModel) handleKeyConfirming(msg tea.KeyMsg) (dashboardModel, tea.Cmd) {
	var answer confirmAnswer
	switch {
	case key.Matches(msg, keys.Confirm):
		answer = true
	case key.Matches(msg, keys.Decline):
		answer = false
	default:
		return m, nil
	}
	m.confirming = false
	store, id := m.store, m.confirmID
	return m, func() tea.Msg {
		return issueDeletedMsg{id: id, err: store.Delete(context.Background(), id, answer)}
	}
}

// cycleStatus moves the selected issue's status one step. Repeated presses
// cycle from the status already requested, not the one last confirmed.
func (m dashboardModel) cycleStatus(delta int) (dashboardModel, tea.Cmd) {
	is, ok := m.selected()
	if !ok {
		return m, nil
	}
	base := is.Status
	if p, ok := m.snap.Pending[is.ID]; ok {
		base = p
	}
	next := base.Next()
	if delta < 0 {
		next = base.Prev()
	}

	if m.snap.Pending == nil {
		m.snap.Pending = make(map[uuid.UUID]domain.Status)
	}
	m.snap.Pending[is.ID] = next

	store, id := m.store, is.ID
	return m, func() tea.Msg {
		return statusUpdatedMsg{id: id, err: store.UpdateStatus(context.Background(), id, next)}
	}
}

func (m dashboardModel) submit() (dashboardModel, tea.Cmd) {
	if m.creating {
		return m, nil
	}
	title := m.title.Value()
	description := m.description.Value()
	status := m.status

	m.creating = true
	m.statusMsg = ""
	store := m.store
	return m, func() tea.Msg {
		return issueCreatedMsg{err: store.Create(context.Background(), title, description, status)}
	}
}

func copyText(is domain.Issue) string {
	desc := is.Description
	if desc == "" {
		desc = "No description"
	}
	return fmt.Sprintf("%s [%s]\n\n%s\n", is.Title, is.Status, desc)
}

// -- view --

func (m dashboardModel) View(spin string) string {
	var b strings.Builder

	header := headerStyle.Render("Your Issue Tracker")
	if m.email != "" {
		email := dimStyle.Render(m.email)
		gap := m.width - lipgloss.Width(header) - lipgloss.Width(email) - 4
		if gap < 2 {
			gap = 2
		}
		header += strings.Repeat(" ", gap) + email
	}
	fmt.Fprintf(&b, "\n  %s\n\n", header)

	b.WriteString(m.formView(spin))
	b.WriteString("\n")
	b.WriteString(m.listView(spin))

	if m.statusMsg != "" {
		style := successStyle
		if m.statusErr {
			style = errorStyle
		}
		fmt.Fprintf(&b, "\n  %s\n", style.Render(m.statusMsg))
	}
	return b.String()
}

func (m dashboardModel) formView(spin string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  %s\n", sectionHeaderStyle.Render("New issue"))

	row := func(f dashFocus, label, value string) {
		marker := " "
		style := metaStyle
		if m.focus == f {
			marker = accentStyle.Render(">")
			style = selectedStyle
		}
		fmt.Fprintf(&b, "  %s %s %s\n", marker, style.Render(fmt.Sprintf("%-12s", label)), value)
	}
	row(focusTitle, "title", m.title.View())
	row(focusDescription, "description", m.description.View())
	status := renderStatusSelector(m.status, m.focus == focusStatus)
	if m.focus == focusStatus {
		status += "  " + metaStyle.Render("(h/l to cycle)")
	}
	row(focusStatus, "status", status)

	if m.creating {
		fmt.Fprintf(&b, "    %s %s\n", spin, dimStyle.Render("Creating..."))
	} else {
		fmt.Fprintf(&b, "    %s\n", inputPromptStyle.Render("[ ctrl+s Create ]"))
	}
	return b.String()
}

// visibleCards is how many cards fit under the form.
func (m dashboardModel) visibleCards() int {
	if m.height <= 0 {
		return len(m.snap.Issues)
	}
	n := (m.height - 14) / cardHeight
	if n < 1 {
		n = 1
	}
	return n
}

func (m dashboardModel) listView(spin string) string {
	var b strings.Builder

	title := "Issues"
	if m.snap.Loaded {
		title = fmt.Sprintf("Issues (%d)", len(m.snap.Issues))
	}
	fmt.Fprintf(&b, "  %s", sectionHeaderStyle.Render(title))
	if m.snap.Loading && m.snap.Loaded {
		fmt.Fprintf(&b, " %s", spin)
	}
	b.WriteString("\n")

	switch {
	case !m.snap.Loaded && m.snap.Loading:
		fmt.Fprintf(&b, "  %s %s\n", spin, dimStyle.Render("Loading issues..."))
		return b.String()
	case !m.snap.Loaded:
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render("Loading issues..."))
		return b.String()
	case len(m.snap.Issues) == 0:
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render("No issues yet."))
		return b.String()
	}

	visible := m.visibleCards()
	start := 0
	if m.cursor >= visible {
		start = m.cursor - visible + 1
	}
	end := start + visible
	if end > len(m.snap.Issues) {
		end = len(m.snap.Issues)
	}

	width := m.width - 6
	if width > 76 || width <= 0 {
		width = 76
	}
	for i := start; i < end; i++ {
		b.WriteString(m.cardView(m.snap.Issues[i], i == m.cursor, width))
		b.WriteString("\n")
	}
	if end < len(m.snap.Issues) {
		fmt.Fprintf(&b, "  %s\n", metaStyle.Render(fmt.Sprintf("%d more", len(m.snap.Issues)-end)))
	}
	return b.String()
}

func (m dashboardModel) cardView(is domain.Issue, selected bool, width int) string {
	inner := width - 4

	status := is.Status
	pending, isPending := m.snap.Pending[is.ID]
	if isPending {
		status = pending
	}
	selector := renderStatusSelector(status, selected && m.focus == focusList)
	if isPending {
		selector += " " + dimStyle.Render("saving…")
	}

	titleStyle := normalStyle
	if selected {
		titleStyle = selectedStyle
	}
	titleMax := inner - lipgloss.Width(selector) - 2
	title := titleStyle.Render(truncStr(oneLine(is.Title), titleMax))
	gap := inner - lipgloss.Width(title) - lipgloss.Width(selector)
	if gap < 1 {
		gap = 1
	}
	line1 := title + strings.Repeat(" ", gap) + selector

	line2 := metaStyle.Render("No description")
	if is.Description != "" {
		line2 = dimStyle.Render(truncStr(oneLine(is.Description), inner))
	}

	line3 := metaStyle.Render(formatTime(is.CreatedAt, m.now()))
	if m.confirming && m.confirmID == is.ID {
		line3 = warnStyle.Render("Delete this issue? y/n")
	}

	style := cardStyle
	if selected {
		style = selectedCardStyle
	}
	return lipgloss.NewStyle().PaddingLeft(2).Render(
		style.Width(width).Render(line1 + "\n" + line2 + "\n" + line3),
	)
}

func (m dashboardModel) helpKeys() string {
	switch {
	case m.confirming:
		return helpBar(bindingHelp(keys.Confirm), bindingHelp(keys.Decline))
	case m.focus == focusStatus:
		return helpBar(helpEntry("h/l", "status"), bindingHelp(keys.Save), bindingHelp(keys.NextField), bindingHelp(keys.Back))
	case m.isEditing():
		return helpBar(bindingHelp(keys.NextField), bindingHelp(keys.Save), bindingHelp(keys.Back))
	}
	return helpBar(
		bindingHelp(keys.Down),
		bindingHelp(keys.StatusNext),
		bindingHelp(keys.New),
		bindingHelp(keys.Delete),
		bindingHelp(keys.Copy),
		bindingHelp(keys.Reload),
		bindingHelp(keys.Logout),
		bindingHelp(keys.Help),
		bindingHelp(keys.QuitNav),
	)
}
