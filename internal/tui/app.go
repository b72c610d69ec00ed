package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/issuetrack/internal/browser"
	"github.com/naveenspark/issuetrack/internal/issues"
	"github.com/naveenspark/issuetrack/internal/session"
	"github.com/naveenspark/issuetrack/pkg/domain"
)

type view int

const (
	viewStartup view = iota
	viewLogin
	viewSignup
	viewDashboard
)

// expiredNotice is shown on the login form when the session ends without
// the user asking.
const expiredNotice = "Your session has expired. Please log in again."

// initDoneMsg carries the outcome of resuming a stored session.
type initDoneMsg struct {
	state session.State
	err   error
}

// sessionEventMsg carries a session change pushed by the bridge.
type sessionEventMsg struct {
	ev session.Event
}

type logoutDoneMsg struct{ err error }

// Link is an entry in the help overlay that opens in the browser.
type Link struct {
	Label string
	URL   string
}

// App is the root Bubbletea model.
type App struct {
	sessions   *session.Manager
	store      *issues.Store
	view       view
	start      view // form shown when no session resumes
	login      authModel
	signup     authModel
	dashboard  dashboardModel
	spinner    spinner.Model
	helpOpen   bool
	helpCursor int
	links      []helpItem
	loggingOut bool
	width      int
	height     int
}

// Option configures an App.
type Option func(*App)

// WithSignupFirst starts on the sign up form instead of the login form.
func WithSignupFirst() Option {
	return func(a *App) { a.start = viewSignup }
}

// WithLinks lists links in the help overlay.
func WithLinks(links ...Link) Option {
	return func(a *App) {
		for _, l := range links {
			if l.URL == "" {
				continue
			}
			a.links = append(a.links, helpItem{label: l.Label, desc: l.URL, url: l.URL})
		}
	}
}

// NewApp creates a new TUI application.
func NewApp(sessions *session.Manager, store *issues.Store, opts ...Option) App {
	a := App{
		sessions:  sessions,
		store:     store,
		view:      viewStartup,
		start:     viewLogin,
		login:     newAuthModel(authLogin, sessions),
		signup:    newAuthModel(authSignup, sessions),
		dashboard: newDashboardModel(store, ""),
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(accentStyle),
		),
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.initialize())
}

func (a App) initialize() tea.Cmd {
	sessions := a.sessions
	return func() tea.Msg {
		state, err := sessions.Initialize(context.Background())
		return initDoneMsg{state: state, err: err}
	}
}

func (a App) logout() tea.Cmd {
	sessions := a.sessions
	return func() tea.Msg {
		return logoutDoneMsg{err: sessions.LogOut(context.Background())}
	}
}

// enterDashboard routes to the dashboard and starts the first load. It is a
// no-op when the dashboard is already showing.
func (a *App) enterDashboard() tea.Cmd {
	if a.view == viewDashboard {
		return nil
	}
	email := ""
	if s := a.sessions.Session(); s != nil {
		email = s.User.Email
	}
	a.view = viewDashboard
	a.helpOpen = false
	a.dashboard = newDashboardModel(a.store, email)
	a.dashboard.width = a.width
	a.dashboard.height = a.height - 1
	return a.dashboard.load()
}

// leaveDashboard forgets every issue and returns to the login form. The
// store is reset from a command: its subscribers send into the program,
// which would block while Update is running.
func (a *App) leaveDashboard(reason session.SignOutReason) tea.Cmd {
	if a.view != viewDashboard {
		return nil
	}
	store := a.store
	reset := func() tea.Msg {
		store.Reset()
		return nil
	}
	a.loggingOut = false
	a.helpOpen = false
	a.dashboard = newDashboardModel(a.store, "")
	a.view = viewLogin
	a.login.reset(true)
	a.login.notice = ""
	a.login.warn = false
	if reason == session.ReasonExpired {
		a.login.notice = expiredNotice
		a.login.warn = true
	}
	return tea.Batch(reset, a.login.focusInputs())
}

// showForm switches to the login or sign up form.
func (a *App) showForm(v view) tea.Cmd {
	a.view = v
	if v == viewSignup {
		return a.signup.focusInputs()
	}
	return a.login.focusInputs()
}

func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		// Chrome: help bar(1)
		a.dashboard, _ = a.dashboard.Update(tea.WindowSizeMsg{Width: msg.Width, Height: msg.Height - 1})
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case initDoneMsg:
		if msg.state == session.Authenticated {
			return a, a.enterDashboard()
		}
		cmd := a.showForm(a.start)
		if msg.err != nil {
			if a.view == viewSignup {
				a.signup.err = domain.UserMessage(msg.err)
			} else {
				a.login.err = domain.UserMessage(msg.err)
			}
		}
		return a, cmd

	case sessionEventMsg:
		switch msg.ev.Kind {
		case session.EventSignedIn:
			if a.view == viewLogin || a.view == viewSignup {
				return a, a.enterDashboard()
			}
		case session.EventTokenRefreshed:
			if msg.ev.Session != nil {
				a.dashboard.email = msg.ev.Session.User.Email
			}
		case session.EventSignedOut:
			return a, a.leaveDashboard(msg.ev.Reason)
		}
		return a, nil

	case authDoneMsg:
		var cmd tea.Cmd
		if msg.kind == authSignup {
			a.signup, _ = a.signup.Update(msg)
			if msg.err == nil {
				a.login.inputs[authFieldEmail].SetValue(msg.email)
				a.login.reset(true)
				a.login.notice = confirmationNotice
				a.login.warn = false
				cmd = a.showForm(viewLogin)
			}
			return a, cmd
		}
		a.login, _ = a.login.Update(msg)
		if msg.err == nil {
			cmd = a.enterDashboard()
		}
		return a, cmd

	case logoutDoneMsg:
		a.loggingOut = false
		if msg.err != nil {
			// The session is intact; stay on the dashboard.
			a.dashboard.setError(msg.err)
			return a, nil
		}
		return a, a.leaveDashboard(session.ReasonUser)

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return a, tea.Quit
		}

		// Help overlay captures all keys when open
		if a.helpOpen {
			switch msg.String() {
			case "?", "esc":
				a.helpOpen = false
			case "q":
				return a, tea.Quit
			case "j", "down":
				if a.helpCursor < len(a.links)-1 {
					a.helpCursor++
				}
			case "k", "up":
				if a.helpCursor > 0 {
					a.helpCursor--
				}
			case "enter":
				if a.helpCursor < len(a.links) {
					browser.Open(a.links[a.helpCursor].url) //nolint:errcheck // best-effort browser open
				}
			}
			return a, nil
		}

		if a.view == viewStartup {
			if key.Matches(msg, keys.QuitNav) {
				return a, tea.Quit
			}
			return a, nil
		}

		if (a.view == viewLogin || a.view == viewSignup) && key.Matches(msg, keys.Switch) {
			if a.login.busy || a.signup.busy {
				return a, nil
			}
			if a.view == viewLogin {
				return a, a.showForm(viewSignup)
			}
			return a, a.showForm(viewLogin)
		}

		// Global keys (only when not editing)
		if !a.isEditing() {
			switch {
			case key.Matches(msg, keys.Help):
				a.helpOpen = true
				a.helpCursor = 0
				return a, nil
			case key.Matches(msg, keys.QuitNav):
				return a, tea.Quit
			case key.Matches(msg, keys.Logout) && a.view == viewDashboard:
				if a.loggingOut {
					return a, nil
				}
				a.loggingOut = true
				a.dashboard.statusMsg = ""
				return a, a.logout()
			}
		}
	}

	var cmd tea.Cmd
	switch a.view {
	case viewLogin:
		a.login, cmd = a.login.Update(msg)
	case viewSignup:
		a.signup, cmd = a.signup.Update(msg)
	case viewDashboard:
		a.dashboard, cmd = a.dashboard.Update(msg)
	}
	return a, cmd
}

func (a App) isEditing() bool {
	switch a.view {
	case viewLogin, viewSignup:
		return true
	case viewDashboard:
		return a.dashboard.isEditing()
	}
	return false
}

func (a App) View() string {
	spin := a.spinner.View()

	var body, help string
	switch a.view {
	case viewStartup:
		body = fmt.Sprintf("\n  %s %s\n", spin, dimStyle.Render("Restoring session..."))
		help = helpBar(bindingHelp(keys.QuitNav))
	case viewLogin:
		body = a.login.View(spin)
		help = a.login.helpKeys()
	case viewSignup:
		body = a.signup.View(spin)
		help = a.signup.helpKeys()
	case viewDashboard:
		body = a.dashboard.View(spin)
		if a.loggingOut {
			body += fmt.Sprintf("\n  %s %s\n", spin, dimStyle.Render("Logging out..."))
		}
		help = a.dashboard.helpKeys()
	}

	if a.helpOpen {
		body = helpView(a.links, a.helpCursor)
		help = helpBar(helpEntry("j/k", "nav"), helpEntry("enter", "open"), helpEntry("esc", "close"))
	}

	// Chrome budget: help(1) + body
	chrome := 1
	body = strings.TrimRight(truncateToHeight(body, a.height-chrome), "\n")

	return fmt.Sprintf("%s\n%s", body, help)
}
