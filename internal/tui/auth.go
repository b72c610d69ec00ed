package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/issuetrack/internal/session"
	"github.com/naveenspark/issuetrack/pkg/domain"
)

// authKind selects which of the two credential forms a model drives.
type authKind int

const (
	authLogin authKind = iota
	authSignup
)

const (
	authFieldEmail = iota
	authFieldPassword
	numAuthFields
)

// confirmationNotice is shown on the login form after a successful sign up.
const confirmationNotice = "Check your email for confirmation"

// authDoneMsg carries the result of a sign up or log in.
type authDoneMsg struct {
	kind  authKind
	email string
	err   error
}

type authModel struct {
	kind     authKind
	sessions *session.Manager
	inputs   [numAuthFields]textinput.Model
	focus    int
	busy     bool
	err      string
	notice   string
	warn     bool // notice is a warning, not a success
}

func newTextInput(placeholder string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = ""
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.PlaceholderStyle = inputPlaceholderStyle
	ti.Cursor.SetMode(cursor.CursorStatic)
	return ti
}

func newAuthModel(kind authKind, sessions *session.Manager) authModel {
	m := authModel{kind: kind, sessions: sessions}
	m.inputs[authFieldEmail] = newTextInput("you@example.com", 254)
	pw := newTextInput("password", 128)
	pw.EchoMode = textinput.EchoPassword
	pw.EchoCharacter = '•'
	m.inputs[authFieldPassword] = pw
	return m
}

func (m authModel) title() string {
	if m.kind == authSignup {
		return "Sign up"
	}
	return "Log in"
}

// focusInputs focuses the current field and blurs the other.
func (m *authModel) focusInputs() tea.Cmd {
	var cmd tea.Cmd
	for i := range m.inputs {
		if i == m.focus {
			cmd = m.inputs[i].Focus()
		} else {
			m.inputs[i].Blur()
		}
	}
	return cmd
}

// reset clears both fields. The email survives when keepEmail is set so a
// user sent back to the form does not retype it.
func (m *authModel) reset(keepEmail bool) {
	if !keepEmail {
		m.inputs[authFieldEmail].SetValue("")
	}
	m.inputs[authFieldPassword].SetValue("")
	m.focus = authFieldEmail
	if keepEmail && m.inputs[authFieldEmail].Value() != "" {
		m.focus = authFieldPassword
	}
	m.busy = false
	m.err = ""
}

func (m authModel) Update(msg tea.Msg) (authModel, tea.Cmd) {
	switch msg := msg.(type) {
	case authDoneMsg:
		if msg.kind != m.kind {
			return m, nil
		}
		m.busy = false
		if msg.err != nil {
			m.err = domain.UserMessage(msg.err)
			return m, nil
		}
		m.reset(false)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m authModel) handleKey(msg tea.KeyMsg) (authModel, tea.Cmd) {
	if m.busy {
		// Repeat submission is disabled while a request is running.
		return m, nil
	}
	switch {
	case key.Matches(msg, keys.Submit):
		if m.focus == authFieldEmail {
			m.focus = authFieldPassword
			return m, m.focusInputs()
		}
		return m.submit()
	case key.Matches(msg, keys.NextField), msg.String() == "down":
		m.focus = (m.focus + 1) % numAuthFields
		return m, m.focusInputs()
	case key.Matches(msg, keys.PrevField), msg.String() == "up":
		m.focus = (m.focus - 1 + numAuthFields) % numAuthFields
		return m, m.focusInputs()
	}

	m.err = ""
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m authModel) submit() (authModel, tea.Cmd) {
	email := strings.TrimSpace(m.inputs[authFieldEmail].Value())
	password := m.inputs[authFieldPassword].Value()
	m.busy = true
	m.err = ""
	m.notice = ""
	m.warn = false

	sessions, kind := m.sessions, m.kind
	return m, func() tea.Msg {
		var err error
		if kind == authSignup {
			err = sessions.SignUp(context.Background(), email, password)
		} else {
			err = sessions.LogIn(context.Background(), email, password)
		}
		return authDoneMsg{kind: kind, email: email, err: err}
	}
}

func (m authModel) View(spin string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n  %s\n\n", headerStyle.Render(m.title()))

	labels := [numAuthFields]string{"email", "password"}
	for i := range m.inputs {
		marker := " "
		style := metaStyle
		if i == m.focus {
			marker = accentStyle.Render(">")
			style = selectedStyle
		}
		fmt.Fprintf(&b, "  %s %s %s\n", marker, style.Render(fmt.Sprintf("%-9s", labels[i])), m.inputs[i].View())
	}
	b.WriteString("\n")

	switch {
	case m.busy && m.kind == authSignup:
		fmt.Fprintf(&b, "  %s %s\n", spin, dimStyle.Render("Signing up..."))
	case m.busy:
		fmt.Fprintf(&b, "  %s %s\n", spin, dimStyle.Render("Logging in..."))
	default:
		fmt.Fprintf(&b, "  %s\n", inputPromptStyle.Render("[ "+m.title()+" ]"))
	}

	if m.err != "" {
		fmt.Fprintf(&b, "\n  %s\n", errorStyle.Render(m.err))
	}
	if m.notice != "" {
		style := successStyle
		if m.warn {
			style = warnStyle
		}
		fmt.Fprintf(&b, "\n  %s\n", style.Render(m.notice))
	}

	b.WriteString("\n")
	if m.kind == authSignup {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render("Already have an account? ctrl+n to log in"))
	} else {
		fmt.Fprintf(&b, "  %s\n", dimStyle.Render("No account yet? ctrl+n to sign up"))
	}
	return b.String()
}

func (m authModel) helpKeys() string {
	other := "sign up"
	if m.kind == authSignup {
		other = "log in"
	}
	return helpBar(
		bindingHelp(keys.NextField),
		bindingHelp(keys.Submit),
		helpEntry("ctrl+n", other),
		bindingHelp(keys.Quit),
	)
}
