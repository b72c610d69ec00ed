package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/issuetrack/internal/issues"
	"github.com/naveenspark/issuetrack/internal/session"
)

// Sender delivers messages into a running program. *tea.Program satisfies it.
type Sender interface {
	Send(msg tea.Msg)
}

// Bridge forwards session events and issue store changes to p as
// messages. The returned function releases both subscriptions; call it
// once the program has exited.
func Bridge(p Sender, sessions *session.Manager, store *issues.Store) func() {
	sub := sessions.Subscribe(func(ev session.Event) {
		p.Send(sessionEventMsg{ev: ev})
	})
	unsubscribe := store.Subscribe(func(snap issues.Snapshot) {
		p.Send(issuesChangedMsg{snap: snap})
	})
	return func() {
		sub.Unsubscribe()
		unsubscribe()
	}
}
