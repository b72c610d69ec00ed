package tui

import "github.com/charmbracelet/bubbles/key"

// keyMap holds every binding the views react to.
type keyMap struct {
	Quit      key.Binding
	QuitNav   key.Binding
	Help      key.Binding
	Up        key.Binding
	Down      key.Binding
	NextField key.Binding
	PrevField key.Binding
	Submit    key.Binding
	Save      key.Binding
	Switch    key.Binding
	Back      key.Binding
	New       key.Binding

	// Issue list
	StatusPrev key.Binding
	StatusNext key.Binding
	Delete     key.Binding
	Confirm    key.Binding
	Decline    key.Binding
	Reload     key.Binding
	Copy       key.Binding
	Logout     key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("ctrl+c"),
		key.WithHelp("ctrl+c", "quit"),
	),
	QuitNav: key.NewBinding(
		key.WithKeys("q"),
		key.WithHelp("q", "quit"),
	),
	Help: key.NewBinding(
		key.WithKeys("?"),
		key.WithHelp("?", "help"),
	),
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("j/k", "nav"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/k", "nav"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab"),
		key.WithHelp("tab", "next"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab"),
		key.WithHelp("shift+tab", "prev"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "submit"),
	),
	Save: key.NewBinding(
		key.WithKeys("ctrl+s"),
		key.WithHelp("ctrl+s", "create"),
	),
	Switch: key.NewBinding(
		key.WithKeys("ctrl+n"),
	),
	Back: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "list"),
	),
	New: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new"),
	),
	StatusPrev: key.NewBinding(
		key.WithKeys("h", "left"),
		key.WithHelp("h/l", "status"),
	),
	StatusNext: key.NewBinding(
		key.WithKeys("l", "right"),
		key.WithHelp("h/l", "status"),
	),
	Delete: key.NewBinding(
		key.WithKeys("d"),
		key.WithHelp("d", "delete"),
	),
	Confirm: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "yes"),
	),
	Decline: key.NewBinding(
		key.WithKeys("n", "esc"),
		key.WithHelp("n", "no"),
	),
	Reload: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "reload"),
	),
	Copy: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "copy"),
	),
	Logout: key.NewBinding(
		key.WithKeys("L"),
		key.WithHelp("L", "logout"),
	),
}

// bindingHelp renders a binding's help text as a help bar entry.
func bindingHelp(b key.Binding) string {
	h := b.Help()
	return helpEntry(h.Key, h.Desc)
}

// helpBar joins help entries the way every view's footer shows them.
func helpBar(entries ...string) string {
	out := " "
	for i, e := range entries {
		if i > 0 {
			out += "  "
		}
		out += e
	}
	return out
}
