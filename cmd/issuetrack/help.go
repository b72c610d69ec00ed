package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/naveenspark/issuetrack/internal/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ade80")).
			Bold(true)
	cmdStyle  = lipgloss.NewStyle().Bold(true)
	descStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

func printHelp(w io.Writer) {
	commands := []struct{ cmd, desc string }{
		{"issuetrack", "Open your issues (interactive TUI)"},
		{"issuetrack login", "Log in, then open your issues"},
		{"issuetrack signup", "Create an account"},
		{"issuetrack logout", "End your session"},
		{"issuetrack config", "List configuration variables"},
		{"issuetrack version", "Show version"},
		{"issuetrack help", "You are here"},
	}
	flags := []struct{ cmd, desc string }{
		{"--ephemeral", "Keep the session in memory only"},
	}

	fmt.Fprintf(w, "\n  %s\n\n  Commands:\n", titleStyle.Render("Your Issue Tracker"))
	for _, c := range commands {
		fmt.Fprintf(w, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", c.cmd)), descStyle.Render(c.desc))
	}
	fmt.Fprintf(w, "\n  Flags:\n")
	for _, f := range flags {
		fmt.Fprintf(w, "    %s  %s\n", cmdStyle.Render(fmt.Sprintf("%-20s", f.cmd)), descStyle.Render(f.desc))
	}
	fmt.Fprintln(w)
}

func printConfigHelp(w io.Writer) {
	fmt.Fprintf(w, "\n  %s\n\n", titleStyle.Render("Configuration"))
	fmt.Fprintf(w, "  %s\n\n", descStyle.Render("Read from $ISSUETRACK_CONFIG or ~/.issuetrack/config.yaml; environment variables override the file."))
	fmt.Fprintln(w, config.Usage())
}
