package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/naveenspark/issuetrack/internal/config"
	"github.com/naveenspark/issuetrack/internal/issues"
	"github.com/naveenspark/issuetrack/internal/logging"
	"github.com/naveenspark/issuetrack/internal/session"
	"github.com/naveenspark/issuetrack/internal/tui"
	"github.com/naveenspark/issuetrack/pkg/client"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// invocation is a parsed command line.
type invocation struct {
	command   string
	ephemeral bool
}

func parseArgs(args []string) (invocation, error) {
	var inv invocation
	for _, a := range args {
		switch a {
		case "--ephemeral":
			inv.ephemeral = true
		case "--version", "-v":
			inv.command = "version"
		case "--help", "-h":
			inv.command = "help"
		default:
			if inv.command != "" {
				return inv, fmt.Errorf("unexpected argument %q", a)
			}
			inv.command = a
		}
	}
	return inv, nil
}

func run(args []string, out io.Writer) error {
	inv, err := parseArgs(args)
	if err != nil {
		return err
	}

	switch inv.command {
	case "version":
		fmt.Fprintln(out, "issuetrack "+version)
		return nil
	case "help":
		printHelp(out)
		return nil
	case "config":
		printConfigHelp(out)
		return nil
	case "", "login", "signup", "logout":
	default:
		return fmt.Errorf("unknown command %q (see issuetrack help)", inv.command)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, closer, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}
	defer closer.Close() //nolint:errcheck

	a := newApp(cfg, logger, inv.ephemeral)
	defer a.sessions.Close()

	logger.Info("starting", "version", version, "command", inv.command, "ephemeral", inv.ephemeral)

	switch inv.command {
	case "logout":
		return a.logout(context.Background(), out)
	case "signup":
		return a.runTUI(tui.WithSignupFirst())
	default:
		return a.runTUI()
	}
}

// app holds the long-lived components one invocation shares.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *session.Manager
	store    *issues.Store
}

func newApp(cfg *config.Config, logger *slog.Logger, ephemeral bool) *app {
	c := client.New(cfg.Backend.URL, cfg.Backend.AnonKey, client.WithTimeout(cfg.Request.Timeout))

	var tokens session.TokenStore = session.NewFileStore(cfg.Session.Path)
	if ephemeral {
		tokens = &session.MemoryStore{}
	}
	mgr := session.NewManager(c, tokens,
		session.WithLogger(logger.With("component", "session")),
		session.WithRefreshMargin(cfg.Session.RefreshMargin),
	)
	store := issues.NewStore(c.WithTokenSource(mgr), mgr,
		issues.WithLogger(logger.With("component", "issues")),
	)
	return &app{cfg: cfg, logger: logger, sessions: mgr, store: store}
}

func (a *app) runTUI(opts ...tui.Option) error {
	opts = append(opts, tui.WithLinks(tui.Link{Label: "Website", URL: a.cfg.Backend.SiteURL}))
	p := tea.NewProgram(tui.NewApp(a.sessions, a.store, opts...), tea.WithAltScreen())
	release := tui.Bridge(p, a.sessions, a.store)
	defer release()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}

// logout signs out without starting the UI.
func (a *app) logout(ctx context.Context, out io.Writer) error {
	state, err := a.sessions.Initialize(ctx)
	if err != nil {
		a.logger.Warn("initialize before logout", "error", err)
	}
	if state != session.Authenticated {
		fmt.Fprintln(out, "Already logged out.")
		return nil
	}
	if err := a.sessions.LogOut(ctx); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	fmt.Fprintln(out, "Logged out.")
	return nil
}
