package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chitchat/chitchat/internal/config"
	"github.com/chitchat/chitchat/internal/logger"
	"github.com/chitchat/chitchat/internal/tui"
	"github.com/chitchat/chitchat/pkg/client"
	"github.com/chitchat/chitchat/pkg/domain"
	"github.com/chitchat/chitchat/pkg/store"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app is the client-side stack wired for one command invocation.
type app struct {
	cfg     *config.Config
	log     zerolog.Logger
	closer  io.Closer
	client  *client.Client
	push    *client.Realtime
	session *store.Session
	rooms   *store.Rooms
	dir     *store.Directory
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log, closer, err := logger.New(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	c := client.New(cfg.APIURL, "")
	c.SetTimeout(cfg.RequestTimeout)

	tokens := config.EnvToken{Token: cfg.Token, File: &config.TokenFile{Path: filepath.Join(cfg.Dir, "token")}}
	session := store.NewSession(c, tokens, &log)

	changes := make(chan store.Change, 64)
	push := c.Realtime(cfg.WSURL)
	opts := store.Options{
		Logger:   &log,
		Changes:  changes,
		Bots:     c,
		Typing:   push,
		BotDelay: cfg.BotReplyDelay,
		PageSize: cfg.HistoryPageSize,
	}
	rooms := store.NewRooms(c, opts)
	dir := store.NewDirectory(c, opts)

	session.OnLogin(func(u domain.User) {
		rooms.SetSelf(u)
		dir.SetSelf(u)
	})
	session.OnLogout(func() {
		rooms.Reset()
		dir.Reset()
	})

	return &app{cfg: cfg, log: log, closer: closer, client: c, push: push, session: session, rooms: rooms, dir: dir}, nil
}

func (a *app) Close() {
	a.rooms.Close()
	a.dir.Close()
	a.closer.Close() //nolint:errcheck // best-effort close of the log file
}

// requireSession restores the stored session or explains how to get one.
func (a *app) requireSession(ctx context.Context) (domain.User, error) {
	u, ok, err := a.session.Restore(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("restore session: %w", err)
	}
	if !ok {
		return domain.User{}, errSignedOut
	}
	return u, nil
}

// withApp wires the stack around a command body.
func withApp(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, a, args)
	}
}

// withSession is withApp for commands that need a signed-in user.
func withSession(fn func(cmd *cobra.Command, a *app, args []string) error) func(*cobra.Command, []string) error {
	return withApp(func(cmd *cobra.Command, a *app, args []string) error {
		if _, err := a.requireSession(cmd.Context()); err != nil {
			return err
		}
		return fn(cmd, a, args)
	})
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chitchat",
		Short:         "Chat with friends, groups and AI bots from the terminal",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          withApp(runTUI),
	}
	root.CompletionOptions.DisableDefaultCmd = true

	root.AddCommand(
		newLoginCmd(),
		newRegisterCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newRoomsCmd(),
		newSendCmd(),
		newSearchCmd(),
		newFriendsCmd(),
		newFilesCmd(),
		newBotCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "chitchat "+version)
		},
	}
}

func runTUI(cmd *cobra.Command, a *app, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if _, err := a.requireSession(ctx); err != nil {
		if errors.Is(err, errSignedOut) {
			printSignedOut(cmd.OutOrStdout())
			return nil
		}
		return err
	}

	if err := store.Hydrate(ctx, a.rooms, a.dir); err != nil {
		// The stores keep whatever loaded; the sync loop retries.
		a.log.Warn().Err(err).Msg("initial load incomplete")
	}

	syncer := store.NewSync(a.push, a.rooms, a.dir, &a.log, 0)
	syncErr := make(chan error, 1)
	go func() { syncErr <- syncer.Run(ctx) }()

	model := tui.NewApp(tui.Deps{
		Session: a.session,
		Rooms:   a.rooms,
		Dir:     a.dir,
		Bots:    a.client,
		Version: version,
	})
	p := tea.NewProgram(model, tea.WithAltScreen())
	go func() {
		if err := <-syncErr; err != nil {
			a.log.Error().Err(err).Msg("push channel stopped")
			p.Send(tea.Quit())
		}
	}()
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("tui error: %w", err)
	}
	return nil
}
