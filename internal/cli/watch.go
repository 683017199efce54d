package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/roach88/danmaku/internal/engine"
	"github.com/roach88/danmaku/internal/feed"
	"github.com/roach88/danmaku/internal/render"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	ConfigFile     string
	TUI            bool
	CellPx         float64
	SubscribeDelay time.Duration
	LogFile        string
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <server-url>",
		Short: "Attach a comment wall to a server",
		Long: `Attach a comment wall to an event server.

The wall loads the current messages, subscribes to the event stream and
schedules every message into a lane, looping it until it is deleted.

Without --tui each scheduled and finished traversal is logged. With --tui
the wall is drawn in the terminal.

Example:
  danmaku watch http://localhost:8000
  danmaku watch http://localhost:8000 --tui --config wall.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.ConfigFile, "config", "", "wall config file (.cue)")
	cmd.Flags().BoolVar(&opts.TUI, "tui", false, "draw the wall in the terminal")
	cmd.Flags().Float64Var(&opts.CellPx, "cell-px", render.DefaultCellPx, "pixels per terminal cell (--tui)")
	cmd.Flags().DurationVar(&opts.SubscribeDelay, "subscribe-delay", feed.DefaultSubscribeDelay, "pause between the initial load and subscribing")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "write logs to this file (--tui discards them otherwise)")

	return cmd
}

func runWatch(opts *WatchOptions, baseURL string, cmd *cobra.Command) error {
	cfg, err := LoadWallConfig(opts.ConfigFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load wall config", err)
	}

	client, err := feed.NewClient(baseURL)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid server url", err)
	}

	if opts.TUI || opts.LogFile != "" {
		closeLog, err := redirectLogs(opts)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		defer closeLog()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if opts.TUI {
		return watchTUI(ctx, opts, cfg, client, baseURL)
	}
	return watchLog(ctx, opts, cfg, client)
}

// redirectLogs sends logs to --log-file, or discards them.
func redirectLogs(opts *WatchOptions) (func(), error) {
	var out io.Writer = io.Discard
	closer := func() {}
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		out = f
		closer = func() { _ = f.Close() }
	}
	o := *opts.RootOptions
	o.LogOutput = out
	setupLogging(&o)
	return closer, nil
}

// watchLog runs a headless wall: the engine completes instances on its
// own timers and a log observer stands in for the renderer.
func watchLog(ctx context.Context, opts *WatchOptions, cfg engine.Config, client *feed.Client) error {
	eng, err := engine.New(cfg, engine.GlyphEstimator{},
		engine.WithAutoComplete(),
		engine.WithObserver(engine.LogObserver{}),
	)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	session := feed.NewSession(client, eng, feed.WithSubscribeDelay(opts.SubscribeDelay))
	return runWall(ctx, eng, session)
}

func watchTUI(ctx context.Context, opts *WatchOptions, cfg engine.Config, client *feed.Client, title string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	eng, err := engine.New(cfg, render.CellEstimator{CellPx: opts.CellPx})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	model := render.NewModel(render.Config{Lanes: cfg.Lanes, CellPx: opts.CellPx, Title: title}, eng)
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	eng.Subscribe(render.NewObserver(program))

	session := feed.NewSession(client, eng,
		feed.WithSubscribeDelay(opts.SubscribeDelay),
		feed.WithStatusHook(func(st feed.Status) {
			program.Send(render.StatusMsg{Text: statusText(st)})
		}),
	)

	wallErr := make(chan error, 1)
	go func() { wallErr <- runWall(ctx, eng, session) }()

	_, runErr := program.Run()
	cancel()
	err = <-wallErr
	if runErr != nil && !errors.Is(runErr, tea.ErrProgramKilled) {
		return WrapExitError(ExitFailure, "terminal renderer failed", runErr)
	}
	return err
}

// runWall runs the engine loop and the session until ctx ends. A session
// failure leaves the wall running with what it already holds.
func runWall(ctx context.Context, eng *engine.Engine, session *feed.Session) error {
	engineDone := make(chan error, 1)
	go func() { engineDone <- eng.Run(ctx) }()

	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		slog.Warn("live updates stopped, wall keeps its current messages", "error", err)
	}

	<-ctx.Done()
	if err := <-engineDone; err != nil && !errors.Is(err, ctx.Err()) {
		return WrapExitError(ExitFailure, "engine stopped", err)
	}
	return nil
}

func statusText(st feed.Status) string {
	if st.Err != nil {
		return fmt.Sprintf("%s: %v", st.State, st.Err)
	}
	return st.State.String()
}
