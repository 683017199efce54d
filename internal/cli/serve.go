package cli

import (
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/danmaku/internal/server"
	"github.com/roach88/danmaku/internal/store"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr        string
	Database    string
	NoStore     bool
	MaxMessages int
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	return newServeCommand(&ServeOptions{RootOptions: rootOpts})
}

func newServeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the event server",
		Long: `Run the message event server.

Settings come from DANMAKU_* environment variables (DANMAKU_ADDR,
DANMAKU_DB_PATH, DANMAKU_TOKEN_TTL, DANMAKU_MAX_IN_MEMORY, ...). Flags
given on the command line take precedence.

Example:
  danmaku serve --addr :8000 --db ./danmaku.db
  DANMAKU_TOKEN_TTL=10m danmaku serve --no-store`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides DANMAKU_ADDR)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (overrides DANMAKU_DB_PATH)")
	cmd.Flags().BoolVar(&opts.NoStore, "no-store", false, "keep messages in memory only")
	cmd.Flags().IntVar(&opts.MaxMessages, "max-messages", 0, "in-memory message limit (overrides DANMAKU_MAX_IN_MEMORY)")

	return cmd
}

// serveConfig merges the environment with explicitly set flags.
func serveConfig(opts *ServeOptions, cmd *cobra.Command) (server.Config, error) {
	cfg, err := server.LoadConfig()
	if err != nil {
		return server.Config{}, err
	}
	flags := cmd.Flags()
	if flags.Changed("addr") {
		cfg.Addr = opts.Addr
	}
	if flags.Changed("db") {
		cfg.DBPath = opts.Database
	}
	if opts.NoStore {
		cfg.DBPath = ""
	}
	if flags.Changed("max-messages") {
		cfg.MaxInMemory = opts.MaxMessages
	}
	return cfg, cfg.Validate()
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	cfg, err := serveConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid server configuration", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var srvOpts []server.Option
	if cfg.DBPath != "" {
		slog.Info("opening database", "path", cfg.DBPath)
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if err := st.Close(); err != nil {
				slog.Error("failed to close database", "error", err)
			}
		}()
		srvOpts = append(srvOpts, server.WithStore(st))
	} else {
		slog.Warn("persistence disabled, messages are lost on restart")
	}

	srv, err := server.New(cfg, srvOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create server", err)
	}

	n, err := srv.Recover(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to recover messages", err)
	}
	slog.Info("messages recovered", "count", n)

	if err := srv.ListenAndServe(ctx); err != nil && ctx.Err() == nil {
		return WrapExitError(ExitFailure, "server failed", err)
	}
	slog.Info("server stopped")
	return nil
}
