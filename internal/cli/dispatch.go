// Package cli parses the command line and runs commands.
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"tasky/internal/cache"
	"tasky/internal/commands"
	"tasky/internal/config"
	"tasky/internal/exitcode"
	"tasky/internal/logging"
	"tasky/internal/notify"
	"tasky/internal/output"
	"tasky/internal/prompt"
	"tasky/internal/session"
)

// BackendFactory creates the API backend for cfg. The backend reads and
// updates credentials in store.
type BackendFactory func(ctx context.Context, cfg *config.Config, store *session.Store, logger *zap.Logger) (commands.Backend, error)

// Dispatcher handles command-line parsing and dispatch.
type Dispatcher struct {
	registry *commands.Registry
	factory  BackendFactory
	prompt   prompt.Prompter
}

// NewDispatcher creates a new dispatcher with the given registry and backend factory.
func NewDispatcher(registry *commands.Registry, factory BackendFactory) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		factory:  factory,
	}
}

// SetPrompter sets where login and signup read credentials from.
func (d *Dispatcher) SetPrompter(p prompt.Prompter) {
	d.prompt = p
}

// Run parses arguments and dispatches to the appropriate command.
// Returns the exit code.
func (d *Dispatcher) Run(ctx context.Context, args []string, out, errOut io.Writer) int {
	// No args -> dispatch to "list" command with no args
	if len(args) == 0 {
		return d.dispatch(ctx, "list", nil, out, errOut)
	}

	cmdName := args[0]

	// If first token starts with -, it's an error (flags require a command)
	if strings.HasPrefix(cmdName, "-") {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}

	return d.dispatch(ctx, cmdName, args[1:], out, errOut)
}

func (d *Dispatcher) dispatch(ctx context.Context, cmdName string, args []string, out, errOut io.Writer) int {
	cmd, ok := d.registry.Find(cmdName)
	if !ok {
		fmt.Fprintf(errOut, "error: unknown command: %s\n", cmdName)
		return exitcode.UserError
	}
	return d.dispatchCommand(ctx, cmd, args, out, errOut)
}

func (d *Dispatcher) dispatchCommand(ctx context.Context, cmd commands.Command, args []string, out, errOut io.Writer) int {
	// Create flag set with custom error handling
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	fs.SetOutput(io.Discard) // We handle errors ourselves

	// Common flags
	var configDir string
	var quiet bool
	var debug bool

	fs.StringVar(&configDir, "config", "", "")
	fs.BoolVar(&quiet, "quiet", false, "")
	fs.BoolVar(&debug, "debug", false, "")

	// Register command-specific flags
	cmd.RegisterFlags(fs)

	if err := fs.Parse(args); err != nil {
		errStr := err.Error()
		if name, ok := strings.CutPrefix(errStr, "flag provided but not defined: "); ok {
			fmt.Fprintf(errOut, "error: unknown flag: %s\n", name)
			return exitcode.UserError
		}
		// Missing and malformed values ("flag needs an argument: -page",
		// "invalid value ...") are reported as the flag package words them.
		fmt.Fprintf(errOut, "error: %s\n", errStr)
		return exitcode.UserError
	}

	// Check if first positional arg starts with - (should have been parsed as flag)
	positionalArgs := fs.Args()
	if len(positionalArgs) > 0 && strings.HasPrefix(positionalArgs[0], "-") {
		fmt.Fprintf(errOut, "error: unknown flag: %s\n", positionalArgs[0])
		return exitcode.UserError
	}

	cfg, err := config.New(configDir)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	cfg.Quiet = quiet
	cfg.Debug = debug

	logger, err := logging.New(debug)
	if err != nil {
		fmt.Fprintf(errOut, "error: %s\n", err)
		return exitcode.UserError
	}
	defer func() { _ = logger.Sync() }()

	rt := &commands.Runtime{Config: cfg, Logger: logger}
	if cmd.NeedsBackend() {
		var code int
		rt, code = d.runtime(ctx, cmd, cfg, logger, errOut)
		if rt == nil {
			return code
		}
		defer func() {
			if err := rt.Close(); err != nil {
				logger.Warn("closing cache failed", zap.Error(err))
			}
		}()
	}

	logger.Debug("running command", zap.String("command", cmd.Name()), zap.Strings("args", positionalArgs))
	code := cmd.Run(ctx, rt, positionalArgs, out, errOut)
	logger.Debug("command finished", zap.String("command", cmd.Name()), zap.Int("code", code), zap.String("result", exitcode.Name(code)))
	return code
}

// runtime restores the session, checks auth requirements and wires the
// backend, the local cache and notifications for cmd.
func (d *Dispatcher) runtime(ctx context.Context, cmd commands.Command, cfg *config.Config, logger *zap.Logger, errOut io.Writer) (*commands.Runtime, int) {
	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: failed to create config directory: %v\n", err)
		return nil, exitcode.AuthError
	}

	store := session.Open(session.NewFilePersister(cfg.SessionPath()), logger)
	if cmd.NeedsAuth() && !store.Authenticated() {
		fmt.Fprintln(errOut, "error: not logged in (run: tasky login)")
		return nil, exitcode.AuthError
	}

	if d.factory == nil {
		fmt.Fprintln(errOut, "error: backend error: no backend configured")
		return nil, exitcode.BackendError
	}
	backend, err := d.factory(ctx, cfg, store, logger)
	if err != nil {
		fmt.Fprintf(errOut, "error: config error: %v\n", err)
		return nil, exitcode.AuthError
	}

	notes := notify.NewStore(output.NotificationPrinter(errOut, cfg.Quiet))
	local, err := cache.Open(cfg.CachePath(), notes, logger)
	if err != nil {
		logger.Warn("local cache unavailable", zap.String("path", cfg.CachePath()), zap.Error(err))
		local = cache.Unavailable(err, notes, logger)
	}

	return commands.NewRuntime(cfg, backend, commands.RuntimeOptions{
		Logger:  logger,
		Session: store,
		Cache:   local,
		Notes:   notes,
		Prompt:  d.prompt,
	}), exitcode.Success
}
