// Package commands provides the command interface and implementations.
package commands

import (
	"context"
	"flag"
	"io"
)

// Command defines the interface for CLI commands.
type Command interface {
	// Name returns the primary command name.
	Name() string

	// Aliases returns alternative names for the command.
	Aliases() []string

	// Synopsis returns a short description for help output.
	Synopsis() string

	// Usage returns the usage string for help output.
	Usage() string

	// NeedsAuth returns true if the command requires a logged-in session.
	// Commands like help, version, login, signup, logout return false.
	NeedsAuth() bool

	// NeedsBackend returns true if the command uses the API, the session or
	// the local cache. Only help and version return false.
	NeedsBackend() bool

	// RegisterFlags registers command-specific flags.
	RegisterFlags(fs *flag.FlagSet)

	// Run executes the command.
	// rt.Config is always set; the rest of rt is set when NeedsBackend
	// returns true.
	// args contains positional arguments after flag parsing.
	// Returns exit code.
	Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int
}
