package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"runtime"

	"tasky/internal/exitcode"
)

// Version is the application version. Set at build time.
var Version = "0.1.0"

func init() {
	Register(&VersionCmd{})
}

// VersionCmd implements the version command.
type VersionCmd struct {
	verbose bool
}

func (c *VersionCmd) Name() string       { return "version" }
func (c *VersionCmd) Aliases() []string  { return nil }
func (c *VersionCmd) Synopsis() string   { return "Print version" }
func (c *VersionCmd) Usage() string      { return "tasky version [--verbose]" }
func (c *VersionCmd) NeedsAuth() bool    { return false }
func (c *VersionCmd) NeedsBackend() bool { return false }

func (c *VersionCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.verbose, "verbose", false, "")
	fs.BoolVar(&c.verbose, "v", false, "")
}

func (c *VersionCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	fmt.Fprintf(out, "tasky %s\n", Version)
	if c.verbose {
		fmt.Fprintf(out, "go:     %s\n", runtime.Version())
		fmt.Fprintf(out, "api:    %s\n", rt.Config.Settings.BaseURL)
		fmt.Fprintf(out, "config: %s\n", rt.Config.Dir)
	}
	return exitcode.Success
}
