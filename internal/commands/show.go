package commands

import (
	"context"
	"flag"
	"io"

	"tasky/internal/exitcode"
	"tasky/internal/output"
)

func init() {
	Register(&ShowCmd{})
}

// ShowCmd implements the show command.
type ShowCmd struct {
	filters filterFlags
}

func (c *ShowCmd) Name() string       { return "show" }
func (c *ShowCmd) Aliases() []string  { return nil }
func (c *ShowCmd) Synopsis() string   { return "Print every field of a task" }
func (c *ShowCmd) Usage() string      { return "tasky show [--status <s>] [--search <text>] <ref>" }
func (c *ShowCmd) NeedsAuth() bool    { return true }
func (c *ShowCmd) NeedsBackend() bool { return true }

func (c *ShowCmd) RegisterFlags(fs *flag.FlagSet) {
	c.filters.register(fs)
}

func (c *ShowCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return usageError(errOut, "%v", err)
	}
	if err := c.filters.validate(); err != nil {
		return usageError(errOut, "%v", err)
	}

	_, task, err := resolveTask(ctx, rt, c.filters, ref)
	if err != nil {
		return fail(errOut, err)
	}

	output.FormatTaskDetail(out, task)
	return exitcode.Success
}
