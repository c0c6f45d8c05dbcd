package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasky/internal/exitcode"
)

func init() {
	Register(&RmCmd{})
}

// RmCmd implements the rm command.
type RmCmd struct {
	filters filterFlags
}

func (c *RmCmd) Name() string       { return "rm" }
func (c *RmCmd) Aliases() []string  { return []string{"delete"} }
func (c *RmCmd) Synopsis() string   { return "Delete a task" }
func (c *RmCmd) Usage() string      { return "tasky rm [--status <s>] [--search <text>] <ref>" }
func (c *RmCmd) NeedsAuth() bool    { return true }
func (c *RmCmd) NeedsBackend() bool { return true }

func (c *RmCmd) RegisterFlags(fs *flag.FlagSet) {
	c.filters.register(fs)
}

func (c *RmCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return usageError(errOut, "%v", err)
	}
	if err := c.filters.validate(); err != nil {
		return usageError(errOut, "%v", err)
	}

	eng, task, err := resolveTask(ctx, rt, c.filters, ref)
	if err != nil {
		return fail(errOut, err)
	}

	if err := eng.Delete(ctx, task.ID); err != nil {
		return fail(errOut, err)
	}

	if !rt.quiet() {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
