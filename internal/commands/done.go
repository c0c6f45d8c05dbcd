package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"tasky/internal/exitcode"
	"tasky/internal/ops"
	"tasky/internal/service"
)

func init() {
	Register(&DoneCmd{})
	Register(&ToggleCmd{})
}

// DoneCmd implements the done command.
type DoneCmd struct {
	filters filterFlags
}

func (c *DoneCmd) Name() string       { return "done" }
func (c *DoneCmd) Aliases() []string  { return nil }
func (c *DoneCmd) Synopsis() string   { return "Mark a task completed" }
func (c *DoneCmd) Usage() string      { return "tasky done [--status <s>] [--search <text>] <ref>" }
func (c *DoneCmd) NeedsAuth() bool    { return true }
func (c *DoneCmd) NeedsBackend() bool { return true }

func (c *DoneCmd) RegisterFlags(fs *flag.FlagSet) {
	c.filters.register(fs)
}

func (c *DoneCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	return runToggle(ctx, rt, c.filters, args, true, out, errOut)
}

// ToggleCmd implements the toggle command.
type ToggleCmd struct {
	filters filterFlags
}

func (c *ToggleCmd) Name() string       { return "toggle" }
func (c *ToggleCmd) Aliases() []string  { return nil }
func (c *ToggleCmd) Synopsis() string   { return "Flip a task between done and to do" }
func (c *ToggleCmd) Usage() string      { return "tasky toggle [--status <s>] [--search <text>] <ref>" }
func (c *ToggleCmd) NeedsAuth() bool    { return true }
func (c *ToggleCmd) NeedsBackend() bool { return true }

func (c *ToggleCmd) RegisterFlags(fs *flag.FlagSet) {
	c.filters.register(fs)
}

func (c *ToggleCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	return runToggle(ctx, rt, c.filters, args, false, out, errOut)
}

// runToggle is the shared implementation for done and toggle. With onlyDone
// a task that is already done is left alone.
func runToggle(ctx context.Context, rt *Runtime, f filterFlags, args []string, onlyDone bool, out, errOut io.Writer) int {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return usageError(errOut, "%v", err)
	}
	if err := f.validate(); err != nil {
		return usageError(errOut, "%v", err)
	}

	eng, task, err := resolveTask(ctx, rt, f, ref)
	if err != nil {
		return fail(errOut, err)
	}

	if onlyDone && task.Status == service.StatusDone {
		if !rt.quiet() {
			fmt.Fprintln(out, "already done")
		}
		return exitcode.Success
	}

	// A change that only reached the local cache is still a success; the
	// warning has already been printed. A rejected session is not.
	if _, err := eng.Toggle(ctx, task); err != nil {
		if !errors.Is(err, ops.ErrNotSynced) || errors.Is(err, service.ErrUnauthorized) {
			return fail(errOut, err)
		}
	}

	if !rt.quiet() {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
