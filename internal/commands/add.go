package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"tasky/internal/exitcode"
	"tasky/internal/service"
)

func init() {
	Register(&AddCmd{})
}

// AddCmd implements the add command.
type AddCmd struct {
	description string
	priority    string
	status      string
	tags        string
	parent      string
}

func (c *AddCmd) Name() string      { return "add" }
func (c *AddCmd) Aliases() []string { return []string{"create"} }
func (c *AddCmd) Synopsis() string  { return "Create a task" }
func (c *AddCmd) Usage() string {
	return "tasky add [--description <text>] [--priority <p>] [--status <s>] [--tags <a,b>] [--parent <id>] <name...>"
}
func (c *AddCmd) NeedsAuth() bool    { return true }
func (c *AddCmd) NeedsBackend() bool { return true }

func (c *AddCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.description, "description", "", "")
	fs.StringVar(&c.description, "d", "", "")
	fs.StringVar(&c.priority, "priority", "", "")
	fs.StringVar(&c.priority, "p", "", "")
	fs.StringVar(&c.status, "status", "", "")
	fs.StringVar(&c.tags, "tags", "", "")
	fs.StringVar(&c.tags, "t", "", "")
	fs.StringVar(&c.parent, "parent", "", "")
}

func (c *AddCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		return usageError(errOut, "task name required")
	}

	in := service.TaskInput{Name: name}
	if c.priority != "" {
		p, err := service.ParsePriority(c.priority)
		if err != nil {
			return usageError(errOut, "%v", err)
		}
		in.Priority = p
	}
	if c.status != "" {
		s, err := service.ParseStatus(c.status)
		if err != nil {
			return usageError(errOut, "%v", err)
		}
		in.Status = s
	}
	if d := strings.TrimSpace(c.description); d != "" {
		in.Description = &d
	}
	if t := strings.TrimSpace(c.tags); t != "" {
		in.Tags = &t
	}
	if p := strings.TrimSpace(c.parent); p != "" {
		in.ParentID = &p
	}

	// Load the first page so the new task lands in the cached list.
	eng := rt.Ops(rt.Query(1, 0, "", ""))
	if _, err := eng.Fetch(ctx); err != nil {
		rt.Logger.Debug("add: first page not loaded", zap.Error(err))
	}

	if _, err := eng.Create(ctx, in); err != nil {
		return fail(errOut, err)
	}

	if !rt.quiet() {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
