package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasky/internal/exitcode"
	"tasky/internal/ops"
)

func init() {
	Register(&EditCmd{})
}

// optString is a string flag that remembers whether it was given, so that
// --description "" can clear a field.
type optString struct {
	set   bool
	value string
}

func (o *optString) String() string { return o.value }

func (o *optString) Set(v string) error {
	o.set = true
	o.value = v
	return nil
}

// EditCmd implements the edit command.
type EditCmd struct {
	fields  map[ops.Field]*optString
	filters filterFlags
}

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return nil }
func (c *EditCmd) Synopsis() string  { return "Change task fields" }
func (c *EditCmd) Usage() string {
	return "tasky edit [--name <n>] [--description <d>] [--tags <a,b>] [--priority <p>] [--status <s>] [--in-status <s>] [--search <text>] <ref>"
}
func (c *EditCmd) NeedsAuth() bool    { return true }
func (c *EditCmd) NeedsBackend() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	c.fields = map[ops.Field]*optString{}
	for _, f := range editFields {
		v := &optString{}
		c.fields[f] = v
		fs.Var(v, string(f), "")
	}
	fs.StringVar(&c.filters.status, "in-status", "", "")
	fs.StringVar(&c.filters.search, "search", "", "")
}

// editFields is the order in which flags are applied to the draft.
var editFields = []ops.Field{
	ops.FieldName,
	ops.FieldDescription,
	ops.FieldTags,
	ops.FieldPriority,
	ops.FieldStatus,
}

func (c *EditCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	ref, err := ParseTaskRef(args)
	if err != nil {
		return usageError(errOut, "%v", err)
	}
	if err := c.filters.validate(); err != nil {
		return usageError(errOut, "%v", err)
	}

	changed := false
	for _, v := range c.fields {
		changed = changed || v.set
	}
	if !changed {
		return usageError(errOut, "nothing to change")
	}

	eng, task, err := resolveTask(ctx, rt, c.filters, ref)
	if err != nil {
		return fail(errOut, err)
	}

	eng.StartEdit(task)
	for _, f := range editFields {
		v := c.fields[f]
		if !v.set {
			continue
		}
		if err := eng.ChangeField(task.ID, f, v.value); err != nil {
			eng.CancelEdit()
			return usageError(errOut, "%v", err)
		}
	}

	if _, err := eng.SaveEdit(ctx, task.ID); err != nil {
		return fail(errOut, err)
	}

	if !rt.quiet() {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}
