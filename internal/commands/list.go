package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strings"

	"tasky/internal/exitcode"
	"tasky/internal/output"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
// Handles both `tasky` (no args) and `tasky list [search...]`.
type ListCmd struct {
	page    int
	limit   int
	filters filterFlags
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string {
	return "tasky list [--page <n>] [--limit <n>] [--status <status>] [--search <text>] [search...]"
}
func (c *ListCmd) NeedsAuth() bool    { return true }
func (c *ListCmd) NeedsBackend() bool { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.IntVar(&c.page, "page", 1, "")
	fs.IntVar(&c.limit, "limit", 0, "")
	c.filters.register(fs)
}

func (c *ListCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	if c.page < 1 {
		return usageError(errOut, "invalid page number: %d", c.page)
	}
	if c.limit < 0 {
		return usageError(errOut, "invalid limit: %d", c.limit)
	}
	if err := c.filters.validate(); err != nil {
		return usageError(errOut, "%v", err)
	}

	search := c.filters.search
	if len(args) > 0 {
		if search != "" {
			return usageError(errOut, "cannot use both --search and search terms")
		}
		search = strings.Join(args, " ")
	}

	q := rt.Query(c.page, c.limit, c.filters.status, search)
	res, err := rt.Ops(q).Fetch(ctx)
	if err != nil {
		return fail(errOut, err)
	}

	if len(res.Page.Data) == 0 {
		if !rt.quiet() {
			fmt.Fprintln(out, "no tasks found")
		}
		return exitcode.Success
	}

	// Row numbers continue across pages so they can be passed to done/rm.
	first := res.Page.FirstRow(q)
	for i, task := range res.Page.Data {
		output.FormatTask(out, first+i, task)
	}
	output.FormatPageFooter(out, res.Page.Meta)
	return exitcode.Success
}
