package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasky/internal/exitcode"
	"tasky/internal/output"
)

func init() {
	Register(&LogoutCmd{})
	Register(&MeCmd{})
}

// LogoutCmd implements the logout command.
type LogoutCmd struct{}

func (c *LogoutCmd) Name() string       { return "logout" }
func (c *LogoutCmd) Aliases() []string  { return nil }
func (c *LogoutCmd) Synopsis() string   { return "Forget the session and cached tasks" }
func (c *LogoutCmd) Usage() string      { return "tasky logout" }
func (c *LogoutCmd) NeedsAuth() bool    { return false }
func (c *LogoutCmd) NeedsBackend() bool { return true }

func (c *LogoutCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *LogoutCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	if !rt.Session.Authenticated() {
		if !rt.quiet() {
			fmt.Fprintln(out, "not logged in")
		}
		return exitcode.Success
	}

	rt.Auth.Logout(ctx)

	if !rt.quiet() {
		fmt.Fprintln(out, "ok")
	}
	return exitcode.Success
}

// MeCmd implements the me command.
type MeCmd struct{}

func (c *MeCmd) Name() string       { return "me" }
func (c *MeCmd) Aliases() []string  { return []string{"whoami"} }
func (c *MeCmd) Synopsis() string   { return "Print the signed-in user" }
func (c *MeCmd) Usage() string      { return "tasky me" }
func (c *MeCmd) NeedsAuth() bool    { return true }
func (c *MeCmd) NeedsBackend() bool { return true }

func (c *MeCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *MeCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	user, err := rt.Auth.Profile(ctx)
	if err != nil {
		return fail(errOut, err)
	}
	output.FormatUser(out, user)
	return exitcode.Success
}
