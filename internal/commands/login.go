package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"tasky/internal/exitcode"
	"tasky/internal/output"
	"tasky/internal/service"
)

func init() {
	Register(&LoginCmd{})
	Register(&SignupCmd{})
}

var errNoPrompt = errors.New("no terminal to prompt on")

// LoginCmd implements the login command.
type LoginCmd struct {
	email string
}

func (c *LoginCmd) Name() string       { return "login" }
func (c *LoginCmd) Aliases() []string  { return nil }
func (c *LoginCmd) Synopsis() string   { return "Sign in with email and password" }
func (c *LoginCmd) Usage() string      { return "tasky login [--email <email>]" }
func (c *LoginCmd) NeedsAuth() bool    { return false }
func (c *LoginCmd) NeedsBackend() bool { return true }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.email, "email", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}
	if rt.Prompt == nil {
		return fail(errOut, errNoPrompt)
	}

	creds := service.Credentials{Email: c.email}
	var err error
	if creds.Email == "" {
		if creds.Email, err = rt.Prompt.Line("Email: "); err != nil {
			return fail(errOut, err)
		}
	}
	if creds.Password, err = rt.Prompt.Secret("Password: "); err != nil {
		return fail(errOut, err)
	}

	user, err := rt.Auth.Login(ctx, creds)
	if err != nil {
		return fail(errOut, err)
	}
	if !rt.quiet() {
		fmt.Fprint(out, "logged in as ")
		output.FormatUser(out, user)
	}
	return exitcode.Success
}

// SignupCmd implements the signup command.
type SignupCmd struct {
	name  string
	email string
}

func (c *SignupCmd) Name() string       { return "signup" }
func (c *SignupCmd) Aliases() []string  { return []string{"register"} }
func (c *SignupCmd) Synopsis() string   { return "Create an account" }
func (c *SignupCmd) Usage() string      { return "tasky signup [--name <full name>] [--email <email>]" }
func (c *SignupCmd) NeedsAuth() bool    { return false }
func (c *SignupCmd) NeedsBackend() bool { return true }

func (c *SignupCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.name, "name", "", "")
	fs.StringVar(&c.email, "email", "", "")
}

func (c *SignupCmd) Run(ctx context.Context, rt *Runtime, args []string, out, errOut io.Writer) int {
	if len(args) > 0 {
		return usageError(errOut, "unexpected argument: %s", args[0])
	}
	if rt.Prompt == nil {
		return fail(errOut, errNoPrompt)
	}

	form := service.SignupForm{Name: c.name, Email: c.email}
	var err error
	if form.Name == "" {
		if form.Name, err = rt.Prompt.Line("Full name: "); err != nil {
			return fail(errOut, err)
		}
	}
	if form.Email == "" {
		if form.Email, err = rt.Prompt.Line("Email: "); err != nil {
			return fail(errOut, err)
		}
	}
	if form.Password, err = rt.Prompt.Secret("Password: "); err != nil {
		return fail(errOut, err)
	}
	if form.ConfirmPassword, err = rt.Prompt.Secret("Confirm password: "); err != nil {
		return fail(errOut, err)
	}

	user, err := rt.Auth.Signup(ctx, form)
	if err != nil {
		return fail(errOut, err)
	}
	if !rt.quiet() {
		fmt.Fprint(out, "signed up as ")
		output.FormatUser(out, user)
	}
	return exitcode.Success
}
