package commands

import (
	"errors"
	"fmt"
	"io"

	"tasky/internal/api"
	"tasky/internal/auth"
	"tasky/internal/exitcode"
	"tasky/internal/ops"
	"tasky/internal/prompt"
	"tasky/internal/service"
)

var (
	// errOutOfRange is returned when a row number is past the end of the list.
	errOutOfRange = errors.New("task number out of range")

	// errStalePage is returned when a row number cannot be matched to the
	// page it was printed from.
	errStalePage = errors.New("task numbers are out of date, run list again")
)

// fail prints err and maps it to an exit code.
func fail(errOut io.Writer, err error) int {
	var verr *auth.ValidationError
	switch {
	case errors.As(err, &verr):
		fmt.Fprintf(errOut, "error: %s\n", verr.Message)
		return exitcode.UserError
	case errors.Is(err, ErrTaskRefRequired),
		errors.Is(err, errOutOfRange),
		errors.Is(err, ops.ErrEmptyName),
		errors.Is(err, ops.ErrTaskBusy),
		errors.Is(err, ops.ErrNoDraft),
		errors.Is(err, ops.ErrNoChanges),
		errors.Is(err, errStalePage),
		errors.Is(err, prompt.ErrNoInput),
		errors.Is(err, errNoPrompt):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	case errors.Is(err, auth.ErrNotAuthenticated), errors.Is(err, service.ErrUnauthorized):
		fmt.Fprintf(errOut, "error: auth error: %v\n", err)
		return exitcode.AuthError
	case api.IsNotFound(err):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	default:
		fmt.Fprintf(errOut, "error: backend error: %v\n", err)
		return exitcode.BackendError
	}
}

// usageError prints a formatted argument error.
func usageError(errOut io.Writer, format string, args ...any) int {
	fmt.Fprintf(errOut, "error: "+format+"\n", args...)
	return exitcode.UserError
}
