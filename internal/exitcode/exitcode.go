// Package exitcode defines exit codes for the CLI.
package exitcode

// Exit codes returned by every command.
const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates bad arguments, an unknown task reference or a
	// rejected form field.
	UserError = 1

	// AuthError indicates a missing or rejected session, or an unusable
	// configuration.
	AuthError = 2

	// BackendError indicates an API, network or storage failure.
	BackendError = 3
)

// Name returns a short label for code, used in debug logs.
func Name(code int) string {
	switch code {
	case Success:
		return "success"
	case UserError:
		return "user error"
	case AuthError:
		return "auth error"
	case BackendError:
		return "backend error"
	default:
		return "unknown"
	}
}
