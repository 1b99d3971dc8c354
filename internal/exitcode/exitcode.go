// Package exitcode defines exit codes for the CLI.
package exitcode

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, validation failure,
	// unknown task).
	UserError = 1

	// AuthError indicates an auth error (not logged in, session
	// expired, bad credentials).
	AuthError = 2

	// ServerError indicates a server or network error.
	ServerError = 3
)
