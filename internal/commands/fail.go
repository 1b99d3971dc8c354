package commands

import (
	"fmt"
	"io"

	"tasker/internal/api"
	"tasker/internal/exitcode"
)

// fail prints an operation error and maps it to an exit code.
func fail(errOut io.Writer, err error) int {
	switch {
	case api.IsValidation(err):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	case api.IsNotFound(err):
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	case api.IsAuth(err):
		fmt.Fprintf(errOut, "error: session expired (run: tasker login)\n")
		return exitcode.AuthError
	default:
		fmt.Fprintf(errOut, "error: server error: %v\n", err)
		return exitcode.ServerError
	}
}
