package commands

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"tasker/internal/api"
	"tasker/internal/config"
	"tasker/internal/exitcode"
	"tasker/internal/state"
)

func init() {
	Register(&LoginCmd{})
}

// LoginCmd implements the login command.
type LoginCmd struct {
	password string

	// In is the prompt source, os.Stdin unless a test replaces it.
	In io.Reader
}

// SetPassword sets the password (for testing).
func (c *LoginCmd) SetPassword(p string) {
	c.password = p
}

func (c *LoginCmd) Name() string      { return "login" }
func (c *LoginCmd) Aliases() []string { return nil }
func (c *LoginCmd) Synopsis() string  { return "Sign in" }
func (c *LoginCmd) Usage() string     { return "tasker login [--password <pw>] <username>" }
func (c *LoginCmd) NeedsAuth() bool   { return false }

func (c *LoginCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.password, "password", "", "")
	fs.StringVar(&c.password, "p", "", "")
}

func (c *LoginCmd) Run(ctx context.Context, cfg *config.Config, st *state.State, args []string, out, errOut io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error: username required")
		return exitcode.UserError
	}
	username := args[0]

	password := c.password
	if password == "" {
		var err error
		password, err = promptLine(c.In, out, "password: ")
		if err != nil {
			fmt.Fprintf(errOut, "error: reading password: %v\n", err)
			return exitcode.UserError
		}
	}

	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	user, err := st.Session.Login(ctx, username, password)
	if err != nil {
		if api.IsKind(err, api.KindServer) || api.IsAuth(err) {
			// The server rejects bad credentials with a detail string.
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.AuthError
		}
		return fail(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "logged in as %s\n", user.Username)
	}
	return exitcode.Success
}

// promptLine prints prompt and reads one line from in.
func promptLine(in io.Reader, out io.Writer, prompt string) (string, error) {
	if in == nil {
		in = os.Stdin
	}
	fmt.Fprint(out, prompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
