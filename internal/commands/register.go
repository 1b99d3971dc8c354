package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasker/internal/api"
	"tasker/internal/config"
	"tasker/internal/exitcode"
	"tasker/internal/state"
)

func init() {
	Register(&RegisterCmd{})
}

// RegisterCmd implements the register command.
type RegisterCmd struct {
	password string
	confirm  string

	In io.Reader
}

// SetPassword sets the password and its confirmation (for testing).
func (c *RegisterCmd) SetPassword(p string) {
	c.password = p
	c.confirm = p
}

func (c *RegisterCmd) Name() string      { return "register" }
func (c *RegisterCmd) Aliases() []string { return []string{"signup"} }
func (c *RegisterCmd) Synopsis() string  { return "Create an account and sign in" }
func (c *RegisterCmd) Usage() string {
	return "tasker register [--password <pw>] [--confirm <pw>] <username> <email>"
}
func (c *RegisterCmd) NeedsAuth() bool { return false }

func (c *RegisterCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.password, "password", "", "")
	fs.StringVar(&c.confirm, "confirm", "", "")
}

func (c *RegisterCmd) Run(ctx context.Context, cfg *config.Config, st *state.State, args []string, out, errOut io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintln(errOut, "error: username and email required")
		return exitcode.UserError
	}
	username, email := args[0], args[1]

	password, confirm := c.password, c.confirm
	var err error
	if password == "" {
		if password, err = promptLine(c.In, out, "password: "); err != nil {
			fmt.Fprintf(errOut, "error: reading password: %v\n", err)
			return exitcode.UserError
		}
		if confirm, err = promptLine(c.In, out, "confirm password: "); err != nil {
			fmt.Fprintf(errOut, "error: reading password: %v\n", err)
			return exitcode.UserError
		}
	} else if confirm == "" {
		confirm = password
	}

	if err := cfg.EnsureDir(); err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	user, err := st.Session.Register(ctx, username, email, password, confirm)
	if err != nil {
		if api.IsKind(err, api.KindServer) {
			// Duplicate username/email come back as a server detail.
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.UserError
		}
		return fail(errOut, err)
	}

	if !cfg.Quiet {
		fmt.Fprintf(out, "registered as %s\n", user.Username)
	}
	return exitcode.Success
}
