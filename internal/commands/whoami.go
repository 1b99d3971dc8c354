package commands

import (
	"context"
	"flag"
	"fmt"
	"io"

	"tasker/internal/config"
	"tasker/internal/exitcode"
	"tasker/internal/output"
	"tasker/internal/state"
)

func init() {
	Register(&WhoAmICmd{})
}

// WhoAmICmd implements the whoami command.
type WhoAmICmd struct{}

func (c *WhoAmICmd) Name() string      { return "whoami" }
func (c *WhoAmICmd) Aliases() []string { return []string{"me"} }
func (c *WhoAmICmd) Synopsis() string  { return "Print the signed-in user" }
func (c *WhoAmICmd) Usage() string     { return "tasker whoami" }
func (c *WhoAmICmd) NeedsAuth() bool   { return true }

func (c *WhoAmICmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *WhoAmICmd) Run(ctx context.Context, cfg *config.Config, st *state.State, args []string, out, errOut io.Writer) int {
	// The dispatcher's pre-flight already settled the session.
	snap := st.Session.Snapshot()
	if snap.User == nil {
		fmt.Fprintln(errOut, "error: not logged in (run: tasker login)")
		return exitcode.AuthError
	}
	output.FormatUser(out, *snap.User)
	return exitcode.Success
}
