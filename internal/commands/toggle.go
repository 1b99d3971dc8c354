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
	Register(&ToggleCmd{})
}

// ToggleCmd implements the toggle command. The flip is applied to the
// local cache before the server round trip and rolled back if it fails.
type ToggleCmd struct{}

func (c *ToggleCmd) Name() string      { return "toggle" }
func (c *ToggleCmd) Aliases() []string { return []string{"done"} }
func (c *ToggleCmd) Synopsis() string  { return "Flip a task's completed state" }
func (c *ToggleCmd) Usage() string     { return "tasker toggle <id>" }
func (c *ToggleCmd) NeedsAuth() bool   { return true }

func (c *ToggleCmd) RegisterFlags(fs *flag.FlagSet) {}

func (c *ToggleCmd) Run(ctx context.Context, cfg *config.Config, st *state.State, args []string, out, errOut io.Writer) int {
	id, err := parseTaskID(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	// The toggle needs the task in the cache to know the current value.
	if _, ok := st.Tasks.Get(id); !ok {
		if _, err := st.Tasks.FetchOne(ctx, id); err != nil {
			return fail(errOut, err)
		}
	}

	task, err := st.Tasks.Toggle(ctx, id)
	if err != nil {
		return fail(errOut, err)
	}

	if !cfg.Quiet {
		output.FormatTask(out, task)
	}
	return exitcode.Success
}
