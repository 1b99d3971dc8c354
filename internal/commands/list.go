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
	"tasker/internal/taskstore"
)

func init() {
	Register(&ListCmd{})
}

// ListCmd implements the list command.
type ListCmd struct {
	filter string
}

// SetFilter sets the filter (for testing).
func (c *ListCmd) SetFilter(f string) {
	c.filter = f
}

func (c *ListCmd) Name() string      { return "list" }
func (c *ListCmd) Aliases() []string { return []string{"ls"} }
func (c *ListCmd) Synopsis() string  { return "List tasks" }
func (c *ListCmd) Usage() string     { return "tasker list [--filter all|done|todo]" }
func (c *ListCmd) NeedsAuth() bool   { return true }

func (c *ListCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.filter, "filter", "all", "")
	fs.StringVar(&c.filter, "f", "all", "")
}

func (c *ListCmd) Run(ctx context.Context, cfg *config.Config, st *state.State, args []string, out, errOut io.Writer) int {
	filter, ok := parseFilter(c.filter)
	if !ok {
		fmt.Fprintf(errOut, "error: invalid filter: %s\n", c.filter)
		return exitcode.UserError
	}
	st.Tasks.SetFilter(filter)

	if _, err := st.Tasks.List(ctx); err != nil {
		return fail(errOut, err)
	}

	tasks := st.Tasks.Visible()
	if len(tasks) == 0 {
		if !cfg.Quiet {
			fmt.Fprintln(out, "no tasks")
		}
		return exitcode.Success
	}
	for _, t := range tasks {
		output.FormatTask(out, t)
	}
	return exitcode.Success
}

func parseFilter(s string) (taskstore.Filter, bool) {
	switch s {
	case "", "all":
		return taskstore.FilterAll, true
	case "done", "completed":
		return taskstore.FilterCompleted, true
	case "todo", "open":
		return taskstore.FilterNotCompleted, true
	}
	return taskstore.FilterAll, false
}
