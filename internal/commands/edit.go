package commands

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"

	"tasker/internal/config"
	"tasker/internal/exitcode"
	"tasker/internal/output"
	"tasker/internal/state"
	"tasker/internal/taskstore"
)

func init() {
	Register(&EditCmd{})
}

// EditCmd implements the edit command: a partial update of one task.
// Only flags the user set are sent; the server's returned task replaces
// the cached one.
type EditCmd struct {
	title string
	desc  string
	done  string // "" means unset, else "true"/"false"
}

// SetTitle sets the title flag (for testing).
func (c *EditCmd) SetTitle(v string) { c.title = v }

// SetDone sets the done flag (for testing).
func (c *EditCmd) SetDone(v string) { c.done = v }

func (c *EditCmd) Name() string      { return "edit" }
func (c *EditCmd) Aliases() []string { return nil }
func (c *EditCmd) Synopsis() string  { return "Update fields of a task" }
func (c *EditCmd) Usage() string {
	return "tasker edit [--title <text>] [--desc <text>] [--done true|false] <id>"
}
func (c *EditCmd) NeedsAuth() bool { return true }

func (c *EditCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.title, "title", "", "")
	fs.StringVar(&c.desc, "desc", "", "")
	fs.StringVar(&c.done, "done", "", "")
}

func (c *EditCmd) Run(ctx context.Context, cfg *config.Config, st *state.State, args []string, out, errOut io.Writer) int {
	id, err := parseTaskID(args)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.UserError
	}

	var fields taskstore.Fields
	changed := false
	if c.title != "" {
		fields.Title = &c.title
		changed = true
	}
	if c.desc != "" {
		fields.Description = &c.desc
		changed = true
	}
	if c.done != "" {
		v, err := strconv.ParseBool(c.done)
		if err != nil {
			fmt.Fprintf(errOut, "error: invalid value for --done: %s\n", c.done)
			return exitcode.UserError
		}
		fields.Completed = &v
		changed = true
	}
	if !changed {
		fmt.Fprintln(errOut, "error: nothing to update")
		return exitcode.UserError
	}

	task, err := st.Tasks.Patch(ctx, id, fields)
	if err != nil {
		return fail(errOut, err)
	}

	if !cfg.Quiet {
		output.FormatTask(out, task)
	}
	return exitcode.Success
}
