package commands

import (
	"errors"
	"strconv"
)

// ErrTaskIDRequired is returned when a command needs a task id and none
// was given.
var ErrTaskIDRequired = errors.New("task id required")

// parseTaskID extracts the single integer task id argument.
func parseTaskID(args []string) (int, error) {
	if len(args) != 1 {
		return 0, ErrTaskIDRequired
	}
	id, err := strconv.Atoi(args[0])
	if err != nil || id < 1 {
		return 0, errors.New("invalid task id: " + args[0])
	}
	return id, nil
}
