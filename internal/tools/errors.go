package tools

import (
	"errors"
	"fmt"
)

// ErrUnknownTool is returned when a model requests a tool outside the
// closed set. It is a configuration error, not a tool failure: the run
// that hits it is terminated.
type ErrUnknownTool struct {
	Name string
}

func (e *ErrUnknownTool) Error() string {
	return fmt.Sprintf("unknown tool %q", e.Name)
}

// ErrInvalidArguments wraps argument decoding failures. Registry.Run
// turns it into an error result rather than returning it.
var ErrInvalidArguments = errors.New("invalid tool arguments")
