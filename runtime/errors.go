package runtime

import (
	"fmt"

	"github.com/bazelment/agenthub/schema"
)

// CLINotFoundError indicates the agent's binary is not installed or not on
// PATH.
type CLINotFoundError struct {
	Agent schema.Agent
	Path  string
	Err   error
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("%s CLI not found at %q: %v", e.Agent, e.Path, e.Err)
}

func (e *CLINotFoundError) Unwrap() error { return e.Err }

// ProcessError indicates the agent subprocess failed. Stderr holds the tail
// of the process's stderr output for diagnosis.
type ProcessError struct {
	Agent    schema.Agent
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("%s process failed (exit %d): %v: %s", e.Agent, e.ExitCode, e.Err, e.Stderr)
	}
	return fmt.Sprintf("%s process failed (exit %d): %v", e.Agent, e.ExitCode, e.Err)
}

func (e *ProcessError) Unwrap() error { return e.Err }
