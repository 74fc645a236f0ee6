package cli

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/skeinworks/skein/pkg/shell"
)

func TestShellCommandFlags(t *testing.T) {
	assert.NotNil(t, shellCmd.Flags().Lookup("workspace"))
}

func TestPrintCommandResult(t *testing.T) {
	t.Run("should print output and exit status", func(t *testing.T) {
		out := &bytes.Buffer{}
		printCommandResult(out, &shell.CommandResult{
			Output:   "hello",
			ExitCode: 0,
			Status:   shell.StatusFinished,
		}, nil)

		assert.Contains(t, out.String(), "hello")
		assert.Contains(t, out.String(), "[finished exit=0]")
	})

	t.Run("should mark a still running command", func(t *testing.T) {
		out := &bytes.Buffer{}
		printCommandResult(out, &shell.CommandResult{
			Output:   "partial",
			ExitCode: -1,
			Status:   shell.StatusRunning,
		}, nil)

		assert.Contains(t, out.String(), "still running")
		assert.NotContains(t, out.String(), "exit=")
	})

	t.Run("should print a cancelled command", func(t *testing.T) {
		out := &bytes.Buffer{}
		printCommandResult(out, &shell.CommandResult{
			ExitCode: 130,
			Status:   shell.StatusCancelled,
		}, nil)

		assert.Contains(t, out.String(), "[cancelled exit=130]")
	})

	t.Run("should print errors", func(t *testing.T) {
		out := &bytes.Buffer{}
		printCommandResult(out, nil, errors.New("no command in flight"))

		assert.Contains(t, out.String(), "error: no command in flight")
	})
}
