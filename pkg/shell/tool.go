package shell

import (
	"context"
	"errors"
	"strings"

	"github.com/skeinworks/skein/pkg/toolexecutor"
)

// RegisterTools exposes the session to a model through two tools. Both are
// marked compute-heavy so the dispatcher never runs them concurrently: the
// session holds a single terminal and a single in-flight command.
func RegisterTools(registry *toolexecutor.Registry, session *Session) error {
	tools := []toolexecutor.ToolDefinition{
		{
			Name: "run_command",
			Description: "Run a command in a persistent interactive shell. Working directory, " +
				"environment variables and background jobs survive between calls. The result " +
				"carries the command's output and exit code. If the command does not finish " +
				"within the timeout, status is \"running\" and the session stays busy: calling " +
				"run_command again waits for the in-flight command instead of starting a new " +
				"one, and cancel_current_command interrupts it.",
			Parameters: []toolexecutor.ToolParameter{
				{
					Name:        "command",
					Type:        "string",
					Description: "Shell command to execute. May span multiple lines.",
					Required:    true,
				},
			},
			Handler:      runCommandHandler(session),
			ComputeHeavy: true,
		},
		{
			Name: "cancel_current_command",
			Description: "Interrupt the command currently running in the shell session, as " +
				"Ctrl-C would. Returns the partial output captured so far with status " +
				"\"cancelled\". Fails if no command is running or if the shell does not " +
				"return to its prompt, in which case the session is closed.",
			Handler:      cancelCommandHandler(session),
			ComputeHeavy: true,
		},
	}
	for _, def := range tools {
		if err := registry.Register(def); err != nil {
			return err
		}
	}
	return nil
}

func runCommandHandler(session *Session) toolexecutor.ToolHandler {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		command, _ := args["command"].(string)
		if strings.TrimSpace(command) == "" {
			return nil, errors.New("command must not be empty")
		}

		res, err := session.Submit(ctx, command)
		if errors.Is(err, ErrSessionBusy) {
			res, err = session.Poll(ctx)
		}
		if err != nil {
			return nil, err
		}

		// The run was abandoned while the command was in flight; interrupt
		// it so the session is idle for whoever uses it next.
		if res.Status == StatusRunning && ctx.Err() != nil {
			return session.Cancel(context.Background())
		}
		return res, nil
	}
}

func cancelCommandHandler(session *Session) toolexecutor.ToolHandler {
	return func(ctx context.Context, args map[string]interface{}) (interface{}, error) {
		return session.Cancel(ctx)
	}
}
