package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/skeinworks/skein/pkg/shell"
)

var shellWorkspace string

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Drive the persistent shell session by hand",
	Long: `Open the persistent shell session and submit commands line by line.
Each command reports its output, exit code and status once the session
confirms completion. A command that outlives the drain window keeps running;
press enter on an empty line to keep waiting, or type "cancel" to interrupt
it. Type "exit" to close the session.`,
	Args: cobra.NoArgs,
	RunE: runShellSession,
}

func init() {
	shellCmd.Flags().StringVar(&shellWorkspace, "workspace", "", "initial working directory for the shell")

	rootCmd.AddCommand(shellCmd)
}

func runShellSession(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := loadRuntime()
	if err != nil {
		return err
	}
	defer closeLog()

	workspace, err := resolveWorkspace(cfg, shellWorkspace)
	if err != nil {
		return err
	}

	session, err := shell.NewSession(shellConfigFrom(cfg, workspace), log.GetZerolog())
	if err != nil {
		return fmt.Errorf("failed to start shell session: %w", err)
	}
	defer session.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "session %s ready (%s in %s)\n", session.ID(), cfg.Shell.Path, workspace)

	scanner := bufio.NewScanner(cmd.InOrStdin())
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch line {
		case "exit":
			return nil
		case "":
			if session.State() != shell.StateBusy {
				continue
			}
			res, err := session.Poll(cmd.Context())
			printCommandResult(out, res, err)
		case "cancel":
			res, err := session.Cancel(cmd.Context())
			printCommandResult(out, res, err)
		default:
			res, err := session.Submit(cmd.Context(), line)
			printCommandResult(out, res, err)
		}

		if session.State() == shell.StateTerminated {
			return fmt.Errorf("shell session terminated")
		}
	}
	return scanner.Err()
}

func printCommandResult(w io.Writer, res *shell.CommandResult, err error) {
	if err != nil {
		fmt.Fprintf(w, "error: %v\n", err)
		return
	}
	if res.Output != "" {
		fmt.Fprintln(w, res.Output)
	}
	if res.Status == shell.StatusRunning {
		fmt.Fprintln(w, `(still running; enter to keep waiting, "cancel" to interrupt)`)
		return
	}
	fmt.Fprintf(w, "[%s exit=%d]\n", res.Status, res.ExitCode)
}
