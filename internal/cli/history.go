package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/skeinworks/skein/pkg/agent"
)

var (
	historyLimit     int
	historyOlderThan time.Duration
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent agent runs",
	Long: `List runs recorded by the run command, newest first. Use "history show"
to inspect a single run and its transcript, and "history prune" to delete
old runs.`,
	Args: cobra.NoArgs,
	RunE: runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a recorded run and its transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete runs older than a cutoff",
	Args:  cobra.NoArgs,
	RunE:  runHistoryPrune,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
	historyPruneCmd.Flags().DurationVar(&historyOlderThan, "older-than", 7*24*time.Hour, "delete runs older than this age")

	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := loadRuntime()
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openHistory(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		fmt.Fprintln(out, "No recorded runs.")
		return nil
	}

	for _, run := range runs {
		fmt.Fprintf(out, "%s  %s  %s/%s  turns=%d  %s\n",
			run.RunID,
			run.CreatedAt.Format("2006-01-02 15:04"),
			run.Vendor,
			run.Model,
			run.Turns,
			summarize(run.Prompt, 60),
		)
	}
	return nil
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := loadRuntime()
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openHistory(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer store.Close()

	run, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", run.RunID)
	fmt.Fprintf(out, "Created:  %s\n", run.CreatedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "Vendor:   %s/%s\n", run.Vendor, run.Model)
	fmt.Fprintf(out, "Turns:    %d (requests: %d)\n", run.Turns, run.Requests)
	fmt.Fprintf(out, "Tokens:   %d in / %d out\n", run.InputTokens, run.OutputTokens)
	fmt.Fprintf(out, "Duration: %s\n", time.Duration(run.DurationMS)*time.Millisecond)
	fmt.Fprintf(out, "Prompt:   %s\n", run.Prompt)
	fmt.Fprintf(out, "Answer:   %s\n", run.Answer)

	messages, err := store.LoadTranscript(run.RunID)
	if err != nil {
		// The run row is still useful without its transcript.
		log.Warn().Err(err).Str("run_id", run.RunID).Msg("Transcript unavailable")
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Transcript:")
	printTranscript(out, messages)
	return nil
}

func runHistoryPrune(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := loadRuntime()
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := openHistory(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}
	defer store.Close()

	deleted, err := store.Prune(cmd.Context(), historyOlderThan)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d run(s) older than %s.\n", deleted, historyOlderThan)
	return nil
}

// printTranscript writes a conversation one message per block.
func printTranscript(w io.Writer, messages []agent.Message) {
	for _, msg := range messages {
		switch {
		case len(msg.ToolCalls) > 0:
			names := make([]string, 0, len(msg.ToolCalls))
			for _, call := range msg.ToolCalls {
				names = append(names, call.Name)
			}
			fmt.Fprintf(w, "[%s] requested tools: %s\n", msg.Role, strings.Join(names, ", "))
			if msg.Content != "" {
				fmt.Fprintln(w, msg.Content)
			}
		case msg.Role == agent.RoleTool:
			fmt.Fprintf(w, "[tool %s] %s\n", msg.ToolCallID, summarize(msg.Content, 200))
		default:
			fmt.Fprintf(w, "[%s] %s\n", msg.Role, msg.Content)
		}
	}
}

// summarize collapses whitespace and truncates to max runes.
func summarize(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
