package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/skeinworks/skein/internal/config"
	"github.com/skeinworks/skein/internal/logger"
	"github.com/skeinworks/skein/pkg/agent"
	"github.com/skeinworks/skein/pkg/coretools"
	"github.com/skeinworks/skein/pkg/history"
	"github.com/skeinworks/skein/pkg/hooks"
	"github.com/skeinworks/skein/pkg/shell"
	"github.com/skeinworks/skein/pkg/toolexecutor"
)

var (
	runVendor    string
	runModel     string
	runSystem    string
	runSchema    string
	runMaxTurns  int
	runWorkspace string
	runResume    string
	runNoShell   bool
	runNoHistory bool
	runJSON      bool
)

var runCmd = &cobra.Command{
	Use:   "run [prompt...]",
	Short: "Run one agent task to completion",
	Long: `Run the agent loop on a prompt until the model produces a final answer.
The model can read, write and patch files in the workspace and execute
commands in a persistent shell session. With --schema the final answer is
validated against the given JSON schema and printed as JSON.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runVendor, "vendor", "", "model vendor (anthropic, openai)")
	runCmd.Flags().StringVar(&runModel, "model", "", "model name")
	runCmd.Flags().StringVar(&runSystem, "system", "", "system prompt")
	runCmd.Flags().StringVar(&runSchema, "schema", "", "path to a JSON schema file for the final answer")
	runCmd.Flags().IntVar(&runMaxTurns, "max-turns", 0, "turn budget for the loop")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "", "workspace directory for file tools (default current directory)")
	runCmd.Flags().StringVar(&runResume, "resume", "", "run ID whose conversation to continue")
	runCmd.Flags().BoolVar(&runNoShell, "no-shell", false, "disable the shell session tools")
	runCmd.Flags().BoolVar(&runNoHistory, "no-history", false, "do not record this run in the history store")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the full run result as JSON")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, log, closeLog, err := loadRuntime()
	if err != nil {
		return err
	}
	defer closeLog()

	if runVendor != "" {
		cfg.Vendor.Name = runVendor
	}
	if runModel != "" {
		cfg.Vendor.Model = runModel
	}
	if runSystem != "" {
		cfg.Agent.SystemPrompt = runSystem
	}
	if runMaxTurns > 0 {
		cfg.Agent.MaxTurns = runMaxTurns
	}

	workspace, err := resolveWorkspace(cfg, runWorkspace)
	if err != nil {
		return err
	}

	registry := toolexecutor.NewRegistry(log.GetZerolog())
	dispatcher := newDispatcher(cfg, registry, log)

	if err := coretools.RegisterCoreTools(registry, coretools.Options{WorkspaceRoot: workspace}); err != nil {
		return fmt.Errorf("failed to register file tools: %w", err)
	}

	if !runNoShell {
		session, err := shell.NewSession(shellConfigFrom(cfg, workspace), log.GetZerolog())
		if err != nil {
			return fmt.Errorf("failed to start shell session: %w", err)
		}
		defer session.Close()

		if err := shell.RegisterTools(registry, session); err != nil {
			return fmt.Errorf("failed to register shell tools: %w", err)
		}
	}

	runner, err := newRunner(cfg, registry, dispatcher, log)
	if err != nil {
		return err
	}

	lifecycle, err := newHooks(cfg, log)
	if err != nil {
		return fmt.Errorf("invalid hooks configuration: %w", err)
	}

	var schemaDoc map[string]interface{}
	if runSchema != "" {
		schemaDoc, err = loadSchemaFile(runSchema)
		if err != nil {
			return err
		}
	}

	var store *history.Store
	if !runNoHistory {
		store, err = openHistory(cfg, log)
		if err != nil {
			if runResume != "" {
				return fmt.Errorf("failed to open run history: %w", err)
			}
			// Recording is best effort; a run must not fail because the
			// history store is unavailable.
			log.Warn().Err(err).Msg("Run history unavailable")
		} else {
			defer store.Close()
		}
	}

	var prior []agent.Message
	if runResume != "" {
		if store == nil {
			return fmt.Errorf("cannot resume a run with history disabled")
		}
		prior, err = store.LoadTranscript(runResume)
		if err != nil {
			return fmt.Errorf("failed to resume run %s: %w", runResume, err)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	prompt := strings.Join(args, " ")
	started := time.Now()

	fireHook(ctx, lifecycle, log, hooks.EventRunStart, map[string]interface{}{
		"vendor": cfg.Vendor.Name,
		"model":  cfg.Vendor.Model,
		"prompt": prompt,
	})

	result, err := runner.Run(ctx, agent.RunRequest{
		Prompt:       prompt,
		Messages:     prior,
		OutputSchema: schemaDoc,
	})
	if err != nil {
		// The signal context may already be cancelled here; error hooks
		// still get to run.
		fireHook(context.Background(), lifecycle, log, hooks.EventRunError, map[string]interface{}{
			"vendor": cfg.Vendor.Name,
			"model":  cfg.Vendor.Model,
			"error":  err.Error(),
		})
		return err
	}

	fireHook(ctx, lifecycle, log, hooks.EventRunFinish, map[string]interface{}{
		"run_id":        result.RunID,
		"turns":         result.Turns,
		"input_tokens":  result.Usage.InputTokens,
		"output_tokens": result.Usage.OutputTokens,
	})

	if store != nil {
		recordRun(ctx, store, log, cfg, prompt, result, time.Since(started))
	}

	out := cmd.OutOrStdout()
	switch {
	case runJSON:
		encoded, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(encoded))
	case result.Structured != nil:
		fmt.Fprintln(out, string(result.Structured))
	default:
		fmt.Fprintln(out, result.Content)
	}

	log.Info().
		Int("turns", result.Turns).
		Int("requests", result.Usage.Requests).
		Int("input_tokens", result.Usage.InputTokens).
		Int("output_tokens", result.Usage.OutputTokens).
		Msg("Run finished")

	return nil
}

// fireHook triggers lifecycle hooks; failures are logged, never fatal.
func fireHook(ctx context.Context, lifecycle *hooks.Manager, log *logger.Logger, event hooks.Event, data map[string]interface{}) {
	if err := lifecycle.Trigger(ctx, event, data); err != nil {
		log.Warn().Err(err).Str("event", string(event)).Msg("Hook failed")
	}
}

// recordRun stores the finished run and its transcript. Failures are
// logged, not returned; history must never fail a completed run.
func recordRun(ctx context.Context, store *history.Store, log *logger.Logger, cfg *config.Config, prompt string, result *agent.RunResult, elapsed time.Duration) {
	answer := result.Content
	if result.Structured != nil {
		answer = string(result.Structured)
	}

	run := history.Run{
		RunID:        result.RunID,
		Vendor:       cfg.Vendor.Name,
		Model:        cfg.Vendor.Model,
		Prompt:       prompt,
		Answer:       answer,
		Turns:        result.Turns,
		Requests:     result.Usage.Requests,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		DurationMS:   elapsed.Milliseconds(),
	}
	if err := store.Record(ctx, run); err != nil {
		log.Warn().Err(err).Str("run_id", result.RunID).Msg("Failed to record run")
		return
	}
	if err := store.SaveTranscript(result.RunID, result.Messages); err != nil {
		log.Warn().Err(err).Str("run_id", result.RunID).Msg("Failed to save run transcript")
	}
}

// loadSchemaFile reads a JSON schema document from disk.
func loadSchemaFile(path string) (map[string]interface{}, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema file: %w", err)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid schema file %s: %w", path, err)
	}
	return doc, nil
}
