// Package hooks runs user-configured shell scripts at run lifecycle
// points. Hooks receive the event name and event data through the
// environment (SKEIN_HOOK_EVENT, SKEIN_HOOK_DATA_<KEY>) and are bounded
// by a per-hook timeout.
package hooks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Event identifies a lifecycle point a hook can attach to.
type Event string

const (
	// EventRunStart fires before the first model request of a run.
	EventRunStart Event = "run:start"
	// EventRunFinish fires after a run produced a final answer.
	EventRunFinish Event = "run:finish"
	// EventRunError fires when a run fails.
	EventRunError Event = "run:error"
)

// DefaultTimeout bounds a hook script that sets no timeout of its own.
const DefaultTimeout = 30 * time.Second

func knownEvent(event Event) bool {
	switch event {
	case EventRunStart, EventRunFinish, EventRunError:
		return true
	}
	return false
}

// Hook is one configured lifecycle hook.
type Hook struct {
	ID      string
	Event   Event
	Script  string
	Timeout time.Duration
	Enabled bool
}

// Config configures a hook Manager.
type Config struct {
	Enabled bool
	Hooks   []Hook
	Logger  zerolog.Logger
}

// Manager executes configured hooks for lifecycle events. The hook set is
// fixed at construction.
type Manager struct {
	enabled      bool
	logger       zerolog.Logger
	hooksByEvent map[Event][]Hook
}

// NewManager validates the hook set and builds a manager. Disabled entries
// are skipped; unknown events and empty scripts are rejected.
func NewManager(cfg Config) (*Manager, error) {
	manager := &Manager{
		enabled:      cfg.Enabled,
		logger:       cfg.Logger.With().Str("component", "hooks").Logger(),
		hooksByEvent: make(map[Event][]Hook),
	}

	if !cfg.Enabled {
		return manager, nil
	}

	for _, hook := range cfg.Hooks {
		if !hook.Enabled {
			continue
		}
		if !knownEvent(hook.Event) {
			return nil, fmt.Errorf("unknown hook event %q", hook.Event)
		}
		if strings.TrimSpace(hook.Script) == "" {
			return nil, fmt.Errorf("hook script is required for event %q", hook.Event)
		}
		if hook.Timeout <= 0 {
			hook.Timeout = DefaultTimeout
		}
		manager.hooksByEvent[hook.Event] = append(manager.hooksByEvent[hook.Event], hook)
	}

	return manager, nil
}

// Trigger executes every hook registered for the event, in configuration
// order. All hooks run; failures are joined into one error.
func (m *Manager) Trigger(ctx context.Context, event Event, data map[string]interface{}) error {
	if m == nil || !m.enabled {
		return nil
	}
	if !knownEvent(event) {
		return fmt.Errorf("unknown hook event %q", event)
	}

	hooks := m.hooksByEvent[event]
	if len(hooks) == 0 {
		return nil
	}

	var errs []error
	for _, hook := range hooks {
		if err := m.executeHook(ctx, hook, data); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (m *Manager) executeHook(ctx context.Context, hook Hook, data map[string]interface{}) error {
	if ctx == nil {
		ctx = context.Background()
	}

	hookID := hook.ID
	if strings.TrimSpace(hookID) == "" {
		hookID = string(hook.Event)
	}

	runCtx, cancel := context.WithTimeout(ctx, hook.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", hook.Script)
	cmd.Env = buildHookEnvironment(hook.Event, data)

	output, err := cmd.CombinedOutput()
	outputText := strings.TrimSpace(string(output))
	if err != nil {
		if outputText != "" {
			return fmt.Errorf("hook %s failed: %w: %s", hookID, err, outputText)
		}
		return fmt.Errorf("hook %s failed: %w", hookID, err)
	}

	if outputText != "" {
		m.logger.Debug().
			Str("event", string(hook.Event)).
			Str("hook_id", hookID).
			Str("output", outputText).
			Msg("Hook executed")
	}

	return nil
}

func buildHookEnvironment(event Event, data map[string]interface{}) []string {
	env := append([]string{}, os.Environ()...)
	env = append(env, "SKEIN_HOOK_EVENT="+string(event))

	if len(data) == 0 {
		return env
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		envKey := "SKEIN_HOOK_DATA_" + normalizeEnvKey(key)
		env = append(env, envKey+"="+fmt.Sprintf("%v", data[key]))
	}
	return env
}

func normalizeEnvKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "UNKNOWN"
	}

	upper := strings.ToUpper(key)
	builder := strings.Builder{}
	builder.Grow(len(upper))
	for _, r := range upper {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			builder.WriteRune(r)
			continue
		}
		builder.WriteRune('_')
	}
	return builder.String()
}
