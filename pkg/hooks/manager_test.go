package hooks

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManager(t *testing.T) {
	t.Run("should reject unknown events", func(t *testing.T) {
		_, err := NewManager(Config{
			Enabled: true,
			Logger:  zerolog.Nop(),
			Hooks: []Hook{
				{ID: "bad", Event: "run:warp", Script: "true", Enabled: true},
			},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown hook event")
	})

	t.Run("should reject empty scripts", func(t *testing.T) {
		_, err := NewManager(Config{
			Enabled: true,
			Logger:  zerolog.Nop(),
			Hooks: []Hook{
				{ID: "empty", Event: EventRunStart, Script: "   ", Enabled: true},
			},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "hook script is required")
	})

	t.Run("should skip disabled entries without validating them", func(t *testing.T) {
		manager, err := NewManager(Config{
			Enabled: true,
			Logger:  zerolog.Nop(),
			Hooks: []Hook{
				{ID: "off", Event: "run:warp", Script: "", Enabled: false},
			},
		})
		require.NoError(t, err)
		assert.Empty(t, manager.hooksByEvent)
	})

	t.Run("should apply the default timeout", func(t *testing.T) {
		manager, err := NewManager(Config{
			Enabled: true,
			Logger:  zerolog.Nop(),
			Hooks: []Hook{
				{ID: "h", Event: EventRunStart, Script: "true", Enabled: true},
			},
		})
		require.NoError(t, err)
		require.Len(t, manager.hooksByEvent[EventRunStart], 1)
		assert.Equal(t, DefaultTimeout, manager.hooksByEvent[EventRunStart][0].Timeout)
	})
}

func TestManagerTriggerExecutesHookScript(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "started.txt")
	hookScript := "echo started > " + outputPath

	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{ID: "started", Event: EventRunStart, Script: hookScript, Enabled: true},
		},
	})
	require.NoError(t, err)

	require.NoError(t, manager.Trigger(context.Background(), EventRunStart, nil))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "started\n", string(content))
}

func TestManagerTriggerInjectsEventDataIntoEnvironment(t *testing.T) {
	outputPath := filepath.Join(t.TempDir(), "env.txt")
	hookScript := "echo \"$SKEIN_HOOK_EVENT:$SKEIN_HOOK_DATA_RUN_ID\" > " + outputPath

	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{ID: "finish", Event: EventRunFinish, Script: hookScript, Enabled: true},
		},
	})
	require.NoError(t, err)

	require.NoError(t, manager.Trigger(context.Background(), EventRunFinish, map[string]interface{}{
		"run_id": "run-42",
	}))

	content, err := os.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, "run:finish:run-42\n", string(content))
}

func TestManagerTriggerReturnsJoinedErrors(t *testing.T) {
	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{ID: "fail-1", Event: EventRunError, Script: "exit 2", Enabled: true},
			{ID: "fail-2", Event: EventRunError, Script: "exit 3", Enabled: true},
		},
	})
	require.NoError(t, err)

	err = manager.Trigger(context.Background(), EventRunError, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hook fail-1 failed")
	assert.Contains(t, err.Error(), "hook fail-2 failed")
}

func TestManagerTriggerRespectsTimeout(t *testing.T) {
	manager, err := NewManager(Config{
		Enabled: true,
		Logger:  zerolog.Nop(),
		Hooks: []Hook{
			{
				ID:      "slow",
				Event:   EventRunStart,
				Script:  "sleep 1",
				Enabled: true,
				Timeout: 30 * time.Millisecond,
			},
		},
	})
	require.NoError(t, err)

	err = manager.Trigger(context.Background(), EventRunStart, nil)
	require.Error(t, err)
	assert.True(t,
		strings.Contains(err.Error(), "deadline exceeded") || strings.Contains(err.Error(), "signal: killed"),
		"expected timeout-related error, got: %v",
		err,
	)
}

func TestManagerTriggerNoOps(t *testing.T) {
	t.Run("disabled manager", func(t *testing.T) {
		manager, err := NewManager(Config{Enabled: false, Logger: zerolog.Nop()})
		require.NoError(t, err)
		assert.NoError(t, manager.Trigger(context.Background(), EventRunStart, nil))
	})

	t.Run("nil manager", func(t *testing.T) {
		var manager *Manager
		assert.NoError(t, manager.Trigger(context.Background(), EventRunStart, nil))
	})

	t.Run("event with no hooks", func(t *testing.T) {
		manager, err := NewManager(Config{
			Enabled: true,
			Logger:  zerolog.Nop(),
			Hooks: []Hook{
				{ID: "h", Event: EventRunFinish, Script: "true", Enabled: true},
			},
		})
		require.NoError(t, err)
		assert.NoError(t, manager.Trigger(context.Background(), EventRunStart, nil))
	})

	t.Run("unknown event is rejected", func(t *testing.T) {
		manager, err := NewManager(Config{Enabled: true, Logger: zerolog.Nop()})
		require.NoError(t, err)
		assert.Error(t, manager.Trigger(context.Background(), "run:warp", nil))
	})
}
