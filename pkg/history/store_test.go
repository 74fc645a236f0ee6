package history

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Config{Dir: t.TempDir(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRun(id string, createdAt time.Time) Run {
	return Run{
		RunID:        id,
		Vendor:       "anthropic",
		Model:        "test-model",
		Prompt:       "what is up",
		Answer:       "not much",
		Turns:        2,
		Requests:     3,
		InputTokens:  120,
		OutputTokens: 48,
		DurationMS:   1500,
		CreatedAt:    createdAt,
	}
}

func TestOpen(t *testing.T) {
	t.Run("should create database and transcript directory", func(t *testing.T) {
		dir := t.TempDir()
		store, err := Open(Config{Dir: dir, Logger: zerolog.Nop()})
		require.NoError(t, err)
		defer store.Close()

		assert.FileExists(t, filepath.Join(dir, "history.db"))
		assert.DirExists(t, filepath.Join(dir, "transcripts"))
	})

	t.Run("should require a directory", func(t *testing.T) {
		_, err := Open(Config{Logger: zerolog.Nop()})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "directory is required")
	})

	t.Run("should reopen an existing store", func(t *testing.T) {
		dir := t.TempDir()
		first, err := Open(Config{Dir: dir, Logger: zerolog.Nop()})
		require.NoError(t, err)
		require.NoError(t, first.Record(context.Background(), sampleRun("run-1", time.Now())))
		require.NoError(t, first.Close())

		second, err := Open(Config{Dir: dir, Logger: zerolog.Nop()})
		require.NoError(t, err)
		defer second.Close()

		got, err := second.Get(context.Background(), "run-1")
		require.NoError(t, err)
		assert.Equal(t, "not much", got.Answer)
	})
}

func TestStore_RecordAndGet(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	created := time.Now().Add(-time.Minute)
	require.NoError(t, store.Record(ctx, sampleRun("run-1", created)))

	got, err := store.Get(ctx, "run-1")
	require.NoError(t, err)

	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "anthropic", got.Vendor)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "what is up", got.Prompt)
	assert.Equal(t, "not much", got.Answer)
	assert.Equal(t, 2, got.Turns)
	assert.Equal(t, 3, got.Requests)
	assert.Equal(t, 120, got.InputTokens)
	assert.Equal(t, 48, got.OutputTokens)
	assert.Equal(t, int64(1500), got.DurationMS)
	assert.Equal(t, created.Unix(), got.CreatedAt.Unix())
}

func TestStore_Get_NotFound(t *testing.T) {
	store := setupStore(t)

	_, err := store.Get(context.Background(), "run-x")
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestStore_Record_DuplicateID(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, sampleRun("run-1", time.Now())))
	err := store.Record(ctx, sampleRun("run-1", time.Now()))
	require.Error(t, err)
}

func TestStore_List(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Record(ctx, sampleRun("run-old", now.Add(-2*time.Hour))))
	require.NoError(t, store.Record(ctx, sampleRun("run-mid", now.Add(-time.Hour))))
	require.NoError(t, store.Record(ctx, sampleRun("run-new", now)))

	t.Run("should return newest first", func(t *testing.T) {
		runs, err := store.List(ctx, 10)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "run-new", runs[0].RunID)
		assert.Equal(t, "run-mid", runs[1].RunID)
		assert.Equal(t, "run-old", runs[2].RunID)
	})

	t.Run("should honor the limit", func(t *testing.T) {
		runs, err := store.List(ctx, 2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-new", runs[0].RunID)
	})

	t.Run("should return empty for a fresh store", func(t *testing.T) {
		fresh := setupStore(t)
		runs, err := fresh.List(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})
}

func TestStore_Prune(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.Record(ctx, sampleRun("run-old", now.Add(-48*time.Hour))))
	require.NoError(t, store.Record(ctx, sampleRun("run-new", now)))
	require.NoError(t, store.SaveTranscript("run-old", nil))
	oldTranscript := store.transcriptPath("run-old")
	require.FileExists(t, oldTranscript)

	deleted, err := store.Prune(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	_, err = store.Get(ctx, "run-old")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = store.Get(ctx, "run-new")
	assert.NoError(t, err)

	_, statErr := os.Stat(oldTranscript)
	assert.True(t, os.IsNotExist(statErr))
}
