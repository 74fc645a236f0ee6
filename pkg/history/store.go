package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// Run is one recorded agent run.
type Run struct {
	RunID        string    `json:"run_id"`
	Vendor       string    `json:"vendor"`
	Model        string    `json:"model"`
	Prompt       string    `json:"prompt"`
	Answer       string    `json:"answer"`
	Turns        int       `json:"turns"`
	Requests     int       `json:"requests"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Config holds store configuration.
type Config struct {
	// Dir is the data directory; the index lives at <dir>/history.db and
	// transcripts under <dir>/transcripts.
	Dir    string
	Logger zerolog.Logger
}

// Store is the run history index plus its transcript directory.
type Store struct {
	db             *sql.DB
	transcriptsDir string
	logger         zerolog.Logger
}

// ErrRunNotFound indicates the run ID is not in the index.
var ErrRunNotFound = errors.New("run not found")

// Open opens (and if needed creates) the history store.
func Open(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("history directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	transcriptsDir := filepath.Join(cfg.Dir, "transcripts")
	if err := os.MkdirAll(transcriptsDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create transcripts directory: %w", err)
	}

	db, err := sql.Open("sqlite3", filepath.Join(cfg.Dir, "history.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	// WAL keeps concurrent readers cheap
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{
		db:             db,
		transcriptsDir: transcriptsDir,
		logger:         cfg.Logger.With().Str("component", "history").Logger(),
	}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			vendor TEXT NOT NULL,
			model TEXT NOT NULL,
			prompt TEXT NOT NULL,
			answer TEXT NOT NULL,
			turns INTEGER NOT NULL,
			requests INTEGER NOT NULL,
			input_tokens INTEGER NOT NULL,
			output_tokens INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_runs_created ON runs(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record inserts one run into the index.
func (s *Store) Record(ctx context.Context, run Run) error {
	if err := validateRunID(run.RunID); err != nil {
		return err
	}
	createdAt := run.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, vendor, model, prompt, answer, turns,
			requests, input_tokens, output_tokens, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Vendor, run.Model, run.Prompt, run.Answer, run.Turns,
		run.Requests, run.InputTokens, run.OutputTokens, run.DurationMS,
		createdAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	s.logger.Debug().Str("run_id", run.RunID).Msg("Run recorded")
	return nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, vendor, model, prompt, answer, turns, requests,
			input_tokens, output_tokens, duration_ms, created_at
		FROM runs ORDER BY created_at DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Get returns one run by ID, or ErrRunNotFound.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	if err := validateRunID(runID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, vendor, model, prompt, answer, turns, requests,
			input_tokens, output_tokens, duration_ms, created_at
		FROM runs WHERE run_id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// Prune removes runs older than the given age, transcripts included, and
// returns how many were deleted.
func (s *Store) Prune(ctx context.Context, age time.Duration) (int, error) {
	cutoff := time.Now().Add(-age).Unix()

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to find stale runs: %w", err)
	}
	var stale []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		stale = append(stale, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range stale {
		if err := s.deleteTranscript(id); err != nil {
			s.logger.Warn().Str("run_id", id).Err(err).Msg("Failed to delete transcript")
		}
	}

	result, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	deleted, _ := result.RowsAffected()

	if deleted > 0 {
		s.logger.Info().Int64("deleted", deleted).Dur("age", age).Msg("History pruned")
	}
	return int(deleted), nil
}

// Close closes the index.
func (s *Store) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (Run, error) {
	var run Run
	var createdAt int64
	err := row.Scan(&run.RunID, &run.Vendor, &run.Model, &run.Prompt,
		&run.Answer, &run.Turns, &run.Requests, &run.InputTokens,
		&run.OutputTokens, &run.DurationMS, &createdAt)
	if err != nil {
		return Run{}, err
	}
	run.CreatedAt = time.Unix(createdAt, 0)
	return run, nil
}
