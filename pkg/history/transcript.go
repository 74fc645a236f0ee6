package history

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/skeinworks/skein/pkg/agent"
)

// validateRunID guards the transcript filename against path tricks.
func validateRunID(runID string) error {
	if runID == "" {
		return fmt.Errorf("run ID cannot be empty")
	}
	if strings.Contains(runID, "..") {
		return fmt.Errorf("run ID cannot contain '..'")
	}
	if strings.ContainsAny(runID, "/\\") {
		return fmt.Errorf("run ID cannot contain path separators")
	}
	return nil
}

func (s *Store) transcriptPath(runID string) string {
	return filepath.Join(s.transcriptsDir, runID+".jsonl")
}

// SaveTranscript writes the run's conversation as JSONL, one message per
// line. An existing transcript for the same run is replaced.
func (s *Store) SaveTranscript(runID string, messages []agent.Message) error {
	if err := validateRunID(runID); err != nil {
		return err
	}

	path := s.transcriptPath(runID)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create transcript: %w", err)
	}

	writer := bufio.NewWriter(file)
	for _, message := range messages {
		line, err := json.Marshal(message)
		if err != nil {
			file.Close()
			return fmt.Errorf("failed to encode message: %w", err)
		}
		if _, err := writer.Write(append(line, '\n')); err != nil {
			file.Close()
			return fmt.Errorf("failed to write transcript: %w", err)
		}
	}
	if err := writer.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("failed to flush transcript: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close transcript: %w", err)
	}

	s.logger.Debug().Str("run_id", runID).Int("messages", len(messages)).Msg("Transcript saved")
	return nil
}

// LoadTranscript reads a run's conversation back. Corrupt lines are skipped
// rather than failing the whole load.
func (s *Store) LoadTranscript(runID string) ([]agent.Message, error) {
	if err := validateRunID(runID); err != nil {
		return nil, err
	}

	file, err := os.Open(s.transcriptPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer file.Close()

	var messages []agent.Message
	skipped := 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var message agent.Message
		if err := json.Unmarshal([]byte(line), &message); err != nil {
			skipped++
			continue
		}
		messages = append(messages, message)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	if skipped > 0 {
		s.logger.Warn().Str("run_id", runID).Int("skipped", skipped).Msg("Skipped corrupt transcript lines")
	}
	return messages, nil
}

func (s *Store) deleteTranscript(runID string) error {
	if err := validateRunID(runID); err != nil {
		return err
	}
	err := os.Remove(s.transcriptPath(runID))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
