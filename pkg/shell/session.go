package shell

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// State describes the lifecycle of a shell session.
type State string

const (
	StateStarted    State = "started"
	StateIdle       State = "idle"
	StateBusy       State = "busy"
	StateCancelling State = "cancelling"
	StateTerminated State = "terminated"
)

// CommandStatus describes the outcome of a Submit, Poll or Cancel call.
type CommandStatus string

const (
	// StatusFinished means the command ran to completion; ExitCode is valid.
	StatusFinished CommandStatus = "finished"
	// StatusRunning means the drain window expired before the command
	// completed; the session stays busy and the caller may poll or cancel.
	StatusRunning CommandStatus = "running"
	// StatusCancelled means the command was interrupted and the shell
	// confirmed it returned to its prompt.
	StatusCancelled CommandStatus = "cancelled"
)

// CommandResult is the framed outcome of one command.
type CommandResult struct {
	Output   string        `json:"output"`
	ExitCode int           `json:"exit_code"` // -1 while the command is still running
	Status   CommandStatus `json:"status"`
}

// Interaction is one completed command in the session transcript.
type Interaction struct {
	Command   string        `json:"command"`
	Output    string        `json:"output"`
	ExitCode  int           `json:"exit_code"`
	Status    CommandStatus `json:"status"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
}

// Config controls how the shell process is spawned and supervised.
type Config struct {
	// Path is the shell binary to spawn.
	Path string
	// Dir is the initial working directory; inherited when empty.
	Dir string
	// CommandTimeout bounds each Submit or Poll drain window. Expiry is not
	// fatal: the command keeps running and the session stays busy.
	CommandTimeout time.Duration
	// CancelGrace bounds how long Cancel waits for the shell to confirm its
	// prompt after an interrupt before the session is terminated.
	CancelGrace time.Duration
	// StartupTimeout bounds how long NewSession waits for the shell to
	// become ready.
	StartupTimeout time.Duration
	// Rows and Cols size the pseudo-terminal.
	Rows uint16
	Cols uint16
	// TranscriptFile mirrors the raw terminal stream when set.
	TranscriptFile string
}

func (c *Config) applyDefaults() {
	if c.Path == "" {
		c.Path = "/bin/bash"
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 10 * time.Minute
	}
	if c.CancelGrace <= 0 {
		c.CancelGrace = 5 * time.Second
	}
	if c.StartupTimeout <= 0 {
		c.StartupTimeout = 10 * time.Second
	}
	if c.Rows == 0 {
		c.Rows = 24
	}
	if c.Cols == 0 {
		c.Cols = 120
	}
}

const (
	// initCommand quiets the shell so the stream carries only command output
	// and sentinel lines: no input echo, no prompts, no history file.
	initCommand = "stty -echo; unset HISTFILE PROMPT_COMMAND; PS1=; PS2="

	interruptByte   = 0x03 // ETX, what Ctrl-C writes to a terminal
	interruptSettle = 100 * time.Millisecond

	lineBuffer = 1024
	killWait   = 5 * time.Second
)

// Session is a persistent interactive shell attached to a pseudo-terminal.
// Submit, Poll and Cancel are serialized internally; concurrent callers
// block rather than interleave on the terminal.
type Session struct {
	id     string
	cfg    Config
	logger zerolog.Logger

	cmd        *exec.Cmd
	ptmx       *os.File
	transcript *os.File

	lines chan string
	stop  chan struct{} // closed on terminate, unblocks the reader
	done  chan struct{} // closed once the shell process is reaped

	exitCode int // process exit code, valid after done is closed

	opMu sync.Mutex // serializes Submit, Poll and Cancel end to end

	mu      sync.Mutex
	state   State
	pending *pendingCommand
	history []Interaction
}

type pendingCommand struct {
	command  string
	tokens   []string
	output   []string
	exitCode int
	finished bool
	started  time.Time
}

// consume folds one terminal line into the pending command: a sentinel for
// the current token completes it, lines carrying any issued token are
// dropped as protocol noise, everything else is command output.
func (p *pendingCommand) consume(line string) {
	if code, ok := matchSentinel(line, p.tokens[len(p.tokens)-1]); ok {
		p.exitCode = code
		p.finished = true
		return
	}
	for _, tok := range p.tokens {
		if strings.Contains(line, tok) {
			return
		}
	}
	p.output = append(p.output, line)
}

func (p *pendingCommand) result(status CommandStatus) *CommandResult {
	code := p.exitCode
	if status == StatusRunning {
		code = -1
	}
	return &CommandResult{Output: formatOutput(p.output), ExitCode: code, Status: status}
}

// formatOutput joins captured lines, dropping the single empty line the
// probe's leading newline produces after newline-terminated output.
func formatOutput(lines []string) string {
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

// NewSession spawns the shell on a pseudo-terminal, quiets it and probes it
// once. The returned session is Idle and ready for Submit.
func NewSession(cfg Config, logger zerolog.Logger) (*Session, error) {
	cfg.applyDefaults()

	var transcript *os.File
	if cfg.TranscriptFile != "" {
		f, err := os.OpenFile(cfg.TranscriptFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open transcript file: %w", err)
		}
		transcript = f
	}

	cmd := exec.Command(cfg.Path)
	cmd.Env = append(os.Environ(), "TERM=dumb")
	if cfg.Dir != "" {
		cmd.Dir = cfg.Dir
	}

	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: cfg.Rows, Cols: cfg.Cols})
	if err != nil {
		if transcript != nil {
			transcript.Close()
		}
		return nil, fmt.Errorf("%w: %v", ErrSpawn, err)
	}

	s := &Session{
		id:         uuid.New().String(),
		cfg:        cfg,
		logger:     logger.With().Str("component", "shell").Logger(),
		cmd:        cmd,
		ptmx:       ptmx,
		transcript: transcript,
		lines:      make(chan string, lineBuffer),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		state:      StateStarted,
	}

	go s.reap()
	go s.readLoop()

	if err := s.initialize(); err != nil {
		s.terminate("startup failed")
		return nil, err
	}

	s.logger.Info().
		Str("session_id", s.id).
		Str("shell", cfg.Path).
		Int("pid", cmd.Process.Pid).
		Msg("shell session ready")
	return s, nil
}

// initialize quiets the shell and waits for the first sentinel, discarding
// whatever banner or rc output precedes it.
func (s *Session) initialize() error {
	token, err := newToken()
	if err != nil {
		return err
	}
	pending := &pendingCommand{command: initCommand, tokens: []string{token}, started: time.Now()}
	if _, err := s.ptmx.WriteString(initCommand + "\n" + probeLine(token)); err != nil {
		return fmt.Errorf("%w: %v", ErrSpawn, err)
	}
	switch s.drain(context.Background(), pending, s.cfg.StartupTimeout) {
	case drainFinished:
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		return nil
	case drainClosed:
		return fmt.Errorf("%w: shell exited during startup", ErrSpawn)
	default:
		return fmt.Errorf("%w: shell not ready within %s", ErrSpawn, s.cfg.StartupTimeout)
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// History returns a copy of the completed interactions in submission order.
func (s *Session) History() []Interaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Interaction, len(s.history))
	copy(out, s.history)
	return out
}

// Submit writes a command to the shell and drains output until its sentinel
// appears or the command timeout expires. On timeout the command keeps
// running: the session stays Busy and the result status is StatusRunning.
func (s *Session) Submit(ctx context.Context, command string) (*CommandResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	command = strings.TrimRight(command, "\r\n")

	s.mu.Lock()
	switch s.state {
	case StateTerminated:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case StateBusy, StateCancelling:
		s.mu.Unlock()
		return nil, ErrSessionBusy
	}
	token, err := newToken()
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	pending := &pendingCommand{command: command, tokens: []string{token}, started: time.Now()}
	s.pending = pending
	s.state = StateBusy
	s.mu.Unlock()

	s.logger.Debug().
		Str("session_id", s.id).
		Str("command", command).
		Msg("submitting command")

	if _, err := s.ptmx.WriteString(command + "\n" + probeLine(token)); err != nil {
		s.terminate("terminal write failed")
		return nil, fmt.Errorf("%w: %v", ErrSessionClosed, err)
	}
	return s.drainPending(ctx, pending)
}

// Poll resumes draining the in-flight command for another timeout window.
func (s *Session) Poll(ctx context.Context) (*CommandResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	switch s.state {
	case StateTerminated:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case StateBusy:
	default:
		s.mu.Unlock()
		return nil, ErrNoCommand
	}
	pending := s.pending
	s.mu.Unlock()

	return s.drainPending(ctx, pending)
}

// Cancel interrupts the in-flight command and waits up to the grace period
// for the shell to confirm its prompt. On confirmation the session is Idle
// again and the partial output is returned with StatusCancelled. If the
// shell does not confirm, the session is terminated and
// ErrCancellationFailed is returned.
func (s *Session) Cancel(ctx context.Context) (*CommandResult, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	switch s.state {
	case StateTerminated:
		s.mu.Unlock()
		return nil, ErrSessionClosed
	case StateBusy:
	default:
		s.mu.Unlock()
		return nil, ErrNoCommand
	}
	pending := s.pending
	s.state = StateCancelling
	s.mu.Unlock()

	s.logger.Info().
		Str("session_id", s.id).
		Str("command", pending.command).
		Msg("cancelling command")

	if _, err := s.ptmx.Write([]byte{interruptByte}); err != nil {
		s.terminate("terminal write failed")
		return nil, fmt.Errorf("%w: %v", ErrSessionClosed, err)
	}

	// The interrupt flushes the terminal's input queue, so the probe is
	// written afterwards with a fresh token to survive the flush.
	time.Sleep(interruptSettle)
	token, err := newToken()
	if err != nil {
		s.mu.Lock()
		s.state = StateBusy
		s.mu.Unlock()
		return nil, err
	}
	pending.tokens = append(pending.tokens, token)
	if _, err := s.ptmx.WriteString(probeLine(token)); err != nil {
		s.terminate("terminal write failed")
		return nil, fmt.Errorf("%w: %v", ErrSessionClosed, err)
	}

	switch s.drain(ctx, pending, s.cfg.CancelGrace) {
	case drainFinished:
		return s.finishPending(pending, StatusCancelled), nil
	case drainClosed:
		s.terminate("shell exited during cancellation")
		return nil, fmt.Errorf("%w: shell exited", ErrCancellationFailed)
	default:
		s.terminate("cancellation grace period expired")
		return nil, fmt.Errorf("%w: no prompt within %s", ErrCancellationFailed, s.cfg.CancelGrace)
	}
}

// Close terminates the session and reaps the shell process. It is
// idempotent and safe to call in any state.
func (s *Session) Close() error {
	s.terminate("closed")
	return nil
}

func (s *Session) drainPending(ctx context.Context, pending *pendingCommand) (*CommandResult, error) {
	switch s.drain(ctx, pending, s.cfg.CommandTimeout) {
	case drainFinished:
		return s.finishPending(pending, StatusFinished), nil
	case drainClosed:
		s.terminate("shell exited")
		return nil, ErrSessionClosed
	default:
		s.logger.Info().
			Str("session_id", s.id).
			Dur("elapsed", time.Since(pending.started)).
			Msg("command still running")
		return pending.result(StatusRunning), nil
	}
}

type drainOutcome int

const (
	drainFinished drainOutcome = iota
	drainTimeout
	drainClosed
)

// drain consumes terminal lines into pending until its sentinel appears, the
// window expires, or the shell exits. Context cancellation closes the window
// early and is reported as a timeout: the command itself is unaffected.
func (s *Session) drain(ctx context.Context, pending *pendingCommand, window time.Duration) drainOutcome {
	timer := time.NewTimer(window)
	defer timer.Stop()
	for {
		select {
		case line, ok := <-s.lines:
			if !ok {
				return drainClosed
			}
			pending.consume(line)
			if pending.finished {
				return drainFinished
			}
		case <-timer.C:
			return drainTimeout
		case <-ctx.Done():
			return drainTimeout
		}
	}
}

func (s *Session) finishPending(p *pendingCommand, status CommandStatus) *CommandResult {
	res := p.result(status)
	elapsed := time.Since(p.started)

	s.mu.Lock()
	s.state = StateIdle
	s.pending = nil
	s.history = append(s.history, Interaction{
		Command:   p.command,
		Output:    res.Output,
		ExitCode:  res.ExitCode,
		Status:    status,
		StartedAt: p.started,
		Duration:  elapsed,
	})
	s.mu.Unlock()

	s.logger.Info().
		Str("session_id", s.id).
		Int("exit_code", res.ExitCode).
		Str("status", string(status)).
		Dur("duration", elapsed).
		Msg("command completed")
	return res
}

// terminate moves the session to Terminated, kills the shell process and
// waits for it to be reaped. Safe to call multiple times.
func (s *Session) terminate(reason string) {
	s.mu.Lock()
	if s.state == StateTerminated {
		s.mu.Unlock()
		return
	}
	s.state = StateTerminated
	s.pending = nil
	close(s.stop)
	s.mu.Unlock()

	s.ptmx.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	select {
	case <-s.done:
	case <-time.After(killWait):
		s.logger.Warn().Str("session_id", s.id).Msg("shell process did not exit after kill")
	}
	if s.transcript != nil {
		s.transcript.Close()
	}
	s.logger.Info().
		Str("session_id", s.id).
		Str("reason", reason).
		Msg("shell session terminated")
}

// reap waits for the shell process and records its exit code.
func (s *Session) reap() {
	code := 0
	if err := s.cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		} else {
			code = 1
		}
	}
	s.exitCode = code
	close(s.done)
	s.logger.Debug().
		Str("session_id", s.id).
		Int("process_exit_code", code).
		Msg("shell process exited")
}

// readLoop reads the terminal byte stream, mirrors it to the transcript and
// splits it into lines. It exits when the terminal closes or the session
// stops, closing the line channel either way.
func (s *Session) readLoop() {
	defer close(s.lines)
	buf := make([]byte, 4096)
	var partial []byte
	for {
		n, err := s.ptmx.Read(buf)
		if n > 0 {
			if s.transcript != nil {
				s.transcript.Write(buf[:n])
			}
			partial = append(partial, buf[:n]...)
			for {
				idx := bytes.IndexByte(partial, '\n')
				if idx < 0 {
					break
				}
				line := strings.TrimRight(string(partial[:idx]), "\r")
				partial = partial[idx+1:]
				select {
				case s.lines <- line:
				case <-s.stop:
					return
				}
			}
		}
		if err != nil {
			if len(partial) > 0 {
				select {
				case s.lines <- strings.TrimRight(string(partial), "\r"):
				case <-s.stop:
				}
			}
			return
		}
	}
}
