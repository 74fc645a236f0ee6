package shell

import "errors"

var (
	// ErrSpawn indicates the shell process or its pseudo-terminal could not
	// be started, or the shell never became ready within the startup window.
	ErrSpawn = errors.New("failed to start shell session")

	// ErrSessionClosed indicates the session has terminated; no further
	// commands can be submitted and no in-flight command can be recovered.
	ErrSessionClosed = errors.New("shell session is closed")

	// ErrSessionBusy indicates a command is already in flight; the caller
	// should poll or cancel the current command first.
	ErrSessionBusy = errors.New("shell session is busy")

	// ErrNoCommand indicates a poll or cancel was requested while no command
	// was in flight.
	ErrNoCommand = errors.New("no command in flight")

	// ErrCancellationFailed indicates the shell did not return to its prompt
	// within the cancellation grace period; the session has been terminated.
	ErrCancellationFailed = errors.New("cancellation failed")
)
