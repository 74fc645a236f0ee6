// Package shell owns a persistent interactive shell attached to a
// pseudo-terminal and frames its unstructured output into per-command
// results.
//
// Each submitted command is followed by a probe line that prints a
// per-command high-entropy token together with the command's exit code.
// Draining the terminal until that sentinel line appears turns the raw byte
// stream into {output, exit code} without requiring any cooperation from the
// target shell. A drain window that expires leaves the command running and
// the session busy; the caller may keep polling or request cancellation.
// Cancellation is a request, not a guarantee: an interrupt is written to the
// terminal and a fresh probe must confirm the shell returned to its prompt
// within the grace period, otherwise the session is terminated rather than
// left ambiguous.
//
// Invariants:
//   - One in-flight command per session; working directory, environment and
//     background jobs persist across commands.
//   - Sentinel tokens are generated per command; no static marker exists.
//   - A terminated session fails every subsequent operation with
//     ErrSessionClosed; the underlying process is always reaped.
//
// Usage:
//
//	sess, err := shell.NewSession(shell.Config{}, logger)
//	if err != nil { ... }
//	defer sess.Close()
//	res, err := sess.Submit(ctx, "echo hello")
package shell
