package shell

import (
	"fmt"
	"strconv"
	"strings"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// newToken returns a fresh high-entropy sentinel token. Tokens are generated
// per command so that no output a command could plausibly print collides with
// the completion marker.
func newToken() (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate sentinel token: %w", err)
	}
	return "SKEIN_" + id, nil
}

// probeLine builds the shell command that prints the sentinel for the
// previous command. The leading newline forces the sentinel onto its own
// line even when the previous command did not terminate its output.
func probeLine(token string) string {
	return fmt.Sprintf("printf '\\n%%s:%%s\\n' '%s' \"$?\"\n", token)
}

// matchSentinel reports whether line is the sentinel for token and, if so,
// the exit code it carries. The match is exact: an echoed probe command
// contains the token but never in bare <token>:<code> form.
func matchSentinel(line, token string) (int, bool) {
	rest, ok := strings.CutPrefix(line, token+":")
	if !ok {
		return 0, false
	}
	code, err := strconv.Atoi(strings.TrimSpace(rest))
	if err != nil {
		return 0, false
	}
	return code, true
}
