package coretools

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

type hunkLine struct {
	kind byte
	text string
}

type hunk struct {
	start int
	lines []hunkLine
}

type filePatch struct {
	path  string
	hunks []hunk
}

type patchApplyResult struct {
	Path         string `json:"path"`
	Applied      bool   `json:"applied"`
	HunksApplied int    `json:"hunks_applied"`
}

// applyUnifiedPatch parses a unified diff and applies it file by file. Each
// target path is resolved against the workspace root before any write.
func applyUnifiedPatch(workspaceRoot string, patchText string) ([]patchApplyResult, error) {
	var patches []filePatch
	lines := strings.Split(patchText, "\n")
	var current *filePatch
	var currentHunk *hunk

	for _, raw := range lines {
		line := strings.TrimRight(raw, "\r")
		if strings.HasPrefix(line, "--- ") {
			continue
		}
		if strings.HasPrefix(line, "+++ ") {
			path := strings.TrimSpace(strings.TrimPrefix(line, "+++ "))
			path = strings.TrimPrefix(path, "a/")
			path = strings.TrimPrefix(path, "b/")
			if path == "" {
				continue
			}
			patches = append(patches, filePatch{path: path})
			current = &patches[len(patches)-1]
			currentHunk = nil
			continue
		}
		if strings.HasPrefix(line, "@@") {
			if current == nil {
				continue
			}
			start, err := parseUnifiedHunkHeader(line)
			if err != nil {
				return nil, err
			}
			current.hunks = append(current.hunks, hunk{start: start})
			currentHunk = &current.hunks[len(current.hunks)-1]
			continue
		}
		if currentHunk == nil || len(line) == 0 {
			continue
		}
		switch line[0] {
		case ' ', '+', '-':
			currentHunk.lines = append(currentHunk.lines, hunkLine{kind: line[0], text: line[1:]})
		default:
		}
	}

	results := make([]patchApplyResult, 0, len(patches))
	for _, patch := range patches {
		target, err := resolvePathInWorkspace(workspaceRoot, patch.path)
		if err != nil {
			return nil, err
		}
		orig, err := os.ReadFile(target)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		origLines := splitLines(string(orig))
		newLines, hunksApplied, err := applyHunks(origLines, patch.hunks)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", patch.path, err)
		}
		content := strings.Join(newLines, "\n")
		// new files and files that ended with a newline keep one
		if content != "" && (len(orig) == 0 || orig[len(orig)-1] == '\n') {
			content += "\n"
		}
		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(target, []byte(content), 0644); err != nil {
			return nil, err
		}
		results = append(results, patchApplyResult{
			Path:         patch.path,
			Applied:      true,
			HunksApplied: hunksApplied,
		})
	}

	return results, nil
}

func parseUnifiedHunkHeader(line string) (int, error) {
	// format: @@ -start,count +start,count @@
	parts := strings.Split(line, " ")
	if len(parts) < 3 {
		return 0, fmt.Errorf("invalid hunk header: %s", line)
	}
	left := strings.TrimPrefix(parts[1], "-")
	fields := strings.Split(left, ",")
	start := fields[0]
	var startInt int
	if _, err := fmt.Sscanf(start, "%d", &startInt); err != nil {
		return 0, err
	}
	if startInt < 1 {
		startInt = 1
	}
	return startInt, nil
}

func applyHunks(orig []string, hunks []hunk) ([]string, int, error) {
	out := make([]string, 0, len(orig))
	idx := 0
	applied := 0

	for _, h := range hunks {
		target := h.start - 1
		if target < 0 {
			target = 0
		}
		if target > len(orig) {
			target = len(orig)
		}
		out = append(out, orig[idx:target]...)
		idx = target

		for _, ln := range h.lines {
			switch ln.kind {
			case ' ':
				if idx >= len(orig) || orig[idx] != ln.text {
					return nil, applied, fmt.Errorf("context mismatch at line %d", idx+1)
				}
				out = append(out, orig[idx])
				idx++
			case '-':
				if idx >= len(orig) || orig[idx] != ln.text {
					return nil, applied, fmt.Errorf("delete mismatch at line %d", idx+1)
				}
				idx++
			case '+':
				out = append(out, ln.text)
			}
		}
		applied++
	}

	out = append(out, orig[idx:]...)
	return out, applied, nil
}

func splitLines(content string) []string {
	if content == "" {
		return []string{}
	}
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
