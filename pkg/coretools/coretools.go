// Package coretools registers the built-in filesystem tools: read_file,
// write_file, edit_file, list_dir and apply_patch. All of them are
// parallel-safe and confined to the configured workspace root; paths that
// resolve outside it are rejected. Shell execution is not provided here,
// that is the run_command tool bound to a shell session.
package coretools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/skeinworks/skein/pkg/toolexecutor"
)

// Options configures core tool registration.
type Options struct {
	// WorkspaceRoot is the directory all file tools operate under.
	WorkspaceRoot string
	// MaxReadBytes caps read_file output; 0 means the 200000 default.
	MaxReadBytes int64
}

const defaultMaxReadBytes = 200000

// RegisterCoreTools registers the filesystem tools into the registry.
func RegisterCoreTools(registry *toolexecutor.Registry, opts Options) error {
	if registry == nil {
		return errors.New("tool registry is required")
	}
	if strings.TrimSpace(opts.WorkspaceRoot) == "" {
		return errors.New("workspace root is required")
	}
	opts.WorkspaceRoot = filepath.Clean(opts.WorkspaceRoot)
	if opts.MaxReadBytes <= 0 {
		opts.MaxReadBytes = defaultMaxReadBytes
	}

	tools := []toolexecutor.ToolDefinition{
		readFileTool(opts),
		writeFileTool(opts),
		editFileTool(opts),
		listDirTool(opts),
		applyPatchTool(opts),
	}

	for _, tool := range tools {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("failed to register tool %s: %w", tool.Name, err)
		}
	}
	return nil
}

func readFileTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "read_file",
		Description: "Read a file from the workspace.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "max_bytes", Type: "number", Description: "Maximum bytes to read", Required: false},
		},
		Handler: func(_ context.Context, params map[string]interface{}) (interface{}, error) {
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}

			maxBytes := opts.MaxReadBytes
			if raw, ok := params["max_bytes"].(float64); ok && raw > 0 {
				maxBytes = int64(raw)
			}

			data, truncated, err := readFileWithLimit(target, maxBytes)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":      pathValue,
				"content":   string(data),
				"truncated": truncated,
				"bytes":     len(data),
			}, nil
		},
	}
}

func writeFileTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "write_file",
		Description: "Write content to a file in the workspace.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "content", Type: "string", Description: "File content", Required: true},
			{Name: "append", Type: "boolean", Description: "Append to file (default false)", Required: false},
		},
		Handler: func(_ context.Context, params map[string]interface{}) (interface{}, error) {
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}
			content, _ := params["content"].(string)
			appendMode, _ := params["append"].(bool)

			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return nil, err
			}

			flag := os.O_CREATE | os.O_WRONLY
			if appendMode {
				flag |= os.O_APPEND
			} else {
				flag |= os.O_TRUNC
			}
			file, err := os.OpenFile(target, flag, 0644)
			if err != nil {
				return nil, err
			}
			if _, err := file.WriteString(content); err != nil {
				file.Close()
				return nil, err
			}
			if err := file.Close(); err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":   pathValue,
				"bytes":  len(content),
				"append": appendMode,
			}, nil
		},
	}
}

func editFileTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "edit_file",
		Description: "Replace text in a workspace file.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative file path", Required: true},
			{Name: "search", Type: "string", Description: "Text to search for", Required: true},
			{Name: "replace", Type: "string", Description: "Replacement text", Required: true},
			{Name: "replace_all", Type: "boolean", Description: "Replace all occurrences (default false)", Required: false},
		},
		Handler: func(_ context.Context, params map[string]interface{}) (interface{}, error) {
			pathValue, _ := params["path"].(string)
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}
			search, _ := params["search"].(string)
			replace, _ := params["replace"].(string)
			replaceAll, _ := params["replace_all"].(bool)
			if search == "" {
				return nil, fmt.Errorf("search is required")
			}

			data, err := os.ReadFile(target)
			if err != nil {
				return nil, err
			}
			content := string(data)

			var updated string
			occurrences := 0
			if replaceAll {
				occurrences = strings.Count(content, search)
				updated = strings.ReplaceAll(content, search, replace)
			} else {
				if idx := strings.Index(content, search); idx >= 0 {
					occurrences = 1
					updated = content[:idx] + replace + content[idx+len(search):]
				} else {
					updated = content
				}
			}
			if occurrences == 0 {
				return nil, fmt.Errorf("search text not found")
			}

			if err := os.WriteFile(target, []byte(updated), 0644); err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":        pathValue,
				"occurrences": occurrences,
			}, nil
		},
	}
}

func listDirTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "list_dir",
		Description: "List the entries of a workspace directory.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "path", Type: "string", Description: "Relative directory path (default workspace root)", Required: false},
			{Name: "recursive", Type: "boolean", Description: "Walk subdirectories (default false)", Required: false},
		},
		Handler: func(_ context.Context, params map[string]interface{}) (interface{}, error) {
			pathValue, _ := params["path"].(string)
			if strings.TrimSpace(pathValue) == "" {
				pathValue = "."
			}
			target, err := resolvePathInWorkspace(opts.WorkspaceRoot, pathValue)
			if err != nil {
				return nil, err
			}
			recursive, _ := params["recursive"].(bool)

			entries, err := listEntries(target, recursive)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"path":    pathValue,
				"entries": entries,
				"count":   len(entries),
			}, nil
		},
	}
}

func applyPatchTool(opts Options) toolexecutor.ToolDefinition {
	return toolexecutor.ToolDefinition{
		Name:        "apply_patch",
		Description: "Apply a unified diff patch within the workspace.",
		Parameters: []toolexecutor.ToolParameter{
			{Name: "patch", Type: "string", Description: "Unified diff patch", Required: true},
		},
		Handler: func(_ context.Context, params map[string]interface{}) (interface{}, error) {
			patchText, _ := params["patch"].(string)
			if strings.TrimSpace(patchText) == "" {
				return nil, fmt.Errorf("patch is required")
			}

			results, err := applyUnifiedPatch(opts.WorkspaceRoot, patchText)
			if err != nil {
				return nil, err
			}

			return map[string]interface{}{
				"files": results,
			}, nil
		},
	}
}

type dirEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // file or dir
	Size int64  `json:"size,omitempty"`
}

func listEntries(root string, recursive bool) ([]dirEntry, error) {
	var out []dirEntry

	if !recursive {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			out = append(out, describeEntry(entry.Name(), entry))
		}
		return out, nil
	}

	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		out = append(out, describeEntry(rel, d))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func describeEntry(path string, d os.DirEntry) dirEntry {
	entry := dirEntry{Path: path, Type: "file"}
	if d.IsDir() {
		entry.Type = "dir"
		return entry
	}
	if info, err := d.Info(); err == nil {
		entry.Size = info.Size()
	}
	return entry
}

func readFileWithLimit(path string, limit int64) ([]byte, bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, false, err
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, file, limit); err != nil && !errors.Is(err, io.EOF) {
		return nil, false, err
	}
	// one more byte readable means the file did not fit
	truncated := false
	if _, err := file.Read(make([]byte, 1)); err == nil {
		truncated = true
	}
	return buf.Bytes(), truncated, nil
}

// resolvePathInWorkspace joins a tool-supplied path onto the workspace root
// and rejects anything that escapes it.
func resolvePathInWorkspace(workspaceRoot string, pathValue string) (string, error) {
	pathValue = strings.TrimSpace(pathValue)
	if pathValue == "" {
		return "", fmt.Errorf("path is required")
	}
	if strings.Contains(pathValue, "://") {
		return "", fmt.Errorf("path must be a local file")
	}
	candidate := pathValue
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(workspaceRoot, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(workspaceRoot, candidate)
	if err != nil {
		return "", err
	}
	if rel == "." || (!strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "..") {
		return candidate, nil
	}
	return "", fmt.Errorf("path %q is outside workspace root", pathValue)
}
