package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// resolve joins a tool-supplied path against the work root and rejects
// escapes.
func resolve(root, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(root, full)
	}
	full = filepath.Clean(full)
	rel, err := filepath.Rel(root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path escapes working directory: %s", path)
	}
	return full, nil
}

// ReadFileTool reads file contents with optional offset and limit.
type ReadFileTool struct {
	root string
}

// NewReadFileTool creates a read_file tool rooted at root.
func NewReadFileTool(root string) *ReadFileTool {
	return &ReadFileTool{root: root}
}

type readFileInput struct {
	Path   string `json:"path"`
	Offset int    `json:"offset"`
	Limit  int    `json:"limit"`
}

type readFileOutput struct {
	Content   string `json:"content"`
	Lines     int    `json:"lines"`
	Truncated bool   `json:"truncated"`
}

func (t *ReadFileTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	spec := &Spec{
		Name:        "read_file",
		Description: "Read the contents of a file with optional line offset and limit.",
		Parameters: map[string]ParamSpec{
			"path":   {Type: "string", Description: "Path to the file, relative to the working directory", Required: true},
			"offset": {Type: "integer", Description: "Line offset (0-based) to start reading from"},
			"limit":  {Type: "integer", Description: "Maximum number of lines to return"},
		},
	}
	return spec.ToolInfo(), nil
}

func (t *ReadFileTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input readFileInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("read_file: parse input: %w", err)
	}

	full, err := resolve(t.root, input.Path)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}

	lines := bytes.Split(data, []byte("\n"))
	totalLines := len(lines)
	truncated := false

	if input.Offset > 0 {
		if input.Offset >= len(lines) {
			lines = nil
		} else {
			lines = lines[input.Offset:]
		}
	}
	if input.Limit > 0 && input.Limit < len(lines) {
		lines = lines[:input.Limit]
		truncated = true
	}

	var parts []string
	for _, l := range lines {
		parts = append(parts, string(l))
	}

	out, err := json.Marshal(readFileOutput{
		Content:   strings.Join(parts, "\n"),
		Lines:     totalLines,
		Truncated: truncated,
	})
	if err != nil {
		return "", fmt.Errorf("read_file: marshal result: %w", err)
	}
	return string(out), nil
}

// WriteFileTool writes content to a file, creating parent directories.
type WriteFileTool struct {
	root string
}

// NewWriteFileTool creates a write_file tool rooted at root.
func NewWriteFileTool(root string) *WriteFileTool {
	return &WriteFileTool{root: root}
}

type writeFileInput struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Append  bool   `json:"append"`
}

func (t *WriteFileTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	spec := &Spec{
		Name:        "write_file",
		Description: "Write content to a file, creating parent directories as needed.",
		Parameters: map[string]ParamSpec{
			"path":    {Type: "string", Description: "Path to the file, relative to the working directory", Required: true},
			"content": {Type: "string", Description: "Content to write", Required: true},
			"append":  {Type: "boolean", Description: "Append instead of overwrite"},
		},
	}
	return spec.ToolInfo(), nil
}

func (t *WriteFileTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input writeFileInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("write_file: parse input: %w", err)
	}

	full, err := resolve(t.root, input.Path)
	if err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}

	if input.Append {
		f, err := os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return "", fmt.Errorf("write_file: %w", err)
		}
		defer f.Close()
		if _, err := f.WriteString(input.Content); err != nil {
			return "", fmt.Errorf("write_file: %w", err)
		}
	} else if err := os.WriteFile(full, []byte(input.Content), 0o644); err != nil {
		return "", fmt.Errorf("write_file: %w", err)
	}

	out, _ := json.Marshal(map[string]any{"path": input.Path, "bytes": len(input.Content)})
	return string(out), nil
}

// ListDirTool lists directory entries.
type ListDirTool struct {
	root string
}

// NewListDirTool creates a list_dir tool rooted at root.
func NewListDirTool(root string) *ListDirTool {
	return &ListDirTool{root: root}
}

type listDirInput struct {
	Path string `json:"path"`
}

type dirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

func (t *ListDirTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	spec := &Spec{
		Name:        "list_dir",
		Description: "List the entries of a directory.",
		Parameters: map[string]ParamSpec{
			"path": {Type: "string", Description: "Directory path, relative to the working directory. Defaults to the root."},
		},
	}
	return spec.ToolInfo(), nil
}

func (t *ListDirTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input listDirInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("list_dir: parse input: %w", err)
	}
	if input.Path == "" {
		input.Path = "."
	}

	full, err := resolve(t.root, input.Path)
	if err != nil {
		return "", fmt.Errorf("list_dir: %w", err)
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return "", fmt.Errorf("list_dir: %w", err)
	}

	var out []dirEntry
	for _, e := range entries {
		de := dirEntry{Name: e.Name(), IsDir: e.IsDir()}
		if info, err := e.Info(); err == nil && !e.IsDir() {
			de.Size = info.Size()
		}
		out = append(out, de)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("list_dir: marshal result: %w", err)
	}
	return string(data), nil
}

var (
	_ tool.InvokableTool = (*ReadFileTool)(nil)
	_ tool.InvokableTool = (*WriteFileTool)(nil)
	_ tool.InvokableTool = (*ListDirTool)(nil)
)
