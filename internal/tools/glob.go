package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// globMaxResults caps a single glob invocation.
const globMaxResults = 500

// GlobTool matches files with doublestar patterns like "**/*.go".
type GlobTool struct {
	root string
}

// NewGlobTool creates a glob tool rooted at root.
func NewGlobTool(root string) *GlobTool {
	return &GlobTool{root: root}
}

type globInput struct {
	Pattern string `json:"pattern"`
}

type globOutput struct {
	Matches   []string `json:"matches"`
	Truncated bool     `json:"truncated"`
}

func (t *GlobTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	spec := &Spec{
		Name:        "glob",
		Description: "Find files matching a glob pattern. Supports ** for recursive matching.",
		Parameters: map[string]ParamSpec{
			"pattern": {Type: "string", Description: "Glob pattern relative to the working directory, e.g. **/*.go", Required: true},
		},
	}
	return spec.ToolInfo(), nil
}

func (t *GlobTool) InvokableRun(_ context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input globInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("glob: parse input: %w", err)
	}
	if input.Pattern == "" {
		return "", fmt.Errorf("glob: pattern is required")
	}
	if !doublestar.ValidatePattern(input.Pattern) {
		return "", fmt.Errorf("glob: invalid pattern: %s", input.Pattern)
	}

	var matches []string
	truncated := false
	fsys := os.DirFS(t.root)
	err := doublestar.GlobWalk(fsys, input.Pattern, func(path string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		if len(matches) >= globMaxResults {
			truncated = true
			return doublestar.SkipDir
		}
		matches = append(matches, path)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("glob: %w", err)
	}

	data, err := json.Marshal(globOutput{Matches: matches, Truncated: truncated})
	if err != nil {
		return "", fmt.Errorf("glob: marshal result: %w", err)
	}
	return string(data), nil
}

var _ tool.InvokableTool = (*GlobTool)(nil)
