package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// defaultCommandTimeout bounds a worker shell command.
const defaultCommandTimeout = 2 * time.Minute

// RunCommandTool executes a shell command in the working directory.
type RunCommandTool struct {
	root string
}

// NewRunCommandTool creates a run_command tool rooted at root.
func NewRunCommandTool(root string) *RunCommandTool {
	return &RunCommandTool{root: root}
}

type runCommandInput struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type runCommandOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
}

func (t *RunCommandTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	spec := &Spec{
		Name:        "run_command",
		Description: "Run a shell command in the working directory and return its output.",
		Parameters: map[string]ParamSpec{
			"command":         {Type: "string", Description: "Shell command to execute", Required: true},
			"timeout_seconds": {Type: "integer", Description: "Timeout in seconds (default 120)"},
		},
	}
	return spec.ToolInfo(), nil
}

func (t *RunCommandTool) InvokableRun(ctx context.Context, argumentsInJSON string, _ ...tool.Option) (string, error) {
	var input runCommandInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return "", fmt.Errorf("run_command: parse input: %w", err)
	}
	if strings.TrimSpace(input.Command) == "" {
		return "", fmt.Errorf("run_command: command is required")
	}

	timeout := defaultCommandTimeout
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", input.Command)
	cmd.Dir = t.root

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	result := runCommandOutput{}
	if err := cmd.Run(); err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("run_command: timed out after %s", timeout)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return "", fmt.Errorf("run_command: %w", err)
		}
	}
	result.Stdout = stdout.String()
	result.Stderr = stderr.String()

	out, err := json.Marshal(result)
	if err != nil {
		return "", fmt.Errorf("run_command: marshal result: %w", err)
	}
	return string(out), nil
}

var _ tool.InvokableTool = (*RunCommandTool)(nil)
