package subagent

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// ProcessRunner executes tasks by spawning an external worker command.
// The prompt is written to the worker's stdin, the result is read from
// stdout. A non-zero exit is a worker failure and stderr travels back
// verbatim.
type ProcessRunner struct {
	command []string
	timeout time.Duration
	log     *slog.Logger
}

// NewProcessRunner creates a process-backed task runner.
func NewProcessRunner(command []string, timeout time.Duration, log *slog.Logger) (*ProcessRunner, error) {
	if len(command) == 0 {
		return nil, fmt.Errorf("process runner needs a command")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ProcessRunner{command: command, timeout: timeout, log: log}, nil
}

func (r *ProcessRunner) Run(ctx context.Context, d Dispatch) (Result, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, r.command[0], r.command[1:]...)
	cmd.Stdin = strings.NewReader(d.Prompt)
	cmd.Env = append(cmd.Environ(),
		"FOREMAN_TASK_KIND="+string(d.Kind),
		"FOREMAN_TASK_DESCRIPTION="+d.Description,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.log.Debug("spawning worker process", "command", r.command[0], "kind", d.Kind)

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return Result{}, &Failure{Message: msg}
	}

	output := strings.TrimSpace(stdout.String())
	if output == "" {
		return Result{}, &Failure{Message: "worker produced no output"}
	}

	return Result{Output: output, Summary: Summarize(output)}, nil
}
