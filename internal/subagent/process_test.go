package subagent

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/okvist/foreman/internal/run"
)

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestProcessRunnerSuccess(t *testing.T) {
	requireShell(t)
	r, err := NewProcessRunner([]string{"sh", "-c", "cat >/dev/null; echo 'toggle wired up'"}, 0, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	res, err := r.Run(context.Background(), Dispatch{
		Kind:        run.KindImplementation,
		Description: "wire the toggle",
		Prompt:      "add the switch",
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Output != "toggle wired up" {
		t.Errorf("output: %q", res.Output)
	}
	if res.Summary != "toggle wired up" {
		t.Errorf("summary: %q", res.Summary)
	}
}

func TestProcessRunnerFailureVerbatim(t *testing.T) {
	requireShell(t)
	r, err := NewProcessRunner([]string{"sh", "-c", "echo 'no such tool: frobnicate' >&2; exit 1"}, 0, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = r.Run(context.Background(), Dispatch{Kind: run.KindCustom, Description: "d", Prompt: "p"})
	f, ok := AsFailure(err)
	if !ok {
		t.Fatalf("expected Failure, got %v", err)
	}
	if f.Message != "no such tool: frobnicate" {
		t.Errorf("stderr not propagated verbatim: %q", f.Message)
	}
}

func TestProcessRunnerTimeout(t *testing.T) {
	requireShell(t)
	r, err := NewProcessRunner([]string{"sh", "-c", "sleep 5"}, 50*time.Millisecond, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	_, err = r.Run(context.Background(), Dispatch{Kind: run.KindCustom, Description: "d", Prompt: "p"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if _, ok := AsFailure(err); ok {
		t.Error("timeout is a context error, not a worker failure")
	}
}

func TestProcessRunnerEmptyCommand(t *testing.T) {
	if _, err := NewProcessRunner(nil, 0, nil); err == nil {
		t.Error("expected error for empty command")
	}
}
