package run

import (
	"strings"
	"testing"

	"github.com/okvist/foreman/internal/plan"
)

func TestTransitions(t *testing.T) {
	r := NewRun("add dark mode", "cli")
	if r.State != StateIntake {
		t.Fatalf("new run state: %s", r.State)
	}

	steps := []State{
		StateDispatching,
		StateRunning,
		StateAwaitingApproval,
		StateDispatching,
		StateRunning,
		StateDispatching,
		StateAwaitingConfirmation,
		StateDone,
	}
	for _, next := range steps {
		if err := r.Transition(next); err != nil {
			t.Fatalf("transition to %s: %v", next, err)
		}
	}
	if r.CompletedAt == nil {
		t.Error("terminal run should record completion time")
	}
}

func TestInvalidTransitions(t *testing.T) {
	cases := []struct {
		from, to State
	}{
		{StateIntake, StateRunning},
		{StateIntake, StateDone},
		{StateRunning, StateDone},
		{StateAwaitingApproval, StateAwaitingConfirmation},
		{StateDone, StateDispatching},
		{StateAborted, StateDispatching},
	}
	for _, c := range cases {
		r := NewRun("x", "cli")
		r.State = c.from
		if err := r.Transition(c.to); err == nil {
			t.Errorf("expected %s -> %s to be rejected", c.from, c.to)
		}
	}
}

func TestAbortFromAnyActiveState(t *testing.T) {
	for _, from := range []State{
		StateIntake, StateDispatching, StateRunning,
		StateAwaitingApproval, StateBlocked, StateAwaitingConfirmation,
	} {
		r := NewRun("x", "cli")
		r.State = from
		if err := r.Transition(StateAborted); err != nil {
			t.Errorf("abort from %s: %v", from, err)
		}
	}
}

func TestTaskOrdering(t *testing.T) {
	r := NewRun("x", "cli")
	a := NewTask(r.ID, KindResearch, "research", "p")
	b := NewTask(r.ID, KindPlanning, "plan", "p")
	r.Tasks = []*Task{a, b}

	if got := r.NextPending(); got != a {
		t.Errorf("expected first pending task, got %v", got)
	}
	a.Status = TaskCompleted
	if got := r.NextPending(); got != b {
		t.Errorf("expected second task next, got %v", got)
	}
	b.Status = TaskCompleted
	if r.NextPending() != nil {
		t.Error("no pending tasks expected")
	}
	if !r.AllDone() {
		t.Error("all tasks completed")
	}
}

func TestAllDoneEmptyRun(t *testing.T) {
	r := NewRun("x", "cli")
	if r.AllDone() {
		t.Error("run with no tasks is not done")
	}
}

func TestSummarize(t *testing.T) {
	r := NewRun("add dark mode toggle", "cli")
	a := NewTask(r.ID, KindResearch, "find theme code", "p")
	a.Status = TaskCompleted
	a.Summary = "theme lives in settings.css"
	a.ArtifactPath = "docs/subagents/research/theme.md"
	b := NewTask(r.ID, KindImplementation, "wire the toggle", "p")
	b.Status = TaskFailed
	r.Tasks = []*Task{a, b}

	s := Summarize(r)
	if len(s.Tasks) != 1 {
		t.Fatalf("only completed tasks belong in the digest, got %d", len(s.Tasks))
	}
	if len(s.Artifacts) != 1 {
		t.Errorf("artifacts: %v", s.Artifacts)
	}

	md := s.Markdown()
	if !strings.Contains(md, "add dark mode toggle") {
		t.Error("request missing from summary")
	}
	if !strings.Contains(md, "find theme code") {
		t.Error("completed task missing from summary")
	}
	if strings.Contains(md, "wire the toggle") {
		t.Error("failed task should not appear as completed")
	}
}

func TestGenerateIDs(t *testing.T) {
	r1, r2 := GenerateRunID(), GenerateRunID()
	if r1 == r2 {
		t.Error("run IDs should be unique")
	}
	if !strings.HasPrefix(r1, "run_") {
		t.Errorf("run id prefix: %s", r1)
	}
	if !strings.HasPrefix(GenerateTaskID(), "task_") {
		t.Error("task id prefix")
	}
}

func TestCloneDetachesRun(t *testing.T) {
	r := NewRun("add dark mode", "cli")
	task := NewTask(r.ID, KindPlanning, "plan it", "write a plan")
	task.Plan = plan.New([]plan.Step{{ID: "s1", Title: "first"}}, "# Plan\n1. first")
	r.Tasks = append(r.Tasks, task)

	c := r.Clone()

	r.State = StateRunning
	task.Status = TaskRunning
	task.Plan.Feedback = append(task.Plan.Feedback, "tighten step one")
	r.Tasks = append(r.Tasks, NewTask(r.ID, KindCustom, "extra", "extra"))

	if c.State != StateIntake {
		t.Errorf("clone state followed original: %s", c.State)
	}
	if len(c.Tasks) != 1 {
		t.Fatalf("clone tasks followed original: %d", len(c.Tasks))
	}
	if c.Tasks[0].Status != TaskPending {
		t.Errorf("clone task status followed original: %s", c.Tasks[0].Status)
	}
	if len(c.Tasks[0].Plan.Feedback) != 0 {
		t.Errorf("clone plan feedback followed original: %v", c.Tasks[0].Plan.Feedback)
	}
}
