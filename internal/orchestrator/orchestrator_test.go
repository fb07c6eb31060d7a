package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/okvist/foreman/internal/artifacts"
	"github.com/okvist/foreman/internal/config"
	"github.com/okvist/foreman/internal/events"
	"github.com/okvist/foreman/internal/run"
	"github.com/okvist/foreman/internal/subagent"
	"github.com/okvist/foreman/internal/workflow"
)

const researchOut = `# Findings

The theme preference lives in settings.css under :root.`

const planOut = `# Plan

1. Introduce a theme CSS variable
2. Add the dark mode switch to the settings panel
3. Persist the selection`

const planOutRevised = `# Plan

1. Introduce a theme CSS variable
2. Add the dark mode switch to the settings panel
3. Persist the selection in local storage
4. Respect the OS preference by default`

const implOut = `Wired the toggle into the settings panel and flipped the colors.`

type scriptStep struct {
	out string
	err error
}

// scriptedRunner plays back canned worker responses in order.
type scriptedRunner struct {
	mu    sync.Mutex
	queue []scriptStep
	calls []subagent.Dispatch
}

func (r *scriptedRunner) Run(_ context.Context, d subagent.Dispatch) (subagent.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, d)
	if len(r.queue) == 0 {
		return subagent.Result{}, &subagent.Failure{Message: "script exhausted"}
	}
	step := r.queue[0]
	r.queue = r.queue[1:]
	if step.err != nil {
		return subagent.Result{}, step.err
	}
	return subagent.Result{Output: step.out, Summary: subagent.Summarize(step.out)}, nil
}

func (r *scriptedRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *scriptedRunner) call(i int) subagent.Dispatch {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[i]
}

type harness struct {
	sup    *Supervisor
	store  *run.FileStore
	bus    *events.Bus
	gateCh <-chan events.Event
	// parked holds gate events received while waiting for a different
	// one, so interleaved runs don't lose each other's gates.
	parked []events.Event
}

func newHarness(t *testing.T, runner subagent.Runner, mutate func(*Config)) *harness {
	t.Helper()

	bus := events.NewBus(256)
	t.Cleanup(bus.Close)
	store := run.NewFileStore(t.TempDir())
	gates := NewGates()

	cfg := Config{
		Store:     store,
		Bus:       bus,
		Gates:     gates,
		Runner:    runner,
		Workflows: workflow.NewRegistry(),
		Artifacts: artifacts.NewStore(t.TempDir()),
		Dispatch:  config.DispatchConfig{Rules: config.DefaultDispatchRules()},
	}
	if mutate != nil {
		mutate(&cfg)
	}

	sup := NewSupervisor(New(cfg), store, gates, bus, nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = sup.Shutdown(ctx)
	})

	gateCh, cancelSub := bus.SubscribeChan(64,
		events.EventApprovalRequested, events.EventConfirmationRequested)
	t.Cleanup(cancelSub)

	return &harness{sup: sup, store: store, bus: bus, gateCh: gateCh}
}

func (h *harness) nextGate(t *testing.T, want events.EventType, runID string) events.Event {
	t.Helper()
	matches := func(e events.Event) bool {
		return e.Type == want && (runID == "" || e.RunID == runID)
	}
	for i, e := range h.parked {
		if matches(e) {
			h.parked = append(h.parked[:i], h.parked[i+1:]...)
			return e
		}
	}
	deadline := time.After(5 * time.Second)
	for {
		select {
		case e := <-h.gateCh:
			if matches(e) {
				return e
			}
			h.parked = append(h.parked, e)
		case <-deadline:
			t.Fatalf("timed out waiting for %s", want)
		}
	}
}

func (h *harness) waitState(t *testing.T, runID string, want run.State) *run.Run {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		r, err := h.store.Get(runID)
		if err == nil && r.State == want {
			return r
		}
		time.Sleep(10 * time.Millisecond)
	}
	r, _ := h.store.Get(runID)
	t.Fatalf("run %s never reached %s (last: %s, error: %s)", runID, want, r.State, r.Error)
	return nil
}

func token(e events.Event) string {
	tok, _ := e.Payload["token"].(string)
	return tok
}

func TestRunHappyPath(t *testing.T) {
	runner := &scriptedRunner{queue: []scriptStep{
		{out: researchOut}, {out: planOut}, {out: implOut},
	}}
	h := newHarness(t, runner, nil)

	r, err := h.sup.Submit("add a dark mode toggle to the settings page", "cli", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	approval := h.nextGate(t, events.EventApprovalRequested, r.ID)
	payload, err := events.ExtractPayload[events.ApprovalRequestedPayload](approval)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if payload.Revision != 1 {
		t.Errorf("first presentation revision: %d", payload.Revision)
	}
	if payload.Delta != "" {
		t.Errorf("first presentation must carry no delta: %q", payload.Delta)
	}
	if !strings.Contains(payload.Plan, "dark mode switch") {
		t.Errorf("plan content: %q", payload.Plan)
	}

	if err := h.sup.Decide(payload.Token, run.OutcomeApprove, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	confirmation := h.nextGate(t, events.EventConfirmationRequested, r.ID)
	conf, err := events.ExtractPayload[events.ConfirmationRequestedPayload](confirmation)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(conf.Summary, "dark mode toggle") {
		t.Errorf("summary missing request: %q", conf.Summary)
	}

	if err := h.sup.Decide(conf.Token, run.OutcomeConfirm, ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	final := h.waitState(t, r.ID, run.StateDone)
	if final.Confirmations != 1 {
		t.Errorf("confirmations: %d", final.Confirmations)
	}
	if len(final.Tasks) != 3 {
		t.Fatalf("tasks: %d", len(final.Tasks))
	}
	for _, task := range final.Tasks {
		if task.Status != run.TaskCompleted {
			t.Errorf("task %s status %s", task.ID, task.Status)
		}
	}
	if runner.callCount() != 3 {
		t.Errorf("worker calls: %d", runner.callCount())
	}

	decisions, err := h.sup.Decisions(r.ID)
	if err != nil {
		t.Fatalf("decisions: %v", err)
	}
	if len(decisions) != 2 {
		t.Fatalf("decision trail: %+v", decisions)
	}
	if decisions[0].Gate != "approval" || decisions[1].Gate != "confirmation" {
		t.Errorf("decision order: %+v", decisions)
	}

	journal, err := h.sup.Events(r.ID)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	if len(journal) == 0 {
		t.Error("event journal should not be empty")
	}
}

func TestPlanRejectRevise(t *testing.T) {
	runner := &scriptedRunner{queue: []scriptStep{
		{out: researchOut}, {out: planOut}, {out: planOutRevised}, {out: implOut},
	}}
	h := newHarness(t, runner, nil)

	r, err := h.sup.Submit("add a dark mode toggle", "cli", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	first := h.nextGate(t, events.EventApprovalRequested, r.ID)
	if err := h.sup.Decide(token(first), run.OutcomeReject, "persist the choice and respect the OS preference"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	second := h.nextGate(t, events.EventApprovalRequested, r.ID)
	payload, err := events.ExtractPayload[events.ApprovalRequestedPayload](second)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if payload.Revision != 2 {
		t.Errorf("revision: %d", payload.Revision)
	}
	if payload.Delta == "" {
		t.Error("re-presented plan must carry a delta")
	}
	if !strings.Contains(payload.Delta, "+ 4. Respect the OS preference by default") {
		t.Errorf("delta should mark the added step:\n%s", payload.Delta)
	}

	// The revision prompt carries the reviewer's feedback to the worker.
	revisionCall := runner.call(2)
	if !strings.Contains(revisionCall.Prompt, "respect the OS preference") {
		t.Errorf("feedback missing from revision prompt")
	}
	if !strings.Contains(revisionCall.Prompt, "Previous plan:") {
		t.Errorf("prior plan missing from revision prompt")
	}

	if err := h.sup.Decide(payload.Token, run.OutcomeApprove, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}
	conf := h.nextGate(t, events.EventConfirmationRequested, r.ID)
	if err := h.sup.Decide(token(conf), run.OutcomeConfirm, ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	final := h.waitState(t, r.ID, run.StateDone)
	planning := final.Tasks[1]
	if planning.Plan == nil || planning.Plan.Revision != 2 {
		t.Fatalf("plan: %+v", planning.Plan)
	}
	if len(planning.Plan.Feedback) != 1 {
		t.Errorf("feedback history: %v", planning.Plan.Feedback)
	}
}

func TestPlanRejectedTooManyTimes(t *testing.T) {
	runner := &scriptedRunner{queue: []scriptStep{
		{out: researchOut}, {out: planOut}, {out: planOutRevised},
	}}
	h := newHarness(t, runner, func(c *Config) { c.MaxPlanRevisions = 2 })

	r, err := h.sup.Submit("add a dark mode toggle", "cli", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	first := h.nextGate(t, events.EventApprovalRequested, r.ID)
	if err := h.sup.Decide(token(first), run.OutcomeReject, "no"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	second := h.nextGate(t, events.EventApprovalRequested, r.ID)
	if err := h.sup.Decide(token(second), run.OutcomeReject, "still no"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	final := h.waitState(t, r.ID, run.StateBlocked)
	planning := final.Tasks[1]
	if planning.Status != run.TaskFailed {
		t.Errorf("planning task status: %s", planning.Status)
	}
	if !strings.Contains(planning.Error, "rejected after 2 revisions") {
		t.Errorf("error: %q", planning.Error)
	}
}

func TestWorkerFailureBlocksRun(t *testing.T) {
	failure := &subagent.Failure{Message: "tool not found: frobnicate (exit 127)"}
	runner := &scriptedRunner{queue: []scriptStep{{err: failure}}}
	h := newHarness(t, runner, nil)

	failedCh, cancelSub := h.bus.SubscribeChan(8, events.EventTaskFailed)
	defer cancelSub()

	r, err := h.sup.Submit("add a dark mode toggle", "cli", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := h.waitState(t, r.ID, run.StateBlocked)
	research := final.Tasks[0]
	if research.Status != run.TaskFailed {
		t.Errorf("task status: %s", research.Status)
	}
	if research.Error != failure.Message {
		t.Errorf("error not verbatim: %q", research.Error)
	}
	if final.Error != failure.Message {
		t.Errorf("run error not verbatim: %q", final.Error)
	}
	// No automatic retry.
	if runner.callCount() != 1 {
		t.Errorf("worker calls: %d", runner.callCount())
	}

	select {
	case e := <-failedCh:
		p, err := events.ExtractPayload[events.TaskFailedPayload](e)
		if err != nil {
			t.Fatalf("extract: %v", err)
		}
		if p.Error != failure.Message {
			t.Errorf("event error not verbatim: %q", p.Error)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no task.failed event")
	}
}

func TestMissingRequiredFieldRejectsDispatch(t *testing.T) {
	// A workflow whose prompt renders to whitespace produces a dispatch
	// that fails required-field validation.
	dir := t.TempDir()
	doc := `name: broken
steps:
  - kind: custom
    description: "do the thing"
    prompt: " "
`
	if err := writeFile(t, dir, "broken.yaml", doc); err != nil {
		t.Fatal(err)
	}
	reg := workflow.NewRegistry()
	if err := reg.LoadDir(dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	runner := &scriptedRunner{}
	h := newHarness(t, runner, func(c *Config) { c.Workflows = reg })

	warnCh, cancelSub := h.bus.SubscribeChan(8, events.EventDispatchWarning)
	defer cancelSub()

	r, err := h.sup.Submit("do the thing", "cli", "broken")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	final := h.waitState(t, r.ID, run.StateBlocked)
	// The task was rejected synchronously: still pending, never failed,
	// never handed to a worker.
	if final.Tasks[0].Status != run.TaskPending {
		t.Errorf("task status: %s", final.Tasks[0].Status)
	}
	if runner.callCount() != 0 {
		t.Errorf("worker must not be invoked: %d calls", runner.callCount())
	}
	// An input error parks the run with a distinct marker, so it never
	// reads like a worker failure.
	if !strings.HasPrefix(final.Error, "dispatch rejected: ") {
		t.Errorf("run error should mark an input error: %q", final.Error)
	}

	select {
	case e := <-warnCh:
		if got := e.Payload["field"]; got != "prompt" {
			t.Errorf("warning field: %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch.warning event")
	}
}

func TestDisallowedAgentStripped(t *testing.T) {
	dir := t.TempDir()
	doc := `name: opinionated
steps:
  - kind: custom
    description: "do the thing"
    prompt: "do it"
    agent: favorite-worker
`
	if err := writeFile(t, dir, "opinionated.yaml", doc); err != nil {
		t.Fatal(err)
	}
	reg := workflow.NewRegistry()
	if err := reg.LoadDir(dir); err != nil {
		t.Fatalf("load: %v", err)
	}

	runner := &scriptedRunner{queue: []scriptStep{{out: "done"}}}
	h := newHarness(t, runner, func(c *Config) { c.Workflows = reg })

	warnCh, cancelSub := h.bus.SubscribeChan(8, events.EventDispatchWarning)
	defer cancelSub()

	r, err := h.sup.Submit("do the thing", "cli", "opinionated")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The handoff proceeds to the confirmation gate despite the warning.
	conf := h.nextGate(t, events.EventConfirmationRequested, r.ID)
	if err := h.sup.Decide(token(conf), run.OutcomeConfirm, ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	h.waitState(t, r.ID, run.StateDone)

	if got := runner.call(0).Agent; got != "" {
		t.Errorf("agent must be stripped before the worker sees it: %q", got)
	}

	select {
	case e := <-warnCh:
		if got := e.Payload["field"]; got != "agent" {
			t.Errorf("warning field: %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no dispatch.warning event")
	}
}

func TestConfirmationRejectSynthesizesTask(t *testing.T) {
	runner := &scriptedRunner{queue: []scriptStep{
		{out: researchOut}, {out: planOut}, {out: implOut},
		{out: "Raised the toggle contrast as requested."},
	}}
	h := newHarness(t, runner, nil)

	r, err := h.sup.Submit("add a dark mode toggle", "cli", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	approval := h.nextGate(t, events.EventApprovalRequested, r.ID)
	if err := h.sup.Decide(token(approval), run.OutcomeApprove, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	first := h.nextGate(t, events.EventConfirmationRequested, r.ID)
	if err := h.sup.Decide(token(first), run.OutcomeReject, "the toggle needs more contrast"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	second := h.nextGate(t, events.EventConfirmationRequested, r.ID)
	if err := h.sup.Decide(token(second), run.OutcomeConfirm, ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	final := h.waitState(t, r.ID, run.StateDone)
	if len(final.Tasks) != 4 {
		t.Fatalf("expected synthesized follow-up task, got %d tasks", len(final.Tasks))
	}
	followup := final.Tasks[3]
	if followup.Kind != run.KindCustom {
		t.Errorf("follow-up kind: %s", followup.Kind)
	}
	if !strings.Contains(followup.Prompt, "the toggle needs more contrast") {
		t.Error("feedback missing from follow-up prompt")
	}
	if final.Confirmations != 1 {
		t.Errorf("confirmations: %d", final.Confirmations)
	}
}

func TestShutdownPreservesGateState(t *testing.T) {
	storeDir := t.TempDir()
	docsDir := t.TempDir()
	newStack := func(runner subagent.Runner) (*Supervisor, *run.FileStore, *events.Bus) {
		bus := events.NewBus(64)
		store := run.NewFileStore(storeDir)
		gates := NewGates()
		cfg := Config{
			Store:     store,
			Bus:       bus,
			Gates:     gates,
			Runner:    runner,
			Workflows: workflow.NewRegistry(),
			Artifacts: artifacts.NewStore(docsDir),
			Dispatch:  config.DispatchConfig{Rules: config.DefaultDispatchRules()},
		}
		return NewSupervisor(New(cfg), store, gates, bus, nil), store, bus
	}
	shutdown := func(sup *Supervisor) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := sup.Shutdown(ctx); err != nil {
			t.Fatalf("shutdown: %v", err)
		}
	}

	// First daemon lifetime: work up to the approval gate, then stop
	// cleanly while the gate is open.
	runner1 := &scriptedRunner{queue: []scriptStep{{out: researchOut}, {out: planOut}}}
	sup1, store, bus1 := newStack(runner1)
	gateCh1, cancelSub1 := bus1.SubscribeChan(16, events.EventApprovalRequested)

	r, err := sup1.Submit("add a dark mode toggle", "cli", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	select {
	case <-gateCh1:
	case <-time.After(5 * time.Second):
		t.Fatal("no approval gate before shutdown")
	}
	shutdown(sup1)
	cancelSub1()
	bus1.Close()

	persisted, err := store.Get(r.ID)
	if err != nil {
		t.Fatalf("get after shutdown: %v", err)
	}
	if persisted.State != run.StateAwaitingApproval {
		t.Fatalf("state after shutdown: %s (want %s)", persisted.State, run.StateAwaitingApproval)
	}
	if task := persisted.InFlight(); task == nil || task.Status != run.TaskAwaitingApproval {
		t.Fatalf("gated task not preserved: %+v", task)
	}

	// Second lifetime: recovery re-announces the gate and the run
	// completes from where it parked.
	runner2 := &scriptedRunner{queue: []scriptStep{{out: implOut}}}
	sup2, store2, bus2 := newStack(runner2)
	t.Cleanup(bus2.Close)
	t.Cleanup(func() { shutdown(sup2) })
	gateCh2, cancelSub2 := bus2.SubscribeChan(16,
		events.EventApprovalRequested, events.EventConfirmationRequested)
	t.Cleanup(cancelSub2)

	recovered, err := run.Recover(store2, bus2, slog.Default())
	if err != nil {
		t.Fatalf("recover: %v", err)
	}
	sup2.Resume(recovered)

	var approval events.Event
	select {
	case approval = <-gateCh2:
	case <-time.After(5 * time.Second):
		t.Fatal("gate not re-announced after restart")
	}
	payload, err := events.ExtractPayload[events.ApprovalRequestedPayload](approval)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if !strings.Contains(payload.Plan, "dark mode switch") {
		t.Errorf("re-announced plan lost content: %q", payload.Plan)
	}
	if err := sup2.Decide(payload.Token, run.OutcomeApprove, ""); err != nil {
		t.Fatalf("approve: %v", err)
	}

	select {
	case conf := <-gateCh2:
		if err := sup2.Decide(token(conf), run.OutcomeConfirm, ""); err != nil {
			t.Fatalf("confirm: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no confirmation gate after resume")
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if final, err := store2.Get(r.ID); err == nil && final.State == run.StateDone {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	final, _ := store2.Get(r.ID)
	t.Fatalf("resumed run never finished (last: %s)", final.State)
}

func TestSubmitReturnsDetachedSnapshot(t *testing.T) {
	runner := &scriptedRunner{queue: []scriptStep{{out: researchOut}, {out: planOut}}}
	h := newHarness(t, runner, nil)

	r, err := h.sup.Submit("add a dark mode toggle", "cli", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	// The run goroutine works its own copy; the returned snapshot
	// stays at intake and can be encoded at any time.
	h.nextGate(t, events.EventApprovalRequested, r.ID)
	if r.State != run.StateIntake {
		t.Errorf("snapshot state mutated: %s", r.State)
	}
	if len(r.Tasks) != 0 {
		t.Errorf("snapshot tasks mutated: %d", len(r.Tasks))
	}
	if _, err := json.Marshal(r); err != nil {
		t.Errorf("marshal snapshot: %v", err)
	}

	live, err := h.sup.Get(r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if live.State != run.StateAwaitingApproval {
		t.Errorf("stored state: %s", live.State)
	}
}

func TestAbortWhileAwaitingApproval(t *testing.T) {
	runner := &scriptedRunner{queue: []scriptStep{
		{out: researchOut}, {out: planOut},
	}}
	h := newHarness(t, runner, nil)

	r, err := h.sup.Submit("add a dark mode toggle", "cli", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	h.nextGate(t, events.EventApprovalRequested, r.ID)
	if err := h.sup.Abort(r.ID); err != nil {
		t.Fatalf("abort: %v", err)
	}

	final := h.waitState(t, r.ID, run.StateAborted)
	if final.CompletedAt == nil {
		t.Error("aborted run should record completion time")
	}
	// The pending gate was resolved; no gate remains open.
	if pending := h.sup.PendingGates(r.ID); len(pending) != 0 {
		t.Errorf("gates still pending: %+v", pending)
	}
}

func TestAbortTerminalRunFails(t *testing.T) {
	runner := &scriptedRunner{queue: []scriptStep{
		{out: researchOut}, {out: planOut}, {out: implOut},
	}}
	h := newHarness(t, runner, nil)

	r, err := h.sup.Submit("add a dark mode toggle", "cli", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	approval := h.nextGate(t, events.EventApprovalRequested, r.ID)
	_ = h.sup.Decide(token(approval), run.OutcomeApprove, "")
	conf := h.nextGate(t, events.EventConfirmationRequested, r.ID)
	_ = h.sup.Decide(token(conf), run.OutcomeConfirm, "")
	h.waitState(t, r.ID, run.StateDone)

	if err := h.sup.Abort(r.ID); err == nil {
		t.Error("aborting a finished run must fail")
	}
}

func TestConcurrentRuns(t *testing.T) {
	runner := &scriptedRunner{queue: []scriptStep{
		// Two interleaved runs; kinds arrive in nondeterministic order,
		// but every response works for any step except planning, so use
		// a plan-shaped output everywhere.
		{out: planOut}, {out: planOut}, {out: planOut},
		{out: planOut}, {out: planOut}, {out: planOut},
	}}
	h := newHarness(t, runner, nil)

	r1, err := h.sup.Submit("add a dark mode toggle", "cli", "")
	if err != nil {
		t.Fatalf("submit r1: %v", err)
	}
	r2, err := h.sup.Submit("rename the settings menu", "cli", "")
	if err != nil {
		t.Fatalf("submit r2: %v", err)
	}

	for _, id := range []string{r1.ID, r2.ID} {
		approval := h.nextGate(t, events.EventApprovalRequested, id)
		if err := h.sup.Decide(token(approval), run.OutcomeApprove, ""); err != nil {
			t.Fatalf("approve %s: %v", id, err)
		}
	}
	for _, id := range []string{r1.ID, r2.ID} {
		conf := h.nextGate(t, events.EventConfirmationRequested, id)
		if err := h.sup.Decide(token(conf), run.OutcomeConfirm, ""); err != nil {
			t.Fatalf("confirm %s: %v", id, err)
		}
	}

	h.waitState(t, r1.ID, run.StateDone)
	h.waitState(t, r2.ID, run.StateDone)
}

func TestRetryBlockedRun(t *testing.T) {
	failure := &subagent.Failure{Message: "transient network error"}
	runner := &scriptedRunner{queue: []scriptStep{
		{err: failure}, {out: researchOut}, {out: planOut}, {out: implOut},
	}}
	h := newHarness(t, runner, nil)

	r, err := h.sup.Submit("add a dark mode toggle", "cli", "")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	h.waitState(t, r.ID, run.StateBlocked)

	if err := h.sup.Retry(r.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}

	approval := h.nextGate(t, events.EventApprovalRequested, r.ID)
	_ = h.sup.Decide(token(approval), run.OutcomeApprove, "")
	conf := h.nextGate(t, events.EventConfirmationRequested, r.ID)
	_ = h.sup.Decide(token(conf), run.OutcomeConfirm, "")

	final := h.waitState(t, r.ID, run.StateDone)
	if final.Error != "" {
		t.Errorf("run error should clear on retry: %q", final.Error)
	}
}

func TestSubmitEmptyRequest(t *testing.T) {
	h := newHarness(t, &scriptedRunner{}, nil)
	if _, err := h.sup.Submit("   ", "cli", ""); err == nil {
		t.Error("expected error for empty request")
	}
}

func writeFile(t *testing.T, dir, name, content string) error {
	t.Helper()
	return os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644)
}
