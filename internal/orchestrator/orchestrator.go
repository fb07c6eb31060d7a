package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/okvist/foreman/internal/artifacts"
	"github.com/okvist/foreman/internal/config"
	"github.com/okvist/foreman/internal/events"
	"github.com/okvist/foreman/internal/plan"
	"github.com/okvist/foreman/internal/run"
	"github.com/okvist/foreman/internal/subagent"
	"github.com/okvist/foreman/internal/workflow"
)

const defaultMaxPlanRevisions = 3

// Config holds the orchestrator's collaborators.
type Config struct {
	Store            run.Store
	Bus              *events.Bus
	Gates            *Gates
	Runner           subagent.Runner
	Workflows        *workflow.Registry
	Artifacts        *artifacts.Store
	Dispatch         config.DispatchConfig
	MaxPlanRevisions int
	Log              *slog.Logger
}

// Orchestrator drives a single run through its lifecycle. It owns the
// run object while the run is active; callers interact through the
// store, the event bus, and the gates.
type Orchestrator struct {
	store            run.Store
	bus              *events.Bus
	gates            *Gates
	runner           subagent.Runner
	workflows        *workflow.Registry
	artifacts        *artifacts.Store
	dispatch         config.DispatchConfig
	maxPlanRevisions int
	log              *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	maxRev := cfg.MaxPlanRevisions
	if maxRev <= 0 {
		maxRev = defaultMaxPlanRevisions
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		store:            cfg.Store,
		bus:              cfg.Bus,
		gates:            cfg.Gates,
		runner:           cfg.Runner,
		workflows:        cfg.Workflows,
		artifacts:        cfg.Artifacts,
		dispatch:         cfg.Dispatch,
		maxPlanRevisions: maxRev,
		log:              log,
	}
}

// Execute drives a run until it parks in a terminal or blocked state.
// Safe to call again on a run resumed from a gate state.
func (o *Orchestrator) Execute(ctx context.Context, r *run.Run) {
	if r.State == run.StateIntake {
		if err := o.decompose(r); err != nil {
			o.log.Error("decompose request", "run", r.ID, "error", err)
			r.Error = err.Error()
			o.setState(r, run.StateAborted, err.Error())
			return
		}
		o.setState(r, run.StateDispatching, "request decomposed")
	}
	o.loop(ctx, r)
}

func (o *Orchestrator) loop(ctx context.Context, r *run.Run) {
	for {
		if ctx.Err() != nil {
			if abortRequested(ctx) {
				o.finishAborted(r, "run aborted")
			}
			return
		}

		switch r.State {
		case run.StateDispatching:
			t := r.NextPending()
			if t == nil {
				if r.AllDone() {
					o.setState(r, run.StateAwaitingConfirmation, "all tasks completed")
					continue
				}
				o.block(r, "no dispatchable task remains")
				return
			}
			if !o.dispatchTask(ctx, r, t) {
				return
			}
		case run.StateAwaitingApproval:
			if !o.awaitApproval(ctx, r) {
				return
			}
		case run.StateAwaitingConfirmation:
			if !o.awaitConfirmation(ctx, r) {
				return
			}
		default:
			return
		}
	}
}

// decompose expands the run's workflow into tasks.
func (o *Orchestrator) decompose(r *run.Run) error {
	wf, err := o.workflows.Get(r.Workflow)
	if err != nil {
		return err
	}
	r.Workflow = wf.Name

	tctx := workflow.Context{Request: r.Request}
	for i, step := range wf.Steps {
		desc, prompt, err := step.Render(tctx)
		if err != nil {
			return fmt.Errorf("render step %d: %w", i+1, err)
		}
		t := run.NewTask(r.ID, step.Kind, desc, prompt)
		t.Gated = step.Gated
		t.Agent = step.Agent
		t.Workflow = wf.Name
		t.Step = i
		r.Tasks = append(r.Tasks, t)
		o.emit(r, events.TaskQueuedPayload{
			RunID:       r.ID,
			TaskID:      t.ID,
			Kind:        string(t.Kind),
			Description: t.Description,
		})
	}
	return nil
}

// runContext gathers findings and the approved plan for template
// rendering.
func runContext(r *run.Run) workflow.Context {
	wctx := workflow.Context{Request: r.Request}
	for _, t := range r.Tasks {
		if t.Status == run.TaskCompleted && t.Summary != "" {
			wctx.Findings = append(wctx.Findings, t.Summary)
		}
		if t.Plan != nil && t.Plan.State == plan.Approved {
			wctx.Plan = t.Plan.Markdown
		}
	}
	return wctx
}

// dispatchTask validates and hands one task to a subagent. Returns
// false when the loop must stop (blocked or aborted).
func (o *Orchestrator) dispatchTask(ctx context.Context, r *run.Run, t *run.Task) bool {
	// Workflow tasks re-render their prompt now so they see findings
	// and plans produced after decomposition.
	if t.Workflow != "" {
		wf, err := o.workflows.Get(t.Workflow)
		if err == nil && t.Step < len(wf.Steps) {
			if _, prompt, err := wf.Steps[t.Step].Render(runContext(r)); err == nil {
				t.Prompt = prompt
			}
		}
	}

	d := subagent.Dispatch{Kind: t.Kind, Description: t.Description, Prompt: t.Prompt, Agent: t.Agent}
	rule := o.dispatch.RuleFor(string(t.Kind))
	d, warnings, err := subagent.Validate(d, rule)
	if err != nil {
		// Synchronous reject: the task never reaches a worker and
		// stays pending. The run parks for intervention.
		o.log.Warn("dispatch rejected", "run", r.ID, "task", t.ID, "error", err)
		o.emit(r, events.DispatchWarningPayload{
			RunID:   r.ID,
			TaskID:  t.ID,
			Field:   missingField(err),
			Message: err.Error(),
		})
		// Input error, not a worker failure: the run error carries a
		// distinct prefix so the two stay distinguishable.
		o.block(r, "dispatch rejected: "+err.Error())
		return false
	}
	for _, w := range warnings {
		o.log.Warn("dispatch parameter stripped", "run", r.ID, "task", t.ID, "field", w.Field)
		o.emit(r, events.DispatchWarningPayload{
			RunID:   r.ID,
			TaskID:  t.ID,
			Field:   w.Field,
			Message: w.Message,
		})
	}

	now := time.Now()
	t.Status = run.TaskRunning
	t.StartedAt = &now
	r.CurrentTask = t.ID
	o.setState(r, run.StateRunning, "task dispatched")
	o.emit(r, events.TaskStartedPayload{
		RunID:       r.ID,
		TaskID:      t.ID,
		Kind:        string(t.Kind),
		Description: t.Description,
	})

	workerCtx := events.WithTaskID(events.WithRunID(ctx, r.ID), t.ID)
	res, err := o.runner.Run(workerCtx, d)
	if err != nil {
		if ctx.Err() != nil {
			if abortRequested(ctx) {
				o.finishAborted(r, "aborted while task was running")
			}
			return false
		}
		return o.failTask(r, t, err.Error())
	}

	if t.Gated {
		return o.presentPlan(r, t, res)
	}
	return o.completeTask(r, t, res)
}

// failTask records a worker failure verbatim and parks the run.
func (o *Orchestrator) failTask(r *run.Run, t *run.Task, msg string) bool {
	now := time.Now()
	t.Status = run.TaskFailed
	t.Error = msg
	t.CompletedAt = &now
	r.CurrentTask = ""
	o.emit(r, events.TaskFailedPayload{
		RunID:       r.ID,
		TaskID:      t.ID,
		Description: t.Description,
		Error:       msg,
	})
	o.block(r, msg)
	return false
}

// completeTask persists the worker's output as an artifact and moves on.
func (o *Orchestrator) completeTask(r *run.Run, t *run.Task, res subagent.Result) bool {
	if res.Output != "" {
		rel, err := o.artifacts.Write(string(t.Kind), t.Description, r.ID, t.ID, []byte(res.Output))
		if err != nil {
			o.log.Warn("persist artifact", "run", r.ID, "task", t.ID, "error", err)
		} else {
			t.ArtifactPath = rel
		}
	}
	if t.Kind == run.KindImplementation {
		summary := res.Summary
		if summary == "" {
			summary = t.Description
		}
		if err := o.artifacts.AppendChangelog(r.ID, summary); err != nil {
			o.log.Warn("append changelog", "run", r.ID, "error", err)
		}
	}

	o.markCompleted(r, t, res.Summary)
	o.setState(r, run.StateDispatching, "task completed")
	return true
}

func (o *Orchestrator) markCompleted(r *run.Run, t *run.Task, summary string) {
	now := time.Now()
	t.Status = run.TaskCompleted
	if summary != "" {
		t.Summary = summary
	}
	t.CompletedAt = &now
	r.CurrentTask = ""

	var dur time.Duration
	if t.StartedAt != nil {
		dur = now.Sub(*t.StartedAt)
	}
	o.emit(r, events.TaskCompletedPayload{
		RunID:        r.ID,
		TaskID:       t.ID,
		Description:  t.Description,
		Summary:      t.Summary,
		ArtifactPath: t.ArtifactPath,
		Duration:     dur,
	})
}

// presentPlan parses a planning worker's output and parks the run at
// the approval gate.
func (o *Orchestrator) presentPlan(r *run.Run, t *run.Task, res subagent.Result) bool {
	steps, err := plan.ParseMarkdown(res.Output)
	if err != nil {
		return o.failTask(r, t, err.Error())
	}

	if t.Plan == nil {
		t.Plan = plan.New(steps, res.Output)
	} else if err := t.Plan.Revise(steps, res.Output); err != nil {
		return o.failTask(r, t, err.Error())
	}

	t.Status = run.TaskAwaitingApproval
	t.Summary = res.Summary
	o.setState(r, run.StateAwaitingApproval, "plan ready for review")
	return true
}

// awaitApproval opens the plan gate and applies the operator's verdict.
func (o *Orchestrator) awaitApproval(ctx context.Context, r *run.Run) bool {
	t := r.InFlight()
	if t == nil || t.Plan == nil {
		o.block(r, "awaiting approval without a plan")
		return false
	}

	delta := ""
	if t.Plan.Revision > 1 {
		delta = plan.Delta(t.Plan.PriorMarkdown, t.Plan.Markdown)
	}

	token, ch := o.gates.Open(r.ID, t.ID, events.GateApproval)
	o.persist(r)
	o.emit(r, events.ApprovalRequestedPayload{
		RunID:    r.ID,
		TaskID:   t.ID,
		Token:    token,
		Plan:     t.Plan.Markdown,
		Revision: t.Plan.Revision,
		Delta:    delta,
	})

	var res Resolution
	select {
	case <-ctx.Done():
		if abortRequested(ctx) {
			o.finishAborted(r, "aborted while awaiting approval")
		}
		// Shutdown: the run stays awaiting_approval on disk and is
		// resumed on the next start.
		return false
	case res = <-ch:
	}

	o.recordDecision(r, token, events.GateApproval, t.ID, res)
	o.emit(r, events.ApprovalResolvedPayload{
		RunID:    r.ID,
		TaskID:   t.ID,
		Token:    token,
		Outcome:  res.Outcome,
		Feedback: res.Feedback,
	})

	switch res.Outcome {
	case run.OutcomeApprove:
		if err := t.Plan.Approve(); err != nil {
			o.block(r, err.Error())
			return false
		}
		rel, err := o.artifacts.Write(string(t.Kind), t.Description, r.ID, t.ID, []byte(t.Plan.Markdown))
		if err != nil {
			o.log.Warn("persist plan artifact", "run", r.ID, "error", err)
		} else {
			t.ArtifactPath = rel
		}
		o.markCompleted(r, t, t.Summary)
		o.setState(r, run.StateDispatching, "plan approved")
		return true

	case run.OutcomeReject:
		if err := t.Plan.RequestChanges(res.Feedback); err != nil {
			o.block(r, err.Error())
			return false
		}
		if t.Plan.Revision >= o.maxPlanRevisions {
			return o.failTask(r, t, fmt.Sprintf("plan rejected after %d revisions", t.Plan.Revision))
		}
		// Re-dispatch the planning task with the reviewer's feedback.
		t.Status = run.TaskPending
		t.Workflow = ""
		t.Prompt = revisionPrompt(t.Prompt, res.Feedback, t.Plan.Markdown)
		r.CurrentTask = ""
		o.setState(r, run.StateDispatching, "plan changes requested")
		return true

	default: // cancelled
		o.finishAborted(r, "approval gate cancelled")
		return false
	}
}

func revisionPrompt(prompt, feedback, priorPlan string) string {
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nThe reviewer requested changes to the previous plan.")
	if feedback != "" {
		b.WriteString("\n\nReviewer feedback:\n")
		b.WriteString(feedback)
	}
	b.WriteString("\n\nPrevious plan:\n")
	b.WriteString(priorPlan)
	b.WriteString("\n\nProduce a revised plan addressing the feedback.")
	return b.String()
}

// awaitConfirmation opens the final gate. A run only reaches done
// through an accepting decision here.
func (o *Orchestrator) awaitConfirmation(ctx context.Context, r *run.Run) bool {
	summary := run.Summarize(r)
	token, ch := o.gates.Open(r.ID, "", events.GateConfirmation)
	o.persist(r)
	o.emit(r, events.ConfirmationRequestedPayload{
		RunID:   r.ID,
		Token:   token,
		Summary: summary.Markdown(),
	})

	var res Resolution
	select {
	case <-ctx.Done():
		if abortRequested(ctx) {
			o.finishAborted(r, "aborted while awaiting confirmation")
		}
		return false
	case res = <-ch:
	}

	o.recordDecision(r, token, events.GateConfirmation, "", res)
	o.emit(r, events.ConfirmationResolvedPayload{
		RunID:    r.ID,
		Token:    token,
		Outcome:  res.Outcome,
		Feedback: res.Feedback,
	})

	switch res.Outcome {
	case run.OutcomeConfirm:
		r.Confirmations++
		o.setState(r, run.StateDone, "operator confirmed")
		return false

	case run.OutcomeReject:
		t := followupTask(r, res.Feedback)
		r.Tasks = append(r.Tasks, t)
		o.emit(r, events.TaskQueuedPayload{
			RunID:       r.ID,
			TaskID:      t.ID,
			Kind:        string(t.Kind),
			Description: t.Description,
		})
		o.setState(r, run.StateDispatching, "confirmation rejected with feedback")
		return true

	default: // cancelled
		o.finishAborted(r, "confirmation gate cancelled")
		return false
	}
}

// followupTask synthesizes a task from final-gate feedback.
func followupTask(r *run.Run, feedback string) *run.Task {
	desc := "Address feedback: " + truncate(feedback, 80)
	prompt := fmt.Sprintf(`The operator reviewed the finished work and requested changes.

Original request: %s

Operator feedback:
%s

Address the feedback and report what you changed.`, r.Request, feedback)
	return run.NewTask(r.ID, run.KindCustom, desc, prompt)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

// block parks the run for operator intervention.
func (o *Orchestrator) block(r *run.Run, reason string) {
	r.Error = reason
	o.setState(r, run.StateBlocked, reason)
}

// finishAborted finalizes an abort, unless the run already ended.
func (o *Orchestrator) finishAborted(r *run.Run, reason string) {
	if r.State.Terminal() {
		return
	}
	o.setState(r, run.StateAborted, reason)
}

// abortRequested reports whether the context was cancelled by an
// operator abort rather than a shutdown.
func abortRequested(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errAbortRequested)
}

func (o *Orchestrator) setState(r *run.Run, to run.State, reason string) {
	from := r.State
	if err := r.Transition(to); err != nil {
		o.log.Error("state transition", "run", r.ID, "error", err)
		return
	}
	o.persist(r)
	o.emit(r, events.RunStateChangedPayload{
		RunID:  r.ID,
		From:   string(from),
		To:     string(to),
		Reason: reason,
	})
	o.log.Info("run state", "run", r.ID, "from", from, "to", to, "reason", reason)
}

func (o *Orchestrator) persist(r *run.Run) {
	if err := o.store.Update(r); err != nil {
		o.log.Error("persist run", "run", r.ID, "error", err)
	}
}

// emit publishes on the bus and journals the event on the run.
func (o *Orchestrator) emit(r *run.Run, payload events.EventPayload) {
	e := events.NewEvent(events.SourceOrchestrator, r.ID, payload)
	o.bus.Publish(e)
	if err := o.store.AppendEvent(r.ID, e); err != nil {
		o.log.Warn("journal event", "run", r.ID, "error", err)
	}
}

func (o *Orchestrator) recordDecision(r *run.Run, token string, gate events.GateKind, taskID string, res Resolution) {
	d := run.Decision{
		Token:     token,
		Gate:      string(gate),
		RunID:     r.ID,
		TaskID:    taskID,
		Outcome:   res.Outcome,
		Feedback:  res.Feedback,
		DecidedAt: time.Now(),
	}
	if err := o.store.AppendDecision(r.ID, d); err != nil {
		o.log.Error("record decision", "run", r.ID, "error", err)
	}
}

func missingField(err error) string {
	var mf *subagent.MissingFieldError
	if errors.As(err, &mf) {
		return mf.Field
	}
	return ""
}
