// Package run defines the run and task model: a run is one user
// request being worked end to end, a task is one unit of work handed
// to a subagent. At most one task per run is in flight at a time.
package run

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okvist/foreman/internal/plan"
)

// State is the lifecycle state of a run.
type State string

const (
	// StateIntake means the request was accepted but not yet decomposed.
	StateIntake State = "intake"
	// StateDispatching means the orchestrator is selecting and
	// validating the next task to hand off.
	StateDispatching State = "dispatching"
	// StateRunning means a subagent is working a task.
	StateRunning State = "running"
	// StateAwaitingApproval means a plan is waiting for operator review.
	StateAwaitingApproval State = "awaiting_approval"
	// StateBlocked means a task failed and the run needs intervention.
	StateBlocked State = "blocked"
	// StateAwaitingConfirmation means all tasks finished and the run
	// is waiting for the operator's final sign-off.
	StateAwaitingConfirmation State = "awaiting_confirmation"
	// StateDone is terminal: the operator confirmed the outcome.
	StateDone State = "done"
	// StateAborted is terminal: the run was cancelled.
	StateAborted State = "aborted"
)

// validTransitions lists the allowed run state edges.
var validTransitions = map[State][]State{
	StateIntake:               {StateDispatching, StateAborted},
	StateDispatching:          {StateRunning, StateAwaitingConfirmation, StateBlocked, StateAborted},
	StateRunning:              {StateDispatching, StateAwaitingApproval, StateBlocked, StateAborted},
	StateAwaitingApproval:     {StateRunning, StateDispatching, StateAborted},
	StateBlocked:              {StateDispatching, StateAborted},
	StateAwaitingConfirmation: {StateDone, StateDispatching, StateAborted},
	StateDone:                 {},
	StateAborted:              {},
}

// Terminal reports whether the state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}

// CanTransition reports whether the edge s -> to is allowed.
func (s State) CanTransition(to State) bool {
	for _, next := range validTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// TaskStatus is the lifecycle state of a single task.
type TaskStatus string

const (
	TaskPending          TaskStatus = "pending"
	TaskRunning          TaskStatus = "running"
	TaskAwaitingApproval TaskStatus = "awaiting_approval"
	TaskCompleted        TaskStatus = "completed"
	TaskFailed           TaskStatus = "failed"
)

// TaskKind classifies what a task is for.
type TaskKind string

const (
	KindResearch       TaskKind = "research"
	KindPlanning       TaskKind = "planning"
	KindImplementation TaskKind = "implementation"
	KindCustom         TaskKind = "custom"
)

// Task is one delegated unit of work within a run.
type Task struct {
	ID          string     `json:"id"`
	RunID       string     `json:"run_id"`
	Kind        TaskKind   `json:"kind"`
	Description string     `json:"description"`
	Prompt      string     `json:"prompt"`
	Status      TaskStatus `json:"status"`
	// Agent is carried from the workflow step, if one named a worker.
	// Dispatch validation strips it before the handoff.
	Agent string `json:"agent,omitempty"`

	// Gated means the task's output is a plan that must pass operator
	// review before the run proceeds.
	Gated bool       `json:"gated,omitempty"`
	Plan  *plan.Plan `json:"plan,omitempty"`

	// Workflow and Step record which pipeline template produced this
	// task. Empty for synthesized tasks; when set the prompt is
	// re-rendered at dispatch time with the run's accumulated context.
	Workflow string `json:"workflow,omitempty"`
	Step     int    `json:"step,omitempty"`

	Summary      string `json:"summary,omitempty"`
	ArtifactPath string `json:"artifact_path,omitempty"`
	Error        string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Run is one user request worked through decomposition, delegation,
// gating, and final confirmation.
type Run struct {
	ID       string `json:"id"`
	Request  string `json:"request"`
	State    State  `json:"state"`
	Source   string `json:"source,omitempty"` // cli, ws, mcp, schedule
	Workflow string `json:"workflow,omitempty"`

	Tasks []*Task `json:"tasks"`
	// CurrentTask is the ID of the in-flight or gated task, empty otherwise.
	CurrentTask string `json:"current_task,omitempty"`

	// Confirmations counts final-gate decisions. A run reaches done
	// with exactly one accepting confirmation.
	Confirmations int    `json:"confirmations,omitempty"`
	Error         string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// GenerateRunID creates a short unique run ID.
func GenerateRunID() string {
	return "run_" + uuid.NewString()[:8]
}

// GenerateTaskID creates a short unique task ID.
func GenerateTaskID() string {
	return "task_" + uuid.NewString()[:8]
}

// NewRun creates a run in the intake state.
func NewRun(request, source string) *Run {
	now := time.Now()
	return &Run{
		ID:        GenerateRunID(),
		Request:   request,
		State:     StateIntake,
		Source:    source,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTask creates a pending task bound to a run.
func NewTask(runID string, kind TaskKind, description, prompt string) *Task {
	return &Task{
		ID:          GenerateTaskID(),
		RunID:       runID,
		Kind:        kind,
		Description: description,
		Prompt:      prompt,
		Status:      TaskPending,
		CreatedAt:   time.Now(),
	}
}

// Clone returns a deep copy. The orchestrator goroutine mutates the
// live run; everything handed outside it gets a copy.
func (r *Run) Clone() *Run {
	c := *r
	if r.CompletedAt != nil {
		ts := *r.CompletedAt
		c.CompletedAt = &ts
	}
	c.Tasks = make([]*Task, len(r.Tasks))
	for i, t := range r.Tasks {
		c.Tasks[i] = t.Clone()
	}
	return &c
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	c := *t
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	if t.Plan != nil {
		c.Plan = t.Plan.Clone()
	}
	return &c
}

// Transition moves the run to a new state, enforcing the edge set.
func (r *Run) Transition(to State) error {
	if !r.State.CanTransition(to) {
		return fmt.Errorf("invalid run transition: %s -> %s", r.State, to)
	}
	r.State = to
	r.UpdatedAt = time.Now()
	if to.Terminal() {
		now := time.Now()
		r.CompletedAt = &now
	}
	return nil
}

// Task returns the task with the given ID, or nil.
func (r *Run) Task(id string) *Task {
	for _, t := range r.Tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// NextPending returns the first pending task in order, or nil.
func (r *Run) NextPending() *Task {
	for _, t := range r.Tasks {
		if t.Status == TaskPending {
			return t
		}
	}
	return nil
}

// InFlight returns the current running or gated task, or nil.
func (r *Run) InFlight() *Task {
	if r.CurrentTask == "" {
		return nil
	}
	return r.Task(r.CurrentTask)
}

// AllDone reports whether every task completed.
func (r *Run) AllDone() bool {
	for _, t := range r.Tasks {
		if t.Status != TaskCompleted {
			return false
		}
	}
	return len(r.Tasks) > 0
}
