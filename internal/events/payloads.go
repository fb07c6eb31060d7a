package events

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventPayload is implemented by typed event payloads.
type EventPayload interface {
	EventType() EventType
}

// NewEvent builds an Event from a typed payload.
func NewEvent(source EventSource, runID string, payload EventPayload) Event {
	return Event{
		ID:        generateEventID(),
		RunID:     runID,
		Type:      payload.EventType(),
		Timestamp: time.Now(),
		Source:    source,
		Payload:   toMap(payload),
	}
}

// toMap converts a typed payload to map[string]any via a JSON round-trip.
func toMap(payload EventPayload) map[string]any {
	data, err := json.Marshal(payload)
	if err != nil {
		return map[string]any{"marshal_error": err.Error()}
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return map[string]any{"unmarshal_error": err.Error()}
	}
	return m
}

// ExtractPayload converts an event's payload map back to a typed payload.
func ExtractPayload[T EventPayload](event Event) (T, error) {
	var payload T
	data, err := json.Marshal(event.Payload)
	if err != nil {
		return payload, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return payload, fmt.Errorf("unmarshal payload into %T: %w", payload, err)
	}
	if payload.EventType() != event.Type {
		return payload, fmt.Errorf("payload type %s does not match event type %s", payload.EventType(), event.Type)
	}
	return payload, nil
}

// RunCreatedPayload is emitted when a new run is accepted.
type RunCreatedPayload struct {
	RunID   string `json:"run_id"`
	Request string `json:"request"`
}

func (RunCreatedPayload) EventType() EventType { return EventRunCreated }

// RunStateChangedPayload is emitted on every run state transition.
type RunStateChangedPayload struct {
	RunID  string `json:"run_id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Reason string `json:"reason,omitempty"`
}

func (RunStateChangedPayload) EventType() EventType { return EventRunStateChanged }

// RunRecoveredPayload is emitted when a run is reloaded after a restart.
type RunRecoveredPayload struct {
	RunID string `json:"run_id"`
	State string `json:"state"`
}

func (RunRecoveredPayload) EventType() EventType { return EventRunRecovered }

// TaskQueuedPayload is emitted when a task is added to a run.
type TaskQueuedPayload struct {
	RunID       string `json:"run_id"`
	TaskID      string `json:"task_id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

func (TaskQueuedPayload) EventType() EventType { return EventTaskQueued }

// TaskStartedPayload is emitted when a task is handed to a subagent.
type TaskStartedPayload struct {
	RunID       string `json:"run_id"`
	TaskID      string `json:"task_id"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
}

func (TaskStartedPayload) EventType() EventType { return EventTaskStarted }

// TaskCompletedPayload is emitted when a subagent finishes a task.
type TaskCompletedPayload struct {
	RunID        string        `json:"run_id"`
	TaskID       string        `json:"task_id"`
	Description  string        `json:"description"`
	Summary      string        `json:"summary,omitempty"`
	ArtifactPath string        `json:"artifact_path,omitempty"`
	Duration     time.Duration `json:"duration_ns,omitempty"`
}

func (TaskCompletedPayload) EventType() EventType { return EventTaskCompleted }

// TaskFailedPayload carries the subagent's error verbatim.
type TaskFailedPayload struct {
	RunID       string `json:"run_id"`
	TaskID      string `json:"task_id"`
	Description string `json:"description"`
	Error       string `json:"error"`
}

func (TaskFailedPayload) EventType() EventType { return EventTaskFailed }

// DispatchWarningPayload is emitted when a disallowed dispatch field is stripped.
type DispatchWarningPayload struct {
	RunID   string `json:"run_id"`
	TaskID  string `json:"task_id,omitempty"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (DispatchWarningPayload) EventType() EventType { return EventDispatchWarning }

// ApprovalRequestedPayload is emitted when a plan needs operator review.
type ApprovalRequestedPayload struct {
	RunID    string `json:"run_id"`
	TaskID   string `json:"task_id"`
	Token    string `json:"token"`
	Plan     string `json:"plan"`
	Revision int    `json:"revision"`
	Delta    string `json:"delta,omitempty"`
}

func (ApprovalRequestedPayload) EventType() EventType { return EventApprovalRequested }

// ApprovalResolvedPayload is emitted when an operator decides on a plan.
type ApprovalResolvedPayload struct {
	RunID    string `json:"run_id"`
	TaskID   string `json:"task_id"`
	Token    string `json:"token"`
	Outcome  string `json:"outcome"`
	Feedback string `json:"feedback,omitempty"`
}

func (ApprovalResolvedPayload) EventType() EventType { return EventApprovalResolved }

// ConfirmationRequestedPayload is emitted before a run may complete.
type ConfirmationRequestedPayload struct {
	RunID   string `json:"run_id"`
	Token   string `json:"token"`
	Summary string `json:"summary"`
}

func (ConfirmationRequestedPayload) EventType() EventType { return EventConfirmationRequested }

// ConfirmationResolvedPayload is emitted when an operator confirms or
// rejects a finished run.
type ConfirmationResolvedPayload struct {
	RunID    string `json:"run_id"`
	Token    string `json:"token"`
	Outcome  string `json:"outcome"`
	Feedback string `json:"feedback,omitempty"`
}

func (ConfirmationResolvedPayload) EventType() EventType { return EventConfirmationResolved }

// Tool call statuses.
const (
	ToolStatusStarted   = "started"
	ToolStatusCompleted = "completed"
	ToolStatusFailed    = "failed"
)

// ToolCallPayload traces a tool invocation inside a subagent.
type ToolCallPayload struct {
	TaskID    string `json:"task_id,omitempty"`
	Status    string `json:"status"`
	Tool      string `json:"tool"`
	Arguments string `json:"arguments,omitempty"`
	Result    string `json:"result,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (ToolCallPayload) EventType() EventType { return EventToolCall }

// ModelCallPayload traces a model invocation inside a subagent.
type ModelCallPayload struct {
	TaskID       string `json:"task_id,omitempty"`
	Phase        string `json:"phase"`
	Model        string `json:"model,omitempty"`
	MessageCount int    `json:"message_count,omitempty"`
	TokensInput  int    `json:"tokens_input,omitempty"`
	TokensOutput int    `json:"tokens_output,omitempty"`
	Error        string `json:"error,omitempty"`
}

func (ModelCallPayload) EventType() EventType { return EventModelCall }

// ScheduleTriggerPayload is emitted when a cron schedule fires.
type ScheduleTriggerPayload struct {
	Name    string `json:"name"`
	Request string `json:"request"`
	RunID   string `json:"run_id,omitempty"`
}

func (ScheduleTriggerPayload) EventType() EventType { return EventScheduleTrigger }
