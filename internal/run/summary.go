package run

import (
	"fmt"
	"strings"
	"time"
)

// Decision is one recorded operator verdict at a gate. Decisions are
// journaled per run so the review trail survives restarts.
type Decision struct {
	Token     string    `json:"token"`
	Gate      string    `json:"gate"` // approval or confirmation
	RunID     string    `json:"run_id"`
	TaskID    string    `json:"task_id,omitempty"`
	Outcome   string    `json:"outcome"` // approve, reject, confirm, cancelled
	Feedback  string    `json:"feedback,omitempty"`
	DecidedAt time.Time `json:"decided_at"`
}

const (
	OutcomeApprove   = "approve"
	OutcomeReject    = "reject"
	OutcomeConfirm   = "confirm"
	OutcomeCancelled = "cancelled"
)

// Summary is the digest presented at the final confirmation gate.
type Summary struct {
	RunID     string        `json:"run_id"`
	Request   string        `json:"request"`
	Tasks     []TaskDigest  `json:"tasks"`
	Artifacts []string      `json:"artifacts,omitempty"`
	Elapsed   time.Duration `json:"elapsed_ns"`
}

// TaskDigest is one completed task's line in the summary.
type TaskDigest struct {
	ID          string   `json:"id"`
	Kind        TaskKind `json:"kind"`
	Description string   `json:"description"`
	Summary     string   `json:"summary,omitempty"`
}

// Summarize builds the confirmation digest for a run.
func Summarize(r *Run) Summary {
	s := Summary{
		RunID:   r.ID,
		Request: r.Request,
		Elapsed: time.Since(r.CreatedAt),
	}
	for _, t := range r.Tasks {
		if t.Status != TaskCompleted {
			continue
		}
		s.Tasks = append(s.Tasks, TaskDigest{
			ID:          t.ID,
			Kind:        t.Kind,
			Description: t.Description,
			Summary:     t.Summary,
		})
		if t.ArtifactPath != "" {
			s.Artifacts = append(s.Artifacts, t.ArtifactPath)
		}
	}
	return s
}

// Markdown renders the summary for operator review.
func (s Summary) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Run %s\n\n", s.RunID)
	fmt.Fprintf(&b, "**Request:** %s\n\n", s.Request)
	b.WriteString("## Completed tasks\n\n")
	for i, t := range s.Tasks {
		fmt.Fprintf(&b, "%d. [%s] %s\n", i+1, t.Kind, t.Description)
		if t.Summary != "" {
			fmt.Fprintf(&b, "   %s\n", t.Summary)
		}
	}
	if len(s.Artifacts) > 0 {
		b.WriteString("\n## Artifacts\n\n")
		for _, a := range s.Artifacts {
			fmt.Fprintf(&b, "- %s\n", a)
		}
	}
	return b.String()
}
