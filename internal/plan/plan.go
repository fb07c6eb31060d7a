// Package plan holds the structured work plan a planning subagent
// produces and the operator review state attached to it.
package plan

import (
	"fmt"
	"strings"
	"time"
)

// ApprovalState tracks where a plan stands in operator review.
type ApprovalState string

const (
	// Unreviewed means the plan has not been presented, or a revision
	// superseded an earlier decision.
	Unreviewed ApprovalState = "unreviewed"
	// Approved means the operator accepted the plan as-is.
	Approved ApprovalState = "approved"
	// ChangesRequested means the operator rejected the plan with feedback.
	ChangesRequested ApprovalState = "changes_requested"
)

// Step is one ordered unit of work in a plan.
type Step struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Detail string `json:"detail,omitempty"`
}

// Plan is an ordered list of steps plus its review state. Revision
// starts at 1 and increments each time a rejected plan is replaced.
type Plan struct {
	Steps    []Step        `json:"steps"`
	Markdown string        `json:"markdown"`
	State    ApprovalState `json:"state"`
	Revision int           `json:"revision"`
	Feedback []string      `json:"feedback,omitempty"`
	// PriorMarkdown holds the previous revision's content so a
	// re-presented plan can show what changed.
	PriorMarkdown string `json:"prior_markdown,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New builds a first-revision plan from parsed steps and the source markdown.
func New(steps []Step, markdown string) *Plan {
	now := time.Now()
	return &Plan{
		Steps:     steps,
		Markdown:  markdown,
		State:     Unreviewed,
		Revision:  1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	c := *p
	c.Steps = append([]Step(nil), p.Steps...)
	c.Feedback = append([]string(nil), p.Feedback...)
	return &c
}

// Approve marks the plan approved. Only an unreviewed plan can be approved.
func (p *Plan) Approve() error {
	if p.State != Unreviewed {
		return fmt.Errorf("plan revision %d already reviewed (%s)", p.Revision, p.State)
	}
	p.State = Approved
	p.UpdatedAt = time.Now()
	return nil
}

// RequestChanges rejects the plan and records the operator's feedback.
func (p *Plan) RequestChanges(feedback string) error {
	if p.State != Unreviewed {
		return fmt.Errorf("plan revision %d already reviewed (%s)", p.Revision, p.State)
	}
	p.State = ChangesRequested
	if feedback != "" {
		p.Feedback = append(p.Feedback, feedback)
	}
	p.UpdatedAt = time.Now()
	return nil
}

// Revise replaces a rejected plan's content with a new revision. The
// feedback history carries over so later revisions keep their context.
func (p *Plan) Revise(steps []Step, markdown string) error {
	if p.State != ChangesRequested {
		return fmt.Errorf("cannot revise plan in state %s", p.State)
	}
	p.PriorMarkdown = p.Markdown
	p.Steps = steps
	p.Markdown = markdown
	p.State = Unreviewed
	p.Revision++
	p.UpdatedAt = time.Now()
	return nil
}

// Summary renders a short one-line-per-step digest.
func (p *Plan) Summary() string {
	var b strings.Builder
	for i, s := range p.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, s.Title)
	}
	return b.String()
}
