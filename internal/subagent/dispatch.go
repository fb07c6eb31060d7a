// Package subagent defines the contract between the orchestrator and
// the workers it delegates to: a validated dispatch goes in, a result
// or a verbatim failure comes out.
package subagent

import (
	"context"

	"github.com/okvist/foreman/internal/run"
)

// Dispatch is a single task handoff. Description and Prompt are
// mandatory. Agent must stay empty: delegation never names a worker
// identity, a populated value is stripped before the handoff.
type Dispatch struct {
	Kind        run.TaskKind `json:"kind"`
	Description string       `json:"description"`
	Prompt      string       `json:"prompt"`
	Agent       string       `json:"agent,omitempty"`
}

// Field returns the named dispatch field's value.
func (d Dispatch) Field(name string) string {
	switch name {
	case "kind":
		return string(d.Kind)
	case "description":
		return d.Description
	case "prompt":
		return d.Prompt
	case "agent":
		return d.Agent
	}
	return ""
}

// Result is what a subagent hands back on success.
type Result struct {
	// Output is the full worker response.
	Output string
	// Summary is a short digest suitable for run summaries.
	Summary string
	// ArtifactPath points at a persisted artifact, if the worker wrote one.
	ArtifactPath string
}

// Runner executes one dispatched task. Implementations must honor
// context cancellation and return a *Failure for worker-side errors so
// the message reaches the operator verbatim.
type Runner interface {
	Run(ctx context.Context, d Dispatch) (Result, error)
}
