package workflow

import "github.com/okvist/foreman/internal/run"

// DefaultName is the pipeline used when no workflow is named.
const DefaultName = "default"

// Default is the built-in research, plan, implement pipeline. The
// planning step is gated: its plan must be approved before
// implementation starts.
func Default() Workflow {
	return Workflow{
		Name: DefaultName,
		Steps: []StepTemplate{
			{
				Kind:        run.KindResearch,
				Description: "Research: {{.Request}}",
				Prompt: `Investigate what is needed to accomplish the following request.

Request: {{.Request}}

Identify the relevant code, files, and constraints. Report findings only; change nothing.`,
			},
			{
				Kind:        run.KindPlanning,
				Gated:       true,
				Description: "Plan: {{.Request}}",
				Prompt: `Produce an ordered work plan for the following request.

Request: {{.Request}}
{{range .Findings}}
Prior findings: {{.}}
{{end}}
Write the plan as a numbered markdown list with at least two steps.`,
			},
			{
				Kind:        run.KindImplementation,
				Description: "Implement: {{.Request}}",
				Prompt: `Carry out the approved plan for the following request.

Request: {{.Request}}

Approved plan:
{{.Plan}}

Execute each step in order and report what you changed.`,
			},
		},
	}
}
