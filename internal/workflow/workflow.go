// Package workflow defines the task pipelines a run is decomposed
// into. A workflow is an ordered list of step templates; templates are
// rendered per step at dispatch time so later steps can reference
// earlier results.
package workflow

import (
	"bytes"
	"fmt"
	"text/template"

	"github.com/okvist/foreman/internal/run"
)

// StepTemplate describes one task to derive from a request.
type StepTemplate struct {
	Kind        run.TaskKind `yaml:"kind"`
	Description string       `yaml:"description"`
	Prompt      string       `yaml:"prompt"`
	// Gated marks a step whose output must pass operator review
	// before the pipeline continues.
	Gated bool `yaml:"gated,omitempty"`
	// Agent names a specific worker identity. Delegation is anonymous,
	// so a populated value is stripped at dispatch with a warning.
	Agent string `yaml:"agent,omitempty"`
}

// Workflow is a named pipeline of step templates.
type Workflow struct {
	Name  string         `yaml:"name"`
	Steps []StepTemplate `yaml:"steps"`
}

// Context is the data available to step templates.
type Context struct {
	// Request is the original user request.
	Request string
	// Findings holds summaries of completed tasks, in order.
	Findings []string
	// Plan is the approved plan markdown, when one exists.
	Plan string
}

// Validate checks a workflow for structural problems.
func (w Workflow) Validate() error {
	if w.Name == "" {
		return fmt.Errorf("workflow needs a name")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %s has no steps", w.Name)
	}
	for i, s := range w.Steps {
		if s.Description == "" || s.Prompt == "" {
			return fmt.Errorf("workflow %s step %d needs description and prompt", w.Name, i+1)
		}
		switch s.Kind {
		case run.KindResearch, run.KindPlanning, run.KindImplementation, run.KindCustom:
		default:
			return fmt.Errorf("workflow %s step %d has unknown kind %q", w.Name, i+1, s.Kind)
		}
	}
	return nil
}

// Render expands a step template against the run context.
func (s StepTemplate) Render(ctx Context) (description, prompt string, err error) {
	description, err = renderTemplate("description", s.Description, ctx)
	if err != nil {
		return "", "", err
	}
	prompt, err = renderTemplate("prompt", s.Prompt, ctx)
	if err != nil {
		return "", "", err
	}
	return description, prompt, nil
}

func renderTemplate(name, text string, ctx Context) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(text)
	if err != nil {
		return "", fmt.Errorf("parse %s template: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ctx); err != nil {
		return "", fmt.Errorf("render %s template: %w", name, err)
	}
	return buf.String(), nil
}
