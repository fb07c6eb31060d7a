package plan

import (
	"strings"
	"testing"
)

const headerPlan = `# Plan

### Step 1: Find the theme setting
Locate where the theme preference is stored.

### Step 2: Add the toggle
Wire a dark mode switch into the settings panel.

### Step 3: Persist the choice
Save the selection across restarts.
`

const numberedPlan = `Proposed approach:

1. Audit current styling
2) Introduce a theme variable
3. Flip colors based on the variable
`

func TestParseMarkdownHeaders(t *testing.T) {
	steps, err := ParseMarkdown(headerPlan)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[0].Title != "Find the theme setting" {
		t.Errorf("title: %q", steps[0].Title)
	}
	if !strings.Contains(steps[1].Detail, "dark mode switch") {
		t.Errorf("detail lost: %q", steps[1].Detail)
	}
	if steps[2].ID != "step_3" {
		t.Errorf("id: %q", steps[2].ID)
	}
}

func TestParseMarkdownNumbered(t *testing.T) {
	steps, err := ParseMarkdown(numberedPlan)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(steps))
	}
	if steps[1].Title != "Introduce a theme variable" {
		t.Errorf("title: %q", steps[1].Title)
	}
}

func TestParseMarkdownTooFewSteps(t *testing.T) {
	if _, err := ParseMarkdown("1. only one step here"); err == nil {
		t.Error("expected error for single step")
	}
	if _, err := ParseMarkdown("just prose, no steps at all"); err == nil {
		t.Error("expected error for prose")
	}
}

func TestPlanLifecycle(t *testing.T) {
	steps, err := ParseMarkdown(headerPlan)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	p := New(steps, headerPlan)

	if p.State != Unreviewed || p.Revision != 1 {
		t.Fatalf("fresh plan: state=%s revision=%d", p.State, p.Revision)
	}

	if err := p.RequestChanges("use CSS variables instead"); err != nil {
		t.Fatalf("request changes: %v", err)
	}
	if p.State != ChangesRequested {
		t.Errorf("state: %s", p.State)
	}
	if len(p.Feedback) != 1 {
		t.Errorf("feedback not recorded: %v", p.Feedback)
	}

	// Rejected plan cannot be approved without a revision.
	if err := p.Approve(); err == nil {
		t.Error("expected approve to fail on reviewed plan")
	}

	revised, err := ParseMarkdown(numberedPlan)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := p.Revise(revised, numberedPlan); err != nil {
		t.Fatalf("revise: %v", err)
	}
	if p.Revision != 2 || p.State != Unreviewed {
		t.Errorf("after revise: revision=%d state=%s", p.Revision, p.State)
	}
	if p.PriorMarkdown != headerPlan {
		t.Error("prior markdown should hold the rejected revision")
	}
	if len(p.Feedback) != 1 {
		t.Error("feedback should carry over across revisions")
	}

	if err := p.Approve(); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if p.State != Approved {
		t.Errorf("state: %s", p.State)
	}
}

func TestReviseRequiresRejection(t *testing.T) {
	steps, _ := ParseMarkdown(headerPlan)
	p := New(steps, headerPlan)
	if err := p.Revise(steps, headerPlan); err == nil {
		t.Error("expected revise to fail on unreviewed plan")
	}
}

func TestDelta(t *testing.T) {
	before := "1. Audit styling\n2. Flip colors\n"
	after := "1. Audit styling\n2. Introduce a theme variable\n3. Flip colors\n"

	delta := Delta(before, after)
	if !strings.Contains(delta, "+ 2. Introduce a theme variable") {
		t.Errorf("added line not marked:\n%s", delta)
	}
	if !strings.Contains(delta, "  1. Audit styling") {
		t.Errorf("unchanged line not kept:\n%s", delta)
	}
	if !strings.Contains(delta, "- 2. Flip colors") {
		t.Errorf("removed line not marked:\n%s", delta)
	}
}

func TestDeltaIdentical(t *testing.T) {
	if d := Delta(headerPlan, headerPlan); d != "" {
		t.Errorf("expected empty delta, got %q", d)
	}
}

func TestSummary(t *testing.T) {
	steps, _ := ParseMarkdown(headerPlan)
	p := New(steps, headerPlan)
	s := p.Summary()
	if !strings.Contains(s, "1. Find the theme setting") {
		t.Errorf("summary: %q", s)
	}
}
