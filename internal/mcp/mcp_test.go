package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/okvist/foreman/internal/orchestrator"
	"github.com/okvist/foreman/internal/run"
)

type fakeController struct {
	submitted []string
	decisions [][3]string
	aborted   []string
}

func (c *fakeController) Submit(request, source, workflowName string) (*run.Run, error) {
	c.submitted = append(c.submitted, request)
	r := run.NewRun(request, source)
	r.Workflow = workflowName
	return r, nil
}

func (c *fakeController) Decide(token, outcome, feedback string) error {
	c.decisions = append(c.decisions, [3]string{token, outcome, feedback})
	return nil
}

func (c *fakeController) Abort(runID string) error {
	c.aborted = append(c.aborted, runID)
	return nil
}

func (c *fakeController) Get(runID string) (*run.Run, error) {
	return &run.Run{ID: runID, State: run.StateRunning}, nil
}

func (c *fakeController) List() ([]*run.Run, error) {
	return nil, nil
}

func (c *fakeController) PendingGates(runID string) []orchestrator.PendingGate {
	return nil
}

func findTool(t *testing.T, name string) toolDef {
	t.Helper()
	for _, def := range toolDefs() {
		if def.name == name {
			return def
		}
	}
	t.Fatalf("tool %q not defined", name)
	return toolDef{}
}

func TestToMCPToolSchema(t *testing.T) {
	def := findTool(t, "reject_plan")
	tool := toMCPTool(def)

	if tool.Name != "reject_plan" {
		t.Errorf("Name = %q, want reject_plan", tool.Name)
	}

	schemaBytes, err := json.Marshal(tool.InputSchema)
	if err != nil {
		t.Fatalf("marshal InputSchema: %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		t.Fatalf("unmarshal InputSchema: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("schema type = %v, want object", schema["type"])
	}

	req, ok := schema["required"].([]any)
	if !ok {
		t.Fatal("schema required not an array")
	}
	if len(req) != 2 || req[0] != "feedback" || req[1] != "token" {
		t.Errorf("schema required = %v, want [feedback token]", req)
	}
}

func TestToMCPToolNoParams(t *testing.T) {
	tool := toMCPTool(findTool(t, "list_runs"))

	schemaBytes, err := json.Marshal(tool.InputSchema)
	if err != nil {
		t.Fatalf("marshal InputSchema: %v", err)
	}

	var schema map[string]any
	if err := json.Unmarshal(schemaBytes, &schema); err != nil {
		t.Fatalf("unmarshal InputSchema: %v", err)
	}
	if _, ok := schema["required"]; ok {
		t.Error("schema should not have required field when no params are required")
	}
}

func TestSubmitRequestHandler(t *testing.T) {
	ctrl := &fakeController{}
	def := findTool(t, "submit_request")

	result, err := def.handler(context.Background(), map[string]any{"request": "ship dark mode"}, ctrl)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	r, ok := result.(*run.Run)
	if !ok {
		t.Fatalf("expected *run.Run, got %T", result)
	}
	if r.Request != "ship dark mode" {
		t.Errorf("Request = %q", r.Request)
	}
	if len(ctrl.submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(ctrl.submitted))
	}
}

func TestGateDecisionHandlers(t *testing.T) {
	ctrl := &fakeController{}

	approve := findTool(t, "approve_plan")
	if _, err := approve.handler(context.Background(), map[string]any{"token": "tokA"}, ctrl); err != nil {
		t.Fatalf("approve handler: %v", err)
	}

	reject := findTool(t, "reject_plan")
	if _, err := reject.handler(context.Background(), map[string]any{"token": "tokB", "feedback": "add rollback step"}, ctrl); err != nil {
		t.Fatalf("reject handler: %v", err)
	}

	if len(ctrl.decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(ctrl.decisions))
	}
	if ctrl.decisions[0] != [3]string{"tokA", run.OutcomeApprove, ""} {
		t.Errorf("unexpected approve decision %v", ctrl.decisions[0])
	}
	if ctrl.decisions[1] != [3]string{"tokB", run.OutcomeReject, "add rollback step"} {
		t.Errorf("unexpected reject decision %v", ctrl.decisions[1])
	}
}

func TestNewServer(t *testing.T) {
	if NewServer(&fakeController{}) == nil {
		t.Fatal("NewServer returned nil")
	}
}
