// Package mcp exposes the foreman control surface as MCP tools over
// stdio, so agent frontends can submit and steer runs.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/okvist/foreman/internal/events"
	"github.com/okvist/foreman/internal/orchestrator"
	"github.com/okvist/foreman/internal/run"
)

// Controller is the run control surface exposed as MCP tools.
type Controller interface {
	Submit(request, source, workflowName string) (*run.Run, error)
	Decide(token, outcome, feedback string) error
	Abort(runID string) error
	Get(runID string) (*run.Run, error)
	List() ([]*run.Run, error)
	PendingGates(runID string) []orchestrator.PendingGate
}

type toolDef struct {
	name        string
	description string
	params      map[string]paramSpec
	handler     func(ctx context.Context, args map[string]any, ctrl Controller) (any, error)
}

type paramSpec struct {
	typ         string
	description string
	required    bool
}

// NewServer creates an MCP server exposing the orchestration tools.
func NewServer(ctrl Controller) *mcpsdk.Server {
	server := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    "foreman",
		Version: "0.1.0",
	}, nil)

	for _, def := range toolDefs() {
		def := def
		server.AddTool(toMCPTool(def), func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			var args map[string]any
			if len(req.Params.Arguments) > 0 {
				if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
					return errorResult(fmt.Sprintf("invalid arguments: %v", err)), nil
				}
			}
			result, err := def.handler(ctx, args, ctrl)
			if err != nil {
				slog.Debug("mcp tool error", "tool", def.name, "error", err)
				return errorResult(err.Error()), nil
			}
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return errorResult(err.Error()), nil
			}
			return &mcpsdk.CallToolResult{
				Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
			}, nil
		})
		slog.Debug("mcp tool registered", "tool", def.name)
	}

	return server
}

// Run serves the MCP server over stdio until the context is cancelled.
func Run(ctx context.Context, server *mcpsdk.Server) error {
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func errorResult(msg string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		IsError: true,
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: msg}},
	}
}

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

func toolDefs() []toolDef {
	return []toolDef{
		{
			name:        "submit_request",
			description: "Submit a new request for orchestration. Returns the created run.",
			params: map[string]paramSpec{
				"request":  {typ: "string", description: "The user request to orchestrate", required: true},
				"workflow": {typ: "string", description: "Workflow template name (default workflow when omitted)"},
			},
			handler: func(_ context.Context, args map[string]any, ctrl Controller) (any, error) {
				return ctrl.Submit(stringArg(args, "request"), string(events.SourceMCP), stringArg(args, "workflow"))
			},
		},
		{
			name:        "run_status",
			description: "Fetch the current state, tasks, and plan of a run.",
			params: map[string]paramSpec{
				"run_id": {typ: "string", description: "The run identifier", required: true},
			},
			handler: func(_ context.Context, args map[string]any, ctrl Controller) (any, error) {
				return ctrl.Get(stringArg(args, "run_id"))
			},
		},
		{
			name:        "list_runs",
			description: "List all runs with their states.",
			handler: func(_ context.Context, _ map[string]any, ctrl Controller) (any, error) {
				return ctrl.List()
			},
		},
		{
			name:        "pending_gates",
			description: "List gates awaiting an operator decision, optionally filtered by run.",
			params: map[string]paramSpec{
				"run_id": {typ: "string", description: "Restrict to one run"},
			},
			handler: func(_ context.Context, args map[string]any, ctrl Controller) (any, error) {
				return ctrl.PendingGates(stringArg(args, "run_id")), nil
			},
		},
		{
			name:        "approve_plan",
			description: "Approve the plan behind an approval gate token. Execution proceeds.",
			params: map[string]paramSpec{
				"token": {typ: "string", description: "The gate token from the approval request", required: true},
			},
			handler: func(_ context.Context, args map[string]any, ctrl Controller) (any, error) {
				if err := ctrl.Decide(stringArg(args, "token"), run.OutcomeApprove, ""); err != nil {
					return nil, err
				}
				return map[string]string{"status": "approved"}, nil
			},
		},
		{
			name:        "reject_plan",
			description: "Request changes to the plan behind an approval gate token. The planner revises and re-presents it.",
			params: map[string]paramSpec{
				"token":    {typ: "string", description: "The gate token from the approval request", required: true},
				"feedback": {typ: "string", description: "What should change in the plan", required: true},
			},
			handler: func(_ context.Context, args map[string]any, ctrl Controller) (any, error) {
				if err := ctrl.Decide(stringArg(args, "token"), run.OutcomeReject, stringArg(args, "feedback")); err != nil {
					return nil, err
				}
				return map[string]string{"status": "changes_requested"}, nil
			},
		},
		{
			name:        "confirm_run",
			description: "Confirm a completed run behind a confirmation gate token, or reject it with feedback to trigger follow-up work.",
			params: map[string]paramSpec{
				"token":    {typ: "string", description: "The gate token from the confirmation request", required: true},
				"outcome":  {typ: "string", description: "Either confirm or reject", required: true},
				"feedback": {typ: "string", description: "Required when rejecting"},
			},
			handler: func(_ context.Context, args map[string]any, ctrl Controller) (any, error) {
				if err := ctrl.Decide(stringArg(args, "token"), stringArg(args, "outcome"), stringArg(args, "feedback")); err != nil {
					return nil, err
				}
				return map[string]string{"status": "resolved"}, nil
			},
		},
		{
			name:        "abort_run",
			description: "Abort a run. Any open gate is cancelled and in-flight work is stopped.",
			params: map[string]paramSpec{
				"run_id": {typ: "string", description: "The run identifier", required: true},
			},
			handler: func(_ context.Context, args map[string]any, ctrl Controller) (any, error) {
				if err := ctrl.Abort(stringArg(args, "run_id")); err != nil {
					return nil, err
				}
				return map[string]string{"status": "aborted"}, nil
			},
		},
	}
}
