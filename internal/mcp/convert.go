package mcp

import (
	"sort"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// toMCPTool converts a toolDef to an mcp.Tool with JSON Schema.
func toMCPTool(def toolDef) *mcpsdk.Tool {
	props := make(map[string]any, len(def.params))
	var required []string

	for name, p := range def.params {
		props[name] = map[string]any{
			"type":        p.typ,
			"description": p.description,
		}
		if p.required {
			required = append(required, name)
		}
	}

	// Sort required for deterministic output
	sort.Strings(required)

	inputSchema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		inputSchema["required"] = required
	}

	return &mcpsdk.Tool{
		Name:        def.name,
		Description: def.description,
		InputSchema: inputSchema,
	}
}
