// Package tools provides the invokable tools handed to subagent
// workers: filesystem access, glob search, and command execution.
package tools

import (
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
)

// ParamSpec describes one tool parameter.
type ParamSpec struct {
	Type        string
	Description string
	Required    bool
	Enum        []string
}

// Spec describes a tool for registration.
type Spec struct {
	Name        string
	Description string
	Parameters  map[string]ParamSpec
}

// ToolInfo converts a Spec to the schema the agent framework expects.
func (s *Spec) ToolInfo() *schema.ToolInfo {
	info := &schema.ToolInfo{
		Name: s.Name,
		Desc: s.Description,
	}
	if len(s.Parameters) > 0 {
		params := make(map[string]*schema.ParameterInfo, len(s.Parameters))
		for name, p := range s.Parameters {
			params[name] = &schema.ParameterInfo{
				Type:     paramType(p.Type),
				Desc:     p.Description,
				Required: p.Required,
				Enum:     p.Enum,
			}
		}
		info.ParamsOneOf = schema.NewParamsOneOfByParams(params)
	}
	return info
}

func paramType(t string) schema.DataType {
	switch t {
	case "string":
		return schema.String
	case "number":
		return schema.Number
	case "integer":
		return schema.Integer
	case "boolean":
		return schema.Boolean
	case "array":
		return schema.Array
	case "object":
		return schema.Object
	default:
		return schema.String
	}
}

// Registry holds the available tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]tool.InvokableTool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]tool.InvokableTool)}
}

// Register adds a tool under its declared name.
func (r *Registry) Register(name string, t tool.InvokableTool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (tool.InvokableTool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return t, nil
}

// All returns every registered tool, sorted by name.
func (r *Registry) All() []tool.InvokableTool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]tool.InvokableTool, 0, len(names))
	for _, name := range names {
		out = append(out, r.tools[name])
	}
	return out
}

// Names lists the registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry builds a registry with the standard worker toolchain
// rooted at workDir.
func DefaultRegistry(workDir string) *Registry {
	r := NewRegistry()
	r.Register("read_file", NewReadFileTool(workDir))
	r.Register("write_file", NewWriteFileTool(workDir))
	r.Register("list_dir", NewListDirTool(workDir))
	r.Register("glob", NewGlobTool(workDir))
	r.Register("run_command", NewRunCommandTool(workDir))
	return r
}
