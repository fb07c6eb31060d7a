package config

import "time"

// Config is the root configuration for Foreman.
type Config struct {
	Gateway      GatewayConfig      `json:"gateway"`
	Models       ModelsConfig       `json:"models"`
	Events       EventsConfig       `json:"events"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
	Dispatch     DispatchConfig     `json:"dispatch"`
	Workflows    WorkflowsConfig    `json:"workflows"`
	Schedules    []ScheduleConfig   `json:"schedules,omitempty"`
}

// GatewayConfig holds the gateway server settings.
type GatewayConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// ModelsConfig holds model provider configuration for the LLM subagent runner.
type ModelsConfig struct {
	Default   string                    `json:"default"`
	Providers map[string]ProviderConfig `json:"providers"`
}

// ProviderConfig configures a single LLM provider.
type ProviderConfig struct {
	Driver    string         `json:"driver"` // "anthropic", "openai", "ollama"
	Model     string         `json:"model"`
	BaseURL   string         `json:"base_url,omitempty"`
	APIKey    string         `json:"api_key,omitempty"` // plain, ${{ .Env.VAR }} template, or ENC[age:...] blob
	MaxTokens int            `json:"max_tokens,omitempty"`
	Timeout   Duration       `json:"timeout,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

// EventsConfig holds event bus settings.
type EventsConfig struct {
	BufferSize int    `json:"buffer_size"`
	LogLevel   string `json:"log_level"`
}

// OrchestratorConfig holds run execution settings.
type OrchestratorConfig struct {
	// Runner selects the subagent backend: "llm" or "process".
	Runner string `json:"runner"`
	// ProcessCommand is the argv template for the process runner.
	ProcessCommand []string `json:"process_command,omitempty"`
	// DocsDir is the artifact namespace. Prompts reference artifacts by
	// paths under this directory.
	DocsDir string `json:"docs_dir"`
	// MaxPlanRevisions bounds reject-with-feedback cycles on a plan gate.
	MaxPlanRevisions int `json:"max_plan_revisions"`
	// MaxIterations bounds the ReAct loop of one LLM subagent dispatch.
	MaxIterations int `json:"max_iterations"`
	// TaskTimeout bounds one subagent execution. Zero means no limit.
	TaskTimeout Duration `json:"task_timeout,omitempty"`
}

// DispatchConfig enumerates the structural rules applied to every dispatch
// before it reaches a subagent. Rules are keyed by task kind; the "*" entry
// applies to kinds without an explicit rule.
type DispatchConfig struct {
	Rules map[string]DispatchRule `json:"rules,omitempty"`
}

// DispatchRule lists required and disallowed dispatch fields for one kind.
type DispatchRule struct {
	Required   []string `json:"required,omitempty"`
	Disallowed []string `json:"disallowed,omitempty"`
}

// WorkflowsConfig configures task decomposition templates.
type WorkflowsConfig struct {
	Dir string `json:"dir,omitempty"` // template directory (default: $FOREMAN_PATH/workflows)
}

// ScheduleConfig submits a recurring request on a cron schedule.
type ScheduleConfig struct {
	Name     string `json:"name"`
	Cron     string `json:"cron"`
	Request  string `json:"request"`
	Workflow string `json:"workflow,omitempty"`
}

// Duration wraps time.Duration for JSON unmarshaling.
type Duration time.Duration

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	// Remove quotes
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Duration(d).String() + `"`), nil
}
