package config

import (
	"fmt"
	"os"
	"regexp"

	"github.com/marcozac/go-jsonc"
)

var envTemplateRe = regexp.MustCompile(`\$\{\{\s*\.Env\.(\w+)\s*\}\}`)

// Load reads a JSONC config file, strips comments, expands ${{ .Env.VAR }}
// templates, unmarshals it into Config, and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variable templates (before stripping, since templates are in strings)
	expanded := expandEnvTemplates(string(data))

	var cfg Config
	if err := jsonc.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

// LoadOrDefault loads the config file if it exists, otherwise returns defaults.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := &Config{}
		applyDefaults(cfg)
		return cfg, nil
	}
	return Load(path)
}

// expandEnvTemplates replaces ${{ .Env.VAR }} with the env var value.
func expandEnvTemplates(s string) string {
	return envTemplateRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envTemplateRe.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}
		return os.Getenv(parts[1])
	})
}

// applyDefaults fills in zero-value fields with sensible defaults.
func applyDefaults(cfg *Config) {
	if cfg.Gateway.Host == "" {
		cfg.Gateway.Host = "127.0.0.1"
	}
	if cfg.Gateway.Port == 0 {
		cfg.Gateway.Port = 18730
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = 1024
	}
	if cfg.Events.LogLevel == "" {
		cfg.Events.LogLevel = "info"
	}
	if cfg.Orchestrator.Runner == "" {
		cfg.Orchestrator.Runner = "llm"
	}
	if cfg.Orchestrator.DocsDir == "" {
		cfg.Orchestrator.DocsDir = DocsPath()
	}
	if cfg.Orchestrator.MaxPlanRevisions == 0 {
		cfg.Orchestrator.MaxPlanRevisions = 3
	}
	if cfg.Orchestrator.MaxIterations == 0 {
		cfg.Orchestrator.MaxIterations = 30
	}
	if cfg.Workflows.Dir == "" {
		cfg.Workflows.Dir = WorkflowsPath()
	}
	if cfg.Dispatch.Rules == nil {
		cfg.Dispatch.Rules = DefaultDispatchRules()
	}
}

// DefaultDispatchRules returns the baseline dispatch validation table:
// every kind requires description and prompt, and may not name an explicit
// execution-context identity.
func DefaultDispatchRules() map[string]DispatchRule {
	return map[string]DispatchRule{
		"*": {
			Required:   []string{"description", "prompt"},
			Disallowed: []string{"agent"},
		},
	}
}

// RuleFor returns the dispatch rule for a task kind, falling back to "*".
func (d DispatchConfig) RuleFor(kind string) DispatchRule {
	if rule, ok := d.Rules[kind]; ok {
		return rule
	}
	return d.Rules["*"]
}
