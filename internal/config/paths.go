package config

import (
	"os"
	"path/filepath"
)

// ForemanPath returns the root directory for Foreman data.
// It uses $FOREMAN_PATH if set, otherwise defaults to ~/.foreman.
func ForemanPath() string {
	if v := os.Getenv("FOREMAN_PATH"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".foreman")
	}
	return filepath.Join(home, ".foreman")
}

// ConfigPath returns the path to the Foreman config file.
func ConfigPath() string {
	return filepath.Join(ForemanPath(), "config.jsonc")
}

// DotenvPath returns the path to the Foreman .env file.
func DotenvPath() string {
	return filepath.Join(ForemanPath(), ".env")
}

// RunsPath returns the directory holding run state.
func RunsPath() string {
	return filepath.Join(ForemanPath(), "runs")
}

// DocsPath returns the default artifact namespace directory.
func DocsPath() string {
	return filepath.Join(ForemanPath(), "docs", "subagents")
}

// WorkflowsPath returns the default workflow template directory.
func WorkflowsPath() string {
	return filepath.Join(ForemanPath(), "workflows")
}
