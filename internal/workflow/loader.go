package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registry holds the known workflows by name. The default pipeline is
// always present; YAML files in the workflows directory add to or
// override it.
type Registry struct {
	workflows map[string]Workflow
}

// NewRegistry creates a registry seeded with the default workflow.
func NewRegistry() *Registry {
	return &Registry{workflows: map[string]Workflow{DefaultName: Default()}}
}

// LoadDir reads every *.yaml / *.yml file under dir into the registry.
// A missing directory is not an error.
func (r *Registry) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read workflows dir: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read workflow %s: %w", entry.Name(), err)
		}

		var w Workflow
		if err := yaml.Unmarshal(data, &w); err != nil {
			return fmt.Errorf("parse workflow %s: %w", entry.Name(), err)
		}
		if w.Name == "" {
			w.Name = strings.TrimSuffix(entry.Name(), ext)
		}
		if err := w.Validate(); err != nil {
			return fmt.Errorf("workflow %s: %w", entry.Name(), err)
		}
		r.workflows[w.Name] = w
	}
	return nil
}

// Get returns a workflow by name.
func (r *Registry) Get(name string) (Workflow, error) {
	if name == "" {
		name = DefaultName
	}
	w, ok := r.workflows[name]
	if !ok {
		return Workflow{}, fmt.Errorf("workflow not found: %s", name)
	}
	return w, nil
}

// Names lists the registered workflow names.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.workflows))
	for name := range r.workflows {
		names = append(names, name)
	}
	return names
}
