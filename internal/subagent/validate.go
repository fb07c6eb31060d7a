package subagent

import (
	"fmt"
	"strings"

	"github.com/okvist/foreman/internal/config"
)

// Warning records a disallowed dispatch field that was stripped. The
// handoff proceeds; the warning is surfaced on the event stream.
type Warning struct {
	Field   string
	Message string
}

// Validate checks a dispatch against the rule for its kind. Missing
// required fields reject the dispatch synchronously. Disallowed fields
// that carry a value are cleared and reported as warnings.
func Validate(d Dispatch, rule config.DispatchRule) (Dispatch, []Warning, error) {
	for _, field := range rule.Required {
		if strings.TrimSpace(d.Field(field)) == "" {
			return d, nil, &MissingFieldError{Field: field}
		}
	}

	var warnings []Warning
	for _, field := range rule.Disallowed {
		if d.Field(field) == "" {
			continue
		}
		warnings = append(warnings, Warning{
			Field:   field,
			Message: fmt.Sprintf("dispatch parameter %q is not allowed and was removed", field),
		})
		d = clearField(d, field)
	}

	return d, warnings, nil
}

func clearField(d Dispatch, name string) Dispatch {
	switch name {
	case "agent":
		d.Agent = ""
	case "description":
		d.Description = ""
	case "prompt":
		d.Prompt = ""
	}
	return d
}
