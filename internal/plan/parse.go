package plan

import (
	"fmt"
	"regexp"
	"strings"
)

// minSteps is the minimum number of steps for a parsed plan to be valid.
const minSteps = 2

// numberedItemRe matches numbered list items like "1. " or "2) ".
var numberedItemRe = regexp.MustCompile(`(?m)^(\d+)[.)]\s+(.+)`)

// headerStepRe matches markdown headers like "### Step 1: Title" or "### 1. Title".
var headerStepRe = regexp.MustCompile(`(?m)^###\s+(?:Step\s+)?(\d+)[.:]?\s*(.+)`)

// ParseMarkdown extracts ordered steps from a markdown plan document.
// Header-style steps (### Step N: Title) win over numbered list items.
// Returns an error when fewer than two recognizable steps are found.
func ParseMarkdown(markdown string) ([]Step, error) {
	if steps := matchSteps(headerStepRe, markdown); len(steps) >= minSteps {
		return steps, nil
	}
	if steps := matchSteps(numberedItemRe, markdown); len(steps) >= minSteps {
		return steps, nil
	}
	return nil, fmt.Errorf("no recognizable plan: need at least %d steps", minSteps)
}

func matchSteps(re *regexp.Regexp, markdown string) []Step {
	matches := re.FindAllStringSubmatchIndex(markdown, -1)
	if len(matches) == 0 {
		return nil
	}

	var steps []Step
	for i, match := range matches {
		title := strings.TrimSpace(markdown[match[4]:match[5]])

		// Detail: text between this step and the next (or end of document).
		detailStart := match[1]
		detailEnd := len(markdown)
		if i+1 < len(matches) {
			detailEnd = matches[i+1][0]
		}
		detail := strings.TrimSpace(markdown[detailStart:detailEnd])

		steps = append(steps, Step{
			ID:     fmt.Sprintf("step_%d", i+1),
			Title:  title,
			Detail: detail,
		})
	}
	return steps
}
