package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// AppendChangelog appends a dated entry to CHANGELOG.md at the store
// root. Implementation tasks record what they changed here so the
// history reads chronologically.
func (s *Store) AppendChangelog(runID, summary string) error {
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("create docs root: %w", err)
	}

	path := filepath.Join(s.root, "CHANGELOG.md")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open changelog: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("- %s [%s] %s\n", time.Now().Format("2006-01-02"), runID, summary)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write changelog: %w", err)
	}
	return nil
}
