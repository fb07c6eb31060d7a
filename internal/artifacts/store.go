// Package artifacts persists subagent outputs under the shared docs
// tree so later tasks and the operator can read them.
package artifacts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/okvist/foreman/internal/storage/dirstore"
)

// Entry is one recorded artifact.
type Entry struct {
	Path      string    `json:"path"`
	RunID     string    `json:"run_id"`
	TaskID    string    `json:"task_id"`
	SHA256    string    `json:"sha256"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Store writes artifacts under <root>/<namespace>/ and journals an
// index per namespace. Filenames are slugged from the artifact title.
type Store struct {
	ds   *dirstore.DirStore
	root string
}

// NewStore creates an artifact store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{ds: dirstore.New(dir, "artifact"), root: dir}
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a title into a safe filename stem.
func Slug(title string) string {
	s := slugRe.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		s = "artifact"
	}
	if len(s) > 64 {
		s = s[:64]
	}
	return s
}

// Write stores content as <namespace>/<slug>.md, records it in the
// namespace index, and returns the path relative to the store root.
func (s *Store) Write(namespace, title, runID, taskID string, content []byte) (string, error) {
	if namespace == "" {
		return "", fmt.Errorf("artifact namespace required")
	}
	if err := s.ds.EnsureDir(namespace); err != nil {
		return "", err
	}

	name := Slug(title) + ".md"
	if err := s.ds.WriteFileAtomic(namespace, name, content); err != nil {
		return "", err
	}

	sum := sha256.Sum256(content)
	rel := filepath.Join(namespace, name)
	entry := Entry{
		Path:      rel,
		RunID:     runID,
		TaskID:    taskID,
		SHA256:    hex.EncodeToString(sum[:]),
		Size:      len(content),
		CreatedAt: time.Now(),
	}
	if err := s.ds.AppendJSONL(namespace, "index.jsonl", entry); err != nil {
		return "", err
	}
	return rel, nil
}

// Read returns an artifact's content by its relative path.
func (s *Store) Read(rel string) ([]byte, error) {
	clean := filepath.Clean(rel)
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("artifact path escapes store: %s", rel)
	}
	data, err := os.ReadFile(filepath.Join(s.root, clean))
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return data, nil
}

// Index returns the recorded entries for a namespace, oldest first.
func (s *Store) Index(namespace string) ([]Entry, error) {
	return dirstore.LoadJSONL[Entry](s.ds, namespace, "index.jsonl")
}

// Root returns the store root directory.
func (s *Store) Root() string { return s.root }
