package run

import (
	"fmt"
	"sort"

	"github.com/okvist/foreman/internal/events"
	"github.com/okvist/foreman/internal/storage/dirstore"
)

// FileStore persists runs under <root>/<run_id>/ with a meta.json plus
// decisions.jsonl and events.jsonl journals.
type FileStore struct {
	ds *dirstore.DirStore
}

// NewFileStore creates a file-backed run store rooted at baseDir.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{ds: dirstore.New(baseDir, "run")}
}

func (s *FileStore) Create(r *Run) error {
	s.ds.Lock()
	defer s.ds.Unlock()

	if s.ds.Exists(r.ID) {
		return fmt.Errorf("run already exists: %s", r.ID)
	}
	if err := s.ds.EnsureDir(r.ID); err != nil {
		return err
	}
	return s.ds.WriteMeta(r.ID, r)
}

func (s *FileStore) Get(id string) (*Run, error) {
	s.ds.RLock()
	defer s.ds.RUnlock()

	var r Run
	if err := s.ds.ReadMeta(id, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *FileStore) List() ([]*Run, error) {
	s.ds.RLock()
	defer s.ds.RUnlock()

	ids, err := s.ds.ListDirs()
	if err != nil {
		return nil, err
	}

	var runs []*Run
	for _, id := range ids {
		var r Run
		if err := s.ds.ReadMeta(id, &r); err != nil {
			continue
		}
		runs = append(runs, &r)
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].CreatedAt.Before(runs[j].CreatedAt)
	})
	return runs, nil
}

func (s *FileStore) Update(r *Run) error {
	s.ds.Lock()
	defer s.ds.Unlock()

	if !s.ds.Exists(r.ID) {
		return fmt.Errorf("run not found: %s", r.ID)
	}
	return s.ds.WriteMeta(r.ID, r)
}

func (s *FileStore) Delete(id string) error {
	s.ds.Lock()
	defer s.ds.Unlock()
	return s.ds.RemoveDir(id)
}

func (s *FileStore) AppendDecision(runID string, d Decision) error {
	return s.ds.AppendJSONL(runID, "decisions.jsonl", d)
}

func (s *FileStore) LoadDecisions(runID string) ([]Decision, error) {
	return dirstore.LoadJSONL[Decision](s.ds, runID, "decisions.jsonl")
}

func (s *FileStore) AppendEvent(runID string, e events.Event) error {
	return s.ds.AppendJSONL(runID, "events.jsonl", e)
}

func (s *FileStore) LoadEvents(runID string) ([]events.Event, error) {
	return dirstore.LoadJSONL[events.Event](s.ds, runID, "events.jsonl")
}
