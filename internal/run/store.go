package run

import "github.com/okvist/foreman/internal/events"

// Store persists runs, their decision trail, and their event journal.
type Store interface {
	Create(r *Run) error
	Get(id string) (*Run, error)
	List() ([]*Run, error)
	Update(r *Run) error
	Delete(id string) error

	AppendDecision(runID string, d Decision) error
	LoadDecisions(runID string) ([]Decision, error)

	AppendEvent(runID string, e events.Event) error
	LoadEvents(runID string) ([]events.Event, error)
}
