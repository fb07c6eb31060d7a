package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/okvist/foreman/internal/events"
	"github.com/okvist/foreman/internal/run"
)

// errAbortRequested distinguishes an operator abort from a daemon
// shutdown: only an abort finalizes the run as aborted. On shutdown a
// run keeps its persisted state so the next start can resume it.
var errAbortRequested = errors.New("abort requested")

// Supervisor owns the set of live runs. Each active run gets its own
// goroutine and cancel func; independent runs never block each other.
type Supervisor struct {
	orch  *Orchestrator
	store run.Store
	gates *Gates
	bus   *events.Bus
	log   *slog.Logger

	mu     sync.Mutex
	active map[string]context.CancelCauseFunc
	wg     sync.WaitGroup

	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewSupervisor creates a supervisor around an orchestrator.
func NewSupervisor(orch *Orchestrator, store run.Store, gates *Gates, bus *events.Bus, log *slog.Logger) *Supervisor {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		orch:    orch,
		store:   store,
		gates:   gates,
		bus:     bus,
		log:     log,
		active:  make(map[string]context.CancelCauseFunc),
		baseCtx: ctx,
		cancel:  cancel,
	}
}

// Submit accepts a user request, creates a run, and starts working it.
func (s *Supervisor) Submit(request, source, workflowName string) (*run.Run, error) {
	if strings.TrimSpace(request) == "" {
		return nil, fmt.Errorf("request must not be empty")
	}

	r := run.NewRun(request, source)
	r.Workflow = workflowName
	if err := s.store.Create(r); err != nil {
		return nil, err
	}

	e := events.NewEvent(events.SourceOrchestrator, r.ID, events.RunCreatedPayload{
		RunID:   r.ID,
		Request: request,
	})
	s.bus.Publish(e)
	if err := s.store.AppendEvent(r.ID, e); err != nil {
		s.log.Warn("journal event", "run", r.ID, "error", err)
	}

	// The goroutine owns r from here on; callers get a detached copy.
	snapshot := r.Clone()
	s.start(r)
	return snapshot, nil
}

func (s *Supervisor) start(r *run.Run) {
	ctx, cancel := context.WithCancelCause(s.baseCtx)

	s.mu.Lock()
	s.active[r.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			cancel(nil)
			s.mu.Lock()
			delete(s.active, r.ID)
			s.mu.Unlock()
		}()
		s.orch.Execute(ctx, r)
	}()
}

// Decide delivers an operator decision to a gate by token.
func (s *Supervisor) Decide(token, outcome, feedback string) error {
	return s.gates.Resolve(token, outcome, feedback)
}

// Abort cancels a run. An active run's goroutine finalizes the state;
// a parked run is finalized directly from the store.
func (s *Supervisor) Abort(runID string) error {
	s.mu.Lock()
	cancel, isActive := s.active[runID]
	s.mu.Unlock()

	if isActive {
		// Resolve any open gate first so a gated run sees the
		// cancelled decision, then interrupt the goroutine.
		s.gates.CancelRun(runID)
		cancel(errAbortRequested)
		return nil
	}

	r, err := s.store.Get(runID)
	if err != nil {
		return err
	}
	if r.State.Terminal() {
		return fmt.Errorf("run already finished: %s (%s)", runID, r.State)
	}
	if err := r.Transition(run.StateAborted); err != nil {
		return err
	}
	if err := s.store.Update(r); err != nil {
		return err
	}
	e := events.NewEvent(events.SourceOrchestrator, r.ID, events.RunStateChangedPayload{
		RunID:  r.ID,
		To:     string(run.StateAborted),
		Reason: "aborted by operator",
	})
	s.bus.Publish(e)
	if err := s.store.AppendEvent(r.ID, e); err != nil {
		s.log.Warn("journal event", "run", r.ID, "error", err)
	}
	return nil
}

// Retry resumes a blocked run. The failed task is reset to pending so
// it gets dispatched again.
func (s *Supervisor) Retry(runID string) error {
	s.mu.Lock()
	_, isActive := s.active[runID]
	s.mu.Unlock()
	if isActive {
		return fmt.Errorf("run is still active: %s", runID)
	}

	r, err := s.store.Get(runID)
	if err != nil {
		return err
	}
	if r.State != run.StateBlocked {
		return fmt.Errorf("run is not blocked: %s (%s)", runID, r.State)
	}

	for _, t := range r.Tasks {
		if t.Status == run.TaskFailed {
			t.Status = run.TaskPending
			t.Error = ""
			t.StartedAt = nil
			t.CompletedAt = nil
		}
	}
	r.Error = ""
	if err := r.Transition(run.StateDispatching); err != nil {
		return err
	}
	if err := s.store.Update(r); err != nil {
		return err
	}

	s.start(r)
	return nil
}

// Resume restarts the goroutines of recovered runs that are parked at
// a gate, so their gates get re-announced.
func (s *Supervisor) Resume(runs []*run.Run) {
	for _, r := range runs {
		switch r.State {
		case run.StateAwaitingApproval, run.StateAwaitingConfirmation:
			s.log.Info("resuming run at gate", "run", r.ID, "state", r.State)
			s.start(r)
		}
	}
}

// Get loads a run by ID.
func (s *Supervisor) Get(runID string) (*run.Run, error) {
	return s.store.Get(runID)
}

// List loads all runs.
func (s *Supervisor) List() ([]*run.Run, error) {
	return s.store.List()
}

// Decisions loads a run's decision trail.
func (s *Supervisor) Decisions(runID string) ([]run.Decision, error) {
	return s.store.LoadDecisions(runID)
}

// Events loads a run's event journal.
func (s *Supervisor) Events(runID string) ([]events.Event, error) {
	return s.store.LoadEvents(runID)
}

// PendingGates lists open gates, optionally for one run.
func (s *Supervisor) PendingGates(runID string) []PendingGate {
	return s.gates.Pending(runID)
}

// Shutdown stops every active run goroutine without deciding its
// fate: runs keep their persisted state, so runs parked at a gate
// come back through Recover and Resume on the next start. Waits for
// goroutines to exit or the context to expire.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
