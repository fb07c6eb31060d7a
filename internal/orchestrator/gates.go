// Package orchestrator drives runs through decomposition, delegation,
// plan review, and final confirmation.
package orchestrator

import (
	"fmt"
	"sync"
	"time"

	"github.com/okvist/foreman/internal/events"
	"github.com/okvist/foreman/internal/run"
)

// Resolution is an operator's verdict at a gate.
type Resolution struct {
	Outcome  string
	Feedback string
}

// PendingGate describes one open gate awaiting a decision.
type PendingGate struct {
	Token    string          `json:"token"`
	Gate     events.GateKind `json:"gate"`
	RunID    string          `json:"run_id"`
	TaskID   string          `json:"task_id,omitempty"`
	OpenedAt time.Time       `json:"opened_at"`
}

type pendingGate struct {
	info PendingGate
	ch   chan Resolution
}

// Gates tracks open operator gates by token. A gate resolves exactly
// once; a second decision on the same token is rejected.
type Gates struct {
	mu      sync.Mutex
	pending map[string]*pendingGate
}

// NewGates creates an empty gate registry.
func NewGates() *Gates {
	return &Gates{pending: make(map[string]*pendingGate)}
}

// Open registers a gate and returns its token plus the channel the
// resolution arrives on.
func (g *Gates) Open(runID, taskID string, kind events.GateKind) (string, <-chan Resolution) {
	token := events.NewGateToken(runID, taskID, kind).Encode()
	pg := &pendingGate{
		info: PendingGate{
			Token:    token,
			Gate:     kind,
			RunID:    runID,
			TaskID:   taskID,
			OpenedAt: time.Now(),
		},
		ch: make(chan Resolution, 1),
	}

	g.mu.Lock()
	g.pending[token] = pg
	g.mu.Unlock()

	return token, pg.ch
}

// Resolve delivers an operator decision to the gate behind token.
func (g *Gates) Resolve(token, outcome, feedback string) error {
	if err := validOutcome(token, outcome); err != nil {
		return err
	}

	g.mu.Lock()
	pg, ok := g.pending[token]
	if ok {
		delete(g.pending, token)
	}
	g.mu.Unlock()

	if !ok {
		return fmt.Errorf("no pending gate for token")
	}

	pg.ch <- Resolution{Outcome: outcome, Feedback: feedback}
	return nil
}

func validOutcome(token, outcome string) error {
	t, err := events.DecodeGateToken(token)
	if err != nil {
		return err
	}
	switch t.Gate {
	case events.GateApproval:
		if outcome != run.OutcomeApprove && outcome != run.OutcomeReject {
			return fmt.Errorf("invalid approval outcome: %s", outcome)
		}
	case events.GateConfirmation:
		if outcome != run.OutcomeConfirm && outcome != run.OutcomeReject {
			return fmt.Errorf("invalid confirmation outcome: %s", outcome)
		}
	default:
		return fmt.Errorf("unknown gate kind: %s", t.Gate)
	}
	return nil
}

// CancelRun resolves every pending gate of a run with a cancelled
// outcome. Used on abort so nothing stays parked forever.
func (g *Gates) CancelRun(runID string) {
	g.mu.Lock()
	var cancelled []*pendingGate
	for token, pg := range g.pending {
		if pg.info.RunID == runID {
			cancelled = append(cancelled, pg)
			delete(g.pending, token)
		}
	}
	g.mu.Unlock()

	for _, pg := range cancelled {
		pg.ch <- Resolution{Outcome: run.OutcomeCancelled}
	}
}

// Pending lists the open gates, optionally filtered by run ID.
func (g *Gates) Pending(runID string) []PendingGate {
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []PendingGate
	for _, pg := range g.pending {
		if runID == "" || pg.info.RunID == runID {
			out = append(out, pg.info)
		}
	}
	return out
}
