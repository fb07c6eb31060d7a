package orchestrator

import (
	"testing"
	"time"

	"github.com/okvist/foreman/internal/events"
	"github.com/okvist/foreman/internal/run"
)

func TestGateResolve(t *testing.T) {
	g := NewGates()
	token, ch := g.Open("run_1", "task_1", events.GateApproval)

	if err := g.Resolve(token, run.OutcomeApprove, ""); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	select {
	case res := <-ch:
		if res.Outcome != run.OutcomeApprove {
			t.Errorf("outcome: %s", res.Outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("resolution not delivered")
	}
}

func TestGateResolveTwice(t *testing.T) {
	g := NewGates()
	token, _ := g.Open("run_1", "task_1", events.GateApproval)

	if err := g.Resolve(token, run.OutcomeReject, "feedback"); err != nil {
		t.Fatalf("first resolve: %v", err)
	}
	if err := g.Resolve(token, run.OutcomeApprove, ""); err == nil {
		t.Error("second decision on the same token must be rejected")
	}
}

func TestGateResolveUnknownToken(t *testing.T) {
	g := NewGates()
	if err := g.Resolve("garbage", run.OutcomeApprove, ""); err == nil {
		t.Error("expected error for bad token")
	}

	// Valid encoding but never opened.
	token := events.NewGateToken("run_9", "", events.GateApproval).Encode()
	if err := g.Resolve(token, run.OutcomeApprove, ""); err == nil {
		t.Error("expected error for unopened gate")
	}
}

func TestGateOutcomeValidation(t *testing.T) {
	g := NewGates()

	approval, _ := g.Open("run_1", "task_1", events.GateApproval)
	if err := g.Resolve(approval, run.OutcomeConfirm, ""); err == nil {
		t.Error("confirm is not a valid approval outcome")
	}

	confirmation, _ := g.Open("run_1", "", events.GateConfirmation)
	if err := g.Resolve(confirmation, run.OutcomeApprove, ""); err == nil {
		t.Error("approve is not a valid confirmation outcome")
	}
	if err := g.Resolve(confirmation, run.OutcomeConfirm, ""); err != nil {
		t.Errorf("confirm: %v", err)
	}
}

func TestGateCancelRun(t *testing.T) {
	g := NewGates()
	_, ch1 := g.Open("run_1", "task_1", events.GateApproval)
	token2, _ := g.Open("run_2", "task_2", events.GateApproval)

	g.CancelRun("run_1")

	select {
	case res := <-ch1:
		if res.Outcome != run.OutcomeCancelled {
			t.Errorf("outcome: %s", res.Outcome)
		}
	case <-time.After(time.Second):
		t.Fatal("cancellation not delivered")
	}

	// Other runs' gates stay open.
	if err := g.Resolve(token2, run.OutcomeApprove, ""); err != nil {
		t.Errorf("run_2 gate should still be open: %v", err)
	}
}

func TestGatePendingList(t *testing.T) {
	g := NewGates()
	g.Open("run_1", "task_1", events.GateApproval)
	g.Open("run_2", "", events.GateConfirmation)

	if got := len(g.Pending("")); got != 2 {
		t.Errorf("all pending: %d", got)
	}
	one := g.Pending("run_1")
	if len(one) != 1 || one[0].Gate != events.GateApproval {
		t.Errorf("run_1 pending: %+v", one)
	}
}
