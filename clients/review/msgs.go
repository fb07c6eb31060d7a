package review

import (
	"encoding/json"

	"github.com/okvist/foreman/internal/events"
	wsprotocol "github.com/okvist/foreman/internal/gateway/ws"
)

// GateMsg carries a gate request event into the bubbletea loop.
type GateMsg struct {
	Kind     events.GateKind
	Token    string
	RunID    string
	Revision int
	Body     string // plan or summary markdown
	Delta    string
}

// ResolvedMsg is delivered when any gate is resolved, possibly by
// another client.
type ResolvedMsg struct {
	Token   string
	Outcome string
}

// DisconnectedMsg signals that the gateway connection dropped.
type DisconnectedMsg struct {
	Err error
}

// translateFrame maps a gateway event frame onto a bubbletea message.
// Frames that are not gate traffic produce nil.
func translateFrame(frame wsprotocol.Frame) any {
	if frame.Type != wsprotocol.FrameTypeEvent {
		return nil
	}

	var event events.Event
	if err := json.Unmarshal(frame.Payload, &event); err != nil {
		return nil
	}

	switch event.Type {
	case events.EventApprovalRequested:
		p, err := events.ExtractPayload[events.ApprovalRequestedPayload](event)
		if err != nil {
			return nil
		}
		return GateMsg{
			Kind:     events.GateApproval,
			Token:    p.Token,
			RunID:    p.RunID,
			Revision: p.Revision,
			Body:     p.Plan,
			Delta:    p.Delta,
		}

	case events.EventConfirmationRequested:
		p, err := events.ExtractPayload[events.ConfirmationRequestedPayload](event)
		if err != nil {
			return nil
		}
		return GateMsg{
			Kind:  events.GateConfirmation,
			Token: p.Token,
			RunID: p.RunID,
			Body:  p.Summary,
		}

	case events.EventApprovalResolved:
		p, err := events.ExtractPayload[events.ApprovalResolvedPayload](event)
		if err != nil {
			return nil
		}
		return ResolvedMsg{Token: p.Token, Outcome: p.Outcome}

	case events.EventConfirmationResolved:
		p, err := events.ExtractPayload[events.ConfirmationResolvedPayload](event)
		if err != nil {
			return nil
		}
		return ResolvedMsg{Token: p.Token, Outcome: p.Outcome}
	}

	return nil
}
