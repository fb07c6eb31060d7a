package ws

import (
	"encoding/json"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	params, _ := json.Marshal(map[string]string{"request": "ship it"})
	f := Frame{
		Type:   FrameTypeRequest,
		ID:     "42",
		Method: string(MethodSubmitRequest),
		Params: params,
	}

	data, err := MarshalFrame(f)
	if err != nil {
		t.Fatalf("MarshalFrame: %v", err)
	}

	got, err := UnmarshalFrame(data)
	if err != nil {
		t.Fatalf("UnmarshalFrame: %v", err)
	}
	if got.Type != FrameTypeRequest || got.ID != "42" || got.Method != string(MethodSubmitRequest) {
		t.Fatalf("unexpected frame %+v", got)
	}
}

func TestNewEventFrame(t *testing.T) {
	f, err := NewEventFrame("run.state", "run_abc", map[string]string{"to": "running"})
	if err != nil {
		t.Fatalf("NewEventFrame: %v", err)
	}
	if f.Type != FrameTypeEvent || f.Event != "run.state" || f.RunID != "run_abc" {
		t.Fatalf("unexpected frame %+v", f)
	}

	var payload map[string]string
	if err := json.Unmarshal(f.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload["to"] != "running" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestNewResponseFrameError(t *testing.T) {
	f, err := NewResponseFrame("7", false, nil, "unknown method")
	if err != nil {
		t.Fatalf("NewResponseFrame: %v", err)
	}
	if f.OK == nil || *f.OK {
		t.Fatal("expected ok=false")
	}
	if f.Error != "unknown method" {
		t.Fatalf("unexpected error %q", f.Error)
	}
	if len(f.Payload) != 0 {
		t.Fatalf("expected no payload, got %s", f.Payload)
	}
}
