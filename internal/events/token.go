package events

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GateKind distinguishes the two operator gates.
type GateKind string

const (
	GateApproval     GateKind = "approval"
	GateConfirmation GateKind = "confirmation"
)

// GateToken identifies a single pending operator decision. It is issued
// when a gate opens and must be presented with the decision.
type GateToken struct {
	RunID    string   `json:"run_id"`
	TaskID   string   `json:"task_id,omitempty"`
	Gate     GateKind `json:"gate"`
	Nonce    string   `json:"nonce"`
	IssuedAt int64    `json:"issued_at"`
}

// NewGateToken issues a fresh token for a gate on a run.
func NewGateToken(runID, taskID string, gate GateKind) GateToken {
	return GateToken{
		RunID:    runID,
		TaskID:   taskID,
		Gate:     gate,
		Nonce:    uuid.NewString()[:8],
		IssuedAt: time.Now().Unix(),
	}
}

// Encode serializes the token to an opaque URL-safe string.
func (t GateToken) Encode() string {
	data, _ := json.Marshal(t)
	return base64.URLEncoding.EncodeToString(data)
}

// DecodeGateToken parses an encoded gate token.
func DecodeGateToken(s string) (GateToken, error) {
	var t GateToken
	data, err := base64.URLEncoding.DecodeString(s)
	if err != nil {
		return t, fmt.Errorf("decode gate token: %w", err)
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("parse gate token: %w", err)
	}
	if t.RunID == "" || t.Nonce == "" {
		return t, fmt.Errorf("gate token missing run id or nonce")
	}
	return t, nil
}
