package ws

import "encoding/json"

// Envelope wraps every WebSocket message with a type discriminator. Payloads
// are the core/events types, which already carry json tags.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message type constants, server to client.
const (
	TypeSnapshot = "status:snapshot"
	TypeDecision = "decision:update"
	TypePrices   = "prices:update"
	TypeOverride = "override:update"
	TypeSession  = "session:update"
)

// NewEnvelope marshals the payload into a typed envelope.
func NewEnvelope(msgType string, payload any) ([]byte, error) {
	var raw json.RawMessage
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, err
		}
	}
	return json.Marshal(Envelope{Type: msgType, Payload: raw})
}
