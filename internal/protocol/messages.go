// Package protocol defines the WebSocket message types and structures used for
// communication between the client and server. All messages are serialized as
// JSON and follow a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants for the matchmaking session (ws/match/)
// ---------------------------------------------------------------------------

// Client -> Server action types for the matchmaking session.
const (
	ActionJoinQueue  = "join_queue"
	ActionLeaveQueue = "leave_queue"
	ActionRespond    = "respond"
)

// Server -> Client frame types for the matchmaking session.
const (
	TypeMatchFound      = "match_found"
	TypeMatchResponse   = "match_response"
	TypeMatchSuccess    = "match_success"
	TypeMatchCancelled  = "match_cancelled"
	TypeGemError        = "gem_error"
	TypeForceDisconnect = "force_disconnect"
)

// ---------------------------------------------------------------------------
// Message type constants for the signaling session (ws/voicechat/{room}/)
// ---------------------------------------------------------------------------

// TypeRoleAssignment is sent by the signaling coordinator immediately after
// join, telling the client which side of the offer/answer exchange it plays.
const TypeRoleAssignment = "role_assignment"

// Signaling frame types relayed opaquely between the two room participants.
// The coordinator does not validate these; they are listed for documentation.
const (
	SignalOffer        = "offer"
	SignalAnswer       = "answer"
	SignalICECandidate = "ice-candidate"
)

// ---------------------------------------------------------------------------
// Envelope is used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct. The matchmaking session keys the
// discriminator field "action"; the signaling session keys it "type" and
// otherwise treats the payload as opaque. Both are captured here.
type Envelope struct {
	Action string          `json:"action"`
	Type   string          `json:"type"`
	Raw    json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts the "action"/"type" discriminator fields so the
// rest of the payload can be decoded later into the appropriate concrete
// struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Action string `json:"action"`
		Type   string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	e.Action = partial.Action
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs (matchmaking session)
// ---------------------------------------------------------------------------

// JoinQueueMsg is sent by the client to enter the matching queue.
type JoinQueueMsg struct {
	Action string `json:"action"`
}

// LeaveQueueMsg is sent by the client to leave the matching queue.
type LeaveQueueMsg struct {
	Action string `json:"action"`
}

// RespondMsg is sent by the client to accept or reject a proposed match.
type RespondMsg struct {
	Action   string `json:"action"`
	Partner  int64  `json:"partner"`
	Response string `json:"response"` // "accept" | "reject"
}

// ---------------------------------------------------------------------------
// Server -> Client message structs (matchmaking session)
// ---------------------------------------------------------------------------

// MatchFoundMsg announces a proposed partner to both sides of a newly
// created match record.
type MatchFoundMsg struct {
	Type            string `json:"type"`
	Partner         int64  `json:"partner"`
	PartnerImageURL string `json:"partner_image_url"`
	PartnerAge      int    `json:"partner_age"`
	PartnerGender   string `json:"partner_gender"`
}

// MatchResponseMsg echoes a response decision back to the responder, or
// relays the partner's decision via the fan-out bus.
type MatchResponseMsg struct {
	Type   string `json:"type"`
	Result string `json:"result"` // "accept" | "reject"
	From   int64  `json:"from,omitempty"`
}

// MatchSuccessMsg announces the signaling room name to both participants
// after mutual acceptance.
type MatchSuccessMsg struct {
	Type string `json:"type"`
	Room string `json:"room"`
}

// MatchCancelledMsg notifies a user that their match or room partner is
// gone (disconnected, offline, or room torn down).
type MatchCancelledMsg struct {
	Type string `json:"type"`
	From string `json:"from"`
}

// GemErrorMsg reports a wallet failure encountered while creating a match.
type GemErrorMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"` // "not_enough_gems" | "no_wallet"
}

// ForceDisconnectMsg instructs the client to close the connection, either
// because a newer session for the same user logged in, or because the
// matched peer's voice session ended.
type ForceDisconnectMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

// ---------------------------------------------------------------------------
// Per-user fan-out bus events (§4.H "fan-out bus events consumed")
// ---------------------------------------------------------------------------

// Bus event type discriminators carried on a user's NATS fan-out channel.
const (
	BusNotifyMatch        = "notify_match"
	BusMatchCancelled     = "match_cancelled"
	BusMatchResult        = "match_result"
	BusMatchSuccessNotify = "match_success_notification"
	BusForceDisconnect    = "force_disconnect"
)

// BusEvent is the envelope published to a user's fan-out channel. Only the
// fields relevant to Type are populated by the sender.
type BusEvent struct {
	Type            string `json:"type"`
	Partner         int64  `json:"partner,omitempty"`
	PartnerAge      int    `json:"partner_age,omitempty"`
	PartnerGender   string `json:"partner_gender,omitempty"`
	PartnerImageURL string `json:"partner_image_url,omitempty"`
	From            string `json:"from,omitempty"`
	Result          string `json:"result,omitempty"`
	Room            string `json:"room,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs (signaling session)
// ---------------------------------------------------------------------------

// RoleAssignmentMsg tells a signaling participant which WebRTC role it plays.
type RoleAssignmentMsg struct {
	Type string `json:"type"`
	Role string `json:"role"` // "offer" | "answer"
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseMatchAction parses raw bytes from the matchmaking socket into a typed
// client action. It returns the action string, the decoded struct, and any
// error. Per the protocol error policy, callers log and drop on error rather
// than replying with a structured error frame.
func ParseMatchAction(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}
	if env.Action == "" {
		return "", nil, fmt.Errorf("protocol: missing \"action\" field")
	}

	var (
		msg interface{}
		err error
	)

	switch env.Action {
	case ActionJoinQueue:
		var m JoinQueueMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case ActionLeaveQueue:
		var m LeaveQueueMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case ActionRespond:
		var m RespondMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Action, nil, fmt.Errorf("protocol: unknown action: %q", env.Action)
	}

	if err != nil {
		return env.Action, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Action, err)
	}
	return env.Action, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs above; this function marshals
// it to JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}

// RawSignalFrame decodes an opaque signaling frame just far enough to read
// its "type" field for logging; the payload is otherwise relayed unchanged.
func RawSignalFrame(data []byte) (string, error) {
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return "", fmt.Errorf("protocol: invalid signaling frame: %w", err)
	}
	return partial.Type, nil
}
