package protocol

import (
	"encoding/json"
	"testing"
)

func TestParseMatchAction_JoinQueue(t *testing.T) {
	input := []byte(`{"action":"join_queue"}`)

	action, msg, err := ParseMatchAction(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action != ActionJoinQueue {
		t.Fatalf("expected action %q, got %q", ActionJoinQueue, action)
	}
	if _, ok := msg.(JoinQueueMsg); !ok {
		t.Fatalf("expected JoinQueueMsg, got %T", msg)
	}
}

func TestParseMatchAction_Respond(t *testing.T) {
	input := []byte(`{"action":"respond","partner":42,"response":"accept"}`)

	action, msg, err := ParseMatchAction(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if action != ActionRespond {
		t.Fatalf("expected action %q, got %q", ActionRespond, action)
	}

	rm, ok := msg.(RespondMsg)
	if !ok {
		t.Fatalf("expected RespondMsg, got %T", msg)
	}
	if rm.Partner != 42 {
		t.Errorf("expected partner 42, got %d", rm.Partner)
	}
	if rm.Response != "accept" {
		t.Errorf("expected response %q, got %q", "accept", rm.Response)
	}
}

func TestParseMatchAction_MissingAction(t *testing.T) {
	input := []byte(`{"foo":"bar"}`)

	if _, _, err := ParseMatchAction(input); err == nil {
		t.Fatal("expected error for missing action field")
	}
}

func TestParseMatchAction_UnknownAction(t *testing.T) {
	input := []byte(`{"action":"nonsense"}`)

	_, _, err := ParseMatchAction(input)
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
}

func TestParseMatchAction_InvalidJSON(t *testing.T) {
	if _, _, err := ParseMatchAction([]byte(`not json`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestNewServerMessage_InjectsType(t *testing.T) {
	data, err := NewServerMessage(TypeMatchFound, MatchFoundMsg{
		Partner:       7,
		PartnerAge:    24,
		PartnerGender: "female",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to decode result: %v", err)
	}
	if decoded["type"] != TypeMatchFound {
		t.Errorf("expected type %q, got %v", TypeMatchFound, decoded["type"])
	}
	if decoded["partner"].(float64) != 7 {
		t.Errorf("expected partner 7, got %v", decoded["partner"])
	}
}

func TestRawSignalFrame(t *testing.T) {
	typ, err := RawSignalFrame([]byte(`{"type":"offer","sdp":"v=0..."}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if typ != "offer" {
		t.Errorf("expected type %q, got %q", "offer", typ)
	}
}

func TestEnvelope_CapturesBothDiscriminators(t *testing.T) {
	var env Envelope
	if err := json.Unmarshal([]byte(`{"action":"join_queue","type":"ignored"}`), &env); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.Action != "join_queue" {
		t.Errorf("expected action %q, got %q", "join_queue", env.Action)
	}
	if env.Type != "ignored" {
		t.Errorf("expected type %q, got %q", "ignored", env.Type)
	}
}
