package signaling

import "testing"

func TestOtherParticipant(t *testing.T) {
	other, err := otherParticipant("100_200", 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other != 200 {
		t.Fatalf("expected 200, got %d", other)
	}

	other, err = otherParticipant("100_200", 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other != 100 {
		t.Fatalf("expected 100, got %d", other)
	}
}

func TestOtherParticipant_NotAMember(t *testing.T) {
	if _, err := otherParticipant("100_200", 999); err == nil {
		t.Fatal("expected error for user not in room")
	}
}

func TestOtherParticipant_Malformed(t *testing.T) {
	cases := []string{"", "100", "100_200_300", "abc_def"}
	for _, roomName := range cases {
		if _, err := otherParticipant(roomName, 100); err == nil {
			t.Fatalf("expected error for malformed room name %q", roomName)
		}
	}
}

func TestRoleFor(t *testing.T) {
	if role := roleFor(100, 200); role != roleOffer {
		t.Fatalf("expected lower id to offer, got %s", role)
	}
	if role := roleFor(200, 100); role != roleAnswer {
		t.Fatalf("expected higher id to answer, got %s", role)
	}
}
