// Package signaling implements the WebRTC signaling coordinator that backs
// the ws/voicechat/{room}/ connections (§4.J). It assigns the offer/answer
// role deterministically from the two participant ids, relays signaling
// frames opaquely between them, and tears the room down when either side
// disconnects, grounded on the voice-chat signaling consumer's connect/
// receive/disconnect handlers.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/whisper/voicematch/internal/messaging"
	"github.com/whisper/voicematch/internal/presence"
	"github.com/whisper/voicematch/internal/protocol"
	"github.com/whisper/voicematch/internal/room"
	"github.com/whisper/voicematch/internal/ws"
)

const (
	roleOffer  = "offer"
	roleAnswer = "answer"
)

// Coordinator owns the signaling session lifecycle for one server instance.
// It relays frames through NATS rather than the local connection table so
// the two participants in a room can be hosted on different app instances.
type Coordinator struct {
	server   *ws.Server
	nats     *messaging.NATSClient
	presence *presence.Store
	rooms    *room.Store
}

// NewCoordinator wires a Coordinator to the transport, bus, and stores it needs.
func NewCoordinator(server *ws.Server, nc *messaging.NATSClient, p *presence.Store, r *room.Store) *Coordinator {
	return &Coordinator{server: server, nats: nc, presence: p, rooms: r}
}

// otherParticipant parses a canonical "{min}_{max}" room name and returns the
// id on the opposite side of self, per the room-name convention the session
// supervisor uses when it announces match_success (§4.G, §4.J).
func otherParticipant(roomName string, self int64) (int64, error) {
	parts := strings.SplitN(roomName, "_", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("signaling: malformed room name %q", roomName)
	}
	a, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("signaling: malformed room name %q: %w", roomName, err)
	}
	b, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("signaling: malformed room name %q: %w", roomName, err)
	}
	if a == self {
		return b, nil
	}
	if b == self {
		return a, nil
	}
	return 0, fmt.Errorf("signaling: user %d is not a participant of room %q", self, roomName)
}

// roleFor returns the offer/answer role assignment for self relative to
// other. Lower user id always offers.
func roleFor(self, other int64) string {
	if self < other {
		return roleOffer
	}
	return roleAnswer
}

// busEnvelope is the wire shape published on a room's NATS subject. Sender
// carries the originating connection's user id so a participant's own
// subscription can skip frames it sent itself, mirroring the consumer's
// sender-channel self-skip check.
type busEnvelope struct {
	Sender  int64  `json:"sender"`
	Payload []byte `json:"payload"`
}

// OnConnect is wired as the ws.Server connect hook for KindSignaling
// connections. It resolves the partner from the room name, assigns roles,
// subscribes this connection to the room's bus subject, and sends the
// self role assignment immediately.
func (c *Coordinator) OnConnect(conn *ws.Connection) bool {
	other, err := otherParticipant(conn.Room, conn.UserID)
	if err != nil {
		log.Printf("signaling: connect rejected user=%d room=%s: %v", conn.UserID, conn.Room, err)
		return false
	}

	err = c.nats.SubscribeRoom(conn.Room, conn.ID, func(data []byte) {
		c.deliver(conn, data)
	})
	if err != nil {
		log.Printf("signaling: subscribe room=%s user=%d failed: %v", conn.Room, conn.UserID, err)
		return false
	}

	selfRole := roleFor(conn.UserID, other)
	msg, err := protocol.NewServerMessage(protocol.TypeRoleAssignment, protocol.RoleAssignmentMsg{Role: selfRole})
	if err != nil {
		log.Printf("signaling: marshal role assignment failed: %v", err)
		c.nats.UnsubscribeRoom(conn.ID)
		return false
	}
	if err := conn.WriteMessage(msg); err != nil {
		log.Printf("signaling: send role assignment user=%d: %v", conn.UserID, err)
	}

	otherMsg, err := protocol.NewServerMessage(protocol.TypeRoleAssignment, protocol.RoleAssignmentMsg{Role: roleFor(other, conn.UserID)})
	if err == nil {
		c.publish(conn.Room, conn.UserID, otherMsg)
	}

	log.Printf("signaling: user=%d joined room=%s role=%s", conn.UserID, conn.Room, selfRole)
	return true
}

// OnMessage relays an inbound signaling frame (offer, answer, ice-candidate)
// to the other room participant without inspecting its contents.
func (c *Coordinator) OnMessage(conn *ws.Connection, data []byte) {
	if frameType, err := protocol.RawSignalFrame(data); err == nil {
		log.Printf("signaling: relay user=%d room=%s type=%s", conn.UserID, conn.Room, frameType)
	}
	c.publish(conn.Room, conn.UserID, data)
}

// OnDisconnect tears the room down: it deletes the durable Room row, notifies
// the remaining participant with match_cancelled, and re-enqueues that
// participant into the matching queue if still online.
func (c *Coordinator) OnDisconnect(conn *ws.Connection) {
	ctx := context.Background()
	c.nats.UnsubscribeRoom(conn.ID)

	partners, err := c.rooms.DeleteByParticipant(ctx, conn.UserID)
	if err != nil {
		log.Printf("signaling: delete room for user=%d: %v", conn.UserID, err)
	}

	cancelMsg, err := protocol.NewServerMessage(protocol.TypeMatchCancelled, protocol.MatchCancelledMsg{
		From: strconv.FormatInt(conn.UserID, 10),
	})
	if err == nil {
		c.publish(conn.Room, conn.UserID, cancelMsg)
	}

	for _, partner := range partners {
		online, err := c.presence.IsOnline(ctx, partner)
		if err != nil || !online {
			continue
		}
		if err := c.presence.EnqueueWaiting(ctx, partner); err != nil {
			log.Printf("signaling: re-enqueue partner=%d after disconnect: %v", partner, err)
		}
	}

	log.Printf("signaling: user=%d left room=%s", conn.UserID, conn.Room)
}

// publish wraps data in a busEnvelope and sends it to the room's subject.
func (c *Coordinator) publish(roomName string, sender int64, data []byte) {
	env, err := json.Marshal(busEnvelope{Sender: sender, Payload: data})
	if err != nil {
		log.Printf("signaling: marshal bus envelope room=%s: %v", roomName, err)
		return
	}
	if err := c.nats.PublishToRoom(roomName, env); err != nil {
		log.Printf("signaling: publish room=%s: %v", roomName, err)
	}
}

// deliver unwraps a busEnvelope received from the room subject and forwards
// the payload to conn unless conn's own user sent it. A force_disconnect
// frame is system-originated (Sender is always 0) and reaches both
// participants regardless of sender, closing the connection rather than
// being relayed as an ordinary signaling frame.
func (c *Coordinator) deliver(conn *ws.Connection, data []byte) {
	var env busEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		log.Printf("signaling: unmarshal bus envelope room=%s: %v", conn.Room, err)
		return
	}

	if frameType, err := protocol.RawSignalFrame(env.Payload); err == nil && frameType == protocol.TypeForceDisconnect {
		conn.WriteMessage(env.Payload)
		conn.Close()
		return
	}

	if env.Sender == conn.UserID {
		return
	}
	if err := conn.WriteMessage(env.Payload); err != nil {
		log.Printf("signaling: deliver to user=%d failed: %v", conn.UserID, err)
	}
}
