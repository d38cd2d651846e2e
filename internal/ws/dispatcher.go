package ws

import (
	"log"

	"github.com/whisper/voicematch/internal/protocol"
)

// MessageHandler is the callback signature for handling a parsed matchmaking
// action. The msg parameter is the concrete struct returned by
// protocol.ParseMatchAction (protocol.JoinQueueMsg, protocol.LeaveQueueMsg,
// or protocol.RespondMsg).
type MessageHandler func(conn *Connection, msg interface{})

// MessageDispatcher routes incoming matchmaking-session frames to registered
// handlers keyed by action. Used only for /ws/match/ connections — signaling
// connections relay frames opaquely and never reach this type.
type MessageDispatcher struct {
	handlers map[string]MessageHandler
}

// NewMessageDispatcher creates an empty MessageDispatcher.
func NewMessageDispatcher() *MessageDispatcher {
	return &MessageDispatcher{handlers: make(map[string]MessageHandler)}
}

// Register associates a MessageHandler with an action. If a handler was
// already registered for the given action, it is silently replaced.
func (d *MessageDispatcher) Register(action string, handler MessageHandler) {
	d.handlers[action] = handler
}

// Dispatch is the onMessage callback for matchmaking connections. Malformed
// JSON and unknown actions are logged and dropped — the client gets no
// reply for either, per the protocol error policy.
func (d *MessageDispatcher) Dispatch(conn *Connection, data []byte) {
	action, msg, err := protocol.ParseMatchAction(data)
	if err != nil {
		log.Printf("ws: dispatch parse error user=%d: %v", conn.UserID, err)
		return
	}

	handler, ok := d.handlers[action]
	if !ok {
		log.Printf("ws: unknown action=%q user=%d", action, conn.UserID)
		return
	}

	handler(conn, msg)
}
