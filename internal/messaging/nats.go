// Package messaging provides a NATS client wrapper for the fan-out bus that
// lets a session on one app instance push events into the session belonging
// to a user (or a signaling room) hosted on another instance. Delivery is
// at-most-once and best-effort: the Redis-backed presence/queue/registry
// store, not the bus, is the source of truth.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subject patterns used by the matchmaking and signaling sessions.
const (
	SubjectUserPrefix      = "user"      // + .<user_id>, per-user fan-out channel
	SubjectVoicechatPrefix = "voicechat" // + .<room>, per-room signaling channel
)

// NATSClient wraps the NATS connection with helper methods for pub/sub.
type NATSClient struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription
}

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "voicematch",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// NewNATSClient connects to NATS with the given config and returns a ready client.
// It returns an error if the initial connection fails.
func NewNATSClient(config NATSConfig) (*NATSClient, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &NATSClient{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// Publish sends data to the given NATS subject.
func (c *NATSClient) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

// Subscribe registers a handler for the given subject and stores the
// subscription internally for later cleanup, keyed by the subject itself.
func (c *NATSClient) Subscribe(subject string, handler func(data []byte)) error {
	return c.subscribeAs(subject, subject, handler)
}

// subscribeAs subscribes to subject but stores the subscription under key,
// allowing multiple local sessions on the same server to each hold their own
// cancellable subscription to the same subject (e.g. when the fallback-epoll
// path runs several user sessions in one process during tests).
func (c *NATSClient) subscribeAs(key, subject string, handler func(data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	c.subs[key] = sub
	c.mu.Unlock()
	return nil
}

// userSubject returns the per-user fan-out subject for the Session
// Supervisor (§4.I).
func userSubject(userID int64) string {
	return fmt.Sprintf("%s.%d", SubjectUserPrefix, userID)
}

// roomSubject returns the per-room signaling subject for the Signaling
// Coordinator (§4.I, §4.J).
func roomSubject(room string) string {
	return fmt.Sprintf("%s.%s", SubjectVoicechatPrefix, room)
}

// SubscribeUser subscribes to the per-user fan-out channel. Only one
// subscription per user is expected at a time (a new login force-disconnects
// the prior session before subscribing its own).
func (c *NATSClient) SubscribeUser(userID int64, handler func(data []byte)) error {
	return c.subscribeAs(userSubject(userID), userSubject(userID), handler)
}

// UnsubscribeUser tears down a user's fan-out subscription.
func (c *NATSClient) UnsubscribeUser(userID int64) error {
	return c.unsubscribe(userSubject(userID))
}

// PublishToUser publishes an event to a user's fan-out channel. Used for
// notify_match, match_response relays, match_cancelled, and force_disconnect.
func (c *NATSClient) PublishToUser(userID int64, data []byte) error {
	return c.Publish(userSubject(userID), data)
}

// SubscribeRoom subscribes to a signaling room's topic, keyed by sessionKey
// so two participants in the same process (tests, or a single-node dev
// deployment) don't clobber each other's subscription handle.
func (c *NATSClient) SubscribeRoom(room, sessionKey string, handler func(data []byte)) error {
	return c.subscribeAs("room:"+sessionKey, roomSubject(room), handler)
}

// UnsubscribeRoom tears down a room subscription previously registered with
// SubscribeRoom under sessionKey.
func (c *NATSClient) UnsubscribeRoom(sessionKey string) error {
	return c.unsubscribe("room:" + sessionKey)
}

// PublishToRoom publishes a signaling event to every participant subscribed
// to a room's topic (role assignment, opaque relay, match_cancelled).
func (c *NATSClient) PublishToRoom(room string, data []byte) error {
	return c.Publish(roomSubject(room), data)
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for subject, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", subject, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}

// unsubscribe removes and unsubscribes from a specific key.
func (c *NATSClient) unsubscribe(key string) error {
	c.mu.Lock()
	sub, ok := c.subs[key]
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("nats: no subscription for %s", key)
	}
	delete(c.subs, key)
	c.mu.Unlock()

	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", key, err)
	}
	return nil
}
