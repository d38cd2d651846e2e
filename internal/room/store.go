// Package room persists the durable Room row created on mutual accept
// (§4.G). A Room exists only after both sides of a match have responded
// accept; it is deleted when either participant disconnects.
package room

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/whisper/voicematch/internal/metrics"
)

// Room is the durable relational row described in §3. User1 < User2.
type Room struct {
	User1     int64
	User2     int64
	MatchedAt time.Time
}

// Store manages Room rows in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// canonicalPair returns (min, max) so every lookup and insert uses the same
// participant ordering regardless of who calls it.
func canonicalPair(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// FindByParticipant looks up the existing Room between the two users,
// whichever order they are passed in, so mutual-accept room creation can be
// idempotent
// (§4.G step 5: "look up any existing Room between the two... if present,
// reuse").
func (s *Store) FindByParticipant(ctx context.Context, userA, userB int64) (*Room, error) {
	u1, u2 := canonicalPair(userA, userB)
	const query = `SELECT user1, user2, matched_at FROM rooms WHERE user1 = $1 AND user2 = $2`

	var r Room
	err := s.db.QueryRowContext(ctx, query, u1, u2).Scan(&r.User1, &r.User2, &r.MatchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("room: find by participant %d/%d: %w", userA, userB, err)
	}
	return &r, nil
}

// Create inserts a Room with participants in canonical (sorted) order. A
// unique constraint on (user1, user2) makes a concurrent duplicate insert
// fail rather than silently duplicate the row; the caller should treat that
// as room_creation_failed per §4.G.
func (s *Store) Create(ctx context.Context, userA, userB int64) (*Room, error) {
	u1, u2 := canonicalPair(userA, userB)
	now := time.Now()

	const query = `INSERT INTO rooms (user1, user2, matched_at) VALUES ($1, $2, $3)`
	if _, err := s.db.ExecContext(ctx, query, u1, u2, now); err != nil {
		return nil, fmt.Errorf("room: create %d/%d: %w", u1, u2, err)
	}
	metrics.ActiveRooms.Inc()
	return &Room{User1: u1, User2: u2, MatchedAt: now}, nil
}

// DeleteByParticipant removes every Room naming userID (as either
// participant) and returns the ids of any partners that were named
// alongside it, so the caller can re-enqueue survivors (§4.H disconnect:
// "scan for and delete any durable Rooms naming this user, re-enqueue
// surviving room-partners").
func (s *Store) DeleteByParticipant(ctx context.Context, userID int64) ([]int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("room: begin tx: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx,
		`SELECT user1, user2 FROM rooms WHERE user1 = $1 OR user2 = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("room: scan rooms for %d: %w", userID, err)
	}

	var partners []int64
	for rows.Next() {
		var u1, u2 int64
		if err := rows.Scan(&u1, &u2); err != nil {
			rows.Close()
			return nil, fmt.Errorf("room: scan row: %w", err)
		}
		if u1 == userID {
			partners = append(partners, u2)
		} else {
			partners = append(partners, u1)
		}
	}
	rows.Close()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM rooms WHERE user1 = $1 OR user2 = $1`, userID); err != nil {
		return nil, fmt.Errorf("room: delete rooms for %d: %w", userID, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("room: commit delete for %d: %w", userID, err)
	}
	metrics.ActiveRooms.Sub(float64(len(partners)))
	return partners, nil
}

// Name returns the canonical signaling room name "{min}_{max}" for two
// participants (§4.G notification rule, §4.J).
func Name(userA, userB int64) string {
	u1, u2 := canonicalPair(userA, userB)
	return fmt.Sprintf("%d_%d", u1, u2)
}
