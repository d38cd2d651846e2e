// Package presence is the cross-process Presence Store, Match Queue, Match
// Registry, and Lock Service collaborator described by the matchmaking
// engine's component design. All four are backed by a single Redis client
// and exposed as one Store because they share the same atomicity and TTL
// concerns: presence liveness, queue membership, active-match pointers, and
// match records must always be read and mutated against the same KV service
// so that two app instances never disagree about who is online, queued, or
// already matched.
package presence

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key layout, matching the suggested (non-binding) wire layout.
const (
	onlinePrefix     = "user_online:"
	queueKey         = "match_queue"
	activeMatchPfx   = "user_matches:"
	matchRecordPfx   = "match_requests:"
	globalLockKey    = "global_match_lock"
)

// Default TTLs and timers, overridable via Config.
const (
	DefaultOnlineTTL    = 60 * time.Second
	DefaultMatchTTL     = 5 * time.Minute
	DefaultLockTTL      = 10 * time.Second
	DefaultRetryBackoff = 100 * time.Millisecond
)

// Config holds the tunables named in §6: ONLINE_TTL, MATCH_TTL, LOCK_TTL,
// RETRY_BACKOFF. PRICE_* and HEARTBEAT_INTERVAL live with their respective
// components (the Pairing Engine's PriceTable, Session Supervisor heartbeat).
type Config struct {
	OnlineTTL    time.Duration
	MatchTTL     time.Duration
	LockTTL      time.Duration
	RetryBackoff time.Duration
}

// DefaultConfig returns the default tunables.
func DefaultConfig() Config {
	return Config{
		OnlineTTL:    DefaultOnlineTTL,
		MatchTTL:     DefaultMatchTTL,
		LockTTL:      DefaultLockTTL,
		RetryBackoff: DefaultRetryBackoff,
	}
}

// Store implements the Presence Store, Match Queue, Match Registry, and
// Lock Service as one Redis-backed collaborator.
type Store struct {
	rdb            *redis.Client
	cfg            Config
	releaseLockScr *redis.Script
}

// MatchRecord is the registry's per-match record (§3). A response slot
// holds "accept" or "reject" once that side has answered; the empty string
// means no response yet.
type MatchRecord struct {
	MatchID       string
	User1         int64 // user1 < user2
	User2         int64
	User1Response string // "", "accept", "reject"
	User2Response string
	CreatedAt     int64
	UpdatedAt     int64
}

// ErrNotOwner is returned by ReleaseGlobalMatchLock when the caller does not
// currently hold the lock (already expired or held by someone else).
var ErrNotOwner = errors.New("presence: lock not held by caller")

// NewStore creates a Store backed by the given Redis client.
func NewStore(rdb *redis.Client, cfg Config) *Store {
	return &Store{
		rdb:            rdb,
		cfg:            cfg,
		releaseLockScr: redis.NewScript(releaseLockLua),
	}
}

// MarkOnline sets the presence TTL for user. Called on connect and every
// HEARTBEAT_INTERVAL by the Session Supervisor.
func (s *Store) MarkOnline(ctx context.Context, userID int64) error {
	key := onlinePrefix + strconv.FormatInt(userID, 10)
	if err := s.rdb.Set(ctx, key, "1", s.cfg.OnlineTTL).Err(); err != nil {
		return fmt.Errorf("presence: mark online %d: %w", userID, err)
	}
	return nil
}

// MarkOffline removes the presence entry immediately (used on graceful
// disconnect so stale-scan doesn't need to wait out the TTL).
func (s *Store) MarkOffline(ctx context.Context, userID int64) error {
	key := onlinePrefix + strconv.FormatInt(userID, 10)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("presence: mark offline %d: %w", userID, err)
	}
	return nil
}

// IsOnline reports whether user has a live presence entry. Absence means
// offline, per §3.
func (s *Store) IsOnline(ctx context.Context, userID int64) (bool, error) {
	key := onlinePrefix + strconv.FormatInt(userID, 10)
	n, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("presence: is online %d: %w", userID, err)
	}
	return n > 0, nil
}

// EnqueueWaiting adds user to the match queue with score = now (§4.B).
func (s *Store) EnqueueWaiting(ctx context.Context, userID int64) error {
	score := float64(time.Now().Unix())
	if err := s.rdb.ZAdd(ctx, queueKey, redis.Z{Score: score, Member: userID}).Err(); err != nil {
		return fmt.Errorf("presence: enqueue %d: %w", userID, err)
	}
	return nil
}

// DequeueWaiting removes user from the match queue. Idempotent: removing a
// member that isn't present is not an error.
func (s *Store) DequeueWaiting(ctx context.Context, userID int64) error {
	if err := s.rdb.ZRem(ctx, queueKey, userID).Err(); err != nil {
		return fmt.Errorf("presence: dequeue %d: %w", userID, err)
	}
	return nil
}

// IsQueued reports whether user is currently a queue member.
func (s *Store) IsQueued(ctx context.Context, userID int64) (bool, error) {
	_, err := s.rdb.ZScore(ctx, queueKey, strconv.FormatInt(userID, 10)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence: is queued %d: %w", userID, err)
	}
	return true, nil
}

// RangeWaiting returns every queued user id in ascending enqueue-score
// order (roughly-FIFO, per the stated Non-goal).
func (s *Store) RangeWaiting(ctx context.Context) ([]int64, error) {
	members, err := s.rdb.ZRangeByScore(ctx, queueKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: range waiting: %w", err)
	}

	ids := make([]int64, 0, len(members))
	for _, m := range members {
		id, err := strconv.ParseInt(m, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// GetActiveMatch returns the match id the user is currently committed to,
// or "" if none (§3's Active-match pointer).
func (s *Store) GetActiveMatch(ctx context.Context, userID int64) (string, error) {
	key := activeMatchPfx + strconv.FormatInt(userID, 10)
	matchID, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("presence: get active match %d: %w", userID, err)
	}
	return matchID, nil
}

// SetActiveMatch writes the active-match pointer with the configured TTL.
func (s *Store) SetActiveMatch(ctx context.Context, userID int64, matchID string) error {
	key := activeMatchPfx + strconv.FormatInt(userID, 10)
	if err := s.rdb.Set(ctx, key, matchID, s.cfg.MatchTTL).Err(); err != nil {
		return fmt.Errorf("presence: set active match %d: %w", userID, err)
	}
	return nil
}

// DeleteActiveMatch clears the pointer. Idempotent.
func (s *Store) DeleteActiveMatch(ctx context.Context, userID int64) error {
	key := activeMatchPfx + strconv.FormatInt(userID, 10)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("presence: delete active match %d: %w", userID, err)
	}
	return nil
}

// PutMatchRecord writes a match record with the configured TTL.
func (s *Store) PutMatchRecord(ctx context.Context, rec *MatchRecord) error {
	key := matchRecordPfx + rec.MatchID
	fields := map[string]interface{}{
		"user1":          rec.User1,
		"user2":          rec.User2,
		"user1_response": rec.User1Response,
		"user2_response": rec.User2Response,
		"created_at":     rec.CreatedAt,
		"updated_at":     rec.UpdatedAt,
	}

	pipe := s.rdb.Pipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, s.cfg.MatchTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("presence: put match record %s: %w", rec.MatchID, err)
	}
	return nil
}

// GetMatchRecord loads a match record, or nil if it does not exist (expired
// or never created; the caller treats this as match_expired per §4.G).
func (s *Store) GetMatchRecord(ctx context.Context, matchID string) (*MatchRecord, error) {
	key := matchRecordPfx + matchID
	result, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: get match record %s: %w", matchID, err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	user1, _ := strconv.ParseInt(result["user1"], 10, 64)
	user2, _ := strconv.ParseInt(result["user2"], 10, 64)
	createdAt, _ := strconv.ParseInt(result["created_at"], 10, 64)
	updatedAt, _ := strconv.ParseInt(result["updated_at"], 10, 64)

	return &MatchRecord{
		MatchID:       matchID,
		User1:         user1,
		User2:         user2,
		User1Response: result["user1_response"],
		User2Response: result["user2_response"],
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}, nil
}

// DeleteMatchRecord removes a match record. Idempotent.
func (s *Store) DeleteMatchRecord(ctx context.Context, matchID string) error {
	key := matchRecordPfx + matchID
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("presence: delete match record %s: %w", matchID, err)
	}
	return nil
}

// SetResponse atomically sets one side's response slot and touches
// updated_at, then returns the record as it stands after the write. Used by
// the Match State Machine's Respond operation (§4.G step 4) so the read
// that decides PENDING/HALF_ACCEPTED/MUTUAL is never stale relative to the
// write that produced it.
func (s *Store) SetResponse(ctx context.Context, matchID string, userID int64, response string) (*MatchRecord, error) {
	key := matchRecordPfx + matchID
	rec, err := s.GetMatchRecord(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}

	field := "user1_response"
	if userID == rec.User2 {
		field = "user2_response"
	}

	now := time.Now().Unix()
	var after *redis.MapStringStringCmd
	if _, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, field, response, "updated_at", now)
		pipe.Expire(ctx, key, s.cfg.MatchTTL)
		after = pipe.HGetAll(ctx, key)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("presence: set response %s: %w", matchID, err)
	}

	result := after.Val()
	rec.User1Response = result["user1_response"]
	rec.User2Response = result["user2_response"]
	rec.UpdatedAt = now
	return rec, nil
}

// TryAcquireGlobalMatchLock attempts to take the pairing critical section's
// single-token lock with zero wait (§4.F step 1: the caller does not block,
// it returns matching_in_progress and is expected to retry).
func (s *Store) TryAcquireGlobalMatchLock(ctx context.Context, holderID int64) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, globalLockKey, holderID, s.cfg.LockTTL).Result()
	if err != nil {
		return false, fmt.Errorf("presence: acquire lock: %w", err)
	}
	return ok, nil
}

// ReleaseGlobalMatchLock releases the lock only if holderID still owns it,
// guarding against releasing a lock that expired and was re-acquired by
// another initiator. Grounded on the compare-then-mutate Lua idiom used for
// the chat accept-vote script: check the stored value before touching it.
func (s *Store) ReleaseGlobalMatchLock(ctx context.Context, holderID int64) error {
	res, err := s.releaseLockScr.Run(ctx, s.rdb, []string{globalLockKey}, holderID).Int()
	if err != nil {
		return fmt.Errorf("presence: release lock: %w", err)
	}
	if res == 0 {
		return ErrNotOwner
	}
	return nil
}

// releaseLockLua deletes the lock key only if its value matches the caller's
// holder token, so a dead holder's expired lock is never released by a
// mismatched late caller.
const releaseLockLua = `
local key = KEYS[1]
local holder = ARGV[1]

local current = redis.call('GET', key)
if current == holder then
    redis.call('DEL', key)
    return 1
end
return 0
`

// Client exposes the underlying Redis client for components that need raw
// access (cleanup sweeps, metrics gauges).
func (s *Store) Client() *redis.Client {
	return s.rdb
}
