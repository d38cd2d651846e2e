package presence

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// newTestStore creates a Store connected to a local Redis instance and
// flushes any leftover test keys before returning. Tests that call this
// helper require a running Redis on localhost:6379.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	cleanup := func() {
		client.Del(ctx, queueKey, globalLockKey)
		for _, id := range []int64{9001, 9002, 9003} {
			client.Del(ctx, onlinePrefix+strconv.FormatInt(id, 10))
			client.Del(ctx, activeMatchPfx+strconv.FormatInt(id, 10))
		}
		client.Del(ctx, matchRecordPfx+"9001:9002")
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		client.Close()
	})

	return NewStore(client, Config{
		OnlineTTL:    time.Minute,
		MatchTTL:     time.Minute,
		LockTTL:      2 * time.Second,
		RetryBackoff: 10 * time.Millisecond,
	})
}

func TestMarkOnline_IsOnline(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	online, err := s.IsOnline(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if online {
		t.Fatal("expected user to be offline initially")
	}

	if err := s.MarkOnline(ctx, 9001); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	online, err = s.IsOnline(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !online {
		t.Fatal("expected user to be online after MarkOnline")
	}

	if err := s.MarkOffline(ctx, 9001); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	online, err = s.IsOnline(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if online {
		t.Fatal("expected user to be offline after MarkOffline")
	}
}

func TestQueue_EnqueueDequeueRange(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.EnqueueWaiting(ctx, 9001); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.EnqueueWaiting(ctx, 9002); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	queued, err := s.IsQueued(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !queued {
		t.Fatal("expected 9001 to be queued")
	}

	ids, err := s.RangeWaiting(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 queued ids, got %d: %v", len(ids), ids)
	}

	if err := s.DequeueWaiting(ctx, 9001); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	queued, err = s.IsQueued(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queued {
		t.Fatal("expected 9001 to no longer be queued")
	}
	s.DequeueWaiting(ctx, 9002)
}

func TestActiveMatchPointer(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	matchID, err := s.GetActiveMatch(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matchID != "" {
		t.Fatalf("expected no active match, got %q", matchID)
	}

	if err := s.SetActiveMatch(ctx, 9001, "9001:9002"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	matchID, err = s.GetActiveMatch(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matchID != "9001:9002" {
		t.Fatalf("expected match id %q, got %q", "9001:9002", matchID)
	}

	if err := s.DeleteActiveMatch(ctx, 9001); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	matchID, err = s.GetActiveMatch(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if matchID != "" {
		t.Fatalf("expected cleared active match, got %q", matchID)
	}
}

func TestMatchRecord_PutGetSetResponseDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := &MatchRecord{
		MatchID:   "9001:9002",
		User1:     9001,
		User2:     9002,
		CreatedAt: time.Now().Unix(),
		UpdatedAt: time.Now().Unix(),
	}
	if err := s.PutMatchRecord(ctx, rec); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := s.GetMatchRecord(ctx, "9001:9002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.User1 != 9001 || got.User2 != 9002 {
		t.Fatalf("unexpected record: %+v", got)
	}

	updated, err := s.SetResponse(ctx, "9001:9002", 9001, "accept")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.User1Response != "accept" {
		t.Fatalf("expected user1_response=accept, got %q", updated.User1Response)
	}

	if err := s.DeleteMatchRecord(ctx, "9001:9002"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err = s.GetMatchRecord(ctx, "9001:9002")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected record to be gone, got %+v", got)
	}
}

func TestGlobalMatchLock_AcquireReleaseOwnerGuard(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.TryAcquireGlobalMatchLock(ctx, 9001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected lock acquisition to succeed")
	}

	ok, err = s.TryAcquireGlobalMatchLock(ctx, 9002)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected second acquisition to fail while held")
	}

	if err := s.ReleaseGlobalMatchLock(ctx, 9002); err != ErrNotOwner {
		t.Fatalf("expected ErrNotOwner for non-owning release, got %v", err)
	}

	if err := s.ReleaseGlobalMatchLock(ctx, 9001); err != nil {
		t.Fatalf("unexpected error releasing as owner: %v", err)
	}

	ok, err = s.TryAcquireGlobalMatchLock(ctx, 9002)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatal("expected lock to be acquirable after release")
	}
	s.ReleaseGlobalMatchLock(ctx, 9002)
}
