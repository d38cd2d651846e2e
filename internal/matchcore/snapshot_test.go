package matchcore

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/voicematch/internal/presence"
)

func newStoreFixture(t *testing.T) *presence.Store {
	t.Helper()
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}

	cleanup := func() {
		for _, id := range []int64{997001, 997002} {
			rdb.Del(ctx, "user_online:"+strconv.FormatInt(id, 10))
		}
		rdb.Del(ctx, "match_queue")
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		rdb.Close()
	})

	return presence.NewStore(rdb, presence.Config{
		OnlineTTL:    time.Minute,
		MatchTTL:     time.Minute,
		LockTTL:      2 * time.Second,
		RetryBackoff: 10 * time.Millisecond,
	})
}

func TestGetQueueStatus_Empty(t *testing.T) {
	store := newStoreFixture(t)
	ctx := context.Background()

	status, err := GetQueueStatus(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.QueueCount != 0 {
		t.Fatalf("expected empty queue, got %d", status.QueueCount)
	}
}

func TestGetQueueStatus_CountsOnlineQueued(t *testing.T) {
	store := newStoreFixture(t)
	ctx := context.Background()

	store.MarkOnline(ctx, 997001)
	store.EnqueueWaiting(ctx, 997001)
	store.EnqueueWaiting(ctx, 997002) // never marked online: stale entry

	status, err := GetQueueStatus(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.QueueCount != 2 {
		t.Fatalf("expected 2 queued, got %d", status.QueueCount)
	}

	var sawOnline, sawOffline bool
	for _, u := range status.QueueUsers {
		if u.UserID == 997001 && u.Online {
			sawOnline = true
		}
		if u.UserID == 997002 && !u.Online {
			sawOffline = true
		}
	}
	if !sawOnline || !sawOffline {
		t.Fatalf("expected one online and one offline entry, got %+v", status.QueueUsers)
	}

	store.DequeueWaiting(ctx, 997001)
	store.DequeueWaiting(ctx, 997002)
}

func TestGetUserStatus_NotQueued(t *testing.T) {
	store := newStoreFixture(t)
	ctx := context.Background()

	status, err := GetUserStatus(ctx, store, 997001)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status.Online || status.InQueue || status.HasActiveMatch {
		t.Fatalf("expected a clean user status, got %+v", status)
	}
}
