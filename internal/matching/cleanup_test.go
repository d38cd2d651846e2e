package matching

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/whisper/voicematch/internal/presence"
)

func TestCleanStaleQueueEntries_RemovesOfflineOnly(t *testing.T) {
	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available: %v", err)
	}
	cleanup := func() {
		rdb.Del(ctx, "match_queue", "user_online:"+strconv.FormatInt(testUserA, 10))
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		rdb.Close()
	})

	store := presence.NewStore(rdb, presence.Config{
		OnlineTTL: time.Minute, MatchTTL: time.Minute,
		LockTTL: 2 * time.Second, RetryBackoff: 10 * time.Millisecond,
	})

	store.MarkOnline(ctx, testUserA)
	store.EnqueueWaiting(ctx, testUserA)
	store.EnqueueWaiting(ctx, testUserB) // never marked online

	cleanStaleQueueEntries(ctx, store)

	stillQueued, _ := store.IsQueued(ctx, testUserA)
	if !stillQueued {
		t.Fatal("expected online user to remain queued")
	}
	staleGone, _ := store.IsQueued(ctx, testUserB)
	if staleGone {
		t.Fatal("expected offline user to be removed from queue")
	}
	store.DequeueWaiting(ctx, testUserA)
}
