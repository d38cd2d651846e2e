package matching

import (
	"context"
	"log"
	"time"

	"github.com/whisper/voicematch/internal/metrics"
	"github.com/whisper/voicematch/internal/presence"
)

const cleanupInterval = 5 * time.Second

// StartCleanup runs a background sweep that dequeues users whose presence
// has expired without a FindAndMatch scan happening to catch them first.
// This is a reliability backstop, not a second matching algorithm. §4.F
// step 4 already performs the same skip-and-dequeue inline on every scan,
// and match record expiry is handled lazily by Respond/FindAndMatch per
// §5's cancellation rules, so there is nothing else for this loop to do.
func StartCleanup(ctx context.Context, store *presence.Store) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("matching: cleanup loop stopped")
			return
		case <-ticker.C:
			cleanStaleQueueEntries(ctx, store)
		}
	}
}

func cleanStaleQueueEntries(ctx context.Context, store *presence.Store) {
	candidates, err := store.RangeWaiting(ctx)
	if err != nil {
		log.Printf("matching: cleanup: range waiting: %v", err)
		return
	}

	metrics.MatchQueueSize.Set(float64(len(candidates)))

	removed := 0
	for _, id := range candidates {
		online, err := store.IsOnline(ctx, id)
		if err != nil {
			log.Printf("matching: cleanup: is online %d: %v", id, err)
			continue
		}
		if online {
			continue
		}
		if err := store.DequeueWaiting(ctx, id); err != nil {
			log.Printf("matching: cleanup: dequeue %d: %v", id, err)
			continue
		}
		removed++
	}

	if removed > 0 {
		log.Printf("matching: cleanup: removed %d stale queue entries", removed)
	}
}
