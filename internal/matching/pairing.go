// Package matching implements the Pairing Engine (§4.F) and Match State
// Machine (§4.G): the two pieces of domain logic that mutate the presence
// store's queue, active-match pointers, and match records under the global
// lock, and that turn a mutual accept into a durable Room.
package matching

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/whisper/voicematch/internal/metrics"
	"github.com/whisper/voicematch/internal/presence"
	"github.com/whisper/voicematch/internal/preferences"
	"github.com/whisper/voicematch/internal/wallet"
)

// Outcome is the result of a Pairing Engine or Match State Machine
// operation, named exactly as in §4.F and §4.G so callers can switch on it
// directly when choosing an outbound frame.
type Outcome string

const (
	OutcomeMatchingInProgress Outcome = "matching_in_progress"
	OutcomeNoSetting          Outcome = "no_setting"
	OutcomeAlreadyMatched     Outcome = "already_matched"
	OutcomeNoMatch            Outcome = "no_match"
	OutcomeNotEnoughGems      Outcome = "not_enough_gems"
	OutcomeMatchCreated       Outcome = "match_created"
	OutcomeError              Outcome = "error"
)

// Engine is the Pairing Engine: FindAndMatch scans the queue for a
// compatible, reachable partner and either creates a match or reports why
// it could not.
type Engine struct {
	presence *presence.Store
	prefs    *preferences.Store
	wallet   wallet.Wallet
	prices   PriceTable
}

// NewEngine creates a Pairing Engine over its three collaborators and a
// gem price table.
func NewEngine(p *presence.Store, prefs *preferences.Store, w wallet.Wallet, prices PriceTable) *Engine {
	return &Engine{presence: p, prefs: prefs, wallet: w, prices: prices}
}

// MatchID returns the canonical id "{min}:{max}" for two participants
// (§8 invariant 6). Distinct from room.Name, which uses "_" as the
// separator for the signaling topic.
func MatchID(a, b int64) string {
	u1, u2 := a, b
	if u1 > u2 {
		u1, u2 = u2, u1
	}
	return fmt.Sprintf("%d:%d", u1, u2)
}

// FindAndMatch runs the §4.F algorithm for initiator under the global lock.
// The lock is acquired with zero wait; a caller that gets
// OutcomeMatchingInProgress is expected to retry after RETRY_BACKOFF.
func (e *Engine) FindAndMatch(ctx context.Context, initiator int64) (Outcome, int64, error) {
	start := time.Now()
	outcome, partner, err := e.findAndMatch(ctx, initiator)
	metrics.PairingLatency.Observe(time.Since(start).Seconds())
	metrics.MatchOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	return outcome, partner, err
}

func (e *Engine) findAndMatch(ctx context.Context, initiator int64) (Outcome, int64, error) {
	acquired, err := e.presence.TryAcquireGlobalMatchLock(ctx, initiator)
	if err != nil {
		return OutcomeError, 0, fmt.Errorf("matching: acquire lock: %w", err)
	}
	if !acquired {
		return OutcomeMatchingInProgress, 0, nil
	}
	defer func() {
		if err := e.presence.ReleaseGlobalMatchLock(ctx, initiator); err != nil {
			log.Printf("matching: release lock for %d: %v", initiator, err)
		}
	}()

	myPref, err := e.prefs.Load(ctx, initiator)
	if err != nil {
		return OutcomeError, 0, fmt.Errorf("matching: load preferences %d: %w", initiator, err)
	}
	if myPref == nil {
		return OutcomeNoSetting, 0, nil
	}

	if existing, err := e.presence.GetActiveMatch(ctx, initiator); err != nil {
		return OutcomeError, 0, fmt.Errorf("matching: get active match %d: %w", initiator, err)
	} else if existing != "" {
		return OutcomeAlreadyMatched, 0, nil
	}

	candidates, err := e.presence.RangeWaiting(ctx)
	if err != nil {
		return OutcomeError, 0, fmt.Errorf("matching: range waiting: %w", err)
	}

	var partner int64
	for _, candidate := range candidates {
		if candidate == initiator {
			continue
		}

		online, err := e.presence.IsOnline(ctx, candidate)
		if err != nil {
			return OutcomeError, 0, fmt.Errorf("matching: is online %d: %w", candidate, err)
		}
		if !online {
			if err := e.presence.DequeueWaiting(ctx, candidate); err != nil {
				log.Printf("matching: dequeue stale %d: %v", candidate, err)
			}
			continue
		}

		if active, err := e.presence.GetActiveMatch(ctx, candidate); err != nil {
			return OutcomeError, 0, fmt.Errorf("matching: get active match %d: %w", candidate, err)
		} else if active != "" {
			continue
		}

		cp, err := e.prefs.Load(ctx, candidate)
		if err != nil {
			return OutcomeError, 0, fmt.Errorf("matching: load preferences %d: %w", candidate, err)
		}
		if cp == nil {
			continue
		}

		if Compatible(myPref, cp) {
			partner = candidate
			break
		}
	}

	if partner == 0 {
		return OutcomeNoMatch, 0, nil
	}

	price := e.prices.For(myPref.PreferredGender)
	if err := e.wallet.Debit(ctx, initiator, price); err != nil {
		if err == wallet.ErrInsufficientFunds {
			return OutcomeNotEnoughGems, 0, nil
		}
		return OutcomeError, 0, fmt.Errorf("matching: debit %d: %w", initiator, err)
	}
	metrics.GemsDebitedTotal.Add(float64(price))

	matchID := MatchID(initiator, partner)
	u1, u2 := initiator, partner
	if u1 > u2 {
		u1, u2 = u2, u1
	}
	now := time.Now().Unix()
	rec := &presence.MatchRecord{
		MatchID:   matchID,
		User1:     u1,
		User2:     u2,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.presence.PutMatchRecord(ctx, rec); err != nil {
		return OutcomeError, 0, fmt.Errorf("matching: put match record %s: %w", matchID, err)
	}
	if err := e.presence.SetActiveMatch(ctx, initiator, matchID); err != nil {
		return OutcomeError, 0, fmt.Errorf("matching: set active match %d: %w", initiator, err)
	}
	if err := e.presence.SetActiveMatch(ctx, partner, matchID); err != nil {
		return OutcomeError, 0, fmt.Errorf("matching: set active match %d: %w", partner, err)
	}
	if err := e.presence.DequeueWaiting(ctx, initiator); err != nil {
		log.Printf("matching: dequeue initiator %d: %v", initiator, err)
	}
	if err := e.presence.DequeueWaiting(ctx, partner); err != nil {
		log.Printf("matching: dequeue partner %d: %v", partner, err)
	}

	return OutcomeMatchCreated, partner, nil
}
