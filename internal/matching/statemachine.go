package matching

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/whisper/voicematch/internal/metrics"
	"github.com/whisper/voicematch/internal/presence"
	"github.com/whisper/voicematch/internal/room"
)

// RespondOutcome is the result of a Match State Machine Respond call (§4.G).
type RespondOutcome string

const (
	RespondSuccess            RespondOutcome = "success"
	RespondWaitingForPartner  RespondOutcome = "waiting_for_partner"
	RespondRejected           RespondOutcome = "rejected"
	RespondPartnerOffline     RespondOutcome = "partner_offline"
	RespondMatchExpired       RespondOutcome = "match_expired"
	RespondPartnerNotFound    RespondOutcome = "partner_not_found"
	RespondRoomCreationFailed RespondOutcome = "room_creation_failed"
	RespondError              RespondOutcome = "error"
)

const (
	ResponseAccept = "accept"
	ResponseReject = "reject"
)

// StateMachine is the Match State Machine: Respond advances a match record
// toward MUTUAL (a Room) or CANCELED (both sides re-enqueued) per §4.G.
type StateMachine struct {
	presence *presence.Store
	rooms    *room.Store
}

// NewStateMachine creates a Match State Machine over its two collaborators.
func NewStateMachine(p *presence.Store, r *room.Store) *StateMachine {
	return &StateMachine{presence: p, rooms: r}
}

// Respond applies user's response to their active match and returns the
// outcome plus the other participant's id (0 if there is none to report).
func (sm *StateMachine) Respond(ctx context.Context, user int64, response string) (RespondOutcome, int64, error) {
	outcome, other, err := sm.respond(ctx, user, response)
	metrics.RespondOutcomesTotal.WithLabelValues(string(outcome)).Inc()
	return outcome, other, err
}

func (sm *StateMachine) respond(ctx context.Context, user int64, response string) (RespondOutcome, int64, error) {
	matchID, err := sm.presence.GetActiveMatch(ctx, user)
	if err != nil {
		return RespondError, 0, fmt.Errorf("matching: get active match %d: %w", user, err)
	}
	if matchID == "" {
		return RespondMatchExpired, 0, nil
	}

	rec, err := sm.presence.GetMatchRecord(ctx, matchID)
	if err != nil {
		return RespondError, 0, fmt.Errorf("matching: get match record %s: %w", matchID, err)
	}
	if rec == nil {
		if err := sm.presence.DeleteActiveMatch(ctx, user); err != nil {
			log.Printf("matching: clear dangling pointer for %d: %v", user, err)
		}
		return RespondMatchExpired, 0, nil
	}

	other := rec.User1
	if user == rec.User1 {
		other = rec.User2
	}

	online, err := sm.presence.IsOnline(ctx, other)
	if err != nil {
		return RespondError, 0, fmt.Errorf("matching: is online %d: %w", other, err)
	}
	if !online {
		sm.cleanupMatch(ctx, matchID, user, other)
		return RespondPartnerOffline, other, nil
	}

	rec, err = sm.presence.SetResponse(ctx, matchID, user, response)
	if err != nil {
		return RespondError, 0, fmt.Errorf("matching: set response %s: %w", matchID, err)
	}
	if rec == nil {
		return RespondMatchExpired, 0, nil
	}

	switch response {
	case ResponseAccept:
		otherResponse := rec.User1Response
		if user == rec.User1 {
			otherResponse = rec.User2Response
		}
		if otherResponse != ResponseAccept {
			return RespondWaitingForPartner, other, nil
		}

		r, err := sm.rooms.FindByParticipant(ctx, rec.User1, rec.User2)
		if err != nil {
			return RespondError, 0, fmt.Errorf("matching: find room %s: %w", matchID, err)
		}
		if r == nil {
			if _, err := sm.rooms.Create(ctx, rec.User1, rec.User2); err != nil {
				return RespondRoomCreationFailed, 0, nil
			}
			metrics.MatchToRoomDuration.Observe(time.Since(time.Unix(rec.CreatedAt, 0)).Seconds())
		}

		if err := sm.presence.DeleteMatchRecord(ctx, matchID); err != nil {
			log.Printf("matching: delete match record %s: %v", matchID, err)
		}
		if err := sm.presence.DeleteActiveMatch(ctx, rec.User1); err != nil {
			log.Printf("matching: delete active match %d: %v", rec.User1, err)
		}
		if err := sm.presence.DeleteActiveMatch(ctx, rec.User2); err != nil {
			log.Printf("matching: delete active match %d: %v", rec.User2, err)
		}
		return RespondSuccess, other, nil

	case ResponseReject:
		sm.cleanupMatch(ctx, matchID, user, other)

		if err := sm.presence.EnqueueWaiting(ctx, user); err != nil {
			log.Printf("matching: re-enqueue %d: %v", user, err)
		}
		if otherOnline, err := sm.presence.IsOnline(ctx, other); err == nil && otherOnline {
			if err := sm.presence.EnqueueWaiting(ctx, other); err != nil {
				log.Printf("matching: re-enqueue %d: %v", other, err)
			}
		}
		return RespondRejected, other, nil

	default:
		return RespondError, 0, fmt.Errorf("matching: unknown response %q", response)
	}
}

// cleanupMatch deletes the match record and both active-match pointers,
// the shared teardown used by both the partner_offline and reject paths.
func (sm *StateMachine) cleanupMatch(ctx context.Context, matchID string, user, other int64) {
	if err := sm.presence.DeleteMatchRecord(ctx, matchID); err != nil {
		log.Printf("matching: delete match record %s: %v", matchID, err)
	}
	if err := sm.presence.DeleteActiveMatch(ctx, user); err != nil {
		log.Printf("matching: delete active match %d: %v", user, err)
	}
	if err := sm.presence.DeleteActiveMatch(ctx, other); err != nil {
		log.Printf("matching: delete active match %d: %v", other, err)
	}
}
