// Package matchcore provides read-only queue and per-user status snapshots
// for the admin HTTP surface, grounded on the matching service's
// get_queue_status and get_user_status helpers. It never mutates state.
package matchcore

import (
	"context"
	"fmt"

	"github.com/whisper/voicematch/internal/presence"
)

// QueueUser is one entry in the waiting queue at snapshot time.
type QueueUser struct {
	UserID   int64 `json:"user_id"`
	Online   bool  `json:"online"`
	HasMatch bool  `json:"has_match"`
}

// QueueStatus summarizes the matching queue. EstimatedMatches is
// ActiveMatchUsers / 2 since a match record spans two queue entries.
type QueueStatus struct {
	QueueCount       int         `json:"queue_count"`
	ActiveMatchUsers int         `json:"active_match_users"`
	EstimatedMatches int         `json:"estimated_match_count"`
	QueueUsers       []QueueUser `json:"queue_users"`
}

// GetQueueStatus builds a QueueStatus by scanning the current waiting set.
func GetQueueStatus(ctx context.Context, store *presence.Store) (*QueueStatus, error) {
	candidates, err := store.RangeWaiting(ctx)
	if err != nil {
		return nil, fmt.Errorf("matchcore: range waiting: %w", err)
	}

	status := &QueueStatus{QueueCount: len(candidates)}
	for _, id := range candidates {
		online, err := store.IsOnline(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("matchcore: is online %d: %w", id, err)
		}

		matchID, err := store.GetActiveMatch(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("matchcore: get active match %d: %w", id, err)
		}
		hasMatch := matchID != ""
		if hasMatch {
			status.ActiveMatchUsers++
		}

		status.QueueUsers = append(status.QueueUsers, QueueUser{
			UserID:   id,
			Online:   online,
			HasMatch: hasMatch,
		})
	}
	status.EstimatedMatches = status.ActiveMatchUsers / 2

	return status, nil
}

// UserStatus reports one user's presence and queue/match state.
type UserStatus struct {
	UserID         int64  `json:"user_id"`
	Online         bool   `json:"online"`
	InQueue        bool   `json:"in_queue"`
	HasActiveMatch bool   `json:"has_active_match"`
	ActiveMatchID  string `json:"active_match_id,omitempty"`
}

// GetUserStatus reports the current presence/queue/match state for userID.
func GetUserStatus(ctx context.Context, store *presence.Store, userID int64) (*UserStatus, error) {
	online, err := store.IsOnline(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("matchcore: is online %d: %w", userID, err)
	}
	inQueue, err := store.IsQueued(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("matchcore: is queued %d: %w", userID, err)
	}
	matchID, err := store.GetActiveMatch(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("matchcore: get active match %d: %w", userID, err)
	}

	return &UserStatus{
		UserID:         userID,
		Online:         online,
		InQueue:        inQueue,
		HasActiveMatch: matchID != "",
		ActiveMatchID:  matchID,
	}, nil
}
