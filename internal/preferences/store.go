// Package preferences provides read-only access to each user's declared
// matching preferences and demographic attributes (§4.E Preference Reader).
// Preferences are written externally (outside the matchmaking core's
// scope); this package only ever selects rows.
package preferences

import (
	"context"
	"database/sql"
	"fmt"
)

// Gender values used on both the Preference.PreferredGender field and the
// User's own Gender field.
const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderAny    = "any" // only valid as PreferredGender, never as a user's own Gender
	GenderOther  = "other"
)

// Preference is a user's declared matching preference, joined with the
// demographic attributes the Pairing Engine needs to evaluate compatibility
// (§3: User is external/read-only, but the core still needs age/gender to
// run Compatible()).
type Preference struct {
	UserID          int64
	Age             int
	Gender          string // "male" | "female" | "other"
	PreferredGender string // "male" | "female" | "any"
	AgeMin          int
	AgeMax          int
	RadiusKM        int // reserved, never used by matching (§3, Non-goals)
}

// Store reads preference rows from PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Load returns the user's preference and demographic record, or nil if the
// user has no saved preferences. Per §4.E, absence means the user is
// ineligible for matching, not an error.
func (s *Store) Load(ctx context.Context, userID int64) (*Preference, error) {
	const query = `
		SELECT u.id, u.age, u.gender,
		       p.preferred_gender, p.age_min, p.age_max, p.radius_km
		FROM match_settings p
		JOIN users u ON u.id = p.user_id
		WHERE p.user_id = $1`

	var pref Preference
	err := s.db.QueryRowContext(ctx, query, userID).Scan(
		&pref.UserID, &pref.Age, &pref.Gender,
		&pref.PreferredGender, &pref.AgeMin, &pref.AgeMax, &pref.RadiusKM,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("preferences: load %d: %w", userID, err)
	}
	return &pref, nil
}
