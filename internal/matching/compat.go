package matching

import "github.com/whisper/voicematch/internal/preferences"

// Compatible evaluates the four-condition filter from §4.F step 4. There is
// no scoring: the first candidate satisfying all four conditions is
// selected by the caller's scan order. preferred_gender=any disables the
// gender check on that side only (§8 boundary behavior); age bounds are
// inclusive at both ends.
func Compatible(mine, theirs *preferences.Preference) bool {
	if mine.AgeMin > theirs.Age || theirs.Age > mine.AgeMax {
		return false
	}
	if theirs.AgeMin > mine.Age || mine.Age > theirs.AgeMax {
		return false
	}
	if mine.PreferredGender != preferences.GenderAny && mine.PreferredGender != theirs.Gender {
		return false
	}
	if theirs.PreferredGender != preferences.GenderAny && theirs.PreferredGender != mine.Gender {
		return false
	}
	return true
}

// PriceTable holds the gem cost of a successful pairing, keyed by the
// initiator's own preferred_gender. Overridable via the PRICE_MALE,
// PRICE_FEMALE, and PRICE_ANY configuration options.
type PriceTable struct {
	Male   int
	Female int
	Any    int
}

// DefaultPriceTable returns the prices used when no PRICE_* override is set.
func DefaultPriceTable() PriceTable {
	return PriceTable{Male: 5, Female: 30, Any: 0}
}

// For returns the gem cost for an initiator with the given preferred_gender.
func (t PriceTable) For(preferredGender string) int {
	switch preferredGender {
	case preferences.GenderFemale:
		return t.Female
	case preferences.GenderMale:
		return t.Male
	default:
		return t.Any
	}
}
