package matching

import (
	"testing"

	"github.com/whisper/voicematch/internal/preferences"
)

func pref(age int, gender, preferredGender string, ageMin, ageMax int) *preferences.Preference {
	return &preferences.Preference{
		Age:             age,
		Gender:          gender,
		PreferredGender: preferredGender,
		AgeMin:          ageMin,
		AgeMax:          ageMax,
	}
}

func TestCompatible_AllConditionsHold(t *testing.T) {
	mine := pref(25, preferences.GenderMale, preferences.GenderFemale, 20, 30)
	theirs := pref(24, preferences.GenderFemale, preferences.GenderMale, 18, 40)
	if !Compatible(mine, theirs) {
		t.Fatal("expected compatible pair")
	}
}

func TestCompatible_AgeInclusiveBoundaries(t *testing.T) {
	mine := pref(20, preferences.GenderMale, preferences.GenderAny, 20, 20)
	theirs := pref(20, preferences.GenderFemale, preferences.GenderAny, 20, 20)
	if !Compatible(mine, theirs) {
		t.Fatal("expected boundary ages to be inclusive")
	}
}

func TestCompatible_AgeOutOfRange(t *testing.T) {
	mine := pref(25, preferences.GenderMale, preferences.GenderAny, 20, 30)
	theirs := pref(31, preferences.GenderFemale, preferences.GenderAny, 18, 40)
	if Compatible(mine, theirs) {
		t.Fatal("expected incompatible when candidate age exceeds my range")
	}
}

func TestCompatible_PreferredGenderAnyDisablesOneSide(t *testing.T) {
	mine := pref(25, preferences.GenderMale, preferences.GenderAny, 18, 40)
	theirs := pref(24, preferences.GenderFemale, preferences.GenderMale, 18, 40)
	if !Compatible(mine, theirs) {
		t.Fatal("expected any to disable only my own gender check")
	}
}

func TestCompatible_GenderMismatch(t *testing.T) {
	mine := pref(25, preferences.GenderMale, preferences.GenderFemale, 18, 40)
	theirs := pref(24, preferences.GenderMale, preferences.GenderMale, 18, 40)
	if Compatible(mine, theirs) {
		t.Fatal("expected incompatible on preferred gender mismatch")
	}
}

func TestPriceTable_For(t *testing.T) {
	prices := DefaultPriceTable()
	cases := map[string]int{
		preferences.GenderMale:   prices.Male,
		preferences.GenderFemale: prices.Female,
		preferences.GenderAny:    prices.Any,
	}
	for gender, want := range cases {
		if got := prices.For(gender); got != want {
			t.Errorf("For(%q) = %d, want %d", gender, got, want)
		}
	}
}
