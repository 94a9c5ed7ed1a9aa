package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRoadtripRelated_EmptyInput(t *testing.T) {
	require.False(t, IsRoadtripRelated(""))
	require.False(t, IsRoadtripRelated("   "))
	require.False(t, IsRoadtripRelated("\n\t"))
}

func TestIsRoadtripRelated(t *testing.T) {
	cases := []struct {
		name string
		text string
		want bool
	}{
		{"intent plus duration", "je veux faire un roadtrip de 5 jours", true},
		{"intent plus time hint", "un voyage cet été", true},
		{"intent plus pendant", "partir pendant les fêtes", true},
		{"intent plus place preposition", "un itinéraire en Provence", true},
		{"intent plus place word", "des vacances à la montagne", true},
		{"english intent plus duration", "plan a trip for 3 days", true},
		{"intent alone", "je veux voyager", false},
		{"place alone", "la Provence est belle en général", false},
		{"off topic", "quelle est la capitale du Japon ?", false},
		{"diacritics folded", "un séjour de 4 jours", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsRoadtripRelated(tc.text))
		})
	}
}

// The vocabularies are configuration data; every intent entry must itself
// pass the filter once paired with a duration, otherwise the list has drifted.
func TestIntentWordsAreAdmissible(t *testing.T) {
	for _, w := range IntentWords {
		if !IsRoadtripRelated(w + " de 3 jours") {
			t.Fatalf("intent word %q no longer admissible", w)
		}
	}
}

func TestExtractDuration_NoMention(t *testing.T) {
	for _, text := range []string{
		"",
		"un roadtrip en Bretagne",
		"0 jours",
		"pendant quelques jours",
	} {
		v := ExtractDuration(text)
		require.Nil(t, v.Days, "text %q", text)
		require.Empty(t, v.Err, "text %q", text)
	}
}

func TestExtractDuration_Months(t *testing.T) {
	// Month-class units are a hard rejection regardless of magnitude.
	for _, text := range []string{"2 mois", "1 mois", "12 months", "1 month en Italie"} {
		v := ExtractDuration(text)
		require.Nil(t, v.Days, "text %q", text)
		require.Equal(t, ErrTripTooLong, v.Err, "text %q", text)
	}
}

func TestExtractDuration(t *testing.T) {
	cases := []struct {
		text string
		days int
	}{
		{"10 jours", 10},
		{"1 jour", 1},
		{"2 semaines", 14},
		{"1 semaine en Corse", 7},
		{"un roadtrip de 5 days", 5},
		{"3j sur la côte", 3},
		{"2 weeks around Scotland", 14},
		{"1 w", 7},
		{"15 jours", 15},
	}
	for _, tc := range cases {
		v := ExtractDuration(tc.text)
		require.Empty(t, v.Err, "text %q", tc.text)
		require.NotNil(t, v.Days, "text %q", tc.text)
		require.Equal(t, tc.days, *v.Days, "text %q", tc.text)
	}
}

func TestExtractDuration_OverCeiling(t *testing.T) {
	for _, text := range []string{"20 jours", "16 jours", "3 semaines", "100 days"} {
		v := ExtractDuration(text)
		require.Nil(t, v.Days, "text %q", text)
		require.Equal(t, ErrTripTooLong, v.Err, "text %q", text)
	}
}

func TestExtractDuration_FirstMatchWins(t *testing.T) {
	v := ExtractDuration("5 jours puis 3 semaines")
	require.NotNil(t, v.Days)
	require.Equal(t, 5, *v.Days)
}

func TestErrTripTooLongMentionsCeiling(t *testing.T) {
	require.True(t, strings.Contains(ErrTripTooLong, "15"))
}
