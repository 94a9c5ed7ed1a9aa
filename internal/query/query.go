// Package query gates free-text input for the roadtrip assistant: deciding
// whether a message is in-domain at all, and extracting the trip-duration
// constraint when one is mentioned.
//
// The vocabularies and patterns below are heuristic configuration data, not
// hidden logic. They are exported so tests can enumerate them.
package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxTripDays is the product ceiling on itinerary length. It bounds the cost
// and complexity of downstream generation; every caller must route duration
// interpretation through ExtractDuration rather than re-deriving it.
const MaxTripDays = 15

// ErrTripTooLong is the user-facing message for any duration above the
// ceiling, including month-class durations which are rejected outright.
var ErrTripTooLong = fmt.Sprintf("La durée maximale d'un roadtrip est de %d jours.", MaxTripDays)

// Validation is the outcome of duration extraction. At most one field is set:
// Days for an accepted duration, Err for a rejected one. Both empty means no
// duration was mentioned, which is not an error.
type Validation struct {
	Days *int
	Err  string
}

// IntentWords is the travel-intent vocabulary, French and English, matched
// against diacritic-folded lowercase text.
var IntentWords = []string{
	"roadtrip", "road trip", "road-trip",
	"voyage", "voyager", "itineraire", "itinerary",
	"trip", "travel", "destination",
	"partir", "visiter", "explorer",
	"vacances", "vacation", "sejour", "escapade", "circuit",
}

// TimeHintWords are tokens that anchor a request in time.
var TimeHintWords = []string{
	"demain", "tomorrow", "weekend", "week-end",
	"semaine", "semaines", "week", "weeks", "mois", "month", "months",
	"jour", "jours", "day", "days",
	"ete", "summer", "hiver", "winter",
	"printemps", "spring", "automne", "autumn",
	"juillet", "aout", "july", "august",
}

// PlaceWords are explicit place-category tokens.
var PlaceWords = []string{
	"ville", "city", "region", "pays", "country",
	"plage", "beach", "montagne", "mountain",
	"cote", "coast", "mer", "sea", "parc", "park",
}

var (
	// durationShaped matches a number followed by a duration unit anywhere
	// in the text; used only as a temporal signal for admissibility.
	durationShaped = regexp.MustCompile(`\d+\s*(days?|weeks?|jours?|semaines?|j\b)`)

	// placePrep matches a travel preposition followed by a capitalized-style
	// token. Applied to diacritic-folded text with case preserved.
	placePrep = regexp.MustCompile(`\b(?:a|au|aux|en|vers|dans|pour|to|in)\s+[A-Z][\p{L}-]+`)

	// durationUnit captures the first unit-qualified number. Alternatives are
	// ordered longest first so single-letter units never shadow full words.
	durationUnit = regexp.MustCompile(`(\d{1,3})\s*(jours?|days?|semaines?|weeks?|months?|mois|[jdw])\b`)
)

var foldTransformer = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// fold strips diacritics, preserving case.
func fold(s string) string {
	out, _, err := transform.String(foldTransformer, s)
	if err != nil {
		return s
	}
	return out
}

// IsRoadtripRelated reports whether text looks like a roadtrip-planning
// request. It requires both an intent signal and a temporal-or-place signal;
// either alone is insufficient. It never fails: empty or blank input is false.
func IsRoadtripRelated(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	folded := fold(text)
	lowered := strings.ToLower(folded)

	if !containsAny(lowered, IntentWords) {
		return false
	}

	if containsAny(lowered, TimeHintWords) {
		return true
	}
	if durationShaped.MatchString(lowered) {
		return true
	}
	if strings.Contains(lowered, "pendant") {
		return true
	}
	if placePrep.MatchString(folded) {
		return true
	}
	return containsAny(lowered, PlaceWords)
}

// ExtractDuration parses the first unit-qualified duration out of text and
// applies the trip-length policy. No duration, or a non-positive number, is
// not an error: the duration is simply unspecified.
func ExtractDuration(text string) Validation {
	lowered := strings.ToLower(fold(text))

	m := durationUnit.FindStringSubmatch(lowered)
	if m == nil {
		return Validation{}
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return Validation{}
	}

	unit := m[2]
	switch {
	case strings.HasPrefix(unit, "mo"):
		// Months are never convertible, regardless of magnitude.
		return Validation{Err: ErrTripTooLong}
	case strings.HasPrefix(unit, "semaine"), strings.HasPrefix(unit, "week"), unit == "w":
		n *= 7
	}

	if n > MaxTripDays {
		return Validation{Err: ErrTripTooLong}
	}
	return Validation{Days: &n}
}

// containsAny matches single words as whole tokens so that e.g. "bonjour"
// does not count as "jour". Multi-word entries fall back to substring search.
func containsAny(s string, words []string) bool {
	tokens := make(map[string]struct{})
	for _, t := range strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		tokens[t] = struct{}{}
	}
	for _, w := range words {
		if strings.ContainsAny(w, " -") {
			if strings.Contains(s, w) {
				return true
			}
			continue
		}
		if _, ok := tokens[w]; ok {
			return true
		}
	}
	return false
}
