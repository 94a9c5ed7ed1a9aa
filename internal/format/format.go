// Package format renders generation results into display text. It is purely
// functional: the session hands it the raw collaborator payload and gets back
// the string to append as the assistant message.
package format

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Itinerary is the structured generation result. All sections beyond the
// destination header are optional; absent sections are skipped, not zeroed.
type Itinerary struct {
	Destination         string         `json:"destination"`
	RecommendedDuration any            `json:"recommendedDuration"`
	IdealSeason         string         `json:"idealSeason"`
	EstimatedBudget     any            `json:"estimatedBudget"`
	BudgetBreakdown     map[string]any `json:"budgetBreakdown"`
	PointsOfInterest    []string       `json:"pointsOfInterest"`
	Days                []Day          `json:"itinerary"`
	PracticalTips       []string       `json:"practicalTips"`
	CallToAction        string         `json:"callToAction"`
}

// Day is one itinerary step.
type Day struct {
	Day           int      `json:"day"`
	Location      string   `json:"location"`
	Description   string   `json:"description"`
	Distance      string   `json:"distance"`
	DriveTime     string   `json:"driveTime"`
	Stops         []string `json:"stops"`
	Activities    []string `json:"activities"`
	Accommodation string   `json:"accommodation"`
}

// The product is French-first; currency rendering follows the French locale
// (thousands separators, trailing € sign).
var printer = message.NewPrinter(language.French)

// Euros renders an amount with locale-aware separators and the € suffix.
// Exposed so tests assert against the same locale tables they exercise.
func Euros(amount float64) string {
	if amount == float64(int64(amount)) {
		return printer.Sprintf("%d €", int64(amount))
	}
	return printer.Sprintf("%.2f €", amount)
}

// ParseAmount converts a budget figure into a number. Figures may arrive as
// JSON numbers or as strings with a trailing "k" multiplier and either comma
// or period decimals ("1,5k" → 1500). Returns false when no number is there.
func ParseAmount(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(strings.ToLower(n))
		s = strings.TrimSuffix(s, "€")
		s = strings.ReplaceAll(s, " ", "")
		mult := 1.0
		if strings.HasSuffix(s, "k") {
			mult = 1000
			s = strings.TrimSuffix(s, "k")
		}
		s = strings.ReplaceAll(s, ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f * mult, true
	default:
		return 0, false
	}
}

// Response renders a raw generation payload for display. String payloads are
// JSON-parsed first; anything unparseable is shown as-is.
func Response(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ""
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(trimmed), &obj); err != nil {
		return trimmed
	}

	if reason, ok := obj["error"]; ok {
		return fmt.Sprintf("La génération de l'itinéraire a échoué : %v", reason)
	}

	if _, ok := obj["destination"]; ok {
		var it Itinerary
		if err := json.Unmarshal([]byte(trimmed), &it); err == nil {
			return renderItinerary(it)
		}
	}

	for _, key := range []string{"content", "message", "text"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}

	// Last resort: a readable structured dump.
	dump, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return trimmed
	}
	return string(dump)
}

func renderItinerary(it Itinerary) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Destination : %s\n", it.Destination)
	if d := renderDuration(it.RecommendedDuration); d != "" {
		fmt.Fprintf(&b, "Durée conseillée : %s\n", d)
	}
	if it.IdealSeason != "" {
		fmt.Fprintf(&b, "Saison idéale : %s\n", it.IdealSeason)
	}
	if total, ok := budgetTotal(it); ok {
		fmt.Fprintf(&b, "Budget estimé : %s\n", Euros(total))
	}

	if len(it.BudgetBreakdown) > 0 {
		b.WriteString("\nBudget détaillé :\n")
		keys := make([]string, 0, len(it.BudgetBreakdown))
		for k := range it.BudgetBreakdown {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if amount, ok := ParseAmount(it.BudgetBreakdown[k]); ok {
				fmt.Fprintf(&b, "- %s : %s\n", k, Euros(amount))
			} else {
				fmt.Fprintf(&b, "- %s : %v\n", k, it.BudgetBreakdown[k])
			}
		}
	}

	if len(it.PointsOfInterest) > 0 {
		fmt.Fprintf(&b, "\nÀ ne pas manquer : %s\n", strings.Join(it.PointsOfInterest, ", "))
	}

	for _, day := range it.Days {
		fmt.Fprintf(&b, "\nJour %d — %s\n", day.Day, day.Location)
		if day.Description != "" {
			fmt.Fprintf(&b, "%s\n", day.Description)
		}
		if day.Distance != "" || day.DriveTime != "" {
			b.WriteString("Trajet :")
			if day.Distance != "" {
				fmt.Fprintf(&b, " %s", day.Distance)
			}
			if day.DriveTime != "" {
				fmt.Fprintf(&b, " (%s)", day.DriveTime)
			}
			b.WriteString("\n")
		}
		if len(day.Stops) > 0 {
			fmt.Fprintf(&b, "Étapes conseillées : %s\n", strings.Join(day.Stops, ", "))
		}
		if len(day.Activities) > 0 {
			fmt.Fprintf(&b, "Activités : %s\n", strings.Join(day.Activities, ", "))
		}
		if day.Accommodation != "" {
			fmt.Fprintf(&b, "Hébergement : %s\n", day.Accommodation)
		}
	}

	if len(it.PracticalTips) > 0 {
		b.WriteString("\nConseils pratiques :\n")
		for _, tip := range it.PracticalTips {
			fmt.Fprintf(&b, "- %s\n", tip)
		}
	}

	if it.CallToAction != "" {
		fmt.Fprintf(&b, "\n%s\n", it.CallToAction)
	}

	return strings.TrimRight(b.String(), "\n")
}

// budgetTotal prefers an explicit total; when the total is absent it falls
// back to summing the parsed breakdown. A missing total with no breakdown
// renders nothing rather than zero.
func budgetTotal(it Itinerary) (float64, bool) {
	if total, ok := ParseAmount(it.EstimatedBudget); ok {
		return total, true
	}
	if len(it.BudgetBreakdown) == 0 {
		return 0, false
	}
	var sum float64
	var found bool
	for _, v := range it.BudgetBreakdown {
		if amount, ok := ParseAmount(v); ok {
			sum += amount
			found = true
		}
	}
	return sum, found
}

func renderDuration(v any) string {
	switch d := v.(type) {
	case nil:
		return ""
	case float64:
		return fmt.Sprintf("%d jours", int(d))
	case string:
		return d
	default:
		return fmt.Sprintf("%v", d)
	}
}
