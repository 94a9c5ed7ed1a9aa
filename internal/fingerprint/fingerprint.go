// Package fingerprint derives stable cache keys for generation requests.
// Two semantically identical requests must map to the same key so that a
// paid generation call is never repeated; the digest is cryptographic
// because a collision would silently serve the wrong cached itinerary.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Namespace prefixes every derived key, keeping generation keys separable
// from anything else sharing the store.
const Namespace = "roadtrip"

// Request selects exactly the fields that define a generation's identity.
// Missing optional fields serialize as empty values rather than failing.
type Request struct {
	Query       string   `json:"query"`
	Location    string   `json:"location"`
	Duration    int      `json:"duration"`
	Budget      string   `json:"budget"`
	TravelStyle string   `json:"travelStyle"`
	Interests   []string `json:"interests"`
}

// Derive returns the canonical fingerprint: Namespace + "_" + hex sha256 of
// the fixed-order JSON encoding. Interests are order-independent.
func Derive(req Request) string {
	canonical := req
	if len(req.Interests) > 0 {
		canonical.Interests = append([]string(nil), req.Interests...)
		sort.Strings(canonical.Interests)
	} else {
		canonical.Interests = []string{}
	}

	// Struct fields marshal in declaration order, so the encoding is stable.
	payload, err := json.Marshal(canonical)
	if err != nil {
		// Request contains only strings, ints and string slices; Marshal
		// cannot fail on it. Kept as a loud guard rather than a silent path.
		panic("fingerprint: marshal canonical request: " + err.Error())
	}

	sum := sha256.Sum256(payload)
	return Namespace + "_" + hex.EncodeToString(sum[:])
}
