// Package tier maps pricing tiers to gateway models.
//
// Every tier has exactly one default model. Only the free tier carries an
// ordered fallback chain, used when its models are rate limited. A [Policy]
// is built once at process start and never mutated afterwards.
package tier

import "strings"

// Tier is a named access level controlling which model is used.
type Tier string

// String returns the tier identifier.
func (t Tier) String() string { return string(t) }

// Supported tiers.
const (
	Free         Tier = "free"
	Premium      Tier = "premium"
	UltraPremium Tier = "ultra-premium"
	Enterprise   Tier = "enterprise"
)

// All lists the supported tiers from lowest to highest.
var All = []Tier{Free, Premium, UltraPremium, Enterprise}

// Parse normalizes a caller-supplied tier identifier.
// The second return value is false when the value is not a known tier,
// in which case the lowest tier is returned.
func Parse(s string) (Tier, bool) {
	t := Tier(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range All {
		if t == known {
			return t, true
		}
	}
	return Free, false
}

// Valid reports whether t is one of the supported tiers.
func (t Tier) Valid() bool {
	for _, known := range All {
		if t == known {
			return true
		}
	}
	return false
}
