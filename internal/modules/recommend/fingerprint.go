package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
)

// Fingerprint derives the cache key component from a traveler profile.
// Preferences are sorted so their order never splits the cache. Every field
// is length prefixed before hashing, so values containing separator
// characters cannot collide across field boundaries. Equal profiles always
// hash equal.
func Fingerprint(p TravelerProfile) string {
	prefs := append([]string(nil), p.Preferences...)
	sort.Strings(prefs)

	h := sha256.New()
	field := func(s string) { fmt.Fprintf(h, "%d:%s", len(s), s) }
	field(p.GroupComposition)
	field(p.HealthStatus)
	field(p.TransportMode)
	for _, pref := range prefs {
		field(pref)
	}
	return hex.EncodeToString(h.Sum(nil))
}
