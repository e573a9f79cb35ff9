// README: Cached place recommendations keyed by place and traveler profile.
package recommend

import (
	"time"

	"tripgen/internal/types"
)

const (
	// Cached entries live a week; popular ones get the week renewed on access.
	CacheTTL = 7 * 24 * time.Hour

	// An entry becomes popular once ten distinct requests have hit it.
	PopularThreshold = 10
)

// TravelerProfile is the part of a request that shapes the recommendation.
// Anything not in here must not affect the cache key.
type TravelerProfile struct {
	GroupComposition string   `json:"groupComposition"`
	HealthStatus     string   `json:"healthStatus"`
	TransportMode    string   `json:"transportMode"`
	Preferences      []string `json:"preferences"`
}

// Request is the payload of a RECOMMENDATION_GENERATION job.
type Request struct {
	PlaceID   types.ID        `json:"placeId"`
	PlaceName string          `json:"placeName"`
	Profile   TravelerProfile `json:"travelerProfile"`
}

// Recommendation is one cached generation result.
type Recommendation struct {
	ID          int64
	PlaceID     types.ID
	PlaceName   string
	Fingerprint string
	ModelID     string
	Content     string
	AccessCount int
	CreatedAt   time.Time
	ExpiresAt   time.Time
	LastAccess  time.Time
}

func (r *Recommendation) IsExpired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func (r *Recommendation) IsPopular() bool {
	return r.AccessCount >= PopularThreshold
}
