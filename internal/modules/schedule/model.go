// README: Generated itineraries and their request payloads.
package schedule

import (
	"time"

	"tripgen/internal/types"
)

// TripRequest is the payload of a SCHEDULE_GENERATION job.
type TripRequest struct {
	TripID      types.ID `json:"tripId"`
	Destination string   `json:"destination"`
	StartDate   string   `json:"startDate"`
	EndDate     string   `json:"endDate"`
	Travelers   string   `json:"travelers"`
	Transport   string   `json:"transportMode"`
	Preferences []string `json:"preferences"`
	Weather     string   `json:"weatherInfo,omitempty"`
	Notes       string   `json:"notes,omitempty"`
}

// DayRequest is the payload of a DAY_SCHEDULE_REGENERATION job. Feedback
// says what was wrong with the day being replaced.
type DayRequest struct {
	TripID   types.ID `json:"tripId"`
	Day      int      `json:"day"`
	Feedback string   `json:"feedback"`
	Weather  string   `json:"weatherInfo,omitempty"`
}

// Schedule is one stored generation result. Full itineraries have Day nil;
// regenerated single days carry the day number. Version increases per trip.
type Schedule struct {
	ID        int64
	TripID    types.ID
	Version   int
	Day       *int
	Content   string
	ModelID   string
	CreatedAt time.Time
}
