// README: Itinerary executors. Full generation grounds the prompt in real
// places from the Places API; day regeneration reworks one day against the
// latest stored itinerary.
package schedule

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tripgen/internal/ai"
	"tripgen/internal/maps"
	"tripgen/internal/modules/job"
	"tripgen/internal/types"
)

// Store is the persistence surface the service needs. *PGStore implements it.
type Store interface {
	Save(ctx context.Context, sc *Schedule) error
	LatestFull(ctx context.Context, tripID types.ID) (*Schedule, error)
	History(ctx context.Context, tripID types.ID) ([]*Schedule, error)
}

// Generator issues one model call. *ai.Invoker implements it.
type Generator interface {
	Generate(ctx context.Context, model ai.ModelDescriptor, kind ai.RequestKind, prompt string) (string, error)
}

// PlaceFinder looks up real attractions for prompt grounding.
// *maps.PlacesService implements it; nil skips the lookup.
type PlaceFinder interface {
	TopAttractions(ctx context.Context, destination string, limit int) ([]maps.Place, error)
}

// ModelPicker selects a model for synchronous calls outside the job flow.
type ModelPicker interface {
	Select(ctx context.Context, requireHighPerformance bool) (ai.ModelDescriptor, error)
}

const attractionLimit = 8

type Service struct {
	store  Store
	gen    Generator
	places PlaceFinder
	picker ModelPicker
	now    func() time.Time
}

func NewService(store Store, gen Generator, places PlaceFinder, picker ModelPicker) *Service {
	return &Service{store: store, gen: gen, places: places, picker: picker, now: time.Now}
}

// FullExecutor runs SCHEDULE_GENERATION jobs on the high performance tier.
type FullExecutor struct{ *Service }

func (e FullExecutor) Type() job.Type                { return job.TypeScheduleGeneration }
func (e FullExecutor) RequiresHighPerformance() bool { return true }

func (e FullExecutor) Execute(ctx context.Context, j *job.Job, model ai.ModelDescriptor, report job.ProgressFunc) (string, error) {
	var req TripRequest
	if err := json.Unmarshal([]byte(j.RequestData), &req); err != nil {
		return "", &ai.ParseError{Reason: "bad schedule request: " + err.Error()}
	}
	if req.Destination == "" {
		return "", &ai.ParseError{Reason: "missing destination"}
	}

	report(20, "collecting location data")
	locationContext := ""
	if e.places != nil {
		attractions, err := e.places.TopAttractions(ctx, req.Destination, attractionLimit)
		if err != nil {
			// The itinerary can still be generated without grounding places.
			log.Printf("job %s: places lookup for %q: %v", j.RequestID, req.Destination, err)
		} else {
			locationContext = maps.ContextLines(attractions)
		}
	}

	report(60, "generating itinerary")
	content, err := e.gen.Generate(ctx, model, ai.KindSchedule, buildTripPrompt(req, locationContext))
	if err != nil {
		return "", err
	}

	report(80, "saving results")
	sc := &Schedule{TripID: j.TripID, Content: content, ModelID: model.ModelID, CreatedAt: e.now()}
	if err := e.store.Save(ctx, sc); err != nil {
		return "", err
	}
	return content, nil
}

// DayExecutor runs DAY_SCHEDULE_REGENERATION jobs on the standard tier.
type DayExecutor struct{ *Service }

func (e DayExecutor) Type() job.Type                { return job.TypeDayScheduleRegeneration }
func (e DayExecutor) RequiresHighPerformance() bool { return false }

func (e DayExecutor) Execute(ctx context.Context, j *job.Job, model ai.ModelDescriptor, report job.ProgressFunc) (string, error) {
	var req DayRequest
	if err := json.Unmarshal([]byte(j.RequestData), &req); err != nil {
		return "", &ai.ParseError{Reason: "bad day request: " + err.Error()}
	}
	if req.Day <= 0 {
		return "", &ai.ParseError{Reason: "day must be positive"}
	}

	report(20, "loading current itinerary")
	current, err := e.store.LatestFull(ctx, j.TripID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", &ai.ParseError{Reason: "no itinerary to regenerate from"}
		}
		return "", err
	}

	report(60, "regenerating day")
	content, err := e.gen.Generate(ctx, model, ai.KindSchedule, buildDayPrompt(req, current.Content))
	if err != nil {
		return "", err
	}

	report(80, "saving results")
	day := req.Day
	sc := &Schedule{TripID: j.TripID, Day: &day, Content: content, ModelID: model.ModelID, CreatedAt: e.now()}
	if err := e.store.Save(ctx, sc); err != nil {
		return "", err
	}
	return content, nil
}

func buildTripPrompt(req TripRequest, locationContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Destination: %s\n", req.Destination)
	fmt.Fprintf(&b, "Dates: %s to %s\n", req.StartDate, req.EndDate)
	fmt.Fprintf(&b, "Travelers: %s\n", req.Travelers)
	fmt.Fprintf(&b, "Transport: %s\n", req.Transport)
	if len(req.Preferences) > 0 {
		fmt.Fprintf(&b, "Preferences: %s\n", strings.Join(req.Preferences, ", "))
	}
	if req.Weather != "" {
		fmt.Fprintf(&b, "Weather forecast: %s\n", req.Weather)
	}
	if req.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", req.Notes)
	}
	if locationContext != "" {
		b.WriteString("Well rated places at the destination:\n")
		b.WriteString(locationContext)
	}
	b.WriteString("Generate a complete day-by-day itinerary.")
	return b.String()
}

func buildDayPrompt(req DayRequest, currentItinerary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current itinerary:\n%s\n\n", currentItinerary)
	fmt.Fprintf(&b, "Regenerate day %d only. Keep every other day unchanged.\n", req.Day)
	if req.Feedback != "" {
		fmt.Fprintf(&b, "Traveler feedback on the current day: %s\n", req.Feedback)
	}
	if req.Weather != "" {
		fmt.Fprintf(&b, "Weather forecast: %s\n", req.Weather)
	}
	return b.String()
}

const weatherImpactPrompt = `Current itinerary:
%s

Weather forecast:
%s

Assess how this weather affects the itinerary. Respond with JSON containing a
"recommendations" object with affected days, risk levels, and suggested swaps.`

// WeatherImpact analyzes the latest itinerary of a trip against a forecast.
// Runs synchronously on the standard tier.
func (s *Service) WeatherImpact(ctx context.Context, tripID types.ID, forecast string) (string, error) {
	current, err := s.store.LatestFull(ctx, tripID)
	if err != nil {
		return "", err
	}
	model, err := s.picker.Select(ctx, false)
	if err != nil {
		return "", err
	}
	return s.gen.Generate(ctx, model, ai.KindRecommendation,
		fmt.Sprintf(weatherImpactPrompt, current.Content, forecast))
}

// Latest returns the newest full itinerary for a trip.
func (s *Service) Latest(ctx context.Context, tripID types.ID) (*Schedule, error) {
	return s.store.LatestFull(ctx, tripID)
}

// History returns all stored generations for a trip, newest first.
func (s *Service) History(ctx context.Context, tripID types.ID) ([]*Schedule, error) {
	return s.store.History(ctx, tripID)
}
