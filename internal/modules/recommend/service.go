// README: Recommendation executor. Serves from the profile cache when it
// can, generates and caches otherwise.
package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"tripgen/internal/ai"
	"tripgen/internal/modules/job"
	"tripgen/internal/types"
)

// Store is the cache surface the service needs. *PGStore implements it.
type Store interface {
	FindValid(ctx context.Context, placeID types.ID, fingerprint string, now time.Time) (*Recommendation, error)
	Save(ctx context.Context, r *Recommendation) error
	RecordAccess(ctx context.Context, id int64, now time.Time) (int, error)
	Extend(ctx context.Context, id int64, until time.Time) error
	FindPopular(ctx context.Context, now time.Time, limit int) ([]*Recommendation, error)
	DeleteExpiredUnpopular(ctx context.Context, now time.Time, unusedCutoff time.Time) (int64, error)
	InvalidateByPlace(ctx context.Context, placeID types.ID) (int64, error)
}

// Generator issues one model call. *ai.Invoker implements it.
type Generator interface {
	Generate(ctx context.Context, model ai.ModelDescriptor, kind ai.RequestKind, prompt string) (string, error)
}

type Service struct {
	store Store
	gen   Generator
	now   func() time.Time
}

func NewService(store Store, gen Generator) *Service {
	return &Service{store: store, gen: gen, now: time.Now}
}

func (s *Service) Type() job.Type                { return job.TypeRecommendationGeneration }
func (s *Service) RequiresHighPerformance() bool { return false }

// Execute runs one recommendation job. A cache hit skips the provider call
// entirely and the bound model never runs; the cached entry keeps the model
// id it was generated with.
func (s *Service) Execute(ctx context.Context, j *job.Job, model ai.ModelDescriptor, report job.ProgressFunc) (string, error) {
	var req Request
	if err := json.Unmarshal([]byte(j.RequestData), &req); err != nil {
		return "", &ai.ParseError{Reason: "bad recommendation request: " + err.Error()}
	}
	if req.PlaceID == "" {
		return "", &ai.ParseError{Reason: "missing place id"}
	}

	report(20, "checking cache")
	fp := Fingerprint(req.Profile)
	now := s.now()

	cached, err := s.store.FindValid(ctx, req.PlaceID, fp, now)
	if err == nil {
		s.touch(ctx, cached)
		return cached.Content, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return "", err
	}

	report(60, "generating recommendation")
	content, err := s.gen.Generate(ctx, model, ai.KindRecommendation, buildPrompt(req))
	if err != nil {
		return "", err
	}

	report(80, "saving results")
	now = s.now()
	rec := &Recommendation{
		PlaceID:     req.PlaceID,
		PlaceName:   req.PlaceName,
		Fingerprint: fp,
		ModelID:     model.ModelID,
		Content:     content,
		AccessCount: 1,
		CreatedAt:   now,
		ExpiresAt:   now.Add(CacheTTL),
		LastAccess:  now,
	}
	if err := s.store.Save(ctx, rec); err != nil {
		// The generation itself succeeded; serve it even if caching failed.
		log.Printf("recommendation cache save for place %s: %v", req.PlaceID, err)
	}
	return content, nil
}

// touch records a cache hit and renews the TTL of popular entries.
func (s *Service) touch(ctx context.Context, rec *Recommendation) {
	now := s.now()
	count, err := s.store.RecordAccess(ctx, rec.ID, now)
	if err != nil {
		log.Printf("recommendation access for place %s: %v", rec.PlaceID, err)
		return
	}
	if count >= PopularThreshold {
		if err := s.store.Extend(ctx, rec.ID, now.Add(CacheTTL)); err != nil {
			log.Printf("recommendation extend for place %s: %v", rec.PlaceID, err)
		}
	}
}

func buildPrompt(req Request) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Place: %s (id %s)\n", req.PlaceName, req.PlaceID)
	fmt.Fprintf(&b, "Traveler group: %s\n", req.Profile.GroupComposition)
	if req.Profile.HealthStatus != "" {
		fmt.Fprintf(&b, "Health considerations: %s\n", req.Profile.HealthStatus)
	}
	fmt.Fprintf(&b, "Transport: %s\n", req.Profile.TransportMode)
	if len(req.Profile.Preferences) > 0 {
		fmt.Fprintf(&b, "Preferences: %s\n", strings.Join(req.Profile.Preferences, ", "))
	}
	b.WriteString("Generate personalized recommendation details for this place.")
	return b.String()
}

// Popular lists the currently popular cached recommendations.
func (s *Service) Popular(ctx context.Context, limit int) ([]*Recommendation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.FindPopular(ctx, s.now(), limit)
}

// InvalidatePlace drops all cached variants for a place.
func (s *Service) InvalidatePlace(ctx context.Context, placeID types.ID) (int64, error) {
	return s.store.InvalidateByPlace(ctx, placeID)
}

// CleanupExpired reaps expired unpopular entries plus anything untouched for
// the given age.
func (s *Service) CleanupExpired(ctx context.Context, unusedFor time.Duration) (int64, error) {
	now := s.now()
	return s.store.DeleteExpiredUnpopular(ctx, now, now.Add(-unusedFor))
}
