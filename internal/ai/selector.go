// README: Model selection with static priority fallback across providers.
package ai

import (
	"context"
	"time"
)

const defaultProbeTimeout = 5 * time.Second

// Selector picks the first available model from an ordered preference list.
type Selector struct {
	adapters     map[Family]ProviderAdapter
	highPref     []ModelDescriptor
	standardPref []ModelDescriptor
	probeTimeout time.Duration
}

type SelectorOption func(*Selector)

// WithPreferences overrides the default preference lists.
func WithPreferences(high, standard []ModelDescriptor) SelectorOption {
	return func(s *Selector) {
		s.highPref = high
		s.standardPref = standard
	}
}

// WithProbeTimeout overrides the per-candidate availability probe deadline.
// The probe timeout is much shorter than the generation timeout: a slow probe
// counts as unavailable rather than stalling selection.
func WithProbeTimeout(d time.Duration) SelectorOption {
	return func(s *Selector) { s.probeTimeout = d }
}

// NewSelector builds a Selector over the given adapters.
func NewSelector(adapters []ProviderAdapter, opts ...SelectorOption) *Selector {
	byFamily := make(map[Family]ProviderAdapter, len(adapters))
	for _, a := range adapters {
		byFamily[a.Family()] = a
	}
	s := &Selector{
		adapters:     byFamily,
		highPref:     HighPerformancePreference,
		standardPref: StandardPreference,
		probeTimeout: defaultProbeTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select walks the preference list for the requested performance class and
// returns the first candidate whose adapter reports it available. Probing
// short-circuits on the first hit. Returns ErrNoModelAvailable when every
// candidate fails its probe.
func (s *Selector) Select(ctx context.Context, requireHighPerformance bool) (ModelDescriptor, error) {
	prefs := s.standardPref
	if requireHighPerformance {
		prefs = s.highPref
	}

	for _, candidate := range prefs {
		adapter, ok := s.adapters[candidate.Family]
		if !ok {
			continue
		}
		probeCtx, cancel := context.WithTimeout(ctx, s.probeTimeout)
		available := adapter.IsAvailable(probeCtx, candidate.ModelID)
		cancel()
		if available {
			return candidate, nil
		}
	}
	return ModelDescriptor{}, ErrNoModelAvailable
}

// Adapter returns the registered adapter for a family.
func (s *Selector) Adapter(f Family) (ProviderAdapter, bool) {
	a, ok := s.adapters[f]
	return a, ok
}
