package recommend

import "testing"

func TestFingerprintDeterministic(t *testing.T) {
	p := TravelerProfile{
		GroupComposition: "2 adults, 1 child",
		HealthStatus:     "wheelchair user",
		TransportMode:    "public transit",
		Preferences:      []string{"museums", "food"},
	}
	if Fingerprint(p) != Fingerprint(p) {
		t.Fatal("same profile hashed differently")
	}
	if got := len(Fingerprint(p)); got != 64 {
		t.Errorf("fingerprint length = %d, want 64 hex chars", got)
	}
}

func TestFingerprintIgnoresPreferenceOrder(t *testing.T) {
	a := TravelerProfile{GroupComposition: "solo", TransportMode: "walking",
		Preferences: []string{"food", "museums", "nightlife"}}
	b := TravelerProfile{GroupComposition: "solo", TransportMode: "walking",
		Preferences: []string{"nightlife", "food", "museums"}}
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("preference order changed the fingerprint")
	}
}

func TestFingerprintSensitivity(t *testing.T) {
	base := TravelerProfile{
		GroupComposition: "solo",
		HealthStatus:     "none",
		TransportMode:    "walking",
		Preferences:      []string{"food"},
	}
	tests := []struct {
		name   string
		mutate func(p *TravelerProfile)
	}{
		{"group composition", func(p *TravelerProfile) { p.GroupComposition = "family" }},
		{"health status", func(p *TravelerProfile) { p.HealthStatus = "limited mobility" }},
		{"transport mode", func(p *TravelerProfile) { p.TransportMode = "car" }},
		{"added preference", func(p *TravelerProfile) { p.Preferences = append(p.Preferences, "art") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changed := base
			changed.Preferences = append([]string(nil), base.Preferences...)
			tt.mutate(&changed)
			if Fingerprint(base) == Fingerprint(changed) {
				t.Errorf("changing %s did not change the fingerprint", tt.name)
			}
		})
	}
}

func TestFingerprintDoesNotGlueFieldsTogether(t *testing.T) {
	tests := []struct {
		name string
		a, b TravelerProfile
	}{
		{"plain boundary shift",
			TravelerProfile{GroupComposition: "ab", HealthStatus: "c"},
			TravelerProfile{GroupComposition: "a", HealthStatus: "bc"}},
		{"underscore inside a field",
			TravelerProfile{GroupComposition: "a_b", HealthStatus: "c"},
			TravelerProfile{GroupComposition: "a", HealthStatus: "b_c"}},
		{"comma inside a preference",
			TravelerProfile{Preferences: []string{"food,art"}},
			TravelerProfile{Preferences: []string{"art", "food"}}},
		{"preference glued onto transport",
			TravelerProfile{TransportMode: "walking", Preferences: []string{"food"}},
			TravelerProfile{TransportMode: "walking_food"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Fingerprint(tt.a) == Fingerprint(tt.b) {
				t.Error("distinct profiles hashed equal")
			}
		})
	}
}

func TestFingerprintMutationSafety(t *testing.T) {
	p := TravelerProfile{Preferences: []string{"b", "a"}}
	_ = Fingerprint(p)
	if p.Preferences[0] != "b" {
		t.Error("Fingerprint sorted the caller's slice in place")
	}
}
