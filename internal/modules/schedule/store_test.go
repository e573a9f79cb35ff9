// README: DB-backed tests for the itinerary store. Skipped without
// TRIPGEN_TEST_DSN.
package schedule

import (
	"context"
	"testing"
	"time"

	"tripgen/internal/dbtest"
	"tripgen/internal/types"
)

func setupScheduleStore(t *testing.T) *PGStore {
	t.Helper()
	return NewPGStore(dbtest.Pool(t, "ai_schedules"))
}

func saveSchedule(t *testing.T, store *PGStore, tripID types.ID, day *int, content string) *Schedule {
	t.Helper()
	sc := &Schedule{
		TripID:    tripID,
		Day:       day,
		Content:   content,
		ModelID:   "gpt-4",
		CreatedAt: time.Now(),
	}
	if err := store.Save(context.Background(), sc); err != nil {
		t.Fatalf("save schedule: %v", err)
	}
	return sc
}

func TestSaveAssignsSequentialVersions(t *testing.T) {
	store := setupScheduleStore(t)
	day2 := 2

	first := saveSchedule(t, store, "trip-db", nil, `{"days":[1,2,3]}`)
	patch := saveSchedule(t, store, "trip-db", &day2, `{"day":2}`)
	second := saveSchedule(t, store, "trip-db", nil, `{"days":[1,2,3,4]}`)

	if first.Version != 1 || patch.Version != 2 || second.Version != 3 {
		t.Fatalf("versions = %d, %d, %d, want 1, 2, 3", first.Version, patch.Version, second.Version)
	}

	// A second trip starts its own version sequence.
	other := saveSchedule(t, store, "trip-other", nil, `{"days":[1]}`)
	if other.Version != 1 {
		t.Fatalf("other trip version = %d, want 1", other.Version)
	}
}

func TestLatestFullSkipsDayPatches(t *testing.T) {
	ctx := context.Background()
	store := setupScheduleStore(t)
	day1 := 1

	saveSchedule(t, store, "trip-db", nil, `{"days":[1,2]}`)
	saveSchedule(t, store, "trip-db", &day1, `{"day":1}`)

	latest, err := store.LatestFull(ctx, "trip-db")
	if err != nil {
		t.Fatalf("latest full: %v", err)
	}
	if latest.Version != 1 || latest.Day != nil {
		t.Fatalf("latest = version %d, day %v", latest.Version, latest.Day)
	}

	if _, err := store.LatestFull(ctx, "trip-unknown"); err != ErrNotFound {
		t.Fatalf("unknown trip error = %v, want ErrNotFound", err)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := setupScheduleStore(t)

	saveSchedule(t, store, "trip-db", nil, `{"v":1}`)
	saveSchedule(t, store, "trip-db", nil, `{"v":2}`)
	saveSchedule(t, store, "trip-db", nil, `{"v":3}`)

	history, err := store.History(ctx, "trip-db")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("history length = %d, want 3", len(history))
	}
	for i, want := range []int{3, 2, 1} {
		if history[i].Version != want {
			t.Errorf("history[%d].Version = %d, want %d", i, history[i].Version, want)
		}
	}
}
