// README: Postgres persistence for generated itineraries.
package schedule

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripgen/internal/types"
)

var ErrNotFound = errors.New("schedule not found")

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// Save stores a result under the next version for the trip. The subselect
// and insert run in one statement so concurrent saves cannot share a version.
func (s *PGStore) Save(ctx context.Context, sc *Schedule) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO ai_schedules (trip_id, version, day, content, model_id, created_at)
		VALUES ($1,
			(SELECT COALESCE(MAX(version), 0) + 1 FROM ai_schedules WHERE trip_id = $1),
			$2, $3, $4, $5)
		RETURNING id, version`,
		sc.TripID, sc.Day, sc.Content, sc.ModelID, sc.CreatedAt,
	)
	if err := row.Scan(&sc.ID, &sc.Version); err != nil {
		return fmt.Errorf("save schedule: %w", err)
	}
	return nil
}

// LatestFull returns the newest full itinerary for a trip, skipping
// single-day regenerations.
func (s *PGStore) LatestFull(ctx context.Context, tripID types.ID) (*Schedule, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, trip_id, version, day, content, model_id, created_at
		FROM ai_schedules
		WHERE trip_id = $1 AND day IS NULL
		ORDER BY version DESC LIMIT 1`,
		tripID)
	return scanSchedule(row)
}

func (s *PGStore) History(ctx context.Context, tripID types.ID) ([]*Schedule, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, trip_id, version, day, content, model_id, created_at
		FROM ai_schedules WHERE trip_id = $1 ORDER BY version DESC`,
		tripID)
	if err != nil {
		return nil, fmt.Errorf("query schedule history: %w", err)
	}
	defer rows.Close()

	var out []*Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanSchedule(row pgx.Row) (*Schedule, error) {
	var sc Schedule
	err := row.Scan(&sc.ID, &sc.TripID, &sc.Version, &sc.Day, &sc.Content, &sc.ModelID, &sc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan schedule: %w", err)
	}
	return &sc, nil
}
