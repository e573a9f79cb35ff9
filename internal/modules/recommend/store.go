// README: Postgres persistence for the recommendation cache.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tripgen/internal/types"
)

var ErrNotFound = errors.New("recommendation not found")

type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const recColumns = `id, place_id, place_name, fingerprint, model_id, content,
	access_count, created_at, expires_at, last_access`

func scanRecommendation(row pgx.Row) (*Recommendation, error) {
	var r Recommendation
	err := row.Scan(
		&r.ID, &r.PlaceID, &r.PlaceName, &r.Fingerprint, &r.ModelID, &r.Content,
		&r.AccessCount, &r.CreatedAt, &r.ExpiresAt, &r.LastAccess,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan recommendation: %w", err)
	}
	return &r, nil
}

// FindValid returns the unexpired cache entry for a place and profile
// fingerprint, ErrNotFound otherwise. Expired rows are invisible here and
// reaped by cleanup.
func (s *PGStore) FindValid(ctx context.Context, placeID types.ID, fingerprint string, now time.Time) (*Recommendation, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+recColumns+` FROM ai_recommendations
		WHERE place_id = $1 AND fingerprint = $2 AND expires_at > $3`,
		placeID, fingerprint, now)
	return scanRecommendation(row)
}

// Save upserts a cache entry. A concurrent generation for the same key wins
// by last write; both results are valid for the same profile.
func (s *PGStore) Save(ctx context.Context, r *Recommendation) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO ai_recommendations
			(place_id, place_name, fingerprint, model_id, content,
			 access_count, created_at, expires_at, last_access)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (place_id, fingerprint) DO UPDATE
		SET content = EXCLUDED.content, model_id = EXCLUDED.model_id,
			created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at,
			last_access = EXCLUDED.last_access
		RETURNING id`,
		r.PlaceID, r.PlaceName, r.Fingerprint, r.ModelID, r.Content,
		r.AccessCount, r.CreatedAt, r.ExpiresAt, r.LastAccess,
	)
	if err := row.Scan(&r.ID); err != nil {
		return fmt.Errorf("save recommendation: %w", err)
	}
	return nil
}

// RecordAccess bumps the hit counter and returns the new count.
func (s *PGStore) RecordAccess(ctx context.Context, id int64, now time.Time) (int, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE ai_recommendations
		SET access_count = access_count + 1, last_access = $2
		WHERE id = $1
		RETURNING access_count`,
		id, now)
	var count int
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("record access: %w", err)
	}
	return count, nil
}

// Extend pushes the expiry out for a popular entry.
func (s *PGStore) Extend(ctx context.Context, id int64, until time.Time) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE ai_recommendations SET expires_at = $2 WHERE id = $1`, id, until)
	if err != nil {
		return fmt.Errorf("extend recommendation: %w", err)
	}
	return nil
}

// FindPopular lists unexpired entries at or above the popularity threshold,
// most accessed first.
func (s *PGStore) FindPopular(ctx context.Context, now time.Time, limit int) ([]*Recommendation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+recColumns+` FROM ai_recommendations
		WHERE access_count >= $1 AND expires_at > $2
		ORDER BY access_count DESC, last_access DESC
		LIMIT $3`,
		PopularThreshold, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query popular recommendations: %w", err)
	}
	defer rows.Close()

	var out []*Recommendation
	for rows.Next() {
		r, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteExpiredUnpopular reaps entries that are expired and never earned
// popularity. Popular entries survive expiry until untouched past the cutoff.
func (s *PGStore) DeleteExpiredUnpopular(ctx context.Context, now time.Time, unusedCutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM ai_recommendations
		WHERE (expires_at <= $1 AND access_count < $2) OR last_access < $3`,
		now, PopularThreshold, unusedCutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired recommendations: %w", err)
	}
	return tag.RowsAffected(), nil
}

// InvalidateByPlace drops every cached profile variant for one place. Used
// when place data changes upstream.
func (s *PGStore) InvalidateByPlace(ctx context.Context, placeID types.ID) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM ai_recommendations WHERE place_id = $1`, placeID)
	if err != nil {
		return 0, fmt.Errorf("invalidate recommendations: %w", err)
	}
	return tag.RowsAffected(), nil
}
