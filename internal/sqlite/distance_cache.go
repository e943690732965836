package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"social-rideshare/internal/distance"
	"social-rideshare/internal/models"
)

// DistanceCache stores road distances keyed by rounded coordinates
type DistanceCache struct {
	store *Store
}

var _ distance.Cache = (*DistanceCache)(nil)

const upsertDistance = `INSERT OR REPLACE INTO distance_cache
	(origin_lat, origin_lng, dest_lat, dest_lng, distance_meters, duration_secs)
	VALUES (?, ?, ?, ?, ?, ?)`

func (r *DistanceCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	query := `SELECT origin_lat, origin_lng, dest_lat, dest_lng, distance_meters, duration_secs
	          FROM distance_cache
	          WHERE origin_lat = ? AND origin_lng = ? AND dest_lat = ? AND dest_lng = ?`

	var entry models.DistanceCacheEntry
	err := r.store.db.QueryRowContext(ctx, query,
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng),
	).Scan(
		&entry.Origin.Lat, &entry.Origin.Lng,
		&entry.Destination.Lat, &entry.Destination.Lng,
		&entry.DistanceMeters, &entry.DurationSecs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get distance cache entry: %w", err)
	}
	return &entry, nil
}

func (r *DistanceCache) Set(ctx context.Context, entry *models.DistanceCacheEntry) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx, upsertDistance,
		models.RoundCoordinate(entry.Origin.Lat), models.RoundCoordinate(entry.Origin.Lng),
		models.RoundCoordinate(entry.Destination.Lat), models.RoundCoordinate(entry.Destination.Lng),
		entry.DistanceMeters, entry.DurationSecs,
	)
	if err != nil {
		return fmt.Errorf("failed to set distance cache entry: %w", err)
	}
	return nil
}

func (r *DistanceCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	if len(entries) == 0 {
		return nil
	}

	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertDistance)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		_, err := stmt.ExecContext(ctx,
			models.RoundCoordinate(entry.Origin.Lat), models.RoundCoordinate(entry.Origin.Lng),
			models.RoundCoordinate(entry.Destination.Lat), models.RoundCoordinate(entry.Destination.Lng),
			entry.DistanceMeters, entry.DurationSecs)
		if err != nil {
			return fmt.Errorf("failed to insert batch entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Count returns the number of cached pairs
func (r *DistanceCache) Count(ctx context.Context) (int, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var n int
	if err := r.store.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM distance_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count distance cache: %w", err)
	}
	return n, nil
}

func (r *DistanceCache) Clear(ctx context.Context) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, err := r.store.db.ExecContext(ctx, "DELETE FROM distance_cache"); err != nil {
		return fmt.Errorf("failed to clear distance cache: %w", err)
	}
	return nil
}
