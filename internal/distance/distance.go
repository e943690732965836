// Package distance looks up road distances between rider trip endpoints
package distance

import (
	"context"
	"fmt"
	"sync"

	"social-rideshare/internal/models"
)

// DistanceResult contains the result of a distance calculation
type DistanceResult struct {
	DistanceMeters float64
	DurationSecs   float64
}

// DistanceCalculator provides distance calculations between coordinates
type DistanceCalculator interface {
	GetDistance(ctx context.Context, origin, dest models.Coordinates) (*DistanceResult, error)
	GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]DistanceResult, error)
}

// Cache stores distances between rounded coordinates
type Cache interface {
	Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error)
	SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error
}

// ErrDistanceCalculationFailed is returned when a distance provider fails
type ErrDistanceCalculationFailed struct {
	Provider string
	Reason   string
}

func (e *ErrDistanceCalculationFailed) Error() string {
	return fmt.Sprintf("distance calculation failed (%s): %s", e.Provider, e.Reason)
}

// Kilometres converts a result matrix into kilometres. Unknown entries
// (zero distance between distinct points) become -1.
func Kilometres(points []models.Coordinates, matrix [][]DistanceResult) [][]float64 {
	km := make([][]float64, len(matrix))
	for i := range matrix {
		km[i] = make([]float64, len(matrix[i]))
		for j, r := range matrix[i] {
			switch {
			case r.DistanceMeters > 0:
				km[i][j] = r.DistanceMeters / 1000
			case i < len(points) && j < len(points) && samePoint(points[i], points[j]):
				km[i][j] = 0
			default:
				km[i][j] = -1
			}
		}
	}
	return km
}

func samePoint(a, b models.Coordinates) bool {
	return models.RoundCoordinate(a.Lat) == models.RoundCoordinate(b.Lat) &&
		models.RoundCoordinate(a.Lng) == models.RoundCoordinate(b.Lng)
}

func cacheKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f",
		models.RoundCoordinate(origin.Lat), models.RoundCoordinate(origin.Lng),
		models.RoundCoordinate(dest.Lat), models.RoundCoordinate(dest.Lng))
}

// MemoryCache is a process local Cache, used when no cache file is configured
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]models.DistanceCacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]models.DistanceCacheEntry)}
}

func (c *MemoryCache) Get(ctx context.Context, origin, dest models.Coordinates) (*models.DistanceCacheEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[cacheKey(origin, dest)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *MemoryCache) SetBatch(ctx context.Context, entries []models.DistanceCacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entries {
		c.entries[cacheKey(e.Origin, e.Destination)] = e
	}
	return nil
}

// Count returns the number of cached pairs
func (c *MemoryCache) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// cachedMatrix fills every cached cell of an n×n matrix and returns the
// cells still missing
func cachedMatrix(ctx context.Context, cache Cache, points []models.Coordinates) ([][]DistanceResult, int, error) {
	n := len(points)
	matrix := make([][]DistanceResult, n)
	for i := range matrix {
		matrix[i] = make([]DistanceResult, n)
	}

	missing := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j || samePoint(points[i], points[j]) {
				continue
			}
			cached, err := cache.Get(ctx, points[i], points[j])
			if err != nil {
				return nil, 0, err
			}
			if cached == nil {
				missing++
				continue
			}
			matrix[i][j] = DistanceResult{DistanceMeters: cached.DistanceMeters, DurationSecs: cached.DurationSecs}
		}
	}
	return matrix, missing, nil
}
