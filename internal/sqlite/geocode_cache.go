package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"social-rideshare/internal/geocoding"
)

// GeocodeCache remembers resolved addresses. Addresses are matched after
// trimming and lower casing.
type GeocodeCache struct {
	store *Store
}

func normalizeAddress(address string) string {
	return strings.ToLower(strings.Join(strings.Fields(address), " "))
}

func (r *GeocodeCache) Get(ctx context.Context, address string) (*geocoding.GeocodingResult, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	var result geocoding.GeocodingResult
	err := r.store.db.QueryRowContext(ctx,
		"SELECT lat, lng, display_name FROM geocode_cache WHERE address = ?",
		normalizeAddress(address),
	).Scan(&result.Coords.Lat, &result.Coords.Lng, &result.DisplayName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geocode cache entry: %w", err)
	}
	return &result, nil
}

func (r *GeocodeCache) Set(ctx context.Context, address string, result *geocoding.GeocodingResult) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	_, err := r.store.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO geocode_cache (address, lat, lng, display_name) VALUES (?, ?, ?, ?)",
		normalizeAddress(address), result.Coords.Lat, result.Coords.Lng, result.DisplayName)
	if err != nil {
		return fmt.Errorf("failed to set geocode cache entry: %w", err)
	}
	return nil
}

// CachedGeocoder answers from the cache before asking the wrapped geocoder
type CachedGeocoder struct {
	Geocoder geocoding.Geocoder
	Cache    *GeocodeCache
}

var _ geocoding.Geocoder = (*CachedGeocoder)(nil)

func (g *CachedGeocoder) Geocode(ctx context.Context, address string) (*geocoding.GeocodingResult, error) {
	return g.lookup(ctx, address, func() (*geocoding.GeocodingResult, error) {
		return g.Geocoder.Geocode(ctx, address)
	})
}

func (g *CachedGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*geocoding.GeocodingResult, error) {
	return g.lookup(ctx, address, func() (*geocoding.GeocodingResult, error) {
		return g.Geocoder.GeocodeWithRetry(ctx, address, maxRetries)
	})
}

func (g *CachedGeocoder) lookup(ctx context.Context, address string, fetch func() (*geocoding.GeocodingResult, error)) (*geocoding.GeocodingResult, error) {
	cached, err := g.Cache.Get(ctx, address)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	result, err := fetch()
	if err != nil {
		return nil, err
	}
	if err := g.Cache.Set(ctx, address, result); err != nil {
		g.Cache.store.logger.Warn("geocode cache write failed", zap.String("address", address), zap.Error(err))
	}
	return result, nil
}
