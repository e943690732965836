package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"social-rideshare/internal/geocoding"
	"social-rideshare/internal/models"
	"social-rideshare/internal/testutil"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), DefaultDBFileName), zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestDistanceCacheSetGet(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	origin := models.Coordinates{Lat: 40.7128, Lng: -74.0060}
	dest := models.Coordinates{Lat: 42.3601, Lng: -71.0589}

	require.NoError(t, store.DistanceCache().Set(ctx, &models.DistanceCacheEntry{
		Origin:         origin,
		Destination:    dest,
		DistanceMeters: 35000.0,
		DurationSecs:   3600.0,
	}))

	cached, err := store.DistanceCache().Get(ctx, origin, dest)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 35000.0, cached.DistanceMeters)
	assert.Equal(t, 3600.0, cached.DurationSecs)
}

func TestDistanceCacheGetNotFound(t *testing.T) {
	store := setupTestStore(t)

	cached, err := store.DistanceCache().Get(context.Background(),
		models.Coordinates{Lat: 40.0, Lng: -75.0},
		models.Coordinates{Lat: 41.0, Lng: -76.0})
	require.NoError(t, err)
	assert.Nil(t, cached)
}

func TestDistanceCacheRoundsCoordinates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.DistanceCache().Set(ctx, &models.DistanceCacheEntry{
		Origin:         models.Coordinates{Lat: 40.712801, Lng: -74.006001},
		Destination:    models.Coordinates{Lat: 42.360101, Lng: -71.058901},
		DistanceMeters: 100,
	}))

	cached, err := store.DistanceCache().Get(ctx,
		models.Coordinates{Lat: 40.7128, Lng: -74.006},
		models.Coordinates{Lat: 42.3601, Lng: -71.0589})
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 100.0, cached.DistanceMeters)
}

func TestDistanceCacheSetBatchAndClear(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	cache := store.DistanceCache()

	entries := []models.DistanceCacheEntry{
		{Origin: models.Coordinates{Lat: 1, Lng: 1}, Destination: models.Coordinates{Lat: 2, Lng: 2}, DistanceMeters: 10},
		{Origin: models.Coordinates{Lat: 2, Lng: 2}, Destination: models.Coordinates{Lat: 1, Lng: 1}, DistanceMeters: 11},
		{Origin: models.Coordinates{Lat: 1, Lng: 1}, Destination: models.Coordinates{Lat: 3, Lng: 3}, DistanceMeters: 12},
	}
	require.NoError(t, cache.SetBatch(ctx, entries))
	require.NoError(t, cache.SetBatch(ctx, nil))

	n, err := cache.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	// replacing an entry keeps the count
	entries[0].DistanceMeters = 20
	require.NoError(t, cache.SetBatch(ctx, entries[:1]))
	cached, err := cache.Get(ctx, entries[0].Origin, entries[0].Destination)
	require.NoError(t, err)
	assert.Equal(t, 20.0, cached.DistanceMeters)

	require.NoError(t, cache.Clear(ctx))
	n, err = cache.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestStoreReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultDBFileName)
	ctx := context.Background()

	store, err := New(path, nil)
	require.NoError(t, err)
	require.NoError(t, store.DistanceCache().Set(ctx, &models.DistanceCacheEntry{
		Origin:         models.Coordinates{Lat: 1, Lng: 1},
		Destination:    models.Coordinates{Lat: 2, Lng: 2},
		DistanceMeters: 42,
	}))
	require.NoError(t, store.Close())

	store, err = New(path, nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, path, store.Path())
	cached, err := store.DistanceCache().Get(ctx, models.Coordinates{Lat: 1, Lng: 1}, models.Coordinates{Lat: 2, Lng: 2})
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 42.0, cached.DistanceMeters)
}

func TestStoreMigratesVersionOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultDBFileName)

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec(`
		CREATE TABLE schema_version (version INTEGER PRIMARY KEY);
		INSERT INTO schema_version (version) VALUES (1);
		CREATE TABLE distance_cache (
			origin_lat REAL NOT NULL,
			origin_lng REAL NOT NULL,
			dest_lat REAL NOT NULL,
			dest_lng REAL NOT NULL,
			distance_meters REAL NOT NULL,
			duration_secs REAL NOT NULL,
			PRIMARY KEY (origin_lat, origin_lng, dest_lat, dest_lng)
		);`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	store, err := New(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer store.Close()

	var version int
	require.NoError(t, store.db.QueryRow("SELECT version FROM schema_version").Scan(&version))
	assert.Equal(t, schemaVersion, version)

	ctx := context.Background()
	require.NoError(t, store.GeocodeCache().Set(ctx, "1 Main St", &geocoding.GeocodingResult{
		Coords: models.Coordinates{Lat: 1, Lng: 2},
	}))
}

func TestMemoryStore(t *testing.T) {
	store, err := New(":memory:", nil)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.HealthCheck(context.Background()))
	n, err := store.DistanceCache().Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGeocodeCacheNormalizesAddress(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.GeocodeCache().Set(ctx, "  10 Downing St,  London ", &geocoding.GeocodingResult{
		Coords:      models.Coordinates{Lat: 51.5034, Lng: -0.1276},
		DisplayName: "10 Downing Street",
	}))

	got, err := store.GeocodeCache().Get(ctx, "10 downing st, london")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 51.5034, got.Coords.Lat)
	assert.Equal(t, "10 Downing Street", got.DisplayName)

	missing, err := store.GeocodeCache().Get(ctx, "11 Downing St")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestCachedGeocoder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mock := testutil.NewMockGeocoder(map[string]models.Coordinates{
		"Main St": {Lat: 1, Lng: 2},
	})
	geocoder := &CachedGeocoder{Geocoder: mock, Cache: store.GeocodeCache()}

	for i := 0; i < 3; i++ {
		result, err := geocoder.GeocodeWithRetry(ctx, "Main St", 2)
		require.NoError(t, err)
		assert.Equal(t, models.Coordinates{Lat: 1, Lng: 2}, result.Coords)
	}
	assert.Equal(t, []string{"Main St"}, mock.Calls())

	_, err := geocoder.Geocode(ctx, "Nowhere")
	var failed *geocoding.ErrGeocodingFailed
	assert.True(t, errors.As(err, &failed))
}
