// Package testutil holds deterministic stand-ins for the network backed
// distance and geocoding providers
package testutil

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	"social-rideshare/internal/distance"
	"social-rideshare/internal/geocoding"
	"social-rideshare/internal/models"
)

// MockDistanceCalculator calculates scaled Euclidean distance between
// coordinates for deterministic tests
type MockDistanceCalculator struct {
	ScaleFactor float64

	mu          sync.Mutex
	overrides   map[string]distance.DistanceResult
	matrixCalls int
}

var _ distance.DistanceCalculator = (*MockDistanceCalculator)(nil)

func NewMockDistanceCalculator() *MockDistanceCalculator {
	return &MockDistanceCalculator{
		ScaleFactor: 111000, // 1 degree ≈ 111km in meters
		overrides:   make(map[string]distance.DistanceResult),
	}
}

func makeKey(origin, dest models.Coordinates) string {
	return fmt.Sprintf("%.5f,%.5f->%.5f,%.5f", origin.Lat, origin.Lng, dest.Lat, dest.Lng)
}

// SetDistance sets a custom distance for a specific origin-destination pair
func (m *MockDistanceCalculator) SetDistance(origin, dest models.Coordinates, distMeters, durSecs float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[makeKey(origin, dest)] = distance.DistanceResult{
		DistanceMeters: distMeters,
		DurationSecs:   durSecs,
	}
}

// MatrixCalls returns how many matrices were requested
func (m *MockDistanceCalculator) MatrixCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.matrixCalls
}

func (m *MockDistanceCalculator) lookup(origin, dest models.Coordinates) distance.DistanceResult {
	if override, ok := m.overrides[makeKey(origin, dest)]; ok {
		return override
	}
	if models.RoundCoordinate(origin.Lat) == models.RoundCoordinate(dest.Lat) &&
		models.RoundCoordinate(origin.Lng) == models.RoundCoordinate(dest.Lng) {
		return distance.DistanceResult{}
	}

	dLat := dest.Lat - origin.Lat
	dLng := dest.Lng - origin.Lng
	dist := math.Sqrt(dLat*dLat+dLng*dLng) * m.ScaleFactor
	// average speed of 50 km/h
	return distance.DistanceResult{DistanceMeters: dist, DurationSecs: dist / 50000 * 3600}
}

func (m *MockDistanceCalculator) GetDistance(ctx context.Context, origin, dest models.Coordinates) (*distance.DistanceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := m.lookup(origin, dest)
	return &result, nil
}

func (m *MockDistanceCalculator) GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]distance.DistanceResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.matrixCalls++

	matrix := make([][]distance.DistanceResult, len(points))
	for i := range matrix {
		matrix[i] = make([]distance.DistanceResult, len(points))
		for j := range matrix[i] {
			if i != j {
				matrix[i][j] = m.lookup(points[i], points[j])
			}
		}
	}
	return matrix, nil
}

// FailingDistanceCalculator fails every lookup the way an unreachable
// provider does
type FailingDistanceCalculator struct{}

var _ distance.DistanceCalculator = FailingDistanceCalculator{}

func (FailingDistanceCalculator) GetDistance(ctx context.Context, origin, dest models.Coordinates) (*distance.DistanceResult, error) {
	return nil, &distance.ErrDistanceCalculationFailed{Provider: "mock", Reason: "connection refused"}
}

func (FailingDistanceCalculator) GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]distance.DistanceResult, error) {
	return nil, &distance.ErrDistanceCalculationFailed{Provider: "mock", Reason: "connection refused"}
}

// MockGeocoder resolves addresses from a fixed table
type MockGeocoder struct {
	mu        sync.Mutex
	addresses map[string]models.Coordinates
	calls     []string
}

var _ geocoding.Geocoder = (*MockGeocoder)(nil)

func NewMockGeocoder(addresses map[string]models.Coordinates) *MockGeocoder {
	if addresses == nil {
		addresses = make(map[string]models.Coordinates)
	}
	return &MockGeocoder{addresses: addresses}
}

// Calls returns the addresses looked up so far, in order
func (g *MockGeocoder) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

func (g *MockGeocoder) Geocode(ctx context.Context, address string) (*geocoding.GeocodingResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, address)

	coords, ok := g.addresses[address]
	if !ok {
		return nil, &geocoding.ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}
	return &geocoding.GeocodingResult{Coords: coords, DisplayName: address}, nil
}

func (g *MockGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*geocoding.GeocodingResult, error) {
	var lastErr error
	for i := 0; i < max(maxRetries, 1); i++ {
		result, err := g.Geocode(ctx, address)
		if err == nil {
			return result, nil
		}
		var failed *geocoding.ErrGeocodingFailed
		if !errors.As(err, &failed) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
