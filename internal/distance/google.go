package distance

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"googlemaps.github.io/maps"

	"social-rideshare/internal/models"
)

// maxGoogleBlock keeps each Distance Matrix request within the 100 element limit
const maxGoogleBlock = 10

type googleCalculator struct {
	client *maps.Client
	cache  Cache
	logger *zap.Logger
}

// NewGoogleCalculator creates a Google Distance Matrix client backed by
// cache. Extra client options (for example maps.WithBaseURL) are applied
// after the API key.
func NewGoogleCalculator(apiKey string, cache Cache, logger *zap.Logger, opts ...maps.ClientOption) (DistanceCalculator, error) {
	client, err := maps.NewClient(append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &googleCalculator{
		client: client,
		cache:  cache,
		logger: logger.Named("google"),
	}, nil
}

func (c *googleCalculator) GetDistance(ctx context.Context, origin, dest models.Coordinates) (*DistanceResult, error) {
	if samePoint(origin, dest) {
		return &DistanceResult{}, nil
	}

	matrix, err := c.GetDistanceMatrix(ctx, []models.Coordinates{origin, dest})
	if err != nil {
		return nil, err
	}
	if matrix[0][1].DistanceMeters <= 0 {
		return nil, &ErrDistanceCalculationFailed{Provider: "google", Reason: "no route between points"}
	}
	return &matrix[0][1], nil
}

func (c *googleCalculator) GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]DistanceResult, error) {
	n := len(points)
	if n == 0 {
		return [][]DistanceResult{}, nil
	}

	matrix, missing, err := cachedMatrix(ctx, c.cache, points)
	if err != nil {
		return nil, err
	}
	if missing == 0 {
		c.logger.Debug("distance matrix all cached", zap.Int("points", n))
		return matrix, nil
	}

	var (
		mu      sync.Mutex
		entries []models.DistanceCacheEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRequests)

	batches := indexBatches(n, maxGoogleBlock)
	for _, origins := range batches {
		for _, destinations := range batches {
			origins, destinations := origins, destinations
			g.Go(func() error {
				found, err := c.fetchBlock(gctx, points, origins, destinations, matrix)
				if err != nil {
					return err
				}
				mu.Lock()
				entries = append(entries, found...)
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	c.logger.Debug("distance matrix complete", zap.Int("points", n), zap.Int("entries", len(entries)))

	if len(entries) > 0 {
		if err := c.cache.SetBatch(ctx, entries); err != nil {
			return nil, err
		}
	}
	return matrix, nil
}

func (c *googleCalculator) fetchBlock(ctx context.Context, points []models.Coordinates, origins, destinations []int, matrix [][]DistanceResult) ([]models.DistanceCacheEntry, error) {
	req := &maps.DistanceMatrixRequest{
		Origins:      latLngStrings(points, origins),
		Destinations: latLngStrings(points, destinations),
		Mode:         maps.TravelModeDriving,
	}

	resp, err := c.client.DistanceMatrix(ctx, req)
	if err != nil {
		c.logger.Error("distance matrix request failed", zap.Int("origins", len(origins)), zap.Error(err))
		return nil, &ErrDistanceCalculationFailed{Provider: "google", Reason: err.Error()}
	}
	if len(resp.Rows) != len(origins) {
		return nil, &ErrDistanceCalculationFailed{
			Provider: "google",
			Reason:   fmt.Sprintf("expected %d rows, got %d", len(origins), len(resp.Rows)),
		}
	}

	var entries []models.DistanceCacheEntry
	for oi, src := range origins {
		elements := resp.Rows[oi].Elements
		for di, dst := range destinations {
			if src == dst || di >= len(elements) || elements[di] == nil {
				continue
			}
			el := elements[di]
			if el.Status != "OK" || el.Distance.Meters <= 0 {
				continue
			}
			result := DistanceResult{
				DistanceMeters: float64(el.Distance.Meters),
				DurationSecs:   el.Duration.Seconds(),
			}
			matrix[src][dst] = result
			entries = append(entries, models.DistanceCacheEntry{
				Origin:         points[src],
				Destination:    points[dst],
				DistanceMeters: result.DistanceMeters,
				DurationSecs:   result.DurationSecs,
			})
		}
	}
	return entries, nil
}

func latLngStrings(points []models.Coordinates, indices []int) []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = fmt.Sprintf("%.6f,%.6f", points[idx].Lat, points[idx].Lng)
	}
	return out
}
