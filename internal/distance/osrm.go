package distance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"social-rideshare/internal/models"
)

// DefaultOSRMURL is the public OSRM demo server
const DefaultOSRMURL = "https://router.project-osrm.org"

// maxOSRMCoordinates is the maximum number of coordinates OSRM public API accepts
const maxOSRMCoordinates = 80

// maxConcurrentRequests bounds parallel table requests for large matrices
const maxConcurrentRequests = 2

type osrmCalculator struct {
	baseURL    string
	httpClient *http.Client
	cache      Cache
	logger     *zap.Logger
}

type osrmTableResponse struct {
	Code      string      `json:"code"`
	Distances [][]float64 `json:"distances"`
	Durations [][]float64 `json:"durations"`
}

// NewOSRMCalculator creates an OSRM table API client backed by cache
func NewOSRMCalculator(baseURL string, cache Cache, logger *zap.Logger) DistanceCalculator {
	if baseURL == "" {
		baseURL = DefaultOSRMURL
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &osrmCalculator{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache:  cache,
		logger: logger.Named("osrm"),
	}
}

func (c *osrmCalculator) GetDistance(ctx context.Context, origin, dest models.Coordinates) (*DistanceResult, error) {
	if samePoint(origin, dest) {
		return &DistanceResult{}, nil
	}

	matrix, err := c.GetDistanceMatrix(ctx, []models.Coordinates{origin, dest})
	if err != nil {
		return nil, err
	}
	if matrix[0][1].DistanceMeters <= 0 {
		return nil, &ErrDistanceCalculationFailed{Provider: "osrm", Reason: "no route between points"}
	}
	return &matrix[0][1], nil
}

func (c *osrmCalculator) GetDistanceMatrix(ctx context.Context, points []models.Coordinates) ([][]DistanceResult, error) {
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

	c.logger.Debug("distance matrix request",
		zap.Int("points", n),
		zap.Int("cached", n*n-n-missing),
		zap.Int("missing", missing))

	// cells are written by exactly one block, so blocks fill the matrix concurrently
	var (
		mu      sync.Mutex
		entries []models.DistanceCacheEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentRequests)

	batches := indexBatches(n, maxOSRMCoordinates)
	for _, sources := range batches {
		for _, destinations := range batches {
			sources, destinations := sources, destinations
			g.Go(func() error {
				found, err := c.fetchBlock(gctx, points, sources, destinations, matrix)
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

	c.logger.Debug("distance matrix complete",
		zap.Int("points", n),
		zap.Int("requests", len(batches)*len(batches)),
		zap.Int("entries", len(entries)))

	if len(entries) > 0 {
		if err := c.cache.SetBatch(ctx, entries); err != nil {
			return nil, err
		}
	}
	return matrix, nil
}

// fetchBlock requests distances from sources to destinations and writes
// them into matrix
func (c *osrmCalculator) fetchBlock(ctx context.Context, points []models.Coordinates, sources, destinations []int, matrix [][]DistanceResult) ([]models.DistanceCacheEntry, error) {
	// the request lists each point once, sources first
	local := make(map[int]int, len(sources)+len(destinations))
	var coords []string
	for _, list := range [][]int{sources, destinations} {
		for _, idx := range list {
			if _, ok := local[idx]; ok {
				continue
			}
			local[idx] = len(coords)
			coords = append(coords, fmt.Sprintf("%.6f,%.6f", points[idx].Lng, points[idx].Lat))
		}
	}

	queryURL := fmt.Sprintf("%s/table/v1/driving/%s?annotations=distance,duration", c.baseURL, strings.Join(coords, ";"))
	if len(coords) != len(sources) || len(sources) != len(destinations) || sources[0] != destinations[0] {
		queryURL += "&sources=" + joinLocal(sources, local) + "&destinations=" + joinLocal(destinations, local)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrDistanceCalculationFailed{Provider: "osrm", Reason: err.Error()}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("table request failed", zap.Int("points", len(coords)), zap.Error(err))
		return nil, &ErrDistanceCalculationFailed{Provider: "osrm", Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		c.logger.Error("table request rejected", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		return nil, &ErrDistanceCalculationFailed{
			Provider: "osrm",
			Reason:   fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var table osrmTableResponse
	if err := json.NewDecoder(resp.Body).Decode(&table); err != nil {
		return nil, &ErrDistanceCalculationFailed{Provider: "osrm", Reason: err.Error()}
	}
	if table.Code != "Ok" {
		return nil, &ErrDistanceCalculationFailed{Provider: "osrm", Reason: fmt.Sprintf("OSRM error: %s", table.Code)}
	}
	if len(table.Distances) != len(sources) {
		return nil, &ErrDistanceCalculationFailed{
			Provider: "osrm",
			Reason:   fmt.Sprintf("expected %d rows, got %d", len(sources), len(table.Distances)),
		}
	}

	var entries []models.DistanceCacheEntry
	for si, src := range sources {
		for di, dst := range destinations {
			if src == dst || di >= len(table.Distances[si]) {
				continue
			}
			dist := table.Distances[si][di]
			if dist <= 0 {
				continue
			}
			var dur float64
			if si < len(table.Durations) && di < len(table.Durations[si]) {
				dur = table.Durations[si][di]
			}
			matrix[src][dst] = DistanceResult{DistanceMeters: dist, DurationSecs: dur}
			entries = append(entries, models.DistanceCacheEntry{
				Origin:         points[src],
				Destination:    points[dst],
				DistanceMeters: dist,
				DurationSecs:   dur,
			})
		}
	}
	return entries, nil
}

func indexBatches(n, size int) [][]int {
	var batches [][]int
	for start := 0; start < n; start += size {
		end := start + size
		if end > n {
			end = n
		}
		batch := make([]int, 0, end-start)
		for i := start; i < end; i++ {
			batch = append(batch, i)
		}
		batches = append(batches, batch)
	}
	return batches
}

func joinLocal(indices []int, local map[int]int) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(local[idx])
	}
	return strings.Join(parts, ";")
}
