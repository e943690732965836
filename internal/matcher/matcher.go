// Package matcher runs the full pipeline for one request: ingest the graph,
// enrich trips with addresses and road distances, score every pair, assign
// riders to rides and format the result.
package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"social-rideshare/internal/assignment"
	"social-rideshare/internal/distance"
	"social-rideshare/internal/format"
	"social-rideshare/internal/geocoding"
	"social-rideshare/internal/ingest"
	"social-rideshare/internal/models"
	"social-rideshare/internal/scoring"
)

// Request is one invocation. Graph and Number are passed through
// undecoded so every accepted shape reaches the ingestor.
type Request struct {
	Graph     json.RawMessage `json:"graph"`
	Number    json.RawMessage `json:"number"`
	Algorithm string          `json:"algorithm,omitempty"`
	Options   *Options        `json:"options,omitempty"`
}

// Config holds the defaults a request starts from
type Config struct {
	Algorithm      assignment.Algorithm
	Scoring        scoring.Config
	Assignment     assignment.Config
	GeocodeRetries int
	// DistanceTimeout bounds the road distance lookup of one request.
	// Zero means no bound beyond the request context.
	DistanceTimeout time.Duration
}

// DefaultConfig returns the defaults of every stage
func DefaultConfig() Config {
	return Config{
		Algorithm:      assignment.AlgorithmAuto,
		Scoring:        scoring.DefaultConfig(),
		Assignment:     assignment.DefaultConfig(),
		GeocodeRetries: 1,
	}
}

// Service is safe for concurrent use
type Service struct {
	cfg      Config
	distance distance.DistanceCalculator
	geocoder geocoding.Geocoder
	logger   *zap.Logger
}

// NewService wires the pipeline. calc and geocoder may be nil, in which case
// trips use great circle distances and addresses are not resolved.
func NewService(cfg Config, calc distance.DistanceCalculator, geocoder geocoding.Geocoder, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cfg:      cfg,
		distance: calc,
		geocoder: geocoder,
		logger:   logger.Named("matcher"),
	}
}

// Solve runs one request end to end
func (s *Service) Solve(ctx context.Context, req *Request) (*format.Response, error) {
	start := time.Now()

	g, capacity, err := ingest.Ingest(req.Graph, req.Number)
	if err != nil {
		return nil, err
	}

	algorithm := s.cfg.Algorithm
	if req.Algorithm != "" {
		algorithm, err = assignment.ParseAlgorithm(req.Algorithm)
		if err != nil {
			return nil, err
		}
	}
	scoringCfg, assignmentCfg, err := req.Options.apply(s.cfg.Scoring, s.cfg.Assignment)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("graph ingested",
		zap.Int("riders", g.Len()),
		zap.Int("edges", len(g.Edges)),
		zap.Int("capacity", capacity))

	var warnings []string
	warnings = append(warnings, s.geocode(ctx, g)...)

	table, tableWarnings := s.distanceTable(ctx, g)
	warnings = append(warnings, tableWarnings...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scorer := scoring.NewScorer(scoringCfg, g, table)
	matrix, err := scoring.BuildMatrix(ctx, scorer)
	if err != nil {
		return nil, fmt.Errorf("failed to score pairs: %w", err)
	}
	s.logger.Debug("pairs scored", zap.Int("riders", matrix.Len()))

	engine := assignment.NewEngine(assignmentCfg, s.logger)
	result, err := engine.Assign(ctx, &assignment.Request{
		IDs:       g.IDs(),
		Scores:    matrix,
		Capacity:  capacity,
		Algorithm: algorithm,
	})
	if err != nil {
		return nil, err
	}
	result.Warnings = append(warnings, result.Warnings...)

	s.logger.Info("request solved",
		zap.Int("riders", g.Len()),
		zap.String("tier", result.Tier),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("elapsed", time.Since(start)))

	return format.NewResponse(result), nil
}

// geocode fills trip ends that only carry an address. Lookups that fail
// leave the end unknown and produce a warning.
func (s *Service) geocode(ctx context.Context, g *models.Graph) []string {
	var warnings []string
	pending := 0
	for i := range g.Riders {
		r := &g.Riders[i]
		if r.Origin == nil && r.OriginAddress != "" {
			pending++
		}
		if r.Destination == nil && r.DestinationAddress != "" {
			pending++
		}
	}
	if pending == 0 {
		return nil
	}
	if s.geocoder == nil {
		return []string{fmt.Sprintf("geocoding is disabled, %d addresses were not resolved", pending)}
	}

	resolve := func(id, end, address string) *models.Coordinates {
		result, err := s.geocoder.GeocodeWithRetry(ctx, address, s.cfg.GeocodeRetries)
		if err != nil {
			s.logger.Warn("geocoding failed", zap.String("rider", id), zap.String("end", end), zap.Error(err))
			warnings = append(warnings, fmt.Sprintf("could not geocode %s of rider %s: %v", end, id, err))
			return nil
		}
		coords := result.Coords
		return &coords
	}

	for i := range g.Riders {
		if ctx.Err() != nil {
			break
		}
		r := &g.Riders[i]
		if r.Origin == nil && r.OriginAddress != "" {
			r.Origin = resolve(r.ID, "origin", r.OriginAddress)
		}
		if r.Destination == nil && r.DestinationAddress != "" {
			r.Destination = resolve(r.ID, "destination", r.DestinationAddress)
		}
	}
	return warnings
}

// distanceTable asks the distance provider for road distances between all
// trip ends. Without a provider, or when it fails, the scorer falls back to
// great circle distances.
func (s *Service) distanceTable(ctx context.Context, g *models.Graph) (scoring.DistanceTable, []string) {
	if s.distance == nil {
		return nil, nil
	}

	points := tripPoints(g)
	if len(points) < 2 {
		return nil, nil
	}

	if s.cfg.DistanceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.DistanceTimeout)
		defer cancel()
	}
	matrix, err := s.distance.GetDistanceMatrix(ctx, points)
	if err != nil {
		s.logger.Warn("distance lookup failed, using great circle distances", zap.Int("points", len(points)), zap.Error(err))
		return nil, []string{fmt.Sprintf("road distances unavailable, using great circle distances: %v", err)}
	}
	return scoring.NewTable(points, distance.Kilometres(points, matrix)), nil
}

// tripPoints lists the distinct trip ends of riders with complete trips
func tripPoints(g *models.Graph) []models.Coordinates {
	seen := make(map[[2]float64]bool)
	var points []models.Coordinates
	add := func(c models.Coordinates) {
		key := [2]float64{models.RoundCoordinate(c.Lat), models.RoundCoordinate(c.Lng)}
		if !seen[key] {
			seen[key] = true
			points = append(points, c)
		}
	}
	for i := range g.Riders {
		r := &g.Riders[i]
		if r.HasTrip() {
			add(*r.Origin)
			add(*r.Destination)
		}
	}
	return points
}
