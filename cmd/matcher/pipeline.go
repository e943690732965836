package main

import (
	"net/http"

	"go.uber.org/zap"
	"googlemaps.github.io/maps"

	"social-rideshare/internal/assignment"
	"social-rideshare/internal/config"
	"social-rideshare/internal/distance"
	"social-rideshare/internal/geocoding"
	"social-rideshare/internal/matcher"
	"social-rideshare/internal/sqlite"
)

// pipeline is a wired matcher and the cache it owns
type pipeline struct {
	service *matcher.Service
	// store is nil when no provider needs a cache or the cache failed to open
	store *sqlite.Store
}

func (p *pipeline) Close() error {
	if p.store == nil {
		return nil
	}
	return p.store.Close()
}

// buildPipeline wires the distance provider, geocoder and cache chosen in cfg
func buildPipeline(cfg *config.Config, logger *zap.Logger) (*pipeline, error) {
	algorithm, err := assignment.ParseAlgorithm(cfg.Algorithm)
	if err != nil {
		return nil, err
	}

	p := &pipeline{}
	dc := cfg.Distance

	if dc.Provider != config.ProviderNone || dc.Geocode {
		p.store = openCache(dc.CachePath, logger)
	}

	var cache distance.Cache = distance.NewMemoryCache()
	if p.store != nil {
		cache = p.store.DistanceCache()
	}

	var calc distance.DistanceCalculator
	switch dc.Provider {
	case config.ProviderOSRM:
		calc = distance.NewOSRMCalculator(dc.BaseURL, cache, logger)
	case config.ProviderGoogle:
		opts := []maps.ClientOption{maps.WithHTTPClient(&http.Client{Timeout: dc.Timeout})}
		if dc.BaseURL != "" {
			opts = append(opts, maps.WithBaseURL(dc.BaseURL))
		}
		calc, err = distance.NewGoogleCalculator(dc.APIKey, cache, logger, opts...)
		if err != nil {
			p.Close()
			return nil, err
		}
	}

	var geocoder geocoding.Geocoder
	if dc.Geocode {
		geocoder = geocoding.NewNominatimGeocoder(dc.GeocoderURL, logger)
		if p.store != nil {
			geocoder = &sqlite.CachedGeocoder{Geocoder: geocoder, Cache: p.store.GeocodeCache()}
		}
	}

	p.service = matcher.NewService(matcher.Config{
		Algorithm:       algorithm,
		Scoring:         cfg.Scoring,
		Assignment:      cfg.Assignment,
		GeocodeRetries:  dc.GeocodeRetries,
		DistanceTimeout: dc.Timeout,
	}, calc, geocoder, logger)

	logger.Debug("pipeline ready",
		zap.String("algorithm", string(algorithm)),
		zap.String("distance_provider", dc.Provider),
		zap.Bool("geocode", dc.Geocode),
		zap.Bool("persistent_cache", p.store != nil))
	return p, nil
}

// openCache opens the SQLite cache. Lookups still work without it, so a
// cache that cannot be opened only costs repeated provider calls.
func openCache(path string, logger *zap.Logger) *sqlite.Store {
	if path == "" {
		var err error
		path, err = config.DefaultCachePath()
		if err != nil {
			logger.Warn("no cache path, using an in-memory cache", zap.Error(err))
			return nil
		}
	}

	store, err := sqlite.New(path, logger)
	if err != nil {
		logger.Warn("failed to open cache, using an in-memory cache", zap.String("path", path), zap.Error(err))
		return nil
	}
	return store
}

func closePipeline(p *pipeline, logger *zap.Logger) {
	if err := p.Close(); err != nil {
		logger.Warn("failed to close cache", zap.Error(err))
	}
}
