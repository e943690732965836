// Package geocoding resolves rider addresses to coordinates
package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"social-rideshare/internal/models"
)

// DefaultNominatimURL is the public OpenStreetMap Nominatim server
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

// GeocodingResult contains the result of a geocoding operation
type GeocodingResult struct {
	Coords      models.Coordinates
	DisplayName string
}

// Geocoder provides address-to-coordinates conversion
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error)
}

// ErrGeocodingFailed is returned when an address cannot be geocoded
type ErrGeocodingFailed struct {
	Address string
	Reason  string
}

func (e *ErrGeocodingFailed) Error() string {
	return fmt.Sprintf("geocoding failed for address: %s - %s", e.Address, e.Reason)
}

type nominatimGeocoder struct {
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	backoffUnit time.Duration
	logger      *zap.Logger
}

type nominatimResponse struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// NewNominatimGeocoder creates a Nominatim geocoder limited to one request
// per second, the public server's usage policy
func NewNominatimGeocoder(baseURL string, logger *zap.Logger) Geocoder {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &nominatimGeocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "SocialRideshare/1.0",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		backoffUnit: time.Second,
		logger:      logger.Named("geocoding"),
	}
}

func (g *nominatimGeocoder) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	queryURL := fmt.Sprintf("%s/search?q=%s&format=json&limit=1", g.baseURL, url.QueryEscape(address))
	g.logger.Debug("request", zap.String("address", address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, queryURL, nil)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Error("request failed", zap.String("address", address), zap.Error(err))
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		g.logger.Error("request rejected",
			zap.String("address", address),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", body))
		return nil, &ErrGeocodingFailed{
			Address: address,
			Reason:  fmt.Sprintf("HTTP %d: %s", resp.StatusCode, string(body)),
		}
	}

	var results []nominatimResponse
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, &ErrGeocodingFailed{Address: address, Reason: err.Error()}
	}
	if len(results) == 0 {
		g.logger.Warn("no results", zap.String("address", address))
		return nil, &ErrGeocodingFailed{Address: address, Reason: "no results found"}
	}

	result := results[0]
	lat, err := strconv.ParseFloat(result.Lat, 64)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: address, Reason: "invalid latitude"}
	}
	lng, err := strconv.ParseFloat(result.Lon, 64)
	if err != nil {
		return nil, &ErrGeocodingFailed{Address: address, Reason: "invalid longitude"}
	}
	coords := models.Coordinates{Lat: lat, Lng: lng}
	if !coords.Valid() {
		return nil, &ErrGeocodingFailed{Address: address, Reason: "coordinates out of range"}
	}

	g.logger.Debug("response",
		zap.String("address", address),
		zap.Float64("lat", lat),
		zap.Float64("lng", lng),
		zap.String("display_name", result.DisplayName))
	return &GeocodingResult{Coords: coords, DisplayName: result.DisplayName}, nil
}

// GeocodeWithRetry retries failed lookups with exponential backoff
func (g *nominatimGeocoder) GeocodeWithRetry(ctx context.Context, address string, maxRetries int) (*GeocodingResult, error) {
	if maxRetries < 1 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		result, err := g.Geocode(ctx, address)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err

		if i < maxRetries-1 {
			backoff := time.Duration(1<<uint(i)) * g.backoffUnit
			g.logger.Debug("retry",
				zap.Int("attempt", i+1),
				zap.Int("max", maxRetries),
				zap.String("address", address),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	g.logger.Warn("giving up", zap.Int("attempts", maxRetries), zap.String("address", address), zap.Error(lastErr))
	return nil, lastErr
}
