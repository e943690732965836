package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"
)

func newTestGeocoder(t *testing.T, baseURL string, interval time.Duration) *nominatimGeocoder {
	g := NewNominatimGeocoder(baseURL, zaptest.NewLogger(t)).(*nominatimGeocoder)
	g.limiter = rate.NewLimiter(rate.Every(interval), 1)
	g.backoffUnit = time.Millisecond
	return g
}

func writeResults(w http.ResponseWriter, results ...nominatimResponse) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(results)
}

func TestNominatimGeocodeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "json", r.URL.Query().Get("format"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "New York", r.URL.Query().Get("q"))

		writeResults(w, nominatimResponse{Lat: "40.7128", Lon: "-74.0060", DisplayName: "New York, NY, USA"})
	}))
	defer server.Close()

	geocoder := newTestGeocoder(t, server.URL, time.Millisecond)

	result, err := geocoder.Geocode(context.Background(), "New York")

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 40.7128, result.Coords.Lat)
	assert.Equal(t, -74.0060, result.Coords.Lng)
	assert.Equal(t, "New York, NY, USA", result.DisplayName)
}

func TestNominatimGeocodeNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeResults(w)
	}))
	defer server.Close()

	geocoder := newTestGeocoder(t, server.URL, time.Millisecond)

	result, err := geocoder.Geocode(context.Background(), "Nonexistent Location")

	require.Error(t, err)
	assert.Nil(t, result)

	var geocodingErr *ErrGeocodingFailed
	require.True(t, errors.As(err, &geocodingErr))
	assert.Equal(t, "Nonexistent Location", geocodingErr.Address)
	assert.Contains(t, geocodingErr.Reason, "no results found")
}

func TestNominatimGeocodeHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	geocoder := newTestGeocoder(t, server.URL, time.Millisecond)

	result, err := geocoder.Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, result)

	var geocodingErr *ErrGeocodingFailed
	require.True(t, errors.As(err, &geocodingErr))
	assert.Contains(t, geocodingErr.Reason, "HTTP 500")
}

func TestNominatimGeocodeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte("invalid json"))
	}))
	defer server.Close()

	geocoder := newTestGeocoder(t, server.URL, time.Millisecond)

	result, err := geocoder.Geocode(context.Background(), "Test Address")

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestNominatimGeocodeInvalidLatLon(t *testing.T) {
	tests := []struct {
		name   string
		result nominatimResponse
		reason string
	}{
		{"latitude", nominatimResponse{Lat: "invalid", Lon: "-74.0060"}, "invalid latitude"},
		{"longitude", nominatimResponse{Lat: "40.7128", Lon: ""}, "invalid longitude"},
		{"range", nominatimResponse{Lat: "140.7", Lon: "-74.0060"}, "out of range"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeResults(w, tt.result)
			}))
			defer server.Close()

			geocoder := newTestGeocoder(t, server.URL, time.Millisecond)

			result, err := geocoder.Geocode(context.Background(), "Test Address")

			require.Error(t, err)
			assert.Nil(t, result)

			var geocodingErr *ErrGeocodingFailed
			require.True(t, errors.As(err, &geocodingErr))
			assert.Contains(t, geocodingErr.Reason, tt.reason)
		})
	}
}

func TestNominatimGeocodeRateLimiting(t *testing.T) {
	var requestCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestCount.Add(1)
		writeResults(w, nominatimResponse{Lat: "40.7128", Lon: "-74.0060", DisplayName: "Test"})
	}))
	defer server.Close()

	geocoder := newTestGeocoder(t, server.URL, 50*time.Millisecond)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := geocoder.Geocode(context.Background(), "Test")
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	// the first request uses the initial burst, the next two wait
	assert.GreaterOrEqual(t, elapsed, 90*time.Millisecond, "rate limiting not working")
	assert.Equal(t, int32(3), requestCount.Load())
}

func TestNominatimGeocodeWithRetrySuccess(t *testing.T) {
	var attemptCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attemptCount.Add(1) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeResults(w, nominatimResponse{Lat: "40.7128", Lon: "-74.0060", DisplayName: "New York"})
	}))
	defer server.Close()

	geocoder := newTestGeocoder(t, server.URL, time.Millisecond)

	result, err := geocoder.GeocodeWithRetry(context.Background(), "New York", 3)

	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, 40.7128, result.Coords.Lat)
	assert.Equal(t, int32(2), attemptCount.Load())
}

func TestNominatimGeocodeWithRetryAllFail(t *testing.T) {
	var attemptCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	geocoder := newTestGeocoder(t, server.URL, time.Millisecond)

	result, err := geocoder.GeocodeWithRetry(context.Background(), "Test", 3)

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, int32(3), attemptCount.Load())
}

func TestNominatimGeocodeWithRetryAtLeastOnce(t *testing.T) {
	var attemptCount atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attemptCount.Add(1)
		writeResults(w, nominatimResponse{Lat: "1", Lon: "2"})
	}))
	defer server.Close()

	geocoder := newTestGeocoder(t, server.URL, time.Millisecond)

	_, err := geocoder.GeocodeWithRetry(context.Background(), "Test", 0)

	require.NoError(t, err)
	assert.Equal(t, int32(1), attemptCount.Load())
}

func TestNominatimGeocodeContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		writeResults(w, nominatimResponse{Lat: "40.7128", Lon: "-74.0060", DisplayName: "Test"})
	}))
	defer server.Close()

	geocoder := newTestGeocoder(t, server.URL, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	result, err := geocoder.Geocode(ctx, "Test")

	require.Error(t, err)
	assert.Nil(t, result)
}

func TestNominatimGeocodeUserAgent(t *testing.T) {
	userAgent := make(chan string, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userAgent <- r.Header.Get("User-Agent")
		writeResults(w, nominatimResponse{Lat: "40.7128", Lon: "-74.0060", DisplayName: "Test"})
	}))
	defer server.Close()

	geocoder := newTestGeocoder(t, server.URL, time.Millisecond)

	_, err := geocoder.Geocode(context.Background(), "Test")

	require.NoError(t, err)
	assert.Equal(t, "SocialRideshare/1.0", <-userAgent)
}

func TestNewNominatimGeocoderDefaults(t *testing.T) {
	g := NewNominatimGeocoder("", nil).(*nominatimGeocoder)
	assert.Equal(t, DefaultNominatimURL, g.baseURL)
	assert.NotNil(t, g.logger)
}
