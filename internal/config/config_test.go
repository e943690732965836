package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-rideshare/internal/assignment"
	"social-rideshare/internal/models"
	"social-rideshare/internal/scoring"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, scoring.DefaultConfig(), cfg.Scoring)
	assert.Equal(t, assignment.DefaultConfig(), cfg.Assignment)
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, `
algorithm: greedy
server:
  addr: 0.0.0.0:9000
  shutdown_timeout: 5s
log:
  level: debug
scoring:
  beta: 8
  max_detour_km: 12.5
assignment:
  exact_max_nodes: 10
  exact_time_budget: 250ms
  min_group_size: 2
distance:
  provider: osrm
  base_url: http://osrm.local:5000
  geocode: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "greedy", cfg.Algorithm)
	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, 5*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 60*time.Second, cfg.Server.WriteTimeout, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 8.0, cfg.Scoring.Beta)
	assert.Equal(t, 1.0, cfg.Scoring.Alpha)
	assert.Equal(t, 12.5, cfg.Scoring.MaxDetourKm)
	assert.Equal(t, 10, cfg.Assignment.ExactMaxNodes)
	assert.Equal(t, 250*time.Millisecond, cfg.Assignment.ExactTimeBudget)
	assert.Equal(t, 2, cfg.Assignment.MinGroupSize)
	assert.Equal(t, ProviderOSRM, cfg.Distance.Provider)
	assert.Equal(t, "http://osrm.local:5000", cfg.Distance.BaseURL)
	assert.True(t, cfg.Distance.Geocode)
}

func TestLoadMalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "server: [unclosed"))
	assert.ErrorContains(t, err, "failed to parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("MATCHER_ADDR", "127.0.0.1:9999")
	t.Setenv("MATCHER_ALGORITHM", "exact")
	t.Setenv("MATCHER_DISTANCE_PROVIDER", "google")
	t.Setenv("MATCHER_GOOGLE_MAPS_KEY", "AIzaTest")
	t.Setenv("MATCHER_REQUIRE_COMPLETE", "true")
	t.Setenv("MATCHER_EXACT_TIME_BUDGET", "2s")

	cfg, err := Load(writeConfig(t, "server:\n  addr: 10.0.0.1:80\n"))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	assert.Equal(t, "exact", cfg.Algorithm)
	assert.Equal(t, ProviderGoogle, cfg.Distance.Provider)
	assert.Equal(t, "AIzaTest", cfg.Distance.APIKey)
	assert.True(t, cfg.Assignment.RequireComplete)
	assert.Equal(t, 2*time.Second, cfg.Assignment.ExactTimeBudget)
}

func TestEnvOverrideInvalid(t *testing.T) {
	t.Setenv("MATCHER_GEOCODE", "maybe")

	_, err := Load("")
	assert.ErrorContains(t, err, "MATCHER_GEOCODE")
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Algorithm = "quantum"
	cfg.Output = "xml"
	cfg.Distance.Provider = "google"
	cfg.Scoring.Alpha = -1
	cfg.Assignment.ExactMaxNodes = 30

	err := cfg.Validate()
	var verr *models.ValidationError
	require.True(t, errors.As(err, &verr))

	fields := make([]string, len(verr.Problems))
	for i, p := range verr.Problems {
		fields[i] = p.Field
	}
	assert.ElementsMatch(t, []string{
		"algorithm",
		"output",
		"distance.api_key",
		"scoring.alpha",
		"assignment.exact_max_nodes",
	}, fields)
}

func TestValidateUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Distance.Provider = "mapquest"

	var verr *models.ValidationError
	require.True(t, errors.As(cfg.Validate(), &verr))
	assert.Equal(t, "distance.provider", verr.Field())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", ConfigFileName)

	cfg := DefaultConfig()
	cfg.Algorithm = "match_and_merge"
	cfg.Assignment.ExactTimeBudget = time.Second
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}
