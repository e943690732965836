// Package sqlite persists distance and geocoding lookups between runs
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	_ "modernc.org/sqlite"
)

const (
	DefaultDBFileName = "cache.db"
	schemaVersion     = 2
)

// Store is a SQLite-backed cache shared by concurrent requests
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	logger *zap.Logger

	distanceCache *DistanceCache
	geocodeCache  *GeocodeCache
}

// New opens (creating if needed) the cache database at dbPath. The special
// path ":memory:" keeps everything in memory.
func New(dbPath string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("sqlite")

	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	logger.Info("opening database", zap.String("path", dbPath))

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -16000", // 16MB cache
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	store := &Store{
		db:     db,
		dbPath: dbPath,
		logger: logger,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	store.distanceCache = &DistanceCache{store: store}
	store.geocodeCache = &GeocodeCache{store: store}

	return store, nil
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// no schema_version table yet
		return s.createSchema()
	}

	if version < schemaVersion {
		return s.runMigrations(version)
	}
	return nil
}

func (s *Store) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);
	INSERT INTO schema_version (version) VALUES (2);

	CREATE TABLE IF NOT EXISTS distance_cache (
		origin_lat REAL NOT NULL,
		origin_lng REAL NOT NULL,
		dest_lat REAL NOT NULL,
		dest_lng REAL NOT NULL,
		distance_meters REAL NOT NULL,
		duration_secs REAL NOT NULL,
		PRIMARY KEY (origin_lat, origin_lng, dest_lat, dest_lng)
	);

	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lat REAL NOT NULL,
		lng REAL NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.logger.Info("schema initialized", zap.Int("version", schemaVersion))
	return nil
}

func (s *Store) runMigrations(fromVersion int) error {
	if fromVersion < 2 {
		_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS geocode_cache (
			address TEXT PRIMARY KEY,
			lat REAL NOT NULL,
			lng REAL NOT NULL,
			display_name TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`)
		if err != nil {
			return fmt.Errorf("failed to add geocode cache: %w", err)
		}
	}

	if _, err := s.db.Exec("UPDATE schema_version SET version = ?", schemaVersion); err != nil {
		return err
	}
	s.logger.Info("schema migrated", zap.Int("from", fromVersion), zap.Int("to", schemaVersion))
	return nil
}

// Close checkpoints the WAL and closes the database
func (s *Store) Close() error {
	if s.db != nil {
		s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// HealthCheck verifies the database connection
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) DistanceCache() *DistanceCache { return s.distanceCache }
func (s *Store) GeocodeCache() *GeocodeCache   { return s.geocodeCache }
