package metadatastore

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// ModelGeneration records one trained-and-loaded pipeline artifact
type ModelGeneration struct {
	ID           string
	PropertyType string
	Path         string
	TrainedAt    time.Time
	LoadedAt     time.Time
	MAE          float64
	RMSE         float64
	R2           float64
}

// RetrainRun records one retrain-and-reload invocation
type RetrainRun struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string // "ok" or "failed"
	Detail     string
}

// SQLiteStore provides SQLite-based persistence for model registry
// bookkeeping: which generations were loaded when, and how retrains went
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based storage instance
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Writes are serialized by SQLite anyway, keep the pool small
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS model_generations (
		id TEXT PRIMARY KEY,
		property_type TEXT NOT NULL,
		path TEXT NOT NULL,
		trained_at TIMESTAMP NOT NULL,
		loaded_at TIMESTAMP NOT NULL,
		mae REAL NOT NULL DEFAULT 0,
		rmse REAL NOT NULL DEFAULT 0,
		r2 REAL NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_generations_type ON model_generations(property_type, loaded_at);

	CREATE TABLE IF NOT EXISTS retrain_runs (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		status TEXT NOT NULL,
		detail TEXT
	);`
	_, err := s.db.Exec(schema)
	return err
}

// RecordGeneration persists one loaded model generation
func (s *SQLiteStore) RecordGeneration(gen *ModelGeneration) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO model_generations
		 (id, property_type, path, trained_at, loaded_at, mae, rmse, r2)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		gen.ID, gen.PropertyType, gen.Path, gen.TrainedAt, gen.LoadedAt, gen.MAE, gen.RMSE, gen.R2,
	)
	if err != nil {
		return fmt.Errorf("failed to record model generation: %w", err)
	}
	return nil
}

// LatestGeneration returns the most recently loaded generation for a
// property type, or nil when none was recorded yet
func (s *SQLiteStore) LatestGeneration(propertyType string) (*ModelGeneration, error) {
	row := s.db.QueryRow(
		`SELECT id, property_type, path, trained_at, loaded_at, mae, rmse, r2
		 FROM model_generations
		 WHERE property_type = ?
		 ORDER BY loaded_at DESC
		 LIMIT 1`,
		propertyType,
	)
	gen := &ModelGeneration{}
	err := row.Scan(&gen.ID, &gen.PropertyType, &gen.Path, &gen.TrainedAt, &gen.LoadedAt, &gen.MAE, &gen.RMSE, &gen.R2)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query model generation: %w", err)
	}
	return gen, nil
}

// RecordRetrainRun persists the outcome of one retrain-and-reload
func (s *SQLiteStore) RecordRetrainRun(run *RetrainRun) error {
	_, err := s.db.Exec(
		`INSERT INTO retrain_runs (id, started_at, finished_at, status, detail)
		 VALUES (?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt, run.FinishedAt, run.Status, run.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to record retrain run: %w", err)
	}
	return nil
}

// ListRetrainRuns returns retrain runs, most recent first
func (s *SQLiteStore) ListRetrainRuns(limit int) ([]*RetrainRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(
		`SELECT id, started_at, finished_at, status, detail
		 FROM retrain_runs
		 ORDER BY started_at DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query retrain runs: %w", err)
	}
	defer rows.Close()

	var runs []*RetrainRun
	for rows.Next() {
		run := &RetrainRun{}
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Status, &run.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan retrain run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
