// Package history persists suite results to a local SQLite database so
// past runs can be listed and compared.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/featlabs/featrun/packages/core/runtime"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	started_at TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	env TEXT NOT NULL DEFAULT '',
	features_total INTEGER NOT NULL,
	features_failed INTEGER NOT NULL,
	scenarios_passed INTEGER NOT NULL,
	scenarios_failed INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scenarios (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	feature_path TEXT NOT NULL,
	name TEXT NOT NULL,
	passed INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	error TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_scenarios_run ON scenarios(run_id);
`

// Store wraps the results database.
type Store struct {
	db *sql.DB
}

type Run struct {
	ID              int64
	StartedAt       time.Time
	Duration        time.Duration
	Env             string
	FeaturesTotal   int
	FeaturesFailed  int
	ScenariosPassed int
	ScenariosFailed int
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connecting to history db: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores one completed suite run with every scenario outcome.
func (s *Store) Record(ctx context.Context, env string, result *runtime.SuiteResult) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (started_at, duration_ms, env, features_total, features_failed, scenarios_passed, scenarios_failed)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		result.Start, result.Duration().Milliseconds(), env,
		len(result.FeatureResults), result.FeaturesFailed(),
		result.ScenariosPassed(), result.ScenariosFailed())
	if err != nil {
		return 0, fmt.Errorf("recording run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO scenarios (run_id, feature_path, name, passed, duration_ms, error)
		 VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for _, fr := range result.FeatureResults {
		for _, sr := range fr.ScenarioResults {
			if sr.Excluded {
				continue
			}
			passed := 1
			if sr.Failed() {
				passed = 0
			}
			if _, err := stmt.ExecContext(ctx, runID, fr.Feature.Path, sr.Scenario.Name,
				passed, sr.Duration().Milliseconds(), sr.FailureMessage()); err != nil {
				return 0, fmt.Errorf("recording scenario: %w", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}

// Recent returns the most recent runs, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Run, error) {
	if limit < 1 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, duration_ms, env, features_total, features_failed, scenarios_passed, scenarios_failed
		 FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var durationMs int64
		if err := rows.Scan(&r.ID, &r.StartedAt, &durationMs, &r.Env,
			&r.FeaturesTotal, &r.FeaturesFailed, &r.ScenariosPassed, &r.ScenariosFailed); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// FlakyScenarios lists scenarios that both passed and failed across the
// last windowSize runs, ordered by failure count.
func (s *Store) FlakyScenarios(ctx context.Context, windowSize int) ([]FlakyScenario, error) {
	if windowSize < 1 {
		windowSize = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT feature_path, name,
		        SUM(CASE WHEN passed = 0 THEN 1 ELSE 0 END) AS failures,
		        COUNT(*) AS total
		 FROM scenarios
		 WHERE run_id IN (SELECT id FROM runs ORDER BY id DESC LIMIT ?)
		 GROUP BY feature_path, name
		 HAVING failures > 0 AND failures < total
		 ORDER BY failures DESC`, windowSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var flaky []FlakyScenario
	for rows.Next() {
		var f FlakyScenario
		if err := rows.Scan(&f.FeaturePath, &f.Name, &f.Failures, &f.Total); err != nil {
			return nil, err
		}
		flaky = append(flaky, f)
	}
	return flaky, rows.Err()
}

type FlakyScenario struct {
	FeaturePath string
	Name        string
	Failures    int
	Total       int
}
