// Package store provides data persistence implementations.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"chart-patterns/internal/analysis"
	apperrors "chart-patterns/internal/errors"
	"chart-patterns/internal/models"
	"chart-patterns/pkg/utils"
)

// SQLiteStore implements DataStore using SQLite.
type SQLiteStore struct {
	db *sql.DB

	// retry re-runs write transactions that hit a busy or locked database,
	// which happens when several processes share one file.
	retry utils.RetryConfig
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	retry := utils.DefaultRetryConfig()
	retry.Retryable = isBusy

	store := &SQLiteStore{
		db:    db,
		retry: retry,
	}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Candle series, one row per candle position
	CREATE TABLE IF NOT EXISTS candles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		series TEXT NOT NULL,
		idx INTEGER NOT NULL,
		timestamp DATETIME,
		open REAL NOT NULL,
		high REAL NOT NULL,
		low REAL NOT NULL,
		close REAL NOT NULL,
		volume REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(series, idx)
	);

	-- One row per classifier pass
	CREATE TABLE IF NOT EXISTS scan_runs (
		id TEXT PRIMARY KEY,
		series TEXT NOT NULL,
		family TEXT NOT NULL,
		variant TEXT,
		params TEXT,
		candles INTEGER NOT NULL,
		detections INTEGER NOT NULL,
		started_at DATETIME NOT NULL,
		duration_ms INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Detections of a run; payload holds the full record as JSON
	CREATE TABLE IF NOT EXISTS detections (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		family TEXT NOT NULL,
		sub_type TEXT,
		payload TEXT NOT NULL,
		FOREIGN KEY (run_id) REFERENCES scan_runs(id) ON DELETE CASCADE,
		UNIQUE(run_id, idx)
	);

	CREATE INDEX IF NOT EXISTS idx_candles_series ON candles(series);
	CREATE INDEX IF NOT EXISTS idx_runs_series ON scan_runs(series);
	CREATE INDEX IF NOT EXISTS idx_runs_family ON scan_runs(family);
	CREATE INDEX IF NOT EXISTS idx_detections_run ON detections(run_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ============================================================================
// Candles Methods
// ============================================================================

// SaveCandles replaces the stored series with candles.
func (s *SQLiteStore) SaveCandles(ctx context.Context, series string, candles []models.Candle) error {
	return utils.Retry(ctx, s.retry, func() error {
		return s.saveCandles(ctx, series, candles)
	})
}

func (s *SQLiteStore) saveCandles(ctx context.Context, series string, candles []models.Candle) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candles WHERE series = ?`, series); err != nil {
		return fmt.Errorf("failed to clear series: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO candles (series, idx, timestamp, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, c := range candles {
		var ts interface{}
		if !c.Timestamp.IsZero() {
			ts = c.Timestamp
		}
		if _, err := stmt.ExecContext(ctx, series, i, ts, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			return fmt.Errorf("failed to insert candle %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetCandles retrieves a series in index order.
func (s *SQLiteStore) GetCandles(ctx context.Context, series string) ([]models.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, timestamp, open, high, low, close, volume
		FROM candles
		WHERE series = ?
		ORDER BY idx ASC
	`, series)
	if err != nil {
		return nil, fmt.Errorf("failed to query candles: %w", err)
	}
	defer rows.Close()

	var candles []models.Candle
	for rows.Next() {
		var c models.Candle
		var ts sql.NullTime
		if err := rows.Scan(&c.Index, &ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan candle: %w", err)
		}
		if ts.Valid {
			c.Timestamp = ts.Time
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candles: %w", err)
	}

	if len(candles) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrDataNotFound, "series %q", series)
	}
	return candles, nil
}

// ListSeries returns every stored series with its length and time span.
func (s *SQLiteStore) ListSeries(ctx context.Context) ([]SeriesInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT series, COUNT(*), MIN(timestamp), MAX(timestamp)
		FROM candles
		GROUP BY series
		ORDER BY series
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var out []SeriesInfo
	for rows.Next() {
		var info SeriesInfo
		var first, last sql.NullString
		if err := rows.Scan(&info.Name, &info.Candles, &first, &last); err != nil {
			return nil, fmt.Errorf("failed to scan series: %w", err)
		}
		info.First = parseStoredTime(first)
		info.Last = parseStoredTime(last)
		out = append(out, info)
	}
	return out, rows.Err()
}

// ============================================================================
// Scan Run Methods
// ============================================================================

// SaveRun stores a run and its detections in one transaction. An empty run.ID
// is filled with a new UUID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *Run, detections []analysis.Detection) error {
	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	run.Detections = len(detections)

	return utils.Retry(ctx, s.retry, func() error {
		return s.saveRun(ctx, run, detections)
	})
}

func (s *SQLiteStore) saveRun(ctx context.Context, run *Run, detections []analysis.Detection) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO scan_runs (id, series, family, variant, params, candles, detections, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Series, string(run.Family), run.Variant, string(run.Params),
		run.Candles, run.Detections, run.StartedAt, run.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO detections (run_id, idx, family, sub_type, payload)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, d := range detections {
		payload, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("failed to encode detection %d: %w", d.Index, err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, d.Index, string(d.Kind.Family), string(d.Kind.SubType), string(payload)); err != nil {
			return fmt.Errorf("failed to insert detection %d: %w", d.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetRun retrieves a run by ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, runSelect+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, apperrors.Wrapf(apperrors.ErrDataNotFound, "run %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// GetRuns retrieves runs matching filter, newest first.
func (s *SQLiteStore) GetRuns(ctx context.Context, filter RunFilter) ([]Run, error) {
	var where []string
	var args []interface{}
	if filter.Series != "" {
		where = append(where, "series = ?")
		args = append(args, filter.Series)
	}
	if filter.Family != "" {
		where = append(where, "family = ?")
		args = append(args, string(filter.Family))
	}
	if !filter.Since.IsZero() {
		where = append(where, "started_at >= ?")
		args = append(args, filter.Since)
	}

	query := runSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// GetDetections retrieves the detections of a run in index order.
func (s *SQLiteStore) GetDetections(ctx context.Context, runID string) ([]analysis.Detection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payload FROM detections WHERE run_id = ? ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query detections: %w", err)
	}
	defer rows.Close()

	var out []analysis.Detection
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan detection: %w", err)
		}
		var d analysis.Detection
		if err := json.Unmarshal([]byte(payload), &d); err != nil {
			return nil, fmt.Errorf("failed to decode detection: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

const runSelect = `
	SELECT id, series, family, variant, params, candles, detections, started_at, duration_ms
	FROM scan_runs`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(r rowScanner) (*Run, error) {
	var run Run
	var family string
	var variant, params sql.NullString
	var durationMs sql.NullInt64
	if err := r.Scan(&run.ID, &run.Series, &family, &variant, &params,
		&run.Candles, &run.Detections, &run.StartedAt, &durationMs); err != nil {
		return nil, err
	}
	run.Family = analysis.Family(family)
	run.Variant = variant.String
	if params.Valid && params.String != "" {
		run.Params = json.RawMessage(params.String)
	}
	run.Duration = time.Duration(durationMs.Int64) * time.Millisecond
	return &run, nil
}

// parseStoredTime reads aggregate timestamps, which sqlite3 returns as text.
func parseStoredTime(v sql.NullString) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	for _, layout := range []string{
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02T15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
		time.RFC3339Nano,
	} {
		if t, err := time.Parse(layout, v.String); err == nil {
			return t
		}
	}
	return time.Time{}
}

// isBusy reports whether err is SQLite refusing a write because another
// connection holds the lock.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if apperrors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}
