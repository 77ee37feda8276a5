package recorder

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists fetch history to a SQLite database.
type SQLiteRecorder struct {
	db  *sql.DB
	mu  sync.Mutex
	log *zap.Logger
	now func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, log *zap.Logger) (*SQLiteRecorder, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create db dir: %w", err)
			}
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, log: log, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS fetches (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			fetch_id    TEXT NOT NULL,
			walk_id     TEXT,
			pair        TEXT NOT NULL,
			timeframe   TEXT NOT NULL,
			count       INTEGER NOT NULL,
			source      TEXT,
			synthetic   INTEGER NOT NULL DEFAULT 0,
			cached      INTEGER NOT NULL DEFAULT 0,
			demo        INTEGER NOT NULL DEFAULT 0,
			candles     INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_fetches_ts ON fetches(timestamp)`,

		`CREATE TABLE IF NOT EXISTS source_attempts (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp   INTEGER NOT NULL,
			walk_id     TEXT NOT NULL,
			source      TEXT NOT NULL,
			pair        TEXT NOT NULL,
			timeframe   TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			duration_ms INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_ts ON source_attempts(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_attempts_source ON source_attempts(source, timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	if err := r.upgradeWalkIDs(); err != nil {
		return err
	}
	_, err := r.db.Exec(`CREATE INDEX IF NOT EXISTS idx_attempts_walk ON source_attempts(walk_id)`)
	return err
}

// upgradeWalkIDs brings databases written before walk ids existed up to date.
// Their attempts were keyed by the fetch that ran the walk.
func (r *SQLiteRecorder) upgradeWalkIDs() error {
	has := func(table, col string) (bool, error) {
		var n int
		err := r.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, table, col).Scan(&n)
		return n > 0, err
	}

	ok, err := has("source_attempts", "walk_id")
	if err != nil {
		return fmt.Errorf("inspect source_attempts: %w", err)
	}
	if !ok {
		if _, err := r.db.Exec(`ALTER TABLE source_attempts RENAME COLUMN fetch_id TO walk_id`); err != nil {
			return fmt.Errorf("rename attempts fetch_id: %w", err)
		}
	}

	ok, err = has("fetches", "walk_id")
	if err != nil {
		return fmt.Errorf("inspect fetches: %w", err)
	}
	if !ok {
		if _, err := r.db.Exec(`ALTER TABLE fetches ADD COLUMN walk_id TEXT`); err != nil {
			return fmt.Errorf("add fetches walk_id: %w", err)
		}
		// before walk ids, the fetch id doubled as the walk id
		if _, err := r.db.Exec(`UPDATE fetches SET walk_id = fetch_id WHERE walk_id IS NULL`); err != nil {
			return fmt.Errorf("backfill fetches walk_id: %w", err)
		}
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (r *SQLiteRecorder) RecordFetch(evt *FetchEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO fetches
		(timestamp, fetch_id, walk_id, pair, timeframe, count, source, synthetic, cached, demo, candles, duration_ms, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		r.now().Unix(), evt.FetchID, evt.WalkID, evt.Pair, evt.Timeframe, evt.Count, evt.Source,
		boolInt(evt.Synthetic), boolInt(evt.Cached), boolInt(evt.Demo), evt.Candles,
		evt.Duration.Milliseconds(), evt.Err,
	)
	return err
}

func (r *SQLiteRecorder) RecordAttempt(evt *AttemptEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO source_attempts
		(timestamp, walk_id, source, pair, timeframe, outcome, duration_ms, error)
		VALUES (?,?,?,?,?,?,?,?)`,
		r.now().Unix(), evt.WalkID, evt.Source, evt.Pair, evt.Timeframe,
		evt.Outcome, evt.Duration.Milliseconds(), evt.Err,
	)
	return err
}

// Summary groups source attempts recorded at or after since.
func (r *SQLiteRecorder) Summary(ctx context.Context, since time.Time) ([]SourceSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT
			source,
			SUM(CASE WHEN outcome = 'ok' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome LIKE 'skipped%' THEN 1 ELSE 0 END),
			MAX(timestamp),
			COALESCE((SELECT a2.error FROM source_attempts a2
				WHERE a2.source = a.source AND a2.outcome = 'failed' AND a2.timestamp >= ?
				ORDER BY a2.id DESC LIMIT 1), '')
		FROM source_attempts a
		WHERE timestamp >= ?
		GROUP BY source
		ORDER BY source`, since.Unix(), since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query summary: %w", err)
	}
	defer rows.Close()

	var out []SourceSummary
	for rows.Next() {
		var s SourceSummary
		var last int64
		if err := rows.Scan(&s.Source, &s.OK, &s.Failed, &s.Skipped, &last, &s.LastErr); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.LastSeen = time.Unix(last, 0)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.log.Info("closing sqlite recorder")
	return r.db.Close()
}
