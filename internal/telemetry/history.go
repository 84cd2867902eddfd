package telemetry

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// History persists telemetry to SQLite. Snapshots are written as they
// arrive; decisions are batched because they come at frame rate.
type History struct {
	db        *sql.DB
	batch     *Batcher[Decision]
	retention time.Duration
}

// SnapshotRow is the flattened snapshot form stored in the database.
type SnapshotRow struct {
	ID            string    `json:"id"`
	At            time.Time `json:"at"`
	Level         string    `json:"level"`
	PerfState     string    `json:"perf_state"`
	MeanMs        float64   `json:"mean_ms"`
	P95Ms         float64   `json:"p95_ms"`
	ViolationRate float64   `json:"violation_rate"`
	ErrorRate     float64   `json:"error_rate"`
	Health        string    `json:"health"`
	OpenBreakers  int       `json:"open_breakers"`
	CacheEntries  int       `json:"cache_entries"`
}

// OpenHistory creates or opens the telemetry database at path.
// Enables WAL mode, foreign keys, and a 5-second busy timeout.
// Rows older than retention are removed by Janitor; non-positive
// retention falls back to DefaultRetention.
func OpenHistory(path string, retention time.Duration) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if retention <= 0 {
		retention = DefaultRetention
	}

	h := &History{db: db, retention: retention}
	if err := h.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	h.batch = NewBatcher(DefaultBatchSize, DefaultFlushDelay, h.insertDecisions)
	return h, nil
}

// Close flushes pending writes and shuts down the database.
func (h *History) Close() error {
	h.batch.Stop()
	return h.db.Close()
}

// Flush writes any batched decisions and waits for them to land.
func (h *History) Flush() {
	h.batch.Stop()
}

// migrate runs idempotent schema migrations.
func (h *History) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS snapshots (
			id               TEXT PRIMARY KEY,
			at               INTEGER NOT NULL,
			level            TEXT NOT NULL,
			perf_state       TEXT NOT NULL,
			mean_ms          REAL NOT NULL,
			p95_ms           REAL NOT NULL,
			violation_rate   REAL NOT NULL,
			error_rate       REAL NOT NULL,
			health           TEXT NOT NULL,
			open_breakers    INTEGER NOT NULL,
			cache_entries    INTEGER NOT NULL,
			cache_used_bytes INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_at ON snapshots(at)`,

		`CREATE TABLE IF NOT EXISTS decisions (
			id         TEXT PRIMARY KEY,
			at         INTEGER NOT NULL,
			frame_id   TEXT NOT NULL,
			action     TEXT NOT NULL,
			warning    TEXT NOT NULL,
			density    REAL NOT NULL,
			regions    INTEGER NOT NULL,
			confidence REAL NOT NULL,
			elapsed_ms REAL NOT NULL,
			degraded   BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_at ON decisions(at)`,
	}

	for _, m := range migrations {
		if _, err := h.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// PublishSnapshot writes a snapshot row. Snapshots arrive on a slow
// cadence, so they skip the batcher.
func (h *History) PublishSnapshot(s Snapshot) {
	id := s.ID
	if id == "" {
		id = uuid.NewString()
	}
	_, err := h.db.Exec(
		`INSERT OR REPLACE INTO snapshots
		 (id, at, level, perf_state, mean_ms, p95_ms, violation_rate, error_rate, health, open_breakers, cache_entries, cache_used_bytes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, s.At.UnixMilli(), s.Level.String(), s.Perf.State.String(),
		float64(s.Perf.Mean)/float64(time.Millisecond),
		float64(s.Perf.P95)/float64(time.Millisecond),
		s.Perf.ViolationRate, s.Errors.Rate, s.Errors.Health.String(),
		len(s.Errors.OpenBreakers), s.Cache.Entries, s.Cache.UsedBytes,
	)
	if err != nil {
		slog.Error("snapshot write failed", "error", err)
	}
}

// PublishDecision queues a decision row for batched insert.
func (h *History) PublishDecision(d Decision) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	h.batch.Add(d)
}

func (h *History) insertDecisions(batch []Decision) error {
	tx, err := h.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT OR REPLACE INTO decisions
		 (id, at, frame_id, action, warning, density, regions, confidence, elapsed_ms, degraded)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range batch {
		_, err := stmt.Exec(
			d.ID, d.At.UnixMilli(), d.FrameID, d.Action, d.Warning,
			d.Density, d.Regions, d.Confidence,
			float64(d.Elapsed)/float64(time.Millisecond), d.Degraded,
		)
		if err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
	}
	return tx.Commit()
}

// RecentSnapshots returns the newest snapshot rows, newest first.
func (h *History) RecentSnapshots(limit int) ([]SnapshotRow, error) {
	rows, err := h.db.Query(
		`SELECT id, at, level, perf_state, mean_ms, p95_ms, violation_rate, error_rate, health, open_breakers, cache_entries
		 FROM snapshots ORDER BY at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SnapshotRow
	for rows.Next() {
		var r SnapshotRow
		var at int64
		err := rows.Scan(&r.ID, &at, &r.Level, &r.PerfState, &r.MeanMs, &r.P95Ms,
			&r.ViolationRate, &r.ErrorRate, &r.Health, &r.OpenBreakers, &r.CacheEntries)
		if err != nil {
			return nil, err
		}
		r.At = time.UnixMilli(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentDecisions returns the newest decision rows, newest first.
func (h *History) RecentDecisions(limit int) ([]Decision, error) {
	rows, err := h.db.Query(
		`SELECT id, at, frame_id, action, warning, density, regions, confidence, elapsed_ms, degraded
		 FROM decisions ORDER BY at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var at int64
		var elapsedMs float64
		err := rows.Scan(&d.ID, &at, &d.FrameID, &d.Action, &d.Warning,
			&d.Density, &d.Regions, &d.Confidence, &elapsedMs, &d.Degraded)
		if err != nil {
			return nil, err
		}
		d.At = time.UnixMilli(at)
		d.Elapsed = time.Duration(elapsedMs * float64(time.Millisecond))
		out = append(out, d)
	}
	return out, rows.Err()
}

// Prune removes rows older than the retention horizon and returns the
// number deleted.
func (h *History) Prune() (int64, error) {
	cutoff := time.Now().Add(-h.retention).UnixMilli()

	var total int64
	for _, table := range []string{"snapshots", "decisions"} {
		res, err := h.db.Exec(`DELETE FROM `+table+` WHERE at < ?`, cutoff)
		if err != nil {
			return total, fmt.Errorf("prune %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	return total, nil
}

// Janitor prunes expired rows on an interval until ctx is cancelled.
func (h *History) Janitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := h.Prune(); err != nil {
				slog.Error("history prune failed", "error", err)
			} else if n > 0 {
				slog.Debug("history pruned", "rows", n)
			}
		}
	}
}
