package sinks

import (
	"context"
	"database/sql"
	"math"
	"time"

	_ "modernc.org/sqlite"

	"github.com/darthwaydr007/pytorch-lightning/metrics"
	"github.com/darthwaydr007/pytorch-lightning/pkg/errors"
)

const schema = `
CREATE TABLE IF NOT EXISTS metrics (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	kind       TEXT NOT NULL,
	stage      TEXT NOT NULL,
	epoch      INTEGER NOT NULL,
	step       INTEGER NOT NULL,
	key        TEXT NOT NULL,
	value      REAL,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS metrics_run_key ON metrics (run_id, key);

CREATE TABLE IF NOT EXISTS latest_metrics (
	run_id TEXT NOT NULL,
	key    TEXT NOT NULL,
	value  REAL,
	epoch  INTEGER NOT NULL,
	step   INTEGER NOT NULL,
	PRIMARY KEY (run_id, key)
);
`

// Point is one stored observation of a series.
type Point struct {
	Epoch int
	Step  int
	Value float64
}

// SQLiteSink appends every record to a metrics table and keeps the latest
// value per key in latest_metrics. Mapping values are stored as
// "name/field" keys. SQLite has no NaN, so NaN is stored as NULL and read
// back as NaN.
type SQLiteSink struct {
	db    *sql.DB
	runID string
}

// NewSQLiteSink opens (or creates) the database at path and migrates it.
func NewSQLiteSink(path, runID string) (*SQLiteSink, error) {
	if runID == "" {
		return nil, errors.NewValidationError("run_id", "must not be empty", runID)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open db")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "pragma")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}
	return &SQLiteSink{db: db, runID: runID}, nil
}

func (s *SQLiteSink) LogMetrics(ctx context.Context, record metrics.LogRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for _, p := range flatten(record) {
		value := sql.NullFloat64{Float64: p.value, Valid: !math.IsNaN(p.value)}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO metrics (run_id, kind, stage, epoch, step, key, value, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			s.runID, string(record.Kind), record.Stage, record.Epoch, record.Step, p.key(), value, now,
		)
		if err != nil {
			return errors.Wrapf(err, "insert %s", p.key())
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO latest_metrics (run_id, key, value, epoch, step)
			 VALUES (?, ?, ?, ?, ?)
			 ON CONFLICT (run_id, key) DO UPDATE SET
			   value = excluded.value, epoch = excluded.epoch, step = excluded.step`,
			s.runID, p.key(), value, record.Epoch, record.Step,
		)
		if err != nil {
			return errors.Wrapf(err, "upsert latest %s", p.key())
		}
	}
	return errors.Wrap(tx.Commit(), "commit")
}

// Latest returns the most recent value of every key of the run.
func (s *SQLiteSink) Latest(ctx context.Context) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM latest_metrics WHERE run_id = ?`, s.runID)
	if err != nil {
		return nil, errors.Wrap(err, "query latest")
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var (
			key   string
			value sql.NullFloat64
		)
		if err := rows.Scan(&key, &value); err != nil {
			return nil, errors.Wrap(err, "scan latest")
		}
		out[key] = nullToNaN(value)
	}
	return out, errors.Wrap(rows.Err(), "iterate latest")
}

// Series returns every stored observation of key in insertion order.
func (s *SQLiteSink) Series(ctx context.Context, key string) ([]Point, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT epoch, step, value FROM metrics WHERE run_id = ? AND key = ? ORDER BY id`,
		s.runID, key)
	if err != nil {
		return nil, errors.Wrap(err, "query series")
	}
	defer rows.Close()

	var out []Point
	for rows.Next() {
		var (
			p     Point
			value sql.NullFloat64
		)
		if err := rows.Scan(&p.Epoch, &p.Step, &value); err != nil {
			return nil, errors.Wrap(err, "scan series")
		}
		p.Value = nullToNaN(value)
		out = append(out, p)
	}
	return out, errors.Wrap(rows.Err(), "iterate series")
}

func nullToNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// DB returns the underlying handle.
func (s *SQLiteSink) DB() *sql.DB { return s.db }

func (s *SQLiteSink) Close() error { return s.db.Close() }
