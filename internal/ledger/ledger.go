// Package ledger records runs and per-item outcomes in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/bbarnes4318/hoppy/internal/types"
)

type Ledger struct {
	db *sql.DB
}

// Open opens the database at dsn in WAL mode.
func Open(dsn string) (*Ledger, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "ledger: exec %s", pragma)
		}
	}
	return &Ledger{db: db}, nil
}

const migration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	input       TEXT NOT NULL,
	total       INTEGER NOT NULL DEFAULT 0,
	counts      TEXT,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	item_index  INTEGER NOT NULL,
	locator     TEXT NOT NULL,
	kind        TEXT NOT NULL DEFAULT '',
	status      TEXT NOT NULL,
	stage       TEXT NOT NULL,
	detail      TEXT NOT NULL DEFAULT '',
	billable    INTEGER NOT NULL DEFAULT 0,
	sale        INTEGER NOT NULL DEFAULT 0,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	PRIMARY KEY (run_id, item_index)
);

CREATE INDEX IF NOT EXISTS idx_outcomes_status ON outcomes(status);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (l *Ledger) Migrate(ctx context.Context) error {
	_, err := l.db.ExecContext(ctx, migration)
	return eris.Wrap(err, "ledger: migrate")
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) StartRun(ctx context.Context, runID, input string, total int, startedAt time.Time) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, input, total, started_at) VALUES (?, ?, ?, ?)`,
		runID, input, total, startedAt.UTC(),
	)
	return eris.Wrapf(err, "ledger: insert run %s", runID)
}

func (l *Ledger) RecordOutcome(ctx context.Context, runID string, o types.ProcessingOutcome) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO outcomes
			(run_id, item_index, locator, kind, status, stage, detail, billable, sale, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, o.Item.Index, o.Item.Locator, string(o.Item.Kind), string(o.Status), string(o.Stage),
		o.Detail, o.Billable, o.SaleOrApplication, o.StartedAt.UTC(), o.FinishedAt.UTC(),
	)
	return eris.Wrapf(err, "ledger: insert outcome %s/%d", runID, o.Item.Index)
}

func (l *Ledger) FinishRun(ctx context.Context, runID string, counts map[types.Status]int, finishedAt time.Time) error {
	data, err := json.Marshal(counts)
	if err != nil {
		return eris.Wrap(err, "ledger: marshal counts")
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET counts = ?, finished_at = ? WHERE id = ?`,
		string(data), finishedAt.UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "ledger: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "ledger: rows affected")
	}
	if n == 0 {
		return eris.Errorf("ledger: run %s not found", runID)
	}
	return nil
}

// Run is a ledger row for one batch run.
type Run struct {
	ID         string               `json:"id"`
	Input      string               `json:"input"`
	Total      int                  `json:"total"`
	Counts     map[types.Status]int `json:"counts,omitempty"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
}

// Runs returns the most recent runs first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, input, total, counts, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: query runs")
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			counts   sql.NullString
			finished sql.NullTime
		)
		if err := rows.Scan(&r.ID, &r.Input, &r.Total, &counts, &r.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "ledger: scan run")
		}
		if counts.Valid {
			if err := json.Unmarshal([]byte(counts.String), &r.Counts); err != nil {
				return nil, eris.Wrapf(err, "ledger: decode counts for %s", r.ID)
			}
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "ledger: iterate runs")
}

// Outcomes returns the outcomes of a run in item order.
func (l *Ledger) Outcomes(ctx context.Context, runID string) ([]types.ProcessingOutcome, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT item_index, locator, kind, status, stage, detail, billable, sale, started_at, finished_at
		 FROM outcomes WHERE run_id = ? ORDER BY item_index`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: query outcomes")
	}
	defer rows.Close()

	var out []types.ProcessingOutcome
	for rows.Next() {
		var (
			o                   types.ProcessingOutcome
			kind, status, stage string
		)
		if err := rows.Scan(&o.Item.Index, &o.Item.Locator, &kind, &status, &stage, &o.Detail,
			&o.Billable, &o.SaleOrApplication, &o.StartedAt, &o.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "ledger: scan outcome")
		}
		o.Item.Kind = types.SourceKind(kind)
		o.Status = types.Status(status)
		o.Stage = types.Stage(stage)
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "ledger: iterate outcomes")
}
