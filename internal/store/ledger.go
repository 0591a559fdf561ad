package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	pkgerrors "github.com/pkg/errors"

	"github.com/turtacn/Brownout/pkg/errors"
)

// Record is one finished run: its configuration and what it achieved.
type Record struct {
	ID                int64
	StartedAt         time.Time
	Policy            string
	StartingScale     int
	FinalScale        int
	DeadTimeMicros    uint32
	SuccessThreshold  int
	FailThreshold     int
	PowerLossMode     string
	TotalBytes        uint64
	BytesProcessed    uint64
	ChunksSucceeded   uint64
	ChunksInterrupted uint64
	AbsorbedLosses    uint64
	Resizes           uint64
	Elapsed           time.Duration
	Outcome           string
}

// Throughput is committed bytes per second.
func (r Record) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.BytesProcessed) / r.Elapsed.Seconds()
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at TIMESTAMP NOT NULL,
    policy TEXT NOT NULL,
    starting_scale INTEGER NOT NULL,
    final_scale INTEGER NOT NULL,
    dead_time_us INTEGER NOT NULL,
    success_threshold INTEGER NOT NULL,
    fail_threshold INTEGER NOT NULL,
    power_loss_mode TEXT NOT NULL DEFAULT 'off',
    total_bytes INTEGER NOT NULL,
    bytes_processed INTEGER NOT NULL,
    chunks_succeeded INTEGER NOT NULL,
    chunks_interrupted INTEGER NOT NULL,
    absorbed_losses INTEGER NOT NULL,
    resizes INTEGER NOT NULL,
    elapsed_us INTEGER NOT NULL,
    throughput REAL NOT NULL,
    outcome TEXT NOT NULL,

    CHECK (length(policy) > 0),
    CHECK (length(outcome) > 0)
);

CREATE INDEX IF NOT EXISTS idx_runs_policy_throughput ON runs(policy, throughput DESC);
`

// Ledger persists run records in SQLite.
type Ledger struct {
	db *sql.DB
}

// Open creates or opens the ledger at path.
func Open(path string) (*Ledger, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, errors.New(errors.ErrCodeLedgerOpen, "Ledger.Open", path, err)
	}
	return &Ledger{db: db}, nil
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open SQLite")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "failed to ping SQLite")
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "failed to set SQLite pragmas")
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, pkgerrors.Wrap(err, "failed to create schema")
	}
	return db, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Append stores r and returns its id.
func (l *Ledger) Append(ctx context.Context, r Record) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
        INSERT INTO runs (
            started_at, policy, starting_scale, final_scale, dead_time_us,
            success_threshold, fail_threshold, power_loss_mode, total_bytes,
            bytes_processed, chunks_succeeded, chunks_interrupted, absorbed_losses,
            resizes, elapsed_us, throughput, outcome
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.StartedAt.UTC(), r.Policy, r.StartingScale, r.FinalScale, r.DeadTimeMicros,
		r.SuccessThreshold, r.FailThreshold, r.PowerLossMode, int64(r.TotalBytes),
		int64(r.BytesProcessed), int64(r.ChunksSucceeded), int64(r.ChunksInterrupted),
		int64(r.AbsorbedLosses), int64(r.Resizes), r.Elapsed.Microseconds(), r.Throughput(), r.Outcome)
	if err != nil {
		return 0, errors.New(errors.ErrCodeLedgerWrite, "Ledger.Append", "insert run", pkgerrors.Wrap(err, "exec"))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, errors.New(errors.ErrCodeLedgerWrite, "Ledger.Append", "read run id", err)
	}
	return id, nil
}

const selectColumns = `
    id, started_at, policy, starting_scale, final_scale, dead_time_us,
    success_threshold, fail_threshold, power_loss_mode, total_bytes,
    bytes_processed, chunks_succeeded, chunks_interrupted, absorbed_losses,
    resizes, elapsed_us, outcome`

// Recent returns up to limit records, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT`+selectColumns+` FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.New(errors.ErrCodeLedgerRead, "Ledger.Recent", "query runs", err)
	}
	return collect(rows, "Ledger.Recent")
}

// BestPerPolicy returns the completed run with the highest throughput for each policy.
func (l *Ledger) BestPerPolicy(ctx context.Context) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, `
        SELECT`+selectColumns+` FROM runs r
        WHERE outcome = 'completed' AND id = (
            SELECT id FROM runs b
            WHERE b.policy = r.policy AND b.outcome = 'completed'
            ORDER BY b.throughput DESC, b.id ASC LIMIT 1
        )
        ORDER BY throughput DESC`)
	if err != nil {
		return nil, errors.New(errors.ErrCodeLedgerRead, "Ledger.BestPerPolicy", "query runs", err)
	}
	return collect(rows, "Ledger.BestPerPolicy")
}

func collect(rows *sql.Rows, op string) ([]Record, error) {
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r                                                 Record
			total, processed, ok, interrupted, absorbed, size int64
			elapsedUS                                         int64
		)
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.Policy, &r.StartingScale, &r.FinalScale,
			&r.DeadTimeMicros, &r.SuccessThreshold, &r.FailThreshold, &r.PowerLossMode, &total,
			&processed, &ok, &interrupted, &absorbed, &size, &elapsedUS, &r.Outcome); err != nil {
			return nil, errors.New(errors.ErrCodeLedgerRead, op, "scan run", err)
		}
		r.TotalBytes = uint64(total)
		r.BytesProcessed = uint64(processed)
		r.ChunksSucceeded = uint64(ok)
		r.ChunksInterrupted = uint64(interrupted)
		r.AbsorbedLosses = uint64(absorbed)
		r.Resizes = uint64(size)
		r.Elapsed = time.Duration(elapsedUS) * time.Microsecond
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.ErrCodeLedgerRead, op, "iterate runs", err)
	}
	return out, nil
}

// Personal.AI order the ending
