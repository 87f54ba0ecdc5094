package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
    id                INTEGER PRIMARY KEY AUTOINCREMENT,
    pair              TEXT     NOT NULL,
    start_date        TEXT     NOT NULL,
    end_date          TEXT     NOT NULL,
    notional          REAL     NOT NULL,
    days              INTEGER  NOT NULL,
    final_pnl         REAL     NOT NULL,
    total_return      REAL     NOT NULL,
    annualized_return REAL     NOT NULL,
    annualized_vol    REAL     NOT NULL,
    sharpe            REAL,
    created_at        DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS daily_records (
    run_id           INTEGER NOT NULL REFERENCES backtest_runs(id),
    date             TEXT    NOT NULL,
    spot_price       REAL    NOT NULL,
    future_symbol    TEXT    NOT NULL,
    future_price     REAL    NOT NULL,
    spot_position    REAL    NOT NULL,
    future_contracts REAL    NOT NULL,
    spot_pnl         REAL    NOT NULL,
    future_pnl       REAL    NOT NULL,
    total_pnl        REAL    NOT NULL,
    cum_pnl          REAL    NOT NULL,
    roll             INTEGER NOT NULL,
    PRIMARY KEY (run_id, date)
);

CREATE INDEX IF NOT EXISTS idx_runs_pair ON backtest_runs(pair, created_at DESC);
`

// Store persists backtest runs to SQLite (pure Go driver, no CGo).
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes one run and its daily records in a single transaction and
// returns the run id.
func (s *Store) SaveRun(ctx context.Context, pair string, start, end time.Time, notional float64, summary models.BacktestSummary, records []models.DailyRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
		(pair, start_date, end_date, notional, days, final_pnl, total_return, annualized_return, annualized_vol, sharpe, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pair,
		start.Format("2006-01-02"),
		end.Format("2006-01-02"),
		notional,
		summary.Days,
		summary.FinalPnl,
		summary.TotalReturn,
		summary.AnnualizedReturn,
		summary.AnnualizedVol,
		nullableFloat(summary.Sharpe),
		time.Now().UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO daily_records
		(run_id, date, spot_price, future_symbol, future_price, spot_position, future_contracts, spot_pnl, future_pnl, total_pnl, cum_pnl, roll)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare records: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx,
			runID,
			rec.Date.Format("2006-01-02"),
			rec.SpotPrice,
			rec.FutureSymbol,
			rec.FuturePrice,
			rec.SpotPosition,
			rec.FutureContracts,
			rec.SpotPnl,
			rec.FuturePnl,
			rec.TotalPnl,
			rec.CumPnl,
			rec.Roll,
		); err != nil {
			return 0, fmt.Errorf("insert record %s: %w", rec.Date.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

// nullableFloat maps NaN (undefined Sharpe) to SQL NULL.
func nullableFloat(v float64) any {
	if v != v {
		return nil
	}
	return v
}
