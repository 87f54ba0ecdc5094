package storage

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func sampleRecords() []models.DailyRecord {
	d0 := time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)
	return []models.DailyRecord{
		{Date: d0, SpotPrice: 34000, FutureSymbol: "BTCUSD_210924", FuturePrice: 34300,
			SpotPosition: 29.41, FutureContracts: 10000, Roll: true},
		{Date: d0.AddDate(0, 0, 1), SpotPrice: 34500, FutureSymbol: "BTCUSD_210924", FuturePrice: 34650,
			SpotPosition: 29.41, FutureContracts: 10000,
			SpotPnl: 14705, FuturePnl: -1000, TotalPnl: 13705, CumPnl: 13705},
	}
}

func TestSaveRun(t *testing.T) {
	store := testStore(t)
	summary := models.BacktestSummary{
		Days: 2, FinalPnl: 13705, TotalReturn: 0.013705,
		AnnualizedReturn: 1.2, AnnualizedVol: 0.4, Sharpe: 3.0,
	}

	runID, err := store.SaveRun(context.Background(), "BTCUSD",
		time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 7, 2, 0, 0, 0, 0, time.UTC),
		1_000_000, summary, sampleRecords())
	require.NoError(t, err)
	assert.Positive(t, runID)

	var days, recordCount int
	require.NoError(t, store.db.QueryRow(
		`SELECT days FROM backtest_runs WHERE id = ?`, runID).Scan(&days))
	assert.Equal(t, 2, days)

	require.NoError(t, store.db.QueryRow(
		`SELECT COUNT(*) FROM daily_records WHERE run_id = ?`, runID).Scan(&recordCount))
	assert.Equal(t, 2, recordCount)
}

func TestSaveRun_NaNSharpeStoredAsNull(t *testing.T) {
	store := testStore(t)
	summary := models.BacktestSummary{Days: 2, Sharpe: math.NaN()}

	runID, err := store.SaveRun(context.Background(), "BTCUSD",
		time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 7, 2, 0, 0, 0, 0, time.UTC),
		1_000_000, summary, sampleRecords())
	require.NoError(t, err)

	var nulls int
	require.NoError(t, store.db.QueryRow(
		`SELECT COUNT(*) FROM backtest_runs WHERE id = ? AND sharpe IS NULL`, runID).Scan(&nulls))
	assert.Equal(t, 1, nulls)
}

func TestSaveRun_SequentialRunsGetDistinctIDs(t *testing.T) {
	store := testStore(t)
	start := time.Date(2021, 7, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1)

	first, err := store.SaveRun(context.Background(), "BTCUSD", start, end, 1_000_000,
		models.BacktestSummary{Days: 2}, sampleRecords())
	require.NoError(t, err)
	second, err := store.SaveRun(context.Background(), "BTCUSD", start, end, 1_000_000,
		models.BacktestSummary{Days: 2}, sampleRecords())
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}
