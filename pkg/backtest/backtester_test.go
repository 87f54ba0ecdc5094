package backtest

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/instruments"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type stubData struct {
	closes  map[string]map[time.Time]float64
	info    models.ExchangeInfo
	infoErr error
}

func (s *stubData) DailyCloses(ctx context.Context, symbol string, start, end time.Time) (map[time.Time]float64, error) {
	closes, ok := s.closes[symbol]
	if !ok {
		return nil, fmt.Errorf("no kline fixture for %s", symbol)
	}
	return closes, nil
}

func (s *stubData) ExchangeInfo(ctx context.Context) (models.ExchangeInfo, error) {
	if s.infoErr != nil {
		return models.ExchangeInfo{}, s.infoErr
	}
	return s.info, nil
}

func twoContractFixture() (map[time.Time]float64, map[string]map[time.Time]float64, []models.ContractSegment) {
	spot := map[time.Time]float64{
		day(2021, 3, 24): 40000,
		day(2021, 3, 25): 41000,
		day(2021, 3, 26): 42000,
		day(2021, 3, 27): 41500,
	}
	future := map[string]map[time.Time]float64{
		"BTCUSD_210326": {
			day(2021, 3, 24): 40500,
			day(2021, 3, 25): 41500,
		},
		"BTCUSD_210625": {
			day(2021, 3, 26): 42800,
			day(2021, 3, 27): 42100,
		},
	}
	segments := []models.ContractSegment{
		{Symbol: "BTCUSD_210326", Start: day(2021, 3, 24), End: day(2021, 3, 25), ContractSize: 100},
		{Symbol: "BTCUSD_210625", Start: day(2021, 3, 26), End: day(2021, 3, 27), ContractSize: 100},
	}
	return spot, future, segments
}

func TestReplay_FirstDayEstablishesPosition(t *testing.T) {
	spot, future, segments := twoContractFixture()

	records, err := replay(1_000_000, day(2021, 3, 24), day(2021, 3, 27), spot, future, segments)
	require.NoError(t, err)
	require.Len(t, records, 4)

	first := records[0]
	assert.True(t, first.Roll)
	assert.Equal(t, 25.0, first.SpotPosition)
	assert.Equal(t, 10000.0, first.FutureContracts)
	assert.Zero(t, first.SpotPnl)
	assert.Zero(t, first.FuturePnl)
	assert.Zero(t, first.TotalPnl)
}

func TestReplay_MarkToMarket(t *testing.T) {
	spot, future, segments := twoContractFixture()

	records, err := replay(1_000_000, day(2021, 3, 24), day(2021, 3, 27), spot, future, segments)
	require.NoError(t, err)

	second := records[1]
	assert.False(t, second.Roll)
	assert.InDelta(t, 25.0*(41000-40000), second.SpotPnl, 1e-9)

	wantCoin := -10000.0 * 100 * (1/40500.0 - 1/41500.0)
	assert.InDelta(t, wantCoin*41000, second.FuturePnl, 1e-6)
	assert.InDelta(t, second.SpotPnl+second.FuturePnl, second.TotalPnl, 1e-9)
}

func TestReplay_ShortFutureLosesWhenPriceRises(t *testing.T) {
	spot, future, segments := twoContractFixture()

	records, err := replay(1_000_000, day(2021, 3, 24), day(2021, 3, 27), spot, future, segments)
	require.NoError(t, err)

	// Day two: future 40500 -> 41500, a rising price hurts the short leg.
	assert.Negative(t, records[1].FuturePnl)
	// Day four: future 42800 -> 42100, convergence pays the short leg.
	assert.Positive(t, records[3].FuturePnl)
}

func TestReplay_RollDayResetsPosition(t *testing.T) {
	spot, future, segments := twoContractFixture()

	records, err := replay(1_000_000, day(2021, 3, 24), day(2021, 3, 27), spot, future, segments)
	require.NoError(t, err)

	rollDay := records[2]
	assert.True(t, rollDay.Roll)
	assert.Equal(t, "BTCUSD_210625", rollDay.FutureSymbol)
	assert.Zero(t, rollDay.TotalPnl)
	assert.InDelta(t, 1_000_000/42000.0, rollDay.SpotPosition, 1e-9)

	// Cumulative PnL carries across the roll unchanged.
	assert.Equal(t, records[1].CumPnl, rollDay.CumPnl)
}

func TestReplay_CumPnlIdentity(t *testing.T) {
	spot, future, segments := twoContractFixture()

	records, err := replay(1_000_000, day(2021, 3, 24), day(2021, 3, 27), spot, future, segments)
	require.NoError(t, err)

	var sum float64
	for i, rec := range records {
		sum += rec.TotalPnl
		assert.InDelta(t, sum, rec.CumPnl, 1e-9, "record %d", i)
		assert.Equal(t, i == 0 || rec.FutureSymbol != records[i-1].FutureSymbol, rec.Roll, "record %d", i)
	}
}

func TestReplay_ConstantPricesZeroPnl(t *testing.T) {
	spot := map[time.Time]float64{}
	future := map[time.Time]float64{}
	for d := day(2021, 7, 1); !d.After(day(2021, 7, 10)); d = d.AddDate(0, 0, 1) {
		spot[d] = 35000
		future[d] = 35200
	}
	segments := []models.ContractSegment{
		{Symbol: "BTCUSD_210924", Start: day(2021, 7, 1), End: day(2021, 7, 10), ContractSize: 100},
	}

	records, err := replay(1_000_000, day(2021, 7, 1), day(2021, 7, 10),
		spot, map[string]map[time.Time]float64{"BTCUSD_210924": future}, segments)
	require.NoError(t, err)
	for _, rec := range records {
		assert.Zero(t, rec.TotalPnl)
	}
	assert.Zero(t, records[len(records)-1].CumPnl)
}

func TestReplay_MissingPriceFatal(t *testing.T) {
	spot, future, segments := twoContractFixture()

	delete(spot, day(2021, 3, 25))
	_, err := replay(1_000_000, day(2021, 3, 24), day(2021, 3, 27), spot, future, segments)
	assert.ErrorIs(t, err, ErrMissingPrice)

	spot, future, segments = twoContractFixture()
	delete(future["BTCUSD_210625"], day(2021, 3, 27))
	_, err = replay(1_000_000, day(2021, 3, 24), day(2021, 3, 27), spot, future, segments)
	assert.ErrorIs(t, err, ErrMissingPrice)

	spot, future, _ = twoContractFixture()
	_, err = replay(1_000_000, day(2021, 3, 24), day(2021, 3, 27), spot, future, nil)
	assert.ErrorIs(t, err, ErrMissingPrice)
}

func TestReplay_SmallNotionalHoldsOneContract(t *testing.T) {
	spot := map[time.Time]float64{day(2021, 7, 1): 35000}
	future := map[string]map[time.Time]float64{
		"BTCUSD_210924": {day(2021, 7, 1): 35200},
	}
	segments := []models.ContractSegment{
		{Symbol: "BTCUSD_210924", Start: day(2021, 7, 1), End: day(2021, 7, 1), ContractSize: 100},
	}

	records, err := replay(30, day(2021, 7, 1), day(2021, 7, 1), spot, future, segments)
	require.NoError(t, err)
	assert.Equal(t, 1.0, records[0].FutureContracts)
}

func TestSummarize(t *testing.T) {
	records := []models.DailyRecord{
		{TotalPnl: 0, CumPnl: 0},
		{TotalPnl: 1000, CumPnl: 1000},
		{TotalPnl: -500, CumPnl: 500},
	}
	summary := Summarize(records, 1_000_000)

	assert.Equal(t, 3, summary.Days)
	assert.Equal(t, 500.0, summary.FinalPnl)
	assert.InDelta(t, 0.0005, summary.TotalReturn, 1e-12)
	assert.InDelta(t, math.Pow(1.0005, 365.0/3)-1, summary.AnnualizedReturn, 1e-12)

	wantVol := pstdev([]float64{0.001, -0.0005}) * math.Sqrt(365)
	assert.InDelta(t, wantVol, summary.AnnualizedVol, 1e-12)
	assert.InDelta(t, summary.AnnualizedReturn/wantVol, summary.Sharpe, 1e-9)
}

func TestSummarize_ZeroVolSharpeNaN(t *testing.T) {
	records := []models.DailyRecord{
		{TotalPnl: 0, CumPnl: 0},
		{TotalPnl: 0, CumPnl: 0},
		{TotalPnl: 0, CumPnl: 0},
	}
	summary := Summarize(records, 1_000_000)
	assert.Zero(t, summary.AnnualizedVol)
	assert.True(t, math.IsNaN(summary.Sharpe))
}

func TestSummarize_Empty(t *testing.T) {
	assert.Equal(t, models.BacktestSummary{}, Summarize(nil, 1_000_000))
}

func TestPstdev(t *testing.T) {
	assert.Zero(t, pstdev(nil))
	assert.Zero(t, pstdev([]float64{5}))
	assert.Zero(t, pstdev([]float64{2, 2, 2}))
	assert.Equal(t, 1.0, pstdev([]float64{1, 3}))
}

func runFixture(start, end time.Time) (*stubData, *stubData) {
	spotCloses := map[time.Time]float64{}
	futureCloses := map[time.Time]float64{}
	price := 34000.0
	for d := start.AddDate(0, 0, -1); !d.After(end.AddDate(0, 0, 1)); d = d.AddDate(0, 0, 1) {
		spotCloses[d] = price
		futureCloses[d] = price + 300
		price += 50
	}
	spotData := &stubData{closes: map[string]map[time.Time]float64{"BTCUSDT": spotCloses}}
	futureData := &stubData{
		closes: map[string]map[time.Time]float64{"BTCUSD_210924": futureCloses},
		info: models.ExchangeInfo{Symbols: []models.SymbolInfo{
			{Symbol: "BTCUSD_210924", Pair: "BTCUSD", Status: "TRADING",
				ContractType: "CURRENT_QUARTER", ContractSize: 100,
				DeliveryDate: day(2021, 9, 24)},
		}},
	}
	return spotData, futureData
}

func TestRun_EndToEnd(t *testing.T) {
	start, end := day(2021, 7, 1), day(2021, 7, 5)
	spotData, futureData := runFixture(start, end)

	cfg := DefaultConfig()
	cfg.StartDate, cfg.EndDate = start, end
	cfg.OutputPath = t.TempDir()

	logger, _ := logtest.NewNullLogger()
	bt, err := New(cfg, spotData, futureData, logger)
	require.NoError(t, err)

	result, err := bt.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Segments, 1)
	assert.Equal(t, "BTCUSD_210924", result.Segments[0].Symbol)
	assert.Equal(t, 100.0, result.Segments[0].ContractSize)

	require.Len(t, result.Records, 5)
	assert.True(t, result.Records[0].Roll)
	assert.Equal(t, 5, result.Summary.Days)

	assert.Equal(t, filepath.Join(cfg.OutputPath, "backtest_BTCUSD_2021-07-01_2021-07-05.csv"), result.OutputPath)
	data, err := os.ReadFile(result.OutputPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "date,spot_price,future_symbol")
}

func TestRun_ContractSizeFallbackIsLoud(t *testing.T) {
	start, end := day(2021, 7, 1), day(2021, 7, 5)
	spotData, futureData := runFixture(start, end)
	futureData.infoErr = fmt.Errorf("exchange info unavailable")

	cfg := DefaultConfig()
	cfg.StartDate, cfg.EndDate = start, end
	cfg.OutputPath = t.TempDir()

	logger, hook := logtest.NewNullLogger()
	bt, err := New(cfg, spotData, futureData, logger)
	require.NoError(t, err)

	result, err := bt.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, instruments.DefaultContractSize, result.Segments[0].ContractSize)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "fallback to the default contract size must warn")
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := cfg
	bad.StartDate, bad.EndDate = cfg.EndDate, cfg.StartDate
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.NotionalUSDT = -5
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.RollBufferDays = -1
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.FuturePair = ""
	assert.Error(t, bad.Validate())
}
