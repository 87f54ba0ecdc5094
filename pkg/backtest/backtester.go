package backtest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/binance"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/instruments"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

// ErrMissingPrice means a close was absent for an in-window day. The replay
// requires complete daily data; this is fatal, not recoverable.
var ErrMissingPrice = errors.New("missing price data")

// Config describes one backtest window.
type Config struct {
	StartDate      time.Time
	EndDate        time.Time
	NotionalUSDT   float64
	RollBufferDays int
	SpotSymbol     string
	FuturePair     string
	OutputPath     string
}

// DefaultConfig replays the Jan-Sep 2021 BTC carry.
func DefaultConfig() Config {
	return Config{
		StartDate:      time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        time.Date(2021, 9, 30, 0, 0, 0, 0, time.UTC),
		NotionalUSDT:   1_000_000,
		RollBufferDays: 1,
		SpotSymbol:     "BTCUSDT",
		FuturePair:     "BTCUSD",
		OutputPath:     "output",
	}
}

func (c Config) Validate() error {
	if c.StartDate.After(c.EndDate) {
		return fmt.Errorf("start date %s must not be after end date %s",
			c.StartDate.Format("2006-01-02"), c.EndDate.Format("2006-01-02"))
	}
	if c.NotionalUSDT <= 0 {
		return fmt.Errorf("notional must be positive, got %.2f", c.NotionalUSDT)
	}
	if c.RollBufferDays < 0 {
		return fmt.Errorf("roll buffer days must not be negative, got %d", c.RollBufferDays)
	}
	if c.SpotSymbol == "" || c.FuturePair == "" {
		return fmt.Errorf("spot symbol and future pair are required")
	}
	return nil
}

// SpreadBacktester downloads daily closes, rolls the delivery contracts,
// and marks the spread to market day by day.
type SpreadBacktester struct {
	cfg        Config
	spotData   binance.MarketData
	futureData binance.MarketData
	logger     *logrus.Logger
}

func New(cfg Config, spotData, futureData binance.MarketData, logger *logrus.Logger) (*SpreadBacktester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if spotData == nil || futureData == nil {
		return nil, fmt.Errorf("backtester requires spot and future market data")
	}
	if logger == nil {
		logger = logrus.New()
	}
	cfg.StartDate = instruments.Day(cfg.StartDate)
	cfg.EndDate = instruments.Day(cfg.EndDate)
	return &SpreadBacktester{cfg: cfg, spotData: spotData, futureData: futureData, logger: logger}, nil
}

// Result bundles one completed run.
type Result struct {
	Records    []models.DailyRecord
	Summary    models.BacktestSummary
	Segments   []models.ContractSegment
	OutputPath string
}

// Run executes the full backtest and writes the CSV artifact. Nothing is
// written when any stage fails.
func (b *SpreadBacktester) Run(ctx context.Context) (Result, error) {
	segments, err := b.buildSegments(ctx)
	if err != nil {
		return Result{}, err
	}

	spotPrices, err := b.spotData.DailyCloses(ctx, b.cfg.SpotSymbol, b.cfg.StartDate, b.cfg.EndDate.AddDate(0, 0, 1))
	if err != nil {
		return Result{}, fmt.Errorf("fetch spot closes: %w", err)
	}

	futurePrices := make(map[string]map[time.Time]float64, len(segments))
	for _, seg := range segments {
		closes, err := b.futureData.DailyCloses(ctx, seg.Symbol, seg.Start.AddDate(0, 0, -1), seg.End.AddDate(0, 0, 1))
		if err != nil {
			return Result{}, fmt.Errorf("fetch closes for %s: %w", seg.Symbol, err)
		}
		futurePrices[seg.Symbol] = closes
	}

	records, err := replay(b.cfg.NotionalUSDT, b.cfg.StartDate, b.cfg.EndDate, spotPrices, futurePrices, segments)
	if err != nil {
		return Result{}, err
	}
	summary := Summarize(records, b.cfg.NotionalUSDT)

	path := ResolveOutputPath(b.cfg.OutputPath, b.cfg.FuturePair, b.cfg.StartDate, b.cfg.EndDate)
	if err := WriteCSV(records, path); err != nil {
		return Result{}, err
	}
	b.logger.WithFields(logrus.Fields{
		"path": path,
		"days": summary.Days,
	}).Info("Backtest records written")

	return Result{Records: records, Summary: summary, Segments: segments, OutputPath: path}, nil
}

func (b *SpreadBacktester) buildSegments(ctx context.Context) ([]models.ContractSegment, error) {
	contractSize := instruments.DefaultContractSize
	info, err := b.futureData.ExchangeInfo(ctx)
	if err != nil {
		// Metadata lookup failing is non-fatal here; the fallback must be
		// loud so a misconfigured pair cannot hide behind it.
		b.logger.WithError(err).WithFields(logrus.Fields{
			"pair":          b.cfg.FuturePair,
			"contract_size": contractSize,
		}).Warn("Exchange info unavailable; falling back to default contract size")
	} else {
		var found bool
		contractSize, found = instruments.DetectContractSize(info, b.cfg.FuturePair)
		if !found {
			b.logger.WithFields(logrus.Fields{
				"pair":          b.cfg.FuturePair,
				"contract_size": contractSize,
			}).Warn("No contract size in exchange info; falling back to default")
		}
	}
	return instruments.BuildSegments(b.cfg.FuturePair, b.cfg.StartDate, b.cfg.EndDate, b.cfg.RollBufferDays, contractSize)
}

// replay walks every day of the window. On a roll day the position is
// re-established at that day's close and contributes zero PnL; on other
// days the spot leg is linear and the future leg is inverse (coin-settled),
// converted to quote currency at the day's spot close.
func replay(notional float64, start, end time.Time, spotPrices map[time.Time]float64, futurePrices map[string]map[time.Time]float64, segments []models.ContractSegment) ([]models.DailyRecord, error) {
	var (
		records         []models.DailyRecord
		prevSpotPrice   float64
		prevFuturePrice float64
		prevSymbol      string
		spotQty         float64
		contracts       float64
		cumPnl          float64
	)

	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		seg, ok := instruments.ActiveSymbol(segments, day)
		if !ok {
			return nil, fmt.Errorf("%w: no active contract for %s", ErrMissingPrice, day.Format("2006-01-02"))
		}
		spotPrice, ok := spotPrices[day]
		if !ok {
			return nil, fmt.Errorf("%w: spot close for %s", ErrMissingPrice, day.Format("2006-01-02"))
		}
		futurePrice, ok := futurePrices[seg.Symbol][day]
		if !ok {
			return nil, fmt.Errorf("%w: %s close for %s", ErrMissingPrice, seg.Symbol, day.Format("2006-01-02"))
		}

		roll := seg.Symbol != prevSymbol || prevSpotPrice == 0
		var spotPnl, futurePnl float64
		if roll {
			spotQty = notional / spotPrice
			contracts = math.Round(notional / seg.ContractSize)
			if contracts < 1 {
				contracts = 1
			}
		} else {
			spotPnl = spotQty * (spotPrice - prevSpotPrice)
			// Short inverse position: profits when price rises, i.e. when
			// the coin value of the contract falls.
			futurePnlCoin := -contracts * seg.ContractSize * (1/prevFuturePrice - 1/futurePrice)
			futurePnl = futurePnlCoin * spotPrice
		}

		total := spotPnl + futurePnl
		cumPnl += total
		records = append(records, models.DailyRecord{
			Date:            day,
			SpotPrice:       spotPrice,
			FutureSymbol:    seg.Symbol,
			FuturePrice:     futurePrice,
			SpotPosition:    spotQty,
			FutureContracts: contracts,
			SpotPnl:         spotPnl,
			FuturePnl:       futurePnl,
			TotalPnl:        total,
			CumPnl:          cumPnl,
			Roll:            roll,
		})

		prevSpotPrice = spotPrice
		prevFuturePrice = futurePrice
		prevSymbol = seg.Symbol
	}
	return records, nil
}

// Summarize computes the aggregate statistics over a full record sequence.
// Day 0 is excluded from the daily return series since it has zero PnL by
// construction.
func Summarize(records []models.DailyRecord, notional float64) models.BacktestSummary {
	if len(records) == 0 {
		return models.BacktestSummary{}
	}
	days := len(records)
	finalPnl := records[days-1].CumPnl
	totalReturn := finalPnl / notional
	annualizedReturn := math.Pow(1+totalReturn, 365/float64(days)) - 1

	dailyReturns := make([]float64, 0, days-1)
	for _, rec := range records[1:] {
		dailyReturns = append(dailyReturns, rec.TotalPnl/notional)
	}
	annualizedVol := pstdev(dailyReturns) * math.Sqrt(365)

	sharpe := math.NaN()
	if annualizedVol != 0 {
		sharpe = annualizedReturn / annualizedVol
	}

	return models.BacktestSummary{
		Days:             days,
		FinalPnl:         finalPnl,
		TotalReturn:      totalReturn,
		AnnualizedReturn: annualizedReturn,
		AnnualizedVol:    annualizedVol,
		Sharpe:           sharpe,
	}
}

// pstdev is the population standard deviation, zero for fewer than two
// samples.
func pstdev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	var variance float64
	for _, v := range values {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(values))
	return math.Sqrt(variance)
}
