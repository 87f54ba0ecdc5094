package models

import (
	"time"
)

// DailyRecord is one day of the mark-to-market replay. CumPnl is the running
// sum of TotalPnl in date order.
type DailyRecord struct {
	Date            time.Time
	SpotPrice       float64
	FutureSymbol    string
	FuturePrice     float64
	SpotPosition    float64
	FutureContracts float64
	SpotPnl         float64
	FuturePnl       float64
	TotalPnl        float64
	CumPnl          float64
	Roll            bool
}

// BacktestSummary aggregates a full record sequence. Sharpe is NaN when the
// annualized volatility is zero.
type BacktestSummary struct {
	Days             int
	FinalPnl         float64
	TotalReturn      float64
	AnnualizedReturn float64
	AnnualizedVol    float64
	Sharpe           float64
}
