package binance

import (
	"context"
	"time"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

// PriceFeed supplies the best bid/ask for one leg of the spread.
type PriceFeed interface {
	BestBidAsk(ctx context.Context, symbol string) (bid, ask float64, err error)
}

// MarketData supplies historical closes and instrument metadata for one
// venue (spot or coin-margined futures).
type MarketData interface {
	// DailyCloses returns 1d kline closing prices keyed by UTC midnight for
	// [start, end) in epoch time.
	DailyCloses(ctx context.Context, symbol string, start, end time.Time) (map[time.Time]float64, error)
	ExchangeInfo(ctx context.Context) (models.ExchangeInfo, error)
}

// OrderGateway submits one order slice. Implementations: the live REST
// gateway and the probabilistic fill simulator; callers select one at
// construction, the execution engine never branches on which.
type OrderGateway interface {
	SubmitOrder(ctx context.Context, req models.OrderRequest) (models.Order, error)
}

// Venue bundles the read-only capabilities of a single venue client.
type Venue interface {
	PriceFeed
	MarketData
}
