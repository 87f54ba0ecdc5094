package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/binance"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/instruments"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

// ExecutionConfig controls the TWAP slicing of one spread run.
type ExecutionConfig struct {
	NotionalUSDT         float64
	DurationHours        int
	SliceIntervalMinutes int
	PriceOffsetBps       float64
	MinSpotQty           float64
	DryRun               bool
	UseMarketOrders      bool
}

// DefaultExecutionConfig mirrors the production defaults: 1M USDT worked
// over 24 hours in 5 minute slices, dry-run until explicitly armed.
func DefaultExecutionConfig() ExecutionConfig {
	return ExecutionConfig{
		NotionalUSDT:         1_000_000,
		DurationHours:        24,
		SliceIntervalMinutes: 5,
		PriceOffsetBps:       5,
		MinSpotQty:           0.0001,
		DryRun:               true,
		UseMarketOrders:      true,
	}
}

// NumSlices is the tick count: duration divided into whole intervals,
// never fewer than one.
func (c ExecutionConfig) NumSlices() int {
	if c.SliceIntervalMinutes <= 0 {
		return 1
	}
	slices := c.DurationHours * 60 / c.SliceIntervalMinutes
	if slices < 1 {
		return 1
	}
	return slices
}

func (c ExecutionConfig) SliceInterval() time.Duration {
	return time.Duration(c.SliceIntervalMinutes) * time.Minute
}

// Deps are the injected collaborators for one executor. Feeds and data may
// be backed by REST, a websocket cache, or test fakes; the gateway decides
// live versus simulated fills.
type Deps struct {
	SpotData   binance.MarketData
	FutureData binance.MarketData
	SpotFeed   binance.PriceFeed
	FutureFeed binance.PriceFeed
	Gateway    binance.OrderGateway
	Clock      Clock
}

// Progress is a read-only snapshot of a run, safe to serve while the run
// is ticking.
type Progress struct {
	Mode            string    `json:"mode"`
	SliceIndex      int       `json:"slice_index"`
	TotalSlices     int       `json:"total_slices"`
	SpotRemaining   float64   `json:"spot_remaining"`
	FutureRemaining float64   `json:"future_remaining"`
	StartedAt       time.Time `json:"started_at"`
	Done            bool      `json:"done"`
}

// Residual thresholds below which a finished run is considered clean.
const (
	residualNotionalEpsilon = 1.0
	residualQtyEpsilon      = 1e-6
)

// SpreadExecutor works a long-spot / short-future spread in or out over a
// fixed number of timed slices. One executor owns one run's remaining
// counters exclusively; it is not reusable across runs.
type SpreadExecutor struct {
	cfg          ExecutionConfig
	spotSymbol   string
	futurePair   string
	futureSymbol string

	spotFeed   binance.PriceFeed
	futureFeed binance.PriceFeed
	gateway    binance.OrderGateway
	clock      Clock
	logger     *logrus.Logger

	spotFilter   models.InstrumentFilters
	futureFilter models.InstrumentFilters
	contractSize float64

	mu       sync.RWMutex
	progress Progress
}

// NewSpreadExecutor resolves instrument metadata once and returns an
// executor bound to it. An empty futureSymbol selects the front delivery
// contract for the pair. Unresolvable symbols are configuration errors.
func NewSpreadExecutor(ctx context.Context, spotSymbol, futurePair, futureSymbol string, cfg ExecutionConfig, deps Deps, logger *logrus.Logger) (*SpreadExecutor, error) {
	if deps.SpotData == nil || deps.FutureData == nil {
		return nil, fmt.Errorf("spread executor requires spot and future market data")
	}
	if deps.SpotFeed == nil || deps.FutureFeed == nil {
		return nil, fmt.Errorf("spread executor requires spot and future price feeds")
	}
	if deps.Gateway == nil && !cfg.DryRun {
		return nil, fmt.Errorf("live execution requires an order gateway")
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.NotionalUSDT <= 0 {
		return nil, fmt.Errorf("execution notional must be positive, got %.2f", cfg.NotionalUSDT)
	}
	if cfg.SliceIntervalMinutes <= 0 || cfg.DurationHours <= 0 {
		return nil, fmt.Errorf("execution duration and slice interval must be positive")
	}

	spotInfo, err := deps.SpotData.ExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch spot exchange info: %w", err)
	}
	spotFilter, err := instruments.SpotFilters(spotInfo, spotSymbol)
	if err != nil {
		return nil, err
	}

	futureInfo, err := deps.FutureData.ExchangeInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch future exchange info: %w", err)
	}
	if futureSymbol == "" {
		futureSymbol, err = instruments.SelectFrontContract(futureInfo, futurePair, deps.Clock.Now())
		if err != nil {
			return nil, err
		}
	}
	futureFilter, err := instruments.FutureFilters(futureInfo, futureSymbol)
	if err != nil {
		return nil, err
	}
	if futureFilter.ContractSize <= 0 {
		return nil, fmt.Errorf("future symbol %s has no contract size in exchange info", futureSymbol)
	}

	e := &SpreadExecutor{
		cfg:          cfg,
		spotSymbol:   spotSymbol,
		futurePair:   futurePair,
		futureSymbol: futureSymbol,
		spotFeed:     deps.SpotFeed,
		futureFeed:   deps.FutureFeed,
		gateway:      deps.Gateway,
		clock:        deps.Clock,
		logger:       logger,
		spotFilter:   spotFilter,
		futureFilter: futureFilter,
		contractSize: futureFilter.ContractSize,
		progress:     Progress{Mode: "idle"},
	}
	logger.WithFields(logrus.Fields{
		"spot_symbol":   spotSymbol,
		"future_symbol": futureSymbol,
		"contract_size": e.contractSize,
		"spot_step":     spotFilter.StepSize,
		"future_step":   futureFilter.StepSize,
	}).Debug("Resolved instrument filters")
	return e, nil
}

// FutureSymbol is the delivery contract this executor trades.
func (e *SpreadExecutor) FutureSymbol() string {
	return e.futureSymbol
}

// ContractSize is the notional, in quote currency, of one future contract.
func (e *SpreadExecutor) ContractSize() float64 {
	return e.contractSize
}

// Progress returns a snapshot of the current run.
func (e *SpreadExecutor) Progress() Progress {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.progress
}

func (e *SpreadExecutor) setProgress(p Progress) {
	e.mu.Lock()
	e.progress = p
	e.mu.Unlock()
}

// OpenPosition establishes the spread: buy spot at the ask, sell the
// delivery future at the bid, notional-matched, worked over NumSlices
// ticks.
func (e *SpreadExecutor) OpenPosition(ctx context.Context) error {
	_, spotAsk, err := e.spotFeed.BestBidAsk(ctx, e.spotSymbol)
	if err != nil {
		return fmt.Errorf("spot book ticker: %w", err)
	}
	approxSpotQty := 0.0
	if spotAsk > 0 {
		approxSpotQty = e.cfg.NotionalUSDT / spotAsk
	}
	e.logger.WithFields(logrus.Fields{
		"notional_usdt":    e.cfg.NotionalUSDT,
		"approx_spot_qty":  approxSpotQty,
		"approx_contracts": e.cfg.NotionalUSDT / e.contractSize,
		"slices":           e.cfg.NumSlices(),
		"contract_size":    e.contractSize,
	}).Info("Opening spread")
	return e.runTwapOpen(ctx, models.OrderSideBuy, models.OrderSideSell)
}

// ClosePosition unwinds an existing spread: sell spotQty of the base asset
// and buy back futureContracts, worked over NumSlices ticks. Callers pass
// the actual filled sizes from the open run.
func (e *SpreadExecutor) ClosePosition(ctx context.Context, spotQty, futureContracts float64) error {
	e.logger.WithFields(logrus.Fields{
		"spot_qty":  spotQty,
		"contracts": futureContracts,
		"slices":    e.cfg.NumSlices(),
	}).Info("Closing spread")
	return e.runTwapClose(ctx, models.OrderSideSell, models.OrderSideBuy, spotQty, futureContracts)
}

func (e *SpreadExecutor) runTwapOpen(ctx context.Context, spotSide, futureSide models.OrderSide) error {
	spotRemaining := e.cfg.NotionalUSDT
	futureRemaining := e.cfg.NotionalUSDT
	slices := e.cfg.NumSlices()

	start := e.clock.Now()
	next := start
	e.setProgress(Progress{Mode: "open", TotalSlices: slices, SpotRemaining: spotRemaining, FutureRemaining: futureRemaining, StartedAt: start})

	for idx := 0; idx < slices; idx++ {
		slicesLeft := slices - idx

		spotBid, spotAsk, err := e.spotFeed.BestBidAsk(ctx, e.spotSymbol)
		if err != nil {
			return fmt.Errorf("spot book ticker: %w", err)
		}
		spotPrice := spotAsk
		if spotSide == models.OrderSideSell {
			spotPrice = spotBid
		}
		if spotPrice <= 0 {
			e.logger.WithField("slice", idx+1).Warn("Spot price unavailable; skipping slice")
			continue
		}

		futureBid, futureAsk, err := e.futureFeed.BestBidAsk(ctx, e.futureSymbol)
		if err != nil {
			return fmt.Errorf("future book ticker: %w", err)
		}

		spotSize, err := e.placeSpotSlice(ctx, spotSide,
			SliceSize(spotRemaining, slicesLeft, spotPrice, e.spotFilter.StepSize, e.effectiveMinSpotQty()),
			spotBid, spotAsk)
		if err != nil {
			return err
		}
		futureSize, err := e.placeFutureSlice(ctx, futureSide,
			SliceSize(futureRemaining, slicesLeft, e.contractSize, e.futureFilter.StepSize, e.effectiveMinContracts()),
			futureBid, futureAsk)
		if err != nil {
			return err
		}

		// Reduce by what was actually sent, not the plan: skipped or
		// undersized slices leave more for later ticks.
		spotRemaining = clampZero(spotRemaining - spotSize*spotPrice)
		futureRemaining = clampZero(futureRemaining - futureSize*e.contractSize)

		e.setProgress(Progress{Mode: "open", SliceIndex: idx + 1, TotalSlices: slices, SpotRemaining: spotRemaining, FutureRemaining: futureRemaining, StartedAt: start})
		e.logger.WithFields(logrus.Fields{
			"slice":                 fmt.Sprintf("%03d/%03d", idx+1, slices),
			"spot_remaining_usdt":   spotRemaining,
			"future_remaining_usdt": futureRemaining,
		}).Info("Slice complete")

		e.pace(&next, idx, slices)
	}

	if spotRemaining > residualNotionalEpsilon || futureRemaining > residualNotionalEpsilon {
		e.logger.WithFields(logrus.Fields{
			"spot_remaining_usdt":   spotRemaining,
			"future_remaining_usdt": futureRemaining,
		}).Warn("Execution finished with residual notional")
	}
	e.setProgress(Progress{Mode: "open", SliceIndex: slices, TotalSlices: slices, SpotRemaining: spotRemaining, FutureRemaining: futureRemaining, StartedAt: start, Done: true})
	return nil
}

func (e *SpreadExecutor) runTwapClose(ctx context.Context, spotSide, futureSide models.OrderSide, spotTargetQty, futureTargetContracts float64) error {
	spotRemaining := clampZero(spotTargetQty)
	futureRemaining := clampZero(futureTargetContracts)
	slices := e.cfg.NumSlices()

	start := e.clock.Now()
	next := start
	e.setProgress(Progress{Mode: "close", TotalSlices: slices, SpotRemaining: spotRemaining, FutureRemaining: futureRemaining, StartedAt: start})

	for idx := 0; idx < slices; idx++ {
		slicesLeft := slices - idx

		spotBid, spotAsk, err := e.spotFeed.BestBidAsk(ctx, e.spotSymbol)
		if err != nil {
			return fmt.Errorf("spot book ticker: %w", err)
		}
		futureBid, futureAsk, err := e.futureFeed.BestBidAsk(ctx, e.futureSymbol)
		if err != nil {
			return fmt.Errorf("future book ticker: %w", err)
		}

		spotSize, err := e.placeSpotSlice(ctx, spotSide,
			SliceSize(spotRemaining, slicesLeft, 1, e.spotFilter.StepSize, e.effectiveMinSpotQty()),
			spotBid, spotAsk)
		if err != nil {
			return err
		}
		futureSize, err := e.placeFutureSlice(ctx, futureSide,
			SliceSize(futureRemaining, slicesLeft, 1, e.futureFilter.StepSize, e.effectiveMinContracts()),
			futureBid, futureAsk)
		if err != nil {
			return err
		}

		spotRemaining = clampZero(spotRemaining - spotSize)
		futureRemaining = clampZero(futureRemaining - futureSize)

		e.setProgress(Progress{Mode: "close", SliceIndex: idx + 1, TotalSlices: slices, SpotRemaining: spotRemaining, FutureRemaining: futureRemaining, StartedAt: start})
		e.logger.WithFields(logrus.Fields{
			"slice":               fmt.Sprintf("%03d/%03d", idx+1, slices),
			"spot_remaining_qty":  spotRemaining,
			"contracts_remaining": futureRemaining,
		}).Info("Slice complete")

		e.pace(&next, idx, slices)
	}

	if spotRemaining > residualQtyEpsilon || futureRemaining > residualQtyEpsilon {
		e.logger.WithFields(logrus.Fields{
			"spot_remaining_qty":  spotRemaining,
			"contracts_remaining": futureRemaining,
		}).Warn("Execution finished with residual quantity")
	}
	e.setProgress(Progress{Mode: "close", SliceIndex: slices, TotalSlices: slices, SpotRemaining: spotRemaining, FutureRemaining: futureRemaining, StartedAt: start, Done: true})
	return nil
}

// pace blocks until the next tick's wall-clock time. Dry runs skip pacing
// entirely so they complete back-to-back and deterministically.
func (e *SpreadExecutor) pace(next *time.Time, idx, slices int) {
	if e.cfg.DryRun || idx+1 >= slices {
		return
	}
	*next = next.Add(e.cfg.SliceInterval())
	if wait := next.Sub(e.clock.Now()); wait > 0 {
		e.clock.Sleep(wait)
	}
}

func (e *SpreadExecutor) effectiveMinSpotQty() float64 {
	minQty := e.cfg.MinSpotQty
	if e.spotFilter.MinQty > minQty {
		minQty = e.spotFilter.MinQty
	}
	return minQty
}

func (e *SpreadExecutor) effectiveMinContracts() float64 {
	minQty := e.futureFilter.MinQty
	if e.futureFilter.StepSize > minQty {
		minQty = e.futureFilter.StepSize
	}
	return minQty
}

// placeSpotSlice submits one spot order and returns the size sent. A
// skipped plan returns zero without an order.
func (e *SpreadExecutor) placeSpotSlice(ctx context.Context, side models.OrderSide, plan SlicePlan, bestBid, bestAsk float64) (float64, error) {
	if plan.Skipped {
		if plan.Target > 0 {
			e.logger.WithField("target_qty", plan.Target).Debug("Spot slice below minimum; skipped")
		}
		return 0, nil
	}

	req := models.OrderRequest{
		Account:  models.AccountTypeSpot,
		Symbol:   e.spotSymbol,
		Side:     side,
		Type:     models.OrderTypeMarket,
		Quantity: plan.Rounded,
	}
	if !e.cfg.UseMarketOrders {
		req.Type = models.OrderTypeLimit
		req.Price = e.limitPrice(side, bestBid, bestAsk, e.spotFilter.TickSize)
		req.TimeInForce = "GTC"
	}
	if err := e.submit(ctx, req); err != nil {
		return 0, err
	}
	return plan.Rounded, nil
}

// placeFutureSlice submits one future order and returns the contract count
// sent.
func (e *SpreadExecutor) placeFutureSlice(ctx context.Context, side models.OrderSide, plan SlicePlan, bestBid, bestAsk float64) (float64, error) {
	if plan.Skipped {
		if plan.Target > 0 {
			e.logger.WithField("target_contracts", plan.Target).Debug("Future slice below minimum; skipped")
		}
		return 0, nil
	}

	req := models.OrderRequest{
		Account:  models.AccountTypeFuture,
		Symbol:   e.futureSymbol,
		Side:     side,
		Type:     models.OrderTypeMarket,
		Quantity: ContractQuantity(plan.Rounded, e.futureFilter.StepSize),
	}
	if !e.cfg.UseMarketOrders {
		req.Type = models.OrderTypeLimit
		req.Price = e.limitPrice(side, bestBid, bestAsk, e.futureFilter.TickSize)
		req.TimeInForce = "GTC"
	}
	if err := e.submit(ctx, req); err != nil {
		return 0, err
	}
	return plan.Rounded, nil
}

// submit hands the order to the gateway, or only logs it in dry-run mode.
// Submission failures propagate to the caller; this engine does not retry.
func (e *SpreadExecutor) submit(ctx context.Context, req models.OrderRequest) error {
	fields := logrus.Fields{
		"account":  req.Account,
		"symbol":   req.Symbol,
		"side":     req.Side,
		"type":     req.Type,
		"quantity": req.Quantity,
	}
	if req.Type == models.OrderTypeLimit {
		fields["price"] = req.Price
	}
	if e.cfg.DryRun {
		e.logger.WithFields(fields).Info("Dry-run order")
		return nil
	}
	order, err := e.gateway.SubmitOrder(ctx, req)
	if err != nil {
		return fmt.Errorf("submit %s %s order: %w", req.Account, req.Side, err)
	}
	fields["order_id"] = order.OrderID
	fields["status"] = order.Status
	e.logger.WithFields(fields).Info("Order response")
	return nil
}

// limitPrice crosses the book by the configured offset but never by more
// than 10 bps, then snaps to the tick grid. Floor rounding is applied to
// both sides; whether the venue prefers ceiling for sells is unconfirmed.
func (e *SpreadExecutor) limitPrice(side models.OrderSide, bid, ask, tickSize float64) float64 {
	offset := e.cfg.PriceOffsetBps / 10_000
	var price float64
	if side == models.OrderSideBuy {
		price = ask * (1 + offset)
		if ceiling := ask * 1.001; price > ceiling {
			price = ceiling
		}
	} else {
		price = bid * (1 - offset)
		if floor := bid * 0.999; price < floor {
			price = floor
		}
	}
	return RoundToStep(price, tickSize)
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
