package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/songfangyl/Spot-future-spread-arbitrage/api"
	"github.com/songfangyl/Spot-future-spread-arbitrage/internal/config"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/backtest"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/binance"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/storage"
	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/trader"
)

var (
	cfgFile string
	logger  *logrus.Logger
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "spread-trader",
		Short: "Spot/future carry spread execution and backtesting",
		Long:  `Executes and backtests a long-spot / short-delivery-future carry trade: TWAP execution of the spread plus a contract-roll mark-to-market simulator`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yaml)")

	openCmd := &cobra.Command{
		Use:   "open",
		Short: "Open the spread via TWAP (buy spot, sell future)",
		Run:   runOpen,
	}

	var spotQty, contracts float64
	closeCmd := &cobra.Command{
		Use:   "close",
		Short: "Close an existing spread via TWAP (sell spot, buy future)",
		Run: func(cmd *cobra.Command, args []string) {
			runClose(spotQty, contracts)
		},
	}
	closeCmd.Flags().Float64Var(&spotQty, "spot-qty", 0, "spot quantity to unwind (approximated from notional when omitted)")
	closeCmd.Flags().Float64Var(&contracts, "contracts", 0, "future contracts to buy back (approximated from notional when omitted)")

	backtestCmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the carry trade over historical daily closes",
		Run:   runBacktest,
	}

	rootCmd.AddCommand(openCmd, closeCmd, backtestCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func setup() *config.Config {
	// A local .env may carry API credentials; absence is fine.
	_ = godotenv.Load()

	logger = logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(cfgFile)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		logger.WithError(err).Error("Invalid log level, using INFO")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.Logging.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{})
	}

	return cfg
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		logger.Info("Received shutdown signal")
		cancel()
	}()
	return ctx, cancel
}

// buildExecutor wires the venue clients, price feeds, gateway, and clock
// into one executor per the configuration.
func buildExecutor(ctx context.Context, cfg *config.Config) (*trader.SpreadExecutor, *binance.Client, error) {
	spotClient := binance.NewSpotClient(cfg.Binance.Spot.BaseURL, cfg.Binance.Spot.APIKey, cfg.Binance.Spot.APISecret)
	futureClient := binance.NewFuturesClient(cfg.Binance.Futures.BaseURL, cfg.Binance.Futures.APIKey, cfg.Binance.Futures.APISecret)

	deps := trader.Deps{
		SpotData:   spotClient,
		FutureData: futureClient,
		SpotFeed:   spotClient,
		FutureFeed: futureClient,
		Clock:      trader.SystemClock(),
	}

	// The websocket cache only covers the spot leg; dated futures stay on
	// REST where the payload normalization already handles them.
	if cfg.Binance.WebSocket.Enabled {
		stream := binance.NewBookTickerStream(cfg.Binance.WebSocket.URL, []string{cfg.Backtest.SpotSymbol}, logger)
		if err := stream.Connect(ctx); err != nil {
			return nil, nil, err
		}
		deps.SpotFeed = stream
	}

	if cfg.Execution.Simulated {
		deps.Gateway = binance.NewSimGateway(cfg.Execution.SimFillProbability, logger)
	} else {
		deps.Gateway = binance.NewGateway(spotClient, futureClient, logger)
	}

	execCfg := trader.ExecutionConfig{
		NotionalUSDT:         cfg.Execution.NotionalUSDT,
		DurationHours:        cfg.Execution.DurationHours,
		SliceIntervalMinutes: cfg.Execution.SliceIntervalMinutes,
		PriceOffsetBps:       cfg.Execution.PriceOffsetBps,
		MinSpotQty:           cfg.Execution.MinSpotQty,
		DryRun:               cfg.Execution.DryRun,
		UseMarketOrders:      cfg.Execution.UseMarketOrders,
	}

	executor, err := trader.NewSpreadExecutor(ctx, cfg.Backtest.SpotSymbol, cfg.Backtest.FuturePair, cfg.Execution.FutureSymbol, execCfg, deps, logger)
	if err != nil {
		return nil, nil, err
	}
	return executor, spotClient, nil
}

func startServer(cfg *config.Config, executor *trader.SpreadExecutor) *api.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	server := api.NewServer(executor, logger, fmt.Sprintf("%d", cfg.Server.Port))
	go func() {
		if err := server.Start(); err != nil {
			logger.WithError(err).Error("API server stopped")
		}
	}()
	return server
}

func runOpen(cmd *cobra.Command, args []string) {
	cfg := setup()
	ctx, cancel := signalContext()
	defer cancel()

	executor, _, err := buildExecutor(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build spread executor")
	}
	startServer(cfg, executor)

	if err := executor.OpenPosition(ctx); err != nil {
		logger.WithError(err).Fatal("Open execution failed")
	}
	logger.Info("Open execution complete")
}

func runClose(spotQty, contracts float64) {
	cfg := setup()
	ctx, cancel := signalContext()
	defer cancel()

	executor, spotClient, err := buildExecutor(ctx, cfg)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build spread executor")
	}
	startServer(cfg, executor)

	if spotQty <= 0 || contracts <= 0 {
		_, ask, err := spotClient.BestBidAsk(ctx, cfg.Backtest.SpotSymbol)
		if err != nil {
			logger.WithError(err).Fatal("Failed to fetch spot price for close sizing")
		}
		if spotQty <= 0 && ask > 0 {
			spotQty = cfg.Execution.NotionalUSDT / ask
		}
		if contracts <= 0 {
			contracts = cfg.Execution.NotionalUSDT / executor.ContractSize()
		}
		logger.WithFields(logrus.Fields{
			"spot_qty":  spotQty,
			"contracts": contracts,
		}).Warn("Close sizes approximated from notional; pass --spot-qty/--contracts with actual filled sizes")
	}

	if err := executor.ClosePosition(ctx, spotQty, contracts); err != nil {
		logger.WithError(err).Fatal("Close execution failed")
	}
	logger.Info("Close execution complete")
}

func runBacktest(cmd *cobra.Command, args []string) {
	cfg := setup()
	ctx, cancel := signalContext()
	defer cancel()

	start, end, err := cfg.Backtest.Window()
	if err != nil {
		logger.WithError(err).Fatal("Invalid backtest window")
	}

	spotClient := binance.NewSpotClient(cfg.Binance.Spot.BaseURL, cfg.Binance.Spot.APIKey, cfg.Binance.Spot.APISecret)
	futureClient := binance.NewFuturesClient(cfg.Binance.Futures.BaseURL, cfg.Binance.Futures.APIKey, cfg.Binance.Futures.APISecret)

	bt, err := backtest.New(backtest.Config{
		StartDate:      start,
		EndDate:        end,
		NotionalUSDT:   cfg.Backtest.NotionalUSDT,
		RollBufferDays: cfg.Backtest.RollBufferDays,
		SpotSymbol:     cfg.Backtest.SpotSymbol,
		FuturePair:     cfg.Backtest.FuturePair,
		OutputPath:     cfg.Backtest.OutputPath,
	}, spotClient, futureClient, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to build backtester")
	}

	server := startServer(cfg, nil)

	result, err := bt.Run(ctx)
	if err != nil {
		logger.WithError(err).Fatal("Backtest failed")
	}
	if server != nil {
		server.SetSummary(result.Summary)
	}

	backtest.PrintReport(os.Stdout, result.Segments, result.Summary)

	if cfg.Database.Path != "" {
		store, err := storage.Open(cfg.Database.Path)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open database")
		}
		defer store.Close()
		runID, err := store.SaveRun(ctx, cfg.Backtest.FuturePair, start, end, cfg.Backtest.NotionalUSDT, result.Summary, result.Records)
		if err != nil {
			logger.WithError(err).Fatal("Failed to persist backtest run")
		}
		logger.WithField("run_id", runID).Info("Backtest run persisted")
	}
}
