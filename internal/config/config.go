package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	Backtest  BacktestConfig  `mapstructure:"backtest"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

type BinanceConfig struct {
	Spot      EndpointConfig  `mapstructure:"spot"`
	Futures   EndpointConfig  `mapstructure:"futures"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

type EndpointConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`
}

type WebSocketConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

type BacktestConfig struct {
	StartDate      string  `mapstructure:"start_date"`
	EndDate        string  `mapstructure:"end_date"`
	NotionalUSDT   float64 `mapstructure:"notional_usdt"`
	RollBufferDays int     `mapstructure:"roll_buffer_days"`
	SpotSymbol     string  `mapstructure:"spot_symbol"`
	FuturePair     string  `mapstructure:"future_pair"`
	OutputPath     string  `mapstructure:"output_path"`
}

type ExecutionConfig struct {
	NotionalUSDT         float64 `mapstructure:"notional_usdt"`
	DurationHours        int     `mapstructure:"duration_hours"`
	SliceIntervalMinutes int     `mapstructure:"slice_interval_minutes"`
	PriceOffsetBps       float64 `mapstructure:"price_offset_bps"`
	MinSpotQty           float64 `mapstructure:"min_spot_qty"`
	DryRun               bool    `mapstructure:"dry_run"`
	UseMarketOrders      bool    `mapstructure:"use_market_orders"`
	Simulated            bool    `mapstructure:"simulated"`
	SimFillProbability   float64 `mapstructure:"sim_fill_probability"`
	FutureSymbol         string  `mapstructure:"future_symbol"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/spread-trader")
	}

	v.SetEnvPrefix("SPREAD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)

	// Binance defaults; empty base URLs fall through to the client's own.
	v.SetDefault("binance.spot.base_url", "")
	v.SetDefault("binance.futures.base_url", "")
	v.SetDefault("binance.websocket.enabled", false)
	v.SetDefault("binance.websocket.url", "")

	// Backtest defaults
	v.SetDefault("backtest.start_date", "2021-01-01")
	v.SetDefault("backtest.end_date", "2021-09-30")
	v.SetDefault("backtest.notional_usdt", 1_000_000)
	v.SetDefault("backtest.roll_buffer_days", 1)
	v.SetDefault("backtest.spot_symbol", "BTCUSDT")
	v.SetDefault("backtest.future_pair", "BTCUSD")
	v.SetDefault("backtest.output_path", "output")

	// Execution defaults
	v.SetDefault("execution.notional_usdt", 1_000_000)
	v.SetDefault("execution.duration_hours", 24)
	v.SetDefault("execution.slice_interval_minutes", 5)
	v.SetDefault("execution.price_offset_bps", 5.0)
	v.SetDefault("execution.min_spot_qty", 0.0001)
	v.SetDefault("execution.dry_run", true)
	v.SetDefault("execution.use_market_orders", true)
	v.SetDefault("execution.simulated", true)
	v.SetDefault("execution.sim_fill_probability", 0.9)
	v.SetDefault("execution.future_symbol", "")

	// Database defaults; empty path disables persistence.
	v.SetDefault("database.path", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func overrideFromEnv(config *Config) {
	if apiKey := os.Getenv("BINANCE_API_KEY"); apiKey != "" {
		config.Binance.Spot.APIKey = apiKey
		config.Binance.Futures.APIKey = apiKey
	}
	if apiSecret := os.Getenv("BINANCE_API_SECRET"); apiSecret != "" {
		config.Binance.Spot.APISecret = apiSecret
		config.Binance.Futures.APISecret = apiSecret
	}
	if apiKey := os.Getenv("BINANCE_SPOT_API_KEY"); apiKey != "" {
		config.Binance.Spot.APIKey = apiKey
	}
	if apiSecret := os.Getenv("BINANCE_SPOT_API_SECRET"); apiSecret != "" {
		config.Binance.Spot.APISecret = apiSecret
	}
	if apiKey := os.Getenv("BINANCE_FUTURES_API_KEY"); apiKey != "" {
		config.Binance.Futures.APIKey = apiKey
	}
	if apiSecret := os.Getenv("BINANCE_FUTURES_API_SECRET"); apiSecret != "" {
		config.Binance.Futures.APISecret = apiSecret
	}
}

// Validate rejects configurations the engines would fail on anyway, at
// load time instead of mid-run.
func (c *Config) Validate() error {
	start, end, err := c.Backtest.Window()
	if err != nil {
		return err
	}
	if start.After(end) {
		return fmt.Errorf("backtest start date %s must not be after end date %s",
			c.Backtest.StartDate, c.Backtest.EndDate)
	}
	if c.Backtest.NotionalUSDT <= 0 {
		return fmt.Errorf("backtest notional must be positive")
	}
	if c.Backtest.RollBufferDays < 0 {
		return fmt.Errorf("roll buffer days must not be negative")
	}
	if c.Execution.NotionalUSDT <= 0 {
		return fmt.Errorf("execution notional must be positive")
	}
	if c.Execution.DurationHours <= 0 || c.Execution.SliceIntervalMinutes <= 0 {
		return fmt.Errorf("execution duration and slice interval must be positive")
	}
	if c.Execution.SliceIntervalMinutes > c.Execution.DurationHours*60 {
		return fmt.Errorf("slice interval %dm exceeds execution duration %dh",
			c.Execution.SliceIntervalMinutes, c.Execution.DurationHours)
	}
	return nil
}

// Window parses the backtest date range.
func (c BacktestConfig) Window() (time.Time, time.Time, error) {
	start, err := time.ParseInLocation("2006-01-02", c.StartDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid backtest start date %q: %w", c.StartDate, err)
	}
	end, err := time.ParseInLocation("2006-01-02", c.EndDate, time.UTC)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid backtest end date %q: %w", c.EndDate, err)
	}
	return start, end, nil
}
