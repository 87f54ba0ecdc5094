package backtest

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

var csvHeader = []string{
	"date", "spot_price", "future_symbol", "future_price",
	"spot_position", "future_contracts",
	"spot_pnl", "future_pnl", "total_pnl", "cum_pnl", "roll",
}

// DefaultOutputName encodes the run identity into the artifact filename,
// e.g. backtest_BTCUSD_2021-01-01_2021-09-30.csv.
func DefaultOutputName(pair string, start, end time.Time) string {
	pair = strings.ToUpper(strings.ReplaceAll(pair, "/", ""))
	return fmt.Sprintf("backtest_%s_%s_%s.csv", pair, start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// ResolveOutputPath treats a base with an extension as an explicit file
// path and anything else as a directory to drop the default name into.
func ResolveOutputPath(base, pair string, start, end time.Time) string {
	if base == "" {
		base = "output"
	}
	if filepath.Ext(base) != "" {
		return base
	}
	return filepath.Join(base, DefaultOutputName(pair, start, end))
}

// WriteCSV writes the record sequence, header first, creating parent
// directories as needed.
func WriteCSV(records []models.DailyRecord, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("ensure output dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Date.Format("2006-01-02"),
			formatFloat(rec.SpotPrice),
			rec.FutureSymbol,
			formatFloat(rec.FuturePrice),
			formatFloat(rec.SpotPosition),
			formatFloat(rec.FutureContracts),
			formatFloat(rec.SpotPnl),
			formatFloat(rec.FuturePnl),
			formatFloat(rec.TotalPnl),
			formatFloat(rec.CumPnl),
			strconv.FormatBool(rec.Roll),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	return writer.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
