package backtest

import (
	"fmt"
	"io"
	"math"

	"github.com/olekukonko/tablewriter"

	"github.com/songfangyl/Spot-future-spread-arbitrage/pkg/models"
)

// PrintReport renders the roll schedule and the summary statistics as
// console tables.
func PrintReport(w io.Writer, segments []models.ContractSegment, summary models.BacktestSummary) {
	if len(segments) > 0 {
		fmt.Fprintln(w, "Roll schedule:")
		table := tablewriter.NewWriter(w)
		table.Header("Contract", "Start", "End", "Size")
		for _, seg := range segments {
			table.Append(
				seg.Symbol,
				seg.Start.Format("2006-01-02"),
				seg.End.Format("2006-01-02"),
				fmt.Sprintf("%.0f", seg.ContractSize),
			)
		}
		table.Render()
	}

	fmt.Fprintln(w, "Backtest summary:")
	table := tablewriter.NewWriter(w)
	table.Header("Metric", "Value")
	table.Append("Days", fmt.Sprintf("%d", summary.Days))
	table.Append("Final PnL", fmt.Sprintf("%.2f", summary.FinalPnl))
	table.Append("Total return", fmt.Sprintf("%.4f%%", summary.TotalReturn*100))
	table.Append("Annualized return", fmt.Sprintf("%.4f%%", summary.AnnualizedReturn*100))
	table.Append("Annualized vol", fmt.Sprintf("%.4f%%", summary.AnnualizedVol*100))
	table.Append("Sharpe", formatSharpe(summary.Sharpe))
	table.Render()
}

func formatSharpe(v float64) string {
	if math.IsNaN(v) {
		return "n/a (zero vol)"
	}
	return fmt.Sprintf("%.2f", v)
}
