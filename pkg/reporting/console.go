package reporting

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/quantara/ensemble-trader/internal/orchestrator"
	"github.com/quantara/ensemble-trader/pkg/types"
)

// Console renders run information and results as terminal tables.
type Console struct {
	out io.Writer
}

// NewConsole returns a reporter writing to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleTo returns a reporter writing to w, for tests.
func NewConsoleTo(w io.Writer) *Console {
	return &Console{out: w}
}

// PrintRunInfo shows the run setup before the first cycle.
func (c *Console) PrintRunInfo(symbols []string, interval, environment string, startBalance float64) {
	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("ENGINE STARTUP")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"📊 Symbols", strings.Join(symbols, ", ")},
		{"⏰ Interval", interval},
		{"🔧 Environment", environment},
		{"💰 Balance", fmt.Sprintf("$%.2f", startBalance)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 15, WidthMax: 15, Align: text.AlignLeft},
		{Number: 2, WidthMin: 30, WidthMax: 45, Align: text.AlignLeft},
	})
	t.Render()
	fmt.Fprintln(c.out)
}

// PrintSummary shows the headline performance numbers for a finished run.
func (c *Console) PrintSummary(s Summary) {
	winRate := 0.0
	if s.TotalTrades > 0 {
		winRate = float64(s.WinningTrades) / float64(s.TotalTrades) * 100
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("RUN RESULTS")
	t.SetStyle(table.StyleRounded)

	t.AppendRows([]table.Row{
		{"💰 Initial Balance", fmt.Sprintf("$%.2f", s.StartBalance)},
		{"💰 Final Balance", fmt.Sprintf("$%.2f", s.EndBalance)},
		{"📈 Total Return", fmt.Sprintf("%.2f%%", s.TotalReturn*100)},
		{"📉 Max Drawdown", fmt.Sprintf("%.2f%%", s.MaxDrawdown*100)},
		{"📊 Sharpe Ratio", fmt.Sprintf("%.2f", s.SharpeRatio)},
		{"💹 Profit Factor", fmt.Sprintf("%.2f", s.ProfitFactor)},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"🔄 Total Trades", fmt.Sprintf("%d", s.TotalTrades)},
		{"✅ Winning Trades", fmt.Sprintf("%d (%.1f%%)", s.WinningTrades, winRate)},
		{"❌ Losing Trades", fmt.Sprintf("%d", s.LosingTrades)},
		{"🏆 Best Trade", fmt.Sprintf("$%.2f", s.BestTrade)},
		{"💥 Worst Trade", fmt.Sprintf("$%.2f", s.WorstTrade)},
	})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, WidthMin: 18, WidthMax: 18, Align: text.AlignLeft},
		{Number: 2, WidthMin: 20, WidthMax: 30, Align: text.AlignRight},
	})
	t.Render()
	fmt.Fprintln(c.out)
}

// PrintWeights shows the current ensemble weight of each signal source.
func (c *Console) PrintWeights(weights map[string]float64, statuses map[string]string) {
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("ENSEMBLE WEIGHTS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Source", "Weight", "Status"})
	for _, name := range names {
		t.AppendRow(table.Row{name, fmt.Sprintf("%.4f", weights[name]), statuses[name]})
	}
	t.Render()
	fmt.Fprintln(c.out)
}

// PrintDecisions shows the most recent decision per instrument.
func (c *Console) PrintDecisions(records []orchestrator.DecisionRecord) {
	if len(records) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("CYCLE DECISIONS")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Symbol", "Ensemble", "Conf", "Anomaly", "Action", "Reason"})
	for _, rec := range records {
		anomaly := "-"
		if rec.Anomaly.Severity > 0 {
			anomaly = fmt.Sprintf("%s %.2f", rec.Anomaly.Action, rec.Anomaly.Severity)
		}
		t.AppendRow(table.Row{
			rec.Symbol,
			rec.Ensemble.Action,
			fmt.Sprintf("%.2f", rec.Ensemble.Confidence),
			anomaly,
			string(rec.FinalAction),
			rec.Reason,
		})
	}
	t.Render()
	fmt.Fprintln(c.out)
}

// PrintTrades lists realized trades.
func (c *Console) PrintTrades(trades []types.TradeResult) {
	if len(trades) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(c.out)
	t.SetTitle("CLOSED TRADES")
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Closed", "Symbol", "Dir", "Qty", "Entry", "Exit", "PnL", "Return", "Reason"})
	for _, tr := range trades {
		t.AppendRow(table.Row{
			tr.ClosedAt.Format("2006-01-02 15:04"),
			tr.Symbol,
			tr.Direction.String(),
			fmt.Sprintf("%.4f", tr.Quantity),
			fmt.Sprintf("%.2f", tr.Entry),
			fmt.Sprintf("%.2f", tr.Exit),
			fmt.Sprintf("%.2f", tr.PnL),
			fmt.Sprintf("%.2f%%", tr.ReturnPct*100),
			tr.Reason,
		})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 7, Align: text.AlignRight},
		{Number: 8, Align: text.AlignRight},
	})
	t.Render()
	fmt.Fprintln(c.out)
}
