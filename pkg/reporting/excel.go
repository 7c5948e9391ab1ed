package reporting

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/quantara/ensemble-trader/internal/orchestrator"
	"github.com/quantara/ensemble-trader/pkg/types"
)

const (
	tradesSheet    = "Trades"
	decisionsSheet = "Decisions"
	summarySheet   = "Summary"
)

// ExcelJournal writes a run journal workbook with trades, per-cycle
// decisions and a summary sheet.
type ExcelJournal struct{}

// NewExcelJournal creates an Excel journal writer.
func NewExcelJournal() *ExcelJournal {
	return &ExcelJournal{}
}

type excelStyles struct {
	header int
	win    int
	loss   int
}

// Write renders the workbook and saves it at path, creating parent
// directories as needed.
func (j *ExcelJournal) Write(path string, summary Summary, trades []types.TradeResult, decisions []orchestrator.DecisionRecord) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("reporting: create directory %s: %w", dir, err)
		}
	}

	fx := excelize.NewFile()
	defer fx.Close()

	fx.SetSheetName(fx.GetSheetName(0), tradesSheet)
	if _, err := fx.NewSheet(decisionsSheet); err != nil {
		return err
	}
	if _, err := fx.NewSheet(summarySheet); err != nil {
		return err
	}

	styles, err := j.createStyles(fx)
	if err != nil {
		return err
	}
	if err := j.writeTrades(fx, styles, trades); err != nil {
		return err
	}
	if err := j.writeDecisions(fx, styles, decisions); err != nil {
		return err
	}
	if err := j.writeSummary(fx, styles, summary); err != nil {
		return err
	}

	return fx.SaveAs(path)
}

func (j *ExcelJournal) createStyles(fx *excelize.File) (excelStyles, error) {
	var styles excelStyles
	var err error

	styles.header, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11, Color: "FFFFFF", Family: "Calibri"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"2F4F4F"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return styles, err
	}
	styles.win, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "006100"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"C6EFCE"}, Pattern: 1},
	})
	if err != nil {
		return styles, err
	}
	styles.loss, err = fx.NewStyle(&excelize.Style{
		Font: &excelize.Font{Color: "9C0006"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"FFC7CE"}, Pattern: 1},
	})
	return styles, err
}

func (j *ExcelJournal) writeTrades(fx *excelize.File, styles excelStyles, trades []types.TradeResult) error {
	headers := []string{"Closed At", "Symbol", "Direction", "Quantity", "Entry", "Exit", "PnL", "Return %", "Reason"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := fx.SetCellValue(tradesSheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(tradesSheet, "A1", last, styles.header); err != nil {
		return err
	}

	for i, tr := range trades {
		row := i + 2
		values := []interface{}{
			tr.ClosedAt.Format("2006-01-02 15:04:05"),
			tr.Symbol,
			tr.Direction.String(),
			tr.Quantity,
			tr.Entry,
			tr.Exit,
			tr.PnL,
			tr.ReturnPct * 100,
			tr.Reason,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(tradesSheet, cell, v); err != nil {
				return err
			}
		}
		pnlCell, _ := excelize.CoordinatesToCellName(7, row)
		style := styles.win
		if tr.PnL < 0 {
			style = styles.loss
		}
		if err := fx.SetCellStyle(tradesSheet, pnlCell, pnlCell, style); err != nil {
			return err
		}
	}
	return fx.SetColWidth(tradesSheet, "A", "I", 14)
}

func (j *ExcelJournal) writeDecisions(fx *excelize.File, styles excelStyles, decisions []orchestrator.DecisionRecord) error {
	headers := []string{"Timestamp", "Symbol", "Ensemble", "Confidence", "Anomaly", "Severity", "Action", "Reason"}
	for col, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := fx.SetCellValue(decisionsSheet, cell, h); err != nil {
			return err
		}
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := fx.SetCellStyle(decisionsSheet, "A1", last, styles.header); err != nil {
		return err
	}

	for i, rec := range decisions {
		row := i + 2
		values := []interface{}{
			rec.Timestamp.Format("2006-01-02 15:04:05"),
			rec.Symbol,
			rec.Ensemble.Action,
			rec.Ensemble.Confidence,
			string(rec.Anomaly.Action),
			rec.Anomaly.Severity,
			string(rec.FinalAction),
			rec.Reason,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := fx.SetCellValue(decisionsSheet, cell, v); err != nil {
				return err
			}
		}
	}
	return fx.SetColWidth(decisionsSheet, "A", "H", 16)
}

func (j *ExcelJournal) writeSummary(fx *excelize.File, styles excelStyles, s Summary) error {
	rows := []struct {
		label string
		value interface{}
	}{
		{"Initial Balance", s.StartBalance},
		{"Final Balance", s.EndBalance},
		{"Total Return %", s.TotalReturn * 100},
		{"Max Drawdown %", s.MaxDrawdown * 100},
		{"Sharpe Ratio", s.SharpeRatio},
		{"Profit Factor", profitFactorCell(s.ProfitFactor)},
		{"Total Trades", s.TotalTrades},
		{"Winning Trades", s.WinningTrades},
		{"Losing Trades", s.LosingTrades},
		{"Best Trade", s.BestTrade},
		{"Worst Trade", s.WorstTrade},
	}

	if err := fx.SetCellValue(summarySheet, "A1", "Metric"); err != nil {
		return err
	}
	if err := fx.SetCellValue(summarySheet, "B1", "Value"); err != nil {
		return err
	}
	if err := fx.SetCellStyle(summarySheet, "A1", "B1", styles.header); err != nil {
		return err
	}
	for i, row := range rows {
		labelCell := fmt.Sprintf("A%d", i+2)
		valueCell := fmt.Sprintf("B%d", i+2)
		if err := fx.SetCellValue(summarySheet, labelCell, row.label); err != nil {
			return err
		}
		if err := fx.SetCellValue(summarySheet, valueCell, row.value); err != nil {
			return err
		}
	}
	return fx.SetColWidth(summarySheet, "A", "B", 18)
}

// profitFactorCell keeps the workbook valid when a run has no losing
// trades and the profit factor is infinite.
func profitFactorCell(pf float64) interface{} {
	if math.IsInf(pf, 1) {
		return "Inf"
	}
	return pf
}
