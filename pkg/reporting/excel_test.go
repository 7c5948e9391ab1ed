package reporting

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/quantara/ensemble-trader/internal/anomaly"
	"github.com/quantara/ensemble-trader/internal/orchestrator"
	"github.com/quantara/ensemble-trader/pkg/types"
)

func TestExcelJournalWritesAllSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal", "run.xlsx")

	trades := []types.TradeResult{
		{
			Symbol:    "BTCUSDT",
			Direction: types.DirectionLong,
			Quantity:  0.5,
			Entry:     50000,
			Exit:      51000,
			PnL:       500,
			ReturnPct: 0.02,
			Reason:    "take_profit",
			ClosedAt:  time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
		},
		{
			Symbol:    "ETHUSDT",
			Direction: types.DirectionShort,
			Quantity:  2,
			Entry:     3000,
			Exit:      3100,
			PnL:       -200,
			ReturnPct: -0.033,
			Reason:    "stop_loss",
			ClosedAt:  time.Date(2026, 5, 2, 13, 0, 0, 0, time.UTC),
		},
	}
	decisions := []orchestrator.DecisionRecord{
		{
			Symbol:    "BTCUSDT",
			Timestamp: time.Date(2026, 5, 2, 9, 0, 0, 0, time.UTC),
			Anomaly:   anomaly.Event{Action: anomaly.Proceed},
			Ensemble:  orchestrator.EnsembleDecision{Action: "BUY", Confidence: 0.72},
			FinalAction: orchestrator.ActionEnterLong,
		},
	}
	summary := BuildSummary(10000, 10300, trades)

	require.NoError(t, NewExcelJournal().Write(path, summary, trades, decisions))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	sheets := fx.GetSheetList()
	assert.Contains(t, sheets, "Trades")
	assert.Contains(t, sheets, "Decisions")
	assert.Contains(t, sheets, "Summary")

	symbol, err := fx.GetCellValue("Trades", "B2")
	require.NoError(t, err)
	assert.Equal(t, "BTCUSDT", symbol)

	direction, err := fx.GetCellValue("Trades", "C3")
	require.NoError(t, err)
	assert.Equal(t, "SHORT", direction)

	action, err := fx.GetCellValue("Decisions", "G2")
	require.NoError(t, err)
	assert.Equal(t, "ENTER_LONG", action)

	metric, err := fx.GetCellValue("Summary", "A2")
	require.NoError(t, err)
	assert.Equal(t, "Initial Balance", metric)
}

func TestExcelJournalEmptyRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.xlsx")
	require.NoError(t, NewExcelJournal().Write(path, BuildSummary(1000, 1000, nil), nil, nil))

	fx, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer fx.Close()

	header, err := fx.GetCellValue("Trades", "A1")
	require.NoError(t, err)
	assert.Equal(t, "Closed At", header)
}
