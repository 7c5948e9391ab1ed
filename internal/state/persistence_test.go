package state

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantara/ensemble-trader/internal/ensemble"
	"github.com/quantara/ensemble-trader/internal/orchestrator"
	"github.com/quantara/ensemble-trader/internal/risk"
	"github.com/quantara/ensemble-trader/internal/signal"
	"github.com/quantara/ensemble-trader/pkg/types"
)

func sampleState(t *testing.T) *EngineState {
	t.Helper()
	ens, err := ensemble.New([]string{"momentum", "technical"}, ensemble.DefaultConfig())
	require.NoError(t, err)
	for i := 0; i < 15; i++ {
		ens.Update([]signal.Signal{
			{Source: "technical", Action: signal.ActionBuy, Confidence: 0.7},
			{Source: "momentum", Action: signal.ActionSell, Confidence: 0.4},
		}, 0.01)
	}

	mgr := risk.NewManager(risk.DefaultProfile(), 0.10)
	mgr.ObserveEquity(500_000)

	return &EngineState{
		Ensemble: ens.Export(),
		Risk:     mgr.Export(),
		Adjuster: risk.AdjusterState{LastRun: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		Orchestrator: orchestrator.State{
			Positions: map[string]types.Position{
				"AAPL": {
					Symbol: "AAPL", Direction: types.DirectionLong, Quantity: 500,
					EntryPrice: 300, StopLoss: 260, TakeProfit: 360,
					OpenedAt: time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC),
					State:    types.PositionOpen,
				},
			},
			OrdersToday: 3,
			SessionDay:  "2026-03-02",
			PendingClose: map[string]float64{
				"AAPL": 300,
			},
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	original := sampleState(t)
	require.NoError(t, store.Save(original))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, original.Ensemble, loaded.Ensemble)
	assert.Equal(t, original.Risk, loaded.Risk)
	assert.Equal(t, original.Orchestrator.Positions, loaded.Orchestrator.Positions)
	assert.Equal(t, original.Orchestrator.OrdersToday, loaded.Orchestrator.OrdersToday)
	assert.True(t, original.Adjuster.LastRun.Equal(loaded.Adjuster.LastRun))
}

func TestRestoredEnsembleDecidesIdentically(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(sampleState(t)))

	loaded, err := store.Load()
	require.NoError(t, err)

	restored, err := ensemble.New([]string{"momentum", "technical"}, ensemble.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, restored.Restore(loaded.Ensemble))

	reference, err := ensemble.New([]string{"momentum", "technical"}, ensemble.DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, reference.Restore(sampleState(t).Ensemble))

	sigs := []signal.Signal{
		{Source: "technical", Action: signal.ActionBuy, Confidence: 0.8},
		{Source: "momentum", Action: signal.ActionBuy, Confidence: 0.6},
	}
	actA, confA := restored.Combine(sigs)
	actB, confB := reference.Combine(sigs)
	assert.Equal(t, actB, actA)
	assert.Equal(t, confB, confA)
}

func TestLoadMissingFileStartsClean(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "engine_state.json"),
		[]byte(`{"version":"99"}`), 0o644))

	_, err = store.Load()
	assert.Error(t, err)
}

func TestLoadRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "engine_state.json"),
		[]byte("{not json"), 0o644))

	_, err = store.Load()
	assert.Error(t, err)
}

func TestSaveIsAtomic(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, store.Save(sampleState(t)))
	require.NoError(t, store.Save(sampleState(t)))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
	assert.Equal(t, "engine_state.json", entries[0].Name())
}
