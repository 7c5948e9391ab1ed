// Command replay drives the decision engine over historical CSV data with
// a paper gateway and writes a run journal. It exercises the exact cycle
// logic used live, bar by bar.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/quantara/ensemble-trader/internal/config"
	"github.com/quantara/ensemble-trader/internal/ensemble"
	"github.com/quantara/ensemble-trader/internal/exchange"
	"github.com/quantara/ensemble-trader/internal/indicators"
	"github.com/quantara/ensemble-trader/internal/logging"
	"github.com/quantara/ensemble-trader/internal/orchestrator"
	"github.com/quantara/ensemble-trader/internal/risk"
	"github.com/quantara/ensemble-trader/internal/signal"
	"github.com/quantara/ensemble-trader/pkg/data"
	"github.com/quantara/ensemble-trader/pkg/reporting"
)

// decisionJournalCap bounds journal memory on long replays; the oldest
// records are dropped first.
const decisionJournalCap = 10000

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		dataDir    = flag.String("data", "data", "Directory holding <SYMBOL>.csv files")
		output     = flag.String("output", "results/journal.xlsx", "Journal workbook path")
	)
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
	// Replays always fill on paper regardless of the live settings.
	cfg.Paper.Enabled = true

	logCfg := cfg.Logging
	logCfg.Level = "warn"
	log := logging.New(logCfg)

	if err := run(cfg, log, *dataDir, *output); err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger, dataDir, output string) error {
	params := indicators.DefaultParams()
	replay := data.NewReplay(params)
	for _, symbol := range cfg.Symbols {
		path := filepath.Join(dataDir, strings.ToUpper(symbol)+".csv")
		series, err := data.LoadCSV(path)
		if err != nil {
			return err
		}
		if err := replay.AddSeries(symbol, series); err != nil {
			return err
		}
	}

	providers := []signal.Provider{
		signal.NewTechnicalProvider(),
		signal.NewMomentumProvider(0),
	}
	if cfg.SentimentScores != "" {
		if _, err := os.Stat(cfg.SentimentScores); err == nil {
			providers = append(providers, signal.NewSentimentProvider(signal.NewFileScoreSource(cfg.SentimentScores)))
		}
	}
	names := make([]string, len(providers))
	for i, p := range providers {
		names[i] = p.Name()
	}

	ensCfg := ensemble.DefaultConfig()
	ensCfg.WindowSize = cfg.Ensemble.WindowSize
	ensCfg.Alpha = cfg.Ensemble.Alpha
	ens, err := ensemble.New(names, ensCfg)
	if err != nil {
		return err
	}

	riskMgr := risk.NewManager(cfg.Risk.Profile, cfg.Risk.DrawdownLimit)
	adjuster := risk.NewAdjuster(cfg.AdjustPeriod(), cfg.Risk.AdjustMinTrades)
	paper := exchange.NewPaper(cfg.Paper.Cash, "USDT", cfg.Paper.Slippage)

	orch, err := orchestrator.New(orchestrator.Deps{
		Log:       log,
		Providers: providers,
		Ensemble:  ens,
		Risk:      riskMgr,
		Adjuster:  adjuster,
		Gateway:   paper,
		Account:   paper,
		Anomaly:   cfg.Anomaly,
		Valid:     cfg.Validation,
		Config:    cfg.Orchestrator,
	})
	if err != nil {
		return err
	}

	console := reporting.NewConsole()
	console.PrintRunInfo(cfg.Symbols, cfg.Exchange.Interval, "replay", cfg.Paper.Cash)

	ctx := context.Background()
	var decisions []orchestrator.DecisionRecord
	cycles := 0
	for {
		now := replay.Clock()
		for _, symbol := range cfg.Symbols {
			snap, err := replay.Snapshot(ctx, symbol)
			if err != nil {
				return err
			}
			rec, err := orch.Cycle(ctx, snap, now)
			if err != nil {
				log.Error().Err(err).Str("symbol", symbol).Msg("cycle failed")
				continue
			}
			decisions = append(decisions, *rec)
			if len(decisions) > decisionJournalCap {
				decisions = decisions[len(decisions)-decisionJournalCap:]
			}
		}
		orch.RunAdjustment(now)
		cycles++

		if !replay.Advance() {
			break
		}
	}

	// Mark-to-market: cash plus open positions at their last seen price.
	balance, err := paper.Balance(ctx)
	if err != nil {
		return err
	}
	endEquity := balance.Free
	for symbol, pos := range orch.Positions() {
		if ticker, err := replay.Ticker(ctx, symbol); err == nil {
			endEquity += pos.Value(ticker.Price)
		} else {
			endEquity += pos.Value(pos.EntryPrice)
		}
	}

	trades := orch.Trades()
	summary := reporting.BuildSummary(cfg.Paper.Cash, endEquity, trades)

	fmt.Printf("Replayed %d cycles across %d symbols\n\n", cycles, len(cfg.Symbols))
	console.PrintSummary(summary)
	statuses := make(map[string]string)
	for name, status := range ens.Statuses() {
		statuses[name] = string(status)
	}
	console.PrintWeights(ens.Weights(), statuses)
	console.PrintTrades(trades)

	if output != "" {
		if err := reporting.NewExcelJournal().Write(output, summary, trades, decisions); err != nil {
			return err
		}
		fmt.Printf("Journal written to %s\n", output)
	}
	return nil
}
