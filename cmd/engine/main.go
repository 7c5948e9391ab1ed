// Command engine runs the live trading decision engine: scheduled
// evaluation cycles over the configured symbols, adaptive risk adjustment,
// metrics and health endpoints, and state persistence across restarts.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/quantara/ensemble-trader/internal/anomaly"
	"github.com/quantara/ensemble-trader/internal/config"
	"github.com/quantara/ensemble-trader/internal/ensemble"
	engerr "github.com/quantara/ensemble-trader/internal/errors"
	"github.com/quantara/ensemble-trader/internal/exchange"
	"github.com/quantara/ensemble-trader/internal/exchange/bybit"
	"github.com/quantara/ensemble-trader/internal/indicators"
	"github.com/quantara/ensemble-trader/internal/logging"
	"github.com/quantara/ensemble-trader/internal/monitoring"
	"github.com/quantara/ensemble-trader/internal/notifications"
	"github.com/quantara/ensemble-trader/internal/orchestrator"
	"github.com/quantara/ensemble-trader/internal/risk"
	"github.com/quantara/ensemble-trader/internal/signal"
	"github.com/quantara/ensemble-trader/internal/state"
	"github.com/quantara/ensemble-trader/pkg/reporting"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging)
	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("engine stopped with error")
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := buildEngine(cfg, log)
	if err != nil {
		return err
	}
	if err := eng.restoreState(); err != nil {
		return err
	}

	balance, err := eng.account.Balance(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("initial balance unavailable")
	}
	reporting.NewConsole().PrintRunInfo(cfg.Symbols, cfg.Exchange.Interval, eng.environment, balance.Free)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.CycleSchedule, func() { eng.runCycle(ctx) }); err != nil {
		return fmt.Errorf("engine: cycle schedule %q: %w", cfg.CycleSchedule, err)
	}
	if _, err := scheduler.AddFunc(cfg.AdjustSchedule, func() { eng.runAdjustment() }); err != nil {
		return fmt.Errorf("engine: adjust schedule %q: %w", cfg.AdjustSchedule, err)
	}
	scheduler.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler())
	mux.Handle("/healthz", eng.health)
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	log.Info().
		Strs("symbols", cfg.Symbols).
		Str("cycle_schedule", cfg.CycleSchedule).
		Str("metrics_addr", cfg.MetricsAddr).
		Msg("engine started")

	<-ctx.Done()
	log.Info().Msg("shutting down")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("metrics server shutdown")
	}

	if err := eng.saveState(); err != nil {
		log.Error().Err(err).Msg("final state save failed")
	}
	return nil
}

// engine bundles the wired components for the run loop.
type engine struct {
	log         zerolog.Logger
	cfg         *config.Config
	orch        *orchestrator.Orchestrator
	ens         *ensemble.Ensemble
	riskMgr     *risk.Manager
	adjuster    *risk.Adjuster
	provider    exchange.MarketDataProvider
	account     exchange.AccountProvider
	store       *state.Store
	health      *monitoring.HealthChecker
	notifier    notifications.Notifier
	environment string

	cycleMu    sync.Mutex
	wasHalted  bool
	wasRetrain bool
}

func buildEngine(cfg *config.Config, log zerolog.Logger) (*engine, error) {
	providers := []signal.Provider{
		signal.NewTechnicalProvider(),
		signal.NewMomentumProvider(0),
	}
	if cfg.SentimentScores != "" {
		providers = append(providers, signal.NewSentimentProvider(signal.NewFileScoreSource(cfg.SentimentScores)))
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
		return nil, err
	}

	riskMgr := risk.NewManager(cfg.Risk.Profile, cfg.Risk.DrawdownLimit)
	adjuster := risk.NewAdjuster(cfg.AdjustPeriod(), cfg.Risk.AdjustMinTrades)

	client := bybit.NewClient(bybit.Config{
		APIKey:    cfg.Exchange.APIKey,
		APISecret: cfg.Exchange.APISecret,
		Demo:      cfg.Exchange.Demo,
		Category:  cfg.Exchange.Category,
		Interval:  cfg.Exchange.Interval,
	})
	live := exchange.NewLive(client, indicators.DefaultParams(), "USDT", intervalDuration(cfg.Exchange.Interval))

	var gateway exchange.OrderGateway = live
	var account exchange.AccountProvider = live
	environment := client.Environment()
	if cfg.Paper.Enabled {
		paper := exchange.NewPaper(cfg.Paper.Cash, "USDT", cfg.Paper.Slippage)
		gateway = paper
		account = paper
		environment = "paper"
	}

	orch, err := orchestrator.New(orchestrator.Deps{
		Log:       log,
		Providers: providers,
		Ensemble:  ens,
		Risk:      riskMgr,
		Adjuster:  adjuster,
		Gateway:   gateway,
		Account:   account,
		Anomaly:   cfg.Anomaly,
		Valid:     cfg.Validation,
		Config:    cfg.Orchestrator,
	})
	if err != nil {
		return nil, err
	}

	store, err := state.NewStore(cfg.StateDir)
	if err != nil {
		return nil, err
	}

	var notifier notifications.Notifier = notifications.Noop{}
	if token, chatID := os.Getenv("TELEGRAM_BOT_TOKEN"), os.Getenv("TELEGRAM_CHAT_ID"); token != "" && chatID != "" {
		notifier = notifications.NewTelegramNotifier(token, chatID)
	}

	return &engine{
		log:         log,
		cfg:         cfg,
		orch:        orch,
		ens:         ens,
		riskMgr:     riskMgr,
		adjuster:    adjuster,
		provider:    live,
		account:     account,
		store:       store,
		health:      monitoring.NewHealthChecker(0),
		notifier:    notifier,
		environment: environment,
	}, nil
}

// runCycle evaluates every configured symbol once. Overlapping schedule
// fires are skipped because the orchestrator is single-threaded by
// contract.
func (e *engine) runCycle(ctx context.Context) {
	if !e.cycleMu.TryLock() {
		e.log.Warn().Msg("previous cycle still running, skipping")
		return
	}
	defer e.cycleMu.Unlock()

	now := time.Now().UTC()
	for _, symbol := range e.cfg.Symbols {
		snap, err := e.provider.Snapshot(ctx, symbol)
		if err != nil {
			e.log.Error().Err(err).Str("symbol", symbol).Msg("snapshot failed")
			monitoring.RecordError(errorCategory(err, engerr.CategoryData))
			continue
		}

		rec, err := e.orch.Cycle(ctx, snap, now)
		if err != nil {
			e.log.Error().Err(err).Str("symbol", symbol).Msg("cycle failed")
			monitoring.RecordError(errorCategory(err, engerr.CategoryExecution))
			continue
		}

		monitoring.RecordCycle(symbol, string(rec.FinalAction))
		monitoring.SetAnomalySeverity(symbol, rec.Anomaly.Severity)
		monitoring.SetEnsembleConfidence(symbol, rec.Ensemble.Confidence)
		if rec.Trade != nil {
			monitoring.RecordTrade(symbol, rec.Trade.Reason, rec.Trade.PnL)
			level := "success"
			if rec.Trade.PnL < 0 {
				level = "info"
			}
			e.notify(level, fmt.Sprintf("Closed %s %s: PnL %.2f (%s)",
				rec.Trade.Direction, symbol, rec.Trade.PnL, rec.Trade.Reason))
		}
		if rec.Anomaly.Action == anomaly.ClosePositions {
			e.notify("warning", fmt.Sprintf("Anomaly on %s: severity %.2f, closing positions",
				symbol, rec.Anomaly.Severity))
		}
	}

	if halted := e.riskMgr.Halted(); halted != e.wasHalted {
		e.wasHalted = halted
		if halted {
			e.notify("error", "Drawdown limit breached, new entries halted")
		} else {
			e.notify("info", "Trading resumed")
		}
	}
	if retrain := e.orch.ShouldRetrain(); retrain != e.wasRetrain {
		e.wasRetrain = retrain
		if retrain {
			e.notify("warning", "Ensemble health degraded, retraining recommended")
		}
	}

	for source, weight := range e.ens.Weights() {
		monitoring.SetEnsembleWeight(source, weight)
	}
	monitoring.SetRiskPerTrade(e.riskMgr.Profile().RiskPerTrade)
	e.health.CycleCompleted(len(e.orch.Positions()), e.riskMgr.Halted(), e.orch.ShouldRetrain())

	if err := e.saveState(); err != nil {
		e.log.Error().Err(err).Msg("state save failed")
		monitoring.RecordError("STATE")
	}
}

func (e *engine) runAdjustment() {
	adj, applied := e.orch.RunAdjustment(time.Now().UTC())
	if applied {
		e.log.Info().
			Float64("score", adj.Score).
			Float64("multiplier", adj.Multiplier).
			Float64("risk_per_trade", adj.After.RiskPerTrade).
			Msg("risk profile adjusted")
		if err := e.saveState(); err != nil {
			e.log.Error().Err(err).Msg("state save failed")
		}
	}
}

func (e *engine) notify(level, message string) {
	if err := e.notifier.SendAlert(level, message); err != nil {
		e.log.Warn().Err(err).Msg("alert delivery failed")
	}
}

func (e *engine) saveState() error {
	return e.store.Save(&state.EngineState{
		Ensemble:     e.ens.Export(),
		Risk:         e.riskMgr.Export(),
		Adjuster:     e.adjuster.Export(),
		Orchestrator: e.orch.Export(),
	})
}

func (e *engine) restoreState() error {
	saved, err := e.store.Load()
	if err != nil {
		return err
	}
	if saved == nil {
		e.log.Info().Msg("no saved state, starting fresh")
		return nil
	}
	if err := e.ens.Restore(saved.Ensemble); err != nil {
		return fmt.Errorf("engine: restore ensemble: %w", err)
	}
	e.riskMgr.Restore(saved.Risk)
	e.adjuster.Restore(saved.Adjuster)
	e.orch.Restore(saved.Orchestrator)
	e.log.Info().Time("saved_at", saved.SavedAt).Msg("state restored")
	return nil
}

// errorCategory resolves the metrics label from the error's taxonomy
// category, falling back when the chain carries none.
func errorCategory(err error, fallback engerr.Category) string {
	if cat := engerr.CategoryOf(err); cat != "" {
		return string(cat)
	}
	return string(fallback)
}

// intervalDuration maps a Bybit kline interval to a duration for staleness
// checks. Unknown intervals disable the check.
func intervalDuration(interval string) time.Duration {
	switch interval {
	case "D":
		return 24 * time.Hour
	case "W":
		return 7 * 24 * time.Hour
	case "M":
		return 30 * 24 * time.Hour
	}
	minutes, err := strconv.Atoi(interval)
	if err != nil || minutes <= 0 {
		return 0
	}
	return time.Duration(minutes) * time.Minute
}
