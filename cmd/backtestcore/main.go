// Command backtestcore is the single entrypoint for the deterministic
// backtesting core: running scenarios, inspecting a recording database,
// and managing published run artifacts. Bootstrap follows the teacher
// repo's cmd/main.go shape: godotenv, zerolog console output, a banner,
// layered component wiring, graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/hourline/backtestcore/internal/artifactstore"
	"github.com/hourline/backtestcore/internal/config"
	"github.com/hourline/backtestcore/internal/coretypes"
	"github.com/hourline/backtestcore/internal/fixedpoint"
	"github.com/hourline/backtestcore/internal/honesty"
	"github.com/hourline/backtestcore/internal/identity"
	"github.com/hourline/backtestcore/internal/inspector"
	"github.com/hourline/backtestcore/internal/matching"
	"github.com/hourline/backtestcore/internal/metrics"
	"github.com/hourline/backtestcore/internal/notify"
	"github.com/hourline/backtestcore/internal/oms"
	"github.com/hourline/backtestcore/internal/oracle"
	"github.com/hourline/backtestcore/internal/risk"
	"github.com/hourline/backtestcore/internal/settlement"
	"github.com/hourline/backtestcore/internal/simadapter"
	"github.com/hourline/backtestcore/internal/windowpnl"
)

const version = "v1.0"

func main() {
	_ = godotenv.Load()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	log.Info().Str("version", version).Msg("backtestcore starting")

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.LoadBacktestConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if cfg.FundingWallet != "" {
		if err := identity.ValidateWalletAddress(cfg.FundingWallet); err != nil {
			log.Fatal().Err(err).Msg("invalid funding wallet address")
		}
	}
	notifier := buildNotifier(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Warn().Msg("shutdown signal received")
		cancel()
	}()

	var runErr error
	switch os.Args[1] {
	case "run":
		runErr = cmdRun(ctx, cfg, notifier, os.Args[2:])
	case "inspect":
		runErr = cmdInspect(os.Args[2:])
	case "list":
		runErr = cmdList(cfg, os.Args[2:])
	case "publish":
		runErr = cmdPublish(cfg, notifier, os.Args[2:])
	case "retract":
		runErr = cmdRetract(cfg, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if runErr != nil {
		log.Error().Err(runErr).Msg("command failed")
		os.Exit(1)
	}
	log.Info().Msg("✅ done")
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: backtestcore <run|inspect|list|publish|retract> [args]")
}

// buildNotifier wires a TelegramNotifier only when a bot token is
// configured; a run never requires one.
func buildNotifier(cfg *config.BacktestConfig) notify.RunNotifier {
	if cfg.TelegramBotToken == "" {
		return notify.NoopNotifier{}
	}
	n, err := notify.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
	if err != nil {
		log.Warn().Err(err).Msg("failed to init telegram notifier, falling back to no-op")
		return notify.NoopNotifier{}
	}
	return n
}

// Scenario is the YAML-driven seed-suite/scenario file shape: a sequence
// of orders to submit and a settlement to finalize against.
type Scenario struct {
	Asset        string  `yaml:"asset"`
	MarketId     string  `yaml:"market_id"`
	StartPrice   float64 `yaml:"start_price"`
	EndPrice     float64 `yaml:"end_price"`
	WindowStartS int64   `yaml:"window_start_s"`
	Orders       []struct {
		Side       string `yaml:"side"`
		PriceTicks int32  `yaml:"price_ticks"`
		Size       int64  `yaml:"size"`
		Tif        string `yaml:"tif"`
	} `yaml:"orders"`
}

func cmdRun(ctx context.Context, cfg *config.BacktestConfig, notifier notify.RunNotifier, args []string) error {
	if len(args) < 2 || args[0] != "--scenario" {
		return fmt.Errorf("usage: backtestcore run --scenario <file.yaml>")
	}
	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return fmt.Errorf("parse scenario: %w", err)
	}

	fees := matching.FeeSchedule{
		MakerRate: fixedpoint.FromFloat(float64(cfg.Matching.MakerFeeBps) / 10000.0),
		TakerRate: fixedpoint.FromFloat(float64(cfg.Matching.TakerFeeBps) / 10000.0),
	}
	stp := parseStp(cfg.Matching.Stp)
	venueConstraints := oms.PolymarketConstraints()
	if cfg.VenueProfile == "default" {
		venueConstraints = oms.DefaultConstraints()
	}

	adapter := simadapter.NewWithParity(fees, stp, cfg.StrictAccounting, parseParity(cfg.OmsParityMode), venueConstraints)

	riskLimits := risk.DefaultLimits()
	switch cfg.RiskProfile {
	case "conservative":
		riskLimits = risk.ConservativeLimits()
	case "aggressive":
		riskLimits = risk.AggressiveLimits()
	}
	riskMgr := risk.NewManager(riskLimits)
	bankroll := fixedpoint.FromFloat(cfg.Bankroll)

	// The scenario file stands in for the reactive price-feed source the
	// core treats as an external collaborator: prices are pushed into a
	// StaticOracle and read back through the same PriceOracle contract a
	// live feed would satisfy, rather than read directly off the struct.
	priceOracle := oracle.NewStaticOracle()

	windowStart := coretypes.Nanos(sc.WindowStartS) * coretypes.NanosPerSecond
	adapter.SetTime(windowStart)
	tokenId := coretypes.TokenId{MarketId: sc.MarketId, Outcome: coretypes.Yes}

	engine := windowpnl.NewEngine(cfg.ProductionGrade)

	priceOracle.Set(sc.Asset, sc.StartPrice)
	startPrice, _ := priceOracle.PriceAt(ctx, sc.Asset, time.Unix(0, int64(windowStart)))

	var lastTradeAt time.Time

	for i, o := range sc.Orders {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		side := coretypes.Buy
		if o.Side == "sell" {
			side = coretypes.Sell
		}
		tif := coretypes.Gtc
		switch o.Tif {
		case "ioc":
			tif = coretypes.Ioc
		case "fok":
			tif = coretypes.Fok
		}

		notional := fixedpoint.FromFloat(coretypes.PriceTicks(o.PriceTicks).Float64()).MulInt(o.Size)

		equity := adapter.Portfolio.Equity(nil)
		marketNotional := adapter.Portfolio.MarketNotional(sc.MarketId)

		decision := riskMgr.Evaluate(risk.ProposedOrder{
			TokenId:    tokenId,
			Side:       side,
			Size:       o.Size,
			PriceTicks: coretypes.PriceTicks(o.PriceTicks),
			Notional:   notional,
		}, risk.PortfolioState{
			CashBalance:          adapter.Portfolio.CashBalance(),
			GrossExposure:        adapter.Portfolio.GrossExposure(),
			Bankroll:             bankroll,
			MarketPosition:       marketNotional,
			OutstandingOrders:    adapter.Oms.OpenOrderCount(),
			OutstandingPerMarket: adapter.Oms.OpenOrderCountForToken(tokenId),
			DailyRealizedPnl:     adapter.Portfolio.TotalRealizedPnl,
			DailyTradesCount:     int(adapter.Portfolio.TradeCount),
			PeakEquity:           adapter.Portfolio.EquityHighWatermark,
			CurrentEquity:        equity,
			LastTradeAt:          lastTradeAt,
		})
		if !decision.Approved {
			metrics.RiskBlocks.WithLabelValues(decision.BlockReason.String()).Inc()
			log.Warn().Str("reason", decision.BlockReason.String()).Int("order_index", i).Msg("order blocked by risk gate")
			continue
		}

		clientId := coretypes.ClientOrderId(uuid.NewString())
		orderId, err := adapter.SendOrder(clientId, tokenId, side, tif, coretypes.PriceTicks(o.PriceTicks), o.Size, false, false)
		if err != nil {
			metrics.OrdersRejected.Inc()
			log.Warn().Err(err).Int("order_index", i).Msg("order rejected")
			continue
		}
		metrics.OrdersSubmitted.Inc()
		lastTradeAt = time.Unix(0, int64(adapter.CurrentTime))
		log.Info().Uint64("order_id", uint64(orderId)).Msg("order submitted")
	}
	metrics.FillsProcessed.Add(float64(adapter.Oms.Stats.OrdersFilled + adapter.Oms.Stats.OrdersPartiallyFilled))

	windowEnd := windowStart + coretypes.Window15m
	priceOracle.Set(sc.Asset, sc.EndPrice)
	endPrice, _ := priceOracle.PriceAt(ctx, sc.Asset, time.Unix(0, int64(windowEnd)))

	evt := settlement.Resolve(sc.MarketId, windowStart, windowEnd, startPrice, endPrice, cfg.TieGoesToDown, windowEnd)
	w := engine.FinalizeEmptyWindow(sc.MarketId, windowStart, windowEnd, windowEnd)
	w.FinalizeSettlement(evt, fixedpoint.Zero(), windowEnd)
	engine.Commit(sc.MarketId, w)
	metrics.WindowsFinalized.Inc()

	runMetrics, err := honesty.FromWindowSeries(engine.FinalizedSeries(), nil, cfg.ProductionGrade)
	if err != nil {
		return fmt.Errorf("honesty metrics: %w", err)
	}
	fmt.Println(runMetrics.FormatSummary())

	store, err := artifactstore.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	runId := uuid.NewString()
	payload, err := json.Marshal(inspector.RunPayload{Windows: windowSummaries(engine.FinalizedSeries())})
	if err != nil {
		return fmt.Errorf("encode run payload: %w", err)
	}
	if err := store.Persist(artifactstore.RunArtifact{
		RunId:           runId,
		PersistedAt:     time.Now(),
		StrategyName:    "scenario-runner",
		ProductionGrade: cfg.ProductionGrade,
		FinalPnl:        runMetrics.TotalNetPnl.Float64(),
		Payload:         payload,
	}); err != nil {
		return err
	}
	notifier.NotifyRunComplete(runId, runMetrics.FormatCompact())
	return nil
}

func windowSummaries(series *windowpnl.WindowPnLSeries) []inspector.WindowSummary {
	if series == nil {
		return nil
	}
	out := make([]inspector.WindowSummary, 0, len(series.Windows))
	for _, w := range series.Windows {
		out = append(out, inspector.WindowSummary{
			MarketId:      w.MarketId,
			WindowStartNs: int64(w.WindowStartNs),
			WindowEndNs:   int64(w.WindowEndNs),
			NetPnl:        w.NetPnlFloat64(),
			GrossPnl:      w.GrossPnlFloat64(),
			Fees:          w.Fees.Float64(),
			TradesCount:   w.TradesCount,
			IsFinalized:   w.IsFinalized,
		})
	}
	return out
}

func parseStp(mode string) matching.SelfTradePrevention {
	switch mode {
	case "cancel_oldest":
		return matching.STPCancelOldest
	case "cancel_both":
		return matching.STPCancelBoth
	case "decrement_and_cancel":
		return matching.STPDecrementAndCancel
	default:
		return matching.STPCancelNewest
	}
}

func parseParity(mode string) simadapter.ParityMode {
	switch mode {
	case "relaxed":
		return simadapter.ParityRelaxed
	case "bypass":
		return simadapter.ParityBypass
	default:
		return simadapter.ParityFull
	}
}

func cmdInspect(args []string) error {
	if len(args) < 2 || args[0] != "--db" {
		return fmt.Errorf("usage: backtestcore inspect --db <path>")
	}
	store, err := artifactstore.Open(args[1])
	if err != nil {
		return err
	}
	runs, err := store.List(artifactstore.ListFilter{}, artifactstore.SortByPersistedAt, 0)
	if err != nil {
		return err
	}
	fmt.Printf("recording sessions: %d\n", len(runs))
	for _, r := range runs {
		// Presentation-only: decimal.Decimal formats the reported PnL the way
		// a human-facing report would round it, separately from the fixed-point
		// Amount the accounting core itself uses for every internal computation.
		pnl := decimal.NewFromFloat(r.FinalPnl).Round(4)
		fmt.Printf("  run=%s strategy=%s pnl=%s production_grade=%v\n", r.RunId, r.StrategyName, pnl.String(), r.ProductionGrade)
	}

	proof, err := inspector.Inspect(store)
	if err != nil {
		return fmt.Errorf("inspect: %w", err)
	}
	fmt.Printf("tokens: %d\n", len(proof.Tokens))
	for _, s := range proof.Streams {
		fmt.Printf("  market=%s windows=%d first=%d last=%d gaps=%d duplicates=%d\n",
			s.MarketId, s.WindowCount, s.FirstWindowStartNs, s.LastWindowStartNs, s.GapCount, s.DuplicateWindows)
	}

	out, err := json.MarshalIndent(proof, "", "  ")
	if err != nil {
		return fmt.Errorf("encode proof artifact: %w", err)
	}
	fmt.Println(string(out))

	if !proof.IntegrityOk {
		return fmt.Errorf("integrity check failed: gaps or duplicate windows across persisted runs")
	}
	return nil
}

func cmdList(cfg *config.BacktestConfig, args []string) error {
	store, err := artifactstore.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	publishedOnly := len(args) > 0 && args[0] == "--published"
	runs, err := store.List(artifactstore.ListFilter{PublishedOnly: publishedOnly}, artifactstore.SortByPersistedAt, 0)
	if err != nil {
		return err
	}
	for _, r := range runs {
		fmt.Println(r.RunId)
	}
	return nil
}

func cmdPublish(cfg *config.BacktestConfig, notifier notify.RunNotifier, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: backtestcore publish <run_id>")
	}
	store, err := artifactstore.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	if err := store.Publish(args[0]); err != nil {
		return err
	}
	notifier.NotifyPublished(args[0])
	return nil
}

func cmdRetract(cfg *config.BacktestConfig, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: backtestcore retract <run_id>")
	}
	store, err := artifactstore.Open(cfg.DatabasePath)
	if err != nil {
		return err
	}
	return store.Retract(args[0])
}
