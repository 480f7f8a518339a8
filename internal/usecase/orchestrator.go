package usecase

import (
	"context"
	"time"

	"PairTrader/internal/domain/models"
	"PairTrader/internal/domain/repository"
	"PairTrader/pkg/logger"
)

// OrchestratorConfig tunes the top-level trading loop.
type OrchestratorConfig struct {
	Pairs        []models.Pair
	PollSleep    time.Duration
	Cooldown     time.Duration
	ExitLow      float64
	ExitHigh     float64
	ZScoreWindow int
}

// Orchestrator runs the trading loop: filter cooled-down pairs, dispatch
// entry sessions, persist what they opened, then walk the open book and
// close trades whose spread has reverted. All registry and store
// mutations happen here, on the loop goroutine, between dispatches.
type Orchestrator struct {
	cfg       OrchestratorConfig
	sched     *Scheduler
	feed      repository.MarketData
	store     repository.TradeStore
	cooldowns repository.Cooldowns
	exits     *OrderProtocol
	events    repository.TradeEvents
	sink      repository.ProfitSink
	log       *logger.Logger
	metrics   repository.Metrics
}

// NewOrchestrator wires the loop. events and sink may be nil when the
// corresponding mirrors are disabled.
func NewOrchestrator(
	cfg OrchestratorConfig,
	sched *Scheduler,
	feed repository.MarketData,
	store repository.TradeStore,
	cooldowns repository.Cooldowns,
	exits *OrderProtocol,
	events repository.TradeEvents,
	sink repository.ProfitSink,
	log *logger.Logger,
	metrics repository.Metrics,
) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		sched:     sched,
		feed:      feed,
		store:     store,
		cooldowns: cooldowns,
		exits:     exits,
		events:    events,
		sink:      sink,
		log:       log,
		metrics:   metrics,
	}
}

// Run iterates until ctx is cancelled. Cancellation is honored between
// iterations; an iteration already in flight finishes its order work so
// nothing is abandoned mid-protocol.
func (o *Orchestrator) Run(ctx context.Context) {
	o.log.Info("orchestrator started",
		logger.Int("pairs", len(o.cfg.Pairs)),
		logger.Duration("poll_sleep", o.cfg.PollSleep))

	for {
		o.runOnce(ctx)

		select {
		case <-ctx.Done():
			o.log.Info("orchestrator stopped")
			return
		case <-time.After(o.cfg.PollSleep):
		}
	}
}

func (o *Orchestrator) runOnce(ctx context.Context) {
	start := time.Now()
	defer func() {
		o.metrics.RecordLatency("iteration", time.Since(start).Seconds())
	}()

	eligible := o.eligiblePairs(start)
	if len(eligible) < len(o.cfg.Pairs) {
		o.log.Debug("pairs held back by cooldown",
			logger.Int("blocked", len(o.cfg.Pairs)-len(eligible)))
	}

	res := o.sched.Dispatch(ctx, eligible)

	now := time.Now()
	for _, key := range res.FailedPairs {
		o.cooldowns.Block(key, now, o.cfg.Cooldown)
		o.log.Info("pair cooled down after entry failure",
			logger.String("pair", key),
			logger.Duration("cooldown", o.cfg.Cooldown))
	}

	for _, e := range res.Entries {
		o.recordEntry(ctx, e)
	}

	o.monitorExits(ctx)
}

// eligiblePairs filters the universe down to pairs that may open a new
// trade: not on cooldown and not already in the open book. A pair holds
// at most one open trade at a time.
func (o *Orchestrator) eligiblePairs(now time.Time) []models.Pair {
	open := make(map[string]struct{})
	for _, leg := range o.store.Load() {
		open[leg.PairKey] = struct{}{}
	}

	out := make([]models.Pair, 0, len(o.cfg.Pairs))
	for _, p := range o.cfg.Pairs {
		key := p.Key()
		if _, held := open[key]; held {
			continue
		}
		if !o.cooldowns.Blocked(key, now) {
			out = append(out, p)
		}
	}
	return out
}

func (o *Orchestrator) recordEntry(ctx context.Context, e models.Entry) {
	if err := o.store.AppendPair(e.Leg1, e.Leg2, e.PairKey); err != nil {
		o.log.Error("persisting entry failed",
			logger.String("pair", e.PairKey),
			logger.Error(err))
		o.metrics.RecordError("store_append")
		return
	}
	o.metrics.RecordEntry(e.PairKey)
	o.log.Info("pair entry recorded",
		logger.String("pair", e.PairKey),
		logger.Float64("zscore", e.ZScore),
		logger.String("leg1", e.Leg1.Symbol),
		logger.String("leg2", e.Leg2.Symbol))

	if o.events != nil {
		if err := o.events.PublishEntry(ctx, e); err != nil {
			o.log.Warn("entry event publish failed",
				logger.String("pair", e.PairKey),
				logger.Error(err))
		}
	}
}

// monitorExits walks the open book in leg pairs and closes every trade
// whose spread z-score has reverted into the exit band. Legs are removed
// by descending index only after both exits completed, together with the
// profit record for the trade.
func (o *Orchestrator) monitorExits(ctx context.Context) {
	legs := o.store.Load()
	o.metrics.SetOpenLegs(len(legs))
	if len(legs) < 2 {
		return
	}

	tickers := make([]string, 0, len(legs))
	for _, leg := range legs {
		tickers = append(tickers, leg.Symbol)
	}
	frame, err := o.feed.FetchFrame(ctx, tickers)
	if err != nil {
		o.log.Warn("no market data for exit monitoring, keeping positions",
			logger.Error(err))
		o.metrics.RecordError("market_data")
		return
	}

	var remove []int
	for i := 0; i+1 < len(legs); i += 2 {
		if ctx.Err() != nil {
			break
		}
		leg1, leg2 := legs[i], legs[i+1]

		z, ok := ZScore(frame, leg1.Symbol, leg2.Symbol, o.cfg.ZScoreWindow)
		if !ok {
			o.log.Debug("open trade has no current signal",
				logger.String("pair", leg1.PairKey))
			continue
		}
		o.metrics.RecordZScore(leg1.PairKey, z)

		if z < o.cfg.ExitLow || z > o.cfg.ExitHigh {
			continue
		}
		if o.closeTrade(ctx, frame, leg1, leg2, z) {
			remove = append(remove, i, i+1)
		}
	}

	if len(remove) == 0 {
		return
	}
	if err := o.store.Remove(remove); err != nil {
		o.log.Error("removing closed legs failed",
			logger.Error(err))
		o.metrics.RecordError("store_remove")
		return
	}
	o.metrics.SetOpenLegs(len(legs) - len(remove))
}

// closeTrade flattens both legs and writes the profit record. Returns
// false when an exit could not even be placed; the legs then stay in the
// book and the next iteration retries.
func (o *Orchestrator) closeTrade(ctx context.Context, frame *models.Frame, leg1, leg2 models.TradeLeg, z float64) bool {
	o.log.Info("exit signal",
		logger.String("pair", leg1.PairKey),
		logger.Float64("zscore", z))

	exit1, err := o.exits.Exit(ctx, leg1.Symbol, leg1.Side, leg1.Quantity, o.exitHint(frame, leg1))
	if err != nil {
		o.log.Error("first leg exit failed",
			logger.String("pair", leg1.PairKey),
			logger.String("symbol", leg1.Symbol),
			logger.Error(err))
		o.metrics.RecordOrderFailure("exit_leg1")
		return false
	}
	exit2, err := o.exits.Exit(ctx, leg2.Symbol, leg2.Side, leg2.Quantity, o.exitHint(frame, leg2))
	if err != nil {
		// One leg is already flat. Keep both legs in the book so the next
		// iteration retries; the operator sees the imbalance in the log.
		o.log.Error("second leg exit failed after first leg flattened, manual intervention may be required",
			logger.String("pair", leg1.PairKey),
			logger.String("symbol", leg2.Symbol),
			logger.Error(err))
		o.metrics.RecordOrderFailure("exit_leg2")
		return false
	}

	rec := buildProfitRecord(leg1, leg2, exit1, exit2)
	if err := o.store.AppendProfit(rec); err != nil {
		o.log.Error("persisting profit record failed",
			logger.String("pair", rec.PairKey),
			logger.Error(err))
		o.metrics.RecordError("store_append")
	}
	o.metrics.RecordExit(rec.PairKey, rec.NetProfit)
	o.log.Info("pair trade closed",
		logger.String("pair", rec.PairKey),
		logger.Float64("net_profit", rec.NetProfit))

	if o.sink != nil {
		if err := o.sink.Append(ctx, rec); err != nil {
			o.log.Warn("profit sink append failed",
				logger.String("pair", rec.PairKey),
				logger.Error(err))
		}
	}
	if o.events != nil {
		if err := o.events.PublishExit(ctx, rec); err != nil {
			o.log.Warn("exit event publish failed",
				logger.String("pair", rec.PairKey),
				logger.Error(err))
		}
	}
	return true
}

// exitHint prices a market exit when no quote is available: the latest
// frame price, or failing that the leg's own entry price.
func (o *Orchestrator) exitHint(frame *models.Frame, leg models.TradeLeg) float64 {
	if last, ok := frame.LastPrice(leg.Symbol); ok {
		return last
	}
	return leg.EntryPrice
}

func buildProfitRecord(leg1, leg2 models.TradeLeg, exit1, exit2 *models.OrderResult) models.ProfitRecord {
	p1 := models.LegProfit(leg1, exit1.FillPrice)
	p2 := models.LegProfit(leg2, exit2.FillPrice)
	return models.ProfitRecord{
		PairKey: leg1.PairKey,
		Leg1: models.ProfitLeg{
			Symbol:     leg1.Symbol,
			Side:       leg1.Side,
			Quantity:   leg1.Quantity,
			EntryPrice: leg1.EntryPrice,
			ExitPrice:  exit1.FillPrice,
			Profit:     p1,
		},
		Leg2: models.ProfitLeg{
			Symbol:     leg2.Symbol,
			Side:       leg2.Side,
			Quantity:   leg2.Quantity,
			EntryPrice: leg2.EntryPrice,
			ExitPrice:  exit2.FillPrice,
			Profit:     p2,
		},
		NetProfit: p1 + p2,
		EntryTime: leg1.EntryTime,
		ExitTime:  time.Now().UTC(),
	}
}
