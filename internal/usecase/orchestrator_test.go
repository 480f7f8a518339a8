package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairTrader/internal/domain/models"
	"PairTrader/internal/domain/repository"
	internalrepo "PairTrader/internal/repository"
	"PairTrader/internal/service/cooldown"
)

type orchFixture struct {
	orch      *Orchestrator
	feed      *fakeFeed
	store     *internalrepo.FileStore
	cooldowns *cooldown.Registry
	primary   *fakeBroker
	dialer    *fakeDialer
	metrics   *fakeMetrics
}

func newOrchFixture(t *testing.T, script orderScript) *orchFixture {
	t.Helper()
	log := testLogger(t)
	m := newFakeMetrics()
	feed := sessionFeed(+1)

	dir := t.TempDir()
	store := internalrepo.NewFileStore(
		filepath.Join(dir, "trades.json"),
		filepath.Join(dir, "profits.json"),
		log,
	)
	registry := cooldown.NewRegistry()

	dialer := &fakeDialer{next: func() repository.BrokerSession {
		return newFakeBroker(script)
	}}
	factory := func(b repository.BrokerSession) *Session {
		protocol := NewOrderProtocol(b, feed, testProtoCfg(), log, m)
		return NewSession(feed, b, protocol, testSessionCfg(), log, m)
	}
	sched := NewScheduler(dialer, factory, SchedulerConfig{
		BatchSize:    100,
		MaxParallel:  8,
		ClientIDBase: 3,
	}, log, m)

	primary := newFakeBroker(fillImmediately)
	exits := NewOrderProtocol(primary, feed, testProtoCfg(), log, m)

	orch := NewOrchestrator(OrchestratorConfig{
		Pairs:        []models.Pair{{T1: "AAPL", T2: "MSFT"}},
		PollSleep:    time.Hour,
		Cooldown:     1000 * time.Second,
		ExitLow:      -0.35,
		ExitHigh:     0.35,
		ZScoreWindow: 6,
	}, sched, feed, store, registry, exits, nil, nil, log, m)

	return &orchFixture{
		orch:      orch,
		feed:      feed,
		store:     store,
		cooldowns: registry,
		primary:   primary,
		dialer:    dialer,
		metrics:   m,
	}
}

func TestOrchestratorFullTradeCycle(t *testing.T) {
	fx := newOrchFixture(t, fillImmediately)
	ctx := context.Background()

	// First sweep: spread is stretched, the pair is entered but not exited.
	fx.orch.runOnce(ctx)

	legs := fx.store.Load()
	require.Len(t, legs, 2)
	assert.Equal(t, "AAPL_MSFT", legs[0].PairKey)
	assert.Equal(t, models.SideSell, legs[0].Side)
	assert.InDelta(t, 100.0, legs[0].EntryPrice, 1e-9)
	assert.Equal(t, models.SideBuy, legs[1].Side)
	assert.InDelta(t, 50.0, legs[1].EntryPrice, 1e-9)
	assert.Empty(t, fx.store.Profits())
	assert.Equal(t, 1, fx.metrics.entries)

	// Spread reverts; exits fill at better prices on both legs.
	fx.feed.setFrame(frameFromSpread("AAPL", "MSFT", 100, exitSpread()))
	fx.feed.setQuote(models.Quote{Symbol: "AAPL", Bid: 99.49, Ask: 99.51})
	fx.feed.setQuote(models.Quote{Symbol: "MSFT", Bid: 50.99, Ask: 51.01})

	fx.orch.runOnce(ctx)

	assert.Empty(t, fx.store.Load())
	records := fx.store.Profits()
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, "AAPL_MSFT", rec.PairKey)
	// short AAPL: (100 - 99.50) * 5, long MSFT: (51 - 50) * 10
	assert.InDelta(t, 2.5, rec.Leg1.Profit, 1e-9)
	assert.InDelta(t, 10.0, rec.Leg2.Profit, 1e-9)
	assert.InDelta(t, 12.5, rec.NetProfit, 1e-9)
	assert.False(t, rec.ExitTime.IsZero())
	assert.Equal(t, 1, fx.metrics.exits)
}

func TestOrchestratorHoldsPositionOutsideExitBand(t *testing.T) {
	fx := newOrchFixture(t, fillImmediately)
	ctx := context.Background()

	fx.orch.runOnce(ctx)
	require.Len(t, fx.store.Load(), 2)
	sessionsAfterFirst := fx.dialer.handed

	// Spread still stretched: the open trade survives the sweep, and the
	// pair is ineligible for a second entry while its trade is on the
	// book, even though the signal persists.
	fx.orch.runOnce(ctx)

	assert.Len(t, fx.store.Load(), 2)
	assert.Empty(t, fx.store.Profits())
	assert.Equal(t, 1, fx.metrics.entries)
	assert.Equal(t, sessionsAfterFirst, fx.dialer.handed)
}

func TestOrchestratorCoolsDownFailedPairs(t *testing.T) {
	fx := newOrchFixture(t, func(o models.Order) (models.OrderStatus, int) {
		return models.OrderStatus{State: models.OrderRejected}, 0
	})
	ctx := context.Background()

	fx.orch.runOnce(ctx)

	assert.Empty(t, fx.store.Load())
	assert.True(t, fx.cooldowns.Blocked("AAPL_MSFT", time.Now()))
	sessionsAfterFirst := fx.dialer.handed

	// The blocked pair leaves the next sweep with nothing to dispatch.
	fx.orch.runOnce(ctx)
	assert.Equal(t, sessionsAfterFirst, fx.dialer.handed)
}

func TestOrchestratorKeepsLegsWhenExitCannotBePlaced(t *testing.T) {
	fx := newOrchFixture(t, fillImmediately)
	ctx := context.Background()

	fx.orch.runOnce(ctx)
	require.Len(t, fx.store.Load(), 2)

	// Exits cannot even be placed: the book must stay intact for a retry.
	fx.primary.placeErr = assert.AnError
	fx.feed.setFrame(frameFromSpread("AAPL", "MSFT", 100, exitSpread()))

	fx.orch.runOnce(ctx)

	assert.Len(t, fx.store.Load(), 2)
	assert.Empty(t, fx.store.Profits())
}
