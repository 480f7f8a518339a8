package repository

import (
	"context"
	"time"

	"PairTrader/internal/domain/models"
)

// MarketData supplies historical bars and live quotes. Implementations
// tolerate missing tickers: FetchFrame drops tickers that fail or fall
// short of the sample minimum instead of failing the whole request.
type MarketData interface {
	GetBars(ctx context.Context, ticker string, start, end time.Time, intervalMin int) (models.PriceSeries, error)
	GetQuote(ctx context.Context, symbol string) (models.Quote, error)
	FetchFrame(ctx context.Context, tickers []string) (*models.Frame, error)
}

// BrokerSession is one exclusive connection to the execution venue. A
// session must never be shared between concurrent workers.
type BrokerSession interface {
	Connect(ctx context.Context, clientID int) error
	PlaceOrder(ctx context.Context, order models.Order) (models.OrderHandle, error)
	Status(handle models.OrderHandle) models.OrderStatus
	Cancel(handle models.OrderHandle) error
	Disconnect()
}

// BrokerDialer hands out fresh broker sessions, one per worker.
type BrokerDialer interface {
	Session() BrokerSession
}

// TradeStore persists the open-legs list and the append-only profit
// ledger across process restarts.
type TradeStore interface {
	Load() []models.TradeLeg
	AppendPair(leg1, leg2 models.TradeLeg, pairKey string) error
	AppendProfit(rec models.ProfitRecord) error
	Remove(indices []int) error
	Profits() []models.ProfitRecord
}

// Cooldowns throttles repeatedly failing pairs. Entries expire by clock
// comparison; no sweeping is required.
type Cooldowns interface {
	Blocked(pairKey string, now time.Time) bool
	Block(pairKey string, now time.Time, d time.Duration)
	Snapshot(now time.Time) map[string]time.Time
}

// TradeEvents mirrors entry/exit events to an external bus. Optional:
// publish failures are logged and never fail the trade flow.
type TradeEvents interface {
	PublishEntry(ctx context.Context, e models.Entry) error
	PublishExit(ctx context.Context, rec models.ProfitRecord) error
	Close() error
}

// ProfitSink mirrors closed trades to an analytical store. Optional.
type ProfitSink interface {
	Append(ctx context.Context, rec models.ProfitRecord) error
	Close() error
}

// Metrics records engine health and trading activity.
type Metrics interface {
	RecordEntry(pairKey string)
	RecordExit(pairKey string, netProfit float64)
	RecordEscalation(symbol string)
	RecordUnwind(pairKey string)
	RecordOrderFailure(kind string)
	RecordError(kind string)
	RecordZScore(pairKey string, z float64)
	SetOpenLegs(n int)
	RecordLatency(op string, seconds float64)
}
