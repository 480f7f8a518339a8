package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"PairTrader/internal/domain/models"
	"PairTrader/internal/domain/repository"
	"PairTrader/pkg/config"
	"PairTrader/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func testProtoCfg() ProtocolConfig {
	return ProtocolConfig{
		TickSize:     0.01,
		PollInterval: time.Millisecond,
		Entry: config.Escalation{
			InitialTimeout:    5 * time.Millisecond,
			EscalationTimeout: 5 * time.Millisecond,
			MaxEscalations:    3,
		},
		Exit: config.Escalation{
			InitialTimeout:    5 * time.Millisecond,
			EscalationTimeout: 5 * time.Millisecond,
			MaxEscalations:    2,
		},
		MarketEntryWait: 10 * time.Millisecond,
	}
}

// frameFromSpread builds a two-column frame where t2 is flat at base and
// t1 tracks base plus the given spread values.
func frameFromSpread(t1, t2 string, base float64, spread []float64) *models.Frame {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	times := make([]time.Time, len(spread))
	c1 := make([]float64, len(spread))
	c2 := make([]float64, len(spread))
	for i, s := range spread {
		times[i] = start.Add(time.Duration(i) * time.Minute)
		c1[i] = base + s
		c2[i] = base
	}
	return &models.Frame{Times: times, Cols: map[string][]float64{t1: c1, t2: c2}}
}

// entrySpread produces z ~= +2.04 over a window of 6; negate for the
// long side.
func entrySpread(sign float64) []float64 {
	return []float64{1, 1, 1, 1, 1, 1 + 2*sign}
}

// exitSpread produces z ~= +0.17, inside the default exit band.
func exitSpread() []float64 {
	return []float64{1, 2, 1, 2, 1, 1.5}
}

// --- market data fake ---

type fakeFeed struct {
	mu       sync.Mutex
	frame    *models.Frame
	frameErr error
	quotes   map[string]models.Quote
	quoteErr map[string]error
}

func (f *fakeFeed) GetBars(ctx context.Context, ticker string, start, end time.Time, intervalMin int) (models.PriceSeries, error) {
	return models.PriceSeries{Ticker: ticker}, nil
}

func (f *fakeFeed) GetQuote(ctx context.Context, symbol string) (models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.quoteErr[symbol]; ok {
		return models.Quote{}, err
	}
	if q, ok := f.quotes[symbol]; ok {
		return q, nil
	}
	return models.Quote{}, fmt.Errorf("no quote for %s", symbol)
}

func (f *fakeFeed) FetchFrame(ctx context.Context, tickers []string) (*models.Frame, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.frameErr != nil {
		return nil, f.frameErr
	}
	return f.frame, nil
}

func (f *fakeFeed) setFrame(frame *models.Frame) {
	f.mu.Lock()
	f.frame = frame
	f.mu.Unlock()
}

func (f *fakeFeed) setQuote(q models.Quote) {
	f.mu.Lock()
	f.quotes[q.Symbol] = q
	f.mu.Unlock()
}

// --- broker fake ---

// orderScript decides an order's final status and how many Status polls
// it stays Submitted before reaching it. delayPolls < 0 means the order
// never settles on its own.
type orderScript func(o models.Order) (final models.OrderStatus, delayPolls int)

func fillImmediately(o models.Order) (models.OrderStatus, int) {
	price := o.LimitPrice
	if o.Type == models.TypeMarket {
		price = 0 // venue reports no price, protocol falls back to reference
	}
	return models.OrderStatus{State: models.OrderFilled, FillPrice: price}, 0
}

type fakeOrder struct {
	order models.Order
	final models.OrderStatus
	delay int
	done  bool
}

type fakeBroker struct {
	mu       sync.Mutex
	script   orderScript
	connects []int
	orders   []models.Order
	cancels  []models.OrderHandle
	handles  map[models.OrderHandle]*fakeOrder
	seq      int

	connectErr    error
	connectPanic  bool
	placeErr      error
	limitPlaceErr error
}

func newFakeBroker(script orderScript) *fakeBroker {
	return &fakeBroker{script: script, handles: make(map[models.OrderHandle]*fakeOrder)}
}

func (b *fakeBroker) Connect(ctx context.Context, clientID int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.connectPanic {
		panic("broker connect exploded")
	}
	b.connects = append(b.connects, clientID)
	return b.connectErr
}

func (b *fakeBroker) PlaceOrder(ctx context.Context, order models.Order) (models.OrderHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.placeErr != nil {
		return "", b.placeErr
	}
	if b.limitPlaceErr != nil && order.Type == models.TypeLimit {
		return "", b.limitPlaceErr
	}
	b.seq++
	handle := models.OrderHandle(fmt.Sprintf("h%d", b.seq))
	final, delay := b.script(order)
	b.orders = append(b.orders, order)
	b.handles[handle] = &fakeOrder{order: order, final: final, delay: delay}
	return handle, nil
}

func (b *fakeBroker) Status(handle models.OrderHandle) models.OrderStatus {
	b.mu.Lock()
	defer b.mu.Unlock()
	o, ok := b.handles[handle]
	if !ok {
		return models.OrderStatus{State: models.OrderInactive}
	}
	if o.done {
		return o.final
	}
	if o.delay < 0 {
		return models.OrderStatus{State: models.OrderSubmitted}
	}
	if o.delay > 0 {
		o.delay--
		return models.OrderStatus{State: models.OrderSubmitted}
	}
	o.done = true
	return o.final
}

func (b *fakeBroker) Cancel(handle models.OrderHandle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cancels = append(b.cancels, handle)
	if o, ok := b.handles[handle]; ok && !o.done {
		o.final = models.OrderStatus{State: models.OrderCancelled}
		o.delay = 0
		o.done = true
	}
	return nil
}

func (b *fakeBroker) Disconnect() {}

func (b *fakeBroker) placedOrders() []models.Order {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Order(nil), b.orders...)
}

type fakeDialer struct {
	mu     sync.Mutex
	next   func() repository.BrokerSession
	handed int
}

func (d *fakeDialer) Session() repository.BrokerSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handed++
	return d.next()
}

// --- metrics fake ---

type fakeMetrics struct {
	mu          sync.Mutex
	escalations int
	unwinds     int
	entries     int
	exits       int
	failures    map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{failures: make(map[string]int)}
}

func (m *fakeMetrics) RecordEntry(string) { m.mu.Lock(); m.entries++; m.mu.Unlock() }
func (m *fakeMetrics) RecordExit(string, float64) {
	m.mu.Lock()
	m.exits++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordEscalation(string) { m.mu.Lock(); m.escalations++; m.mu.Unlock() }
func (m *fakeMetrics) RecordUnwind(string)     { m.mu.Lock(); m.unwinds++; m.mu.Unlock() }
func (m *fakeMetrics) RecordOrderFailure(kind string) {
	m.mu.Lock()
	m.failures[kind]++
	m.mu.Unlock()
}
func (m *fakeMetrics) RecordError(string)            {}
func (m *fakeMetrics) RecordZScore(string, float64)  {}
func (m *fakeMetrics) SetOpenLegs(int)               {}
func (m *fakeMetrics) RecordLatency(string, float64) {}
