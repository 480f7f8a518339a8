package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairTrader/internal/domain/models"
)

func quoteFeed(symbol string, bid, ask float64) *fakeFeed {
	return &fakeFeed{quotes: map[string]models.Quote{
		symbol: {Symbol: symbol, Bid: bid, Ask: ask},
	}}
}

func newTestProtocol(t *testing.T, broker *fakeBroker, feed *fakeFeed) (*OrderProtocol, *fakeMetrics) {
	t.Helper()
	m := newFakeMetrics()
	return NewOrderProtocol(broker, feed, testProtoCfg(), testLogger(t), m), m
}

func TestEnterFillsLimitAtMid(t *testing.T) {
	broker := newFakeBroker(fillImmediately)
	feed := quoteFeed("AAPL", 33.32, 33.34)
	p, _ := newTestProtocol(t, broker, feed)

	res, err := p.Enter(context.Background(), "AAPL", models.SideBuy, 500)
	require.NoError(t, err)

	assert.Equal(t, 16, res.Quantity) // ceil(500 / 33.33)
	assert.InDelta(t, 33.33, res.FillPrice, 1e-9)
	assert.Equal(t, models.FillLimit, res.FillType)

	orders := broker.placedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, models.TypeLimit, orders[0].Type)
	assert.InDelta(t, 33.33, orders[0].LimitPrice, 1e-9)
}

func TestEnterEscalatesOneTickTowardUrgency(t *testing.T) {
	broker := newFakeBroker(func(o models.Order) (models.OrderStatus, int) {
		if o.Type == models.TypeLimit {
			return models.OrderStatus{}, -1 // limit orders never settle
		}
		return models.OrderStatus{State: models.OrderFilled, FillPrice: 50.10}, 0
	})
	feed := quoteFeed("AAPL", 49.99, 50.01)
	p, m := newTestProtocol(t, broker, feed)

	res, err := p.Enter(context.Background(), "AAPL", models.SideBuy, 500)
	require.NoError(t, err)
	assert.Equal(t, models.FillMarket, res.FillType)
	assert.InDelta(t, 50.10, res.FillPrice, 1e-9)

	orders := broker.placedOrders()
	require.Len(t, orders, 5) // initial + 3 escalations + market fallback
	want := []float64{50.00, 50.01, 50.02, 50.03}
	for i, price := range want {
		assert.Equal(t, models.TypeLimit, orders[i].Type)
		assert.InDelta(t, price, orders[i].LimitPrice, 1e-9, "attempt %d", i)
	}
	assert.Equal(t, models.TypeMarket, orders[4].Type)
	assert.Equal(t, 3, m.escalations)
	assert.Len(t, broker.cancels, 4)
}

func TestEnterSellEscalatesDownward(t *testing.T) {
	broker := newFakeBroker(func(o models.Order) (models.OrderStatus, int) {
		if o.Type == models.TypeLimit {
			return models.OrderStatus{}, -1
		}
		return models.OrderStatus{State: models.OrderFilled, FillPrice: 49.9}, 0
	})
	feed := quoteFeed("XOM", 49.99, 50.01)
	p, _ := newTestProtocol(t, broker, feed)

	_, err := p.Enter(context.Background(), "XOM", models.SideSell, 500)
	require.NoError(t, err)

	orders := broker.placedOrders()
	require.Len(t, orders, 5)
	want := []float64{50.00, 49.99, 49.98, 49.97}
	for i, price := range want {
		assert.InDelta(t, price, orders[i].LimitPrice, 1e-9, "attempt %d", i)
	}
}

func TestEnterMarketFallbackIsBounded(t *testing.T) {
	broker := newFakeBroker(func(o models.Order) (models.OrderStatus, int) {
		return models.OrderStatus{}, -1 // nothing ever settles
	})
	feed := quoteFeed("AAPL", 49.99, 50.01)
	p, _ := newTestProtocol(t, broker, feed)

	_, err := p.Enter(context.Background(), "AAPL", models.SideBuy, 500)
	require.ErrorIs(t, err, ErrOrderFailed)

	// every limit attempt plus the market order got a cancel
	assert.Len(t, broker.cancels, 5)
}

func TestEnterFailsWhenLimitPlacementFails(t *testing.T) {
	broker := newFakeBroker(fillImmediately)
	broker.placeErr = assert.AnError
	feed := quoteFeed("AAPL", 49.99, 50.01)
	p, _ := newTestProtocol(t, broker, feed)

	_, err := p.Enter(context.Background(), "AAPL", models.SideBuy, 500)
	require.ErrorIs(t, err, ErrConnectionFailure)

	// no blind market order on a connection that refuses placements
	assert.Empty(t, broker.placedOrders())
}

func TestExitGoesToMarketWhenLimitPlacementFails(t *testing.T) {
	broker := newFakeBroker(func(o models.Order) (models.OrderStatus, int) {
		return models.OrderStatus{State: models.OrderFilled, FillPrice: 12.38}, 0
	})
	broker.limitPlaceErr = assert.AnError
	feed := quoteFeed("KO", 12.40, 12.44)
	p, _ := newTestProtocol(t, broker, feed)

	res, err := p.Exit(context.Background(), "KO", models.SideBuy, 40, 12.42)
	require.NoError(t, err)

	orders := broker.placedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, models.TypeMarket, orders[0].Type)
	assert.InDelta(t, 12.38, res.FillPrice, 1e-9)
}

func TestEnterQuoteUnavailable(t *testing.T) {
	broker := newFakeBroker(fillImmediately)
	feed := &fakeFeed{quoteErr: map[string]error{"AAPL": assert.AnError}}
	p, _ := newTestProtocol(t, broker, feed)

	_, err := p.Enter(context.Background(), "AAPL", models.SideBuy, 500)
	require.ErrorIs(t, err, ErrQuoteUnavailable)
	assert.Empty(t, broker.placedOrders())
}

func TestEnterOneSidedQuoteIsUnavailable(t *testing.T) {
	broker := newFakeBroker(fillImmediately)
	feed := quoteFeed("AAPL", 0, 50.01)
	p, _ := newTestProtocol(t, broker, feed)

	_, err := p.Enter(context.Background(), "AAPL", models.SideBuy, 500)
	require.ErrorIs(t, err, ErrQuoteUnavailable)
}

func TestRejectedAttemptEscalatesWithoutCancel(t *testing.T) {
	first := true
	broker := newFakeBroker(func(o models.Order) (models.OrderStatus, int) {
		if first {
			first = false
			return models.OrderStatus{State: models.OrderRejected}, 0
		}
		return models.OrderStatus{State: models.OrderFilled, FillPrice: o.LimitPrice}, 0
	})
	feed := quoteFeed("AAPL", 49.99, 50.01)
	p, _ := newTestProtocol(t, broker, feed)

	res, err := p.Enter(context.Background(), "AAPL", models.SideBuy, 500)
	require.NoError(t, err)
	assert.InDelta(t, 50.01, res.FillPrice, 1e-9)

	require.Len(t, broker.placedOrders(), 2)
	// terminal rejection needs no cancel
	assert.Empty(t, broker.cancels)
}

func TestExitReversesSideAndWaitsUnbounded(t *testing.T) {
	broker := newFakeBroker(func(o models.Order) (models.OrderStatus, int) {
		if o.Type == models.TypeLimit {
			return models.OrderStatus{}, -1
		}
		return models.OrderStatus{State: models.OrderFilled, FillPrice: 12.5}, 30
	})
	feed := quoteFeed("KO", 12.40, 12.44)
	p, _ := newTestProtocol(t, broker, feed)

	res, err := p.Exit(context.Background(), "KO", models.SideBuy, 40, 12.42)
	require.NoError(t, err)

	assert.Equal(t, models.SideSell, res.Side)
	assert.Equal(t, 40, res.Quantity)
	assert.Equal(t, models.FillMarket, res.FillType)
	assert.InDelta(t, 12.5, res.FillPrice, 1e-9)

	orders := broker.placedOrders()
	// initial limit + 2 escalations + market
	require.Len(t, orders, 4)
	for _, o := range orders {
		assert.Equal(t, models.SideSell, o.Side)
	}
}

func TestExitWithoutQuoteGoesStraightToMarket(t *testing.T) {
	broker := newFakeBroker(func(o models.Order) (models.OrderStatus, int) {
		// venue reports no fill price
		return models.OrderStatus{State: models.OrderFilled}, 0
	})
	feed := &fakeFeed{quoteErr: map[string]error{"KO": assert.AnError}}
	p, _ := newTestProtocol(t, broker, feed)

	res, err := p.Exit(context.Background(), "KO", models.SideSell, 40, 12.42)
	require.NoError(t, err)

	orders := broker.placedOrders()
	require.Len(t, orders, 1)
	assert.Equal(t, models.TypeMarket, orders[0].Type)
	assert.Equal(t, models.SideBuy, orders[0].Side)
	// the hint prices the result when the venue reports nothing
	assert.InDelta(t, 12.42, res.FillPrice, 1e-9)
}

func TestSizeOrderRoundsUp(t *testing.T) {
	qty, err := sizeOrder(500, 33.33)
	require.NoError(t, err)
	assert.Equal(t, 16, qty)

	qty, err = sizeOrder(500, 500)
	require.NoError(t, err)
	assert.Equal(t, 1, qty)

	_, err = sizeOrder(500, 0)
	assert.ErrorIs(t, err, ErrInvalidPrice)

	_, err = sizeOrder(0, 33.33)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestRoundToTick(t *testing.T) {
	assert.InDelta(t, 33.33, roundToTick(33.331, 0.01), 1e-9)
	assert.InDelta(t, 33.34, roundToTick(33.336, 0.01), 1e-9)
	assert.InDelta(t, 33.331, roundToTick(33.331, 0), 1e-9)
}
