package usecase

import (
	"context"
	"fmt"
	"math"
	"time"

	"PairTrader/internal/domain/models"
	"PairTrader/internal/domain/repository"
	"PairTrader/pkg/config"
	"PairTrader/pkg/logger"
)

// ProtocolConfig tunes the order placement ladder.
type ProtocolConfig struct {
	TickSize        float64
	PollInterval    time.Duration
	Entry           config.Escalation
	Exit            config.Escalation
	MarketEntryWait time.Duration
}

// OrderProtocol drives a single order from quote to terminal state over
// one broker session: a limit order at mid, escalated one tick toward
// urgency on each timeout, then a market fallback. Not safe for use by
// more than one goroutine; each worker owns its own protocol instance.
type OrderProtocol struct {
	broker  repository.BrokerSession
	quotes  repository.MarketData
	cfg     ProtocolConfig
	log     *logger.Logger
	metrics repository.Metrics
	sleep   func(time.Duration)
}

func NewOrderProtocol(
	broker repository.BrokerSession,
	quotes repository.MarketData,
	cfg ProtocolConfig,
	log *logger.Logger,
	metrics repository.Metrics,
) *OrderProtocol {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	return &OrderProtocol{
		broker:  broker,
		quotes:  quotes,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		sleep:   time.Sleep,
	}
}

// Enter opens a position of roughly `notional` worth of symbol. The
// market fallback is bounded: if the market order itself does not reach a
// terminal state within MarketEntryWait it is cancelled and the entry
// fails, leaving the pair for the cooldown registry.
func (p *OrderProtocol) Enter(ctx context.Context, symbol string, side models.Side, notional float64) (*models.OrderResult, error) {
	price, err := p.referencePrice(ctx, symbol)
	if err != nil {
		return nil, err
	}
	qty, err := sizeOrder(notional, price)
	if err != nil {
		return nil, err
	}

	res, err := p.escalate(ctx, symbol, side, qty, price, p.cfg.Entry)
	if err != nil {
		// The venue would not even take the limit order. Escalating to a
		// market order on a broken connection opens blind; fail the entry
		// and let the pair cool down instead.
		return nil, fmt.Errorf("entry %s %s: %w", side, symbol, err)
	}
	if res != nil {
		return res, nil
	}

	handle, err := p.broker.PlaceOrder(ctx, models.Order{
		Symbol:   symbol,
		Side:     side,
		Type:     models.TypeMarket,
		Quantity: qty,
	})
	if err != nil {
		return nil, fmt.Errorf("market entry %s %s: %w", side, symbol, err)
	}
	st, filled := p.waitForFill(handle, p.cfg.MarketEntryWait)
	if !filled {
		p.cancelIfPending(handle, st)
		p.log.Warn("entry market order did not fill in time",
			logger.String("symbol", symbol),
			logger.String("side", string(side)))
		return nil, fmt.Errorf("entry %s %s: %w", side, symbol, ErrOrderFailed)
	}
	return p.result(symbol, side, qty, st, price, models.FillMarket), nil
}

// Exit flattens an open leg: the reversing side for the leg's full
// quantity. The market fallback is unbounded because an open position
// must always end up flat; refHint prices the result when neither the
// venue nor a fresh quote supplies a fill price.
func (p *OrderProtocol) Exit(ctx context.Context, symbol string, openedSide models.Side, qty int, refHint float64) (*models.OrderResult, error) {
	side := openedSide.Opposite()

	price, err := p.referencePrice(ctx, symbol)
	if err != nil {
		p.log.Warn("no quote for exit, going straight to market",
			logger.String("symbol", symbol),
			logger.Error(err))
		price = refHint
	} else {
		res, lerr := p.escalate(ctx, symbol, side, qty, price, p.cfg.Exit)
		if res != nil {
			return res, nil
		}
		if lerr != nil {
			// Unlike entries, a failed limit placement on an exit still
			// falls through: an open position must end up flat.
			p.log.Warn("limit ladder unavailable for exit, going straight to market",
				logger.String("symbol", symbol),
				logger.Error(lerr))
		}
	}

	handle, err := p.broker.PlaceOrder(ctx, models.Order{
		Symbol:   symbol,
		Side:     side,
		Type:     models.TypeMarket,
		Quantity: qty,
	})
	if err != nil {
		return nil, fmt.Errorf("market exit %s %s: %w", side, symbol, err)
	}
	st := p.waitForTerminal(handle)
	return p.result(symbol, side, qty, st, price, models.FillMarket), nil
}

// escalate runs the limit-order ladder: an order at price, then on each
// timeout a cancel and a one-tick move toward urgency (up for BUY, down
// for SELL). Returns (nil, nil) when the ladder is exhausted without a
// fill, and an error when the venue refused a placement outright.
func (p *OrderProtocol) escalate(ctx context.Context, symbol string, side models.Side, qty int, price float64, ladder config.Escalation) (*models.OrderResult, error) {
	timeout := ladder.InitialTimeout
	for attempt := 0; attempt <= ladder.MaxEscalations; attempt++ {
		handle, err := p.broker.PlaceOrder(ctx, models.Order{
			Symbol:     symbol,
			Side:       side,
			Type:       models.TypeLimit,
			Quantity:   qty,
			LimitPrice: price,
		})
		if err != nil {
			p.log.Warn("limit order placement failed",
				logger.String("symbol", symbol),
				logger.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrConnectionFailure, err)
		}

		st, filled := p.waitForFill(handle, timeout)
		if filled {
			return p.result(symbol, side, qty, st, price, models.FillLimit), nil
		}
		p.cancelIfPending(handle, st)

		if attempt < ladder.MaxEscalations {
			p.metrics.RecordEscalation(symbol)
			price = p.stepPrice(price, side)
			timeout = ladder.EscalationTimeout
			p.log.Debug("escalating limit order",
				logger.String("symbol", symbol),
				logger.String("side", string(side)),
				logger.Float64("price", price),
				logger.Int("attempt", attempt+1))
		}
	}
	return nil, nil
}

// stepPrice moves a limit price one tick toward urgency and re-snaps it
// to the grid. The sequence is monotonic across escalations.
func (p *OrderProtocol) stepPrice(price float64, side models.Side) float64 {
	if side == models.SideBuy {
		return roundToTick(price+p.cfg.TickSize, p.cfg.TickSize)
	}
	return roundToTick(price-p.cfg.TickSize, p.cfg.TickSize)
}

// waitForFill polls the order until it reaches a terminal state or the
// timeout elapses. Deliberately ignores the caller's context: an order
// already at the venue must be driven to a terminal state either way.
func (p *OrderProtocol) waitForFill(handle models.OrderHandle, timeout time.Duration) (models.OrderStatus, bool) {
	deadline := time.Now().Add(timeout)
	for {
		st := p.broker.Status(handle)
		if st.State.Terminal() {
			return st, st.State == models.OrderFilled
		}
		if time.Now().After(deadline) {
			return st, false
		}
		p.sleep(p.cfg.PollInterval)
	}
}

// waitForTerminal blocks without bound until the order settles.
func (p *OrderProtocol) waitForTerminal(handle models.OrderHandle) models.OrderStatus {
	for {
		st := p.broker.Status(handle)
		if st.State.Terminal() {
			return st
		}
		p.sleep(p.cfg.PollInterval)
	}
}

// cancelIfPending issues a best-effort cancel for an order that has not
// reached a terminal state. Cancel failures are logged and swallowed:
// the venue may have settled the order in the meantime.
func (p *OrderProtocol) cancelIfPending(handle models.OrderHandle, st models.OrderStatus) {
	if st.State.Terminal() {
		return
	}
	if err := p.broker.Cancel(handle); err != nil {
		p.log.Warn("order cancel failed",
			logger.String("handle", string(handle)),
			logger.Error(err))
	}
}

// result assembles a terminal order outcome. A venue that reports no
// fill price gets the last reference price instead; results are never
// priceless.
func (p *OrderProtocol) result(symbol string, side models.Side, qty int, st models.OrderStatus, refPrice float64, ft models.FillType) *models.OrderResult {
	fill := st.FillPrice
	if fill <= 0 {
		fill = refPrice
	}
	return &models.OrderResult{
		Symbol:    symbol,
		Side:      side,
		Quantity:  qty,
		FillPrice: fill,
		FillType:  ft,
		When:      time.Now().UTC(),
	}
}

// referencePrice fetches a quote and returns the tick-snapped midpoint.
func (p *OrderProtocol) referencePrice(ctx context.Context, symbol string) (float64, error) {
	q, err := p.quotes.GetQuote(ctx, symbol)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrQuoteUnavailable, symbol, err)
	}
	if q.Bid <= 0 || q.Ask <= 0 {
		return 0, fmt.Errorf("%w: %s has no two-sided market", ErrQuoteUnavailable, symbol)
	}
	return roundToTick((q.Bid+q.Ask)/2, p.cfg.TickSize), nil
}

// sizeOrder converts a notional amount into shares, rounding up so the
// position is never sized below the target capital.
func sizeOrder(notional, price float64) (int, error) {
	if price <= 0 || math.IsNaN(price) {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	qty := int(math.Ceil(notional / price))
	if qty <= 0 {
		return 0, fmt.Errorf("%w: notional %v at price %v", ErrInvalidQuantity, notional, price)
	}
	return qty, nil
}

// roundToTick snaps price to the venue tick grid.
func roundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	return math.Round(price/tick) * tick
}
