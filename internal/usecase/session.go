package usecase

import (
	"context"
	"time"

	"PairTrader/internal/domain/models"
	"PairTrader/internal/domain/repository"
	"PairTrader/pkg/logger"
)

// SessionConfig tunes one execution session.
type SessionConfig struct {
	CapitalPerTrade float64
	EnterShort      float64 // z above this opens SELL t1 / BUY t2
	EnterLong       float64 // z below this opens BUY t1 / SELL t2
	ZScoreWindow    int
}

// SessionFactory builds a session around a freshly dialed broker
// connection; the scheduler calls it once per batch.
type SessionFactory func(broker repository.BrokerSession) *Session

// Session evaluates one batch of pairs over its own exclusive broker
// connection and opens positions where the spread signal demands it.
type Session struct {
	feed     repository.MarketData
	broker   repository.BrokerSession
	protocol *OrderProtocol
	cfg      SessionConfig
	log      *logger.Logger
	metrics  repository.Metrics
}

func NewSession(
	feed repository.MarketData,
	broker repository.BrokerSession,
	protocol *OrderProtocol,
	cfg SessionConfig,
	log *logger.Logger,
	metrics repository.Metrics,
) *Session {
	return &Session{
		feed:     feed,
		broker:   broker,
		protocol: protocol,
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
	}
}

// Execute runs the batch end to end: connect, fetch one shared frame,
// then evaluate each pair in turn. It returns the entries opened and the
// keys of pairs whose entry failed and should be cooled down. Failures
// inside one pair never abort the rest of the batch; cancellation is
// honored between pairs, never mid-order.
func (s *Session) Execute(ctx context.Context, pairs []models.Pair, clientID int) (entries []models.Entry, failed []string) {
	start := time.Now()
	defer func() {
		s.metrics.RecordLatency("session", time.Since(start).Seconds())
	}()

	if err := s.broker.Connect(ctx, clientID); err != nil {
		s.log.Error("broker connect failed, skipping batch",
			logger.Int("client_id", clientID),
			logger.Int("pairs", len(pairs)),
			logger.Error(err))
		s.metrics.RecordError("broker_connect")
		return nil, nil
	}
	defer s.broker.Disconnect()

	frame, err := s.feed.FetchFrame(ctx, models.Tickers(pairs))
	if err != nil {
		s.log.Error("no usable market data for batch",
			logger.Int("client_id", clientID),
			logger.Error(err))
		s.metrics.RecordError("market_data")
		return nil, nil
	}

	for _, pair := range pairs {
		if ctx.Err() != nil {
			s.log.Info("session interrupted between pairs",
				logger.Int("client_id", clientID))
			break
		}
		if entry, key, ok := s.evaluate(ctx, frame, pair); ok {
			entries = append(entries, *entry)
		} else if key != "" {
			failed = append(failed, key)
		}
	}
	return entries, failed
}

// evaluate runs the signal and, when it fires, the two-leg entry. The
// returned key is non-empty only when the pair should be cooled down.
func (s *Session) evaluate(ctx context.Context, frame *models.Frame, pair models.Pair) (*models.Entry, string, bool) {
	z, ok := ZScore(frame, pair.T1, pair.T2, s.cfg.ZScoreWindow)
	if !ok {
		s.log.Debug("no signal, insufficient data",
			logger.String("pair", pair.Key()))
		return nil, "", false
	}
	s.metrics.RecordZScore(pair.Key(), z)

	var side1, side2 models.Side
	switch {
	case z > s.cfg.EnterShort && z > 0:
		side1, side2 = models.SideSell, models.SideBuy
	case z < s.cfg.EnterLong && z < 0:
		side1, side2 = models.SideBuy, models.SideSell
	default:
		return nil, "", false
	}

	s.log.Info("entry signal",
		logger.String("pair", pair.Key()),
		logger.Float64("zscore", z),
		logger.String("side_t1", string(side1)))

	leg1, err := s.protocol.Enter(ctx, pair.T1, side1, s.cfg.CapitalPerTrade)
	if err != nil {
		s.log.Warn("first leg entry failed",
			logger.String("pair", pair.Key()),
			logger.String("symbol", pair.T1),
			logger.Error(err))
		s.metrics.RecordOrderFailure("entry_leg1")
		return nil, pair.Key(), false
	}

	leg2, err := s.protocol.Enter(ctx, pair.T2, side2, s.cfg.CapitalPerTrade)
	if err != nil {
		s.log.Warn("second leg entry failed, unwinding first leg",
			logger.String("pair", pair.Key()),
			logger.String("symbol", pair.T2),
			logger.Error(err))
		s.metrics.RecordOrderFailure("entry_leg2")
		s.unwind(ctx, frame, pair, leg1)
		return nil, pair.Key(), false
	}

	entry := &models.Entry{
		PairKey: pair.Key(),
		Leg1:    models.Leg(leg1),
		Leg2:    models.Leg(leg2),
		ZScore:  z,
	}
	return entry, "", true
}

// unwind flattens a filled first leg after the second leg failed, so the
// engine never carries naked single-leg exposure.
func (s *Session) unwind(ctx context.Context, frame *models.Frame, pair models.Pair, leg1 *models.OrderResult) {
	hint := leg1.FillPrice
	if last, ok := frame.LastPrice(pair.T1); ok {
		hint = last
	}
	if _, err := s.protocol.Exit(ctx, leg1.Symbol, leg1.Side, leg1.Quantity, hint); err != nil {
		s.log.Error("single-leg unwind failed, manual intervention may be required",
			logger.String("pair", pair.Key()),
			logger.String("symbol", leg1.Symbol),
			logger.Error(err))
		s.metrics.RecordError("unwind")
		return
	}
	s.metrics.RecordUnwind(pair.Key())
}
