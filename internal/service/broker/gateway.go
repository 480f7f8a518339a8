package broker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"PairTrader/internal/domain/models"
	"PairTrader/internal/domain/repository"
	"PairTrader/pkg/logger"
)

// Config tunes the connection to the execution gateway.
type Config struct {
	URL         string
	DialTimeout time.Duration
}

// Dialer hands out fresh gateway sessions. Implements domain
// repository.BrokerDialer.
type Dialer struct {
	cfg Config
	log *logger.Logger
}

func NewDialer(cfg Config, log *logger.Logger) *Dialer {
	return &Dialer{cfg: cfg, log: log}
}

func (d *Dialer) Session() repository.BrokerSession {
	return &Session{
		cfg:    d.cfg,
		log:    d.log,
		orders: make(map[models.OrderHandle]models.OrderStatus),
	}
}

// Session is one websocket connection to the execution gateway. Order
// status updates arrive asynchronously on a reader goroutine and are
// served from a local map; the session itself is owned by exactly one
// worker.
type Session struct {
	cfg Config
	log *logger.Logger

	clientID int
	seq      atomic.Uint64

	conn    *websocket.Conn
	writeMu sync.Mutex

	mu     sync.RWMutex
	orders map[models.OrderHandle]models.OrderStatus

	done      chan struct{}
	closeOnce sync.Once
}

type placeRequest struct {
	Op         string  `json:"op"`
	OrderID    string  `json:"order_id"`
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Type       string  `json:"type"`
	Quantity   int     `json:"quantity"`
	LimitPrice float64 `json:"limit_price,omitempty"`
}

type cancelRequest struct {
	Op      string `json:"op"`
	OrderID string `json:"order_id"`
}

type statusUpdate struct {
	OrderID   string  `json:"order_id"`
	Status    string  `json:"status"`
	FillPrice float64 `json:"fill_price,omitempty"`
}

// Connect dials the gateway and starts the status reader.
func (s *Session) Connect(ctx context.Context, clientID int) error {
	dialer := websocket.Dialer{HandshakeTimeout: s.cfg.DialTimeout}
	url := fmt.Sprintf("%s?client_id=%d", s.cfg.URL, clientID)

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial gateway %s: %w", s.cfg.URL, err)
	}

	s.clientID = clientID
	s.conn = conn
	s.done = make(chan struct{})
	go s.readLoop()

	s.log.Info("gateway session connected",
		logger.Int("client_id", clientID))
	return nil
}

// PlaceOrder submits an order and returns its handle. The status map is
// seeded with Submitted so a poll before the first update sees a
// pending, not unknown, order.
func (s *Session) PlaceOrder(ctx context.Context, order models.Order) (models.OrderHandle, error) {
	if s.conn == nil {
		return "", fmt.Errorf("session %d not connected", s.clientID)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	handle := models.OrderHandle(fmt.Sprintf("%d-%d", s.clientID, s.seq.Add(1)))

	s.mu.Lock()
	s.orders[handle] = models.OrderStatus{State: models.OrderSubmitted}
	s.mu.Unlock()

	req := placeRequest{
		Op:         "place",
		OrderID:    string(handle),
		Symbol:     order.Symbol,
		Side:       string(order.Side),
		Type:       string(order.Type),
		Quantity:   order.Quantity,
		LimitPrice: order.LimitPrice,
	}
	if err := s.writeJSON(req); err != nil {
		s.mu.Lock()
		delete(s.orders, handle)
		s.mu.Unlock()
		return "", fmt.Errorf("place %s %s: %w", order.Side, order.Symbol, err)
	}
	return handle, nil
}

// Status returns the last known state of the order. Handles the session
// never saw report Inactive.
func (s *Session) Status(handle models.OrderHandle) models.OrderStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if st, ok := s.orders[handle]; ok {
		return st
	}
	return models.OrderStatus{State: models.OrderInactive}
}

// Cancel asks the gateway to cancel the order. The venue is free to
// have filled it already; the final word arrives as a status update.
func (s *Session) Cancel(handle models.OrderHandle) error {
	if err := s.writeJSON(cancelRequest{Op: "cancel", OrderID: string(handle)}); err != nil {
		return fmt.Errorf("cancel %s: %w", handle, err)
	}
	return nil
}

// Disconnect closes the connection. Safe to call more than once.
func (s *Session) Disconnect() {
	s.closeOnce.Do(func() {
		if s.conn == nil {
			return
		}
		s.writeMu.Lock()
		_ = s.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.writeMu.Unlock()
		_ = s.conn.Close()
		s.log.Info("gateway session disconnected",
			logger.Int("client_id", s.clientID))
	})
}

func (s *Session) writeJSON(v interface{}) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// readLoop consumes status updates until the connection dies. A dead
// connection marks every non-terminal order Inactive so pollers stop
// waiting on fills that can no longer be observed.
func (s *Session) readLoop() {
	defer close(s.done)
	for {
		var upd statusUpdate
		if err := s.conn.ReadJSON(&upd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure) {
				s.log.Warn("gateway connection lost",
					logger.Int("client_id", s.clientID),
					logger.Error(err))
			}
			s.failPending()
			return
		}

		state := models.OrderState(upd.Status)
		if !validState(state) {
			s.log.Warn("unknown order state from gateway",
				logger.String("order_id", upd.OrderID),
				logger.String("status", upd.Status))
			continue
		}

		s.mu.Lock()
		s.orders[models.OrderHandle(upd.OrderID)] = models.OrderStatus{
			State:     state,
			FillPrice: upd.FillPrice,
		}
		s.mu.Unlock()
	}
}

func (s *Session) failPending() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for handle, st := range s.orders {
		if !st.State.Terminal() {
			s.orders[handle] = models.OrderStatus{State: models.OrderInactive}
		}
	}
}

func validState(st models.OrderState) bool {
	switch st {
	case models.OrderSubmitted, models.OrderFilled, models.OrderCancelled,
		models.OrderInactive, models.OrderRejected:
		return true
	default:
		return false
	}
}
