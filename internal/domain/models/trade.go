package models

import "time"

// Side is an order direction.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the reversing direction, used when flattening a leg.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// FillType tags how an order result got its price.
type FillType string

const (
	FillLimit  FillType = "Limit"
	FillMarket FillType = "Market"
)

// OrderState is the venue-reported lifecycle status of an order.
type OrderState string

const (
	OrderSubmitted OrderState = "Submitted"
	OrderFilled    OrderState = "Filled"
	OrderCancelled OrderState = "Cancelled"
	OrderInactive  OrderState = "Inactive"
	OrderRejected  OrderState = "Rejected"
)

// Terminal reports whether the state ends an order attempt.
func (s OrderState) Terminal() bool {
	switch s {
	case OrderFilled, OrderCancelled, OrderInactive, OrderRejected:
		return true
	default:
		return false
	}
}

// OrderType selects limit vs market execution.
type OrderType string

const (
	TypeLimit  OrderType = "LMT"
	TypeMarket OrderType = "MKT"
)

// Order is the instruction handed to a broker session.
type Order struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Type       OrderType `json:"type"`
	Quantity   int       `json:"quantity"`
	LimitPrice float64   `json:"limit_price,omitempty"`
}

// OrderHandle identifies a placed order at the venue.
type OrderHandle string

// OrderStatus is a broker session's view of a placed order.
type OrderStatus struct {
	State     OrderState `json:"state"`
	FillPrice float64    `json:"fill_price,omitempty"`
}

// OrderResult is the outcome of a completed order protocol run. FillPrice
// is always populated, for market fills as well as limit fills.
type OrderResult struct {
	Symbol    string    `json:"symbol"`
	Side      Side      `json:"action"`
	Quantity  int       `json:"quantity"`
	FillPrice float64   `json:"fill_price"`
	FillType  FillType  `json:"fill_type"`
	When      time.Time `json:"when"`
}

// TradeLeg is one persisted side of an open pair trade.
type TradeLeg struct {
	PairKey    string    `json:"pair_key"`
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"action"`
	Quantity   int       `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	FillType   FillType  `json:"fill_type"`
	EntryTime  time.Time `json:"entry_time"`
}

// Leg builds a trade leg from an order result; pair key and entry time
// are stamped by the store on append.
func Leg(r *OrderResult) TradeLeg {
	return TradeLeg{
		Symbol:     r.Symbol,
		Side:       r.Side,
		Quantity:   r.Quantity,
		EntryPrice: r.FillPrice,
		FillType:   r.FillType,
	}
}

// Entry is a successful two-leg pair entry reported by a session.
type Entry struct {
	PairKey string   `json:"pair_key"`
	Leg1    TradeLeg `json:"leg1"`
	Leg2    TradeLeg `json:"leg2"`
	ZScore  float64  `json:"z_score"`
}

// ProfitLeg is the realized outcome of one leg of a closed trade.
type ProfitLeg struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"action"`
	Quantity   int     `json:"quantity"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Profit     float64 `json:"profit"`
}

// ProfitRecord is one closed pair trade in the append-only ledger.
// Records are never mutated after creation.
type ProfitRecord struct {
	PairKey   string    `json:"pair_key"`
	Leg1      ProfitLeg `json:"leg1"`
	Leg2      ProfitLeg `json:"leg2"`
	NetProfit float64   `json:"net_profit"`
	EntryTime time.Time `json:"entry_time"`
	ExitTime  time.Time `json:"exit_time"`
}

// LegProfit computes the realized profit of a leg: (exit-entry)*qty for a
// BUY-opened leg, (entry-exit)*qty for a SELL-opened leg.
func LegProfit(leg TradeLeg, exitPrice float64) float64 {
	if leg.Side == SideBuy {
		return (exitPrice - leg.EntryPrice) * float64(leg.Quantity)
	}
	return (leg.EntryPrice - exitPrice) * float64(leg.Quantity)
}
