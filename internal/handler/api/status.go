package api

import (
	"time"

	"github.com/labstack/echo/v4"

	"PairTrader/internal/domain/models"
	"PairTrader/internal/domain/repository"
	xhttp "PairTrader/pkg/http"
	"PairTrader/pkg/logger"
)

// StatusHandler exposes the engine's operational state: the open book,
// the profit ledger, active cooldowns and recent warn/error logs.
type StatusHandler struct {
	log       *logger.Logger
	store     repository.TradeStore
	cooldowns repository.Cooldowns
}

func NewStatusHandler(log *logger.Logger, store repository.TradeStore, cooldowns repository.Cooldowns) *StatusHandler {
	return &StatusHandler{
		log:       log,
		store:     store,
		cooldowns: cooldowns,
	}
}

// RegisterRoutes registers status endpoints.
func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	v1 := e.Group("/api/v1")
	v1.GET("/trades/open", h.OpenTrades)
	v1.GET("/trades/profits", h.Profits)
	v1.GET("/cooldowns", h.Cooldowns)
	v1.GET("/logs", h.Logs)
}

// Health responds 200 while the process is up.
func (h *StatusHandler) Health(c echo.Context) error {
	return xhttp.SuccessResponse(c, map[string]string{"status": "ok"})
}

type openTrade struct {
	PairKey string          `json:"pair_key"`
	Leg1    models.TradeLeg `json:"leg1"`
	Leg2    models.TradeLeg `json:"leg2"`
}

// OpenTrades returns the open book grouped back into two-leg trades.
func (h *StatusHandler) OpenTrades(c echo.Context) error {
	legs := h.store.Load()

	trades := make([]openTrade, 0, len(legs)/2)
	for i := 0; i+1 < len(legs); i += 2 {
		trades = append(trades, openTrade{
			PairKey: legs[i].PairKey,
			Leg1:    legs[i],
			Leg2:    legs[i+1],
		})
	}
	return xhttp.ListResponse(c, trades, int64(len(trades)))
}

// Profits returns the closed-trade ledger, optionally bounded by
// from/to query parameters on exit time.
func (h *StatusHandler) Profits(c echo.Context) error {
	from := xhttp.ParseTimeDefault(c.QueryParam("from"), time.Time{})
	to := xhttp.ParseTimeDefault(c.QueryParam("to"), time.Now().UTC())
	if to.Before(from) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must precede to"))
	}

	all := h.store.Profits()
	records := make([]models.ProfitRecord, 0, len(all))
	var total float64
	for _, rec := range all {
		if rec.ExitTime.Before(from) || rec.ExitTime.After(to) {
			continue
		}
		records = append(records, rec)
		total += rec.NetProfit
	}

	return xhttp.SuccessResponse(c, map[string]interface{}{
		"rows":       records,
		"total":      len(records),
		"net_profit": total,
	})
}

type cooldownEntry struct {
	PairKey string    `json:"pair_key"`
	Until   time.Time `json:"until"`
}

// Cooldowns returns pairs currently held back and their unblock times.
func (h *StatusHandler) Cooldowns(c echo.Context) error {
	snap := h.cooldowns.Snapshot(time.Now())

	entries := make([]cooldownEntry, 0, len(snap))
	for key, until := range snap {
		entries = append(entries, cooldownEntry{PairKey: key, Until: until})
	}
	return xhttp.ListResponse(c, entries, int64(len(entries)))
}

// Logs returns recent aggregated warn/error log entries, newest first,
// capped by the limit query parameter.
func (h *StatusHandler) Logs(c echo.Context) error {
	collector := h.log.Collector()
	if collector == nil {
		return xhttp.ListResponse(c, []logger.AggregatedLogEntry{}, 0)
	}

	logs := collector.Snapshot()
	limit := xhttp.ParseIntDefault(c.QueryParam("limit"), 100)
	if limit > 0 && len(logs) > limit {
		logs = logs[:limit]
	}
	return xhttp.ListResponse(c, logs, int64(len(logs)))
}
