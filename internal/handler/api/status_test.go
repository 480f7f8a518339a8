package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PairTrader/internal/domain/models"
	internalrepo "PairTrader/internal/repository"
	"PairTrader/internal/service/cooldown"
	"PairTrader/pkg/logger"
)

func newTestHandler(t *testing.T) (*StatusHandler, *internalrepo.FileStore, *cooldown.Registry) {
	t.Helper()
	log, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	log.AddCollector(nil)

	dir := t.TempDir()
	store := internalrepo.NewFileStore(
		filepath.Join(dir, "trades.json"),
		filepath.Join(dir, "profits.json"),
		log,
	)
	registry := cooldown.NewRegistry()
	return NewStatusHandler(log, store, registry), store, registry
}

func doRequest(t *testing.T, h *StatusHandler, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)

	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec, body
}

func TestHealthEndpoint(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec, body := doRequest(t, h, "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 200, body["status"])
}

func TestOpenTradesGroupsLegs(t *testing.T) {
	h, store, _ := newTestHandler(t)
	require.NoError(t, store.AppendPair(
		models.TradeLeg{Symbol: "AAPL", Side: models.SideSell, Quantity: 5, EntryPrice: 100},
		models.TradeLeg{Symbol: "MSFT", Side: models.SideBuy, Quantity: 10, EntryPrice: 50},
		"AAPL_MSFT",
	))

	rec, body := doRequest(t, h, "/api/v1/trades/open")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["total"])
	rows := data["rows"].([]interface{})
	require.Len(t, rows, 1)
	trade := rows[0].(map[string]interface{})
	assert.Equal(t, "AAPL_MSFT", trade["pair_key"])
}

func TestProfitsEndpointFiltersAndSums(t *testing.T) {
	h, store, _ := newTestHandler(t)
	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.AppendProfit(models.ProfitRecord{PairKey: "AAPL_MSFT", NetProfit: 10, ExitTime: old}))
	require.NoError(t, store.AppendProfit(models.ProfitRecord{PairKey: "KO_PEP", NetProfit: 2.5, ExitTime: recent}))

	rec, body := doRequest(t, h, "/api/v1/trades/profits?from=2026-02-01T00:00:00Z")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["total"])
	assert.InDelta(t, 2.5, data["net_profit"].(float64), 1e-9)
}

func TestProfitsEndpointRejectsInvertedRange(t *testing.T) {
	h, _, _ := newTestHandler(t)
	_, body := doRequest(t, h, "/api/v1/trades/profits?from=2026-03-01T00:00:00Z&to=2026-01-01T00:00:00Z")
	assert.EqualValues(t, 400, body["status"])
}

func TestCooldownsEndpoint(t *testing.T) {
	h, _, registry := newTestHandler(t)
	registry.Block("AAPL_MSFT", time.Now(), time.Hour)

	rec, body := doRequest(t, h, "/api/v1/cooldowns")
	require.Equal(t, http.StatusOK, rec.Code)

	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 1, data["total"])
}

func TestLogsEndpointEmpty(t *testing.T) {
	h, _, _ := newTestHandler(t)
	rec, body := doRequest(t, h, "/api/v1/logs")

	assert.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]interface{})
	assert.EqualValues(t, 0, data["total"])
}
