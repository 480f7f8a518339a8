package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordExitAcceptsLosingTrades(t *testing.T) {
	r := New()

	r.RecordExit("AAPL_MSFT", 20.0)
	r.RecordExit("AAPL_MSFT", -12.5)

	assert.InDelta(t, 7.5, testutil.ToFloat64(r.realizedPnL), 1e-9)
	assert.InDelta(t, 2.0, testutil.ToFloat64(r.exitsTotal.WithLabelValues("AAPL_MSFT")), 1e-9)
}
