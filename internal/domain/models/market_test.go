package models

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPairKeyIsSymmetric(t *testing.T) {
	assert.Equal(t, PairKey("MSFT", "AAPL"), PairKey("AAPL", "MSFT"))
	assert.Equal(t, "AAPL_MSFT", Pair{T1: "MSFT", T2: "AAPL"}.Key())
}

func TestTickersDeduplicates(t *testing.T) {
	pairs := []Pair{
		{T1: "AAPL", T2: "MSFT"},
		{T1: "MSFT", T2: "KO"},
	}
	assert.Equal(t, []string{"AAPL", "KO", "MSFT"}, Tickers(pairs))
}

func bars(start time.Time, step time.Duration, closes ...float64) []Bar {
	out := make([]Bar, len(closes))
	for i, c := range closes {
		out[i] = Bar{Time: start.Add(time.Duration(i) * step), Close: c}
	}
	return out
}

func TestNewFrameJoinsOnUnionAndForwardFills(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	step := 5 * time.Minute

	a := PriceSeries{Ticker: "A", Bars: bars(start, step, 10, 11, 12)}
	// B misses the middle timestamp
	b := PriceSeries{Ticker: "B", Bars: []Bar{
		{Time: start, Close: 20},
		{Time: start.Add(2 * step), Close: 22},
	}}

	f := NewFrame([]PriceSeries{a, b}, 2)
	require.Equal(t, 3, f.Len())
	require.True(t, f.Has("A"))
	require.True(t, f.Has("B"))

	assert.Equal(t, []float64{10, 11, 12}, f.Cols["A"])
	// gap forward-filled from 20
	assert.Equal(t, []float64{20, 20, 22}, f.Cols["B"])
}

func TestNewFrameLeavesLeadingGapsUndefined(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	step := 5 * time.Minute

	a := PriceSeries{Ticker: "A", Bars: bars(start, step, 10, 11)}
	b := PriceSeries{Ticker: "B", Bars: []Bar{
		{Time: start.Add(step), Close: 21},
		{Time: start.Add(2 * step), Close: 22},
	}}

	f := NewFrame([]PriceSeries{a, b}, 2)
	require.Equal(t, 3, f.Len())
	assert.True(t, math.IsNaN(f.Cols["B"][0]))
	// A's last observation carries forward to B's extra timestamp
	assert.Equal(t, 11.0, f.Cols["A"][2])
}

func TestNewFrameDropsShortSeries(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	step := 5 * time.Minute

	a := PriceSeries{Ticker: "A", Bars: bars(start, step, 10, 11, 12)}
	b := PriceSeries{Ticker: "B", Bars: bars(start, step, 20)}

	f := NewFrame([]PriceSeries{a, b}, 3)
	assert.True(t, f.Has("A"))
	assert.False(t, f.Has("B"))
}

func TestFrameLastPrice(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 30, 0, 0, time.UTC)
	f := NewFrame([]PriceSeries{
		{Ticker: "A", Bars: bars(start, time.Minute, 10, 11)},
	}, 1)

	last, ok := f.LastPrice("A")
	require.True(t, ok)
	assert.Equal(t, 11.0, last)

	_, ok = f.LastPrice("MISSING")
	assert.False(t, ok)
}
