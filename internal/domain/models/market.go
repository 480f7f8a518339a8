package models

import (
	"math"
	"sort"
	"strings"
	"time"
)

// Pair is an unordered couple of ticker symbols.
type Pair struct {
	T1 string `json:"t1"`
	T2 string `json:"t2"`
}

// Key returns the canonical pair key: symbols sorted and joined with "_",
// so (A,B) and (B,A) address the same trade slot.
func (p Pair) Key() string {
	return PairKey(p.T1, p.T2)
}

// PairKey builds the canonical key for two symbols.
func PairKey(t1, t2 string) string {
	s := []string{t1, t2}
	sort.Strings(s)
	return strings.Join(s, "_")
}

// Tickers returns the unique set of tickers referenced by pairs.
func Tickers(pairs []Pair) []string {
	seen := make(map[string]bool, len(pairs)*2)
	out := make([]string, 0, len(pairs)*2)
	for _, p := range pairs {
		for _, t := range []string{p.T1, p.T2} {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Bar is a single close-price observation.
type Bar struct {
	Time  time.Time `json:"t"`
	Close float64   `json:"c"`
}

// PriceSeries holds timestamp-ordered close prices for one ticker.
type PriceSeries struct {
	Ticker string `json:"ticker"`
	Bars   []Bar  `json:"bars"`
}

// Quote is a best bid/ask snapshot for one symbol.
type Quote struct {
	Symbol string  `json:"symbol"`
	Bid    float64 `json:"bid"`
	Ask    float64 `json:"ask"`
}

// Frame is a set of price series aligned on a shared timestamp index.
// Missing points before a ticker's first observation are NaN; gaps after
// it are forward-filled during construction.
type Frame struct {
	Times []time.Time
	Cols  map[string][]float64
}

// NewFrame joins per-ticker series on the union of their timestamps and
// forward-fills each column. Tickers with fewer than minSamples raw
// observations are dropped.
func NewFrame(series []PriceSeries, minSamples int) *Frame {
	usable := make([]PriceSeries, 0, len(series))
	stamps := make(map[int64]bool)
	for _, s := range series {
		if len(s.Bars) < minSamples {
			continue
		}
		usable = append(usable, s)
		for _, b := range s.Bars {
			stamps[b.Time.UnixMilli()] = true
		}
	}
	if len(usable) == 0 {
		return &Frame{Cols: map[string][]float64{}}
	}

	index := make([]int64, 0, len(stamps))
	for ts := range stamps {
		index = append(index, ts)
	}
	sort.Slice(index, func(i, j int) bool { return index[i] < index[j] })

	times := make([]time.Time, len(index))
	pos := make(map[int64]int, len(index))
	for i, ts := range index {
		times[i] = time.UnixMilli(ts).UTC()
		pos[ts] = i
	}

	cols := make(map[string][]float64, len(usable))
	for _, s := range usable {
		col := make([]float64, len(index))
		for i := range col {
			col[i] = math.NaN()
		}
		for _, b := range s.Bars {
			col[pos[b.Time.UnixMilli()]] = b.Close
		}
		// forward fill
		last := math.NaN()
		for i := range col {
			if math.IsNaN(col[i]) {
				col[i] = last
			} else {
				last = col[i]
			}
		}
		cols[s.Ticker] = col
	}

	return &Frame{Times: times, Cols: cols}
}

// Len returns the number of rows in the frame.
func (f *Frame) Len() int {
	return len(f.Times)
}

// Has reports whether the frame carries a usable column for ticker.
func (f *Frame) Has(ticker string) bool {
	_, ok := f.Cols[ticker]
	return ok
}

// LastPrice returns the most recent price of ticker, false when the
// column is absent or still undefined at the end of the index.
func (f *Frame) LastPrice(ticker string) (float64, bool) {
	col, ok := f.Cols[ticker]
	if !ok || len(col) == 0 {
		return 0, false
	}
	v := col[len(col)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
