package usecase

import (
	"math"

	"PairTrader/internal/domain/models"
)

// ZScore computes the current z-score of the price spread t1-t2 over the
// trailing window of the frame. The mean and sample standard deviation
// are taken over the last `window` spread points, including the latest.
//
// Returns false when either column is missing, fewer than `window` rows
// are available, any point in the window is undefined, or the window has
// zero variance.
func ZScore(f *models.Frame, t1, t2 string, window int) (float64, bool) {
	if f == nil || window < 2 {
		return 0, false
	}
	c1, ok1 := f.Cols[t1]
	c2, ok2 := f.Cols[t2]
	if !ok1 || !ok2 || f.Len() < window {
		return 0, false
	}

	n := f.Len()
	spread := make([]float64, window)
	for i := 0; i < window; i++ {
		a := c1[n-window+i]
		b := c2[n-window+i]
		if math.IsNaN(a) || math.IsNaN(b) {
			return 0, false
		}
		spread[i] = a - b
	}

	var sum float64
	for _, v := range spread {
		sum += v
	}
	mean := sum / float64(window)

	var ss float64
	for _, v := range spread {
		d := v - mean
		ss += d * d
	}
	std := math.Sqrt(ss / float64(window-1))
	if std == 0 || math.IsNaN(std) {
		return 0, false
	}

	return (spread[window-1] - mean) / std, true
}
