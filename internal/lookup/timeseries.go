package lookup

import (
	"math"
	"time"

	"commodity-lab/internal/domain"
)

// AsOfBackward aligns points onto dates: for each date D the result holds the
// most recent point with date <= D. Dates before the first matched point are
// then back-filled once with the first matched value. Positions that remain
// unmatched are NaN (no point at or before any date).
// Both dates and points must be sorted ASC.
func AsOfBackward(dates []time.Time, points []domain.Point) []float64 {
	out := make([]float64, len(dates))
	j := -1
	firstMatched := -1
	for i, d := range dates {
		for j+1 < len(points) && !points[j+1].Date.After(d) {
			j++
		}
		if j < 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = points[j].Value
		if firstMatched < 0 {
			firstMatched = i
		}
	}

	if firstMatched > 0 {
		for i := 0; i < firstMatched; i++ {
			out[i] = out[firstMatched]
		}
	}
	return out
}
