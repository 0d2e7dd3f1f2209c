package align

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"commodity-lab/internal/domain"
)

var (
	// ErrNoSourceData is returned when a requested ticker has no observations.
	ErrNoSourceData = errors.New("source ticker has no data")
	// ErrEmptyIntersection is returned when the tickers share no common date.
	ErrEmptyIntersection = errors.New("source intersection is empty")
)

// Fetcher reads a ticker's series. Resolver satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, ticker string, since time.Time) ([]domain.Point, error)
}

// Frame is an inner-joined set of series: Columns[i][j] is the value of
// Tickers[i] on Dates[j]. Every cell holds a finite observation.
type Frame struct {
	Tickers []string
	Dates   []time.Time
	Columns [][]float64
}

// Len returns the number of aligned dates.
func (f *Frame) Len() int {
	return len(f.Dates)
}

// Bindings exposes each column as S1..Sn (in ticker order) and under its
// sanitized ticker name. Both aliases share the same backing slice.
// Positional aliases win if a sanitized name collides with one.
func (f *Frame) Bindings() map[string][]float64 {
	env := make(map[string][]float64, 2*len(f.Tickers))
	for i, t := range f.Tickers {
		name := SanitizeName(t)
		if _, taken := env[name]; !taken {
			env[name] = f.Columns[i]
		}
	}
	for i := range f.Tickers {
		env[fmt.Sprintf("S%d", i+1)] = f.Columns[i]
	}
	return env
}

// SanitizeName turns a ticker into an identifier: characters outside
// [0-9A-Za-z_] become '_', a leading digit gets a "T_" prefix and an empty
// result becomes "T".
func SanitizeName(ticker string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(ticker) {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := b.String()
	if out == "" {
		return "T"
	}
	if out[0] >= '0' && out[0] <= '9' {
		return "T_" + out
	}
	return out
}

// Aligner joins source series on date.
type Aligner struct {
	src Fetcher
}

// NewAligner creates an aligner reading through src.
func NewAligner(src Fetcher) *Aligner {
	return &Aligner{src: src}
}

// Align fetches every ticker and keeps only the dates where all of them have
// a value. Tickers are normalized but duplicates keep their position, so
// [A, A] binds both S1 and S2; each distinct ticker is fetched once.
// Duplicate dates within a series resolve to the last value.
func (a *Aligner) Align(ctx context.Context, tickers []string) (*Frame, error) {
	tickers = domain.CleanTickers(tickers)
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers requested", ErrNoSourceData)
	}

	series := make([]map[time.Time]float64, len(tickers))
	fetched := make(map[string]map[time.Time]float64, len(tickers))
	var missing []string
	for i, t := range tickers {
		if m, ok := fetched[t]; ok {
			series[i] = m
			continue
		}
		points, err := a.src.Fetch(ctx, t, time.Time{})
		if err != nil {
			return nil, err
		}
		m := make(map[time.Time]float64, len(points))
		for _, p := range points {
			if isMissing(p.Value) {
				continue
			}
			m[domain.Day(p.Date)] = p.Value
		}
		if len(m) == 0 {
			missing = append(missing, t)
		}
		fetched[t] = m
		series[i] = m
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoSourceData, strings.Join(missing, ", "))
	}

	// Intersect starting from the shortest series.
	shortest := 0
	for i := range series {
		if len(series[i]) < len(series[shortest]) {
			shortest = i
		}
	}
	dates := make([]time.Time, 0, len(series[shortest]))
	for d := range series[shortest] {
		common := true
		for i := range series {
			if _, ok := series[i][d]; !ok {
				common = false
				break
			}
		}
		if common {
			dates = append(dates, d)
		}
	}
	if len(dates) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyIntersection, strings.Join(tickers, ", "))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	cols := make([][]float64, len(tickers))
	for i := range tickers {
		col := make([]float64, len(dates))
		for j, d := range dates {
			col[j] = series[i][d]
		}
		cols[i] = col
	}

	return &Frame{Tickers: tickers, Dates: dates, Columns: cols}, nil
}

func isMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
