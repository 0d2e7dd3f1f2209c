package expr

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

type function struct {
	minArgs int
	maxArgs int
	call    func(args []value, n int) (value, error)
}

func (f function) arity() string {
	if f.minArgs == f.maxArgs {
		return fmt.Sprintf("%d argument(s)", f.minArgs)
	}
	return fmt.Sprintf("%d to %d arguments", f.minArgs, f.maxArgs)
}

const defaultZScoreWindow = 20

var functions map[string]function

func init() {
	functions = map[string]function{
		"abs":          {1, 1, mapUnary(math.Abs)},
		"log":          {1, 1, mapUnary(safeLog)},
		"sqrt":         {1, 1, mapUnary(safeSqrt)},
		"exp":          {1, 1, mapUnary(math.Exp)},
		"clip":         {1, 3, callClip},
		"where":        {3, 3, callWhere},
		"lag":          {2, 2, callLag},
		"rolling_mean": {2, 2, rollingCall(stat.Mean)},
		"rolling_std":  {2, 2, rollingCall(sampleStdDev)},
		"pct_change":   {1, 2, callPctChange},
		"zscore":       {1, 2, callZScore},
	}
}

// Allowed returns the sorted names of the callable functions.
func Allowed() []string {
	out := make([]string, 0, len(functions))
	for name := range functions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func safeLog(x float64) float64 {
	if x <= 0 {
		return math.NaN()
	}
	return math.Log(x)
}

func safeSqrt(x float64) float64 {
	if x < 0 {
		return math.NaN()
	}
	return math.Sqrt(x)
}

func sampleStdDev(x, weights []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.StdDev(x, weights)
}

func mapUnary(f func(float64) float64) func([]value, int) (value, error) {
	return func(args []value, n int) (value, error) {
		return args[0].mapFloat(f), nil
	}
}

func callClip(args []value, n int) (value, error) {
	x := args[0].series(n)
	var lo, hi []float64
	if len(args) > 1 {
		lo = args[1].series(n)
	}
	if len(args) > 2 {
		hi = args[2].series(n)
	}
	out := make([]float64, n)
	for i, v := range x {
		if lo != nil && !math.IsNaN(lo[i]) && v < lo[i] {
			v = lo[i]
		}
		if hi != nil && !math.IsNaN(hi[i]) && v > hi[i] {
			v = hi[i]
		}
		out[i] = v
	}
	return vector(out), nil
}

func callWhere(args []value, n int) (value, error) {
	cond := args[0].series(n)
	a := args[1].series(n)
	b := args[2].series(n)
	out := make([]float64, n)
	for i := range out {
		if truthy(cond[i]) {
			out[i] = a[i]
		} else {
			out[i] = b[i]
		}
	}
	return vector(out), nil
}

func callLag(args []value, n int) (value, error) {
	periods, err := intArg("lag", args[1])
	if err != nil {
		return value{}, err
	}
	return vector(shift(args[0].series(n), periods)), nil
}

func callPctChange(args []value, n int) (value, error) {
	periods := 1
	if len(args) > 1 {
		p, err := intArg("pct_change", args[1])
		if err != nil {
			return value{}, err
		}
		periods = p
	}
	x := args[0].series(n)
	prev := shift(x, periods)
	out := make([]float64, n)
	for i := range out {
		out[i] = x[i]/prev[i] - 1
	}
	return vector(out), nil
}

func callZScore(args []value, n int) (value, error) {
	window := defaultZScoreWindow
	if len(args) > 1 {
		w, err := windowArg("zscore", args[1])
		if err != nil {
			return value{}, err
		}
		window = w
	}
	x := args[0].series(n)
	mean := rolling(x, window, stat.Mean)
	std := rolling(x, window, sampleStdDev)
	out := make([]float64, n)
	for i := range out {
		out[i] = (x[i] - mean[i]) / std[i]
	}
	return vector(out), nil
}

func rollingCall(agg func(x, weights []float64) float64) func([]value, int) (value, error) {
	return func(args []value, n int) (value, error) {
		window, err := windowArg("rolling window", args[1])
		if err != nil {
			return value{}, err
		}
		return vector(rolling(args[0].series(n), window, agg)), nil
	}
}

// rolling applies agg over each trailing window of width w. A window that is
// not full or holds a missing value yields a missing value.
func rolling(x []float64, w int, agg func(x, weights []float64) float64) []float64 {
	out := make([]float64, len(x))
	missing := 0
	for i := range x {
		if math.IsNaN(x[i]) {
			missing++
		}
		if i >= w && math.IsNaN(x[i-w]) {
			missing--
		}
		if i+1 < w || missing > 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = agg(x[i+1-w:i+1], nil)
	}
	return out
}

// shift moves values forward by periods positions; negative periods move them back.
func shift(x []float64, periods int) []float64 {
	out := make([]float64, len(x))
	for i := range out {
		j := i - periods
		if j < 0 || j >= len(x) {
			out[i] = math.NaN()
			continue
		}
		out[i] = x[j]
	}
	return out
}

func intArg(name string, v value) (int, error) {
	if v.vec != nil {
		return 0, fmt.Errorf("%w: %s period must be a number, not a series", ErrEvaluation, name)
	}
	if math.IsNaN(v.scalar) || math.IsInf(v.scalar, 0) {
		return 0, fmt.Errorf("%w: %s period must be finite", ErrEvaluation, name)
	}
	return int(v.scalar), nil
}

func windowArg(name string, v value) (int, error) {
	w, err := intArg(name, v)
	if err != nil {
		return 0, err
	}
	if w < 1 {
		return 0, fmt.Errorf("%w: %s must be at least 1, got %d", ErrEvaluation, name, w)
	}
	return w, nil
}
