package expr

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeDayEnv() Env {
	s1 := []float64{1, 2, 3}
	s2 := []float64{2, 4, 6}
	return Env{"S1": s1, "S2": s2, "A": s1, "B": s2}
}

func evalString(t *testing.T, src string, env Env, n int) []float64 {
	t.Helper()
	prog, err := Compile(src)
	require.NoError(t, err, "compile %q", src)
	out, err := prog.Eval(env, n)
	require.NoError(t, err, "eval %q", src)
	return out
}

func TestValidate_Allowed(t *testing.T) {
	exprs := []string{
		"S1 / S2",
		"S1 + S2 * 2 - 1",
		"-S1",
		"+S1",
		"abs(S1 - S2)",
		"log(S1) + sqrt(S2) + exp(S1)",
		"clip(S1, 0)",
		"clip(S1, 0, 10)",
		"where(S1 > S2, S1, S2)",
		"lag(S1, 1)",
		"rolling_mean((S1 + S2), 2)",
		"rolling_std(S1, 5)",
		"pct_change(S1)",
		"pct_change(S1, 5)",
		"zscore(S1)",
		"zscore(S1, 10)",
		"S1 ** 2 % 3",
		"S1 >= 1 and S2 != 0 or S1 == 2",
		"1 < S1 <= 3",
		"1e-3 * S1",
		"0x10 + S1",
		"True",
		"  S1  # trailing comment",
	}
	for _, src := range exprs {
		assert.NoError(t, Validate(src), src)
	}
}

func TestValidate_Rejected(t *testing.T) {
	tests := []struct {
		src  string
		want error
	}{
		{"S1.real", ErrDisallowedSyntax},
		{"S1.mean()", ErrDisallowedFunction},
		{"__import__('os').system('ls')", ErrDisallowedFunction},
		{"eval('1+1')", ErrDisallowedFunction},
		{"max(S1, S2)", ErrDisallowedFunction},
		{"(lambda: 1)()", ErrDisallowedFunction},
		{"[x for x in S1]", ErrDisallowedSyntax},
		{"abs(x for x in S1)", ErrDisallowedSyntax},
		{"{k: 1 for k in S1}", ErrDisallowedSyntax},
		{"'abc'", ErrDisallowedSyntax},
		{"S1 + 'abc'", ErrDisallowedSyntax},
		{"lambda x: x", ErrDisallowedSyntax},
		{"S1[0]", ErrDisallowedSyntax},
		{"S1[1:2]", ErrDisallowedSyntax},
		{"pct_change(S1, periods=2)", ErrDisallowedSyntax},
		{"abs(*S1)", ErrDisallowedSyntax},
		{"S1 if S2 else 0", ErrDisallowedSyntax},
		{"S1 // 2", ErrDisallowedSyntax},
		{"S1 & S2", ErrDisallowedSyntax},
		{"S1 @ S2", ErrDisallowedSyntax},
		{"~S1", ErrDisallowedSyntax},
		{"not S1", ErrDisallowedSyntax},
		{"S1 in S2", ErrDisallowedSyntax},
		{"S1 is None", ErrDisallowedSyntax},
		{"(S1, S2)", ErrDisallowedSyntax},
		{"{}", ErrDisallowedSyntax},
		{"[1, 2]", ErrDisallowedSyntax},
		{"1j * S1", ErrDisallowedSyntax},
		{"abs(S1, S2)", ErrDisallowedSyntax},
		{"where(S1, S2)", ErrDisallowedSyntax},
		{"", ErrEmptyExpression},
		{"   ", ErrEmptyExpression},
		{"S1 +", ErrSyntax},
		{"(S1", ErrSyntax},
		{"S1 S2", ErrSyntax},
		{"'unterminated", ErrSyntax},
		{"S1 = 2", ErrSyntax},
	}
	for _, tt := range tests {
		err := Validate(tt.src)
		require.Error(t, err, tt.src)
		assert.True(t, errors.Is(err, tt.want), "%q: got %v, want %v", tt.src, err, tt.want)
	}
}

func TestValidate_ErrorPosition(t *testing.T) {
	err := Validate("S1 + S1.real")
	var exprErr *Error
	require.True(t, errors.As(err, &exprErr))
	assert.Equal(t, 7, exprErr.Pos)
}

func TestEval_Ratio(t *testing.T) {
	out := evalString(t, "S1/S2", threeDayEnv(), 3)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, out)

	out = evalString(t, "A/B", threeDayEnv(), 3)
	assert.Equal(t, []float64{0.5, 0.5, 0.5}, out)
}

func TestEval_RollingMeanOfSum(t *testing.T) {
	env := Env{"S1": {1, 2, 3}, "S2": {10, 20, 30}}
	out := evalString(t, "rolling_mean((S1+S2), 2)", env, 3)
	require.Len(t, out, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.Equal(t, 16.5, out[1])
	assert.Equal(t, 27.5, out[2])
}

func TestEval_RollingStdIsSample(t *testing.T) {
	out := evalString(t, "rolling_std(S1, 2)", threeDayEnv(), 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, math.Sqrt(0.5), out[1], 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), out[2], 1e-12)

	out = evalString(t, "rolling_std(S1, 1)", threeDayEnv(), 3)
	for _, v := range out {
		assert.True(t, math.IsNaN(v))
	}
}

func TestEval_RollingSkipsWindowsWithMissing(t *testing.T) {
	env := Env{"X": {1, math.NaN(), 3, 4, 5}}
	out := evalString(t, "rolling_mean(X, 2)", env, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.True(t, math.IsNaN(out[2]))
	assert.Equal(t, 3.5, out[3])
	assert.Equal(t, 4.5, out[4])
}

func TestEval_DomainErrorsBecomeMissing(t *testing.T) {
	env := Env{"X": {-1, 0, math.E}}
	out := evalString(t, "log(X)", env, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 1.0, out[2], 1e-12)

	out = evalString(t, "sqrt(X)", env, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.Equal(t, 0.0, out[1])
}

func TestEval_Functions(t *testing.T) {
	env := threeDayEnv()
	nan := math.NaN()
	tests := []struct {
		src  string
		want []float64
	}{
		{"abs(S1 - S2)", []float64{1, 2, 3}},
		{"clip(S1, 1.5, 2.5)", []float64{1.5, 2, 2.5}},
		{"clip(S1, 2)", []float64{2, 2, 3}},
		{"where(S1 > 1, S1, 0)", []float64{0, 2, 3}},
		{"lag(S1, 1)", []float64{nan, 1, 2}},
		{"lag(S1, -1)", []float64{2, 3, nan}},
		{"pct_change(S2)", []float64{nan, 1, 0.5}},
		{"pct_change(S1, 2)", []float64{nan, nan, 2}},
		{"zscore(S1, 3)", []float64{nan, nan, 1}},
		{"zscore(S1)", []float64{nan, nan, nan}},
	}
	for _, tt := range tests {
		out := evalString(t, tt.src, env, 3)
		require.Len(t, out, len(tt.want), tt.src)
		for i := range tt.want {
			if math.IsNaN(tt.want[i]) {
				assert.True(t, math.IsNaN(out[i]), "%s[%d] = %v", tt.src, i, out[i])
				continue
			}
			assert.InDelta(t, tt.want[i], out[i], 1e-12, "%s[%d]", tt.src, i)
		}
	}
}

func TestEval_Operators(t *testing.T) {
	env := threeDayEnv()
	tests := []struct {
		src  string
		want []float64
	}{
		{"S1 ** 2", []float64{1, 4, 9}},
		{"-2 ** 2 + S1 * 0", []float64{-4, -4, -4}},
		{"2 ** 3 ** 0 + S1 * 0", []float64{2, 2, 2}},
		{"S1 - S2 - 1", []float64{-2, -3, -4}},
		{"-7 % 3 + S1 * 0", []float64{2, 2, 2}},
		{"S1 % -2", []float64{-1, 0, -1}},
		{"S1 > 1", []float64{0, 1, 1}},
		{"S1 == 2", []float64{0, 1, 0}},
		{"1 < S1 < 3", []float64{0, 1, 0}},
		{"S1 > 1 and S1 < 3", []float64{0, 1, 0}},
		{"S1 < 2 or S1 > 2", []float64{1, 0, 1}},
		{"True + S1", []float64{2, 3, 4}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, evalString(t, tt.src, env, 3), tt.src)
	}
}

func TestEval_ScalarBroadcast(t *testing.T) {
	out := evalString(t, "1 + 2", threeDayEnv(), 3)
	assert.Equal(t, []float64{3, 3, 3}, out)
}

func TestEval_NaNComparisons(t *testing.T) {
	env := Env{"X": {math.NaN(), 1}}
	assert.Equal(t, []float64{0, 1}, evalString(t, "X == X", env, 2))
	assert.Equal(t, []float64{1, 0}, evalString(t, "X != X", env, 2))
}

func TestEval_DivisionByZeroSeries(t *testing.T) {
	env := Env{"X": {1, 0, -1}}
	out := evalString(t, "X / 0", env, 3)
	assert.True(t, math.IsInf(out[0], 1))
	assert.True(t, math.IsNaN(out[1]))
	assert.True(t, math.IsInf(out[2], -1))
}

func TestEval_Errors(t *testing.T) {
	env := threeDayEnv()
	tests := []struct {
		src  string
		want error
	}{
		{"S3 + 1", ErrUnknownVariable},
		{"lag(S1, S2)", ErrEvaluation},
		{"rolling_mean(S1, 0)", ErrEvaluation},
		{"rolling_std(S1, -3)", ErrEvaluation},
		{"zscore(S1, 0)", ErrEvaluation},
		{"1 / 0", ErrEvaluation},
		{"S1 + 5 % 0", ErrEvaluation},
	}
	for _, tt := range tests {
		prog, err := Compile(tt.src)
		require.NoError(t, err, tt.src)
		_, err = prog.Eval(env, 3)
		assert.True(t, errors.Is(err, tt.want), "%q: got %v, want %v", tt.src, err, tt.want)
	}
}

func TestEval_LengthMismatch(t *testing.T) {
	_, err := Eval(&Name{ID: "S1"}, Env{"S1": {1, 2}}, 3)
	assert.True(t, errors.Is(err, ErrEvaluation))
}

func TestProgram_EvalRechecksTree(t *testing.T) {
	prog, err := Compile("S1 + 1")
	require.NoError(t, err)

	// a tree altered after compilation must not run
	prog.root = &Attribute{X: &Name{ID: "S1"}, Name: "real"}
	_, err = prog.Eval(threeDayEnv(), 3)
	assert.True(t, errors.Is(err, ErrDisallowedSyntax))
}

func TestProgram_Names(t *testing.T) {
	prog, err := Compile("rolling_mean(S2 + gold, 3) / S1")
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S2", "gold"}, prog.Names())
}

func TestAllowed(t *testing.T) {
	assert.Equal(t, []string{
		"abs", "clip", "exp", "lag", "log", "pct_change",
		"rolling_mean", "rolling_std", "sqrt", "where", "zscore",
	}, Allowed())
}
