package expr

import (
	"fmt"
	"math"
)

// Env binds variable names to series. All series share one length.
type Env map[string][]float64

// value is either a series (vec != nil) or a scalar.
type value struct {
	vec    []float64
	scalar float64
}

func scalar(v float64) value   { return value{scalar: v} }
func vector(v []float64) value { return value{vec: v} }
func (v value) isScalar() bool { return v.vec == nil }

func (v value) at(i int) float64 {
	if v.vec == nil {
		return v.scalar
	}
	return v.vec[i]
}

// series returns v as a series of length n, broadcasting a scalar.
func (v value) series(n int) []float64 {
	if v.vec != nil {
		return v.vec
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = v.scalar
	}
	return out
}

func (v value) mapFloat(f func(float64) float64) value {
	if v.vec == nil {
		return scalar(f(v.scalar))
	}
	out := make([]float64, len(v.vec))
	for i, x := range v.vec {
		out[i] = f(x)
	}
	return vector(out)
}

func truthy(x float64) bool {
	return !math.IsNaN(x) && x != 0
}

func boolFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Eval interprets root over env and returns a series of length n. NaN marks a
// missing value. A scalar result is broadcast to all n positions.
// Eval does not check the allow-list; use Program.Eval for untrusted input.
func Eval(root Node, env Env, n int) ([]float64, error) {
	for name, s := range env {
		if len(s) != n {
			return nil, fmt.Errorf("%w: series %s has %d values, want %d", ErrEvaluation, name, len(s), n)
		}
	}
	e := &evaluator{env: env, n: n}
	v, err := e.eval(root)
	if err != nil {
		return nil, err
	}
	out := v.series(n)
	if !v.isScalar() {
		out = append([]float64(nil), out...)
	}
	return out, nil
}

type evaluator struct {
	env Env
	n   int
}

func (e *evaluator) eval(node Node) (value, error) {
	switch node := node.(type) {
	case *Number:
		return scalar(node.Value), nil
	case *Bool:
		return scalar(boolFloat(node.Value)), nil
	case *Name:
		s, ok := e.env[node.ID]
		if !ok {
			return value{}, errorf(ErrUnknownVariable, node.At, "%s", node.ID)
		}
		return vector(s), nil
	case *Unary:
		return e.evalUnary(node)
	case *Binary:
		return e.evalBinary(node)
	case *Compare:
		return e.evalCompare(node)
	case *Logical:
		return e.evalLogical(node)
	case *Call:
		return e.evalCall(node)
	}
	return value{}, errorf(ErrDisallowedSyntax, node.Pos(), "cannot evaluate %T", node)
}

func (e *evaluator) evalUnary(u *Unary) (value, error) {
	x, err := e.eval(u.X)
	if err != nil {
		return value{}, err
	}
	switch u.Op {
	case "-":
		return x.mapFloat(func(v float64) float64 { return -v }), nil
	case "+":
		return x, nil
	}
	return value{}, errorf(ErrDisallowedSyntax, u.At, "unary operator %q", u.Op)
}

func (e *evaluator) evalBinary(b *Binary) (value, error) {
	x, err := e.eval(b.X)
	if err != nil {
		return value{}, err
	}
	y, err := e.eval(b.Y)
	if err != nil {
		return value{}, err
	}
	var op func(a, b float64) float64
	switch b.Op {
	case "+":
		op = func(a, b float64) float64 { return a + b }
	case "-":
		op = func(a, b float64) float64 { return a - b }
	case "*":
		op = func(a, b float64) float64 { return a * b }
	case "/":
		op = func(a, b float64) float64 { return a / b }
	case "%":
		op = pyMod
	case "**":
		op = math.Pow
	default:
		return value{}, errorf(ErrDisallowedSyntax, b.At, "operator %q", b.Op)
	}
	if x.isScalar() && y.isScalar() && (b.Op == "/" || b.Op == "%") && y.scalar == 0 {
		return value{}, errorf(ErrEvaluation, b.At, "division by zero")
	}
	return e.zip(x, y, op), nil
}

// pyMod is floored modulo: the result takes the sign of the divisor.
func pyMod(a, b float64) float64 {
	if b == 0 {
		return math.NaN()
	}
	r := math.Mod(a, b)
	if r != 0 && (r < 0) != (b < 0) {
		r += b
	}
	return r
}

func (e *evaluator) zip(x, y value, op func(a, b float64) float64) value {
	if x.isScalar() && y.isScalar() {
		return scalar(op(x.scalar, y.scalar))
	}
	out := make([]float64, e.n)
	for i := range out {
		out[i] = op(x.at(i), y.at(i))
	}
	return vector(out)
}

func compare(op string, a, b float64) bool {
	switch op {
	case "==":
		return a == b
	case "!=":
		return a != b
	case "<":
		return a < b
	case "<=":
		return a <= b
	case ">":
		return a > b
	case ">=":
		return a >= b
	}
	return false
}

// evalCompare chains like Python: a < b < c means a < b and b < c.
func (e *evaluator) evalCompare(c *Compare) (value, error) {
	left, err := e.eval(c.X)
	if err != nil {
		return value{}, err
	}
	var acc value
	for i, op := range c.Ops {
		if !allowedCompare[op] {
			return value{}, errorf(ErrDisallowedSyntax, c.At, "comparison %q", op)
		}
		right, err := e.eval(c.Ys[i])
		if err != nil {
			return value{}, err
		}
		op := op
		step := e.zip(left, right, func(a, b float64) float64 { return boolFloat(compare(op, a, b)) })
		if i == 0 {
			acc = step
		} else {
			acc = e.zip(acc, step, func(a, b float64) float64 { return boolFloat(truthy(a) && truthy(b)) })
		}
		left = right
	}
	return acc, nil
}

// evalLogical evaluates and/or element-wise to 1 or 0. Missing counts as false.
func (e *evaluator) evalLogical(l *Logical) (value, error) {
	var acc value
	for i, x := range l.Xs {
		v, err := e.eval(x)
		if err != nil {
			return value{}, err
		}
		if i == 0 {
			acc = v.mapFloat(func(a float64) float64 { return boolFloat(truthy(a)) })
			continue
		}
		if l.Op == "and" {
			acc = e.zip(acc, v, func(a, b float64) float64 { return boolFloat(truthy(a) && truthy(b)) })
		} else {
			acc = e.zip(acc, v, func(a, b float64) float64 { return boolFloat(truthy(a) || truthy(b)) })
		}
	}
	return acc, nil
}

func (e *evaluator) evalCall(c *Call) (value, error) {
	name, ok := c.Func.(*Name)
	if !ok {
		return value{}, errorf(ErrDisallowedFunction, c.At, "only named functions may be called")
	}
	fn, ok := functions[name.ID]
	if !ok {
		return value{}, errorf(ErrDisallowedFunction, c.At, "%s is not an allowed function", name.ID)
	}
	if len(c.Args) < fn.minArgs || len(c.Args) > fn.maxArgs {
		return value{}, errorf(ErrEvaluation, c.At, "%s takes %s, got %d", name.ID, fn.arity(), len(c.Args))
	}
	args := make([]value, len(c.Args))
	for i, a := range c.Args {
		v, err := e.eval(a)
		if err != nil {
			return value{}, err
		}
		args[i] = v
	}
	out, err := fn.call(args, e.n)
	if err != nil {
		return value{}, fmt.Errorf("%s: %w", name.ID, err)
	}
	return out, nil
}
