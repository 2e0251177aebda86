package efit

// A thin wrapper over gonum's optimizers that adds linear inequality
// constraints, and turns "didn't converge" into an error.

import(
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/abworrall/hdrp-calibrate/pkg/emath"
)

var ErrOptimizationFailure = errors.New("optimization failed")

// A FailureError carries what the minimizer had to say.
type FailureError struct {
	Status optimize.Status
	Reason string
	Err    error  // from gonum, if any
}

func (e *FailureError)Error() string {
	str := fmt.Sprintf("%v: status %v", ErrOptimizationFailure, e.Status)
	if e.Reason != "" { str += ", " + e.Reason }
	if e.Err != nil { str += fmt.Sprintf(", %v", e.Err) }
	return str
}

func (e *FailureError)Unwrap() error { return ErrOptimizationFailure }

// A LinearConstraint requires that A . x >= Lower.
type LinearConstraint struct {
	A     []float64
	Lower float64
}

// NonNegative constrains x[idx] >= 0, in a problem with n parameters.
func NonNegative(n, idx int) LinearConstraint {
	a := make([]float64, n)
	a[idx] = 1
	return LinearConstraint{A: a, Lower: 0}
}

// Violation is how far x falls short of the constraint; zero if it holds.
func (lc LinearConstraint)Violation(x []float64) float64 {
	dot := 0.0
	for i := range lc.A {
		dot += lc.A[i] * x[i]
	}
	return math.Max(0, lc.Lower - dot)
}

// bound returns the parameter the constraint bounds, if it involves only one.
func (lc LinearConstraint)bound() (int, bool) {
	idx := -1
	for i, a := range lc.A {
		if a != 0 {
			if idx >= 0 { return -1, false }
			idx = i
		}
	}
	return idx, idx >= 0
}

// If the constraint is a bound on a single parameter, snap pulls x back
// onto it. It returns the index of that parameter if the bound is active
// (x had to be moved, or sits within activeSlack of the boundary), else -1.
func (lc LinearConstraint)snap(x []float64) int {
	idx, ok := lc.bound()
	if !ok {
		return -1
	}
	if lc.A[idx]*x[idx] < lc.Lower {
		x[idx] = lc.Lower / lc.A[idx]
		return idx
	}
	if lc.A[idx]*x[idx] - lc.Lower <= activeSlack * math.Max(1, math.Abs(lc.Lower)) {
		return idx
	}
	return -1
}

type Problem struct {
	Func        func(x []float64) float64
	Grad        func(grad, x []float64) // optional; only used by lbfgs, on unconstrained problems
	Constraints []LinearConstraint
}

type Settings struct {
	Method         string   // "neldermead" (default), or "lbfgs" (numerical gradients)
	MaxEvaluations int      // of Func; 0 means no limit
	Tolerance      float64  // converged once improvements stay below this ...
	Stall          int      // ... for this many iterations
	Penalty        float64  // weight on constraint violation
	GradTolerance  float64  // lbfgs stops once the gradient norm is below this
}

func DefaultSettings() Settings {
	return Settings{
		Method:         "neldermead",
		MaxEvaluations: 400000,
		Tolerance:      1e-12,
		Stall:          300,
		Penalty:        1e6,
		GradTolerance:  1e-9,
	}
}

type Result struct {
	X           []float64
	F           float64
	Status      optimize.Status
	Evaluations int
	Iterations  int
}

func (r Result)String() string {
	return fmt.Sprintf("f=%.6g after %d evals (%d iters), %v", r.F, r.Evaluations, r.Iterations, r.Status)
}

// Functions that blow up (NaN, Inf) are reported to the minimizer as this
const badValue = 1e100

// A bound counts as active once a parameter is this close to it.
const activeSlack = 1e-6

// The most times Minimize will re-run with active bounds held fixed.
const maxPolishRounds = 4

// Minimize finds a local minimum of p.Func, starting at x0, subject to
// p.Constraints. Constraints are enforced with an exact (L1) penalty;
// single-parameter bounds are then snapped exactly onto the boundary.
//
// Nelder-Mead stalls on the penalty's kink at a boundary. Once some bounds
// are active, the parameters they hold are fixed there and the rest are
// minimized again, while that keeps improving f.
func Minimize(p Problem, x0 []float64, s Settings) (Result, error) {
	for i, lc := range p.Constraints {
		if len(lc.A) != len(x0) {
			return Result{}, fmt.Errorf("constraint %d has %d coefficients, want %d", i, len(lc.A), len(x0))
		}
	}
	switch s.Method {
	case "", "neldermead", "lbfgs":
	default:
		return Result{}, fmt.Errorf("no optimization method named '%s'", s.Method)
	}

	free := make([]int, len(x0))
	for i := range free { free[i] = i }

	ret := Result{X: append([]float64{}, x0...), F: math.Inf(1)}
	for round := 0; round < maxPolishRounds; round++ {
		res, err := minimizeOver(p, ret.X, free, s)
		if err != nil {
			if round == 0 {
				return Result{}, err
			}
			break // keep what the earlier round found
		}
		ret.Evaluations += res.Stats.FuncEvaluations
		ret.Iterations += res.Stats.MajorIterations

		x := expand(ret.X, free, res.X)
		held := map[int]bool{}
		for _, lc := range p.Constraints {
			if idx := lc.snap(x); idx >= 0 {
				held[idx] = true
			}
		}

		f := p.Func(x)
		if round > 0 && !(f <= ret.F) {
			break
		}
		ret.X, ret.F, ret.Status = x, f, res.Status

		stillFree := []int{}
		for _, i := range free {
			if !held[i] { stillFree = append(stillFree, i) }
		}
		if len(stillFree) == len(free) || len(stillFree) == 0 {
			break
		}
		free = stillFree
	}

	for i, lc := range p.Constraints {
		if v := lc.Violation(ret.X); v > 1e-9 {
			return Result{}, &FailureError{Status: ret.Status, Reason: fmt.Sprintf("constraint %d violated by %g", i, v)}
		}
	}
	if !emath.IsFinite(ret.F) {
		return Result{}, &FailureError{Status: ret.Status, Reason: fmt.Sprintf("objective is %v at the solution", ret.F)}
	}

	return ret, nil
}

// expand copies x, overwriting the free parameters with the values in y.
func expand(x []float64, free []int, y []float64) []float64 {
	ret := append([]float64{}, x...)
	for j, i := range free {
		ret[i] = y[j]
	}
	return ret
}

// minimizeOver runs gonum over the parameters listed in free, holding the
// rest of x where they are.
func minimizeOver(p Problem, x []float64, free []int, s Settings) (*optimize.Result, error) {
	penalized := func(y []float64) float64 {
		full := expand(x, free, y)
		f := p.Func(full)
		if !emath.IsFinite(f) {
			return badValue
		}
		for _, lc := range p.Constraints {
			f += s.Penalty * lc.Violation(full)
		}
		return f
	}

	prob := optimize.Problem{Func: penalized}
	var method optimize.Method

	if s.Method == "lbfgs" {
		if p.Grad != nil && len(p.Constraints) == 0 {
			fullGrad := make([]float64, len(x))
			prob.Grad = func(grad, y []float64) {
				p.Grad(fullGrad, expand(x, free, y))
				for j, i := range free {
					grad[j] = fullGrad[i]
				}
			}
		} else {
			prob.Grad = func(grad, y []float64) {
				fd.Gradient(grad, penalized, y, &fd.Settings{Formula: fd.Central})
			}
		}
		method = &optimize.LBFGS{}
	} else {
		method = &optimize.NelderMead{}
	}

	settings := &optimize.Settings{
		FuncEvaluations:   s.MaxEvaluations,
		GradientThreshold: s.GradTolerance,
		Converger: &optimize.FunctionConverge{
			Absolute:   s.Tolerance,
			Relative:   s.Tolerance,
			Iterations: s.Stall,
		},
	}

	y0 := make([]float64, len(free))
	for j, i := range free {
		y0[j] = x[i]
	}

	res, err := optimize.Minimize(prob, y0, settings, method)
	if res == nil {
		return nil, &FailureError{Status: optimize.Failure, Err: err}
	}
	if err != nil {
		return nil, &FailureError{Status: res.Status, Err: err}
	}

	switch res.Status {
	case optimize.Failure, optimize.IterationLimit, optimize.RuntimeLimit,
		optimize.FunctionEvaluationLimit, optimize.GradientEvaluationLimit, optimize.HessianEvaluationLimit:
		return nil, &FailureError{Status: res.Status, Reason: "did not converge"}
	}
	return res, nil
}
