package efit

import(
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quadratic(x []float64) float64 {
	return (x[0]-3)*(x[0]-3) + (x[1]+1)*(x[1]+1)
}

func TestMinimizeUnconstrained(t *testing.T) {
	for _, method := range []string{"neldermead", "lbfgs"} {
		s := DefaultSettings()
		s.Method = method
		res, err := Minimize(Problem{Func: quadratic}, []float64{0, 0}, s)
		require.NoError(t, err, method)
		assert.InDelta(t, 3.0, res.X[0], 1e-4, method)
		assert.InDelta(t, -1.0, res.X[1], 1e-4, method)
		assert.InDelta(t, 0.0, res.F, 1e-7, method)
	}
}

func TestMinimizeBoundIsExact(t *testing.T) {
	f := func(x []float64) float64 { return (x[0]+2)*(x[0]+2) + (x[1]-1)*(x[1]-1) }
	p := Problem{Func: f, Constraints: []LinearConstraint{NonNegative(2, 0)}}

	res, err := Minimize(p, []float64{1, 0}, DefaultSettings())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.X[0], 0.0)
	assert.InDelta(t, 0.0, res.X[0], 1e-6)
	assert.InDelta(t, 1.0, res.X[1], 1e-4)
}

func TestMinimizeLinearConstraint(t *testing.T) {
	f := func(x []float64) float64 { return x[0]*x[0] + x[1]*x[1] }
	p := Problem{Func: f, Constraints: []LinearConstraint{{A: []float64{1, 1}, Lower: 2}}}

	res, err := Minimize(p, []float64{3, 2}, DefaultSettings())
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.X[0], 1e-3)
	assert.InDelta(t, 1.0, res.X[1], 1e-3)
	assert.LessOrEqual(t, p.Constraints[0].Violation(res.X), 1e-9)
}

func TestMinimizeFailures(t *testing.T) {
	nan := func(x []float64) float64 { return math.NaN() }
	_, err := Minimize(Problem{Func: nan}, []float64{1, 1}, DefaultSettings())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrOptimizationFailure))

	var fe *FailureError
	assert.True(t, errors.As(err, &fe))

	rosenbrock := func(x []float64) float64 {
		return 100*(x[1]-x[0]*x[0])*(x[1]-x[0]*x[0]) + (1-x[0])*(1-x[0])
	}
	s := DefaultSettings()
	s.MaxEvaluations = 10
	_, err = Minimize(Problem{Func: rosenbrock}, []float64{-1.2, 1}, s)
	assert.True(t, errors.Is(err, ErrOptimizationFailure))

	s = DefaultSettings()
	s.Method = "simulated-annealing"
	_, err = Minimize(Problem{Func: quadratic}, []float64{0, 0}, s)
	assert.Error(t, err)

	_, err = Minimize(Problem{Func: quadratic, Constraints: []LinearConstraint{NonNegative(3, 0)}}, []float64{0, 0}, DefaultSettings())
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	res := []float64{}
	for i:=1; i<=100; i++ {
		res = append(res, float64(i) * 0.01 * math.Pow(-1, float64(i)))
	}

	r := Summarize(res)
	assert.Equal(t, 100, r.N)
	assert.InDelta(t, 1.0, r.MaxAbs, 1e-12)
	assert.InDelta(t, 33.835, r.SSE, 1e-9) // sum of (i/100)^2
	assert.InDelta(t, math.Sqrt(33.835/100), r.RMS, 1e-12)
	assert.InDelta(t, 0.50, r.P50, 0.01)
	assert.InDelta(t, 0.90, r.P90, 0.01)
	assert.LessOrEqual(t, r.P50, r.P90)
	assert.LessOrEqual(t, r.P90, r.P99)

	assert.Equal(t, Residuals{}, Summarize(nil))
}

func TestSummarizeOutOfRange(t *testing.T) {
	// Huge and NaN residuals land in the top bucket rather than going missing
	r := Summarize([]float64{0, 1e9, -1e9, math.NaN()})
	assert.Equal(t, 4, r.N)
	assert.Equal(t, 0, r.Unbinned)
	assert.InEpsilon(t, 1e6, r.P99, 0.02)
	assert.Equal(t, 0.0, Summarize([]float64{0, 0, 0}).P90)
}

func TestMinimizeBoundCoupled(t *testing.T) {
	// The free parameter's optimum depends on where the bound parameter ends up
	f := func(x []float64) float64 {
		return (x[0]+2)*(x[0]+2) + (x[1]-x[0]-1)*(x[1]-x[0]-1) + (x[2]-2*x[1])*(x[2]-2*x[1])
	}
	p := Problem{Func: f, Constraints: []LinearConstraint{NonNegative(3, 0)}}

	res, err := Minimize(p, []float64{1, 0, 0}, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.X[0])
	assert.InDelta(t, 1.0, res.X[1], 1e-4)
	assert.InDelta(t, 2.0, res.X[2], 1e-4)
	assert.InDelta(t, 4.0, res.F, 1e-7)
	assert.Greater(t, res.Evaluations, 0)
}
