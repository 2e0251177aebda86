package tonemap

import(
	"fmt"
	"sort"
)

// FloorEpsilon is the largest second knot that still counts as part of
// the hard floor at zero input.
const FloorEpsilon = 1e-6

// A KnotGrid holds the coordinates, in unprocessed linear light u_k, at
// which a Cube stores exact tonemapped values. All three channels share
// the grid.
//
// The deployed grids start with a pair of knots at (effectively) zero,
// which pins the interpolation at zero input; inputs are then clamped
// to the third knot rather than the first. Floor is the index of the
// knot inputs are clamped to.
type KnotGrid struct {
	U     []float64
	Floor int
}

// NewKnotGrid copies u, and works out Floor from the shape of the grid.
func NewKnotGrid(u ...float64) (KnotGrid, error) {
	g := KnotGrid{U: append([]float64{}, u...)}
	if len(u) >= 3 && u[0] == 0 && u[1] <= FloorEpsilon {
		g.Floor = 2
	}
	return g, g.Validate()
}

// Knot point coordinates, estimated empirically from impulse cubes and
// then tuned by optimizing model predictions.
var defaultKnots = []float64{
	0, 1e-09, 1.657e-09, 0.002830, 0.007137, 0.01269, 0.02051, 0.03086,
	0.04479, 0.06444, 0.08989, 0.1252, 0.1726, 0.2370, 0.3253, 0.4422,
	0.6039, 0.8207, 1.104, 1.495, 2.032, 2.756, 3.738, 5.083,
	6.864, 9.347, 12.62, 17.18, 23.24, 31.48, 42.75, 57.66,
}

// DefaultKnots returns the 32 point grid that the Unity renderer was
// calibrated against. The caller owns the returned slice.
func DefaultKnots() KnotGrid {
	g, _ := NewKnotGrid(defaultKnots...)
	return g
}

func (g KnotGrid)Validate() error {
	if len(g.U) < 2 {
		return fmt.Errorf("%w: need at least two knots, have %d", ErrBadKnots, len(g.U))
	}
	if g.Floor < 0 || g.Floor >= len(g.U)-1 {
		return fmt.Errorf("%w: floor index %d out of range", ErrBadKnots, g.Floor)
	}
	if g.U[0] < 0 {
		return fmt.Errorf("%w: first knot %g is negative", ErrBadKnots, g.U[0])
	}
	for i:=1; i<len(g.U); i++ {
		if !(g.U[i] > g.U[i-1]) {
			return fmt.Errorf("%w: knots %d,%d not strictly increasing (%g, %g)",
				ErrBadKnots, i-1, i, g.U[i-1], g.U[i])
		}
	}
	return nil
}

func (g KnotGrid)Len() int         { return len(g.U) }
func (g KnotGrid)Lower() float64   { return g.U[g.Floor] }
func (g KnotGrid)Upper() float64   { return g.U[len(g.U)-1] }

// Clip clamps u into the range the grid can interpolate. NaN goes to Lower().
func (g KnotGrid)Clip(u float64) float64 {
	if !(u >= g.Lower()) { return g.Lower() }
	if u > g.Upper() { return g.Upper() }
	return u
}

// Locate finds the cell [U[i], U[i+1]] that holds the (clipped) input,
// and how far along it the input is. At a knot the fraction is exactly
// 0 (or exactly 1, for the last knot), so lookups there are exact.
func (g KnotGrid)Locate(u float64) (int, float64) {
	u = g.Clip(u)
	n := len(g.U)
	idx := sort.SearchFloat64s(g.U, u) // first knot >= u; exists, as u <= Upper()

	if g.U[idx] == u {
		if idx == n-1 {
			return n-2, 1.0
		}
		return idx, 0.0
	}

	i := idx - 1
	return i, (u - g.U[i]) / (g.U[i+1] - g.U[i])
}

// Interpolate does the 1D piecewise linear lookup of a channel curve.
// For a cube built from independent channels, this is exactly what
// Apply computes for that channel.
func (g KnotGrid)Interpolate(curve []float64, u float64) float64 {
	i, frac := g.Locate(u)
	return (1-frac)*curve[i] + frac*curve[i+1]
}

// LastBelow is the index of the last knot strictly below u; -1 if none.
func (g KnotGrid)LastBelow(u float64) int {
	return sort.SearchFloat64s(g.U, u) - 1
}

// FirstAbove is the index of the first knot strictly above u; Len() if none.
func (g KnotGrid)FirstAbove(u float64) int {
	return sort.Search(len(g.U), func(i int) bool { return g.U[i] > u })
}

func (g KnotGrid)String() string {
	return fmt.Sprintf("KnotGrid[n=%d, floor=%d, u=[%g..%g]]", g.Len(), g.Floor, g.Lower(), g.Upper())
}
