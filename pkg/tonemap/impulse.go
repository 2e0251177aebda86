package tonemap

import(
	"errors"
	"fmt"
	"sort"
)

// Impulse cubes are all zero, apart from one knot which maps to 1.0.
// Rendering a ramp of inputs through each one, and measuring where the
// output peaks, shows where the renderer really puts that knot.

var ErrMissingImpulse = errors.New("missing impulse response")

// ImpulseCurve is a channel curve that is zero except at knot index m.
func ImpulseCurve(g KnotGrid, m int) ([]float64, error) {
	if m < 0 || m >= g.Len() {
		return nil, fmt.Errorf("impulse index %d outside [0,%d): %w", m, g.Len(), ErrDimensionMismatch)
	}
	curve := make([]float64, g.Len())
	curve[m] = 1.0
	return curve, nil
}

func ImpulseCube(g KnotGrid, m int) (*Cube, error) {
	curve, err := ImpulseCurve(g, m)
	if err != nil {
		return nil, err
	}
	c, err := NewCube(g)
	if err != nil {
		return nil, err
	}
	c.Title = fmt.Sprintf("delta_%02d.cube", m+1)
	return c, c.SetChannelsUniform(curve)
}

// An ImpulseResponse is what came out of the renderer for one impulse
// cube: unprocessed inputs U, and the tonemapped outputs T they produced.
type ImpulseResponse struct {
	Index int        // which knot was driven to 1 (0-based)
	U     []float64
	T     []float64
}

// sorted returns a copy of the samples in ascending U order
func (ir ImpulseResponse)sorted() ImpulseResponse {
	idx := make([]int, len(ir.U))
	for i := range idx { idx[i] = i }
	sort.SliceStable(idx, func(a, b int) bool { return ir.U[idx[a]] < ir.U[idx[b]] })

	ret := ImpulseResponse{Index: ir.Index, U: make([]float64, len(idx)), T: make([]float64, len(idx))}
	for i, j := range idx {
		ret.U[i], ret.T[i] = ir.U[j], ir.T[j]
	}
	return ret
}

// peak picks the input value that best marks the impulse's knot.
func (ir ImpulseResponse)peak(first, last bool) (float64, error) {
	s := ir.sorted()
	found := -1

	switch {
	case first:
		// The first real knot sits right after the floor; the response
		// is a plateau that falls away, so take the end of the plateau.
		for i := range s.T {
			if s.T[i] > 0.99 { found = i }
		}
	case last:
		// Beyond the last knot everything saturates; take where that starts.
		for i := range s.T {
			if s.T[i] == 1.0 { found = i; break }
		}
	default:
		for i := range s.T {
			if found < 0 || s.T[i] > s.T[found] { found = i }
		}
	}

	if found < 0 {
		return 0, fmt.Errorf("impulse %d: no sample marks the knot", ir.Index)
	}
	return s.U[found], nil
}

// EstimateKnots rebuilds an n point knot grid from impulse responses.
// The first two knots are the fixed floor pair (0, 1e-9); a response is
// needed for every index from 2 to n-1.
func EstimateKnots(responses []ImpulseResponse, n int) (KnotGrid, error) {
	if n < 4 {
		return KnotGrid{}, fmt.Errorf("need at least 4 knots, asked for %d: %w", n, ErrBadKnots)
	}

	byIndex := map[int]ImpulseResponse{}
	for _, ir := range responses {
		if len(ir.U) != len(ir.T) {
			return KnotGrid{}, fmt.Errorf("impulse %d: %d inputs, %d outputs: %w",
				ir.Index, len(ir.U), len(ir.T), ErrDimensionMismatch)
		}
		byIndex[ir.Index] = ir
	}

	u := make([]float64, n)
	u[0], u[1] = 0, 1e-9
	for m:=2; m<n; m++ {
		ir, exists := byIndex[m]
		if !exists {
			return KnotGrid{}, fmt.Errorf("knot %d: %w", m, ErrMissingImpulse)
		}
		val, err := ir.peak(m == 2, m == n-1)
		if err != nil {
			return KnotGrid{}, err
		}
		u[m] = val
	}

	return NewKnotGrid(u...)
}
