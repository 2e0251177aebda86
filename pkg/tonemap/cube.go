package tonemap

import(
	"fmt"

	"github.com/abworrall/hdrp-calibrate/pkg/emath"
)

// A Cube is a 3D colour lookup table: for every combination of R, G
// and B knot indices it stores a tonemapped RGB triple. Inputs between
// knots are trilinearly interpolated.
//
// The calibration tools only ever build cubes from three independent
// channel curves; the 3D layout exists because that is what the .cube
// interchange format (and the renderer) expects.
type Cube struct {
	Knots   KnotGrid
	Title   string    // written into the TITLE header; usually the filename

	values  []float64 // n*n*n*3, index ((i*n + j)*n + k)*3 + c, for R=i, G=j, B=k
}

func NewCube(knots KnotGrid) (*Cube, error) {
	if err := knots.Validate(); err != nil {
		return nil, err
	}
	return &Cube{Knots: knots}, nil
}

func (c *Cube)Size() int     { return c.Knots.Len() }
func (c *Cube)IsEmpty() bool { return c.values == nil }

func (c *Cube)offset(i, j, k int) int {
	n := c.Size()
	return ((i*n + j)*n + k) * 3
}

// At returns the RGB triple stored at knot indices (i,j,k).
func (c *Cube)At(i, j, k int) emath.Vec3 {
	o := c.offset(i, j, k)
	return emath.Vec3{c.values[o], c.values[o+1], c.values[o+2]}
}

// SetChannelsUniform uses the same curve for all three channels.
func (c *Cube)SetChannelsUniform(curve []float64) error {
	return c.SetChannelsPerChannel(curve, curve, curve)
}

// SetChannelsPerChannel rebuilds the whole cube from three channel
// curves, one value per knot. The red output at (i,j,k) is r[i], green
// is g[j], blue is b[k].
func (c *Cube)SetChannelsPerChannel(r, g, b []float64) error {
	n := c.Size()
	for ch, curve := range [][]float64{r, g, b} {
		if len(curve) != n {
			return fmt.Errorf("channel %d has %d values, grid has %d knots: %w",
				ch, len(curve), n, ErrDimensionMismatch)
		}
	}

	vals := make([]float64, n*n*n*3)
	for i:=0; i<n; i++ {
		for j:=0; j<n; j++ {
			for k:=0; k<n; k++ {
				o := ((i*n + j)*n + k) * 3
				vals[o+0] = r[i]
				vals[o+1] = g[j]
				vals[o+2] = b[k]
			}
		}
	}

	c.values = vals
	return nil
}

// Channel extracts the curve along one axis, holding the other two
// axes at their first knot. For a cube built by SetChannels, this is
// the curve that was passed in.
func (c *Cube)Channel(ch int) []float64 {
	n := c.Size()
	ret := make([]float64, n)
	for i:=0; i<n; i++ {
		idx := [3]int{}
		idx[ch] = i
		ret[i] = c.values[c.offset(idx[0], idx[1], idx[2]) + ch]
	}
	return ret
}

// ApplyVec3 tonemaps a single unprocessed RGB value. Each component is
// first clamped to [Knots.Lower(), Knots.Upper()]; a NaN is treated as
// Lower(), so image pixels can't make it panic.
func (c *Cube)ApplyVec3(u emath.Vec3) emath.Vec3 {
	i, fi := c.Knots.Locate(u[0])
	j, fj := c.Knots.Locate(u[1])
	k, fk := c.Knots.Locate(u[2])

	wi := [2]float64{1-fi, fi}
	wj := [2]float64{1-fj, fj}
	wk := [2]float64{1-fk, fk}

	out := emath.Vec3{}
	for di:=0; di<2; di++ {
		for dj:=0; dj<2; dj++ {
			for dk:=0; dk<2; dk++ {
				w := wi[di] * wj[dj] * wk[dk]
				if w == 0 {
					continue // keeps lookups at a knot exact
				}
				o := c.offset(i+di, j+dj, k+dk)
				out[0] += w * c.values[o+0]
				out[1] += w * c.values[o+1]
				out[2] += w * c.values[o+2]
			}
		}
	}

	return out
}

// Apply tonemaps an M x 3 array of unprocessed values. Unlike
// ApplyVec3, it rejects NaN and infinite inputs.
func (c *Cube)Apply(in [][]float64) ([][]float64, error) {
	if c.IsEmpty() {
		return nil, ErrEmptyCube
	}

	out := make([][]float64, len(in))
	for m, row := range in {
		if len(row) != 3 {
			return nil, fmt.Errorf("row %d has %d columns, want 3: %w", m, len(row), ErrShapeMismatch)
		}
		for ch, v := range row {
			if !emath.IsFinite(v) {
				return nil, fmt.Errorf("row %d channel %d is %v: %w", m, ch, v, ErrNonFinite)
			}
		}
		t := c.ApplyVec3(emath.Vec3{row[0], row[1], row[2]})
		out[m] = []float64{t[0], t[1], t[2]}
	}

	return out, nil
}

func (c *Cube)String() string {
	return fmt.Sprintf("Cube[%q, %dx%dx%d, %s]", c.Title, c.Size(), c.Size(), c.Size(), c.Knots)
}
