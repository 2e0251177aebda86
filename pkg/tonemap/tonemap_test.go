package tonemap

import(
	"bytes"
	"errors"
	"fmt"
	"image/color"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/hdrp-calibrate/pkg/ecolor"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
)

func sqrtCube(t *testing.T, g KnotGrid) *Cube {
	c, err := SampleChannels(g, [3]ChannelFunc{math.Sqrt, math.Sqrt, math.Sqrt}).Build(g)
	require.NoError(t, err)
	return c
}

func TestKnotGrid(t *testing.T) {
	g := DefaultKnots()
	assert.Equal(t, 32, g.Len())
	assert.Equal(t, 2, g.Floor)
	assert.Equal(t, 1.657e-09, g.Lower())
	assert.Equal(t, 57.66, g.Upper())

	g2, err := NewKnotGrid(0, 0.33, 0.66, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, g2.Floor)

	i, f := g2.Locate(1.0)
	assert.Equal(t, 2, i)
	assert.Equal(t, 1.0, f)
	i, f = g2.Locate(0.66)
	assert.Equal(t, 2, i)
	assert.Equal(t, 0.0, f)
	i, f = g2.Locate(-4)
	assert.Equal(t, 0, i)
	assert.Equal(t, 0.0, f)

	assert.Equal(t, 0, g2.LastBelow(0.1))
	assert.Equal(t, -1, g2.LastBelow(0))
	assert.Equal(t, 2, g2.FirstAbove(0.5))
	assert.Equal(t, 4, g2.FirstAbove(1))

	for _, bad := range [][]float64{{0, 0.5, 0.5}, {0, 0.6, 0.5}, {-1, 0, 1}, {0}} {
		_, err := NewKnotGrid(bad...)
		assert.True(t, errors.Is(err, ErrBadKnots), "%v", bad)
	}
}

func TestSetChannels(t *testing.T) {
	g, _ := NewKnotGrid(0, 1, 2)
	c, err := NewCube(g)
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	require.NoError(t, c.SetChannelsPerChannel([]float64{0, 1, 2}, []float64{10, 11, 12}, []float64{20, 21, 22}))
	assert.Equal(t, emath.Vec3{2, 10, 21}, c.At(2, 0, 1))
	assert.Equal(t, []float64{10, 11, 12}, c.Channel(1))

	err = c.SetChannelsUniform([]float64{0, 1})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	assert.Equal(t, emath.Vec3{2, 10, 21}, c.At(2, 0, 1), "failed set must not modify the cube")
}

func TestApplyExactAtKnots(t *testing.T) {
	g := DefaultKnots()
	c := sqrtCube(t, g)

	for i:=g.Floor; i<g.Len(); i++ {
		for _, j := range []int{g.Floor, 7, g.Len()-1} {
			out := c.ApplyVec3(emath.Vec3{g.U[i], g.U[j], g.U[g.Len()-1-i+g.Floor]})
			assert.Equal(t, math.Sqrt(g.U[i]), out[0])
			assert.Equal(t, math.Sqrt(g.U[j]), out[1])
			assert.Equal(t, math.Sqrt(g.U[g.Len()-1-i+g.Floor]), out[2])
		}
	}
}

func TestApplyClamps(t *testing.T) {
	g := DefaultKnots()
	c := sqrtCube(t, g)

	out, err := c.Apply([][]float64{{-1, 0, 1000}})
	require.NoError(t, err)
	lo, hi := math.Sqrt(g.Lower()), math.Sqrt(g.Upper())
	assert.Equal(t, []float64{lo, lo, hi}, out[0])
}

func TestApplyErrors(t *testing.T) {
	g := DefaultKnots()
	c, _ := NewCube(g)
	_, err := c.Apply([][]float64{{0, 0, 0}})
	assert.True(t, errors.Is(err, ErrEmptyCube))

	c = sqrtCube(t, g)
	_, err = c.Apply([][]float64{{0, 0, 0}, {0.5, 0.5}})
	assert.True(t, errors.Is(err, ErrShapeMismatch))
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	out, err := c.Apply(nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestApplyNonFinite(t *testing.T) {
	g := DefaultKnots()
	c := sqrtCube(t, g)

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := c.Apply([][]float64{{0.5, 0.5, 0.5}, {bad, 0.5, 0.5}})
		assert.True(t, errors.Is(err, ErrNonFinite), "input %v", bad)
	}

	// The single-value paths clamp a NaN to the floor rather than panic
	lo := math.Sqrt(g.Lower())
	out := c.ApplyVec3(emath.Vec3{math.NaN(), 0.5, math.NaN()})
	assert.Equal(t, lo, out[0])
	assert.InDelta(t, g.Interpolate(c.Channel(1), 0.5), out[1], 1e-12)
	assert.Equal(t, lo, out[2])
	assert.Equal(t, lo, g.Interpolate(c.Channel(0), math.NaN()))

	i, frac := g.Locate(math.NaN())
	assert.Equal(t, g.Floor, i)
	assert.Equal(t, 0.0, frac)
}

func TestEndToEndScenario(t *testing.T) {
	g, err := NewKnotGrid(0, 0.33, 0.66, 1)
	require.NoError(t, err)
	c, err := NewCube(g)
	require.NoError(t, err)
	require.NoError(t, c.SetChannelsUniform([]float64{0, 0.11, 0.44, 1}))

	out, err := c.Apply([][]float64{{0.5, 0.5, 0.5}})
	require.NoError(t, err)

	want := 0.11 + (0.5-0.33)/(0.66-0.33)*(0.44-0.11)
	assert.InDelta(t, 0.28, want, 1e-12)
	for ch := 0; ch < 3; ch++ {
		assert.InDelta(t, want, out[0][ch], 1e-12)
	}
}

func TestInterpolateMatchesApply(t *testing.T) {
	g := DefaultKnots()
	fns := [3]ChannelFunc{
		math.Sqrt,
		func(u float64) float64 { return u * u },
		func(u float64) float64 { return ecolor.SRGBDecode(u, ecolor.ClampOpen) },
	}
	curves := SampleChannels(g, fns)
	c, err := curves.Build(g)
	require.NoError(t, err)

	rnd := rand.New(rand.NewSource(42))
	for n:=0; n<500; n++ {
		u := emath.Vec3{rnd.Float64() * 2, rnd.Float64() * 60, rnd.Float64() - 0.1}
		out := c.ApplyVec3(u)
		for ch := 0; ch < 3; ch++ {
			assert.InDelta(t, g.Interpolate(curves[ch], u[ch]), out[ch], 1e-12)
		}
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g := DefaultKnots()
	c := sqrtCube(t, g)
	filename := filepath.Join(t.TempDir(), "sqrt.cube")
	require.NoError(t, c.Save(filename))

	c2, _ := NewCube(g)
	require.NoError(t, c2.Load(filename))
	assert.Equal(t, filename, c2.Title)

	for i:=0; i<g.Len(); i++ {
		for j:=0; j<g.Len(); j += 5 {
			assert.InDelta(t, 0.0, c.At(i, j, 3).MaxAbsDiff(c2.At(i, j, 3)), 5e-7)
		}
	}

	// Once through the text format, saving is idempotent
	var b1, b2 bytes.Buffer
	require.NoError(t, c2.Encode(&b1))
	c3, _ := NewCube(g)
	require.NoError(t, c3.Decode(bytes.NewReader(b1.Bytes())))
	require.NoError(t, c3.Encode(&b2))
	assert.Equal(t, b1.String(), b2.String())
}

func TestSaveFailureLeavesFileAlone(t *testing.T) {
	g := DefaultKnots()
	filename := filepath.Join(t.TempDir(), "good.cube")
	require.NoError(t, sqrtCube(t, g).Save(filename))
	before, err := os.ReadFile(filename)
	require.NoError(t, err)

	empty, _ := NewCube(g)
	err = empty.Save(filename)
	assert.True(t, errors.Is(err, ErrEmptyCube))
	assert.Equal(t, "", empty.Title)

	after, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	// A save into a missing directory fails without touching the title
	c := sqrtCube(t, g)
	err = c.Save(filepath.Join(t.TempDir(), "nope", "x.cube"))
	assert.Error(t, err)
	assert.Equal(t, "", c.Title)

	// Nothing but the cube itself is left behind
	entries, err := os.ReadDir(filepath.Dir(filename))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEncodeLayout(t *testing.T) {
	g, _ := NewKnotGrid(0, 1)
	c, _ := NewCube(g)
	c.Title = "tiny"
	require.NoError(t, c.SetChannelsPerChannel([]float64{0, 0.1}, []float64{0, 0.2}, []float64{0, 0.3}))

	var b bytes.Buffer
	require.NoError(t, c.Encode(&b))
	lines := strings.Split(strings.TrimSpace(b.String()), "\n")
	require.Len(t, lines, 4 + 8)
	assert.Equal(t, `TITLE "tiny"`, lines[0])
	assert.Equal(t, "LUT_3D_SIZE 2", lines[1])
	assert.Equal(t, "DOMAIN_MIN 0.0 0.0 0.0", lines[2])
	assert.Equal(t, "DOMAIN_MAX 1.0 1.0 1.0", lines[3])
	// Red varies fastest
	assert.Equal(t, "0.000000 0.000000 0.000000", lines[4])
	assert.Equal(t, "0.100000 0.000000 0.000000", lines[5])
	assert.Equal(t, "0.000000 0.200000 0.000000", lines[6])
	assert.Equal(t, "0.100000 0.200000 0.300000", lines[11])

	c2, _ := NewCube(g)
	require.NoError(t, c2.Decode(strings.NewReader(b.String())))
	assert.Equal(t, emath.Vec3{0.1, 0.2, 0}, c2.At(1, 1, 0))

	empty, _ := NewCube(g)
	assert.True(t, errors.Is(empty.Encode(&b), ErrEmptyCube))
}

func cubeText(rows int, header string) string {
	var sb strings.Builder
	sb.WriteString(header)
	for i:=0; i<rows; i++ {
		fmt.Fprintf(&sb, "%d 0.5 0.25\n", i)
	}
	return sb.String()
}

func TestDecodeSizeMismatch(t *testing.T) {
	g, _ := NewKnotGrid(0, 0.33, 0.66, 1)
	c, _ := NewCube(g)
	require.NoError(t, c.SetChannelsUniform([]float64{0, 0.11, 0.44, 1}))
	before := c.At(1, 2, 3)

	err := c.Decode(strings.NewReader(cubeText(30, "TITLE \"thirty\"\n")))
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	// A perfect cube, but not for this grid
	err = c.Decode(strings.NewReader(cubeText(27, "")))
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	// Header disagrees with the data
	err = c.Decode(strings.NewReader(cubeText(64, "LUT_3D_SIZE 3\n")))
	assert.True(t, errors.Is(err, ErrSizeMismatch))

	assert.Equal(t, before, c.At(1, 2, 3))
	assert.Equal(t, "", c.Title)

	// Junk lines are skipped
	require.NoError(t, c.Decode(strings.NewReader(cubeText(64, "# comment\nLUT_1D_SIZE 4\nnot a row\n"))))
	assert.Equal(t, emath.Vec3{5, 0.5, 0.25}, c.At(1, 1, 0))

	err = c.Load(filepath.Join(t.TempDir(), "nope.cube"))
	assert.Error(t, err)
}

func TestImpulseCube(t *testing.T) {
	g := DefaultKnots()
	c, err := ImpulseCube(g, 4)
	require.NoError(t, err)
	assert.Equal(t, "delta_05.cube", c.Title)

	out := c.ApplyVec3(emath.Vec3{g.U[4], g.U[4], g.U[5]})
	assert.Equal(t, emath.Vec3{1, 1, 0}, out)

	_, err = ImpulseCube(g, 32)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

// renderImpulse is what an ideal renderer would report for impulse m.
func renderImpulse(g KnotGrid, m int) ImpulseResponse {
	curve, _ := ImpulseCurve(g, m)
	ir := ImpulseResponse{Index: m}
	for i:=3000; i>=0; i-- { // backwards, so the estimator has to sort
		u := float64(i) / 1000
		ir.U = append(ir.U, u)
		ir.T = append(ir.T, g.Interpolate(curve, u))
	}
	return ir
}

func TestEstimateKnots(t *testing.T) {
	g, err := NewKnotGrid(0, 1e-9, 0.01, 0.05, 0.2, 0.6, 1.0, 2.0)
	require.NoError(t, err)
	require.Equal(t, 2, g.Floor)

	responses := []ImpulseResponse{}
	for m:=g.Len()-1; m>=2; m-- {
		responses = append(responses, renderImpulse(g, m))
	}

	est, err := EstimateKnots(responses, g.Len())
	require.NoError(t, err)
	assert.Equal(t, 2, est.Floor)
	for i := range g.U {
		assert.InDelta(t, g.U[i], est.U[i], 1e-12, "knot %d", i)
	}

	_, err = EstimateKnots(responses[1:], g.Len())
	assert.True(t, errors.Is(err, ErrMissingImpulse))

	bad := renderImpulse(g, 3)
	bad.T = bad.T[1:]
	_, err = EstimateKnots([]ImpulseResponse{bad}, g.Len())
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestPinning(t *testing.T) {
	assert.Equal(t, []float64{0.5, 0.9, 1.1, 1, 1}, PinAboveOne([]float64{0.5, 0.9, 1.1, 1.3, 1.8}))
	assert.Equal(t, []float64{0.5, 0.9}, PinAboveOne([]float64{0.5, 0.9}))

	g, _ := NewKnotGrid(0, 0.5, 1, 2, 4)
	assert.Equal(t, []float64{0, 0.7, 1.0, 1.4, 1}, PinBeyond(g, []float64{0, 0.7, 1.0, 1.4, 2.0}, 1))
}

func TestRefine(t *testing.T) {
	g := DefaultKnots()
	target := [3]ChannelFunc{
		math.Sqrt,
		func(u float64) float64 { return ecolor.SRGBDecode(u, ecolor.ClampOpen) },
		func(u float64) float64 { return math.Pow(u, 1/2.2) },
	}
	curves := SampleChannels(g, target)
	orig := curves.Copy()

	refined, rr, err := Refine(g, curves, target, DefaultRefineOptions())
	require.NoError(t, err)
	assert.Equal(t, orig, curves, "inputs must not be modified")

	assert.Equal(t, g.LastBelow(1.0/255), rr.First)
	assert.Equal(t, g.FirstAbove(1.0), rr.Last)
	assert.Less(t, rr.After.SSE, rr.Before.SSE)
	assert.Equal(t, 300, rr.After.N)

	for ch := range refined {
		for i := range refined[ch] {
			if i < rr.First || i > rr.Last {
				assert.Equal(t, curves[ch][i], refined[ch][i])
			}
		}
	}

	_, _, err = Refine(g, ChannelCurves{{1}, {1}, {1}}, target, DefaultRefineOptions())
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestCubeTMO(t *testing.T) {
	g := DefaultKnots()
	c := sqrtCube(t, g)
	ramp := Ramp{W: 33, H: 8, Max: 2}

	op := NewCubeTMO(c, ramp)
	img := op.Perform()
	require.Equal(t, ramp.Bounds(), img.Bounds())

	for _, pt := range [][2]int{{0, 0}, {16, 1}, {20, 2}, {32, 4}, {10, 7}} {
		r, gr, b, _ := ramp.HDRAt(pt[0], pt[1]).HDRRGBA()
		want := ecolor.SRGBDecodeVec3(c.ApplyVec3(emath.Vec3{r, gr, b}), ecolor.ClampUnit)
		got := img.At(pt[0], pt[1]).(color.RGBA64)
		assert.InDelta(t, want[0], float64(got.R)/0xffff, 1e-4)
		assert.InDelta(t, want[1], float64(got.G)/0xffff, 1e-4)
		assert.InDelta(t, want[2], float64(got.B)/0xffff, 1e-4)
		assert.Equal(t, uint16(0xffff), got.A)
	}

	// Row 1 is red only; green and blue sit at the floor
	r, gr, _, _ := ramp.HDRAt(32, 1).HDRRGBA()
	assert.Equal(t, 2.0, r)
	assert.Equal(t, 0.0, gr)
}
