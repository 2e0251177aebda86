package charmodel

import(
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abworrall/hdrp-calibrate/pkg/ecolor"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
)

// A display with a 5 cd/m^2 black level and a 2.2 gamma
func syntheticLuminance() ([]float64, []float64) {
	v := emath.Linspace(0, 1, 11)
	lum := make([]float64, len(v))
	for i := range v {
		lum[i] = 5 + 95*math.Pow(v[i], 2.2)
	}
	return v, lum
}

func TestLuminanceFit(t *testing.T) {
	v, lum := syntheticLuminance()
	m, err := NewLuminanceModel(v, lum)
	require.NoError(t, err)

	_, err = m.GammaCorrection()
	assert.True(t, errors.Is(err, ErrNotFitted))
	assert.True(t, math.IsNaN(m.StimulusToLuminance(0.5)))
	assert.True(t, math.IsNaN(m.LuminanceToStimulus(50)))

	require.NoError(t, m.Fit())
	assert.True(t, m.Fitted)
	assert.InDelta(t, 5.0, m.Params.L0, 0.05)
	assert.InDelta(t, 95.0, m.Params.L1, 0.1)
	assert.InDelta(t, 0.0, m.Params.Knee.V0, 1e-3)
	assert.GreaterOrEqual(t, m.Params.Knee.V0, 0.0)
	assert.InDelta(t, 2.2, m.Params.Knee.Gamma, 0.01)
	assert.Less(t, m.Residuals.RMS, 0.05)

	assert.InDelta(t, 5+95*math.Pow(0.5, 2.2), m.StimulusToLuminance(0.5), 0.1)
	assert.InDelta(t, 0.5, m.LuminanceToStimulus(m.StimulusToLuminance(0.5)), 1e-9)
}

func TestLuminanceInitialGamma(t *testing.T) {
	v, lum := syntheticLuminance()
	m, _ := NewLuminanceModel(v, lum)
	assert.Equal(t, DefaultGamma, m.InitialGamma())

	m.GammaInit = GammaInitLogLog
	g := m.InitialGamma()
	assert.Greater(t, g, 1.0)
	assert.Less(t, g, 2.2) // the black level flattens the log-log slope

	// Pure power law: the regression finds the exponent
	for i := range lum {
		lum[i] = 80 * math.Pow(v[i], 2.4)
	}
	m, _ = NewLuminanceModel(v, lum)
	m.GammaInit = GammaInitLogLog
	assert.InDelta(t, 2.4, m.InitialGamma(), 1e-9)

	gi, err := ParseGammaInit("loglog")
	require.NoError(t, err)
	assert.Equal(t, GammaInitLogLog, gi)
	_, err = ParseGammaInit("guess")
	assert.Error(t, err)
}

func TestLuminanceErrors(t *testing.T) {
	_, err := NewLuminanceModel([]float64{0, 0.5, 1, 0.2}, []float64{1, 2, 3})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	_, err = NewLuminanceModel([]float64{0, 1}, []float64{1, 2})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestLuminanceGammaCorrection(t *testing.T) {
	p := LuminanceParams{L0: 5, L1: 95, Knee: ecolor.Knee{V0: 0, Gamma: 2.2}}
	f := p.GammaCorrection()

	assert.Equal(t, 0.0, f(0))
	for _, u := range emath.Linspace(0.06, 1, 50) {
		v := ecolor.SRGBDecode(f(u), ecolor.ClampOpen)
		assert.InDelta(t, 100*u, p.StimulusToLuminance(v), 1e-5, "u=%f", u)
	}

	// Not clamped at 1, so the cube can interpolate up to full white
	assert.Greater(t, f(1.1), 1.0)
}

type triDisplay struct {
	rgb emath.Mat3
	z   emath.Vec3
	gam emath.Vec3
}

func (d triDisplay)measure(v emath.Vec3) emath.Vec3 {
	p := emath.Vec3{math.Pow(v[0], d.gam[0]), math.Pow(v[1], d.gam[1]), math.Pow(v[2], d.gam[2])}
	return p.RowMult(d.rgb).Add(d.z)
}

// Black, then ten levels of each primary and of white
func (d triDisplay)data() ([]emath.Vec3, []emath.Vec3) {
	stims := []emath.Vec3{{0, 0, 0}}
	for _, k := range emath.Linspace(0.1, 1, 10) {
		stims = append(stims, emath.Vec3{k, 0, 0}, emath.Vec3{0, k, 0}, emath.Vec3{0, 0, k}, emath.Vec3{k, k, k})
	}
	xyz := []emath.Vec3{}
	for _, v := range stims {
		xyz = append(xyz, d.measure(v))
	}
	return stims, xyz
}

var orthoDisplay = triDisplay{
	rgb: emath.Mat3{50, 0, 0, 0, 60, 0, 0, 0, 40},
	z:   emath.Vec3{1, 2, 3},
	gam: emath.Vec3{2.0, 2.2, 2.4},
}

var mixedDisplay = triDisplay{
	rgb: emath.Mat3{90, 50, 10, 20, 100, 10, 10, 20, 70},
	z:   emath.Vec3{4, 8, 5},
	gam: emath.Vec3{2.2, 2.2, 2.2},
}

func TestTriStimulusFit(t *testing.T) {
	v, xyz := orthoDisplay.data()
	m, err := NewTriStimulusModel(v, xyz)
	require.NoError(t, err)
	require.NoError(t, m.Fit())

	assert.InDelta(t, 0.0, m.Params.Background.MaxAbsDiff(orthoDisplay.z), 1e-6)
	for k := 0; k < 3; k++ {
		assert.InDelta(t, 0.0, m.Params.Primaries.Row(k).MaxAbsDiff(orthoDisplay.rgb.Row(k)), 1e-3)
		assert.InDelta(t, orthoDisplay.gam[k], m.Params.Knees[k].Gamma, 1e-3)
		assert.InDelta(t, 0.0, m.Params.Knees[k].V0, 1e-3)
	}

	stim := emath.Vec3{0.3, 0.6, 0.9}
	got := ecolor.XYZToVec(m.StimulusToXYZ(stim))
	assert.InDelta(t, 0.0, got.MaxAbsDiff(orthoDisplay.measure(stim)), 0.05)

	back, err := m.XYZToStimulus(m.StimulusToXYZ(stim))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, back.MaxAbsDiff(stim), 1e-9)
}

func TestTriStimulusFitStages(t *testing.T) {
	v, xyz := mixedDisplay.data()
	m, err := NewTriStimulusModel(v, xyz)
	require.NoError(t, err)
	m.Settings.MaxEvaluations = 2000000

	require.NoError(t, m.Fit1())
	// Stage one reads the primaries and background straight off the probes
	assert.InDelta(t, 0.0, m.Params.Background.MaxAbsDiff(mixedDisplay.z), 1e-9)
	for k := 0; k < 3; k++ {
		assert.InDelta(t, 0.0, m.Params.Primaries.Row(k).MaxAbsDiff(mixedDisplay.rgb.Row(k)), 1e-9)
	}
	sse1 := m.SSE(m.Params)

	require.NoError(t, m.Fit2())
	sse2 := m.SSE(m.Params)
	assert.LessOrEqual(t, sse2, sse1 + 1e-9)
	for k := 0; k < 3; k++ {
		assert.GreaterOrEqual(t, m.Params.Knees[k].V0, 0.0)
	}
}

func TestTriStimulusProbes(t *testing.T) {
	v, xyz := orthoDisplay.data()

	// Repeated black measurements get averaged
	v = append(v, emath.Vec3{0, 0, 0}, emath.Vec3{0, 0, 1e-12})
	xyz = append(xyz, orthoDisplay.z.Add(emath.Vec3{0.3, 0.3, 0.3}), orthoDisplay.z.Sub(emath.Vec3{0.3, 0.3, 0.3}))
	m, err := NewTriStimulusModel(v, xyz)
	require.NoError(t, err)
	require.NoError(t, m.Fit1())
	assert.InDelta(t, 0.0, m.Params.Background.MaxAbsDiff(orthoDisplay.z), 1e-9)

	// No black probe at all
	v, xyz = orthoDisplay.data()
	m, err = NewTriStimulusModel(v[1:], xyz[1:])
	require.NoError(t, err)
	err = m.Fit()
	assert.True(t, errors.Is(err, ErrMissingCalibrationProbe))
	assert.False(t, m.Fitted)
	assert.Equal(t, TriStimulusParams{}, m.Params)

	assert.True(t, errors.Is(m.Fit2(), ErrNotFitted))
	_, err = m.Activations(ecolor.VecToXYZ(xyz[0]))
	assert.True(t, errors.Is(err, ErrNotFitted))
	_, err = m.XYZToStimulus(ecolor.VecToXYZ(xyz[0]))
	assert.True(t, errors.Is(err, ErrNotFitted))
	assert.True(t, math.IsNaN(m.H(0.5, 0)))
	assert.True(t, math.IsNaN(m.HInverse(0.5, 1)))
	assert.True(t, math.IsNaN(m.StimulusToXYZ(emath.Vec3{0.5, 0.5, 0.5}).Y))

	_, err = NewTriStimulusModel(v, xyz[1:])
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestTriStimulusDegeneratePrimaries(t *testing.T) {
	// Blue comes out as red plus green, so the primaries can't be inverted
	d := triDisplay{
		rgb: emath.Mat3{50, 0, 0, 0, 60, 0, 50, 60, 0},
		z:   emath.Vec3{1, 2, 3},
		gam: emath.Vec3{2.2, 2.2, 2.2},
	}
	v, xyz := d.data()
	m, err := NewTriStimulusModel(v, xyz)
	require.NoError(t, err)
	assert.Error(t, m.Fit())
	assert.False(t, m.Fitted)
	assert.Equal(t, TriStimulusParams{}, m.Params)
}

func TestTriStimulusParams(t *testing.T) {
	p := TriStimulusParams{
		Primaries:  mixedDisplay.rgb,
		Background: mixedDisplay.z,
		Knees:      [3]ecolor.Knee{{V0: 0.05, Gamma: 2.0}, {V0: 0, Gamma: 2.2}, {V0: 0.1, Gamma: 2.6}},
	}

	stim := emath.Vec3{0.4, 0.7, 0.2}
	acts, err := p.Activations(p.StimulusToXYZ(stim))
	require.NoError(t, err)
	for k := 0; k < 3; k++ {
		assert.InDelta(t, p.H(stim[k], k), acts[k], 1e-9)
	}

	back, err := p.XYZToStimulus(p.StimulusToXYZ(stim))
	require.NoError(t, err)
	assert.InDelta(t, 0.0, back.MaxAbsDiff(stim), 1e-9)

	w, err := p.BackgroundWeights()
	require.NoError(t, err)
	assert.InDelta(t, 0.0, w.RowMult(p.Primaries).MaxAbsDiff(p.Background), 1e-9)

	// After gamma correction, activation plus background weight is proportional to u
	for k := 0; k < 3; k++ {
		f, err := p.GammaCorrection(k)
		require.NoError(t, err)
		for _, u := range emath.Linspace(0.2, 1, 9) {
			a := p.H(ecolor.SRGBDecode(f(u), ecolor.ClampOpen), k)
			assert.InDelta(t, (1+w[k])*u, a + w[k], 1e-6, "channel %d, u=%f", k, u)
		}
	}

	singular := p
	singular.Primaries = emath.Mat3{1, 2, 3, 2, 4, 6, 0, 0, 1}
	_, err = singular.BackgroundWeights()
	assert.Error(t, err)
}

func TestChromaticities(t *testing.T) {
	p := TriStimulusParams{Primaries: orthoDisplay.rgb, Background: orthoDisplay.z}
	c := p.Chromaticities()
	assert.InDelta(t, 1.0, c[0].X, 1e-12)
	assert.InDelta(t, 0.0, c[0].Y, 1e-12)
	assert.InDelta(t, 1.0, c[1].Y, 1e-12)
	assert.InDelta(t, 1.0/6, c[3].X, 1e-12)
	assert.InDelta(t, 2.0/6, c[3].Y, 1e-12)
	assert.InDelta(t, 2.0, c[3].Lum, 1e-12)
}

func TestCheckLinearity(t *testing.T) {
	u := emath.Linspace(0.1, 1, 10)
	y := make([]float64, len(u))
	for i := range u {
		y[i] = 3 * u[i]
	}

	l, err := CheckLinearity(u, y)
	require.NoError(t, err)
	assert.InDelta(t, 3.0, l.Slope, 1e-12)
	assert.InDelta(t, 1.0, l.RSquared, 1e-12)
	assert.InDelta(t, 0.0, l.Residuals.MaxAbs, 1e-12)

	_, err = CheckLinearity(u, y[1:])
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}
