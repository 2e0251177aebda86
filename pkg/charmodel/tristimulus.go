package charmodel

import(
	"fmt"
	"math"

	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/hdrp-calibrate/pkg/ecolor"
	"github.com/abworrall/hdrp-calibrate/pkg/efit"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

// The tri-stimulus model of a display, for colour stimuli v = (r,g,b):
//
//   xyz = p @ rgb + z,   p_k = knee_k(v_k)
//
// where each row of rgb is the XYZ of one primary at full activation,
// and z is the XYZ of whatever light is there when the display is black.

const DefaultProbeTolerance = 1e-9

var(
	probeBlack = emath.Vec3{0, 0, 0}
	probeRGB   = [3]emath.Vec3{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
)

type TriStimulusParams struct {
	Primaries  emath.Mat3    // XYZ of the R, G and B primaries, one per row
	Background emath.Vec3    // XYZ of the background light
	Knees      [3]ecolor.Knee
}

func (p TriStimulusParams)String() string {
	str := fmt.Sprintf("background %s\n", p.Background)
	for k := 0; k < 3; k++ {
		str += fmt.Sprintf("primary %c %s, %s\n", "RGB"[k], p.Primaries.Row(k), p.Knees[k])
	}
	return str
}

// H is channel k's activation for stimulus v.
func (p TriStimulusParams)H(v float64, k int) float64        { return p.Knees[k].At(v, ecolor.ClampUnit) }
func (p TriStimulusParams)HInverse(a float64, k int) float64 { return p.Knees[k].Inverse(a, ecolor.ClampUnit) }

func (p TriStimulusParams)StimulusToXYZ(v emath.Vec3) hdrcolor.XYZ {
	a := emath.Vec3{p.H(v[0], 0), p.H(v[1], 1), p.H(v[2], 2)}
	return ecolor.VecToXYZ(a.RowMult(p.Primaries).Add(p.Background))
}

// Activations solves xyz = p @ rgb + z for p.
func (p TriStimulusParams)Activations(xyz hdrcolor.XYZ) (emath.Vec3, error) {
	inv, err := p.Primaries.Inverse()
	if err != nil {
		return emath.Vec3{}, err
	}
	return ecolor.XYZToVec(xyz).Sub(p.Background).RowMult(inv), nil
}

func (p TriStimulusParams)XYZToStimulus(xyz hdrcolor.XYZ) (emath.Vec3, error) {
	a, err := p.Activations(xyz)
	if err != nil {
		return emath.Vec3{}, err
	}
	return emath.Vec3{p.HInverse(a[0], 0), p.HInverse(a[1], 1), p.HInverse(a[2], 2)}, nil
}

// BackgroundWeights expresses the background as a mix of the primaries;
// solves z = w @ rgb for w.
func (p TriStimulusParams)BackgroundWeights() (emath.Vec3, error) {
	inv, err := p.Primaries.Inverse()
	if err != nil {
		return emath.Vec3{}, err
	}
	return p.Background.RowMult(inv), nil
}

// GammaCorrection is the luminance model's gamma correction, per channel,
// with the background weight for that channel playing the part of L0/L1.
func (p TriStimulusParams)GammaCorrection(k int) (tonemap.ChannelFunc, error) {
	w, err := p.BackgroundWeights()
	if err != nil {
		return nil, err
	}
	knee := p.Knees[k]
	return func(u float64) float64 {
		v := knee.Inverse((1+w[k])*u - w[k], ecolor.ClampOpen)
		return ecolor.SRGBEncode(v, ecolor.ClampOpen)
	}, nil
}

// Chromaticities of the three primaries, and then the background.
func (p TriStimulusParams)Chromaticities() [4]ecolor.Chromaticity {
	ret := [4]ecolor.Chromaticity{}
	for k := 0; k < 3; k++ {
		ret[k] = ecolor.NewChromaticity(ecolor.VecToXYZ(p.Primaries.Row(k)))
	}
	ret[3] = ecolor.NewChromaticity(ecolor.VecToXYZ(p.Background))
	return ret
}

// The 18 fitted scalars, flattened: primaries (row-major), background, v0s, gammas
func (p TriStimulusParams)vec() []float64 {
	ret := append([]float64{}, p.Primaries[:]...)
	ret = append(ret, p.Background[:]...)
	for k := 0; k < 3; k++ { ret = append(ret, p.Knees[k].V0) }
	for k := 0; k < 3; k++ { ret = append(ret, p.Knees[k].Gamma) }
	return ret
}

func vecToTriStimulusParams(x []float64) TriStimulusParams {
	p := TriStimulusParams{}
	copy(p.Primaries[:], x[0:9])
	copy(p.Background[:], x[9:12])
	for k := 0; k < 3; k++ {
		p.Knees[k] = ecolor.Knee{V0: x[12+k], Gamma: x[15+k]}
	}
	return p
}

type TriStimulusModel struct {
	V              []emath.Vec3  // stimuli, post-processed (r,g,b)
	XYZ            []emath.Vec3  // measured XYZ

	ProbeTolerance float64       // stimuli this close to a probe count as that probe
	Settings       efit.Settings

	Params         TriStimulusParams
	Fitted         bool
	Result         efit.Result     // from the last stage that ran
	Residuals      efit.Residuals  // joint residuals, activation units
}

func NewTriStimulusModel(v, xyz []emath.Vec3) (*TriStimulusModel, error) {
	if len(v) != len(xyz) {
		return nil, fmt.Errorf("%d stimuli, %d XYZ measurements: %w", len(v), len(xyz), ErrDimensionMismatch)
	}
	return &TriStimulusModel{
		V:              append([]emath.Vec3{}, v...),
		XYZ:            append([]emath.Vec3{}, xyz...),
		ProbeTolerance: DefaultProbeTolerance,
		Settings:       efit.DefaultSettings(),
	}, nil
}

// probe averages the measurements of every stimulus within tolerance of target.
func (m *TriStimulusModel)probe(target emath.Vec3) (emath.Vec3, error) {
	sum, n := emath.Vec3{}, 0
	for i := range m.V {
		if m.V[i].MaxAbsDiff(target) <= m.ProbeTolerance {
			sum = sum.Add(m.XYZ[i])
			n++
		}
	}
	if n == 0 {
		return emath.Vec3{}, fmt.Errorf("no stimulus %s: %w", target, ErrMissingCalibrationProbe)
	}
	return sum.Scale(1.0 / float64(n)), nil
}

// Fit runs both stages; params are only updated if both succeed.
func (m *TriStimulusModel)Fit() error {
	p1, _, err := m.fit1()
	if err != nil {
		return err
	}
	p2, res, err := m.fit2(p1)
	if err != nil {
		return err
	}
	m.commit(p2, res)
	return nil
}

// Fit1 is the first pass: primaries and background straight from the
// probe measurements, then each channel's knee fitted on its own.
func (m *TriStimulusModel)Fit1() error {
	p, res, err := m.fit1()
	if err != nil {
		return err
	}
	m.commit(p, res)
	return nil
}

// Fit2 refines all 18 params jointly, starting from the current fit.
func (m *TriStimulusModel)Fit2() error {
	if !m.Fitted {
		return ErrNotFitted
	}
	p, res, err := m.fit2(m.Params)
	if err != nil {
		return err
	}
	m.commit(p, res)
	return nil
}

func (m *TriStimulusModel)commit(p TriStimulusParams, res efit.Result) {
	m.Params = p
	m.Fitted = true
	m.Result = res
	m.Residuals = efit.Summarize(m.residuals(p))
}

var identity = emath.Mat3{1, 0, 0, 0, 1, 0, 0, 0, 1}

// How far rgb @ inv(rgb) may be from the identity before the primaries
// are too close to degenerate to fit against
const identityTolerance = 1e-6

func maxAbsDiff(a, b emath.Mat3) float64 {
	d := 0.0
	for k := 0; k < 3; k++ {
		d = math.Max(d, a.Row(k).MaxAbsDiff(b.Row(k)))
	}
	return d
}

func (m *TriStimulusModel)fit1() (TriStimulusParams, efit.Result, error) {
	p := TriStimulusParams{}

	z, err := m.probe(probeBlack)
	if err != nil {
		return p, efit.Result{}, fmt.Errorf("tristimulus fit1: %w", err)
	}
	p.Background = z
	for k := 0; k < 3; k++ {
		xyz, err := m.probe(probeRGB[k])
		if err != nil {
			return p, efit.Result{}, fmt.Errorf("tristimulus fit1: %w", err)
		}
		p.Primaries.SetRow(k, xyz.Sub(z))
	}
	inv, err := p.Primaries.Inverse()
	if err != nil {
		return p, efit.Result{}, fmt.Errorf("tristimulus fit1, primaries: %w", err)
	}
	if d := maxAbsDiff(p.Primaries.Mult(inv), identity); d > identityTolerance {
		return p, efit.Result{}, fmt.Errorf("tristimulus fit1, primaries times inverse is %g off identity: %w", d, ErrIllConditioned)
	}

	var last efit.Result
	for k := 0; k < 3; k++ {
		// Project onto the primary to get this channel's activations
		prim := p.Primaries.Row(k)
		norm := prim.Norm2()
		acts := make([]float64, len(m.V))
		for i := range m.XYZ {
			acts[i] = m.XYZ[i].Sub(z).Dot(prim) / norm
		}

		prob := efit.Problem{
			Func: func(x []float64) float64 {
				sse := 0.0
				for i := range m.V {
					d := acts[i] - ecolor.KneeActivation(m.V[i][k], x[0], x[1], ecolor.ClampUnit)
					sse += d*d
				}
				return sse
			},
			Constraints: []efit.LinearConstraint{efit.NonNegative(2, 0)},
		}

		res, err := efit.Minimize(prob, []float64{0, 2.2}, m.Settings)
		if err != nil {
			return p, efit.Result{}, fmt.Errorf("tristimulus fit1, channel %c: %w", "RGB"[k], err)
		}
		p.Knees[k] = ecolor.Knee{V0: res.X[0], Gamma: res.X[1]}
		last = res
	}

	return p, last, nil
}

func (m *TriStimulusModel)fit2(start TriStimulusParams) (TriStimulusParams, efit.Result, error) {
	n := 18
	prob := efit.Problem{
		Func: func(x []float64) float64 { return m.SSE(vecToTriStimulusParams(x)) },
		Constraints: []efit.LinearConstraint{
			efit.NonNegative(n, 12), efit.NonNegative(n, 13), efit.NonNegative(n, 14),
		},
	}

	res, err := efit.Minimize(prob, start.vec(), m.Settings)
	if err != nil {
		return start, efit.Result{}, fmt.Errorf("tristimulus fit2: %w", err)
	}
	return vecToTriStimulusParams(res.X), res, nil
}

// residuals are in activation units, with activations recovered from each
// measurement through the inverse of the primaries; three per measurement.
// Nil if the primaries are singular.
func (m *TriStimulusModel)residuals(p TriStimulusParams) []float64 {
	inv, err := p.Primaries.Inverse()
	if err != nil {
		return nil
	}
	ret := make([]float64, 0, 3*len(m.V))
	for i := range m.V {
		a := m.XYZ[i].Sub(p.Background).RowMult(inv)
		for k := 0; k < 3; k++ {
			ret = append(ret, a[k] - p.H(m.V[i][k], k))
		}
	}
	return ret
}

// SSE is the joint objective that Fit2 minimizes; +Inf for singular primaries.
func (m *TriStimulusModel)SSE(p TriStimulusParams) float64 {
	r := m.residuals(p)
	if r == nil && len(m.V) > 0 {
		return math.Inf(1)
	}
	sse := 0.0
	for _, d := range r {
		sse += d*d
	}
	return sse
}

// The evaluation methods need a successful Fit. On an unfitted model the
// ones that can fail return ErrNotFitted, and the rest return NaNs.
// TriStimulusParams evaluates arbitrary params.

func (m *TriStimulusModel)StimulusToXYZ(v emath.Vec3) hdrcolor.XYZ {
	if !m.Fitted {
		nan := math.NaN()
		return hdrcolor.XYZ{X: nan, Y: nan, Z: nan}
	}
	return m.Params.StimulusToXYZ(v)
}
func (m *TriStimulusModel)H(v float64, k int) float64 {
	if !m.Fitted { return math.NaN() }
	return m.Params.H(v, k)
}
func (m *TriStimulusModel)HInverse(a float64, k int) float64 {
	if !m.Fitted { return math.NaN() }
	return m.Params.HInverse(a, k)
}

func (m *TriStimulusModel)XYZToStimulus(xyz hdrcolor.XYZ) (emath.Vec3, error) {
	if !m.Fitted { return emath.Vec3{}, ErrNotFitted }
	return m.Params.XYZToStimulus(xyz)
}
func (m *TriStimulusModel)Activations(xyz hdrcolor.XYZ) (emath.Vec3, error) {
	if !m.Fitted { return emath.Vec3{}, ErrNotFitted }
	return m.Params.Activations(xyz)
}

func (m *TriStimulusModel)GammaCorrection() ([3]tonemap.ChannelFunc, error) {
	ret := [3]tonemap.ChannelFunc{}
	if !m.Fitted {
		return ret, ErrNotFitted
	}
	for k := 0; k < 3; k++ {
		f, err := m.Params.GammaCorrection(k)
		if err != nil {
			return ret, err
		}
		ret[k] = f
	}
	return ret, nil
}

func (m *TriStimulusModel)String() string {
	str := fmt.Sprintf("TriStimulusModel[%d measurements]", len(m.V))
	if m.Fitted {
		str += fmt.Sprintf("\n%s  %s\n  residuals: %s", m.Params, m.Result, m.Residuals)
		for i, c := range m.Params.Chromaticities() {
			str += fmt.Sprintf("\n  %-10s %s", []string{"red", "green", "blue", "background"}[i], c)
		}
	}
	return str
}
