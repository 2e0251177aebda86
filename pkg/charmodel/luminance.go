package charmodel

import(
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/abworrall/hdrp-calibrate/pkg/ecolor"
	"github.com/abworrall/hdrp-calibrate/pkg/efit"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

// The luminance model of a display, for achromatic (grey) stimuli:
//
//   lum = L0 + L1 * knee(v; v0, gamma)
//
// where v is the post-processed pixel value that the display is sent.

// How the fit picks its starting gamma
type GammaInit int

const(
	GammaInitFixed  GammaInit = iota  // start from DefaultGamma
	GammaInitLogLog                   // slope of log(lum) vs log(v), over v > 0.1
)

const DefaultGamma = 3.0

func (gi GammaInit)String() string {
	if gi == GammaInitLogLog { return "loglog" }
	return "fixed"
}

func ParseGammaInit(s string) (GammaInit, error) {
	switch s {
	case "", "fixed": return GammaInitFixed, nil
	case "loglog":    return GammaInitLogLog, nil
	}
	return GammaInitFixed, fmt.Errorf("gamma init '%s' not recognized, wanted [fixed loglog]", s)
}

type LuminanceParams struct {
	L0   float64  // luminance when the display is sent black
	L1   float64  // luminance range
	Knee ecolor.Knee
}

func (p LuminanceParams)String() string {
	return fmt.Sprintf("L0=%.4f, L1=%.4f, %s", p.L0, p.L1, p.Knee)
}

func (p LuminanceParams)StimulusToLuminance(v float64) float64 {
	return p.L0 + p.L1 * p.Knee.At(v, ecolor.ClampUnit)
}

func (p LuminanceParams)LuminanceToStimulus(lum float64) float64 {
	return p.Knee.Inverse(emath.Clip((lum - p.L0) / p.L1, 0, 1), ecolor.ClampUnit)
}

// GammaCorrection is the tonemap that makes luminance proportional to the
// unprocessed input u, with u=1 landing on full white. The black level is
// handled by asking for slightly less activation than u, so that u=0
// lands on the display's black. Nothing is clamped at 1, so the first
// knot above 1 gets a value above 1 and interpolation still reaches 1.
func (p LuminanceParams)GammaCorrection() tonemap.ChannelFunc {
	w := p.L0 / p.L1
	return func(u float64) float64 {
		v := p.Knee.Inverse((1+w)*u - w, ecolor.ClampOpen)
		return ecolor.SRGBEncode(v, ecolor.ClampOpen)
	}
}

type LuminanceModel struct {
	V         []float64  // stimuli, post-processed values in [0,1]
	Lum       []float64  // measured luminances (cd/m^2)

	GammaInit GammaInit
	Settings  efit.Settings

	Params    LuminanceParams
	Fitted    bool
	Result    efit.Result
	Residuals efit.Residuals
}

func NewLuminanceModel(v, lum []float64) (*LuminanceModel, error) {
	if len(v) != len(lum) {
		return nil, fmt.Errorf("%d stimuli, %d luminances: %w", len(v), len(lum), ErrDimensionMismatch)
	}
	if len(v) < 4 {
		return nil, fmt.Errorf("need at least 4 measurements to fit 4 params, have %d: %w", len(v), ErrDimensionMismatch)
	}
	return &LuminanceModel{
		V:        append([]float64{}, v...),
		Lum:      append([]float64{}, lum...),
		Settings: efit.DefaultSettings(),
	}, nil
}

// InitialGamma is where the fit starts gamma from.
func (m *LuminanceModel)InitialGamma() float64 {
	if m.GammaInit != GammaInitLogLog {
		return DefaultGamma
	}

	x, y := []float64{}, []float64{}
	for i := range m.V {
		if m.V[i] > 0.1 && m.Lum[i] > 0 {
			x = append(x, math.Log(m.V[i]))
			y = append(y, math.Log(m.Lum[i]))
		}
	}
	if len(x) < 2 {
		return DefaultGamma
	}
	_, slope := stat.LinearRegression(x, y, nil, false)
	if !emath.IsFinite(slope) || slope <= 0 {
		return DefaultGamma
	}
	return slope
}

func (m *LuminanceModel)residuals(p LuminanceParams) []float64 {
	ret := make([]float64, len(m.V))
	for i := range m.V {
		ret[i] = m.Lum[i] - p.StimulusToLuminance(m.V[i])
	}
	return ret
}

func vecToLuminanceParams(x []float64) LuminanceParams {
	return LuminanceParams{L0: x[0], L1: x[1], Knee: ecolor.Knee{V0: x[2], Gamma: x[3]}}
}

// Fit finds the params that minimize squared luminance error, subject
// to v0 >= 0. The model is only updated if the fit succeeds.
func (m *LuminanceModel)Fit() error {
	lo, hi := floats.Min(m.Lum), floats.Max(m.Lum)
	x0 := []float64{lo, hi - lo, 0, m.InitialGamma()}

	prob := efit.Problem{
		Func: func(x []float64) float64 {
			r := m.residuals(vecToLuminanceParams(x))
			return floats.Dot(r, r)
		},
		Constraints: []efit.LinearConstraint{efit.NonNegative(4, 2)},
	}

	res, err := efit.Minimize(prob, x0, m.Settings)
	if err != nil {
		return fmt.Errorf("luminance fit: %w", err)
	}

	m.Params = vecToLuminanceParams(res.X)
	m.Fitted = true
	m.Result = res
	m.Residuals = efit.Summarize(m.residuals(m.Params))
	return nil
}

// StimulusToLuminance and LuminanceToStimulus need a successful Fit; on
// an unfitted model they return NaN. Use LuminanceParams to evaluate
// arbitrary params.
func (m *LuminanceModel)StimulusToLuminance(v float64) float64 {
	if !m.Fitted { return math.NaN() }
	return m.Params.StimulusToLuminance(v)
}
func (m *LuminanceModel)LuminanceToStimulus(l float64) float64 {
	if !m.Fitted { return math.NaN() }
	return m.Params.LuminanceToStimulus(l)
}

func (m *LuminanceModel)GammaCorrection() (tonemap.ChannelFunc, error) {
	if !m.Fitted {
		return nil, ErrNotFitted
	}
	return m.Params.GammaCorrection(), nil
}

func (m *LuminanceModel)String() string {
	str := fmt.Sprintf("LuminanceModel[%d measurements, gamma init %s]", len(m.V), m.GammaInit)
	if m.Fitted {
		str += fmt.Sprintf("\n  %s\n  %s\n  residuals: %s", m.Params, m.Result, m.Residuals)
	}
	return str
}
