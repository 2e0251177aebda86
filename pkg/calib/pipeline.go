package calib

import(
	"fmt"
	"log"

	"github.com/abworrall/hdrp-calibrate/pkg/charmodel"
	"github.com/abworrall/hdrp-calibrate/pkg/ecolor"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

// A Calibration is a cube built to approximate some per-channel tonemap
// functions, and how well it does so. Nothing is written to disk here;
// callers save the cube once everything has worked.
type Calibration struct {
	Target  [3]tonemap.ChannelFunc
	Curves  tonemap.ChannelCurves
	Cube    *tonemap.Cube
	Refine  *tonemap.RefineResult  // nil if refinement was off
}

// LinearizingCube samples fns at the knots, pins everything past the first
// knot above RefineHigh to 1, and (optionally) refines the knot values.
func LinearizingCube(cfg Config, fns [3]tonemap.ChannelFunc, title string) (*Calibration, error) {
	g, err := cfg.KnotGrid()
	if err != nil {
		return nil, err
	}

	cal := Calibration{Target: fns}
	cal.Curves = tonemap.SampleChannels(g, fns)
	for ch := range cal.Curves {
		tonemap.PinBeyond(g, cal.Curves[ch], cfg.RefineHigh)
	}

	if cfg.DoRefine {
		curves, rr, err := tonemap.Refine(g, cal.Curves, fns, cfg.RefineOptions())
		if err != nil {
			return nil, err
		}
		cal.Curves, cal.Refine = curves, rr
		if cfg.Verbosity > 0 {
			log.Printf("%s: %s\n", title, rr)
		}
	}

	if cal.Cube, err = cal.Curves.Build(g); err != nil {
		return nil, err
	}
	cal.Cube.Title = title

	return &cal, nil
}

func CalibrateLuminance(cfg Config, v, lum []float64) (*charmodel.LuminanceModel, *Calibration, error) {
	gi, err := cfg.GetGammaInit()
	if err != nil {
		return nil, nil, err
	}

	m, err := charmodel.NewLuminanceModel(v, lum)
	if err != nil {
		return nil, nil, err
	}
	m.GammaInit = gi
	m.Settings = cfg.Optimizer

	if err := m.Fit(); err != nil {
		return nil, nil, err
	}
	if cfg.Verbosity > 0 {
		log.Printf("%s\n", m)
	}

	f, err := m.GammaCorrection()
	if err != nil {
		return nil, nil, err
	}
	cal, err := LinearizingCube(cfg, [3]tonemap.ChannelFunc{f, f, f}, "linearize_achromatic.cube")
	if err != nil {
		return nil, nil, fmt.Errorf("luminance cube: %w", err)
	}

	return m, cal, nil
}

func CalibrateTriStimulus(cfg Config, v, xyz []emath.Vec3) (*charmodel.TriStimulusModel, *Calibration, error) {
	m, err := charmodel.NewTriStimulusModel(v, xyz)
	if err != nil {
		return nil, nil, err
	}
	m.ProbeTolerance = cfg.ProbeTolerance
	m.Settings = cfg.Optimizer

	if err := m.Fit(); err != nil {
		return nil, nil, err
	}
	if cfg.Verbosity > 0 {
		log.Printf("%s\n", m)
	}

	fns, err := m.GammaCorrection()
	if err != nil {
		return nil, nil, err
	}
	cal, err := LinearizingCube(cfg, fns, "linearize_chromatic.cube")
	if err != nil {
		return nil, nil, fmt.Errorf("tristimulus cube: %w", err)
	}

	return m, cal, nil
}

// PredictLuminance is what the display should emit for grey inputs u,
// once the cube is installed: the cube's output gets display-encoded by
// the renderer, then the display does its thing.
func PredictLuminance(p charmodel.LuminanceParams, cube *tonemap.Cube, u []float64) []float64 {
	ret := make([]float64, len(u))
	for i := range u {
		t := cube.ApplyVec3(emath.Vec3{u[i], u[i], u[i]})
		ret[i] = p.StimulusToLuminance(ecolor.SRGBDecode(t[0], ecolor.ClampUnit))
	}
	return ret
}

// CheckLuminanceLinearity takes measurements made with a linearizing
// cube installed, and checks that luminance is proportional to u.
func CheckLuminanceLinearity(m, lum []float64) (charmodel.Linearity, error) {
	u := ecolor.Map(m, func(x float64) float64 { return ecolor.SRGBEncode(x, ecolor.ClampUnit) })
	return charmodel.CheckLinearity(u, lum)
}

// CheckTriStimulusLinearity does the same for colour: the primary
// coefficients (activation plus background weight) should each be
// proportional to that channel's u.
func CheckTriStimulusLinearity(p charmodel.TriStimulusParams, m, xyz []emath.Vec3) ([3]charmodel.Linearity, error) {
	ret := [3]charmodel.Linearity{}
	if len(m) != len(xyz) {
		return ret, fmt.Errorf("%d stimuli, %d XYZ measurements: %w", len(m), len(xyz), charmodel.ErrDimensionMismatch)
	}
	w, err := p.BackgroundWeights()
	if err != nil {
		return ret, err
	}

	u, coef := [3][]float64{}, [3][]float64{}
	for i := range m {
		a, err := p.Activations(ecolor.VecToXYZ(xyz[i]))
		if err != nil {
			return ret, err
		}
		for k := 0; k < 3; k++ {
			u[k] = append(u[k], ecolor.SRGBEncode(m[i][k], ecolor.ClampUnit))
			coef[k] = append(coef[k], a[k] + w[k])
		}
	}

	for k := 0; k < 3; k++ {
		if ret[k], err = charmodel.CheckLinearity(u[k], coef[k]); err != nil {
			return ret, err
		}
	}
	return ret, nil
}
