package tonemap

import(
	"fmt"

	"github.com/abworrall/hdrp-calibrate/pkg/efit"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
)

// Sampling a smooth function at the knots is not the best piecewise
// linear fit to it; the chords sag. Refine nudges the knot values in the
// range that matters (display values [1/255, 1]) so that interpolating
// the curve tracks the target function more closely.

type RefineOptions struct {
	Low      float64  // the first knot below this is the first one adjusted
	High     float64  // the first knot above this is the last one adjusted
	Samples  int      // evaluated over linspace(0, 1, Samples)
	Settings efit.Settings
}

func DefaultRefineOptions() RefineOptions {
	s := efit.DefaultSettings()
	s.Method = "lbfgs"
	return RefineOptions{Low: 1.0/255, High: 1.0, Samples: 100, Settings: s}
}

type RefineResult struct {
	First, Last int  // knot indices that were free
	Before      efit.Residuals
	After       efit.Residuals
	Fit         efit.Result
}

func (rr RefineResult)String() string {
	return fmt.Sprintf("refined knots [%d,%d]\n  before: %s\n  after:  %s\n  %s",
		rr.First, rr.Last, rr.Before, rr.After, rr.Fit)
}

// window is the range of knot indices that Refine will adjust.
func (opts RefineOptions)window(g KnotGrid) (int, int) {
	first := g.LastBelow(opts.Low)
	last := g.FirstAbove(opts.High)
	if first < 0 { first = 0 }
	if last > g.Len()-1 { last = g.Len()-1 }
	return first, last
}

// Refine returns new curves that better match target (per channel) over
// [0,1]. Values outside the window are left alone. The input curves are
// not modified.
func Refine(g KnotGrid, curves ChannelCurves, target [3]ChannelFunc, opts RefineOptions) (ChannelCurves, *RefineResult, error) {
	for ch := range curves {
		if len(curves[ch]) != g.Len() {
			return ChannelCurves{}, nil, fmt.Errorf("refine: channel %d has %d values, grid has %d knots: %w",
				ch, len(curves[ch]), g.Len(), ErrDimensionMismatch)
		}
	}
	if opts.Samples < 2 {
		return ChannelCurves{}, nil, fmt.Errorf("refine: need at least 2 samples, have %d", opts.Samples)
	}

	first, last := opts.window(g)
	if first >= last {
		return ChannelCurves{}, nil, fmt.Errorf("refine: empty window [%d,%d]: %w", first, last, ErrBadKnots)
	}
	width := last - first + 1

	// The samples, their cells, and their target values don't change
	u := emath.Linspace(0, 1, opts.Samples)
	cells := make([]int, len(u))
	fracs := make([]float64, len(u))
	want := [3][]float64{}
	for ch := range want {
		want[ch] = make([]float64, len(u))
	}
	for s := range u {
		cells[s], fracs[s] = g.Locate(u[s])
		for ch := range want {
			want[ch][s] = target[ch](u[s])
		}
	}

	work := curves.Copy()
	load := func(x []float64) {
		for ch := range work {
			copy(work[ch][first:last+1], x[ch*width:(ch+1)*width])
		}
	}
	residuals := func() []float64 {
		ret := make([]float64, 0, 3*len(u))
		for ch := range work {
			for s := range u {
				i, f := cells[s], fracs[s]
				ret = append(ret, (1-f)*work[ch][i] + f*work[ch][i+1] - want[ch][s])
			}
		}
		return ret
	}

	sse := func(x []float64) float64 {
		load(x)
		tot := 0.0
		for _, r := range residuals() {
			tot += r*r
		}
		return tot
	}

	grad := func(dst, x []float64) {
		load(x)
		for i := range dst { dst[i] = 0 }
		res := residuals()
		for ch := range work {
			for s := range u {
				r := res[ch*len(u) + s]
				i, f := cells[s], fracs[s]
				if i >= first && i <= last {
					dst[ch*width + i-first] += 2 * r * (1-f)
				}
				if i+1 >= first && i+1 <= last {
					dst[ch*width + i+1-first] += 2 * r * f
				}
			}
		}
	}

	x0 := make([]float64, 3*width)
	for ch := range curves {
		copy(x0[ch*width:(ch+1)*width], curves[ch][first:last+1])
	}

	rr := RefineResult{First: first, Last: last}
	load(x0)
	rr.Before = efit.Summarize(residuals())

	settings := opts.Settings
	if settings.Method == "" {
		settings.Method = "lbfgs"
	}
	fit, err := efit.Minimize(efit.Problem{Func: sse, Grad: grad}, x0, settings)
	if err != nil {
		return ChannelCurves{}, nil, fmt.Errorf("refine knots [%d,%d]: %w", first, last, err)
	}

	load(fit.X)
	rr.After = efit.Summarize(residuals())
	rr.Fit = fit

	return work.Copy(), &rr, nil
}
