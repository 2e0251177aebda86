package efit

import(
	"fmt"
	"math"

	"github.com/codahale/hdrhistogram"
	"gonum.org/v1/gonum/floats"
)

// Residual magnitudes are binned at this resolution (1e-6), up to a max of 1e6.
const (
	histScale = 1e6
	histMax   = int64(1e12)
)

// Residuals summarizes how well a fit matched its data. The SSE, RMS and
// MaxAbs are exact; the percentiles of |residual| come from a histogram,
// and are good to about 1%.
type Residuals struct {
	N      int
	SSE    float64
	RMS    float64
	MaxAbs float64
	P50    float64
	P90    float64
	P99    float64

	Unbinned int // residuals the histogram refused; they are missing from the percentiles
}

func Summarize(res []float64) Residuals {
	r := Residuals{N: len(res)}
	if len(res) == 0 {
		return r
	}

	r.SSE = floats.Dot(res, res)
	r.RMS = math.Sqrt(r.SSE / float64(len(res)))
	r.MaxAbs = floats.Norm(res, math.Inf(1))

	h := hdrhistogram.New(1, histMax, 2)
	for _, v := range res {
		scaled := histMax
		if a := math.Round(math.Abs(v) * histScale); a <= float64(histMax) {
			scaled = int64(a) // NaN fails the test, and stays at the max
		}
		if err := h.RecordValue(scaled); err != nil {
			r.Unbinned++
		}
	}
	r.P50 = float64(h.ValueAtQuantile(50)) / histScale
	r.P90 = float64(h.ValueAtQuantile(90)) / histScale
	r.P99 = float64(h.ValueAtQuantile(99)) / histScale

	return r
}

func (r Residuals)String() string {
	str := fmt.Sprintf("n=%d, sse=%.4g, rms=%.4g, max=%.4g, |r| p50/p90/p99=%.3g/%.3g/%.3g",
		r.N, r.SSE, r.RMS, r.MaxAbs, r.P50, r.P90, r.P99)
	if r.Unbinned > 0 {
		str += fmt.Sprintf(" (%d unbinned)", r.Unbinned)
	}
	return str
}
