package calib

import(
	"fmt"
	"math"

	"github.com/abworrall/hdrp-calibrate/pkg/ecolor"
	"github.com/abworrall/hdrp-calibrate/pkg/efit"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

// The model test checks the whole story end to end: predict the linear
// light the renderer computes for each patch, push it through the cube
// it was rendered with, display-encode, and compare with what the
// renderer actually output.

// PredictLinear is the unprocessed value u for a sample. Unlit materials
// are just the material colour; lit ones follow the lambertian model.
func PredictLinear(s RenderSample, lambertian bool, scale float64) emath.Vec3 {
	enc := func(v emath.Vec3) emath.Vec3 { return ecolor.SRGBEncodeVec3(v, ecolor.ClampUnit) }

	m := enc(s.Material)
	if !lambertian {
		return m
	}

	cosTheta := math.Max(s.LightDir.Dot(s.Normal), 0)
	d := enc(s.Directional)
	light := d.Scale(s.DirIntensity * cosTheta / math.Pi).Add(s.Ambient.Scale(s.AmbIntensity))

	return emath.Vec3{m[0]*light[0], m[1]*light[1], m[2]*light[2]}.Scale(scale / math.Pow(2, s.Exposure))
}

type ModelTestResult struct {
	Samples   int             // used in the comparison
	Dropped   int             // possibly clipped, so skipped
	Residuals efit.Residuals  // predicted minus actual post-processed values, all channels
}

// MedianError is in units of 1/255.
func (r ModelTestResult)MedianError() float64 { return 255 * r.Residuals.P50 }

func (r ModelTestResult)String() string {
	return fmt.Sprintf("%d samples (%d dropped), error = %.2f / 255\n  %s",
		r.Samples, r.Dropped, r.MedianError(), r.Residuals)
}

func ModelTest(cfg Config, cube *tonemap.Cube, samples []RenderSample, lambertian bool) (ModelTestResult, error) {
	if cube.IsEmpty() {
		return ModelTestResult{}, tonemap.ErrEmptyCube
	}

	r := ModelTestResult{}
	res := []float64{}
	for _, s := range samples {
		if s.Display[0] > cfg.MaxDisplayValue || s.Display[1] > cfg.MaxDisplayValue || s.Display[2] > cfg.MaxDisplayValue {
			r.Dropped++
			continue
		}
		u := PredictLinear(s, lambertian, cfg.LambertScale)
		vhat := ecolor.SRGBDecodeVec3(cube.ApplyVec3(u), ecolor.ClampUnit)
		d := vhat.Sub(s.Display)
		res = append(res, d[0], d[1], d[2])
		r.Samples++
	}

	r.Residuals = efit.Summarize(res)
	return r, nil
}
