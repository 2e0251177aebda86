package calib

import(
	"fmt"
	"math"
	"path/filepath"

	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

// The reference cubes used to check the renderer: simple power laws,
// scaled so that either u=1 or u=58 maps to full white.
var standardCurves = []struct{
	name  string
	power float64
}{
	{"linear",      1.0},
	{"square",      2.0},
	{"square_root", 0.5},
}

var standardScales = []float64{1, 58}

func StandardCubes(g tonemap.KnotGrid) ([]*tonemap.Cube, error) {
	ret := []*tonemap.Cube{}
	for _, sc := range standardCurves {
		for _, max := range standardScales {
			power, scale := sc.power, max
			curve := tonemap.SampleCurve(g, func(u float64) float64 { return math.Pow(u/scale, power) })
			tonemap.PinAboveOne(curve)

			c, err := tonemap.NewCube(g)
			if err != nil {
				return nil, err
			}
			if err := c.SetChannelsUniform(curve); err != nil {
				return nil, err
			}
			c.Title = fmt.Sprintf("%s_max%g.cube", sc.name, max)
			ret = append(ret, c)
		}
	}
	return ret, nil
}

// ImpulseCubes returns one cube per knot, for the knot estimation renders.
func ImpulseCubes(g tonemap.KnotGrid) ([]*tonemap.Cube, error) {
	ret := []*tonemap.Cube{}
	for m:=0; m<g.Len(); m++ {
		c, err := tonemap.ImpulseCube(g, m)
		if err != nil {
			return nil, err
		}
		ret = append(ret, c)
	}
	return ret, nil
}

// SaveCubes writes each cube into dir, named after its title.
func SaveCubes(dir string, cubes ...*tonemap.Cube) ([]string, error) {
	filenames := []string{}
	for _, c := range cubes {
		filename := filepath.Join(dir, c.Title)
		if err := c.Save(filename); err != nil {
			return filenames, err
		}
		filenames = append(filenames, filename)
	}
	return filenames, nil
}
