package calib

import(
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/abworrall/hdrp-calibrate/pkg/ecolor"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

// Measurement files are CSV with a header row naming the columns, e.g.
//
//   m_k,lum
//   0.0,0.52
//   0.1,0.87

var ErrMissingColumn = errors.New("missing column")

// ReadColumns returns the named columns, in the order asked for. Other
// columns are ignored.
func ReadColumns(r io.Reader, names ...string) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("csv header: %v", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.TrimSpace(h)] = i
	}

	cols := make([]int, len(names))
	for i, name := range names {
		j, exists := idx[name]
		if !exists {
			return nil, fmt.Errorf("'%s' not in %v: %w", name, header, ErrMissingColumn)
		}
		cols[i] = j
	}

	ret := make([][]float64, len(names))
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, fmt.Errorf("csv line %d: %v", line, err)
		}
		for i, j := range cols {
			f, err := strconv.ParseFloat(strings.TrimSpace(rec[j]), 64)
			if err != nil {
				return nil, fmt.Errorf("csv line %d, column '%s': %v", line, names[i], err)
			}
			ret[i] = append(ret[i], f)
		}
	}

	return ret, nil
}

func readColumnsFromFile(filename string, names ...string) ([][]float64, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open+r '%s': %v", filename, err)
	}
	defer f.Close()

	cols, err := ReadColumns(f, names...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return cols, nil
}

func vec3s(x, y, z []float64) []emath.Vec3 {
	ret := make([]emath.Vec3, len(x))
	for i := range x {
		ret[i] = emath.Vec3{x[i], y[i], z[i]}
	}
	return ret
}

// LoadLuminanceCSV reads achromatic measurements: stimulus m_k, luminance lum.
func LoadLuminanceCSV(filename string) ([]float64, []float64, error) {
	cols, err := readColumnsFromFile(filename, "m_k", "lum")
	if err != nil {
		return nil, nil, err
	}
	return cols[0], cols[1], nil
}

// LoadTriStimulusCSV reads chromatic measurements: stimulus m_r,m_g,m_b
// and measured x,y,z.
func LoadTriStimulusCSV(filename string) ([]emath.Vec3, []emath.Vec3, error) {
	cols, err := readColumnsFromFile(filename, "m_r", "m_g", "m_b", "x", "y", "z")
	if err != nil {
		return nil, nil, err
	}
	return vec3s(cols[0], cols[1], cols[2]), vec3s(cols[3], cols[4], cols[5]), nil
}

// LoadImpulseCSV reads renders of the impulse cubes, and groups them by
// cube. delta_m is the 1-based impulse number; the scene is a lambertian
// plane lit with intensity i_d, so u = scale * i_d / pi; the tonemapped
// value is recovered from the red channel of the post-processed output.
func LoadImpulseCSV(filename string, scale float64) ([]tonemap.ImpulseResponse, error) {
	cols, err := readColumnsFromFile(filename, "delta_m", "i_d", "v_r")
	if err != nil {
		return nil, err
	}

	byIndex := map[int]*tonemap.ImpulseResponse{}
	order := []int{}
	for i := range cols[0] {
		m := int(math.Round(cols[0][i])) - 1
		ir, exists := byIndex[m]
		if !exists {
			ir = &tonemap.ImpulseResponse{Index: m}
			byIndex[m] = ir
			order = append(order, m)
		}
		ir.U = append(ir.U, scale * cols[1][i] / math.Pi)
		ir.T = append(ir.T, ecolor.SRGBEncode(cols[2][i], ecolor.ClampUnit))
	}

	ret := []tonemap.ImpulseResponse{}
	for _, m := range order {
		ret = append(ret, *byIndex[m])
	}
	return ret, nil
}

// A RenderSample is one patch from the random-scene renders: the scene
// parameters that went in, and the post-processed colour that came out.
type RenderSample struct {
	Exposure     float64     // e, in stops
	Material     emath.Vec3  // m, display-encoded
	Directional  emath.Vec3  // d, display-encoded light colour
	Ambient      emath.Vec3  // a
	DirIntensity float64     // i_d
	AmbIntensity float64     // i_a
	LightDir     emath.Vec3  // l
	Normal       emath.Vec3  // n
	Display      emath.Vec3  // v, the post-processed output
}

func LoadRenderCSV(filename string) ([]RenderSample, error) {
	names := []string{"e", "m_r", "m_g", "m_b", "d_r", "d_g", "d_b", "a_r", "a_g", "a_b",
		"i_d", "i_a", "l_x", "l_y", "l_z", "n_x", "n_y", "n_z", "v_r", "v_g", "v_b"}
	c, err := readColumnsFromFile(filename, names...)
	if err != nil {
		return nil, err
	}

	ret := make([]RenderSample, len(c[0]))
	for i := range ret {
		ret[i] = RenderSample{
			Exposure:     c[0][i],
			Material:     emath.Vec3{c[1][i], c[2][i], c[3][i]},
			Directional:  emath.Vec3{c[4][i], c[5][i], c[6][i]},
			Ambient:      emath.Vec3{c[7][i], c[8][i], c[9][i]},
			DirIntensity: c[10][i],
			AmbIntensity: c[11][i],
			LightDir:     emath.Vec3{c[12][i], c[13][i], c[14][i]},
			Normal:       emath.Vec3{c[15][i], c[16][i], c[17][i]},
			Display:      emath.Vec3{c[18][i], c[19][i], c[20][i]},
		}
	}
	return ret, nil
}
