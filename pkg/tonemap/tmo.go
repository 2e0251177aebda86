package tonemap

import(
	"image"
	"image/color"
	"math"

	"github.com/mdouchement/hdr"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/hdrp-calibrate/pkg/ecolor"
	"github.com/abworrall/hdrp-calibrate/pkg/emath"
)

// CubeTMO is a tmo.ToneMappingOperator that pushes every pixel of an HDR
// image through a cube, the same way the renderer would. Handy for
// eyeballing a calibration cube against a known scene.
type CubeTMO struct {
	Cube     *Cube
	Input    hdr.Image
	Exposure float64  // linear multiplier applied to the input before the lookup
	Decode   bool     // display-encode the cube output (sRGB); turn off for linear output
}

func NewCubeTMO(c *Cube, img hdr.Image) *CubeTMO {
	return &CubeTMO{Cube: c, Input: img, Exposure: 1.0, Decode: true}
}

// Pixel returns the display value for a single linear input, in [0,1].
func (t *CubeTMO)Pixel(rgb emath.Vec3) emath.Vec3 {
	out := t.Cube.ApplyVec3(rgb.Scale(t.Exposure))
	if t.Decode {
		out = ecolor.SRGBDecodeVec3(out, ecolor.ClampUnit)
	}
	out.FloorAt(0)
	out.CeilingAt(1)
	return out
}

// Perform implements tmo.ToneMappingOperator.
func (t *CubeTMO)Perform() image.Image {
	b := t.Input.Bounds()
	img := image.NewRGBA64(b)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := t.Input.HDRAt(x, y).HDRRGBA()
			v := t.Pixel(emath.Vec3{r, g, bl})
			img.SetRGBA64(x, y, color.RGBA64{to16(v[0]), to16(v[1]), to16(v[2]), 0xffff})
		}
	}

	return img
}

func to16(f float64) uint16 { return uint16(math.Round(f * 0xffff)) }

// Ramp is a synthetic HDR test image: each row is a horizontal ramp of
// grey from 0 to Max, in linear light, with the row number picking which
// channels are lit (row%8 as a bitmask: 1=R, 2=G, 4=B; 0 means all three).
type Ramp struct {
	W, H int
	Max  float64
}

func (r Ramp)ColorModel() color.Model { return hdrcolor.RGBModel }
func (r Ramp)Bounds() image.Rectangle { return image.Rect(0, 0, r.W, r.H) }
func (r Ramp)At(x, y int) color.Color { return r.HDRAt(x, y) }
func (r Ramp)Size() int               { return r.W * r.H }

func (r Ramp)HDRAt(x, y int) hdrcolor.Color {
	v := 0.0
	if r.W > 1 {
		v = r.Max * float64(x) / float64(r.W-1)
	}
	mask := y % 8
	if mask == 0 { mask = 7 }

	ret := hdrcolor.RGB{}
	if mask & 1 != 0 { ret.R = v }
	if mask & 2 != 0 { ret.G = v }
	if mask & 4 != 0 { ret.B = v }
	return ret
}
