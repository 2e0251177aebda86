package ecolor

import(
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mdouchement/hdr/hdrcolor"

	"github.com/abworrall/hdrp-calibrate/pkg/emath"
)

func VecToXYZ(v emath.Vec3) hdrcolor.XYZ   { return hdrcolor.XYZ{X: v[0], Y: v[1], Z: v[2]} }
func XYZToVec(xyz hdrcolor.XYZ) emath.Vec3 { return emath.Vec3{xyz.X, xyz.Y, xyz.Z} }

// Chromaticity is a CIE xyY coordinate; (x, y) is the colour, Y the luminance.
type Chromaticity struct {
	X, Y, Lum float64
}

func NewChromaticity(xyz hdrcolor.XYZ) Chromaticity {
	x, y, lum := colorful.XyzToXyy(xyz.X, xyz.Y, xyz.Z)
	return Chromaticity{X: x, Y: y, Lum: lum}
}

func (c Chromaticity)String() string {
	return fmt.Sprintf("xyY[%.4f, %.4f, %9.4f]", c.X, c.Y, c.Lum)
}
