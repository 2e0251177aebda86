package ecolor

import(
	"math"

	"github.com/abworrall/hdrp-calibrate/pkg/emath"
)

// Constants in the sRGB nonlinearity
const(
	srgbPhi    = 12.92
	srgbGamma  = 2.4
	srgbA      = 0.055
	srgbX      = 0.04045    // threshold on the encoded side
	srgbY      = 0.0031308  // threshold on the linear side
)

// Clamp picks the upper bound that inputs are clipped to, before a
// nonlinearity is applied. The lower bound is fixed by each function.
type Clamp int

const(
	ClampUnit Clamp = iota  // clip to [lower, 1]
	ClampOpen               // clip to [lower, +Inf)
)

func (c Clamp)Upper() float64 {
	if c == ClampOpen {
		return math.Inf(1)
	}
	return 1.0
}

func (c Clamp)String() string {
	if c == ClampOpen {
		return "open"
	}
	return "unit"
}

// SRGBEncode maps a display-encoded value onto the linear scale: x/12.92
// below the 0.04045 threshold, the 2.4 power curve above it. This is
// how a post-processed value v_k becomes an unprocessed value u_k.
func SRGBEncode(x float64, c Clamp) float64 {
	x = emath.Clip(x, 0, c.Upper())
	if x < srgbX {
		return x / srgbPhi
	} else if x == 1 {
		return 1 // exactly; the power curve can land a ulp short
	}
	return math.Pow((x+srgbA)/(1+srgbA), srgbGamma)
}

// SRGBDecode is the exact inverse of SRGBEncode.
func SRGBDecode(y float64, c Clamp) float64 {
	y = emath.Clip(y, 0, c.Upper())
	if y < srgbY {
		return y * srgbPhi
	} else if y == 1 {
		return 1
	}
	return math.Pow(y, 1/srgbGamma)*(1+srgbA) - srgbA
}

func SRGBEncodeVec3(v emath.Vec3, c Clamp) emath.Vec3 {
	return emath.Vec3{SRGBEncode(v[0], c), SRGBEncode(v[1], c), SRGBEncode(v[2], c)}
}

func SRGBDecodeVec3(v emath.Vec3, c Clamp) emath.Vec3 {
	return emath.Vec3{SRGBDecode(v[0], c), SRGBDecode(v[1], c), SRGBDecode(v[2], c)}
}

// Map applies fn to every element of xs, returning a new slice.
func Map(xs []float64, fn func(float64) float64) []float64 {
	ret := make([]float64, len(xs))
	for i, x := range xs {
		ret[i] = fn(x)
	}
	return ret
}
