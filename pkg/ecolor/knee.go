package ecolor

import(
	"fmt"
	"math"

	"github.com/abworrall/hdrp-calibrate/pkg/emath"
)

// KneeActivation is a normalized power law with a dead zone: inputs at
// or below v0 give zero, 1.0 gives one.
func KneeActivation(v, v0, gamma float64, c Clamp) float64 {
	v = emath.Clip(v, v0, c.Upper())
	return math.Pow((v-v0)/(1-v0), gamma)
}

// KneeActivationInverse maps an activation back to a stimulus. Everything
// below v0 collapsed onto zero, so the result is never below v0.
func KneeActivationInverse(p, v0, gamma float64, c Clamp) float64 {
	p = emath.Clip(p, 0, c.Upper())
	return v0 + (1-v0)*math.Pow(p, 1/gamma)
}

// A Knee holds the parameters of one channel's activation function.
type Knee struct {
	V0    float64  // stimulus cutoff
	Gamma float64  // exponent above the cutoff
}

func (k Knee)At(v float64, c Clamp) float64      { return KneeActivation(v, k.V0, k.Gamma, c) }
func (k Knee)Inverse(p float64, c Clamp) float64 { return KneeActivationInverse(p, k.V0, k.Gamma, c) }

func (k Knee)String() string {
	return fmt.Sprintf("knee{v0=%.5f, gamma=%.4f}", k.V0, k.Gamma)
}
