package charmodel

import(
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/abworrall/hdrp-calibrate/pkg/efit"
)

// Once a gamma correction cube is installed, the display's output should
// be proportional to the unprocessed input. Linearity is the straight
// line through the origin that best fits output y against input u.
type Linearity struct {
	Slope     float64
	RSquared  float64
	Residuals efit.Residuals
}

func CheckLinearity(u, y []float64) (Linearity, error) {
	if len(u) != len(y) {
		return Linearity{}, fmt.Errorf("%d inputs, %d outputs: %w", len(u), len(y), ErrDimensionMismatch)
	}
	if len(u) < 2 {
		return Linearity{}, fmt.Errorf("need at least 2 points, have %d: %w", len(u), ErrDimensionMismatch)
	}

	_, slope := stat.LinearRegression(u, y, nil, true)
	res := make([]float64, len(u))
	for i := range u {
		res[i] = y[i] - slope*u[i]
	}

	return Linearity{
		Slope:     slope,
		RSquared:  stat.RSquared(u, y, nil, 0, slope),
		Residuals: efit.Summarize(res),
	}, nil
}

func (l Linearity)String() string {
	return fmt.Sprintf("slope=%.5g, R^2=%.6f, %s", l.Slope, l.RSquared, l.Residuals)
}
