package charmodel

import(
	"errors"

	"github.com/abworrall/hdrp-calibrate/pkg/tonemap"
)

var(
	// A tri-stimulus fit needs the black probe, and each primary at full strength
	ErrMissingCalibrationProbe = errors.New("missing calibration probe")

	// Measurement arrays of different lengths, or too few of them
	ErrDimensionMismatch = tonemap.ErrDimensionMismatch

	// The measured primaries are (nearly) linearly dependent
	ErrIllConditioned = errors.New("ill-conditioned primaries")

	// Evaluation was attempted before a successful Fit
	ErrNotFitted = errors.New("model has not been fitted")
)
