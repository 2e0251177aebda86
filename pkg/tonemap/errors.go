package tonemap

import(
	"errors"
	"fmt"
)

var(
	// A channel curve, or an input array, has the wrong length or shape
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// Apply was given rows that are not RGB triples
	ErrShapeMismatch = fmt.Errorf("shape mismatch: %w", ErrDimensionMismatch)

	// Apply was given a NaN or infinite component
	ErrNonFinite = errors.New("non-finite input")

	// A cube file's size disagrees with the knot grid, or isn't a perfect cube
	ErrSizeMismatch = errors.New("size mismatch")

	// The cube has no values yet; call one of the SetChannels funcs, or Load
	ErrEmptyCube = errors.New("cube has no values")

	// The knot coordinates are not usable
	ErrBadKnots = errors.New("bad knot grid")
)
