package tonemap

// A ChannelFunc is a tonemapping function for one channel: it maps an
// unprocessed value u_k to a tonemapped value t_k.
type ChannelFunc func(u float64) float64

// ChannelCurves holds one value per knot, for each of R, G and B.
type ChannelCurves [3][]float64

// SampleCurve evaluates f at every knot.
func SampleCurve(g KnotGrid, f ChannelFunc) []float64 {
	ret := make([]float64, g.Len())
	for i, u := range g.U {
		ret[i] = f(u)
	}
	return ret
}

func SampleChannels(g KnotGrid, fns [3]ChannelFunc) ChannelCurves {
	return ChannelCurves{SampleCurve(g, fns[0]), SampleCurve(g, fns[1]), SampleCurve(g, fns[2])}
}

func (cc ChannelCurves)Copy() ChannelCurves {
	ret := ChannelCurves{}
	for ch := range cc {
		ret[ch] = append([]float64{}, cc[ch]...)
	}
	return ret
}

// Build makes a new cube from the curves.
func (cc ChannelCurves)Build(g KnotGrid) (*Cube, error) {
	c, err := NewCube(g)
	if err != nil {
		return nil, err
	}
	return c, c.SetChannelsPerChannel(cc[0], cc[1], cc[2])
}

// PinAboveOne sets every value to 1, starting from the second value
// that exceeds 1. The first one is kept, so that interpolation still
// reaches 1 at the right input. Modifies curve in place.
func PinAboveOne(curve []float64) []float64 {
	seen := 0
	for i := range curve {
		if curve[i] > 1 {
			seen++
		}
		if seen >= 2 {
			curve[i] = 1
		}
	}
	return curve
}

// PinBeyond sets to 1 the values at all knots after the first knot above
// u. Modifies curve in place.
func PinBeyond(g KnotGrid, curve []float64, u float64) []float64 {
	for i := g.FirstAbove(u) + 1; i < len(curve); i++ {
		curve[i] = 1
	}
	return curve
}
