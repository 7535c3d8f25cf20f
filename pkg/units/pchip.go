package units

import (
	"math"
	"sort"
)

// pchip is a piecewise cubic Hermite interpolant with Fritsch-Carlson
// tangents. For monotone knot values the interpolant is monotone on every
// segment, which keeps the conversion invertible and free of the
// oscillation a plain cubic spline would introduce.
//
// Knot abscissae must be strictly increasing; ordinates must be monotone.
type pchip struct {
	xs []float64
	ys []float64
	ms []float64 // tangent at each knot
}

func newPchip(xs, ys []float64) *pchip {
	n := len(xs)
	p := &pchip{xs: xs, ys: ys, ms: make([]float64, n)}

	if n == 2 {
		// Two points degenerate to a straight line.
		d := (ys[1] - ys[0]) / (xs[1] - xs[0])
		p.ms[0], p.ms[1] = d, d
		return p
	}

	h := make([]float64, n-1) // segment widths
	d := make([]float64, n-1) // segment secants
	for i := 0; i < n-1; i++ {
		h[i] = xs[i+1] - xs[i]
		d[i] = (ys[i+1] - ys[i]) / h[i]
	}

	// Interior tangents: weighted harmonic mean of neighbouring secants,
	// zeroed when the secants disagree in sign (local extremum).
	for i := 1; i < n-1; i++ {
		if d[i-1] == 0 || d[i] == 0 || (d[i-1] > 0) != (d[i] > 0) {
			continue // tangent stays zero
		}
		w1 := 2*h[i] + h[i-1]
		w2 := h[i] + 2*h[i-1]
		p.ms[i] = (w1 + w2) / (w1/d[i-1] + w2/d[i])
	}

	p.ms[0] = edgeTangent(h[0], h[1], d[0], d[1])
	p.ms[n-1] = edgeTangent(h[n-2], h[n-3], d[n-2], d[n-3])

	return p
}

// edgeTangent is the shape-preserving three-point estimate for an
// endpoint tangent, limited so the boundary segment stays monotone.
func edgeTangent(h0, h1, d0, d1 float64) float64 {
	m := ((2*h0+h1)*d0 - h0*d1) / (h0 + h1)
	if d0 == 0 || (m > 0) != (d0 > 0) {
		return 0
	}
	if (d0 > 0) != (d1 > 0) && math.Abs(m) > 3*math.Abs(d0) {
		return 3 * d0
	}
	return m
}

// eval interpolates at v. Outside the sampled domain the boundary knot's
// tangent is extended linearly, in both directions, so extrapolated
// values stay consistent between forward and inverse conversions.
func (p *pchip) eval(v float64) float64 {
	n := len(p.xs)
	if v <= p.xs[0] {
		return p.ys[0] + p.ms[0]*(v-p.xs[0])
	}
	if v >= p.xs[n-1] {
		return p.ys[n-1] + p.ms[n-1]*(v-p.xs[n-1])
	}

	// Index of the segment [xs[i], xs[i+1]) containing v.
	i := sort.SearchFloat64s(p.xs, v)
	if p.xs[i] > v {
		i--
	}
	if v == p.xs[i] {
		return p.ys[i]
	}

	h := p.xs[i+1] - p.xs[i]
	t := (v - p.xs[i]) / h
	t2 := t * t
	t3 := t2 * t

	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2

	return h00*p.ys[i] + h10*h*p.ms[i] + h01*p.ys[i+1] + h11*h*p.ms[i+1]
}
