package units

import (
	pkgerrors "github.com/pkg/errors"
)

// Curve holds paired calibration samples measured on a device: Eng is the
// engineering-unit axis (e.g. magnet current in amperes) and Phys is the
// measured physics response (e.g. integrated field strength).
//
// Eng must be strictly increasing. Phys must be strictly monotone, in
// either direction, so the inverse mapping is single-valued as well.
type Curve struct {
	Eng  []float64
	Phys []float64
}

// NewCurve validates the sample arrays and returns a Curve. The slices are
// copied so later mutation of the arguments cannot corrupt the curve.
func NewCurve(eng, phys []float64) (*Curve, error) {
	if len(eng) != len(phys) {
		return nil, pkgerrors.Wrapf(ErrBadCurve, "sample count mismatch: %d engineering vs %d physics", len(eng), len(phys))
	}
	if len(eng) < 2 {
		return nil, pkgerrors.Wrapf(ErrBadCurve, "need at least 2 samples, got %d", len(eng))
	}
	if !strictlyIncreasing(eng) {
		return nil, pkgerrors.Wrap(ErrBadCurve, "engineering samples must be strictly increasing")
	}
	if !strictlyIncreasing(phys) && !strictlyDecreasing(phys) {
		return nil, pkgerrors.Wrap(ErrBadCurve, "physics samples must be strictly increasing or decreasing")
	}

	c := &Curve{
		Eng:  make([]float64, len(eng)),
		Phys: make([]float64, len(phys)),
	}
	copy(c.Eng, eng)
	copy(c.Phys, phys)
	return c, nil
}

// Len returns the number of calibration samples.
func (c *Curve) Len() int {
	return len(c.Eng)
}

// Decreasing reports whether the physics response falls as the
// engineering value rises.
func (c *Curve) Decreasing() bool {
	return c.Phys[len(c.Phys)-1] < c.Phys[0]
}

func strictlyIncreasing(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return true
}

func strictlyDecreasing(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] >= xs[i-1] {
			return false
		}
	}
	return true
}
