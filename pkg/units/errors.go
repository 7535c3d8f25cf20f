package units

import "errors"

var (
	// ErrDivisionByZero is returned when inverting a linear conversion
	// whose gradient is zero.
	ErrDivisionByZero = errors.New("conversion gradient is zero")

	// ErrNotInvertible is returned when inverting a polynomial conversion
	// of degree greater than one.
	ErrNotInvertible = errors.New("polynomial conversion is not invertible")

	// ErrBadCurve is returned when calibration data is too short or not
	// monotone, so no piecewise conversion can be built from it.
	ErrBadCurve = errors.New("calibration curve is not strictly monotone")
)
