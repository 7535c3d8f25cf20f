package units

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind selects the conversion algorithm of a Conv.
type Kind int

const (
	// Null performs no conversion: the quantity is already physical, or
	// has no meaningful unit distinction (flags, orbit response matrices).
	Null Kind = iota
	// Poly evaluates a polynomial in ascending powers. Only degree <= 1
	// occurs in practice and only degree <= 1 is invertible.
	Poly
	// Pchip interpolates a measured calibration curve with a monotone
	// piecewise cubic.
	Pchip
)

// String returns the table representation of the kind.
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Poly:
		return "poly"
	case Pchip:
		return "pchip"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind parses the table representation of a conversion kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "null", "":
		return Null, nil
	case "poly":
		return Poly, nil
	case "pchip":
		return Pchip, nil
	default:
		return Null, fmt.Errorf("unknown conversion kind %q", s)
	}
}

// Conv converts a field's value between engineering and physics units.
//
// A Conv is built once, at registry construction, and never mutated
// afterwards; concurrent calls to the conversion methods need no locking.
// Exactly one of Coeffs/Curve is populated, matching Kind.
type Conv struct {
	Kind Kind

	// Coeffs are polynomial coefficients in ascending powers:
	// phys = sum(Coeffs[i] * eng^i). Present for Poly only.
	Coeffs []float64

	// Curve is the calibration data for Pchip conversions.
	Curve *Curve

	PhysUnits string
	EngUnits  string

	// Engineering-unit clamp bounds applied to ToEngineering results
	// before they reach hardware. Nil when the field has no setpoint.
	LowerLimit *float64
	UpperLimit *float64

	// Scale factors applied around the raw conversion: the result of the
	// forward conversion is multiplied by postEngToPhys, and the input of
	// the inverse conversion is multiplied by prePhysToEng first. Used
	// for the energy-dependent rigidity factor on magnet fields.
	postEngToPhys float64
	prePhysToEng  float64

	fwd *pchip
	inv *pchip
}

// NewNull returns an identity conversion.
func NewNull(physUnits, engUnits string) *Conv {
	return &Conv{
		Kind:          Null,
		PhysUnits:     physUnits,
		EngUnits:      engUnits,
		postEngToPhys: 1,
		prePhysToEng:  1,
	}
}

// NewPoly returns a polynomial conversion with coefficients in ascending
// powers, so coeffs[0] is the offset and coeffs[1] the gradient.
func NewPoly(coeffs []float64, physUnits, engUnits string) (*Conv, error) {
	if len(coeffs) == 0 {
		return nil, pkgerrors.New("polynomial conversion needs at least one coefficient")
	}
	cs := make([]float64, len(coeffs))
	copy(cs, coeffs)
	return &Conv{
		Kind:          Poly,
		Coeffs:        cs,
		PhysUnits:     physUnits,
		EngUnits:      engUnits,
		postEngToPhys: 1,
		prePhysToEng:  1,
	}, nil
}

// NewPchip returns a piecewise monotone cubic conversion through the
// calibration curve. The forward interpolant runs through (Eng, Phys) and
// the inverse through (Phys, Eng); the curve's monotonicity invariant
// keeps both single-valued.
func NewPchip(curve *Curve, physUnits, engUnits string) (*Conv, error) {
	if curve == nil {
		return nil, pkgerrors.Wrap(ErrBadCurve, "no calibration curve")
	}

	c := &Conv{
		Kind:          Pchip,
		Curve:         curve,
		PhysUnits:     physUnits,
		EngUnits:      engUnits,
		postEngToPhys: 1,
		prePhysToEng:  1,
		fwd:           newPchip(curve.Eng, curve.Phys),
	}

	if curve.Decreasing() {
		c.inv = newPchip(reversed(curve.Phys), reversed(curve.Eng))
	} else {
		c.inv = newPchip(curve.Phys, curve.Eng)
	}

	return c, nil
}

// SetLimits sets the engineering-unit clamp bounds. Must only be called
// during registry construction, before the record is published.
func (c *Conv) SetLimits(lower, upper *float64) error {
	if lower != nil && upper != nil && *lower > *upper {
		return pkgerrors.Errorf("lower limit %g greater than upper limit %g", *lower, *upper)
	}
	c.LowerLimit = lower
	c.UpperLimit = upper
	return nil
}

// SetScale sets the multiplicative factors applied after the raw forward
// conversion and before the raw inverse conversion. Must only be called
// during registry construction, before the record is published.
func (c *Conv) SetScale(postEngToPhys, prePhysToEng float64) {
	c.postEngToPhys = postEngToPhys
	c.prePhysToEng = prePhysToEng
}

// ToPhysics converts an engineering-unit value to physics units. Readback
// results are never clamped.
func (c *Conv) ToPhysics(value float64) (float64, error) {
	switch c.Kind {
	case Null:
		return value, nil
	case Poly:
		return c.evalPoly(value) * c.postEngToPhys, nil
	case Pchip:
		return c.fwd.eval(value) * c.postEngToPhys, nil
	default:
		return 0, pkgerrors.Errorf("unknown conversion kind %d", int(c.Kind))
	}
}

// ToEngineering converts a physics-unit value to engineering units and
// clamps the result into [LowerLimit, UpperLimit] when bounds are set.
// The clamp saturates silently; callers that need to detect out-of-range
// intent must compare input and output themselves.
func (c *Conv) ToEngineering(value float64) (float64, error) {
	if c.Kind == Null {
		// Identity in both directions, not even clamped.
		return value, nil
	}

	adjusted := value * c.prePhysToEng

	var result float64
	switch c.Kind {
	case Poly:
		r, err := c.invertPoly(adjusted)
		if err != nil {
			return 0, err
		}
		result = r
	case Pchip:
		result = c.inv.eval(adjusted)
	default:
		return 0, pkgerrors.Errorf("unknown conversion kind %d", int(c.Kind))
	}

	return c.clamp(result), nil
}

// ToPhysicsSlice converts each element of values, preserving order.
func (c *Conv) ToPhysicsSlice(values []float64) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		r, err := c.ToPhysics(v)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "element %d", i)
		}
		out[i] = r
	}
	return out, nil
}

// ToEngineeringSlice converts each element of values, preserving order.
func (c *Conv) ToEngineeringSlice(values []float64) ([]float64, error) {
	out := make([]float64, len(values))
	for i, v := range values {
		r, err := c.ToEngineering(v)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "element %d", i)
		}
		out[i] = r
	}
	return out, nil
}

func (c *Conv) evalPoly(x float64) float64 {
	// Horner evaluation, coefficients in ascending powers.
	result := 0.0
	for i := len(c.Coeffs) - 1; i >= 0; i-- {
		result = result*x + c.Coeffs[i]
	}
	return result
}

func (c *Conv) invertPoly(y float64) (float64, error) {
	for i := 2; i < len(c.Coeffs); i++ {
		if c.Coeffs[i] != 0 {
			return 0, pkgerrors.Wrapf(ErrNotInvertible, "degree %d", i)
		}
	}

	offset := c.Coeffs[0]
	gradient := 0.0
	if len(c.Coeffs) > 1 {
		gradient = c.Coeffs[1]
	}
	if gradient == 0 {
		return 0, pkgerrors.Wrapf(ErrDivisionByZero, "cannot invert %g + %g*x", offset, gradient)
	}

	return (y - offset) / gradient, nil
}

// Clamp saturates an engineering-unit value into the record's limits.
// In-range values pass through unchanged, so clamping is idempotent.
func (c *Conv) Clamp(v float64) float64 {
	return c.clamp(v)
}

func (c *Conv) clamp(v float64) float64 {
	if c.LowerLimit != nil && v < *c.LowerLimit {
		return *c.LowerLimit
	}
	if c.UpperLimit != nil && v > *c.UpperLimit {
		return *c.UpperLimit
	}
	return v
}

func reversed(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, v := range xs {
		out[len(xs)-1-i] = v
	}
	return out
}
