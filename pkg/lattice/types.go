package lattice

import (
	"fmt"

	"github.com/DiamondLightSource/pytac/pkg/units"
)

// Handle selects the direction of interaction with a controllable field.
type Handle int

const (
	// Readback reads the value the hardware currently reports.
	Readback Handle = iota
	// Setpoint addresses the commanded value.
	Setpoint
)

// String returns the wire representation of the handle.
func (h Handle) String() string {
	if h == Setpoint {
		return "setpoint"
	}
	return "readback"
}

// ParseHandle parses the wire representation of a handle.
func ParseHandle(s string) (Handle, error) {
	switch s {
	case "readback", "":
		return Readback, nil
	case "setpoint":
		return Setpoint, nil
	default:
		return Readback, fmt.Errorf("unknown handle %q", s)
	}
}

// UnitSystem selects which units a value is expressed in.
type UnitSystem int

const (
	// Engineering units are native to the hardware controller (amperes).
	Engineering UnitSystem = iota
	// Physics units are used by the accelerator model (metres, radians).
	Physics
)

// String returns the wire representation of the unit system.
func (u UnitSystem) String() string {
	if u == Physics {
		return "physics"
	}
	return "engineering"
}

// ParseUnitSystem parses the wire representation of a unit system.
func ParseUnitSystem(s string) (UnitSystem, error) {
	switch s {
	case "engineering", "eng", "":
		return Engineering, nil
	case "physics", "phys":
		return Physics, nil
	default:
		return Engineering, fmt.Errorf("unknown unit system %q", s)
	}
}

// ElementType is the closed set of element categories. Each category
// fixes the fields an element of that type carries, the conversion kind
// those fields use, and whether the conversion needs rigidity scaling —
// so no code needs to branch on type-name strings.
type ElementType int

const (
	Drift ElementType = iota
	Dipole
	Quadrupole
	SkewQuadrupole
	Sextupole
	Octupole
	HCorrector
	VCorrector
	BPM
	RFCavity
)

var typeNames = map[ElementType]string{
	Drift:          "DRIFT",
	Dipole:         "BEND",
	Quadrupole:     "QUAD",
	SkewQuadrupole: "SQUAD",
	Sextupole:      "SEXT",
	Octupole:       "OCT",
	HCorrector:     "HSTR",
	VCorrector:     "VSTR",
	BPM:            "BPM",
	RFCavity:       "RF",
}

// String returns the table representation of the element type.
func (t ElementType) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ElementType(%d)", int(t))
}

// ParseElementType parses the table representation of an element type.
func ParseElementType(s string) (ElementType, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return Drift, fmt.Errorf("unknown element type %q", s)
}

// FieldSpec describes one controllable field an element type carries.
type FieldSpec struct {
	// Name of the field, e.g. "b1" for quadrupole strength.
	Name string
	// Kind of conversion the field conventionally uses.
	Kind units.Kind
	// Scaled marks magnet strength fields whose conversion carries the
	// energy-dependent rigidity factor.
	Scaled bool
}

var typeFields = map[ElementType][]FieldSpec{
	Drift:          nil,
	Dipole:         {{Name: "b0", Kind: units.Poly, Scaled: true}},
	Quadrupole:     {{Name: "b1", Kind: units.Poly, Scaled: true}},
	SkewQuadrupole: {{Name: "a1", Kind: units.Poly, Scaled: true}},
	Sextupole:      {{Name: "b2", Kind: units.Pchip, Scaled: true}},
	Octupole:       {{Name: "b3", Kind: units.Pchip, Scaled: true}},
	HCorrector:     {{Name: "x_kick", Kind: units.Pchip, Scaled: true}},
	VCorrector:     {{Name: "y_kick", Kind: units.Pchip, Scaled: true}},
	BPM: {
		{Name: "x", Kind: units.Null},
		{Name: "y", Kind: units.Null},
	},
	RFCavity: {
		{Name: "f", Kind: units.Null},
		{Name: "v", Kind: units.Poly},
	},
}

// Fields returns the controllable fields conventionally defined on this
// element type.
func (t ElementType) Fields() []FieldSpec {
	return typeFields[t]
}
