package registry

import "github.com/DiamondLightSource/pytac/pkg/units"

// UnitConvRow is one row of the unitconv table, binding a conversion to
// an (element, field) pair.
type UnitConvRow struct {
	ElementID  int
	Field      string
	Kind       units.Kind
	ConvID     int
	PhysUnits  string
	EngUnits   string
	LowerLimit *float64 // engineering units, nil when the field has no setpoint
	UpperLimit *float64
}

// PolyRow is one row of the polynomial data table: a single coefficient.
// Rows for the same ConvID must cover indexes 0..n-1 without gaps.
type PolyRow struct {
	ConvID int
	Index  int
	Value  float64
}

// PchipRow is one row of the piecewise data table: a single calibration
// sample. Row order defines sample order, which must already be monotone.
type PchipRow struct {
	ConvID int
	Eng    float64
	Phys   float64
}
