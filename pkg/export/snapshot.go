package export

import (
	"encoding/json"
	"os"

	pkgerrors "github.com/pkg/errors"

	"github.com/DiamondLightSource/pytac/pkg/lattice"
	"github.com/DiamondLightSource/pytac/pkg/units"
)

// jsonDevice is the on-disk shape of a device description. Kind and
// element type are strings so snapshots stay hand-editable.
type jsonDevice struct {
	Field       string    `json:"field"`
	Name        string    `json:"name"`
	HasSetpoint bool      `json:"hasSetpoint"`
	Kind        string    `json:"kind"`
	PhysUnits   string    `json:"physUnits"`
	EngUnits    string    `json:"engUnits"`
	Coeffs      []float64 `json:"coeffs,omitempty"`
	Eng         []float64 `json:"eng,omitempty"`
	Phys        []float64 `json:"phys,omitempty"`
	LowerLimit  *float64  `json:"lowerLimit,omitempty"`
	UpperLimit  *float64  `json:"upperLimit,omitempty"`
}

type jsonElement struct {
	Name       string       `json:"name"`
	Type       string       `json:"type"`
	Length     float64      `json:"length"`
	Cell       int          `json:"cell,omitempty"`
	ModelIndex int          `json:"modelIndex"`
	Winding    bool         `json:"winding,omitempty"`
	Families   []string     `json:"families,omitempty"`
	Devices    []jsonDevice `json:"devices,omitempty"`
}

// ReadSnapshot reads a JSON machine description from path.
func ReadSnapshot(path string) ([]ElementDesc, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to read snapshot %s", path)
	}

	var raw []jsonElement
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal snapshot %s", path)
	}

	elements := make([]ElementDesc, 0, len(raw))
	for _, e := range raw {
		typ, err := lattice.ParseElementType(e.Type)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "element %s", e.Name)
		}

		desc := ElementDesc{
			Name:       e.Name,
			Type:       typ,
			Length:     e.Length,
			Cell:       e.Cell,
			ModelIndex: e.ModelIndex,
			Winding:    e.Winding,
			Families:   e.Families,
		}

		for _, d := range e.Devices {
			kind, err := units.ParseKind(d.Kind)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "element %s field %q", e.Name, d.Field)
			}
			dev := DeviceDesc{
				Field:       d.Field,
				Name:        d.Name,
				HasSetpoint: d.HasSetpoint,
				Kind:        kind,
				PhysUnits:   d.PhysUnits,
				EngUnits:    d.EngUnits,
				Coeffs:      d.Coeffs,
				LowerLimit:  d.LowerLimit,
				UpperLimit:  d.UpperLimit,
			}
			if kind == units.Pchip {
				curve, err := units.NewCurve(d.Eng, d.Phys)
				if err != nil {
					return nil, pkgerrors.Wrapf(err, "element %s field %q", e.Name, d.Field)
				}
				dev.Curve = curve
			}
			desc.Devices = append(desc.Devices, dev)
		}

		elements = append(elements, desc)
	}

	return elements, nil
}
