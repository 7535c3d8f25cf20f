// Package export is the one-shot batch step that turns a machine
// snapshot into the flat relational tables the loader consumes. It is
// deliberately dumb glue around two pieces that are not: the explicit
// index remap (Remap) and the conversion-id sharing that collapses
// family-uniform calibrations into a single record.
package export

import (
	"fmt"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DiamondLightSource/pytac/pkg/config"
	"github.com/DiamondLightSource/pytac/pkg/lattice"
	"github.com/DiamondLightSource/pytac/pkg/load"
	"github.com/DiamondLightSource/pytac/pkg/registry"
	"github.com/DiamondLightSource/pytac/pkg/units"
)

// DeviceDesc describes one controllable field of a snapshot element and
// the calibration observed for it.
type DeviceDesc struct {
	Field string
	// Name is the PV prefix; suffixes come from configuration.
	Name string
	// HasSetpoint marks writable fields; readback-only fields get no
	// setpoint PV and no clamp limits.
	HasSetpoint bool

	Kind      units.Kind
	PhysUnits string
	EngUnits  string

	// Coeffs holds polynomial coefficients (ascending powers) for Poly
	// devices; Curve holds measured samples for Pchip devices.
	Coeffs []float64
	Curve  *units.Curve

	LowerLimit *float64
	UpperLimit *float64
}

// ElementDesc describes one element observed in a machine snapshot.
type ElementDesc struct {
	Name   string
	Type   lattice.ElementType
	Length float64
	Cell   int

	// ModelIndex is the element's index in the physics model.
	ModelIndex int

	// Winding marks corrector magnets that are physically windings on
	// another magnet and share its ModelIndex. Their exported rows
	// attach to the element reached by adding the configured offset for
	// their family to the shared index.
	Winding bool

	Families []string
	Devices  []DeviceDesc
}

// Exporter writes a snapshot out as loader tables.
type Exporter struct {
	cfg *config.File
}

// New returns an exporter using the given configuration.
func New(cfg *config.File) *Exporter {
	return &Exporter{cfg: cfg}
}

// Export builds the six tables from the snapshot elements. Export ids are
// assigned in slice order, starting at 1.
func (x *Exporter) Export(elements []ElementDesc) (*load.Tables, error) {
	remap := NewRemap()
	for i, desc := range elements {
		if desc.Winding {
			continue // windings share a model index, resolved below
		}
		if err := remap.Add(desc.ModelIndex, i+1); err != nil {
			return nil, pkgerrors.Wrapf(err, "element %s", desc.Name)
		}
	}

	tables := &load.Tables{}
	convs := newConvAllocator()

	for i, desc := range elements {
		exportID := i + 1
		tables.Elements = append(tables.Elements, load.ElementRow{
			Name:   desc.Name,
			Type:   desc.Type.String(),
			Length: desc.Length,
			Cell:   desc.Cell,
		})

		// Rows that cross-reference the element go through the remap so
		// windings land on their standalone element.
		targetID := exportID
		if desc.Winding {
			offset := x.windingOffset(desc)
			resolved, ok := remap.ToExport(desc.ModelIndex + offset)
			if !ok {
				return nil, pkgerrors.Errorf("element %s: winding index %d+%d resolves to no exported element", desc.Name, desc.ModelIndex, offset)
			}
			targetID = resolved
		}

		for _, fam := range desc.Families {
			tables.Families = append(tables.Families, load.FamilyRow{ElementID: targetID, Family: fam})
		}

		for _, dev := range desc.Devices {
			setPV := ""
			if dev.HasSetpoint {
				setPV = dev.Name + x.cfg.SPSuffix()
			}
			tables.Devices = append(tables.Devices, load.DeviceRow{
				ElementID: targetID,
				Name:      dev.Name,
				Field:     dev.Field,
				GetPV:     dev.Name + x.cfg.RBSuffix(),
				SetPV:     setPV,
			})

			if dev.Kind == units.Null {
				continue // absence of a unitconv row means identity
			}

			convID, fresh, err := convs.allocate(dev)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "element %s field %q", desc.Name, dev.Field)
			}
			tables.UnitConvs = append(tables.UnitConvs, registry.UnitConvRow{
				ElementID:  targetID,
				Field:      dev.Field,
				Kind:       dev.Kind,
				ConvID:     convID,
				PhysUnits:  dev.PhysUnits,
				EngUnits:   dev.EngUnits,
				LowerLimit: dev.LowerLimit,
				UpperLimit: dev.UpperLimit,
			})
			if !fresh {
				continue // data rows already written for this conversion
			}

			switch dev.Kind {
			case units.Poly:
				for j, v := range dev.Coeffs {
					tables.Polys = append(tables.Polys, registry.PolyRow{ConvID: convID, Index: j, Value: v})
				}
			case units.Pchip:
				for j := range dev.Curve.Eng {
					tables.Pchips = append(tables.Pchips, registry.PchipRow{ConvID: convID, Eng: dev.Curve.Eng[j], Phys: dev.Curve.Phys[j]})
				}
			}
		}
	}

	logrus.WithFields(logrus.Fields{
		"elements":    len(tables.Elements),
		"devices":     len(tables.Devices),
		"conversions": convs.next - 1,
	}).Info("snapshot exported")

	return tables, nil
}

func (x *Exporter) windingOffset(desc ElementDesc) int {
	for _, fam := range desc.Families {
		if off := x.cfg.WindingOffset(fam); off != 0 {
			return off
		}
	}
	return 0
}

// convAllocator assigns conversion ids, reusing one id for every device
// with byte-identical conversion data. This is what lets a family of
// correctors calibrated from the same measurement share one record.
type convAllocator struct {
	ids  map[string]int
	next int
}

func newConvAllocator() *convAllocator {
	return &convAllocator{ids: make(map[string]int), next: 1}
}

func (a *convAllocator) allocate(dev DeviceDesc) (id int, fresh bool, err error) {
	sig, err := signature(dev)
	if err != nil {
		return 0, false, err
	}
	if id, ok := a.ids[sig]; ok {
		return id, false, nil
	}
	id = a.next
	a.next++
	a.ids[sig] = id
	return id, true, nil
}

func signature(dev DeviceDesc) (string, error) {
	switch dev.Kind {
	case units.Poly:
		if len(dev.Coeffs) == 0 {
			return "", pkgerrors.New("polynomial device has no coefficients")
		}
		return fmt.Sprintf("poly:%v", dev.Coeffs), nil
	case units.Pchip:
		if dev.Curve == nil {
			return "", pkgerrors.New("pchip device has no calibration curve")
		}
		return fmt.Sprintf("pchip:%v:%v", dev.Curve.Eng, dev.Curve.Phys), nil
	default:
		return "", pkgerrors.Errorf("unexpected conversion kind %v", dev.Kind)
	}
}
