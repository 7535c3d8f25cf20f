package lattice

import (
	"context"
	"sort"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DiamondLightSource/pytac/pkg/registry"
	"github.com/DiamondLightSource/pytac/pkg/units"
)

// Lattice holds the ordered elements of one machine mode together with
// the conversion registry governing their fields. Immutable once loading
// completes; concurrent reads need no locking.
type Lattice struct {
	// Name of the machine mode, e.g. "VMX".
	Name string
	// EnergyMeV is the design beam energy.
	EnergyMeV float64

	elements []*Element
	families map[string][]*Element
	reg      *registry.Registry
}

// New returns an empty lattice.
func New(name string, energyMeV float64) *Lattice {
	return &Lattice{
		Name:      name,
		EnergyMeV: energyMeV,
		families:  make(map[string][]*Element),
	}
}

// SetRegistry attaches the conversion registry. Must be called before any
// field access; loading does this once, before the lattice is published.
func (l *Lattice) SetRegistry(reg *registry.Registry) {
	l.reg = reg
}

// AddElement appends an element and indexes its family memberships.
// Element indexes are expected to be contiguous from 1 in append order.
func (l *Lattice) AddElement(e *Element) {
	l.elements = append(l.elements, e)
	for _, fam := range e.Families() {
		l.families[fam] = append(l.families[fam], e)
	}
}

// Len returns the number of elements.
func (l *Lattice) Len() int {
	return len(l.elements)
}

// Length returns the physical length of the lattice in metres.
func (l *Lattice) Length() float64 {
	total := 0.0
	for _, e := range l.elements {
		total += e.Length
	}
	return total
}

// Element returns the element with the given 1-based index.
func (l *Lattice) Element(index int) (*Element, error) {
	if index < 1 || index > len(l.elements) {
		return nil, pkgerrors.Wrapf(ErrElementNotFound, "index %d of %d", index, len(l.elements))
	}
	return l.elements[index-1], nil
}

// Elements returns all elements in lattice order.
func (l *Lattice) Elements() []*Element {
	return l.elements
}

// GetElements returns the members of the named family in lattice order.
func (l *Lattice) GetElements(family string) []*Element {
	return l.families[family]
}

// Families returns all family names, sorted.
func (l *Lattice) Families() []string {
	fams := make([]string, 0, len(l.families))
	for f := range l.families {
		fams = append(fams, f)
	}
	sort.Strings(fams)
	return fams
}

// Resolve returns the conversion governing the given element field.
func (l *Lattice) Resolve(elementID int, field string) *units.Conv {
	return l.reg.Resolve(elementID, field)
}

// GetValue reads a field's value in the requested unit system. The raw
// engineering value comes from the control system; physics requests are
// converted through the registry, readbacks are never clamped.
func (l *Lattice) GetValue(ctx context.Context, elementID int, field string, handle Handle, unit UnitSystem) (float64, error) {
	e, err := l.Element(elementID)
	if err != nil {
		return 0, err
	}
	d, err := e.Device(field)
	if err != nil {
		return 0, err
	}

	value, err := d.GetValue(ctx, handle)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "element %s field %q", e.Name, field)
	}

	if unit == Physics {
		value, err = l.reg.Resolve(elementID, field).ToPhysics(value)
		if err != nil {
			return 0, pkgerrors.Wrapf(err, "element %s field %q", e.Name, field)
		}
	}

	logrus.WithFields(logrus.Fields{
		"element": e.Name,
		"field":   field,
		"handle":  handle.String(),
		"unit":    unit.String(),
		"value":   value,
	}).Trace("field read")

	return value, nil
}

// SetValue commands a field's setpoint. Physics-unit values are converted
// to engineering units and clamped into the conversion's limits before
// the write is forwarded to the control system.
func (l *Lattice) SetValue(ctx context.Context, elementID int, field string, value float64, unit UnitSystem) error {
	e, err := l.Element(elementID)
	if err != nil {
		return err
	}
	d, err := e.Device(field)
	if err != nil {
		return err
	}

	conv := l.reg.Resolve(elementID, field)
	eng := value
	if unit == Physics {
		eng, err = conv.ToEngineering(value)
		if err != nil {
			return pkgerrors.Wrapf(err, "element %s field %q", e.Name, field)
		}
	} else {
		eng = conv.Clamp(value)
	}

	logrus.WithFields(logrus.Fields{
		"element": e.Name,
		"field":   field,
		"unit":    unit.String(),
		"value":   eng,
	}).Trace("field write")

	if err := d.PutValue(ctx, eng); err != nil {
		return pkgerrors.Wrapf(err, "element %s field %q", e.Name, field)
	}
	return nil
}
