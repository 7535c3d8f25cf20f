package lattice

import (
	"context"
	"errors"
	"sort"

	pkgerrors "github.com/pkg/errors"

	"github.com/DiamondLightSource/pytac/pkg/cs"
)

var (
	// ErrNoDevice is returned when an element has no device bound to the
	// requested field.
	ErrNoDevice = errors.New("no device for field")

	// ErrNoPV is returned when a device has no PV for the requested
	// handle, e.g. writing to a readback-only field.
	ErrNoPV = errors.New("no process variable for handle")

	// ErrElementNotFound is returned when an element id is outside the
	// lattice.
	ErrElementNotFound = errors.New("element not found")
)

// Device binds one field of one element to its process variables.
type Device struct {
	// Name is the PV prefix shared by both directions.
	Name string
	// RBPV and SPPV are the full readback and setpoint PV names; either
	// may be empty when that direction does not exist.
	RBPV string
	SPPV string

	Enabled bool

	client cs.Client
}

// NewDevice returns a device for the given PV prefix. Empty suffixes
// leave the corresponding direction unbound.
func NewDevice(name string, client cs.Client, rbPV, spPV string) *Device {
	return &Device{
		Name:    name,
		RBPV:    rbPV,
		SPPV:    spPV,
		Enabled: true,
		client:  client,
	}
}

// PVName returns the PV for the given handle, or ErrNoPV when that
// direction is unbound.
func (d *Device) PVName(handle Handle) (string, error) {
	pv := d.RBPV
	if handle == Setpoint {
		pv = d.SPPV
	}
	if pv == "" {
		return "", pkgerrors.Wrapf(ErrNoPV, "device %s handle %s", d.Name, handle)
	}
	return pv, nil
}

// GetValue reads the engineering-unit value of the device.
func (d *Device) GetValue(ctx context.Context, handle Handle) (float64, error) {
	pv, err := d.PVName(handle)
	if err != nil {
		return 0, err
	}
	return d.client.Get(ctx, pv)
}

// PutValue writes an engineering-unit value to the device's setpoint.
func (d *Device) PutValue(ctx context.Context, value float64) error {
	pv, err := d.PVName(Setpoint)
	if err != nil {
		return err
	}
	return d.client.Put(ctx, pv, value)
}

// Element is a discrete physical component of the accelerator.
type Element struct {
	// Name is the element's control-system identifier.
	Name string
	// Index is the 1-based position in the lattice, the element id the
	// conversion tables key on.
	Index int
	// Type is the element's category.
	Type ElementType
	// Length is the physical length in metres; S the position of the
	// element's start along the ring.
	Length float64
	S      float64
	// Cell is the girder cell the element sits in, 0 when unknown.
	Cell int

	families map[string]struct{}
	devices  map[string]*Device
}

// NewElement returns an element with no devices or families.
func NewElement(name string, index int, typ ElementType, length float64) *Element {
	return &Element{
		Name:     name,
		Index:    index,
		Type:     typ,
		Length:   length,
		families: make(map[string]struct{}),
		devices:  make(map[string]*Device),
	}
}

// AddToFamily adds the element to the named family.
func (e *Element) AddToFamily(family string) {
	e.families[family] = struct{}{}
}

// InFamily reports whether the element belongs to the named family.
func (e *Element) InFamily(family string) bool {
	_, ok := e.families[family]
	return ok
}

// Families returns the element's family memberships, sorted.
func (e *Element) Families() []string {
	fams := make([]string, 0, len(e.families))
	for f := range e.families {
		fams = append(fams, f)
	}
	sort.Strings(fams)
	return fams
}

// AddDevice binds a device to the named field.
func (e *Element) AddDevice(field string, device *Device) {
	e.devices[field] = device
}

// Device returns the device bound to the named field.
func (e *Element) Device(field string) (*Device, error) {
	d, ok := e.devices[field]
	if !ok {
		return nil, pkgerrors.Wrapf(ErrNoDevice, "element %s field %q", e.Name, field)
	}
	return d, nil
}

// Fields returns the fields with a device bound, sorted.
func (e *Element) Fields() []string {
	fields := make([]string, 0, len(e.devices))
	for f := range e.devices {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
