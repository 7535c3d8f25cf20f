package registry

import (
	"fmt"
	"sort"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DiamondLightSource/pytac/pkg/units"
)

// Key identifies the conversion governing one field of one element.
type Key struct {
	ElementID int
	Field     string
}

// Options tunes registry construction.
type Options struct {
	// EnergyMeV is the beam energy used for rigidity scaling. Ignored
	// when NeedsRigidity is nil.
	EnergyMeV float64

	// NeedsRigidity reports whether the conversion for the given element
	// and field must carry the rigidity factor (magnet strength fields).
	// Nil disables rigidity scaling entirely.
	NeedsRigidity func(elementID int, field string) bool
}

// Registry is the immutable index from (element id, field name) to the
// conversion record governing that field. Built once via Build; safe for
// concurrent lookups with no locking.
type Registry struct {
	convs map[Key]*units.Conv
	null  *units.Conv
}

// Build constructs every conversion record eagerly and validates all
// table invariants. Any malformed row fails the whole build with an error
// naming the offending element, field and conversion id.
func Build(rows []UnitConvRow, polys []PolyRow, pchips []PchipRow, opts *Options) (*Registry, error) {
	if opts == nil {
		opts = &Options{}
	}

	coeffs, err := groupPolyData(polys)
	if err != nil {
		return nil, err
	}
	curves, err := groupPchipData(pchips)
	if err != nil {
		return nil, err
	}

	r := &Registry{
		convs: make(map[Key]*units.Conv, len(rows)),
		null:  units.NewNull("", ""),
	}

	// Rows with identical conversion parameters share one record. This
	// keeps family-wide calibrations (hundreds of correctors on the same
	// measured curve) down to a single record each.
	shared := make(map[shareKey]*units.Conv)

	for _, row := range rows {
		key := Key{ElementID: row.ElementID, Field: row.Field}
		if _, ok := r.convs[key]; ok {
			return nil, pkgerrors.Errorf("duplicate unitconv row for element %d field %q", row.ElementID, row.Field)
		}

		scaled := opts.NeedsRigidity != nil && opts.NeedsRigidity(row.ElementID, row.Field)

		sk := newShareKey(row, scaled)
		conv, ok := shared[sk]
		if !ok {
			conv, err = buildConv(row, coeffs, curves)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "element %d field %q conversion %d", row.ElementID, row.Field, row.ConvID)
			}
			if scaled {
				rigidity := units.Rigidity(opts.EnergyMeV)
				conv.SetScale(1/rigidity, rigidity)
			}
			shared[sk] = conv
		}

		r.convs[key] = conv
	}

	logrus.WithFields(logrus.Fields{
		"fields":  len(r.convs),
		"records": len(shared),
	}).Debug("conversion registry built")

	return r, nil
}

// Resolve returns the conversion for the given element and field. Unknown
// keys resolve to a shared identity conversion, never an error.
func (r *Registry) Resolve(elementID int, field string) *units.Conv {
	if conv, ok := r.convs[Key{ElementID: elementID, Field: field}]; ok {
		return conv
	}
	return r.null
}

// Len returns the number of explicit (element, field) bindings.
func (r *Registry) Len() int {
	return len(r.convs)
}

// Keys returns the explicit bindings in deterministic order.
func (r *Registry) Keys() []Key {
	keys := make([]Key, 0, len(r.convs))
	for k := range r.convs {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ElementID != keys[j].ElementID {
			return keys[i].ElementID < keys[j].ElementID
		}
		return keys[i].Field < keys[j].Field
	})
	return keys
}

// shareKey identifies rows that may reuse the same built record: same
// conversion data and same presentation (units, limits, scaling).
type shareKey struct {
	kind   units.Kind
	convID int
	phys   string
	eng    string
	limits string
	scaled bool
}

func newShareKey(row UnitConvRow, scaled bool) shareKey {
	limits := ""
	if row.LowerLimit != nil {
		limits += fmt.Sprintf("%g", *row.LowerLimit)
	}
	limits += ","
	if row.UpperLimit != nil {
		limits += fmt.Sprintf("%g", *row.UpperLimit)
	}
	return shareKey{
		kind:   row.Kind,
		convID: row.ConvID,
		phys:   row.PhysUnits,
		eng:    row.EngUnits,
		limits: limits,
		scaled: scaled,
	}
}

func buildConv(row UnitConvRow, coeffs map[int][]float64, curves map[int]*units.Curve) (*units.Conv, error) {
	var conv *units.Conv
	var err error

	switch row.Kind {
	case units.Null:
		conv = units.NewNull(row.PhysUnits, row.EngUnits)
	case units.Poly:
		cs, ok := coeffs[row.ConvID]
		if !ok {
			return nil, pkgerrors.New("no polynomial data")
		}
		conv, err = units.NewPoly(cs, row.PhysUnits, row.EngUnits)
		if err != nil {
			return nil, err
		}
	case units.Pchip:
		curve, ok := curves[row.ConvID]
		if !ok {
			return nil, pkgerrors.New("no calibration data")
		}
		conv, err = units.NewPchip(curve, row.PhysUnits, row.EngUnits)
		if err != nil {
			return nil, err
		}
	default:
		return nil, pkgerrors.Errorf("unknown conversion kind %d", int(row.Kind))
	}

	if err := conv.SetLimits(row.LowerLimit, row.UpperLimit); err != nil {
		return nil, err
	}
	return conv, nil
}

func groupPolyData(polys []PolyRow) (map[int][]float64, error) {
	byID := make(map[int][]PolyRow)
	for _, p := range polys {
		byID[p.ConvID] = append(byID[p.ConvID], p)
	}

	coeffs := make(map[int][]float64, len(byID))
	for id, rows := range byID {
		sort.Slice(rows, func(i, j int) bool { return rows[i].Index < rows[j].Index })
		cs := make([]float64, len(rows))
		for i, row := range rows {
			if row.Index != i {
				return nil, pkgerrors.Errorf("conversion %d: coefficient indexes must run 0..%d without gaps, got %d", id, len(rows)-1, row.Index)
			}
			cs[i] = row.Value
		}
		coeffs[id] = cs
	}
	return coeffs, nil
}

func groupPchipData(pchips []PchipRow) (map[int]*units.Curve, error) {
	byID := make(map[int][]PchipRow)
	for _, p := range pchips {
		byID[p.ConvID] = append(byID[p.ConvID], p)
	}

	curves := make(map[int]*units.Curve, len(byID))
	for id, rows := range byID {
		eng := make([]float64, len(rows))
		phys := make([]float64, len(rows))
		for i, row := range rows {
			eng[i] = row.Eng
			phys[i] = row.Phys
		}
		curve, err := units.NewCurve(eng, phys)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "conversion %d", id)
		}
		curves[id] = curve
	}
	return curves, nil
}
