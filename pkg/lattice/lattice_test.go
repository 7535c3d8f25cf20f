package lattice

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/DiamondLightSource/pytac/pkg/cs"
	"github.com/DiamondLightSource/pytac/pkg/registry"
	"github.com/DiamondLightSource/pytac/pkg/units"
)

func f64(v float64) *float64 {
	return &v
}

// testLattice builds a two-element lattice: a quadrupole with a linear
// current-to-strength conversion and limits, and a BPM with no explicit
// conversion rows at all.
func testLattice(t *testing.T) (*Lattice, *cs.MockClient) {
	t.Helper()

	client := cs.NewMock(map[string]float64{
		"SR01A-PC-Q1:I":   100,
		"SR01A-PC-Q1:SETI": 100,
		"SR01A-DI-BPM1:X": 0.25,
	})

	quad := NewElement("SR01A-PC-Q1", 1, Quadrupole, 0.4)
	quad.AddToFamily("QUAD")
	quad.AddDevice("b1", NewDevice("SR01A-PC-Q1", client, "SR01A-PC-Q1:I", "SR01A-PC-Q1:SETI"))

	bpm := NewElement("SR01A-DI-BPM1", 2, BPM, 0)
	bpm.AddToFamily("BPM")
	bpm.AddDevice("x", NewDevice("SR01A-DI-BPM1", client, "SR01A-DI-BPM1:X", ""))

	rows := []registry.UnitConvRow{
		{ElementID: 1, Field: "b1", Kind: units.Poly, ConvID: 1, PhysUnits: "m^-2", EngUnits: "A", LowerLimit: f64(0), UpperLimit: f64(200)},
	}
	polys := []registry.PolyRow{
		{ConvID: 1, Index: 0, Value: 0},
		{ConvID: 1, Index: 1, Value: 0.05},
	}
	reg, err := registry.Build(rows, polys, nil, nil)
	if err != nil {
		t.Fatalf("registry.Build returned error: %v", err)
	}

	lat := New("test", 3000)
	lat.AddElement(quad)
	lat.AddElement(bpm)
	lat.SetRegistry(reg)
	return lat, client
}

func TestGetValueEngineering(t *testing.T) {
	lat, _ := testLattice(t)

	got, err := lat.GetValue(context.Background(), 1, "b1", Readback, Engineering)
	if err != nil {
		t.Fatalf("GetValue returned error: %v", err)
	}
	if got != 100 {
		t.Errorf("GetValue = %g, want raw 100", got)
	}
}

func TestGetValuePhysics(t *testing.T) {
	lat, _ := testLattice(t)

	got, err := lat.GetValue(context.Background(), 1, "b1", Readback, Physics)
	if err != nil {
		t.Fatalf("GetValue returned error: %v", err)
	}
	if math.Abs(got-5) > 1e-9 {
		t.Errorf("GetValue = %g, want 100 * 0.05 = 5", got)
	}
}

func TestGetValueUnconvertedField(t *testing.T) {
	lat, _ := testLattice(t)

	// The BPM has no unitconv row; physics must equal engineering.
	eng, err := lat.GetValue(context.Background(), 2, "x", Readback, Engineering)
	if err != nil {
		t.Fatalf("GetValue returned error: %v", err)
	}
	phys, err := lat.GetValue(context.Background(), 2, "x", Readback, Physics)
	if err != nil {
		t.Fatalf("GetValue returned error: %v", err)
	}
	if eng != phys || eng != 0.25 {
		t.Errorf("unconverted field: eng %g phys %g, want both 0.25", eng, phys)
	}
}

func TestSetValuePhysicsConvertsAndClamps(t *testing.T) {
	lat, client := testLattice(t)
	ctx := context.Background()

	// 5 m^-2 at gradient 0.05 is 100 A, inside limits.
	if err := lat.SetValue(ctx, 1, "b1", 5, Physics); err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	got, err := client.Get(ctx, "SR01A-PC-Q1:SETI")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if math.Abs(got-100) > 1e-9 {
		t.Errorf("setpoint = %g, want 100", got)
	}

	// 100 m^-2 would be 2000 A; must saturate at the 200 A limit.
	if err := lat.SetValue(ctx, 1, "b1", 100, Physics); err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	got, err = client.Get(ctx, "SR01A-PC-Q1:SETI")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != 200 {
		t.Errorf("setpoint = %g, want clamp to 200", got)
	}
}

func TestSetValueEngineeringClamps(t *testing.T) {
	lat, client := testLattice(t)
	ctx := context.Background()

	if err := lat.SetValue(ctx, 1, "b1", -50, Engineering); err != nil {
		t.Fatalf("SetValue returned error: %v", err)
	}
	got, err := client.Get(ctx, "SR01A-PC-Q1:SETI")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got != 0 {
		t.Errorf("setpoint = %g, want clamp to lower limit 0", got)
	}
}

func TestSetValueReadbackOnlyField(t *testing.T) {
	lat, _ := testLattice(t)

	err := lat.SetValue(context.Background(), 2, "x", 1, Engineering)
	if !errors.Is(err, ErrNoPV) {
		t.Errorf("SetValue error = %v, want ErrNoPV", err)
	}
}

func TestGetValueUnknownField(t *testing.T) {
	lat, _ := testLattice(t)

	_, err := lat.GetValue(context.Background(), 1, "no_such_field", Readback, Engineering)
	if !errors.Is(err, ErrNoDevice) {
		t.Errorf("GetValue error = %v, want ErrNoDevice", err)
	}
}

func TestElementLookup(t *testing.T) {
	lat, _ := testLattice(t)

	e, err := lat.Element(1)
	if err != nil {
		t.Fatalf("Element returned error: %v", err)
	}
	if e.Name != "SR01A-PC-Q1" {
		t.Errorf("Element(1).Name = %q", e.Name)
	}

	for _, bad := range []int{0, 3, -1} {
		if _, err := lat.Element(bad); !errors.Is(err, ErrElementNotFound) {
			t.Errorf("Element(%d) error = %v, want ErrElementNotFound", bad, err)
		}
	}
}

func TestFamilies(t *testing.T) {
	lat, _ := testLattice(t)

	quads := lat.GetElements("QUAD")
	if len(quads) != 1 || quads[0].Index != 1 {
		t.Errorf("GetElements(QUAD) = %v", quads)
	}
	if got := lat.GetElements("SEXT"); len(got) != 0 {
		t.Errorf("GetElements(SEXT) should be empty, got %d", len(got))
	}

	fams := lat.Families()
	if len(fams) != 2 || fams[0] != "BPM" || fams[1] != "QUAD" {
		t.Errorf("Families() = %v", fams)
	}
}

func TestLatticeLength(t *testing.T) {
	lat, _ := testLattice(t)
	if got := lat.Length(); math.Abs(got-0.4) > 1e-12 {
		t.Errorf("Length() = %g, want 0.4", got)
	}
}

func TestElementTypeRoundTrip(t *testing.T) {
	for _, typ := range []ElementType{Drift, Dipole, Quadrupole, SkewQuadrupole, Sextupole, Octupole, HCorrector, VCorrector, BPM, RFCavity} {
		parsed, err := ParseElementType(typ.String())
		if err != nil {
			t.Fatalf("ParseElementType(%q) returned error: %v", typ.String(), err)
		}
		if parsed != typ {
			t.Errorf("ParseElementType(%q) = %v, want %v", typ.String(), parsed, typ)
		}
	}

	if _, err := ParseElementType("WIGGLER"); err == nil {
		t.Error("ParseElementType should reject unknown types")
	}
}

func TestTypeFieldMetadata(t *testing.T) {
	fields := Quadrupole.Fields()
	if len(fields) != 1 || fields[0].Name != "b1" || !fields[0].Scaled {
		t.Errorf("Quadrupole.Fields() = %v", fields)
	}
	if got := Drift.Fields(); got != nil {
		t.Errorf("Drift.Fields() = %v, want none", got)
	}
	bpm := BPM.Fields()
	if len(bpm) != 2 || bpm[0].Kind != units.Null {
		t.Errorf("BPM.Fields() = %v", bpm)
	}
}
