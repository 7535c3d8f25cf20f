package export

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/DiamondLightSource/pytac/pkg/config"
	"github.com/DiamondLightSource/pytac/pkg/cs"
	"github.com/DiamondLightSource/pytac/pkg/lattice"
	"github.com/DiamondLightSource/pytac/pkg/load"
	"github.com/DiamondLightSource/pytac/pkg/units"
)

func f64(v float64) *float64 {
	return &v
}

func testConfig(t *testing.T, raw map[string]any) *config.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pytac.json")
	b, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("failed to marshal config: %v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	cfg, err := config.NewFile(path)
	if err != nil {
		t.Fatalf("config.NewFile returned error: %v", err)
	}
	return cfg
}

func mustCurve(t *testing.T, eng, phys []float64) *units.Curve {
	t.Helper()
	c, err := units.NewCurve(eng, phys)
	if err != nil {
		t.Fatalf("NewCurve returned error: %v", err)
	}
	return c
}

func testSnapshot(t *testing.T) []ElementDesc {
	kickCurve := mustCurve(t, []float64{-10, 0, 10}, []float64{-0.5, 0, 0.5})
	return []ElementDesc{
		{
			Name: "SR01A-PC-Q1", Type: lattice.Quadrupole, Length: 0.4, Cell: 1, ModelIndex: 1,
			Families: []string{"QUAD"},
			Devices: []DeviceDesc{{
				Field: "b1", Name: "SR01A-PC-Q1", HasSetpoint: true,
				Kind: units.Poly, PhysUnits: "m^-2", EngUnits: "A",
				Coeffs: []float64{0, 0.05}, LowerLimit: f64(-200), UpperLimit: f64(200),
			}},
		},
		{
			Name: "SR01A-PC-H1", Type: lattice.HCorrector, Length: 0, ModelIndex: 2,
			Families: []string{"HSTR"},
			Devices: []DeviceDesc{{
				Field: "x_kick", Name: "SR01A-PC-H1", HasSetpoint: true,
				Kind: units.Pchip, PhysUnits: "rad", EngUnits: "A", Curve: kickCurve,
			}},
		},
		{
			Name: "SR01A-PC-H2", Type: lattice.HCorrector, Length: 0, ModelIndex: 3,
			Families: []string{"HSTR"},
			Devices: []DeviceDesc{{
				Field: "x_kick", Name: "SR01A-PC-H2", HasSetpoint: true,
				Kind: units.Pchip, PhysUnits: "rad", EngUnits: "A", Curve: kickCurve,
			}},
		},
		{
			Name: "SR01A-DI-BPM1", Type: lattice.BPM, Length: 0, ModelIndex: 4,
			Families: []string{"BPM"},
			Devices: []DeviceDesc{
				{Field: "x", Name: "SR01A-DI-BPM1", Kind: units.Null},
				{Field: "y", Name: "SR01A-DI-BPM1", Kind: units.Null},
			},
		},
	}
}

func TestRemapBijective(t *testing.T) {
	r := NewRemap()
	pairs := map[int]int{10: 1, 20: 2, 35: 3}
	for model, export := range pairs {
		if err := r.Add(model, export); err != nil {
			t.Fatalf("Add returned error: %v", err)
		}
	}

	for model, export := range pairs {
		got, ok := r.ToExport(model)
		if !ok || got != export {
			t.Errorf("ToExport(%d) = %d, %v", model, got, ok)
		}
		back, ok := r.ToModel(export)
		if !ok || back != model {
			t.Errorf("ToModel(%d) = %d, %v", export, back, ok)
		}
	}

	if err := r.Add(10, 9); err == nil {
		t.Error("Add should reject a duplicate model index")
	}
	if err := r.Add(99, 1); err == nil {
		t.Error("Add should reject a duplicate export id")
	}
	if _, ok := r.ToExport(999); ok {
		t.Error("ToExport should miss for unmapped indexes")
	}
}

func TestExportSharesUniformCalibrations(t *testing.T) {
	cfg := testConfig(t, map[string]any{})
	tables, err := New(cfg).Export(testSnapshot(t))
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	if len(tables.Elements) != 4 {
		t.Fatalf("exported %d elements, want 4", len(tables.Elements))
	}

	// Both correctors carry the same measured curve, so they must share
	// one conversion id and the samples must be written once.
	var kickIDs []int
	for _, r := range tables.UnitConvs {
		if r.Field == "x_kick" {
			kickIDs = append(kickIDs, r.ConvID)
		}
	}
	if len(kickIDs) != 2 || kickIDs[0] != kickIDs[1] {
		t.Fatalf("corrector conversion ids = %v, want one shared id", kickIDs)
	}
	samples := 0
	for _, r := range tables.Pchips {
		if r.ConvID == kickIDs[0] {
			samples++
		}
	}
	if samples != 3 {
		t.Errorf("shared curve written %d samples, want 3", samples)
	}

	// Null devices get no unitconv rows.
	for _, r := range tables.UnitConvs {
		if r.Field == "x" || r.Field == "y" {
			t.Errorf("BPM field %q should have no unitconv row", r.Field)
		}
	}
}

func TestExportAppliesPVSuffixes(t *testing.T) {
	cfg := testConfig(t, map[string]any{"rbSuffix": ":AI", "spSuffix": ":AO"})
	tables, err := New(cfg).Export(testSnapshot(t))
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	dev := tables.Devices[0]
	if dev.GetPV != "SR01A-PC-Q1:AI" || dev.SetPV != "SR01A-PC-Q1:AO" {
		t.Errorf("device PVs = %q / %q", dev.GetPV, dev.SetPV)
	}

	// Readback-only devices get no setpoint PV.
	for _, d := range tables.Devices {
		if d.Field == "x" && d.SetPV != "" {
			t.Errorf("readback-only device has setpoint PV %q", d.SetPV)
		}
	}
}

func TestExportWindingOffset(t *testing.T) {
	cfg := testConfig(t, map[string]any{"windingOffsets": map[string]int{"HSTR": 1}})

	snapshot := testSnapshot(t)
	// A corrector wound on the quadrupole: shares model index 1, and the
	// configured +1 offset resolves it to the element at model index 2.
	winding := ElementDesc{
		Name: "SR01A-PC-HW1", Type: lattice.HCorrector, ModelIndex: 1, Winding: true,
		Families: []string{"HSTR"},
		Devices: []DeviceDesc{{
			Field: "x_kick", Name: "SR01A-PC-HW1", HasSetpoint: true,
			Kind: units.Poly, PhysUnits: "rad", EngUnits: "A", Coeffs: []float64{0, 0.001},
		}},
	}
	snapshot = append(snapshot, winding)

	tables, err := New(cfg).Export(snapshot)
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	// Model index 1+1=2 is the H1 corrector, exported as element 2.
	found := false
	for _, r := range tables.UnitConvs {
		if r.Kind == units.Poly && r.Field == "x_kick" {
			found = true
			if r.ElementID != 2 {
				t.Errorf("winding unitconv bound to element %d, want 2", r.ElementID)
			}
		}
	}
	if !found {
		t.Error("winding conversion row not exported")
	}
}

func TestExportWindingUnresolvable(t *testing.T) {
	cfg := testConfig(t, map[string]any{"windingOffsets": map[string]int{"HSTR": 50}})

	snapshot := testSnapshot(t)
	snapshot = append(snapshot, ElementDesc{
		Name: "SR01A-PC-HW1", Type: lattice.HCorrector, ModelIndex: 1, Winding: true,
		Families: []string{"HSTR"},
	})

	if _, err := New(cfg).Export(snapshot); err == nil {
		t.Error("Export should fail when a winding offset resolves nowhere")
	}
}

func TestExportRoundTripsThroughLoader(t *testing.T) {
	cfg := testConfig(t, map[string]any{})
	tables, err := New(cfg).Export(testSnapshot(t))
	if err != nil {
		t.Fatalf("Export returned error: %v", err)
	}

	dir := t.TempDir()
	if err := WriteCSV(tables, dir, "VMX"); err != nil {
		t.Fatalf("WriteCSV returned error: %v", err)
	}

	client := cs.NewMock(map[string]float64{"SR01A-PC-Q1:I": 100})
	lat, err := load.Load(dir, "VMX", client)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if lat.Len() != 4 {
		t.Fatalf("loaded %d elements, want 4", lat.Len())
	}

	phys, err := lat.GetValue(context.Background(), 1, "b1", lattice.Readback, lattice.Physics)
	if err != nil {
		t.Fatalf("GetValue returned error: %v", err)
	}
	want := 100 * 0.05 / units.Rigidity(load.DefaultEnergyMeV)
	if math.Abs(phys-want) > 1e-15 {
		t.Errorf("round-tripped physics value = %g, want %g", phys, want)
	}
}
