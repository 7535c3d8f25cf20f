package load

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/DiamondLightSource/pytac/pkg/cs"
	"github.com/DiamondLightSource/pytac/pkg/lattice"
	"github.com/DiamondLightSource/pytac/pkg/units"
)

const testMode = "VMX"

var testFiles = map[string]string{
	ElementsFilename: `name,type,length,cell
SR01A-PC-Q1,QUAD,0.4,1
SR01A-PC-S1,SEXT,0.2,1
SR01A-DI-BPM1,BPM,0.0,
`,
	DevicesFilename: `id,name,field,get_pv,set_pv
1,SR01A-PC-Q1,b1,SR01A-PC-Q1:I,SR01A-PC-Q1:SETI
2,SR01A-PC-S1,b2,SR01A-PC-S1:I,SR01A-PC-S1:SETI
3,SR01A-DI-BPM1,x,SR01A-DI-BPM1:X,
`,
	FamiliesFilename: `id,family
1,Q1
2,S1
3,BPMX
`,
	UnitConvFilename: `el_id,field,uc_type,uc_id,phys_units,eng_units,lower_lim,upper_lim
1,b1,poly,1,m^-2,A,-200,200
2,b2,pchip,2,m^-3,A,0,100
`,
	PolyFilename: `uc_id,coeff,val
1,0,0
1,1,0.05
`,
	PchipFilename: `uc_id,eng,phy
2,0,0
2,50,4.2
2,100,7.9
`,
}

func writeTestMode(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	modeDir := filepath.Join(dir, testMode)
	if err := os.MkdirAll(modeDir, 0o755); err != nil {
		t.Fatalf("failed to create mode dir: %v", err)
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(modeDir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func TestLoad(t *testing.T) {
	dir := writeTestMode(t, testFiles)
	client := cs.NewMock(map[string]float64{
		"SR01A-PC-Q1:I": 100,
	})

	lat, err := Load(dir, testMode, client)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if lat.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", lat.Len())
	}
	if math.Abs(lat.Length()-0.6) > 1e-12 {
		t.Errorf("Length() = %g, want 0.6", lat.Length())
	}

	// Type family plus explicit family rows.
	if got := len(lat.GetElements("QUAD")); got != 1 {
		t.Errorf("GetElements(QUAD) = %d members, want 1", got)
	}
	if got := len(lat.GetElements("Q1")); got != 1 {
		t.Errorf("GetElements(Q1) = %d members, want 1", got)
	}

	// The quadrupole is in a rigidity family, so its conversion carries
	// the rigidity divide.
	phys, err := lat.GetValue(context.Background(), 1, "b1", lattice.Readback, lattice.Physics)
	if err != nil {
		t.Fatalf("GetValue returned error: %v", err)
	}
	want := 100 * 0.05 / units.Rigidity(DefaultEnergyMeV)
	if math.Abs(phys-want) > 1e-15 {
		t.Errorf("GetValue physics = %g, want %g", phys, want)
	}
}

func TestLoadSPosition(t *testing.T) {
	dir := writeTestMode(t, testFiles)
	lat, err := Load(dir, testMode, cs.NullClient{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	e2, err := lat.Element(2)
	if err != nil {
		t.Fatalf("Element returned error: %v", err)
	}
	if math.Abs(e2.S-0.4) > 1e-12 {
		t.Errorf("Element(2).S = %g, want 0.4", e2.S)
	}
}

func TestLoadPchipConversion(t *testing.T) {
	dir := writeTestMode(t, testFiles)
	lat, err := Load(dir, testMode, cs.NullClient{})
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	conv := lat.Resolve(2, "b2")
	if conv.Kind != units.Pchip {
		t.Fatalf("Resolve(2, b2).Kind = %v, want pchip", conv.Kind)
	}

	// The sextupole is in a rigidity family: phys = pchip(eng)/rigidity.
	phys, err := conv.ToPhysics(50)
	if err != nil {
		t.Fatalf("ToPhysics returned error: %v", err)
	}
	want := 4.2 / units.Rigidity(DefaultEnergyMeV)
	if math.Abs(phys-want) > 1e-15 {
		t.Errorf("ToPhysics(50) = %g, want %g", phys, want)
	}
}

func TestLoadFailsOnBadRows(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{
			name: "unknown element type",
			file: ElementsFilename,
			body: "name,type,length,cell\nX,WIGGLER,1.0,\n",
		},
		{
			name: "device references missing element",
			file: DevicesFilename,
			body: "id,name,field,get_pv,set_pv\n99,X,b1,X:I,\n",
		},
		{
			name: "unparseable float",
			file: PolyFilename,
			body: "uc_id,coeff,val\n1,0,notafloat\n",
		},
		{
			name: "non-monotone calibration",
			file: PchipFilename,
			body: "uc_id,eng,phy\n2,0,0\n2,50,5\n2,100,1\n",
		},
		{
			name: "missing header column",
			file: UnitConvFilename,
			body: "el_id,field\n1,b1\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := make(map[string]string, len(testFiles))
			for k, v := range testFiles {
				files[k] = v
			}
			files[tt.file] = tt.body

			dir := writeTestMode(t, files)
			if _, err := Load(dir, testMode, cs.NullClient{}); err == nil {
				t.Error("Load should have failed")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(dir, testMode, cs.NullClient{}); err == nil {
		t.Error("Load should fail when the mode directory does not exist")
	}
}
