// Package load reads the relational tables describing a machine mode and
// assembles the lattice: elements, devices, family memberships and the
// unit conversion registry. Loading is fail-fast; a malformed row aborts
// with the file and offending identifiers in the error, so the upstream
// export can be fixed rather than silently losing a conversion.
package load

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DiamondLightSource/pytac/pkg/cs"
	"github.com/DiamondLightSource/pytac/pkg/lattice"
	"github.com/DiamondLightSource/pytac/pkg/registry"
	"github.com/DiamondLightSource/pytac/pkg/units"
)

// DefaultEnergyMeV is used when a mode does not specify a beam energy.
const DefaultEnergyMeV = 3000

// rigidityFamilies lists the families whose strength conversions carry
// the energy-dependent rigidity factor.
var rigidityFamilies = []string{"HSTR", "VSTR", "QUAD", "SEXT"}

// Load reads the six CSV tables from directory/mode and builds the
// lattice wired to the given control-system client.
func Load(directory, mode string, client cs.Client) (*lattice.Lattice, error) {
	tables, err := ReadTables(directory, mode)
	if err != nil {
		return nil, err
	}
	return Build(mode, tables, client)
}

// ReadTables reads the six CSV tables from directory/mode without
// building a lattice.
func ReadTables(directory, mode string) (*Tables, error) {
	dir := filepath.Join(directory, mode)

	tables := &Tables{}
	var err error

	if tables.Elements, err = readElements(filepath.Join(dir, ElementsFilename)); err != nil {
		return nil, err
	}
	if tables.Devices, err = readDevices(filepath.Join(dir, DevicesFilename)); err != nil {
		return nil, err
	}
	if tables.Families, err = readFamilies(filepath.Join(dir, FamiliesFilename)); err != nil {
		return nil, err
	}
	if tables.UnitConvs, err = readUnitConvs(filepath.Join(dir, UnitConvFilename)); err != nil {
		return nil, err
	}
	if tables.Polys, err = readPolys(filepath.Join(dir, PolyFilename)); err != nil {
		return nil, err
	}
	if tables.Pchips, err = readPchips(filepath.Join(dir, PchipFilename)); err != nil {
		return nil, err
	}

	return tables, nil
}

// Build assembles a lattice from in-memory tables. The registry is built
// and attached before the lattice is returned, so no caller can observe a
// partially-initialised lattice.
func Build(mode string, tables *Tables, client cs.Client) (*lattice.Lattice, error) {
	lat := lattice.New(mode, DefaultEnergyMeV)

	elements := make([]*lattice.Element, 0, len(tables.Elements))
	s := 0.0
	for i, row := range tables.Elements {
		typ, err := lattice.ParseElementType(row.Type)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "element %d (%s)", i+1, row.Name)
		}
		e := lattice.NewElement(row.Name, i+1, typ, row.Length)
		e.S = s
		e.Cell = row.Cell
		e.AddToFamily(row.Type)
		s += row.Length
		elements = append(elements, e)
	}

	byID := func(id int, table string) (*lattice.Element, error) {
		if id < 1 || id > len(elements) {
			return nil, pkgerrors.Errorf("%s: element id %d outside lattice of %d elements", table, id, len(elements))
		}
		return elements[id-1], nil
	}

	for _, row := range tables.Devices {
		e, err := byID(row.ElementID, DevicesFilename)
		if err != nil {
			return nil, err
		}
		e.AddDevice(row.Field, lattice.NewDevice(row.Name, client, row.GetPV, row.SetPV))
	}

	for _, row := range tables.Families {
		e, err := byID(row.ElementID, FamiliesFilename)
		if err != nil {
			return nil, err
		}
		e.AddToFamily(row.Family)
	}

	// Family membership decides rigidity scaling, so it is resolved here
	// once and handed to the registry as a plain predicate.
	scaled := make(map[int]bool)
	for _, e := range elements {
		for _, fam := range rigidityFamilies {
			if e.InFamily(fam) {
				scaled[e.Index] = true
				break
			}
		}
	}

	reg, err := registry.Build(tables.UnitConvs, tables.Polys, tables.Pchips, &registry.Options{
		EnergyMeV: lat.EnergyMeV,
		NeedsRigidity: func(elementID int, _ string) bool {
			return scaled[elementID]
		},
	})
	if err != nil {
		return nil, err
	}

	for _, e := range elements {
		lat.AddElement(e)
	}
	lat.SetRegistry(reg)

	logrus.WithFields(logrus.Fields{
		"mode":     mode,
		"elements": lat.Len(),
		"families": len(lat.Families()),
		"convs":    reg.Len(),
	}).Info("lattice loaded")

	return lat, nil
}

// csvFile reads a header-keyed CSV and calls fn with a column lookup for
// every data row.
func csvFile(path string, fn func(get func(col string) (string, error)) error) error {
	fp, err := os.Open(path)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open %s", path)
	}
	defer func() {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close %s", path)
		}
	}()

	reader := csv.NewReader(fp)
	records, err := reader.ReadAll()
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to parse %s", path)
	}
	if len(records) == 0 {
		return pkgerrors.Errorf("%s: missing header row", path)
	}

	cols := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		cols[name] = i
	}

	for line, record := range records[1:] {
		get := func(col string) (string, error) {
			i, ok := cols[col]
			if !ok {
				return "", pkgerrors.Errorf("missing column %q", col)
			}
			return record[i], nil
		}
		if err := fn(get); err != nil {
			return pkgerrors.Wrapf(err, "%s line %d", path, line+2)
		}
	}
	return nil
}

func readElements(path string) ([]ElementRow, error) {
	var rows []ElementRow
	err := csvFile(path, func(get func(string) (string, error)) error {
		row := ElementRow{}
		var err error
		if row.Name, err = get("name"); err != nil {
			return err
		}
		if row.Type, err = get("type"); err != nil {
			return err
		}
		if row.Length, err = getFloat(get, "length"); err != nil {
			return err
		}
		if row.Cell, err = getOptionalInt(get, "cell"); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func readDevices(path string) ([]DeviceRow, error) {
	var rows []DeviceRow
	err := csvFile(path, func(get func(string) (string, error)) error {
		row := DeviceRow{}
		var err error
		if row.ElementID, err = getInt(get, "id"); err != nil {
			return err
		}
		if row.Name, err = get("name"); err != nil {
			return err
		}
		if row.Field, err = get("field"); err != nil {
			return err
		}
		if row.GetPV, err = get("get_pv"); err != nil {
			return err
		}
		if row.SetPV, err = get("set_pv"); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func readFamilies(path string) ([]FamilyRow, error) {
	var rows []FamilyRow
	err := csvFile(path, func(get func(string) (string, error)) error {
		row := FamilyRow{}
		var err error
		if row.ElementID, err = getInt(get, "id"); err != nil {
			return err
		}
		if row.Family, err = get("family"); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func readUnitConvs(path string) ([]registry.UnitConvRow, error) {
	var rows []registry.UnitConvRow
	err := csvFile(path, func(get func(string) (string, error)) error {
		row := registry.UnitConvRow{}
		var err error
		if row.ElementID, err = getInt(get, "el_id"); err != nil {
			return err
		}
		if row.Field, err = get("field"); err != nil {
			return err
		}
		kind, err := get("uc_type")
		if err != nil {
			return err
		}
		if row.Kind, err = units.ParseKind(kind); err != nil {
			return err
		}
		if row.ConvID, err = getInt(get, "uc_id"); err != nil {
			return err
		}
		if row.PhysUnits, err = get("phys_units"); err != nil {
			return err
		}
		if row.EngUnits, err = get("eng_units"); err != nil {
			return err
		}
		if row.LowerLimit, err = getOptionalFloat(get, "lower_lim"); err != nil {
			return err
		}
		if row.UpperLimit, err = getOptionalFloat(get, "upper_lim"); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func readPolys(path string) ([]registry.PolyRow, error) {
	var rows []registry.PolyRow
	err := csvFile(path, func(get func(string) (string, error)) error {
		row := registry.PolyRow{}
		var err error
		if row.ConvID, err = getInt(get, "uc_id"); err != nil {
			return err
		}
		if row.Index, err = getInt(get, "coeff"); err != nil {
			return err
		}
		if row.Value, err = getFloat(get, "val"); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func readPchips(path string) ([]registry.PchipRow, error) {
	var rows []registry.PchipRow
	err := csvFile(path, func(get func(string) (string, error)) error {
		row := registry.PchipRow{}
		var err error
		if row.ConvID, err = getInt(get, "uc_id"); err != nil {
			return err
		}
		if row.Eng, err = getFloat(get, "eng"); err != nil {
			return err
		}
		if row.Phys, err = getFloat(get, "phy"); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	return rows, err
}

func getInt(get func(string) (string, error), col string) (int, error) {
	s, err := get(col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "column %q", col)
	}
	return v, nil
}

func getOptionalInt(get func(string) (string, error), col string) (int, error) {
	s, err := get(col)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "column %q", col)
	}
	return v, nil
}

func getFloat(get func(string) (string, error), col string) (float64, error) {
	s, err := get(col)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "column %q", col)
	}
	return v, nil
}

func getOptionalFloat(get func(string) (string, error), col string) (*float64, error) {
	s, err := get(col)
	if err != nil {
		return nil, err
	}
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "column %q", col)
	}
	return &v, nil
}
