package load

import "github.com/DiamondLightSource/pytac/pkg/registry"

// Table file names inside a mode directory.
const (
	ElementsFilename = "elements.csv"
	DevicesFilename  = "devices.csv"
	FamiliesFilename = "families.csv"
	UnitConvFilename = "unitconv.csv"
	PolyFilename     = "uc_poly_data.csv"
	PchipFilename    = "uc_pchip_data.csv"
)

// ElementRow is one row of the elements table. Element ids are implicit:
// row order assigns indexes 1..n.
type ElementRow struct {
	Name   string
	Type   string
	Length float64
	Cell   int
}

// DeviceRow is one row of the devices table, binding a field of an
// element to its process variables.
type DeviceRow struct {
	ElementID int
	Name      string
	Field     string
	GetPV     string
	SetPV     string
}

// FamilyRow is one row of the families table.
type FamilyRow struct {
	ElementID int
	Family    string
}

// Tables is the full relational snapshot of one machine mode: everything
// needed to build a lattice and its conversion registry. The exporter
// produces it, the CSV and SQLite stores persist it, and Build consumes
// it.
type Tables struct {
	Elements  []ElementRow
	Devices   []DeviceRow
	Families  []FamilyRow
	UnitConvs []registry.UnitConvRow
	Polys     []registry.PolyRow
	Pchips    []registry.PchipRow
}
