package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/DiamondLightSource/pytac/pkg/load"
)

// WriteCSV writes the tables as the six CSV files the loader reads, under
// directory/mode.
func WriteCSV(tables *load.Tables, directory, mode string) error {
	dir := filepath.Join(directory, mode)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pkgerrors.Wrapf(err, "failed to create %s", dir)
	}

	elements := [][]string{{"name", "type", "length", "cell"}}
	for _, r := range tables.Elements {
		cell := ""
		if r.Cell != 0 {
			cell = strconv.Itoa(r.Cell)
		}
		elements = append(elements, []string{r.Name, r.Type, ftoa(r.Length), cell})
	}

	devices := [][]string{{"id", "name", "field", "get_pv", "set_pv"}}
	for _, r := range tables.Devices {
		devices = append(devices, []string{strconv.Itoa(r.ElementID), r.Name, r.Field, r.GetPV, r.SetPV})
	}

	families := [][]string{{"id", "family"}}
	for _, r := range tables.Families {
		families = append(families, []string{strconv.Itoa(r.ElementID), r.Family})
	}

	unitconvs := [][]string{{"el_id", "field", "uc_type", "uc_id", "phys_units", "eng_units", "lower_lim", "upper_lim"}}
	for _, r := range tables.UnitConvs {
		unitconvs = append(unitconvs, []string{
			strconv.Itoa(r.ElementID), r.Field, r.Kind.String(), strconv.Itoa(r.ConvID),
			r.PhysUnits, r.EngUnits, optftoa(r.LowerLimit), optftoa(r.UpperLimit),
		})
	}

	polys := [][]string{{"uc_id", "coeff", "val"}}
	for _, r := range tables.Polys {
		polys = append(polys, []string{strconv.Itoa(r.ConvID), strconv.Itoa(r.Index), ftoa(r.Value)})
	}

	pchips := [][]string{{"uc_id", "eng", "phy"}}
	for _, r := range tables.Pchips {
		pchips = append(pchips, []string{strconv.Itoa(r.ConvID), ftoa(r.Eng), ftoa(r.Phys)})
	}

	files := map[string][][]string{
		load.ElementsFilename: elements,
		load.DevicesFilename:  devices,
		load.FamiliesFilename: families,
		load.UnitConvFilename: unitconvs,
		load.PolyFilename:     polys,
		load.PchipFilename:    pchips,
	}
	for name, records := range files {
		if err := writeCSVFile(filepath.Join(dir, name), records); err != nil {
			return err
		}
	}

	logrus.WithFields(logrus.Fields{
		"directory": dir,
	}).Info("tables written")

	return nil
}

func writeCSVFile(path string, records [][]string) error {
	fp, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open %s", path)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close %s", path)
		}
	}(fp)

	w := csv.NewWriter(fp)
	if err := w.WriteAll(records); err != nil {
		return pkgerrors.Wrapf(err, "failed to write %s", path)
	}
	return nil
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func optftoa(v *float64) string {
	if v == nil {
		return ""
	}
	return ftoa(*v)
}
