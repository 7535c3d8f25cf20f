// Package store persists the exported machine tables in a single SQLite
// file, as an alternative to a directory of CSVs. The schema mirrors the
// CSV tables one to one, so a snapshot saved here loads into exactly the
// same row types.
package store

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/DiamondLightSource/pytac/pkg/load"
	"github.com/DiamondLightSource/pytac/pkg/registry"
	"github.com/DiamondLightSource/pytac/pkg/units"
)

// DB wraps a SQLite connection holding one machine snapshot.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite snapshot at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, pkgerrors.Wrap(err, "failed to open snapshot db")
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, pkgerrors.Wrap(err, "failed to migrate snapshot db")
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS elements (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		length REAL NOT NULL,
		cell INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS devices (
		element_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		field TEXT NOT NULL,
		get_pv TEXT NOT NULL,
		set_pv TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS families (
		element_id INTEGER NOT NULL,
		family TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS unitconv (
		element_id INTEGER NOT NULL,
		field TEXT NOT NULL,
		uc_type TEXT NOT NULL,
		uc_id INTEGER NOT NULL,
		phys_units TEXT NOT NULL,
		eng_units TEXT NOT NULL,
		lower_lim REAL,
		upper_lim REAL
	);

	CREATE TABLE IF NOT EXISTS uc_poly_data (
		uc_id INTEGER NOT NULL,
		coeff INTEGER NOT NULL,
		val REAL NOT NULL
	);

	CREATE TABLE IF NOT EXISTS uc_pchip_data (
		rowid_order INTEGER PRIMARY KEY AUTOINCREMENT,
		uc_id INTEGER NOT NULL,
		eng REAL NOT NULL,
		phy REAL NOT NULL
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Save replaces the stored snapshot with the given tables.
func (db *DB) Save(tables *load.Tables) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return pkgerrors.Wrap(err, "failed to begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, table := range []string{"elements", "devices", "families", "unitconv", "uc_poly_data", "uc_pchip_data"} {
		if _, err := tx.Exec("DELETE FROM " + table); err != nil {
			return pkgerrors.Wrapf(err, "failed to clear %s", table)
		}
	}

	for i, r := range tables.Elements {
		if _, err := tx.Exec(`INSERT INTO elements (id, name, type, length, cell) VALUES (?, ?, ?, ?, ?)`,
			i+1, r.Name, r.Type, r.Length, r.Cell); err != nil {
			return pkgerrors.Wrapf(err, "failed to insert element %s", r.Name)
		}
	}
	for _, r := range tables.Devices {
		if _, err := tx.Exec(`INSERT INTO devices (element_id, name, field, get_pv, set_pv) VALUES (?, ?, ?, ?, ?)`,
			r.ElementID, r.Name, r.Field, r.GetPV, r.SetPV); err != nil {
			return pkgerrors.Wrapf(err, "failed to insert device %s", r.Name)
		}
	}
	for _, r := range tables.Families {
		if _, err := tx.Exec(`INSERT INTO families (element_id, family) VALUES (?, ?)`,
			r.ElementID, r.Family); err != nil {
			return pkgerrors.Wrapf(err, "failed to insert family row %d/%s", r.ElementID, r.Family)
		}
	}
	for _, r := range tables.UnitConvs {
		if _, err := tx.Exec(`INSERT INTO unitconv (element_id, field, uc_type, uc_id, phys_units, eng_units, lower_lim, upper_lim)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ElementID, r.Field, r.Kind.String(), r.ConvID, r.PhysUnits, r.EngUnits, optFloat(r.LowerLimit), optFloat(r.UpperLimit)); err != nil {
			return pkgerrors.Wrapf(err, "failed to insert unitconv row %d/%s", r.ElementID, r.Field)
		}
	}
	for _, r := range tables.Polys {
		if _, err := tx.Exec(`INSERT INTO uc_poly_data (uc_id, coeff, val) VALUES (?, ?, ?)`,
			r.ConvID, r.Index, r.Value); err != nil {
			return pkgerrors.Wrapf(err, "failed to insert poly row for conversion %d", r.ConvID)
		}
	}
	for _, r := range tables.Pchips {
		if _, err := tx.Exec(`INSERT INTO uc_pchip_data (uc_id, eng, phy) VALUES (?, ?, ?)`,
			r.ConvID, r.Eng, r.Phys); err != nil {
			return pkgerrors.Wrapf(err, "failed to insert pchip row for conversion %d", r.ConvID)
		}
	}

	if err := tx.Commit(); err != nil {
		return pkgerrors.Wrap(err, "failed to commit snapshot")
	}

	logrus.WithFields(logrus.Fields{
		"elements": len(tables.Elements),
		"devices":  len(tables.Devices),
	}).Info("snapshot saved")

	return nil
}

// Load reads the stored snapshot back into loader tables.
func (db *DB) Load() (*load.Tables, error) {
	tables := &load.Tables{}

	var elements []struct {
		Name   string  `db:"name"`
		Type   string  `db:"type"`
		Length float64 `db:"length"`
		Cell   int     `db:"cell"`
	}
	if err := db.conn.Select(&elements, `SELECT name, type, length, cell FROM elements ORDER BY id`); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load elements")
	}
	for _, r := range elements {
		tables.Elements = append(tables.Elements, load.ElementRow(r))
	}

	var devices []struct {
		ElementID int    `db:"element_id"`
		Name      string `db:"name"`
		Field     string `db:"field"`
		GetPV     string `db:"get_pv"`
		SetPV     string `db:"set_pv"`
	}
	if err := db.conn.Select(&devices, `SELECT element_id, name, field, get_pv, set_pv FROM devices`); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load devices")
	}
	for _, r := range devices {
		tables.Devices = append(tables.Devices, load.DeviceRow(r))
	}

	var families []struct {
		ElementID int    `db:"element_id"`
		Family    string `db:"family"`
	}
	if err := db.conn.Select(&families, `SELECT element_id, family FROM families`); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load families")
	}
	for _, r := range families {
		tables.Families = append(tables.Families, load.FamilyRow(r))
	}

	var unitconvs []struct {
		ElementID int             `db:"element_id"`
		Field     string          `db:"field"`
		Kind      string          `db:"uc_type"`
		ConvID    int             `db:"uc_id"`
		PhysUnits string          `db:"phys_units"`
		EngUnits  string          `db:"eng_units"`
		Lower     sql.NullFloat64 `db:"lower_lim"`
		Upper     sql.NullFloat64 `db:"upper_lim"`
	}
	if err := db.conn.Select(&unitconvs, `SELECT element_id, field, uc_type, uc_id, phys_units, eng_units, lower_lim, upper_lim FROM unitconv`); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load unitconv")
	}
	for _, r := range unitconvs {
		kind, err := units.ParseKind(r.Kind)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "unitconv row %d/%s", r.ElementID, r.Field)
		}
		tables.UnitConvs = append(tables.UnitConvs, registry.UnitConvRow{
			ElementID:  r.ElementID,
			Field:      r.Field,
			Kind:       kind,
			ConvID:     r.ConvID,
			PhysUnits:  r.PhysUnits,
			EngUnits:   r.EngUnits,
			LowerLimit: nullFloat(r.Lower),
			UpperLimit: nullFloat(r.Upper),
		})
	}

	var polys []struct {
		ConvID int     `db:"uc_id"`
		Index  int     `db:"coeff"`
		Value  float64 `db:"val"`
	}
	if err := db.conn.Select(&polys, `SELECT uc_id, coeff, val FROM uc_poly_data ORDER BY uc_id, coeff`); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load polynomial data")
	}
	for _, r := range polys {
		tables.Polys = append(tables.Polys, registry.PolyRow(r))
	}

	// Sample order is load-bearing for pchip data, hence the explicit
	// insertion-order column.
	var pchips []struct {
		ConvID int     `db:"uc_id"`
		Eng    float64 `db:"eng"`
		Phys   float64 `db:"phy"`
	}
	if err := db.conn.Select(&pchips, `SELECT uc_id, eng, phy FROM uc_pchip_data ORDER BY rowid_order`); err != nil {
		return nil, pkgerrors.Wrap(err, "failed to load pchip data")
	}
	for _, r := range pchips {
		tables.Pchips = append(tables.Pchips, registry.PchipRow(r))
	}

	return tables, nil
}

func optFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
