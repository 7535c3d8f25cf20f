// Package config holds the tool's file-backed settings: beam energy, PV
// suffix conventions and the corrector-winding index offsets. Winding
// offsets are configuration, never constants: some corrector magnets are
// physically windings on a sextupole and their exported index must be
// shifted by a site-specific amount to reach the standalone element.
package config

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var defaultConfig = &RawConfig{
	EnergyMeV: f64(3000),
	Mode:      str("VMX"),
	RBSuffix:  str(":I"),
	SPSuffix:  str(":SETI"),
}

func f64(v float64) *float64 { return &v }
func str(s string) *string   { return &s }

// RawConfig is the JSON shape of the config file. Pointer fields
// distinguish "absent, use the default" from an explicit zero.
type RawConfig struct {
	EnergyMeV      *float64       `json:"energyMeV,omitempty"`
	Mode           *string        `json:"mode,omitempty"`
	RBSuffix       *string        `json:"rbSuffix,omitempty"`
	SPSuffix       *string        `json:"spSuffix,omitempty"`
	WindingOffsets map[string]int `json:"windingOffsets,omitempty"`
}

// File is a config backed by a JSON file.
type File struct {
	c        *RawConfig
	mu       *sync.RWMutex
	filepath string
}

// NewFile loads the config at configPath. A missing or empty file yields
// the defaults.
func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	if err := f.Load(); err != nil {
		return nil, err
	}
	return f, nil
}

// EnergyMeV returns the design beam energy.
func (f *File) EnergyMeV() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.EnergyMeV != nil {
		return *f.c.EnergyMeV
	}
	return *defaultConfig.EnergyMeV
}

// Mode returns the machine mode name.
func (f *File) Mode() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.Mode != nil {
		return *f.c.Mode
	}
	return *defaultConfig.Mode
}

// RBSuffix returns the readback PV suffix convention.
func (f *File) RBSuffix() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.RBSuffix != nil {
		return *f.c.RBSuffix
	}
	return *defaultConfig.RBSuffix
}

// SPSuffix returns the setpoint PV suffix convention.
func (f *File) SPSuffix() string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.SPSuffix != nil {
		return *f.c.SPSuffix
	}
	return *defaultConfig.SPSuffix
}

// WindingOffset returns the index offset applied to corrector windings in
// the named family, 0 when none is configured.
func (f *File) WindingOffset(family string) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.c.WindingOffsets[family]
}

// Load reads the configuration from disk.
func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			f.c = &RawConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}
	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawConfig{}
		return nil
	}

	conf := RawConfig{}
	if err := json.Unmarshal(b, &conf); err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

// Save writes the configuration to disk.
func (f *File) Save() error {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c == nil {
		return pkgerrors.New("config is nil")
	}

	fp, err := os.OpenFile(f.filepath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		if err := fp.Close(); err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	enc := json.NewEncoder(fp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f.c); err != nil {
		return pkgerrors.Wrapf(err, "failed to encode config to file %s", f.filepath)
	}

	return nil
}

// LogrusFields summarises the config for startup logging.
func (f *File) LogrusFields() logrus.Fields {
	return logrus.Fields{
		"energyMeV":      f.EnergyMeV(),
		"mode":           f.Mode(),
		"rbSuffix":       f.RBSuffix(),
		"spSuffix":       f.SPSuffix(),
		"windingOffsets": len(f.c.WindingOffsets),
	}
}
