package units

import "math"

// CODATA values used by the rigidity calculation.
const (
	electronMassMeV  = 0.51099895069
	speedOfLight     = 299792458.0
	elementaryCharge = 1.602176634e-19
)

// Rigidity returns the magnetic rigidity of an electron beam of the given
// energy in MeV: the relativistic momentum divided by the elementary
// charge. Magnet strength conversions divide by this after the raw
// eng-to-phys conversion and multiply by it before the inverse.
func Rigidity(energyMeV float64) float64 {
	gamma := energyMeV / electronMassMeV
	beta := math.Sqrt(1 - 1/(gamma*gamma))
	energyJ := energyMeV * 1e6 * elementaryCharge
	p := beta * energyJ / speedOfLight
	return p / elementaryCharge
}
