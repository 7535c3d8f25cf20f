// Package units converts values between the engineering units used by
// hardware controllers and the physics units used by accelerator models.
// It contains:
//
//   - Conv: an immutable conversion record, one per controllable field,
//     applying either a polynomial or a monotone piecewise-cubic (pchip)
//     calibration in both directions
//   - Curve: paired calibration samples measured on a device, used to
//     build pchip conversions
//   - Rigidity: the energy-dependent magnetic rigidity factor applied to
//     magnet strength conversions
//
// Conversion records are built once at load time and never mutated
// afterwards, so any number of goroutines may convert concurrently.
package units
