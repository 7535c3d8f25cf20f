// Package registry builds and owns the mapping from (element id, field
// name) to the unit conversion governing that field. The registry is
// constructed eagerly from the three conversion tables, validating every
// row up front: a malformed row fails the whole build, because a registry
// that silently dropped a conversion would hand wrong values to hardware.
//
// Lookups never fail. A key with no explicit row resolves to a shared
// identity conversion, since absence of unit metadata is a legitimate and
// common case (boolean fields, already-physical quantities).
package registry
