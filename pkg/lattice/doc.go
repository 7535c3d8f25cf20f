// Package lattice models the accelerator as an ordered sequence of
// elements, each carrying devices (PV bindings) for its controllable
// fields and family memberships for group lookups. The Lattice type is
// also the public read/write entry point: it fetches or commands field
// values in either unit system, translating through the conversion
// registry and delegating the raw point access to a cs.Client.
package lattice
