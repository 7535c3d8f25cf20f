// Package cs abstracts the control system used to read and write named
// process variables (PVs). The conversion engine never talks to hardware
// itself; it receives a Client and treats it as an opaque point
// read/write capability.
package cs

import (
	"context"
	"errors"
)

// ErrUnknownPV is returned when the control system has no record of the
// requested process variable.
var ErrUnknownPV = errors.New("unknown process variable")

// Client reads and writes named process variables. A single Get or Put
// may block on the network and is subject to the implementation's own
// timeout policy, hence the context.
type Client interface {
	// Get reads the current value of a PV.
	Get(ctx context.Context, pv string) (float64, error)
	// Put writes a value to a PV.
	Put(ctx context.Context, pv string, value float64) error
}

// NullClient discards writes and reads zeros. Useful when loading a
// lattice purely for its conversion data, with no machine attached.
type NullClient struct{}

var _ Client = NullClient{}

// Get always returns zero.
func (NullClient) Get(_ context.Context, _ string) (float64, error) {
	return 0, nil
}

// Put discards the value.
func (NullClient) Put(_ context.Context, _ string, _ float64) error {
	return nil
}
