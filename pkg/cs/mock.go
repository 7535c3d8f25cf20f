package cs

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// MockClient is an in-memory control system with prefilled PV values.
type MockClient struct {
	mu   sync.RWMutex
	vals map[string]float64
}

var _ Client = &MockClient{}

// NewMock returns a new MockClient holding the prefill values.
func NewMock(prefillValues map[string]float64) *MockClient {
	vals := make(map[string]float64, len(prefillValues))
	for pv, v := range prefillValues {
		vals[pv] = v
	}
	return &MockClient{vals: vals}
}

// Get reads a prefilled or previously written value.
func (c *MockClient) Get(_ context.Context, pv string) (float64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	v, ok := c.vals[pv]
	if !ok {
		return 0, ErrUnknownPV
	}

	logrus.WithFields(logrus.Fields{
		"pv":  pv,
		"val": v,
	}).Trace("mock control system read")

	return v, nil
}

// Put stores the value so later reads observe it.
func (c *MockClient) Put(_ context.Context, pv string, value float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.vals[pv] = value

	logrus.WithFields(logrus.Fields{
		"pv":  pv,
		"val": value,
	}).Trace("mock control system write")

	return nil
}
