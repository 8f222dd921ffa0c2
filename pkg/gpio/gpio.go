// Package gpio drives the indicator output that gives hardware feedback for
// echoed messages.
//
// The Actuator owns the only process-wide shared state: a single binary
// value mirroring the physical output. Toggle is its sole mutator, so the
// value after N successful echoes from cold boot is N mod 2. The physical
// write goes through the Output primitive; on Linux that is a GPIO character
// device line, elsewhere (and in tests) an in-memory recorder.
package gpio

import (
	"errors"
	"sync"
)

// ErrUnsupportedPlatform indicates the GPIO character device is unavailable
// on this OS.
var ErrUnsupportedPlatform = errors.New("gpio character device not supported on this platform")

// Output is the hardware primitive beneath the actuator: set the indicator
// line high or low.
type Output interface {
	// SetValue drives the output level.
	SetValue(on bool) error
	// Close releases the underlying line.
	Close() error
}

// Actuator holds the last-known output state and flips it on demand. The
// mutex is the sole serialization point, so under parallel echoes toggles
// are still issued in causal order: a burst of N echoes produces exactly N
// toggles, in order.
type Actuator struct {
	out   Output
	state bool
	mu    sync.Mutex
}

// NewActuator wraps an output. The initial state is assumed off; call Reset
// to force the physical line to match.
func NewActuator(out Output) *Actuator {
	return &Actuator{out: out}
}

// Reset drives the output low and clears the held state, mirroring the
// power-on configuration of the indicator.
func (a *Actuator) Reset() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = false
	return a.out.SetValue(false)
}

// Toggle flips the shared binary output and writes it to the physical
// interface. Two consecutive toggles return the output to its prior state.
// The flip counts even when the physical write fails; the error is returned
// for logging but the protocol layer observes no value.
func (a *Actuator) Toggle() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state = !a.state
	return a.out.SetValue(a.state)
}

// State returns the last-known output state.
func (a *Actuator) State() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Close releases the underlying output.
func (a *Actuator) Close() error {
	return a.out.Close()
}

// Memory is an in-memory Output that records every level written. It backs
// tests and lets the server run on hosts without GPIO hardware.
type Memory struct {
	mu     sync.Mutex
	values []bool
}

// NewMemory creates an empty in-memory output.
func NewMemory() *Memory {
	return &Memory{}
}

// SetValue records the level.
func (m *Memory) SetValue(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = append(m.values, on)
	return nil
}

// Close implements Output.
func (m *Memory) Close() error {
	return nil
}

// Values returns a copy of every level written, in order.
func (m *Memory) Values() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.values))
	copy(out, m.values)
	return out
}

// Writes returns how many levels were written.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

// Last returns the most recent level written, or false if none.
func (m *Memory) Last() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.values) == 0 {
		return false
	}
	return m.values[len(m.values)-1]
}
