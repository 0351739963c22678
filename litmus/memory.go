// Package litmus replays generated test programs and feeds the observed
// values back into the execution witness.
//
// A replay stands in for running the emitted code on real hardware: a
// shadow memory holds the write id last stored at each test location,
// and an event-driven executor interleaves the per-thread operation
// streams under a seeded schedule. Every value a read returns and every
// value a write displaces is reported back through the compiler, so the
// witness ends up with the read-from and coherence relations of that
// interleaving. The package also provides the classic litmus patterns
// (store buffering, message passing) as ready-made operation sequences.
package litmus

import (
	"github.com/icsa-caps/mc2lib/codegen"
	mc "github.com/icsa-caps/mc2lib/memconsistency"
)

// Memory is the shadow of the test locations: one write id per byte.
// Locations never stored to hold InitWrite, the id of the
// architecturally initial value.
type Memory struct {
	cells map[mc.Addr]codegen.WriteID
}

// NewMemory returns an empty shadow memory.
func NewMemory() *Memory {
	return &Memory{cells: make(map[mc.Addr]codegen.WriteID)}
}

// Load returns the id stored at addr.
func (m *Memory) Load(addr mc.Addr) codegen.WriteID {
	return m.cells[addr]
}

// Store records id at addr.
func (m *Memory) Store(addr mc.Addr, id codegen.WriteID) {
	m.cells[addr] = id
}

// Reset restores every location to the initial value.
func (m *Memory) Reset() {
	m.cells = make(map[mc.Addr]codegen.WriteID)
}
