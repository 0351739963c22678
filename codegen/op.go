// Package codegen emits machine code for concurrent test programs while
// recording an execution witness.
//
// Each operation of a test program knows how to allocate its events,
// chain itself into program order, encode itself through a target backend,
// and resolve observations fed back from an execution. Writes tag the
// value they store with a one-byte write id, so a later read of that
// location reveals which write it observed. The compiler drives emission
// per thread and maps instruction pointers back to operations, so an
// execution environment can report what a read returned and have the
// read-from and coherence relations grow accordingly.
//
// Usage:
//
//	ops := []codegen.Op{
//		amd64.NewWrite(0x10, 0),
//		amd64.NewRead(0x10, 1),
//	}
//	compiler := codegen.NewCompiler(amd64.NewBackend(arch), arch, &ew,
//		codegen.WithThreads(codegen.ExtractThreads(ops)))
//	n, err := compiler.Emit(0, 0x1000, buf)
package codegen

import (
	"errors"

	mc "github.com/icsa-caps/mc2lib/memconsistency"
)

// WriteID tags a write with its provenance. It is narrow enough to be
// carried in an instruction immediate and stored in a single byte of
// memory.
type WriteID uint8

// InstPtr is an instruction address in the emitted code.
type InstPtr uint64

// Epoch identifies one Reset-to-Reset generation of a compiler. The zero
// value never matches a live generation.
type Epoch uint64

const (
	// MaxInstSize is the longest single instruction an operation may
	// emit, in bytes.
	MaxInstSize = 8

	// MaxInstEvents is the largest number of byte-lane events a single
	// instruction can produce, one per WriteID-sized lane.
	MaxInstEvents = MaxInstSize

	// InitWrite is the reserved id of the architecturally initial value.
	InitWrite WriteID = 0

	// MinWrite and MaxWrite bound the ids handed to writes. The top of
	// the range is kept clear so a multi-lane write never wraps.
	MinWrite WriteID = InitWrite + 1
	MaxWrite WriteID = ^WriteID(0) - WriteID(MaxInstEvents-1)

	// MinRead and MaxRead bound the program-order indices handed to
	// reads. They occupy the upper half of the index space, disjoint
	// from write ids.
	MinRead mc.Poi = 1 << 63
	MaxRead mc.Poi = ^mc.Poi(0) - mc.Poi(MaxInstEvents-1)
)

var (
	// ErrExhausted reports that no more write ids or read indices can
	// be allocated in this epoch.
	ErrExhausted = errors.New("write id or read index space exhausted")

	// ErrUnsupported reports that an operation cannot be encoded for
	// the selected target.
	ErrUnsupported = errors.New("operation not supported by target")

	// ErrBufferFull reports that the code buffer cannot hold the next
	// instruction.
	ErrBufferFull = errors.New("code buffer too small")

	// ErrStaleEpoch reports an observation carrying a token from an
	// earlier epoch.
	ErrStaleEpoch = errors.New("stale epoch token")

	// ErrStaleWriteID reports an observed write id that does not
	// resolve in the current epoch.
	ErrStaleWriteID = errors.New("stale write id")
)

// Op is one operation of a test program.
//
// An operation separates static configuration (thread, address) from the
// dynamic state of one emission epoch (allocated events and ids). Reset
// drops the dynamic state; Clone copies only the static configuration.
type Op interface {
	// Reset drops all state recorded for the current epoch.
	Reset()

	// Clone returns an independent operation with the same static
	// configuration and no dynamic state.
	Clone() Op

	// EnableEmit allocates the operation's events and write ids. It
	// returns false if the allocators are exhausted, in which case no
	// code for this operation may be emitted.
	EnableEmit(s *AssemblerState) bool

	// InsertPo chains the operation's events into program order after
	// the given operation. A nil before starts the thread's chain.
	InsertPo(before Op, s *AssemblerState)

	// LastEvent returns the operation's trailing event, or the
	// predecessor's if the operation has none. Operations that order
	// their successor (fences) use next, the successor's first event,
	// to record that constraint.
	LastEvent(next *mc.Event, s *AssemblerState) *mc.Event

	// UpdateFrom resolves an observation made at ip against this
	// operation. part selects the event for operations with several;
	// observed holds one write id per byte lane. It returns false if
	// the operation does not read.
	UpdateFrom(ip InstPtr, part int, addr mc.Addr, observed []WriteID,
		s *AssemblerState) (bool, error)

	// Pid returns the thread the operation belongs to.
	Pid() mc.Pid

	// SetPid moves the operation to another thread.
	SetPid(pid mc.Pid)
}

// MemOp is an operation accessing one memory location.
type MemOp interface {
	Op

	// Addr returns the accessed location.
	Addr() mc.Addr
}

// Backend encodes operations for one target.
type Backend interface {
	// Check reports whether op could be encoded into code, without
	// encoding it. The compiler calls it before the operation
	// allocates any events, so a recoverable placement failure
	// (ErrBufferFull, ErrUnsupported, an unrepresentable address)
	// leaves the witness untouched.
	Check(op Op, code []byte) error

	// Emit encodes op into code, which starts at address start.
	// It returns the number of bytes written, ErrUnsupported if the
	// operation cannot be encoded for this target, or ErrBufferFull
	// if code is too small.
	Emit(op Op, start InstPtr, s *AssemblerState, code []byte) (int, error)
}

// Threads maps each thread to its operation sequence in program order.
type Threads map[mc.Pid][]Op

// ExtractThreads partitions ops by thread, preserving the relative order
// within each thread. Repeated occurrences of the same instance are
// replaced by clones, so every slot holds its own operation. All
// operations are reset on the way in.
func ExtractThreads(ops []Op) Threads {
	threads := make(Threads)
	seen := make(map[Op]bool)
	for _, op := range ops {
		if seen[op] {
			op = op.Clone()
		}
		seen[op] = true
		op.Reset()
		threads[op.Pid()] = append(threads[op.Pid()], op)
	}
	return threads
}

// ThreadsSize returns the total number of operations across all threads.
func ThreadsSize(threads Threads) int {
	n := 0
	for _, ops := range threads {
		n += len(ops)
	}
	return n
}
