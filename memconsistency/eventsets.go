// Package memconsistency provides the event model for execution witnesses.
//
// An execution of a concurrent program is described as a set of events,
// each identified by the instruction instance that produced it, together
// with relations over those events (program order, read-from, coherence).
// This package defines the identifier and event value types and the set
// and relation instantiations the rest of the library builds on.
package memconsistency

import (
	"fmt"
	"strings"

	"github.com/icsa-caps/mc2lib/sets"
)

// Pid identifies a thread of the test program. NoPid marks events that no
// thread issued, such as architecturally initial writes.
type Pid int32

// NoPid is the thread id of events without an issuing thread.
const NoPid Pid = -1

// Poi is a program-order index within one thread.
type Poi uint64

// Addr is a memory location.
type Addr uint64

// Iiid identifies one instruction instance: the issuing thread and the
// program-order index within it.
type Iiid struct {
	Pid Pid
	Poi Poi
}

// Next returns the identifier of the following instance in the same thread.
func (i Iiid) Next() Iiid {
	return Iiid{Pid: i.Pid, Poi: i.Poi + 1}
}

// Prev returns the identifier of the preceding instance in the same thread.
func (i Iiid) Prev() Iiid {
	return Iiid{Pid: i.Pid, Poi: i.Poi - 1}
}

// Less orders identifiers by thread and then by program-order index.
func (i Iiid) Less(o Iiid) bool {
	if i.Pid != o.Pid {
		return i.Pid < o.Pid
	}
	return i.Poi < o.Poi
}

func (i Iiid) String() string {
	return fmt.Sprintf("P%02d: %016x", i.Pid, uint64(i.Poi))
}

// TypeMask classifies an event as a combination of type bits.
type TypeMask uint32

const (
	TypeNone    TypeMask = 0x00
	TypeRead    TypeMask = 0x01
	TypeWrite   TypeMask = 0x02
	TypeAcquire TypeMask = 0x04
	TypeRelease TypeMask = 0x08

	// TypeMemoryOp matches any event that touches memory.
	TypeMemoryOp = TypeRead | TypeWrite | TypeAcquire | TypeRelease

	TypeRegInAddr TypeMask = 0x10
	TypeRegInData TypeMask = 0x20
	TypeRegOut    TypeMask = 0x40
	TypeBranch    TypeMask = 0x80

	// TypeNext is the first bit available to extensions.
	TypeNext TypeMask = 0x100
)

var typeMaskNames = []struct {
	bit  TypeMask
	name string
}{
	{TypeRead, "Read"},
	{TypeWrite, "Write"},
	{TypeAcquire, "Acquire"},
	{TypeRelease, "Release"},
	{TypeRegInAddr, "RegInAddr"},
	{TypeRegInData, "RegInData"},
	{TypeRegOut, "RegOut"},
	{TypeBranch, "Branch"},
}

func (m TypeMask) String() string {
	if m == TypeNone {
		return "None"
	}
	var parts []string
	for _, tn := range typeMaskNames {
		if m&tn.bit != 0 {
			parts = append(parts, tn.name)
			m &^= tn.bit
		}
	}
	if m != 0 {
		parts = append(parts, fmt.Sprintf("0x%X", uint32(m)))
	}
	return strings.Join(parts, "|")
}

// Event is one observable step of an execution: a typed access at an
// address, issued by an instruction instance.
type Event struct {
	Type TypeMask
	Addr Addr
	Iiid Iiid
}

// AllType reports whether the event carries every bit of all.
// The query mask must not be empty.
func (e Event) AllType(all TypeMask) bool {
	if all == TypeNone {
		panic("memconsistency: empty type query")
	}
	return e.Type&all == all
}

// AnyType reports whether the event carries at least one bit of mask.
// The query mask must not be empty.
func (e Event) AnyType(mask TypeMask) bool {
	if mask == TypeNone {
		panic("memconsistency: empty type query")
	}
	return e.Type&mask != 0
}

// Less orders events by their instruction instance. Events of the same
// instance compare equal here; full identity is value equality.
func (e Event) Less(o Event) bool {
	return e.Iiid.Less(o.Iiid)
}

func (e Event) String() string {
	return fmt.Sprintf("[%s] %s @ %x", e.Iiid, e.Type, uint64(e.Addr))
}

// EventSet is a deduplicating set of events.
type EventSet = sets.Set[Event]

// EventRel is a binary relation over events.
type EventRel = sets.Relation[Event]

// EventRelSeq is a sequence of event relations evaluated by composition.
type EventRelSeq = sets.RelationSeq[Event]
