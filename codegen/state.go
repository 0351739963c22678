package codegen

import (
	"fmt"
	"io"
	"os"

	mc "github.com/icsa-caps/mc2lib/memconsistency"
	"github.com/icsa-caps/mc2lib/memconsistency/model14"
)

// AssemblerState allocates events and write ids for one emission epoch
// and resolves observed ids back to the writes that produced them. It
// mutates the execution witness and architecture model it was built
// around; both are owned by the caller.
type AssemblerState struct {
	ew   *model14.ExecWitness
	arch model14.Architecture

	lastWriteID WriteID
	lastReadID  mc.Poi
	writes      map[WriteID]*mc.Event

	epoch  Epoch
	strict bool
	diag   io.Writer
}

// NewAssemblerState returns a state mutating ew and arch. Both are
// cleared immediately and again on every Reset.
func NewAssemblerState(ew *model14.ExecWitness, arch model14.Architecture) *AssemblerState {
	s := &AssemblerState{
		ew:     ew,
		arch:   arch,
		strict: true,
		diag:   os.Stderr,
	}
	s.Reset()
	return s
}

// Reset starts a new epoch: allocation counters restart, the id
// provenance table is dropped, and the witness and architecture model
// are cleared. Observations carrying an earlier epoch's token no longer
// resolve.
func (s *AssemblerState) Reset() {
	s.lastWriteID = MinWrite - 1
	s.lastReadID = MinRead - 1
	s.writes = make(map[WriteID]*mc.Event)
	s.ew.Clear()
	s.arch.Clear()
	s.epoch++
}

// Exhausted reports whether the write id or read index space is used up.
// Once true, no further operations can be enabled until Reset.
func (s *AssemblerState) Exhausted() bool {
	return s.lastWriteID >= MaxWrite || s.lastReadID >= MaxRead
}

// Epoch returns the token of the current epoch.
func (s *AssemblerState) Epoch() Epoch {
	return s.epoch
}

// Witness returns the execution witness this state grows.
func (s *AssemblerState) Witness() *model14.ExecWitness {
	return s.ew
}

// Arch returns the architecture model this state grows.
func (s *AssemblerState) Arch() model14.Architecture {
	return s.arch
}

// MakeWrite allocates one write event per byte lane of an access of the
// given size, records each lane's id for later resolution, and returns
// the events alongside the ids to encode into the instruction. The
// caller must have checked Exhausted.
func (s *AssemblerState) MakeWrite(pid mc.Pid, typ mc.TypeMask, addr mc.Addr,
	size int) ([]*mc.Event, []WriteID) {
	checkAccessSize(size)
	if s.Exhausted() {
		panic("codegen: allocating write events after exhaustion")
	}
	evts := make([]*mc.Event, 0, size)
	ids := make([]WriteID, 0, size)
	for i := 0; i < size; i++ {
		s.lastWriteID++
		id := s.lastWriteID
		e := mc.Event{
			Type: typ,
			Addr: addr + mc.Addr(i),
			Iiid: mc.Iiid{Pid: pid, Poi: mc.Poi(id)},
		}
		p := s.ew.Events.InsertUnique(e)
		s.writes[id] = p
		evts = append(evts, p)
		ids = append(ids, id)
	}
	return evts, ids
}

// MakeRead allocates one read event per byte lane of an access of the
// given size. The caller must have checked Exhausted.
func (s *AssemblerState) MakeRead(pid mc.Pid, typ mc.TypeMask, addr mc.Addr,
	size int) []*mc.Event {
	checkAccessSize(size)
	if s.Exhausted() {
		panic("codegen: allocating read events after exhaustion")
	}
	evts := make([]*mc.Event, 0, size)
	for i := 0; i < size; i++ {
		s.lastReadID++
		e := mc.Event{
			Type: typ,
			Addr: addr + mc.Addr(i),
			Iiid: mc.Iiid{Pid: pid, Poi: s.lastReadID},
		}
		evts = append(evts, s.ew.Events.InsertUnique(e))
	}
	return evts
}

// GetWrite resolves the observed id of each byte lane to the write event
// that produced it. after holds the reading events, one per lane.
//
// An id resolves if it was allocated this epoch for the same location by
// a different instruction instance than the reader. InitWrite resolves
// to the architecturally initial write of the location, materialized on
// first use. Any other id that fails to resolve left the current epoch's
// id space, typically because memory still holds values of a previous
// epoch: a diagnostic is printed, and in strict mode the resolution
// fails with ErrStaleWriteID instead of assuming the initial value.
func (s *AssemblerState) GetWrite(after []*mc.Event, addr mc.Addr,
	observed []WriteID) ([]*mc.Event, error) {
	if len(after) != len(observed) {
		panic(fmt.Sprintf("codegen: %d reading events for %d observed ids",
			len(after), len(observed)))
	}
	out := make([]*mc.Event, len(observed))
	for i, id := range observed {
		laneAddr := addr + mc.Addr(i)
		if w, ok := s.writes[id]; ok && id != InitWrite &&
			w.Addr == laneAddr && w.Iiid != after[i].Iiid {
			out[i] = w
			continue
		}
		if id != InitWrite {
			fmt.Fprintf(s.diag,
				"codegen: write id 0x%X at 0x%X does not resolve, assuming initial value (was memory reset?)\n",
				id, uint64(laneAddr))
			if s.strict {
				return nil, fmt.Errorf("%w: id 0x%X at 0x%X",
					ErrStaleWriteID, id, uint64(laneAddr))
			}
		}
		out[i] = s.initialWrite(laneAddr)
	}
	return out, nil
}

// initialWrite returns the initial-value write event of addr, creating
// it on first use. All reads of the initial value share one event.
func (s *AssemblerState) initialWrite(addr mc.Addr) *mc.Event {
	return s.ew.Events.Insert(mc.Event{
		Type: mc.TypeWrite,
		Addr: addr,
		Iiid: mc.Iiid{Pid: mc.NoPid, Poi: mc.Poi(addr)},
	})
}

func checkAccessSize(size int) {
	if size < 1 || size > MaxInstSize {
		panic(fmt.Sprintf("codegen: access size %d outside [1, %d]",
			size, MaxInstSize))
	}
}
