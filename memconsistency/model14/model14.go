// Package model14 implements an axiomatic memory consistency framework.
//
// An execution witness collects the events of one program run together with
// the program order, coherence order, and read-from relations. An
// architecture model derives the orderings a target guarantees (preserved
// program order, fence orderings, propagation), and a checker decides
// whether the witness satisfies the four axioms of the framework:
// sc-per-location, no-thin-air, observation, and propagation.
//
// Program order and coherence order may be stored as successor chains;
// derived relations close them transitively where the axioms need it.
package model14

import (
	mc "github.com/icsa-caps/mc2lib/memconsistency"
)

// ExecWitness is the recorded execution: its events and the base relations
// over them. FR and the other derived relations are computed on demand.
type ExecWitness struct {
	Events mc.EventSet
	PO     mc.EventRel
	CO     mc.EventRel
	RF     mc.EventRel
}

// Clear empties the witness for reuse.
func (ew *ExecWitness) Clear() {
	ew.Events.Clear()
	ew.PO.Clear()
	ew.CO.Clear()
	ew.RF.Clear()
}

// FR returns the from-read relation: a read is before every write that
// coherence-follows the write it read from.
func (ew *ExecWitness) FR() mc.EventRel {
	rfInv := ew.RF.Inverse()
	coPlus := ew.CO.TransitiveClosure()
	return rfInv.Compose(&coPlus)
}

// COM returns the communication relation co | rf | fr.
func (ew *ExecWitness) COM() mc.EventRel {
	var out mc.EventRel
	out.Union(&ew.CO)
	out.Union(&ew.RF)
	fr := ew.FR()
	out.Union(&fr)
	return out
}

// POLoc returns program order restricted to same-address event pairs.
func (ew *ExecWitness) POLoc() mc.EventRel {
	poPlus := ew.PO.TransitiveClosure()
	return poPlus.Filter(func(e1, e2 mc.Event) bool {
		return e1.Addr == e2.Addr
	})
}

// RFE returns the external part of read-from: pairs on different threads.
func (ew *ExecWitness) RFE() mc.EventRel {
	return ew.RF.Filter(func(e1, e2 mc.Event) bool {
		return e1.Iiid.Pid != e2.Iiid.Pid
	})
}

// RFI returns the internal part of read-from: pairs on the same thread.
func (ew *ExecWitness) RFI() mc.EventRel {
	return ew.RF.Filter(func(e1, e2 mc.Event) bool {
		return e1.Iiid.Pid == e2.Iiid.Pid
	})
}

// FRE returns the external part of from-read.
func (ew *ExecWitness) FRE() mc.EventRel {
	fr := ew.FR()
	return fr.Filter(func(e1, e2 mc.Event) bool {
		return e1.Iiid.Pid != e2.Iiid.Pid
	})
}

// FRI returns the internal part of from-read.
func (ew *ExecWitness) FRI() mc.EventRel {
	fr := ew.FR()
	return fr.Filter(func(e1, e2 mc.Event) bool {
		return e1.Iiid.Pid == e2.Iiid.Pid
	})
}

// Architecture derives the orderings a target guarantees from a witness.
// Models that accumulate state while code is generated (fence placements)
// reset it in Clear.
type Architecture interface {
	Clear()

	// PPO returns the preserved program order.
	PPO(ew *ExecWitness) mc.EventRel

	// Fences returns the orderings induced by fence instructions.
	Fences(ew *ExecWitness) mc.EventRel

	// Prop returns the propagation order the target enforces.
	Prop(ew *ExecWitness) mc.EventRel
}

// ArchSC models sequential consistency: all of program order is preserved
// and propagated.
type ArchSC struct{}

// Clear implements Architecture. ArchSC carries no state.
func (a *ArchSC) Clear() {}

// PPO implements Architecture.
func (a *ArchSC) PPO(ew *ExecWitness) mc.EventRel {
	return ew.PO.TransitiveClosure()
}

// Fences implements Architecture.
func (a *ArchSC) Fences(ew *ExecWitness) mc.EventRel {
	return mc.EventRel{}
}

// Prop implements Architecture.
func (a *ArchSC) Prop(ew *ExecWitness) mc.EventRel {
	out := a.PPO(ew)
	out.Union(&ew.RF)
	fr := ew.FR()
	out.Union(&fr)
	return out
}

// ArchTSO models total store order. Write-to-read pairs leave preserved
// program order; mfence placements restore them. Code generation records
// each fence as an edge from the last event before it to the first event
// after it in MFence.
type ArchTSO struct {
	MFence mc.EventRel
}

// Clear implements Architecture. It drops recorded fence placements.
func (a *ArchTSO) Clear() {
	a.MFence.Clear()
}

// PPO implements Architecture.
func (a *ArchTSO) PPO(ew *ExecWitness) mc.EventRel {
	poPlus := ew.PO.TransitiveClosure()
	return poPlus.Filter(func(e1, e2 mc.Event) bool {
		return !e1.AllType(mc.TypeWrite) || !e2.AllType(mc.TypeRead)
	})
}

// Fences implements Architecture. The recorded mfence edges are closed
// over program order on both sides, so a fence orders everything before
// it with everything after it.
func (a *ArchTSO) Fences(ew *ExecWitness) mc.EventRel {
	var out mc.EventRel
	if a.MFence.Empty() {
		return out
	}
	poPlus := ew.PO.TransitiveClosure()
	out.Union(&a.MFence)
	pre := poPlus.Compose(&a.MFence)
	out.Union(&pre)
	post := a.MFence.Compose(&poPlus)
	out.Union(&post)
	span := pre.Compose(&poPlus)
	out.Union(&span)
	return out
}

// Prop implements Architecture.
func (a *ArchTSO) Prop(ew *ExecWitness) mc.EventRel {
	out := a.PPO(ew)
	fences := a.Fences(ew)
	out.Union(&fences)
	rfe := ew.RFE()
	out.Union(&rfe)
	fr := ew.FR()
	out.Union(&fr)
	return out
}
