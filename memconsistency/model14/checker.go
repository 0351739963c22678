package model14

import (
	"errors"
	"fmt"
	"slices"

	mc "github.com/icsa-caps/mc2lib/memconsistency"
)

var (
	// ErrWfRF reports a malformed read-from relation.
	ErrWfRF = errors.New("read-from is not well formed")

	// ErrWfCO reports a malformed coherence order.
	ErrWfCO = errors.New("coherence order is not well formed")

	// ErrSCPerLocation reports a cycle in po-loc | com.
	ErrSCPerLocation = errors.New("sc per location violated")

	// ErrNoThinAir reports a cycle in happens-before.
	ErrNoThinAir = errors.New("no-thin-air violated")

	// ErrObservation reports a stale read that propagation forbids.
	ErrObservation = errors.New("observation violated")

	// ErrPropagation reports a cycle in co | prop.
	ErrPropagation = errors.New("propagation violated")
)

// Checker decides whether an execution witness satisfies an architecture's
// consistency axioms.
type Checker struct {
	arch Architecture
	ew   *ExecWitness
}

// NewChecker returns a checker for the given architecture and witness.
func NewChecker(arch Architecture, ew *ExecWitness) *Checker {
	return &Checker{arch: arch, ew: ew}
}

// WfRF checks that read-from is well formed: writes feed reads of the same
// location, and no read has more than one source.
func (c *Checker) WfRF() error {
	var sourced mc.EventSet
	for _, edge := range c.ew.RF.Edges() {
		w, r := edge.From, edge.To
		if !w.AllType(mc.TypeWrite) {
			return fmt.Errorf("%w: %s is not a write", ErrWfRF, w)
		}
		if !r.AllType(mc.TypeRead) {
			return fmt.Errorf("%w: %s is not a read", ErrWfRF, r)
		}
		if w.Addr != r.Addr {
			return fmt.Errorf("%w: %s feeds %s across locations", ErrWfRF, w, r)
		}
		if sourced.Contains(r) {
			return fmt.Errorf("%w: %s reads from multiple writes", ErrWfRF, r)
		}
		sourced.Insert(r)
	}
	return nil
}

// WfCO checks that coherence order is well formed: it relates writes to
// the same location, is acyclic, keeps initial writes first, and totally
// orders the writes of each location.
func (c *Checker) WfCO() error {
	for _, edge := range c.ew.CO.Edges() {
		w1, w2 := edge.From, edge.To
		if !w1.AllType(mc.TypeWrite) || !w2.AllType(mc.TypeWrite) {
			return fmt.Errorf("%w: %s -> %s relates non-writes", ErrWfCO, w1, w2)
		}
		if w1.Addr != w2.Addr {
			return fmt.Errorf("%w: %s -> %s crosses locations", ErrWfCO, w1, w2)
		}
	}

	coPlus := c.ew.CO.TransitiveClosure()
	if !coPlus.Irreflexive() {
		return fmt.Errorf("%w: coherence cycle", ErrWfCO)
	}
	for _, edge := range coPlus.Edges() {
		if edge.To.Iiid.Pid == mc.NoPid {
			return fmt.Errorf("%w: initial write %s has a predecessor", ErrWfCO, edge.To)
		}
	}

	byAddr := make(map[mc.Addr][]mc.Event)
	for _, e := range c.ew.Events.Elems() {
		if e.AllType(mc.TypeWrite) {
			byAddr[e.Addr] = append(byAddr[e.Addr], e)
		}
	}
	addrs := make([]mc.Addr, 0, len(byAddr))
	for addr := range byAddr {
		addrs = append(addrs, addr)
	}
	slices.Sort(addrs)
	for _, addr := range addrs {
		writes := byAddr[addr]
		for i := 0; i < len(writes); i++ {
			for j := i + 1; j < len(writes); j++ {
				if !coPlus.ContainsEdge(writes[i], writes[j]) &&
					!coPlus.ContainsEdge(writes[j], writes[i]) {
					return fmt.Errorf("%w: %s and %s are unordered",
						ErrWfCO, writes[i], writes[j])
				}
			}
		}
	}
	return nil
}

// WellFormed checks both base relations.
func (c *Checker) WellFormed() error {
	if err := c.WfRF(); err != nil {
		return err
	}
	return c.WfCO()
}

// SCPerLocation checks acyclic(po-loc | com).
func (c *Checker) SCPerLocation() error {
	rel := c.ew.POLoc()
	com := c.ew.COM()
	rel.Union(&com)
	if !rel.Acyclic() {
		return ErrSCPerLocation
	}
	return nil
}

// NoThinAir checks acyclic(hb), with hb = ppo | fences | rfe.
func (c *Checker) NoThinAir() error {
	hb := c.hb()
	if !hb.Acyclic() {
		return ErrNoThinAir
	}
	return nil
}

// Observation checks irreflexive(fre; prop; hb*): no read observes a
// write that propagation already ordered behind it.
func (c *Checker) Observation() error {
	fre := c.ew.FRE()
	if fre.Empty() {
		return nil
	}
	prop := c.arch.Prop(c.ew)
	freProp := fre.Compose(&prop)
	if freProp.Empty() {
		return nil
	}
	hb := c.hb()
	hbPlus := hb.TransitiveClosure()
	for _, edge := range freProp.Edges() {
		if edge.From == edge.To || hbPlus.ContainsEdge(edge.To, edge.From) {
			return ErrObservation
		}
	}
	return nil
}

// Propagation checks acyclic(co | prop).
func (c *Checker) Propagation() error {
	var rel mc.EventRel
	rel.Union(&c.ew.CO)
	prop := c.arch.Prop(c.ew)
	rel.Union(&prop)
	if !rel.Acyclic() {
		return ErrPropagation
	}
	return nil
}

// ValidExec checks well-formedness and all four axioms, returning the
// first violation.
func (c *Checker) ValidExec() error {
	if err := c.WellFormed(); err != nil {
		return err
	}
	if err := c.SCPerLocation(); err != nil {
		return err
	}
	if err := c.NoThinAir(); err != nil {
		return err
	}
	if err := c.Observation(); err != nil {
		return err
	}
	return c.Propagation()
}

func (c *Checker) hb() mc.EventRel {
	out := c.arch.PPO(c.ew)
	fences := c.arch.Fences(c.ew)
	out.Union(&fences)
	rfe := c.ew.RFE()
	out.Union(&rfe)
	return out
}
