// Package sets provides ordered deduplicating sets and binary relations.
//
// Sets intern their elements: Insert returns a pointer that stays valid for
// the lifetime of the set, so callers can hold references to elements while
// the set keeps growing. Iteration follows the element ordering given by
// Less, with ties resolved by insertion order, which keeps derived relations
// and diagnostics deterministic. Read-only methods take value receivers, so
// queries chain directly off derived sets and relations.
package sets

import (
	"fmt"
	"slices"
)

// Elem constrains set elements to comparable values with a strict weak
// ordering. Equality is full value equality; Less only fixes iteration
// order and may compare a subset of the value.
type Elem[E any] interface {
	comparable
	Less(E) bool
}

// upperBound returns the first index in order whose element is greater
// than e, so inserting at that index keeps order sorted and stable.
func upperBound[E Elem[E]](order []E, e E) int {
	lo, hi := 0, len(order)
	for lo < hi {
		mid := (lo + hi) / 2
		if e.Less(order[mid]) {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo
}

// Set is a deduplicating collection of values.
// The zero value is an empty set ready for use.
type Set[E Elem[E]] struct {
	elems map[E]*E
	order []E
}

// Insert adds e to the set and returns a stable pointer to the stored
// element. If e is already present, the existing element is returned.
func (s *Set[E]) Insert(e E) *E {
	if p, ok := s.elems[e]; ok {
		return p
	}
	if s.elems == nil {
		s.elems = make(map[E]*E)
	}
	p := new(E)
	*p = e
	s.elems[e] = p
	s.order = slices.Insert(s.order, upperBound(s.order, e), e)
	return p
}

// InsertUnique is Insert for elements that must not exist yet.
// It panics if e is already present.
func (s *Set[E]) InsertUnique(e E) *E {
	if s.Contains(e) {
		panic(fmt.Sprintf("sets: duplicate insert of %v", e))
	}
	return s.Insert(e)
}

// Contains reports whether e is in the set.
func (s Set[E]) Contains(e E) bool {
	_, ok := s.elems[e]
	return ok
}

// Size returns the number of elements.
func (s Set[E]) Size() int {
	return len(s.order)
}

// Empty reports whether the set has no elements.
func (s Set[E]) Empty() bool {
	return len(s.order) == 0
}

// Elems returns the elements in iteration order.
func (s Set[E]) Elems() []E {
	return slices.Clone(s.order)
}

// Union adds every element of other to s.
func (s *Set[E]) Union(other *Set[E]) {
	for _, e := range other.order {
		s.Insert(e)
	}
}

// SubsetEq reports whether every element of s is in other.
func (s Set[E]) SubsetEq(other *Set[E]) bool {
	for _, e := range s.order {
		if !other.Contains(e) {
			return false
		}
	}
	return true
}

// Filter returns a new set with the elements for which pred holds.
func (s Set[E]) Filter(pred func(E) bool) Set[E] {
	var out Set[E]
	for _, e := range s.order {
		if pred(e) {
			out.Insert(e)
		}
	}
	return out
}

// Clear removes all elements.
func (s *Set[E]) Clear() {
	s.elems = nil
	s.order = nil
}
