package sets

import "slices"

// Edge is a single directed pair of a relation.
type Edge[E any] struct {
	From E
	To   E
}

// Relation is a binary relation over E, stored as adjacency sets.
// The zero value is an empty relation ready for use.
type Relation[E Elem[E]] struct {
	adj   map[E]*Set[E]
	order []E
}

// Insert adds the edge (from, to).
func (r *Relation[E]) Insert(from, to E) {
	succ, ok := r.adj[from]
	if !ok {
		if r.adj == nil {
			r.adj = make(map[E]*Set[E])
		}
		succ = &Set[E]{}
		r.adj[from] = succ
		r.order = slices.Insert(r.order, upperBound(r.order, from), from)
	}
	succ.Insert(to)
}

// ContainsEdge reports whether the edge (from, to) is in the relation.
func (r Relation[E]) ContainsEdge(from, to E) bool {
	succ, ok := r.adj[from]
	return ok && succ.Contains(to)
}

// Successors returns the elements directly reachable from e.
func (r Relation[E]) Successors(e E) []E {
	succ, ok := r.adj[e]
	if !ok {
		return nil
	}
	return succ.Elems()
}

// Domain returns the set of elements with at least one outgoing edge.
func (r Relation[E]) Domain() Set[E] {
	var out Set[E]
	for _, from := range r.order {
		out.Insert(from)
	}
	return out
}

// Range returns the set of elements with at least one incoming edge.
func (r Relation[E]) Range() Set[E] {
	var out Set[E]
	for _, from := range r.order {
		for _, to := range r.adj[from].Elems() {
			out.Insert(to)
		}
	}
	return out
}

// Size returns the number of edges.
func (r Relation[E]) Size() int {
	n := 0
	for _, succ := range r.adj {
		n += succ.Size()
	}
	return n
}

// Empty reports whether the relation has no edges.
func (r Relation[E]) Empty() bool {
	return len(r.adj) == 0
}

// Edges returns all edges, ordered by domain element and then by
// successor element.
func (r Relation[E]) Edges() []Edge[E] {
	out := make([]Edge[E], 0, r.Size())
	for _, from := range r.order {
		for _, to := range r.adj[from].Elems() {
			out = append(out, Edge[E]{From: from, To: to})
		}
	}
	return out
}

// Union adds every edge of other to r.
func (r *Relation[E]) Union(other *Relation[E]) {
	for _, e := range other.Edges() {
		r.Insert(e.From, e.To)
	}
}

// Filter returns a new relation with the edges for which pred holds.
func (r Relation[E]) Filter(pred func(from, to E) bool) Relation[E] {
	var out Relation[E]
	for _, e := range r.Edges() {
		if pred(e.From, e.To) {
			out.Insert(e.From, e.To)
		}
	}
	return out
}

// Inverse returns the relation with every edge reversed.
func (r Relation[E]) Inverse() Relation[E] {
	var out Relation[E]
	for _, e := range r.Edges() {
		out.Insert(e.To, e.From)
	}
	return out
}

// Compose returns the relation r;other, relating a to c whenever
// (a, b) is in r and (b, c) is in other.
func (r Relation[E]) Compose(other *Relation[E]) Relation[E] {
	var out Relation[E]
	for _, from := range r.order {
		for _, mid := range r.adj[from].Elems() {
			for _, to := range other.Successors(mid) {
				out.Insert(from, to)
			}
		}
	}
	return out
}

// TransitiveClosure returns the smallest transitive relation containing r.
func (r Relation[E]) TransitiveClosure() Relation[E] {
	var out Relation[E]
	for _, from := range r.order {
		for _, to := range r.reachable(from) {
			out.Insert(from, to)
		}
	}
	return out
}

// Reaches reports whether to is reachable from from over a path of at
// least one edge.
func (r Relation[E]) Reaches(from, to E) bool {
	for _, e := range r.reachable(from) {
		if e == to {
			return true
		}
	}
	return false
}

// reachable returns every element reachable from start over at least one
// edge, in deterministic visit order.
func (r Relation[E]) reachable(start E) []E {
	var visited Set[E]
	var out []E
	stack := r.Successors(start)
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited.Contains(e) {
			continue
		}
		visited.Insert(e)
		out = append(out, e)
		stack = append(stack, r.Successors(e)...)
	}
	return out
}

// Irreflexive reports whether no element is directly related to itself.
func (r Relation[E]) Irreflexive() bool {
	for _, from := range r.order {
		if r.adj[from].Contains(from) {
			return false
		}
	}
	return true
}

// Acyclic reports whether the relation contains no cycle.
func (r Relation[E]) Acyclic() bool {
	const (
		unseen = iota
		active
		done
	)
	state := make(map[E]int)
	type frame struct {
		e    E
		next []E
	}
	for _, root := range r.order {
		if state[root] != unseen {
			continue
		}
		stack := []frame{{e: root, next: r.Successors(root)}}
		state[root] = active
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if len(top.next) == 0 {
				state[top.e] = done
				stack = stack[:len(stack)-1]
				continue
			}
			e := top.next[0]
			top.next = top.next[1:]
			switch state[e] {
			case active:
				return false
			case unseen:
				state[e] = active
				stack = append(stack, frame{e: e, next: r.Successors(e)})
			}
		}
	}
	return true
}

// Clear removes all edges.
func (r *Relation[E]) Clear() {
	r.adj = nil
	r.order = nil
}

// RelationSeq is an ordered sequence of relations, evaluated by
// composing them left to right.
type RelationSeq[E Elem[E]] struct {
	rels []Relation[E]
}

// Push appends rel to the sequence.
func (rs *RelationSeq[E]) Push(rel Relation[E]) {
	rs.rels = append(rs.rels, rel)
}

// Size returns the number of relations in the sequence.
func (rs RelationSeq[E]) Size() int {
	return len(rs.rels)
}

// Empty reports whether the sequence has no relations.
func (rs RelationSeq[E]) Empty() bool {
	return len(rs.rels) == 0
}

// EvalSeq flattens the sequence into a single relation by composition.
// An empty sequence flattens to an empty relation.
func (rs RelationSeq[E]) EvalSeq() Relation[E] {
	var out Relation[E]
	if len(rs.rels) == 0 {
		return out
	}
	out.Union(&rs.rels[0])
	for i := 1; i < len(rs.rels); i++ {
		out = out.Compose(&rs.rels[i])
	}
	return out
}

// Irreflexive reports whether the flattened sequence relates no element
// to itself.
func (rs RelationSeq[E]) Irreflexive() bool {
	flat := rs.EvalSeq()
	return flat.Irreflexive()
}

// Clear removes all relations from the sequence.
func (rs *RelationSeq[E]) Clear() {
	rs.rels = nil
}
