package sets_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/icsa-caps/mc2lib/sets"
)

var _ = Describe("Relation", func() {
	var r sets.Relation[num]

	BeforeEach(func() {
		r = sets.Relation[num]{}
	})

	It("should record edges", func() {
		r.Insert(1, 2)
		r.Insert(1, 3)
		r.Insert(2, 3)

		Expect(r.Size()).To(Equal(3))
		Expect(r.ContainsEdge(num(1), num(2))).To(BeTrue())
		Expect(r.ContainsEdge(num(2), num(1))).To(BeFalse())
		Expect(r.Successors(num(1))).To(Equal([]num{2, 3}))
		Expect(r.Successors(num(9))).To(BeEmpty())
	})

	It("should deduplicate edges", func() {
		r.Insert(1, 2)
		r.Insert(1, 2)

		Expect(r.Size()).To(Equal(1))
	})

	It("should list edges in element order", func() {
		r.Insert(2, 1)
		r.Insert(1, 3)
		r.Insert(1, 2)

		Expect(r.Edges()).To(Equal([]sets.Edge[num]{
			{From: 1, To: 2},
			{From: 1, To: 3},
			{From: 2, To: 1},
		}))
	})

	It("should compute domain and range", func() {
		r.Insert(1, 2)
		r.Insert(2, 3)

		Expect(r.Domain().Elems()).To(Equal([]num{1, 2}))
		Expect(r.Range().Elems()).To(Equal([]num{2, 3}))
	})

	It("should answer queries chained off derived relations", func() {
		r.Insert(1, 2)
		r.Insert(2, 3)

		Expect(r.Inverse().ContainsEdge(num(2), num(1))).To(BeTrue())
		Expect(r.TransitiveClosure().Successors(num(1))).To(Equal([]num{2, 3}))
		Expect(r.Domain().Filter(func(e num) bool { return e > 1 }).Size()).To(Equal(1))
		Expect(r.Filter(func(from, to num) bool { return false }).Empty()).To(BeTrue())
	})

	It("should invert edges", func() {
		r.Insert(1, 2)
		r.Insert(1, 3)

		inv := r.Inverse()

		Expect(inv.ContainsEdge(num(2), num(1))).To(BeTrue())
		Expect(inv.ContainsEdge(num(3), num(1))).To(BeTrue())
		Expect(inv.Size()).To(Equal(2))
	})

	It("should compose relations", func() {
		r.Insert(1, 2)
		r.Insert(1, 3)
		var other sets.Relation[num]
		other.Insert(2, 4)
		other.Insert(3, 4)
		other.Insert(4, 5)

		comp := r.Compose(&other)

		Expect(comp.Edges()).To(Equal([]sets.Edge[num]{
			{From: 1, To: 4},
		}))
	})

	It("should compute the transitive closure", func() {
		r.Insert(1, 2)
		r.Insert(2, 3)
		r.Insert(3, 4)

		tc := r.TransitiveClosure()

		Expect(tc.ContainsEdge(num(1), num(4))).To(BeTrue())
		Expect(tc.ContainsEdge(num(2), num(4))).To(BeTrue())
		Expect(tc.ContainsEdge(num(4), num(1))).To(BeFalse())
		Expect(tc.Size()).To(Equal(6))
	})

	It("should answer reachability over paths", func() {
		r.Insert(1, 2)
		r.Insert(2, 3)

		Expect(r.Reaches(num(1), num(3))).To(BeTrue())
		Expect(r.Reaches(num(3), num(1))).To(BeFalse())
		Expect(r.Reaches(num(1), num(1))).To(BeFalse())
	})

	It("should see reflexivity only on direct self edges", func() {
		r.Insert(1, 2)
		r.Insert(2, 1)

		Expect(r.Irreflexive()).To(BeTrue())

		r.Insert(3, 3)
		Expect(r.Irreflexive()).To(BeFalse())
	})

	It("should detect cycles", func() {
		r.Insert(1, 2)
		r.Insert(2, 3)

		Expect(r.Acyclic()).To(BeTrue())

		r.Insert(3, 1)
		Expect(r.Acyclic()).To(BeFalse())
	})

	It("should treat a self edge as a cycle", func() {
		r.Insert(5, 5)

		Expect(r.Acyclic()).To(BeFalse())
	})

	It("should filter edges into a fresh relation", func() {
		r.Insert(1, 2)
		r.Insert(2, 4)
		r.Insert(3, 4)

		same := r.Filter(func(from, to num) bool { return to-from == 1 })

		Expect(same.Edges()).To(Equal([]sets.Edge[num]{
			{From: 1, To: 2},
			{From: 3, To: 4},
		}))
		Expect(r.Size()).To(Equal(3))
	})

	It("should union edge sets in place", func() {
		r.Insert(1, 2)
		var other sets.Relation[num]
		other.Insert(1, 2)
		other.Insert(5, 6)

		r.Union(&other)

		Expect(r.Size()).To(Equal(2))
		Expect(r.ContainsEdge(num(5), num(6))).To(BeTrue())
	})

	It("should be reusable after Clear", func() {
		r.Insert(1, 2)
		r.Clear()

		Expect(r.Empty()).To(BeTrue())
		Expect(r.Acyclic()).To(BeTrue())
	})
})

var _ = Describe("RelationSeq", func() {
	It("should flatten by left to right composition", func() {
		var ab sets.Relation[num]
		ab.Insert(1, 2)
		var bc sets.Relation[num]
		bc.Insert(2, 3)

		var seq sets.RelationSeq[num]
		seq.Push(ab)
		seq.Push(bc)

		flat := seq.EvalSeq()

		Expect(flat.Edges()).To(Equal([]sets.Edge[num]{
			{From: 1, To: 3},
		}))
	})

	It("should flatten an empty sequence to an empty relation", func() {
		var seq sets.RelationSeq[num]

		flat := seq.EvalSeq()

		Expect(flat.Empty()).To(BeTrue())
		Expect(seq.Irreflexive()).To(BeTrue())
	})

	It("should detect reflexivity through the composition", func() {
		var fwd sets.Relation[num]
		fwd.Insert(1, 2)
		var back sets.Relation[num]
		back.Insert(2, 1)

		var seq sets.RelationSeq[num]
		seq.Push(fwd)
		seq.Push(back)

		Expect(seq.Irreflexive()).To(BeFalse())
	})
})
