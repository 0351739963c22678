package codegen_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/icsa-caps/mc2lib/codegen"
	"github.com/icsa-caps/mc2lib/codegen/amd64"
	"github.com/icsa-caps/mc2lib/memconsistency/model14"
)

var _ = Describe("ExtractThreads", func() {
	It("should partition by thread and keep each thread's order", func() {
		w0 := amd64.NewWrite(addrX, 0)
		r1 := amd64.NewRead(addrX, 1)
		r0 := amd64.NewRead(addrY, 0)
		w1 := amd64.NewWrite(addrY, 1)

		threads := codegen.ExtractThreads([]codegen.Op{w0, r1, r0, w1})

		Expect(threads).To(HaveLen(2))
		Expect(threads[0]).To(Equal([]codegen.Op{w0, r0}))
		Expect(threads[1]).To(Equal([]codegen.Op{r1, w1}))
		Expect(codegen.ThreadsSize(threads)).To(Equal(4))
	})

	It("should clone repeated instances into independent operations", func() {
		w := amd64.NewWrite(addrX, 0)

		threads := codegen.ExtractThreads([]codegen.Op{w, w})

		Expect(threads[0]).To(HaveLen(2))
		Expect(threads[0][0]).To(BeIdenticalTo(w))
		Expect(threads[0][1]).NotTo(BeIdenticalTo(w))

		// Dynamic state must not leak between the two slots.
		ew := model14.ExecWitness{}
		arch := model14.ArchTSO{}
		s := codegen.NewAssemblerState(&ew, &arch)
		first := threads[0][0].(*amd64.Write)
		second := threads[0][1].(*amd64.Write)
		Expect(first.EnableEmit(s)).To(BeTrue())
		Expect(second.StoredID()).To(Equal(codegen.InitWrite))
		Expect(second.EnableEmit(s)).To(BeTrue())
		Expect(second.StoredID()).NotTo(Equal(first.StoredID()))
	})

	It("should reset operations carrying state from an earlier epoch", func() {
		ew := model14.ExecWitness{}
		arch := model14.ArchTSO{}
		s := codegen.NewAssemblerState(&ew, &arch)
		w := amd64.NewWrite(addrX, 0)
		Expect(w.EnableEmit(s)).To(BeTrue())
		Expect(w.StoredID()).NotTo(Equal(codegen.InitWrite))

		codegen.ExtractThreads([]codegen.Op{w})

		Expect(w.StoredID()).To(Equal(codegen.InitWrite))
	})

	It("should keep an empty input empty", func() {
		threads := codegen.ExtractThreads(nil)

		Expect(threads).To(BeEmpty())
		Expect(codegen.ThreadsSize(threads)).To(Equal(0))
	})
})

var _ = Describe("program order within a thread", func() {
	It("should total-order a thread's events in emission order", func() {
		ew := model14.ExecWitness{}
		arch := &model14.ArchTSO{}
		ops := []codegen.Op{
			amd64.NewWrite(addrX, 0),
			amd64.NewWrite(addrY, 0),
			amd64.NewRead(addrX, 0),
			amd64.NewRead(addrY, 0),
		}
		compiler := codegen.NewCompiler(amd64.NewBackend(arch), arch, &ew,
			codegen.WithThreads(codegen.ExtractThreads(ops)))
		_, err := compiler.Emit(0, 0x1000, make([]byte, 64))
		Expect(err).NotTo(HaveOccurred())

		poPlus := ew.PO.TransitiveClosure()
		events := ew.Events.Elems()
		Expect(events).To(HaveLen(4))
		Expect(poPlus.Irreflexive()).To(BeTrue())

		ordered := 0
		for i := range events {
			for j := range events {
				if i != j && poPlus.ContainsEdge(events[i], events[j]) {
					ordered++
				}
			}
		}
		// A strict total order over four events has six pairs.
		Expect(ordered).To(Equal(6))
	})
})
