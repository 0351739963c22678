package codegen_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/icsa-caps/mc2lib/codegen"
	mc "github.com/icsa-caps/mc2lib/memconsistency"
	"github.com/icsa-caps/mc2lib/memconsistency/model14"
)

var _ = Describe("AssemblerState", func() {
	var (
		ew   model14.ExecWitness
		arch model14.ArchTSO
		s    *codegen.AssemblerState
	)

	BeforeEach(func() {
		ew = model14.ExecWitness{}
		arch = model14.ArchTSO{}
		s = codegen.NewAssemblerState(&ew, &arch)
	})

	Describe("allocation", func() {
		It("should hand out write ids starting at MinWrite", func() {
			evts, ids := s.MakeWrite(0, mc.TypeWrite, 0x10, 1)

			Expect(ids).To(Equal([]codegen.WriteID{codegen.MinWrite}))
			Expect(evts).To(HaveLen(1))
			Expect(evts[0].Type).To(Equal(mc.TypeWrite))
			Expect(evts[0].Addr).To(Equal(mc.Addr(0x10)))
			Expect(evts[0].Iiid).To(Equal(mc.Iiid{Pid: 0, Poi: mc.Poi(codegen.MinWrite)}))
		})

		It("should give every byte lane of a wide write its own id and event", func() {
			evts, ids := s.MakeWrite(0, mc.TypeWrite, 0x10, 4)

			Expect(ids).To(Equal([]codegen.WriteID{1, 2, 3, 4}))
			for i, e := range evts {
				Expect(e.Addr).To(Equal(mc.Addr(0x10 + i)))
			}
		})

		It("should hand out read indices starting at MinRead", func() {
			evts := s.MakeRead(1, mc.TypeRead, 0x20, 2)

			Expect(evts).To(HaveLen(2))
			Expect(evts[0].Iiid.Poi).To(Equal(codegen.MinRead))
			Expect(evts[1].Iiid.Poi).To(Equal(codegen.MinRead + 1))
			Expect(evts[1].Addr).To(Equal(mc.Addr(0x21)))
		})

		It("should record allocated events in the witness", func() {
			s.MakeWrite(0, mc.TypeWrite, 0x10, 1)
			s.MakeRead(0, mc.TypeRead, 0x10, 1)

			Expect(ew.Events.Size()).To(Equal(2))
		})

		It("should panic on an access wider than one instruction", func() {
			Expect(func() {
				s.MakeRead(0, mc.TypeRead, 0x10, codegen.MaxInstSize+1)
			}).To(Panic())
			Expect(func() { s.MakeWrite(0, mc.TypeWrite, 0x10, 0) }).To(Panic())
		})

		It("should exhaust after the last write id", func() {
			for i := codegen.MinWrite; ; i++ {
				Expect(s.Exhausted()).To(BeFalse())
				s.MakeWrite(0, mc.TypeWrite, 0x10+mc.Addr(i), 1)
				if i == codegen.MaxWrite {
					break
				}
			}

			Expect(s.Exhausted()).To(BeTrue())
			Expect(func() { s.MakeWrite(0, mc.TypeWrite, 0x10, 1) }).To(Panic())
			Expect(func() { s.MakeRead(0, mc.TypeRead, 0x10, 1) }).To(Panic())
		})
	})

	Describe("resolution", func() {
		It("should resolve an id to the write that produced it", func() {
			wEvts, ids := s.MakeWrite(0, mc.TypeWrite, 0x10, 1)
			rEvts := s.MakeRead(1, mc.TypeRead, 0x10, 1)

			got, err := s.GetWrite(rEvts, 0x10, ids)

			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(HaveLen(1))
			Expect(got[0]).To(BeIdenticalTo(wEvts[0]))
		})

		It("should materialize one shared initial write per location", func() {
			r1 := s.MakeRead(0, mc.TypeRead, 0x10, 1)
			r2 := s.MakeRead(1, mc.TypeRead, 0x10, 1)

			got1, err := s.GetWrite(r1, 0x10, []codegen.WriteID{codegen.InitWrite})
			Expect(err).NotTo(HaveOccurred())
			got2, err := s.GetWrite(r2, 0x10, []codegen.WriteID{codegen.InitWrite})
			Expect(err).NotTo(HaveOccurred())

			Expect(got1[0]).To(BeIdenticalTo(got2[0]))
			Expect(got1[0].Iiid.Pid).To(Equal(mc.NoPid))
			Expect(got1[0].Addr).To(Equal(mc.Addr(0x10)))
			Expect(got1[0].AllType(mc.TypeWrite)).To(BeTrue())
		})

		It("should fail on an id that was never allocated", func() {
			rEvts := s.MakeRead(0, mc.TypeRead, 0x10, 1)

			_, err := s.GetWrite(rEvts, 0x10, []codegen.WriteID{0x7F})

			Expect(err).To(MatchError(codegen.ErrStaleWriteID))
		})

		It("should fail on an id matching the reading event's own identity", func() {
			wEvts, ids := s.MakeWrite(0, mc.TypeWrite, 0x10, 1)

			_, err := s.GetWrite(wEvts, 0x10, ids)

			Expect(err).To(MatchError(codegen.ErrStaleWriteID))
		})

		It("should fail on an id recorded for another location", func() {
			_, ids := s.MakeWrite(0, mc.TypeWrite, 0x10, 1)
			rEvts := s.MakeRead(1, mc.TypeRead, 0x20, 1)

			_, err := s.GetWrite(rEvts, 0x20, ids)

			Expect(err).To(MatchError(codegen.ErrStaleWriteID))
		})

		It("should panic when lanes and ids disagree", func() {
			rEvts := s.MakeRead(0, mc.TypeRead, 0x10, 1)

			Expect(func() {
				s.GetWrite(rEvts, 0x10, []codegen.WriteID{1, 2})
			}).To(Panic())
		})
	})

	Describe("epochs", func() {
		It("should advance the epoch and drop provenance on Reset", func() {
			_, ids := s.MakeWrite(0, mc.TypeWrite, 0x10, 1)
			before := s.Epoch()

			s.Reset()

			Expect(s.Epoch()).NotTo(Equal(before))
			Expect(ew.Events.Empty()).To(BeTrue())

			rEvts := s.MakeRead(0, mc.TypeRead, 0x10, 1)
			_, err := s.GetWrite(rEvts, 0x10, ids)
			Expect(err).To(MatchError(codegen.ErrStaleWriteID))
		})

		It("should clear the architecture model on Reset", func() {
			arch.MFence.Insert(
				mc.Event{Type: mc.TypeWrite, Addr: 1, Iiid: mc.Iiid{Pid: 0, Poi: 1}},
				mc.Event{Type: mc.TypeRead, Addr: 1, Iiid: mc.Iiid{Pid: 0, Poi: codegen.MinRead}},
			)

			s.Reset()

			Expect(arch.MFence.Empty()).To(BeTrue())
		})
	})
})
