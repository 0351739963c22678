package model14_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	mc "github.com/icsa-caps/mc2lib/memconsistency"
	"github.com/icsa-caps/mc2lib/memconsistency/model14"
)

const (
	addrX mc.Addr = 0x10
	addrY mc.Addr = 0x20
)

// storeBuffering builds the two-thread witness where each thread writes
// one location and then reads the other, and both reads observe the
// initial values.
func storeBuffering() (*model14.ExecWitness, [4]mc.Event) {
	ew := &model14.ExecWitness{}
	ix, iy := initialWrite(addrX), initialWrite(addrY)
	wx := write(0, 1, addrX)
	ry := read(0, 2, addrY)
	wy := write(1, 1, addrY)
	rx := read(1, 2, addrX)

	for _, e := range []mc.Event{ix, iy, wx, ry, wy, rx} {
		ew.Events.Insert(e)
	}
	ew.PO.Insert(wx, ry)
	ew.PO.Insert(wy, rx)
	ew.CO.Insert(ix, wx)
	ew.CO.Insert(iy, wy)
	ew.RF.Insert(iy, ry)
	ew.RF.Insert(ix, rx)

	return ew, [4]mc.Event{wx, ry, wy, rx}
}

var _ = Describe("Checker", func() {
	Describe("store buffering", func() {
		It("should accept both reads stale under TSO", func() {
			ew, _ := storeBuffering()
			checker := model14.NewChecker(&model14.ArchTSO{}, ew)

			Expect(checker.ValidExec()).To(Succeed())
		})

		It("should reject both reads stale under SC", func() {
			ew, _ := storeBuffering()
			checker := model14.NewChecker(&model14.ArchSC{}, ew)

			Expect(checker.ValidExec()).To(MatchError(model14.ErrPropagation))
		})

		It("should reject both reads stale under TSO with fences", func() {
			ew, evts := storeBuffering()
			arch := &model14.ArchTSO{}
			arch.MFence.Insert(evts[0], evts[1])
			arch.MFence.Insert(evts[2], evts[3])
			checker := model14.NewChecker(arch, ew)

			Expect(checker.ValidExec()).To(MatchError(model14.ErrPropagation))
		})
	})

	Describe("message passing", func() {
		It("should reject stale data after an observed flag under TSO", func() {
			ew := &model14.ExecWitness{}
			ix, iy := initialWrite(addrX), initialWrite(addrY)
			wData := write(0, 1, addrX)
			wFlag := write(0, 2, addrY)
			rFlag := read(1, 1, addrY)
			rData := read(1, 2, addrX)

			for _, e := range []mc.Event{ix, iy, wData, wFlag, rFlag, rData} {
				ew.Events.Insert(e)
			}
			ew.PO.Insert(wData, wFlag)
			ew.PO.Insert(rFlag, rData)
			ew.CO.Insert(ix, wData)
			ew.CO.Insert(iy, wFlag)
			ew.RF.Insert(wFlag, rFlag)
			ew.RF.Insert(ix, rData)

			checker := model14.NewChecker(&model14.ArchTSO{}, ew)

			Expect(checker.ValidExec()).To(MatchError(model14.ErrObservation))
		})
	})

	Describe("coherence", func() {
		It("should reject a read of an overwritten initial value in its own thread", func() {
			ew := &model14.ExecWitness{}
			ix := initialWrite(addrX)
			wx := write(0, 1, addrX)
			rx := read(0, 2, addrX)

			for _, e := range []mc.Event{ix, wx, rx} {
				ew.Events.Insert(e)
			}
			ew.PO.Insert(wx, rx)
			ew.CO.Insert(ix, wx)
			ew.RF.Insert(ix, rx)

			checker := model14.NewChecker(&model14.ArchTSO{}, ew)

			Expect(checker.ValidExec()).To(MatchError(model14.ErrSCPerLocation))
		})
	})

	Describe("well-formedness", func() {
		It("should reject read-from across locations", func() {
			ew := &model14.ExecWitness{}
			wx := write(0, 1, addrX)
			ry := read(1, 1, addrY)
			ew.Events.Insert(wx)
			ew.Events.Insert(ry)
			ew.RF.Insert(wx, ry)

			checker := model14.NewChecker(&model14.ArchTSO{}, ew)

			Expect(checker.WfRF()).To(MatchError(model14.ErrWfRF))
		})

		It("should reject a read with two sources", func() {
			ew := &model14.ExecWitness{}
			ix := initialWrite(addrX)
			wx := write(0, 1, addrX)
			rx := read(1, 1, addrX)
			for _, e := range []mc.Event{ix, wx, rx} {
				ew.Events.Insert(e)
			}
			ew.RF.Insert(ix, rx)
			ew.RF.Insert(wx, rx)

			checker := model14.NewChecker(&model14.ArchTSO{}, ew)

			Expect(checker.WfRF()).To(MatchError(model14.ErrWfRF))
		})

		It("should reject a read as a read-from source", func() {
			ew := &model14.ExecWitness{}
			r1 := read(0, 1, addrX)
			r2 := read(1, 1, addrX)
			ew.Events.Insert(r1)
			ew.Events.Insert(r2)
			ew.RF.Insert(r1, r2)

			checker := model14.NewChecker(&model14.ArchTSO{}, ew)

			Expect(checker.WfRF()).To(MatchError(model14.ErrWfRF))
		})

		It("should reject unordered writes to the same location", func() {
			ew := &model14.ExecWitness{}
			w1 := write(0, 1, addrX)
			w2 := write(1, 1, addrX)
			ew.Events.Insert(w1)
			ew.Events.Insert(w2)

			checker := model14.NewChecker(&model14.ArchTSO{}, ew)

			Expect(checker.WfCO()).To(MatchError(model14.ErrWfCO))
		})

		It("should reject an initial write with a coherence predecessor", func() {
			ew := &model14.ExecWitness{}
			ix := initialWrite(addrX)
			wx := write(0, 1, addrX)
			ew.Events.Insert(ix)
			ew.Events.Insert(wx)
			ew.CO.Insert(wx, ix)

			checker := model14.NewChecker(&model14.ArchTSO{}, ew)

			Expect(checker.WfCO()).To(MatchError(model14.ErrWfCO))
		})

		It("should reject a coherence cycle", func() {
			ew := &model14.ExecWitness{}
			w1 := write(0, 1, addrX)
			w2 := write(1, 1, addrX)
			ew.Events.Insert(w1)
			ew.Events.Insert(w2)
			ew.CO.Insert(w1, w2)
			ew.CO.Insert(w2, w1)

			checker := model14.NewChecker(&model14.ArchTSO{}, ew)

			Expect(checker.WfCO()).To(MatchError(model14.ErrWfCO))
		})
	})

	It("should accept an empty witness", func() {
		ew := &model14.ExecWitness{}
		checker := model14.NewChecker(&model14.ArchTSO{}, ew)

		Expect(checker.ValidExec()).To(Succeed())
	})
})
