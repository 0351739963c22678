package amd64

import (
	"fmt"
	"math/rand"

	"github.com/icsa-caps/mc2lib/codegen"
	mc "github.com/icsa-caps/mc2lib/memconsistency"
)

// OpWeights sets the relative frequency of each operation kind in
// randomly generated sequences.
type OpWeights struct {
	Read            int `json:"read"`
	Write           int `json:"write"`
	ReadModifyWrite int `json:"read_modify_write"`
	Fence           int `json:"fence"`
	CacheFlush      int `json:"cache_flush"`
	Delay           int `json:"delay"`
}

// DefaultOpWeights favors plain reads and writes, with occasional
// atomics, fences, and perturbation.
func DefaultOpWeights() OpWeights {
	return OpWeights{
		Read:            40,
		Write:           40,
		ReadModifyWrite: 10,
		Fence:           5,
		CacheFlush:      2,
		Delay:           3,
	}
}

func (w OpWeights) total() int {
	return w.Read + w.Write + w.ReadModifyWrite + w.Fence + w.CacheFlush + w.Delay
}

const maxDelaySlots = 4

// RandomFactory draws random operations over a window of test locations.
// The same source state reproduces the same sequence.
type RandomFactory struct {
	minAddr mc.Addr
	maxAddr mc.Addr
	weights OpWeights
}

// NewRandomFactory returns a factory drawing addresses from the
// inclusive window [minAddr, maxAddr]. At least one weight must be
// positive.
func NewRandomFactory(minAddr, maxAddr mc.Addr, weights OpWeights) *RandomFactory {
	if maxAddr < minAddr {
		panic(fmt.Sprintf("amd64: address window [0x%X, 0x%X] is empty",
			uint64(minAddr), uint64(maxAddr)))
	}
	if weights.total() <= 0 {
		panic("amd64: no positive operation weights")
	}
	return &RandomFactory{
		minAddr: minAddr,
		maxAddr: maxAddr,
		weights: weights,
	}
}

// MakeOp draws one operation for thread pid.
func (f *RandomFactory) MakeOp(rng *rand.Rand, pid mc.Pid) codegen.Op {
	addr := f.minAddr + mc.Addr(rng.Int63n(int64(f.maxAddr-f.minAddr+1)))
	k := rng.Intn(f.weights.total())
	if k < f.weights.Read {
		return NewRead(addr, pid)
	}
	k -= f.weights.Read
	if k < f.weights.Write {
		return NewWrite(addr, pid)
	}
	k -= f.weights.Write
	if k < f.weights.ReadModifyWrite {
		return NewReadModifyWrite(addr, pid)
	}
	k -= f.weights.ReadModifyWrite
	if k < f.weights.Fence {
		return NewFence(pid)
	}
	k -= f.weights.Fence
	if k < f.weights.CacheFlush {
		return NewCacheFlush(addr, pid)
	}
	return NewDelay(rng.Intn(maxDelaySlots)+1, pid)
}

// MakeSequence draws n operations for each listed thread.
func (f *RandomFactory) MakeSequence(rng *rand.Rand, pids []mc.Pid, n int) []codegen.Op {
	out := make([]codegen.Op, 0, len(pids)*n)
	for _, pid := range pids {
		for i := 0; i < n; i++ {
			out = append(out, f.MakeOp(rng, pid))
		}
	}
	return out
}
