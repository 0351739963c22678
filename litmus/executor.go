package litmus

import (
	"fmt"
	"math/rand"
	"slices"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/icsa-caps/mc2lib/codegen"
	"github.com/icsa-caps/mc2lib/codegen/amd64"
	mc "github.com/icsa-caps/mc2lib/memconsistency"
)

// Observation is what one memory-accessing instruction saw at runtime:
// the value a read returned, or the value a write displaced.
type Observation struct {
	IP       codegen.InstPtr
	Part     int
	Addr     mc.Addr
	Observed []codegen.WriteID
}

// ThreadCode is one thread's emitted machine code and where it lives.
type ThreadCode struct {
	Pid  mc.Pid
	Base codegen.InstPtr
	Code []byte
}

// Result describes one replayed run.
type Result struct {
	Epoch        codegen.Epoch
	Threads      []ThreadCode
	Observations []Observation
}

// Executor emits a test program and replays it under a seeded
// interleaving. Each run is a fresh epoch: the compiler, the witness,
// and the shadow memory restart, so runs are independent and a fixed
// seed reproduces the same interleaving, observations, and witness.
type Executor struct {
	compiler *codegen.Compiler
	threads  codegen.Threads
	mem      *Memory

	codeBase codegen.InstPtr
	stride   codegen.InstPtr

	rng *rand.Rand
	obs []Observation
	err error
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithCodeBase sets the address the first thread's code is emitted at.
func WithCodeBase(base codegen.InstPtr) ExecutorOption {
	return func(x *Executor) {
		x.codeBase = base
	}
}

// WithCodeStride sets the size of each thread's code region. Regions
// are laid out back to back from the code base.
func WithCodeStride(stride codegen.InstPtr) ExecutorOption {
	return func(x *Executor) {
		x.stride = stride
	}
}

// NewExecutor returns an executor replaying threads through compiler.
func NewExecutor(compiler *codegen.Compiler, threads codegen.Threads,
	opts ...ExecutorOption) *Executor {
	x := &Executor{
		compiler: compiler,
		threads:  threads,
		mem:      NewMemory(),
		codeBase: 0x10000,
		stride:   0x1000,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Run emits every thread at its own base address, replays the operation
// streams as discrete events on a serial engine, and feeds every
// observation back through the compiler. Within a thread the replay
// keeps program order; across threads the order follows seeded-random
// virtual timestamps.
func (x *Executor) Run(seed int64) (*Result, error) {
	x.compiler.Reset(x.threads)
	x.mem.Reset()
	x.obs = nil
	x.err = nil
	x.rng = rand.New(rand.NewSource(seed))

	res := &Result{Epoch: x.compiler.Epoch()}
	pids := x.pids()
	for i, pid := range pids {
		base := x.codeBase + codegen.InstPtr(i)*x.stride
		code := make([]byte, x.stride)
		n, err := x.compiler.Emit(pid, base, code)
		if err != nil {
			return nil, fmt.Errorf("litmus: emitting thread %d: %w", pid, err)
		}
		res.Threads = append(res.Threads, ThreadCode{
			Pid:  pid,
			Base: base,
			Code: code[:n],
		})
	}

	engine := sim.NewSerialEngine()
	for _, pid := range pids {
		t := sim.VTimeInSec(0)
		for _, op := range x.threads[pid] {
			t += sim.VTimeInSec(x.rng.Float64() + 0.001)
			engine.Schedule(&replayEvent{
				EventBase: sim.NewEventBase(t, x),
				op:        op,
			})
		}
	}
	if err := engine.Run(); err != nil {
		return nil, fmt.Errorf("litmus: replay: %w", err)
	}
	if x.err != nil {
		return nil, x.err
	}

	for _, o := range x.obs {
		if _, err := x.compiler.UpdateFrom(res.Epoch, o.IP, o.Part,
			o.Addr, o.Observed); err != nil {
			return nil, fmt.Errorf("litmus: observation at 0x%X: %w",
				uint64(o.IP), err)
		}
	}
	res.Observations = x.obs
	return res, nil
}

// Handle implements sim.Handler. It fires when one operation's turn in
// the interleaving comes up.
func (x *Executor) Handle(e sim.Event) error {
	x.replay(e.(*replayEvent).op)
	return nil
}

// replay applies one operation's memory semantics to the shadow memory.
// Operations that do not touch memory replay as no-ops.
func (x *Executor) replay(op codegen.Op) {
	switch op := op.(type) {
	case *amd64.Read:
		x.observe(op, 0, op.Addr(), x.mem.Load(op.Addr()))
	case *amd64.Write:
		displaced := x.mem.Load(op.Addr())
		x.mem.Store(op.Addr(), op.StoredID())
		x.observe(op, 0, op.Addr(), displaced)
	case *amd64.ReadModifyWrite:
		displaced := x.mem.Load(op.Addr())
		x.mem.Store(op.Addr(), op.StoredID())
		x.observe(op, 0, op.Addr(), displaced)
	}
}

func (x *Executor) observe(op codegen.Op, part int, addr mc.Addr,
	id codegen.WriteID) {
	if x.err != nil {
		return
	}
	ip, ok := x.compiler.OpIP(op)
	if !ok {
		x.err = fmt.Errorf("litmus: replaying %T that was never emitted", op)
		return
	}
	x.obs = append(x.obs, Observation{
		IP:       ip,
		Part:     part,
		Addr:     addr,
		Observed: []codegen.WriteID{id},
	})
}

func (x *Executor) pids() []mc.Pid {
	pids := make([]mc.Pid, 0, len(x.threads))
	for pid := range x.threads {
		pids = append(pids, pid)
	}
	slices.Sort(pids)
	return pids
}

// replayEvent replays one operation when it fires.
type replayEvent struct {
	*sim.EventBase
	op codegen.Op
}
