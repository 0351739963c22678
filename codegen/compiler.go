package codegen

import (
	"fmt"
	"io"

	"github.com/google/btree"

	mc "github.com/icsa-caps/mc2lib/memconsistency"
	"github.com/icsa-caps/mc2lib/memconsistency/model14"
)

// ipRange records where one operation's code was emitted, as the
// half-open address range [start, end).
type ipRange struct {
	start InstPtr
	end   InstPtr
	op    Op
}

// Compiler drives per-thread emission and keeps the mapping between
// emitted instruction addresses and operations, so observations reported
// by an execution can be routed back to the operation that made them.
type Compiler struct {
	backend Backend
	state   *AssemblerState
	threads Threads

	index *btree.BTreeG[ipRange]
	opIP  map[Op]ipRange
}

// CompilerOption configures a Compiler.
type CompilerOption func(*Compiler)

// WithThreads sets the operation sequences to emit.
func WithThreads(threads Threads) CompilerOption {
	return func(c *Compiler) {
		c.threads = threads
	}
}

// WithStrictProvenance selects whether an observed id that fails to
// resolve is an error or only a diagnostic. The default is strict.
func WithStrictProvenance(strict bool) CompilerOption {
	return func(c *Compiler) {
		c.state.strict = strict
	}
}

// WithDiagnostics redirects diagnostic warnings. The default is stderr.
func WithDiagnostics(w io.Writer) CompilerOption {
	return func(c *Compiler) {
		c.state.diag = w
	}
}

// NewCompiler returns a compiler emitting through backend and recording
// into ew and arch. The witness and architecture model are cleared
// immediately; the first epoch starts now.
func NewCompiler(backend Backend, arch model14.Architecture,
	ew *model14.ExecWitness, opts ...CompilerOption) *Compiler {
	c := &Compiler{
		backend: backend,
		state:   NewAssemblerState(ew, arch),
		index: btree.NewG(2, func(a, b ipRange) bool {
			return a.start < b.start
		}),
		opIP: make(map[Op]ipRange),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Reset begins a new epoch over the given threads. All allocation state,
// the witness, the architecture model, and the address index restart
// from scratch, and the previous epoch's token goes stale.
func (c *Compiler) Reset(threads Threads) {
	c.threads = threads
	c.state.Reset()
	c.index.Clear(false)
	c.opIP = make(map[Op]ipRange)
}

// Epoch returns the token of the current epoch. Observations must carry
// it back through UpdateFrom.
func (c *Compiler) Epoch() Epoch {
	return c.state.Epoch()
}

// EmitOp emits one operation at start, chained in program order after
// before (nil for the first operation of a thread). It returns the
// number of bytes written. ErrExhausted means the id space is used up
// and emission of this thread must stop. Placement is checked before
// the operation allocates anything, so a failed operation leaves no
// events or program order behind and may be retried after Reset.
func (c *Compiler) EmitOp(op Op, start InstPtr, code []byte, before Op) (int, error) {
	if err := c.backend.Check(op, code); err != nil {
		return 0, err
	}
	if !op.EnableEmit(c.state) {
		return 0, fmt.Errorf("enabling %T at 0x%X: %w",
			op, uint64(start), ErrExhausted)
	}
	op.InsertPo(before, c.state)
	n, err := c.backend.Emit(op, start, c.state, code)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		panic(fmt.Sprintf("codegen: enabled %T emitted no code", op))
	}
	c.register(op, start, start+InstPtr(n))
	return n, nil
}

// Emit emits a whole thread's operation sequence into code, which is
// mapped at base. A thread without operations emits nothing. On error,
// the returned count holds the bytes emitted before the failure.
func (c *Compiler) Emit(pid mc.Pid, base InstPtr, code []byte) (int, error) {
	ops, ok := c.threads[pid]
	if !ok {
		return 0, nil
	}
	total := 0
	var last Op
	for _, op := range ops {
		n, err := c.EmitOp(op, base+InstPtr(total), code[total:], last)
		if err != nil {
			return total, fmt.Errorf("thread %d: %w", pid, err)
		}
		total += n
		last = op
	}
	return total, nil
}

// UpdateFrom routes an observation made at ip to the operation emitted
// there. It returns false if no operation covers ip or the operation
// does not read. The token must be the current epoch's; a stale token
// fails with ErrStaleEpoch, so observations of torn-down code can never
// corrupt a later witness.
func (c *Compiler) UpdateFrom(tok Epoch, ip InstPtr, part int, addr mc.Addr,
	observed []WriteID) (bool, error) {
	if tok != c.state.epoch {
		return false, fmt.Errorf("%w: got %d, current %d",
			ErrStaleEpoch, tok, c.state.epoch)
	}
	op := c.IPToOp(ip)
	if op == nil {
		return false, nil
	}
	return op.UpdateFrom(ip, part, addr, observed, c.state)
}

// IPToOp returns the operation whose emitted range covers ip, or nil.
func (c *Compiler) IPToOp(ip InstPtr) Op {
	var found Op
	c.index.DescendLessOrEqual(ipRange{start: ip}, func(item ipRange) bool {
		if ip < item.end {
			found = item.op
		}
		return false
	})
	return found
}

// OpIP returns the start address the operation was emitted at.
func (c *Compiler) OpIP(op Op) (InstPtr, bool) {
	r, ok := c.opIP[op]
	return r.start, ok
}

func (c *Compiler) register(op Op, start, end InstPtr) {
	if _, ok := c.index.Get(ipRange{start: start}); ok {
		panic(fmt.Sprintf("codegen: instruction range at 0x%X registered twice",
			uint64(start)))
	}
	r := ipRange{start: start, end: end, op: op}
	c.index.ReplaceOrInsert(r)
	c.opIP[op] = r
}
