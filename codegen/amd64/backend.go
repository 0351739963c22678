// Package amd64 encodes test-program operations as x86-64 machine code.
//
// Operations address memory through 32-bit absolute displacements and
// carry write ids in byte immediates:
//   - Read: movzbl disp32, %eax
//   - Write: movb $id, disp32
//   - ReadModifyWrite: movb $id, %al; xchgb %al, disp32 (implicitly locked)
//   - Fence: mfence
//   - CacheFlush: clflush disp32
//   - Delay: nop sled
//   - Return: ret
//
// The xchg form makes the read-modify-write atomic without a lock
// prefix and leaves the observed id in %al. Fences and locked accesses
// record their ordering constraints in the TSO architecture model while
// they are chained into program order.
package amd64

import (
	"fmt"

	"github.com/icsa-caps/mc2lib/codegen"
	"github.com/icsa-caps/mc2lib/memconsistency/model14"
)

// Encoder is implemented by operations that encode themselves as x86-64
// machine code. The encoded length is fixed by the operation's static
// configuration; encoding itself is only valid after a successful
// EnableEmit in the same epoch.
type Encoder interface {
	EncodedLen() int
	Encode(start codegen.InstPtr, s *codegen.AssemblerState, code []byte) (int, error)
}

// Backend encodes operations for x86-64 targets.
type Backend struct{}

// NewBackend returns the x86-64 backend. The architecture model must be
// the TSO model this target encodes for.
func NewBackend(arch model14.Architecture) *Backend {
	if _, ok := arch.(*model14.ArchTSO); !ok {
		panic(fmt.Sprintf("amd64: backend requires a TSO architecture model, got %T", arch))
	}
	return &Backend{}
}

// Check implements codegen.Backend. It rejects operations whose code
// could not be placed, before any events are allocated for them.
func (b *Backend) Check(op codegen.Op, code []byte) error {
	enc, ok := op.(Encoder)
	if !ok {
		return fmt.Errorf("%T: %w", op, codegen.ErrUnsupported)
	}
	if enc.EncodedLen() > len(code) {
		return codegen.ErrBufferFull
	}
	if m, ok := op.(codegen.MemOp); ok {
		if _, err := disp32(uint64(m.Addr())); err != nil {
			return err
		}
	}
	return nil
}

// Emit implements codegen.Backend.
func (b *Backend) Emit(op codegen.Op, start codegen.InstPtr,
	s *codegen.AssemblerState, code []byte) (int, error) {
	enc, ok := op.(Encoder)
	if !ok {
		return 0, fmt.Errorf("%T: %w", op, codegen.ErrUnsupported)
	}
	return enc.Encode(start, s, code)
}

// Displacements are sign-extended in long mode, so only the positive
// 32-bit range addresses directly.
const maxDisp32 = 0x7FFFFFFF

func disp32(addr uint64) (uint32, error) {
	if addr > maxDisp32 {
		return 0, fmt.Errorf("address 0x%X does not fit a 32-bit displacement", addr)
	}
	return uint32(addr), nil
}

// emitter writes instruction bytes into a fixed buffer. The first
// overflow sticks; done reports it.
type emitter struct {
	code []byte
	n    int
	err  error
}

func (e *emitter) put(bs ...byte) {
	if e.err != nil {
		return
	}
	if e.n+len(bs) > len(e.code) {
		e.err = codegen.ErrBufferFull
		return
	}
	copy(e.code[e.n:], bs)
	e.n += len(bs)
}

func (e *emitter) putUint32(v uint32) {
	e.put(byte(v), byte(v>>8), byte(v>>16), byte(v>>24))
}

func (e *emitter) done() (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	return e.n, nil
}

func tsoArch(s *codegen.AssemblerState) *model14.ArchTSO {
	return s.Arch().(*model14.ArchTSO)
}
