package amd64

import (
	"fmt"

	"github.com/icsa-caps/mc2lib/codegen"
	mc "github.com/icsa-caps/mc2lib/memconsistency"
)

// chainPo appends first to the program order after the operation before,
// giving before the chance to order itself against first. It returns the
// predecessor event, or nil at the start of a thread.
func chainPo(before codegen.Op, first *mc.Event, s *codegen.AssemblerState) *mc.Event {
	if before == nil || first == nil {
		return nil
	}
	last := before.LastEvent(first, s)
	if last != nil {
		s.Witness().PO.Insert(*last, *first)
	}
	return last
}

// checkObservation validates the shape of a reported observation against
// a one-byte access at opAddr.
func checkObservation(ip codegen.InstPtr, opAddr, obsAddr mc.Addr,
	observed []codegen.WriteID) error {
	if obsAddr != opAddr {
		return fmt.Errorf("observation at 0x%X targets 0x%X, operation accesses 0x%X",
			uint64(ip), uint64(obsAddr), uint64(opAddr))
	}
	if len(observed) != 1 {
		return fmt.Errorf("observation at 0x%X carries %d ids for a 1-byte access",
			uint64(ip), len(observed))
	}
	return nil
}

// Read observes one byte of a location, revealing which write produced
// the value there.
//
//	0F B6 04 25 <disp32>    movzbl disp32, %eax
type Read struct {
	pid   mc.Pid
	addr  mc.Addr
	event *mc.Event
}

// NewRead returns a read of addr on thread pid.
func NewRead(addr mc.Addr, pid mc.Pid) *Read {
	return &Read{pid: pid, addr: addr}
}

// Reset implements codegen.Op.
func (r *Read) Reset() {
	r.event = nil
}

// Clone implements codegen.Op.
func (r *Read) Clone() codegen.Op {
	return NewRead(r.addr, r.pid)
}

// Pid implements codegen.Op.
func (r *Read) Pid() mc.Pid { return r.pid }

// SetPid implements codegen.Op.
func (r *Read) SetPid(pid mc.Pid) { r.pid = pid }

// Addr implements codegen.MemOp.
func (r *Read) Addr() mc.Addr { return r.addr }

// EnableEmit implements codegen.Op.
func (r *Read) EnableEmit(s *codegen.AssemblerState) bool {
	if s.Exhausted() {
		return false
	}
	r.event = s.MakeRead(r.pid, mc.TypeRead, r.addr, 1)[0]
	return true
}

// InsertPo implements codegen.Op.
func (r *Read) InsertPo(before codegen.Op, s *codegen.AssemblerState) {
	chainPo(before, r.event, s)
}

// LastEvent implements codegen.Op.
func (r *Read) LastEvent(next *mc.Event, s *codegen.AssemblerState) *mc.Event {
	return r.event
}

// UpdateFrom implements codegen.Op. The observed id resolves to the
// write this read took its value from.
func (r *Read) UpdateFrom(ip codegen.InstPtr, part int, addr mc.Addr,
	observed []codegen.WriteID, s *codegen.AssemblerState) (bool, error) {
	if part != 0 {
		return false, fmt.Errorf("read at 0x%X has no part %d", uint64(ip), part)
	}
	if err := checkObservation(ip, r.addr, addr, observed); err != nil {
		return false, err
	}
	writes, err := s.GetWrite([]*mc.Event{r.event}, addr, observed)
	if err != nil {
		return false, err
	}
	s.Witness().RF.Insert(*writes[0], *r.event)
	return true, nil
}

// EncodedLen implements Encoder.
func (r *Read) EncodedLen() int { return 8 }

// Encode implements Encoder.
func (r *Read) Encode(start codegen.InstPtr, s *codegen.AssemblerState,
	code []byte) (int, error) {
	disp, err := disp32(uint64(r.addr))
	if err != nil {
		return 0, err
	}
	e := emitter{code: code}
	e.put(0x0F, 0xB6, 0x04, 0x25)
	e.putUint32(disp)
	return e.done()
}

// Write stores its one-byte id at a location.
//
//	C6 04 25 <disp32> <imm8>    movb $id, disp32
type Write struct {
	pid   mc.Pid
	addr  mc.Addr
	event *mc.Event
	id    codegen.WriteID
}

// NewWrite returns a write to addr on thread pid.
func NewWrite(addr mc.Addr, pid mc.Pid) *Write {
	return &Write{pid: pid, addr: addr}
}

// Reset implements codegen.Op.
func (w *Write) Reset() {
	w.event = nil
	w.id = codegen.InitWrite
}

// Clone implements codegen.Op.
func (w *Write) Clone() codegen.Op {
	return NewWrite(w.addr, w.pid)
}

// Pid implements codegen.Op.
func (w *Write) Pid() mc.Pid { return w.pid }

// SetPid implements codegen.Op.
func (w *Write) SetPid(pid mc.Pid) { w.pid = pid }

// Addr implements codegen.MemOp.
func (w *Write) Addr() mc.Addr { return w.addr }

// StoredID returns the id this write stores. It is only valid after a
// successful EnableEmit.
func (w *Write) StoredID() codegen.WriteID { return w.id }

// EnableEmit implements codegen.Op.
func (w *Write) EnableEmit(s *codegen.AssemblerState) bool {
	if s.Exhausted() {
		return false
	}
	evts, ids := s.MakeWrite(w.pid, mc.TypeWrite, w.addr, 1)
	w.event = evts[0]
	w.id = ids[0]
	return true
}

// InsertPo implements codegen.Op.
func (w *Write) InsertPo(before codegen.Op, s *codegen.AssemblerState) {
	chainPo(before, w.event, s)
}

// LastEvent implements codegen.Op.
func (w *Write) LastEvent(next *mc.Event, s *codegen.AssemblerState) *mc.Event {
	return w.event
}

// UpdateFrom implements codegen.Op. The observed id is the one this
// write displaced in memory; the write it resolves to becomes this
// write's coherence predecessor. Feeding every write its displaced id
// makes coherence total over each location's writes.
func (w *Write) UpdateFrom(ip codegen.InstPtr, part int, addr mc.Addr,
	observed []codegen.WriteID, s *codegen.AssemblerState) (bool, error) {
	if part != 0 {
		return false, fmt.Errorf("write at 0x%X has no part %d", uint64(ip), part)
	}
	if err := checkObservation(ip, w.addr, addr, observed); err != nil {
		return false, err
	}
	writes, err := s.GetWrite([]*mc.Event{w.event}, addr, observed)
	if err != nil {
		return false, err
	}
	s.Witness().CO.Insert(*writes[0], *w.event)
	return true, nil
}

// EncodedLen implements Encoder.
func (w *Write) EncodedLen() int { return 8 }

// Encode implements Encoder.
func (w *Write) Encode(start codegen.InstPtr, s *codegen.AssemblerState,
	code []byte) (int, error) {
	disp, err := disp32(uint64(w.addr))
	if err != nil {
		return 0, err
	}
	e := emitter{code: code}
	e.put(0xC6, 0x04, 0x25)
	e.putUint32(disp)
	e.put(byte(w.id))
	return e.done()
}

// ReadModifyWrite atomically swaps its one-byte id into a location and
// observes the id that was there. The exchange is a read event followed
// by a write event, and the implicit lock orders both against the
// neighboring accesses like a full fence.
//
//	B0 <imm8>               movb $id, %al
//	86 04 25 <disp32>       xchgb %al, disp32
type ReadModifyWrite struct {
	pid      mc.Pid
	addr     mc.Addr
	readEvt  *mc.Event
	writeEvt *mc.Event
	id       codegen.WriteID
}

// NewReadModifyWrite returns an atomic exchange at addr on thread pid.
func NewReadModifyWrite(addr mc.Addr, pid mc.Pid) *ReadModifyWrite {
	return &ReadModifyWrite{pid: pid, addr: addr}
}

// Reset implements codegen.Op.
func (m *ReadModifyWrite) Reset() {
	m.readEvt = nil
	m.writeEvt = nil
	m.id = codegen.InitWrite
}

// Clone implements codegen.Op.
func (m *ReadModifyWrite) Clone() codegen.Op {
	return NewReadModifyWrite(m.addr, m.pid)
}

// Pid implements codegen.Op.
func (m *ReadModifyWrite) Pid() mc.Pid { return m.pid }

// SetPid implements codegen.Op.
func (m *ReadModifyWrite) SetPid(pid mc.Pid) { m.pid = pid }

// Addr implements codegen.MemOp.
func (m *ReadModifyWrite) Addr() mc.Addr { return m.addr }

// StoredID returns the id this exchange stores. It is only valid after
// a successful EnableEmit.
func (m *ReadModifyWrite) StoredID() codegen.WriteID { return m.id }

// EnableEmit implements codegen.Op.
func (m *ReadModifyWrite) EnableEmit(s *codegen.AssemblerState) bool {
	if s.Exhausted() {
		return false
	}
	m.readEvt = s.MakeRead(m.pid, mc.TypeRead, m.addr, 1)[0]
	evts, ids := s.MakeWrite(m.pid, mc.TypeWrite, m.addr, 1)
	m.writeEvt = evts[0]
	m.id = ids[0]
	return true
}

// InsertPo implements codegen.Op.
func (m *ReadModifyWrite) InsertPo(before codegen.Op, s *codegen.AssemblerState) {
	if last := chainPo(before, m.readEvt, s); last != nil {
		tsoArch(s).MFence.Insert(*last, *m.readEvt)
	}
	s.Witness().PO.Insert(*m.readEvt, *m.writeEvt)
}

// LastEvent implements codegen.Op.
func (m *ReadModifyWrite) LastEvent(next *mc.Event, s *codegen.AssemblerState) *mc.Event {
	if next != nil {
		tsoArch(s).MFence.Insert(*m.writeEvt, *next)
	}
	return m.writeEvt
}

// UpdateFrom implements codegen.Op. Part 0 is the read: its observed id
// resolves to the write the exchange displaced, which also becomes the
// coherence predecessor of the exchange's own write. Part 1 is the
// write reaching memory; it carries no new ordering.
func (m *ReadModifyWrite) UpdateFrom(ip codegen.InstPtr, part int, addr mc.Addr,
	observed []codegen.WriteID, s *codegen.AssemblerState) (bool, error) {
	switch part {
	case 0:
		if err := checkObservation(ip, m.addr, addr, observed); err != nil {
			return false, err
		}
		writes, err := s.GetWrite([]*mc.Event{m.readEvt}, addr, observed)
		if err != nil {
			return false, err
		}
		s.Witness().RF.Insert(*writes[0], *m.readEvt)
		s.Witness().CO.Insert(*writes[0], *m.writeEvt)
		return true, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("read-modify-write at 0x%X has no part %d",
			uint64(ip), part)
	}
}

// EncodedLen implements Encoder.
func (m *ReadModifyWrite) EncodedLen() int { return 9 }

// Encode implements Encoder.
func (m *ReadModifyWrite) Encode(start codegen.InstPtr, s *codegen.AssemblerState,
	code []byte) (int, error) {
	disp, err := disp32(uint64(m.addr))
	if err != nil {
		return 0, err
	}
	e := emitter{code: code}
	e.put(0xB0, byte(m.id))
	e.put(0x86, 0x04, 0x25)
	e.putUint32(disp)
	return e.done()
}

// Fence orders every access before it with every access after it. It
// produces no events; the placement is recorded in the TSO model when
// the successor chains itself in.
//
//	0F AE F0    mfence
type Fence struct {
	pid  mc.Pid
	prev codegen.Op
}

// NewFence returns a fence on thread pid.
func NewFence(pid mc.Pid) *Fence {
	return &Fence{pid: pid}
}

// Reset implements codegen.Op.
func (f *Fence) Reset() {
	f.prev = nil
}

// Clone implements codegen.Op.
func (f *Fence) Clone() codegen.Op {
	return NewFence(f.pid)
}

// Pid implements codegen.Op.
func (f *Fence) Pid() mc.Pid { return f.pid }

// SetPid implements codegen.Op.
func (f *Fence) SetPid(pid mc.Pid) { f.pid = pid }

// EnableEmit implements codegen.Op.
func (f *Fence) EnableEmit(s *codegen.AssemblerState) bool {
	return !s.Exhausted()
}

// InsertPo implements codegen.Op.
func (f *Fence) InsertPo(before codegen.Op, s *codegen.AssemblerState) {
	f.prev = before
}

// LastEvent implements codegen.Op. When the successor's first event
// arrives, the fence records the ordering edge from the last event
// before it. Back-to-back fences collapse into one edge.
func (f *Fence) LastEvent(next *mc.Event, s *codegen.AssemblerState) *mc.Event {
	if f.prev == nil {
		return nil
	}
	last := f.prev.LastEvent(nil, s)
	if next != nil && last != nil {
		tsoArch(s).MFence.Insert(*last, *next)
	}
	return last
}

// UpdateFrom implements codegen.Op.
func (f *Fence) UpdateFrom(ip codegen.InstPtr, part int, addr mc.Addr,
	observed []codegen.WriteID, s *codegen.AssemblerState) (bool, error) {
	return false, nil
}

// EncodedLen implements Encoder.
func (f *Fence) EncodedLen() int { return 3 }

// Encode implements Encoder.
func (f *Fence) Encode(start codegen.InstPtr, s *codegen.AssemblerState,
	code []byte) (int, error) {
	e := emitter{code: code}
	e.put(0x0F, 0xAE, 0xF0)
	return e.done()
}

// CacheFlush flushes a location from the cache hierarchy. It produces no
// events; it only perturbs the timing of the surrounding accesses.
//
//	0F AE 3C 25 <disp32>    clflush disp32
type CacheFlush struct {
	pid  mc.Pid
	addr mc.Addr
	prev codegen.Op
}

// NewCacheFlush returns a flush of addr on thread pid.
func NewCacheFlush(addr mc.Addr, pid mc.Pid) *CacheFlush {
	return &CacheFlush{pid: pid, addr: addr}
}

// Reset implements codegen.Op.
func (c *CacheFlush) Reset() {
	c.prev = nil
}

// Clone implements codegen.Op.
func (c *CacheFlush) Clone() codegen.Op {
	return NewCacheFlush(c.addr, c.pid)
}

// Pid implements codegen.Op.
func (c *CacheFlush) Pid() mc.Pid { return c.pid }

// SetPid implements codegen.Op.
func (c *CacheFlush) SetPid(pid mc.Pid) { c.pid = pid }

// Addr implements codegen.MemOp.
func (c *CacheFlush) Addr() mc.Addr { return c.addr }

// EnableEmit implements codegen.Op.
func (c *CacheFlush) EnableEmit(s *codegen.AssemblerState) bool {
	return !s.Exhausted()
}

// InsertPo implements codegen.Op.
func (c *CacheFlush) InsertPo(before codegen.Op, s *codegen.AssemblerState) {
	c.prev = before
}

// LastEvent implements codegen.Op.
func (c *CacheFlush) LastEvent(next *mc.Event, s *codegen.AssemblerState) *mc.Event {
	if c.prev == nil {
		return nil
	}
	return c.prev.LastEvent(next, s)
}

// UpdateFrom implements codegen.Op.
func (c *CacheFlush) UpdateFrom(ip codegen.InstPtr, part int, addr mc.Addr,
	observed []codegen.WriteID, s *codegen.AssemblerState) (bool, error) {
	return false, nil
}

// EncodedLen implements Encoder.
func (c *CacheFlush) EncodedLen() int { return 8 }

// Encode implements Encoder.
func (c *CacheFlush) Encode(start codegen.InstPtr, s *codegen.AssemblerState,
	code []byte) (int, error) {
	disp, err := disp32(uint64(c.addr))
	if err != nil {
		return 0, err
	}
	e := emitter{code: code}
	e.put(0x0F, 0xAE, 0x3C, 0x25)
	e.putUint32(disp)
	return e.done()
}

// Delay stalls a thread for a number of instruction slots without
// touching memory.
//
//	90    nop
type Delay struct {
	pid  mc.Pid
	n    int
	prev codegen.Op
}

// NewDelay returns a delay of n instruction slots on thread pid.
func NewDelay(n int, pid mc.Pid) *Delay {
	return &Delay{pid: pid, n: n}
}

// Reset implements codegen.Op.
func (d *Delay) Reset() {
	d.prev = nil
}

// Clone implements codegen.Op.
func (d *Delay) Clone() codegen.Op {
	return NewDelay(d.n, d.pid)
}

// Pid implements codegen.Op.
func (d *Delay) Pid() mc.Pid { return d.pid }

// SetPid implements codegen.Op.
func (d *Delay) SetPid(pid mc.Pid) { d.pid = pid }

// EnableEmit implements codegen.Op.
func (d *Delay) EnableEmit(s *codegen.AssemblerState) bool {
	return !s.Exhausted()
}

// InsertPo implements codegen.Op.
func (d *Delay) InsertPo(before codegen.Op, s *codegen.AssemblerState) {
	d.prev = before
}

// LastEvent implements codegen.Op.
func (d *Delay) LastEvent(next *mc.Event, s *codegen.AssemblerState) *mc.Event {
	if d.prev == nil {
		return nil
	}
	return d.prev.LastEvent(next, s)
}

// UpdateFrom implements codegen.Op.
func (d *Delay) UpdateFrom(ip codegen.InstPtr, part int, addr mc.Addr,
	observed []codegen.WriteID, s *codegen.AssemblerState) (bool, error) {
	return false, nil
}

// EncodedLen implements Encoder.
func (d *Delay) EncodedLen() int { return d.n }

// Encode implements Encoder.
func (d *Delay) Encode(start codegen.InstPtr, s *codegen.AssemblerState,
	code []byte) (int, error) {
	e := emitter{code: code}
	for i := 0; i < d.n; i++ {
		e.put(0x90)
	}
	return e.done()
}

// Return ends a thread's code.
//
//	C3    ret
type Return struct {
	pid  mc.Pid
	prev codegen.Op
}

// NewReturn returns a return on thread pid.
func NewReturn(pid mc.Pid) *Return {
	return &Return{pid: pid}
}

// Reset implements codegen.Op.
func (r *Return) Reset() {
	r.prev = nil
}

// Clone implements codegen.Op.
func (r *Return) Clone() codegen.Op {
	return NewReturn(r.pid)
}

// Pid implements codegen.Op.
func (r *Return) Pid() mc.Pid { return r.pid }

// SetPid implements codegen.Op.
func (r *Return) SetPid(pid mc.Pid) { r.pid = pid }

// EnableEmit implements codegen.Op.
func (r *Return) EnableEmit(s *codegen.AssemblerState) bool {
	return !s.Exhausted()
}

// InsertPo implements codegen.Op.
func (r *Return) InsertPo(before codegen.Op, s *codegen.AssemblerState) {
	r.prev = before
}

// LastEvent implements codegen.Op.
func (r *Return) LastEvent(next *mc.Event, s *codegen.AssemblerState) *mc.Event {
	if r.prev == nil {
		return nil
	}
	return r.prev.LastEvent(next, s)
}

// UpdateFrom implements codegen.Op.
func (r *Return) UpdateFrom(ip codegen.InstPtr, part int, addr mc.Addr,
	observed []codegen.WriteID, s *codegen.AssemblerState) (bool, error) {
	return false, nil
}

// EncodedLen implements Encoder.
func (r *Return) EncodedLen() int { return 1 }

// Encode implements Encoder.
func (r *Return) Encode(start codegen.InstPtr, s *codegen.AssemblerState,
	code []byte) (int, error) {
	e := emitter{code: code}
	e.put(0xC3)
	return e.done()
}
