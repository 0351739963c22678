package litmus

import (
	"github.com/icsa-caps/mc2lib/codegen"
	"github.com/icsa-caps/mc2lib/codegen/amd64"
	mc "github.com/icsa-caps/mc2lib/memconsistency"
)

// StoreBuffering returns the SB pattern: each thread stores to its own
// location and then loads the other's. On TSO both loads may return the
// initial value, because the stores can still sit in the store buffers.
//
//	P0          P1
//	x = 1       y = 1
//	r0 = y      r1 = x
func StoreBuffering(x, y mc.Addr) []codegen.Op {
	return []codegen.Op{
		amd64.NewWrite(x, 0),
		amd64.NewRead(y, 0),
		amd64.NewReturn(0),
		amd64.NewWrite(y, 1),
		amd64.NewRead(x, 1),
		amd64.NewReturn(1),
	}
}

// StoreBufferingFenced returns SB with an mfence between each thread's
// store and load, which forbids both loads returning the initial value
// on TSO.
func StoreBufferingFenced(x, y mc.Addr) []codegen.Op {
	return []codegen.Op{
		amd64.NewWrite(x, 0),
		amd64.NewFence(0),
		amd64.NewRead(y, 0),
		amd64.NewReturn(0),
		amd64.NewWrite(y, 1),
		amd64.NewFence(1),
		amd64.NewRead(x, 1),
		amd64.NewReturn(1),
	}
}

// MessagePassing returns the MP pattern: one thread writes data and
// raises a flag, the other reads the flag and then the data. TSO keeps
// both pairs ordered, so a raised flag implies visible data.
//
//	P0            P1
//	data = 1      r0 = flag
//	flag = 1      r1 = data
func MessagePassing(data, flag mc.Addr) []codegen.Op {
	return []codegen.Op{
		amd64.NewWrite(data, 0),
		amd64.NewWrite(flag, 0),
		amd64.NewReturn(0),
		amd64.NewRead(flag, 1),
		amd64.NewRead(data, 1),
		amd64.NewReturn(1),
	}
}
