/*
   Fixed field offsets into hart.Context, as seen by translated code.
   Every block is compiled against one ABI: the context-base host
   register (ctxReg in asm.go) holds a *hart.Context, and loads/stores
   address its fields by these constant offsets rather than by calling
   back into Go. The offsets come from unsafe.Offsetof, so they follow
   hart.Context's layout whenever it changes.

   Copyright (c) 2024, Richard Cornwell
*/

package translate

import (
	"unsafe"

	"rv64vm/emu/hart"
)

var zeroCtx hart.Context

// Byte offsets of the fields translated code touches directly.
var (
	offX      = unsafe.Offsetof(zeroCtx.X)
	offF      = unsafe.Offsetof(zeroCtx.F)
	offPC     = unsafe.Offsetof(zeroCtx.PC)
	offSstatus = unsafe.Offsetof(zeroCtx.Sstatus)
	offSip     = unsafe.Offsetof(zeroCtx.Sip)
	offCycle   = unsafe.Offsetof(zeroCtx.Cycle)
	offInstret = unsafe.Offsetof(zeroCtx.Instret)
	offITLB    = unsafe.Offsetof(zeroCtx.ITLB)
	offDTLB    = unsafe.Offsetof(zeroCtx.DTLB)
	offTLBGen  = unsafe.Offsetof(zeroCtx.TLBGeneration)

	// Pending-operation descriptor, filled in by a block's exit
	// trailer before it returns to the fiber.
	offPendingVAddr     = unsafe.Offsetof(zeroCtx.PendingVAddr)
	offPendingRd        = unsafe.Offsetof(zeroCtx.PendingRd)
	offPendingValue     = unsafe.Offsetof(zeroCtx.PendingValue)
	offPendingChainCell = unsafe.Offsetof(zeroCtx.PendingChainCell)
)

// sizeofTLBEntry/fields therein, for inline TLB-probe codegen.
const (
	sizeofTLBEntry = unsafe.Sizeof(hart.TLBEntry{})
)

var zeroTLBEntry hart.TLBEntry

var (
	offTLBTag        = unsafe.Offsetof(zeroTLBEntry.Tag)
	offTLBHostBase   = unsafe.Offsetof(zeroTLBEntry.HostBase)
	offTLBPerm       = unsafe.Offsetof(zeroTLBEntry.Perm)
	offTLBGeneration = unsafe.Offsetof(zeroTLBEntry.Generation)
)

// xRegOffset returns the byte offset of guest integer register r
// within Context.X.
func xRegOffset(r uint8) uintptr {
	return offX + uintptr(r&0x1f)*8
}

// fRegOffset returns the byte offset of guest FP register r within
// Context.F.
func fRegOffset(r uint8) uintptr {
	return offF + uintptr(r&0x1f)*8
}
