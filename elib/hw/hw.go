// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Memory mapped register read/write
package hw

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Must point to readable memory since compiler may perform
// read probes (nil checks) as part of memory addressing.
var (
	RegsBasePointer = basePointer()
	RegsBaseAddress = uintptr(RegsBasePointer)
)

func basePointer() unsafe.Pointer {
	// Covers the register file of any device we drive.
	x, err := unix.Mmap(-1, 0, 1<<20, unix.PROT_READ,
		unix.MAP_PRIVATE|unix.MAP_ANON|unix.MAP_NORESERVE)
	if err != nil {
		panic(err)
	}
	return unsafe.Pointer(&x[0])
}

func CheckRegAddr(name string, got, want uint) {
	if got != want {
		panic(fmt.Errorf("%s got 0x%x != want 0x%x", name, got, want))
	}
}

// Generic 32 bit device register.
type Reg32 uint32

// Memory-mapped read/write. Addresses always point into mmapped
// device or DMA memory, never into Go heap objects. Atomic accesses
// keep the compiler from merging, splitting or eliding device loads
// and stores.
func LoadUint32(addr *uint32) (data uint32) { return atomic.LoadUint32(addr) }
func StoreUint32(addr *uint32, data uint32) { atomic.StoreUint32(addr, data) }
func LoadUint64(addr *uint64) (data uint64) { return atomic.LoadUint64(addr) }
func StoreUint64(addr *uint64, data uint64) { atomic.StoreUint64(addr, data) }

var memoryBarrierFence uint32

// MemoryBarrier orders descriptor memory writes before the register
// write that advertises them. Atomic read-modify-write is a full
// fence on amd64 and arm64.
func MemoryBarrier() { atomic.AddUint32(&memoryBarrierFence, 0) }
