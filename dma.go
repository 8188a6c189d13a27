// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/platinasystems/e1000/elib"
	"github.com/platinasystems/e1000/elib/hw"
)

type addr [2]reg

func (a *addr) set(d *Dev, v uint64) {
	a[0].set(d, reg(v))
	a[1].set(d, reg(v>>32))
}

type dma_regs struct {
	// [31:4] ring base, 16 byte aligned.
	descriptor_address addr

	// Ring size in bytes; multiple of 128.
	n_descriptor_bytes reg
	_                  reg

	head_index reg
	_          reg
	tail_index reg
	_          reg

	// Write back delay in 1.024 microsecond units; rx packet timer
	// (0x2820) or tx descriptor timer (0x3820).
	delay_timer reg
}

const (
	n_bytes_per_descriptor = 16

	// Ring base alignment; also makes n_descriptor_bytes a multiple
	// of 128 since ring lengths are multiples of 8 descriptors.
	log2_descriptor_ring_align = 7
)

type dma_queue struct {
	d *Dev

	// Protects cursors and descriptor memory against transmit/reclaim
	// and drain/poll racing each other.
	mu sync.Mutex

	// Ring length and software cursors, always < len. Head == tail
	// means the ring is empty. So we have to be careful to never
	// fill the ring completely: at most len-1 slots are outstanding.
	len        reg
	head_index reg
	tail_index reg

	// DMA memory backing the descriptor ring.
	ring_id    elib.Index
	ring_bytes []byte
	ring_phys  uintptr

	dregs *dma_regs
}

func (q *dma_queue) alloc_ring(d *Dev, dregs *dma_regs, n_desc uint) (err error) {
	b, id, _, _, err := hw.DmaAllocAligned(n_desc*n_bytes_per_descriptor, log2_descriptor_ring_align)
	if err != nil {
		return fmt.Errorf("%w: descriptor ring: %v", ErrOutOfMemory, err)
	}
	clear(b)
	q.d = d
	q.dregs = dregs
	q.len = reg(n_desc)
	q.head_index, q.tail_index = 0, 0
	q.ring_id = id
	q.ring_bytes = b
	q.ring_phys = hw.DmaPhysAddress(uintptr(unsafe.Pointer(&b[0])))
	return
}

func (q *dma_queue) free_ring() {
	if q.ring_bytes != nil {
		hw.DmaFree(q.ring_id)
		q.ring_bytes = nil
	}
}

func (q *dma_queue) program_ring(d *Dev) {
	q.dregs.descriptor_address.set(d, uint64(q.ring_phys))
	q.dregs.n_descriptor_bytes.set(d, q.len*n_bytes_per_descriptor)
	q.dregs.head_index.set(d, 0)
	q.dregs.tail_index.set(d, 0)
}

func (q *dma_queue) ring_next(i reg) reg {
	i++
	if i >= q.len {
		i = 0
	}
	return i
}

func (q *dma_queue) n_in_flight() (n reg) {
	n = q.tail_index - q.head_index
	if int32(n) < 0 {
		n += q.len
	}
	return
}

func (q *dma_queue) n_free() reg { return q.len - 1 - q.n_in_flight() }
