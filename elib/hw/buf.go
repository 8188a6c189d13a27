// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package hw

import (
	"fmt"
	"sync"
	"unsafe"

	"github.com/platinasystems/e1000/elib"
)

// A Ref names one packet buffer in the DMA heap.
type RefHeader struct {
	// Byte offset of buffer start in DMA heap.
	offset uint32

	// Data start relative to buffer start and data length in bytes.
	dataOffset uint16
	dataLen    uint16
}

type Ref struct {
	RefHeader
}

func (r *RefHeader) Buffer() unsafe.Pointer { return DmaGetPointer(uint(r.offset)) }
func (r *RefHeader) Data() unsafe.Pointer {
	return DmaGetPointer(uint(r.offset) + uint(r.dataOffset))
}
func (r *RefHeader) DataPhys() uintptr { return DmaPhysAddress(uintptr(r.Data())) }

func (r *RefHeader) DataOffset() uint { return uint(r.dataOffset) }
func (r *RefHeader) DataLen() uint    { return uint(r.dataLen) }
func (r *RefHeader) SetDataLen(l uint) {
	if l > 0xffff {
		panic(fmt.Errorf("data length %d too large", l))
	}
	r.dataLen = uint16(l)
}

func (r *RefHeader) DataSlice() (b []byte) {
	return unsafe.Slice((*byte)(r.Data()), r.dataLen)
}

type BufferTemplate struct {
	// Data size of buffers.
	Size uint

	Ref
}

var DefaultBufferTemplate = &BufferTemplate{
	Size: 2 << 10,
}

type BufferPool struct {
	mu sync.Mutex

	BufferTemplate

	Name string

	// Size rounded to full cache lines.
	sizeRounded uint

	refs []Ref

	// DMA heap ids for slabs backing the refs; freed with the pool.
	slabIds []elib.Index

	nAllocated uint
}

// Buffers are grown in slabs of 256.
const poolSlabBuffers = 256

func (p *BufferPool) Init() {
	t := &p.BufferTemplate
	if t.Size == 0 {
		t.Size = DefaultBufferTemplate.Size
	}
	p.sizeRounded = uint(elib.RoundCacheLine(elib.Word(t.Size)))
	t.Ref.dataLen = uint16(t.Size)
}

func (p *BufferPool) FreeLen() uint      { return uint(len(p.refs)) }
func (p *BufferPool) AllocatedLen() uint { return p.nAllocated }
func (p *BufferPool) BufferSize() uint   { return p.sizeRounded }
func (p *BufferPool) String() string {
	return fmt.Sprintf("%s: %d free, %d allocated", p.Name, len(p.refs), p.nAllocated)
}

func (p *BufferPool) grow() (err error) {
	_, id, offset, _, err := DmaAllocAligned(p.sizeRounded*poolSlabBuffers, elib.Log2CacheLineBytes)
	if err != nil {
		return
	}
	p.slabIds = append(p.slabIds, id)
	for i := uint(0); i < poolSlabBuffers; i++ {
		r := p.BufferTemplate.Ref
		r.offset = uint32(offset + i*p.sizeRounded)
		p.refs = append(p.refs, r)
	}
	return
}

// AllocRefs fills refs with buffers from the free list, growing the
// pool from the DMA heap on demand.
func (p *BufferPool) AllocRefs(refs []Ref) (err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.refs) < len(refs) {
		if err = p.grow(); err != nil {
			return
		}
	}
	l := len(p.refs) - len(refs)
	copy(refs, p.refs[l:])
	p.refs = p.refs[:l]
	p.nAllocated += uint(len(refs))
	return
}

// FreeRefs returns buffers to the free list. Headers are reset from
// the pool template so re-used buffers always start pristine.
func (p *BufferPool) FreeRefs(refs []Ref) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n := uint(len(refs)); n > p.nAllocated {
		panic(fmt.Errorf("%s: free of %d refs with %d allocated", p.Name, n, p.nAllocated))
	} else {
		p.nAllocated -= n
	}
	t := &p.BufferTemplate.Ref
	for i := range refs {
		r := *t
		r.offset = refs[i].offset
		p.refs = append(p.refs, r)
	}
}

// Free returns the pool's memory to the DMA heap. Callers must have
// quiesced all users first: freeing with buffers still allocated is a
// bug.
func (p *BufferPool) Free() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.nAllocated != 0 {
		panic(fmt.Errorf("%s: free with %d buffers still allocated", p.Name, p.nAllocated))
	}
	for _, id := range p.slabIds {
		DmaFree(id)
	}
	p.slabIds = nil
	p.refs = nil
}
