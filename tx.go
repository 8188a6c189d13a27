// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"fmt"
	"unsafe"

	"github.com/platinasystems/e1000/elib"
	"github.com/platinasystems/e1000/elib/hw"
)

// Legacy transmit descriptor.
type tx_descriptor struct {
	buffer_address  uint64
	n_bytes         uint16
	checksum_offset uint8
	command         uint8
	status          uint8
	checksum_start  uint8
	vlan            uint16
}

const (
	tx_desc_end_of_packet   = 1 << 0
	tx_desc_insert_fcs      = 1 << 1
	tx_desc_insert_checksum = 1 << 2
	tx_desc_report_status   = 1 << 3
	tx_desc_extension       = 1 << 5
	tx_desc_vlan_enable     = 1 << 6
	tx_desc_interrupt_delay = 1 << 7
)

const (
	tx_desc_status_done              = 1 << 0
	tx_desc_status_excess_collisions = 1 << 1
	tx_desc_status_late_collision    = 1 << 2
	tx_desc_status_underrun          = 1 << 3
)

var tx_desc_command_names = [...]string{
	0: "eop",
	1: "ifcs",
	2: "ic",
	3: "rs",
	5: "ext",
	6: "vle",
	7: "ide",
}

var tx_desc_status_names = [...]string{
	0: "dd",
	1: "excess collisions",
	2: "late collision",
	3: "underrun",
}

func (x *tx_descriptor) String() (s string) {
	s = fmt.Sprintf("0x%016x, %d bytes", x.buffer_address, x.n_bytes)
	if x.command != 0 {
		s += ", cmd: " + elib.FlagStringer(tx_desc_command_names[:], elib.Word(x.command))
	}
	if x.status != 0 {
		s += ", status: " + elib.FlagStringer(tx_desc_status_names[:], elib.Word(x.status))
	}
	return
}

type tx_dma_queue struct {
	dma_queue

	descriptors []tx_descriptor

	// Buffer owned by each ring slot; zero ref when the slot is free.
	refs []hw.Ref

	tmp_refs []hw.Ref
}

func (d *Dev) tx_queue_init() (err error) {
	q := &d.tx
	if err = q.alloc_ring(d, &d.regs.tx_dma, d.cf.TxRingLen); err != nil {
		return
	}
	q.descriptors = unsafe.Slice((*tx_descriptor)(unsafe.Pointer(&q.ring_bytes[0])), q.len)
	q.refs = make([]hw.Ref, q.len)
	q.program_ring(d)

	// Zero is not a legal transmit interrupt delay on all chips.
	q.dregs.delay_timer.set(d, 1)

	d.regs.tx_inter_packet_gap.set(d, d.tx_inter_packet_gap())

	// Transmit enabled, pad short packets, 15 retries, standard
	// collision distance.
	d.regs.tx_control.set(d, 1<<1|1<<3|15<<4|63<<12)
	return
}

// IEEE inter packet gap timings in increments of 8 bit times; the
// 82542 uses different encodings than later chips.
func (d *Dev) tx_inter_packet_gap() reg {
	if d.is_82542 {
		return 10 | 2<<10 | 10<<20
	}
	if d.phy_media == media_copper {
		return 8 | 8<<10 | 6<<20
	}
	return 9 | 8<<10 | 6<<20
}

// Hands a packet to the device, copying it into fresh dma buffers.
// Packets larger than the buffer size span multiple descriptors; only
// the last descriptor carries end of packet and insert fcs.
func (q *tx_dma_queue) transmit(b []byte) (err error) {
	if len(b) == 0 {
		return fmt.Errorf("transmit: empty packet")
	}
	d := q.d
	buffer_bytes := int(d.pool.BufferSize())
	n_desc := reg((len(b) + buffer_bytes - 1) / buffer_bytes)

	q.mu.Lock()
	defer q.mu.Unlock()

	if n_desc > q.len-1 {
		return fmt.Errorf("%w: packet needs %d descriptors, ring has %d usable",
			ErrRingFull, n_desc, q.len-1)
	}
	if n_desc > q.n_free() {
		q.reclaim()
	}
	if n_desc > q.n_free() {
		return fmt.Errorf("%w: need %d descriptors, %d free", ErrRingFull, n_desc, q.n_free())
	}

	if c := int(n_desc) - cap(q.tmp_refs); c > 0 {
		q.tmp_refs = append(q.tmp_refs[:cap(q.tmp_refs)], make([]hw.Ref, c)...)
	}
	refs := q.tmp_refs[:n_desc]
	if err = d.pool.AllocRefs(refs); err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}

	i := 0
	for ri := reg(0); ri < n_desc; ri++ {
		r := refs[ri]
		n := copy(r.DataSlice(), b[i:])
		r.SetDataLen(uint(n))
		i += n

		x := &q.descriptors[q.tail_index]
		x.buffer_address = uint64(r.DataPhys())
		x.n_bytes = uint16(n)
		x.checksum_offset = 0
		x.checksum_start = 0
		x.status = 0
		x.vlan = 0
		x.command = tx_desc_report_status
		if ri == n_desc-1 {
			x.command |= tx_desc_end_of_packet | tx_desc_insert_fcs
		}
		q.refs[q.tail_index] = r
		q.tail_index = q.ring_next(q.tail_index)
	}

	// Descriptor writes must land before the device sees the new tail.
	hw.MemoryBarrier()
	q.dregs.tail_index.set(d, q.tail_index)
	return
}

// Returns any in flight buffers to the pool and frees the ring.  Only
// called with dma stopped.
func (q *tx_dma_queue) teardown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ring_bytes == nil {
		return
	}
	q.tmp_refs = q.tmp_refs[:0]
	for i := range q.refs {
		if q.refs[i] != (hw.Ref{}) {
			q.tmp_refs = append(q.tmp_refs, q.refs[i])
			q.refs[i] = hw.Ref{}
		}
	}
	if len(q.tmp_refs) > 0 {
		q.d.pool.FreeRefs(q.tmp_refs)
	}
	q.descriptors = nil
	q.refs = nil
	q.free_ring()
}

func (q *tx_dma_queue) reclaim_completed() (n uint) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.reclaim()
}

// Frees buffers for the prefix of in flight descriptors the device has
// marked done.  Never reclaims past the first descriptor still owned by
// hardware.  Caller must hold q.mu.
func (q *tx_dma_queue) reclaim() (n uint) {
	q.tmp_refs = q.tmp_refs[:0]
	for q.head_index != q.tail_index {
		// Load status atomically since the device writes it via dma.
		w := hw.LoadUint32((*uint32)(unsafe.Pointer(&q.ring_bytes[uint(q.head_index)*n_bytes_per_descriptor+12])))
		if w&tx_desc_status_done == 0 {
			break
		}
		q.tmp_refs = append(q.tmp_refs, q.refs[q.head_index])
		q.refs[q.head_index] = hw.Ref{}
		q.head_index = q.ring_next(q.head_index)
		n++
	}
	if n > 0 {
		q.d.pool.FreeRefs(q.tmp_refs)
	}
	return
}
