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

// Legacy receive descriptor.  Hardware writes back length, checksum,
// status and errors into the same 16 bytes it read the buffer address
// from.
type rx_descriptor struct {
	buffer_address uint64
	n_bytes        uint16
	checksum       uint16
	status         uint8
	errors         uint8
	vlan           uint16
}

const (
	rx_desc_status_done            = 1 << 0
	rx_desc_status_end_of_packet   = 1 << 1
	rx_desc_status_ignore_checksum = 1 << 2
	rx_desc_status_vlan_match      = 1 << 3
	rx_desc_status_tcp_checksummed = 1 << 5
	rx_desc_status_ip_checksummed  = 1 << 6
	rx_desc_status_inexact_filter  = 1 << 7
)

const (
	rx_desc_error_crc               = 1 << 0
	rx_desc_error_symbol            = 1 << 1
	rx_desc_error_sequence          = 1 << 2
	rx_desc_error_carrier_extension = 1 << 4
	rx_desc_error_tcp_checksum      = 1 << 5
	rx_desc_error_ip_checksum       = 1 << 6
	rx_desc_error_rx_data           = 1 << 7
)

// Errors that make a packet garbage rather than merely un-offloaded.
const rx_desc_errors_fatal = rx_desc_error_crc | rx_desc_error_symbol |
	rx_desc_error_sequence | rx_desc_error_carrier_extension | rx_desc_error_rx_data

var rx_desc_status_names = [...]string{
	0: "dd",
	1: "eop",
	2: "ixsm",
	3: "vlan",
	5: "tcp checksummed",
	6: "ip checksummed",
	7: "inexact filter",
}

var rx_desc_error_names = [...]string{
	0: "crc",
	1: "symbol",
	2: "sequence",
	4: "carrier extension",
	5: "tcp checksum",
	6: "ip checksum",
	7: "rx data",
}

func (x *rx_descriptor) String() (s string) {
	s = fmt.Sprintf("0x%016x, %d bytes", x.buffer_address, x.n_bytes)
	if x.status != 0 {
		s += ", status: " + elib.FlagStringer(rx_desc_status_names[:], elib.Word(x.status))
	}
	if x.errors != 0 {
		s += ", errors: " + elib.FlagStringer(rx_desc_error_names[:], elib.Word(x.errors))
	}
	return
}

type rx_dma_queue struct {
	dma_queue

	descriptors []rx_descriptor

	// Buffer owned by each ring slot.  Every slot always holds a
	// buffer; completed buffers are swapped out for fresh ones (or
	// recycled in place when the pool is empty).
	refs []hw.Ref

	// Set while skipping the chunks of a frame too large for one
	// buffer.
	split_frame bool

	spare    [1]hw.Ref
	tmp_pkts []RxPacket
}

func (d *Dev) rx_queue_init() (err error) {
	q := &d.rx
	if err = q.alloc_ring(d, &d.regs.rx_dma, d.cf.RxRingLen); err != nil {
		return
	}
	q.descriptors = unsafe.Slice((*rx_descriptor)(unsafe.Pointer(&q.ring_bytes[0])), q.len)
	q.refs = make([]hw.Ref, q.len)
	if err = d.pool.AllocRefs(q.refs); err != nil {
		q.free_ring()
		return fmt.Errorf("%w: %v", ErrOutOfMemory, err)
	}
	for i := range q.descriptors {
		q.descriptors[i] = rx_descriptor{buffer_address: uint64(q.refs[i].DataPhys())}
	}
	q.program_ring(d)

	// No rx interrupt delay; drains are already batched.
	q.dregs.delay_timer.set(d, 0)

	// Give the device all but the last descriptor; head == tail would
	// read back as an empty ring.
	q.head_index = 0
	q.tail_index = q.len - 1
	hw.MemoryBarrier()
	q.dregs.tail_index.set(d, q.tail_index)

	d.regs.rx_control.set(d, d.rx_control_value())
	return
}

func (d *Dev) rx_control_value() (v reg) {
	// Receive enabled, accept broadcast.
	v = 1<<1 | 1<<15
	if !d.is_82542 {
		// Strip ethernet fcs; the 82542 cannot.
		v |= 1 << 26
	}
	if d.cf.Promiscuous {
		// Unicast and multicast promiscuous.
		v |= 1<<3 | 1<<4
	}
	if d.cf.Loopback {
		// Mac loopback.
		v |= 1 << 6
	}
	// [17:16] buffer size, [25] size extension.
	switch d.cf.RxBufferBytes {
	case 2048:
		// Zero code.
	case 1024:
		v |= 1 << 16
	case 512:
		v |= 2 << 16
	case 256:
		v |= 3 << 16
	case 4096:
		v |= 3<<16 | 1<<25
	case 8192:
		v |= 2<<16 | 1<<25
	case 16384:
		v |= 1<<16 | 1<<25
	}
	return
}

// Returns every slot's buffer to the pool and frees the ring.  Only
// called with dma stopped.
func (q *rx_dma_queue) teardown() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.ring_bytes == nil {
		return
	}
	q.d.pool.FreeRefs(q.refs)
	q.descriptors = nil
	q.refs = nil
	q.split_frame = false
	q.free_ring()
}

// Completed descriptors harvested per drain call.
const rx_drain_burst = 64

// Harvests completed receive descriptors, at most limit per call.
// Each completed slot is refilled before the tail register moves so the
// device never sees a descriptor without a buffer.  Packets are handed
// to the receive handler only after the queue lock is released.
func (q *rx_dma_queue) drain(limit uint) (n uint, more bool) {
	d := q.d

	q.mu.Lock()
	q.tmp_pkts = q.tmp_pkts[:0]
	for n < limit {
		i := q.head_index
		// Status and errors land in one dma write; load them together.
		w := hw.LoadUint32((*uint32)(unsafe.Pointer(&q.ring_bytes[uint(i)*n_bytes_per_descriptor+12])))
		status, errors := uint8(w), uint8(w>>8)
		if status&rx_desc_status_done == 0 {
			break
		}

		x := &q.descriptors[i]
		r := q.refs[i]
		n_packet := uint(x.n_bytes)
		if d.is_82542 && n_packet >= 4 {
			// Fcs was not stripped.
			n_packet -= 4
		}

		eop := status&rx_desc_status_end_of_packet != 0
		ok := eop && !q.split_frame && errors&rx_desc_errors_fatal == 0
		if !eop {
			// Frame spans multiple buffers; not supported, so
			// drop every chunk.
			q.split_frame = true
		} else if q.split_frame {
			q.split_frame = false
		}
		if ok {
			if err := d.pool.AllocRefs(q.spare[:]); err != nil {
				// No replacement buffer; keep this one in the
				// ring and drop the packet.
				d.rx_buffer_drops.Inc(1)
			} else {
				r.SetDataLen(n_packet)
				q.tmp_pkts = append(q.tmp_pkts, RxPacket{pool: d.pool, ref: r, Len: n_packet})
				q.refs[i] = q.spare[0]
			}
		}

		q.descriptors[i] = rx_descriptor{buffer_address: uint64(q.refs[i].DataPhys())}
		q.head_index = q.ring_next(q.head_index)
		q.tail_index = q.ring_next(q.tail_index)
		n++
	}
	if n > 0 {
		// Descriptor rewrites must land before the device sees the
		// new tail.
		hw.MemoryBarrier()
		q.dregs.tail_index.set(d, q.tail_index)

		// More completions already pending means the caller should
		// come straight back.
		w := hw.LoadUint32((*uint32)(unsafe.Pointer(&q.ring_bytes[uint(q.head_index)*n_bytes_per_descriptor+12])))
		more = w&rx_desc_status_done != 0
	}
	q.mu.Unlock()

	if h := d.rx_handler; h != nil {
		for i := range q.tmp_pkts {
			// Handed out packets outlive the staging slice.
			p := q.tmp_pkts[i]
			h(&p)
		}
	} else {
		for i := range q.tmp_pkts {
			q.tmp_pkts[i].Free()
		}
	}
	return
}
