// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"fmt"

	"github.com/rcrowley/go-metrics"

	"github.com/platinasystems/e1000/elib/hw"
)

// EthernetAddress is a 48 bit ieee 802 station address.
type EthernetAddress [6]byte

func (a EthernetAddress) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", a[0], a[1], a[2], a[3], a[4], a[5])
}

// RxPacket is one received frame, backed by a dma buffer on loan from
// the device pool.  Data is valid until Free; every packet handed to
// the receive handler must eventually be freed, and before Stop.
type RxPacket struct {
	pool *hw.BufferPool
	ref  hw.Ref

	// Frame length in bytes, without the trailing crc.
	Len uint
}

func (p *RxPacket) Data() []byte { return p.ref.DataSlice() }

func (p *RxPacket) Free() {
	if p.pool == nil {
		return
	}
	refs := [1]hw.Ref{p.ref}
	p.pool.FreeRefs(refs[:])
	p.pool = nil
}

// Transmit copies one ethernet frame into device buffers and queues it.
// The frame check sequence is appended by hardware.  Fails with
// ErrRingFull when the ring cannot take the frame and ErrNotRunning on
// a stopped device.
func (d *Dev) Transmit(b []byte) error {
	if !d.up.Load() {
		return ErrNotRunning
	}
	return d.tx.transmit(b)
}

// OnPacketReceived registers the receive handler.  Register before
// Start; the handler runs on the device's service goroutine and must
// not call Stop.
func (d *Dev) OnPacketReceived(h func(*RxPacket)) { d.rx_handler = h }

// OnLinkChange registers the link transition handler.  Register before
// Start; the handler runs on the device's service goroutine and must
// not call Stop.
func (d *Dev) OnLinkChange(h func(Link)) { d.link_handler = h }

// Metrics returns the device's statistics registry.  Hardware counters
// appear under their register names and accumulate until the device is
// stopped.
func (d *Dev) Metrics() metrics.Registry { return d.reg_metrics }

// StationAddress returns the address the device is filtering on; valid
// after Start.
func (d *Dev) StationAddress() EthernetAddress { return d.station_addr }

func (d *Dev) String() string { return d.id.String() }

// AddMulticastAddress opens the imperfect multicast filter for a.  The
// hash takes the top 12 bits of the address.
func (d *Dev) AddMulticastAddress(a EthernetAddress) {
	v := uint(a[4])>>4 | uint(a[5])<<4
	i, b := v>>5, v&31
	d.regs.multicast_filter[i].or(d, reg(1)<<b)
}
