// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rcrowley/go-metrics"
	"github.com/sirupsen/logrus"

	"github.com/platinasystems/e1000/elib/hw"
)

var (
	ErrUnsupportedRegister = errors.New("register not present on this chip")
	ErrRingFull            = errors.New("descriptor ring full")
	ErrOutOfMemory         = errors.New("out of dma memory")
	ErrDevice              = errors.New("device error")
	ErrLinkTimeout         = errors.New("link autonegotiation timed out")
	ErrNotRunning          = errors.New("device not started")
)

// Expected size of the device's memory mapped register window (bar 0).
const device_register_window_bytes = 1 << 17

// Dev is a single 8254x device.
type Dev struct {
	// Serializes lifecycle operations; never taken on the datapath.
	mu      sync.Mutex
	running bool
	up      atomic.Bool

	regs        *regs
	mmaped_regs []byte

	id        DevID
	mac       mac_type
	phy_media phy_media
	is_82542  bool

	phy_address reg
	phy_id      uint32

	cf        Config
	advertise uint

	log         *logrus.Entry
	reg_metrics metrics.Registry

	stat_counters   []metrics.Counter
	rx_buffer_drops metrics.Counter

	pool *hw.BufferPool

	tx tx_dma_queue
	rx rx_dma_queue

	link link_tracker

	rx_handler   func(*RxPacket)
	link_handler func(Link)

	irq_status uint32
	irq_wakeup chan struct{}
	stop_ch    chan struct{}
	wg         sync.WaitGroup

	error_history []time.Time

	station_addr EthernetAddress
}

// New binds a driver instance to a device's mapped register window.
// regs_window must be the device's complete bar 0 mapping.  The device
// stays idle until Start.
func New(id DevID, regs_window []byte, cf Config, l *logrus.Logger) (d *Dev, err error) {
	t, m, ok := id.device_type()
	if !ok {
		return nil, fmt.Errorf("device id %s: not an 8254x", id)
	}
	if err = cf.Validate(); err != nil {
		return nil, err
	}
	if len(regs_window) < device_register_window_bytes {
		return nil, fmt.Errorf("register window is %d bytes: want at least %d",
			len(regs_window), device_register_window_bytes)
	}
	if l == nil {
		l = logrus.StandardLogger()
	}
	d = &Dev{
		id:          id,
		mac:         t,
		phy_media:   m,
		is_82542:    t == mac_82542,
		cf:          cf,
		mmaped_regs: regs_window,
		log:         l.WithField("device", id.String()),
		reg_metrics: metrics.NewRegistry(),
		irq_wakeup:  make(chan struct{}, 1),
	}
	d.regs = (*regs)(hw.RegsBasePointer)
	d.advertise, _ = cf.advertise_mask()
	d.counter_init()
	if err = d.check_capabilities(); err != nil {
		return nil, err
	}
	return
}

// Start resets the device and brings up dma, link negotiation and
// interrupts.  Register handlers before calling Start.
func (d *Dev) Start() (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return nil
	}
	if err = d.bring_up(); err != nil {
		return
	}
	d.stop_ch = make(chan struct{})
	d.wg.Add(1)
	go d.interrupt_service()
	d.running = true
	d.log.Info("started")
	return
}

// Stop masks interrupts, halts dma and releases rings and buffers.
// Handlers never run again once Stop returns.  Received packets still
// held by the application must be freed before calling Stop.
func (d *Dev) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.up.Store(false)
	stop := d.stop_ch
	d.mu.Unlock()

	close(stop)
	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.quiesce()

	d.link.mu.Lock()
	was := d.link.current
	d.link.current = Link{}
	d.link.negotiating_since = time.Time{}
	d.link.mu.Unlock()
	if was.State != LinkDown {
		if h := d.link_handler; h != nil {
			h(Link{})
		}
	}
	d.log.Info("stopped")
}

// Recovers a wedged device without tearing down the service goroutine:
// quiesce, then run the normal bring up again.  Runs on the service
// goroutine; Stop can slip in between the running check and our lock,
// which is why a stopped device is re-checked under d.mu.
func (d *Dev) restart_from_error() (err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running {
		return ErrNotRunning
	}
	d.up.Store(false)
	d.quiesce()
	return d.bring_up()
}

func (d *Dev) bring_up() (err error) {
	if err = d.reset(); err != nil {
		return
	}
	if err = d.set_station_address(); err != nil {
		return
	}
	d.filter_init()
	d.flow_control_init()
	// 802.1q tag ethernet type.
	d.regs.vlan_ethernet_type.set(d, 0x8100)
	if d.mac.has_interrupt_throttle() && d.cf.InterruptThrottle != 0 {
		d.regs.interrupt_throttle.set(d, reg(d.cf.InterruptThrottle))
	}

	d.pool = &hw.BufferPool{
		Name:           d.id.String(),
		BufferTemplate: hw.BufferTemplate{Size: d.cf.RxBufferBytes},
	}
	d.pool.Init()
	if err = d.rx_queue_init(); err != nil {
		d.release_datapath()
		return
	}
	if err = d.tx_queue_init(); err != nil {
		d.release_datapath()
		return
	}

	if d.phy_media == media_copper {
		// [5] auto speed detect, [6] set link up.
		d.regs.control.or(d, 1<<5|1<<6)
		if err = d.phy_init(); err != nil {
			d.release_datapath()
			return
		}
	} else {
		d.tbi_restart_autoneg()
	}

	d.up.Store(true)
	d.InterruptEnable(true)
	d.write_flush()
	d.link_start()
	return
}

// Device reset; self clearing.  The eeprom reload that follows needs a
// little extra time before derived registers are meaningful.
func (d *Dev) reset() (err error) {
	d.InterruptEnable(false)
	d.regs.interrupt_cause_read.get(d)

	// [26] device reset.
	d.regs.control.or(d, 1<<26)
	start := time.Now()
	for d.regs.control.get(d)&(1<<26) != 0 {
		if time.Since(start) > 10*time.Millisecond {
			return fmt.Errorf("%w: reset did not complete", ErrDevice)
		}
		time.Sleep(100 * time.Microsecond)
	}
	time.Sleep(2 * time.Millisecond)

	// Reset re-arms interrupt causes; mask and flush them again.
	d.InterruptEnable(false)
	d.regs.interrupt_cause_read.get(d)
	return
}

// Masks interrupts, stops dma, harvests final statistics and frees the
// datapath.  In flight descriptor writes get a moment to land before
// ring memory goes away.
func (d *Dev) quiesce() {
	d.InterruptEnable(false)
	d.regs.interrupt_cause_read.get(d)
	// [1] rx/tx enable.
	d.regs.rx_control.andnot(d, 1<<1)
	d.regs.tx_control.andnot(d, 1<<1)
	d.write_flush()
	time.Sleep(10 * time.Millisecond)
	d.counter_update()
	d.release_datapath()
}

func (d *Dev) release_datapath() {
	d.tx.teardown()
	d.rx.teardown()
	if d.pool != nil {
		d.pool.Free()
		d.pool = nil
	}
}

// Station address comes from the eeprom autoload when the part has a
// valid one; explicit configuration overrides it.  The 82542 loads
// nothing, so there it must be configured.
func (d *Dev) set_station_address() (err error) {
	var e ethernet_address_entry
	d.regs.rx_ethernet_address[0].get(d, &e)
	switch {
	case d.cf.StationAddress != "":
		d.station_addr, _ = d.cf.station_address()
		e = ethernet_address_entry{valid: true, EthernetAddress: d.station_addr}
		d.regs.rx_ethernet_address[0].set(d, &e)
	case e.valid:
		d.station_addr = e.EthernetAddress
	default:
		return fmt.Errorf("%w: no station address in eeprom and none configured", ErrDevice)
	}
	d.log.WithField("address", d.station_addr.String()).Info("station address")
	return
}

// Receive address 0 holds the station address; all other filter state
// starts empty.
func (d *Dev) filter_init() {
	var empty ethernet_address_entry
	for i := 1; i < len(d.regs.rx_ethernet_address); i++ {
		d.regs.rx_ethernet_address[i].set(d, &empty)
	}
	for i := range d.regs.multicast_filter {
		d.regs.multicast_filter[i].set(d, 0)
	}
	for i := range d.regs.vlan_filter {
		d.regs.vlan_filter[i].set(d, 0)
	}
}

// 802.3x constants: the pause frame destination address and ethernet
// type, which the mac needs spelled out.
const (
	flow_control_address_lo_value = 0x00c28001
	flow_control_address_hi_value = 0x00000100
	flow_control_type_value       = 0x8808
	flow_control_pause_time       = 0x0680
)

func (d *Dev) flow_control_init() {
	d.regs.flow_control_address_lo.set(d, flow_control_address_lo_value)
	d.regs.flow_control_address_hi.set(d, flow_control_address_hi_value)
	d.regs.flow_control_type.set(d, flow_control_type_value)
	d.regs.flow_control_tx_timer.set(d, flow_control_pause_time)
	if d.cf.FlowControl {
		// Assert xoff when the rx packet buffer fills past 40k,
		// xon again below 32k.  [31] of the low threshold enables
		// xon frames.
		d.regs.flow_control_rx_threshold_hi.set(d, 40<<10)
		d.regs.flow_control_rx_threshold_lo.set(d, 32<<10|1<<31)
		// [27] rx flow control, [28] tx flow control.
		d.regs.control.or(d, 1<<27|1<<28)
	} else {
		d.regs.flow_control_rx_threshold_hi.set(d, 0)
		d.regs.flow_control_rx_threshold_lo.set(d, 0)
		d.regs.control.andnot(d, 1<<27|1<<28)
	}
}

// Reads a benign register to push posted writes out to the device.
func (d *Dev) write_flush() { d.regs.status_read_only.get(d) }
