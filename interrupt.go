// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"sync/atomic"
	"time"

	"github.com/platinasystems/e1000/elib"
)

type interrupt uint

const (
	irq_tx_done            interrupt = 0
	irq_tx_queue_empty     interrupt = 1
	irq_link_status_change interrupt = 2
	irq_rx_sequence_error  interrupt = 3
	irq_rx_low_descriptors interrupt = 4
	irq_rx_overrun         interrupt = 6
	irq_rx_timer           interrupt = 7
	irq_mdio_done          interrupt = 9
	irq_rx_config_word     interrupt = 10
	irq_phy                interrupt = 12
	irq_tx_low_descriptors interrupt = 15
	irq_small_packet       interrupt = 16
)

var irq_strings = [...]string{
	irq_tx_done:            "tx descriptor done",
	irq_tx_queue_empty:     "tx queue empty",
	irq_link_status_change: "link status change",
	irq_rx_sequence_error:  "rx sequence error",
	irq_rx_low_descriptors: "rx low descriptors",
	irq_rx_overrun:         "rx overrun",
	irq_rx_timer:           "rx timer",
	irq_mdio_done:          "mdio done",
	irq_rx_config_word:     "rx config word",
	irq_phy:                "phy",
	irq_tx_low_descriptors: "tx low descriptors",
	irq_small_packet:       "small packet",
}

func (i interrupt) String() string { return elib.StringerHex(irq_strings[:], int(i)) }

const all_interrupts = 1<<irq_tx_done | 1<<irq_tx_queue_empty | 1<<irq_link_status_change |
	1<<irq_rx_sequence_error | 1<<irq_rx_low_descriptors | 1<<irq_rx_overrun |
	1<<irq_rx_timer | 1<<irq_rx_config_word | 1<<irq_tx_low_descriptors |
	1<<irq_small_packet

// InterruptEnable sets or clears the device interrupt mask for every
// cause the driver handles.
func (d *Dev) InterruptEnable(enable bool) {
	if enable {
		d.regs.interrupt_mask_set_read.set(d, all_interrupts)
	} else {
		d.regs.interrupt_mask_clear.set(d, ^reg(0))
	}
}

func (d *Dev) or_irq_status(v uint32) {
	for {
		old := atomic.LoadUint32(&d.irq_status)
		if atomic.CompareAndSwapUint32(&d.irq_status, old, old|v) {
			return
		}
	}
}

func (d *Dev) take_irq_status() uint32 {
	for {
		old := atomic.LoadUint32(&d.irq_status)
		if old == 0 {
			return 0
		}
		if atomic.CompareAndSwapUint32(&d.irq_status, old, 0) {
			return old
		}
	}
}

// Interrupt acknowledges a device interrupt and schedules its causes
// for the service goroutine.  Reading the cause register clears it, so
// the pending causes are accumulated until the service goroutine takes
// them.  Safe to call from any goroutine.
func (d *Dev) Interrupt() {
	c := d.regs.interrupt_cause_read.get(d)
	if c == 0 {
		return
	}
	d.or_irq_status(uint32(c))
	d.kick()
}

func (d *Dev) kick() {
	select {
	case d.irq_wakeup <- struct{}{}:
	default:
	}
}

const (
	poll_interval = 500 * time.Millisecond

	// Poll ticks between statistics harvests.  The narrowest hardware
	// counters are 32 bits and cannot wrap this fast.
	counter_poll_ticks = 30
)

func (d *Dev) interrupt_service() {
	defer d.wg.Done()
	t := time.NewTicker(poll_interval)
	defer t.Stop()
	n_ticks := 0
	for {
		select {
		case <-d.stop_ch:
			return
		case <-d.irq_wakeup:
			d.dispatch_interrupts()
		case <-t.C:
			d.dispatch_interrupts()
			d.poll()
			if n_ticks++; n_ticks >= counter_poll_ticks {
				n_ticks = 0
				d.counter_update()
			}
		}
	}
}

// Periodic housekeeping independent of interrupts, so a lost interrupt
// never wedges the device.
func (d *Dev) poll() {
	d.tx.reclaim_completed()
	if _, more := d.rx.drain(rx_drain_burst); more {
		d.or_irq_status(1 << irq_rx_timer)
		d.kick()
	}
	d.check_link()
}

func (d *Dev) dispatch_interrupts() {
	s := d.take_irq_status()
	if s == 0 {
		return
	}
	elib.Word(s).ForeachSetBit(func(i uint) { d.interrupt_dispatch(i) })
}

func (d *Dev) interrupt_dispatch(i uint) {
	switch interrupt(i) {
	case irq_tx_done, irq_tx_queue_empty, irq_tx_low_descriptors:
		d.tx.reclaim_completed()
	case irq_rx_timer, irq_rx_low_descriptors, irq_small_packet:
		// Bounded burst per dispatch; repost the cause if more
		// completions are waiting so stop requests get a look in.
		if _, more := d.rx.drain(rx_drain_burst); more {
			d.or_irq_status(uint32(1) << i)
			d.kick()
		}
	case irq_link_status_change, irq_rx_config_word:
		d.check_link()
	case irq_rx_overrun:
		d.rx.drain(rx_drain_burst)
		d.device_error(irq_rx_overrun)
	case irq_rx_sequence_error:
		d.device_error(irq_rx_sequence_error)
	default:
		d.log.WithField("cause", interrupt(i).String()).Debug("unhandled interrupt")
	}
}

const (
	device_error_limit  = 8
	device_error_window = time.Minute
)

// Counts rx overrun and sequence errors; a burst of them within the
// window means the device is wedged badly enough to warrant a restart.
// Runs only on the service goroutine.
func (d *Dev) device_error(cause interrupt) {
	d.log.WithField("cause", cause.String()).Warn("device error")
	now := time.Now()
	h := d.error_history[:0]
	for _, t := range d.error_history {
		if now.Sub(t) < device_error_window {
			h = append(h, t)
		}
	}
	h = append(h, now)
	d.error_history = h
	if len(h) >= device_error_limit {
		d.error_history = h[:0]
		d.log.Error("persistent device errors, restarting")
		if err := d.restart_from_error(); err != nil {
			d.log.WithError(err).Error("restart failed")
		}
	}
}
