// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"fmt"
	"sync"
	"time"

	"github.com/platinasystems/e1000/elib"
)

type LinkState int

const (
	LinkDown LinkState = iota
	LinkNegotiating
	LinkUp
)

var link_state_names = [...]string{
	LinkDown:        "down",
	LinkNegotiating: "negotiating",
	LinkUp:          "up",
}

func (s LinkState) String() string { return elib.Stringer(link_state_names[:], int(s)) }

// Link is the resolved state of the network link.  Speed is in mbits
// per second; speed and duplex are only meaningful when State is
// LinkUp.
type Link struct {
	State      LinkState
	Speed      uint
	FullDuplex bool
}

func (l Link) String() string {
	if l.State != LinkUp {
		return l.State.String()
	}
	duplex := "half"
	if l.FullDuplex {
		duplex = "full"
	}
	return fmt.Sprintf("up, %d mbps, %s duplex", l.Speed, duplex)
}

type link_tracker struct {
	mu      sync.Mutex
	current Link

	// Zero when no negotiation is pending; otherwise when the current
	// attempt started, for timing it out.
	negotiating_since time.Time
}

// Status register bits.
const (
	status_full_duplex = 1 << 0
	status_link_up     = 1 << 1
)

// Speed and duplex always come from what the mac resolved, never from
// what we asked for.
func link_from_status(s reg) (l Link) {
	if s&status_link_up == 0 {
		return
	}
	l.State = LinkUp
	l.FullDuplex = s&status_full_duplex != 0
	// [7:6] 00 => 10, 01 => 100, 1x => 1000.
	switch s >> 6 & 3 {
	case 0:
		l.Speed = 10
	case 1:
		l.Speed = 100
	default:
		l.Speed = 1000
	}
	return
}

// Link returns the most recently resolved link state.
func (d *Dev) Link() Link {
	d.link.mu.Lock()
	defer d.link.mu.Unlock()
	return d.link.current
}

// Seeds the tracker when the device comes up; autonegotiation has just
// been started by phy or tbi init.
func (d *Dev) link_start() {
	d.link.mu.Lock()
	d.link.current = Link{State: LinkNegotiating}
	d.link.negotiating_since = time.Now()
	cur := d.link.current
	d.link.mu.Unlock()
	if h := d.link_handler; h != nil {
		h(cur)
	}
}

// Reconciles tracker state with the status register.  Runs on link
// status change interrupts and once per poll tick.
func (d *Dev) check_link() {
	s := d.regs.status_read_only.get(d)
	now := time.Now()

	var changed, restart, timed_out bool
	d.link.mu.Lock()
	old := d.link.current
	seen := link_from_status(s)
	switch {
	case seen.State == LinkUp:
		d.link.negotiating_since = time.Time{}
		if old != seen {
			d.link.current = seen
			changed = true
		}
	case old.State == LinkUp:
		// Carrier lost.  Negotiation restarts on the next pass.
		d.link.current = Link{State: LinkDown}
		d.link.negotiating_since = time.Time{}
		changed = true
	default:
		if d.link.negotiating_since.IsZero() {
			restart = true
			d.link.negotiating_since = now
			if old.State != LinkNegotiating {
				d.link.current = Link{State: LinkNegotiating}
				changed = true
			}
		} else if now.Sub(d.link.negotiating_since) > time.Duration(d.cf.LinkTimeout) {
			timed_out = true
			d.link.negotiating_since = time.Time{}
			if old.State != LinkDown {
				d.link.current = Link{State: LinkDown}
				changed = true
			}
		}
	}
	cur := d.link.current
	d.link.mu.Unlock()

	if timed_out {
		d.log.WithError(ErrLinkTimeout).Warn("autonegotiation timed out; will retry")
	}
	if restart {
		d.start_autoneg()
	}
	if changed {
		if h := d.link_handler; h != nil {
			h(cur)
		}
	}
}

func (d *Dev) start_autoneg() {
	if d.phy_media == media_copper {
		if err := d.phy_restart_autoneg(); err != nil {
			d.log.WithError(err).Warn("restart autonegotiation")
		}
	} else {
		d.tbi_restart_autoneg()
	}
}

// Tbi and serdes links negotiate in hardware, 802.3 clause 37.
// Announce full duplex plus the configured pause ability and pulse link
// reset to restart.
func (d *Dev) tbi_restart_autoneg() {
	// [5] full duplex, [31] autoneg enable.
	w := reg(1<<5 | 1<<31)
	if d.cf.FlowControl {
		// [8:7] symmetric and asymmetric pause.
		w |= 3 << 7
	}
	d.regs.tx_config_word.set(d, w)
	// [3] link reset.
	d.regs.control.or(d, 1<<3)
	d.regs.control.andnot(d, 1<<3)
}
