package e1000

import (
	"fmt"
	"time"
)

// Phy registers, ieee 802.3 clause 22.
const (
	phy_control              = 0x00
	phy_status               = 0x01
	phy_id1                  = 0x02
	phy_id2                  = 0x03
	phy_autoneg_advertise    = 0x04
	phy_link_partner_ability = 0x05
	phy_1000t_control        = 0x09
	phy_1000t_status         = 0x0a
)

const (
	phy_control_restart_autoneg = 1 << 9
	phy_control_power_down      = 1 << 11
	phy_control_autoneg_enable  = 1 << 12
	phy_control_loopback        = 1 << 14
	phy_control_reset           = 1 << 15
)

const (
	phy_status_link_up      = 1 << 2
	phy_status_autoneg_done = 1 << 5
)

// Advertisement bits, register 4.
const (
	phy_advertise_csma       = 1 << 0
	phy_advertise_10_half    = 1 << 5
	phy_advertise_10_full    = 1 << 6
	phy_advertise_100_half   = 1 << 7
	phy_advertise_100_full   = 1 << 8
	phy_advertise_pause      = 1 << 10
	phy_advertise_asym_pause = 1 << 11
)

// 1000base-t control, register 9.
const (
	phy_advertise_1000_half = 1 << 8
	phy_advertise_1000_full = 1 << 9
)

// Mdi control register fields beyond [15:0] data, [20:16] phy register
// and [25:21] phy address.
const (
	mdi_write = 1 << 26
	mdi_read  = 2 << 26
	mdi_ready = 1 << 28
	mdi_error = 1 << 30
)

// A single phy register read or write takes 64 mdc cycles at 2.5 mhz;
// allow far longer before declaring the bus wedged.
const mdi_timeout = 64 * time.Millisecond

func (d *Dev) rw_phy_reg(phy_address, reg_index, v reg, is_read bool) (x reg, err error) {
	c := reg_index<<16 | phy_address<<21
	if is_read {
		c |= mdi_read
	} else {
		c |= mdi_write | v&0xffff
	}
	d.regs.mdi_control.set(d, c)
	start := time.Now()
	for {
		if x = d.regs.mdi_control.get(d); x&mdi_ready != 0 {
			break
		}
		if time.Since(start) > mdi_timeout {
			return 0, fmt.Errorf("%w: mdio timeout, phy %d register %d", ErrDevice, phy_address, reg_index)
		}
		time.Sleep(10 * time.Microsecond)
	}
	if x&mdi_error != 0 {
		return 0, fmt.Errorf("%w: mdio error, phy %d register %d", ErrDevice, phy_address, reg_index)
	}
	x &= 0xffff
	return
}

func (d *Dev) read_phy_reg(i reg) (reg, error) { return d.rw_phy_reg(d.phy_address, i, 0, true) }

func (d *Dev) write_phy_reg(i, v reg) (err error) {
	_, err = d.rw_phy_reg(d.phy_address, i, v, false)
	return
}

// Scans mdio addresses for a responding phy and records its address and
// id.  Vacant addresses read as all ones or all zeros.
func (d *Dev) probe_phy() error {
	for a := reg(0); a < 32; a++ {
		id1, err := d.rw_phy_reg(a, phy_id1, 0, true)
		if err != nil || id1 == 0xffff || id1 == 0 {
			continue
		}
		id2, err := d.rw_phy_reg(a, phy_id2, 0, true)
		if err != nil {
			continue
		}
		d.phy_address = a
		d.phy_id = uint32(id1)<<16 | uint32(id2)
		return nil
	}
	return fmt.Errorf("%w: no phy found", ErrDevice)
}

// Resets the phy, advertises the configured modes and starts
// autonegotiation.
func (d *Dev) phy_init() (err error) {
	if err = d.probe_phy(); err != nil {
		return
	}
	if err = d.write_phy_reg(phy_control, phy_control_reset); err != nil {
		return
	}
	// Reset self clears within half a millisecond on these phys.
	time.Sleep(time.Millisecond)

	adv, adv_1000 := d.advertise_values()
	if err = d.write_phy_reg(phy_autoneg_advertise, adv); err != nil {
		return
	}
	if err = d.write_phy_reg(phy_1000t_control, adv_1000); err != nil {
		return
	}
	return d.phy_restart_autoneg()
}

func (d *Dev) phy_restart_autoneg() error {
	return d.write_phy_reg(phy_control, phy_control_autoneg_enable|phy_control_restart_autoneg)
}

func (d *Dev) advertise_values() (adv, adv_1000 reg) {
	m := d.advertise
	adv = phy_advertise_csma
	if m&advertise_10_half != 0 {
		adv |= phy_advertise_10_half
	}
	if m&advertise_10_full != 0 {
		adv |= phy_advertise_10_full
	}
	if m&advertise_100_half != 0 {
		adv |= phy_advertise_100_half
	}
	if m&advertise_100_full != 0 {
		adv |= phy_advertise_100_full
	}
	if d.cf.FlowControl {
		adv |= phy_advertise_pause | phy_advertise_asym_pause
	}
	if m&advertise_1000_full != 0 {
		adv_1000 = phy_advertise_1000_full
	}
	return
}
