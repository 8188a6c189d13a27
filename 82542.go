package e1000

import (
	"fmt"
)

// Feature availability by chip generation. The 82542 predates the
// unified register layout; later gaps follow mac_type order.
func (t mac_type) has_mdic() bool               { return t != mac_82542 }
func (t mac_type) has_eeprom_read() bool        { return t >= mac_82540 }
func (t mac_type) has_interrupt_throttle() bool { return t >= mac_82540 }
func (t mac_type) has_descriptor_control() bool { return t >= mac_82544 }
func (t mac_type) has_flash() bool              { return t == mac_82541 || t == mac_82547 }
func (t mac_type) has_tbi_regs() bool           { return t <= mac_82546 }

// translate_reg_offset maps a register's unified (82543 and later)
// byte offset to its offset on the given chip. Pure function: the
// result depends only on the arguments. Registers a chip does not
// have fail with ErrUnsupportedRegister, never a guessed offset.
func translate_reg_offset(t mac_type, o uint) (x uint, err error) {
	x = o
	if !reg_offset_supported(t, o) {
		err = fmt.Errorf("%w: offset 0x%04x on %s", ErrUnsupportedRegister, o, t)
		return
	}
	if t != mac_82542 {
		return
	}
	switch {
	case o >= 0x5200 && o < 0x5400:
		x = o - 0x5200 + 0x0200 // multicast filter
	case o >= 0x5400 && o < 0x5480:
		x = o - 0x5400 + 0x0040 // rx ethernet address
	case o >= 0x5600 && o < 0x5800:
		x = o - 0x5600 + 0x0600 // vlan filter
	case o == 0x2820:
		x = 0x0108 // rx delay timer
	case o == 0x2800:
		x = 0x0110 // rx descriptor address lo
	case o == 0x2804:
		x = 0x0114 // rx descriptor address hi
	case o == 0x2808:
		x = 0x0118 // rx descriptor length
	case o == 0x2810:
		x = 0x0120 // rx head
	case o == 0x2818:
		x = 0x0128 // rx tail
	case o == 0x2168:
		x = 0x0160 // flow control threshold hi
	case o == 0x2160:
		x = 0x0168 // flow control threshold lo
	case o == 0x3800:
		x = 0x0420 // tx descriptor address lo
	case o == 0x3804:
		x = 0x0424 // tx descriptor address hi
	case o == 0x3808:
		x = 0x0428 // tx descriptor length
	case o == 0x3810:
		x = 0x0430 // tx head
	case o == 0x3818:
		x = 0x0438 // tx tail
	case o == 0x3820:
		x = 0x0440 // tx delay timer
	case o == 0x3410:
		x = 0x8010 // tx fifo head
	case o == 0x3418:
		x = 0x8018 // tx fifo tail
	}
	return
}

func reg_offset_supported(t mac_type, o uint) bool {
	switch o {
	case 0x14: // eeprom read
		return t.has_eeprom_read()
	case 0x18, 0xe00: // extended control, led control
		return t != mac_82542
	case 0x1c: // flash access
		return t.has_flash()
	case 0x20: // mdi control
		return t.has_mdic()
	case 0xc4: // interrupt throttle
		return t.has_interrupt_throttle()
	case 0x178, 0x180: // tx/rx config word
		return t.has_tbi_regs()
	case 0x2828, 0x3828: // rx/tx descriptor control
		return t.has_descriptor_control()
	}
	return true
}

func (d *Dev) must_translate_reg_offset(o uint) (x uint) {
	x, err := translate_reg_offset(d.mac, o)
	if err != nil {
		panic(err)
	}
	return
}

// check_capabilities verifies every register this driver will touch
// exists on the adapter's chip. Run once at start; a failure means
// the driver is bound to hardware it does not understand.
func (d *Dev) check_capabilities() (err error) {
	r := d.regs
	required := []*reg{
		&r.control,
		&r.status_read_only,
		&r.interrupt_cause_read,
		&r.interrupt_mask_set_read,
		&r.interrupt_mask_clear,
		&r.rx_control,
		&r.tx_control,
		&r.tx_inter_packet_gap,
		&r.flow_control_address_lo,
		&r.flow_control_address_hi,
		&r.flow_control_type,
		&r.flow_control_tx_timer,
		&r.flow_control_rx_threshold_lo,
		&r.flow_control_rx_threshold_hi,
		&r.rx_dma.descriptor_address[0],
		&r.rx_dma.descriptor_address[1],
		&r.rx_dma.n_descriptor_bytes,
		&r.rx_dma.head_index,
		&r.rx_dma.tail_index,
		&r.rx_dma.delay_timer,
		&r.tx_dma.descriptor_address[0],
		&r.tx_dma.descriptor_address[1],
		&r.tx_dma.n_descriptor_bytes,
		&r.tx_dma.head_index,
		&r.tx_dma.tail_index,
		&r.tx_dma.delay_timer,
		&r.multicast_filter[0],
		&r.rx_ethernet_address[0][0],
		&r.rx_ethernet_address[0][1],
	}
	if d.phy_media == media_copper {
		required = append(required, &r.mdi_control)
	} else {
		required = append(required, &r.tx_config_word, &r.rx_config_word)
	}
	if d.mac.has_interrupt_throttle() {
		required = append(required, &r.interrupt_throttle)
	}
	if d.mac.has_descriptor_control() {
		required = append(required, &r.rx_descriptor_control, &r.tx_descriptor_control)
	}
	for _, x := range required {
		if _, err = translate_reg_offset(d.mac, x.offset()); err != nil {
			return
		}
	}
	return
}
