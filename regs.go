// Driver for Intel 8254x Gigabit Ethernet controllers.
package e1000

import (
	"unsafe"

	"github.com/platinasystems/e1000/elib/hw"
)

type reg hw.Reg32

func (d *Dev) addr_for_offset32(offset uint) *uint32 {
	return (*uint32)(unsafe.Pointer(&d.mmaped_regs[offset]))
}
func (r *reg) offset() uint { return uint(uintptr(unsafe.Pointer(r)) - hw.RegsBaseAddress) }
func (r *reg) addr(d *Dev) *uint32 {
	o := r.offset()
	if d.is_82542 {
		o = d.must_translate_reg_offset(o)
	}
	return d.addr_for_offset32(o)
}
func (r *reg) get(d *Dev) reg    { return reg(hw.LoadUint32(r.addr(d))) }
func (r *reg) set(d *Dev, v reg) { hw.StoreUint32(r.addr(d), uint32(v)) }
func (r *reg) or(d *Dev, v reg) (x reg) {
	x = r.get(d) | v
	r.set(d, x)
	return
}
func (r *reg) andnot(d *Dev, v reg) (x reg) {
	x = r.get(d) &^ v
	r.set(d, x)
	return
}

type regs struct {
	/* [0] full duplex
	   [3] link reset
	   [5] auto speed detection enable
	   [6] set link up
	   [7] invert loss of signal
	   [9:8] speed 0 10m, 1 100m, 2 1g
	   [11] force speed
	   [12] force duplex
	   [26] global device reset
	   [27] rx flow control enable
	   [28] tx flow control enable
	   [30] vlan mode enable
	   [31] phy reset */
	control       reg
	control_alias reg

	/* [0] full duplex
	   [1] link is up
	   [3:2] function id
	   [4] tx paused
	   [5] tbi mode
	   [7:6] speed 0 10m, 1 100m, 2/3 1g */
	status_read_only reg
	_                [0x10 - 0xc]byte

	/* [0] clock input
	   [1] chip select
	   [2] data input
	   [3] data output
	   [6] request access
	   [7] grant access
	   [8] eeprom present */
	eeprom_control reg

	/* [0] start read
	   [4] read done
	   [15:8] address
	   [31:16] data */
	eeprom_read reg

	/* [6:0] software definable pins
	   [13:7] pin directions
	   [17] relaxed ordering disable
	   [19] phy interrupt
	   [31] driver loaded */
	extended_control reg

	flash_access reg

	/* [15:0] data
	   [20:16] phy register address
	   [25:21] phy address
	   [27:26] op 1 write, 2 read
	   [28] ready
	   [29] interrupt enable
	   [30] error */
	mdi_control reg
	_           [0x28 - 0x24]byte

	flow_control_address_lo reg
	flow_control_address_hi reg
	flow_control_type       reg
	_                       [0x38 - 0x34]byte

	vlan_ethernet_type reg
	_                  [0xc0 - 0x3c]byte

	/* [0] tx descriptor written back
	   [1] tx queue empty
	   [2] link state change
	   [3] rx sequence error
	   [4] rx descriptor minimum threshold
	   [6] rx overrun
	   [7] rx timer
	   [9] mdio access complete
	   [10] rx ordered sets
	   [15] tx descriptor low threshold
	   [16] small rx packet
	   Read clears all causes. */
	interrupt_cause_read reg

	/* Interval in 256ns units between interrupts. */
	interrupt_throttle reg

	interrupt_cause_set     reg
	_                       reg
	interrupt_mask_set_read reg
	_                       reg
	interrupt_mask_clear    reg
	_                       [0x100 - 0xdc]byte

	/* [1] rx enable
	   [2] store bad packets
	   [3] unicast promiscuous
	   [4] multicast promiscuous
	   [5] long packet enable
	   [7:6] loopback mode 0 none, 3 mac
	   [9:8] rx descriptor minimum threshold 0 1/2, 1 1/4, 2 1/8
	   [13:12] multicast offset
	   [15] broadcast accept
	   [17:16] buffer size 0 2k, 1 1k, 2 512, 3 256 (x16 when [25] set)
	   [25] buffer size extension
	   [26] strip ethernet crc */
	rx_control reg
	_          [0x170 - 0x104]byte

	flow_control_tx_timer reg
	_                     [0x178 - 0x174]byte

	/* [15:0] tx config word for tbi mode autoneg
	   [30] autoneg enable
	   [31] tx config word valid */
	tx_config_word reg
	_              [0x180 - 0x17c]byte

	rx_config_word reg
	_              [0x400 - 0x184]byte

	/* [1] tx enable
	   [3] pad short packets
	   [11:4] collision threshold
	   [21:12] collision distance
	   [22] software xoff
	   [24] retransmit on late collision */
	tx_control reg
	_          [0x410 - 0x404]byte

	/* [9:0] ipgt, [19:10] ipgr1, [29:20] ipgr2 */
	tx_inter_packet_gap reg
	_                   [0xe00 - 0x414]byte

	led_control reg
	_           [0x1000 - 0xe04]byte

	/* [15:0] rx allocation in kb; rest of 40kb (64kb on 82544) is tx. */
	packet_buffer_allocation reg
	_                        [0x2160 - 0x1004]byte

	/* [15:3] threshold in 8 byte units
	   [31] xon enable */
	flow_control_rx_threshold_lo reg
	_                            reg
	flow_control_rx_threshold_hi reg
	_                            [0x2800 - 0x216c]byte

	rx_dma dma_regs
	_      reg

	/* [5:0] prefetch threshold
	   [13:8] host threshold
	   [21:16] write back threshold
	   [24] granularity 0 cache line, 1 descriptor */
	rx_descriptor_control reg
	_                     [0x3410 - 0x282c]byte

	tx_fifo_head reg
	_            reg
	tx_fifo_tail reg
	_            [0x3800 - 0x341c]byte

	tx_dma dma_regs
	_      reg

	tx_descriptor_control reg
	_                     [0x4000 - 0x382c]byte

	/* Statistics block; all counters clear on read. */
	stats [64]reg
	_     [0x5200 - 0x4100]byte

	multicast_filter [128]reg

	rx_ethernet_address [16]ethernet_address_reg
	_                   [0x5600 - 0x5480]byte

	vlan_filter [128]reg
}

type ethernet_address_reg [2]reg

type ethernet_address_entry struct {
	valid bool
	EthernetAddress
}

func (r *ethernet_address_reg) get(d *Dev, e *ethernet_address_entry) {
	var v [2]reg
	v[0], v[1] = r[0].get(d), r[1].get(d)
	e.valid = v[1]&(1<<31) != 0
	for i := range e.EthernetAddress {
		e.EthernetAddress[i] = byte(v[i/4] >> uint(8*(i%4)))
	}
}

func (r *ethernet_address_reg) set(d *Dev, e *ethernet_address_entry) {
	var v [2]reg
	for i, b := range e.EthernetAddress {
		v[i/4] |= reg(b) << uint(8*(i%4))
	}
	if e.valid {
		v[1] |= 1 << 31
	}
	// High word last; valid bit arms the entry.
	r[0].set(d, v[0])
	r[1].set(d, v[1])
}
