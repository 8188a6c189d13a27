// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// Register offsets the model touches, in unified layout; the model
// relocates them for the 82542 the same way the chip does.
const (
	m_ctrl   = 0x0
	m_status = 0x8
	m_mdic   = 0x20
	m_icr    = 0xc0
	m_ims    = 0xd0
	m_imc    = 0xd8
	m_rctl   = 0x100
	m_tctl   = 0x400
	m_txcw   = 0x178
	m_rdbal  = 0x2800
	m_rdbah  = 0x2804
	m_rdlen  = 0x2808
	m_rdh    = 0x2810
	m_rdt    = 0x2818
	m_tdbal  = 0x3800
	m_tdbah  = 0x3804
	m_tdlen  = 0x3808
	m_tdh    = 0x3810
	m_tdt    = 0x3818
	m_ra0_lo = 0x5400
	m_ra0_hi = 0x5404
)

// model_dev is a software 8254x behind a fake register window: a
// goroutine that answers resets and mdio, consumes tx descriptors,
// completes rx descriptors and raises interrupts the way the hardware
// would.
type model_dev struct {
	mac   mac_type
	media phy_media
	bar   []byte
	d     *Dev

	// Address the model pretends the eeprom loaded; nil for parts
	// with a blank eeprom.
	eeprom_address *EthernetAddress

	// Mdio address the model phy answers on.
	phy_address uint32

	// Status register speed code and duplex used when link comes up.
	link_speed_code  uint32
	link_full_duplex bool

	mu         sync.Mutex
	phy_regs   [32]uint16
	ims        uint32
	tdh        uint32
	rdh        uint32
	hold_link  bool
	hold_tx    bool
	tx_partial []byte
	tx_frames  [][]byte

	stop chan struct{}
	done chan struct{}
}

// Dma addresses are identity mapped in tests.
func phys_to_pointer(a uintptr) unsafe.Pointer { return unsafe.Pointer(a) }

func (m *model_dev) reg32(unified uint) *uint32 {
	o, err := translate_reg_offset(m.mac, unified)
	if err != nil {
		panic(err)
	}
	return (*uint32)(unsafe.Pointer(&m.bar[o]))
}

func (m *model_dev) get(unified uint) uint32    { return atomic.LoadUint32(m.reg32(unified)) }
func (m *model_dev) set(unified uint, v uint32) { atomic.StoreUint32(m.reg32(unified), v) }
func (m *model_dev) swap(unified uint, v uint32) uint32 {
	return atomic.SwapUint32(m.reg32(unified), v)
}
func (m *model_dev) or(unified uint, v uint32) {
	p := m.reg32(unified)
	for {
		old := atomic.LoadUint32(p)
		if atomic.CompareAndSwapUint32(p, old, old|v) {
			return
		}
	}
}

func (m *model_dev) run() {
	defer close(m.done)
	for {
		select {
		case <-m.stop:
			return
		default:
		}
		m.step()
		time.Sleep(200 * time.Microsecond)
	}
}

func (m *model_dev) step() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.step_reset()
	m.step_masks()
	m.step_mdio()
	m.step_tbi()
	m.step_tx()
}

// Device reset: self clearing, wipes every register, then the eeprom
// reload restores receive address 0.
func (m *model_dev) step_reset() {
	if m.get(m_ctrl)&(1<<26) == 0 {
		return
	}
	for o := 0; o < len(m.bar); o += 4 {
		atomic.StoreUint32((*uint32)(unsafe.Pointer(&m.bar[o])), 0)
	}
	m.ims, m.tdh, m.rdh = 0, 0, 0
	m.tx_partial = nil
	if m.eeprom_address != nil {
		a := *m.eeprom_address
		m.set(m_ra0_lo, uint32(a[0])|uint32(a[1])<<8|uint32(a[2])<<16|uint32(a[3])<<24)
		m.set(m_ra0_hi, uint32(a[4])|uint32(a[5])<<8|1<<31)
	}
}

// Writes to the mask set/clear registers are consumed and folded into
// the model's interrupt mask.
func (m *model_dev) step_masks() {
	if v := m.swap(m_ims, 0); v != 0 {
		m.ims |= v
	}
	if v := m.swap(m_imc, 0); v != 0 {
		m.ims &^= v
	}
}

// Raises causes the way hardware would: record them, interrupt the
// host if unmasked, clear once the host has taken them.
func (m *model_dev) fire_locked(causes uint32) {
	m.or(m_icr, causes)
	if causes&m.ims != 0 {
		m.d.Interrupt()
	}
	m.set(m_icr, 0)
}

func (m *model_dev) fire(causes uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fire_locked(causes)
}

func (m *model_dev) raise_link_locked() {
	s := uint32(status_link_up) | m.link_speed_code<<6
	if m.link_full_duplex {
		s |= status_full_duplex
	}
	m.set(m_status, s)
	m.fire_locked(1 << irq_link_status_change)
}

// Drops carrier.  The link stays down until the host restarts
// autonegotiation.
func (m *model_dev) set_link_down() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(m_status, 0)
	m.phy_regs[phy_status] &^= phy_status_link_up | phy_status_autoneg_done
	m.fire_locked(1 << irq_link_status_change)
}

func (m *model_dev) step_mdio() {
	if m.media != media_copper {
		return
	}
	v := m.get(m_mdic)
	if v == 0 || v&mdi_ready != 0 {
		return
	}
	op, pa, ra := v>>26&3, v>>21&31, v>>16&31
	if pa != m.phy_address {
		// Vacant addresses float high.
		if op == 2 {
			v |= 0xffff
		}
		m.set(m_mdic, v|mdi_ready)
		return
	}
	switch op {
	case 1:
		m.phy_write(ra, uint16(v))
		m.set(m_mdic, v|mdi_ready)
	case 2:
		m.set(m_mdic, v&^uint32(0xffff)|uint32(m.phy_regs[ra])|mdi_ready)
	}
}

func (m *model_dev) phy_write(ra uint32, v uint16) {
	if ra == phy_control {
		if v&phy_control_reset != 0 {
			m.phy_reset()
			return
		}
		m.phy_regs[ra] = v
		if v&phy_control_restart_autoneg != 0 && !m.hold_link {
			m.phy_regs[phy_status] |= phy_status_autoneg_done | phy_status_link_up
			m.raise_link_locked()
		}
		return
	}
	m.phy_regs[ra] = v
}

func (m *model_dev) phy_reset() {
	m.phy_regs = [32]uint16{}
	m.phy_regs[phy_id1] = 0x0141
	m.phy_regs[phy_id2] = 0x0c50
}

// Fiber parts bring the link up as soon as autoneg is enabled in the
// tx config word.
func (m *model_dev) step_tbi() {
	if m.media == media_copper || m.hold_link {
		return
	}
	if m.get(m_txcw)&(1<<31) != 0 && m.get(m_status)&status_link_up == 0 {
		m.raise_link_locked()
	}
}

func (m *model_dev) step_tx() {
	if m.hold_tx || m.get(m_tctl)&(1<<1) == 0 {
		return
	}
	n := m.get(m_tdlen) / n_bytes_per_descriptor
	if n == 0 {
		return
	}
	tdt := m.get(m_tdt)
	base := uintptr(uint64(m.get(m_tdbal)) | uint64(m.get(m_tdbah))<<32)
	fired := false
	for m.tdh != tdt {
		x := (*tx_descriptor)(phys_to_pointer(base + uintptr(m.tdh)*n_bytes_per_descriptor))
		b := unsafe.Slice((*byte)(phys_to_pointer(uintptr(x.buffer_address))), x.n_bytes)
		m.tx_partial = append(m.tx_partial, b...)
		if x.command&tx_desc_end_of_packet != 0 {
			f := make([]byte, len(m.tx_partial))
			copy(f, m.tx_partial)
			m.tx_frames = append(m.tx_frames, f)
			m.tx_partial = m.tx_partial[:0]
		}
		atomic.StoreUint32((*uint32)(phys_to_pointer(base+uintptr(m.tdh)*n_bytes_per_descriptor+12)),
			tx_desc_status_done)
		if m.tdh++; m.tdh >= n {
			m.tdh = 0
		}
		m.set(m_tdh, m.tdh)
		fired = true
	}
	if fired {
		m.fire_locked(1 << irq_tx_done)
	}
}

func (m *model_dev) consumed_frames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.tx_frames...)
}

func (m *model_dev) wait_tx_frames(t *testing.T, want int) [][]byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for {
		if f := m.consumed_frames(); len(f) >= want {
			return f
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d transmitted frames", want)
		}
		time.Sleep(time.Millisecond)
	}
}

func (m *model_dev) rx_buffer_bytes(rctl uint32) int {
	n := 2048 >> (rctl >> 16 & 3)
	if rctl&(1<<25) != 0 {
		n = 32768 >> (rctl >> 16 & 3)
	}
	return n
}

// Delivers one frame to the host, splitting it across buffers when it
// does not fit in one.  Returns false when receive is disabled or the
// ring has no room.
func (m *model_dev) inject(f []byte, errbits uint8) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	rctl := m.get(m_rctl)
	if rctl&(1<<1) == 0 {
		return false
	}
	n := m.get(m_rdlen) / n_bytes_per_descriptor
	if n == 0 {
		return false
	}
	rdt := m.get(m_rdt)
	bsize := m.rx_buffer_bytes(rctl)
	total := len(f)
	if rctl&(1<<26) == 0 {
		// Not stripping the crc; append a fake one.
		total += 4
	}
	need := (total + bsize - 1) / bsize
	free := int(rdt) - int(m.rdh)
	if free < 0 {
		free += int(n)
	}
	if need > free {
		return false
	}

	base := uintptr(uint64(m.get(m_rdbal)) | uint64(m.get(m_rdbah))<<32)
	for off := 0; off < total; off += bsize {
		chunk := total - off
		if chunk > bsize {
			chunk = bsize
		}
		x := (*rx_descriptor)(phys_to_pointer(base + uintptr(m.rdh)*n_bytes_per_descriptor))
		b := unsafe.Slice((*byte)(phys_to_pointer(uintptr(x.buffer_address))), chunk)
		for i := range b {
			if off+i < len(f) {
				b[i] = f[off+i]
			} else {
				b[i] = 0 // fake crc
			}
		}
		x.n_bytes = uint16(chunk)
		x.checksum = 0
		w := uint32(rx_desc_status_done)
		if off+chunk == total {
			w |= rx_desc_status_end_of_packet | uint32(errbits)<<8
		}
		atomic.StoreUint32((*uint32)(phys_to_pointer(base+uintptr(m.rdh)*n_bytes_per_descriptor+12)), w)
		if m.rdh++; m.rdh >= n {
			m.rdh = 0
		}
		m.set(m_rdh, m.rdh)
	}
	m.fire_locked(1 << irq_rx_timer)
	return true
}

func (m *model_dev) must_inject(t *testing.T, f []byte, errbits uint8) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !m.inject(f, errbits) {
		if time.Now().After(deadline) {
			t.Fatal("timed out injecting frame")
		}
		time.Sleep(time.Millisecond)
	}
}

type test_env struct {
	d     *Dev
	m     *model_dev
	links chan Link
	pkts  chan []byte
}

func new_test_env(t *testing.T, id DevID, cf Config, setup func(m *model_dev)) *test_env {
	t.Helper()
	mac, media, ok := id.device_type()
	require.True(t, ok)
	m := &model_dev{
		mac:              mac,
		media:            media,
		bar:              make([]byte, device_register_window_bytes),
		phy_address:      1,
		link_speed_code:  2,
		link_full_duplex: true,
		stop:             make(chan struct{}),
		done:             make(chan struct{}),
	}
	m.phy_reset()
	addr := EthernetAddress{0x02, 0x00, 0x5e, 0x00, 0x01, 0x01}
	m.eeprom_address = &addr
	if setup != nil {
		setup(m)
	}

	d, err := New(id, m.bar, cf, logrus.New())
	require.NoError(t, err)
	m.d = d

	e := &test_env{d: d, m: m, links: make(chan Link, 64), pkts: make(chan []byte, 256)}
	d.OnLinkChange(func(l Link) { e.links <- l })
	d.OnPacketReceived(func(p *RxPacket) {
		b := make([]byte, len(p.Data()))
		copy(b, p.Data())
		p.Free()
		e.pkts <- b
	})

	go m.run()
	t.Cleanup(func() {
		d.Stop()
		close(m.stop)
		<-m.done
	})
	return e
}

func (e *test_env) wait_link(t *testing.T, want LinkState) Link {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case l := <-e.links:
			if l.State == want {
				return l
			}
		case <-deadline:
			t.Fatalf("timed out waiting for link state %v", want)
		}
	}
}

func (e *test_env) wait_frame(t *testing.T) []byte {
	t.Helper()
	select {
	case b := <-e.pkts:
		return b
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a received frame")
	}
	return nil
}

// An ethernet/ipv4/udp frame with n payload bytes, distinct per seq.
func test_frame(t *testing.T, src, dst EthernetAddress, seq, n int) []byte {
	t.Helper()
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr(src[:]),
		DstMAC:       net.HardwareAddr(dst[:]),
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IP{10, 1, 0, 1},
		DstIP:    net.IP{10, 1, 0, 2},
	}
	udp := &layers.UDP{SrcPort: layers.UDPPort(4000 + seq), DstPort: 9}
	require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
	payload := make([]byte, n)
	for i := range payload {
		payload[i] = byte(seq + i)
	}
	b := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	require.NoError(t, gopacket.SerializeLayers(b, opts, eth, ip, udp, gopacket.Payload(payload)))
	return b.Bytes()
}
