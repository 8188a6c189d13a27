package e1000

import (
	"github.com/rcrowley/go-metrics"

	"github.com/platinasystems/e1000/elib/hw"
)

type counter struct {
	offset   uint32
	is_64bit bool
	name     string
}

// Statistics registers.  They clear on read; 64 bit counters are a
// low/high pair and reading low latches high.  Offsets are the same on
// every chip, including the 82542.
var counters = [...]counter{
	{0x4000, false, "rx crc errors"},
	{0x4004, false, "rx alignment errors"},
	{0x4008, false, "rx symbol errors"},
	{0x400c, false, "rx errors"},
	{0x4010, false, "rx missed packets"},
	{0x4014, false, "tx single collisions"},
	{0x4018, false, "tx excess collisions"},
	{0x401c, false, "tx multiple collisions"},
	{0x4020, false, "tx late collisions"},
	{0x4028, false, "tx collisions"},
	{0x4030, false, "tx deferred"},
	{0x4034, false, "tx no carrier sense"},
	{0x4038, false, "rx sequence errors"},
	{0x403c, false, "rx carrier extension errors"},
	{0x4040, false, "rx length errors"},
	{0x4048, false, "rx xon"},
	{0x404c, false, "tx xon"},
	{0x4050, false, "rx xoff"},
	{0x4054, false, "tx xoff"},
	{0x4058, false, "rx unsupported flow control"},
	{0x405c, false, "rx 64 byte packets"},
	{0x4060, false, "rx 65 to 127 byte packets"},
	{0x4064, false, "rx 128 to 255 byte packets"},
	{0x4068, false, "rx 256 to 511 byte packets"},
	{0x406c, false, "rx 512 to 1023 byte packets"},
	{0x4070, false, "rx 1024 to max byte packets"},
	{0x4074, false, "rx good packets"},
	{0x4078, false, "rx broadcast packets"},
	{0x407c, false, "rx multicast packets"},
	{0x4080, false, "tx good packets"},
	{0x4088, true, "rx good octets"},
	{0x4090, true, "tx good octets"},
	{0x40a0, false, "rx no buffers"},
	{0x40a4, false, "rx undersize packets"},
	{0x40a8, false, "rx fragments"},
	{0x40ac, false, "rx oversize packets"},
	{0x40b0, false, "rx jabbers"},
	{0x40c0, true, "rx total octets"},
	{0x40c8, true, "tx total octets"},
	{0x40d0, false, "rx total packets"},
	{0x40d4, false, "tx total packets"},
	{0x40d8, false, "tx 64 byte packets"},
	{0x40dc, false, "tx 65 to 127 byte packets"},
	{0x40e0, false, "tx 128 to 255 byte packets"},
	{0x40e4, false, "tx 256 to 511 byte packets"},
	{0x40e8, false, "tx 512 to 1023 byte packets"},
	{0x40ec, false, "tx 1024 to max byte packets"},
	{0x40f0, false, "tx multicast packets"},
	{0x40f4, false, "tx broadcast packets"},
	{0x40f8, false, "tx tcp segmentation contexts"},
	{0x40fc, false, "tx tcp segmentation failures"},
}

func (d *Dev) read_counter(c *counter) (v uint64) {
	v = uint64(hw.LoadUint32(d.addr_for_offset32(uint(c.offset))))
	if c.is_64bit {
		v |= uint64(hw.LoadUint32(d.addr_for_offset32(uint(c.offset)+4))) << 32
	}
	return
}

// Registers a metrics counter per statistics register plus the software
// side drop counter.  No device access; safe before Start.
func (d *Dev) counter_init() {
	d.stat_counters = make([]metrics.Counter, len(counters))
	for i := range counters {
		d.stat_counters[i] = metrics.GetOrRegisterCounter(counters[i].name, d.reg_metrics)
	}
	d.rx_buffer_drops = metrics.GetOrRegisterCounter("rx buffer drops", d.reg_metrics)
}

// Reads every statistics register to zero the hardware state, throwing
// the values away.
func (d *Dev) counter_clear() {
	for i := range counters {
		d.read_counter(&counters[i])
	}
}

// Accumulates the clear on read statistics registers into the metrics
// registry.  Must run often enough that no 32 bit counter wraps.
func (d *Dev) counter_update() {
	for i := range counters {
		if v := d.read_counter(&counters[i]); v != 0 {
			d.stat_counters[i].Inc(int64(v))
		}
	}
}
