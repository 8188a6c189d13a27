package e1000

import (
	"fmt"
	"net"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinasystems/e1000/elib"
)

type Config struct {
	// Number of descriptors in each ring; power of two, 8 to 4096.
	RxRingLen uint `yaml:"rx_ring_len"`
	TxRingLen uint `yaml:"tx_ring_len"`

	// Receive buffer size in bytes; one of the sizes the device
	// supports.  Frames larger than one buffer are dropped.
	RxBufferBytes uint `yaml:"rx_buffer_bytes"`

	// Modes offered during autonegotiation: any of 10h, 10f, 100h,
	// 100f, 1000f.  Empty offers all of them.
	Advertise []string `yaml:"advertise"`

	// Honor and send 802.3x pause frames.
	FlowControl bool `yaml:"flow_control"`

	// Accept all unicast and multicast addresses.
	Promiscuous bool `yaml:"promiscuous"`

	// Mac loopback, for self test.
	Loopback bool `yaml:"loopback"`

	// Minimum gap between interrupts in 256 nanosecond units; zero
	// disables throttling.  Ignored by chips without a throttle
	// register.
	InterruptThrottle uint `yaml:"interrupt_throttle"`

	// Station address to use when the eeprom does not supply one.
	StationAddress string `yaml:"station_address"`

	// How long autonegotiation may run before being declared failed.
	LinkTimeout Duration `yaml:"link_timeout"`
}

// Duration is a time.Duration that unmarshals from yaml strings like
// "10s" or "500ms" as well as bare nanosecond counts.
type Duration time.Duration

func (x *Duration) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("duration %q: %v", s, err)
		}
		*x = Duration(v)
		return nil
	}
	var i int64
	if err := n.Decode(&i); err == nil {
		*x = Duration(i)
		return nil
	}
	return fmt.Errorf("duration: want a string like 10s or a nanosecond count")
}

func (x Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(x).String(), nil
}

func DefaultConfig() Config {
	return Config{
		RxRingLen:         256,
		TxRingLen:         256,
		RxBufferBytes:     2048,
		FlowControl:       true,
		InterruptThrottle: 500,
		LinkTimeout:       Duration(10 * time.Second),
	}
}

// ConfigFromYaml unmarshals over the defaults, so absent keys keep
// their default values.
func ConfigFromYaml(b []byte) (c Config, err error) {
	c = DefaultConfig()
	if err = yaml.Unmarshal(b, &c); err != nil {
		return
	}
	err = c.Validate()
	return
}

func valid_ring_len(n uint) bool {
	return n >= 8 && n <= 4096 && elib.IsPow2(elib.Word(n))
}

func (c *Config) Validate() error {
	if !valid_ring_len(c.RxRingLen) {
		return fmt.Errorf("rx ring length %d: want a power of two between 8 and 4096", c.RxRingLen)
	}
	if !valid_ring_len(c.TxRingLen) {
		return fmt.Errorf("tx ring length %d: want a power of two between 8 and 4096", c.TxRingLen)
	}
	switch c.RxBufferBytes {
	case 256, 512, 1024, 2048, 4096, 8192, 16384:
	default:
		return fmt.Errorf("rx buffer size %d: want 256, 512, 1024, 2048, 4096, 8192 or 16384", c.RxBufferBytes)
	}
	if _, err := c.advertise_mask(); err != nil {
		return err
	}
	if c.StationAddress != "" {
		if _, err := c.station_address(); err != nil {
			return err
		}
	}
	if c.LinkTimeout <= 0 {
		return fmt.Errorf("link timeout %v: want positive", time.Duration(c.LinkTimeout))
	}
	return nil
}

const (
	advertise_10_half = 1 << iota
	advertise_10_full
	advertise_100_half
	advertise_100_full
	advertise_1000_full
)

const advertise_all = advertise_10_half | advertise_10_full |
	advertise_100_half | advertise_100_full | advertise_1000_full

func (c *Config) advertise_mask() (m uint, err error) {
	if len(c.Advertise) == 0 {
		return advertise_all, nil
	}
	for _, s := range c.Advertise {
		switch s {
		case "10h":
			m |= advertise_10_half
		case "10f":
			m |= advertise_10_full
		case "100h":
			m |= advertise_100_half
		case "100f":
			m |= advertise_100_full
		case "1000f":
			m |= advertise_1000_full
		default:
			return 0, fmt.Errorf("advertise mode %q: want one of 10h, 10f, 100h, 100f, 1000f", s)
		}
	}
	return
}

func (c *Config) station_address() (a EthernetAddress, err error) {
	m, err := net.ParseMAC(c.StationAddress)
	if err != nil {
		return
	}
	if len(m) != 6 {
		err = fmt.Errorf("station address %q: want a 48 bit address", c.StationAddress)
		return
	}
	copy(a[:], m)
	return
}
