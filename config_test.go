// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfigValid(t *testing.T) {
	cf := DefaultConfig()
	require.NoError(t, cf.Validate())
	m, err := cf.advertise_mask()
	require.NoError(t, err)
	require.Equal(t, uint(advertise_all), m)
}

func TestConfigFromYaml(t *testing.T) {
	cf, err := ConfigFromYaml([]byte(`
rx_ring_len: 64
advertise: [100f, 1000f]
link_timeout: 2s
station_address: "02:aa:bb:cc:dd:ee"
`))
	require.NoError(t, err)
	require.Equal(t, uint(64), cf.RxRingLen)
	// Unmentioned keys keep their defaults.
	require.Equal(t, uint(256), cf.TxRingLen)
	require.Equal(t, uint(2048), cf.RxBufferBytes)
	require.True(t, cf.FlowControl)
	require.Equal(t, 2*time.Second, time.Duration(cf.LinkTimeout))

	m, err := cf.advertise_mask()
	require.NoError(t, err)
	require.Equal(t, uint(advertise_100_full|advertise_1000_full), m)

	a, err := cf.station_address()
	require.NoError(t, err)
	require.Equal(t, EthernetAddress{0x02, 0xaa, 0xbb, 0xcc, 0xdd, 0xee}, a)
	require.Equal(t, "02:aa:bb:cc:dd:ee", a.String())
}

func TestConfigDurationForms(t *testing.T) {
	cf, err := ConfigFromYaml([]byte("link_timeout: 1500000000\n"))
	require.NoError(t, err)
	require.Equal(t, 1500*time.Millisecond, time.Duration(cf.LinkTimeout))

	_, err = ConfigFromYaml([]byte("link_timeout: soon\n"))
	require.Error(t, err)
}

func TestConfigValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"ring not a power of two", func(c *Config) { c.TxRingLen = 100 }, "ring length"},
		{"ring too small", func(c *Config) { c.RxRingLen = 4 }, "ring length"},
		{"ring too large", func(c *Config) { c.RxRingLen = 8192 }, "ring length"},
		{"unsupported buffer size", func(c *Config) { c.RxBufferBytes = 3000 }, "buffer size"},
		{"unknown advertise mode", func(c *Config) { c.Advertise = []string{"10g"} }, "advertise"},
		{"bad station address", func(c *Config) { c.StationAddress = "not-a-mac" }, ""},
		{"zero timeout", func(c *Config) { c.LinkTimeout = 0 }, "timeout"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cf := DefaultConfig()
			c.mutate(&cf)
			err := cf.Validate()
			require.Error(t, err)
			if c.want != "" {
				require.ErrorContains(t, err, c.want)
			}
		})
	}
}

func TestConfigYamlRoundTrip(t *testing.T) {
	cf := DefaultConfig()
	cf.Advertise = []string{"1000f"}
	b, err := yaml.Marshal(&cf)
	require.NoError(t, err)
	got, err := ConfigFromYaml(b)
	require.NoError(t, err)
	require.Equal(t, cf, got)
}
