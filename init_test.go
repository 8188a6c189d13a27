// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"bytes"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	bar := make([]byte, device_register_window_bytes)
	l := logrus.New()

	_, err := New(DevID(0xffff), bar, DefaultConfig(), l)
	require.ErrorContains(t, err, "not an 8254x")

	_, err = New(dev_id_82545em_copper, bar[:4096], DefaultConfig(), l)
	require.ErrorContains(t, err, "register window")

	cf := DefaultConfig()
	cf.RxRingLen = 100
	_, err = New(dev_id_82545em_copper, bar, cf, l)
	require.ErrorContains(t, err, "ring length")
}

func TestDeviceLifecycle(t *testing.T) {
	e := new_test_env(t, dev_id_82545em_copper, DefaultConfig(), nil)
	require.NoError(t, e.d.Start())

	e.wait_link(t, LinkNegotiating)
	l := e.wait_link(t, LinkUp)
	require.Equal(t, uint(1000), l.Speed)
	require.True(t, l.FullDuplex)
	require.Equal(t, l, e.d.Link())

	// Station address came from the eeprom autoload.
	require.Equal(t, "02:00:5e:00:01:01", e.d.StationAddress().String())

	src := e.d.StationAddress()
	dst := EthernetAddress{0x02, 0x00, 0x5e, 0x00, 0x02, 0x02}

	f := test_frame(t, src, dst, 1, 64)
	require.NoError(t, e.d.Transmit(f))
	require.Equal(t, f, e.m.wait_tx_frames(t, 1)[0])

	rf := test_frame(t, dst, src, 2, 256)
	e.m.must_inject(t, rf, 0)
	require.Equal(t, rf, e.wait_frame(t))

	var b bytes.Buffer
	e.d.DumpRings(&b)
	require.Contains(t, b.String(), "tx ring")
	require.Contains(t, b.String(), "rx ring")

	// Starting a started device is a no-op; so is stopping twice.
	require.NoError(t, e.d.Start())
	e.d.Stop()
	e.d.Stop()
	require.Equal(t, LinkDown, e.d.Link().State)
	require.Error(t, e.d.Transmit(f))
}

// The 82542 keeps its ring and filter registers at different offsets,
// loads no station address from eeprom and cannot strip the crc on
// receive.  The same driver paths must still move traffic.
func TestLifecycle82542(t *testing.T) {
	cf := DefaultConfig()
	cf.StationAddress = "02:11:22:33:44:55"
	e := new_test_env(t, dev_id_82542, cf, func(m *model_dev) { m.eeprom_address = nil })
	require.NoError(t, e.d.Start())

	e.wait_link(t, LinkNegotiating)
	l := e.wait_link(t, LinkUp)
	require.Equal(t, uint(1000), l.Speed)
	require.Equal(t, "02:11:22:33:44:55", e.d.StationAddress().String())

	src := e.d.StationAddress()
	dst := EthernetAddress{0x02, 0x00, 0x5e, 0x00, 0x03, 0x03}

	f := test_frame(t, src, dst, 3, 100)
	require.NoError(t, e.d.Transmit(f))
	require.Equal(t, f, e.m.wait_tx_frames(t, 1)[0])

	// The model appends a fake crc since this chip cannot strip it;
	// the driver must trim it back off.
	rf := test_frame(t, dst, src, 4, 100)
	e.m.must_inject(t, rf, 0)
	require.Equal(t, rf, e.wait_frame(t))
}

func TestStartNeedsStationAddress(t *testing.T) {
	e := new_test_env(t, dev_id_82543gc_copper, DefaultConfig(),
		func(m *model_dev) { m.eeprom_address = nil })
	require.ErrorIs(t, e.d.Start(), ErrDevice)
	require.Equal(t, LinkDown, e.d.Link().State)
}

// A sustained stream of receive errors past the limit must restart the
// device, after which it renegotiates and still moves traffic.
func TestErrorStormRestart(t *testing.T) {
	e := new_test_env(t, dev_id_82544ei_copper, DefaultConfig(), nil)
	require.NoError(t, e.d.Start())
	e.wait_link(t, LinkUp)

	// Keep the errors coming until the restart shows up as a fresh
	// negotiation, then stop so we only trigger one restart.
	deadline := time.Now().Add(10 * time.Second)
storm:
	for i := 0; ; i++ {
		cause := uint32(1) << irq_rx_sequence_error
		if i&1 != 0 {
			cause = 1 << irq_rx_overrun
		}
		e.m.fire(cause)
		if time.Now().After(deadline) {
			t.Fatal("device never restarted")
		}
		select {
		case l := <-e.links:
			if l.State == LinkNegotiating {
				break storm
			}
		case <-time.After(10 * time.Millisecond):
		}
	}
	e.wait_link(t, LinkUp)

	src := e.d.StationAddress()
	dst := EthernetAddress{0x02, 0x00, 0x5e, 0x00, 0x04, 0x04}
	f := test_frame(t, src, dst, 5, 64)
	require.NoError(t, e.d.Transmit(f))
	require.Equal(t, f, e.m.wait_tx_frames(t, 1)[0])
}
