// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// A burst larger than one drain pass arrives complete and in order.
func TestReceiveBurst(t *testing.T) {
	e := new_test_env(t, dev_id_82545em_copper, DefaultConfig(), nil)
	require.NoError(t, e.d.Start())
	e.wait_link(t, LinkUp)

	src := EthernetAddress{0x02, 0x00, 0x5e, 0x00, 0x08, 0x08}
	dst := e.d.StationAddress()

	var want [][]byte
	for i := 0; i < 100; i++ {
		f := test_frame(t, src, dst, i, 128)
		e.m.must_inject(t, f, 0)
		want = append(want, f)
	}
	for i := range want {
		require.Equal(t, want[i], e.wait_frame(t), "frame %d", i)
	}
}

// Frames the hardware flags with fatal errors never reach the handler.
func TestReceiveErrorFrameDropped(t *testing.T) {
	e := new_test_env(t, dev_id_82545em_copper, DefaultConfig(), nil)
	require.NoError(t, e.d.Start())
	e.wait_link(t, LinkUp)

	src := EthernetAddress{0x02, 0x00, 0x5e, 0x00, 0x09, 0x09}
	dst := e.d.StationAddress()

	e.m.must_inject(t, test_frame(t, src, dst, 11, 64), rx_desc_error_crc)
	good := test_frame(t, src, dst, 12, 64)
	e.m.must_inject(t, good, 0)
	require.Equal(t, good, e.wait_frame(t))
}

// A frame wider than one buffer spans descriptors; buffer chaining is
// not part of the receive contract, so every piece is dropped and the
// queue keeps running.
func TestReceiveSplitFrameDropped(t *testing.T) {
	e := new_test_env(t, dev_id_82545em_copper, DefaultConfig(), nil)
	require.NoError(t, e.d.Start())
	e.wait_link(t, LinkUp)

	src := EthernetAddress{0x02, 0x00, 0x5e, 0x00, 0x0a, 0x0a}
	dst := e.d.StationAddress()

	e.m.must_inject(t, test_frame(t, src, dst, 13, 2958), 0) // 3000 bytes, two buffers
	good := test_frame(t, src, dst, 14, 64)
	e.m.must_inject(t, good, 0)
	require.Equal(t, good, e.wait_frame(t))
}
