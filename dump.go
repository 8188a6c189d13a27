// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"fmt"
	"io"
)

// DumpRings writes a snapshot of both descriptor rings for debugging.
// Safe while the device is running.
func (d *Dev) DumpRings(w io.Writer) {
	pool := d.pool
	if !d.up.Load() || pool == nil {
		fmt.Fprintf(w, "%s: not started\n", d)
		return
	}
	fmt.Fprintf(w, "%s: link %s, pool %s\n", d, d.Link(), pool)

	q := &d.tx
	q.mu.Lock()
	fmt.Fprintf(w, "tx ring: %d descriptors, head %d, tail %d\n", q.len, q.head_index, q.tail_index)
	for i := range q.descriptors {
		fmt.Fprintf(w, "%03d 0x%04x: %s\n", i, i*n_bytes_per_descriptor, &q.descriptors[i])
	}
	q.mu.Unlock()

	r := &d.rx
	r.mu.Lock()
	fmt.Fprintf(w, "rx ring: %d descriptors, head %d, tail %d\n", r.len, r.head_index, r.tail_index)
	for i := range r.descriptors {
		fmt.Fprintf(w, "%03d 0x%04x: %s\n", i, i*n_bytes_per_descriptor, &r.descriptors[i])
	}
	r.mu.Unlock()
}
