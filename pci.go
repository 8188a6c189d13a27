// Copyright 2016 Platina Systems, Inc. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package e1000

import (
	"fmt"

	"github.com/platinasystems/e1000/elib"
)

// DevID is the PCI device ID the bus collaborator found the adapter
// under; it selects the mac type and media for the adapter's lifetime.
type DevID uint16

// PCI dev IDs
const (
	dev_id_82542               DevID = 0x1000
	dev_id_82543gc_fiber       DevID = 0x1001
	dev_id_82543gc_copper      DevID = 0x1004
	dev_id_82544ei_copper      DevID = 0x1008
	dev_id_82544ei_fiber       DevID = 0x1009
	dev_id_82544gc_copper      DevID = 0x100c
	dev_id_82544gc_lom         DevID = 0x100d
	dev_id_82540em             DevID = 0x100e
	dev_id_82540em_lom         DevID = 0x1015
	dev_id_82540ep_lom         DevID = 0x1016
	dev_id_82540ep             DevID = 0x1017
	dev_id_82540ep_lp          DevID = 0x101e
	dev_id_82545em_copper      DevID = 0x100f
	dev_id_82545em_fiber       DevID = 0x1011
	dev_id_82545gm_copper      DevID = 0x1026
	dev_id_82545gm_fiber       DevID = 0x1027
	dev_id_82545gm_serdes      DevID = 0x1028
	dev_id_82546eb_copper      DevID = 0x1010
	dev_id_82546eb_fiber       DevID = 0x1012
	dev_id_82546eb_quad_copper DevID = 0x101d
	dev_id_82546gb_copper      DevID = 0x1079
	dev_id_82546gb_fiber       DevID = 0x107a
	dev_id_82546gb_serdes      DevID = 0x107b
	dev_id_82541ei             DevID = 0x1013
	dev_id_82541ei_mobile      DevID = 0x1018
	dev_id_82541er             DevID = 0x1078
	dev_id_82541gi             DevID = 0x1076
	dev_id_82541gi_mobile      DevID = 0x1077
	dev_id_82547ei             DevID = 0x1019
	dev_id_82547ei_mobile      DevID = 0x101a
	dev_id_82547gi             DevID = 0x1075
)

func (d DevID) String() (v string) {
	var ok bool
	if v, ok = dev_id_names[d]; !ok {
		v = fmt.Sprintf("unknown %04x", uint(d))
	}
	return
}

var dev_id_names = map[DevID]string{
	dev_id_82542:               "82542",
	dev_id_82543gc_fiber:       "82543GC_FIBER",
	dev_id_82543gc_copper:      "82543GC_COPPER",
	dev_id_82544ei_copper:      "82544EI_COPPER",
	dev_id_82544ei_fiber:       "82544EI_FIBER",
	dev_id_82544gc_copper:      "82544GC_COPPER",
	dev_id_82544gc_lom:         "82544GC_LOM",
	dev_id_82540em:             "82540EM",
	dev_id_82540em_lom:         "82540EM_LOM",
	dev_id_82540ep_lom:         "82540EP_LOM",
	dev_id_82540ep:             "82540EP",
	dev_id_82540ep_lp:          "82540EP_LP",
	dev_id_82545em_copper:      "82545EM_COPPER",
	dev_id_82545em_fiber:       "82545EM_FIBER",
	dev_id_82545gm_copper:      "82545GM_COPPER",
	dev_id_82545gm_fiber:       "82545GM_FIBER",
	dev_id_82545gm_serdes:      "82545GM_SERDES",
	dev_id_82546eb_copper:      "82546EB_COPPER",
	dev_id_82546eb_fiber:       "82546EB_FIBER",
	dev_id_82546eb_quad_copper: "82546EB_QUAD_COPPER",
	dev_id_82546gb_copper:      "82546GB_COPPER",
	dev_id_82546gb_fiber:       "82546GB_FIBER",
	dev_id_82546gb_serdes:      "82546GB_SERDES",
	dev_id_82541ei:             "82541EI",
	dev_id_82541ei_mobile:      "82541EI_MOBILE",
	dev_id_82541er:             "82541ER",
	dev_id_82541gi:             "82541GI",
	dev_id_82541gi_mobile:      "82541GI_MOBILE",
	dev_id_82547ei:             "82547EI",
	dev_id_82547ei_mobile:      "82547EI_MOBILE",
	dev_id_82547gi:             "82547GI",
}

// Mac types in order of chip history; feature checks compare against
// this order the way the hardware generations gained features.
type mac_type int

const (
	mac_82542 mac_type = iota
	mac_82543
	mac_82544
	mac_82540
	mac_82545
	mac_82546
	mac_82541
	mac_82547
)

var mac_type_names = [...]string{
	mac_82542: "82542",
	mac_82543: "82543",
	mac_82544: "82544",
	mac_82540: "82540",
	mac_82545: "82545",
	mac_82546: "82546",
	mac_82541: "82541",
	mac_82547: "82547",
}

func (t mac_type) String() string { return elib.Stringer(mac_type_names[:], int(t)) }

type phy_media int

const (
	media_copper phy_media = iota
	media_fiber
	media_serdes
)

var phy_media_names = [...]string{
	media_copper: "copper",
	media_fiber:  "fiber",
	media_serdes: "serdes",
}

func (m phy_media) String() string { return elib.Stringer(phy_media_names[:], int(m)) }

func (i DevID) device_type() (t mac_type, m phy_media, ok bool) {
	ok = true
	switch i {
	case dev_id_82542:
		t, m = mac_82542, media_fiber
	case dev_id_82543gc_fiber:
		t, m = mac_82543, media_fiber
	case dev_id_82543gc_copper:
		t, m = mac_82543, media_copper
	case dev_id_82544ei_copper, dev_id_82544gc_copper, dev_id_82544gc_lom:
		t, m = mac_82544, media_copper
	case dev_id_82544ei_fiber:
		t, m = mac_82544, media_fiber
	case dev_id_82540em, dev_id_82540em_lom, dev_id_82540ep_lom, dev_id_82540ep, dev_id_82540ep_lp:
		t, m = mac_82540, media_copper
	case dev_id_82545em_copper, dev_id_82545gm_copper:
		t, m = mac_82545, media_copper
	case dev_id_82545em_fiber, dev_id_82545gm_fiber:
		t, m = mac_82545, media_fiber
	case dev_id_82545gm_serdes:
		t, m = mac_82545, media_serdes
	case dev_id_82546eb_copper, dev_id_82546eb_quad_copper, dev_id_82546gb_copper:
		t, m = mac_82546, media_copper
	case dev_id_82546eb_fiber, dev_id_82546gb_fiber:
		t, m = mac_82546, media_fiber
	case dev_id_82546gb_serdes:
		t, m = mac_82546, media_serdes
	case dev_id_82541ei, dev_id_82541ei_mobile, dev_id_82541er, dev_id_82541gi, dev_id_82541gi_mobile:
		t, m = mac_82541, media_copper
	case dev_id_82547ei, dev_id_82547ei_mobile, dev_id_82547gi:
		t, m = mac_82547, media_copper
	default:
		ok = false
	}
	return
}
