// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package template

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// datacenterIDs maps region names to their estate-wide numeric ids. A dc2id
// parameter replaces this table for 42-DC estates.
var datacenterIDs = map[string]int{
	"NAR1":  1,
	"NAR2":  2,
	"EMEA1": 17,
	"EMEA2": 25,
	"APAC1": 33,
	"APAC2": 41,
	"CALA1": 49,
	"CALA2": 57,
}

// serviceAddrs are the per-environment shared-service endpoints handed to
// the Windows utility host.
type serviceAddrs struct {
	ntp   string
	weblm string
}

var envServiceAddrs = map[string]serviceAddrs{
	"AOC": {ntp: "100.66.1.2", weblm: "100.64.1.10"},
	"IBM": {ntp: "100.67.96.2", weblm: "100.67.96.10"},
}

var defaultServiceAddrs = serviceAddrs{ntp: "10.130.108.2", weblm: "10.130.108.10"}

// netBlock is one resolved customer network: a base address plus the
// identity an instance NIC on it needs.
type netBlock struct {
	base      uint32
	gateway   string
	prefix    int
	vlan      int
	portGroup string
}

// Host returns the address at the given offset from the network base.
func (b netBlock) Host(offset int) string {
	var ip [4]byte
	binary.BigEndian.PutUint32(ip[:], b.base+uint32(offset))
	return net.IP(ip[:]).String()
}

// Netmask renders the block's prefix as a dotted mask.
func (b netBlock) Netmask() string {
	m := net.CIDRMask(b.prefix, 32)
	return net.IP(m).String()
}

// siteNetworks is the full addressing context for one render: the
// customer's networks in one data center.
type siteNetworks struct {
	dcName string
	dcNum  int
	folder string
	apps   netBlock
	oobm   netBlock
	cmDup  netBlock
	sbc    netBlock
	ams    netBlock
}

func networkBase(gateway string, prefix int) (uint32, error) {
	ip := net.ParseIP(gateway)
	if ip == nil || ip.To4() == nil {
		return 0, errors.Errorf("invalid gateway address %q", gateway)
	}
	v := binary.BigEndian.Uint32(ip.To4())
	mask := binary.BigEndian.Uint32(net.CIDRMask(prefix, 32))
	return v & mask, nil
}

func octets(a, b, c, d int) uint32 {
	return uint32(a)<<24 | uint32(b)<<16 | uint32(c)<<8 | uint32(d)
}

// resolveNetworks derives the customer's networks from the data-center and
// customer numbers, then applies any custom-network overrides.
func resolveNetworks(vars *Variables) (*siteNetworks, error) {
	table := datacenterIDs
	if len(vars.DC2ID) > 0 {
		table = vars.DC2ID
	}
	dcNum, ok := table[vars.DatacenterID]
	if !ok {
		return nil, errors.Errorf("unknown datacenter %q", vars.DatacenterID)
	}

	vlanBase := 1000 + 10*vars.CustNum
	pg := func(kind string) string {
		return fmt.Sprintf("DC%02d_CUST_%03d_%s", dcNum, vars.CustNum, kind)
	}
	appsBase := octets(100, 63+dcNum, 4*vars.CustNum-2, 0)
	svcBase := octets(100, 63+dcNum, 4*vars.CustNum-1, 0)

	nets := &siteNetworks{
		dcName: vars.DatacenterID,
		dcNum:  dcNum,
		folder: fmt.Sprintf("%s_customer_%03d", vars.DatacenterID, vars.CustNum),
		apps: netBlock{
			base: appsBase, prefix: 24, vlan: vlanBase + 2, portGroup: pg("APPS"),
		},
		oobm: netBlock{
			base: appsBase, prefix: 24, vlan: vlanBase + 2, portGroup: pg("APPS"),
		},
		cmDup: netBlock{
			portGroup: pg("CM_DUPL"),
		},
		sbc: netBlock{
			base: svcBase, prefix: 25, vlan: vlanBase + 9, portGroup: pg("SBC_MGMT"),
		},
		ams: netBlock{
			base: svcBase + 128, prefix: 25, vlan: vlanBase + 3, portGroup: pg("AMS"),
		},
	}
	nets.apps.gateway = nets.apps.Host(1)
	nets.oobm.gateway = nets.oobm.Host(1)
	nets.sbc.gateway = nets.sbc.Host(1)
	nets.ams.gateway = nets.ams.Host(1)

	if !vars.CustomNetwork {
		return nets, nil
	}
	overrides, ok := vars.Subnets[vars.DatacenterID]
	if !ok {
		return nil, errors.Errorf("custom_network set but no subnets given for %q", vars.DatacenterID)
	}
	for _, ov := range overrides {
		block, err := overrideBlock(ov)
		if err != nil {
			return nil, err
		}
		switch ov.Type {
		case "apps":
			nets.apps = block
		case "oobm":
			nets.oobm = block
		case "cm_dup":
			nets.cmDup = block
		case "sbc":
			nets.sbc = block
		case "ams":
			nets.ams = block
		default:
			return nil, errors.Errorf("unknown subnet type %q", ov.Type)
		}
	}
	return nets, nil
}

func overrideBlock(ov SubnetOverride) (netBlock, error) {
	prefix, err := strconv.Atoi(ov.Prefix)
	if err != nil {
		return netBlock{}, errors.Wrapf(err, "bad prefix for %s subnet", ov.Type)
	}
	base, err := networkBase(ov.Gateway, prefix)
	if err != nil {
		return netBlock{}, err
	}
	return netBlock{
		base:      base,
		gateway:   ov.Gateway,
		prefix:    prefix,
		vlan:      ov.VLAN,
		portGroup: ov.PortGroup,
	}, nil
}

func (v *Variables) services() serviceAddrs {
	if addrs, ok := envServiceAddrs[v.Env]; ok {
		return addrs
	}
	return defaultServiceAddrs
}
