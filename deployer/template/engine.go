// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// Package template expands a customer's sizing parameters into the full set
// of VM instance specifications for one data center: instance counts from
// the per-family capacity tables, deterministic addressing and naming from
// the data-center/customer numbering scheme.
package template

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	platformVMware = "VMWARE"
	deploymentOVA  = "OVA"
)

// Capacity profiles per family.
const (
	sizeCMDuplex = "DuplexStd"
	sizeESS      = "Large"
	sizeSMGR     = "250Kuser"
	sizeSM       = "23300devices"
	sizeCMS      = "profile2"
	sizeAMS      = "profile6"
	sizeAES      = "aesFootprint-profile3"
	sizeSBCEMS   = "ems"
	sizeSBC      = "sbc"
	sizePS       = "GPLargeCluster"
	sizeStandard = "standard"
	sizeSmall    = "small"
)

// NIC roles used in port-group bindings.
const (
	nicPublic   = "Public"
	nicOOBM     = "Out of Band Management"
	nicCMDup    = "Duplication Link"
	nicM1       = "M1"
	nicAMS      = "AMS_Public"
	nicCMSubnet = "10.129.183 Subnet"
)

// Engine renders the converged-solution template.
type Engine struct {
	Name        string
	Description string
}

// NewEngine returns the built-in converged contact-center solution
// template.
func NewEngine() *Engine {
	return &Engine{
		Name:        "ACP_Template",
		Description: "Converged contact-center solution: CM, SMGR, SM, CMS, AES, AMS, SBC and supporting hosts for one data center",
	}
}

var mandatoryParameters = []string{"datacenter_id", "cust_num", "cust_name", "cc_users", "uc_users"}

var optionalParameters = []string{
	"num_users", "easg_enable", "env", "primary", "secondary",
	"custom_network", "subnets", "dc2id", "template_details",
}

// Render expands the parameter map into a deployment-plan document. The
// returned string slice carries non-fatal validation warnings; errors are
// reserved for caller misuse (bad types, unknown data center).
func (e *Engine) Render(raw map[string]interface{}) (*Document, []string, error) {
	vars, err := DecodeVariables(raw)
	if err != nil {
		return nil, nil, err
	}
	if vars.TemplateDetails {
		return &Document{
			TemplateSpecs: &TemplateSpecs{
				TemplateName:        e.Name,
				TemplateDescription: e.Description,
			},
			MandatoryParameters: mandatoryParameters,
			OptionalParameters:  optionalParameters,
		}, nil, nil
	}

	nets, err := resolveNetworks(vars)
	if err != nil {
		return nil, nil, err
	}

	b := &builder{
		vars:   vars,
		nets:   nets,
		counts: computeCounts(vars.CCUsers, vars.UCUsers, vars.NumUsers),
		doc:    &Document{VMInstanceSpecs: map[string]*InstanceSpec{}},
	}
	b.build()

	return b.doc, validateDocument(b.doc), nil
}

// instanceCounts holds the number of instances (or HA pairs) per family.
type instanceCounts struct {
	cmPairs    int
	cms        int
	aesPairs   int
	ams        int
	sbcrwPairs int
	sbctgPairs int
	aam        int
	ixm        int
	ps         int
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// computeCounts applies the per-family capacity tables. A CM pair serves
// 4000 contact-center or 16000 unified-communications users; the combined
// load is ceil(cc/4000 + uc/16000) pairs, never less than one. CMS and AES
// exist only for contact-center seats; AMS, SBC remote workers and the
// shared application hosts scale with the total user count.
func computeCounts(cc, uc, num int) instanceCounts {
	cmPairs := maxInt(1, ceilDiv(4*cc+uc, 16000))
	return instanceCounts{
		cmPairs:    cmPairs,
		cms:        ceilDiv(cc, 4000),
		aesPairs:   ceilDiv(cc, 4000),
		ams:        ceilDiv(num, 3500),
		sbcrwPairs: maxInt(1, ceilDiv(num, 4000)),
		sbctgPairs: cmPairs,
		aam:        maxInt(2, ceilDiv(num, 6400)),
		ixm:        maxInt(3, ceilDiv(num, 5000)),
		ps:         maxInt(2, ceilDiv(num, 12800)),
	}
}

type builder struct {
	vars   *Variables
	nets   *siteNetworks
	counts instanceCounts
	doc    *Document
}

func (b *builder) build() {
	if b.vars.IsSecondary() {
		b.cmESS()
	} else {
		b.cmDuplex()
	}
	b.smgr()
	b.sm()
	b.win()
	b.cms()
	b.aes()
	b.ams()
	b.sbcems()
	b.sbcPairs("sbcrw", "sbcrw", b.counts.sbcrwPairs, 11)
	b.sbcPairs("sbctrunking", "sbctg", b.counts.sbctgPairs, 81)
	b.aads()
	b.aam()
	b.ixm()
	b.ps()
	b.precheck()
	b.sal()
}

func (b *builder) add(family string, n int, spec *InstanceSpec) {
	spec.Platform = platformVMware
	spec.DeploymentType = deploymentOVA
	b.doc.VMInstanceSpecs[fmt.Sprintf("%s_instance_%d", family, n)] = spec
}

// hostname joins customer identity, data-center number and the per-type
// suffix: <name><cust>dc<dc><suffix>.
func (b *builder) hostname(suffix string) string {
	return fmt.Sprintf("%s%ddc%d%s", b.vars.CustName, b.vars.CustNum, b.nets.dcNum, suffix)
}

func (b *builder) envSpecs(bindings ...PortGroupBinding) EnvSpecs {
	return EnvSpecs{VirtualNetwork: bindings, VMFolderName: b.nets.folder}
}

func (b *builder) appsBindings(names ...string) []PortGroupBinding {
	bindings := make([]PortGroupBinding, 0, len(names))
	for _, name := range names {
		block := b.nets.apps
		switch name {
		case nicOOBM:
			block = b.nets.oobm
		case nicCMDup:
			block = b.nets.cmDup
		}
		bindings = append(bindings, PortGroupBinding{
			VirtualPortGroupName: name,
			VirtualPortGroup:     block.portGroup,
		})
	}
	return bindings
}

// dupLinkIP is the CM duplication-link address. The link rides a dedicated
// non-routed network shared across customers, so the host part encodes
// customer and pair.
func (b *builder) dupLinkIP(pair, side int) string {
	return fmt.Sprintf("192.168.52.%d", 4*(b.vars.CustNum-1)+2*(pair-1)+side)
}

func (b *builder) cmDuplex() {
	apps := b.nets.apps
	for p := 1; p <= b.counts.cmPairs; p++ {
		virtualIP := apps.Host(10 + p)
		virtualHost := b.hostname(fmt.Sprintf("cccm%dv", p))
		for side := 1; side <= 2; side++ {
			letter := "a"
			offset := 21 + 20*(p-1)
			if side == 2 {
				letter = "b"
				offset += 10
			}
			spec := &InstanceSpec{
				IPAddress1:        apps.Host(offset),
				IPAddress2:        b.dupLinkIP(p, side),
				Netmask:           apps.Netmask(),
				DefaultGateway:    apps.gateway,
				VirtualIPAddress:  virtualIP,
				VirtualIPHostname: virtualHost,
				Hostname:          b.hostname(fmt.Sprintf("cccm%d%s", p, letter)),
				TemplateSize:      sizeCMDuplex,
				VLANID:            apps.vlan,
				VLANID2:           b.nets.cmDup.vlan,
				VMwareEnvSpecs:    b.envSpecs(b.appsBindings(nicPublic, nicOOBM, nicCMDup)...),
			}
			b.add("cm_duplex", 2*(p-1)+side, spec)
		}
	}
}

// cmESS replaces the duplex pairs on the secondary member of a region pair:
// one survivable server per pair.
func (b *builder) cmESS() {
	apps := b.nets.apps
	for n := 1; n <= b.counts.cmPairs; n++ {
		b.add("cm_ess", n, &InstanceSpec{
			IPAddress1:     apps.Host(10 + n),
			Netmask:        apps.Netmask(),
			DefaultGateway: apps.gateway,
			Hostname:       b.hostname(fmt.Sprintf("ccess%d", n)),
			TemplateSize:   sizeESS,
			VLANID:         apps.vlan,
			VMwareEnvSpecs: b.envSpecs(b.appsBindings(nicPublic)...),
		})
	}
}

func (b *builder) smgr() {
	apps := b.nets.apps
	suffix := "smgrpri"
	if b.vars.IsSecondary() {
		suffix = "smgrgeo"
	}
	b.add("smgr", 1, &InstanceSpec{
		IPAddress1:     apps.Host(60),
		Netmask:        apps.Netmask(),
		DefaultGateway: apps.gateway,
		Hostname:       b.hostname(suffix),
		TemplateSize:   sizeSMGR,
		VLANID:         apps.vlan,
		VMwareEnvSpecs: b.envSpecs(b.appsBindings(nicPublic)...),
	})
}

func (b *builder) sm() {
	apps := b.nets.apps
	for n := 1; n <= 2; n++ {
		b.add("sm", n, &InstanceSpec{
			IPAddress1:     apps.Host(59 + 2*n),
			IPAddress2:     apps.Host(60 + 2*n),
			Netmask:        apps.Netmask(),
			DefaultGateway: apps.gateway,
			Hostname:       b.hostname(fmt.Sprintf("sm%d", n)),
			TemplateSize:   sizeSM,
			VLANID:         apps.vlan,
			VMwareEnvSpecs: b.envSpecs(b.appsBindings(nicPublic, nicOOBM)...),
		})
	}
}

func (b *builder) win() {
	apps := b.nets.apps
	suffix := "dp"
	if b.vars.IsSecondary() {
		suffix = "ds"
	}
	addrs := b.vars.services()
	b.add("win", 1, &InstanceSpec{
		IPAddress1:     apps.Host(90),
		Prefix:         apps.prefix,
		DefaultGateway: apps.gateway,
		Hostname:       b.hostname(suffix),
		VLANID:         apps.vlan,
		NTP:            addrs.ntp,
		WebLM:          addrs.weblm,
		VMwareEnvSpecs: b.envSpecs(b.appsBindings(nicPublic)...),
	})
}

func (b *builder) cms() {
	apps := b.nets.apps
	role := "pri"
	if b.vars.IsSecondary() {
		role = "sec"
	}
	for n := 1; n <= b.counts.cms; n++ {
		b.add("cms", n, &InstanceSpec{
			IPAddress1:     apps.Host(150 + n),
			Netmask:        apps.Netmask(),
			DefaultGateway: apps.gateway,
			Hostname:       b.hostname(fmt.Sprintf("cccms%s%d", role, n)),
			TemplateSize:   sizeCMS,
			VLANID:         apps.vlan,
			VMwareEnvSpecs: b.envSpecs(PortGroupBinding{
				VirtualPortGroupName: nicCMSubnet,
				VirtualPortGroup:     apps.portGroup,
			}),
		})
	}
}

func (b *builder) aes() {
	apps := b.nets.apps
	for p := 1; p <= b.counts.aesPairs; p++ {
		virtualIP := apps.Host(50 + p)
		for side := 1; side <= 2; side++ {
			letter := "a"
			offset := 161 + 20*(p-1)
			if side == 2 {
				letter = "b"
				offset += 10
			}
			b.add("aes", 2*(p-1)+side, &InstanceSpec{
				IPAddress1:       apps.Host(offset),
				Netmask:          apps.Netmask(),
				DefaultGateway:   apps.gateway,
				VirtualIPAddress: virtualIP,
				Hostname:         b.hostname(fmt.Sprintf("aes%d%s", p, letter)),
				TemplateSize:     sizeAES,
				VLANID:           apps.vlan,
				VMwareEnvSpecs:   b.envSpecs(b.appsBindings(nicPublic)...),
			})
		}
	}
}

func (b *builder) ams() {
	blk := b.nets.ams
	for n := 1; n <= b.counts.ams; n++ {
		b.add("ams", n, &InstanceSpec{
			IPAddress1:     blk.Host(29 + n),
			Netmask:        blk.Netmask(),
			DefaultGateway: blk.gateway,
			Hostname:       b.hostname(fmt.Sprintf("ams%d", n)),
			TemplateSize:   sizeAMS,
			VLANID:         blk.vlan,
			VMwareEnvSpecs: b.envSpecs(PortGroupBinding{
				VirtualPortGroupName: nicAMS,
				VirtualPortGroup:     blk.portGroup,
			}),
		})
	}
}

func (b *builder) sbcems() {
	blk := b.nets.sbc
	suffix := "emspri"
	if b.vars.IsSecondary() {
		suffix = "emssec"
	}
	b.add("sbcems", 1, &InstanceSpec{
		IPAddress1:     blk.Host(10),
		M1Netmask:      blk.Netmask(),
		M1Gateway:      blk.gateway,
		Hostname:       b.hostname(suffix),
		TemplateSize:   sizeSBCEMS,
		VLANID:         blk.vlan,
		VMwareEnvSpecs: b.envSpecs(PortGroupBinding{
			VirtualPortGroupName: nicM1,
			VirtualPortGroup:     blk.portGroup,
		}),
	})
}

// sbcPairs lays out an a/b pair family on the SBC management network.
func (b *builder) sbcPairs(family, suffix string, pairs, baseOffset int) {
	blk := b.nets.sbc
	for p := 1; p <= pairs; p++ {
		for side := 1; side <= 2; side++ {
			letter := "a"
			offset := baseOffset + 20*(p-1)
			if side == 2 {
				letter = "b"
				offset += 10
			}
			b.add(family, 2*(p-1)+side, &InstanceSpec{
				IPAddress1:     blk.Host(offset),
				M1Netmask:      blk.Netmask(),
				M1Gateway:      blk.gateway,
				Hostname:       b.hostname(fmt.Sprintf("%s%d%s", suffix, p, letter)),
				TemplateSize:   sizeSBC,
				VLANID:         blk.vlan,
				VMwareEnvSpecs: b.envSpecs(PortGroupBinding{
					VirtualPortGroupName: nicM1,
					VirtualPortGroup:     blk.portGroup,
				}),
			})
		}
	}
}

func (b *builder) aads() {
	apps := b.nets.apps
	for n := 1; n <= 2; n++ {
		b.add("aads", n, &InstanceSpec{
			IPAddress1:     apps.Host(199 + n),
			Netmask:        apps.Netmask(),
			DefaultGateway: apps.gateway,
			Hostname:       b.hostname(fmt.Sprintf("aads%d", n)),
			TemplateSize:   sizeStandard,
			VLANID:         apps.vlan,
			VMwareEnvSpecs: b.envSpecs(b.appsBindings(nicPublic)...),
		})
	}
}

func (b *builder) aam() {
	apps := b.nets.apps
	for n := 1; n <= b.counts.aam; n++ {
		b.add("aam", n, &InstanceSpec{
			IPAddress1:     apps.Host(205 + n),
			Netmask:        apps.Netmask(),
			DefaultGateway: apps.gateway,
			Hostname:       b.hostname(fmt.Sprintf("aam%d", n)),
			TemplateSize:   sizeStandard,
			VLANID:         apps.vlan,
			VMwareEnvSpecs: b.envSpecs(b.appsBindings(nicPublic)...),
		})
	}
}

func (b *builder) ixm() {
	apps := b.nets.apps
	for n := 1; n <= b.counts.ixm; n++ {
		b.add("ixm", n, &InstanceSpec{
			IPAddress1:     apps.Host(215 + n),
			Netmask:        apps.Netmask(),
			DefaultGateway: apps.gateway,
			Hostname:       b.hostname(fmt.Sprintf("ixm%d", n)),
			TemplateSize:   sizeStandard,
			VLANID:         apps.vlan,
			VMwareEnvSpecs: b.envSpecs(b.appsBindings(nicPublic)...),
		})
	}
}

func (b *builder) ps() {
	apps := b.nets.apps
	for n := 1; n <= b.counts.ps; n++ {
		b.add("ps", n, &InstanceSpec{
			IPAddress1:     apps.Host(230 + n),
			Netmask:        apps.Netmask(),
			DefaultGateway: apps.gateway,
			Hostname:       b.hostname(fmt.Sprintf("eqbrz%d", n)),
			TemplateSize:   sizePS,
			VLANID:         apps.vlan,
			VMwareEnvSpecs: b.envSpecs(b.appsBindings(nicPublic)...),
		})
	}
}

func (b *builder) precheck() {
	apps := b.nets.apps
	b.add("precheck", 1, &InstanceSpec{
		IPAddress1:     apps.Host(240),
		Netmask:        apps.Netmask(),
		DefaultGateway: apps.gateway,
		Hostname:       b.hostname("precheck"),
		TemplateSize:   sizeSmall,
		VLANID:         apps.vlan,
		VMwareEnvSpecs: b.envSpecs(b.appsBindings(nicPublic)...),
	})
}

func (b *builder) sal() {
	apps := b.nets.apps
	b.add("sal", 1, &InstanceSpec{
		IPAddress1:     apps.Host(241),
		Netmask:        apps.Netmask(),
		DefaultGateway: apps.gateway,
		Hostname:       b.hostname("sal"),
		TemplateSize:   sizeStandard,
		VLANID:         apps.vlan,
		VMwareEnvSpecs: b.envSpecs(b.appsBindings(nicPublic)...),
	})
}

// validateDocument scans the rendered plan for placeholder markers that
// survived expansion. Any hit is a non-fatal warning.
func validateDocument(doc *Document) []string {
	var warnings []string
	raw, err := json.Marshal(doc)
	if err != nil {
		return []string{fmt.Sprintf("plan not serializable: %s", err)}
	}
	if strings.Contains(string(raw), "dummy_") {
		warnings = append(warnings, "rendered plan contains unreplaced placeholder values")
	}
	return warnings
}
