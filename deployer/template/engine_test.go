// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package template

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func renderOK(t *testing.T, vars map[string]interface{}) *Document {
	t.Helper()
	doc, warnings, err := NewEngine().Render(vars)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	return doc
}

func countFamily(doc *Document, family string) int {
	n := 0
	for name := range doc.VMInstanceSpecs {
		if strings.HasPrefix(name, family+"_instance_") {
			n++
		}
	}
	return n
}

func TestRenderFullPrimarySmall(t *testing.T) {
	doc := renderOK(t, map[string]interface{}{
		"datacenter_id": "EMEA2",
		"cust_num":      2,
		"cust_name":     "Robin",
		"cc_users":      500,
		"uc_users":      0,
		"num_users":     500,
		"easg_enable":   true,
	})

	appsNet := func(names ...string) EnvSpecs {
		bindings := make([]PortGroupBinding, 0, len(names))
		for _, n := range names {
			pg := "DC25_CUST_002_APPS"
			if n == "Duplication Link" {
				pg = "DC25_CUST_002_CM_DUPL"
			}
			bindings = append(bindings, PortGroupBinding{VirtualPortGroupName: n, VirtualPortGroup: pg})
		}
		return EnvSpecs{VirtualNetwork: bindings, VMFolderName: "EMEA2_customer_002"}
	}

	expected := map[string]*InstanceSpec{
		"cm_duplex_instance_1": {
			Platform:          "VMWARE",
			DeploymentType:    "OVA",
			IPAddress1:        "100.88.6.21",
			IPAddress2:        "192.168.52.5",
			Netmask:           "255.255.255.0",
			DefaultGateway:    "100.88.6.1",
			VirtualIPAddress:  "100.88.6.11",
			VirtualIPHostname: "Robin2dc25cccm1v",
			Hostname:          "Robin2dc25cccm1a",
			TemplateSize:      "DuplexStd",
			VLANID:            1022,
			VMwareEnvSpecs:    appsNet("Public", "Out of Band Management", "Duplication Link"),
		},
		"cm_duplex_instance_2": {
			Platform:          "VMWARE",
			DeploymentType:    "OVA",
			IPAddress1:        "100.88.6.31",
			IPAddress2:        "192.168.52.6",
			Netmask:           "255.255.255.0",
			DefaultGateway:    "100.88.6.1",
			VirtualIPAddress:  "100.88.6.11",
			VirtualIPHostname: "Robin2dc25cccm1v",
			Hostname:          "Robin2dc25cccm1b",
			TemplateSize:      "DuplexStd",
			VLANID:            1022,
			VMwareEnvSpecs:    appsNet("Public", "Out of Band Management", "Duplication Link"),
		},
		"smgr_instance_1": {
			Platform:       "VMWARE",
			DeploymentType: "OVA",
			IPAddress1:     "100.88.6.60",
			Netmask:        "255.255.255.0",
			DefaultGateway: "100.88.6.1",
			Hostname:       "Robin2dc25smgrpri",
			TemplateSize:   "250Kuser",
			VLANID:         1022,
			VMwareEnvSpecs: appsNet("Public"),
		},
		"win_instance_1": {
			Platform:       "VMWARE",
			DeploymentType: "OVA",
			IPAddress1:     "100.88.6.90",
			Prefix:         24,
			DefaultGateway: "100.88.6.1",
			Hostname:       "Robin2dc25dp",
			VLANID:         1022,
			NTP:            "10.130.108.2",
			WebLM:          "10.130.108.10",
			VMwareEnvSpecs: appsNet("Public"),
		},
		"cms_instance_1": {
			Platform:       "VMWARE",
			DeploymentType: "OVA",
			IPAddress1:     "100.88.6.151",
			Netmask:        "255.255.255.0",
			DefaultGateway: "100.88.6.1",
			Hostname:       "Robin2dc25cccmspri1",
			TemplateSize:   "profile2",
			VLANID:         1022,
			VMwareEnvSpecs: EnvSpecs{
				VirtualNetwork: []PortGroupBinding{
					{VirtualPortGroupName: "10.129.183 Subnet", VirtualPortGroup: "DC25_CUST_002_APPS"},
				},
				VMFolderName: "EMEA2_customer_002",
			},
		},
		"ams_instance_1": {
			Platform:       "VMWARE",
			DeploymentType: "OVA",
			IPAddress1:     "100.88.7.158",
			Netmask:        "255.255.255.128",
			DefaultGateway: "100.88.7.129",
			Hostname:       "Robin2dc25ams1",
			TemplateSize:   "profile6",
			VLANID:         1023,
			VMwareEnvSpecs: EnvSpecs{
				VirtualNetwork: []PortGroupBinding{
					{VirtualPortGroupName: "AMS_Public", VirtualPortGroup: "DC25_CUST_002_AMS"},
				},
				VMFolderName: "EMEA2_customer_002",
			},
		},
		"sm_instance_1": {
			Platform:       "VMWARE",
			DeploymentType: "OVA",
			IPAddress1:     "100.88.6.61",
			IPAddress2:     "100.88.6.62",
			Netmask:        "255.255.255.0",
			DefaultGateway: "100.88.6.1",
			Hostname:       "Robin2dc25sm1",
			TemplateSize:   "23300devices",
			VLANID:         1022,
			VMwareEnvSpecs: appsNet("Public", "Out of Band Management"),
		},
		"sm_instance_2": {
			Platform:       "VMWARE",
			DeploymentType: "OVA",
			IPAddress1:     "100.88.6.63",
			IPAddress2:     "100.88.6.64",
			Netmask:        "255.255.255.0",
			DefaultGateway: "100.88.6.1",
			Hostname:       "Robin2dc25sm2",
			TemplateSize:   "23300devices",
			VLANID:         1022,
			VMwareEnvSpecs: appsNet("Public", "Out of Band Management"),
		},
		"sbcems_instance_1": {
			Platform:       "VMWARE",
			DeploymentType: "OVA",
			IPAddress1:     "100.88.7.10",
			M1Netmask:      "255.255.255.128",
			M1Gateway:      "100.88.7.1",
			Hostname:       "Robin2dc25emspri",
			TemplateSize:   "ems",
			VLANID:         1029,
			VMwareEnvSpecs: EnvSpecs{
				VirtualNetwork: []PortGroupBinding{
					{VirtualPortGroupName: "M1", VirtualPortGroup: "DC25_CUST_002_SBC_MGMT"},
				},
				VMFolderName: "EMEA2_customer_002",
			},
		},
		"sbcrw_instance_2": {
			Platform:       "VMWARE",
			DeploymentType: "OVA",
			IPAddress1:     "100.88.7.21",
			M1Netmask:      "255.255.255.128",
			M1Gateway:      "100.88.7.1",
			Hostname:       "Robin2dc25sbcrw1b",
			TemplateSize:   "sbc",
			VLANID:         1029,
			VMwareEnvSpecs: EnvSpecs{
				VirtualNetwork: []PortGroupBinding{
					{VirtualPortGroupName: "M1", VirtualPortGroup: "DC25_CUST_002_SBC_MGMT"},
				},
				VMFolderName: "EMEA2_customer_002",
			},
		},
		"sbctrunking_instance_1": {
			Platform:       "VMWARE",
			DeploymentType: "OVA",
			IPAddress1:     "100.88.7.81",
			M1Netmask:      "255.255.255.128",
			M1Gateway:      "100.88.7.1",
			Hostname:       "Robin2dc25sbctg1a",
			TemplateSize:   "sbc",
			VLANID:         1029,
			VMwareEnvSpecs: EnvSpecs{
				VirtualNetwork: []PortGroupBinding{
					{VirtualPortGroupName: "M1", VirtualPortGroup: "DC25_CUST_002_SBC_MGMT"},
				},
				VMFolderName: "EMEA2_customer_002",
			},
		},
		"aes_instance_1": {
			Platform:         "VMWARE",
			DeploymentType:   "OVA",
			IPAddress1:       "100.88.6.161",
			Netmask:          "255.255.255.0",
			DefaultGateway:   "100.88.6.1",
			VirtualIPAddress: "100.88.6.51",
			Hostname:         "Robin2dc25aes1a",
			TemplateSize:     "aesFootprint-profile3",
			VLANID:           1022,
			VMwareEnvSpecs:   appsNet("Public"),
		},
		"aes_instance_2": {
			Platform:         "VMWARE",
			DeploymentType:   "OVA",
			IPAddress1:       "100.88.6.171",
			Netmask:          "255.255.255.0",
			DefaultGateway:   "100.88.6.1",
			VirtualIPAddress: "100.88.6.51",
			Hostname:         "Robin2dc25aes1b",
			TemplateSize:     "aesFootprint-profile3",
			VLANID:           1022,
			VMwareEnvSpecs:   appsNet("Public"),
		},
	}

	for name, want := range expected {
		got, ok := doc.VMInstanceSpecs[name]
		if !ok {
			t.Errorf("%s missing from rendered plan", name)
			continue
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("%s mismatch (-expected +actual):\n%s", name, diff)
		}
	}

	if total := len(doc.VMInstanceSpecs); total != 26 {
		t.Errorf("expected 26 instances for a small primary, got %d", total)
	}
}

func TestRenderSecondarySmall(t *testing.T) {
	doc := renderOK(t, map[string]interface{}{
		"datacenter_id": "EMEA1",
		"cust_num":      2,
		"cust_name":     "Robin",
		"cc_users":      500,
		"uc_users":      0,
		"num_users":     500,
	})

	ess, ok := doc.VMInstanceSpecs["cm_ess_instance_1"]
	if !ok {
		t.Fatal("cm_ess_instance_1 missing from rendered plan")
	}
	expected := &InstanceSpec{
		Platform:       "VMWARE",
		DeploymentType: "OVA",
		IPAddress1:     "100.80.6.11",
		Netmask:        "255.255.255.0",
		DefaultGateway: "100.80.6.1",
		Hostname:       "Robin2dc17ccess1",
		TemplateSize:   "Large",
		VLANID:         1022,
		VMwareEnvSpecs: EnvSpecs{
			VirtualNetwork: []PortGroupBinding{
				{VirtualPortGroupName: "Public", VirtualPortGroup: "DC17_CUST_002_APPS"},
			},
			VMFolderName: "EMEA1_customer_002",
		},
	}
	if diff := cmp.Diff(expected, ess); diff != "" {
		t.Errorf("cm_ess_instance_1 mismatch (-expected +actual):\n%s", diff)
	}

	if countFamily(doc, "cm_duplex") != 0 {
		t.Error("secondary data center must not carry duplex CM instances")
	}
	if got := doc.VMInstanceSpecs["smgr_instance_1"].Hostname; got != "Robin2dc17smgrgeo" {
		t.Errorf("unexpected smgr hostname: %q", got)
	}
	if got := doc.VMInstanceSpecs["win_instance_1"].Hostname; got != "Robin2dc17ds" {
		t.Errorf("unexpected win hostname: %q", got)
	}
	if got := doc.VMInstanceSpecs["sbcems_instance_1"].Hostname; got != "Robin2dc17emssec" {
		t.Errorf("unexpected sbcems hostname: %q", got)
	}
	if got := doc.VMInstanceSpecs["cms_instance_1"].Hostname; got != "Robin2dc17cccmssec1" {
		t.Errorf("unexpected cms hostname: %q", got)
	}
	if total := len(doc.VMInstanceSpecs); total != 25 {
		t.Errorf("expected 25 instances for a small secondary, got %d", total)
	}
}

func TestRenderCapacityScaling(t *testing.T) {
	tc := []struct {
		name     string
		cc       int
		uc       int
		expected map[string]int
	}{
		{
			name: "UC only small",
			cc:   0,
			uc:   500,
			expected: map[string]int{
				"cm_duplex": 2, "cms": 0, "aes": 0,
				"ams": 1, "sbcrw": 2, "sbctrunking": 2,
			},
		},
		{
			name: "UC only large",
			cc:   0,
			uc:   32000,
			expected: map[string]int{
				"cm_duplex": 4, "cms": 0, "aes": 0,
				"ams": 10, "sbcrw": 16, "sbctrunking": 4,
				"aam": 5, "ixm": 7, "ps": 3,
			},
		},
		{
			name: "Mixture large",
			cc:   16000,
			uc:   16000,
			expected: map[string]int{
				"cm_duplex": 10, "cms": 4, "aes": 8,
				"ams": 10, "sbcrw": 16, "sbctrunking": 10,
			},
		},
		{
			name: "Mixed huge sized independently",
			cc:   32000,
			uc:   32000,
			expected: map[string]int{
				"cm_duplex": 20, "cms": 8, "aes": 16,
			},
		},
		{
			name: "Mixture small",
			cc:   4000,
			uc:   4000,
			expected: map[string]int{
				"cm_duplex": 4, "cms": 1, "aes": 2,
				"ams": 3, "sbcrw": 4, "sbctrunking": 4,
				"aam": 2, "ixm": 3, "ps": 2,
			},
		},
	}

	for _, c := range tc {
		t.Run(c.name, func(t *testing.T) {
			doc := renderOK(t, map[string]interface{}{
				"datacenter_id": "NAR2",
				"cust_num":      2,
				"cust_name":     "Robin",
				"cc_users":      c.cc,
				"uc_users":      c.uc,
				"num_users":     c.cc + c.uc,
			})
			for family, n := range c.expected {
				if got := countFamily(doc, family); got != n {
					t.Errorf("%s: expected %d instances, got %d", family, n, got)
				}
			}
		})
	}
}

func TestRenderIdempotent(t *testing.T) {
	vars := map[string]interface{}{
		"datacenter_id": "EMEA2",
		"cust_num":      2,
		"cust_name":     "Robin",
		"cc_users":      500,
		"uc_users":      0,
	}
	first := renderOK(t, vars)
	second := renderOK(t, vars)

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if string(a) != string(b) {
		t.Error("two renders of the same parameters differ")
	}
}

func TestRender42DCRemap(t *testing.T) {
	doc := renderOK(t, map[string]interface{}{
		"datacenter_id": "NAR1",
		"cust_num":      3,
		"cust_name":     "Robin",
		"cc_users":      500,
		"num_users":     500,
		"dc2id": map[string]interface{}{
			"NAR1": 8, "NAR2": 9, "EMEA1": 17, "EMEA2": 25,
			"APAC1": 33, "APAC2": 41, "CALA1": 49, "CALA2": 57,
		},
	})

	cm := doc.VMInstanceSpecs["cm_duplex_instance_1"]
	if cm == nil {
		t.Fatal("cm_duplex_instance_1 missing from rendered plan")
	}
	if cm.IPAddress1 != "100.71.10.21" {
		t.Errorf("unexpected ip_address_1: %q", cm.IPAddress1)
	}
	if cm.IPAddress2 != "192.168.52.9" {
		t.Errorf("unexpected ip_address_2: %q", cm.IPAddress2)
	}
	if cm.Hostname != "Robin3dc8cccm1a" {
		t.Errorf("unexpected hostname: %q", cm.Hostname)
	}
	if cm.VLANID != 1032 {
		t.Errorf("unexpected VLAN: %d", cm.VLANID)
	}
	if got := cm.VMwareEnvSpecs.VirtualNetwork[0].VirtualPortGroup; got != "DC08_CUST_003_APPS" {
		t.Errorf("unexpected port group: %q", got)
	}
	if cm.VMwareEnvSpecs.VMFolderName != "NAR1_customer_003" {
		t.Errorf("unexpected folder: %q", cm.VMwareEnvSpecs.VMFolderName)
	}
}

func TestRenderCustomNetwork(t *testing.T) {
	doc := renderOK(t, map[string]interface{}{
		"datacenter_id":  "NAR1",
		"cust_num":       3,
		"cust_name":      "Robin",
		"cc_users":       500,
		"num_users":      500,
		"custom_network": true,
		"subnets": map[string]interface{}{
			"NAR1": []map[string]interface{}{
				{"type": "apps", "gw": "10.136.116.1", "vlan": 1000, "port_grp": "APPS_LAN", "prefix": "24"},
				{"type": "oobm", "gw": "10.136.116.1", "vlan": 1000, "port_grp": "OOBM_LAN", "prefix": "24"},
				{"type": "cm_dup", "gw": "192.168.51.1", "vlan": 1001, "port_grp": "CM_DUPL_LAN", "prefix": "24"},
			},
		},
	})

	cm := doc.VMInstanceSpecs["cm_duplex_instance_1"]
	if cm == nil {
		t.Fatal("cm_duplex_instance_1 missing from rendered plan")
	}
	if cm.IPAddress1 != "10.136.116.21" {
		t.Errorf("unexpected ip_address_1: %q", cm.IPAddress1)
	}
	if cm.IPAddress2 != "192.168.52.9" {
		t.Errorf("dup-link address must not change with custom networks: %q", cm.IPAddress2)
	}
	if cm.VirtualIPAddress != "10.136.116.11" {
		t.Errorf("unexpected virtual ip: %q", cm.VirtualIPAddress)
	}
	if cm.Hostname != "Robin3dc1cccm1a" {
		t.Errorf("unexpected hostname: %q", cm.Hostname)
	}
	if cm.DefaultGateway != "10.136.116.1" {
		t.Errorf("unexpected gateway: %q", cm.DefaultGateway)
	}
	if cm.VLANID != 1000 || cm.VLANID2 != 1001 {
		t.Errorf("unexpected VLANs: %d/%d", cm.VLANID, cm.VLANID2)
	}

	groups := []string{}
	for _, b := range cm.VMwareEnvSpecs.VirtualNetwork {
		groups = append(groups, b.VirtualPortGroup)
	}
	if diff := cmp.Diff([]string{"APPS_LAN", "OOBM_LAN", "CM_DUPL_LAN"}, groups); diff != "" {
		t.Errorf("unexpected port groups (-expected +actual):\n%s", diff)
	}
}

func TestRenderEnvironmentAddresses(t *testing.T) {
	tc := []struct {
		name  string
		env   string
		ntp   string
		weblm string
	}{
		{name: "Default estate", env: "", ntp: "10.130.108.2", weblm: "10.130.108.10"},
		{name: "AOC", env: "AOC", ntp: "100.66.1.2", weblm: "100.64.1.10"},
		{name: "IBM", env: "IBM", ntp: "100.67.96.2", weblm: "100.67.96.10"},
	}

	for _, c := range tc {
		t.Run(c.name, func(t *testing.T) {
			vars := map[string]interface{}{
				"datacenter_id": "NAR1",
				"cust_num":      3,
				"cust_name":     "Robin",
				"cc_users":      500,
				"num_users":     500,
			}
			if c.env != "" {
				vars["env"] = c.env
			}
			doc := renderOK(t, vars)
			win := doc.VMInstanceSpecs["win_instance_1"]
			if win.NTP != c.ntp {
				t.Errorf("unexpected ntp: %q, expected %q", win.NTP, c.ntp)
			}
			if win.WebLM != c.weblm {
				t.Errorf("unexpected weblm: %q, expected %q", win.WebLM, c.weblm)
			}
		})
	}
}

func TestRenderDetails(t *testing.T) {
	doc, warnings, err := NewEngine().Render(map[string]interface{}{"template_details": true})
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	if doc.TemplateSpecs == nil || doc.TemplateSpecs.TemplateName == "" || doc.TemplateSpecs.TemplateDescription == "" {
		t.Fatal("details mode must return template metadata")
	}
	if len(doc.VMInstanceSpecs) != 0 {
		t.Error("details mode must not expand instances")
	}
	for _, p := range []string{"datacenter_id", "cust_num", "cust_name", "cc_users", "uc_users"} {
		found := false
		for _, m := range doc.MandatoryParameters {
			if m == p {
				found = true
			}
		}
		if !found {
			t.Errorf("mandatory parameter %q missing", p)
		}
	}
	for _, p := range []string{"primary", "secondary"} {
		found := false
		for _, o := range doc.OptionalParameters {
			if o == p {
				found = true
			}
		}
		if !found {
			t.Errorf("optional parameter %q missing", p)
		}
	}
}

func TestRenderTypeMismatch(t *testing.T) {
	_, _, err := NewEngine().Render(map[string]interface{}{
		"datacenter_id": "NAR2",
		"cust_num":      "two",
		"cust_name":     "Robin",
		"num_users":     500,
	})
	if err == nil {
		t.Fatal("expected a type error for a non-numeric customer number")
	}
}

func TestRenderUnknownDatacenter(t *testing.T) {
	_, _, err := NewEngine().Render(map[string]interface{}{
		"datacenter_id": "MARS1",
		"cust_num":      1,
		"cust_name":     "Robin",
		"num_users":     500,
	})
	if err == nil {
		t.Fatal("expected an error for an unknown datacenter")
	}
}

func TestInstanceNamesContiguous(t *testing.T) {
	doc := renderOK(t, map[string]interface{}{
		"datacenter_id": "NAR2",
		"cust_num":      2,
		"cust_name":     "Robin",
		"cc_users":      16000,
		"uc_users":      16000,
	})

	families := map[string]int{}
	for name := range doc.VMInstanceSpecs {
		idx := strings.LastIndex(name, "_instance_")
		if idx < 0 {
			t.Fatalf("instance name %q does not follow the naming scheme", name)
		}
		families[name[:idx]]++
	}
	for family, n := range families {
		for i := 1; i <= n; i++ {
			key := fmt.Sprintf("%s_instance_%d", family, i)
			if _, ok := doc.VMInstanceSpecs[key]; !ok {
				t.Errorf("%s missing: %s numbering is not contiguous from 1", key, family)
			}
		}
	}
}
