// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package template

import (
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
)

// SubnetOverride replaces one of a site's derived networks when the
// custom_network flag is set. Type selects which network is replaced:
// apps, oobm, cm_dup, sbc or ams.
type SubnetOverride struct {
	Type      string `mapstructure:"type"`
	Gateway   string `mapstructure:"gw"`
	VLAN      int    `mapstructure:"vlan"`
	PortGroup string `mapstructure:"port_grp"`
	Prefix    string `mapstructure:"prefix"`
}

// Variables carries a customer's sizing and placement parameters. Decoding
// is strict: a value of the wrong type (a non-numeric customer number, say)
// fails the render outright instead of being coerced.
type Variables struct {
	DatacenterID string `mapstructure:"datacenter_id"`
	CustNum      int    `mapstructure:"cust_num"`
	CustName     string `mapstructure:"cust_name"`
	CCUsers      int    `mapstructure:"cc_users"`
	UCUsers      int    `mapstructure:"uc_users"`
	NumUsers     int    `mapstructure:"num_users"`
	EASGEnable   bool   `mapstructure:"easg_enable"`

	// Env selects the shared-service addresses (NTP, WebLM) for the
	// hosting environment; empty means the default estate.
	Env string `mapstructure:"env"`

	// Primary/Secondary override the derived data-center role.
	Primary   *bool `mapstructure:"primary"`
	Secondary *bool `mapstructure:"secondary"`

	CustomNetwork bool                        `mapstructure:"custom_network"`
	Subnets       map[string][]SubnetOverride `mapstructure:"subnets"`

	// DC2ID remaps data-center names to numeric ids for 42-DC estates.
	DC2ID map[string]int `mapstructure:"dc2id"`

	// TemplateDetails short-circuits the render and returns template
	// metadata plus parameter names instead of instance specs.
	TemplateDetails bool `mapstructure:"template_details"`
}

// DecodeVariables converts a raw parameter map into typed Variables.
func DecodeVariables(raw map[string]interface{}) (*Variables, error) {
	var vars Variables
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result: &vars,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(raw); err != nil {
		return nil, errors.Wrap(err, "invalid template parameters")
	}
	if vars.NumUsers == 0 {
		vars.NumUsers = vars.CCUsers + vars.UCUsers
	}
	return &vars, nil
}

// IsSecondary reports the data-center role for this render. Explicit
// primary/secondary parameters win; otherwise the role alternates by
// customer number between the two members of a region pair.
func (v *Variables) IsSecondary() bool {
	if v.Secondary != nil {
		return *v.Secondary
	}
	if v.Primary != nil {
		return !*v.Primary
	}
	suffix := 0
	if len(v.DatacenterID) > 0 {
		if c := v.DatacenterID[len(v.DatacenterID)-1]; c >= '0' && c <= '9' {
			suffix = int(c - '0')
		}
	}
	return (suffix+v.CustNum)%2 == 1
}
