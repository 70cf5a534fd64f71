// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package template

// Document is the rendered deployment plan for one solution: every VM
// instance the solution needs, fully resolved. It is persisted as-is in the
// document store. In details mode only the metadata fields are populated.
type Document struct {
	TemplateSpecs       *TemplateSpecs           `json:"template_specs,omitempty"`
	MandatoryParameters []string                 `json:"mandatory_parameters,omitempty"`
	OptionalParameters  []string                 `json:"optional_parameters,omitempty"`
	VMInstanceSpecs     map[string]*InstanceSpec `json:"vm_instances_specs,omitempty"`
}

// TemplateSpecs is the static metadata block returned in details mode.
type TemplateSpecs struct {
	TemplateName        string `json:"template_name"`
	TemplateDescription string `json:"template_description"`
}

// InstanceSpec describes one machine to deploy. Netmask-style fields vary
// by family: most carry netmask/default_gateway, the Windows host carries a
// numeric prefix, and the SBC family uses its M1 management interface names.
type InstanceSpec struct {
	Platform          string   `json:"platform"`
	DeploymentType    string   `json:"deployment_type"`
	IPAddress1        string   `json:"ip_address_1"`
	IPAddress2        string   `json:"ip_address_2,omitempty"`
	Netmask           string   `json:"netmask,omitempty"`
	Prefix            int      `json:"prefix,omitempty"`
	M1Netmask         string   `json:"m1_netmask,omitempty"`
	DefaultGateway    string   `json:"default_gateway,omitempty"`
	M1Gateway         string   `json:"m1_gateway,omitempty"`
	VirtualIPAddress  string   `json:"virtual_ip_address,omitempty"`
	VirtualIPHostname string   `json:"virtual_ip_hostname,omitempty"`
	Hostname          string   `json:"hostname"`
	TemplateSize      string   `json:"template_size,omitempty"`
	VLANID            int      `json:"VLAN_ID"`
	VLANID2           int      `json:"VLAN_ID_2,omitempty"`
	NTP               string   `json:"ntp,omitempty"`
	WebLM             string   `json:"weblm,omitempty"`
	VMwareEnvSpecs    EnvSpecs `json:"vmware_env_specs"`
}

// EnvSpecs binds an instance to its vSphere environment.
type EnvSpecs struct {
	VirtualNetwork []PortGroupBinding `json:"virtual_network"`
	VMFolderName   string             `json:"vm_folder_name"`
}

// PortGroupBinding maps one guest NIC role to a distributed port group.
type PortGroupBinding struct {
	VirtualPortGroupName string `json:"virtual_port_group_name"`
	VirtualPortGroup     string `json:"virtual_port_group"`
}
