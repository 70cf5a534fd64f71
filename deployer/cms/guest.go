// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package cms

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/vmware/solution-deployer/deployer/vsphere"
)

// Guest bootstrap paths. These run through the vSphere guest operations
// API before the machine has working SSH, right after cloning.
const (
	netconfigBin  = "/cms/toolsbin/netconfig"
	networkConfig = "/tmp/cms_network.cfg"
)

// NetworkParameters describes the guest network identity written to the
// netconfig answer file. An empty Interface defaults to eth0.
type NetworkParameters struct {
	Interface string
	Hostname  string
	IPAddress string
	Domain    string
	Netmask   string
	Gateway   string
	DNS1      string
	Search    string
}

// SetupGuestUser sets one local account password inside the guest.
func (c *Configurator) SetupGuestUser(ctx context.Context, site, vmName, rootUser, rootPassword, account, password string, logger hclog.Logger, wait bool) error {
	cmds := [][2]string{{
		"/bin/sh",
		fmt.Sprintf("-c 'echo %s:%s | /usr/sbin/chpasswd'", account, password),
	}}
	return c.Driver.RunVMCommands(ctx, site, vmName, vsphere.GuestCommands{
		Commands: cmds,
		Username: rootUser,
		Password: rootPassword,
	}, logger, wait)
}

// SetupGuestRootUser seeds the root password on a freshly cloned guest.
// The cloned template ships with a passwordless root account, so the
// change authenticates with the empty password. chpasswd is fired without
// waiting; the short sleep covers the window where the guest agent still
// reports the old credentials.
func (c *Configurator) SetupGuestRootUser(ctx context.Context, site, vmName, rootPassword string, logger hclog.Logger) error {
	if err := c.SetupGuestUser(ctx, site, vmName, "root", "", "root", rootPassword, logger, false); err != nil {
		return err
	}
	c.sleep(10 * time.Second)
	return nil
}

// SetupGuestTimezone relinks /etc/localtime inside the guest.
func (c *Configurator) SetupGuestTimezone(ctx context.Context, site, vmName, rootUser, rootPassword, timezone string, logger hclog.Logger) error {
	cmds := [][2]string{
		{"/bin/rm", "-f /etc/localtime"},
		{"/bin/ln", fmt.Sprintf("-s /usr/share/zoneinfo/%s /etc/localtime", timezone)},
	}
	return c.Driver.RunVMCommands(ctx, site, vmName, vsphere.GuestCommands{
		Commands: cmds,
		Username: rootUser,
		Password: rootPassword,
	}, logger, true)
}

// SetupGuestNetwork writes the netconfig answer file line by line and then
// applies it. Key order matters to netconfig and must not change.
func (c *Configurator) SetupGuestNetwork(ctx context.Context, site, vmName, rootUser, rootPassword string, params NetworkParameters, logger hclog.Logger) error {
	iface := params.Interface
	if iface == "" {
		iface = "eth0"
	}
	entries := [][2]string{
		{"INTERFACE", iface},
		{"HOSTNAME", params.Hostname},
		{"IPADDR", params.IPAddress},
		{"DOMAIN", params.Domain},
		{"NETMASK", params.Netmask},
		{"GATEWAY", params.Gateway},
		{"DNS1", params.DNS1},
		{"SEARCH", params.Search},
	}
	cmds := make([][2]string, 0, len(entries)+1)
	for _, entry := range entries {
		cmds = append(cmds, [2]string{
			"/bin/sh",
			fmt.Sprintf("-c 'echo %s=%s >> %s'", entry[0], entry[1], networkConfig),
		})
	}
	cmds = append(cmds, [2]string{netconfigBin, networkConfig})
	return c.Driver.RunVMCommands(ctx, site, vmName, vsphere.GuestCommands{
		Commands: cmds,
		Username: rootUser,
		Password: rootPassword,
	}, logger, true)
}
