// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// Package vsphere wraps the vCenter operations the configurator pipelines
// need: guest reboot, guest command execution and VM resizing.
package vsphere

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/find"
	"github.com/vmware/govmomi/guest"
	"github.com/vmware/govmomi/object"
	"github.com/vmware/govmomi/vim25/soap"
	"github.com/vmware/govmomi/vim25/types"

	"github.com/vmware/solution-deployer/deployer/store"
)

// GuestCommands is a batch of programs to run inside one guest, with the
// guest credentials to run them as.
type GuestCommands struct {
	// Commands are (program path, argument string) pairs, run in order.
	Commands [][2]string
	Username string
	Password string
}

// Driver defines the vCenter operations used by the configurator
// pipelines.
type Driver interface {
	RebootVM(ctx context.Context, site, vmName string, logger hclog.Logger) error
	RunVMCommands(ctx context.Context, site, vmName string, args GuestCommands, logger hclog.Logger, waitForDone bool) error
	ChangeCPUSize(site, vmType, vmName, profile string, logger hclog.Logger) error
	ChangeMemorySize(site, vmType, vmName, profile string, logger hclog.Logger) error
}

// Sites resolves a site name to its vCenter connection details.
type Sites interface {
	GetDatacenter(site string) (*store.Datacenter, error)
}

// VCenterDriver implements Driver against live vCenter servers, one
// connection per site.
type VCenterDriver struct {
	Sites Sites

	// Runner executes the govc binary for resize operations.
	Runner CommandRunner

	// PollInterval is how often guest processes are polled when waiting
	// for completion.
	PollInterval time.Duration

	mu          sync.Mutex
	connections map[string]*connection
}

type connection struct {
	client     *govmomi.Client
	finder     *find.Finder
	datacenter *object.Datacenter
}

func NewVCenterDriver(sites Sites) *VCenterDriver {
	return &VCenterDriver{
		Sites:        sites,
		Runner:       ExecRunner{},
		PollInterval: 2 * time.Second,
		connections:  map[string]*connection{},
	}
}

func (d *VCenterDriver) connect(ctx context.Context, site string) (*connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if conn, ok := d.connections[site]; ok {
		return conn, nil
	}

	dc, err := d.Sites.GetDatacenter(site)
	if err != nil {
		return nil, err
	}
	u, err := soap.ParseURL(dc.Hostname)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing vCenter URL for site %q", site)
	}
	u.User = url.UserPassword(dc.Username, dc.Password)

	client, err := govmomi.NewClient(ctx, u, dc.IgnoreSSL)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to vCenter for site %q", site)
	}
	finder := find.NewFinder(client.Client, false)
	datacenter, err := finder.DatacenterOrDefault(ctx, dc.Datacenter)
	if err != nil {
		return nil, errors.Wrapf(err, "finding datacenter for site %q", site)
	}
	finder.SetDatacenter(datacenter)

	conn := &connection{client: client, finder: finder, datacenter: datacenter}
	d.connections[site] = conn
	return conn, nil
}

func (d *VCenterDriver) findVM(ctx context.Context, site, vmName string) (*connection, *object.VirtualMachine, error) {
	conn, err := d.connect(ctx, site)
	if err != nil {
		return nil, nil, err
	}
	vm, err := conn.finder.VirtualMachine(ctx, vmName)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "finding VM %q at site %q", vmName, site)
	}
	return conn, vm, nil
}

// RebootVM issues a guest reboot.
func (d *VCenterDriver) RebootVM(ctx context.Context, site, vmName string, logger hclog.Logger) error {
	_, vm, err := d.findVM(ctx, site, vmName)
	if err != nil {
		return err
	}
	logger.Info("rebooting VM", "site", site, "vm", vmName)
	if err := vm.RebootGuest(ctx); err != nil {
		return errors.Wrapf(err, "rebooting VM %q", vmName)
	}
	return nil
}

// RunVMCommands starts each program inside the guest through the guest
// operations manager. With waitForDone set, each program must finish
// before the next one starts.
func (d *VCenterDriver) RunVMCommands(ctx context.Context, site, vmName string, args GuestCommands, logger hclog.Logger, waitForDone bool) error {
	conn, vm, err := d.findVM(ctx, site, vmName)
	if err != nil {
		return err
	}
	ops := guest.NewOperationsManager(conn.client.Client, vm.Reference())
	pm, err := ops.ProcessManager(ctx)
	if err != nil {
		return errors.Wrapf(err, "opening guest process manager on %q", vmName)
	}
	auth := &types.NamePasswordAuthentication{
		Username: args.Username,
		Password: args.Password,
	}

	for _, cmd := range args.Commands {
		logger.Debug("running guest command", "vm", vmName, "program", cmd[0])
		pid, err := pm.StartProgram(ctx, auth, &types.GuestProgramSpec{
			ProgramPath: cmd[0],
			Arguments:   cmd[1],
		})
		if err != nil {
			return errors.Wrapf(err, "starting %q in guest %q", cmd[0], vmName)
		}
		if !waitForDone {
			continue
		}
		if err := d.waitForProcess(ctx, pm, auth, pid, vmName); err != nil {
			return err
		}
	}
	return nil
}

func (d *VCenterDriver) waitForProcess(ctx context.Context, pm *guest.ProcessManager, auth types.BaseGuestAuthentication, pid int64, vmName string) error {
	interval := d.PollInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	for {
		procs, err := pm.ListProcesses(ctx, auth, []int64{pid})
		if err != nil {
			return errors.Wrapf(err, "polling guest process %d on %q", pid, vmName)
		}
		if len(procs) > 0 && procs[0].EndTime != nil {
			if procs[0].ExitCode != 0 {
				return errors.Errorf("guest process %d on %q exited with code %d", pid, vmName, procs[0].ExitCode)
			}
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "waiting for guest process %d on %q", pid, vmName)
		case <-time.After(interval):
		}
	}
}

// Cleanup logs out every open session.
func (d *VCenterDriver) Cleanup(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for site, conn := range d.connections {
		_ = conn.client.Logout(ctx)
		delete(d.connections, site)
	}
}

func (d *VCenterDriver) govcEnv(site string) ([]string, error) {
	dc, err := d.Sites.GetDatacenter(site)
	if err != nil {
		return nil, err
	}
	insecure := "0"
	if dc.IgnoreSSL {
		insecure = "1"
	}
	return []string{
		"GOVC_URL=" + dc.Hostname,
		"GOVC_USERNAME=" + dc.Username,
		"GOVC_PASSWORD=" + dc.Password,
		"GOVC_INSECURE=" + insecure,
		"GOVC_DATACENTER=" + dc.Datacenter,
		"GOVC_DATASTORE=" + dc.Datastore,
	}, nil
}

// ChangeCPUSize resizes a VM's CPU allocation to its profile through govc.
func (d *VCenterDriver) ChangeCPUSize(site, vmType, vmName, profile string, logger hclog.Logger) error {
	size, err := cpuProfile(vmType, profile)
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("%s vm.change -vm %s -c=%d -e cpuid.coresPerSocket=%d",
		GovcBin, vmName, size.Cores, size.CoresPerSocket)
	return d.runGovc(site, cmd, logger)
}

// ChangeMemorySize resizes a VM's memory allocation to its profile through
// govc.
func (d *VCenterDriver) ChangeMemorySize(site, vmType, vmName, profile string, logger hclog.Logger) error {
	mb, err := memoryProfile(vmType, profile)
	if err != nil {
		return err
	}
	cmd := fmt.Sprintf("%s vm.change -vm %s -m=%d", GovcBin, vmName, mb)
	return d.runGovc(site, cmd, logger)
}

func (d *VCenterDriver) runGovc(site, cmd string, logger hclog.Logger) error {
	env, err := d.govcEnv(site)
	if err != nil {
		return err
	}
	logger.Debug("running govc", "command", cmd)
	out, exitCode, err := d.Runner.Run(cmd, env)
	if err != nil {
		return errors.Wrap(err, "running govc")
	}
	if exitCode != 0 {
		return errors.Errorf("govc exited with code %d: %s", exitCode, out)
	}
	return nil
}
