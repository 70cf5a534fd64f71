// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package vsphere

import (
	"context"
	"sync"

	"github.com/hashicorp/go-hclog"
)

// DriverMock provides a mock implementation of the Driver interface for
// testing. Pipelines run VMs concurrently, so recorded fields are guarded.
type DriverMock struct {
	mu sync.Mutex

	RebootVMCalled     bool
	RebootVMSite       string
	RebootVMName       string
	RebootVMShouldFail bool
	RebootVMErr        error

	RunVMCommandsCalled      bool
	RunVMCommandsSite        string
	RunVMCommandsName        string
	RunVMCommandsArgs        GuestCommands
	RunVMCommandsWaitForDone bool
	RunVMCommandsShouldFail  bool
	RunVMCommandsErr         error

	ChangeCPUSizeCalled     bool
	ChangeCPUSizeVMType     string
	ChangeCPUSizeVMName     string
	ChangeCPUSizeProfile    string
	ChangeCPUSizeShouldFail bool
	ChangeCPUSizeErr        error

	ChangeMemorySizeCalled     bool
	ChangeMemorySizeVMType     string
	ChangeMemorySizeVMName     string
	ChangeMemorySizeProfile    string
	ChangeMemorySizeShouldFail bool
	ChangeMemorySizeErr        error
}

// NewDriverMock creates a new instance of DriverMock for testing.
func NewDriverMock() *DriverMock {
	return new(DriverMock)
}

func (d *DriverMock) RebootVM(_ context.Context, site, vmName string, _ hclog.Logger) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.RebootVMCalled = true
	d.RebootVMSite = site
	d.RebootVMName = vmName
	if d.RebootVMShouldFail {
		return d.RebootVMErr
	}
	return nil
}

func (d *DriverMock) RunVMCommands(_ context.Context, site, vmName string, args GuestCommands, _ hclog.Logger, waitForDone bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.RunVMCommandsCalled = true
	d.RunVMCommandsSite = site
	d.RunVMCommandsName = vmName
	d.RunVMCommandsArgs = args
	d.RunVMCommandsWaitForDone = waitForDone
	if d.RunVMCommandsShouldFail {
		return d.RunVMCommandsErr
	}
	return nil
}

func (d *DriverMock) ChangeCPUSize(_, vmType, vmName, profile string, _ hclog.Logger) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ChangeCPUSizeCalled = true
	d.ChangeCPUSizeVMType = vmType
	d.ChangeCPUSizeVMName = vmName
	d.ChangeCPUSizeProfile = profile
	if d.ChangeCPUSizeShouldFail {
		return d.ChangeCPUSizeErr
	}
	return nil
}

func (d *DriverMock) ChangeMemorySize(_, vmType, vmName, profile string, _ hclog.Logger) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ChangeMemorySizeCalled = true
	d.ChangeMemorySizeVMType = vmType
	d.ChangeMemorySizeVMName = vmName
	d.ChangeMemorySizeProfile = profile
	if d.ChangeMemorySizeShouldFail {
		return d.ChangeMemorySizeErr
	}
	return nil
}
