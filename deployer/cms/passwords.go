// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package cms

import (
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/vmware/solution-deployer/deployer/store"
)

// Local accounts whose passwords can be rotated on a CMS host.
const (
	LoginCLI   = "cms"
	LoginAdmin = "cmssvc"
	LoginRoot  = "root"
)

// Changer rotates one account password on a deployed machine and records
// the new value in the store.
type Changer func(c *Configurator, custID int, instance, newPassword string, logger hclog.Logger) bool

type rotation struct {
	change Changer
	dbKey  string
}

var passwordChangers = map[string]rotation{
	LoginCLI:   {(*Configurator).ChangeCLIPassword, store.KeyCLIPassword},
	LoginAdmin: {(*Configurator).ChangeAdminPassword, store.KeyAdminPassword},
	LoginRoot:  {(*Configurator).ChangeRootPassword, store.KeyRootPassword},
}

// ChangeFunction resolves the rotation routine for a login on a CMS
// instance. Only CMS machines carry these accounts.
func ChangeFunction(instance, login string) (Changer, error) {
	entry, err := passwordEntry(instance, login)
	if err != nil {
		return nil, err
	}
	return entry.change, nil
}

// PasswordKey resolves the store key a rotated login is recorded under.
func PasswordKey(instance, login string) (string, error) {
	entry, err := passwordEntry(instance, login)
	if err != nil {
		return "", err
	}
	return entry.dbKey, nil
}

func passwordEntry(instance, login string) (rotation, error) {
	if store.InstanceType(instance) != "cms" {
		return rotation{}, errors.Errorf("no password rotation for instance %q", instance)
	}
	entry, ok := passwordChangers[login]
	if !ok {
		return rotation{}, errors.Errorf("no password rotation for login %q", login)
	}
	return entry, nil
}

// ChangeCLIPassword rotates the cms account.
func (c *Configurator) ChangeCLIPassword(custID int, instance, newPassword string, logger hclog.Logger) bool {
	return c.changePassword(custID, instance, LoginCLI, store.KeyCLIPassword, newPassword, logger)
}

// ChangeAdminPassword rotates the cmssvc account.
func (c *Configurator) ChangeAdminPassword(custID int, instance, newPassword string, logger hclog.Logger) bool {
	return c.changePassword(custID, instance, LoginAdmin, store.KeyAdminPassword, newPassword, logger)
}

// ChangeRootPassword rotates the root account.
func (c *Configurator) ChangeRootPassword(custID int, instance, newPassword string, logger hclog.Logger) bool {
	return c.changePassword(custID, instance, LoginRoot, store.KeyRootPassword, newPassword, logger)
}

// changePassword drives the passwd dialogue as root and records the new
// value only after the machine accepted it; a half-rotated password in the
// store would lock every later pipeline out of the machine.
func (c *Configurator) changePassword(custID int, instance, login, key, newPassword string, logger hclog.Logger) bool {
	creds, err := c.Data.VMDetails(custID, instance)
	if err != nil {
		logger.Error("reading VM details", "instance", instance, "error", err)
		return false
	}
	steps, err := scriptSteps("passwd.txt", []string{newPassword, newPassword})
	if err != nil {
		logger.Error("loading interaction script", "script", "passwd.txt", "error", err)
		return false
	}
	ok, _ := c.Sessions.RunExpectWithRoot(creds.IP, creds.Username, creds.Password,
		creds.RootUsername, creds.RootPassword, "passwd "+login, "",
		logger, steps, userPrompt, rootPrompt)
	if !ok {
		logger.Error("password rotation failed", "instance", instance, "login", login)
		return false
	}
	if err := c.Data.SetVMPassword(custID, instance, key, newPassword); err != nil {
		logger.Error("recording rotated password", "instance", instance, "login", login, "error", err)
		return false
	}
	return true
}
