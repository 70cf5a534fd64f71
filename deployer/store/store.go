// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// Package store persists solution records, rendered deployment plans, VM
// credentials and per-customer environment values. Two implementations are
// provided: an in-memory store for tests and a Postgres-backed store for
// deployments.
package store

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// NotDeployed is the customer-name sentinel returned for lookups of
// customers that have no solution record.
const NotDeployed = "Not in parameters list"

// Data-center roles recorded with a deployment plan.
const (
	RolePrimary   = "PRIMARY"
	RoleSecondary = "SECONDARY"
)

// Password keys accepted by SetVMPassword.
const (
	KeyCLIPassword   = "CLIPASSWORD"
	KeyAdminPassword = "ADMINPASSWORD"
	KeyRootPassword  = "ROOTPASSWORD"
)

// Solution is one customer's deployment record.
type Solution struct {
	CustomerID               int       `json:"customerId"`
	CustomerName             string    `json:"customerName"`
	NumberOfUsers            int       `json:"numberOfUsers"`
	RemoteSupport            bool      `json:"remoteSupport"`
	RequestType              string    `json:"requestType"`
	NumberOfRequests         int       `json:"numberOfRequests"`
	DeploymentDate           time.Time `json:"deploymentDate"`
	PrimaryLocation          string    `json:"primaryLocation"`
	PrimaryDeploymentType    string    `json:"primaryDeploymentType"`
	PrimaryDeploymentState   string    `json:"primaryDeploymentState"`
	SecondaryLocation        string    `json:"secondaryLocation"`
	SecondaryDeploymentType  string    `json:"secondaryDeploymentType"`
	SecondaryDeploymentState string    `json:"secondaryDeploymentState"`
}

// VMCredentials carries everything needed to open sessions on one deployed
// machine.
type VMCredentials struct {
	Name          string
	IP            string
	Username      string
	Password      string
	RootUsername  string
	RootPassword  string
	CLIUsername   string
	CLIPassword   string
	AdminPassword string
	Port          int
}

// Datacenter is one vCenter site the deployer can place machines in.
type Datacenter struct {
	SiteName         string
	SiteFName        string
	Factory          string
	Hostname         string
	Username         string
	Password         string
	IgnoreSSL        bool
	Datacenter       string
	Datastore        string
	Cluster          string
	DiskProvisioning string
	ResourcePool     string
}

// Plan is a persisted deployment plan: the rendered instance specs plus the
// site and role they were rendered for.
type Plan struct {
	Site      string
	Role      string
	Instances map[string]*InstanceRecord
}

// InstanceRecord is the subset of a rendered instance spec the configurator
// pipelines read back.
type InstanceRecord struct {
	IPAddress1        string `json:"ip_address_1"`
	IPAddress2        string `json:"ip_address_2,omitempty"`
	Hostname          string `json:"hostname"`
	VirtualIPAddress  string `json:"virtual_ip_address,omitempty"`
	VirtualIPHostname string `json:"virtual_ip_hostname,omitempty"`
	NTP               string `json:"ntp,omitempty"`
	WebLM             string `json:"weblm,omitempty"`
	TemplateSize      string `json:"template_size,omitempty"`
}

// Store is the persistence contract shared by the in-memory and database
// implementations.
type Store interface {
	// CreateSolution registers a new customer. Creating a customer twice
	// fails.
	CreateSolution(custID, numUsers int, remoteSupport bool, custName string) (*Solution, error)
	// GetSolution never fails on a missing customer: it returns a sentinel
	// record whose CustomerName is NotDeployed.
	GetSolution(custID int) (*Solution, error)
	ListSolutions() ([]*Solution, error)
	ListCustomers() ([]int, error)
	DeleteSolution(custID int) error

	SavePlan(custID int, plan *Plan) error
	GetPlan(custID int) (*Plan, error)

	// SetCustEnv stores a per-customer environment value. A nil value is
	// stored as the empty string; GetCustEnv distinguishes a stored empty
	// value (ok) from a key that was never set (not ok).
	SetCustEnv(custID int, key string, value *string) error
	GetCustEnv(custID int, key string) (string, bool, error)

	SaveVMCredentials(custID int, instance string, creds VMCredentials) error
	GetVMCredentials(custID int, instance string) (*VMCredentials, error)
	// SetVMPassword rotates one of the credential fields selected by a
	// password key (KeyCLIPassword, KeyAdminPassword, KeyRootPassword).
	SetVMPassword(custID int, instance, key, value string) error

	SetVMExtraParameter(custID int, instance, key string, value interface{}) error
	// GetVMExtraParameter decodes the stored value into out and reports
	// whether the key was present.
	GetVMExtraParameter(custID int, instance, key string, out interface{}) (bool, error)

	SaveDatacenter(dc Datacenter) error
	GetDatacenter(site string) (*Datacenter, error)
}

func duplicateSolution(custID int) error {
	return errors.Errorf("Solution already exists, customer ID = %d", custID)
}

func notDeployed(custID int) *Solution {
	return &Solution{CustomerID: custID, CustomerName: NotDeployed}
}

func applyPassword(creds *VMCredentials, key, value string) error {
	switch key {
	case KeyCLIPassword:
		creds.CLIPassword = value
	case KeyAdminPassword:
		creds.AdminPassword = value
	case KeyRootPassword:
		creds.RootPassword = value
	default:
		return errors.Errorf("unknown password key %q", key)
	}
	return nil
}

// InstanceType extracts the family name from an instance key, e.g.
// "cms_instance_1" -> "cms".
func InstanceType(instance string) string {
	if idx := strings.LastIndex(instance, "_instance_"); idx >= 0 {
		return instance[:idx]
	}
	return instance
}

// Accessor layers plan-derived lookups over a Store. It mirrors the data
// views the configurator pipelines need without each pipeline re-reading
// the raw plan.
type Accessor struct {
	Store
}

func (a Accessor) instance(custID int, instance string) (*InstanceRecord, error) {
	plan, err := a.GetPlan(custID)
	if err != nil {
		return nil, err
	}
	rec, ok := plan.Instances[instance]
	if !ok {
		return nil, errors.Errorf("no instance %q in customer %d plan", instance, custID)
	}
	return rec, nil
}

// VMDetails returns the connection details for one deployed machine.
func (a Accessor) VMDetails(custID int, instance string) (*VMCredentials, error) {
	return a.GetVMCredentials(custID, instance)
}

func (a Accessor) Hostname(custID int, instance string) (string, error) {
	rec, err := a.instance(custID, instance)
	if err != nil {
		return "", err
	}
	return rec.Hostname, nil
}

func (a Accessor) IPAddress1(custID int, instance string) (string, error) {
	rec, err := a.instance(custID, instance)
	if err != nil {
		return "", err
	}
	return rec.IPAddress1, nil
}

func (a Accessor) VirtualIP(custID int, instance string) (string, error) {
	rec, err := a.instance(custID, instance)
	if err != nil {
		return "", err
	}
	return rec.VirtualIPAddress, nil
}

// NTP returns the shared NTP address of the customer's site, carried by the
// Windows utility host in the plan.
func (a Accessor) NTP(custID int) (string, error) {
	return a.winField(custID, func(rec *InstanceRecord) string { return rec.NTP })
}

// WebLMIP returns the shared WebLM address of the customer's site.
func (a Accessor) WebLMIP(custID int) (string, error) {
	return a.winField(custID, func(rec *InstanceRecord) string { return rec.WebLM })
}

func (a Accessor) winField(custID int, pick func(*InstanceRecord) string) (string, error) {
	plan, err := a.GetPlan(custID)
	if err != nil {
		return "", err
	}
	for name, rec := range plan.Instances {
		if InstanceType(name) == "win" {
			return pick(rec), nil
		}
	}
	return "", errors.Errorf("no utility host in customer %d plan", custID)
}

// DCType reports whether the customer's plan was rendered for the primary
// or the secondary member of its region pair.
func (a Accessor) DCType(custID int) (string, error) {
	plan, err := a.GetPlan(custID)
	if err != nil {
		return "", err
	}
	return plan.Role, nil
}

// DCName returns the site the customer's plan was rendered for.
func (a Accessor) DCName(custID int) (string, error) {
	plan, err := a.GetPlan(custID)
	if err != nil {
		return "", err
	}
	return plan.Site, nil
}

func (a Accessor) CLIUsername(custID int, instance string) (string, error) {
	creds, err := a.GetVMCredentials(custID, instance)
	if err != nil {
		return "", err
	}
	return creds.CLIUsername, nil
}

func (a Accessor) CLIPassword(custID int, instance string) (string, error) {
	creds, err := a.GetVMCredentials(custID, instance)
	if err != nil {
		return "", err
	}
	return creds.CLIPassword, nil
}
