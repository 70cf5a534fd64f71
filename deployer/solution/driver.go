// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// Package solution is the top-level deployment driver. It owns the solution
// records, turns a rendered template into a persisted deployment plan, and
// fans the per-machine configuration pipelines out over goroutines.
package solution

import (
	"context"
	"sort"
	"sync"

	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/vmware/solution-deployer/deployer/cms"
	"github.com/vmware/solution-deployer/deployer/store"
	"github.com/vmware/solution-deployer/deployer/template"
)

// templateEnvKey records which template a customer was deployed from.
const templateEnvKey = "template_id"

// Pipeline configures one deployed machine end to end. *cms.Configurator
// satisfies it; other subsystem configurators plug in the same way.
type Pipeline interface {
	DoWork(ctx context.Context, custID int, instance string, results *cms.Results, logger hclog.Logger)
}

// TemplateRenderer expands a stored template. *store.Manager from the
// template store satisfies it.
type TemplateRenderer interface {
	Render(templateID string, vars map[string]interface{}) (*template.Document, []string, error)
}

// Driver runs solution lifecycle operations over the document store.
type Driver struct {
	Store     store.Store
	Templates TemplateRenderer

	// Pipelines maps an instance family to its configurator. Families
	// without a pipeline are deployed but left unconfigured.
	Pipelines map[string]Pipeline

	// Credentials seeds the per-family login defaults recorded for freshly
	// cloned machines; name, address and port are filled from the plan.
	Credentials map[string]store.VMCredentials
}

func NewDriver(st store.Store, templates TemplateRenderer) *Driver {
	return &Driver{
		Store:       st,
		Templates:   templates,
		Pipelines:   map[string]Pipeline{},
		Credentials: map[string]store.VMCredentials{},
	}
}

// Create registers a new solution record.
func (d *Driver) Create(custID, numUsers int, remoteSupport bool, custName string) (*store.Solution, error) {
	return d.Store.CreateSolution(custID, numUsers, remoteSupport, custName)
}

// Get returns one solution record; missing customers come back as the
// store's not-deployed sentinel.
func (d *Driver) Get(custID int) (*store.Solution, error) {
	return d.Store.GetSolution(custID)
}

// List returns every solution record.
func (d *Driver) List() ([]*store.Solution, error) {
	return d.Store.ListSolutions()
}

// Customers returns every registered customer id.
func (d *Driver) Customers() ([]int, error) {
	return d.Store.ListCustomers()
}

// Delete removes a solution and everything recorded under it.
func (d *Driver) Delete(custID int) error {
	return d.Store.DeleteSolution(custID)
}

// CustomersByTemplate lists the customers deployed from one template. It
// satisfies the template store's SolutionLister.
func (d *Driver) CustomersByTemplate(templateID string) ([]int, error) {
	customers, err := d.Store.ListCustomers()
	if err != nil {
		return nil, err
	}
	out := []int{}
	for _, custID := range customers {
		deployed, ok, err := d.Store.GetCustEnv(custID, templateEnvKey)
		if err != nil {
			return nil, err
		}
		if ok && deployed == templateID {
			out = append(out, custID)
		}
	}
	sort.Ints(out)
	return out, nil
}

// roleFromDocument derives the site role from the rendered families: only
// secondary sites carry survivable ESS servers in place of the duplex pair.
func roleFromDocument(doc *template.Document) string {
	for name := range doc.VMInstanceSpecs {
		if store.InstanceType(name) == "cm_ess" {
			return store.RoleSecondary
		}
	}
	return store.RolePrimary
}

func planFromDocument(site string, doc *template.Document) *store.Plan {
	plan := &store.Plan{
		Site:      site,
		Role:      roleFromDocument(doc),
		Instances: map[string]*store.InstanceRecord{},
	}
	for name, spec := range doc.VMInstanceSpecs {
		plan.Instances[name] = &store.InstanceRecord{
			IPAddress1:        spec.IPAddress1,
			IPAddress2:        spec.IPAddress2,
			Hostname:          spec.Hostname,
			VirtualIPAddress:  spec.VirtualIPAddress,
			VirtualIPHostname: spec.VirtualIPHostname,
			NTP:               spec.NTP,
			WebLM:             spec.WebLM,
			TemplateSize:      spec.TemplateSize,
		}
	}
	return plan
}

// Deploy renders the template, persists the plan and machine credentials,
// and runs one configuration pipeline per machine. Machines run
// concurrently; the stages within one machine stay strictly sequential
// inside its pipeline. The merged stage results are returned even when the
// deployment fails partway.
func (d *Driver) Deploy(ctx context.Context, custID int, templateID, site string, vars map[string]interface{}, logger hclog.Logger) (*cms.Results, error) {
	doc, warnings, err := d.Templates.Render(templateID, vars)
	if err != nil {
		return nil, errors.Wrapf(err, "rendering template %q", templateID)
	}
	for _, warning := range warnings {
		logger.Warn("template warning", "template", templateID, "warning", warning)
	}
	if len(doc.VMInstanceSpecs) == 0 {
		return nil, errors.Errorf("template %q rendered no instances", templateID)
	}

	plan := planFromDocument(site, doc)
	if err := d.Store.SavePlan(custID, plan); err != nil {
		return nil, errors.Wrapf(err, "persisting deployment plan for customer %d", custID)
	}
	names := make([]string, 0, len(doc.VMInstanceSpecs))
	for name := range doc.VMInstanceSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		spec := doc.VMInstanceSpecs[name]
		creds := d.Credentials[store.InstanceType(name)]
		creds.Name = spec.Hostname + "_" + spec.IPAddress1
		creds.IP = spec.IPAddress1
		if creds.Port == 0 {
			creds.Port = 22
		}
		if err := d.Store.SaveVMCredentials(custID, name, creds); err != nil {
			return nil, errors.Wrapf(err, "persisting credentials for %q", name)
		}
	}
	if err := d.Store.SetCustEnv(custID, templateEnvKey, &templateID); err != nil {
		return nil, errors.Wrapf(err, "recording template for customer %d", custID)
	}

	results := &cms.Results{}
	var wg sync.WaitGroup
	for _, name := range names {
		pipeline, ok := d.Pipelines[store.InstanceType(name)]
		if !ok {
			logger.Debug("no pipeline for instance family", "instance", name)
			continue
		}
		wg.Add(1)
		go func(name string, pipeline Pipeline) {
			defer wg.Done()
			pipeline.DoWork(ctx, custID, name, results, logger.With("instance", name))
		}(name, pipeline)
	}
	wg.Wait()

	if !results.AllOK() {
		merr := &multierror.Error{}
		for _, stage := range results.FailedStages() {
			merr = multierror.Append(merr, errors.Errorf("stage %q failed", stage))
		}
		if merr.Len() == 0 {
			merr = multierror.Append(merr, errors.New("a configuration stage failed"))
		}
		return results, errors.Wrapf(merr.ErrorOrNil(), "deploying customer %d", custID)
	}
	return results, nil
}
