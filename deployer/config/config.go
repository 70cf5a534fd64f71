// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// Package config loads the deployer configuration: the vCenter sites
// machines are placed in, the template store location and the document
// store connection.
package config

import (
	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/pkg/errors"

	"github.com/vmware/solution-deployer/deployer/store"
)

// Site is one vCenter endpoint the deployer can place machines in.
type Site struct {
	Name             string `hcl:"name,label"`
	Hostname         string `hcl:"hostname"`
	Username         string `hcl:"username"`
	Password         string `hcl:"password"`
	IgnoreSSL        bool   `hcl:"ignore_ssl,optional"`
	Datacenter       string `hcl:"datacenter,optional"`
	Datastore        string `hcl:"datastore,optional"`
	Cluster          string `hcl:"cluster,optional"`
	DiskProvisioning string `hcl:"disk_provisioning,optional"`
	ResourcePool     string `hcl:"resource_pool,optional"`
}

// Config is the deployer configuration file.
type Config struct {
	// TemplateStore is the directory solution templates live in.
	TemplateStore string `hcl:"template_store"`
	// DatabaseDSN connects the Postgres document store; empty selects the
	// in-memory store.
	DatabaseDSN string `hcl:"database_dsn,optional"`
	// SWRepo is the local working directory for OSSI batch scripts.
	SWRepo string `hcl:"swrepo,optional"`
	Sites  []Site `hcl:"site,block"`
}

// Load parses a configuration file.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return nil, errors.Wrapf(err, "loading configuration %s", path)
	}
	if cfg.TemplateStore == "" {
		return nil, errors.New("configuration must set template_store")
	}
	return &cfg, nil
}

// Datacenters converts the configured sites into store records.
func (c *Config) Datacenters() []store.Datacenter {
	out := make([]store.Datacenter, 0, len(c.Sites))
	for _, site := range c.Sites {
		out = append(out, store.Datacenter{
			SiteName:         site.Name,
			Hostname:         site.Hostname,
			Username:         site.Username,
			Password:         site.Password,
			IgnoreSSL:        site.IgnoreSSL,
			Datacenter:       site.Datacenter,
			Datastore:        site.Datastore,
			Cluster:          site.Cluster,
			DiskProvisioning: site.DiskProvisioning,
			ResourcePool:     site.ResourcePool,
		})
	}
	return out
}

// Seed writes the configured sites into the store so pipelines can resolve
// them by name.
func (c *Config) Seed(st store.Store) error {
	for _, dc := range c.Datacenters() {
		if err := st.SaveDatacenter(dc); err != nil {
			return errors.Wrapf(err, "seeding site %q", dc.SiteName)
		}
	}
	return nil
}
