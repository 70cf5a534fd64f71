// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// solution-deployer renders solution templates, deploys the resulting
// machine set and drives the per-subsystem configuration pipelines.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/vmware/solution-deployer/deployer/cms"
	"github.com/vmware/solution-deployer/deployer/config"
	"github.com/vmware/solution-deployer/deployer/healthcheck"
	"github.com/vmware/solution-deployer/deployer/remote"
	"github.com/vmware/solution-deployer/deployer/solution"
	"github.com/vmware/solution-deployer/deployer/store"
	templatestore "github.com/vmware/solution-deployer/deployer/template/store"
	"github.com/vmware/solution-deployer/deployer/vsphere"
	"github.com/vmware/solution-deployer/version"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:           "solution-deployer",
		Short:         "Deploy and configure converged telephony solutions on vSphere",
		Version:       version.FullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&configPath, "config", "deployer.hcl", "Path to the deployer configuration file")

	cmd.AddCommand(newRenderCommand(&configPath))
	cmd.AddCommand(newDeployCommand(&configPath))
	cmd.AddCommand(newSolutionCommand(&configPath))
	cmd.AddCommand(newTemplateCommand(&configPath))
	return cmd
}

// runtime is the wired application: configuration, stores, template
// manager, solution driver and the configuration pipelines.
type runtime struct {
	cfg       *config.Config
	store     store.Store
	templates *templatestore.Manager
	driver    *solution.Driver
	vcenter   *vsphere.VCenterDriver
	logger    hclog.Logger
}

func newRuntime(configPath string) (*runtime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "solution-deployer",
		Level: hclog.Info,
	})

	var st store.Store
	if cfg.DatabaseDSN != "" {
		db, err := store.Open(cfg.DatabaseDSN)
		if err != nil {
			return nil, err
		}
		st = db
	} else {
		st = store.NewMemory()
	}
	if err := cfg.Seed(st); err != nil {
		return nil, err
	}

	templates := templatestore.NewManager(cfg.TemplateStore)
	driver := solution.NewDriver(st, templates)
	templates.Solutions = driver

	accessor := store.Accessor{Store: st}
	checker := healthcheck.NewChecker()
	vcenter := vsphere.NewVCenterDriver(accessor)

	configurator := cms.NewConfigurator(accessor)
	configurator.Sessions = remote.NewRunner(checker.CheckSSHPortOpen)
	configurator.Copier = remote.NewSSHCopier()
	configurator.Health = checker
	configurator.Driver = vcenter
	configurator.SWRepo = cfg.SWRepo
	if configurator.SWRepo == "" {
		configurator.SWRepo = filepath.Join(os.TempDir(), "deployer-swrepo")
	}

	driver.Pipelines["cms"] = configurator
	driver.Credentials["cms"] = store.VMCredentials{
		Username:     "cms",
		RootUsername: "root",
		CLIUsername:  "cust",
	}

	return &runtime{
		cfg:       cfg,
		store:     st,
		templates: templates,
		driver:    driver,
		vcenter:   vcenter,
		logger:    logger,
	}, nil
}

func printJSON(v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func templateVars(custNum int, custName string, numUsers int, datacenterID string) map[string]interface{} {
	return map[string]interface{}{
		"cust_num":      custNum,
		"cust_name":     custName,
		"num_users":     numUsers,
		"datacenter_id": datacenterID,
	}
}

func newRenderCommand(configPath *string) *cobra.Command {
	var (
		templateID string
		custNum    int
		custName   string
		numUsers   int
		datacenter string
	)

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a solution template and print the deployment document",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			doc, warnings, err := rt.templates.Render(templateID, templateVars(custNum, custName, numUsers, datacenter))
			if err != nil {
				return err
			}
			for _, warning := range warnings {
				fmt.Fprintf(os.Stderr, "warning: %s\n", warning)
			}
			return printJSON(doc)
		},
	}

	cmd.Flags().StringVar(&templateID, "template", "", "Template id to render")
	cmd.Flags().IntVar(&custNum, "customer", 0, "Customer number")
	cmd.Flags().StringVar(&custName, "name", "", "Customer name")
	cmd.Flags().IntVar(&numUsers, "users", 0, "Number of users")
	cmd.Flags().StringVar(&datacenter, "datacenter", "", "Datacenter id")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("users")
	_ = cmd.MarkFlagRequired("datacenter")
	return cmd
}

func newDeployCommand(configPath *string) *cobra.Command {
	var (
		templateID string
		custNum    int
		custName   string
		numUsers   int
		datacenter string
		site       string
	)

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy a solution and run its configuration pipelines",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			defer rt.vcenter.Cleanup(ctx)

			if err := ensureSolution(rt, custNum, numUsers, custName); err != nil {
				return err
			}
			results, err := rt.driver.Deploy(ctx, custNum, templateID, site,
				templateVars(custNum, custName, numUsers, datacenter), rt.logger)
			if err != nil {
				return err
			}
			fmt.Printf("deployed customer %d: %d stages completed\n", custNum, len(results.Values()))
			return nil
		},
	}

	cmd.Flags().StringVar(&templateID, "template", "", "Template id to deploy")
	cmd.Flags().IntVar(&custNum, "customer", 0, "Customer number")
	cmd.Flags().StringVar(&custName, "name", "", "Customer name")
	cmd.Flags().IntVar(&numUsers, "users", 0, "Number of users")
	cmd.Flags().StringVar(&datacenter, "datacenter", "", "Datacenter id")
	cmd.Flags().StringVar(&site, "site", "", "Configured site to place machines in")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("users")
	_ = cmd.MarkFlagRequired("datacenter")
	_ = cmd.MarkFlagRequired("site")
	return cmd
}

// ensureSolution registers the solution record unless the customer already
// has one.
func ensureSolution(rt *runtime, custNum, numUsers int, custName string) error {
	customers, err := rt.driver.Customers()
	if err != nil {
		return err
	}
	for _, id := range customers {
		if id == custNum {
			return nil
		}
	}
	_, err = rt.driver.Create(custNum, numUsers, true, custName)
	return err
}

func newSolutionCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "solution",
		Short: "Solution record operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newSolutionListCommand(configPath))
	cmd.AddCommand(newSolutionGetCommand(configPath))
	cmd.AddCommand(newSolutionCreateCommand(configPath))
	cmd.AddCommand(newSolutionDeleteCommand(configPath))
	return cmd
}

func newSolutionListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every solution record",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			solutions, err := rt.driver.List()
			if err != nil {
				return err
			}
			return printJSON(solutions)
		},
	}
}

func newSolutionGetCommand(configPath *string) *cobra.Command {
	var custNum int

	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show one solution record",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			sol, err := rt.driver.Get(custNum)
			if err != nil {
				return err
			}
			return printJSON(sol)
		},
	}
	cmd.Flags().IntVar(&custNum, "customer", 0, "Customer number")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func newSolutionCreateCommand(configPath *string) *cobra.Command {
	var (
		custNum  int
		custName string
		numUsers int
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a new solution record",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			sol, err := rt.driver.Create(custNum, numUsers, true, custName)
			if err != nil {
				return err
			}
			return printJSON(sol)
		},
	}
	cmd.Flags().IntVar(&custNum, "customer", 0, "Customer number")
	cmd.Flags().StringVar(&custName, "name", "", "Customer name")
	cmd.Flags().IntVar(&numUsers, "users", 0, "Number of users")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("users")
	return cmd
}

func newSolutionDeleteCommand(configPath *string) *cobra.Command {
	var custNum int

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a solution and everything recorded under it",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			return rt.driver.Delete(custNum)
		},
	}
	cmd.Flags().IntVar(&custNum, "customer", 0, "Customer number")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func newTemplateCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Template store operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newTemplateListCommand(configPath))
	cmd.AddCommand(newTemplateCheckCommand(configPath))
	cmd.AddCommand(newTemplateUploadCommand(configPath))
	cmd.AddCommand(newTemplateDeleteCommand(configPath))
	cmd.AddCommand(newTemplateSolutionsCommand(configPath))
	return cmd
}

func newTemplateListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			choices, err := rt.templates.ListAsChoices()
			if err != nil {
				return err
			}
			return printJSON(choices)
		},
	}
}

func newTemplateCheckCommand(configPath *string) *cobra.Command {
	var (
		templateID string
		datacenter string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Smoke-render a template and report anything wrong with it",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			problems := rt.templates.CheckErrors(templateID, datacenter)
			if len(problems) == 0 {
				fmt.Println("template is clean")
				return nil
			}
			return printJSON(problems)
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "Template id to check")
	cmd.Flags().StringVar(&datacenter, "datacenter", "", "Datacenter id to render against")
	_ = cmd.MarkFlagRequired("template")
	_ = cmd.MarkFlagRequired("datacenter")
	return cmd
}

func newTemplateUploadCommand(configPath *string) *cobra.Command {
	var archive string

	cmd := &cobra.Command{
		Use:   "upload",
		Short: "Install a template archive into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			f, err := os.Open(archive)
			if err != nil {
				return err
			}
			defer f.Close()
			templateID, err := rt.templates.SaveUploaded(filepath.Base(archive), f)
			if err != nil {
				return err
			}
			fmt.Printf("installed template %s\n", templateID)
			return nil
		},
	}
	cmd.Flags().StringVar(&archive, "file", "", "Path to the template tar archive")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newTemplateDeleteCommand(configPath *string) *cobra.Command {
	var templateID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Remove a template from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			return rt.templates.Delete(templateID)
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "Template id to delete")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

func newTemplateSolutionsCommand(configPath *string) *cobra.Command {
	var templateID string

	cmd := &cobra.Command{
		Use:   "solutions",
		Short: "List the customers deployed from a template",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newRuntime(*configPath)
			if err != nil {
				return err
			}
			customers, err := rt.templates.TemplateSolutions(templateID)
			if err != nil {
				return err
			}
			return printJSON(customers)
		},
	}
	cmd.Flags().StringVar(&templateID, "template", "", "Template id")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}
