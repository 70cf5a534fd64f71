// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package solution

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/vmware/solution-deployer/deployer/cms"
	"github.com/vmware/solution-deployer/deployer/store"
	"github.com/vmware/solution-deployer/deployer/template"
)

type fakeRenderer struct {
	doc      *template.Document
	warnings []string
	err      error

	templateID string
	vars       map[string]interface{}
}

func (f *fakeRenderer) Render(templateID string, vars map[string]interface{}) (*template.Document, []string, error) {
	f.templateID = templateID
	f.vars = vars
	return f.doc, f.warnings, f.err
}

type fakePipeline struct {
	mu        sync.Mutex
	instances []string
	outcome   bool
}

func (f *fakePipeline) DoWork(_ context.Context, custID int, instance string, results *cms.Results, _ hclog.Logger) {
	f.mu.Lock()
	f.instances = append(f.instances, instance)
	f.mu.Unlock()
	results.Record(instance+": configure", f.outcome)
}

func primaryDocument() *template.Document {
	return &template.Document{
		VMInstanceSpecs: map[string]*template.InstanceSpec{
			"cms_instance_1": {
				IPAddress1:   "100.88.7.151",
				Hostname:     "hmtxcms1",
				TemplateSize: "Small",
			},
			"cm_duplex_instance_1": {
				IPAddress1:       "100.88.6.21",
				IPAddress2:       "192.168.52.1",
				Hostname:         "hmtxcm1a",
				VirtualIPAddress: "100.88.6.11",
			},
			"win_instance_1": {
				IPAddress1: "100.88.6.90",
				Hostname:   "hmtxdp",
				NTP:        "10.130.108.2",
				WebLM:      "10.130.108.10",
			},
		},
	}
}

func newTestDriver(doc *template.Document) (*Driver, *store.Memory, *fakeRenderer) {
	mem := store.NewMemory()
	renderer := &fakeRenderer{doc: doc}
	d := NewDriver(mem, renderer)
	d.Credentials["cms"] = store.VMCredentials{
		Username:     "cms",
		Password:     "pw",
		RootUsername: "root",
		RootPassword: "rootpw",
	}
	return d, mem, renderer
}

func TestDeploy(t *testing.T) {
	d, mem, renderer := newTestDriver(primaryDocument())
	pipeline := &fakePipeline{outcome: true}
	d.Pipelines["cms"] = pipeline

	results, err := d.Deploy(context.Background(), 3, "acp_converged", "texas", map[string]interface{}{"cust_num": 3}, hclog.NewNullLogger())
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if renderer.templateID != "acp_converged" {
		t.Errorf("unexpected template rendered: %s", renderer.templateID)
	}

	plan, err := mem.GetPlan(3)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if plan.Site != "texas" || plan.Role != store.RolePrimary {
		t.Errorf("unexpected plan identity: site=%s role=%s", plan.Site, plan.Role)
	}
	if len(plan.Instances) != 3 {
		t.Errorf("expected 3 plan instances, got %d", len(plan.Instances))
	}
	rec := plan.Instances["cm_duplex_instance_1"]
	if rec == nil || rec.VirtualIPAddress != "100.88.6.11" || rec.IPAddress2 != "192.168.52.1" {
		t.Errorf("unexpected plan record: %+v", rec)
	}

	creds, err := mem.GetVMCredentials(3, "cms_instance_1")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	expected := &store.VMCredentials{
		Name:         "hmtxcms1_100.88.7.151",
		IP:           "100.88.7.151",
		Username:     "cms",
		Password:     "pw",
		RootUsername: "root",
		RootPassword: "rootpw",
		Port:         22,
	}
	if diff := cmp.Diff(expected, creds); diff != "" {
		t.Errorf("unexpected credentials (-expected +actual):\n%s", diff)
	}

	if diff := cmp.Diff([]string{"cms_instance_1"}, pipeline.instances); diff != "" {
		t.Errorf("unexpected pipeline dispatch (-expected +actual):\n%s", diff)
	}
	if !results.AllOK() {
		t.Error("expected all recorded stages to succeed")
	}
}

func TestDeploySecondaryRole(t *testing.T) {
	doc := primaryDocument()
	delete(doc.VMInstanceSpecs, "cm_duplex_instance_1")
	doc.VMInstanceSpecs["cm_ess_instance_1"] = &template.InstanceSpec{
		IPAddress1: "100.80.6.11",
		Hostname:   "hmtxess1",
	}
	d, mem, _ := newTestDriver(doc)

	if _, err := d.Deploy(context.Background(), 3, "acp_converged", "dublin", nil, hclog.NewNullLogger()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	plan, err := mem.GetPlan(3)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if plan.Role != store.RoleSecondary {
		t.Errorf("ESS instances mark a secondary site, got %s", plan.Role)
	}
}

func TestDeployConcurrentPipelines(t *testing.T) {
	doc := primaryDocument()
	d, _, _ := newTestDriver(doc)
	pipeline := &fakePipeline{outcome: true}
	d.Pipelines["cms"] = pipeline
	d.Pipelines["cm_duplex"] = pipeline
	d.Pipelines["win"] = pipeline

	if _, err := d.Deploy(context.Background(), 3, "acp_converged", "texas", nil, hclog.NewNullLogger()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	got := append([]string{}, pipeline.instances...)
	sort.Strings(got)
	expected := []string{"cm_duplex_instance_1", "cms_instance_1", "win_instance_1"}
	if diff := cmp.Diff(expected, got); diff != "" {
		t.Errorf("unexpected dispatched instances (-expected +actual):\n%s", diff)
	}
}

func TestDeployPipelineFailure(t *testing.T) {
	d, _, _ := newTestDriver(primaryDocument())
	d.Pipelines["cms"] = &fakePipeline{outcome: false}

	results, err := d.Deploy(context.Background(), 3, "acp_converged", "texas", nil, hclog.NewNullLogger())
	if err == nil {
		t.Fatal("expected a deployment error")
	}
	if !strings.Contains(err.Error(), `stage "cms_instance_1: configure" failed`) {
		t.Errorf("the error must name the failed stage, got: %s", err)
	}
	if results == nil || results.AllOK() {
		t.Error("the failed stage must be visible in the merged results")
	}
}

func TestDeployFailureAggregatesStages(t *testing.T) {
	d, _, _ := newTestDriver(primaryDocument())
	d.Pipelines["cms"] = &fakePipeline{outcome: false}
	d.Pipelines["win"] = &fakePipeline{outcome: false}

	_, err := d.Deploy(context.Background(), 3, "acp_converged", "texas", nil, hclog.NewNullLogger())
	if err == nil {
		t.Fatal("expected a deployment error")
	}
	for _, stage := range []string{"cms_instance_1: configure", "win_instance_1: configure"} {
		if !strings.Contains(err.Error(), `stage "`+stage+`" failed`) {
			t.Errorf("the error must name stage %q, got: %s", stage, err)
		}
	}
}

func TestDeployRenderFailure(t *testing.T) {
	d, mem, renderer := newTestDriver(nil)
	renderer.err = errors.New("boom")

	if _, err := d.Deploy(context.Background(), 3, "acp_converged", "texas", nil, hclog.NewNullLogger()); err == nil {
		t.Fatal("expected a render error")
	}
	if _, err := mem.GetPlan(3); err == nil {
		t.Error("no plan may be persisted after a failed render")
	}
}

func TestDeployEmptyDocument(t *testing.T) {
	d, _, _ := newTestDriver(&template.Document{})

	if _, err := d.Deploy(context.Background(), 3, "acp_converged", "texas", nil, hclog.NewNullLogger()); err == nil {
		t.Fatal("expected an error for a document with no instances")
	}
}

func TestCustomersByTemplate(t *testing.T) {
	d, _, renderer := newTestDriver(primaryDocument())
	for _, custID := range []int{3, 4, 5} {
		if _, err := d.Create(custID, 4000, true, "abc"); err != nil {
			t.Fatalf("unexpected error: %s", err)
		}
	}
	if _, err := d.Deploy(context.Background(), 3, "acp_converged", "texas", nil, hclog.NewNullLogger()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	renderer.doc = primaryDocument()
	if _, err := d.Deploy(context.Background(), 5, "acp_other", "texas", nil, hclog.NewNullLogger()); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}

	got, err := d.CustomersByTemplate("acp_converged")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if diff := cmp.Diff([]int{3}, got); diff != "" {
		t.Errorf("unexpected customers (-expected +actual):\n%s", diff)
	}

	got, err = d.CustomersByTemplate("acp_missing")
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no customers, got %v", got)
	}
}

func TestLifecycleDelegation(t *testing.T) {
	d, _, _ := newTestDriver(primaryDocument())

	if _, err := d.Create(3, 4000, true, "abc"); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if _, err := d.Create(3, 4000, true, "abc"); err == nil {
		t.Error("expected a duplicate create to fail")
	}

	sol, err := d.Get(9)
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if sol.CustomerName != store.NotDeployed {
		t.Errorf("expected the not-deployed sentinel, got %q", sol.CustomerName)
	}

	customers, err := d.Customers()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if diff := cmp.Diff([]int{3}, customers); diff != "" {
		t.Errorf("unexpected customers (-expected +actual):\n%s", diff)
	}

	if err := d.Delete(3); err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	solutions, err := d.List()
	if err != nil {
		t.Fatalf("unexpected error: %s", err)
	}
	if len(solutions) != 0 {
		t.Errorf("expected no solutions after delete, got %d", len(solutions))
	}
}
