// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package store

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
)

type vmKey struct {
	custID   int
	instance string
}

type envKey struct {
	custID int
	key    string
}

type extraKey struct {
	custID   int
	instance string
	key      string
}

// Memory is an in-process Store. All methods are safe for concurrent use.
type Memory struct {
	mu          sync.Mutex
	solutions   map[int]*Solution
	plans       map[int]*Plan
	env         map[envKey]string
	credentials map[vmKey]VMCredentials
	extras      map[extraKey]json.RawMessage
	datacenters map[string]Datacenter
	now         func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		solutions:   map[int]*Solution{},
		plans:       map[int]*Plan{},
		env:         map[envKey]string{},
		credentials: map[vmKey]VMCredentials{},
		extras:      map[extraKey]json.RawMessage{},
		datacenters: map[string]Datacenter{},
		now:         time.Now,
	}
}

func (m *Memory) CreateSolution(custID, numUsers int, remoteSupport bool, custName string) (*Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.solutions[custID]; ok {
		return nil, duplicateSolution(custID)
	}
	sol := &Solution{
		CustomerID:       custID,
		CustomerName:     custName,
		NumberOfUsers:    numUsers,
		RemoteSupport:    remoteSupport,
		NumberOfRequests: 1,
		DeploymentDate:   m.now(),
	}
	m.solutions[custID] = sol
	copied := *sol
	return &copied, nil
}

func (m *Memory) GetSolution(custID int) (*Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sol, ok := m.solutions[custID]
	if !ok {
		return notDeployed(custID), nil
	}
	copied := *sol
	return &copied, nil
}

func (m *Memory) ListSolutions() ([]*Solution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Solution{}
	for _, sol := range m.solutions {
		copied := *sol
		out = append(out, &copied)
	}
	return out, nil
}

func (m *Memory) ListCustomers() ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []int{}
	for id := range m.solutions {
		out = append(out, id)
	}
	return out, nil
}

func (m *Memory) DeleteSolution(custID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.solutions, custID)
	delete(m.plans, custID)
	for k := range m.env {
		if k.custID == custID {
			delete(m.env, k)
		}
	}
	for k := range m.credentials {
		if k.custID == custID {
			delete(m.credentials, k)
		}
	}
	for k := range m.extras {
		if k.custID == custID {
			delete(m.extras, k)
		}
	}
	return nil
}

func (m *Memory) SavePlan(custID int, plan *Plan) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[custID] = plan
	return nil
}

func (m *Memory) GetPlan(custID int) (*Plan, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	plan, ok := m.plans[custID]
	if !ok {
		return nil, errors.Errorf("no deployment plan for customer %d", custID)
	}
	return plan, nil
}

func (m *Memory) SetCustEnv(custID int, key string, value *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v := ""
	if value != nil {
		v = *value
	}
	m.env[envKey{custID, key}] = v
	return nil
}

func (m *Memory) GetCustEnv(custID int, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.env[envKey{custID, key}]
	return v, ok, nil
}

func (m *Memory) SaveVMCredentials(custID int, instance string, creds VMCredentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.credentials[vmKey{custID, instance}] = creds
	return nil
}

func (m *Memory) GetVMCredentials(custID int, instance string) (*VMCredentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	creds, ok := m.credentials[vmKey{custID, instance}]
	if !ok {
		return nil, errors.Errorf("no credentials for customer %d instance %q", custID, instance)
	}
	copied := creds
	return &copied, nil
}

func (m *Memory) SetVMPassword(custID int, instance, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := vmKey{custID, instance}
	creds, ok := m.credentials[k]
	if !ok {
		return errors.Errorf("no credentials for customer %d instance %q", custID, instance)
	}
	if err := applyPassword(&creds, key, value); err != nil {
		return err
	}
	m.credentials[k] = creds
	return nil
}

func (m *Memory) SetVMExtraParameter(custID int, instance, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding extra parameter %q", key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.extras[extraKey{custID, instance, key}] = raw
	return nil
}

func (m *Memory) GetVMExtraParameter(custID int, instance, key string, out interface{}) (bool, error) {
	m.mu.Lock()
	raw, ok := m.extras[extraKey{custID, instance, key}]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, errors.Wrapf(err, "decoding extra parameter %q", key)
	}
	return true, nil
}

func (m *Memory) SaveDatacenter(dc Datacenter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.datacenters[dc.SiteName] = dc
	return nil
}

func (m *Memory) GetDatacenter(site string) (*Datacenter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	dc, ok := m.datacenters[site]
	if !ok {
		return nil, errors.Errorf("unknown site %q", site)
	}
	copied := dc
	return &copied, nil
}
