// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package vsphere

import (
	"bytes"
	"os/exec"

	"github.com/pkg/errors"
)

// GovcBin is the govc binary invoked for resize operations.
const GovcBin = "govc"

// CPUSize is one CPU profile: total cores and the cores-per-socket
// topology hint.
type CPUSize struct {
	Cores          int
	CoresPerSocket int
}

// cpuProfiles maps (vm type, capacity profile) to CPU allocations.
var cpuProfiles = map[string]map[string]CPUSize{
	"cms": {
		"profile1": {Cores: 6, CoresPerSocket: 2},
		"profile2": {Cores: 12, CoresPerSocket: 2},
		"profile3": {Cores: 18, CoresPerSocket: 2},
		"profile4": {Cores: 24, CoresPerSocket: 4},
	},
	"ams": {
		"profile5": {Cores: 4, CoresPerSocket: 2},
		"profile6": {Cores: 8, CoresPerSocket: 2},
		"profile7": {Cores: 16, CoresPerSocket: 4},
	},
}

// memoryProfiles maps (vm type, capacity profile) to memory in MB.
var memoryProfiles = map[string]map[string]int{
	"cms": {
		"profile1": 16384,
		"profile2": 24576,
		"profile3": 32768,
		"profile4": 49152,
	},
	"ams": {
		"profile5": 8192,
		"profile6": 16384,
		"profile7": 32768,
	},
}

func cpuProfile(vmType, profile string) (CPUSize, error) {
	size, ok := cpuProfiles[vmType][profile]
	if !ok {
		return CPUSize{}, errors.Errorf("no CPU profile %q for vm type %q", profile, vmType)
	}
	return size, nil
}

func memoryProfile(vmType, profile string) (int, error) {
	mb, ok := memoryProfiles[vmType][profile]
	if !ok {
		return 0, errors.Errorf("no memory profile %q for vm type %q", profile, vmType)
	}
	return mb, nil
}

// CommandRunner executes one shell command with an explicit environment and
// returns its combined output and exit code.
type CommandRunner interface {
	Run(command string, env []string) (string, int, error)
}

// ExecRunner runs commands through /bin/sh.
type ExecRunner struct{}

func (ExecRunner) Run(command string, env []string) (string, int, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	cmd.Env = env
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return buf.String(), exitErr.ExitCode(), nil
		}
		return buf.String(), -1, err
	}
	return buf.String(), 0, nil
}
