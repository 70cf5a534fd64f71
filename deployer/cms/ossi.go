// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package cms

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"
)

// defaultOSSIBin is the OSSI batch runner shipped with the deployer image.
const defaultOSSIBin = "/opt/cc/ossi/ossi"

// OSSI batch resources. Each resource is a script in the working repo; the
// runner writes the transcript next to it with an .o suffix.
const (
	resRetrieveNodeNames   = "cm_retrieve_node_names"
	resChangeNodeNameIP    = "cm_change_node_name_ip"
	resChangeCommInterface = "cm_change_communication_interface_process"
	resSaveTranslations    = "cm_save_translations"
	ossiEnvFile            = "ossi.env"
	nodeNameMarker         = "6800ff00 = IP"
	commInterfaceFieldID   = "6800ff01"
	nodeNameAddressFieldID = "6800ff00"
)

// CommandCaller runs local shell commands for the OSSI batch runner. Call
// returns the exit code only; Output captures stdout.
type CommandCaller interface {
	Call(command string) int
	Output(command string) (string, error)
}

// ShellCaller runs commands through /bin/sh.
type ShellCaller struct{}

func (ShellCaller) Call(command string) int {
	cmd := exec.Command("/bin/sh", "-c", command)
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return exitErr.ExitCode()
		}
		return -1
	}
	return 0
}

func (ShellCaller) Output(command string) (string, error) {
	cmd := exec.Command("/bin/sh", "-c", command)
	var buf bytes.Buffer
	cmd.Stdout = &buf
	if err := cmd.Run(); err != nil {
		return buf.String(), err
	}
	return buf.String(), nil
}

// cmsCommon returns the working repo and runner prefix for one
// (customer, CM, CMS) triple. The prefix carries the env file with the CM
// connection details so every resource invocation reaches the same switch.
func (c *Configurator) cmsCommon(custID int, cmInstance, cmsInstance string) (string, string) {
	repo := filepath.Join(c.SWRepo, fmt.Sprintf("cust%d", custID), cmInstance, cmsInstance)
	prefix := fmt.Sprintf("%s %s", c.OSSIBin, filepath.Join(repo, ossiEnvFile))
	return repo, prefix
}

// ossiCommand builds one runner invocation: the resource script and the
// transcript it writes.
func ossiCommand(prefix, repo, resource string) string {
	return fmt.Sprintf("%s %s/%s %s/%s.o", prefix, repo, resource, repo, resource)
}

// ossiResources are the static batch scripts staged per CM.
var ossiResources = map[string]string{
	resRetrieveNodeNames: "clist node-names ip\nt\n",
	resSaveTranslations:  "csave translations\nt\n",
}

// setupOSSIScripts stages the working repo for one CM: the env file with
// the connection details and the static batch scripts. The value-carrying
// scripts are written when their operation runs.
func (c *Configurator) setupOSSIScripts(custID int, cmInstance, cmsInstance, cmIP, cliPwd string, logger hclog.Logger) bool {
	repo, _ := c.cmsCommon(custID, cmInstance, cmsInstance)
	if err := os.MkdirAll(repo, 0o755); err != nil {
		logger.Error("creating OSSI repo", "repo", repo, "error", err)
		return false
	}
	env := fmt.Sprintf("CM_HOST=%s\nCM_USER=cust\nCM_PASSWORD=%s\n", cmIP, cliPwd)
	if err := os.WriteFile(filepath.Join(repo, ossiEnvFile), []byte(env), 0o600); err != nil {
		logger.Error("writing OSSI env file", "repo", repo, "error", err)
		return false
	}
	for name, body := range ossiResources {
		if err := os.WriteFile(filepath.Join(repo, name), []byte(body), 0o644); err != nil {
			logger.Error("writing OSSI resource", "resource", name, "error", err)
			return false
		}
	}
	return true
}

// CheckNodeName reports whether the CMS is already present in the CM's
// node-names form. The retrieve transcript is grepped for the address
// field marker; any hit means the node exists.
func (c *Configurator) CheckNodeName(custID int, cmInstance, cmsInstance string, logger hclog.Logger) bool {
	repo, prefix := c.cmsCommon(custID, cmInstance, cmsInstance)
	c.OSSI.Call(ossiCommand(prefix, repo, resRetrieveNodeNames))
	out, err := c.OSSI.Output(fmt.Sprintf("/bin/grep '%s' %s/%s.o | /bin/wc -l",
		nodeNameMarker, repo, resRetrieveNodeNames))
	if err != nil {
		logger.Debug("node name lookup failed", "cm", cmInstance, "error", err)
		return false
	}
	n, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		logger.Debug("unparseable node name count", "cm", cmInstance, "output", out)
		return false
	}
	return n > 0
}

// AddNodeName registers the CMS host in the CM's node-names form.
func (c *Configurator) AddNodeName(custID int, cmInstance, cmsInstance, nodeName, ip string, logger hclog.Logger) bool {
	repo, prefix := c.cmsCommon(custID, cmInstance, cmsInstance)
	if err := os.MkdirAll(repo, 0o755); err != nil {
		logger.Error("creating OSSI repo", "repo", repo, "error", err)
		return false
	}
	body := fmt.Sprintf("cchange node-names ip\nf%s\nd%s\t%s\nt\n", nodeNameAddressFieldID, nodeName, ip)
	if err := os.WriteFile(filepath.Join(repo, resChangeNodeNameIP), []byte(body), 0o644); err != nil {
		logger.Error("writing node name script", "cm", cmInstance, "error", err)
		return false
	}
	rc := c.OSSI.Call(ossiCommand(prefix, repo, resChangeNodeNameIP))
	if rc != 0 {
		logger.Error("adding node name", "cm", cmInstance, "node", nodeName, "exit_code", rc)
		return false
	}
	return true
}

// AddCommunicationInterface binds the CMS node to a processor channel.
func (c *Configurator) AddCommunicationInterface(custID int, cmInstance, cmsInstance string, channel int, nodeName string, logger hclog.Logger) bool {
	repo, prefix := c.cmsCommon(custID, cmInstance, cmsInstance)
	if err := os.MkdirAll(repo, 0o755); err != nil {
		logger.Error("creating OSSI repo", "repo", repo, "error", err)
		return false
	}
	body := fmt.Sprintf("cchange communication-interface processor-channels\nf%s\nd%d\t%s\tmis\nt\n",
		commInterfaceFieldID, channel, nodeName)
	if err := os.WriteFile(filepath.Join(repo, resChangeCommInterface), []byte(body), 0o644); err != nil {
		logger.Error("writing processor channel script", "cm", cmInstance, "error", err)
		return false
	}
	rc := c.OSSI.Call(ossiCommand(prefix, repo, resChangeCommInterface))
	if rc != 0 {
		logger.Error("adding processor channel", "cm", cmInstance, "channel", channel, "exit_code", rc)
		return false
	}
	return true
}

// SaveTranslations commits the pending translation changes on the CM.
func (c *Configurator) SaveTranslations(custID int, cmInstance, cmsInstance string, logger hclog.Logger) bool {
	repo, prefix := c.cmsCommon(custID, cmInstance, cmsInstance)
	rc := c.OSSI.Call(ossiCommand(prefix, repo, resSaveTranslations))
	if rc != 0 {
		logger.Error("saving translations", "cm", cmInstance, "exit_code", rc)
		return false
	}
	return true
}
