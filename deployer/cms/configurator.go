// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// Package cms configures deployed CMS machines: NTP, switch translations,
// IDS, licensing, the initial flat-file setup, optional feature packages,
// dual IP addressing on secondary sites, firewall and service startup. The
// prompt-driven administration tools are driven through scripted expect
// sessions; switch-side translations go through OSSI batch scripts.
package cms

import (
	"context"
	"embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/vmware/solution-deployer/deployer/interaction"
	"github.com/vmware/solution-deployer/deployer/remote"
	"github.com/vmware/solution-deployer/deployer/store"
	"github.com/vmware/solution-deployer/deployer/vsphere"
)

// Administration tools on a CMS host. cmssvc handles service-level
// administration, cmsadm handles setup and package installation.
const (
	cmdCMSSvc = "/cms/toolsbin/cmssvc"
	cmdCMSAdm = "/cms/toolsbin/cmsadm"
)

const (
	userPrompt = "$"
	rootPrompt = "#"
)

// Menu choices of the cmssvc dialogue.
const (
	svcAuthorize = "1"
	svcStartIDS  = "2"
	svcStartCMS  = "4"
	svcStopCMS   = "5"
	svcDualIP    = "7"
	svcNTP       = "8"
	svcFirewall  = "9"
	svcFIPS      = "10"
	svcWebLM     = "11"
)

// Menu choices of the cmsadm dialogue.
const (
	admInstallPackage = "3"
	admSetup          = "4"
	// Setup method 2 reads the staged flat file instead of prompting.
	admSetupFlatFile = "2"
)

const (
	adminLog         = "/cms/install/logdir/admin.log"
	installFilePath  = "/cms/install/cms.install"
	setupDoneMessage = "Setup completed successfully"
	webRestart       = "cmsweb stop; cmsweb start"
)

// Extra-parameter keys carrying per-instance configuration with the
// deployment plan.
const (
	setupKey         = "setup"
	packagesKey      = "packages"
	authorizationKey = "authorization"
)

//go:embed scripts/*.txt
var scriptFS embed.FS

// scriptSteps loads an embedded interaction script and binds the dynamic
// inputs to its input slots in order.
func scriptSteps(name string, inputs []string) ([]interaction.Step, error) {
	raw, err := scriptFS.ReadFile("scripts/" + name)
	if err != nil {
		return nil, errors.Wrapf(err, "loading interaction script %q", name)
	}
	var lines []string
	for _, line := range strings.Split(string(raw), "\n") {
		lines = append(lines, strings.TrimSpace(line))
	}
	return interaction.ParseScript(lines, inputs), nil
}

// Shift is one staffing window of an ACD.
type Shift struct {
	StartTime string `json:"start_time"`
	StopTime  string `json:"stop_time"`
	Agents    int    `json:"number_of_agents"`
}

// ACD ties a CMS to one communication manager. CMInstanceStandby names the
// survivable member used for dual IP addressing on secondary sites.
type ACD struct {
	CMInstance        string  `json:"cm_instance"`
	CMInstanceStandby string  `json:"cm_instance_standby"`
	Hostname          string  `json:"hostname"`
	Shifts            []Shift `json:"shifts,omitempty"`
}

// SetupSettings is the "setup" extra parameter of a CMS instance.
type SetupSettings struct {
	ACDs         []ACD  `json:"acds"`
	BackupDevice string `json:"backup_device,omitempty"`
}

// Authorization is the purchased feature set applied through the auth_set
// dialogue. Field order follows the dialogue prompts.
type Authorization struct {
	ForecastingPackage        bool `json:"forecasting_package"`
	VectoringPackage          bool `json:"vectoring_package"`
	GraphicsFeature           bool `json:"graphics_feature"`
	ExternalCallHistory       bool `json:"external_call_history"`
	ExpertAgentSelection      bool `json:"expert_agent_selection"`
	ExternalApplication       bool `json:"external_application"`
	GlobalDictionaryACDGroups bool `json:"global_dictionary_acd_groups"`
	MaxSupervisorLogins       int  `json:"maximum_simultaneous_supervisor_logins"`
	ReportDesigner            bool `json:"report_designer"`
	MaxSplitSkillMembers      int  `json:"maximum_split_skill_members"`
	MaxACDs                   int  `json:"maximum_acds"`
	AuthorizedAgents          int  `json:"authorized_agents"`
	AuthorizedODBCConnection  int  `json:"authorized_odbc_connection"`
}

// AuthorizationSettings is the "authorization" extra parameter envelope.
type AuthorizationSettings struct {
	Authorization Authorization `json:"authorization"`
}

// DataAccess is the slice of the store the configurator reads and writes.
// store.Accessor satisfies it.
type DataAccess interface {
	VMDetails(custID int, instance string) (*store.VMCredentials, error)
	Hostname(custID int, instance string) (string, error)
	IPAddress1(custID int, instance string) (string, error)
	VirtualIP(custID int, instance string) (string, error)
	NTP(custID int) (string, error)
	WebLMIP(custID int) (string, error)
	DCType(custID int) (string, error)
	DCName(custID int) (string, error)
	CLIPassword(custID int, instance string) (string, error)
	GetVMExtraParameter(custID int, instance, key string, out interface{}) (bool, error)
	SetVMPassword(custID int, instance, key, value string) error
}

// SessionRunner drives scripted dialogues and one-shot commands on managed
// machines. *remote.Runner satisfies it.
type SessionRunner interface {
	RunExpectWithRoot(host, user, userPwd, rootUser, rootPwd, command, initialResponse string,
		logger hclog.Logger, steps []interaction.Step, userPrompt, rootPrompt string) (bool, string)
	RunSSHCommand(host string, port int, user, pwd, command string, logger hclog.Logger) (bool, string)
}

// SSHChecker waits for a machine to accept SSH logins again.
// *healthcheck.Checker satisfies it.
type SSHChecker interface {
	CheckSSH(host string, port int, user, password string, logger hclog.Logger, retries int, interval time.Duration) bool
}

// Configurator runs the CMS configuration pipeline for one customer. All
// collaborators are injected; tests substitute fakes for every one of them.
type Configurator struct {
	Data     DataAccess
	Sessions SessionRunner
	Copier   remote.FileCopier
	Health   SSHChecker
	Driver   vsphere.Driver
	OSSI     CommandCaller

	// SWRepo is the local working directory OSSI batch scripts and their
	// outputs live in, one subdirectory per (customer, CM, CMS) triple.
	SWRepo string
	// OSSIBin is the OSSI batch runner invoked against a CM.
	OSSIBin string

	// Reboot recovery: how long to keep probing SSH after a guest reboot.
	RebootRetries  int
	RebootInterval time.Duration

	Sleep func(time.Duration)
}

// NewConfigurator wires a Configurator with production collaborators left
// for the caller and sane pipeline defaults.
func NewConfigurator(data DataAccess) *Configurator {
	return &Configurator{
		Data:           data,
		OSSI:           ShellCaller{},
		OSSIBin:        defaultOSSIBin,
		RebootRetries:  1000,
		RebootInterval: 20 * time.Second,
		Sleep:          time.Sleep,
	}
}

func (c *Configurator) sleep(d time.Duration) {
	if c.Sleep != nil {
		c.Sleep(d)
		return
	}
	time.Sleep(d)
}

func port(creds *store.VMCredentials) int {
	if creds.Port > 0 {
		return creds.Port
	}
	return remote.DefaultPort
}

// runTool opens a session on the instance, escalates to root and drives one
// administration tool through its scripted dialogue.
func (c *Configurator) runTool(custID int, instance, tool, script string, inputs []string, logger hclog.Logger) bool {
	creds, err := c.Data.VMDetails(custID, instance)
	if err != nil {
		logger.Error("reading VM details", "instance", instance, "error", err)
		return false
	}
	steps, err := scriptSteps(script, inputs)
	if err != nil {
		logger.Error("loading interaction script", "script", script, "error", err)
		return false
	}
	ok, _ := c.Sessions.RunExpectWithRoot(creds.IP, creds.Username, creds.Password,
		creds.RootUsername, creds.RootPassword, tool, "", logger, steps, userPrompt, rootPrompt)
	return ok
}

func (c *Configurator) runService(custID int, instance, script string, inputs []string, logger hclog.Logger) bool {
	return c.runTool(custID, instance, cmdCMSSvc, script, inputs, logger)
}

// GetCMInstances lists the distinct communication managers the instance's
// ACDs connect to, in ACD order.
func (c *Configurator) GetCMInstances(custID int, instance string) []string {
	var settings SetupSettings
	ok, err := c.Data.GetVMExtraParameter(custID, instance, setupKey, &settings)
	if err != nil || !ok {
		return nil
	}
	seen := map[string]bool{}
	out := []string{}
	for _, acd := range settings.ACDs {
		if acd.CMInstance == "" || seen[acd.CMInstance] {
			continue
		}
		seen[acd.CMInstance] = true
		out = append(out, acd.CMInstance)
	}
	return out
}

// SetupNTP points the instance at the site NTP server and reboots it so
// time sync settles before translations are pumped.
func (c *Configurator) SetupNTP(ctx context.Context, custID int, instance string, logger hclog.Logger) bool {
	ntp, err := c.Data.NTP(custID)
	if err != nil {
		logger.Error("resolving site NTP address", "error", err)
		return false
	}
	if !c.runService(custID, instance, "ntp.txt", []string{svcNTP, ntp}, logger) {
		return false
	}
	return c.RebootCMS(ctx, custID, instance, logger)
}

// RebootCMS reboots the guest and waits for SSH to come back. A failed
// reboot request skips the wait.
func (c *Configurator) RebootCMS(ctx context.Context, custID int, instance string, logger hclog.Logger) bool {
	creds, err := c.Data.VMDetails(custID, instance)
	if err != nil {
		logger.Error("reading VM details", "instance", instance, "error", err)
		return false
	}
	site, err := c.Data.DCName(custID)
	if err != nil {
		logger.Error("resolving site", "error", err)
		return false
	}
	if err := c.Driver.RebootVM(ctx, site, creds.Name, logger); err != nil {
		logger.Error("rebooting instance", "instance", instance, "error", err)
		return false
	}
	return c.Health.CheckSSH(creds.IP, port(creds), creds.Username, creds.Password,
		logger, c.RebootRetries, c.RebootInterval)
}

// UpdateTranslations prepares the OSSI batch scripts for one communication
// manager. A primary site talks to the CM's own address; a secondary site
// goes through the virtual address that survives failover.
func (c *Configurator) UpdateTranslations(custID int, instance, cmInstance string, logger hclog.Logger) bool {
	dcType, err := c.Data.DCType(custID)
	if err != nil {
		logger.Error("resolving site role", "error", err)
		return false
	}
	var cmIP string
	if dcType == store.RoleSecondary {
		cmIP, err = c.Data.VirtualIP(custID, cmInstance)
	} else {
		cmIP, err = c.Data.IPAddress1(custID, cmInstance)
	}
	if err != nil {
		logger.Error("resolving CM address", "cm", cmInstance, "error", err)
		return false
	}
	cliPwd, err := c.Data.CLIPassword(custID, cmInstance)
	if err != nil {
		logger.Error("resolving CM credentials", "cm", cmInstance, "error", err)
		return false
	}
	return c.setupOSSIScripts(custID, cmInstance, instance, cmIP, cliPwd, logger)
}

// StartIDS turns on the Informix instance CMS runs on.
func (c *Configurator) StartIDS(custID int, instance string, logger hclog.Logger) bool {
	return c.runService(custID, instance, "start_ids.txt", []string{svcStartIDS}, logger)
}

// SetupWebLM points licensing at the site WebLM server.
func (c *Configurator) SetupWebLM(custID int, instance string, logger hclog.Logger) bool {
	weblm, err := c.Data.WebLMIP(custID)
	if err != nil {
		logger.Error("resolving site WebLM address", "error", err)
		return false
	}
	return c.runService(custID, instance, "weblm.txt", []string{svcWebLM, weblm}, logger)
}

// installFileContent renders the flat answer file cmsadm setup reads.
func installFileContent(hostname string, settings SetupSettings, cmIP func(string) (string, error)) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "systemname %s\n", hostname)
	fmt.Fprintf(&b, "numacds %d\n", len(settings.ACDs))
	for i, acd := range settings.ACDs {
		ip, err := cmIP(acd.CMInstance)
		if err != nil {
			return "", errors.Wrapf(err, "resolving CM address for ACD %d", i+1)
		}
		fmt.Fprintf(&b, "switchname%d %s\n", i+1, acd.Hostname)
		fmt.Fprintf(&b, "switchaddr%d %s\n", i+1, ip)
		for j, shift := range acd.Shifts {
			fmt.Fprintf(&b, "shift%d.%d %s %s %d\n", i+1, j+1, shift.StartTime, shift.StopTime, shift.Agents)
		}
	}
	if settings.BackupDevice != "" {
		fmt.Fprintf(&b, "backupdevice %s\n", settings.BackupDevice)
	}
	return b.String(), nil
}

// Setup runs the initial configuration: stage the flat answer file, kick
// cmsadm setup, wait for the admin log to report completion, then push the
// node-name and processor-channel translations to every CM. Translations
// are saved on the primary site only; the secondary reaches the same CMs
// through their virtual addresses and must not overwrite the saved set.
func (c *Configurator) Setup(custID int, instance string, logger hclog.Logger) bool {
	creds, err := c.Data.VMDetails(custID, instance)
	if err != nil {
		logger.Error("reading VM details", "instance", instance, "error", err)
		return false
	}
	var settings SetupSettings
	ok, err := c.Data.GetVMExtraParameter(custID, instance, setupKey, &settings)
	if err != nil || !ok {
		logger.Error("reading setup settings", "instance", instance, "error", err)
		return false
	}
	hostname, err := c.Data.Hostname(custID, instance)
	if err != nil {
		logger.Error("resolving instance hostname", "instance", instance, "error", err)
		return false
	}

	content, err := installFileContent(hostname, settings, func(cm string) (string, error) {
		return c.Data.IPAddress1(custID, cm)
	})
	if err != nil {
		logger.Error("rendering setup answer file", "instance", instance, "error", err)
		return false
	}
	if !c.stageInstallFile(creds, content, logger) {
		return false
	}

	if !c.runTool(custID, instance, cmdCMSAdm, "setup.txt", []string{admSetup, admSetupFlatFile}, logger) {
		return false
	}
	if !c.verifySetup(creds, logger) {
		return false
	}

	dcType, err := c.Data.DCType(custID)
	if err != nil {
		logger.Error("resolving site role", "error", err)
		return false
	}
	for i, acd := range settings.ACDs {
		if !c.CheckNodeName(custID, acd.CMInstance, instance, logger) {
			ip, err := c.Data.IPAddress1(custID, instance)
			if err != nil {
				logger.Error("resolving instance address", "instance", instance, "error", err)
				return false
			}
			if !c.AddNodeName(custID, acd.CMInstance, instance, hostname, ip, logger) {
				return false
			}
		}
		if !c.AddCommunicationInterface(custID, acd.CMInstance, instance, i+1, hostname, logger) {
			return false
		}
		if dcType == store.RolePrimary {
			if !c.SaveTranslations(custID, acd.CMInstance, instance, logger) {
				return false
			}
		}
	}
	return true
}

func (c *Configurator) stageInstallFile(creds *store.VMCredentials, content string, logger hclog.Logger) bool {
	f, err := os.CreateTemp("", "cms-install-")
	if err != nil {
		logger.Error("staging setup answer file", "error", err)
		return false
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		logger.Error("staging setup answer file", "error", err)
		return false
	}
	if err := f.Close(); err != nil {
		logger.Error("staging setup answer file", "error", err)
		return false
	}
	if err := c.Copier.CopyFile(creds.IP, port(creds), creds.Username, creds.Password,
		f.Name(), installFilePath); err != nil {
		logger.Error("copying setup answer file", "host", creds.IP, "error", err)
		return false
	}
	return true
}

// verifySetup tails the admin log until setup reports completion. Flat-file
// setup runs in the background, so the tool session returning says nothing
// about the outcome.
func (c *Configurator) verifySetup(creds *store.VMCredentials, logger hclog.Logger) bool {
	steps := []interaction.Step{{
		Type:    interaction.Text,
		Value:   setupDoneMessage,
		Timeout: interaction.DefaultTimeout,
		Repeat:  1,
	}}
	ok, _ := c.Sessions.RunExpectWithRoot(creds.IP, creds.Username, creds.Password,
		creds.RootUsername, creds.RootPassword, "tail -2 "+adminLog, "",
		logger, steps, userPrompt, rootPrompt)
	return ok
}

// InstallPackages installs every enabled optional feature package, one
// cmsadm session each. Disabled and absent packages are skipped; an absent
// package map means there is nothing to install.
func (c *Configurator) InstallPackages(custID int, instance string, logger hclog.Logger) bool {
	var packages map[string]bool
	ok, err := c.Data.GetVMExtraParameter(custID, instance, packagesKey, &packages)
	if err != nil {
		logger.Error("reading package settings", "instance", instance, "error", err)
		return false
	}
	if !ok {
		return true
	}
	names := make([]string, 0, len(packages))
	for name, enabled := range packages {
		if enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	all := true
	for _, name := range names {
		if !c.runTool(custID, instance, cmdCMSAdm, "install_package.txt", []string{admInstallPackage, name}, logger) {
			logger.Error("installing package", "instance", instance, "package", name)
			all = false
		}
	}
	return all
}

// ConfigureDualIP registers the standby address for one ACD host.
func (c *Configurator) ConfigureDualIP(custID int, instance, switchHostname, standbyIP string, logger hclog.Logger) bool {
	return c.runService(custID, instance, "dual_ip.txt", []string{svcDualIP, switchHostname, standbyIP}, logger)
}

// ConfigureDualIPs registers the survivable CM addresses on a secondary
// site. CMS is stopped for the duration; a failed dual IP change leaves it
// stopped so the half-written table is not put in service. Primary sites
// have nothing to do.
func (c *Configurator) ConfigureDualIPs(custID int, instance string, logger hclog.Logger) bool {
	dcType, err := c.Data.DCType(custID)
	if err != nil {
		logger.Error("resolving site role", "error", err)
		return false
	}
	if dcType != store.RoleSecondary {
		return true
	}
	var settings SetupSettings
	ok, err := c.Data.GetVMExtraParameter(custID, instance, setupKey, &settings)
	if err != nil || !ok {
		logger.Error("reading setup settings", "instance", instance, "error", err)
		return false
	}
	if !c.Stop(custID, instance, logger) {
		return false
	}
	for _, acd := range settings.ACDs {
		standbyIP, err := c.Data.IPAddress1(custID, acd.CMInstanceStandby)
		if err != nil {
			logger.Error("resolving standby CM address", "cm", acd.CMInstanceStandby, "error", err)
			return false
		}
		if !c.ConfigureDualIP(custID, instance, acd.Hostname, standbyIP, logger) {
			return false
		}
	}
	return c.Start(custID, instance, logger)
}

// ConfigureFirewall applies the stock firewall ruleset.
func (c *Configurator) ConfigureFirewall(custID int, instance string, logger hclog.Logger) bool {
	return c.runService(custID, instance, "firewall.txt", []string{svcFirewall}, logger)
}

// ConfigureFIPS switches the host into FIPS mode.
func (c *Configurator) ConfigureFIPS(custID int, instance string, logger hclog.Logger) bool {
	return c.runService(custID, instance, "fips.txt", []string{svcFIPS, "y"}, logger)
}

// Authorize applies the purchased feature set through the auth_set
// dialogue.
func (c *Configurator) Authorize(custID int, instance string, logger hclog.Logger) bool {
	var settings AuthorizationSettings
	ok, err := c.Data.GetVMExtraParameter(custID, instance, authorizationKey, &settings)
	if err != nil || !ok {
		logger.Error("reading authorization settings", "instance", instance, "error", err)
		return false
	}
	auth := settings.Authorization
	inputs := []string{
		svcAuthorize,
		yesNo(auth.ForecastingPackage),
		yesNo(auth.VectoringPackage),
		yesNo(auth.GraphicsFeature),
		yesNo(auth.ExternalCallHistory),
		yesNo(auth.ExpertAgentSelection),
		yesNo(auth.ExternalApplication),
		yesNo(auth.GlobalDictionaryACDGroups),
		fmt.Sprintf("%d", auth.MaxSupervisorLogins),
		yesNo(auth.ReportDesigner),
		fmt.Sprintf("%d", auth.MaxSplitSkillMembers),
		fmt.Sprintf("%d", auth.MaxACDs),
		fmt.Sprintf("%d", auth.AuthorizedAgents),
		fmt.Sprintf("%d", auth.AuthorizedODBCConnection),
	}
	return c.runService(custID, instance, "authorize.txt", inputs, logger)
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

// Start turns on CMS.
func (c *Configurator) Start(custID int, instance string, logger hclog.Logger) bool {
	return c.runService(custID, instance, "start.txt", []string{svcStartCMS}, logger)
}

// Stop turns off CMS but leaves IDS running.
func (c *Configurator) Stop(custID int, instance string, logger hclog.Logger) bool {
	return c.runService(custID, instance, "stop.txt", []string{svcStopCMS}, logger)
}

// StartWeb restarts the supervisor web service.
func (c *Configurator) StartWeb(custID int, instance string, logger hclog.Logger) bool {
	creds, err := c.Data.VMDetails(custID, instance)
	if err != nil {
		logger.Error("reading VM details", "instance", instance, "error", err)
		return false
	}
	ok, _ := c.Sessions.RunSSHCommand(creds.IP, port(creds), creds.RootUsername, creds.RootPassword, webRestart, logger)
	return ok
}

// Results collects per-stage outcomes across concurrently configured
// machines.
type Results struct {
	mu     sync.Mutex
	values []bool
	failed []string
}

// Append records one unlabeled stage outcome.
func (r *Results) Append(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, ok)
}

// Record records one stage outcome under its name. Failed stage names are
// kept so callers can report which stages broke, not just that one did.
func (r *Results) Record(stage string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values = append(r.values, ok)
	if !ok {
		r.failed = append(r.failed, stage)
	}
}

// FailedStages returns a copy of the names of every failed labeled stage.
func (r *Results) FailedStages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.failed))
	copy(out, r.failed)
	return out
}

// Values returns a copy of the recorded outcomes.
func (r *Results) Values() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, len(r.values))
	copy(out, r.values)
	return out
}

// AllOK reports whether every recorded stage succeeded.
func (r *Results) AllOK() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ok := range r.values {
		if !ok {
			return false
		}
	}
	return true
}

// DoConfigurations runs the full pipeline on one instance. Every stage runs
// even after a failure so one broken step surfaces everything else that is
// wrong with the machine; the return value is the conjunction of all stage
// outcomes.
func (c *Configurator) DoConfigurations(ctx context.Context, custID int, instance string, results *Results, logger hclog.Logger) bool {
	all := true
	record := func(stage string, ok bool) {
		if !ok {
			logger.Error("configuration stage failed", "instance", instance, "stage", stage)
		}
		if results != nil {
			results.Record(instance+": "+stage, ok)
		}
		all = all && ok
	}

	record("setup ntp", c.SetupNTP(ctx, custID, instance, logger))
	for _, cm := range c.GetCMInstances(custID, instance) {
		record("update translations "+cm, c.UpdateTranslations(custID, instance, cm, logger))
	}
	record("start ids", c.StartIDS(custID, instance, logger))
	record("setup weblm", c.SetupWebLM(custID, instance, logger))
	record("setup", c.Setup(custID, instance, logger))
	record("install packages", c.InstallPackages(custID, instance, logger))
	record("configure dual ips", c.ConfigureDualIPs(custID, instance, logger))
	record("configure firewall", c.ConfigureFirewall(custID, instance, logger))
	record("start", c.Start(custID, instance, logger))
	record("start web", c.StartWeb(custID, instance, logger))
	return all
}

// DoWork is the goroutine entry point used by the solution driver.
func (c *Configurator) DoWork(ctx context.Context, custID int, instance string, results *Results, logger hclog.Logger) {
	c.DoConfigurations(ctx, custID, instance, results, logger)
}
