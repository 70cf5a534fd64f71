// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// Package remote drives scripted dialogues and one-shot commands over
// interactive SSH sessions. Transport failures never escape the package;
// callers receive a boolean plus whatever output was captured, which keeps
// the configuration pipelines resilient to flaky machines.
package remote

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/vmware/solution-deployer/deployer/interaction"
)

// DefaultPort is the SSH port used when a caller does not specify one.
const DefaultPort = 22

// DefaultStepTimeout bounds each required interaction step unless the step
// carries its own timeout.
const DefaultStepTimeout = 120 * time.Second

const masked = "******"

// ExecResult carries the outcome of a one-shot remote command.
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Shell is an interactive remote session. Output accumulates everything read
// from the remote side and is returned to callers on both success and
// failure.
type Shell interface {
	Send(line string) error
	Expect(value string, timeout time.Duration) error
	Output() string
	Close() error
}

// Dialer opens remote sessions. The production implementation lives in
// ssh.go; tests substitute a scripted fake.
type Dialer interface {
	Dial(host string, port int, user, password string) (Shell, error)
	Exec(host string, port int, user, password, command string) (ExecResult, error)
}

// FileCopier transfers a local file onto a managed machine. Installer media
// is staged this way before the prompt-driven install session starts. The
// transport implementation is supplied by the caller.
type FileCopier interface {
	CopyFile(host string, port int, user, password, localPath, remotePath string) error
}

// PortProbe reports whether the SSH port on a host accepts connections.
type PortProbe func(host string, port int, logger hclog.Logger) bool

// Runner executes remote operations through an injected Dialer.
type Runner struct {
	Dialer      Dialer
	Probe       PortProbe
	StepTimeout time.Duration
}

// NewRunner returns a Runner with the production SSH dialer.
func NewRunner(probe PortProbe) *Runner {
	return &Runner{Dialer: NewSSHDialer(), Probe: probe, StepTimeout: DefaultStepTimeout}
}

func (r *Runner) stepTimeout(step interaction.Step) time.Duration {
	if step.Timeout != interaction.DefaultTimeout {
		return time.Duration(step.Timeout) * time.Second
	}
	if r.StepTimeout > 0 {
		return r.StepTimeout
	}
	return DefaultStepTimeout
}

// RunExpectWithRoot opens an interactive session as user, escalates to
// rootUser when one is given, issues command, then walks the interaction
// steps in order. A required text step that never matches fails the whole
// session; optional steps are skipped after their repeat budget. The
// captured output is returned on every path.
func (r *Runner) RunExpectWithRoot(host, user, userPwd, rootUser, rootPwd, command, initialResponse string,
	logger hclog.Logger, steps []interaction.Step, userPrompt, rootPrompt string) (bool, string) {

	sh, err := r.Dialer.Dial(host, DefaultPort, user, userPwd)
	if err != nil {
		logger.Error("failed to open session", "host", host, "user", user, "error", err)
		return false, ""
	}
	defer sh.Close()

	prompt := userPrompt
	if err := sh.Expect(userPrompt, r.stepTimeout(interaction.Step{Timeout: interaction.DefaultTimeout})); err != nil {
		logger.Error("shell prompt never appeared", "host", host, "error", err)
		return false, sh.Output()
	}

	if rootUser != "" {
		if ok := r.escalate(sh, rootUser, rootPwd, rootPrompt, logger); !ok {
			return false, sh.Output()
		}
		prompt = rootPrompt
	}

	logger.Debug("issuing command", "host", host, "command", command)
	if err := sh.Send(command); err != nil {
		return false, sh.Output()
	}
	if initialResponse != "" {
		if err := sh.Send(initialResponse); err != nil {
			return false, sh.Output()
		}
	}

	for _, step := range steps {
		switch step.Type {
		case interaction.Input:
			value := step.Value
			if step.Sensitive {
				logger.Debug("sending input", "value", masked)
			} else {
				logger.Debug("sending input", "value", value)
			}
			if err := sh.Send(value); err != nil {
				logger.Error("failed to send input", "host", host, "error", err)
				return false, sh.Output()
			}
		case interaction.Text:
			if ok := r.expectText(sh, step, logger); !ok {
				return false, sh.Output()
			}
		}
	}

	if err := sh.Expect(prompt, r.stepTimeout(interaction.Step{Timeout: interaction.DefaultTimeout})); err != nil {
		logger.Error("command never returned to prompt", "host", host, "error", err)
		return false, sh.Output()
	}
	return true, sh.Output()
}

func (r *Runner) expectText(sh Shell, step interaction.Step, logger hclog.Logger) bool {
	if step.Value == "" {
		// Placeholder kept only for its wait budget.
		time.Sleep(r.stepTimeout(step))
		return true
	}
	attempts := 1
	if step.Optional && step.Repeat > 1 {
		attempts = step.Repeat
	}
	var err error
	for i := 0; i < attempts; i++ {
		if err = sh.Expect(step.Value, r.stepTimeout(step)); err == nil {
			return true
		}
	}
	if step.Optional {
		logger.Debug("optional step skipped", "value", step.Value)
		return true
	}
	logger.Error("required step never matched", "value", step.Value, "error", err)
	return false
}

func (r *Runner) escalate(sh Shell, rootUser, rootPwd, rootPrompt string, logger hclog.Logger) bool {
	if err := sh.Send(fmt.Sprintf("su - %s", rootUser)); err != nil {
		return false
	}
	if err := sh.Expect("Password:", r.stepTimeout(interaction.Step{Timeout: interaction.DefaultTimeout})); err != nil {
		logger.Error("root password prompt never appeared", "error", err)
		return false
	}
	if err := sh.Send(rootPwd); err != nil {
		return false
	}
	if err := sh.Expect(rootPrompt, r.stepTimeout(interaction.Step{Timeout: interaction.DefaultTimeout})); err != nil {
		logger.Error("root shell never became ready", "error", err)
		return false
	}
	return true
}

// RunSSHCommand runs a single command with no interaction steps. It fails
// closed on any connection or execution error.
func (r *Runner) RunSSHCommand(host string, port int, user, pwd, command string, logger hclog.Logger) (bool, string) {
	res, err := r.Dialer.Exec(host, port, user, pwd, command)
	if err != nil {
		logger.Error("remote command failed", "host", host, "command", command, "error", err)
		return false, res.Stdout + res.Stderr
	}
	if res.ExitCode != 0 {
		logger.Error("remote command exited nonzero", "host", host, "command", command, "exit_code", res.ExitCode)
		return false, res.Stdout + res.Stderr
	}
	return true, res.Stdout
}

// RunCommandExt runs a command and reports its exit code and both output
// streams. The SSH port is probed first; a closed port, any transport error,
// and even a panicking probe all collapse into the (-1, "", "") sentinel.
// No failure ever escapes this call.
func (r *Runner) RunCommandExt(host string, port int, user, pwd, command string, logger hclog.Logger) (exitCode int, stdout, stderr string) {
	exitCode, stdout, stderr = -1, "", ""
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("remote command aborted", "host", host, "panic", rec)
			exitCode, stdout, stderr = -1, "", ""
		}
	}()

	if r.Probe != nil && !r.Probe(host, port, logger) {
		logger.Debug("ssh port not reachable", "host", host, "port", port)
		return -1, "", ""
	}
	res, err := r.Dialer.Exec(host, port, user, pwd, command)
	if err != nil {
		logger.Error("remote command failed", "host", host, "command", command, "error", err)
		return -1, "", ""
	}
	return res.ExitCode, res.Stdout, res.Stderr
}
