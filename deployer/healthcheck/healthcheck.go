// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// Package healthcheck holds the reachability probes the configuration
// pipelines use to decide whether a machine is ready for the next stage.
package healthcheck

import (
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/crypto/ssh"
)

// Checker bundles the probes behind injectable primitives so pipelines can
// be tested without live machines.
type Checker struct {
	DialTimeout time.Duration
	HTTPClient  *http.Client
	// SSHDial authenticates against a host; the default uses x/crypto/ssh
	// with password auth.
	SSHDial func(host string, port int, user, password string, timeout time.Duration) error
	// Pinger sends a single echo request; the default shells out to ping.
	Pinger func(host string, timeout time.Duration) error
	Sleep  func(d time.Duration)
}

// NewChecker returns a Checker with production probes and a 10 second
// per-probe timeout.
func NewChecker() *Checker {
	return &Checker{
		DialTimeout: 10 * time.Second,
		HTTPClient:  &http.Client{Timeout: 10 * time.Second},
		SSHDial:     dialSSH,
		Pinger:      execPing,
		Sleep:       time.Sleep,
	}
}

func dialSSH(host string, port int, user, password string, timeout time.Duration) error {
	client, err := ssh.Dial("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         timeout,
	})
	if err != nil {
		return err
	}
	return client.Close()
}

func execPing(host string, timeout time.Duration) error {
	seconds := int(timeout / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	return exec.Command("ping", "-c", "1", "-W", fmt.Sprintf("%d", seconds), host).Run()
}

// CheckPing reports whether the host answers a single echo request.
func (c *Checker) CheckPing(host string, logger hclog.Logger) bool {
	if err := c.Pinger(host, c.DialTimeout); err != nil {
		logger.Debug("ping failed", "host", host, "error", err)
		return false
	}
	return true
}

// CheckSSHPortOpen reports whether a TCP connection to the SSH port
// succeeds. It says nothing about authentication.
func (c *Checker) CheckSSHPortOpen(host string, port int, logger hclog.Logger) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), c.DialTimeout)
	if err != nil {
		logger.Debug("ssh port closed", "host", host, "port", port, "error", err)
		return false
	}
	conn.Close()
	return true
}

// CheckSSH waits for a host to accept an authenticated SSH session, probing
// up to retries times with the given interval between attempts. Machines
// coming back from a reboot need this grace period.
func (c *Checker) CheckSSH(host string, port int, user, password string, logger hclog.Logger, retries int, interval time.Duration) bool {
	for i := 0; i < retries; i++ {
		if i > 0 {
			c.Sleep(interval)
		}
		if !c.CheckSSHPortOpen(host, port, logger) {
			continue
		}
		if err := c.SSHDial(host, port, user, password, c.DialTimeout); err != nil {
			logger.Debug("ssh login not ready", "host", host, "attempt", i+1, "error", err)
			continue
		}
		logger.Debug("ssh ready", "host", host, "attempts", i+1)
		return true
	}
	logger.Error("ssh never became ready", "host", host, "retries", retries)
	return false
}

// CheckCurl reports whether an HTTP GET of the URL returns a 2xx status.
func (c *Checker) CheckCurl(url string, logger hclog.Logger) bool {
	resp, err := c.HTTPClient.Get(url)
	if err != nil {
		logger.Debug("http check failed", "url", url, "error", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Debug("http check returned error status", "url", url, "status", resp.StatusCode)
		return false
	}
	return true
}
