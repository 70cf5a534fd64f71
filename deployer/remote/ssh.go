// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"bytes"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/crypto/ssh"
)

// SSHDialer opens interactive shells and one-shot exec sessions over SSH
// with password authentication. Host keys are not verified; the machines
// this tool manages are freshly cloned from templates and have no stable
// identity yet.
type SSHDialer struct {
	ConnectTimeout time.Duration
}

// NewSSHDialer returns a dialer with a 30 second connect timeout.
func NewSSHDialer() *SSHDialer {
	return &SSHDialer{ConnectTimeout: 30 * time.Second}
}

func (d *SSHDialer) clientConfig(user, password string) *ssh.ClientConfig {
	return &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range questions {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         d.ConnectTimeout,
	}
}

// Dial opens an interactive shell with a pty so that prompt-driven
// installers behave as they do for a human operator.
func (d *SSHDialer) Dial(host string, port int, user, password string) (Shell, error) {
	client, err := ssh.Dial("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), d.clientConfig(user, password))
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s:%d", host, port)
	}
	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, errors.Wrap(err, "opening session")
	}
	modes := ssh.TerminalModes{
		ssh.ECHO:          0,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm", 80, 200, modes); err != nil {
		sess.Close()
		client.Close()
		return nil, errors.Wrap(err, "requesting pty")
	}
	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, errors.Wrap(err, "attaching stdin")
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		client.Close()
		return nil, errors.Wrap(err, "attaching stdout")
	}
	if err := sess.Shell(); err != nil {
		sess.Close()
		client.Close()
		return nil, errors.Wrap(err, "starting shell")
	}

	sh := &sshShell{
		client: client,
		sess:   sess,
		stdin:  stdin,
		data:   make(chan struct{}, 1),
	}
	go sh.drain(stdout)
	return sh, nil
}

// Exec runs a single command in a fresh session and collects both output
// streams and the exit status.
func (d *SSHDialer) Exec(host string, port int, user, password, command string) (ExecResult, error) {
	client, err := ssh.Dial("tcp", net.JoinHostPort(host, fmt.Sprintf("%d", port)), d.clientConfig(user, password))
	if err != nil {
		return ExecResult{}, errors.Wrapf(err, "dialing %s:%d", host, port)
	}
	defer client.Close()

	sess, err := client.NewSession()
	if err != nil {
		return ExecResult{}, errors.Wrap(err, "opening session")
	}
	defer sess.Close()

	var stdout, stderr bytes.Buffer
	sess.Stdout = &stdout
	sess.Stderr = &stderr

	err = sess.Run(command)
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitStatus()
			return res, nil
		}
		return res, errors.Wrap(err, "running command")
	}
	return res, nil
}

type sshShell struct {
	client *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser

	mu  sync.Mutex
	buf bytes.Buffer
	// pos is the scan offset; Expect never matches the same output twice.
	pos  int
	data chan struct{}
}

func (s *sshShell) drain(stdout io.Reader) {
	chunk := make([]byte, 4096)
	for {
		n, err := stdout.Read(chunk)
		if n > 0 {
			s.mu.Lock()
			s.buf.Write(chunk[:n])
			s.mu.Unlock()
			select {
			case s.data <- struct{}{}:
			default:
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *sshShell) Send(line string) error {
	_, err := s.stdin.Write([]byte(line + "\n"))
	return err
}

func (s *sshShell) Expect(value string, timeout time.Duration) error {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	for {
		s.mu.Lock()
		if idx := strings.Index(s.buf.String()[s.pos:], value); idx >= 0 {
			s.pos += idx + len(value)
			s.mu.Unlock()
			return nil
		}
		s.mu.Unlock()
		select {
		case <-s.data:
		case <-deadline.C:
			return errors.Errorf("timed out after %s waiting for %q", timeout, value)
		}
	}
}

func (s *sshShell) Output() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *sshShell) Close() error {
	s.sess.Close()
	return s.client.Close()
}
