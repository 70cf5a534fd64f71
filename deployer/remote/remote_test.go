// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

package remote

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-hclog"
	"github.com/pkg/errors"

	"github.com/vmware/solution-deployer/deployer/interaction"
)

type fakeShell struct {
	// expectations maps awaited values to how many failed attempts remain
	// before the value matches. Missing keys match immediately; a negative
	// count never matches.
	expectations map[string]int
	sent         []string
	expected     []string
	output       string
	closed       bool
}

func (f *fakeShell) Send(line string) error {
	f.sent = append(f.sent, line)
	return nil
}

func (f *fakeShell) Expect(value string, timeout time.Duration) error {
	f.expected = append(f.expected, value)
	remaining, ok := f.expectations[value]
	if !ok {
		return nil
	}
	if remaining < 0 {
		return errors.Errorf("no match for %q", value)
	}
	if remaining > 0 {
		f.expectations[value] = remaining - 1
		return errors.Errorf("no match for %q yet", value)
	}
	return nil
}

func (f *fakeShell) Output() string { return f.output }

func (f *fakeShell) Close() error {
	f.closed = true
	return nil
}

type fakeDialer struct {
	shell    *fakeShell
	dialErr  error
	exec     ExecResult
	execErr  error
	execHost string
	execCmd  string
}

func (f *fakeDialer) Dial(host string, port int, user, password string) (Shell, error) {
	if f.dialErr != nil {
		return nil, f.dialErr
	}
	return f.shell, nil
}

func (f *fakeDialer) Exec(host string, port int, user, password, command string) (ExecResult, error) {
	f.execHost = host
	f.execCmd = command
	return f.exec, f.execErr
}

func testRunner(d Dialer, probe PortProbe) *Runner {
	return &Runner{Dialer: d, Probe: probe, StepTimeout: 10 * time.Millisecond}
}

func TestRunExpectWithRoot(t *testing.T) {
	sh := &fakeShell{expectations: map[string]int{}, output: "session transcript"}
	r := testRunner(&fakeDialer{shell: sh}, nil)

	steps := []interaction.Step{
		{Type: interaction.Text, Value: "Enter choice", Timeout: interaction.DefaultTimeout, Repeat: 1},
		{Type: interaction.Input, Value: "2", Timeout: interaction.DefaultTimeout, Repeat: 1},
	}

	ok, output := r.RunExpectWithRoot("10.0.0.5", "cms", "cmspw", "root", "rootpw",
		"/cms/toolsbin/cmssvc", "", hclog.NewNullLogger(), steps, "$", "#")
	if !ok {
		t.Fatal("expected session to succeed")
	}
	if output != "session transcript" {
		t.Errorf("unexpected output: %q", output)
	}
	if !sh.closed {
		t.Error("expected shell to be closed")
	}

	expectedSent := []string{"su - root", "rootpw", "/cms/toolsbin/cmssvc", "2"}
	if diff := cmp.Diff(expectedSent, sh.sent); diff != "" {
		t.Errorf("unexpected sends (-expected +actual):\n%s", diff)
	}
	expectedAwaited := []string{"$", "Password:", "#", "Enter choice", "#"}
	if diff := cmp.Diff(expectedAwaited, sh.expected); diff != "" {
		t.Errorf("unexpected expects (-expected +actual):\n%s", diff)
	}
}

func TestRunExpectWithRootNoEscalation(t *testing.T) {
	sh := &fakeShell{expectations: map[string]int{}}
	r := testRunner(&fakeDialer{shell: sh}, nil)

	ok, _ := r.RunExpectWithRoot("10.0.0.5", "cms", "cmspw", "", "",
		"ls", "", hclog.NewNullLogger(), nil, "$", "#")
	if !ok {
		t.Fatal("expected session to succeed")
	}
	if diff := cmp.Diff([]string{"ls"}, sh.sent); diff != "" {
		t.Errorf("unexpected sends (-expected +actual):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"$", "$"}, sh.expected); diff != "" {
		t.Errorf("unexpected expects (-expected +actual):\n%s", diff)
	}
}

func TestRunExpectWithRootRequiredStepFails(t *testing.T) {
	sh := &fakeShell{
		expectations: map[string]int{"never shown": -1},
		output:       "partial transcript",
	}
	r := testRunner(&fakeDialer{shell: sh}, nil)

	steps := []interaction.Step{
		{Type: interaction.Text, Value: "never shown", Timeout: interaction.DefaultTimeout, Repeat: 1},
	}
	ok, output := r.RunExpectWithRoot("10.0.0.5", "cms", "cmspw", "root", "rootpw",
		"cmd", "", hclog.NewNullLogger(), steps, "$", "#")
	if ok {
		t.Fatal("expected session to fail")
	}
	if output != "partial transcript" {
		t.Errorf("captured output must survive failure, got %q", output)
	}
}

func TestRunExpectWithRootOptionalStepRetriesThenSkips(t *testing.T) {
	sh := &fakeShell{expectations: map[string]int{"maybe": -1}}
	r := testRunner(&fakeDialer{shell: sh}, nil)

	steps := []interaction.Step{
		{Type: interaction.Text, Value: "maybe", Optional: true, Timeout: interaction.DefaultTimeout, Repeat: 3},
		{Type: interaction.Input, Value: "y", Timeout: interaction.DefaultTimeout, Repeat: 1},
	}
	ok, _ := r.RunExpectWithRoot("10.0.0.5", "cms", "cmspw", "", "",
		"cmd", "", hclog.NewNullLogger(), steps, "$", "#")
	if !ok {
		t.Fatal("optional mismatch must not fail the session")
	}

	attempts := 0
	for _, v := range sh.expected {
		if v == "maybe" {
			attempts++
		}
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts for the optional step, got %d", attempts)
	}
	if sh.sent[len(sh.sent)-1] != "y" {
		t.Errorf("input after skipped optional step was not sent: %v", sh.sent)
	}
}

func TestRunExpectWithRootInitialResponse(t *testing.T) {
	sh := &fakeShell{expectations: map[string]int{}}
	r := testRunner(&fakeDialer{shell: sh}, nil)

	ok, _ := r.RunExpectWithRoot("10.0.0.5", "cms", "cmspw", "", "",
		"cmssvc", "3", hclog.NewNullLogger(), nil, "$", "#")
	if !ok {
		t.Fatal("expected session to succeed")
	}
	if diff := cmp.Diff([]string{"cmssvc", "3"}, sh.sent); diff != "" {
		t.Errorf("unexpected sends (-expected +actual):\n%s", diff)
	}
}

func TestRunExpectWithRootDialFailure(t *testing.T) {
	r := testRunner(&fakeDialer{dialErr: errors.New("connection refused")}, nil)

	ok, output := r.RunExpectWithRoot("10.0.0.5", "cms", "cmspw", "root", "rootpw",
		"cmd", "", hclog.NewNullLogger(), nil, "$", "#")
	if ok || output != "" {
		t.Errorf("expected (false, \"\"), got (%v, %q)", ok, output)
	}
}

func TestRunExpectWithRootMasksSensitiveInput(t *testing.T) {
	sh := &fakeShell{expectations: map[string]int{}}
	r := testRunner(&fakeDialer{shell: sh}, nil)

	var buf bytes.Buffer
	logger := hclog.New(&hclog.LoggerOptions{Output: &buf, Level: hclog.Trace})

	steps := []interaction.Step{
		{Type: interaction.Input, Value: "s3cret!", Sensitive: true, Timeout: interaction.DefaultTimeout, Repeat: 1},
		{Type: interaction.Input, Value: "plain", Timeout: interaction.DefaultTimeout, Repeat: 1},
	}
	if ok, _ := r.RunExpectWithRoot("10.0.0.5", "cms", "cmspw", "", "",
		"cmd", "", logger, steps, "$", "#"); !ok {
		t.Fatal("expected session to succeed")
	}

	logged := buf.String()
	if strings.Contains(logged, "s3cret!") {
		t.Error("sensitive input leaked into the log")
	}
	if !strings.Contains(logged, masked) {
		t.Error("masked placeholder missing from the log")
	}
	if !strings.Contains(logged, "plain") {
		t.Error("non-sensitive input should be logged verbatim")
	}
	// The secret still reaches the remote side.
	if diff := cmp.Diff([]string{"cmd", "s3cret!", "plain"}, sh.sent); diff != "" {
		t.Errorf("unexpected sends (-expected +actual):\n%s", diff)
	}
}

func TestRunSSHCommand(t *testing.T) {
	tc := []struct {
		name     string
		exec     ExecResult
		execErr  error
		expected bool
		output   string
	}{
		{
			name:     "Success",
			exec:     ExecResult{ExitCode: 0, Stdout: "done\n"},
			expected: true,
			output:   "done\n",
		},
		{
			name:     "Nonzero exit",
			exec:     ExecResult{ExitCode: 2, Stdout: "out", Stderr: "err"},
			expected: false,
			output:   "outerr",
		},
		{
			name:     "Transport error",
			execErr:  errors.New("connection reset"),
			expected: false,
			output:   "",
		},
	}

	for _, c := range tc {
		t.Run(c.name, func(t *testing.T) {
			r := testRunner(&fakeDialer{exec: c.exec, execErr: c.execErr}, nil)
			ok, output := r.RunSSHCommand("10.0.0.5", 22, "root", "pw", "ls", hclog.NewNullLogger())
			if ok != c.expected {
				t.Errorf("unexpected result: %v", ok)
			}
			if output != c.output {
				t.Errorf("unexpected output: %q, expected %q", output, c.output)
			}
		})
	}
}

func TestRunCommandExt(t *testing.T) {
	openProbe := func(string, int, hclog.Logger) bool { return true }

	t.Run("Success", func(t *testing.T) {
		d := &fakeDialer{exec: ExecResult{ExitCode: 3, Stdout: "so", Stderr: "se"}}
		r := testRunner(d, openProbe)
		code, stdout, stderr := r.RunCommandExt("10.0.0.5", 22, "root", "pw", "ls", hclog.NewNullLogger())
		if code != 3 || stdout != "so" || stderr != "se" {
			t.Errorf("unexpected result: (%d, %q, %q)", code, stdout, stderr)
		}
		if d.execCmd != "ls" {
			t.Errorf("unexpected command: %q", d.execCmd)
		}
	})

	t.Run("Port closed", func(t *testing.T) {
		r := testRunner(&fakeDialer{exec: ExecResult{ExitCode: 0}}, func(string, int, hclog.Logger) bool { return false })
		code, stdout, stderr := r.RunCommandExt("10.0.0.5", 22, "root", "pw", "ls", hclog.NewNullLogger())
		if code != -1 || stdout != "" || stderr != "" {
			t.Errorf("expected sentinel, got (%d, %q, %q)", code, stdout, stderr)
		}
	})

	t.Run("Transport error", func(t *testing.T) {
		r := testRunner(&fakeDialer{execErr: errors.New("broken pipe")}, openProbe)
		code, stdout, stderr := r.RunCommandExt("10.0.0.5", 22, "root", "pw", "ls", hclog.NewNullLogger())
		if code != -1 || stdout != "" || stderr != "" {
			t.Errorf("expected sentinel, got (%d, %q, %q)", code, stdout, stderr)
		}
	})

	t.Run("Panicking probe", func(t *testing.T) {
		r := testRunner(&fakeDialer{}, func(string, int, hclog.Logger) bool { panic("dns blew up") })
		code, stdout, stderr := r.RunCommandExt("10.0.0.5", 22, "root", "pw", "ls", hclog.NewNullLogger())
		if code != -1 || stdout != "" || stderr != "" {
			t.Errorf("expected sentinel, got (%d, %q, %q)", code, stdout, stderr)
		}
	})
}
