// © Broadcom. All Rights Reserved.
// The term "Broadcom" refers to Broadcom Inc. and/or its subsidiaries.
// SPDX-License-Identifier: MPL-2.0

// Package interaction parses line-oriented configuration scripts into the
// typed expect/send steps consumed by the remote session driver.
package interaction

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// StepType discriminates between waiting for remote output and sending input.
type StepType int

const (
	// Text waits for the step value to appear in the remote output stream.
	Text StepType = iota
	// Input sends the step value, newline terminated, to the remote shell.
	Input
)

// DefaultTimeout is the sentinel meaning "use the caller's session default".
const DefaultTimeout = -1

// Steps marked optional wait a short while only; a missing optional prompt
// must not stall the session for the full default timeout.
const optionalTimeout = 10

const (
	commentPrefix = "##"
	inputPrefix   = "input:"
)

// Step is one unit of a scripted remote dialogue. Steps are immutable once
// parsed and are consumed in order by the session driver.
type Step struct {
	Type     StepType
	Value    string
	Optional bool
	// Sensitive inputs must never be logged verbatim.
	Sensitive bool
	// Timeout in seconds, DefaultTimeout for the session default.
	Timeout int
	// Repeat is how many times a non-matching optional step is retried
	// before it is skipped.
	Repeat int
}

// ParseOptionalStatement recognizes a leading [*n<K>*] marker. When present
// the marker is stripped and the step is optional with repeat count K
// (default 1). Malformed markers are treated as literal text.
func ParseOptionalStatement(line string) (string, bool, int) {
	if !strings.HasPrefix(line, "[*n") {
		return line, false, 1
	}
	end := strings.Index(line, "*]")
	if end < 0 {
		return line, false, 1
	}
	repeat := 1
	if digits := line[3:end]; digits != "" {
		n, err := strconv.Atoi(digits)
		if err != nil {
			return line, false, 1
		}
		repeat = n
	}
	return line[end+2:], true, repeat
}

// ParseTimeoutOption recognizes a leading <N> marker giving a per-step
// timeout in seconds. Absent or malformed markers yield the line unchanged
// and DefaultTimeout.
func ParseTimeoutOption(line string) (string, int) {
	if !strings.HasPrefix(line, "<") {
		return line, DefaultTimeout
	}
	end := strings.Index(line, ">")
	if end < 0 {
		return line, DefaultTimeout
	}
	n, err := strconv.Atoi(line[1:end])
	if err != nil {
		return line, DefaultTimeout
	}
	return line[end+1:], n
}

// ParseScript walks the script lines in order and produces the step sequence.
// Lines starting with ## are comments. An input:<label> line consumes the
// next unused entry from inputs and produces a sensitive Input step; once
// inputs are exhausted the literal label is sent instead and the step is not
// considered sensitive. Every other non-blank line produces a Text step
// after optional and timeout markers are stripped.
func ParseScript(lines []string, inputs []string) []Step {
	steps := make([]Step, 0, len(lines))
	next := 0
	for _, line := range lines {
		if strings.HasPrefix(line, commentPrefix) {
			continue
		}
		if strings.HasPrefix(line, inputPrefix) {
			step := Step{Type: Input, Timeout: DefaultTimeout, Repeat: 1}
			if next < len(inputs) {
				step.Value = inputs[next]
				step.Sensitive = true
				next++
			} else {
				step.Value = strings.TrimPrefix(line, inputPrefix)
			}
			steps = append(steps, step)
			continue
		}
		rest, optional, repeat := ParseOptionalStatement(line)
		rest, timeout := ParseTimeoutOption(rest)
		if timeout == DefaultTimeout && optional {
			timeout = optionalTimeout
		}
		if rest == "" && !optional {
			continue
		}
		steps = append(steps, Step{
			Type:     Text,
			Value:    rest,
			Optional: optional,
			Timeout:  timeout,
			Repeat:   repeat,
		})
	}
	return steps
}

// LoadScript reads a script file into trimmed lines.
func LoadScript(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
