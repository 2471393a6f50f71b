// Copyright the n8n docker-entrypoint contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package launch hands the container over to the workflow server, either by
// replacing the launcher's process image or by supervising a child process.
package launch

import (
	"errors"
	"os/exec"
)

// DefaultBinary is the server executable name, resolved via PATH.
const DefaultBinary = "n8n"

// fallbackPath is used when the binary is not on PATH, matching where the
// image build installs it.
const fallbackPath = "/usr/local/bin/n8n"

// ErrLaunch indicates the server process could not be started.
var ErrLaunch = errors.New("failed to launch server process")

// Command describes the server invocation: executable path, arguments
// (without argv[0]) and the full child environment.
type Command struct {
	Path string
	Args []string
	Env  []string
}

// Handoff starts the server process. Exec mode never returns on success;
// supervise mode returns the child's exit code once it terminates.
type Handoff interface {
	Run(cmd Command) (int, error)
}

// ResolveBinary locates the server executable via PATH, falling back to the
// image's install location.
func ResolveBinary() string {
	if path, err := exec.LookPath(DefaultBinary); err == nil {
		return path
	}
	return fallbackPath
}

// Argv builds the exec argv for cmd, with the binary path as argv[0].
func (c Command) Argv() []string {
	return append([]string{c.Path}, c.Args...)
}
