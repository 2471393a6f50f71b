// Copyright the n8n docker-entrypoint contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// ExecHandoff replaces the launcher's process image with the server. The
// server inherits the launcher's pid and becomes the container's primary,
// signal-receiving process.
type ExecHandoff struct{}

// Run never returns on success.
func (ExecHandoff) Run(cmd Command) (int, error) {
	if err := unix.Exec(cmd.Path, cmd.Argv(), cmd.Env); err != nil {
		return 0, fmt.Errorf("%w: exec %s: %v", ErrLaunch, cmd.Path, err)
	}
	panic("unreachable: exec returned without error")
}
