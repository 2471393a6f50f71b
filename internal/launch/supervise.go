// Copyright the n8n docker-entrypoint contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package launch

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var forwardedSignals = []os.Signal{
	syscall.SIGTERM,
	syscall.SIGINT,
	syscall.SIGHUP,
	syscall.SIGQUIT,
}

// SuperviseHandoff spawns the server as a child process instead of replacing
// the process image. The launcher stays alive as pid 1, forwards termination
// signals to the child's process group, and exits with the child's exit code
// (128+signo when the child dies from a signal). This is a deliberate
// approximation of exec semantics for setups that need the launcher to remain
// the reaping parent.
type SuperviseHandoff struct{}

func (SuperviseHandoff) Run(cmd Command) (int, error) {
	child := exec.Command(cmd.Path, cmd.Args...)
	child.Env = cmd.Env
	child.Stdin = os.Stdin
	child.Stdout = os.Stdout
	child.Stderr = os.Stderr
	child.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := child.Start(); err != nil {
		return 0, fmt.Errorf("%w: start %s: %v", ErrLaunch, cmd.Path, err)
	}

	pid := child.Process.Pid

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, forwardedSignals...)
	defer signal.Stop(sigs)

	done := make(chan struct{})

	var g errgroup.Group
	g.Go(func() error {
		for {
			select {
			case sig := <-sigs:
				forward(pid, sig)
			case <-done:
				return nil
			}
		}
	})

	var waitErr error
	g.Go(func() error {
		waitErr = child.Wait()
		close(done)
		return nil
	})

	_ = g.Wait()

	return exitStatus(waitErr)
}

// forward delivers sig to the child's whole process group, falling back to
// the child alone when the group lookup fails.
func forward(pid int, sig os.Signal) {
	signo, ok := sig.(syscall.Signal)
	if !ok {
		return
	}

	log.WithField("signal", sig).Debug("Forwarding signal to server process")

	if pgid, err := syscall.Getpgid(pid); err == nil {
		// Negative pid sends signal to all in process group
		_ = syscall.Kill(-pgid, signo)
	} else {
		_ = syscall.Kill(pid, signo)
	}
}

// exitStatus decodes the child's wait result into the exit code the launcher
// should propagate.
func exitStatus(err error) (int, error) {
	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			if status.Signaled() {
				return 128 + int(status.Signal()), nil
			}
			return status.ExitStatus(), nil
		}
		return exitErr.ExitCode(), nil
	}

	return 0, fmt.Errorf("%w: wait: %v", ErrLaunch, err)
}
