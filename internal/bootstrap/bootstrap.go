// Copyright the n8n docker-entrypoint contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

// Package bootstrap implements the container's startup sequence: configure
// the environment, provision the encryption key, extend the trust store, and
// hand the process over to the workflow server.
package bootstrap

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/n8n-io/docker-entrypoint/internal/certs"
	"github.com/n8n-io/docker-entrypoint/internal/env"
	"github.com/n8n-io/docker-entrypoint/internal/keys"
	"github.com/n8n-io/docker-entrypoint/internal/launch"
)

// ErrDataDirectory indicates the persistent data directory could not be
// created. Fatal: the server must never start without its data directory.
var ErrDataDirectory = errors.New("data directory unavailable")

// Config carries the launcher's wiring. Zero-value capability fields get
// production implementations.
type Config struct {
	DataDir      string
	CertDir      string
	DefaultsFile string
	ServerPath   string

	Random     io.Reader           // defaults to crypto/rand
	RunCommand certs.CommandRunner // defaults to certs.Run
	Handoff    launch.Handoff      // defaults to launch.ExecHandoff
}

func (c *Config) fillDefaults() {
	if c.ServerPath == "" {
		c.ServerPath = launch.ResolveBinary()
	}
	if c.Random == nil {
		c.Random = rand.Reader
	}
	if c.RunCommand == nil {
		c.RunCommand = certs.Run
	}
	if c.Handoff == nil {
		c.Handoff = launch.ExecHandoff{}
	}
}

// Run executes the bootstrap sequence and hands off to the server with the
// operator-supplied argv (empty argv means no arguments). The sequence is
// strictly linear with no retries: a failure before the handoff aborts the
// boot. With the default exec handoff Run does not return on success; with a
// supervising handoff it returns the server's exit code.
func Run(cfg Config, argv []string) (int, error) {
	cfg.fillDefaults()

	environ := env.NewEnvironment()

	if err := environ.LoadDefaultsFile(cfg.DefaultsFile); err != nil {
		log.WithError(err).Warn("Ignoring defaults file")
	}

	if port, overridden := environ.ApplyPlatformPortOverride(); overridden {
		log.WithField("port", port).Info("Platform-assigned PORT overrides N8N_PORT")
	}

	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrDataDirectory, cfg.DataDir, err)
	}

	if _, err := keys.Ensure(cfg.DataDir, environ, cfg.Random); err != nil {
		return 0, err
	}

	if found, err := certs.Trust(cfg.CertDir, environ, cfg.RunCommand); found && err != nil {
		log.WithError(err).Warn("Custom certificate trust is incomplete")
	}

	log.WithFields(log.Fields{
		"port":       environ.Port(),
		"host":       environ.Host(),
		"dbType":     environ.DBType(),
		"enterprise": environ.EnterpriseEnabled(),
	}).Info("Starting n8n")

	return cfg.Handoff.Run(launch.Command{
		Path: cfg.ServerPath,
		Args: argv,
		Env:  environ.ExecEnv(),
	})
}
