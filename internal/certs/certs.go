// Copyright the n8n docker-entrypoint contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package certs

import (
	"fmt"
	"os"
	"os/exec"

	log "github.com/sirupsen/logrus"

	"github.com/n8n-io/docker-entrypoint/internal/env"
)

// DefaultDirectory is where operators mount extra CA certificates.
const DefaultDirectory = "/opt/custom-certificates"

const (
	sslCertDirKey  = "SSL_CERT_DIR"
	nodeOptionsKey = "NODE_OPTIONS"
	rehashCommand  = "c_rehash"
	opensslCAFlag  = "--use-openssl-ca"
)

// CommandRunner executes an external command. Swappable in tests.
type CommandRunner func(name string, args ...string) error

// Run is the production CommandRunner.
func Run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

// Trust marks dir as the system CA directory for the server process when it
// exists, and rebuilds its certificate hash index. The returned error only
// reports a failed rehash; callers treat it as a warning, the environment
// pointers are already in place and the OpenSSL CA flag alone is often enough.
// Returns whether the directory was found.
func Trust(dir string, environ *env.Environment, run CommandRunner) (bool, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false, nil
	}

	environ.Set(sslCertDirKey, dir)

	nodeOptions := opensslCAFlag
	if prev := environ.Get(nodeOptionsKey); prev != "" {
		nodeOptions = opensslCAFlag + " " + prev
	}
	environ.Set(nodeOptionsKey, nodeOptions)

	log.WithField("certDir", dir).Info("Trusting custom certificates")

	if err := run(rehashCommand, dir); err != nil {
		return true, fmt.Errorf("rehash of %s failed: %w", dir, err)
	}
	return true, nil
}
