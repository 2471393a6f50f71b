// Copyright the n8n docker-entrypoint contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package env

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	portKey         = "N8N_PORT"
	hostKey         = "N8N_HOST"
	dbTypeKey       = "DB_TYPE"
	encryptionKey   = "N8N_ENCRYPTION_KEY"
	platformPortKey = "PORT"
	licenseKeyKey   = "N8N_LICENSE_ACTIVATION_KEY"
	licenseCertKey  = "N8N_LICENSE_CERT"
)

// Environment holds the launcher's view of the process environment: the
// ambient variables inherited from the container runtime, file-sourced
// defaults, and the overrides accumulated during bootstrap. The launcher never
// mutates its own process environment; all changes live here until ExecEnv
// materializes them for the server process.
type Environment struct {
	ambient   map[string]string // inherited process environment
	defaults  map[string]string // recognized keys, applied when absent everywhere else
	overrides map[string]string // values set during bootstrap, win over everything
}

// NewEnvironment snapshots the current process environment.
func NewEnvironment() *Environment {
	return NewEnvironmentFromEnviron(os.Environ())
}

// NewEnvironmentFromEnviron builds an Environment from key=value pairs.
func NewEnvironmentFromEnviron(environ []string) *Environment {
	ambient := map[string]string{}
	for _, kv := range environ {
		if key, val, ok := strings.Cut(kv, "="); ok {
			ambient[key] = val
		}
	}

	return &Environment{
		ambient: ambient,
		defaults: map[string]string{
			portKey:   "5678",
			hostKey:   "0.0.0.0",
			dbTypeKey: "sqlite",
		},
		overrides: map[string]string{},
	}
}

// Get returns the effective value for key: overrides win over the ambient
// environment, which wins over defaults.
func (e *Environment) Get(key string) string {
	if val, ok := e.overrides[key]; ok {
		return val
	}
	if val, ok := e.ambient[key]; ok {
		return val
	}
	return e.defaults[key]
}

// IsSet reports whether key carries an explicit value, ignoring defaults.
func (e *Environment) IsSet(key string) bool {
	if _, ok := e.overrides[key]; ok {
		return true
	}
	_, ok := e.ambient[key]
	return ok
}

// Set records an override for the server process.
func (e *Environment) Set(key, value string) {
	e.overrides[key] = value
}

// ApplyPlatformPortOverride makes a platform-assigned PORT take precedence
// over the application port variable. Returns the port and whether an
// override happened.
func (e *Environment) ApplyPlatformPortOverride() (string, bool) {
	port, ok := e.ambient[platformPortKey]
	if !ok || port == "" {
		return "", false
	}
	e.overrides[portKey] = port
	return port, true
}

func (e *Environment) Port() string   { return e.Get(portKey) }
func (e *Environment) Host() string   { return e.Get(hostKey) }
func (e *Environment) DBType() string { return e.Get(dbTypeKey) }

// EncryptionKey returns the explicit encryption key, empty when unset.
func (e *Environment) EncryptionKey() string {
	if !e.IsSet(encryptionKey) {
		return ""
	}
	return e.Get(encryptionKey)
}

// SetEncryptionKey exports key material for the server process.
func (e *Environment) SetEncryptionKey(value string) {
	e.overrides[encryptionKey] = value
}

// EnterpriseEnabled reports whether a license activation key or license cert
// is present. Used for the startup banner only.
func (e *Environment) EnterpriseEnabled() bool {
	return e.Get(licenseKeyKey) != "" || e.Get(licenseCertKey) != ""
}

// LoadDefaultsFile merges a flat YAML mapping into the defaults layer. The
// file is optional; a missing file is not an error. File values rank below
// the ambient environment, so an operator-exported variable always wins.
func (e *Environment) LoadDefaultsFile(path string) error {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read defaults file %s: %w", path, err)
	}

	parsed := map[string]string{}
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("parse defaults file %s: %w", path, err)
	}

	for key, val := range parsed {
		e.defaults[key] = val
	}
	return nil
}

// ExecEnv returns the key=value strings passed to the server process on
// exec(): the ambient environment with bootstrap overrides applied. Defaults
// are not exported; the server applies its own. Sorted for determinism.
func (e *Environment) ExecEnv() []string {
	merged := mapUnion(e.ambient, e.overrides)

	environ := make([]string, 0, len(merged))
	for key, val := range merged {
		environ = append(environ, key+"="+val)
	}
	sort.Strings(environ)
	return environ
}

func mapUnion(maps ...map[string]string) map[string]string {
	// last maps in argument overwrite values of ones before
	union := map[string]string{}
	for _, m := range maps {
		for key, val := range m {
			union[key] = val
		}
	}
	return union
}
