// Copyright the n8n docker-entrypoint contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n8n-io/docker-entrypoint/internal/env"
)

func TestEnsureGeneratesKeyOnFirstBoot(t *testing.T) {
	dataDir := t.TempDir()
	environ := env.NewEnvironmentFromEnviron(nil)

	generated, err := Ensure(dataDir, environ, rand.Reader)
	require.NoError(t, err)
	assert.True(t, generated)

	raw, err := os.ReadFile(filepath.Join(dataDir, FileName))
	require.NoError(t, err)

	decoded, err := base64.StdEncoding.DecodeString(string(raw))
	require.NoError(t, err)
	assert.Len(t, decoded, 32)

	assert.Equal(t, string(raw), environ.EncryptionKey())
}

func TestEnsureNeverOverwritesExistingKeyFile(t *testing.T) {
	dataDir := t.TempDir()
	path := filepath.Join(dataDir, FileName)
	require.NoError(t, os.WriteFile(path, []byte("existing-key\n"), 0o600))

	environ := env.NewEnvironmentFromEnviron(nil)

	generated, err := Ensure(dataDir, environ, rand.Reader)
	require.NoError(t, err)
	assert.False(t, generated)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "existing-key\n", string(raw))
	assert.Equal(t, "existing-key", environ.EncryptionKey())
}

func TestEnsureRepeatedBootsAreIdempotent(t *testing.T) {
	dataDir := t.TempDir()

	first := env.NewEnvironmentFromEnviron(nil)
	_, err := Ensure(dataDir, first, rand.Reader)
	require.NoError(t, err)

	second := env.NewEnvironmentFromEnviron(nil)
	generated, err := Ensure(dataDir, second, rand.Reader)
	require.NoError(t, err)
	assert.False(t, generated)
	assert.Equal(t, first.EncryptionKey(), second.EncryptionKey())
}

func TestEnsureHonorsExplicitEnvironmentKey(t *testing.T) {
	dataDir := t.TempDir()
	environ := env.NewEnvironmentFromEnviron([]string{"N8N_ENCRYPTION_KEY=operator-key"})

	generated, err := Ensure(dataDir, environ, rand.Reader)
	require.NoError(t, err)
	assert.False(t, generated)

	// no key file is created and the operator value stands
	_, err = os.Stat(filepath.Join(dataDir, FileName))
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, "operator-key", environ.EncryptionKey())
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy pool on fire")
}

func TestEnsureRandomSourceFailure(t *testing.T) {
	dataDir := t.TempDir()
	environ := env.NewEnvironmentFromEnviron(nil)

	_, err := Ensure(dataDir, environ, failingReader{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRandomSource))

	// nothing persisted, nothing exported
	_, statErr := os.Stat(filepath.Join(dataDir, FileName))
	assert.True(t, os.IsNotExist(statErr))
	assert.Empty(t, environ.EncryptionKey())
}

func TestEnsureWriteFailureLeavesNoPartialFile(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("permission checks do not apply to root")
	}

	dataDir := filepath.Join(t.TempDir(), "readonly")
	require.NoError(t, os.MkdirAll(dataDir, 0o500))

	environ := env.NewEnvironmentFromEnviron(nil)

	_, err := Ensure(dataDir, environ, rand.Reader)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrKeyWrite))

	entries, readErr := os.ReadDir(dataDir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}
