// Copyright the n8n docker-entrypoint contributors. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package keys

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/n8n-io/docker-entrypoint/internal/env"
)

// FileName is the encryption key file inside the data directory.
const FileName = "encryption.key"

const keyLength = 32

var (
	// ErrRandomSource indicates the secure random source is unavailable.
	ErrRandomSource = errors.New("secure random source unavailable")
	// ErrKeyWrite indicates the key file could not be persisted.
	ErrKeyWrite = errors.New("encryption key write failed")
)

// Ensure guarantees a non-empty encryption key for the server process.
// Exactly one branch runs per boot: an explicit N8N_ENCRYPTION_KEY stands
// untouched; otherwise an existing key file is read and exported; otherwise a
// fresh key is generated, persisted all-or-nothing, and exported. An existing
// key file is never overwritten. Returns whether a new key was generated.
func Ensure(dataDir string, environ *env.Environment, random io.Reader) (bool, error) {
	if environ.EncryptionKey() != "" {
		log.Debug("Encryption key supplied via environment, leaving key file alone")
		return false, nil
	}

	path := filepath.Join(dataDir, FileName)

	raw, err := os.ReadFile(path)
	if err == nil {
		environ.SetEncryptionKey(strings.TrimSpace(string(raw)))
		return false, nil
	}
	if !os.IsNotExist(err) {
		return false, fmt.Errorf("%w: read %s: %v", ErrKeyWrite, path, err)
	}

	encoded, err := generate(random)
	if err != nil {
		return false, err
	}

	if err := writeAtomic(path, encoded); err != nil {
		return false, err
	}

	environ.SetEncryptionKey(encoded)
	log.WithField("keyFile", path).Info("Generated new encryption key")
	return true, nil
}

func generate(random io.Reader) (string, error) {
	buf := make([]byte, keyLength)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomSource, err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

// writeAtomic persists value to path via a uniquely named temp file in the
// same directory plus rename, so a failed write never leaves a partial key
// file behind.
func writeAtomic(path, value string) error {
	tmp := fmt.Sprintf("%s.%s.tmp", path, uuid.New().String())

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrKeyWrite, err)
	}

	if _, err := f.WriteString(value); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrKeyWrite, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrKeyWrite, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrKeyWrite, err)
	}

	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: %v", ErrKeyWrite, err)
	}
	return nil
}
