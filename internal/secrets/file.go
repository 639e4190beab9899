// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package secrets

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/argon2"
)

// MasterKeyEnv holds the passphrase for the encrypted file backend.
const MasterKeyEnv = "FIELDFILL_MASTER_KEY"

const (
	argon2Time        = 3
	argon2Memory      = 64 * 1024 // KiB
	argon2Parallelism = 4
	argon2KeyLength   = 32 // AES-256

	saltSize = 16
)

// FileBackend stores keys in a JSON file encrypted with AES-256-GCM
// under a key derived from a master passphrase. It serves machines
// without a usable keychain and is unavailable when no passphrase is set.
type FileBackend struct {
	path      string
	masterKey []byte
	mu        sync.Mutex
}

// encryptedFile is the on-disk layout.
type encryptedFile struct {
	Salt  []byte `json:"salt"`
	Nonce []byte `json:"nonce"`
	Data  []byte `json:"data"`
}

// NewFileBackend creates a backend over path. An empty masterKey falls
// back to $FIELDFILL_MASTER_KEY.
func NewFileBackend(path, masterKey string) *FileBackend {
	if masterKey == "" {
		masterKey = os.Getenv(MasterKeyEnv)
	}
	var key []byte
	if masterKey != "" {
		key = []byte(masterKey)
	}
	return &FileBackend{path: path, masterKey: key}
}

// Name returns the backend identifier.
func (f *FileBackend) Name() string {
	return "file"
}

// Available reports whether a master key is configured.
func (f *FileBackend) Available() bool {
	return f.path != "" && len(f.masterKey) > 0
}

// Get retrieves a key from the encrypted file.
func (f *FileBackend) Get(_ context.Context, key string) (string, error) {
	if !f.Available() {
		return "", fmt.Errorf("%w: set %s", ErrBackendUnavailable, MasterKeyEnv)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	secrets, err := f.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return "", err
	}
	v, ok := secrets[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	return v, nil
}

// Set stores a key, creating the file if needed.
func (f *FileBackend) Set(_ context.Context, key, value string) error {
	if !f.Available() {
		return fmt.Errorf("%w: set %s", ErrBackendUnavailable, MasterKeyEnv)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	secrets, err := f.load()
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if secrets == nil {
		secrets = make(map[string]string)
	}
	secrets[key] = value
	return f.save(secrets)
}

// Delete removes a key.
func (f *FileBackend) Delete(_ context.Context, key string) error {
	if !f.Available() {
		return fmt.Errorf("%w: set %s", ErrBackendUnavailable, MasterKeyEnv)
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	secrets, err := f.load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
		}
		return err
	}
	if _, ok := secrets[key]; !ok {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, key)
	}
	delete(secrets, key)
	return f.save(secrets)
}

func (f *FileBackend) load() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		return nil, err
	}
	var file encryptedFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("invalid secrets file: %w", err)
	}

	gcm, err := f.cipher(file.Salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, file.Nonce, file.Data, nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong master key or corrupted file): %w", err)
	}
	defer clear(plaintext)

	var secrets map[string]string
	if err := json.Unmarshal(plaintext, &secrets); err != nil {
		return nil, fmt.Errorf("invalid decrypted secrets: %w", err)
	}
	return secrets, nil
}

// save re-encrypts everything with a fresh salt and nonce and replaces
// the file atomically.
func (f *FileBackend) save(secrets map[string]string) error {
	plaintext, err := json.Marshal(secrets)
	if err != nil {
		return fmt.Errorf("failed to marshal secrets: %w", err)
	}
	defer clear(plaintext)

	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := f.cipher(salt)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}

	raw, err := json.Marshal(encryptedFile{Salt: salt, Nonce: nonce, Data: gcm.Seal(nil, nonce, plaintext, nil)})
	if err != nil {
		return fmt.Errorf("failed to marshal secrets file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write secrets file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace secrets file: %w", err)
	}
	return nil
}

func (f *FileBackend) cipher(salt []byte) (cipher.AEAD, error) {
	key := argon2.IDKey(f.masterKey, salt, argon2Time, argon2Memory, argon2Parallelism, argon2KeyLength)
	defer clear(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}
