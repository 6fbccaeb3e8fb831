// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/chacha20poly1305"
)

// KeySize is the length of a sealing key in bytes.
const KeySize = chacha20poly1305.KeySize

// ErrTampered is returned when a sealed value fails authentication.
var ErrTampered = errors.New("storage: sealed value failed authentication")

// SealedStore encrypts every value with XChaCha20-Poly1305 before handing it
// to the inner store. Keys stay in the clear; the key name is bound in as
// additional data so values cannot be swapped between keys.
type SealedStore struct {
	inner Store
	aead  cipher.AEAD
}

// NewSealedStore wraps inner with a 32-byte key.
func NewSealedStore(inner Store, key []byte) (*SealedStore, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("storage: invalid sealing key: %w", err)
	}
	return &SealedStore{inner: inner, aead: aead}, nil
}

// Get implements Store.
func (s *SealedStore) Get(key string) (string, bool, error) {
	raw, ok, err := s.inner.Get(key)
	if err != nil || !ok {
		return "", ok, err
	}
	blob, err := base64.StdEncoding.DecodeString(raw)
	if err != nil || len(blob) < s.aead.NonceSize() {
		return "", false, fmt.Errorf("%w: %s", ErrTampered, key)
	}
	nonce, ct := blob[:s.aead.NonceSize()], blob[s.aead.NonceSize():]
	pt, err := s.aead.Open(nil, nonce, ct, []byte(key))
	if err != nil {
		return "", false, fmt.Errorf("%w: %s", ErrTampered, key)
	}
	return string(pt), true, nil
}

// Apply implements Store.
func (s *SealedStore) Apply(ops ...Op) error {
	sealed := make([]Op, 0, len(ops))
	for _, op := range ops {
		if op.Delete {
			sealed = append(sealed, op)
			continue
		}
		nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(op.Value)+s.aead.Overhead())
		if _, err := rand.Read(nonce); err != nil {
			return fmt.Errorf("failed to generate nonce: %w", err)
		}
		blob := s.aead.Seal(nonce, nonce, []byte(op.Value), []byte(op.Key))
		sealed = append(sealed, Put(op.Key, base64.StdEncoding.EncodeToString(blob)))
	}
	return s.inner.Apply(sealed...)
}

// Close implements Store.
func (s *SealedStore) Close() error {
	return s.inner.Close()
}

// LoadOrCreateKey reads a sealing key from path, generating and writing a
// fresh one (mode 0600) if the file does not exist.
func LoadOrCreateKey(path string) ([]byte, error) {
	if path == "" {
		return nil, errors.New("storage: encryption requires a key path")
	}
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != KeySize {
			return nil, fmt.Errorf("storage: key file %s has %d bytes, want %d", path, len(data), KeySize)
		}
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := atomicWriteFile(path, key, 0600); err != nil {
		return nil, err
	}
	return key, nil
}
