// Copyright (C) 2025 sage-x-project
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// SPDX-License-Identifier: LGPL-3.0-or-later

package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	sagecrypto "github.com/genesis-mesh/node/crypto"
	"github.com/genesis-mesh/node/crypto/formats"
)

// fileKeyStorage implements KeyStorage by PEM-encoding each key pair to
// its own file under dir, named "<id>.pem". Private key material never
// leaves this process other than through this file, so dir's
// permissions are the only thing standing between it and disk exposure;
// callers are expected to place it under a mode-0700 directory (the
// node's state/keys layout does this).
type fileKeyStorage struct {
	mu       sync.Mutex
	dir      string
	exporter sagecrypto.KeyExporter
	importer sagecrypto.KeyImporter
}

// NewFileKeyStorage creates a PEM-backed KeyStorage rooted at dir,
// creating dir (mode 0700) if it doesn't exist.
func NewFileKeyStorage(dir string) (sagecrypto.KeyStorage, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &fileKeyStorage{
		dir:      dir,
		exporter: formats.NewPEMExporter(),
		importer: formats.NewPEMImporter(),
	}, nil
}

func (s *fileKeyStorage) path(id string) string {
	return filepath.Join(s.dir, id+".pem")
}

// Store writes keyPair to "<id>.pem", replacing any existing file for
// id. The file is written mode 0600 since it holds private key material.
func (s *fileKeyStorage) Store(id string, keyPair sagecrypto.KeyPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	der, err := s.exporter.Export(keyPair, sagecrypto.KeyFormatPEM)
	if err != nil {
		return err
	}
	return os.WriteFile(s.path(id), der, 0o600)
}

// Load reads and decodes "<id>.pem".
func (s *fileKeyStorage) Load(id string) (sagecrypto.KeyPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, sagecrypto.ErrKeyNotFound
		}
		return nil, err
	}
	return s.importer.Import(data, sagecrypto.KeyFormatPEM)
}

// Delete removes "<id>.pem".
func (s *fileKeyStorage) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return sagecrypto.ErrKeyNotFound
		}
		return err
	}
	return nil
}

// List returns every stored key ID, derived from the ".pem" filenames
// present in dir, sorted for consistent output.
func (s *fileKeyStorage) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pem") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(entry.Name(), ".pem"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Exists reports whether "<id>.pem" is present.
func (s *fileKeyStorage) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := os.Stat(s.path(id))
	return err == nil
}
