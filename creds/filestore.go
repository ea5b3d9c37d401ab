// Copyright (c) 2025 BVK Chaitanya

package creds

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bvk/alphavol/exchange"
	"github.com/bvk/alphavol/notify"
)

// SecretsFile is the on-disk shape written/read by the "setup" command and
// loaded by "run": one JSON file holding every credential the daemon
// needs, instead of per-user files or a database.
type SecretsFile struct {
	Users    map[UserID]exchange.Credentials `json:"users"`
	Telegram *notify.TelegramSecrets         `json:"telegram,omitempty"`
	Pushover *notify.PushoverKeys            `json:"pushover,omitempty"`
}

// SecretsFromFile loads a SecretsFile from path. A missing file returns
// os.ErrNotExist.
func SecretsFromFile(path string) (*SecretsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	s := new(SecretsFile)
	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("could not unmarshal secrets file %q: %w", path, err)
	}
	if s.Users == nil {
		s.Users = make(map[UserID]exchange.Credentials)
	}
	return s, nil
}

// Save writes s to path with owner-only permissions, creating its parent
// directory if necessary.
func (s *SecretsFile) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("could not create secrets directory: %w", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("could not marshal secrets file: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("could not write secrets file %q: %w", path, err)
	}
	return nil
}

// FileStore is a creds.Store backed by a SecretsFile on disk. Every Put
// re-reads and rewrites the whole file rather than patching it in place, so
// concurrent "setup" invocations cannot drop each other's records.
type FileStore struct {
	path string

	mu    sync.Mutex
	users map[UserID]exchange.Credentials
}

var _ Store = (*FileStore)(nil)

// NewFileStore loads path (which must already exist) into a FileStore.
func NewFileStore(path string) (*FileStore, error) {
	sf, err := SecretsFromFile(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: path, users: sf.Users}, nil
}

func (f *FileStore) GetCredentials(ctx context.Context, id UserID) (exchange.Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.users[id]
	if !ok {
		return exchange.Credentials{}, ErrNotFound
	}
	return c, nil
}

func (f *FileStore) Put(ctx context.Context, id UserID, c exchange.Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	sf, err := SecretsFromFile(f.path)
	if err != nil {
		return fmt.Errorf("could not reload secrets file before update: %w", err)
	}
	sf.Users[id] = c
	if err := sf.Save(f.path); err != nil {
		return err
	}
	f.users = sf.Users
	return nil
}
