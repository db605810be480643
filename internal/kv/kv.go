// Package kv provides the user-metadata key-value store backing the identity
// collaborator: per-user encryption keys and per-user API secrets live here,
// not in the relational store.
package kv

import (
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/unearthedapp/unearthed-server/internal/crypto"
)

// Key prefixes. Values are namespaced as <prefix><userID> or
// <prefix><userID>:<name> so a user's metadata can be scanned as a group.
const (
	metaPrefix          = "meta:"
	encryptionKeyPrefix = "enckey:"
	apiSecretPrefix     = "apisecret:"
)

// ErrNotFound is returned when a key has no value for the user.
var ErrNotFound = errors.New("kv: not found")

// Store is a Badger-backed user metadata store.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// Open opens (or creates) the metadata store at the given path.
func Open(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is noisy; we log at the call sites
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open metadata store: %w", err)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns the metadata value stored for (userID, key).
func (s *Store) Get(userID, key string) (string, error) {
	return s.get(metaPrefix + userID + ":" + key)
}

// Set stores a metadata value for (userID, key).
func (s *Store) Set(userID, key, value string) error {
	return s.set(metaPrefix+userID+":"+key, value)
}

// EncryptionKey returns the user's symmetric encryption key.
// A missing key is a configuration fault the caller must treat as fatal,
// never as "no encryption".
func (s *Store) EncryptionKey(userID string) ([]byte, error) {
	encoded, err := s.get(encryptionKeyPrefix + userID)
	if err != nil {
		return nil, err
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key for %s: %w", userID, err)
	}
	if len(key) != crypto.KeySize {
		return nil, fmt.Errorf("encryption key for %s has wrong size %d", userID, len(key))
	}
	return key, nil
}

// SetEncryptionKey stores the user's symmetric encryption key.
func (s *Store) SetEncryptionKey(userID string, key []byte) error {
	if len(key) != crypto.KeySize {
		return fmt.Errorf("encryption key must be %d bytes, got %d", crypto.KeySize, len(key))
	}
	return s.set(encryptionKeyPrefix+userID, base64.StdEncoding.EncodeToString(key))
}

// APISecret returns the user's out-of-band API secret, the second half of the
// compound "apiKey~~~secret" bearer credential.
func (s *Store) APISecret(userID string) (string, error) {
	return s.get(apiSecretPrefix + userID)
}

// SetAPISecret stores the user's API secret.
func (s *Store) SetAPISecret(userID, secret string) error {
	return s.set(apiSecretPrefix+userID, secret)
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (s *Store) set(key, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), []byte(value))
	})
}
