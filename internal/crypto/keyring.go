// Package crypto resolves the database encryption key. A key supplied
// through the environment wins; otherwise the OS keyring (Keychain, Secret
// Service or Windows Credential Manager) holds it.
package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	ServiceName = "duesink"
	KeyName     = "db-encryption-key"
)

// ErrNoKey is returned when neither the environment nor the keyring has a key.
var ErrNoKey = errors.New("encryption key not found")

// Keyring provides secure key storage abstraction
type Keyring interface {
	GetKey() (string, error)
	SetKey(password string) error
	DeleteKey() error
	IsAvailable() bool
	// FromEnv reports whether the key came from the environment
	FromEnv() bool
}

type systemKeyring struct {
	envKey string
}

// NewKeyring returns a keyring that prefers envKey (DUESINK_DB_KEY) when it
// is non-empty
func NewKeyring(envKey string) Keyring {
	return &systemKeyring{envKey: envKey}
}

func (k *systemKeyring) FromEnv() bool {
	return k.envKey != ""
}

// GetKey returns the environment key or the one stored in the OS keyring
func (k *systemKeyring) GetKey() (string, error) {
	if k.envKey != "" {
		return k.envKey, nil
	}

	key, err := keyring.Get(ServiceName, KeyName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNoKey
		}
		return "", fmt.Errorf("failed to retrieve key from keyring: %w", err)
	}
	if key == "" {
		return "", ErrNoKey
	}
	return key, nil
}

// SetKey stores the encryption key in the OS keyring
func (k *systemKeyring) SetKey(password string) error {
	if password == "" {
		return errors.New("password cannot be empty")
	}
	if err := keyring.Set(ServiceName, KeyName, password); err != nil {
		return fmt.Errorf("failed to store key in keyring (set DUESINK_DB_KEY instead): %w", err)
	}
	return nil
}

// DeleteKey removes the encryption key from the OS keyring
func (k *systemKeyring) DeleteKey() error {
	err := keyring.Delete(ServiceName, KeyName)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNoKey
		}
		return fmt.Errorf("failed to delete key from keyring: %w", err)
	}
	return nil
}

// IsAvailable reports whether a key source is usable: either the
// environment key is set or the OS keyring accepts writes
func (k *systemKeyring) IsAvailable() bool {
	if k.envKey != "" {
		return true
	}

	testKey := "__duesink_availability_test__"
	if err := keyring.Set(ServiceName, testKey, "test"); err != nil {
		return false
	}
	_ = keyring.Delete(ServiceName, testKey)
	return true
}

// GenerateKey returns a random 256-bit key, hex encoded
func GenerateKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate key: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
