package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "pinback"
	// keyringIndexKey holds the saved usernames, since the keychain API
	// cannot enumerate entries
	keyringIndexKey = "accounts"
	keyringPrefix   = "pinboard:"
)

// KeyringStore keeps each password as its own keychain secret, plus an
// index entry mapping usernames to their modification time.
type KeyringStore struct {
	mu sync.Mutex
}

// NewKeyringStore fails when no keychain answers
func NewKeyringStore() (*KeyringStore, error) {
	if _, err := keyring.Get(keyringService, keyringIndexKey); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Name() string { return "keyring" }

func (k *KeyringStore) Store(account *Account) error {
	if !account.valid() {
		return ErrInvalidAccount
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	index, err := k.readIndex()
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, keyringPrefix+account.Username, account.Password); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	index[account.Username] = account.LastModified
	return k.writeIndex(index)
}

func (k *KeyringStore) Retrieve(username string) (*Account, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	index, err := k.readIndex()
	if err != nil {
		return nil, err
	}
	return k.retrieve(username, index[username])
}

func (k *KeyringStore) retrieve(username string, modified time.Time) (*Account, error) {
	password, err := keyring.Get(keyringService, keyringPrefix+username)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from keyring: %w", err)
	}
	return &Account{Username: username, Password: password, LastModified: modified}, nil
}

// List returns the indexed accounts whose secret is still present
func (k *KeyringStore) List() ([]*Account, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	index, err := k.readIndex()
	if err != nil {
		return nil, err
	}

	accounts := make([]*Account, 0, len(index))
	for username, modified := range index {
		account, err := k.retrieve(username, modified)
		if errors.Is(err, ErrCredentialsNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (k *KeyringStore) Delete(username string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	index, err := k.readIndex()
	if err != nil {
		return err
	}

	err = keyring.Delete(keyringService, keyringPrefix+username)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	_, indexed := index[username]
	if errors.Is(err, keyring.ErrNotFound) && !indexed {
		return ErrCredentialsNotFound
	}
	delete(index, username)
	return k.writeIndex(index)
}

func (k *KeyringStore) readIndex() (map[string]time.Time, error) {
	index := make(map[string]time.Time)

	data, err := keyring.Get(keyringService, keyringIndexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return index, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &index); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	return index, nil
}

func (k *KeyringStore) writeIndex(index map[string]time.Time) error {
	if len(index) == 0 {
		err := keyring.Delete(keyringService, keyringIndexKey)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring index: %w", err)
		}
		return nil
	}

	data, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode keyring index: %w", err)
	}
	if err := keyring.Set(keyringService, keyringIndexKey, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring index: %w", err)
	}
	return nil
}
