package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// credentialsFile is created in the pinback config directory
const credentialsFile = "credentials.enc"

// Manager consults its stores in order. Writes go to the first store that
// accepts them; reads merge every store.
type Manager struct {
	stores []CredentialStore
}

// NewManager stacks the system keychain (when one answers), an encrypted
// file in the user config directory and the environment.
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	dir, err := ConfigDir()
	if err != nil {
		return nil, err
	}
	fileStore, err := NewEncryptedFileStore(filepath.Join(dir, credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials file: %w", err)
	}
	stores = append(stores, fileStore, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a Manager over the given stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// ConfigDir returns the pinback directory under the user config dir,
// creating it with owner-only permissions.
func ConfigDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	dir := filepath.Join(base, "pinback")
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Store saves account in the first writable store that succeeds and
// stamps LastModified.
func (m *Manager) Store(account *Account) error {
	if !account.valid() {
		return ErrInvalidAccount
	}
	account.LastModified = time.Now()

	var errs []error
	for _, store := range m.stores {
		err := store.Store(account)
		if err == nil {
			account.Source = store.Name()
			return nil
		}
		if !errors.Is(err, ErrReadOnly) {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		}
	}

	if len(errs) == 0 {
		return errors.New("no writable credential store")
	}
	return fmt.Errorf("failed to store credentials: %w", errors.Join(errs...))
}

// Retrieve returns username's account from the first store that has it
func (m *Manager) Retrieve(username string) (*Account, error) {
	for _, store := range m.stores {
		account, err := store.Retrieve(username)
		if err == nil && account != nil {
			account.Source = store.Name()
			return account, nil
		}
	}
	return nil, fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
}

// defaulter is a store that can name an account without being asked
type defaulter interface {
	Default() (*Account, error)
}

// RetrieveDefault picks the account to use when no username was given: a
// store with an explicit default (the environment) wins, otherwise the
// most recently saved account.
func (m *Manager) RetrieveDefault() (*Account, error) {
	for _, store := range m.stores {
		d, ok := store.(defaulter)
		if !ok {
			continue
		}
		if account, err := d.Default(); err == nil {
			account.Source = store.Name()
			return account, nil
		}
	}

	accounts, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(accounts) == 0 {
		return nil, ErrCredentialsNotFound
	}
	return accounts[0], nil
}

// List merges every store's accounts, newest first. A user known to more
// than one store appears once, with the most recently modified copy.
// Stores that fail to list are skipped.
func (m *Manager) List() ([]*Account, error) {
	newest := make(map[string]*Account)
	for _, store := range m.stores {
		accounts, err := store.List()
		if err != nil {
			continue
		}
		for _, account := range accounts {
			account.Source = store.Name()
			if seen, ok := newest[account.Username]; ok && !account.LastModified.After(seen.LastModified) {
				continue
			}
			newest[account.Username] = account
		}
	}

	merged := make([]*Account, 0, len(newest))
	for _, account := range newest {
		merged = append(merged, account)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].LastModified.Equal(merged[j].LastModified) {
			return merged[i].Username < merged[j].Username
		}
		return merged[i].LastModified.After(merged[j].LastModified)
	})
	return merged, nil
}

// Delete removes username from every writable store
func (m *Manager) Delete(username string) error {
	deleted := false
	var errs []error
	for _, store := range m.stores {
		err := store.Delete(username)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrCredentialsNotFound), errors.Is(err, ErrReadOnly):
		default:
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("failed to delete credentials: %w", errors.Join(errs...))
	}
	if !deleted {
		return fmt.Errorf("%w for user: %s", ErrCredentialsNotFound, username)
	}
	return nil
}

// DeleteAll removes every listed account. Accounts that only exist in
// read-only stores stay.
func (m *Manager) DeleteAll() error {
	accounts, err := m.List()
	if err != nil {
		return err
	}

	var errs []error
	for _, account := range accounts {
		if err := m.Delete(account.Username); err != nil && !errors.Is(err, ErrCredentialsNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
