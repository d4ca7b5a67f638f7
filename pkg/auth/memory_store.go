package auth

import (
	"sync"
)

// MemoryStore keeps accounts in process memory. Setting Err makes every
// call fail with it.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[string]Account

	Err error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[string]Account)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Store(account *Account) error {
	if m.Err != nil {
		return m.Err
	}
	if !account.valid() {
		return ErrInvalidAccount
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[account.Username] = *account
	return nil
}

func (m *MemoryStore) Retrieve(username string) (*Account, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	account, ok := m.accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (m *MemoryStore) List() ([]*Account, error) {
	if m.Err != nil {
		return nil, m.Err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]*Account, 0, len(m.accounts))
	for _, account := range m.accounts {
		accounts = append(accounts, &account)
	}
	return accounts, nil
}

func (m *MemoryStore) Delete(username string) error {
	if m.Err != nil {
		return m.Err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.accounts, username)
	return nil
}

// Len returns the number of accounts held
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.accounts)
}
