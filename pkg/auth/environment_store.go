package auth

import (
	"os"
)

const (
	EnvUsername = "PINBACK_USERNAME"
	EnvPassword = "PINBACK_PASSWORD"
)

// EnvironmentStore exposes the account named by PINBACK_USERNAME and
// PINBACK_PASSWORD. It cannot be written.
type EnvironmentStore struct{}

func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

func (e *EnvironmentStore) Name() string { return "environment" }

// Default returns the environment account when both variables are set
func (e *EnvironmentStore) Default() (*Account, error) {
	username, password := os.Getenv(EnvUsername), os.Getenv(EnvPassword)
	if username == "" || password == "" {
		return nil, ErrCredentialsNotFound
	}
	return &Account{Username: username, Password: password}, nil
}

func (e *EnvironmentStore) Retrieve(username string) (*Account, error) {
	account, err := e.Default()
	if err != nil {
		return nil, err
	}
	if account.Username != username {
		return nil, ErrCredentialsNotFound
	}
	return account, nil
}

func (e *EnvironmentStore) List() ([]*Account, error) {
	if account, err := e.Default(); err == nil {
		return []*Account{account}, nil
	}
	return nil, nil
}

func (e *EnvironmentStore) Store(*Account) error { return ErrReadOnly }

func (e *EnvironmentStore) Delete(string) error { return ErrReadOnly }
