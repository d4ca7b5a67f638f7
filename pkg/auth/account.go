package auth

import (
	"errors"
	"time"
)

var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidAccount      = errors.New("account needs a username and password")
	ErrReadOnly            = errors.New("credential store is read-only")
)

// Account is a saved Pinboard login
type Account struct {
	Username     string    `json:"username"`
	Password     string    `json:"password"`
	LastModified time.Time `json:"last_modified"`

	// Source names the store the account was read from
	Source string `json:"-"`
}

func (a *Account) valid() bool {
	return a != nil && a.Username != "" && a.Password != ""
}

// CredentialStore is one place accounts can be kept
type CredentialStore interface {
	Name() string
	Store(account *Account) error
	Retrieve(username string) (*Account, error)
	List() ([]*Account, error)
	Delete(username string) error
}

// SanitizeAccount returns a copy of the account that is safe to print.
// Only whether a password is set shows, never its length.
func SanitizeAccount(account *Account) *Account {
	if account == nil {
		return nil
	}

	sanitized := *account
	if sanitized.Password != "" {
		sanitized.Password = "********"
	}
	return &sanitized
}
