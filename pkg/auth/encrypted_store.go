package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"pinback/pkg/storage"
)

const (
	// EnvPassphrase replaces the generated passphrase file
	EnvPassphrase = "PINBACK_PASSPHRASE"

	passphraseFile   = ".passphrase"
	envelopeVersion  = 1
	pbkdf2Iterations = 100000
	saltSize         = 16
	keySize          = 32
)

// EncryptedFileStore keeps all accounts in one AES-GCM sealed file. The
// key is derived with PBKDF2 from a passphrase taken from
// PINBACK_PASSPHRASE or generated once beside the file.
type EncryptedFileStore struct {
	mu     sync.Mutex
	path   string
	sealer sealer
}

// envelope is the on-disk form; []byte fields encode as base64
type envelope struct {
	Version    int    `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(filepath.Join(dir, passphraseFile))
	if err != nil {
		return nil, err
	}
	return &EncryptedFileStore{path: path, sealer: sealer{passphrase: passphrase}}, nil
}

func (e *EncryptedFileStore) Name() string { return "file" }

func (e *EncryptedFileStore) Store(account *Account) error {
	if !account.valid() {
		return ErrInvalidAccount
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, err := e.readAll()
	if err != nil {
		return err
	}
	accounts[account.Username] = *account
	return e.writeAll(accounts)
}

func (e *EncryptedFileStore) Retrieve(username string) (*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, err := e.readAll()
	if err != nil {
		return nil, err
	}
	account, ok := accounts[username]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &account, nil
}

func (e *EncryptedFileStore) List() ([]*Account, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, err := e.readAll()
	if err != nil {
		return nil, err
	}
	list := make([]*Account, 0, len(accounts))
	for _, account := range accounts {
		list = append(list, &account)
	}
	return list, nil
}

// Delete removes one account; the file goes away with the last one
func (e *EncryptedFileStore) Delete(username string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	accounts, err := e.readAll()
	if err != nil {
		return err
	}
	if _, ok := accounts[username]; !ok {
		return ErrCredentialsNotFound
	}
	delete(accounts, username)
	return e.writeAll(accounts)
}

// readAll returns an empty map when the file does not exist yet
func (e *EncryptedFileStore) readAll() (map[string]Account, error) {
	accounts := make(map[string]Account)

	data, err := os.ReadFile(e.path)
	if errors.Is(err, os.ErrNotExist) {
		return accounts, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	plaintext, err := e.sealer.open(env)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(plaintext, &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse accounts: %w", err)
	}
	return accounts, nil
}

func (e *EncryptedFileStore) writeAll(accounts map[string]Account) error {
	if len(accounts) == 0 {
		if err := os.Remove(e.path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove credentials file: %w", err)
		}
		return nil
	}

	plaintext, err := json.Marshal(accounts)
	if err != nil {
		return fmt.Errorf("failed to encode accounts: %w", err)
	}
	env, err := e.sealer.seal(plaintext)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode credentials file: %w", err)
	}
	return storage.WriteFileAtomic(e.path, data, 0600)
}

// sealer encrypts with a fresh salt and nonce on every write
type sealer struct {
	passphrase string
}

func (s sealer) aead(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(s.passphrase), salt, pbkdf2Iterations, keySize, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s sealer) seal(plaintext []byte) (envelope, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return envelope{}, fmt.Errorf("failed to generate salt: %w", err)
	}
	gcm, err := s.aead(salt)
	if err != nil {
		return envelope{}, fmt.Errorf("failed to encrypt: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return envelope{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return envelope{
		Version:    envelopeVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plaintext, nil),
	}, nil
}

func (s sealer) open(env envelope) ([]byte, error) {
	if env.Version != envelopeVersion {
		return nil, fmt.Errorf("unsupported credentials file version %d", env.Version)
	}
	gcm, err := s.aead(env.Salt)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	if len(env.Nonce) != gcm.NonceSize() {
		return nil, errors.New("failed to decrypt: bad nonce")
	}
	plaintext, err := gcm.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials (wrong passphrase?): %w", err)
	}
	return plaintext, nil
}

// loadPassphrase prefers PINBACK_PASSPHRASE, then the passphrase file,
// generating the file on first use.
func loadPassphrase(path string) (string, error) {
	if pass := os.Getenv(EnvPassphrase); pass != "" {
		return pass, nil
	}

	if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
		return string(data), nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.RawURLEncoding.EncodeToString(b)
	if err := storage.WriteFileAtomic(path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}
