package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/99designs/keyring"
)

const (
	serviceName = "taskflow"
	sessionKey  = "session-cookies"
)

// Vault persists the backend session cookies so a login survives process
// restarts.
type Vault struct {
	ring keyring.Keyring
}

// storedCookie is the persisted form of a session cookie.
type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// FilePasswordEnv names the environment variable holding the passphrase
// for the encrypted file fallback. Without it only OS keyrings are used.
const FilePasswordEnv = "TASKFLOW_VAULT_PASSWORD"

// Open returns a vault backed by the system keyring. The encrypted file
// store under dir is only offered when FilePasswordEnv is set, since a
// built-in passphrase would leave the cookies readable by anyone with the
// file.
func Open(dir string) (*Vault, error) {
	ring, err := keyring.Open(vaultConfig(dir, os.Getenv(FilePasswordEnv)))
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Vault{ring: ring}, nil
}

func vaultConfig(dir, filePassword string) keyring.Config {
	cfg := keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
		},
		KeychainTrustApplication: true,
	}
	if filePassword != "" {
		cfg.AllowedBackends = append(cfg.AllowedBackends, keyring.FileBackend)
		cfg.FileDir = dir
		cfg.FilePasswordFunc = keyring.FixedStringPrompt(filePassword)
	}
	return cfg
}

// NewVault wraps an existing keyring.
func NewVault(ring keyring.Keyring) *Vault {
	return &Vault{ring: ring}
}

// NewMemoryVault returns a vault that keeps everything in process memory.
func NewMemoryVault() *Vault {
	return &Vault{ring: keyring.NewArrayKeyring(nil)}
}

// SaveCookies replaces the stored session cookies.
func (v *Vault) SaveCookies(cookies []*http.Cookie) error {
	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encoding cookies: %w", err)
	}

	err = v.ring.Set(keyring.Item{
		Key:   sessionKey,
		Data:  data,
		Label: "TaskFlow session",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", sessionKey, err)
	}

	return nil
}

// LoadCookies returns the stored session cookies, or nil when none exist.
func (v *Vault) LoadCookies() ([]*http.Cookie, error) {
	item, err := v.ring.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting credential %q: %w", sessionKey, err)
	}

	var stored []storedCookie
	if err := json.Unmarshal(item.Data, &stored); err != nil {
		return nil, fmt.Errorf("decoding cookies: %w", err)
	}

	cookies := make([]*http.Cookie, 0, len(stored))
	for _, s := range stored {
		cookies = append(cookies, &http.Cookie{Name: s.Name, Value: s.Value, Path: "/"})
	}
	return cookies, nil
}

// Clear removes the stored session cookies. Missing entries are ignored.
func (v *Vault) Clear() error {
	err := v.ring.Remove(sessionKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", sessionKey, err)
	}
	return nil
}
