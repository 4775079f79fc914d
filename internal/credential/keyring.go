package credential

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// KeyringStore is the platform secret store (Secret Service, Keychain or
// Windows Credential Manager).
type KeyringStore struct{}

// Get returns the stored secret or ErrNotFound.
func (KeyringStore) Get(service, user string) (string, error) {
	secret, err := keyring.Get(service, user)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	return secret, err
}

// Set stores secret under (service, user).
func (KeyringStore) Set(service, user, secret string) error {
	return keyring.Set(service, user, secret)
}
