// Package credential resolves the hub account password: stored secret first,
// then an interactive prompt whose answer is written back to the store.
package credential

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DefaultService is the identity under which secrets are filed in the
// platform keyring.
const DefaultService = "home-temperature-statusbar"

var (
	// ErrNotFound is returned by a Store when no entry exists.
	ErrNotFound = errors.New("no keyring entry")
	// ErrAmbiguous is returned when the identity maps to more than one entry.
	ErrAmbiguous = errors.New("keyring entry is ambiguous")
	// ErrStoreUnavailable wraps any other store failure.
	ErrStoreUnavailable = errors.New("keyring unavailable")
	// ErrPrompt wraps failures to read a secret interactively.
	ErrPrompt = errors.New("password prompt failed")
)

// Account identifies the hub user.
type Account struct {
	Username string
}

// Credential is a resolved username/secret pair.
type Credential struct {
	Username string
	Secret   string
}

// String never includes the secret.
func (c Credential) String() string {
	return fmt.Sprintf("Credential{Username: %q, Secret: <redacted>}", c.Username)
}

// GoString keeps %#v from leaking the secret too.
func (c Credential) GoString() string { return c.String() }

// Store is the persistent secret store.
type Store interface {
	Get(service, user string) (string, error)
	Set(service, user, secret string) error
}

// Prompter asks the operator for a secret.
type Prompter interface {
	Prompt() (string, error)
}

// Resolver looks up, prompts for and persists account secrets.
type Resolver struct {
	Service  string
	Store    Store
	Prompter Prompter
	Logger   *zap.SugaredLogger
}

// Resolve returns the credential for account. An existing entry is never
// overwritten; a missing one is prompted for and stored.
func (r *Resolver) Resolve(account Account) (Credential, error) {
	service := r.service()

	secret, err := r.Store.Get(service, account.Username)
	switch {
	case err == nil:
		r.log().Debugf("keyring entry for %s found", account.Username)
		return Credential{Username: account.Username, Secret: secret}, nil
	case errors.Is(err, ErrNotFound):
		// fall through to prompt
	case errors.Is(err, ErrAmbiguous):
		r.log().Errorf("%s, %s is ambiguous in your keyring", service, account.Username)
		return Credential{}, fmt.Errorf("%s/%s: %w", service, account.Username, ErrAmbiguous)
	default:
		r.log().Errorf("unknown keyring error: %v", err)
		return Credential{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	secret, err = r.Prompter.Prompt()
	if err != nil {
		if errors.Is(err, ErrPrompt) {
			return Credential{}, err
		}
		return Credential{}, fmt.Errorf("%w: %v", ErrPrompt, err)
	}

	if err := r.Store.Set(service, account.Username, secret); err != nil {
		return Credential{}, fmt.Errorf("%w: storing entry for %s: %v", ErrStoreUnavailable, account.Username, err)
	}
	r.log().Infof("keyring entry for %s was set", account.Username)

	return Credential{Username: account.Username, Secret: secret}, nil
}

func (r *Resolver) service() string {
	if r.Service == "" {
		return DefaultService
	}
	return r.Service
}

func (r *Resolver) log() *zap.SugaredLogger {
	if r.Logger == nil {
		return zap.NewNop().Sugar()
	}
	return r.Logger
}
