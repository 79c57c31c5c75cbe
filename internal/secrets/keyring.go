package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the scanner's secrets in the OS keychain.
const KeyringService = "intelxscan"

var ErrSecretNotFound = errors.New("secret not found")

// Resolve returns value when set, otherwise the keychain entry for account.
// name is only used in the error message.
func Resolve(name, value, account string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return value, nil
	}
	if strings.TrimSpace(account) == "" {
		return "", fmt.Errorf("%w: %s (set it in config or keychain)", ErrSecretNotFound, name)
	}
	v, err := keyring.Get(KeyringService, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", fmt.Errorf("%w: %s in keychain account %q", ErrSecretNotFound, name, account)
	}
	if err != nil {
		return "", fmt.Errorf("keychain %q: %w", account, err)
	}
	if strings.TrimSpace(v) == "" {
		return "", fmt.Errorf("%w: %s is empty in keychain", ErrSecretNotFound, name)
	}
	return v, nil
}

func Set(account, value string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(value) == "" {
		return errors.New("secret is empty")
	}
	return keyring.Set(KeyringService, account, value)
}

func Delete(account string) error {
	if strings.TrimSpace(account) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, account)
}
