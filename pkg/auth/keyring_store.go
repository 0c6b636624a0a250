package auth

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	keyringService = "feedmirror"
	keyringPrefix  = "cookies_"
)

// KeyringStore implements CookieStore using the system keychain
type KeyringStore struct{}

// NewKeyringStore creates a keychain store, failing if the keychain is unreachable
func NewKeyringStore() (*KeyringStore, error) {
	testKey := "test_availability"
	if err := keyring.Set(keyringService, testKey, "test"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, testKey)

	return &KeyringStore{}, nil
}

func (k *KeyringStore) Store(ref *CookieRef) error {
	if ref == nil || ref.Profile == "" {
		return ErrInvalidCookies
	}

	data, err := json.Marshal(ref)
	if err != nil {
		return fmt.Errorf("failed to marshal cookie reference: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+ref.Profile, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Retrieve(profile string) (*CookieRef, error) {
	if profile == "" {
		return nil, ErrInvalidCookies
	}

	data, err := keyring.Get(keyringService, keyringPrefix+profile)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrCookiesNotFound
		}
		return nil, fmt.Errorf("failed to retrieve from keyring: %w", err)
	}

	var ref CookieRef
	if err := json.Unmarshal([]byte(data), &ref); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cookie reference: %w", err)
	}
	return &ref, nil
}

func (k *KeyringStore) Delete(profile string) error {
	if profile == "" {
		return ErrInvalidCookies
	}

	if err := keyring.Delete(keyringService, keyringPrefix+profile); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrCookiesNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return nil
}

func (k *KeyringStore) Exists(profile string) bool {
	if profile == "" {
		return false
	}
	_, err := keyring.Get(keyringService, keyringPrefix+profile)
	return err == nil
}
