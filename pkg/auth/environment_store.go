package auth

import (
	"os"
	"time"
)

// CookieFileEnv names the environment variable read by EnvironmentStore
const CookieFileEnv = "FEEDMIRROR_COOKIE_FILE"

// EnvironmentStore is a read-only CookieStore backed by FEEDMIRROR_COOKIE_FILE.
// It answers for every profile.
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(ref *CookieRef) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Retrieve(profile string) (*CookieRef, error) {
	path := os.Getenv(CookieFileEnv)
	if path == "" {
		return nil, ErrCookiesNotFound
	}
	if profile == "" {
		profile = DefaultProfile
	}
	return &CookieRef{Profile: profile, Path: path, LastModified: time.Now()}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(profile string) bool {
	return os.Getenv(CookieFileEnv) != ""
}
