package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultProfile is used when no profile name is given
const DefaultProfile = "default"

var (
	ErrCookiesNotFound  = errors.New("cookie reference not found")
	ErrInvalidCookies   = errors.New("invalid cookie reference")
	ErrStoreUnavailable = errors.New("cookie store unavailable")
)

// CookieRef points the feed source at a Netscape cookies.txt file. The file
// itself is never read by this package.
type CookieRef struct {
	Profile      string    `json:"profile"`
	Path         string    `json:"path"`
	LastModified time.Time `json:"last_modified"`
}

// CookieStore persists cookie references by profile
type CookieStore interface {
	Store(ref *CookieRef) error
	Retrieve(profile string) (*CookieRef, error)
	Delete(profile string) error
	Exists(profile string) bool
}

// Manager tries a list of stores in order
type Manager struct {
	stores []CookieStore
}

// NewManager uses the system keychain when it is reachable, then the environment
func NewManager() *Manager {
	var stores []CookieStore
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	}
	stores = append(stores, NewEnvironmentStore())
	return &Manager{stores: stores}
}

// NewManagerWithStores creates a manager over explicit stores
func NewManagerWithStores(stores ...CookieStore) *Manager {
	return &Manager{stores: stores}
}

// Store validates ref and saves it in the first store that accepts it
func (m *Manager) Store(ref *CookieRef) error {
	if ref == nil || ref.Path == "" {
		return ErrInvalidCookies
	}
	if ref.Profile == "" {
		ref.Profile = DefaultProfile
	}

	abs, err := filepath.Abs(ref.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCookies, err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCookies, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrInvalidCookies, abs)
	}
	ref.Path = abs
	ref.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		if err := store.Store(ref); err == nil {
			return nil
		} else {
			lastErr = err
		}
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store cookie reference: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Retrieve returns the reference of profile from the first store that has it
func (m *Manager) Retrieve(profile string) (*CookieRef, error) {
	if profile == "" {
		profile = DefaultProfile
	}
	for _, store := range m.stores {
		if ref, err := store.Retrieve(profile); err == nil && ref != nil {
			return ref, nil
		}
	}
	return nil, fmt.Errorf("%w for profile %q", ErrCookiesNotFound, profile)
}

// CookieFile returns the stored cookie file path of profile, or "" if none is stored
func (m *Manager) CookieFile(profile string) string {
	ref, err := m.Retrieve(profile)
	if err != nil {
		return ""
	}
	return ref.Path
}

// Delete removes profile from every store
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		if err := store.Delete(profile); err == nil {
			deleted = true
		} else if !errors.Is(err, ErrStoreUnavailable) {
			lastErr = err
		}
	}

	if deleted {
		return nil
	}
	if lastErr != nil && !errors.Is(lastErr, ErrCookiesNotFound) {
		return fmt.Errorf("failed to delete cookie reference: %w", lastErr)
	}
	return fmt.Errorf("%w for profile %q", ErrCookiesNotFound, profile)
}
