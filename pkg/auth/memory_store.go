package auth

import "sync"

// MemoryStore implements CookieStore in memory, for tests and one-off runs
type MemoryStore struct {
	mu   sync.RWMutex
	refs map[string]CookieRef

	// StoreError, when set, is returned by Store
	StoreError error
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{refs: make(map[string]CookieRef)}
}

func (m *MemoryStore) Store(ref *CookieRef) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if ref == nil || ref.Profile == "" {
		return ErrInvalidCookies
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.refs[ref.Profile] = *ref
	return nil
}

func (m *MemoryStore) Retrieve(profile string) (*CookieRef, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ref, ok := m.refs[profile]
	if !ok {
		return nil, ErrCookiesNotFound
	}
	return &ref, nil
}

func (m *MemoryStore) Delete(profile string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.refs[profile]; !ok {
		return ErrCookiesNotFound
	}
	delete(m.refs, profile)
	return nil
}

func (m *MemoryStore) Exists(profile string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.refs[profile]
	return ok
}
