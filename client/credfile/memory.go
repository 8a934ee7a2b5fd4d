package credfile

import "sync"

// MemStore is an in-memory Store used by tests and ephemeral sessions.
type MemStore struct {
	mu    sync.Mutex
	token string
	set   bool
}

// NewMemStore constructs an empty MemStore.
func NewMemStore() *MemStore { return &MemStore{} }

// Load returns the stored credential, or ErrNotFound when absent.
func (s *MemStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return "", ErrNotFound
	}
	return s.token, nil
}

// Save replaces the stored credential.
func (s *MemStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	s.set = true
	return nil
}

// Clear removes the stored credential.
func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.set = false
	return nil
}
