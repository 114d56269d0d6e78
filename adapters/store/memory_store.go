package store

import (
	"context"
	"sort"
	"sync"

	"github.com/KARTIKEY-KATYAL/EZ/core"
	"github.com/KARTIKEY-KATYAL/EZ/ports"
)

// MemoryUserStore is an in-memory implementation of the UserStore interface.
type MemoryUserStore struct {
	byID       map[string]core.User
	byUsername map[string]string
	byEmail    map[string]string
	mu         sync.RWMutex
}

// NewMemoryUserStore creates a new in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		byID:       make(map[string]core.User),
		byUsername: make(map[string]string),
		byEmail:    make(map[string]string),
	}
}

// Create stores a new user.
func (s *MemoryUserStore) Create(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[user.Username]; exists {
		return core.ErrUserExists
	}
	if _, exists := s.byEmail[user.Email]; exists {
		return core.ErrUserExists
	}

	s.byID[user.ID] = *user
	s.byUsername[user.Username] = user.ID
	s.byEmail[user.Email] = user.ID
	return nil
}

// GetByUsername returns the user for a username.
func (s *MemoryUserStore) GetByUsername(ctx context.Context, username string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byUsername[username]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	u := s.byID[id]
	return &u, nil
}

// GetByID returns the user for an ID.
func (s *MemoryUserStore) GetByID(ctx context.Context, id string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.byID[id]
	if !ok {
		return nil, core.ErrUserNotFound
	}
	return &u, nil
}

// GetByVerificationToken returns the user holding a pending verification token.
func (s *MemoryUserStore) GetByVerificationToken(ctx context.Context, token string) (*core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if token == "" {
		return nil, core.ErrVerificationInvalid
	}
	for _, u := range s.byID {
		if u.VerificationToken == token {
			found := u
			return &found, nil
		}
	}
	return nil, core.ErrVerificationInvalid
}

// Update overwrites an existing user.
func (s *MemoryUserStore) Update(ctx context.Context, user *core.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[user.ID]; !ok {
		return core.ErrUserNotFound
	}
	s.byID[user.ID] = *user
	return nil
}

var _ ports.UserStore = (*MemoryUserStore)(nil)

// MemoryFileStore is an in-memory implementation of the FileStore interface.
type MemoryFileStore struct {
	files map[string]core.FileMeta
	mu    sync.RWMutex
}

// NewMemoryFileStore creates a new in-memory file store.
func NewMemoryFileStore() *MemoryFileStore {
	return &MemoryFileStore{
		files: make(map[string]core.FileMeta),
	}
}

// Create stores metadata for a newly uploaded file.
func (s *MemoryFileStore) Create(ctx context.Context, meta *core.FileMeta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[meta.ID] = *meta
	return nil
}

// Get returns the metadata for a file ID.
func (s *MemoryFileStore) Get(ctx context.Context, id string) (*core.FileMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.files[id]
	if !ok {
		return nil, core.ErrFileNotFound
	}
	return &m, nil
}

// List returns all uploaded files, newest first.
func (s *MemoryFileStore) List(ctx context.Context) ([]*core.FileMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*core.FileMeta, 0, len(s.files))
	for _, m := range s.files {
		meta := m
		out = append(out, &meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UploadedAt.After(out[j].UploadedAt)
	})
	return out, nil
}

var _ ports.FileStore = (*MemoryFileStore)(nil)
