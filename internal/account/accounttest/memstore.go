// Package accounttest provides an in-memory account.Store for tests of
// packages that sit on top of the account service.
package accounttest

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/yanizio/agriportal/internal/account"
)

// MemStore keeps users in a map.  The zero value is not usable; call New.
type MemStore struct {
	mu    sync.Mutex
	users map[string]*account.User
}

var _ account.Store = (*MemStore)(nil)

// New returns an empty store.
func New() *MemStore { return &MemStore{users: map[string]*account.User{}} }

func (m *MemStore) Create(_ context.Context, u *account.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == u.Email {
			return account.ErrEmailTaken
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *MemStore) ByEmail(_ context.Context, email string) (*account.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, x := range m.users {
		if x.Email == email {
			cp := *x
			return &cp, nil
		}
	}
	return nil, account.ErrUserNotFound
}

func (m *MemStore) ByID(_ context.Context, id string) (*account.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if x, ok := m.users[id]; ok {
		cp := *x
		return &cp, nil
	}
	return nil, account.ErrUserNotFound
}

func (m *MemStore) UpdatePassword(_ context.Context, id string, hash []byte, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	x, ok := m.users[id]
	if !ok {
		return account.ErrUserNotFound
	}
	x.PasswordHash, x.UpdatedAt = hash, at
	return nil
}

// SetActive flips a user's active flag.
func (m *MemStore) SetActive(id string, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if x, ok := m.users[id]; ok {
		x.Active = active
	}
}

// Service returns a service over a fresh MemStore with fast hashing.
func Service() (*account.Service, *MemStore, error) {
	tok, err := account.NewTokens(
		[]byte("test-access-secret-0123456789"),
		[]byte("test-refresh-secret-0123456789"),
		time.Minute, time.Hour,
	)
	if err != nil {
		return nil, nil, err
	}
	st := New()
	return account.NewService(st, tok, bcrypt.MinCost, nil), st, nil
}
