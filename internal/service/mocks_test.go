package service

import (
	"context"
	"sync"

	"github.com/spec-kit/identity-service/internal/domain"
	"github.com/spec-kit/identity-service/internal/repository"
)

// fakeUserRepo is an in-memory UserRepository. createErr, when set, makes
// CreateWithRoles fail without mutating any state, mimicking a rolled-back
// transaction.
type fakeUserRepo struct {
	mu        sync.Mutex
	nextID    int64
	byEmail   map[string]*domain.User
	createErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byEmail: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byEmail[email]
	return ok, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.byEmail[email]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.byEmail {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserRepo) CreateWithRoles(_ context.Context, user *domain.User, roles []domain.Role) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, ok := f.byEmail[user.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	f.nextID++
	user.ID = f.nextID
	user.Roles = roles
	copied := *user
	f.byEmail[user.Email] = &copied
	return nil
}

// fakeRoleRepo serves a configurable subset of the role catalog.
type fakeRoleRepo struct {
	roles map[domain.RoleName]domain.Role
}

func newFakeRoleRepo(names ...domain.RoleName) *fakeRoleRepo {
	roles := make(map[domain.RoleName]domain.Role, len(names))
	for i, name := range names {
		roles[name] = domain.Role{ID: int32(i + 1), Name: name}
	}
	return &fakeRoleRepo{roles: roles}
}

func (f *fakeRoleRepo) GetByNames(_ context.Context, names []domain.RoleName) ([]domain.Role, error) {
	found := make([]domain.Role, 0, len(names))
	for _, name := range names {
		if role, ok := f.roles[name]; ok {
			found = append(found, role)
		}
	}
	return found, nil
}
