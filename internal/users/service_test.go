package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryUserRepo struct {
	users  map[int64]User
	nextID int64
}

func newMemoryUserRepo() *memoryUserRepo {
	return &memoryUserRepo{users: map[int64]User{}}
}

func (m *memoryUserRepo) List(ctx context.Context) ([]User, error) {
	var out []User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *memoryUserRepo) Get(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (m *memoryUserRepo) GetByUsername(ctx context.Context, username string) (User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (m *memoryUserRepo) Create(ctx context.Context, u User) (User, error) {
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return User{}, ErrDuplicateUsername
		}
	}
	m.nextID++
	u.ID = m.nextID
	u.IsActive = true
	m.users[u.ID] = u
	return u, nil
}

func (m *memoryUserRepo) Update(ctx context.Context, id int64, u User) error {
	if _, ok := m.users[id]; !ok {
		return ErrNotFound
	}
	u.ID = id
	m.users[id] = u
	return nil
}

func (m *memoryUserRepo) UpdatePassword(ctx context.Context, id int64, hash string) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memoryUserRepo) TouchLastLogin(ctx context.Context, id int64) error {
	return nil
}

func (m *memoryUserRepo) Deactivate(ctx context.Context, id int64) error {
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.IsActive = false
	m.users[id] = u
	return nil
}

func TestAuthenticateRoundTrip(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateUserInput{
		Username: "asha",
		FullName: "Asha Perera",
		Role:     RoleCashier,
		Password: "opensesame1",
	})
	require.NoError(t, err)
	assert.NotEqual(t, "opensesame1", created.PasswordHash)

	user, err := svc.Authenticate(context.Background(), "asha", "opensesame1")
	require.NoError(t, err)
	assert.Equal(t, created.ID, user.ID)

	_, err = svc.Authenticate(context.Background(), "asha", "wrong-password")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateUnknownAndInactive(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	_, err := svc.Authenticate(context.Background(), "ghost", "whatever")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	created, err := svc.Create(context.Background(), CreateUserInput{
		Username: "dormant",
		FullName: "Dormant Account",
		Role:     RoleManager,
		Password: "opensesame1",
	})
	require.NoError(t, err)
	require.NoError(t, repo.Deactivate(context.Background(), created.ID))

	_, err = svc.Authenticate(context.Background(), "dormant", "opensesame1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestCreateUserValidation(t *testing.T) {
	svc := NewService(newMemoryUserRepo())

	_, err := svc.Create(context.Background(), CreateUserInput{
		Username: "x", FullName: "X", Role: Role("owner"), Password: "opensesame1",
	})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.Create(context.Background(), CreateUserInput{
		Username: "x", FullName: "X", Role: RoleAdmin, Password: "short",
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestChangePassword(t *testing.T) {
	repo := newMemoryUserRepo()
	svc := NewService(repo)

	created, err := svc.Create(context.Background(), CreateUserInput{
		Username: "asha", FullName: "Asha Perera", Role: RoleCashier, Password: "opensesame1",
	})
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), created.ID, "wrong", "newpassword9")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, svc.ChangePassword(context.Background(), created.ID, "opensesame1", "newpassword9"))

	_, err = svc.Authenticate(context.Background(), "asha", "newpassword9")
	assert.NoError(t, err)
}
