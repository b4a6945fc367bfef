package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/seduc-go/academia-api/internal/models"
	appErrors "github.com/seduc-go/academia-api/pkg/errors"
)

type mockUserRepo struct {
	users     map[string]*models.User
	auditLogs []*models.AuditLog
	deleted   []string
}

func newMockUserRepo(users ...*models.User) *mockUserRepo {
	repo := &mockUserRepo{users: map[string]*models.User{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (m *mockUserRepo) List(_ context.Context, filter models.UserFilter) ([]models.User, error) {
	var out []models.User
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		out = append(out, *u)
	}
	return out, nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Create(_ context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Update(_ context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) Delete(_ context.Context, id string) error {
	if u, ok := m.users[id]; ok {
		u.Active = false
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

func TestUserCreateHashesPasswordAndAudits(t *testing.T) {
	repo := newMockUserRepo()
	svc := NewUserService(repo, nil, nil)

	user, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "Novo@Seduc.GO.Gov.BR",
		Name:     "Novo Operador",
		CPF:      "529.982.247-25",
		Role:     models.RoleTeacher,
		Active:   true,
		Password: "segredo",
	}, "actor-1", models.LoginRequest{IP: "10.0.0.1"})

	require.NoError(t, err)
	assert.Equal(t, "novo@seduc.go.gov.br", user.Email)
	assert.Equal(t, "52998224725", user.CPF)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("segredo")))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserCreate, repo.auditLogs[0].Action)
	assert.Equal(t, "10.0.0.1", repo.auditLogs[0].IPAddress)
}

func TestUserCreateRejectsDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Email: "novo@seduc.go.gov.br"})
	svc := NewUserService(repo, nil, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "novo@seduc.go.gov.br",
		Name:     "Duplicado",
		Role:     models.RoleAdmin,
		Password: "segredo",
	}, "actor-1", models.LoginRequest{})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestUserCreateRejectsUnknownRole(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)

	_, err := svc.Create(context.Background(), CreateUserRequest{
		Email:    "novo@seduc.go.gov.br",
		Name:     "Operador",
		Role:     models.UserRole("Estagiário"),
		Password: "segredo",
	}, "actor-1", models.LoginRequest{})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUserUpdateRecordsOldAndNewValues(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Email: "op@seduc.go.gov.br", Name: "Antes", Role: models.RoleTeacher, Active: true})
	svc := NewUserService(repo, nil, nil)

	active := false
	updated, err := svc.Update(context.Background(), "u1", UpdateUserRequest{
		Name:   "Depois",
		Role:   models.RoleAdmin,
		Active: &active,
	}, "actor-1", models.LoginRequest{})

	require.NoError(t, err)
	assert.Equal(t, "Depois", updated.Name)
	assert.Equal(t, models.RoleAdmin, updated.Role)
	assert.False(t, updated.Active)
	require.Len(t, repo.auditLogs, 1)
	assert.NotEmpty(t, repo.auditLogs[0].OldValues)
	assert.NotEmpty(t, repo.auditLogs[0].NewValues)
}

func TestUserDeleteIsSoft(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Email: "op@seduc.go.gov.br", Active: true})
	svc := NewUserService(repo, nil, nil)

	err := svc.Delete(context.Background(), "u1", "actor-1", models.LoginRequest{})

	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, repo.deleted)
	assert.False(t, repo.users["u1"].Active)
}

func TestUserGetMissing(t *testing.T) {
	svc := NewUserService(newMockUserRepo(), nil, nil)

	_, err := svc.Get(context.Background(), "ghost")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
