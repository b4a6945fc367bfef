package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seduc-go/academia-api/internal/models"
)

func newUserRepoMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewUserRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email", "cpf", "password_hash", "role", "active", "last_login", "created_at", "updated_at"})
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("admin@seduc.go.gov.br").
		WillReturnRows(userRows().AddRow("u-1", "Admin", "admin@seduc.go.gov.br", "52998224725", "hash", "Administrador", true, nil, now, now))

	user, err := repo.FindByEmail(context.Background(), "admin@seduc.go.gov.br")

	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)
	assert.Equal(t, models.RoleAdmin, user.Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByEmailMissing(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	mock.ExpectQuery(`SELECT (.+) FROM users WHERE email = \$1`).
		WithArgs("ghost@seduc.go.gov.br").
		WillReturnRows(userRows())

	_, err := repo.FindByEmail(context.Background(), "ghost@seduc.go.gov.br")

	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryListFiltersByRole(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT (.+) FROM users WHERE 1=1 AND role = \$1 ORDER BY name ASC`).
		WithArgs(models.RoleTeacher).
		WillReturnRows(userRows().AddRow("u-2", "Bruno", "bruno@seduc.go.gov.br", "", "hash", "Professor", true, nil, now, now))

	users, err := repo.List(context.Background(), models.UserFilter{Role: rolePtr(models.RoleTeacher)})

	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, models.RoleTeacher, users[0].Role)
	require.NoError(t, mock.ExpectationsWereMet())
}

func rolePtr(r models.UserRole) *models.UserRole { return &r }

func TestUserRepositoryCreateAssignsID(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	mock.ExpectExec(`INSERT INTO users`).WillReturnResult(sqlmock.NewResult(0, 1))

	user := &models.User{Name: "Nova", Email: "nova@seduc.go.gov.br", Role: models.RoleTeacher, Active: true}
	err := repo.Create(context.Background(), user)

	require.NoError(t, err)
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryDeleteDeactivates(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	mock.ExpectExec(`UPDATE users SET active = FALSE`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "u-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRefreshTokenRoundTrip(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	mock.ExpectExec(`INSERT INTO refresh_tokens`).WillReturnResult(sqlmock.NewResult(0, 1))

	token := &models.RefreshToken{UserID: "u-1", Token: "opaque", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	require.NoError(t, repo.CreateRefreshToken(context.Background(), token))
	assert.NotEmpty(t, token.ID)

	rows := sqlmock.NewRows([]string{"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent"}).
		AddRow(token.ID, "u-1", "opaque", token.ExpiresAt, token.CreatedAt, false, nil, "", "")
	mock.ExpectQuery(`SELECT (.+) FROM refresh_tokens WHERE token = \$1`).
		WithArgs("opaque").
		WillReturnRows(rows)

	found, err := repo.FindRefreshToken(context.Background(), "opaque")

	require.NoError(t, err)
	assert.Equal(t, "u-1", found.UserID)
	assert.False(t, found.Revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRevokeUserRefreshTokens(t *testing.T) {
	repo, mock := newUserRepoMock(t)

	mock.ExpectExec(`UPDATE refresh_tokens SET revoked = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.RevokeUserRefreshTokens(context.Background(), "u-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
