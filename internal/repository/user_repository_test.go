package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/cdm-registrar/registrar-api/internal/models"
)

func TestUserRepositoryCreateDuplicate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_email_key"})

	err := repo.Create(context.Background(), &models.User{
		StudentNumber: "2021-00123",
		Email:         "juan@cdm.edu.ph",
		Role:          models.RoleStudent,
		Active:        true,
	})
	require.ErrorIs(t, err, ErrDuplicateUser)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIdentifier(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "student_number", "email", "password_hash", "first_name", "last_name", "contact_number",
		"course", "year_level", "role", "active", "last_login", "created_at", "updated_at",
	}).AddRow(
		"user-1", "2021-00123", "juan@cdm.edu.ph", "hash", "Juan", "Dela Cruz", "",
		"BSIT", "3", models.RoleStudent, true, nil, time.Now().UTC(), time.Now().UTC(),
	)
	mock.ExpectQuery("FROM users WHERE").
		WithArgs("2021-00123").
		WillReturnRows(rows)

	user, err := repo.FindByIdentifier(context.Background(), "2021-00123")
	require.NoError(t, err)
	require.Equal(t, "juan@cdm.edu.ph", user.Email)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindByIdentifierNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE").
		WithArgs("nobody@cdm.edu.ph").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByIdentifier(context.Background(), "nobody@cdm.edu.ph")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryFindRefreshToken(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "token", "expires_at", "created_at", "revoked", "revoked_at", "ip_address", "user_agent",
	}).AddRow("token-1", "user-1", "opaque-value", time.Now().UTC().Add(time.Hour), time.Now().UTC(), false, nil, "", "")
	mock.ExpectQuery("FROM refresh_tokens WHERE token").
		WithArgs("opaque-value").
		WillReturnRows(rows)

	token, err := repo.FindRefreshToken(context.Background(), "opaque-value")
	require.NoError(t, err)
	require.Equal(t, "user-1", token.UserID)
	require.False(t, token.Revoked)
	require.NoError(t, mock.ExpectationsWereMet())
}
