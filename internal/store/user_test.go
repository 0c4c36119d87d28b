package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/postboard/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var userRowColumns = []string{
	"id", "username", "email", "password", "is_active", "is_superuser", "user_created_at", "user_updated_at",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestUserGetByID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM users WHERE id = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(1, "alice", "alice@gmail.com", "$2a$hash", true, false, now, now))

	user, err := repo.GetByID(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "$2a$hash", user.PasswordHash)
	assert.True(t, user.IsActive)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserGetByEmailNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM users WHERE email = \$1`).
		WithArgs("ghost@gmail.com").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@gmail.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserCreate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs("alice", "alice@gmail.com", "hash", true, false).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_created_at", "user_updated_at"}).AddRow(42, now, now))

	created, err := repo.Create(context.Background(), types.User{
		Username:     "alice",
		Email:        "alice@gmail.com",
		PasswordHash: "hash",
		IsActive:     true,
	})
	require.NoError(t, err)
	assert.Equal(t, 42, created.ID)
	assert.Equal(t, now, created.CreatedAt)
}

func TestUserCreateDuplicateIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

	_, err := repo.Create(context.Background(), types.User{Username: "alice"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.Contains(t, err.Error(), "users_username_key")
}

func TestUserCreateCheckViolation(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pq.Error{Code: "23514", Constraint: "check_valid_email_domain"})

	_, err := repo.Create(context.Background(), types.User{Username: "alice"})
	assert.ErrorIs(t, err, ErrConstraint)
}

func TestUserCreateOtherErrorPassesThrough(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	boom := errors.New("db down")

	mock.ExpectQuery(`INSERT INTO users`).WillReturnError(boom)

	_, err := repo.Create(context.Background(), types.User{Username: "alice"})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestUserUpdateMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`UPDATE users`).
		WithArgs("alice", "alice@gmail.com", "hash", true, false, 5).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), types.User{
		ID: 5, Username: "alice", Email: "alice@gmail.com", PasswordHash: "hash", IsActive: true,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserListPassesFilters(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)
	now := time.Now()

	mock.ExpectQuery(`FROM users WHERE`).
		WithArgs("", `50\%`, 0, 0, 100).
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(1, "a50%", "a@gmail.com", "h", true, false, now, now).
			AddRow(2, "b50%", "b@gmail.com", "h", true, false, now, now))

	users, err := repo.List(context.Background(), types.UserQuery{Search: "50%", Offset: -3, Limit: 100})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserListEmptyIsNotNil(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectQuery(`FROM users WHERE`).WillReturnRows(sqlmock.NewRows(userRowColumns))

	users, err := repo.List(context.Background(), types.UserQuery{Username: "bob", Limit: 10})
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestUserDelete(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewUserRepository(db)

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs(3).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).WithArgs(4).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 3))
	assert.ErrorIs(t, repo.Delete(context.Background(), 4), ErrNotFound)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `a\_b\%c\\d`, escapeLike(`a_b%c\d`))
	assert.Equal(t, "plain", escapeLike("plain"))
}
