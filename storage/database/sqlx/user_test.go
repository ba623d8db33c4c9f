package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Beccio00/homeworks-web-app/core/user"
	"github.com/Beccio00/homeworks-web-app/storage/database/sqlx"
	"github.com/Beccio00/homeworks-web-app/tests"
)

func Test_userRepository(t *testing.T) {
	db := testutil.PrepareDB(t)
	repo := sqlxrepos.NewUserRepository(db)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, repo, "Luigi", "De Russis", "luigi", "pwd12345", user.RoleTeacher, true)
	zoe := testutil.CreateUser(t, repo, "Zoe", "Bianchi", "zoe", "", user.RoleStudent, true)
	amy := testutil.CreateUser(t, repo, "Amy", "Bianchi", "amy", "", user.RoleStudent, false)
	ugo := testutil.CreateUser(t, repo, "Ugo", "Abate", "ugo", "", user.RoleStudent, true)

	t.Run("get by id and username", func(t *testing.T) {
		usr, err := repo.GetUserByID(ctx, teacher.ID)
		require.NoError(t, err)
		assert.Equal(t, "luigi", usr.Username)
		assert.True(t, usr.IsTeacher())
		assert.NoError(t, usr.CheckPassword("pwd12345"))
		assert.True(t, usr.LastLogin.IsZero())

		usr, err = repo.GetUserByUsername(ctx, "amy")
		require.NoError(t, err)
		assert.Equal(t, amy.ID, usr.ID)
		assert.False(t, usr.IsActive)

		_, err = repo.GetUserByUsername(ctx, "nope")
		assert.True(t, errors.Is(err, user.ErrNotFound))
		_, err = repo.GetUserByID(ctx, "nope")
		assert.True(t, errors.Is(err, user.ErrNotFound))
	})

	t.Run("username uniqueness", func(t *testing.T) {
		err := repo.CheckUsernameUniqueness(ctx, "zoe")
		assert.True(t, errors.Is(err, user.ErrUsernameExists))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "zoe", zoe))
		assert.NoError(t, repo.CheckUsernameUniqueness(ctx, "zora"))

		_, err = repo.CreateUser(ctx, user.User{Username: "zoe", Role: user.RoleStudent, PasswordHash: []byte{}, CreatedAt: time.Now()})
		assert.True(t, errors.Is(err, user.ErrUsernameExists), "CreateUser() error = %v, want %v", err, user.ErrUsernameExists)
	})

	t.Run("students", func(t *testing.T) {
		students, err := repo.QueryStudents(ctx)
		require.NoError(t, err)
		got := make([]string, 0, len(students))
		for _, s := range students {
			got = append(got, s.Username)
		}
		assert.Equal(t, []string{"ugo", "amy", "zoe"}, got)

		students, err = repo.QueryStudents(ctx, zoe.ID, teacher.ID, "lol", ugo.ID)
		require.NoError(t, err)
		require.Len(t, students, 2)
		assert.Equal(t, ugo.ID, students[0].ID)
		assert.Equal(t, zoe.ID, students[1].ID)
	})

	t.Run("update", func(t *testing.T) {
		login := time.Now().UTC().Truncate(time.Second)
		zoe.LastLogin = login
		zoe.Surname = "Verdi"
		usr, err := repo.UpdateUser(ctx, zoe)
		require.NoError(t, err)
		assert.Equal(t, "Verdi", usr.Surname)
		assert.True(t, login.Equal(usr.LastLogin), "LastLogin = %v, want %v", usr.LastLogin, login)

		_, err = repo.UpdateUser(ctx, user.User{ID: "00000000-0000-0000-0000-000000000000", PasswordHash: []byte{}})
		assert.True(t, errors.Is(err, user.ErrNotFound))
	})
}
