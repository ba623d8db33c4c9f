package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Beccio00/homeworks-web-app/core/user"
)

const userColumns = `id, username, name, surname, role, avatar, is_active, password_hash, created_at, last_login`

type userRow struct {
	ID           string    `db:"id"`
	Username     string    `db:"username"`
	Name         string    `db:"name"`
	Surname      string    `db:"surname"`
	Role         string    `db:"role"`
	Avatar       string    `db:"avatar"`
	IsActive     bool      `db:"is_active"`
	PasswordHash []byte    `db:"password_hash"`
	CreatedAt    time.Time `db:"created_at"`
	LastLogin    null.Time `db:"last_login"`
}

func (r userRow) toUser() user.User {
	usr := user.User{
		ID:           r.ID,
		Username:     r.Username,
		Name:         r.Name,
		Surname:      r.Surname,
		Role:         r.Role,
		Avatar:       r.Avatar,
		IsActive:     r.IsActive,
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
	}
	if r.LastLogin.Valid {
		usr.LastLogin = r.LastLogin.Time.UTC()
	}
	return usr
}

func lastLogin(usr user.User) null.Time {
	if usr.LastLogin.IsZero() {
		return null.Time{}
	}
	return null.TimeFrom(usr.LastLogin.UTC())
}

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(ctx context.Context, username string, excludedUsers ...user.User) error {
	query, args := `SELECT COUNT(*) FROM users WHERE username = ?`, []interface{}{username}
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		var err error
		query, args, err = sqlx.In(query+` AND id NOT IN (?)`, username, ids)
		if err != nil {
			return errors.Wrap(err, "binding excluded users")
		}
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "counting users")
	}
	if count > 0 {
		return user.ErrUsernameExists
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	usr.CreatedAt = usr.CreatedAt.UTC()
	if usr.PasswordHash == nil {
		usr.PasswordHash = []byte{} // unusable password
	}

	query := repo.db.Rebind(`INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := repo.db.ExecContext(
		ctx, query,
		usr.ID, usr.Username, usr.Name, usr.Surname, usr.Role, usr.Avatar, usr.IsActive, usr.PasswordHash,
		usr.CreatedAt, lastLogin(usr),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return usr, nil
}

func (repo *userRepository) getUser(ctx context.Context, where string, arg interface{}) (user.User, error) {
	var row userRow
	query := repo.db.Rebind(`SELECT ` + userColumns + ` FROM users WHERE ` + where)
	if err := repo.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) GetUserByID(ctx context.Context, id string) (user.User, error) {
	if !isValidID(id) {
		return user.User{}, user.ErrNotFound
	}
	return repo.getUser(ctx, `id = ?`, id)
}

func (repo *userRepository) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	return repo.getUser(ctx, `username = ?`, username)
}

func (repo *userRepository) QueryStudents(ctx context.Context, ids ...string) ([]user.User, error) {
	query, args := `SELECT `+userColumns+` FROM users WHERE role = ?`, []interface{}{user.RoleStudent}
	if len(ids) > 0 {
		ids = validIDs(ids)
		if len(ids) == 0 {
			return []user.User{}, nil
		}
		var err error
		if query, args, err = sqlx.In(query+` AND id IN (?)`, user.RoleStudent, ids); err != nil {
			return nil, errors.Wrap(err, "binding ids")
		}
	}
	query += ` ORDER BY surname, name, id`

	var rows []userRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting students")
	}
	students := make([]user.User, 0, len(rows))
	for _, r := range rows {
		students = append(students, r.toUser())
	}
	return students, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	// a nil PasswordHash keeps the current password
	set := `username = ?, name = ?, surname = ?, avatar = ?, is_active = ?, last_login = ?`
	args := []interface{}{usr.Username, usr.Name, usr.Surname, usr.Avatar, usr.IsActive, lastLogin(usr)}
	if usr.PasswordHash != nil {
		set += `, password_hash = ?`
		args = append(args, usr.PasswordHash)
	}
	args = append(args, usr.ID)

	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(`UPDATE users SET `+set+` WHERE id = ?`), args...)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if n, err := res.RowsAffected(); err != nil {
		return user.User{}, errors.Wrap(err, "updating user")
	} else if n == 0 {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, usr.ID)
}
