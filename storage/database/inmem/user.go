package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/Beccio00/homeworks-web-app/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username string, excludedUsers ...user.User) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.query() {
		if usr.Username == username && !isExcluded(usr, excludedUsers) {
			return user.ErrUsernameExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, u := range repo.db.table {
		if u.Username == usr.Username {
			return user.User{}, user.ErrUsernameExists
		}
	}
	if usr.ID == "" {
		usr.ID = uuid.NewString()
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUserByID(_ context.Context, id string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if usr, ok := repo.db.table[id]; ok {
		return *usr, nil
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) GetUserByUsername(_ context.Context, username string) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, usr := range repo.db.table {
		if usr.Username == username {
			return *usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryStudents(_ context.Context, ids ...string) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	return queryStudents(repo.db, ids...), nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	origUsr, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if usr.PasswordHash != nil {
		origUsr.PasswordHash = usr.PasswordHash
	}
	origUsr.Username = usr.Username
	origUsr.Name = usr.Name
	origUsr.Surname = usr.Surname
	origUsr.Avatar = usr.Avatar
	origUsr.IsActive = usr.IsActive
	origUsr.LastLogin = usr.LastLogin
	return *origUsr, nil
}

// queryStudents expects the table to be locked.
func queryStudents(db *userTable, ids ...string) []user.User {
	var filter map[string]bool
	if len(ids) > 0 {
		filter = make(map[string]bool, len(ids))
		for _, id := range ids {
			filter[id] = true
		}
	}

	students := make([]user.User, 0)
	for _, usr := range db.table {
		if usr.IsStudent() && (filter == nil || filter[usr.ID]) {
			students = append(students, *usr)
		}
	}
	sortUsers(students)
	return students
}

func sortUsers(users []user.User) {
	sort.Slice(users, func(i, j int) bool {
		if users[i].Surname != users[j].Surname {
			return users[i].Surname < users[j].Surname
		}
		if users[i].Name != users[j].Name {
			return users[i].Name < users[j].Name
		}
		return users[i].ID < users[j].ID
	})
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}
