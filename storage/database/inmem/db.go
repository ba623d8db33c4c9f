package inmemdb

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/Beccio00/homeworks-web-app/core/task"
	"github.com/Beccio00/homeworks-web-app/core/user"
)

var errDuplicateKey = errors.New("duplicate key")

type (
	DB struct {
		user *userTable
		task *taskTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	taskTable struct {
		sync.RWMutex
		table map[string]*task.Task
	}
)

func Open() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		task: &taskTable{table: make(map[string]*task.Task)},
	}
}
