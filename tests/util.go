package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/Beccio00/homeworks-web-app/core/task"
	"github.com/Beccio00/homeworks-web-app/core/user"
	"github.com/Beccio00/homeworks-web-app/storage/database"
)

// PrepareDB returns a migrated in-memory sqlite database, closed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := database.OpenSQLiteMemory()
	if err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db); err != nil {
		t.Fatalf("PrepareDB() failed: %v", err)
	}
	return db
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, surname, uname, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Username:  uname,
		Name:      name,
		Surname:   surname,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

// CreateTask stores a task directly, bypassing the group checks of task.Service.
// A non-nil score closes the task, in which case answer defaults to "answer".
func CreateTask(
	t *testing.T,
	repo task.Repository,
	teacher user.User,
	question string,
	students []user.User,
	answer string,
	score *float64,
	createdAt ...time.Time,
) task.Task {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	tsk := task.Task{
		ID:        task.NewID(),
		TeacherID: teacher.ID,
		Question:  question,
		Status:    task.StatusOpen,
		CreatedAt: tstamp,
	}
	for _, s := range students {
		tsk.StudentIDs = append(tsk.StudentIDs, s.ID)
	}

	ctx := context.Background()
	tsk, err := repo.CreateTask(ctx, tsk)
	if err != nil {
		t.Fatalf("createTask() failed: %v", err)
	}
	if score != nil && answer == "" {
		answer = "answer"
	}
	if answer != "" {
		if err = repo.SetAnswer(ctx, tsk.ID, answer); err != nil {
			t.Fatalf("createTask() failed: %v", err)
		}
		tsk.Answer = &answer
	}
	if score != nil {
		if err = repo.SetScoreAndClose(ctx, tsk.ID, *score); err != nil {
			t.Fatalf("createTask() failed: %v", err)
		}
		tsk.Score = score
		tsk.Status = task.StatusClosed
	}
	return tsk
}

func Float(f float64) *float64 { return &f }
