package inmemdb

import (
	"context"
	"sort"

	"github.com/Beccio00/homeworks-web-app/core/task"
	"github.com/Beccio00/homeworks-web-app/core/user"
)

type taskRepository struct {
	db    *taskTable
	users *userTable
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *DB) task.Repository {
	return &taskRepository{db: db.task, users: db.user}
}

// rlock read-locks both tables, tasks first.
func (repo *taskRepository) rlock() (unlock func()) {
	repo.db.RLock()
	repo.users.RLock()
	return func() {
		repo.users.RUnlock()
		repo.db.RUnlock()
	}
}

func copyTask(t *task.Task) task.Task {
	c := *t
	c.StudentIDs = append([]string(nil), t.StudentIDs...)
	if t.Answer != nil {
		answer := *t.Answer
		c.Answer = &answer
	}
	if t.Score != nil {
		score := *t.Score
		c.Score = &score
	}
	return c
}

func (repo *taskRepository) info(t *task.Task) task.TaskInfo {
	info := task.TaskInfo{Task: copyTask(t), Students: make([]user.Profile, 0, len(t.StudentIDs))}
	if teacher, ok := repo.users.table[t.TeacherID]; ok {
		info.TeacherName = teacher.FullName()
	}
	for _, id := range t.StudentIDs {
		if s, ok := repo.users.table[id]; ok {
			info.Students = append(info.Students, s.Profile())
		} else {
			info.Students = append(info.Students, user.Profile{ID: id})
		}
	}
	return info
}

// newestFirst sorts tasks by creation time, most recent first.
func newestFirst(tasks []task.TaskInfo) {
	sort.Slice(tasks, func(i, j int) bool {
		if !tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
		}
		return tasks[i].ID > tasks[j].ID
	})
}

func (repo *taskRepository) CountCollaborations(_ context.Context, teacherID, studentID1, studentID2 string) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var count int
	for _, t := range repo.db.table {
		if t.TeacherID == teacherID && t.HasStudent(studentID1) && t.HasStudent(studentID2) {
			count++
		}
	}
	return count, nil
}

func (repo *taskRepository) CreateTask(_ context.Context, t task.Task) (task.Task, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[t.ID]; ok {
		return task.Task{}, errDuplicateKey
	}
	stored := copyTask(&t)
	repo.db.table[t.ID] = &stored
	return copyTask(&stored), nil
}

func (repo *taskRepository) GetTask(_ context.Context, id string) (task.TaskInfo, error) {
	unlock := repo.rlock()
	defer unlock()

	t, ok := repo.db.table[id]
	if !ok {
		return task.TaskInfo{}, task.ErrNotFound
	}
	return repo.info(t), nil
}

func (repo *taskRepository) SetAnswer(_ context.Context, id, answer string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.table[id]
	if !ok {
		return task.ErrNotFound
	}
	if !t.IsOpen() {
		return task.ErrTaskClosed
	}
	t.Answer = &answer
	return nil
}

func (repo *taskRepository) SetScoreAndClose(_ context.Context, id string, score float64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	t, ok := repo.db.table[id]
	switch {
	case !ok:
		return task.ErrNotFound
	case !t.IsOpen():
		return task.ErrTaskClosed
	case !t.HasAnswer():
		return task.ErrNoAnswer
	}
	t.Score = &score
	t.Status = task.StatusClosed
	return nil
}

func (repo *taskRepository) QueryTeacherTasks(_ context.Context, teacherID string) ([]task.TaskInfo, error) {
	unlock := repo.rlock()
	defer unlock()

	tasks := make([]task.TaskInfo, 0)
	for _, t := range repo.db.table {
		if t.TeacherID == teacherID {
			tasks = append(tasks, repo.info(t))
		}
	}
	newestFirst(tasks)
	return tasks, nil
}

func (repo *taskRepository) QueryStudentTasks(_ context.Context, studentID string, status task.Status) ([]task.TaskInfo, error) {
	unlock := repo.rlock()
	defer unlock()

	tasks := make([]task.TaskInfo, 0)
	for _, t := range repo.db.table {
		if t.HasStudent(studentID) && (status == "" || t.Status == status) {
			tasks = append(tasks, repo.info(t))
		}
	}
	newestFirst(tasks)
	return tasks, nil
}

func (repo *taskRepository) QueryGradedTasks(_ context.Context, studentID, teacherID string) ([]task.GradedTask, error) {
	unlock := repo.rlock()
	defer unlock()

	var infos []task.TaskInfo
	for _, t := range repo.db.table {
		if t.Status == task.StatusClosed && t.HasStudent(studentID) && (teacherID == "" || t.TeacherID == teacherID) {
			infos = append(infos, repo.info(t))
		}
	}
	newestFirst(infos)

	graded := make([]task.GradedTask, 0, len(infos))
	for _, info := range infos {
		g := task.GradedTask{
			Grade:       task.Grade{Score: info.Score, GroupSize: info.GroupSize()},
			ID:          info.ID,
			TeacherID:   info.TeacherID,
			TeacherName: info.TeacherName,
			Question:    info.Question,
			CreatedAt:   info.CreatedAt,
		}
		if info.Answer != nil {
			g.Answer = *info.Answer
		}
		graded = append(graded, g)
	}
	return graded, nil
}

func (repo *taskRepository) QueryClassProgress(_ context.Context, teacherID string) ([]task.StudentProgress, error) {
	unlock := repo.rlock()
	defer unlock()

	students := queryStudents(repo.users)
	progress := make([]task.StudentProgress, 0, len(students))
	for _, s := range students {
		p := task.StudentProgress{Profile: s.Profile()}
		for _, t := range repo.db.table {
			if t.TeacherID != teacherID || !t.HasStudent(s.ID) {
				continue
			}
			p.TotalTasks++
			if t.IsOpen() {
				p.OpenTasks++
			} else {
				p.ClosedTasks++
			}
		}
		progress = append(progress, p)
	}
	return progress, nil
}

func (repo *taskRepository) QueryTeacherGrades(_ context.Context, teacherID string) ([]task.StudentGrade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var grades []task.StudentGrade
	for _, t := range repo.db.table {
		if t.TeacherID != teacherID || t.Status != task.StatusClosed {
			continue
		}
		score := *t.Score
		for _, id := range t.StudentIDs {
			grades = append(grades, task.StudentGrade{
				StudentID: id,
				Grade:     task.Grade{Score: &score, GroupSize: t.GroupSize()},
			})
		}
	}
	return grades, nil
}

func (repo *taskRepository) QueryCollaborations(_ context.Context, teacherID string) ([]task.Collaboration, error) {
	unlock := repo.rlock()
	defer unlock()

	type key struct{ id1, id2 string }
	counts := make(map[key]int)
	for _, t := range repo.db.table {
		if t.TeacherID != teacherID {
			continue
		}
		for i := 0; i < len(t.StudentIDs); i++ {
			for j := i + 1; j < len(t.StudentIDs); j++ {
				k := key{t.StudentIDs[i], t.StudentIDs[j]}
				if k.id2 < k.id1 {
					k.id1, k.id2 = k.id2, k.id1
				}
				counts[k]++
			}
		}
	}

	profile := func(id string) user.Profile {
		if u, ok := repo.users.table[id]; ok {
			return u.Profile()
		}
		return user.Profile{ID: id}
	}
	collabs := make([]task.Collaboration, 0, len(counts))
	for k, n := range counts {
		collabs = append(collabs, task.Collaboration{Student1: profile(k.id1), Student2: profile(k.id2), Count: n})
	}
	sort.Slice(collabs, func(i, j int) bool {
		a, b := collabs[i], collabs[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.Student1.ID != b.Student1.ID {
			return a.Student1.ID < b.Student1.ID
		}
		return a.Student2.ID < b.Student2.ID
	})
	return collabs, nil
}
