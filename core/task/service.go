package task

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/Beccio00/homeworks-web-app/core"
	"github.com/Beccio00/homeworks-web-app/core/user"
)

var (
	NowFunc = time.Now         // mockable
	NewID   = uuid.NewString // mockable
)

type (
	Repository interface {
		// CountCollaborations counts the tasks of teacherID whose group contains both students.
		CountCollaborations(ctx context.Context, teacherID, studentID1, studentID2 string) (int, error)
		// CreateTask inserts the task and all its membership rows at once.
		CreateTask(ctx context.Context, t Task) (Task, error)
		GetTask(ctx context.Context, id string) (TaskInfo, error)
		// SetAnswer and SetScoreAndClose only affect open tasks; they return ErrTaskClosed otherwise.
		// SetScoreAndClose returns ErrNoAnswer for a task that has not been answered.
		SetAnswer(ctx context.Context, id, answer string) error
		SetScoreAndClose(ctx context.Context, id string, score float64) error

		QueryTeacherTasks(ctx context.Context, teacherID string) ([]TaskInfo, error)
		// QueryStudentTasks filters by status unless status is empty.
		QueryStudentTasks(ctx context.Context, studentID string, status Status) ([]TaskInfo, error)
		// QueryGradedTasks lists the closed tasks of a student, of any teacher unless teacherID is given.
		QueryGradedTasks(ctx context.Context, studentID, teacherID string) ([]GradedTask, error)
		// QueryClassProgress returns every student with their task counts under teacherID.
		QueryClassProgress(ctx context.Context, teacherID string) ([]StudentProgress, error)
		QueryTeacherGrades(ctx context.Context, teacherID string) ([]StudentGrade, error)
		// QueryCollaborations returns the pairs of students that shared at least one task of teacherID,
		// most frequent first.
		QueryCollaborations(ctx context.Context, teacherID string) ([]Collaboration, error)
	}

	// Students resolves student accounts; user.Repository satisfies it.
	Students interface {
		QueryStudents(ctx context.Context, ids ...string) ([]user.User, error)
	}

	Service struct {
		repo     Repository
		students Students
		logger   core.Logger

		groupLocks sync.Map // teacherID -> *sync.Mutex
	}
)

func NewService(repo Repository, students Students, logger core.Logger) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(students, "students"),
		vala.IsNotNil(logger, "logger"),
	).CheckAndPanic()

	return &Service{repo: repo, students: students, logger: logger}
}

// lockTeacher serializes group validation and insertion for one teacher.
func (svc *Service) lockTeacher(teacherID string) (unlock func()) {
	mu, _ := svc.groupLocks.LoadOrStore(teacherID, new(sync.Mutex))
	mu.(*sync.Mutex).Lock()
	return mu.(*sync.Mutex).Unlock
}

func invalidStudents(msg string) error {
	return core.NewValidationError(nil, core.FieldError{Field: "student_ids", Error: msg})
}

// checkGroup validates the shape of the group and returns the students it is made of.
func (svc *Service) checkGroup(ctx context.Context, ids []string) (map[string]user.User, error) {
	if n := len(ids); n < MinGroupSize || n > MaxGroupSize {
		return nil, invalidStudents(fmt.Sprintf("a group must have between %d and %d students", MinGroupSize, MaxGroupSize))
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			return nil, invalidStudents("student IDs cannot be blank")
		}
		if _, ok := seen[id]; ok {
			return nil, invalidStudents("a student cannot appear twice in a group")
		}
		seen[id] = struct{}{}
	}

	students, err := svc.students.QueryStudents(ctx, ids...)
	if err != nil {
		return nil, errors.Wrap(err, "querying students")
	}
	found := make(map[string]user.User, len(students))
	for _, s := range students {
		found[s.ID] = s
	}
	var unknown []string
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			unknown = append(unknown, id)
		}
	}
	if len(unknown) > 0 {
		return nil, invalidStudents("invalid student IDs: " + strings.Join(unknown, ", "))
	}
	return found, nil
}

// Create assigns a new open task to a group of students.
// The group is rejected with a *CollaborationError if any pair already worked together too often for teacherID.
func (svc *Service) Create(ctx context.Context, teacherID string, nt NewTask) (Task, error) {
	nt.Clean()
	if nt.Question == "" {
		return Task{}, core.NewValidationError(nil, core.FieldError{Field: "question", Error: "this field cannot be blank"})
	}
	students, err := svc.checkGroup(ctx, nt.StudentIDs)
	if err != nil {
		return Task{}, err
	}

	unlock := svc.lockTeacher(teacherID)
	defer unlock()

	if err = ValidateGroup(ctx, svc.repo.CountCollaborations, teacherID, nt.StudentIDs); err != nil {
		var collabErr *CollaborationError
		if errors.As(err, &collabErr) {
			for i, p := range collabErr.Pairs {
				collabErr.Pairs[i].Student1 = students[p.Student1.ID].Profile()
				collabErr.Pairs[i].Student2 = students[p.Student2.ID].Profile()
			}
			return Task{}, collabErr
		}
		return Task{}, errors.Wrap(err, "validating group")
	}

	t := Task{
		ID:         NewID(),
		TeacherID:  teacherID,
		Question:   nt.Question,
		Status:     StatusOpen,
		CreatedAt:  NowFunc().UTC(),
		StudentIDs: append([]string(nil), nt.StudentIDs...),
	}
	if t, err = svc.repo.CreateTask(ctx, t); err != nil {
		return Task{}, errors.Wrap(err, "creating task")
	}
	svc.logger.Info(fmt.Sprintf("task %s created by %s for %d students", t.ID, teacherID, t.GroupSize()))
	return t, nil
}

// SubmitAnswer records (or replaces) the group's answer to an open task.
func (svc *Service) SubmitAnswer(ctx context.Context, studentID, taskID, answer string) (Task, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return Task{}, core.NewValidationError(nil, core.FieldError{Field: "answer", Error: "this field cannot be blank"})
	}

	info, err := svc.repo.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	t := info.Task
	if !t.HasStudent(studentID) {
		return Task{}, ErrNotMember
	}
	if !t.IsOpen() {
		return Task{}, core.NewConflictError(ErrTaskClosed)
	}

	if err = svc.repo.SetAnswer(ctx, taskID, answer); err != nil {
		switch {
		case errors.Is(err, ErrTaskClosed):
			return Task{}, core.NewConflictError(err)
		case errors.Is(err, ErrNotFound):
			return Task{}, err
		}
		return Task{}, errors.Wrap(err, "setting answer")
	}
	t.Answer = &answer
	return t, nil
}

// Score evaluates an answered open task and closes it.
func (svc *Service) Score(ctx context.Context, teacherID, taskID string, score float64) (Task, error) {
	if math.IsNaN(score) || score < MinScore || score > MaxScore {
		return Task{}, core.NewValidationError(nil, core.FieldError{
			Field: "score",
			Error: fmt.Sprintf("score must be between %d and %d", MinScore, MaxScore),
		})
	}

	info, err := svc.repo.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, err
	}
	t := info.Task
	if t.TeacherID != teacherID {
		return Task{}, ErrNotOwner
	}
	if !t.IsOpen() {
		return Task{}, core.NewConflictError(ErrTaskClosed)
	}
	if !t.HasAnswer() {
		return Task{}, core.NewValidationError(ErrNoAnswer, core.FieldError{Field: "answer", Error: ErrNoAnswer.Error()})
	}

	if err = svc.repo.SetScoreAndClose(ctx, taskID, score); err != nil {
		switch {
		case errors.Is(err, ErrTaskClosed):
			return Task{}, core.NewConflictError(err)
		case errors.Is(err, ErrNoAnswer):
			return Task{}, core.NewValidationError(err, core.FieldError{Field: "answer", Error: err.Error()})
		case errors.Is(err, ErrNotFound):
			return Task{}, err
		}
		return Task{}, errors.Wrap(err, "scoring task")
	}
	t.Score = &score
	t.Status = StatusClosed
	svc.logger.Info(fmt.Sprintf("task %s scored %.2f by %s", t.ID, score, teacherID))
	return t, nil
}

// Retrieve returns a task to its teacher or to one of its students. Anyone else gets ErrNotFound.
func (svc *Service) Retrieve(ctx context.Context, usr user.User, id string) (TaskInfo, error) {
	info, err := svc.repo.GetTask(ctx, id)
	if err != nil {
		return TaskInfo{}, err
	}
	if (usr.IsTeacher() && info.TeacherID == usr.ID) || (usr.IsStudent() && info.HasStudent(usr.ID)) {
		return info, nil
	}
	return TaskInfo{}, ErrNotFound
}

func (svc *Service) TeacherTasks(ctx context.Context, teacherID string) ([]TaskInfo, error) {
	tasks, err := svc.repo.QueryTeacherTasks(ctx, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying teacher tasks")
	}
	return tasks, nil
}

func (svc *Service) StudentTasks(ctx context.Context, studentID string, status Status) ([]TaskInfo, error) {
	if status != "" && !status.IsValid() {
		return nil, core.NewValidationError(nil, core.FieldError{
			Field: "status",
			Error: fmt.Sprintf("status must be one of: %s, %s", StatusOpen, StatusClosed),
		})
	}
	tasks, err := svc.repo.QueryStudentTasks(ctx, studentID, status)
	if err != nil {
		return nil, errors.Wrap(err, "querying student tasks")
	}
	return tasks, nil
}

// StudentStats lists the graded tasks of a student with their weighted scores and overall weighted average.
func (svc *Service) StudentStats(ctx context.Context, studentID string) (StudentStats, error) {
	tasks, err := svc.repo.QueryGradedTasks(ctx, studentID, "")
	if err != nil {
		return StudentStats{}, errors.Wrap(err, "querying graded tasks")
	}
	grades := make([]Grade, 0, len(tasks))
	for i := range tasks {
		tasks[i].WeightedScore = tasks[i].Weighted()
		grades = append(grades, tasks[i].Grade)
	}
	return StudentStats{Tasks: tasks, WeightedAverage: WeightedAverage(grades)}, nil
}

// ClassOverview sums up the progress of every student on the tasks of teacherID.
// The class average only counts students having at least one closed task.
func (svc *Service) ClassOverview(ctx context.Context, teacherID string) (ClassOverview, error) {
	progress, err := svc.repo.QueryClassProgress(ctx, teacherID)
	if err != nil {
		return ClassOverview{}, errors.Wrap(err, "querying class progress")
	}
	grades, err := svc.repo.QueryTeacherGrades(ctx, teacherID)
	if err != nil {
		return ClassOverview{}, errors.Wrap(err, "querying grades")
	}

	byStudent := make(map[string][]Grade)
	for _, g := range grades {
		byStudent[g.StudentID] = append(byStudent[g.StudentID], g.Grade)
	}

	averages := make([]float64, 0, len(byStudent))
	for i, p := range progress {
		if g, ok := byStudent[p.ID]; ok && p.ClosedTasks > 0 {
			progress[i].WeightedAverage = WeightedAverage(g)
			averages = append(averages, progress[i].WeightedAverage)
		}
	}
	return ClassOverview{Students: progress, ClassAverage: ClassAverage(averages)}, nil
}

func (svc *Service) CollaborationHistory(ctx context.Context, teacherID string) ([]Collaboration, error) {
	collabs, err := svc.repo.QueryCollaborations(ctx, teacherID)
	if err != nil {
		return nil, errors.Wrap(err, "querying collaborations")
	}
	return collabs, nil
}
