package task

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Beccio00/homeworks-web-app/core"
	"github.com/Beccio00/homeworks-web-app/core/user"
)

// Group size bounds and score range.
const (
	MinGroupSize = 2
	MaxGroupSize = 6

	MinScore = 0
	MaxScore = 30
)

type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

func (s Status) IsValid() bool { return s == StatusOpen || s == StatusClosed }

// Task is a question assigned by one teacher to a fixed group of students.
// Score is set iff Status is closed; a closed Task always has an Answer.
type Task struct {
	ID         string    `json:"id"`
	TeacherID  string    `json:"teacher_id"`
	Question   string    `json:"question"`
	Status     Status    `json:"status"`
	Answer     *string   `json:"answer"`
	Score      *float64  `json:"score"`
	CreatedAt  time.Time `json:"created_at"` // UTC
	StudentIDs []string  `json:"student_ids"`
}

func (t Task) IsOpen() bool    { return t.Status == StatusOpen }
func (t Task) HasAnswer() bool { return t.Answer != nil }
func (t Task) GroupSize() int  { return len(t.StudentIDs) }

func (t Task) HasStudent(studentID string) bool {
	for _, id := range t.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// TaskInfo is a Task along with the display data of its teacher and members.
type TaskInfo struct {
	Task
	TeacherName string         `json:"teacher_name"`
	Students    []user.Profile `json:"students"`
}

// Grade is one scored contribution of a student: the task score and the size of the group that earned it.
type Grade struct {
	Score     *float64 `json:"score"`
	GroupSize int      `json:"group_size"`
}

// Weighted returns the student's share of the score (score / group size).
func (g Grade) Weighted() float64 {
	if g.Score == nil || g.GroupSize <= 0 {
		return 0
	}
	return round2(*g.Score / float64(g.GroupSize))
}

// GradedTask is a closed task as seen by one of its students.
type GradedTask struct {
	Grade
	ID            string    `json:"id"`
	TeacherID     string    `json:"teacher_id"`
	TeacherName   string    `json:"teacher_name"`
	Question      string    `json:"question"`
	Answer        string    `json:"answer"`
	WeightedScore float64   `json:"weighted_score"`
	CreatedAt     time.Time `json:"created_at"`
}

// StudentGrade ties a Grade to the student it belongs to.
type StudentGrade struct {
	StudentID string
	Grade
}

// StudentStats sums up a student's graded work.
type StudentStats struct {
	Tasks           []GradedTask `json:"tasks"`
	WeightedAverage float64      `json:"weighted_average"`
}

// StudentProgress is one row of a teacher's class overview.
type StudentProgress struct {
	user.Profile
	OpenTasks       int     `json:"open_tasks"`
	ClosedTasks     int     `json:"closed_tasks"`
	TotalTasks      int     `json:"total_tasks"`
	WeightedAverage float64 `json:"weighted_average"`
}

// ClassOverview is the teacher's view of every student's progress on their tasks.
type ClassOverview struct {
	Students     []StudentProgress `json:"students"`
	ClassAverage float64           `json:"class_average"`
}

// NewTask contains information needed to create a new Task.
type NewTask struct {
	Question   string   `json:"question" validate:"required,notblank"`
	StudentIDs []string `json:"student_ids" validate:"required,groupsize,unique,dive,required"`
}

func (nt *NewTask) Clean() {
	nt.Question = core.CleanString(nt.Question)
	for i, id := range nt.StudentIDs {
		nt.StudentIDs[i] = core.CleanString(id)
	}
}

func (nt *NewTask) Validate(validate *validator.Validate) error {
	nt.Clean()
	return validate.Struct(nt)
}

// SubmitAnswer is a student's answer to a Task.
type SubmitAnswer struct {
	Answer string `json:"answer" validate:"required,notblank"`
}

func (sa *SubmitAnswer) Validate(validate *validator.Validate) error {
	sa.Answer = core.CleanString(sa.Answer)
	return validate.Struct(sa)
}

// ScoreTask is a teacher's evaluation of a Task.
type ScoreTask struct {
	Score *float64 `json:"score" validate:"required,min=0,max=30"`
}

func (st *ScoreTask) Validate(validate *validator.Validate) error {
	return validate.Struct(st)
}
