package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/Beccio00/homeworks-web-app/core"
	"github.com/Beccio00/homeworks-web-app/core/task"
	"github.com/Beccio00/homeworks-web-app/core/user"
)

const taskSelect = `
	SELECT t.id, t.teacher_id, t.question, t.status, t.answer, t.score, t.created_at,
	       tu.name AS teacher_name, tu.surname AS teacher_surname
	FROM tasks t
	JOIN users tu ON tu.id = t.teacher_id`

type (
	taskRow struct {
		ID             string       `db:"id"`
		TeacherID      string       `db:"teacher_id"`
		Question       string       `db:"question"`
		Status         string       `db:"status"`
		Answer         null.String  `db:"answer"`
		Score          null.Float64 `db:"score"`
		CreatedAt      time.Time    `db:"created_at"`
		TeacherName    string       `db:"teacher_name"`
		TeacherSurname string       `db:"teacher_surname"`
	}

	memberRow struct {
		TaskID   string `db:"task_id"`
		ID       string `db:"id"`
		Username string `db:"username"`
		Name     string `db:"name"`
		Surname  string `db:"surname"`
		Avatar   string `db:"avatar"`
	}

	gradedRow struct {
		taskRow
		GroupSize int `db:"group_size"`
	}

	progressRow struct {
		ID          string `db:"id"`
		Username    string `db:"username"`
		Name        string `db:"name"`
		Surname     string `db:"surname"`
		Avatar      string `db:"avatar"`
		OpenTasks   int    `db:"open_tasks"`
		ClosedTasks int    `db:"closed_tasks"`
		TotalTasks  int    `db:"total_tasks"`
	}

	gradeRow struct {
		StudentID string       `db:"student_id"`
		Score     null.Float64 `db:"score"`
		GroupSize int          `db:"group_size"`
	}

	collaborationRow struct {
		Student1 string `db:"student1_id"`
		Student2 string `db:"student2_id"`
		Count    int    `db:"n"`
	}
)

func (r taskRow) toInfo() task.TaskInfo {
	info := task.TaskInfo{
		Task: task.Task{
			ID:        r.ID,
			TeacherID: r.TeacherID,
			Question:  r.Question,
			Status:    task.Status(r.Status),
			Answer:    r.Answer.Ptr(),
			Score:     r.Score.Ptr(),
			CreatedAt: r.CreatedAt.UTC(),
		},
		TeacherName: user.Profile{Name: r.TeacherName, Surname: r.TeacherSurname}.FullName(),
	}
	return info
}

func (r memberRow) profile() user.Profile {
	return user.Profile{ID: r.ID, Username: r.Username, Name: r.Name, Surname: r.Surname, Avatar: r.Avatar}
}

type taskRepository struct {
	db *sqlx.DB
}

var _ task.Repository = (*taskRepository)(nil)

func NewTaskRepository(db *sqlx.DB) task.Repository {
	return &taskRepository{db: db}
}

func (repo *taskRepository) CountCollaborations(ctx context.Context, teacherID, studentID1, studentID2 string) (int, error) {
	query := repo.db.Rebind(`
		SELECT COUNT(*)
		FROM tasks t
		JOIN task_students s1 ON s1.task_id = t.id AND s1.student_id = ?
		JOIN task_students s2 ON s2.task_id = t.id AND s2.student_id = ?
		WHERE t.teacher_id = ?`)

	var count int
	if err := repo.db.GetContext(ctx, &count, query, studentID1, studentID2, teacherID); err != nil {
		return 0, errors.Wrap(err, "counting collaborations")
	}
	return count, nil
}

func insertTask(ctx context.Context, ex core.DBExecutor, t task.Task) error {
	query := ex.Rebind(`INSERT INTO tasks (id, teacher_id, question, status, answer, score, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	_, err := ex.ExecContext(
		ctx, query,
		t.ID, t.TeacherID, t.Question, string(t.Status), null.StringFromPtr(t.Answer), null.Float64FromPtr(t.Score), t.CreatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "inserting task")
	}

	memberQuery := ex.Rebind(`INSERT INTO task_students (task_id, student_id, position) VALUES (?, ?, ?)`)
	for i, id := range t.StudentIDs {
		if _, err = ex.ExecContext(ctx, memberQuery, t.ID, id, i); err != nil {
			return errors.Wrapf(err, "inserting member %s", id)
		}
	}
	return nil
}

func (repo *taskRepository) CreateTask(ctx context.Context, t task.Task) (task.Task, error) {
	t.CreatedAt = t.CreatedAt.UTC()

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return task.Task{}, errors.Wrap(err, "beginning transaction")
	}
	var dbTx core.DBTransactor = tx

	if err = insertTask(ctx, dbTx, t); err != nil {
		_ = dbTx.Rollback()
		return task.Task{}, err
	}
	if err = dbTx.Commit(); err != nil {
		return task.Task{}, errors.Wrap(err, "committing task")
	}
	return t, nil
}

// loadMembers fills in the students of each task, in group order.
func (repo *taskRepository) loadMembers(ctx context.Context, infos []task.TaskInfo) error {
	if len(infos) == 0 {
		return nil
	}
	ids := make([]string, 0, len(infos))
	idx := make(map[string]int, len(infos))
	for i, info := range infos {
		ids = append(ids, info.ID)
		idx[info.ID] = i
	}

	query, args, err := sqlx.In(`
		SELECT ts.task_id, u.id, u.username, u.name, u.surname, u.avatar
		FROM task_students ts
		JOIN users u ON u.id = ts.student_id
		WHERE ts.task_id IN (?)
		ORDER BY ts.task_id, ts.position`, ids)
	if err != nil {
		return errors.Wrap(err, "binding task ids")
	}

	var rows []memberRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return errors.Wrap(err, "selecting members")
	}
	for i := range infos {
		infos[i].StudentIDs = []string{}
		infos[i].Students = []user.Profile{}
	}
	for _, r := range rows {
		info := &infos[idx[r.TaskID]]
		info.StudentIDs = append(info.StudentIDs, r.ID)
		info.Students = append(info.Students, r.profile())
	}
	return nil
}

func (repo *taskRepository) queryTasks(ctx context.Context, query string, args ...interface{}) ([]task.TaskInfo, error) {
	var rows []taskRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting tasks")
	}
	infos := make([]task.TaskInfo, 0, len(rows))
	for _, r := range rows {
		infos = append(infos, r.toInfo())
	}
	if err := repo.loadMembers(ctx, infos); err != nil {
		return nil, err
	}
	return infos, nil
}

func (repo *taskRepository) GetTask(ctx context.Context, id string) (task.TaskInfo, error) {
	if !isValidID(id) {
		return task.TaskInfo{}, task.ErrNotFound
	}
	var row taskRow
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(taskSelect+` WHERE t.id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.TaskInfo{}, task.ErrNotFound
		}
		return task.TaskInfo{}, errors.Wrap(err, "selecting task")
	}
	infos := []task.TaskInfo{row.toInfo()}
	if err := repo.loadMembers(ctx, infos); err != nil {
		return task.TaskInfo{}, err
	}
	return infos[0], nil
}

// unchanged explains why a conditional update of task id affected no row.
func (repo *taskRepository) unchanged(ctx context.Context, id string) error {
	var row struct {
		Status string      `db:"status"`
		Answer null.String `db:"answer"`
	}
	if err := repo.db.GetContext(ctx, &row, repo.db.Rebind(`SELECT status, answer FROM tasks WHERE id = ?`), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return task.ErrNotFound
		}
		return errors.Wrap(err, "selecting task")
	}
	if task.Status(row.Status) == task.StatusOpen && !row.Answer.Valid {
		return task.ErrNoAnswer
	}
	return task.ErrTaskClosed
}

func (repo *taskRepository) update(ctx context.Context, id, query string, args ...interface{}) error {
	if !isValidID(id) {
		return task.ErrNotFound
	}
	res, err := repo.db.ExecContext(ctx, repo.db.Rebind(query), args...)
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "updating task")
	}
	if n == 0 {
		return repo.unchanged(ctx, id)
	}
	return nil
}

func (repo *taskRepository) SetAnswer(ctx context.Context, id, answer string) error {
	return repo.update(ctx, id, `UPDATE tasks SET answer = ? WHERE id = ? AND status = 'open'`, answer, id)
}

func (repo *taskRepository) SetScoreAndClose(ctx context.Context, id string, score float64) error {
	return repo.update(
		ctx, id,
		`UPDATE tasks SET score = ?, status = 'closed' WHERE id = ? AND status = 'open' AND answer IS NOT NULL`,
		score, id,
	)
}

func (repo *taskRepository) QueryTeacherTasks(ctx context.Context, teacherID string) ([]task.TaskInfo, error) {
	return repo.queryTasks(ctx, taskSelect+`
		WHERE t.teacher_id = ?
		ORDER BY t.created_at DESC, t.id DESC`, teacherID)
}

func (repo *taskRepository) QueryStudentTasks(ctx context.Context, studentID string, status task.Status) ([]task.TaskInfo, error) {
	query, args := taskSelect+`
		JOIN task_students ts ON ts.task_id = t.id
		WHERE ts.student_id = ?`, []interface{}{studentID}
	if status != "" {
		query += ` AND t.status = ?`
		args = append(args, string(status))
	}
	return repo.queryTasks(ctx, query+` ORDER BY t.created_at DESC, t.id DESC`, args...)
}

func (repo *taskRepository) QueryGradedTasks(ctx context.Context, studentID, teacherID string) ([]task.GradedTask, error) {
	query, args := `
		SELECT t.id, t.teacher_id, t.question, t.status, t.answer, t.score, t.created_at,
		       tu.name AS teacher_name, tu.surname AS teacher_surname,
		       (SELECT COUNT(*) FROM task_students g WHERE g.task_id = t.id) AS group_size
		FROM tasks t
		JOIN users tu ON tu.id = t.teacher_id
		JOIN task_students ts ON ts.task_id = t.id
		WHERE ts.student_id = ? AND t.status = 'closed'`, []interface{}{studentID}
	if teacherID != "" {
		query += ` AND t.teacher_id = ?`
		args = append(args, teacherID)
	}
	query += ` ORDER BY t.created_at DESC, t.id DESC`

	var rows []gradedRow
	if err := repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting graded tasks")
	}
	graded := make([]task.GradedTask, 0, len(rows))
	for _, r := range rows {
		info := r.toInfo()
		graded = append(graded, task.GradedTask{
			Grade:       task.Grade{Score: info.Score, GroupSize: r.GroupSize},
			ID:          info.ID,
			TeacherID:   info.TeacherID,
			TeacherName: info.TeacherName,
			Question:    info.Question,
			Answer:      r.Answer.String,
			CreatedAt:   info.CreatedAt,
		})
	}
	return graded, nil
}

func (repo *taskRepository) QueryClassProgress(ctx context.Context, teacherID string) ([]task.StudentProgress, error) {
	query := repo.db.Rebind(`
		SELECT u.id, u.username, u.name, u.surname, u.avatar,
		       COUNT(CASE WHEN t.status = 'open' THEN 1 END) AS open_tasks,
		       COUNT(CASE WHEN t.status = 'closed' THEN 1 END) AS closed_tasks,
		       COUNT(t.id) AS total_tasks
		FROM users u
		LEFT JOIN task_students ts ON ts.student_id = u.id
		LEFT JOIN tasks t ON t.id = ts.task_id AND t.teacher_id = ?
		WHERE u.role = ?
		GROUP BY u.id, u.username, u.name, u.surname, u.avatar
		ORDER BY u.surname, u.name, u.id`)

	var rows []progressRow
	if err := repo.db.SelectContext(ctx, &rows, query, teacherID, user.RoleStudent); err != nil {
		return nil, errors.Wrap(err, "selecting class progress")
	}
	progress := make([]task.StudentProgress, 0, len(rows))
	for _, r := range rows {
		progress = append(progress, task.StudentProgress{
			Profile:     user.Profile{ID: r.ID, Username: r.Username, Name: r.Name, Surname: r.Surname, Avatar: r.Avatar},
			OpenTasks:   r.OpenTasks,
			ClosedTasks: r.ClosedTasks,
			TotalTasks:  r.TotalTasks,
		})
	}
	return progress, nil
}

func (repo *taskRepository) QueryTeacherGrades(ctx context.Context, teacherID string) ([]task.StudentGrade, error) {
	query := repo.db.Rebind(`
		SELECT ts.student_id, t.score,
		       (SELECT COUNT(*) FROM task_students g WHERE g.task_id = t.id) AS group_size
		FROM tasks t
		JOIN task_students ts ON ts.task_id = t.id
		WHERE t.teacher_id = ? AND t.status = 'closed'`)

	var rows []gradeRow
	if err := repo.db.SelectContext(ctx, &rows, query, teacherID); err != nil {
		return nil, errors.Wrap(err, "selecting grades")
	}
	grades := make([]task.StudentGrade, 0, len(rows))
	for _, r := range rows {
		grades = append(grades, task.StudentGrade{
			StudentID: r.StudentID,
			Grade:     task.Grade{Score: r.Score.Ptr(), GroupSize: r.GroupSize},
		})
	}
	return grades, nil
}

func (repo *taskRepository) QueryCollaborations(ctx context.Context, teacherID string) ([]task.Collaboration, error) {
	query := repo.db.Rebind(`
		SELECT a.student_id AS student1_id, b.student_id AS student2_id, COUNT(*) AS n
		FROM task_students a
		JOIN task_students b ON b.task_id = a.task_id AND a.student_id < b.student_id
		JOIN tasks t ON t.id = a.task_id
		WHERE t.teacher_id = ?
		GROUP BY a.student_id, b.student_id
		ORDER BY n DESC, a.student_id, b.student_id`)

	var rows []collaborationRow
	if err := repo.db.SelectContext(ctx, &rows, query, teacherID); err != nil {
		return nil, errors.Wrap(err, "selecting collaborations")
	}
	if len(rows) == 0 {
		return []task.Collaboration{}, nil
	}

	ids := make([]string, 0, 2*len(rows))
	for _, r := range rows {
		ids = append(ids, r.Student1, r.Student2)
	}
	profiles, err := repo.profiles(ctx, ids)
	if err != nil {
		return nil, err
	}

	collabs := make([]task.Collaboration, 0, len(rows))
	for _, r := range rows {
		collabs = append(collabs, task.Collaboration{
			Student1: profiles[r.Student1],
			Student2: profiles[r.Student2],
			Count:    r.Count,
		})
	}
	return collabs, nil
}

func (repo *taskRepository) profiles(ctx context.Context, ids []string) (map[string]user.Profile, error) {
	query, args, err := sqlx.In(`SELECT '' AS task_id, id, username, name, surname, avatar FROM users WHERE id IN (?)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "binding user ids")
	}
	var rows []memberRow
	if err = repo.db.SelectContext(ctx, &rows, repo.db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "selecting profiles")
	}
	profiles := make(map[string]user.Profile, len(rows))
	for _, r := range rows {
		profiles[r.ID] = r.profile()
	}
	return profiles, nil
}
