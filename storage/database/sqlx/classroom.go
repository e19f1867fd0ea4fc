package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
)

const uniqueViolation = "23505"

type classroomRepository struct {
	db *sqlx.DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *sqlx.DB) classroom.Repository {
	return &classroomRepository{db: db}
}

// translateDBError maps storage failures onto the domain error taxonomy.
func translateDBError(err error) error {
	if err == sql.ErrNoRows {
		return classroom.ErrNotFound
	}
	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == uniqueViolation {
		return classroom.ErrConflict
	}
	return err
}

const courseColumns = `c.id, c.title, c.description, c.created_at`

// Courses

func (repo *classroomRepository) CreateCourse(course classroom.Course) (classroom.Course, error) {
	tx, err := repo.db.Beginx()
	if err != nil {
		return classroom.Course{}, err
	}
	defer func() { _ = tx.Rollback() }()

	err = tx.QueryRowx(`
		INSERT INTO course (title, description, created_at)
		VALUES ($1, $2, $3)
		RETURNING id
	`, course.Title, course.Description, course.CreatedAt).Scan(&course.ID)
	if err != nil {
		return classroom.Course{}, translateDBError(err)
	}
	for _, t := range course.Teachers {
		if _, err = tx.Exec(`INSERT INTO course_teacher (course_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, course.ID, t.ID); err != nil {
			return classroom.Course{}, translateDBError(err)
		}
	}
	for _, s := range course.Students {
		if _, err = tx.Exec(`INSERT INTO course_student (course_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, course.ID, s.ID); err != nil {
			return classroom.Course{}, translateDBError(err)
		}
	}
	if err = tx.Commit(); err != nil {
		return classroom.Course{}, err
	}
	return repo.GetCourseByID(course.ID)
}

func (repo *classroomRepository) QueryAllCourses() ([]classroom.Course, error) {
	courses := make([]classroom.Course, 0)
	err := repo.db.Select(&courses, `SELECT `+courseColumns+` FROM course c ORDER BY c.created_at, c.id`)
	if err != nil {
		return nil, err
	}
	for i := range courses {
		if err = repo.loadMembers(&courses[i]); err != nil {
			return nil, err
		}
	}
	return courses, nil
}

func (repo *classroomRepository) GetCourseByID(id int) (classroom.Course, error) {
	return repo.getCourse(`SELECT `+courseColumns+` FROM course c WHERE c.id = $1`, id)
}

func (repo *classroomRepository) GetCourseOfLecture(lectureID int) (classroom.Course, error) {
	return repo.getCourse(`
		SELECT `+courseColumns+` FROM course c
		JOIN lecture l ON l.course_id = c.id
		WHERE l.id = $1
	`, lectureID)
}

func (repo *classroomRepository) GetCourseOfHomework(homeworkID int) (classroom.Course, error) {
	return repo.getCourse(`
		SELECT `+courseColumns+` FROM course c
		JOIN lecture l ON l.course_id = c.id
		JOIN homework h ON h.lecture_id = l.id
		WHERE h.id = $1
	`, homeworkID)
}

func (repo *classroomRepository) GetCourseOfSolution(solutionID int) (classroom.Course, error) {
	return repo.getCourse(`
		SELECT `+courseColumns+` FROM course c
		JOIN lecture l ON l.course_id = c.id
		JOIN homework h ON h.lecture_id = l.id
		JOIN solution s ON s.homework_id = h.id
		WHERE s.id = $1
	`, solutionID)
}

func (repo *classroomRepository) GetCourseOfMark(markID int) (classroom.Course, error) {
	return repo.getCourse(`
		SELECT `+courseColumns+` FROM course c
		JOIN lecture l ON l.course_id = c.id
		JOIN homework h ON h.lecture_id = l.id
		JOIN solution s ON s.homework_id = h.id
		JOIN mark m ON m.solution_id = s.id
		WHERE m.id = $1
	`, markID)
}

func (repo *classroomRepository) UpdateCourse(course classroom.Course) (classroom.Course, error) {
	res, err := repo.db.Exec(`UPDATE course SET title = $1, description = $2 WHERE id = $3`,
		course.Title, course.Description, course.ID)
	if err != nil {
		return classroom.Course{}, translateDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.Course{}, classroom.ErrNotFound
	}
	return repo.GetCourseByID(course.ID)
}

// DeleteCourse relies on ON DELETE CASCADE to remove the whole subtree in one
// scoped, transactional statement.
func (repo *classroomRepository) DeleteCourse(id int) error {
	return repo.deleteByID(`DELETE FROM course WHERE id = $1`, id)
}

// Membership

func (repo *classroomRepository) AddCourseTeacher(courseID, userID int) error {
	_, err := repo.db.Exec(`INSERT INTO course_teacher (course_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, courseID, userID)
	return translateDBError(err)
}

func (repo *classroomRepository) AddCourseStudent(courseID, userID int) error {
	_, err := repo.db.Exec(`INSERT INTO course_student (course_id, user_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`, courseID, userID)
	return translateDBError(err)
}

func (repo *classroomRepository) RemoveCourseStudent(courseID, userID int) error {
	_, err := repo.db.Exec(`DELETE FROM course_student WHERE course_id = $1 AND user_id = $2`, courseID, userID)
	return translateDBError(err)
}

// Lectures

func (repo *classroomRepository) CreateLecture(lect classroom.Lecture) (classroom.Lecture, error) {
	err := repo.db.QueryRowx(`
		INSERT INTO lecture (course_id, title, description, attachment, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, lect.CourseID, lect.Title, lect.Description, lect.Attachment, lect.CreatedAt).Scan(&lect.ID)
	return lect, translateDBError(err)
}

func (repo *classroomRepository) QueryLecturesByCourse(courseID int) ([]classroom.Lecture, error) {
	lects := make([]classroom.Lecture, 0)
	err := repo.db.Select(&lects, `
		SELECT id, course_id, title, description, attachment, created_at FROM lecture
		WHERE course_id = $1
		ORDER BY created_at, id
	`, courseID)
	return lects, err
}

func (repo *classroomRepository) GetLectureByID(id int) (classroom.Lecture, error) {
	var lect classroom.Lecture
	err := repo.db.Get(&lect, `
		SELECT id, course_id, title, description, attachment, created_at FROM lecture WHERE id = $1
	`, id)
	return lect, translateDBError(err)
}

func (repo *classroomRepository) UpdateLecture(lect classroom.Lecture) (classroom.Lecture, error) {
	res, err := repo.db.Exec(`UPDATE lecture SET title = $1, description = $2 WHERE id = $3`,
		lect.Title, lect.Description, lect.ID)
	if err != nil {
		return classroom.Lecture{}, translateDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.Lecture{}, classroom.ErrNotFound
	}
	return repo.GetLectureByID(lect.ID)
}

func (repo *classroomRepository) DeleteLecture(id int) error {
	return repo.deleteByID(`DELETE FROM lecture WHERE id = $1`, id)
}

// Homeworks

func (repo *classroomRepository) CreateHomework(hw classroom.Homework) (classroom.Homework, error) {
	err := repo.db.QueryRowx(`
		INSERT INTO homework (lecture_id, title, description, deadline, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, hw.LectureID, hw.Title, hw.Description, hw.Deadline, hw.CreatedAt).Scan(&hw.ID)
	return hw, translateDBError(err)
}

func (repo *classroomRepository) QueryHomeworksByLecture(lectureID int) ([]classroom.Homework, error) {
	hws := make([]classroom.Homework, 0)
	err := repo.db.Select(&hws, `
		SELECT id, lecture_id, title, description, deadline, created_at FROM homework
		WHERE lecture_id = $1
		ORDER BY created_at, id
	`, lectureID)
	return hws, err
}

func (repo *classroomRepository) GetHomeworkByID(id int) (classroom.Homework, error) {
	var hw classroom.Homework
	err := repo.db.Get(&hw, `
		SELECT id, lecture_id, title, description, deadline, created_at FROM homework WHERE id = $1
	`, id)
	return hw, translateDBError(err)
}

func (repo *classroomRepository) UpdateHomework(hw classroom.Homework) (classroom.Homework, error) {
	res, err := repo.db.Exec(`UPDATE homework SET title = $1, description = $2, deadline = $3 WHERE id = $4`,
		hw.Title, hw.Description, hw.Deadline, hw.ID)
	if err != nil {
		return classroom.Homework{}, translateDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.Homework{}, classroom.ErrNotFound
	}
	return repo.GetHomeworkByID(hw.ID)
}

func (repo *classroomRepository) DeleteHomework(id int) error {
	return repo.deleteByID(`DELETE FROM homework WHERE id = $1`, id)
}

// Solutions

const solutionSelect = `
	SELECT s.id, s.homework_id, s.solution, s.created_at,
		u.id AS "author.id", u.name AS "author.name", u.username AS "author.username",
		u.email AS "author.email", u.role AS "author.role", u.is_active AS "author.is_active",
		u.created_at AS "author.created_at", u.updated_at AS "author.updated_at"
	FROM solution s
	JOIN app_user u ON u.id = s.author_id`

func (repo *classroomRepository) CreateSolution(sol classroom.Solution) (classroom.Solution, error) {
	err := repo.db.QueryRowx(`
		INSERT INTO solution (homework_id, author_id, solution, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, sol.HomeworkID, sol.Author.ID, sol.Solution, sol.CreatedAt).Scan(&sol.ID)
	return sol, translateDBError(err)
}

func (repo *classroomRepository) QuerySolutionsByHomework(homeworkID int) ([]classroom.Solution, error) {
	sols := make([]classroom.Solution, 0)
	err := repo.db.Select(&sols, solutionSelect+`
		WHERE s.homework_id = $1
		ORDER BY s.created_at, s.id
	`, homeworkID)
	return sols, err
}

func (repo *classroomRepository) GetSolutionByID(id int) (classroom.Solution, error) {
	var sol classroom.Solution
	err := repo.db.Get(&sol, solutionSelect+` WHERE s.id = $1`, id)
	return sol, translateDBError(err)
}

func (repo *classroomRepository) SolutionExists(homeworkID, authorID int) (bool, error) {
	var exists bool
	err := repo.db.Get(&exists, `
		SELECT EXISTS(SELECT 1 FROM solution WHERE homework_id = $1 AND author_id = $2)
	`, homeworkID, authorID)
	return exists, err
}

// Marks

const markSelect = `
	SELECT m.id, m.solution_id, m.value,
		u.id AS "grader.id", u.name AS "grader.name", u.username AS "grader.username",
		u.email AS "grader.email", u.role AS "grader.role", u.is_active AS "grader.is_active",
		u.created_at AS "grader.created_at", u.updated_at AS "grader.updated_at"
	FROM mark m
	JOIN app_user u ON u.id = m.grader_id`

func (repo *classroomRepository) CreateMark(mark classroom.Mark) (classroom.Mark, error) {
	err := repo.db.QueryRowx(`
		INSERT INTO mark (solution_id, grader_id, value)
		VALUES ($1, $2, $3)
		RETURNING id
	`, mark.SolutionID, mark.Grader.ID, mark.Value).Scan(&mark.ID)
	return mark, translateDBError(err)
}

func (repo *classroomRepository) GetMarkByID(id int) (classroom.Mark, error) {
	var mark classroom.Mark
	err := repo.db.Get(&mark, markSelect+` WHERE m.id = $1`, id)
	return mark, translateDBError(err)
}

func (repo *classroomRepository) GetMarkBySolutionID(solutionID int) (classroom.Mark, error) {
	var mark classroom.Mark
	err := repo.db.Get(&mark, markSelect+` WHERE m.solution_id = $1`, solutionID)
	return mark, translateDBError(err)
}

func (repo *classroomRepository) UpdateMark(mark classroom.Mark) (classroom.Mark, error) {
	res, err := repo.db.Exec(`UPDATE mark SET grader_id = $1, value = $2 WHERE id = $3`,
		mark.Grader.ID, mark.Value, mark.ID)
	if err != nil {
		return classroom.Mark{}, translateDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.Mark{}, classroom.ErrNotFound
	}
	return repo.GetMarkByID(mark.ID)
}

// Commentaries

func (repo *classroomRepository) CreateCommentary(com classroom.Commentary) (classroom.Commentary, error) {
	err := repo.db.QueryRowx(`
		INSERT INTO commentary (mark_id, author_id, text, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, com.MarkID, com.Author.ID, com.Text, com.CreatedAt).Scan(&com.ID)
	return com, translateDBError(err)
}

func (repo *classroomRepository) QueryCommentariesByMark(markID int) ([]classroom.Commentary, error) {
	coms := make([]classroom.Commentary, 0)
	err := repo.db.Select(&coms, `
		SELECT c.id, c.mark_id, c.text, c.created_at,
			u.id AS "author.id", u.name AS "author.name", u.username AS "author.username",
			u.email AS "author.email", u.role AS "author.role", u.is_active AS "author.is_active",
			u.created_at AS "author.created_at", u.updated_at AS "author.updated_at"
		FROM commentary c
		JOIN app_user u ON u.id = c.author_id
		WHERE c.mark_id = $1
		ORDER BY c.created_at, c.id
	`, markID)
	return coms, err
}

// internals

func (repo *classroomRepository) getCourse(query string, arg interface{}) (classroom.Course, error) {
	var course classroom.Course
	if err := repo.db.Get(&course, query, arg); err != nil {
		return classroom.Course{}, translateDBError(err)
	}
	if err := repo.loadMembers(&course); err != nil {
		return classroom.Course{}, err
	}
	return course, nil
}

func (repo *classroomRepository) loadMembers(course *classroom.Course) error {
	course.Teachers = make([]user.User, 0)
	err := repo.db.Select(&course.Teachers, `
		SELECT u.id, u.name, u.username, u.email, u.role, u.is_active, u.created_at, u.updated_at
		FROM app_user u
		JOIN course_teacher ct ON ct.user_id = u.id
		WHERE ct.course_id = $1
		ORDER BY u.id
	`, course.ID)
	if err != nil {
		return err
	}
	course.Students = make([]user.User, 0)
	return repo.db.Select(&course.Students, `
		SELECT u.id, u.name, u.username, u.email, u.role, u.is_active, u.created_at, u.updated_at
		FROM app_user u
		JOIN course_student cs ON cs.user_id = u.id
		WHERE cs.course_id = $1
		ORDER BY u.id
	`, course.ID)
}

func (repo *classroomRepository) deleteByID(query string, id int) error {
	res, err := repo.db.Exec(query, id)
	if err != nil {
		return translateDBError(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return classroom.ErrNotFound
	}
	return nil
}
