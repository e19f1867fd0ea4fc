package inmemdb

import (
	"sort"

	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
)

type classroomRepository struct {
	db *DB
}

var _ classroom.Repository = (*classroomRepository)(nil) // interface compliance check

func NewClassroomRepository(db *DB) classroom.Repository {
	return &classroomRepository{db: db}
}

// Courses

func (repo *classroomRepository) CreateCourse(course classroom.Course) (classroom.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	course.ID = repo.db.nextID()
	row := &courseRow{
		course:   course,
		teachers: make(map[int]struct{}, len(course.Teachers)),
		students: make(map[int]struct{}, len(course.Students)),
	}
	row.course.Teachers = nil
	row.course.Students = nil
	row.course.Lectures = nil
	for _, t := range course.Teachers {
		row.teachers[t.ID] = struct{}{}
	}
	for _, s := range course.Students {
		row.students[s.ID] = struct{}{}
	}
	repo.db.courses[course.ID] = row
	return repo.assemble(row), nil
}

func (repo *classroomRepository) QueryAllCourses() ([]classroom.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]classroom.Course, 0, len(repo.db.courses))
	for _, row := range repo.db.courses {
		courses = append(courses, repo.assemble(row))
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].ID < courses[j].ID })
	return courses, nil
}

func (repo *classroomRepository) GetCourseByID(id int) (classroom.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.getCourse(id)
}

func (repo *classroomRepository) GetCourseOfLecture(lectureID int) (classroom.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	lect, ok := repo.db.lectures[lectureID]
	if !ok {
		return classroom.Course{}, classroom.ErrNotFound
	}
	return repo.getCourse(lect.CourseID)
}

func (repo *classroomRepository) GetCourseOfHomework(homeworkID int) (classroom.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.courseOfHomework(homeworkID)
}

func (repo *classroomRepository) GetCourseOfSolution(solutionID int) (classroom.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.courseOfSolution(solutionID)
}

func (repo *classroomRepository) GetCourseOfMark(markID int) (classroom.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	mark, ok := repo.db.marks[markID]
	if !ok {
		return classroom.Course{}, classroom.ErrNotFound
	}
	return repo.courseOfSolution(mark.SolutionID)
}

func (repo *classroomRepository) UpdateCourse(course classroom.Course) (classroom.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.courses[course.ID]
	if !ok {
		return classroom.Course{}, classroom.ErrNotFound
	}
	row.course.Title = course.Title
	row.course.Description = course.Description
	return repo.assemble(row), nil
}

func (repo *classroomRepository) DeleteCourse(id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[id]; !ok {
		return classroom.ErrNotFound
	}
	for lid, lect := range repo.db.lectures {
		if lect.CourseID == id {
			repo.deleteLectureTree(lid)
		}
	}
	delete(repo.db.courses, id)
	return nil
}

// Membership

func (repo *classroomRepository) AddCourseTeacher(courseID, userID int) error {
	return repo.addMember(courseID, userID, func(row *courseRow) map[int]struct{} { return row.teachers })
}

func (repo *classroomRepository) AddCourseStudent(courseID, userID int) error {
	return repo.addMember(courseID, userID, func(row *courseRow) map[int]struct{} { return row.students })
}

func (repo *classroomRepository) RemoveCourseStudent(courseID, userID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.courses[courseID]
	if !ok {
		return classroom.ErrNotFound
	}
	delete(row.students, userID)
	return nil
}

func (repo *classroomRepository) addMember(courseID, userID int, set func(*courseRow) map[int]struct{}) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.courses[courseID]
	if !ok {
		return classroom.ErrNotFound
	}
	set(row)[userID] = struct{}{}
	return nil
}

// Lectures

func (repo *classroomRepository) CreateLecture(lect classroom.Lecture) (classroom.Lecture, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.courses[lect.CourseID]; !ok {
		return classroom.Lecture{}, classroom.ErrNotFound
	}
	lect.ID = repo.db.nextID()
	lect.Homeworks = nil
	repo.db.lectures[lect.ID] = &lect
	return lect, nil
}

func (repo *classroomRepository) QueryLecturesByCourse(courseID int) ([]classroom.Lecture, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	lects := make([]classroom.Lecture, 0)
	for _, l := range repo.db.lectures {
		if l.CourseID == courseID {
			lects = append(lects, *l)
		}
	}
	sort.Slice(lects, func(i, j int) bool { return lects[i].ID < lects[j].ID })
	return lects, nil
}

func (repo *classroomRepository) GetLectureByID(id int) (classroom.Lecture, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if l, ok := repo.db.lectures[id]; ok {
		return *l, nil
	}
	return classroom.Lecture{}, classroom.ErrNotFound
}

func (repo *classroomRepository) UpdateLecture(lect classroom.Lecture) (classroom.Lecture, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.lectures[lect.ID]
	if !ok {
		return classroom.Lecture{}, classroom.ErrNotFound
	}
	stored.Title = lect.Title
	stored.Description = lect.Description
	return *stored, nil
}

func (repo *classroomRepository) DeleteLecture(id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lectures[id]; !ok {
		return classroom.ErrNotFound
	}
	repo.deleteLectureTree(id)
	return nil
}

// Homeworks

func (repo *classroomRepository) CreateHomework(hw classroom.Homework) (classroom.Homework, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.lectures[hw.LectureID]; !ok {
		return classroom.Homework{}, classroom.ErrNotFound
	}
	hw.ID = repo.db.nextID()
	repo.db.homeworks[hw.ID] = &hw
	return hw, nil
}

func (repo *classroomRepository) QueryHomeworksByLecture(lectureID int) ([]classroom.Homework, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	hws := make([]classroom.Homework, 0)
	for _, h := range repo.db.homeworks {
		if h.LectureID == lectureID {
			hws = append(hws, *h)
		}
	}
	sort.Slice(hws, func(i, j int) bool { return hws[i].ID < hws[j].ID })
	return hws, nil
}

func (repo *classroomRepository) GetHomeworkByID(id int) (classroom.Homework, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if h, ok := repo.db.homeworks[id]; ok {
		return *h, nil
	}
	return classroom.Homework{}, classroom.ErrNotFound
}

func (repo *classroomRepository) UpdateHomework(hw classroom.Homework) (classroom.Homework, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.homeworks[hw.ID]
	if !ok {
		return classroom.Homework{}, classroom.ErrNotFound
	}
	stored.Title = hw.Title
	stored.Description = hw.Description
	stored.Deadline = hw.Deadline
	return *stored, nil
}

func (repo *classroomRepository) DeleteHomework(id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.homeworks[id]; !ok {
		return classroom.ErrNotFound
	}
	repo.deleteHomeworkTree(id)
	return nil
}

// Solutions

func (repo *classroomRepository) CreateSolution(sol classroom.Solution) (classroom.Solution, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.homeworks[sol.HomeworkID]; !ok {
		return classroom.Solution{}, classroom.ErrNotFound
	}
	for _, s := range repo.db.solutions {
		if s.HomeworkID == sol.HomeworkID && s.Author.ID == sol.Author.ID {
			return classroom.Solution{}, classroom.ErrConflict
		}
	}
	sol.ID = repo.db.nextID()
	sol.Mark = nil
	repo.db.solutions[sol.ID] = &sol
	return sol, nil
}

func (repo *classroomRepository) QuerySolutionsByHomework(homeworkID int) ([]classroom.Solution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sols := make([]classroom.Solution, 0)
	for _, s := range repo.db.solutions {
		if s.HomeworkID == homeworkID {
			sols = append(sols, *s)
		}
	}
	sort.Slice(sols, func(i, j int) bool { return sols[i].ID < sols[j].ID })
	return sols, nil
}

func (repo *classroomRepository) GetSolutionByID(id int) (classroom.Solution, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.solutions[id]; ok {
		return *s, nil
	}
	return classroom.Solution{}, classroom.ErrNotFound
}

func (repo *classroomRepository) SolutionExists(homeworkID, authorID int) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, s := range repo.db.solutions {
		if s.HomeworkID == homeworkID && s.Author.ID == authorID {
			return true, nil
		}
	}
	return false, nil
}

// Marks

func (repo *classroomRepository) CreateMark(mark classroom.Mark) (classroom.Mark, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.solutions[mark.SolutionID]; !ok {
		return classroom.Mark{}, classroom.ErrNotFound
	}
	for _, m := range repo.db.marks {
		if m.SolutionID == mark.SolutionID {
			return classroom.Mark{}, classroom.ErrConflict
		}
	}
	mark.ID = repo.db.nextID()
	mark.Commentaries = nil
	repo.db.marks[mark.ID] = &mark
	return mark, nil
}

func (repo *classroomRepository) GetMarkByID(id int) (classroom.Mark, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if m, ok := repo.db.marks[id]; ok {
		return *m, nil
	}
	return classroom.Mark{}, classroom.ErrNotFound
}

func (repo *classroomRepository) GetMarkBySolutionID(solutionID int) (classroom.Mark, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, m := range repo.db.marks {
		if m.SolutionID == solutionID {
			return *m, nil
		}
	}
	return classroom.Mark{}, classroom.ErrNotFound
}

func (repo *classroomRepository) UpdateMark(mark classroom.Mark) (classroom.Mark, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.marks[mark.ID]
	if !ok {
		return classroom.Mark{}, classroom.ErrNotFound
	}
	stored.Grader = mark.Grader
	stored.Value = mark.Value
	return *stored, nil
}

// Commentaries

func (repo *classroomRepository) CreateCommentary(com classroom.Commentary) (classroom.Commentary, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.marks[com.MarkID]; !ok {
		return classroom.Commentary{}, classroom.ErrNotFound
	}
	com.ID = repo.db.nextID()
	repo.db.commentaries[com.ID] = &com
	return com, nil
}

func (repo *classroomRepository) QueryCommentariesByMark(markID int) ([]classroom.Commentary, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	coms := make([]classroom.Commentary, 0)
	for _, c := range repo.db.commentaries {
		if c.MarkID == markID {
			coms = append(coms, *c)
		}
	}
	sort.Slice(coms, func(i, j int) bool {
		if coms[i].CreatedAt.Equal(coms[j].CreatedAt) {
			return coms[i].ID < coms[j].ID
		}
		return coms[i].CreatedAt.Before(coms[j].CreatedAt)
	})
	return coms, nil
}

// internals; callers hold the appropriate lock

func (repo *classroomRepository) getCourse(id int) (classroom.Course, error) {
	row, ok := repo.db.courses[id]
	if !ok {
		return classroom.Course{}, classroom.ErrNotFound
	}
	return repo.assemble(row), nil
}

func (repo *classroomRepository) courseOfHomework(homeworkID int) (classroom.Course, error) {
	hw, ok := repo.db.homeworks[homeworkID]
	if !ok {
		return classroom.Course{}, classroom.ErrNotFound
	}
	lect, ok := repo.db.lectures[hw.LectureID]
	if !ok {
		return classroom.Course{}, classroom.ErrNotFound
	}
	return repo.getCourse(lect.CourseID)
}

func (repo *classroomRepository) courseOfSolution(solutionID int) (classroom.Course, error) {
	sol, ok := repo.db.solutions[solutionID]
	if !ok {
		return classroom.Course{}, classroom.ErrNotFound
	}
	return repo.courseOfHomework(sol.HomeworkID)
}

func (repo *classroomRepository) assemble(row *courseRow) classroom.Course {
	course := row.course
	course.Teachers = repo.collectUsers(row.teachers)
	course.Students = repo.collectUsers(row.students)
	return course
}

func (repo *classroomRepository) collectUsers(ids map[int]struct{}) []user.User {
	users := make([]user.User, 0, len(ids))
	for id := range ids {
		if u, ok := repo.db.users[id]; ok {
			users = append(users, *u)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users
}

func (repo *classroomRepository) deleteLectureTree(id int) {
	for hid, hw := range repo.db.homeworks {
		if hw.LectureID == id {
			repo.deleteHomeworkTree(hid)
		}
	}
	delete(repo.db.lectures, id)
}

func (repo *classroomRepository) deleteHomeworkTree(id int) {
	for sid, sol := range repo.db.solutions {
		if sol.HomeworkID == id {
			for mid, m := range repo.db.marks {
				if m.SolutionID == sid {
					for cid, c := range repo.db.commentaries {
						if c.MarkID == mid {
							delete(repo.db.commentaries, cid)
						}
					}
					delete(repo.db.marks, mid)
				}
			}
			delete(repo.db.solutions, sid)
		}
	}
	delete(repo.db.homeworks, id)
}
