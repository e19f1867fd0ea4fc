package classroom_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
	inmemdb "github.com/trezcool/academia/storage/database/inmem"
)

type fixture struct {
	svc     *classroom.Service
	usrRepo user.Repository
	repo    classroom.Repository

	teacher  user.User
	student  user.User
	student2 user.User
	outsider user.User // student, not a member

	course   classroom.Course
	lecture  classroom.Lecture
	homework classroom.Homework
}

func newUser(t *testing.T, repo user.Repository, uname, role string) user.User {
	t.Helper()
	usr, err := repo.CreateUser(user.User{
		Username: uname,
		Email:    uname + "@test.cd",
		Role:     role,
		IsActive: true,
	})
	require.NoError(t, err)
	return usr
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := inmemdb.Open()
	require.NoError(t, err)

	f := &fixture{
		usrRepo: inmemdb.NewUserRepository(db),
		repo:    inmemdb.NewClassroomRepository(db),
	}
	f.svc = classroom.NewService(f.repo, f.usrRepo, nil, nil)

	f.teacher = newUser(t, f.usrRepo, "prof", user.RoleTeacher)
	f.student = newUser(t, f.usrRepo, "awe", user.RoleStudent)
	f.student2 = newUser(t, f.usrRepo, "mdr", user.RoleStudent)
	f.outsider = newUser(t, f.usrRepo, "lol", user.RoleStudent)

	f.course, err = f.svc.CreateCourse(&f.teacher, classroom.NewCourse{
		Title:    "Algorithms",
		Students: []string{f.student.Username, f.student2.Username},
	})
	require.NoError(t, err)

	f.lecture, err = f.svc.CreateLecture(&f.teacher, f.course.ID, classroom.NewLecture{Title: "Sorting"})
	require.NoError(t, err)

	f.homework, err = f.svc.CreateHomework(&f.teacher, classroom.PathRef{
		CourseID:  f.course.ID,
		LectureID: f.lecture.ID,
	}, classroom.NewHomework{Title: "Quicksort"})
	require.NoError(t, err)

	return f
}

// otherCourse builds a second, disjoint course tree owned by a fresh teacher.
func (f *fixture) otherCourse(t *testing.T) (classroom.Course, classroom.Lecture, classroom.Homework) {
	t.Helper()
	teacher2 := newUser(t, f.usrRepo, "prof2", user.RoleTeacher)

	course, err := f.svc.CreateCourse(&teacher2, classroom.NewCourse{Title: "Databases"})
	require.NoError(t, err)
	lect, err := f.svc.CreateLecture(&teacher2, course.ID, classroom.NewLecture{Title: "Indexes"})
	require.NoError(t, err)
	hw, err := f.svc.CreateHomework(&teacher2, classroom.PathRef{CourseID: course.ID, LectureID: lect.ID},
		classroom.NewHomework{Title: "B-Trees"})
	require.NoError(t, err)
	return course, lect, hw
}

func (f *fixture) addSolution(t *testing.T, author user.User) classroom.Solution {
	t.Helper()
	sol, err := f.svc.CreateSolution(&author, classroom.PathRef{
		CourseID:   f.course.ID,
		HomeworkID: f.homework.ID,
	}, classroom.NewSolution{Solution: "my answer"})
	require.NoError(t, err)
	return sol
}

func Test_Service_hierarchyResolution(t *testing.T) {
	f := setup(t)
	_, lect2, _ := f.otherCourse(t)

	t.Run("consistent ids resolve", func(t *testing.T) {
		lect, err := f.svc.GetLecture(&f.teacher, classroom.PathRef{CourseID: f.course.ID, LectureID: f.lecture.ID})
		require.NoError(t, err)
		assert.Equal(t, f.lecture.ID, lect.ID)
	})

	t.Run("mismatched ancestor ids are rejected", func(t *testing.T) {
		// lecture belongs to another course; the shallow id must not win
		_, err := f.svc.GetLecture(&f.teacher, classroom.PathRef{CourseID: f.course.ID, LectureID: lect2.ID})
		assert.Equal(t, classroom.ErrAmbiguousHierarchy, err)
	})

	t.Run("dangling id fails resolution", func(t *testing.T) {
		_, err := f.svc.GetLecture(&f.teacher, classroom.PathRef{CourseID: f.course.ID, LectureID: 999})
		assert.Equal(t, classroom.ErrNotFound, err)
	})

	t.Run("unknown course", func(t *testing.T) {
		_, err := f.svc.GetCourse(&f.teacher, 999)
		assert.Equal(t, classroom.ErrNotFound, err)
	})
}

func Test_Service_CreateSolution(t *testing.T) {
	f := setup(t)
	ref := classroom.PathRef{CourseID: f.course.ID, HomeworkID: f.homework.ID}

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := f.svc.CreateSolution(nil, ref, classroom.NewSolution{Solution: "x"})
		assert.Equal(t, classroom.ErrUnauthenticated, err)
	})

	t.Run("member student submits", func(t *testing.T) {
		sol, err := f.svc.CreateSolution(&f.student, ref, classroom.NewSolution{Solution: "sorted"})
		require.NoError(t, err)
		assert.Equal(t, f.student.ID, sol.Author.ID)
		assert.Equal(t, f.homework.ID, sol.HomeworkID)
	})

	t.Run("second submission is denied", func(t *testing.T) {
		_, err := f.svc.CreateSolution(&f.student, ref, classroom.NewSolution{Solution: "again"})
		assert.Equal(t, classroom.ErrForbidden, err)
	})

	t.Run("teacher cannot submit", func(t *testing.T) {
		_, err := f.svc.CreateSolution(&f.teacher, ref, classroom.NewSolution{Solution: "x"})
		assert.Equal(t, classroom.ErrForbidden, err)
	})

	t.Run("non-member student is denied", func(t *testing.T) {
		_, err := f.svc.CreateSolution(&f.outsider, ref, classroom.NewSolution{Solution: "x"})
		assert.Equal(t, classroom.ErrForbidden, err)
	})

	t.Run("homework of another course is an integrity failure", func(t *testing.T) {
		_, _, hw2 := f.otherCourse(t)
		badRef := classroom.PathRef{CourseID: f.course.ID, HomeworkID: hw2.ID}

		_, err := f.svc.CreateSolution(&f.student2, badRef, classroom.NewSolution{Solution: "x"})
		var hierr *classroom.InvalidHierarchyError
		require.ErrorAs(t, err, &hierr)

		// nothing persisted
		sols, err := f.repo.QuerySolutionsByHomework(hw2.ID)
		require.NoError(t, err)
		assert.Empty(t, sols)
	})
}

func Test_Service_solutionVisibility(t *testing.T) {
	f := setup(t)
	sol := f.addSolution(t, f.student)
	ref := classroom.PathRef{CourseID: f.course.ID, HomeworkID: f.homework.ID, SolutionID: sol.ID}

	t.Run("owner reads own solution", func(t *testing.T) {
		got, err := f.svc.GetSolution(&f.student, ref)
		require.NoError(t, err)
		assert.Equal(t, sol.ID, got.ID)
		assert.Nil(t, got.Mark)
	})

	t.Run("another member student is denied", func(t *testing.T) {
		_, err := f.svc.GetSolution(&f.student2, ref)
		assert.Equal(t, classroom.ErrForbidden, err)
	})

	t.Run("teacher reads any solution", func(t *testing.T) {
		_, err := f.svc.GetSolution(&f.teacher, ref)
		assert.NoError(t, err)
	})

	t.Run("listing is scoped per role", func(t *testing.T) {
		f.addSolution(t, f.student2)

		all, err := f.svc.QuerySolutions(&f.teacher, classroom.PathRef{CourseID: f.course.ID, HomeworkID: f.homework.ID})
		require.NoError(t, err)
		assert.Len(t, all, 2)

		own, err := f.svc.QuerySolutions(&f.student, classroom.PathRef{CourseID: f.course.ID, HomeworkID: f.homework.ID})
		require.NoError(t, err)
		require.Len(t, own, 1)
		assert.Equal(t, f.student.ID, own[0].Author.ID)
	})

	t.Run("homework-solutions is teacher only", func(t *testing.T) {
		_, err := f.svc.GetHomeworkSolutions(&f.student, classroom.PathRef{CourseID: f.course.ID, HomeworkID: f.homework.ID})
		assert.Equal(t, classroom.ErrForbidden, err)

		sols, err := f.svc.GetHomeworkSolutions(&f.teacher, classroom.PathRef{CourseID: f.course.ID, HomeworkID: f.homework.ID})
		require.NoError(t, err)
		assert.Len(t, sols, 2)
	})
}

func Test_Service_UpsertMark(t *testing.T) {
	f := setup(t)
	sol := f.addSolution(t, f.student)
	ref := classroom.PathRef{CourseID: f.course.ID, SolutionID: sol.ID}

	mark, created, err := f.svc.UpsertMark(&f.teacher, ref, classroom.NewMark{Value: 7})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 7, mark.Value)
	assert.Equal(t, f.teacher.ID, mark.Grader.ID)

	// re-grading updates in place, it never duplicates
	mark2, created, err := f.svc.UpsertMark(&f.teacher, ref, classroom.NewMark{Value: 9})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, mark.ID, mark2.ID)
	assert.Equal(t, 9, mark2.Value)

	marks, err := f.svc.QueryMarks(&f.teacher, ref)
	require.NoError(t, err)
	require.Len(t, marks, 1)
	assert.Equal(t, 9, marks[0].Value)

	t.Run("idempotent for equal arguments", func(t *testing.T) {
		m1, _, err := f.svc.UpsertMark(&f.teacher, ref, classroom.NewMark{Value: 9})
		require.NoError(t, err)
		m2, _, err := f.svc.UpsertMark(&f.teacher, ref, classroom.NewMark{Value: 9})
		require.NoError(t, err)
		assert.Equal(t, m1.ID, m2.ID)
		assert.Equal(t, m1.Value, m2.Value)
	})

	t.Run("non-owner student cannot grade", func(t *testing.T) {
		_, _, err := f.svc.UpsertMark(&f.student2, ref, classroom.NewMark{Value: 1})
		assert.Equal(t, classroom.ErrForbidden, err)
	})
}

func Test_Service_commentaries(t *testing.T) {
	f := setup(t)
	sol := f.addSolution(t, f.student)
	mark, _, err := f.svc.UpsertMark(&f.teacher, classroom.PathRef{CourseID: f.course.ID, SolutionID: sol.ID}, classroom.NewMark{Value: 5})
	require.NoError(t, err)
	ref := classroom.PathRef{CourseID: f.course.ID, MarkID: mark.ID}

	com, err := f.svc.CreateCommentary(&f.teacher, ref, classroom.NewCommentary{Text: "see chapter 3"})
	require.NoError(t, err)
	assert.Equal(t, mark.ID, com.MarkID)

	// the graded student may respond on their own mark
	_, err = f.svc.CreateCommentary(&f.student, ref, classroom.NewCommentary{Text: "thanks"})
	require.NoError(t, err)

	// another student may not
	_, err = f.svc.CreateCommentary(&f.student2, ref, classroom.NewCommentary{Text: "me too"})
	assert.Equal(t, classroom.ErrForbidden, err)

	coms, err := f.svc.QueryCommentaries(&f.teacher, ref)
	require.NoError(t, err)
	assert.Len(t, coms, 2)
}

func Test_Service_membership(t *testing.T) {
	f := setup(t)

	t.Run("student cannot manage members", func(t *testing.T) {
		_, err := f.svc.AddMember(&f.student, f.course.ID, classroom.NewMember{Username: f.outsider.Username})
		assert.Equal(t, classroom.ErrForbidden, err)
	})

	t.Run("teacher adds a student", func(t *testing.T) {
		course, err := f.svc.AddMember(&f.teacher, f.course.ID, classroom.NewMember{Username: f.outsider.Username})
		require.NoError(t, err)
		assert.True(t, course.HasStudent(f.outsider.ID))
	})

	t.Run("teacher removes a student", func(t *testing.T) {
		course, err := f.svc.RemoveMember(&f.teacher, f.course.ID, classroom.NewMember{Username: f.outsider.Username})
		require.NoError(t, err)
		assert.False(t, course.HasStudent(f.outsider.ID))
	})

	t.Run("teacher members cannot be removed", func(t *testing.T) {
		_, err := f.svc.RemoveMember(&f.teacher, f.course.ID, classroom.NewMember{Username: f.teacher.Username})
		var opErr *classroom.OperationNotAllowedError
		require.ErrorAs(t, err, &opErr)
		assert.Equal(t, "You can't delete Teacher", opErr.Reason)
	})

	t.Run("unknown username is incorrect data", func(t *testing.T) {
		_, err := f.svc.AddMember(&f.teacher, f.course.ID, classroom.NewMember{Username: "ghost"})
		var plErr *classroom.InvalidPayloadError
		require.ErrorAs(t, err, &plErr)
		assert.Equal(t, "Incorrect data", plErr.Reason)

		_, err = f.svc.RemoveMember(&f.teacher, f.course.ID, classroom.NewMember{Username: "ghost"})
		require.ErrorAs(t, err, &plErr)
	})
}

func Test_Service_courseDetail(t *testing.T) {
	f := setup(t)

	course, err := f.svc.GetCourse(&f.student, f.course.ID)
	require.NoError(t, err)
	require.Len(t, course.Lectures, 1)
	require.Len(t, course.Lectures[0].Homeworks, 1)
	assert.Equal(t, f.homework.ID, course.Lectures[0].Homeworks[0].ID)
	assert.True(t, course.HasTeacher(f.teacher.ID))
	assert.True(t, course.HasStudent(f.student.ID))
}

func Test_Service_DeleteCourse_cascades(t *testing.T) {
	f := setup(t)
	sol := f.addSolution(t, f.student)
	mark, _, err := f.svc.UpsertMark(&f.teacher, classroom.PathRef{CourseID: f.course.ID, SolutionID: sol.ID}, classroom.NewMark{Value: 3})
	require.NoError(t, err)
	_, err = f.svc.CreateCommentary(&f.teacher, classroom.PathRef{CourseID: f.course.ID, MarkID: mark.ID}, classroom.NewCommentary{Text: "ok"})
	require.NoError(t, err)

	t.Run("student cannot delete", func(t *testing.T) {
		assert.Equal(t, classroom.ErrForbidden, f.svc.DeleteCourse(&f.student, f.course.ID))
	})

	require.NoError(t, f.svc.DeleteCourse(&f.teacher, f.course.ID))

	_, err = f.repo.GetCourseByID(f.course.ID)
	assert.Equal(t, classroom.ErrNotFound, err)
	_, err = f.repo.GetLectureByID(f.lecture.ID)
	assert.Equal(t, classroom.ErrNotFound, err)
	_, err = f.repo.GetHomeworkByID(f.homework.ID)
	assert.Equal(t, classroom.ErrNotFound, err)
	_, err = f.repo.GetSolutionByID(sol.ID)
	assert.Equal(t, classroom.ErrNotFound, err)
	_, err = f.repo.GetMarkByID(mark.ID)
	assert.Equal(t, classroom.ErrNotFound, err)
}

func Test_Service_courseManagement(t *testing.T) {
	f := setup(t)

	t.Run("creator becomes a teacher member", func(t *testing.T) {
		assert.True(t, f.course.HasTeacher(f.teacher.ID))
	})

	t.Run("student cannot create a course", func(t *testing.T) {
		_, err := f.svc.CreateCourse(&f.student, classroom.NewCourse{Title: "Nope"})
		assert.Equal(t, classroom.ErrForbidden, err)
	})

	t.Run("unknown member username fails validation", func(t *testing.T) {
		_, err := f.svc.CreateCourse(&f.teacher, classroom.NewCourse{Title: "X", Students: []string{"ghost"}})
		assert.Error(t, err)
	})

	t.Run("update", func(t *testing.T) {
		course, err := f.svc.UpdateCourse(&f.teacher, f.course.ID, classroom.UpdateCourse{Title: "Algorithms II"})
		require.NoError(t, err)
		assert.Equal(t, "Algorithms II", course.Title)

		_, err = f.svc.UpdateCourse(&f.student, f.course.ID, classroom.UpdateCourse{Title: "Hax"})
		assert.Equal(t, classroom.ErrForbidden, err)
	})

	t.Run("any authenticated user lists courses", func(t *testing.T) {
		courses, err := f.svc.QueryAllCourses(&f.outsider)
		require.NoError(t, err)
		assert.NotEmpty(t, courses)
	})
}
