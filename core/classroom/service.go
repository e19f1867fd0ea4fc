package classroom

import (
	"fmt"
	"net/mail"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type (
	Repository interface {
		// courses
		CreateCourse(course Course) (Course, error)
		QueryAllCourses() ([]Course, error)
		GetCourseByID(id int) (Course, error)
		GetCourseOfLecture(lectureID int) (Course, error)
		GetCourseOfHomework(homeworkID int) (Course, error)
		GetCourseOfSolution(solutionID int) (Course, error)
		GetCourseOfMark(markID int) (Course, error)
		UpdateCourse(course Course) (Course, error)
		// DeleteCourse removes the course and its whole subtree in one transaction.
		DeleteCourse(id int) error

		// membership; each mutation is a single atomic unit
		AddCourseTeacher(courseID, userID int) error
		AddCourseStudent(courseID, userID int) error
		RemoveCourseStudent(courseID, userID int) error

		// lectures
		CreateLecture(lect Lecture) (Lecture, error)
		QueryLecturesByCourse(courseID int) ([]Lecture, error)
		GetLectureByID(id int) (Lecture, error)
		UpdateLecture(lect Lecture) (Lecture, error)
		DeleteLecture(id int) error

		// homeworks
		CreateHomework(hw Homework) (Homework, error)
		QueryHomeworksByLecture(lectureID int) ([]Homework, error)
		GetHomeworkByID(id int) (Homework, error)
		UpdateHomework(hw Homework) (Homework, error)
		DeleteHomework(id int) error

		// solutions; CreateSolution returns ErrConflict when the (homework, author)
		// uniqueness constraint is violated
		CreateSolution(sol Solution) (Solution, error)
		QuerySolutionsByHomework(homeworkID int) ([]Solution, error)
		GetSolutionByID(id int) (Solution, error)
		SolutionExists(homeworkID, authorID int) (bool, error)

		// marks; CreateMark returns ErrConflict when the solution already has one
		CreateMark(mark Mark) (Mark, error)
		GetMarkByID(id int) (Mark, error)
		GetMarkBySolutionID(solutionID int) (Mark, error)
		UpdateMark(mark Mark) (Mark, error)

		// commentaries
		CreateCommentary(com Commentary) (Commentary, error)
		QueryCommentariesByMark(markID int) ([]Commentary, error)
	}

	Service struct {
		repo    Repository
		users   user.Repository
		mailSvc core.EmailService
		log     core.Logger
	}
)

func NewService(repo Repository, users user.Repository, mailSvc core.EmailService, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, mailSvc: mailSvc, log: logger}
}

// resolve locates the course for ref and reports ambiguities as anomalies.
func (svc *Service) resolve(ref PathRef) (Course, error) {
	course, err := svc.resolveCourse(ref)
	if err == ErrAmbiguousHierarchy && svc.log != nil {
		svc.log.Warn(fmt.Sprintf("hierarchy anomaly: inconsistent ancestor ids %+v", ref))
	}
	return course, err
}

// Courses

func (svc *Service) QueryAllCourses(actor *user.User) ([]Course, error) {
	if err := authorize(courseAccessPolicy, authzContext{actor: actor, safe: true}); err != nil {
		return nil, err
	}
	return svc.repo.QueryAllCourses()
}

func (svc *Service) GetCourse(actor *user.User, courseID int) (Course, error) {
	course, err := svc.resolve(PathRef{CourseID: courseID})
	if err != nil {
		return Course{}, err
	}
	if err := authorize(courseAccessPolicy, authzContext{actor: actor, safe: true, course: &course}); err != nil {
		return Course{}, err
	}
	return svc.courseDetail(course)
}

func (svc *Service) CreateCourse(actor *user.User, nc NewCourse) (Course, error) {
	if err := authorize(courseManagePolicy, authzContext{actor: actor}); err != nil {
		return Course{}, err
	}

	teachers, err := svc.membersByUsername("teachers", nc.Teachers, user.RoleTeacher)
	if err != nil {
		return Course{}, err
	}
	students, err := svc.membersByUsername("students", nc.Students, user.RoleStudent)
	if err != nil {
		return Course{}, err
	}
	// the creator always becomes the first teacher-member
	if !hasUser(teachers, actor.ID) {
		teachers = append([]user.User{*actor}, teachers...)
	}

	course := Course{
		Title:       nc.Title,
		Description: nc.Description,
		Teachers:    teachers,
		Students:    students,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreateCourse(course)
}

func (svc *Service) UpdateCourse(actor *user.User, courseID int, uc UpdateCourse) (Course, error) {
	course, err := svc.resolve(PathRef{CourseID: courseID})
	if err != nil {
		return Course{}, err
	}
	if err := authorize(courseManagePolicy, authzContext{actor: actor, course: &course}); err != nil {
		return Course{}, err
	}
	course.Title = uc.Title
	course.Description = uc.Description
	return svc.repo.UpdateCourse(course)
}

func (svc *Service) DeleteCourse(actor *user.User, courseID int) error {
	course, err := svc.resolve(PathRef{CourseID: courseID})
	if err != nil {
		return err
	}
	if err := authorize(courseManagePolicy, authzContext{actor: actor, course: &course}); err != nil {
		return err
	}
	return svc.repo.DeleteCourse(course.ID)
}

// Membership

func (svc *Service) AddMember(actor *user.User, courseID int, nm NewMember) (Course, error) {
	course, err := svc.resolve(PathRef{CourseID: courseID})
	if err != nil {
		return Course{}, err
	}
	if err := authorize(memberManagePolicy, authzContext{actor: actor, course: &course}); err != nil {
		return Course{}, err
	}

	usr, err := svc.users.GetUserByUsername(nm.Username)
	if err != nil {
		if err == user.ErrNotFound {
			return Course{}, ErrIncorrectMemberData
		}
		return Course{}, err
	}
	switch usr.Role {
	case user.RoleTeacher:
		err = svc.repo.AddCourseTeacher(course.ID, usr.ID)
	case user.RoleStudent:
		err = svc.repo.AddCourseStudent(course.ID, usr.ID)
	default:
		return Course{}, ErrIncorrectMemberData
	}
	if err != nil {
		return Course{}, err
	}
	return svc.repo.GetCourseByID(course.ID)
}

func (svc *Service) RemoveMember(actor *user.User, courseID int, nm NewMember) (Course, error) {
	course, err := svc.resolve(PathRef{CourseID: courseID})
	if err != nil {
		return Course{}, err
	}
	if err := authorize(memberManagePolicy, authzContext{actor: actor, course: &course}); err != nil {
		return Course{}, err
	}

	usr, err := svc.users.GetUserByUsername(nm.Username)
	if err != nil {
		if err == user.ErrNotFound {
			return Course{}, ErrIncorrectMemberData
		}
		return Course{}, err
	}
	switch usr.Role {
	case user.RoleTeacher:
		return Course{}, ErrTeacherRemoval
	case user.RoleStudent:
		if err := svc.repo.RemoveCourseStudent(course.ID, usr.ID); err != nil {
			return Course{}, err
		}
	default:
		return Course{}, ErrIncorrectMemberData
	}
	return svc.repo.GetCourseByID(course.ID)
}

// Lectures

func (svc *Service) QueryLectures(actor *user.User, courseID int) ([]Lecture, error) {
	course, err := svc.resolve(PathRef{CourseID: courseID})
	if err != nil {
		return nil, err
	}
	if err := authorize(contentAccessPolicy, authzContext{actor: actor, safe: true, course: &course}); err != nil {
		return nil, err
	}
	return svc.repo.QueryLecturesByCourse(course.ID)
}

func (svc *Service) CreateLecture(actor *user.User, courseID int, nl NewLecture) (Lecture, error) {
	course, err := svc.resolve(PathRef{CourseID: courseID})
	if err != nil {
		return Lecture{}, err
	}
	if err := authorize(memberManagePolicy, authzContext{actor: actor, course: &course}); err != nil {
		return Lecture{}, err
	}

	lect := Lecture{
		CourseID:    course.ID,
		Title:       nl.Title,
		Description: nl.Description,
		CreatedAt:   time.Now().UTC(),
	}
	if nl.Attachment != "" {
		lect.Attachment = uuid.New().String() + filepath.Ext(nl.Attachment)
	}
	return svc.repo.CreateLecture(lect)
}

func (svc *Service) GetLecture(actor *user.User, ref PathRef) (Lecture, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return Lecture{}, err
	}
	if err := authorize(contentAccessPolicy, authzContext{actor: actor, safe: true, course: &course}); err != nil {
		return Lecture{}, err
	}
	lect, err := svc.repo.GetLectureByID(ref.LectureID)
	if err != nil {
		return Lecture{}, err
	}
	lect.Homeworks, err = svc.repo.QueryHomeworksByLecture(lect.ID)
	return lect, err
}

func (svc *Service) UpdateLecture(actor *user.User, ref PathRef, ul UpdateLecture) (Lecture, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return Lecture{}, err
	}
	if err := authorize(contentAccessPolicy, authzContext{actor: actor, course: &course}); err != nil {
		return Lecture{}, err
	}
	lect, err := svc.repo.GetLectureByID(ref.LectureID)
	if err != nil {
		return Lecture{}, err
	}
	lect.Title = ul.Title
	lect.Description = ul.Description
	return svc.repo.UpdateLecture(lect)
}

func (svc *Service) DeleteLecture(actor *user.User, ref PathRef) error {
	course, err := svc.resolve(ref)
	if err != nil {
		return err
	}
	if err := authorize(contentAccessPolicy, authzContext{actor: actor, course: &course}); err != nil {
		return err
	}
	return svc.repo.DeleteLecture(ref.LectureID)
}

// Homeworks

func (svc *Service) QueryHomeworks(actor *user.User, ref PathRef) ([]Homework, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return nil, err
	}
	if err := authorize(contentAccessPolicy, authzContext{actor: actor, safe: true, course: &course}); err != nil {
		return nil, err
	}
	return svc.repo.QueryHomeworksByLecture(ref.LectureID)
}

func (svc *Service) CreateHomework(actor *user.User, ref PathRef, nh NewHomework) (Homework, error) {
	course, err := svc.resolve(PathRef{CourseID: ref.CourseID})
	if err != nil {
		return Homework{}, err
	}
	if err := authorize(memberManagePolicy, authzContext{actor: actor, course: &course}); err != nil {
		return Homework{}, err
	}
	if err := svc.validateParentage(course.ID, "lecture", ref.LectureID, svc.repo.GetCourseOfLecture); err != nil {
		return Homework{}, err
	}

	hw := Homework{
		LectureID:   ref.LectureID,
		Title:       nh.Title,
		Description: nh.Description,
		Deadline:    nh.Deadline,
		CreatedAt:   time.Now().UTC(),
	}
	return svc.repo.CreateHomework(hw)
}

func (svc *Service) GetHomework(actor *user.User, ref PathRef) (Homework, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return Homework{}, err
	}
	if err := authorize(contentAccessPolicy, authzContext{actor: actor, safe: true, course: &course}); err != nil {
		return Homework{}, err
	}
	return svc.repo.GetHomeworkByID(ref.HomeworkID)
}

func (svc *Service) UpdateHomework(actor *user.User, ref PathRef, uh UpdateHomework) (Homework, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return Homework{}, err
	}
	if err := authorize(contentAccessPolicy, authzContext{actor: actor, course: &course}); err != nil {
		return Homework{}, err
	}
	hw, err := svc.repo.GetHomeworkByID(ref.HomeworkID)
	if err != nil {
		return Homework{}, err
	}
	hw.Title = uh.Title
	hw.Description = uh.Description
	hw.Deadline = uh.Deadline
	return svc.repo.UpdateHomework(hw)
}

func (svc *Service) DeleteHomework(actor *user.User, ref PathRef) error {
	course, err := svc.resolve(ref)
	if err != nil {
		return err
	}
	if err := authorize(contentAccessPolicy, authzContext{actor: actor, course: &course}); err != nil {
		return err
	}
	return svc.repo.DeleteHomework(ref.HomeworkID)
}

// Solutions

// GetHomeworkSolutions returns all solutions submitted for a homework,
// each with its mark attached. Teachers only.
func (svc *Service) GetHomeworkSolutions(actor *user.User, ref PathRef) ([]Solution, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return nil, err
	}
	if err := authorize(memberManagePolicy, authzContext{actor: actor, course: &course}); err != nil {
		return nil, err
	}
	sols, err := svc.repo.QuerySolutionsByHomework(ref.HomeworkID)
	if err != nil {
		return nil, err
	}
	return svc.attachMarks(sols)
}

// QuerySolutions lists the solutions visible to the actor for a homework:
// every solution for teachers, their own for students.
func (svc *Service) QuerySolutions(actor *user.User, ref PathRef) ([]Solution, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return nil, err
	}
	if err := authorize(contentAccessPolicy, authzContext{actor: actor, safe: true, course: &course}); err != nil {
		return nil, err
	}
	sols, err := svc.repo.QuerySolutionsByHomework(ref.HomeworkID)
	if err != nil {
		return nil, err
	}
	if actor.IsStudent() {
		own := sols[:0]
		for _, s := range sols {
			if s.Author.ID == actor.ID {
				own = append(own, s)
			}
		}
		sols = own
	}
	return svc.attachMarks(sols)
}

func (svc *Service) CreateSolution(actor *user.User, ref PathRef, ns NewSolution) (Solution, error) {
	course, err := svc.resolve(PathRef{CourseID: ref.CourseID})
	if err != nil {
		return Solution{}, err
	}

	ctx := authzContext{actor: actor, course: &course}
	if actor != nil {
		exists, err := svc.repo.SolutionExists(ref.HomeworkID, actor.ID)
		if err != nil {
			return Solution{}, err
		}
		ctx.hasOwnSolution = &exists
	}
	if err := authorize(solutionCreatePolicy, ctx); err != nil {
		return Solution{}, err
	}
	if err := svc.validateParentage(course.ID, "homework", ref.HomeworkID, svc.repo.GetCourseOfHomework); err != nil {
		return Solution{}, err
	}

	sol := Solution{
		HomeworkID: ref.HomeworkID,
		Author:     *actor,
		Solution:   ns.Solution,
		CreatedAt:  time.Now().UTC(),
	}
	return svc.repo.CreateSolution(sol)
}

func (svc *Service) GetSolution(actor *user.User, ref PathRef) (Solution, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return Solution{}, err
	}
	sol, err := svc.repo.GetSolutionByID(ref.SolutionID)
	if err != nil {
		return Solution{}, err
	}
	if err := authorize(solutionAccessPolicy, authzContext{actor: actor, safe: true, course: &course, solution: &sol}); err != nil {
		return Solution{}, err
	}
	return svc.solutionDetail(sol)
}

// Marks

// UpsertMark implements the singleton-mark semantics: the first write creates
// the mark, any further write re-grades it in place (value and grader). The
// storage layer guards the create with a uniqueness constraint; a lost race
// surfaces as ErrConflict and the coordinator retries the update path once.
func (svc *Service) UpsertMark(actor *user.User, ref PathRef, nm NewMark) (Mark, bool, error) {
	course, err := svc.resolve(PathRef{CourseID: ref.CourseID})
	if err != nil {
		return Mark{}, false, err
	}
	sol, err := svc.repo.GetSolutionByID(ref.SolutionID)
	if err != nil {
		return Mark{}, false, err
	}
	if err := authorize(solutionAccessPolicy, authzContext{actor: actor, course: &course, solution: &sol}); err != nil {
		return Mark{}, false, err
	}
	if err := svc.validateParentage(course.ID, "solution", sol.ID, svc.repo.GetCourseOfSolution); err != nil {
		return Mark{}, false, err
	}

	if mark, err := svc.repo.GetMarkBySolutionID(sol.ID); err == nil {
		mark.Grader = *actor
		mark.Value = nm.Value
		mark, err = svc.repo.UpdateMark(mark)
		return mark, false, err
	} else if err != ErrNotFound {
		return Mark{}, false, err
	}

	mark, err := svc.repo.CreateMark(Mark{SolutionID: sol.ID, Grader: *actor, Value: nm.Value})
	if err == ErrConflict {
		// lost the create race; re-read and update instead
		mark, err = svc.repo.GetMarkBySolutionID(sol.ID)
		if err != nil {
			return Mark{}, false, ErrConflict
		}
		mark.Grader = *actor
		mark.Value = nm.Value
		mark, err = svc.repo.UpdateMark(mark)
		return mark, false, err
	}
	if err != nil {
		return Mark{}, false, err
	}
	svc.sendMarkEmail(sol, course, mark)
	return mark, true, nil
}

// QueryMarks returns the solution's mark as a (zero- or one-element) list.
func (svc *Service) QueryMarks(actor *user.User, ref PathRef) ([]Mark, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return nil, err
	}
	sol, err := svc.repo.GetSolutionByID(ref.SolutionID)
	if err != nil {
		return nil, err
	}
	if err := authorize(solutionAccessPolicy, authzContext{actor: actor, safe: true, course: &course, solution: &sol}); err != nil {
		return nil, err
	}

	mark, err := svc.repo.GetMarkBySolutionID(sol.ID)
	if err == ErrNotFound {
		return []Mark{}, nil
	}
	if err != nil {
		return nil, err
	}
	mark, err = svc.markDetail(mark)
	if err != nil {
		return nil, err
	}
	return []Mark{mark}, nil
}

func (svc *Service) GetMark(actor *user.User, ref PathRef) (Mark, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return Mark{}, err
	}
	mark, err := svc.repo.GetMarkByID(ref.MarkID)
	if err != nil {
		return Mark{}, err
	}
	sol, err := svc.repo.GetSolutionByID(mark.SolutionID)
	if err != nil {
		return Mark{}, err
	}
	if err := authorize(solutionAccessPolicy, authzContext{actor: actor, safe: true, course: &course, solution: &sol}); err != nil {
		return Mark{}, err
	}
	return svc.markDetail(mark)
}

// Commentaries

func (svc *Service) QueryCommentaries(actor *user.User, ref PathRef) ([]Commentary, error) {
	course, err := svc.resolve(ref)
	if err != nil {
		return nil, err
	}
	mark, err := svc.repo.GetMarkByID(ref.MarkID)
	if err != nil {
		return nil, err
	}
	sol, err := svc.repo.GetSolutionByID(mark.SolutionID)
	if err != nil {
		return nil, err
	}
	if err := authorize(solutionAccessPolicy, authzContext{actor: actor, safe: true, course: &course, solution: &sol}); err != nil {
		return nil, err
	}
	return svc.repo.QueryCommentariesByMark(mark.ID)
}

func (svc *Service) CreateCommentary(actor *user.User, ref PathRef, nc NewCommentary) (Commentary, error) {
	course, err := svc.resolve(PathRef{CourseID: ref.CourseID})
	if err != nil {
		return Commentary{}, err
	}
	mark, err := svc.repo.GetMarkByID(ref.MarkID)
	if err != nil {
		return Commentary{}, err
	}
	sol, err := svc.repo.GetSolutionByID(mark.SolutionID)
	if err != nil {
		return Commentary{}, err
	}
	if err := authorize(solutionAccessPolicy, authzContext{actor: actor, course: &course, solution: &sol}); err != nil {
		return Commentary{}, err
	}
	if err := svc.validateParentage(course.ID, "mark", mark.ID, svc.repo.GetCourseOfMark); err != nil {
		return Commentary{}, err
	}

	com := Commentary{
		MarkID:    mark.ID,
		Author:    *actor,
		Text:      nc.Text,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateCommentary(com)
}

// helpers

func (svc *Service) courseDetail(course Course) (Course, error) {
	lects, err := svc.repo.QueryLecturesByCourse(course.ID)
	if err != nil {
		return Course{}, err
	}
	for i := range lects {
		lects[i].Homeworks, err = svc.repo.QueryHomeworksByLecture(lects[i].ID)
		if err != nil {
			return Course{}, err
		}
	}
	course.Lectures = lects
	return course, nil
}

func (svc *Service) solutionDetail(sol Solution) (Solution, error) {
	mark, err := svc.repo.GetMarkBySolutionID(sol.ID)
	switch err {
	case nil:
		mark, err = svc.markDetail(mark)
		if err != nil {
			return Solution{}, err
		}
		sol.Mark = &mark
	case ErrNotFound:
	default:
		return Solution{}, err
	}
	return sol, nil
}

func (svc *Service) markDetail(mark Mark) (Mark, error) {
	coms, err := svc.repo.QueryCommentariesByMark(mark.ID)
	if err != nil {
		return Mark{}, err
	}
	mark.Commentaries = coms
	return mark, nil
}

func (svc *Service) attachMarks(sols []Solution) ([]Solution, error) {
	for i := range sols {
		var err error
		sols[i], err = svc.solutionDetail(sols[i])
		if err != nil {
			return nil, err
		}
	}
	return sols, nil
}

func (svc *Service) membersByUsername(field string, unames []string, role string) ([]user.User, error) {
	members := make([]user.User, 0, len(unames))
	for _, uname := range unames {
		usr, err := svc.users.GetUserByUsername(core.CleanString(uname, true /* lower */))
		if err != nil || usr.Role != role {
			return nil, core.NewValidationError(err, core.FieldError{
				Field: field,
				Error: fmt.Sprintf("no %s with username %q", role, uname),
			})
		}
		members = append(members, usr)
	}
	return members, nil
}

func (svc *Service) sendMarkEmail(sol Solution, course Course, mark Mark) {
	if svc.mailSvc == nil || sol.Author.Email == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: sol.Author.Name, Address: sol.Author.Email}},
		Subject: "Your solution has been graded",
		BodyStr: fmt.Sprintf("Your solution in %q was graded %d by %s.", course.Title, mark.Value, mark.Grader.Username),
	})
}

func hasUser(users []user.User, id int) bool {
	for _, u := range users {
		if u.ID == id {
			return true
		}
	}
	return false
}
