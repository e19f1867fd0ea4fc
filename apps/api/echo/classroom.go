package echoapi

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/services/metrics"
)

type classroomApi struct {
	svc     *classroom.Service
	userSvc *user.Service
}

func registerClassroomAPI(app *echo.Echo, jwt echo.MiddlewareFunc, svc *classroom.Service, userSvc *user.Service) {
	api := classroomApi{svc: svc, userSvc: userSvc}

	g := app.Group("", jwt)

	g.GET("/course", api.queryCourses)
	g.POST("/course", api.createCourse)
	g.GET("/course/:courseId", api.retrieveCourse)
	g.PUT("/course/:courseId", api.updateCourse)
	g.PATCH("/course/:courseId", api.updateCourse)
	g.DELETE("/course/:courseId", api.destroyCourse)

	g.POST("/course-add-member/:courseId", api.addMember)
	g.DELETE("/course-delete-member/:courseId", api.removeMember)

	g.GET("/course/:courseId/lecture-create", api.queryLectures)
	g.POST("/course/:courseId/lecture-create", api.createLecture)
	g.GET("/course/:courseId/lecture/:lectureId", api.retrieveLecture)
	g.PUT("/course/:courseId/lecture/:lectureId", api.updateLecture)
	g.DELETE("/course/:courseId/lecture/:lectureId", api.destroyLecture)

	g.GET("/course/:courseId/lecture/:lectureId/homework-create", api.queryHomeworks)
	g.POST("/course/:courseId/lecture/:lectureId/homework-create", api.createHomework)
	g.GET("/course/:courseId/lecture/:lectureId/homework/:homeworkId", api.retrieveHomework)
	g.PUT("/course/:courseId/lecture/:lectureId/homework/:homeworkId", api.updateHomework)
	g.DELETE("/course/:courseId/lecture/:lectureId/homework/:homeworkId", api.destroyHomework)

	g.GET("/course/:courseId/homework-solutions/:homeworkId", api.queryHomeworkSolutions)
	g.GET("/course/:courseId/homework/:homeworkId/solution-add", api.querySolutions)
	g.POST("/course/:courseId/homework/:homeworkId/solution-add", api.createSolution)
	g.GET("/course/:courseId/homework/:homeworkId/solution/:solutionId", api.retrieveSolution)

	g.GET("/course/:courseId/solution/:solutionId/mark-add", api.queryMarks)
	g.POST("/course/:courseId/solution/:solutionId/mark-add", api.upsertMark)
	g.GET("/course/:courseId/solution/:solutionId/mark/:markId", api.retrieveMark)

	g.GET("/course/:courseId/mark/:markId/commentary", api.queryCommentaries)
	g.POST("/course/:courseId/mark/:markId/commentary", api.createCommentary)
}

// actor loads the authenticated user making the request.
func (api *classroomApi) actor(ctx echo.Context) (*user.User, error) {
	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return nil, errors.Wrap(err, "getting context user")
	}
	return &usr, nil
}

// intParam parses a numeric path parameter; a malformed id is indistinguishable
// from a missing entity.
func intParam(ctx echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(ctx.Param(name))
	if err != nil || id <= 0 {
		return 0, classroom.ErrNotFound
	}
	return id, nil
}

func pathRef(ctx echo.Context) (classroom.PathRef, error) {
	var ref classroom.PathRef
	for _, p := range []struct {
		name string
		dst  *int
	}{
		{"courseId", &ref.CourseID},
		{"lectureId", &ref.LectureID},
		{"homeworkId", &ref.HomeworkID},
		{"solutionId", &ref.SolutionID},
		{"markId", &ref.MarkID},
	} {
		if ctx.Param(p.name) == "" {
			continue
		}
		id, err := intParam(ctx, p.name)
		if err != nil {
			return classroom.PathRef{}, err
		}
		*p.dst = id
	}
	return ref, nil
}

// Courses

func (api *classroomApi) queryCourses(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	courses, err := api.svc.QueryAllCourses(actor)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *classroomApi) createCourse(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	var data classroom.NewCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCourse")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	course, err := api.svc.CreateCourse(actor, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, course)
}

func (api *classroomApi) retrieveCourse(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "courseId")
	if err != nil {
		return err
	}
	course, err := api.svc.GetCourse(actor, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *classroomApi) updateCourse(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "courseId")
	if err != nil {
		return err
	}
	var data classroom.UpdateCourse
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateCourse")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	course, err := api.svc.UpdateCourse(actor, id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *classroomApi) destroyCourse(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "courseId")
	if err != nil {
		return err
	}
	if err := api.svc.DeleteCourse(actor, id); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Membership

func (api *classroomApi) addMember(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "courseId")
	if err != nil {
		return err
	}
	var data classroom.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	course, err := api.svc.AddMember(actor, id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, course)
}

func (api *classroomApi) removeMember(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "courseId")
	if err != nil {
		return err
	}
	var data classroom.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	course, err := api.svc.RemoveMember(actor, id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, course)
}

// Lectures

func (api *classroomApi) queryLectures(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "courseId")
	if err != nil {
		return err
	}
	lects, err := api.svc.QueryLectures(actor, id)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lects)
}

func (api *classroomApi) createLecture(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	id, err := intParam(ctx, "courseId")
	if err != nil {
		return err
	}
	var data classroom.NewLecture
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLecture")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	lect, err := api.svc.CreateLecture(actor, id, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, lect)
}

func (api *classroomApi) retrieveLecture(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	lect, err := api.svc.GetLecture(actor, ref)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lect)
}

func (api *classroomApi) updateLecture(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	var data classroom.UpdateLecture
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLecture")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	lect, err := api.svc.UpdateLecture(actor, ref, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, lect)
}

func (api *classroomApi) destroyLecture(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteLecture(actor, ref); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Homeworks

func (api *classroomApi) queryHomeworks(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	hws, err := api.svc.QueryHomeworks(actor, ref)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, hws)
}

func (api *classroomApi) createHomework(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	var data classroom.NewHomework
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewHomework")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	hw, err := api.svc.CreateHomework(actor, ref, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, hw)
}

func (api *classroomApi) retrieveHomework(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	hw, err := api.svc.GetHomework(actor, ref)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, hw)
}

func (api *classroomApi) updateHomework(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	var data classroom.UpdateHomework
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateHomework")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	hw, err := api.svc.UpdateHomework(actor, ref, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, hw)
}

func (api *classroomApi) destroyHomework(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.DeleteHomework(actor, ref); err != nil {
		return err
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Solutions

func (api *classroomApi) queryHomeworkSolutions(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	sols, err := api.svc.GetHomeworkSolutions(actor, ref)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sols)
}

func (api *classroomApi) querySolutions(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	sols, err := api.svc.QuerySolutions(actor, ref)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sols)
}

func (api *classroomApi) createSolution(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	var data classroom.NewSolution
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSolution")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	sol, err := api.svc.CreateSolution(actor, ref, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sol)
}

func (api *classroomApi) retrieveSolution(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	sol, err := api.svc.GetSolution(actor, ref)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, sol)
}

// Marks

func (api *classroomApi) queryMarks(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	marks, err := api.svc.QueryMarks(actor, ref)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, marks)
}

func (api *classroomApi) upsertMark(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	var data classroom.NewMark
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMark")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	mark, created, err := api.svc.UpsertMark(actor, ref, data)
	if err != nil {
		return err
	}
	if created {
		metrics.MarksGraded.WithLabelValues("create").Inc()
		return ctx.JSON(http.StatusCreated, mark)
	}
	metrics.MarksGraded.WithLabelValues("update").Inc()
	return ctx.JSON(http.StatusOK, mark)
}

func (api *classroomApi) retrieveMark(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	mark, err := api.svc.GetMark(actor, ref)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, mark)
}

// Commentaries

func (api *classroomApi) queryCommentaries(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	coms, err := api.svc.QueryCommentaries(actor, ref)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, coms)
}

func (api *classroomApi) createCommentary(ctx echo.Context) error {
	actor, err := api.actor(ctx)
	if err != nil {
		return err
	}
	ref, err := pathRef(ctx)
	if err != nil {
		return err
	}
	var data classroom.NewCommentary
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewCommentary")
	}
	if err := data.Validate(); err != nil {
		return err
	}
	com, err := api.svc.CreateCommentary(actor, ref, data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, com)
}
