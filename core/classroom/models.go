package classroom

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type (
	// Course is the root of the containment tree. Membership (teachers plus
	// students) gates all visibility into the course subtree.
	Course struct {
		ID          int         `json:"id" db:"id"`
		Title       string      `json:"title" db:"title"`
		Description string      `json:"description" db:"description"`
		Teachers    []user.User `json:"teachers" db:"-"`
		Students    []user.User `json:"students" db:"-"`
		Lectures    []Lecture   `json:"lectures,omitempty" db:"-"` // populated on detail reads
		CreatedAt   time.Time   `json:"created_at" db:"created_at"` // UTC
	}

	Lecture struct {
		ID          int        `json:"id" db:"id"`
		CourseID    int        `json:"-" db:"course_id"`
		Title       string     `json:"title" db:"title"`
		Description string     `json:"description" db:"description"`
		Attachment  string     `json:"file,omitempty" db:"attachment"` // storage ref; blob upload handled elsewhere
		Homeworks   []Homework `json:"homeworks,omitempty" db:"-"`
		CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	}

	Homework struct {
		ID          int       `json:"id" db:"id"`
		LectureID   int       `json:"-" db:"lecture_id"`
		Title       string    `json:"title" db:"title"`
		Description string    `json:"description" db:"description"`
		Deadline    null.Time `json:"deadline" db:"deadline"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
	}

	Solution struct {
		ID         int       `json:"id" db:"id"`
		HomeworkID int       `json:"-" db:"homework_id"`
		Author     user.User `json:"user" db:"author"`
		Solution   string    `json:"solution" db:"solution"`
		Mark       *Mark     `json:"mark,omitempty" db:"-"`
		CreatedAt  time.Time `json:"created_at" db:"created_at"`
	}

	// Mark is the singleton child of a Solution; re-grading updates it in place.
	Mark struct {
		ID           int          `json:"id" db:"id"`
		SolutionID   int          `json:"-" db:"solution_id"`
		Grader       user.User    `json:"grader" db:"grader"`
		Value        int          `json:"value" db:"value"`
		Commentaries []Commentary `json:"commentaries,omitempty" db:"-"`
	}

	Commentary struct {
		ID        int       `json:"id" db:"id"`
		MarkID    int       `json:"-" db:"mark_id"`
		Author    user.User `json:"user" db:"author"`
		Text      string    `json:"text" db:"text"`
		CreatedAt time.Time `json:"created_at" db:"created_at"` // ordering key
	}
)

// HasMember reports whether usr belongs to the member set matching its role,
// mirroring the role-specific membership check of the access rules.
func (c Course) HasMember(usr user.User) bool {
	switch usr.Role {
	case user.RoleTeacher:
		return c.HasTeacher(usr.ID)
	case user.RoleStudent:
		return c.HasStudent(usr.ID)
	}
	return false
}

func (c Course) HasTeacher(userID int) bool {
	for _, t := range c.Teachers {
		if t.ID == userID {
			return true
		}
	}
	return false
}

func (c Course) HasStudent(userID int) bool {
	for _, s := range c.Students {
		if s.ID == userID {
			return true
		}
	}
	return false
}

// PathRef carries the ancestor ids extracted from a request path.
// A zero field means the id was not supplied.
type PathRef struct {
	CourseID   int
	LectureID  int
	HomeworkID int
	SolutionID int
	MarkID     int
}

// Payloads

type NewCourse struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	Teachers    []string `json:"teachers"` // usernames; the creator is always added
	Students    []string `json:"students"` // usernames
}

func (nc *NewCourse) Validate() error {
	nc.Title = core.CleanString(nc.Title)
	return core.Validate.Struct(nc)
}

type UpdateCourse struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

func (uc *UpdateCourse) Validate() error {
	uc.Title = core.CleanString(uc.Title)
	return core.Validate.Struct(uc)
}

type NewMember struct {
	Username string `json:"username" validate:"required"`
}

func (nm *NewMember) Validate() error {
	nm.Username = core.CleanString(nm.Username, true /* lower */)
	return core.Validate.Struct(nm)
}

type NewLecture struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Attachment  string `json:"file"` // original filename; stored under a generated ref
}

func (nl *NewLecture) Validate() error {
	nl.Title = core.CleanString(nl.Title)
	return core.Validate.Struct(nl)
}

type UpdateLecture struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

func (ul *UpdateLecture) Validate() error {
	ul.Title = core.CleanString(ul.Title)
	return core.Validate.Struct(ul)
}

type NewHomework struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Deadline    null.Time `json:"deadline"`
}

func (nh *NewHomework) Validate() error {
	nh.Title = core.CleanString(nh.Title)
	return core.Validate.Struct(nh)
}

type UpdateHomework struct {
	Title       string    `json:"title" validate:"required"`
	Description string    `json:"description"`
	Deadline    null.Time `json:"deadline"`
}

func (uh *UpdateHomework) Validate() error {
	uh.Title = core.CleanString(uh.Title)
	return core.Validate.Struct(uh)
}

type NewSolution struct {
	Solution string `json:"solution" validate:"required"`
}

func (ns *NewSolution) Validate() error {
	ns.Solution = core.CleanString(ns.Solution)
	return core.Validate.Struct(ns)
}

type NewMark struct {
	Value int `json:"value" validate:"gte=0,lte=10"`
}

func (nm *NewMark) Validate() error {
	return core.Validate.Struct(nm)
}

type NewCommentary struct {
	Text string `json:"text" validate:"required"`
}

func (nc *NewCommentary) Validate() error {
	nc.Text = core.CleanString(nc.Text)
	return core.Validate.Struct(nc)
}
