package classroom

import "github.com/trezcool/academia/core/user"

// Atomic checks. Each is a pure function of the evaluation context;
// an atom whose context is missing evaluates false, it never errors.
type Kind int

const (
	IsAuthenticated Kind = iota
	IsSafeMethod
	IsTeacher
	IsStudent
	IsCourseMember
	OwnsSolution
	HasNoSolutionYet
)

type exprOp int

const (
	opAtom exprOp = iota
	opAnd
	opOr
	opNot
)

// Expr is an authorization expression tree. Composition keeps the
// short-circuit order explicit and testable away from the HTTP edge.
type Expr struct {
	op   exprOp
	kind Kind
	subs []Expr
}

func Atom(k Kind) Expr      { return Expr{op: opAtom, kind: k} }
func And(subs ...Expr) Expr { return Expr{op: opAnd, subs: subs} }
func Or(subs ...Expr) Expr  { return Expr{op: opOr, subs: subs} }
func Not(sub Expr) Expr     { return Expr{op: opNot, subs: []Expr{sub}} }

// authzContext carries everything the atoms may look at. It is assembled per
// operation by the service; no ambient request state is consulted.
type authzContext struct {
	actor    *user.User
	safe     bool // non-mutating read
	course   *Course
	solution *Solution

	// hasOwnSolution reports whether the actor already submitted a solution for
	// the target homework; nil when the operation did not establish it.
	hasOwnSolution *bool
}

// Eval interprets the expression against ctx. And/Or short-circuit.
func (e Expr) Eval(ctx authzContext) bool {
	switch e.op {
	case opAnd:
		for _, sub := range e.subs {
			if !sub.Eval(ctx) {
				return false
			}
		}
		return true
	case opOr:
		for _, sub := range e.subs {
			if sub.Eval(ctx) {
				return true
			}
		}
		return false
	case opNot:
		return !e.subs[0].Eval(ctx)
	}

	switch e.kind {
	case IsAuthenticated:
		return ctx.actor != nil
	case IsSafeMethod:
		return ctx.safe
	case IsTeacher:
		return ctx.actor != nil && ctx.actor.IsTeacher()
	case IsStudent:
		return ctx.actor != nil && ctx.actor.IsStudent()
	case IsCourseMember:
		return ctx.actor != nil && ctx.course != nil && ctx.course.HasMember(*ctx.actor)
	case OwnsSolution:
		return ctx.actor != nil && ctx.solution != nil && ctx.solution.Author.ID == ctx.actor.ID
	case HasNoSolutionYet:
		return ctx.hasOwnSolution != nil && !*ctx.hasOwnSolution
	}
	return false
}

// Per-operation authorization expressions.
var (
	// read course / list
	courseAccessPolicy = And(Atom(IsAuthenticated), Or(Atom(IsTeacher), Atom(IsSafeMethod)))
	// create/modify/delete course
	courseManagePolicy = And(Atom(IsAuthenticated), Atom(IsTeacher))
	// add/remove course member, create lecture/homework, list homework solutions
	memberManagePolicy = And(Atom(IsAuthenticated), Atom(IsCourseMember), Atom(IsTeacher))
	// read/modify lecture, homework
	contentAccessPolicy = And(Atom(IsAuthenticated), Atom(IsCourseMember), Or(Atom(IsTeacher), Atom(IsSafeMethod)))
	// create solution
	solutionCreatePolicy = And(Atom(IsAuthenticated), Atom(IsStudent), Atom(IsCourseMember), Atom(HasNoSolutionYet))
	// read solution / mark; create mark / commentary
	solutionAccessPolicy = And(
		Atom(IsAuthenticated),
		Atom(IsCourseMember),
		Or(Atom(IsTeacher), And(Atom(IsStudent), Atom(OwnsSolution))),
	)
)

// authorize evaluates expr against ctx. A missing identity short-circuits to
// ErrUnauthenticated before any other check.
func authorize(expr Expr, ctx authzContext) error {
	if ctx.actor == nil {
		return ErrUnauthenticated
	}
	if !expr.Eval(ctx) {
		return ErrForbidden
	}
	return nil
}
