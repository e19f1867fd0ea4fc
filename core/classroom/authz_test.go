package classroom

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core/user"
)

func boolPtr(b bool) *bool { return &b }

func Test_Expr_Eval_atoms(t *testing.T) {
	teacher := user.User{ID: 1, Username: "prof", Role: user.RoleTeacher}
	student := user.User{ID: 2, Username: "kid", Role: user.RoleStudent}
	outsider := user.User{ID: 3, Username: "out", Role: user.RoleStudent}

	course := Course{
		ID:       1,
		Teachers: []user.User{teacher},
		Students: []user.User{student},
	}
	sol := Solution{ID: 9, Author: student}

	tests := []struct {
		name string
		kind Kind
		ctx  authzContext
		want bool
	}{
		{name: "IsAuthenticated: actor set", kind: IsAuthenticated, ctx: authzContext{actor: &student}, want: true},
		{name: "IsAuthenticated: no actor", kind: IsAuthenticated, ctx: authzContext{}, want: false},
		{name: "IsSafeMethod: safe", kind: IsSafeMethod, ctx: authzContext{safe: true}, want: true},
		{name: "IsSafeMethod: mutating", kind: IsSafeMethod, ctx: authzContext{}, want: false},
		{name: "IsTeacher: teacher", kind: IsTeacher, ctx: authzContext{actor: &teacher}, want: true},
		{name: "IsTeacher: student", kind: IsTeacher, ctx: authzContext{actor: &student}, want: false},
		{name: "IsTeacher: no actor", kind: IsTeacher, ctx: authzContext{}, want: false},
		{name: "IsStudent: student", kind: IsStudent, ctx: authzContext{actor: &student}, want: true},
		{name: "IsStudent: teacher", kind: IsStudent, ctx: authzContext{actor: &teacher}, want: false},
		{name: "IsCourseMember: teacher member", kind: IsCourseMember, ctx: authzContext{actor: &teacher, course: &course}, want: true},
		{name: "IsCourseMember: student member", kind: IsCourseMember, ctx: authzContext{actor: &student, course: &course}, want: true},
		{name: "IsCourseMember: non-member", kind: IsCourseMember, ctx: authzContext{actor: &outsider, course: &course}, want: false},
		{name: "IsCourseMember: no course in context", kind: IsCourseMember, ctx: authzContext{actor: &teacher}, want: false},
		{name: "OwnsSolution: author", kind: OwnsSolution, ctx: authzContext{actor: &student, solution: &sol}, want: true},
		{name: "OwnsSolution: other student", kind: OwnsSolution, ctx: authzContext{actor: &outsider, solution: &sol}, want: false},
		{name: "OwnsSolution: no solution in context", kind: OwnsSolution, ctx: authzContext{actor: &student}, want: false},
		{name: "HasNoSolutionYet: none yet", kind: HasNoSolutionYet, ctx: authzContext{actor: &student, hasOwnSolution: boolPtr(false)}, want: true},
		{name: "HasNoSolutionYet: already submitted", kind: HasNoSolutionYet, ctx: authzContext{actor: &student, hasOwnSolution: boolPtr(true)}, want: false},
		{name: "HasNoSolutionYet: not established", kind: HasNoSolutionYet, ctx: authzContext{actor: &student}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Atom(tt.kind).Eval(tt.ctx))
		})
	}
}

func Test_Expr_Eval_composition(t *testing.T) {
	teacher := user.User{ID: 1, Role: user.RoleTeacher}
	ctx := authzContext{actor: &teacher, safe: true}

	tests := []struct {
		name string
		expr Expr
		want bool
	}{
		{name: "And: all true", expr: And(Atom(IsAuthenticated), Atom(IsTeacher)), want: true},
		{name: "And: one false", expr: And(Atom(IsAuthenticated), Atom(IsStudent)), want: false},
		{name: "Or: first true", expr: Or(Atom(IsTeacher), Atom(IsStudent)), want: true},
		{name: "Or: all false", expr: Or(Atom(IsStudent), Atom(IsCourseMember)), want: false},
		{name: "Not", expr: Not(Atom(IsStudent)), want: true},
		{name: "nested", expr: And(Atom(IsAuthenticated), Or(Atom(IsStudent), And(Atom(IsTeacher), Atom(IsSafeMethod)))), want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.expr.Eval(ctx))
		})
	}
}

func Test_authorize(t *testing.T) {
	teacher := user.User{ID: 1, Role: user.RoleTeacher}
	student := user.User{ID: 2, Role: user.RoleStudent}
	course := Course{ID: 1, Teachers: []user.User{teacher}, Students: []user.User{student}}

	tests := []struct {
		name    string
		expr    Expr
		ctx     authzContext
		wantErr error
	}{
		{name: "no identity short-circuits every policy", expr: courseAccessPolicy, ctx: authzContext{safe: true}, wantErr: ErrUnauthenticated},
		{name: "no identity on manage policy", expr: courseManagePolicy, ctx: authzContext{}, wantErr: ErrUnauthenticated},
		{name: "teacher reads course", expr: courseAccessPolicy, ctx: authzContext{actor: &teacher, safe: true}, wantErr: nil},
		{name: "student reads course", expr: courseAccessPolicy, ctx: authzContext{actor: &student, safe: true}, wantErr: nil},
		{name: "student cannot create course", expr: courseManagePolicy, ctx: authzContext{actor: &student}, wantErr: ErrForbidden},
		{name: "teacher member manages members", expr: memberManagePolicy, ctx: authzContext{actor: &teacher, course: &course}, wantErr: nil},
		{name: "student cannot manage members", expr: memberManagePolicy, ctx: authzContext{actor: &student, course: &course}, wantErr: ErrForbidden},
		{name: "non-member teacher cannot manage members", expr: memberManagePolicy, ctx: authzContext{actor: &user.User{ID: 7, Role: user.RoleTeacher}, course: &course}, wantErr: ErrForbidden},
		{name: "student member reads content", expr: contentAccessPolicy, ctx: authzContext{actor: &student, safe: true, course: &course}, wantErr: nil},
		{name: "student member cannot mutate content", expr: contentAccessPolicy, ctx: authzContext{actor: &student, course: &course}, wantErr: ErrForbidden},
		{
			name:    "student creates first solution",
			expr:    solutionCreatePolicy,
			ctx:     authzContext{actor: &student, course: &course, hasOwnSolution: boolPtr(false)},
			wantErr: nil,
		},
		{
			name:    "second solution is denied",
			expr:    solutionCreatePolicy,
			ctx:     authzContext{actor: &student, course: &course, hasOwnSolution: boolPtr(true)},
			wantErr: ErrForbidden,
		},
		{
			name:    "teacher cannot submit a solution",
			expr:    solutionCreatePolicy,
			ctx:     authzContext{actor: &teacher, course: &course, hasOwnSolution: boolPtr(false)},
			wantErr: ErrForbidden,
		},
		{
			name:    "owner reads own solution",
			expr:    solutionAccessPolicy,
			ctx:     authzContext{actor: &student, safe: true, course: &course, solution: &Solution{Author: student}},
			wantErr: nil,
		},
		{
			name:    "other student cannot read the solution",
			expr:    solutionAccessPolicy,
			ctx:     authzContext{actor: &user.User{ID: 8, Role: user.RoleStudent}, safe: true, course: &course, solution: &Solution{Author: student}},
			wantErr: ErrForbidden,
		},
		{
			name:    "teacher member reads any solution",
			expr:    solutionAccessPolicy,
			ctx:     authzContext{actor: &teacher, safe: true, course: &course, solution: &Solution{Author: student}},
			wantErr: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := authorize(tt.expr, tt.ctx)
			assert.Equal(t, tt.wantErr, err)
		})
	}
}
