// Package inmemdb provides in-memory repositories backing tests and local dev.
package inmemdb

import (
	"sync"

	"github.com/trezcool/academia/core/classroom"
	"github.com/trezcool/academia/core/user"
)

type courseRow struct {
	course   classroom.Course // member/lecture slices left empty; assembled on read
	teachers map[int]struct{}
	students map[int]struct{}
}

type DB struct {
	sync.RWMutex
	seq int

	users        map[int]*user.User
	courses      map[int]*courseRow
	lectures     map[int]*classroom.Lecture
	homeworks    map[int]*classroom.Homework
	solutions    map[int]*classroom.Solution
	marks        map[int]*classroom.Mark
	commentaries map[int]*classroom.Commentary
}

func Open() (*DB, error) {
	return &DB{
		users:        make(map[int]*user.User),
		courses:      make(map[int]*courseRow),
		lectures:     make(map[int]*classroom.Lecture),
		homeworks:    make(map[int]*classroom.Homework),
		solutions:    make(map[int]*classroom.Solution),
		marks:        make(map[int]*classroom.Mark),
		commentaries: make(map[int]*classroom.Commentary),
	}, nil
}

// nextID must be called with the write lock held.
func (db *DB) nextID() int {
	db.seq++
	return db.seq
}
