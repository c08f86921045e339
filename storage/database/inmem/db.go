// Package inmemdb keeps every entity in memory, behind a single RWMutex.
// It backs the tests and the `memory` database engine.
package inmemdb

import (
	"sort"
	"sync"

	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/core/board"
	"github.com/trezcool/darasa/core/school"
)

type (
	DB struct {
		mu   sync.RWMutex
		data *tables
	}

	tables struct {
		seq       uint64
		schools   table[school.School]
		classes   table[academic.Class]
		subjects  table[academic.Subject]
		teachers  table[academic.Teacher]
		students  table[academic.Student]
		notices   table[board.Notice]
		complains table[board.Complain]

		undo []func() // set while a transaction runs
	}

	table[T any] map[string]row[T]

	row[T any] struct {
		seq uint64 // insertion order
		val T
	}
)

func Open() *DB {
	return &DB{data: &tables{
		schools:   table[school.School]{},
		classes:   table[academic.Class]{},
		subjects:  table[academic.Subject]{},
		teachers:  table[academic.Teacher]{},
		students:  table[academic.Student]{},
		notices:   table[board.Notice]{},
		complains: table[board.Complain]{},
	}}
}

// view runs fn on the committed tables under a read lock.
func (db *DB) view(fn func(t *tables) error) error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return fn(db.data)
}

// update runs a single write; a failing fn leaves no partial write behind.
func (db *DB) update(fn func(t *tables) error) error {
	return db.transact(fn)
}

// transact runs fn on the tables under the write lock, journaling every row it touches.
// When fn fails the journal is replayed backwards and the tables are left as they were.
func (db *DB) transact(fn func(t *tables) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	t := db.data
	seq := t.seq
	t.undo = []func(){}
	err := fn(t)
	if err != nil {
		for i := len(t.undo) - 1; i >= 0; i-- {
			t.undo[i]()
		}
		t.seq = seq
	}
	t.undo = nil
	return err
}

func (t *tables) journal(undo func()) {
	if t.undo != nil {
		t.undo = append(t.undo, undo)
	}
}

func (t *tables) nextSeq() uint64 {
	t.seq++
	return t.seq
}

func (tb table[T]) insert(t *tables, id string, val T) {
	tb[id] = row[T]{seq: t.nextSeq(), val: val}
	t.journal(func() { delete(tb, id) })
}

// replace overwrites an existing row, keeping its position.
func (tb table[T]) replace(t *tables, id string, val T) bool {
	r, ok := tb[id]
	if !ok {
		return false
	}
	t.journal(func() { tb[id] = r })
	tb[id] = row[T]{seq: r.seq, val: val}
	return true
}

// filter returns the rows matching keep, in insertion order.
func (tb table[T]) filter(keep func(T) bool) []T {
	rows := make([]row[T], 0, len(tb))
	for _, r := range tb {
		if keep(r.val) {
			rows = append(rows, r)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })

	out := make([]T, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.val)
	}
	return out
}

// remove deletes the rows matching drop and returns how many went.
func (tb table[T]) remove(t *tables, drop func(T) bool) int {
	var n int
	for id, r := range tb {
		if drop(r.val) {
			id, r := id, r
			t.journal(func() { tb[id] = r })
			delete(tb, id)
			n++
		}
	}
	return n
}

func copyTeacher(t academic.Teacher) academic.Teacher {
	t.PasswordHash = append([]byte(nil), t.PasswordHash...)
	t.Attendance = append([]academic.AttendanceEntry{}, t.Attendance...)
	return t
}

func copyStudent(s academic.Student) academic.Student {
	s.PasswordHash = append([]byte(nil), s.PasswordHash...)
	s.Attendance = append([]academic.AttendanceEntry{}, s.Attendance...)
	s.ExamResults = append([]academic.ExamResult{}, s.ExamResults...)
	return s
}
