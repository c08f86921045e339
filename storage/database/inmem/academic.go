package inmemdb

import (
	"context"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
)

type academicStore struct {
	db *DB
	tx *tables // set inside Atomic
}

var _ academic.Store = (*academicStore)(nil) // interface compliance check

func NewAcademicStore(db *DB) academic.Store {
	return &academicStore{db: db}
}

func (s *academicStore) read(fn func(t *tables) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.view(fn)
}

func (s *academicStore) write(fn func(t *tables) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.update(fn)
}

func (s *academicStore) Atomic(ctx context.Context, fn func(tx academic.Store) error) error {
	if s.tx != nil { // already in a transaction
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.transact(func(t *tables) error {
		return fn(&academicStore{db: s.db, tx: t})
	})
}

// Classes

func (s *academicStore) CreateClass(_ context.Context, class academic.Class) (academic.Class, error) {
	err := s.write(func(t *tables) error {
		if len(t.classes.filter(academic.ClassFilter{SchoolID: class.SchoolID, Name: class.Name}.Match)) > 0 {
			return core.NewDuplicateKeyError("name", "a class with this name already exists")
		}
		class.ID = uuid.NewString()
		t.classes.insert(t, class.ID, class)
		return nil
	})
	if err != nil {
		return academic.Class{}, err
	}
	return class, nil
}

func (s *academicStore) GetClass(_ context.Context, id string) (class academic.Class, err error) {
	err = s.read(func(t *tables) error {
		r, ok := t.classes[id]
		if !ok {
			return core.NewNotFoundError("class")
		}
		class = r.val
		return nil
	})
	return
}

func (s *academicStore) QueryClasses(_ context.Context, filter academic.ClassFilter) (classes []academic.Class, err error) {
	err = s.read(func(t *tables) error {
		classes = t.classes.filter(filter.Match)
		return nil
	})
	return
}

func (s *academicStore) DeleteClasses(_ context.Context, filter academic.ClassFilter) (n int, err error) {
	if filter.IsZero() {
		return 0, nil
	}
	err = s.write(func(t *tables) error {
		n = t.classes.remove(t, filter.Match)
		return nil
	})
	return
}

// Subjects

func (s *academicStore) CreateSubjects(_ context.Context, subjects ...academic.Subject) ([]academic.Subject, error) {
	created := make([]academic.Subject, 0, len(subjects))
	err := s.write(func(t *tables) error {
		for _, subj := range subjects {
			taken := t.subjects.filter(academic.SubjectFilter{SchoolID: subj.SchoolID, Codes: []string{subj.Code}}.Match)
			if len(taken) > 0 {
				return core.NewDuplicateKeyError("code", "subject code "+subj.Code+" already exists")
			}
			subj.ID = uuid.NewString()
			t.subjects.insert(t, subj.ID, subj)
			created = append(created, subj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *academicStore) GetSubject(_ context.Context, id string) (subject academic.Subject, err error) {
	err = s.read(func(t *tables) error {
		r, ok := t.subjects[id]
		if !ok {
			return core.NewNotFoundError("subject")
		}
		subject = r.val
		return nil
	})
	return
}

func (s *academicStore) QuerySubjects(_ context.Context, filter academic.SubjectFilter) (subjects []academic.Subject, err error) {
	err = s.read(func(t *tables) error {
		subjects = t.subjects.filter(filter.Match)
		return nil
	})
	return
}

func (s *academicStore) SetSubjectsTeacher(_ context.Context, filter academic.SubjectFilter, teacherID string) (n int, err error) {
	if filter.IsZero() {
		return 0, nil
	}
	err = s.write(func(t *tables) error {
		for _, subj := range t.subjects.filter(filter.Match) {
			if subj.TeacherID == teacherID {
				continue
			}
			subj.TeacherID = teacherID
			t.subjects.replace(t, subj.ID, subj)
			n++
		}
		return nil
	})
	return
}

func (s *academicStore) DeleteSubjects(_ context.Context, filter academic.SubjectFilter) (n int, err error) {
	if filter.IsZero() {
		return 0, nil
	}
	err = s.write(func(t *tables) error {
		n = t.subjects.remove(t, filter.Match)
		return nil
	})
	return
}

// Teachers

func (s *academicStore) CreateTeacher(_ context.Context, teacher academic.Teacher) (academic.Teacher, error) {
	err := s.write(func(t *tables) error {
		if len(t.teachers.filter(academic.TeacherFilter{Email: teacher.Email}.Match)) > 0 {
			return core.NewDuplicateKeyError("email", "a teacher with this email already exists")
		}
		teacher.ID = uuid.NewString()
		teacher = copyTeacher(teacher)
		t.teachers.insert(t, teacher.ID, teacher)
		return nil
	})
	if err != nil {
		return academic.Teacher{}, err
	}
	return copyTeacher(teacher), nil
}

func (s *academicStore) GetTeacher(_ context.Context, id string) (teacher academic.Teacher, err error) {
	err = s.read(func(t *tables) error {
		r, ok := t.teachers[id]
		if !ok {
			return core.NewNotFoundError("teacher")
		}
		teacher = copyTeacher(r.val)
		return nil
	})
	return
}

func (s *academicStore) QueryTeachers(_ context.Context, filter academic.TeacherFilter) (teachers []academic.Teacher, err error) {
	err = s.read(func(t *tables) error {
		teachers = t.teachers.filter(filter.Match)
		for i := range teachers {
			teachers[i] = copyTeacher(teachers[i])
		}
		return nil
	})
	return
}

func (s *academicStore) UpdateTeacher(_ context.Context, teacher academic.Teacher) (academic.Teacher, error) {
	err := s.write(func(t *tables) error {
		if !t.teachers.replace(t, teacher.ID, copyTeacher(teacher)) {
			return core.NewNotFoundError("teacher")
		}
		return nil
	})
	if err != nil {
		return academic.Teacher{}, err
	}
	return copyTeacher(teacher), nil
}

func (s *academicStore) ClearTeacherRefs(_ context.Context, filter academic.TeacherFilter, refs academic.TeacherRefs) (n int, err error) {
	if filter.IsZero() {
		return 0, nil
	}
	err = s.write(func(t *tables) error {
		for _, teacher := range t.teachers.filter(filter.Match) {
			changed := false
			if refs.Class && teacher.ClassID != "" {
				teacher.ClassID = ""
				changed = true
			}
			if refs.Subject && teacher.SubjectID != "" {
				teacher.SubjectID = ""
				changed = true
			}
			if changed {
				t.teachers.replace(t, teacher.ID, teacher)
				n++
			}
		}
		return nil
	})
	return
}

func (s *academicStore) DeleteTeachers(_ context.Context, filter academic.TeacherFilter) (n int, err error) {
	if filter.IsZero() {
		return 0, nil
	}
	err = s.write(func(t *tables) error {
		n = t.teachers.remove(t, filter.Match)
		return nil
	})
	return
}

// Students

func (s *academicStore) CreateStudent(_ context.Context, student academic.Student) (academic.Student, error) {
	err := s.write(func(t *tables) error {
		taken := t.students.filter(academic.StudentFilter{
			SchoolID: student.SchoolID,
			ClassID:  student.ClassID,
			RollNum:  student.RollNum,
		}.Match)
		if len(taken) > 0 {
			return core.NewDuplicateKeyError("roll_num", "a student with this roll number already exists in this class")
		}
		student.ID = uuid.NewString()
		student = copyStudent(student)
		t.students.insert(t, student.ID, student)
		return nil
	})
	if err != nil {
		return academic.Student{}, err
	}
	return copyStudent(student), nil
}

func (s *academicStore) GetStudent(_ context.Context, id string) (student academic.Student, err error) {
	err = s.read(func(t *tables) error {
		r, ok := t.students[id]
		if !ok {
			return core.NewNotFoundError("student")
		}
		student = copyStudent(r.val)
		return nil
	})
	return
}

func (s *academicStore) QueryStudents(_ context.Context, filter academic.StudentFilter) (students []academic.Student, err error) {
	err = s.read(func(t *tables) error {
		students = t.students.filter(filter.Match)
		for i := range students {
			students[i] = copyStudent(students[i])
		}
		return nil
	})
	return
}

func (s *academicStore) UpdateStudent(_ context.Context, student academic.Student) (academic.Student, error) {
	err := s.write(func(t *tables) error {
		if !t.students.replace(t, student.ID, copyStudent(student)) {
			return core.NewNotFoundError("student")
		}
		return nil
	})
	if err != nil {
		return academic.Student{}, err
	}
	return copyStudent(student), nil
}

func (s *academicStore) DeleteStudents(_ context.Context, filter academic.StudentFilter) (n int, err error) {
	if filter.IsZero() {
		return 0, nil
	}
	err = s.write(func(t *tables) error {
		n = t.students.remove(t, filter.Match)
		return nil
	})
	return
}

func (s *academicStore) StripLedger(_ context.Context, filter academic.StudentFilter, scope academic.LedgerScope) (n int, err error) {
	if filter.IsZero() {
		return 0, nil
	}
	err = s.write(func(t *tables) error {
		for _, student := range t.students.filter(filter.Match) {
			if student.Strip(scope) {
				t.students.replace(t, student.ID, student)
				n++
			}
		}
		return nil
	})
	return
}
