package cascade_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/core/cascade"
	"github.com/trezcool/darasa/core/ledger"
	inmemdb "github.com/trezcool/darasa/storage/database/inmem"
	testutil "github.com/trezcool/darasa/tests"
)

type fixture struct {
	store  academic.Store
	engine *cascade.Engine

	admin, otherAdmin core.Actor

	// maths & physics belong to classA, history to classB.
	// alice & bob are in classA, carol in classB.
	classA, classB    academic.Class
	maths, physics    academic.Subject
	history           academic.Subject
	mathsT, historyT  academic.Teacher
	alice, bob, carol academic.Student

	// another school
	otherClass   academic.Class
	otherSubj    academic.Subject
	otherT       academic.Teacher
	otherStudent academic.Student
}

func newFixture(t *testing.T) *fixture {
	db := inmemdb.Open()
	store := inmemdb.NewAcademicStore(db)
	schools := inmemdb.NewSchoolRepository(db)

	sch := testutil.CreateSchool(t, schools, "Jane Doe", "Greenwood High", "jane@greenwood.edu", "")
	other := testutil.CreateSchool(t, schools, "John Roe", "Riverside", "john@riverside.edu", "")

	f := &fixture{
		store:      store,
		engine:     cascade.NewEngine(store, testutil.NewLogger(), nil),
		admin:      sch.Actor(),
		otherAdmin: other.Actor(),
	}
	f.classA = testutil.CreateClass(t, store, sch.ID, "Grade 1")
	f.classB = testutil.CreateClass(t, store, sch.ID, "Grade 2")
	f.maths = testutil.CreateSubject(t, store, f.classA, "Maths", "MTH1", 10)
	f.physics = testutil.CreateSubject(t, store, f.classA, "Physics", "PHY1", 10)
	f.history = testutil.CreateSubject(t, store, f.classB, "History", "HIS2", 10)
	f.mathsT = testutil.CreateTeacher(t, store, sch.ID, "Mr Maths", "maths@greenwood.edu", "", f.maths)
	f.historyT = testutil.CreateTeacher(t, store, sch.ID, "Mrs History", "history@greenwood.edu", "", f.history)
	f.alice = testutil.CreateStudent(t, store, f.classA, "Alice", 1, "")
	f.bob = testutil.CreateStudent(t, store, f.classA, "Bob", 2, "")
	f.carol = testutil.CreateStudent(t, store, f.classB, "Carol", 1, "")

	f.otherClass = testutil.CreateClass(t, store, other.ID, "Grade 1")
	f.otherSubj = testutil.CreateSubject(t, store, f.otherClass, "Maths", "MTH1", 10)
	f.otherT = testutil.CreateTeacher(t, store, other.ID, "Ms Other", "other@riverside.edu", "", f.otherSubj)
	f.otherStudent = testutil.CreateStudent(t, store, f.otherClass, "Dave", 1, "")

	day := testutil.Day(2024, 1, 1)
	f.alice = testutil.SetLedger(t, store, f.alice,
		[]academic.AttendanceEntry{
			{SubjectID: f.maths.ID, Date: day, Status: academic.StatusPresent},
			{SubjectID: f.physics.ID, Date: day, Status: academic.StatusAbsent},
		},
		[]academic.ExamResult{{SubjectID: f.maths.ID, Marks: 80}, {SubjectID: f.physics.ID, Marks: 70}},
	)
	// carol moved from classA: she still has a maths entry
	f.carol = testutil.SetLedger(t, store, f.carol,
		[]academic.AttendanceEntry{
			{SubjectID: f.maths.ID, Date: day, Status: academic.StatusPresent},
			{SubjectID: f.history.ID, Date: day, Status: academic.StatusPresent},
		},
		[]academic.ExamResult{{SubjectID: f.history.ID, Marks: 55}},
	)
	// same subject id in another school must never be touched
	f.otherStudent = testutil.SetLedger(t, store, f.otherStudent,
		[]academic.AttendanceEntry{{SubjectID: f.maths.ID, Date: day, Status: academic.StatusPresent}},
		[]academic.ExamResult{{SubjectID: f.maths.ID, Marks: 99}},
	)
	return f
}

func (f *fixture) student(t *testing.T, id string) academic.Student {
	s, err := f.store.GetStudent(context.Background(), id)
	require.NoError(t, err)
	return s
}

func (f *fixture) teacher(t *testing.T, id string) academic.Teacher {
	tt, err := f.store.GetTeacher(context.Background(), id)
	require.NoError(t, err)
	return tt
}

func (f *fixture) subject(t *testing.T, id string) academic.Subject {
	s, err := f.store.GetSubject(context.Background(), id)
	require.NoError(t, err)
	return s
}

func assertNotFound(t *testing.T, err error) {
	t.Helper()
	assert.True(t, errors.Is(err, core.ErrNotFound), "expected not found, got: %v", err)
}

// assertNoDangling checks that nothing references a missing class, subject or teacher.
// skipStudents were given foreign ledger entries on purpose.
func assertNoDangling(t *testing.T, store academic.Store, skipStudents ...string) {
	t.Helper()
	ctx := context.Background()

	classExists := func(id string) bool {
		_, err := store.GetClass(ctx, id)
		return err == nil
	}
	subjectExists := func(id string) bool {
		_, err := store.GetSubject(ctx, id)
		return err == nil
	}
	teacherExists := func(id string) bool {
		_, err := store.GetTeacher(ctx, id)
		return err == nil
	}

	teachers, err := store.QueryTeachers(ctx, academic.TeacherFilter{})
	require.NoError(t, err)
	for _, tt := range teachers {
		if tt.ClassID != "" {
			assert.True(t, classExists(tt.ClassID), "teacher %s references a missing class", tt.Name)
		}
		if tt.SubjectID != "" {
			assert.True(t, subjectExists(tt.SubjectID), "teacher %s references a missing subject", tt.Name)
		}
		for _, e := range tt.Attendance {
			if e.SubjectID != "" {
				assert.True(t, subjectExists(e.SubjectID), "teacher %s has attendance for a missing subject", tt.Name)
			}
		}
	}

	subjects, err := store.QuerySubjects(ctx, academic.SubjectFilter{})
	require.NoError(t, err)
	for _, s := range subjects {
		assert.True(t, classExists(s.ClassID), "subject %s references a missing class", s.Code)
		if s.TeacherID != "" {
			assert.True(t, teacherExists(s.TeacherID), "subject %s references a missing teacher", s.Code)
		}
	}

	students, err := store.QueryStudents(ctx, academic.StudentFilter{})
	require.NoError(t, err)
	for _, s := range students {
		assert.True(t, classExists(s.ClassID), "student %s references a missing class", s.Name)
		if contains(skipStudents, s.ID) {
			continue
		}
		for _, e := range s.Attendance {
			assert.True(t, subjectExists(e.SubjectID), "student %s has attendance for a missing subject", s.Name)
		}
		for _, r := range s.ExamResults {
			assert.True(t, subjectExists(r.SubjectID), "student %s has a result for a missing subject", s.Name)
		}
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

func TestEngine_DeleteClass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sum, err := f.engine.DeleteClass(ctx, f.admin, f.classA.ID)
	require.NoError(t, err)

	require.NotNil(t, sum.Class)
	assert.Equal(t, f.classA.ID, sum.Class.ID)
	assert.Equal(t, 1, sum.Classes)
	assert.Equal(t, 2, sum.Students)
	assert.Equal(t, 2, sum.Subjects)
	assert.Equal(t, 1, sum.StudentsStripped) // carol

	_, err = f.store.GetClass(ctx, f.classA.ID)
	assertNotFound(t, err)
	for _, id := range []string{f.alice.ID, f.bob.ID} {
		_, err = f.store.GetStudent(ctx, id)
		assertNotFound(t, err)
	}
	for _, id := range []string{f.maths.ID, f.physics.ID} {
		_, err = f.store.GetSubject(ctx, id)
		assertNotFound(t, err)
	}

	mathsT := f.teacher(t, f.mathsT.ID)
	assert.Empty(t, mathsT.ClassID)
	assert.Empty(t, mathsT.SubjectID)

	carol := f.student(t, f.carol.ID)
	assert.Len(t, carol.Attendance, 1)
	assert.Equal(t, f.history.ID, carol.Attendance[0].SubjectID)
	assert.Len(t, carol.ExamResults, 1)

	// untouched
	assert.Equal(t, f.classB.ID, f.teacher(t, f.historyT.ID).ClassID)
	assert.Len(t, f.student(t, f.otherStudent.ID).Attendance, 1)
	assert.Len(t, f.student(t, f.otherStudent.ID).ExamResults, 1)
	assertNoDangling(t, f.store, f.otherStudent.ID)
}

func TestEngine_DeleteClass_Errors(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	teacherActor := core.Actor{ID: f.mathsT.ID, SchoolID: f.admin.SchoolID, Role: core.RoleTeacher}

	tests := []struct {
		name    string
		actor   core.Actor
		classID string
		wantErr error
	}{
		{name: "unknown class", actor: f.admin, classID: "nope", wantErr: core.ErrNotFound},
		{name: "other school", actor: f.otherAdmin, classID: f.classA.ID, wantErr: core.ErrNotFound},
		{name: "teacher", actor: teacherActor, classID: f.classA.ID, wantErr: core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sum, err := f.engine.DeleteClass(ctx, tt.actor, tt.classID)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Zero(t, sum.Mutations())
		})
	}

	_, err := f.store.GetClass(ctx, f.classA.ID)
	assert.NoError(t, err)
	assert.Len(t, f.student(t, f.alice.ID).Attendance, 2)
}

func TestEngine_DeleteClass_NoDependents(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	empty := testutil.CreateClass(t, f.store, f.admin.SchoolID, "Grade 9")

	sum, err := f.engine.DeleteClass(ctx, f.admin, empty.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Classes)
	assert.Equal(t, 1, sum.Mutations())

	_, err = f.engine.DeleteClass(ctx, f.admin, empty.ID)
	assertNotFound(t, err)
}

func TestEngine_DeleteAllClassesForSchool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	schoolID := f.admin.SchoolID

	sum, err := f.engine.DeleteAllClassesForSchool(ctx, f.admin, schoolID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Classes)
	assert.Equal(t, 3, sum.Students)
	assert.Equal(t, 3, sum.Subjects)
	assert.Equal(t, 2, sum.Teachers)

	classes, _ := f.store.QueryClasses(ctx, academic.ClassFilter{SchoolID: schoolID})
	subjects, _ := f.store.QuerySubjects(ctx, academic.SubjectFilter{SchoolID: schoolID})
	teachers, _ := f.store.QueryTeachers(ctx, academic.TeacherFilter{SchoolID: schoolID})
	students, _ := f.store.QueryStudents(ctx, academic.StudentFilter{SchoolID: schoolID})
	assert.Empty(t, classes)
	assert.Empty(t, subjects)
	assert.Empty(t, teachers)
	assert.Empty(t, students)

	// other school untouched
	_, err = f.store.GetClass(ctx, f.otherClass.ID)
	assert.NoError(t, err)
	assert.Equal(t, f.otherT.ID, f.subject(t, f.otherSubj.ID).TeacherID)
	assertNoDangling(t, f.store, f.otherStudent.ID)

	// nothing left
	_, err = f.engine.DeleteAllClassesForSchool(ctx, f.admin, schoolID)
	assertNotFound(t, err)

	// another school's classes
	_, err = f.engine.DeleteAllClassesForSchool(ctx, f.admin, f.otherAdmin.SchoolID)
	assertNotFound(t, err)
}

func TestEngine_DeleteSubject(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sum, err := f.engine.DeleteSubject(ctx, f.admin, f.maths.ID)
	require.NoError(t, err)
	require.NotNil(t, sum.Subject)
	assert.Equal(t, f.maths.ID, sum.Subject.ID)
	assert.Equal(t, 1, sum.Subjects)
	assert.Equal(t, 1, sum.TeachersUnassigned)
	assert.Equal(t, 2, sum.StudentsStripped) // alice & carol

	_, err = f.store.GetSubject(ctx, f.maths.ID)
	assertNotFound(t, err)

	mathsT := f.teacher(t, f.mathsT.ID)
	assert.Empty(t, mathsT.SubjectID)
	assert.Equal(t, f.classA.ID, mathsT.ClassID)

	alice := f.student(t, f.alice.ID)
	require.Len(t, alice.Attendance, 1)
	assert.Equal(t, f.physics.ID, alice.Attendance[0].SubjectID)
	require.Len(t, alice.ExamResults, 1)
	assert.Equal(t, f.physics.ID, alice.ExamResults[0].SubjectID)

	carol := f.student(t, f.carol.ID)
	assert.Len(t, carol.Attendance, 1)

	other := f.student(t, f.otherStudent.ID)
	assert.Len(t, other.Attendance, 1)
	assert.Len(t, other.ExamResults, 1)
	assertNoDangling(t, f.store, f.otherStudent.ID)

	_, err = f.engine.DeleteSubject(ctx, f.admin, f.maths.ID)
	assertNotFound(t, err)
	_, err = f.engine.DeleteSubject(ctx, f.otherAdmin, f.physics.ID)
	assertNotFound(t, err)
}

func TestEngine_DeleteSubject_KeepsTeacherAttendance(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	l := ledger.New(f.store, testutil.NewValidator(), testutil.NewLogger(), nil)

	_, err := l.RecordTeacherAttendance(ctx, f.mathsT.Actor(), f.mathsT.ID, ledger.RecordAttendance{
		Date:   core.Date{Time: testutil.Day(2024, 1, 2)},
		Status: academic.StatusPresent,
	})
	require.NoError(t, err)

	_, err = f.engine.DeleteSubject(ctx, f.admin, f.maths.ID)
	require.NoError(t, err)

	mathsT := f.teacher(t, f.mathsT.ID)
	assert.Empty(t, mathsT.SubjectID)
	require.Len(t, mathsT.Attendance, 1)
	assert.Empty(t, mathsT.Attendance[0].SubjectID)
	assert.Equal(t, academic.StatusPresent, mathsT.Attendance[0].Status)
	assertNoDangling(t, f.store, f.otherStudent.ID)
}

func TestEngine_DeleteSubjectsForClass(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sum, err := f.engine.DeleteSubjectsForClass(ctx, f.admin, f.classA.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Subjects)
	assert.Equal(t, 1, sum.TeachersUnassigned)
	assert.Equal(t, 2, sum.StudentsStripped)

	alice := f.student(t, f.alice.ID)
	assert.Empty(t, alice.Attendance)
	assert.Empty(t, alice.ExamResults)
	assert.Equal(t, f.history.ID, f.subject(t, f.history.ID).ID)
	assertNoDangling(t, f.store, f.otherStudent.ID)

	// class still there, subjects gone
	_, err = f.store.GetClass(ctx, f.classA.ID)
	assert.NoError(t, err)
	_, err = f.engine.DeleteSubjectsForClass(ctx, f.admin, f.classA.ID)
	assertNotFound(t, err)
	_, err = f.engine.DeleteSubjectsForClass(ctx, f.admin, "nope")
	assertNotFound(t, err)
}

func TestEngine_DeleteSubjectsForSchool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sum, err := f.engine.DeleteSubjectsForSchool(ctx, f.admin, f.admin.SchoolID)
	require.NoError(t, err)
	assert.Equal(t, 3, sum.Subjects)
	assert.Equal(t, 2, sum.TeachersUnassigned)
	assert.Equal(t, 2, sum.StudentsStripped)

	for _, id := range []string{f.mathsT.ID, f.historyT.ID} {
		assert.Empty(t, f.teacher(t, id).SubjectID)
	}
	carol := f.student(t, f.carol.ID)
	assert.Empty(t, carol.Attendance)
	assert.Empty(t, carol.ExamResults)

	assert.Len(t, f.student(t, f.otherStudent.ID).Attendance, 1)
	assert.Equal(t, f.otherT.ID, f.subject(t, f.otherSubj.ID).TeacherID)
	assertNoDangling(t, f.store, f.otherStudent.ID)

	_, err = f.engine.DeleteSubjectsForSchool(ctx, f.admin, f.admin.SchoolID)
	assertNotFound(t, err)
}

func TestEngine_DeleteTeacher(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sum, err := f.engine.DeleteTeacher(ctx, f.admin, f.mathsT.ID)
	require.NoError(t, err)
	require.NotNil(t, sum.Teacher)
	assert.Equal(t, f.mathsT.ID, sum.Teacher.ID)
	assert.Equal(t, 1, sum.Teachers)
	assert.Equal(t, 1, sum.SubjectsUnassigned)

	_, err = f.store.GetTeacher(ctx, f.mathsT.ID)
	assertNotFound(t, err)
	assert.Empty(t, f.subject(t, f.maths.ID).TeacherID)
	assert.Equal(t, f.historyT.ID, f.subject(t, f.history.ID).TeacherID)
	assertNoDangling(t, f.store, f.otherStudent.ID)

	_, err = f.engine.DeleteTeacher(ctx, f.admin, f.mathsT.ID)
	assertNotFound(t, err)
	_, err = f.engine.DeleteTeacher(ctx, f.admin, f.otherT.ID)
	assertNotFound(t, err)
}

func TestEngine_DeleteTeachersForSchool(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	sum, err := f.engine.DeleteTeachersForSchool(ctx, f.admin, f.admin.SchoolID)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Teachers)
	assert.Equal(t, 2, sum.SubjectsUnassigned)

	free, err := f.store.QuerySubjects(ctx, academic.SubjectFilter{SchoolID: f.admin.SchoolID, Unassigned: true})
	require.NoError(t, err)
	assert.Len(t, free, 3)
	assert.Equal(t, f.otherT.ID, f.subject(t, f.otherSubj.ID).TeacherID)
	assertNoDangling(t, f.store, f.otherStudent.ID)

	_, err = f.engine.DeleteTeachersForSchool(ctx, f.admin, f.admin.SchoolID)
	assertNotFound(t, err)
}

func TestEngine_SystemActor(t *testing.T) {
	f := newFixture(t)

	sum, err := f.engine.DeleteAllClassesForSchool(context.Background(), core.SystemActor(), f.otherAdmin.SchoolID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Classes)
	assert.Equal(t, 1, sum.Teachers)
}

// failingStore fails every call to the method named failOn.
type failingStore struct {
	academic.Store
	failOn string
}

var errBoom = errors.New("boom")

func (s *failingStore) Atomic(ctx context.Context, fn func(tx academic.Store) error) error {
	return s.Store.Atomic(ctx, func(tx academic.Store) error {
		return fn(&failingStore{Store: tx, failOn: s.failOn})
	})
}

func (s *failingStore) DeleteSubjects(ctx context.Context, filter academic.SubjectFilter) (int, error) {
	if s.failOn == "DeleteSubjects" {
		return 0, core.StoreFailure(errBoom, "deleting subjects")
	}
	return s.Store.DeleteSubjects(ctx, filter)
}

func (s *failingStore) StripLedger(ctx context.Context, filter academic.StudentFilter, scope academic.LedgerScope) (int, error) {
	if s.failOn == "StripLedger" {
		return 0, core.StoreFailure(errBoom, "stripping ledger")
	}
	return s.Store.StripLedger(ctx, filter, scope)
}

func TestEngine_RollsBackOnFailure(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		failOn string
		run    func(e *cascade.Engine, f *fixture) error
	}{
		{
			name:   "delete class",
			failOn: "DeleteSubjects",
			run: func(e *cascade.Engine, f *fixture) error {
				_, err := e.DeleteClass(ctx, f.admin, f.classA.ID)
				return err
			},
		},
		{
			name:   "delete subject",
			failOn: "StripLedger",
			run: func(e *cascade.Engine, f *fixture) error {
				_, err := e.DeleteSubject(ctx, f.admin, f.maths.ID)
				return err
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			engine := cascade.NewEngine(&failingStore{Store: f.store, failOn: tt.failOn}, testutil.NewLogger(), nil)

			err := tt.run(engine, f)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrStoreUnavailable))

			// nothing changed
			_, err = f.store.GetClass(ctx, f.classA.ID)
			assert.NoError(t, err)
			_, err = f.store.GetSubject(ctx, f.maths.ID)
			assert.NoError(t, err)
			_, err = f.store.GetStudent(ctx, f.alice.ID)
			assert.NoError(t, err)
			mathsT := f.teacher(t, f.mathsT.ID)
			assert.Equal(t, f.classA.ID, mathsT.ClassID)
			assert.Equal(t, f.maths.ID, mathsT.SubjectID)
			assert.Len(t, f.student(t, f.carol.ID).Attendance, 2)
		})
	}
}

type metricsSpy struct {
	ops       []string
	mutations int
	failures  int
}

func (m *metricsSpy) ObserveCascade(op string, err error, mutations int) {
	m.ops = append(m.ops, op)
	m.mutations += mutations
	if err != nil {
		m.failures++
	}
}

func (m *metricsSpy) ObserveLedger(string, error) {}

func TestEngine_Metrics(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	spy := &metricsSpy{}
	engine := cascade.NewEngine(f.store, testutil.NewLogger(), spy)

	sum, err := engine.DeleteTeacher(ctx, f.admin, f.historyT.ID)
	require.NoError(t, err)
	_, err = engine.DeleteTeacher(ctx, f.admin, f.historyT.ID)
	assertNotFound(t, err)

	assert.Equal(t, []string{cascade.OpDeleteTeacher, cascade.OpDeleteTeacher}, spy.ops)
	assert.Equal(t, sum.Mutations(), spy.mutations)
	assert.Equal(t, 1, spy.failures)
}
