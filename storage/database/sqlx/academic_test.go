package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/core/cascade"
	sqlxrepos "github.com/trezcool/darasa/storage/database/sqlx"
	testutil "github.com/trezcool/darasa/tests"
)

func TestAcademicStore_Uniqueness(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := sqlxrepos.NewAcademicStore(db)
	sch := testutil.CreateSchool(t, sqlxrepos.NewSchoolRepository(db), "Jane Doe", "Greenwood High", "jane@greenwood.edu", "")
	ctx := context.Background()

	class := testutil.CreateClass(t, store, sch.ID, "Grade 1")
	_, err := store.CreateClass(ctx, academic.Class{SchoolID: sch.ID, Name: "Grade 1"})
	var dupErr *core.DuplicateKeyError
	if assert.True(t, errors.As(err, &dupErr)) {
		assert.Equal(t, "name", dupErr.Field)
	}

	testutil.CreateSubject(t, store, class, "Maths", "MTH1", 10)
	_, err = store.CreateSubjects(ctx,
		academic.Subject{SchoolID: sch.ID, ClassID: class.ID, Name: "Physics", Code: "PHY1", Sessions: 5},
		academic.Subject{SchoolID: sch.ID, ClassID: class.ID, Name: "Maths II", Code: "MTH1", Sessions: 5},
	)
	if assert.True(t, errors.As(err, &dupErr)) {
		assert.Equal(t, "code", dupErr.Field)
	}
	subjects, err := store.QuerySubjects(ctx, academic.SubjectFilter{SchoolID: sch.ID})
	require.NoError(t, err)
	assert.Len(t, subjects, 1, "a failed batch must not be partially created")

	testutil.CreateStudent(t, store, class, "Alice", 1, "")
	_, err = store.CreateStudent(ctx, academic.Student{SchoolID: sch.ID, ClassID: class.ID, Name: "Bob", RollNum: 1})
	if assert.True(t, errors.As(err, &dupErr)) {
		assert.Equal(t, "roll_num", dupErr.Field)
	}

	_, err = store.GetClass(ctx, "nope")
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestAcademicStore_Ledger(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := sqlxrepos.NewAcademicStore(db)
	sch := testutil.CreateSchool(t, sqlxrepos.NewSchoolRepository(db), "Jane Doe", "Greenwood High", "jane@greenwood.edu", "")
	ctx := context.Background()

	class := testutil.CreateClass(t, store, sch.ID, "Grade 1")
	maths := testutil.CreateSubject(t, store, class, "Maths", "MTH1", 10)
	physics := testutil.CreateSubject(t, store, class, "Physics", "PHY1", 10)
	alice := testutil.CreateStudent(t, store, class, "Alice", 1, "")
	bob := testutil.CreateStudent(t, store, class, "Bob", 2, "")

	day1, day2 := testutil.Day(2024, 1, 1), testutil.Day(2024, 1, 2)
	testutil.SetLedger(t, store, alice,
		[]academic.AttendanceEntry{
			{SubjectID: maths.ID, Date: day1, Status: academic.StatusPresent},
			{SubjectID: maths.ID, Date: day2, Status: academic.StatusAbsent},
			{SubjectID: physics.ID, Date: day1, Status: academic.StatusPresent},
		},
		[]academic.ExamResult{{SubjectID: maths.ID, Marks: 80}},
	)
	testutil.SetLedger(t, store, bob, nil, []academic.ExamResult{{SubjectID: physics.ID, Marks: 40}})

	got, err := store.GetStudent(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, got.Attendance, 3)
	assert.True(t, got.Attendance[1].Date.Equal(day2))
	assert.Equal(t, academic.StatusAbsent, got.Attendance[1].Status)
	assert.Equal(t, 2, got.AttendanceCount(maths.ID))
	assert.Equal(t, []academic.ExamResult{{SubjectID: maths.ID, Marks: 80}}, got.ExamResults)

	n, err := store.StripLedger(ctx, academic.StudentFilter{SchoolID: sch.ID},
		academic.LedgerScope{SubjectIDs: []string{maths.ID}, Attendance: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err = store.GetStudent(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, got.Attendance, 1)
	assert.Equal(t, physics.ID, got.Attendance[0].SubjectID)
	assert.Len(t, got.ExamResults, 1, "results are out of scope")

	n, err = store.StripLedger(ctx, academic.StudentFilter{SchoolID: sch.ID},
		academic.LedgerScope{Attendance: true, Results: true})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.StripLedger(ctx, academic.StudentFilter{}, academic.LedgerScope{Attendance: true})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAcademicStore_TeacherRefs(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := sqlxrepos.NewAcademicStore(db)
	sch := testutil.CreateSchool(t, sqlxrepos.NewSchoolRepository(db), "Jane Doe", "Greenwood High", "jane@greenwood.edu", "")
	ctx := context.Background()

	class := testutil.CreateClass(t, store, sch.ID, "Grade 1")
	maths := testutil.CreateSubject(t, store, class, "Maths", "MTH1", 10)
	teacher := testutil.CreateTeacher(t, store, sch.ID, "Mr Maths", "maths@greenwood.edu", "", maths)

	subjects, err := store.QuerySubjects(ctx, academic.SubjectFilter{TeacherIDs: []string{teacher.ID}})
	require.NoError(t, err)
	require.Len(t, subjects, 1)

	n, err := store.SetSubjectsTeacher(ctx, academic.SubjectFilter{IDs: []string{maths.ID}}, teacher.ID)
	require.NoError(t, err)
	assert.Zero(t, n, "already assigned")

	n, err = store.ClearTeacherRefs(ctx, academic.TeacherFilter{SubjectIDs: []string{maths.ID}}, academic.TeacherRefs{Subject: true})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.GetTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SubjectID)
	assert.Equal(t, class.ID, got.ClassID)

	n, err = store.SetSubjectsTeacher(ctx, academic.SubjectFilter{TeacherIDs: []string{teacher.ID}}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	free, err := store.QuerySubjects(ctx, academic.SubjectFilter{ClassID: class.ID, Unassigned: true})
	require.NoError(t, err)
	assert.Len(t, free, 1)

	_, err = store.CreateTeacher(ctx, academic.Teacher{SchoolID: sch.ID, Name: "Copycat", Email: "maths@greenwood.edu"})
	assert.True(t, errors.Is(err, core.ErrDuplicateKey))
}

func TestAcademicStore_Atomic(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := sqlxrepos.NewAcademicStore(db)
	sch := testutil.CreateSchool(t, sqlxrepos.NewSchoolRepository(db), "Jane Doe", "Greenwood High", "jane@greenwood.edu", "")
	ctx := context.Background()
	class := testutil.CreateClass(t, store, sch.ID, "Grade 1")

	boom := errors.New("boom")
	err := store.Atomic(ctx, func(tx academic.Store) error {
		if _, err := tx.DeleteClasses(ctx, academic.ClassFilter{IDs: []string{class.ID}}); err != nil {
			return err
		}
		if _, err := tx.GetClass(ctx, class.ID); !errors.Is(err, core.ErrNotFound) {
			return errors.New("tx must observe its own writes")
		}
		return boom
	})
	assert.Equal(t, boom, err)

	_, err = store.GetClass(ctx, class.ID)
	assert.NoError(t, err, "the delete must be rolled back")
}

func TestAcademicStore_Cascade(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := sqlxrepos.NewAcademicStore(db)
	sch := testutil.CreateSchool(t, sqlxrepos.NewSchoolRepository(db), "Jane Doe", "Greenwood High", "jane@greenwood.edu", "")
	ctx := context.Background()

	class := testutil.CreateClass(t, store, sch.ID, "Grade 1")
	maths := testutil.CreateSubject(t, store, class, "Maths", "MTH1", 10)
	teacher := testutil.CreateTeacher(t, store, sch.ID, "Mr Maths", "maths@greenwood.edu", "", maths)
	alice := testutil.CreateStudent(t, store, class, "Alice", 1, "")
	testutil.SetLedger(t, store, alice,
		[]academic.AttendanceEntry{{SubjectID: maths.ID, Date: testutil.Day(2024, 1, 1), Status: academic.StatusPresent}},
		[]academic.ExamResult{{SubjectID: maths.ID, Marks: 80}},
	)

	engine := cascade.NewEngine(store, testutil.NewLogger(), nil)
	sum, err := engine.DeleteClass(ctx, sch.Actor(), class.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Subjects)
	assert.Equal(t, 1, sum.Students)
	assert.Equal(t, 2, sum.TeachersUnassigned, "class ref, then subject ref")

	got, err := store.GetTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Empty(t, got.ClassID)
	assert.Empty(t, got.SubjectID)

	_, err = store.GetStudent(ctx, alice.ID)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestAcademicStore_TeacherAttendance(t *testing.T) {
	db := testutil.NewTestDB(t)
	store := sqlxrepos.NewAcademicStore(db)
	sch := testutil.CreateSchool(t, sqlxrepos.NewSchoolRepository(db), "Jane Doe", "Greenwood High", "jane@greenwood.edu", "")
	ctx := context.Background()

	class := testutil.CreateClass(t, store, sch.ID, "Grade 1")
	maths := testutil.CreateSubject(t, store, class, "Maths", "MTH1", 10)
	teacher := testutil.CreateTeacher(t, store, sch.ID, "Mr Maths", "maths@greenwood.edu", "", maths)

	teacher.Attendance = []academic.AttendanceEntry{
		{SubjectID: maths.ID, Date: testutil.Day(2024, 1, 1), Status: academic.StatusPresent},
		{Date: testutil.Day(2024, 1, 2), Status: academic.StatusAbsent},
	}
	_, err := store.UpdateTeacher(ctx, teacher)
	require.NoError(t, err)

	got, err := store.GetTeacher(ctx, teacher.ID)
	require.NoError(t, err)
	require.Len(t, got.Attendance, 2)
	for _, e := range got.Attendance {
		assert.Empty(t, e.SubjectID, "teacher attendance is keyed by day only")
	}
	assert.Equal(t, academic.StatusAbsent, got.Attendance[1].Status)
}
