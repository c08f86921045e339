package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/storage/database"
)

const (
	classColumns   = "id, school_id, name, created_at, updated_at"
	subjectColumns = "id, school_id, class_id, teacher_id, name, code, sessions, created_at, updated_at"
	teacherColumns = "id, school_id, class_id, subject_id, name, email, password_hash, created_at, updated_at"
	studentColumns = "id, school_id, class_id, name, roll_num, password_hash, created_at, updated_at"
)

type (
	classRow struct {
		ID        string    `db:"id"`
		SchoolID  string    `db:"school_id"`
		Name      string    `db:"name"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}

	subjectRow struct {
		ID        string      `db:"id"`
		SchoolID  string      `db:"school_id"`
		ClassID   string      `db:"class_id"`
		TeacherID null.String `db:"teacher_id"`
		Name      string      `db:"name"`
		Code      string      `db:"code"`
		Sessions  int         `db:"sessions"`
		CreatedAt time.Time   `db:"created_at"`
		UpdatedAt time.Time   `db:"updated_at"`
	}

	teacherRow struct {
		ID           string      `db:"id"`
		SchoolID     string      `db:"school_id"`
		ClassID      null.String `db:"class_id"`
		SubjectID    null.String `db:"subject_id"`
		Name         string      `db:"name"`
		Email        string      `db:"email"`
		PasswordHash []byte      `db:"password_hash"`
		CreatedAt    time.Time   `db:"created_at"`
		UpdatedAt    time.Time   `db:"updated_at"`
	}

	studentRow struct {
		ID           string    `db:"id"`
		SchoolID     string    `db:"school_id"`
		ClassID      string    `db:"class_id"`
		Name         string    `db:"name"`
		RollNum      int       `db:"roll_num"`
		PasswordHash []byte    `db:"password_hash"`
		CreatedAt    time.Time `db:"created_at"`
		UpdatedAt    time.Time `db:"updated_at"`
	}

	attendanceRow struct {
		OwnerID   string      `db:"owner_id"`
		SubjectID null.String `db:"subject_id"`
		Day       time.Time   `db:"day"`
		Status    string      `db:"status"`
	}

	resultRow struct {
		OwnerID   string  `db:"owner_id"`
		SubjectID string  `db:"subject_id"`
		Marks     float64 `db:"marks"`
	}
)

func (r classRow) toClass() academic.Class {
	return academic.Class{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r subjectRow) toSubject() academic.Subject {
	return academic.Subject{
		ID:        r.ID,
		SchoolID:  r.SchoolID,
		ClassID:   r.ClassID,
		TeacherID: r.TeacherID.String,
		Name:      r.Name,
		Code:      r.Code,
		Sessions:  r.Sessions,
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

func (r teacherRow) toTeacher() academic.Teacher {
	return academic.Teacher{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		ClassID:      r.ClassID.String,
		SubjectID:    r.SubjectID.String,
		Name:         r.Name,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		Attendance:   []academic.AttendanceEntry{},
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (r studentRow) toStudent() academic.Student {
	return academic.Student{
		ID:           r.ID,
		SchoolID:     r.SchoolID,
		ClassID:      r.ClassID,
		Name:         r.Name,
		RollNum:      r.RollNum,
		PasswordHash: r.PasswordHash,
		Attendance:   []academic.AttendanceEntry{},
		ExamResults:  []academic.ExamResult{},
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
	}
}

func (r attendanceRow) toEntry() academic.AttendanceEntry {
	return academic.AttendanceEntry{
		SubjectID: r.SubjectID.String,
		Date:      core.StartOfDay(r.Day),
		Status:    academic.Status(r.Status),
	}
}

func nullable(s string) null.String {
	return null.NewString(s, s != "")
}

func classConds(c *clause, f academic.ClassFilter) *clause {
	if len(f.IDs) > 0 {
		c.add("id = ANY(?)", pq.Array(f.IDs))
	}
	if f.SchoolID != "" {
		c.add("school_id = ?", f.SchoolID)
	}
	if f.Name != "" {
		c.add("name = ?", f.Name)
	}
	return c
}

func subjectConds(c *clause, f academic.SubjectFilter) *clause {
	if len(f.IDs) > 0 {
		c.add("id = ANY(?)", pq.Array(f.IDs))
	}
	if f.SchoolID != "" {
		c.add("school_id = ?", f.SchoolID)
	}
	if f.ClassID != "" {
		c.add("class_id = ?", f.ClassID)
	}
	if len(f.Codes) > 0 {
		c.add("code = ANY(?)", pq.Array(f.Codes))
	}
	if len(f.TeacherIDs) > 0 {
		c.add("teacher_id = ANY(?)", pq.Array(f.TeacherIDs))
	}
	if f.Unassigned {
		c.raw("teacher_id IS NULL")
	}
	return c
}

func teacherConds(c *clause, f academic.TeacherFilter) *clause {
	if len(f.IDs) > 0 {
		c.add("id = ANY(?)", pq.Array(f.IDs))
	}
	if f.SchoolID != "" {
		c.add("school_id = ?", f.SchoolID)
	}
	if f.ClassID != "" {
		c.add("class_id = ?", f.ClassID)
	}
	if len(f.SubjectIDs) > 0 {
		c.add("subject_id = ANY(?)", pq.Array(f.SubjectIDs))
	}
	if f.Email != "" {
		c.add("email = ?", f.Email)
	}
	return c
}

func studentConds(c *clause, f academic.StudentFilter) *clause {
	if len(f.IDs) > 0 {
		c.add("id = ANY(?)", pq.Array(f.IDs))
	}
	if f.SchoolID != "" {
		c.add("school_id = ?", f.SchoolID)
	}
	if f.ClassID != "" {
		c.add("class_id = ?", f.ClassID)
	}
	if f.RollNum != 0 {
		c.add("roll_num = ?", f.RollNum)
	}
	if f.Name != "" {
		c.add("name = ?", f.Name)
	}
	return c
}

type academicStore struct {
	db *sqlx.DB
	tx *sqlx.Tx // set inside Atomic
}

var _ academic.Store = (*academicStore)(nil) // interface compliance check

func NewAcademicStore(db *sqlx.DB) academic.Store {
	return &academicStore{db: db}
}

func (s *academicStore) q() sqlx.ExtContext {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

// forUpdate locks the rows read inside a transaction until it ends.
func (s *academicStore) forUpdate() string {
	if s.tx != nil {
		return " FOR UPDATE"
	}
	return ""
}

func (s *academicStore) Atomic(ctx context.Context, fn func(tx academic.Store) error) error {
	if s.tx != nil { // already in a transaction
		return fn(s)
	}
	return withTx(ctx, s.db, func(tx *sqlx.Tx) error {
		return fn(&academicStore{db: s.db, tx: tx})
	})
}

// atomic runs multi-statement writes in the current transaction, or a new one.
func (s *academicStore) atomic(ctx context.Context, fn func(tx *academicStore) error) error {
	return s.Atomic(ctx, func(tx academic.Store) error {
		return fn(tx.(*academicStore))
	})
}

// Classes

func (s *academicStore) CreateClass(ctx context.Context, class academic.Class) (academic.Class, error) {
	class.ID = uuid.NewString()
	_, err := s.q().ExecContext(ctx,
		"INSERT INTO classes ("+classColumns+") VALUES ($1, $2, $3, $4, $5)",
		class.ID, class.SchoolID, class.Name, class.CreatedAt, class.UpdatedAt,
	)
	if err != nil {
		if _, dup := database.UniqueViolation(err); dup {
			return academic.Class{}, core.NewDuplicateKeyError("name", "a class with this name already exists")
		}
		return academic.Class{}, core.StoreFailure(err, "inserting class")
	}
	return class, nil
}

func (s *academicStore) GetClass(ctx context.Context, id string) (academic.Class, error) {
	var row classRow
	if err := sqlx.GetContext(ctx, s.q(), &row, "SELECT "+classColumns+" FROM classes WHERE id = $1", id); err != nil {
		return academic.Class{}, notFoundOr(err, "class", "selecting class")
	}
	return row.toClass(), nil
}

func (s *academicStore) QueryClasses(ctx context.Context, filter academic.ClassFilter) ([]academic.Class, error) {
	c := classConds(new(clause), filter)
	var rows []classRow
	err := sqlx.SelectContext(ctx, s.q(), &rows, "SELECT "+classColumns+" FROM classes"+c.where()+" ORDER BY seq", c.args...)
	if err != nil {
		return nil, core.StoreFailure(err, "selecting classes")
	}
	classes := make([]academic.Class, len(rows))
	for i, row := range rows {
		classes[i] = row.toClass()
	}
	return classes, nil
}

func (s *academicStore) DeleteClasses(ctx context.Context, filter academic.ClassFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	c := classConds(new(clause), filter)
	return exec(ctx, s.q(), "deleting classes", "DELETE FROM classes"+c.where(), c.args...)
}

// Subjects

func (s *academicStore) CreateSubjects(ctx context.Context, subjects ...academic.Subject) ([]academic.Subject, error) {
	created := make([]academic.Subject, 0, len(subjects))
	err := s.atomic(ctx, func(tx *academicStore) error {
		for _, subj := range subjects {
			subj.ID = uuid.NewString()
			_, err := tx.q().ExecContext(ctx,
				"INSERT INTO subjects ("+subjectColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
				subj.ID, subj.SchoolID, subj.ClassID, nullable(subj.TeacherID), subj.Name, subj.Code, subj.Sessions,
				subj.CreatedAt, subj.UpdatedAt,
			)
			if err != nil {
				if _, dup := database.UniqueViolation(err); dup {
					return core.NewDuplicateKeyError("code", "subject code "+subj.Code+" already exists")
				}
				return core.StoreFailure(err, "inserting subject")
			}
			created = append(created, subj)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *academicStore) GetSubject(ctx context.Context, id string) (academic.Subject, error) {
	var row subjectRow
	if err := sqlx.GetContext(ctx, s.q(), &row, "SELECT "+subjectColumns+" FROM subjects WHERE id = $1", id); err != nil {
		return academic.Subject{}, notFoundOr(err, "subject", "selecting subject")
	}
	return row.toSubject(), nil
}

func (s *academicStore) QuerySubjects(ctx context.Context, filter academic.SubjectFilter) ([]academic.Subject, error) {
	c := subjectConds(new(clause), filter)
	var rows []subjectRow
	err := sqlx.SelectContext(ctx, s.q(), &rows, "SELECT "+subjectColumns+" FROM subjects"+c.where()+" ORDER BY seq", c.args...)
	if err != nil {
		return nil, core.StoreFailure(err, "selecting subjects")
	}
	subjects := make([]academic.Subject, len(rows))
	for i, row := range rows {
		subjects[i] = row.toSubject()
	}
	return subjects, nil
}

func (s *academicStore) SetSubjectsTeacher(ctx context.Context, filter academic.SubjectFilter, teacherID string) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	c := new(clause)
	ref := c.bind(nullable(teacherID))
	subjectConds(c, filter).raw("teacher_id IS DISTINCT FROM " + ref)
	return exec(ctx, s.q(), "updating subjects teacher", "UPDATE subjects SET teacher_id = "+ref+c.where(), c.args...)
}

func (s *academicStore) DeleteSubjects(ctx context.Context, filter academic.SubjectFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	c := subjectConds(new(clause), filter)
	return exec(ctx, s.q(), "deleting subjects", "DELETE FROM subjects"+c.where(), c.args...)
}

// Teachers

func (s *academicStore) CreateTeacher(ctx context.Context, teacher academic.Teacher) (academic.Teacher, error) {
	teacher.ID = uuid.NewString()
	err := s.atomic(ctx, func(tx *academicStore) error {
		_, err := tx.q().ExecContext(ctx,
			"INSERT INTO teachers ("+teacherColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)",
			teacher.ID, teacher.SchoolID, nullable(teacher.ClassID), nullable(teacher.SubjectID), teacher.Name,
			teacher.Email, teacher.PasswordHash, teacher.CreatedAt, teacher.UpdatedAt,
		)
		if err != nil {
			return teacherWriteError(err, "inserting teacher")
		}
		return tx.insertTeacherAttendance(ctx, teacher)
	})
	if err != nil {
		return academic.Teacher{}, err
	}
	return teacher, nil
}

func teacherWriteError(err error, op string) error {
	if _, dup := database.UniqueViolation(err); dup {
		return core.NewDuplicateKeyError("email", "a teacher with this email already exists")
	}
	return core.StoreFailure(err, op)
}

func (s *academicStore) insertTeacherAttendance(ctx context.Context, teacher academic.Teacher) error {
	for _, e := range teacher.Attendance {
		_, err := s.q().ExecContext(ctx,
			"INSERT INTO teacher_attendance (teacher_id, day, status) VALUES ($1, $2, $3)",
			teacher.ID, day(e.Date), string(e.Status),
		)
		if err != nil {
			return core.StoreFailure(err, "inserting teacher attendance")
		}
	}
	return nil
}

func (s *academicStore) GetTeacher(ctx context.Context, id string) (academic.Teacher, error) {
	var row teacherRow
	err := sqlx.GetContext(ctx, s.q(), &row, "SELECT "+teacherColumns+" FROM teachers WHERE id = $1"+s.forUpdate(), id)
	if err != nil {
		return academic.Teacher{}, notFoundOr(err, "teacher", "selecting teacher")
	}
	teachers, err := s.withTeacherAttendance(ctx, []teacherRow{row})
	if err != nil {
		return academic.Teacher{}, err
	}
	return teachers[0], nil
}

func (s *academicStore) QueryTeachers(ctx context.Context, filter academic.TeacherFilter) ([]academic.Teacher, error) {
	c := teacherConds(new(clause), filter)
	var rows []teacherRow
	err := sqlx.SelectContext(ctx, s.q(), &rows, "SELECT "+teacherColumns+" FROM teachers"+c.where()+" ORDER BY seq", c.args...)
	if err != nil {
		return nil, core.StoreFailure(err, "selecting teachers")
	}
	return s.withTeacherAttendance(ctx, rows)
}

func (s *academicStore) withTeacherAttendance(ctx context.Context, rows []teacherRow) ([]academic.Teacher, error) {
	teachers := make([]academic.Teacher, len(rows))
	if len(rows) == 0 {
		return teachers, nil
	}
	index := make(map[string]int, len(rows))
	ids := make([]string, len(rows))
	for i, row := range rows {
		teachers[i] = row.toTeacher()
		index[row.ID] = i
		ids[i] = row.ID
	}

	var entries []attendanceRow
	err := sqlx.SelectContext(ctx, s.q(), &entries,
		"SELECT teacher_id AS owner_id, NULL AS subject_id, day, status FROM teacher_attendance WHERE teacher_id = ANY($1) ORDER BY seq",
		pq.Array(ids),
	)
	if err != nil {
		return nil, core.StoreFailure(err, "selecting teacher attendance")
	}
	for _, e := range entries {
		t := &teachers[index[e.OwnerID]]
		t.Attendance = append(t.Attendance, e.toEntry())
	}
	return teachers, nil
}

func (s *academicStore) UpdateTeacher(ctx context.Context, teacher academic.Teacher) (academic.Teacher, error) {
	err := s.atomic(ctx, func(tx *academicStore) error {
		n, err := exec(ctx, tx.q(), "updating teacher",
			`UPDATE teachers SET class_id = $2, subject_id = $3, name = $4, email = $5, password_hash = $6, updated_at = $7
			WHERE id = $1`,
			teacher.ID, nullable(teacher.ClassID), nullable(teacher.SubjectID), teacher.Name, teacher.Email,
			teacher.PasswordHash, teacher.UpdatedAt,
		)
		if err != nil {
			return teacherWriteError(err, "updating teacher")
		}
		if n == 0 {
			return core.NewNotFoundError("teacher")
		}
		if _, err = exec(ctx, tx.q(), "deleting teacher attendance",
			"DELETE FROM teacher_attendance WHERE teacher_id = $1", teacher.ID); err != nil {
			return err
		}
		return tx.insertTeacherAttendance(ctx, teacher)
	})
	if err != nil {
		return academic.Teacher{}, err
	}
	return teacher, nil
}

func (s *academicStore) ClearTeacherRefs(ctx context.Context, filter academic.TeacherFilter, refs academic.TeacherRefs) (int, error) {
	var sets, set []string
	if refs.Class {
		sets = append(sets, "class_id = NULL")
		set = append(set, "class_id IS NOT NULL")
	}
	if refs.Subject {
		sets = append(sets, "subject_id = NULL")
		set = append(set, "subject_id IS NOT NULL")
	}
	if filter.IsZero() || len(sets) == 0 {
		return 0, nil
	}
	c := teacherConds(new(clause), filter).raw("(" + strings.Join(set, " OR ") + ")")
	return exec(ctx, s.q(), "clearing teacher refs", "UPDATE teachers SET "+strings.Join(sets, ", ")+c.where(), c.args...)
}

func (s *academicStore) DeleteTeachers(ctx context.Context, filter academic.TeacherFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	c := teacherConds(new(clause), filter)
	return exec(ctx, s.q(), "deleting teachers", "DELETE FROM teachers"+c.where(), c.args...)
}

// Students

func (s *academicStore) CreateStudent(ctx context.Context, student academic.Student) (academic.Student, error) {
	student.ID = uuid.NewString()
	err := s.atomic(ctx, func(tx *academicStore) error {
		_, err := tx.q().ExecContext(ctx,
			"INSERT INTO students ("+studentColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8)",
			student.ID, student.SchoolID, student.ClassID, student.Name, student.RollNum, student.PasswordHash,
			student.CreatedAt, student.UpdatedAt,
		)
		if err != nil {
			return studentWriteError(err, "inserting student")
		}
		return tx.insertLedger(ctx, student)
	})
	if err != nil {
		return academic.Student{}, err
	}
	return student, nil
}

func studentWriteError(err error, op string) error {
	if _, dup := database.UniqueViolation(err); dup {
		return core.NewDuplicateKeyError("roll_num", "a student with this roll number already exists in this class")
	}
	return core.StoreFailure(err, op)
}

func (s *academicStore) insertLedger(ctx context.Context, student academic.Student) error {
	for _, e := range student.Attendance {
		_, err := s.q().ExecContext(ctx,
			"INSERT INTO student_attendance (student_id, subject_id, day, status) VALUES ($1, $2, $3, $4)",
			student.ID, e.SubjectID, day(e.Date), string(e.Status),
		)
		if err != nil {
			return core.StoreFailure(err, "inserting student attendance")
		}
	}
	for _, r := range student.ExamResults {
		_, err := s.q().ExecContext(ctx,
			"INSERT INTO exam_results (student_id, subject_id, marks) VALUES ($1, $2, $3)",
			student.ID, r.SubjectID, r.Marks,
		)
		if err != nil {
			return core.StoreFailure(err, "inserting exam result")
		}
	}
	return nil
}

func (s *academicStore) GetStudent(ctx context.Context, id string) (academic.Student, error) {
	var row studentRow
	err := sqlx.GetContext(ctx, s.q(), &row, "SELECT "+studentColumns+" FROM students WHERE id = $1"+s.forUpdate(), id)
	if err != nil {
		return academic.Student{}, notFoundOr(err, "student", "selecting student")
	}
	students, err := s.withLedger(ctx, []studentRow{row})
	if err != nil {
		return academic.Student{}, err
	}
	return students[0], nil
}

func (s *academicStore) QueryStudents(ctx context.Context, filter academic.StudentFilter) ([]academic.Student, error) {
	c := studentConds(new(clause), filter)
	var rows []studentRow
	err := sqlx.SelectContext(ctx, s.q(), &rows, "SELECT "+studentColumns+" FROM students"+c.where()+" ORDER BY seq", c.args...)
	if err != nil {
		return nil, core.StoreFailure(err, "selecting students")
	}
	return s.withLedger(ctx, rows)
}

func (s *academicStore) withLedger(ctx context.Context, rows []studentRow) ([]academic.Student, error) {
	students := make([]academic.Student, len(rows))
	if len(rows) == 0 {
		return students, nil
	}
	index := make(map[string]int, len(rows))
	ids := make([]string, len(rows))
	for i, row := range rows {
		students[i] = row.toStudent()
		index[row.ID] = i
		ids[i] = row.ID
	}

	var entries []attendanceRow
	err := sqlx.SelectContext(ctx, s.q(), &entries,
		"SELECT student_id AS owner_id, subject_id, day, status FROM student_attendance WHERE student_id = ANY($1) ORDER BY seq",
		pq.Array(ids),
	)
	if err != nil {
		return nil, core.StoreFailure(err, "selecting student attendance")
	}
	for _, e := range entries {
		st := &students[index[e.OwnerID]]
		st.Attendance = append(st.Attendance, e.toEntry())
	}

	var results []resultRow
	err = sqlx.SelectContext(ctx, s.q(), &results,
		"SELECT student_id AS owner_id, subject_id, marks FROM exam_results WHERE student_id = ANY($1) ORDER BY seq",
		pq.Array(ids),
	)
	if err != nil {
		return nil, core.StoreFailure(err, "selecting exam results")
	}
	for _, r := range results {
		st := &students[index[r.OwnerID]]
		st.ExamResults = append(st.ExamResults, academic.ExamResult{SubjectID: r.SubjectID, Marks: r.Marks})
	}
	return students, nil
}

func (s *academicStore) UpdateStudent(ctx context.Context, student academic.Student) (academic.Student, error) {
	err := s.atomic(ctx, func(tx *academicStore) error {
		n, err := exec(ctx, tx.q(), "updating student",
			`UPDATE students SET class_id = $2, name = $3, roll_num = $4, password_hash = $5, updated_at = $6
			WHERE id = $1`,
			student.ID, student.ClassID, student.Name, student.RollNum, student.PasswordHash, student.UpdatedAt,
		)
		if err != nil {
			return studentWriteError(err, "updating student")
		}
		if n == 0 {
			return core.NewNotFoundError("student")
		}
		for _, table := range []string{"student_attendance", "exam_results"} {
			if _, err = exec(ctx, tx.q(), "deleting "+table,
				"DELETE FROM "+table+" WHERE student_id = $1", student.ID); err != nil {
				return err
			}
		}
		return tx.insertLedger(ctx, student)
	})
	if err != nil {
		return academic.Student{}, err
	}
	return student, nil
}

func (s *academicStore) DeleteStudents(ctx context.Context, filter academic.StudentFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	c := studentConds(new(clause), filter)
	return exec(ctx, s.q(), "deleting students", "DELETE FROM students"+c.where(), c.args...)
}

func (s *academicStore) StripLedger(ctx context.Context, filter academic.StudentFilter, scope academic.LedgerScope) (n int, err error) {
	if filter.IsZero() || (!scope.Attendance && !scope.Results) {
		return 0, nil
	}
	err = s.atomic(ctx, func(tx *academicStore) error {
		c := studentConds(new(clause), filter)
		var ids []string
		if err := sqlx.SelectContext(ctx, tx.q(), &ids, "SELECT id FROM students"+c.where()+tx.forUpdate(), c.args...); err != nil {
			return core.StoreFailure(err, "selecting students")
		}
		if len(ids) == 0 {
			return nil
		}

		var tables []string
		if scope.Attendance {
			tables = append(tables, "student_attendance")
		}
		if scope.Results {
			tables = append(tables, "exam_results")
		}
		stripped := make(map[string]bool)
		for _, table := range tables {
			c := new(clause).add("student_id = ANY(?)", pq.Array(ids))
			if len(scope.SubjectIDs) > 0 {
				c.add("subject_id = ANY(?)", pq.Array(scope.SubjectIDs))
			}
			var owners []string
			query := "DELETE FROM " + table + c.where() + " RETURNING student_id"
			if err := sqlx.SelectContext(ctx, tx.q(), &owners, query, c.args...); err != nil {
				return core.StoreFailure(err, "deleting "+table)
			}
			for _, id := range owners {
				stripped[id] = true
			}
		}
		n = len(stripped)
		return nil
	})
	return
}
