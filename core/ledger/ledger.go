// Package ledger records the attendance and exam results of students and teachers.
package ledger

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
)

// Operation names, as reported to metrics.
const (
	OpRecordStudentAttendance = "record_student_attendance"
	OpRecordTeacherAttendance = "record_teacher_attendance"
	OpRecordExamResult        = "record_exam_result"
	OpClearStudentAttendance  = "clear_student_attendance"
	OpClearTeacherAttendance  = "clear_teacher_attendance"
	OpClearSubjectAttendance  = "clear_subject_attendance"
	OpClearSchoolAttendance   = "clear_school_attendance"
)

var errSubjectRequired = core.NewValidationError(nil, core.FieldError{Field: "subject_id", Error: "this field is required"})

type Ledger struct {
	store    academic.Store
	validate *validator.Validate
	logger   core.Logger
	metrics  core.Metrics
}

func New(store academic.Store, validate *validator.Validate, logger core.Logger, metrics core.Metrics) *Ledger {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Ledger{store: store, validate: validate, logger: logger, metrics: metrics}
}

func (l *Ledger) observe(op string, err error) error {
	l.metrics.ObserveLedger(op, err)
	return err
}

func attendanceDay(d core.Date) time.Time {
	if d.IsZero() {
		return core.StartOfDay(time.Now().UTC())
	}
	return core.StartOfDay(d.Time)
}

// schoolScope restricts mutations to the actor's school; the system actor sees every school.
func schoolScope(actor core.Actor) string {
	if actor.IsSystem() {
		return ""
	}
	return actor.SchoolID
}

// RecordStudentAttendance sets the student's status for a subject on a calendar day.
// Recording a day twice overwrites its status. A new day is refused with core.ErrCapacityExceeded
// once the subject's sessions are all recorded.
func (l *Ledger) RecordStudentAttendance(ctx context.Context, actor core.Actor, studentID string, ra RecordAttendance) (academic.Student, error) {
	if err := ra.Validate(l.validate); err != nil {
		return academic.Student{}, err
	}
	if ra.SubjectID == "" {
		return academic.Student{}, errSubjectRequired
	}
	day := attendanceDay(ra.Date)

	var student academic.Student
	err := l.store.Atomic(ctx, func(tx academic.Store) error {
		var err error
		if student, err = academic.GetStudentFor(ctx, tx, actor, studentID); err != nil {
			return err
		}
		if err = academic.CheckLiveMarker(ctx, tx, actor, student.SchoolID); err != nil {
			return err
		}
		subject, err := academic.GetSubjectFor(ctx, tx, actor, ra.SubjectID)
		if err != nil {
			return err
		}
		if subject.SchoolID != student.SchoolID {
			return core.NewNotFoundError("subject")
		}

		attendance := append([]academic.AttendanceEntry(nil), student.Attendance...)
		found := false
		for i, e := range attendance {
			if e.SubjectID == subject.ID && core.SameDay(e.Date, day) {
				attendance[i].Status = ra.Status
				found = true
				break
			}
		}
		if !found {
			if student.AttendanceCount(subject.ID) >= subject.Sessions {
				return core.ErrCapacityExceeded
			}
			attendance = append(attendance, academic.AttendanceEntry{SubjectID: subject.ID, Date: day, Status: ra.Status})
		}

		student.Attendance = attendance
		student.UpdatedAt = time.Now().UTC()
		student, err = tx.UpdateStudent(ctx, student)
		return errors.Wrap(err, "saving student attendance")
	})
	if err = l.observe(OpRecordStudentAttendance, err); err != nil {
		return academic.Student{}, err
	}
	return student, nil
}

// RecordTeacherAttendance sets the teacher's status on a calendar day. Teachers may only mark themselves.
func (l *Ledger) RecordTeacherAttendance(ctx context.Context, actor core.Actor, teacherID string, ra RecordAttendance) (academic.Teacher, error) {
	if err := ra.Validate(l.validate); err != nil {
		return academic.Teacher{}, err
	}
	day := attendanceDay(ra.Date)

	var teacher academic.Teacher
	err := l.store.Atomic(ctx, func(tx academic.Store) error {
		var err error
		if teacher, err = academic.GetTeacherFor(ctx, tx, actor, teacherID); err != nil {
			return err
		}
		if err = academic.CheckLiveMarker(ctx, tx, actor, teacher.SchoolID); err != nil {
			return err
		}
		if actor.IsTeacher() && actor.ID != teacher.ID {
			return core.ErrForbidden
		}

		attendance := append([]academic.AttendanceEntry(nil), teacher.Attendance...)
		found := false
		for i, e := range attendance {
			if core.SameDay(e.Date, day) {
				attendance[i].Status = ra.Status
				found = true
				break
			}
		}
		if !found {
			attendance = append(attendance, academic.AttendanceEntry{Date: day, Status: ra.Status})
		}

		teacher.Attendance = attendance
		teacher.UpdatedAt = time.Now().UTC()
		teacher, err = tx.UpdateTeacher(ctx, teacher)
		return errors.Wrap(err, "saving teacher attendance")
	})
	if err = l.observe(OpRecordTeacherAttendance, err); err != nil {
		return academic.Teacher{}, err
	}
	return teacher, nil
}

// RecordExamResult sets the student's marks for a subject, replacing any previous result.
func (l *Ledger) RecordExamResult(ctx context.Context, actor core.Actor, studentID string, rr RecordResult) (academic.Student, error) {
	if err := rr.Validate(l.validate); err != nil {
		return academic.Student{}, err
	}

	var student academic.Student
	err := l.store.Atomic(ctx, func(tx academic.Store) error {
		var err error
		if student, err = academic.GetStudentFor(ctx, tx, actor, studentID); err != nil {
			return err
		}
		if err = academic.CheckLiveMarker(ctx, tx, actor, student.SchoolID); err != nil {
			return err
		}
		subject, err := academic.GetSubjectFor(ctx, tx, actor, rr.SubjectID)
		if err != nil {
			return err
		}
		if subject.SchoolID != student.SchoolID {
			return core.NewNotFoundError("subject")
		}

		results := append([]academic.ExamResult(nil), student.ExamResults...)
		found := false
		for i, r := range results {
			if r.SubjectID == subject.ID {
				results[i].Marks = rr.Marks
				found = true
				break
			}
		}
		if !found {
			results = append(results, academic.ExamResult{SubjectID: subject.ID, Marks: rr.Marks})
		}

		student.ExamResults = results
		student.UpdatedAt = time.Now().UTC()
		student, err = tx.UpdateStudent(ctx, student)
		return errors.Wrap(err, "saving exam result")
	})
	if err = l.observe(OpRecordExamResult, err); err != nil {
		return academic.Student{}, err
	}
	return student, nil
}

// Clears never report a missing target: clearing what is already clear is a success.

// ClearStudentAttendance removes every attendance entry of a student.
func (l *Ledger) ClearStudentAttendance(ctx context.Context, actor core.Actor, studentID string) (int, error) {
	return l.ClearStudentAttendanceForSubject(ctx, actor, studentID, "")
}

// ClearStudentAttendanceForSubject removes a student's attendance entries for one subject,
// or for every subject when subjectID is empty.
func (l *Ledger) ClearStudentAttendanceForSubject(ctx context.Context, actor core.Actor, studentID, subjectID string) (int, error) {
	if err := academic.CheckLiveMarker(ctx, l.store, actor, actor.SchoolID); err != nil {
		return 0, err
	}

	scope := academic.LedgerScope{Attendance: true}
	if subjectID != "" {
		scope.SubjectIDs = []string{subjectID}
	}
	var n int
	err := l.store.Atomic(ctx, func(tx academic.Store) error {
		var err error
		n, err = tx.StripLedger(ctx, academic.StudentFilter{IDs: []string{studentID}, SchoolID: schoolScope(actor)}, scope)
		return errors.Wrap(err, "clearing student attendance")
	})
	if err = l.observe(OpClearStudentAttendance, err); err != nil {
		return 0, err
	}
	return n, nil
}

// ClearTeacherAttendance removes every attendance entry of a teacher.
func (l *Ledger) ClearTeacherAttendance(ctx context.Context, actor core.Actor, teacherID string) (int, error) {
	if err := academic.CheckManager(actor, actor.SchoolID); err != nil {
		return 0, err
	}

	var n int
	err := l.store.Atomic(ctx, func(tx academic.Store) error {
		teachers, err := tx.QueryTeachers(ctx, academic.TeacherFilter{IDs: []string{teacherID}, SchoolID: schoolScope(actor)})
		if err != nil {
			return errors.Wrap(err, "querying teacher")
		}
		for _, t := range teachers {
			if len(t.Attendance) == 0 {
				continue
			}
			t.Attendance = []academic.AttendanceEntry{}
			t.UpdatedAt = time.Now().UTC()
			if _, err = tx.UpdateTeacher(ctx, t); err != nil {
				return errors.Wrap(err, "clearing teacher attendance")
			}
			n++
		}
		return nil
	})
	if err = l.observe(OpClearTeacherAttendance, err); err != nil {
		return 0, err
	}
	return n, nil
}

// ClearAttendanceForSubject removes the attendance recorded for a subject from every student.
func (l *Ledger) ClearAttendanceForSubject(ctx context.Context, actor core.Actor, subjectID string) (int, error) {
	if err := academic.CheckManager(actor, actor.SchoolID); err != nil {
		return 0, err
	}

	var n int
	err := l.store.Atomic(ctx, func(tx academic.Store) error {
		subject, err := tx.GetSubject(ctx, subjectID)
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		if err != nil {
			return errors.Wrap(err, "getting subject")
		}
		if !actor.CanAccess(subject.SchoolID) {
			return nil
		}
		n, err = tx.StripLedger(ctx,
			academic.StudentFilter{SchoolID: subject.SchoolID},
			academic.LedgerScope{SubjectIDs: []string{subject.ID}, Attendance: true},
		)
		return errors.Wrap(err, "clearing subject attendance")
	})
	if err = l.observe(OpClearSubjectAttendance, err); err != nil {
		return 0, err
	}
	return n, nil
}

// ClearAttendanceForSchool removes the attendance of every student of a school.
func (l *Ledger) ClearAttendanceForSchool(ctx context.Context, actor core.Actor, schoolID string) (int, error) {
	if err := academic.CheckManager(actor, schoolID); err != nil {
		return 0, err
	}
	if schoolID == "" {
		return 0, nil
	}

	var n int
	err := l.store.Atomic(ctx, func(tx academic.Store) error {
		var err error
		n, err = tx.StripLedger(ctx, academic.StudentFilter{SchoolID: schoolID}, academic.LedgerScope{Attendance: true})
		return errors.Wrap(err, "clearing school attendance")
	})
	if err = l.observe(OpClearSchoolAttendance, err); err != nil {
		return 0, err
	}
	if n > 0 {
		l.logger.Info("school attendance cleared", map[string]interface{}{"school_id": schoolID, "students": n}, actor)
	}
	return n, nil
}
