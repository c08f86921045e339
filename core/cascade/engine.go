// Package cascade deletes academic entities together with everything that depends on them,
// so that no reference or ledger entry ever points at a deleted entity.
package cascade

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
)

// Operation names, as reported to logs & metrics.
const (
	OpDeleteClass             = "delete_class"
	OpDeleteAllClasses        = "delete_all_classes"
	OpDeleteSubject           = "delete_subject"
	OpDeleteSubjectsForSchool = "delete_subjects_for_school"
	OpDeleteSubjectsForClass  = "delete_subjects_for_class"
	OpDeleteTeacher           = "delete_teacher"
	OpDeleteTeachersForSchool = "delete_teachers_for_school"
)

// Summary describes what a cascade did. The single-root operations report the deleted root.
type Summary struct {
	Class   *academic.Class   `json:"class,omitempty"`
	Subject *academic.Subject `json:"subject,omitempty"`
	Teacher *academic.Teacher `json:"teacher,omitempty"`

	Classes  int `json:"classes_deleted"`
	Subjects int `json:"subjects_deleted"`
	Teachers int `json:"teachers_deleted"`
	Students int `json:"students_deleted"`

	TeachersUnassigned int `json:"teacher_refs_cleared"`
	SubjectsUnassigned int `json:"subjects_unassigned"`
	StudentsStripped   int `json:"students_stripped"`
}

// Mutations counts every row deleted or updated.
func (s Summary) Mutations() int {
	return s.Classes + s.Subjects + s.Teachers + s.Students +
		s.TeachersUnassigned + s.SubjectsUnassigned + s.StudentsStripped
}

type Engine struct {
	store   academic.Store
	logger  core.Logger
	metrics core.Metrics
}

func NewEngine(store academic.Store, logger core.Logger, metrics core.Metrics) *Engine {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Engine{store: store, logger: logger, metrics: metrics}
}

// run executes fn in a single transaction. On failure nothing fn did is kept.
func (e *Engine) run(ctx context.Context, op string, actor core.Actor, fn func(tx academic.Store, sum *Summary) error) (Summary, error) {
	var sum Summary
	err := e.store.Atomic(ctx, func(tx academic.Store) error {
		sum = Summary{} // Atomic may retry fn
		return fn(tx, &sum)
	})
	if err != nil {
		e.metrics.ObserveCascade(op, err, 0)
		if !errors.Is(err, core.ErrNotFound) && !errors.Is(err, core.ErrForbidden) {
			e.logger.Error("cascade "+op+" failed", err, actor)
		}
		return Summary{}, err
	}

	e.metrics.ObserveCascade(op, nil, sum.Mutations())
	e.logger.Info("cascade "+op, map[string]interface{}{
		"classes":              sum.Classes,
		"subjects":             sum.Subjects,
		"teachers":             sum.Teachers,
		"students":             sum.Students,
		"teacher_refs_cleared": sum.TeachersUnassigned,
		"subjects_unassigned":  sum.SubjectsUnassigned,
		"students_stripped":    sum.StudentsStripped,
	}, actor)
	return sum, nil
}

// DeleteClass deletes a class, its students and subjects. Teachers of the class lose their
// class reference, teachers of its subjects their subject reference, and every student of the
// school loses the attendance & results recorded for those subjects.
func (e *Engine) DeleteClass(ctx context.Context, actor core.Actor, classID string) (Summary, error) {
	return e.run(ctx, OpDeleteClass, actor, func(tx academic.Store, sum *Summary) error {
		class, err := academic.GetClassFor(ctx, tx, actor, classID)
		if err != nil {
			return err
		}
		if err = academic.CheckManager(actor, class.SchoolID); err != nil {
			return err
		}

		if sum.Classes, err = tx.DeleteClasses(ctx, academic.ClassFilter{IDs: []string{class.ID}}); err != nil {
			return errors.Wrap(err, "deleting class")
		}
		sum.Class = &class

		subjects, err := tx.QuerySubjects(ctx, academic.SubjectFilter{SchoolID: class.SchoolID, ClassID: class.ID})
		if err != nil {
			return errors.Wrap(err, "querying class subjects")
		}
		subjectIDs := ids(subjects, func(s academic.Subject) string { return s.ID })

		if sum.Students, err = tx.DeleteStudents(ctx, academic.StudentFilter{SchoolID: class.SchoolID, ClassID: class.ID}); err != nil {
			return errors.Wrap(err, "deleting class students")
		}
		if sum.TeachersUnassigned, err = tx.ClearTeacherRefs(ctx,
			academic.TeacherFilter{SchoolID: class.SchoolID, ClassID: class.ID},
			academic.TeacherRefs{Class: true},
		); err != nil {
			return errors.Wrap(err, "clearing teachers class")
		}
		if len(subjectIDs) == 0 {
			return nil
		}

		if sum.Subjects, err = tx.DeleteSubjects(ctx, academic.SubjectFilter{SchoolID: class.SchoolID, IDs: subjectIDs}); err != nil {
			return errors.Wrap(err, "deleting class subjects")
		}
		return unlinkSubjects(ctx, tx, class.SchoolID, subjectIDs, sum)
	})
}

// DeleteAllClassesForSchool wipes the academic structure of a school: classes, students,
// subjects and teachers. NotFound when the school has no class.
func (e *Engine) DeleteAllClassesForSchool(ctx context.Context, actor core.Actor, schoolID string) (Summary, error) {
	return e.run(ctx, OpDeleteAllClasses, actor, func(tx academic.Store, sum *Summary) error {
		if err := academic.CheckManager(actor, schoolID); err != nil {
			return err
		}
		if schoolID == "" {
			return core.NewNotFoundError("classes")
		}

		var err error
		if sum.Classes, err = tx.DeleteClasses(ctx, academic.ClassFilter{SchoolID: schoolID}); err != nil {
			return errors.Wrap(err, "deleting classes")
		}
		if sum.Classes == 0 {
			return core.NewNotFoundError("classes")
		}
		if sum.Students, err = tx.DeleteStudents(ctx, academic.StudentFilter{SchoolID: schoolID}); err != nil {
			return errors.Wrap(err, "deleting students")
		}
		if sum.Subjects, err = tx.DeleteSubjects(ctx, academic.SubjectFilter{SchoolID: schoolID}); err != nil {
			return errors.Wrap(err, "deleting subjects")
		}
		sum.Teachers, err = tx.DeleteTeachers(ctx, academic.TeacherFilter{SchoolID: schoolID})
		return errors.Wrap(err, "deleting teachers")
	})
}

// DeleteSubject deletes a subject, clears the subject reference of its teachers and strips its
// attendance & results from every student of the school.
func (e *Engine) DeleteSubject(ctx context.Context, actor core.Actor, subjectID string) (Summary, error) {
	return e.run(ctx, OpDeleteSubject, actor, func(tx academic.Store, sum *Summary) error {
		subject, err := academic.GetSubjectFor(ctx, tx, actor, subjectID)
		if err != nil {
			return err
		}
		if err = academic.CheckManager(actor, subject.SchoolID); err != nil {
			return err
		}

		if sum.Subjects, err = tx.DeleteSubjects(ctx, academic.SubjectFilter{IDs: []string{subject.ID}}); err != nil {
			return errors.Wrap(err, "deleting subject")
		}
		sum.Subject = &subject
		return unlinkSubjects(ctx, tx, subject.SchoolID, []string{subject.ID}, sum)
	})
}

// DeleteSubjectsForSchool deletes every subject of a school. NotFound when there is none.
func (e *Engine) DeleteSubjectsForSchool(ctx context.Context, actor core.Actor, schoolID string) (Summary, error) {
	return e.run(ctx, OpDeleteSubjectsForSchool, actor, func(tx academic.Store, sum *Summary) error {
		if err := academic.CheckManager(actor, schoolID); err != nil {
			return err
		}
		if schoolID == "" {
			return core.NewNotFoundError("subjects")
		}
		return deleteSubjects(ctx, tx, academic.SubjectFilter{SchoolID: schoolID}, sum)
	})
}

// DeleteSubjectsForClass deletes every subject of a class. NotFound when the class is unknown
// or has no subject.
func (e *Engine) DeleteSubjectsForClass(ctx context.Context, actor core.Actor, classID string) (Summary, error) {
	return e.run(ctx, OpDeleteSubjectsForClass, actor, func(tx academic.Store, sum *Summary) error {
		class, err := academic.GetClassFor(ctx, tx, actor, classID)
		if err != nil {
			return err
		}
		if err = academic.CheckManager(actor, class.SchoolID); err != nil {
			return err
		}
		return deleteSubjects(ctx, tx, academic.SubjectFilter{SchoolID: class.SchoolID, ClassID: class.ID}, sum)
	})
}

func deleteSubjects(ctx context.Context, tx academic.Store, filter academic.SubjectFilter, sum *Summary) error {
	subjects, err := tx.QuerySubjects(ctx, filter)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if len(subjects) == 0 {
		return core.NewNotFoundError("subjects")
	}
	subjectIDs := ids(subjects, func(s academic.Subject) string { return s.ID })
	schoolID := subjects[0].SchoolID

	if sum.Subjects, err = tx.DeleteSubjects(ctx, academic.SubjectFilter{SchoolID: schoolID, IDs: subjectIDs}); err != nil {
		return errors.Wrap(err, "deleting subjects")
	}
	return unlinkSubjects(ctx, tx, schoolID, subjectIDs, sum)
}

// unlinkSubjects drops every reference to the given (deleted) subjects. subjectIDs must not be empty.
func unlinkSubjects(ctx context.Context, tx academic.Store, schoolID string, subjectIDs []string, sum *Summary) error {
	n, err := tx.ClearTeacherRefs(ctx,
		academic.TeacherFilter{SchoolID: schoolID, SubjectIDs: subjectIDs},
		academic.TeacherRefs{Subject: true},
	)
	if err != nil {
		return errors.Wrap(err, "clearing teachers subject")
	}
	sum.TeachersUnassigned += n

	sum.StudentsStripped, err = tx.StripLedger(ctx,
		academic.StudentFilter{SchoolID: schoolID},
		academic.LedgerScope{SubjectIDs: subjectIDs, Attendance: true, Results: true},
	)
	return errors.Wrap(err, "stripping students ledger")
}

// DeleteTeacher deletes a teacher and unassigns the subjects they taught.
func (e *Engine) DeleteTeacher(ctx context.Context, actor core.Actor, teacherID string) (Summary, error) {
	return e.run(ctx, OpDeleteTeacher, actor, func(tx academic.Store, sum *Summary) error {
		teacher, err := academic.GetTeacherFor(ctx, tx, actor, teacherID)
		if err != nil {
			return err
		}
		if err = academic.CheckManager(actor, teacher.SchoolID); err != nil {
			return err
		}

		if sum.Teachers, err = tx.DeleteTeachers(ctx, academic.TeacherFilter{IDs: []string{teacher.ID}}); err != nil {
			return errors.Wrap(err, "deleting teacher")
		}
		sum.Teacher = &teacher

		sum.SubjectsUnassigned, err = tx.SetSubjectsTeacher(ctx,
			academic.SubjectFilter{SchoolID: teacher.SchoolID, TeacherIDs: []string{teacher.ID}}, "")
		return errors.Wrap(err, "unassigning subjects")
	})
}

// DeleteTeachersForSchool deletes every teacher of a school. NotFound when there is none.
func (e *Engine) DeleteTeachersForSchool(ctx context.Context, actor core.Actor, schoolID string) (Summary, error) {
	return e.run(ctx, OpDeleteTeachersForSchool, actor, func(tx academic.Store, sum *Summary) error {
		if err := academic.CheckManager(actor, schoolID); err != nil {
			return err
		}
		if schoolID == "" {
			return core.NewNotFoundError("teachers")
		}

		teachers, err := tx.QueryTeachers(ctx, academic.TeacherFilter{SchoolID: schoolID})
		if err != nil {
			return errors.Wrap(err, "querying teachers")
		}
		if len(teachers) == 0 {
			return core.NewNotFoundError("teachers")
		}
		teacherIDs := ids(teachers, func(t academic.Teacher) string { return t.ID })

		if sum.Teachers, err = tx.DeleteTeachers(ctx, academic.TeacherFilter{SchoolID: schoolID, IDs: teacherIDs}); err != nil {
			return errors.Wrap(err, "deleting teachers")
		}
		sum.SubjectsUnassigned, err = tx.SetSubjectsTeacher(ctx,
			academic.SubjectFilter{SchoolID: schoolID, TeacherIDs: teacherIDs}, "")
		return errors.Wrap(err, "unassigning subjects")
	})
}

func ids[T any](items []T, id func(T) string) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, id(it))
	}
	return out
}
