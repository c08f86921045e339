package academic

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
)

var (
	msgClassNameExists  = "a class with this name already exists"
	msgSubjectCodeTaken = "subject code %q already exists"
	msgEmailExists      = "a teacher with this email already exists"
	msgRollNumExists    = "a student with this roll number already exists in this class"
)

type Service struct {
	store    Store
	validate *validator.Validate
	logger   core.Logger
}

func NewService(store Store, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{store: store, validate: validate, logger: logger}
}

// Lookups scoped to the actor: entities of other schools are reported as not found.

func getClass(ctx context.Context, store Store, actor core.Actor, id string) (Class, error) {
	class, err := store.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if !actor.CanAccess(class.SchoolID) {
		return Class{}, core.NewNotFoundError("class")
	}
	return class, nil
}

func getSubject(ctx context.Context, store Store, actor core.Actor, id string) (Subject, error) {
	subject, err := store.GetSubject(ctx, id)
	if err != nil {
		return Subject{}, err
	}
	if !actor.CanAccess(subject.SchoolID) {
		return Subject{}, core.NewNotFoundError("subject")
	}
	return subject, nil
}

func getTeacher(ctx context.Context, store Store, actor core.Actor, id string) (Teacher, error) {
	teacher, err := store.GetTeacher(ctx, id)
	if err != nil {
		return Teacher{}, err
	}
	if !actor.CanAccess(teacher.SchoolID) {
		return Teacher{}, core.NewNotFoundError("teacher")
	}
	return teacher, nil
}

func getStudent(ctx context.Context, store Store, actor core.Actor, id string) (Student, error) {
	student, err := store.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	if !actor.CanAccess(student.SchoolID) {
		return Student{}, core.NewNotFoundError("student")
	}
	return student, nil
}

// GetClassFor, GetSubjectFor, GetTeacherFor and GetStudentFor expose the scoped lookups to
// the cascade engine and the ledger, which run them inside their own transactions.
func GetClassFor(ctx context.Context, store Store, actor core.Actor, id string) (Class, error) {
	return getClass(ctx, store, actor, id)
}

func GetSubjectFor(ctx context.Context, store Store, actor core.Actor, id string) (Subject, error) {
	return getSubject(ctx, store, actor, id)
}

func GetTeacherFor(ctx context.Context, store Store, actor core.Actor, id string) (Teacher, error) {
	return getTeacher(ctx, store, actor, id)
}

func GetStudentFor(ctx context.Context, store Store, actor core.Actor, id string) (Student, error) {
	return getStudent(ctx, store, actor, id)
}

func checkSchool(actor core.Actor, schoolID string) error {
	if !actor.CanAccess(schoolID) {
		return core.NewNotFoundError("school")
	}
	return nil
}

// CheckManager authorizes actor to mutate data of schoolID.
func CheckManager(actor core.Actor, schoolID string) error {
	if err := checkSchool(actor, schoolID); err != nil {
		return err
	}
	if !actor.CanManage(schoolID) {
		return core.ErrForbidden
	}
	return nil
}

// CheckMarker authorizes actor to write attendance & exam results for schoolID.
func CheckMarker(actor core.Actor, schoolID string) error {
	if err := checkSchool(actor, schoolID); err != nil {
		return err
	}
	if !actor.CanMark(schoolID) {
		return core.ErrForbidden
	}
	return nil
}

// CheckLiveMarker is CheckMarker for a token that may outlive its teacher:
// a teacher deleted since the token was issued is refused.
func CheckLiveMarker(ctx context.Context, store TeacherRepository, actor core.Actor, schoolID string) error {
	if err := CheckMarker(actor, schoolID); err != nil {
		return err
	}
	if !actor.IsTeacher() {
		return nil
	}
	teacher, err := store.GetTeacher(ctx, actor.ID)
	if errors.Is(err, core.ErrNotFound) || (err == nil && teacher.SchoolID != actor.SchoolID) {
		return core.ErrForbidden
	}
	return errors.Wrap(err, "loading marker")
}

// Classes

func (svc *Service) CreateClass(ctx context.Context, actor core.Actor, nc NewClass) (Class, error) {
	if err := CheckManager(actor, actor.SchoolID); err != nil {
		return Class{}, err
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Class{}, err
	}

	existing, err := svc.store.QueryClasses(ctx, ClassFilter{SchoolID: actor.SchoolID, Name: nc.Name})
	if err != nil {
		return Class{}, errors.Wrap(err, "checking class name")
	}
	if len(existing) > 0 {
		return Class{}, core.NewDuplicateKeyError("name", msgClassNameExists)
	}

	now := time.Now().UTC()
	class, err := svc.store.CreateClass(ctx, Class{
		SchoolID:  actor.SchoolID,
		Name:      nc.Name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	return class, errors.Wrap(err, "creating class")
}

func (svc *Service) GetClass(ctx context.Context, actor core.Actor, id string) (Class, error) {
	return getClass(ctx, svc.store, actor, id)
}

func (svc *Service) QueryClasses(ctx context.Context, actor core.Actor, schoolID string) ([]Class, error) {
	if err := checkSchool(actor, schoolID); err != nil {
		return nil, err
	}
	classes, err := svc.store.QueryClasses(ctx, ClassFilter{SchoolID: schoolID})
	return classes, errors.Wrap(err, "querying classes")
}

func (svc *Service) ClassStudents(ctx context.Context, actor core.Actor, classID string) ([]Student, error) {
	class, err := getClass(ctx, svc.store, actor, classID)
	if err != nil {
		return nil, err
	}
	students, err := svc.store.QueryStudents(ctx, StudentFilter{SchoolID: class.SchoolID, ClassID: class.ID})
	return students, errors.Wrap(err, "querying class students")
}

func (svc *Service) ClassSubjects(ctx context.Context, actor core.Actor, classID string) ([]Subject, error) {
	class, err := getClass(ctx, svc.store, actor, classID)
	if err != nil {
		return nil, err
	}
	subjects, err := svc.store.QuerySubjects(ctx, SubjectFilter{SchoolID: class.SchoolID, ClassID: class.ID})
	return subjects, errors.Wrap(err, "querying class subjects")
}

// FreeSubjects lists the subjects of a class that have no teacher yet.
func (svc *Service) FreeSubjects(ctx context.Context, actor core.Actor, classID string) ([]Subject, error) {
	class, err := getClass(ctx, svc.store, actor, classID)
	if err != nil {
		return nil, err
	}
	subjects, err := svc.store.QuerySubjects(ctx, SubjectFilter{SchoolID: class.SchoolID, ClassID: class.ID, Unassigned: true})
	return subjects, errors.Wrap(err, "querying free subjects")
}

// Subjects

// CreateSubjects creates every subject of the batch or none of them.
// Codes must be unique within the school, the batch included.
func (svc *Service) CreateSubjects(ctx context.Context, actor core.Actor, ns NewSubjects) ([]Subject, error) {
	if err := CheckManager(actor, actor.SchoolID); err != nil {
		return nil, err
	}
	if err := ns.Validate(svc.validate); err != nil {
		return nil, err
	}

	var created []Subject
	err := svc.store.Atomic(ctx, func(tx Store) error {
		class, err := getClass(ctx, tx, actor, ns.ClassID)
		if err != nil {
			return err
		}

		codes := make([]string, 0, len(ns.Subjects))
		for _, in := range ns.Subjects {
			for _, code := range codes {
				if code == in.Code {
					return core.NewDuplicateKeyError("code", fmt.Sprintf(msgSubjectCodeTaken, in.Code))
				}
			}
			codes = append(codes, in.Code)
		}
		existing, err := tx.QuerySubjects(ctx, SubjectFilter{SchoolID: class.SchoolID, Codes: codes})
		if err != nil {
			return errors.Wrap(err, "checking subject codes")
		}
		if len(existing) > 0 {
			return core.NewDuplicateKeyError("code", fmt.Sprintf(msgSubjectCodeTaken, existing[0].Code))
		}

		now := time.Now().UTC()
		subjects := make([]Subject, 0, len(ns.Subjects))
		for _, in := range ns.Subjects {
			subjects = append(subjects, Subject{
				SchoolID:  class.SchoolID,
				ClassID:   class.ID,
				Name:      in.Name,
				Code:      in.Code,
				Sessions:  in.Sessions,
				CreatedAt: now,
				UpdatedAt: now,
			})
		}
		created, err = tx.CreateSubjects(ctx, subjects...)
		return errors.Wrap(err, "creating subjects")
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (svc *Service) GetSubject(ctx context.Context, actor core.Actor, id string) (Subject, error) {
	return getSubject(ctx, svc.store, actor, id)
}

func (svc *Service) QuerySubjects(ctx context.Context, actor core.Actor, schoolID string) ([]Subject, error) {
	if err := checkSchool(actor, schoolID); err != nil {
		return nil, err
	}
	subjects, err := svc.store.QuerySubjects(ctx, SubjectFilter{SchoolID: schoolID})
	return subjects, errors.Wrap(err, "querying subjects")
}

// Teachers

// RegisterTeacher creates a teacher and, when a subject is given, makes them its teacher.
func (svc *Service) RegisterTeacher(ctx context.Context, actor core.Actor, nt NewTeacher) (Teacher, error) {
	if err := CheckManager(actor, actor.SchoolID); err != nil {
		return Teacher{}, err
	}
	if err := nt.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}

	var teacher Teacher
	err := svc.store.Atomic(ctx, func(tx Store) error {
		existing, err := tx.QueryTeachers(ctx, TeacherFilter{Email: nt.Email})
		if err != nil {
			return errors.Wrap(err, "checking teacher email")
		}
		if len(existing) > 0 {
			return core.NewDuplicateKeyError("email", msgEmailExists)
		}

		now := time.Now().UTC()
		teacher = Teacher{
			SchoolID:  actor.SchoolID,
			Name:      nt.Name,
			Email:     nt.Email,
			CreatedAt: now,
			UpdatedAt: now,
		}

		var subject Subject
		if nt.SubjectID != "" {
			if subject, err = getSubject(ctx, tx, actor, nt.SubjectID); err != nil {
				return err
			}
			teacher.SubjectID = subject.ID
			teacher.ClassID = subject.ClassID
		}
		if nt.ClassID != "" {
			class, err := getClass(ctx, tx, actor, nt.ClassID)
			if err != nil {
				return err
			}
			if subject.ID != "" && subject.ClassID != class.ID {
				return core.NewValidationError(nil, core.FieldError{Field: "subject_id", Error: "subject does not belong to this class"})
			}
			teacher.ClassID = class.ID
		}
		if err := teacher.SetPassword(nt.Password); err != nil {
			return err
		}

		if teacher, err = tx.CreateTeacher(ctx, teacher); err != nil {
			return errors.Wrap(err, "creating teacher")
		}
		if subject.ID != "" {
			return assignSubject(ctx, tx, subject, teacher.ID)
		}
		return nil
	})
	if err != nil {
		return Teacher{}, err
	}
	return teacher, nil
}

// assignSubject points subject at teacherID, unassigning any teacher it had before.
func assignSubject(ctx context.Context, tx Store, subject Subject, teacherID string) error {
	if subject.TeacherID != "" && subject.TeacherID != teacherID {
		_, err := tx.ClearTeacherRefs(ctx, TeacherFilter{IDs: []string{subject.TeacherID}, SubjectIDs: []string{subject.ID}}, TeacherRefs{Subject: true})
		if err != nil {
			return errors.Wrap(err, "unassigning previous teacher")
		}
	}
	_, err := tx.SetSubjectsTeacher(ctx, SubjectFilter{IDs: []string{subject.ID}}, teacherID)
	return errors.Wrap(err, "assigning subject teacher")
}

func (svc *Service) GetTeacher(ctx context.Context, actor core.Actor, id string) (Teacher, error) {
	return getTeacher(ctx, svc.store, actor, id)
}

func (svc *Service) QueryTeachers(ctx context.Context, actor core.Actor, schoolID string) ([]Teacher, error) {
	if err := checkSchool(actor, schoolID); err != nil {
		return nil, err
	}
	teachers, err := svc.store.QueryTeachers(ctx, TeacherFilter{SchoolID: schoolID})
	return teachers, errors.Wrap(err, "querying teachers")
}

// AssignTeacherSubject moves a teacher onto another subject of their school.
func (svc *Service) AssignTeacherSubject(ctx context.Context, actor core.Actor, teacherID string, as AssignSubject) (Teacher, error) {
	if err := as.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}

	var teacher Teacher
	err := svc.store.Atomic(ctx, func(tx Store) error {
		var err error
		if teacher, err = getTeacher(ctx, tx, actor, teacherID); err != nil {
			return err
		}
		if err = CheckManager(actor, teacher.SchoolID); err != nil {
			return err
		}
		subject, err := getSubject(ctx, tx, actor, as.SubjectID)
		if err != nil {
			return err
		}
		if subject.SchoolID != teacher.SchoolID {
			return core.NewNotFoundError("subject")
		}

		if teacher.SubjectID != "" && teacher.SubjectID != subject.ID {
			_, err = tx.SetSubjectsTeacher(ctx, SubjectFilter{IDs: []string{teacher.SubjectID}, TeacherIDs: []string{teacher.ID}}, "")
			if err != nil {
				return errors.Wrap(err, "releasing previous subject")
			}
		}
		if err = assignSubject(ctx, tx, subject, teacher.ID); err != nil {
			return err
		}

		teacher.SubjectID = subject.ID
		teacher.ClassID = subject.ClassID
		teacher.UpdatedAt = time.Now().UTC()
		teacher, err = tx.UpdateTeacher(ctx, teacher)
		return errors.Wrap(err, "updating teacher")
	})
	if err != nil {
		return Teacher{}, err
	}
	return teacher, nil
}

func (svc *Service) AuthenticateTeacher(ctx context.Context, tl TeacherLogin) (Teacher, error) {
	if err := tl.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}
	teachers, err := svc.store.QueryTeachers(ctx, TeacherFilter{Email: tl.Email})
	if err != nil {
		return Teacher{}, errors.Wrap(err, "finding teacher by email")
	}
	if len(teachers) == 0 || teachers[0].CheckPassword(tl.Password) != nil {
		return Teacher{}, core.ErrInvalidCredentials
	}
	return teachers[0], nil
}

// Students

func (svc *Service) checkRollNum(ctx context.Context, store Store, schoolID, classID string, rollNum int, excludedID string) error {
	existing, err := store.QueryStudents(ctx, StudentFilter{SchoolID: schoolID, ClassID: classID, RollNum: rollNum})
	if err != nil {
		return errors.Wrap(err, "checking roll number")
	}
	for _, s := range existing {
		if s.ID != excludedID {
			return core.NewDuplicateKeyError("roll_num", msgRollNumExists)
		}
	}
	return nil
}

func (svc *Service) RegisterStudent(ctx context.Context, actor core.Actor, ns NewStudent) (Student, error) {
	if err := CheckManager(actor, actor.SchoolID); err != nil {
		return Student{}, err
	}
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}

	var student Student
	err := svc.store.Atomic(ctx, func(tx Store) error {
		class, err := getClass(ctx, tx, actor, ns.ClassID)
		if err != nil {
			return err
		}
		if err = svc.checkRollNum(ctx, tx, class.SchoolID, class.ID, ns.RollNum, ""); err != nil {
			return err
		}

		now := time.Now().UTC()
		student = Student{
			SchoolID:    class.SchoolID,
			ClassID:     class.ID,
			Name:        ns.Name,
			RollNum:     ns.RollNum,
			Attendance:  []AttendanceEntry{},
			ExamResults: []ExamResult{},
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err = student.SetPassword(ns.Password); err != nil {
			return err
		}
		student, err = tx.CreateStudent(ctx, student)
		return errors.Wrap(err, "creating student")
	})
	if err != nil {
		return Student{}, err
	}
	return student, nil
}

func (svc *Service) GetStudent(ctx context.Context, actor core.Actor, id string) (Student, error) {
	return getStudent(ctx, svc.store, actor, id)
}

func (svc *Service) QueryStudents(ctx context.Context, actor core.Actor, schoolID string) ([]Student, error) {
	if err := checkSchool(actor, schoolID); err != nil {
		return nil, err
	}
	students, err := svc.store.QueryStudents(ctx, StudentFilter{SchoolID: schoolID})
	return students, errors.Wrap(err, "querying students")
}

func (svc *Service) UpdateStudent(ctx context.Context, actor core.Actor, id string, us UpdateStudent) (Student, error) {
	var student Student
	err := svc.store.Atomic(ctx, func(tx Store) error {
		var err error
		if student, err = getStudent(ctx, tx, actor, id); err != nil {
			return err
		}
		if err = CheckManager(actor, student.SchoolID); err != nil {
			return err
		}
		if err = us.Validate(student, svc.validate); err != nil {
			return err
		}

		if us.ClassID != student.ClassID {
			if _, err = getClass(ctx, tx, actor, us.ClassID); err != nil {
				return err
			}
		}
		if us.ClassID != student.ClassID || us.RollNum != student.RollNum {
			if err = svc.checkRollNum(ctx, tx, student.SchoolID, us.ClassID, us.RollNum, student.ID); err != nil {
				return err
			}
		}

		student.Name = us.Name
		student.RollNum = us.RollNum
		student.ClassID = us.ClassID
		if us.Password != "" {
			if err = student.SetPassword(us.Password); err != nil {
				return err
			}
		}
		student.UpdatedAt = time.Now().UTC()
		student, err = tx.UpdateStudent(ctx, student)
		return errors.Wrap(err, "updating student")
	})
	if err != nil {
		return Student{}, err
	}
	return student, nil
}

// DeleteStudent removes one student. Students have no dependents.
func (svc *Service) DeleteStudent(ctx context.Context, actor core.Actor, id string) (Student, error) {
	var student Student
	err := svc.store.Atomic(ctx, func(tx Store) error {
		var err error
		if student, err = getStudent(ctx, tx, actor, id); err != nil {
			return err
		}
		if err = CheckManager(actor, student.SchoolID); err != nil {
			return err
		}
		_, err = tx.DeleteStudents(ctx, StudentFilter{IDs: []string{student.ID}})
		return errors.Wrap(err, "deleting student")
	})
	if err != nil {
		return Student{}, err
	}
	return student, nil
}

// DeleteStudentsForSchool removes every student of a school; NotFound when there are none.
func (svc *Service) DeleteStudentsForSchool(ctx context.Context, actor core.Actor, schoolID string) (int, error) {
	if err := CheckManager(actor, schoolID); err != nil {
		return 0, err
	}
	return svc.deleteStudents(ctx, StudentFilter{SchoolID: schoolID})
}

// DeleteStudentsForClass removes every student of a class; NotFound when there are none.
func (svc *Service) DeleteStudentsForClass(ctx context.Context, actor core.Actor, classID string) (int, error) {
	class, err := getClass(ctx, svc.store, actor, classID)
	if err != nil {
		return 0, err
	}
	if err = CheckManager(actor, class.SchoolID); err != nil {
		return 0, err
	}
	return svc.deleteStudents(ctx, StudentFilter{SchoolID: class.SchoolID, ClassID: class.ID})
}

func (svc *Service) deleteStudents(ctx context.Context, filter StudentFilter) (int, error) {
	n, err := svc.store.DeleteStudents(ctx, filter)
	if err != nil {
		return 0, errors.Wrap(err, "deleting students")
	}
	if n == 0 {
		return 0, core.NewNotFoundError("students")
	}
	return n, nil
}

// AuthenticateStudent matches a student by roll number and name, then checks the password.
// The ledger is left out of the returned profile.
func (svc *Service) AuthenticateStudent(ctx context.Context, sl StudentLogin) (StudentProfile, error) {
	if err := sl.Validate(svc.validate); err != nil {
		return StudentProfile{}, err
	}
	students, err := svc.store.QueryStudents(ctx, StudentFilter{RollNum: sl.RollNum, Name: sl.Name})
	if err != nil {
		return StudentProfile{}, errors.Wrap(err, "finding student")
	}
	for _, s := range students {
		if s.CheckPassword(sl.Password) == nil {
			return s.Profile(), nil
		}
	}
	return StudentProfile{}, core.ErrInvalidCredentials
}
