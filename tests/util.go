package testutil

import (
	"context"
	"io"
	"log"
	"os"
	"strconv"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
	"github.com/trezcool/darasa/core/school"
	"github.com/trezcool/darasa/core/validation"
	logsvc "github.com/trezcool/darasa/services/logger"
	"github.com/trezcool/darasa/storage/database"
	mongorepos "github.com/trezcool/darasa/storage/database/mongo"
)

// NewValidator returns a validator with every custom tag & translation registered.
func NewValidator() *validator.Validate {
	validate, _ := NewValidation()
	return validate
}

// NewValidation returns a validator along with the translator its messages are registered on.
func NewValidation() (*validator.Validate, ut.Translator) {
	return validation.New()
}

// NewLogger returns a logger that reports nothing.
func NewLogger() core.Logger {
	logger := logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), core.NewTestConfig())
	logger.Enable(false)
	return logger
}

// NewTestDB connects to the postgres database at DARASA_TEST_DATABASE_URL, migrates it and empties it.
// DARASA_TEST_DATABASE_ENGINE picks the driver (postgres or pgx). Skips the test when no URL is set.
func NewTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("DARASA_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("DARASA_TEST_DATABASE_URL not set")
	}
	engine := os.Getenv("DARASA_TEST_DATABASE_ENGINE")
	if engine == "" {
		engine = "postgres"
	}

	db, err := database.OpenURL(engine, dsn)
	if err != nil {
		t.Fatalf("database.OpenURL() failed: %v", err)
	}
	if err = database.Migrate(db); err != nil {
		t.Fatalf("database.Migrate() failed: %v", err)
	}
	_, err = db.Exec(`TRUNCATE schools, classes, subjects, teachers, students, student_attendance, exam_results,
		teacher_attendance, notices, complains`)
	if err != nil {
		t.Fatalf("truncating tables failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// NewTestMongo opens a fresh database on the replica set at DARASA_TEST_MONGO_URI and drops it on cleanup.
// Skips the test when no URI is set.
func NewTestMongo(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("DARASA_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("DARASA_TEST_MONGO_URI not set")
	}
	ctx := context.Background()

	db, err := mongorepos.Open(ctx, uri, "darasa_test_"+strconv.FormatInt(time.Now().UnixNano(), 36))
	if err != nil {
		t.Fatalf("mongorepos.Open() failed: %v", err)
	}
	if err = mongorepos.EnsureIndexes(ctx, db); err != nil {
		t.Fatalf("mongorepos.EnsureIndexes() failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Drop(ctx)
		_ = db.Client().Disconnect(ctx)
	})
	return db
}

func CreateSchool(t *testing.T, repo school.Repository, name, schoolName, email, pwd string) school.School {
	now := time.Now().UTC()
	sch := school.School{
		Name:       name,
		SchoolName: schoolName,
		Email:      email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if pwd != "" {
		if err := sch.SetPassword(pwd); err != nil {
			t.Fatalf("createSchool() failed: %v", err)
		}
	}
	sch, err := repo.CreateSchool(context.Background(), sch)
	if err != nil {
		t.Fatalf("createSchool() failed: %v", err)
	}
	return sch
}

func CreateClass(t *testing.T, store academic.Store, schoolID, name string) academic.Class {
	now := time.Now().UTC()
	class, err := store.CreateClass(context.Background(), academic.Class{
		SchoolID:  schoolID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createClass() failed: %v", err)
	}
	return class
}

func CreateSubject(t *testing.T, store academic.Store, class academic.Class, name, code string, sessions int) academic.Subject {
	now := time.Now().UTC()
	subjects, err := store.CreateSubjects(context.Background(), academic.Subject{
		SchoolID:  class.SchoolID,
		ClassID:   class.ID,
		Name:      name,
		Code:      code,
		Sessions:  sessions,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return subjects[0]
}

// CreateTeacher creates a teacher. When subject is not zero, the teacher is assigned to it (and its class).
func CreateTeacher(t *testing.T, store academic.Store, schoolID, name, email, pwd string, subject academic.Subject) academic.Teacher {
	ctx := context.Background()
	now := time.Now().UTC()
	teacher := academic.Teacher{
		SchoolID:   schoolID,
		ClassID:    subject.ClassID,
		SubjectID:  subject.ID,
		Name:       name,
		Email:      email,
		Attendance: []academic.AttendanceEntry{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if pwd != "" {
		if err := teacher.SetPassword(pwd); err != nil {
			t.Fatalf("createTeacher() failed: %v", err)
		}
	}
	teacher, err := store.CreateTeacher(ctx, teacher)
	if err != nil {
		t.Fatalf("createTeacher() failed: %v", err)
	}
	if subject.ID != "" {
		if _, err = store.SetSubjectsTeacher(ctx, academic.SubjectFilter{IDs: []string{subject.ID}}, teacher.ID); err != nil {
			t.Fatalf("createTeacher() failed: %v", err)
		}
	}
	return teacher
}

func CreateStudent(t *testing.T, store academic.Store, class academic.Class, name string, rollNum int, pwd string) academic.Student {
	now := time.Now().UTC()
	student := academic.Student{
		SchoolID:    class.SchoolID,
		ClassID:     class.ID,
		Name:        name,
		RollNum:     rollNum,
		Attendance:  []academic.AttendanceEntry{},
		ExamResults: []academic.ExamResult{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if pwd != "" {
		if err := student.SetPassword(pwd); err != nil {
			t.Fatalf("createStudent() failed: %v", err)
		}
	}
	student, err := store.CreateStudent(context.Background(), student)
	if err != nil {
		t.Fatalf("createStudent() failed: %v", err)
	}
	return student
}

// SetLedger overwrites the attendance & exam results of a student.
func SetLedger(t *testing.T, store academic.Store, student academic.Student, attendance []academic.AttendanceEntry, results []academic.ExamResult) academic.Student {
	student.Attendance = attendance
	student.ExamResults = results
	student, err := store.UpdateStudent(context.Background(), student)
	if err != nil {
		t.Fatalf("setLedger() failed: %v", err)
	}
	return student
}

// Day returns midnight UTC of the given date.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
