package mongorepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/academic"
)

type (
	attendanceDoc struct {
		SubjectID string    `bson:"subject_id,omitempty"`
		Date      time.Time `bson:"date"`
		Status    string    `bson:"status"`
	}

	resultDoc struct {
		SubjectID string  `bson:"subject_id"`
		Marks     float64 `bson:"marks"`
	}

	classDoc struct {
		ID        string    `bson:"_id"`
		SchoolID  string    `bson:"school_id"`
		Name      string    `bson:"name"`
		CreatedAt time.Time `bson:"created_at"`
		UpdatedAt time.Time `bson:"updated_at"`
	}

	subjectDoc struct {
		ID        string    `bson:"_id"`
		SchoolID  string    `bson:"school_id"`
		ClassID   string    `bson:"class_id"`
		TeacherID string    `bson:"teacher_id"`
		Name      string    `bson:"name"`
		Code      string    `bson:"code"`
		Sessions  int       `bson:"sessions"`
		CreatedAt time.Time `bson:"created_at"`
		UpdatedAt time.Time `bson:"updated_at"`
	}

	teacherDoc struct {
		ID           string          `bson:"_id"`
		SchoolID     string          `bson:"school_id"`
		ClassID      string          `bson:"class_id"`
		SubjectID    string          `bson:"subject_id"`
		Name         string          `bson:"name"`
		Email        string          `bson:"email"`
		PasswordHash []byte          `bson:"password_hash"`
		Attendance   []attendanceDoc `bson:"attendance"`
		CreatedAt    time.Time       `bson:"created_at"`
		UpdatedAt    time.Time       `bson:"updated_at"`
	}

	studentDoc struct {
		ID           string          `bson:"_id"`
		SchoolID     string          `bson:"school_id"`
		ClassID      string          `bson:"class_id"`
		Name         string          `bson:"name"`
		RollNum      int             `bson:"roll_num"`
		PasswordHash []byte          `bson:"password_hash"`
		Attendance   []attendanceDoc `bson:"attendance"`
		ExamResults  []resultDoc     `bson:"exam_results"`
		CreatedAt    time.Time       `bson:"created_at"`
		UpdatedAt    time.Time       `bson:"updated_at"`
	}
)

func toAttendanceDocs(entries []academic.AttendanceEntry) []attendanceDoc {
	docs := make([]attendanceDoc, len(entries))
	for i, e := range entries {
		docs[i] = attendanceDoc{SubjectID: e.SubjectID, Date: e.Date, Status: string(e.Status)}
	}
	return docs
}

// toDayDocs keeps only the day & status: teacher attendance is not tied to a subject.
func toDayDocs(entries []academic.AttendanceEntry) []attendanceDoc {
	docs := make([]attendanceDoc, len(entries))
	for i, e := range entries {
		docs[i] = attendanceDoc{Date: e.Date, Status: string(e.Status)}
	}
	return docs
}

func fromAttendanceDocs(docs []attendanceDoc) []academic.AttendanceEntry {
	entries := make([]academic.AttendanceEntry, len(docs))
	for i, d := range docs {
		entries[i] = academic.AttendanceEntry{SubjectID: d.SubjectID, Date: core.StartOfDay(d.Date), Status: academic.Status(d.Status)}
	}
	return entries
}

func newClassDoc(c academic.Class) classDoc {
	return classDoc{ID: c.ID, SchoolID: c.SchoolID, Name: c.Name, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt}
}

func (d classDoc) toClass() academic.Class {
	return academic.Class{ID: d.ID, SchoolID: d.SchoolID, Name: d.Name, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func newSubjectDoc(s academic.Subject) subjectDoc {
	return subjectDoc{
		ID:        s.ID,
		SchoolID:  s.SchoolID,
		ClassID:   s.ClassID,
		TeacherID: s.TeacherID,
		Name:      s.Name,
		Code:      s.Code,
		Sessions:  s.Sessions,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func (d subjectDoc) toSubject() academic.Subject {
	return academic.Subject{
		ID:        d.ID,
		SchoolID:  d.SchoolID,
		ClassID:   d.ClassID,
		TeacherID: d.TeacherID,
		Name:      d.Name,
		Code:      d.Code,
		Sessions:  d.Sessions,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func newTeacherDoc(t academic.Teacher) teacherDoc {
	return teacherDoc{
		ID:           t.ID,
		SchoolID:     t.SchoolID,
		ClassID:      t.ClassID,
		SubjectID:    t.SubjectID,
		Name:         t.Name,
		Email:        t.Email,
		PasswordHash: t.PasswordHash,
		Attendance:   toDayDocs(t.Attendance),
		CreatedAt:    t.CreatedAt,
		UpdatedAt:    t.UpdatedAt,
	}
}

func (d teacherDoc) toTeacher() academic.Teacher {
	return academic.Teacher{
		ID:           d.ID,
		SchoolID:     d.SchoolID,
		ClassID:      d.ClassID,
		SubjectID:    d.SubjectID,
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.PasswordHash,
		Attendance:   fromAttendanceDocs(d.Attendance),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func newStudentDoc(s academic.Student) studentDoc {
	results := make([]resultDoc, len(s.ExamResults))
	for i, r := range s.ExamResults {
		results[i] = resultDoc{SubjectID: r.SubjectID, Marks: r.Marks}
	}
	return studentDoc{
		ID:           s.ID,
		SchoolID:     s.SchoolID,
		ClassID:      s.ClassID,
		Name:         s.Name,
		RollNum:      s.RollNum,
		PasswordHash: s.PasswordHash,
		Attendance:   toAttendanceDocs(s.Attendance),
		ExamResults:  results,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func (d studentDoc) toStudent() academic.Student {
	results := make([]academic.ExamResult, len(d.ExamResults))
	for i, r := range d.ExamResults {
		results[i] = academic.ExamResult{SubjectID: r.SubjectID, Marks: r.Marks}
	}
	return academic.Student{
		ID:           d.ID,
		SchoolID:     d.SchoolID,
		ClassID:      d.ClassID,
		Name:         d.Name,
		RollNum:      d.RollNum,
		PasswordHash: d.PasswordHash,
		Attendance:   fromAttendanceDocs(d.Attendance),
		ExamResults:  results,
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

func classQuery(f academic.ClassFilter) bson.M {
	q := bson.M{}
	if len(f.IDs) > 0 {
		q["_id"] = in(f.IDs)
	}
	if f.SchoolID != "" {
		q["school_id"] = f.SchoolID
	}
	if f.Name != "" {
		q["name"] = f.Name
	}
	return q
}

func subjectQuery(f academic.SubjectFilter) bson.M {
	q := bson.M{}
	if len(f.IDs) > 0 {
		q["_id"] = in(f.IDs)
	}
	if f.SchoolID != "" {
		q["school_id"] = f.SchoolID
	}
	if f.ClassID != "" {
		q["class_id"] = f.ClassID
	}
	if len(f.Codes) > 0 {
		q["code"] = in(f.Codes)
	}
	switch {
	case f.Unassigned && len(f.TeacherIDs) > 0:
		return and(q, bson.M{"teacher_id": in(f.TeacherIDs)}, bson.M{"teacher_id": ""})
	case f.Unassigned:
		q["teacher_id"] = ""
	case len(f.TeacherIDs) > 0:
		q["teacher_id"] = in(f.TeacherIDs)
	}
	return q
}

func teacherQuery(f academic.TeacherFilter) bson.M {
	q := bson.M{}
	if len(f.IDs) > 0 {
		q["_id"] = in(f.IDs)
	}
	if f.SchoolID != "" {
		q["school_id"] = f.SchoolID
	}
	if f.ClassID != "" {
		q["class_id"] = f.ClassID
	}
	if len(f.SubjectIDs) > 0 {
		q["subject_id"] = in(f.SubjectIDs)
	}
	if f.Email != "" {
		q["email"] = f.Email
	}
	return q
}

func studentQuery(f academic.StudentFilter) bson.M {
	q := bson.M{}
	if len(f.IDs) > 0 {
		q["_id"] = in(f.IDs)
	}
	if f.SchoolID != "" {
		q["school_id"] = f.SchoolID
	}
	if f.ClassID != "" {
		q["class_id"] = f.ClassID
	}
	if f.RollNum != 0 {
		q["roll_num"] = f.RollNum
	}
	if f.Name != "" {
		q["name"] = f.Name
	}
	return q
}

type academicStore struct {
	db *mongo.Database
	sc mongo.SessionContext // set inside Atomic
}

var _ academic.Store = (*academicStore)(nil) // interface compliance check

func NewAcademicStore(db *mongo.Database) academic.Store {
	return &academicStore{db: db}
}

// ctx binds operations to the running transaction, if any.
func (s *academicStore) ctx(ctx context.Context) context.Context {
	if s.sc != nil {
		return s.sc
	}
	return ctx
}

// Atomic runs fn in a multi-document transaction. Concurrent writes to the same document make
// one of the transactions fail with a transient error, and WithTransaction runs fn again.
func (s *academicStore) Atomic(ctx context.Context, fn func(tx academic.Store) error) error {
	if s.sc != nil { // already in a transaction
		return fn(s)
	}
	sess, err := s.db.Client().StartSession()
	if err != nil {
		return core.StoreFailure(err, "starting session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(&academicStore{db: s.db, sc: sc})
	})
	if err != nil {
		return core.StoreFailure(err, "running transaction")
	}
	return nil
}

func (s *academicStore) atomic(ctx context.Context, fn func(tx *academicStore) error) error {
	return s.Atomic(ctx, func(tx academic.Store) error {
		return fn(tx.(*academicStore))
	})
}

func (s *academicStore) col(name string) *mongo.Collection {
	return s.db.Collection(name)
}

func (s *academicStore) updateMany(ctx context.Context, col string, query, update bson.M, op string) (int, error) {
	res, err := s.col(col).UpdateMany(s.ctx(ctx), query, update)
	if err != nil {
		return 0, core.StoreFailure(err, op)
	}
	return int(res.ModifiedCount), nil
}

func (s *academicStore) deleteMany(ctx context.Context, col string, query bson.M, op string) (int, error) {
	res, err := s.col(col).DeleteMany(s.ctx(ctx), query)
	if err != nil {
		return 0, core.StoreFailure(err, op)
	}
	return int(res.DeletedCount), nil
}

// Classes

func (s *academicStore) CreateClass(ctx context.Context, class academic.Class) (academic.Class, error) {
	class.ID = uuid.NewString()
	if _, err := s.col(classesCol).InsertOne(s.ctx(ctx), newClassDoc(class)); err != nil {
		if duplicateOn(err, "name") {
			return academic.Class{}, core.NewDuplicateKeyError("name", "a class with this name already exists")
		}
		return academic.Class{}, core.StoreFailure(err, "inserting class")
	}
	return class, nil
}

func (s *academicStore) GetClass(ctx context.Context, id string) (academic.Class, error) {
	var doc classDoc
	if err := s.col(classesCol).FindOne(s.ctx(ctx), bson.M{"_id": id}).Decode(&doc); err != nil {
		return academic.Class{}, notFoundOr(err, "class", "finding class")
	}
	return doc.toClass(), nil
}

func (s *academicStore) QueryClasses(ctx context.Context, filter academic.ClassFilter) ([]academic.Class, error) {
	docs, err := find[classDoc](s.ctx(ctx), s.col(classesCol), classQuery(filter), "finding classes")
	if err != nil {
		return nil, err
	}
	classes := make([]academic.Class, len(docs))
	for i, d := range docs {
		classes[i] = d.toClass()
	}
	return classes, nil
}

func (s *academicStore) DeleteClasses(ctx context.Context, filter academic.ClassFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	return s.deleteMany(ctx, classesCol, classQuery(filter), "deleting classes")
}

// Subjects

func (s *academicStore) CreateSubjects(ctx context.Context, subjects ...academic.Subject) ([]academic.Subject, error) {
	created := make([]academic.Subject, 0, len(subjects))
	err := s.atomic(ctx, func(tx *academicStore) error {
		created = created[:0]
		for _, subj := range subjects {
			subj.ID = uuid.NewString()
			if _, err := tx.col(subjectsCol).InsertOne(tx.ctx(ctx), newSubjectDoc(subj)); err != nil {
				if duplicateOn(err, "code") {
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
	var doc subjectDoc
	if err := s.col(subjectsCol).FindOne(s.ctx(ctx), bson.M{"_id": id}).Decode(&doc); err != nil {
		return academic.Subject{}, notFoundOr(err, "subject", "finding subject")
	}
	return doc.toSubject(), nil
}

func (s *academicStore) QuerySubjects(ctx context.Context, filter academic.SubjectFilter) ([]academic.Subject, error) {
	docs, err := find[subjectDoc](s.ctx(ctx), s.col(subjectsCol), subjectQuery(filter), "finding subjects")
	if err != nil {
		return nil, err
	}
	subjects := make([]academic.Subject, len(docs))
	for i, d := range docs {
		subjects[i] = d.toSubject()
	}
	return subjects, nil
}

func (s *academicStore) SetSubjectsTeacher(ctx context.Context, filter academic.SubjectFilter, teacherID string) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	query := and(subjectQuery(filter), bson.M{"teacher_id": bson.M{"$ne": teacherID}})
	return s.updateMany(ctx, subjectsCol, query, bson.M{"$set": bson.M{"teacher_id": teacherID}}, "updating subjects teacher")
}

func (s *academicStore) DeleteSubjects(ctx context.Context, filter academic.SubjectFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	return s.deleteMany(ctx, subjectsCol, subjectQuery(filter), "deleting subjects")
}

// Teachers

func (s *academicStore) CreateTeacher(ctx context.Context, teacher academic.Teacher) (academic.Teacher, error) {
	teacher.ID = uuid.NewString()
	if _, err := s.col(teachersCol).InsertOne(s.ctx(ctx), newTeacherDoc(teacher)); err != nil {
		return academic.Teacher{}, teacherWriteError(err, "inserting teacher")
	}
	return teacher, nil
}

func teacherWriteError(err error, op string) error {
	if duplicateOn(err, "email") {
		return core.NewDuplicateKeyError("email", "a teacher with this email already exists")
	}
	return core.StoreFailure(err, op)
}

func (s *academicStore) GetTeacher(ctx context.Context, id string) (academic.Teacher, error) {
	var doc teacherDoc
	if err := s.col(teachersCol).FindOne(s.ctx(ctx), bson.M{"_id": id}).Decode(&doc); err != nil {
		return academic.Teacher{}, notFoundOr(err, "teacher", "finding teacher")
	}
	return doc.toTeacher(), nil
}

func (s *academicStore) QueryTeachers(ctx context.Context, filter academic.TeacherFilter) ([]academic.Teacher, error) {
	docs, err := find[teacherDoc](s.ctx(ctx), s.col(teachersCol), teacherQuery(filter), "finding teachers")
	if err != nil {
		return nil, err
	}
	teachers := make([]academic.Teacher, len(docs))
	for i, d := range docs {
		teachers[i] = d.toTeacher()
	}
	return teachers, nil
}

func (s *academicStore) UpdateTeacher(ctx context.Context, teacher academic.Teacher) (academic.Teacher, error) {
	res, err := s.col(teachersCol).ReplaceOne(s.ctx(ctx), bson.M{"_id": teacher.ID}, newTeacherDoc(teacher))
	if err != nil {
		return academic.Teacher{}, teacherWriteError(err, "replacing teacher")
	}
	if res.MatchedCount == 0 {
		return academic.Teacher{}, core.NewNotFoundError("teacher")
	}
	return teacher, nil
}

func (s *academicStore) ClearTeacherRefs(ctx context.Context, filter academic.TeacherFilter, refs academic.TeacherRefs) (int, error) {
	set := bson.M{}
	var pending []bson.M
	if refs.Class {
		set["class_id"] = ""
		pending = append(pending, bson.M{"class_id": bson.M{"$ne": ""}})
	}
	if refs.Subject {
		set["subject_id"] = ""
		pending = append(pending, bson.M{"subject_id": bson.M{"$ne": ""}})
	}
	if filter.IsZero() || len(set) == 0 {
		return 0, nil
	}
	query := and(teacherQuery(filter), bson.M{"$or": pending})
	return s.updateMany(ctx, teachersCol, query, bson.M{"$set": set}, "clearing teacher refs")
}

func (s *academicStore) DeleteTeachers(ctx context.Context, filter academic.TeacherFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	return s.deleteMany(ctx, teachersCol, teacherQuery(filter), "deleting teachers")
}

// Students

func (s *academicStore) CreateStudent(ctx context.Context, student academic.Student) (academic.Student, error) {
	student.ID = uuid.NewString()
	if _, err := s.col(studentsCol).InsertOne(s.ctx(ctx), newStudentDoc(student)); err != nil {
		return academic.Student{}, studentWriteError(err, "inserting student")
	}
	return student, nil
}

func studentWriteError(err error, op string) error {
	if duplicateOn(err, "roll_num") {
		return core.NewDuplicateKeyError("roll_num", "a student with this roll number already exists in this class")
	}
	return core.StoreFailure(err, op)
}

func (s *academicStore) GetStudent(ctx context.Context, id string) (academic.Student, error) {
	var doc studentDoc
	if err := s.col(studentsCol).FindOne(s.ctx(ctx), bson.M{"_id": id}).Decode(&doc); err != nil {
		return academic.Student{}, notFoundOr(err, "student", "finding student")
	}
	return doc.toStudent(), nil
}

func (s *academicStore) QueryStudents(ctx context.Context, filter academic.StudentFilter) ([]academic.Student, error) {
	docs, err := find[studentDoc](s.ctx(ctx), s.col(studentsCol), studentQuery(filter), "finding students")
	if err != nil {
		return nil, err
	}
	students := make([]academic.Student, len(docs))
	for i, d := range docs {
		students[i] = d.toStudent()
	}
	return students, nil
}

func (s *academicStore) UpdateStudent(ctx context.Context, student academic.Student) (academic.Student, error) {
	res, err := s.col(studentsCol).ReplaceOne(s.ctx(ctx), bson.M{"_id": student.ID}, newStudentDoc(student))
	if err != nil {
		return academic.Student{}, studentWriteError(err, "replacing student")
	}
	if res.MatchedCount == 0 {
		return academic.Student{}, core.NewNotFoundError("student")
	}
	return student, nil
}

func (s *academicStore) DeleteStudents(ctx context.Context, filter academic.StudentFilter) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	return s.deleteMany(ctx, studentsCol, studentQuery(filter), "deleting students")
}

func (s *academicStore) StripLedger(ctx context.Context, filter academic.StudentFilter, scope academic.LedgerScope) (int, error) {
	if filter.IsZero() {
		return 0, nil
	}
	var fields []string
	if scope.Attendance {
		fields = append(fields, "attendance")
	}
	if scope.Results {
		fields = append(fields, "exam_results")
	}
	if len(fields) == 0 {
		return 0, nil
	}

	// only students that hold a covered entry are updated, so ModifiedCount counts the stripped ones
	var holds []bson.M
	update := bson.M{}
	if len(scope.SubjectIDs) == 0 {
		set := bson.M{}
		for _, f := range fields {
			holds = append(holds, bson.M{f + ".0": bson.M{"$exists": true}})
			set[f] = bson.A{}
		}
		update["$set"] = set
	} else {
		pull := bson.M{}
		for _, f := range fields {
			holds = append(holds, bson.M{f + ".subject_id": in(scope.SubjectIDs)})
			pull[f] = bson.M{"subject_id": in(scope.SubjectIDs)}
		}
		update["$pull"] = pull
	}
	query := and(studentQuery(filter), bson.M{"$or": holds})
	return s.updateMany(ctx, studentsCol, query, update, "stripping ledger")
}
