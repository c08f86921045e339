package academic

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/darasa/core"
)

// Attendance statuses
const (
	StatusPresent Status = "Present"
	StatusAbsent  Status = "Absent"
)

type Status string

// AttendanceEntry is one dated status in a person's attendance log.
// Teachers' entries carry no SubjectID: they are keyed by day only.
type AttendanceEntry struct {
	SubjectID string    `json:"subject_id,omitempty"`
	Date      time.Time `json:"date"` // midnight UTC
	Status    Status    `json:"status"`
}

type ExamResult struct {
	SubjectID string  `json:"subject_id"`
	Marks     float64 `json:"marks"`
}

type Class struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Subject struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	ClassID   string    `json:"class_id"`
	TeacherID string    `json:"teacher_id,omitempty"`
	Name      string    `json:"name"`
	Code      string    `json:"code"`
	Sessions  int       `json:"sessions"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

type Teacher struct {
	ID           string            `json:"id"`
	SchoolID     string            `json:"school_id"`
	ClassID      string            `json:"class_id,omitempty"`
	SubjectID    string            `json:"subject_id,omitempty"`
	Name         string            `json:"name"`
	Email        string            `json:"email"`
	PasswordHash []byte            `json:"-"`
	Attendance   []AttendanceEntry `json:"attendance"`
	CreatedAt    time.Time         `json:"created_at"` // UTC
	UpdatedAt    time.Time         `json:"updated_at"` // UTC
}

func (t *Teacher) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	t.PasswordHash = hash
	return nil
}

func (t *Teacher) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(t.PasswordHash, []byte(pwd))
}

func (t Teacher) Actor() core.Actor {
	return core.Actor{ID: t.ID, Name: t.Name, SchoolID: t.SchoolID, Role: core.RoleTeacher}
}

type Student struct {
	ID           string            `json:"id"`
	SchoolID     string            `json:"school_id"`
	ClassID      string            `json:"class_id"`
	Name         string            `json:"name"`
	RollNum      int               `json:"roll_num"`
	PasswordHash []byte            `json:"-"`
	Attendance   []AttendanceEntry `json:"attendance"`
	ExamResults  []ExamResult      `json:"exam_results"`
	CreatedAt    time.Time         `json:"created_at"` // UTC
	UpdatedAt    time.Time         `json:"updated_at"` // UTC
}

func (s *Student) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *Student) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

func (s Student) Actor() core.Actor {
	return s.Profile().Actor()
}

func (p StudentProfile) Actor() core.Actor {
	return core.Actor{ID: p.ID, Name: p.Name, SchoolID: p.SchoolID, Role: core.RoleStudent}
}

// StudentProfile is a Student without its ledger.
type StudentProfile struct {
	ID        string    `json:"id"`
	SchoolID  string    `json:"school_id"`
	ClassID   string    `json:"class_id"`
	Name      string    `json:"name"`
	RollNum   int       `json:"roll_num"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s Student) Profile() StudentProfile {
	return StudentProfile{
		ID:        s.ID,
		SchoolID:  s.SchoolID,
		ClassID:   s.ClassID,
		Name:      s.Name,
		RollNum:   s.RollNum,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

// AttendanceCount returns the number of attendance entries recorded for subjectID.
func (s *Student) AttendanceCount(subjectID string) int {
	var n int
	for _, e := range s.Attendance {
		if e.SubjectID == subjectID {
			n++
		}
	}
	return n
}

// Strip removes the ledger entries selected by scope and reports whether anything was removed.
func (s *Student) Strip(scope LedgerScope) bool {
	var stripped bool
	if scope.Attendance {
		kept := make([]AttendanceEntry, 0, len(s.Attendance))
		for _, e := range s.Attendance {
			if scope.covers(e.SubjectID) {
				stripped = true
				continue
			}
			kept = append(kept, e)
		}
		s.Attendance = kept
	}
	if scope.Results {
		kept := make([]ExamResult, 0, len(s.ExamResults))
		for _, r := range s.ExamResults {
			if scope.covers(r.SubjectID) {
				stripped = true
				continue
			}
			kept = append(kept, r)
		}
		s.ExamResults = kept
	}
	return stripped
}

// LedgerScope selects the ledger entries removed by StudentRepository.StripLedger.
type LedgerScope struct {
	SubjectIDs []string // empty means every subject
	Attendance bool
	Results    bool
}

func (scope LedgerScope) covers(subjectID string) bool {
	if len(scope.SubjectIDs) == 0 {
		return true
	}
	return contains(scope.SubjectIDs, subjectID)
}

// NewClass contains information needed to create a new Class.
type NewClass struct {
	Name string `json:"name" validate:"required,notblank,max=100"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	return validate.Struct(nc)
}

// NewSubjects creates a batch of Subjects in a Class.
type NewSubjects struct {
	ClassID  string         `json:"class_id" validate:"required"`
	Subjects []SubjectInput `json:"subjects" validate:"required,min=1,dive"`
}

type SubjectInput struct {
	Name     string `json:"name" validate:"required,notblank,max=100"`
	Code     string `json:"code" validate:"required,notblank,max=30"`
	Sessions int    `json:"sessions" validate:"required,min=1"`
}

func (ns *NewSubjects) Validate(validate *validator.Validate) error {
	ns.ClassID = core.CleanString(ns.ClassID)
	for i := range ns.Subjects {
		ns.Subjects[i].Name = core.CleanString(ns.Subjects[i].Name)
		ns.Subjects[i].Code = core.CleanString(ns.Subjects[i].Code)
	}
	return validate.Struct(ns)
}

// NewTeacher contains information needed to register a new Teacher.
type NewTeacher struct {
	Name      string `json:"name" validate:"required,notblank"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required"`
	ClassID   string `json:"class_id"`
	SubjectID string `json:"subject_id"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Email = core.CleanString(nt.Email, true /* lower */)
	nt.ClassID = core.CleanString(nt.ClassID)
	nt.SubjectID = core.CleanString(nt.SubjectID)
	return validate.Struct(nt)
}

// AssignSubject moves a Teacher onto a Subject (and its Class).
type AssignSubject struct {
	SubjectID string `json:"subject_id" validate:"required"`
}

func (as *AssignSubject) Validate(validate *validator.Validate) error {
	as.SubjectID = core.CleanString(as.SubjectID)
	return validate.Struct(as)
}

// NewStudent contains information needed to register a new Student.
type NewStudent struct {
	Name     string `json:"name" validate:"required,notblank"`
	RollNum  int    `json:"roll_num" validate:"required,min=1"`
	Password string `json:"password" validate:"required"`
	ClassID  string `json:"class_id" validate:"required"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.ClassID = core.CleanString(ns.ClassID)
	return validate.Struct(ns)
}

// UpdateStudent defines what information may be provided to modify an existing Student.
// Zero values keep the current value.
type UpdateStudent struct {
	Name     string `json:"name"`
	RollNum  int    `json:"roll_num" validate:"omitempty,min=1"`
	ClassID  string `json:"class_id"`
	Password string `json:"password"`
}

func (us *UpdateStudent) Validate(orig Student, validate *validator.Validate) error {
	if name := core.CleanString(us.Name); name != "" {
		us.Name = name
	} else {
		us.Name = orig.Name
	}
	if us.RollNum == 0 {
		us.RollNum = orig.RollNum
	}
	if classID := core.CleanString(us.ClassID); classID != "" {
		us.ClassID = classID
	} else {
		us.ClassID = orig.ClassID
	}
	return validate.Struct(us)
}

// TeacherLogin holds teacher portal credentials.
type TeacherLogin struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (tl *TeacherLogin) Validate(validate *validator.Validate) error {
	tl.Email = core.CleanString(tl.Email, true /* lower */)
	return validate.Struct(tl)
}

// StudentLogin holds student portal credentials.
type StudentLogin struct {
	RollNum  int    `json:"roll_num" validate:"required,min=1"`
	Name     string `json:"name" validate:"required,notblank"`
	Password string `json:"password" validate:"required"`
}

func (sl *StudentLogin) Validate(validate *validator.Validate) error {
	sl.Name = core.CleanString(sl.Name)
	return validate.Struct(sl)
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
