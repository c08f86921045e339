package academic

import "context"

// Filters select entities by AND-ing their non-zero fields.
// A zero filter selects every entity for queries and nothing for mutations.
type (
	ClassFilter struct {
		IDs      []string
		SchoolID string
		Name     string
	}

	SubjectFilter struct {
		IDs        []string
		SchoolID   string
		ClassID    string
		Codes      []string
		TeacherIDs []string
		Unassigned bool // no teacher
	}

	TeacherFilter struct {
		IDs        []string
		SchoolID   string
		ClassID    string
		SubjectIDs []string
		Email      string
	}

	StudentFilter struct {
		IDs      []string
		SchoolID string
		ClassID  string
		RollNum  int
		Name     string
	}
)

func (f ClassFilter) IsZero() bool {
	return len(f.IDs) == 0 && f.SchoolID == "" && f.Name == ""
}

func (f ClassFilter) Match(c Class) bool {
	return (len(f.IDs) == 0 || contains(f.IDs, c.ID)) &&
		(f.SchoolID == "" || f.SchoolID == c.SchoolID) &&
		(f.Name == "" || f.Name == c.Name)
}

func (f SubjectFilter) IsZero() bool {
	return len(f.IDs) == 0 && f.SchoolID == "" && f.ClassID == "" &&
		len(f.Codes) == 0 && len(f.TeacherIDs) == 0 && !f.Unassigned
}

func (f SubjectFilter) Match(s Subject) bool {
	return (len(f.IDs) == 0 || contains(f.IDs, s.ID)) &&
		(f.SchoolID == "" || f.SchoolID == s.SchoolID) &&
		(f.ClassID == "" || f.ClassID == s.ClassID) &&
		(len(f.Codes) == 0 || contains(f.Codes, s.Code)) &&
		(len(f.TeacherIDs) == 0 || contains(f.TeacherIDs, s.TeacherID)) &&
		(!f.Unassigned || s.TeacherID == "")
}

func (f TeacherFilter) IsZero() bool {
	return len(f.IDs) == 0 && f.SchoolID == "" && f.ClassID == "" && len(f.SubjectIDs) == 0 && f.Email == ""
}

func (f TeacherFilter) Match(t Teacher) bool {
	return (len(f.IDs) == 0 || contains(f.IDs, t.ID)) &&
		(f.SchoolID == "" || f.SchoolID == t.SchoolID) &&
		(f.ClassID == "" || f.ClassID == t.ClassID) &&
		(len(f.SubjectIDs) == 0 || contains(f.SubjectIDs, t.SubjectID)) &&
		(f.Email == "" || f.Email == t.Email)
}

func (f StudentFilter) IsZero() bool {
	return len(f.IDs) == 0 && f.SchoolID == "" && f.ClassID == "" && f.RollNum == 0 && f.Name == ""
}

func (f StudentFilter) Match(s Student) bool {
	return (len(f.IDs) == 0 || contains(f.IDs, s.ID)) &&
		(f.SchoolID == "" || f.SchoolID == s.SchoolID) &&
		(f.ClassID == "" || f.ClassID == s.ClassID) &&
		(f.RollNum == 0 || f.RollNum == s.RollNum) &&
		(f.Name == "" || f.Name == s.Name)
}

// TeacherRefs selects which references ClearTeacherRefs clears.
type TeacherRefs struct {
	Class   bool
	Subject bool
}

type (
	ClassRepository interface {
		CreateClass(ctx context.Context, class Class) (Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		QueryClasses(ctx context.Context, filter ClassFilter) ([]Class, error)
		DeleteClasses(ctx context.Context, filter ClassFilter) (int, error)
	}

	SubjectRepository interface {
		CreateSubjects(ctx context.Context, subjects ...Subject) ([]Subject, error)
		GetSubject(ctx context.Context, id string) (Subject, error)
		QuerySubjects(ctx context.Context, filter SubjectFilter) ([]Subject, error)
		// SetSubjectsTeacher points the matching subjects at teacherID; an empty teacherID clears the reference.
		SetSubjectsTeacher(ctx context.Context, filter SubjectFilter, teacherID string) (int, error)
		DeleteSubjects(ctx context.Context, filter SubjectFilter) (int, error)
	}

	TeacherRepository interface {
		CreateTeacher(ctx context.Context, teacher Teacher) (Teacher, error)
		GetTeacher(ctx context.Context, id string) (Teacher, error)
		QueryTeachers(ctx context.Context, filter TeacherFilter) ([]Teacher, error)
		// UpdateTeacher saves every field of teacher, attendance log included.
		UpdateTeacher(ctx context.Context, teacher Teacher) (Teacher, error)
		ClearTeacherRefs(ctx context.Context, filter TeacherFilter, refs TeacherRefs) (int, error)
		DeleteTeachers(ctx context.Context, filter TeacherFilter) (int, error)
	}

	StudentRepository interface {
		CreateStudent(ctx context.Context, student Student) (Student, error)
		GetStudent(ctx context.Context, id string) (Student, error)
		QueryStudents(ctx context.Context, filter StudentFilter) ([]Student, error)
		// UpdateStudent saves every field of student, attendance and exam results included.
		UpdateStudent(ctx context.Context, student Student) (Student, error)
		DeleteStudents(ctx context.Context, filter StudentFilter) (int, error)
		// StripLedger removes the entries selected by scope from the matching students
		// and returns how many students lost at least one entry.
		StripLedger(ctx context.Context, filter StudentFilter, scope LedgerScope) (int, error)
	}

	// Store gives access to every academic repository.
	Store interface {
		ClassRepository
		SubjectRepository
		TeacherRepository
		StudentRepository

		// Atomic runs fn inside a single transaction: every write fn makes through tx is applied,
		// or none is when fn (or the commit) fails. Reads through tx observe its own writes.
		Atomic(ctx context.Context, fn func(tx Store) error) error
	}
)
