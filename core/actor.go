package core

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
	RoleSystem  Role = "system" // CLI & maintenance jobs
)

// Actor is the authenticated caller on whose behalf an operation runs.
// It is passed explicitly to every service call that needs it.
type Actor struct {
	ID       string
	Name     string
	SchoolID string
	Role     Role
}

func SystemActor() Actor {
	return Actor{ID: "system", Name: "system", Role: RoleSystem}
}

func (a Actor) IsAdmin() bool   { return a.Role == RoleAdmin }
func (a Actor) IsTeacher() bool { return a.Role == RoleTeacher }
func (a Actor) IsStudent() bool { return a.Role == RoleStudent }
func (a Actor) IsSystem() bool  { return a.Role == RoleSystem }

// CanAccess reports whether the actor may see data owned by schoolID.
func (a Actor) CanAccess(schoolID string) bool {
	if a.IsSystem() {
		return true
	}
	return a.SchoolID != "" && a.SchoolID == schoolID
}

// CanManage reports whether the actor may mutate data owned by schoolID.
func (a Actor) CanManage(schoolID string) bool {
	return a.CanAccess(schoolID) && (a.IsAdmin() || a.IsSystem())
}

// CanMark reports whether the actor may write attendance and exam results for schoolID.
func (a Actor) CanMark(schoolID string) bool {
	return a.CanAccess(schoolID) && (a.IsAdmin() || a.IsTeacher() || a.IsSystem())
}
