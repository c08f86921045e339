package school

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/darasa/core"
)

// School is a tenant, owned and administered by the person who registered it.
type School struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"` // admin's name
	SchoolName   string    `json:"school_name"`
	Email        string    `json:"email"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (s *School) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	s.PasswordHash = hash
	return nil
}

func (s *School) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(s.PasswordHash, []byte(pwd))
}

// Actor returns the admin actor of the school.
func (s School) Actor() core.Actor {
	return core.Actor{ID: s.ID, Name: s.Name, SchoolID: s.ID, Role: core.RoleAdmin}
}

// NewSchool contains information needed to register a new School and its admin.
type NewSchool struct {
	Name       string `json:"name" validate:"required,notblank"`
	SchoolName string `json:"school_name" validate:"required,notblank"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
}

func (ns *NewSchool) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.SchoolName = core.CleanString(ns.SchoolName)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

type Login struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (l *Login) Validate(validate *validator.Validate) error {
	l.Email = core.CleanString(l.Email, true /* lower */)
	return validate.Struct(l)
}

// Filter selects a School by AND-ing its non-zero fields.
type Filter struct {
	ID         string
	Email      string
	SchoolName string
}

func (f Filter) Match(s School) bool {
	return (f.ID != "" || f.Email != "" || f.SchoolName != "") &&
		(f.ID == "" || f.ID == s.ID) &&
		(f.Email == "" || f.Email == s.Email) &&
		(f.SchoolName == "" || f.SchoolName == s.SchoolName)
}
