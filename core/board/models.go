package board

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/darasa/core"
)

type Notice struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"` // UTC
	UpdatedAt   time.Time `json:"updated_at"` // UTC
}

// Complain is filed by a student or a teacher to their school's admin.
type Complain struct {
	ID          string    `json:"id"`
	SchoolID    string    `json:"school_id"`
	AuthorID    string    `json:"author_id"`
	AuthorRole  core.Role `json:"author_role"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Date        time.Time `json:"date"`
	CreatedAt   time.Time `json:"created_at"` // UTC
}

type NewNotice struct {
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description" validate:"required,notblank"`
	Date        core.Date `json:"date"`
}

func (nn *NewNotice) Validate(validate *validator.Validate) error {
	nn.Title = core.CleanString(nn.Title)
	nn.Description = core.CleanString(nn.Description)
	return validate.Struct(nn)
}

// UpdateNotice defines what may change on a Notice. Zero values keep the current value.
type UpdateNotice struct {
	Title       string    `json:"title" validate:"omitempty,notblank,max=200"`
	Description string    `json:"description"`
	Date        core.Date `json:"date"`
}

func (un *UpdateNotice) Validate(orig Notice, validate *validator.Validate) error {
	if title := core.CleanString(un.Title); title != "" {
		un.Title = title
	} else {
		un.Title = orig.Title
	}
	if desc := core.CleanString(un.Description); desc != "" {
		un.Description = desc
	} else {
		un.Description = orig.Description
	}
	if un.Date.IsZero() {
		un.Date = core.NewDate(orig.Date)
	}
	return validate.Struct(un)
}

type NewComplain struct {
	Title       string    `json:"title" validate:"required,notblank,max=200"`
	Description string    `json:"description" validate:"required,notblank"`
	Date        core.Date `json:"date"`
}

func (nc *NewComplain) Validate(validate *validator.Validate) error {
	nc.Title = core.CleanString(nc.Title)
	nc.Description = core.CleanString(nc.Description)
	return validate.Struct(nc)
}

// NoticeFilter selects notices by AND-ing its non-zero fields; a zero filter matches nothing on deletion.
type NoticeFilter struct {
	IDs      []string
	SchoolID string
}

func (f NoticeFilter) IsZero() bool { return len(f.IDs) == 0 && f.SchoolID == "" }

func (f NoticeFilter) Match(n Notice) bool {
	if len(f.IDs) > 0 {
		var found bool
		for _, id := range f.IDs {
			if id == n.ID {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return f.SchoolID == "" || f.SchoolID == n.SchoolID
}
